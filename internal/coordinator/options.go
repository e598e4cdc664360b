package coordinator

import (
	"fmt"
	"time"

	"go.opentelemetry.io/otel/trace"
	"k8s.io/utils/clock"

	"github.com/stacklok/hospital-robot-server/internal/robot"
	"github.com/stacklok/hospital-robot-server/internal/telemetry"
)

// DefaultReversionDelay is how long the robot reports busy after a move request
const DefaultReversionDelay = 20 * time.Second

// Policy decides what happens to a pending reversion when a new request arrives
type Policy string

const (
	// PolicySupersede cancels the pending reversion so the newest request gets a full window
	PolicySupersede Policy = "supersede"

	// PolicyOverlap leaves earlier reversions armed; whichever fires first reports idle
	PolicyOverlap Policy = "overlap"
)

// ParsePolicy converts a configuration value into a Policy. Empty means PolicySupersede.
func ParsePolicy(value string) (Policy, error) {
	switch Policy(value) {
	case "", PolicySupersede:
		return PolicySupersede, nil
	case PolicyOverlap:
		return PolicyOverlap, nil
	default:
		return "", fmt.Errorf("unknown reversion policy %q, expected %q or %q", value, PolicySupersede, PolicyOverlap)
	}
}

// Option configures a Coordinator
type Option func(*Coordinator)

// WithClock sets the clock used to schedule reversions
func WithClock(clk clock.WithDelayedExecution) Option {
	return func(c *Coordinator) {
		c.clock = clk
	}
}

// WithReversionDelay sets how long a move request keeps the robot busy
func WithReversionDelay(delay time.Duration) Option {
	return func(c *Coordinator) {
		if delay > 0 {
			c.delay = delay
		}
	}
}

// WithPolicy sets the reversion policy
func WithPolicy(policy Policy) Option {
	return func(c *Coordinator) {
		c.policy = policy
	}
}

// WithMetrics records requests and status transitions
func WithMetrics(metrics *telemetry.RobotMetrics) Option {
	return func(c *Coordinator) {
		c.metrics = metrics
	}
}

// WithTracer enables spans around move requests
func WithTracer(tracer trace.Tracer) Option {
	return func(c *Coordinator) {
		c.tracer = tracer
	}
}

// WithInitialLocation overrides the location reported before the first request
func WithInitialLocation(loc robot.Location) Option {
	return func(c *Coordinator) {
		c.location = loc
	}
}
