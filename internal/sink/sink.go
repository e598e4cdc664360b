// Package sink delivers accepted move requests to the robot actuator layer.
package sink

import (
	"context"
	"errors"
)

//go:generate mockgen -destination=mocks/mock_sink.go -package=mocks -source=sink.go Sink,Runner

// ErrSinkUnavailable is returned when a payload could not be handed to the actuator
var ErrSinkUnavailable = errors.New("actuator sink unavailable")

// Sink publishes encoded move requests to the robot.
// Publish must not block on network I/O.
type Sink interface {
	// Name identifies the sink in logs and metrics
	Name() string

	// Publish hands payload to the actuator. Failures wrap ErrSinkUnavailable.
	Publish(ctx context.Context, payload []byte) error

	// Ready returns nil when Publish is expected to succeed
	Ready() error

	// Close releases the sink; Publish fails afterwards
	Close() error
}

// Runner is implemented by sinks that keep a background connection
type Runner interface {
	// Run blocks until ctx is cancelled or the sink is closed
	Run(ctx context.Context) error
}
