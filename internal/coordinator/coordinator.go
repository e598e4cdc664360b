// Package coordinator owns the robot's busy/idle status and last requested
// location. It forwards move requests to the actuator sink, schedules the
// simulated completion and pushes every change to the observer registry.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"k8s.io/utils/clock"

	"github.com/stacklok/hospital-robot-server/internal/observer"
	"github.com/stacklok/hospital-robot-server/internal/otel"
	"github.com/stacklok/hospital-robot-server/internal/robot"
	"github.com/stacklok/hospital-robot-server/internal/sink"
	"github.com/stacklok/hospital-robot-server/internal/telemetry"
)

// ErrStopped is returned by SubmitMove after Stop
var ErrStopped = errors.New("coordinator stopped")

// Ack acknowledges an accepted move request
type Ack struct {
	// RequestID identifies the request in logs and traces
	RequestID string

	// Update is the status broadcast for the request
	Update robot.StatusUpdate
}

// SinkError reports that a request was accepted but could not be handed to
// the actuator. It always matches sink.ErrSinkUnavailable.
type SinkError struct {
	Sink string
	Err  error
}

func (e *SinkError) Error() string {
	return fmt.Sprintf("publish to %s sink failed: %v", e.Sink, e.Err)
}

func (e *SinkError) Unwrap() error {
	return e.Err
}

// Is makes every SinkError match sink.ErrSinkUnavailable
func (*SinkError) Is(target error) bool {
	return target == sink.ErrSinkUnavailable
}

// Coordinator is the single source of truth for the robot status.
// One mutex guards status, location and pending reversions; broadcasts are
// enqueued while it is held so every observer sees changes in commit order.
type Coordinator struct {
	mu       sync.Mutex
	status   robot.Status
	location robot.Location
	timers   map[string]clock.Timer
	stopped  bool

	sink     sink.Sink
	registry *observer.Registry
	clock    clock.WithDelayedExecution
	delay    time.Duration
	policy   Policy
	metrics  *telemetry.RobotMetrics
	tracer   trace.Tracer
}

// New creates an idle coordinator at the initial location
func New(s sink.Sink, registry *observer.Registry, opts ...Option) *Coordinator {
	c := &Coordinator{
		status:   robot.StatusIdle,
		location: robot.InitialLocation(),
		timers:   make(map[string]clock.Timer),
		sink:     s,
		registry: registry,
		clock:    clock.RealClock{},
		delay:    DefaultReversionDelay,
		policy:   PolicySupersede,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SubmitMove publishes req to the sink, marks the robot busy at the requested
// location, broadcasts the change and arms the reversion timer. A sink failure
// does not stop the state change; it is returned as a *SinkError next to a
// valid Ack.
func (c *Coordinator) SubmitMove(ctx context.Context, req robot.MoveRequest) (Ack, error) {
	loc := req.Location()
	ctx, span := otel.StartSpan(ctx, c.tracer, "coordinator.SubmitMove",
		trace.WithAttributes(
			otel.AttrFloor.Int(loc.Floor),
			otel.AttrRoom.String(loc.Room),
		),
	)
	defer span.End()

	if c.Stopped() {
		return Ack{}, ErrStopped
	}

	payload, err := req.Payload()
	if err != nil {
		otel.RecordError(span, err)
		return Ack{}, fmt.Errorf("failed to encode move request: %w", err)
	}

	requestID := uuid.NewString()
	span.SetAttributes(otel.AttrRequestID.String(requestID), otel.AttrSink.String(c.sink.Name()))

	var sinkErr error
	if err := c.sink.Publish(ctx, payload); err != nil {
		sinkErr = &SinkError{Sink: c.sink.Name(), Err: err}
		otel.RecordError(span, sinkErr)
		c.metrics.RecordSinkFailure(ctx, c.sink.Name())
		slog.WarnContext(ctx, "Move request not delivered to actuator",
			"request_id", requestID,
			"sink", c.sink.Name(),
			"error", err,
		)
	}

	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return Ack{}, ErrStopped
	}
	if c.policy == PolicySupersede {
		c.cancelPendingLocked()
	}
	c.status = robot.StatusBusy
	c.location = loc
	update := c.snapshotLocked()
	c.timers[requestID] = c.clock.AfterFunc(c.delay, func() {
		c.revert(requestID)
	})
	c.registry.Broadcast(update)
	c.metrics.RecordTransition(ctx, string(robot.StatusBusy))
	c.mu.Unlock()

	outcome := telemetry.OutcomeAccepted
	if sinkErr != nil {
		outcome = telemetry.OutcomeDegraded
	}
	c.metrics.RecordMoveRequest(ctx, outcome)

	slog.InfoContext(ctx, "Move request accepted",
		"request_id", requestID,
		"floor", loc.Floor,
		"room", loc.Room,
		"x", loc.X,
		"y", loc.Y,
		"yaw", loc.Yaw,
		"revert_in", c.delay,
	)

	return Ack{RequestID: requestID, Update: update}, sinkErr
}

// revert runs when the reversion timer for requestID fires. A timer that was
// cancelled but fired anyway no longer has an entry and is ignored.
func (c *Coordinator) revert(requestID string) {
	c.mu.Lock()
	if _, ok := c.timers[requestID]; !ok {
		c.mu.Unlock()
		slog.Debug("Ignoring superseded reversion", "request_id", requestID)
		return
	}
	delete(c.timers, requestID)
	c.status = robot.StatusIdle
	update := c.snapshotLocked()
	c.registry.Broadcast(update)
	c.metrics.RecordTransition(context.Background(), string(robot.StatusIdle))
	c.mu.Unlock()

	slog.Info("Robot reverted to idle", "request_id", requestID, "room", update.CurrentLocation.Room)
}

// Current returns the current status and location
func (c *Coordinator) Current() robot.StatusUpdate {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Subscribe registers an observer whose first update is the current snapshot.
// Holding the state lock orders the snapshot before any later broadcast.
func (c *Coordinator) Subscribe() *observer.Handle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.registry.Subscribe(c.snapshotLocked())
}

// Unsubscribe removes an observer. It is safe to call more than once.
func (c *Coordinator) Unsubscribe(h *observer.Handle) {
	c.registry.Unsubscribe(h)
}

// Stop cancels pending reversions and rejects further move requests.
// The last status stays readable.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}
	c.stopped = true
	c.cancelPendingLocked()
	slog.Info("Status coordinator stopped")
}

// Stopped reports whether Stop has been called
func (c *Coordinator) Stopped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopped
}

func (c *Coordinator) cancelPendingLocked() {
	for id, t := range c.timers {
		t.Stop()
		delete(c.timers, id)
	}
}

func (c *Coordinator) snapshotLocked() robot.StatusUpdate {
	return robot.StatusUpdate{
		Status:          c.status,
		CurrentLocation: c.location,
	}
}
