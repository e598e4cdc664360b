package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	// RobotMetricsMeterName is the name used for the robot status meter
	RobotMetricsMeterName = "github.com/stacklok/hospital-robot-server/robot"
)

// Move request outcomes recorded by RecordMoveRequest
const (
	OutcomeAccepted = "accepted"
	OutcomeRejected = "rejected"
	OutcomeDegraded = "degraded"
)

// RobotMetrics holds the OpenTelemetry instruments for the status coordinator
// and the observer registry. A nil *RobotMetrics is a valid no-op.
type RobotMetrics struct {
	moveRequests  metric.Int64Counter
	sinkFailures  metric.Int64Counter
	transitions   metric.Int64Counter
	busy          metric.Int64Gauge
	observers     metric.Int64UpDownCounter
	droppedEvents metric.Int64Counter
}

// NewRobotMetrics creates a new RobotMetrics instance with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewRobotMetrics(provider metric.MeterProvider) (*RobotMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(RobotMetricsMeterName)

	moveRequests, err := meter.Int64Counter(
		"hrobot_move_requests_total",
		metric.WithDescription("Move requests received, by outcome"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	sinkFailures, err := meter.Int64Counter(
		"hrobot_sink_publish_failures_total",
		metric.WithDescription("Move requests that could not be published to the actuator"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	transitions, err := meter.Int64Counter(
		"hrobot_status_transitions_total",
		metric.WithDescription("Committed robot status transitions"),
		metric.WithUnit("{transition}"),
	)
	if err != nil {
		return nil, err
	}

	busy, err := meter.Int64Gauge(
		"hrobot_robot_busy",
		metric.WithDescription("1 while the robot is busy, 0 while idle"),
	)
	if err != nil {
		return nil, err
	}

	observers, err := meter.Int64UpDownCounter(
		"hrobot_observers",
		metric.WithDescription("Currently connected status observers"),
		metric.WithUnit("{observer}"),
	)
	if err != nil {
		return nil, err
	}

	droppedEvents, err := meter.Int64Counter(
		"hrobot_observer_dropped_updates_total",
		metric.WithDescription("Status updates dropped because an observer queue was full"),
		metric.WithUnit("{update}"),
	)
	if err != nil {
		return nil, err
	}

	return &RobotMetrics{
		moveRequests:  moveRequests,
		sinkFailures:  sinkFailures,
		transitions:   transitions,
		busy:          busy,
		observers:     observers,
		droppedEvents: droppedEvents,
	}, nil
}

// RecordMoveRequest counts a move request with its outcome
func (m *RobotMetrics) RecordMoveRequest(ctx context.Context, outcome string) {
	if m == nil || m.moveRequests == nil {
		return
	}
	m.moveRequests.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordSinkFailure counts a failed actuator publish
func (m *RobotMetrics) RecordSinkFailure(ctx context.Context, sinkName string) {
	if m == nil || m.sinkFailures == nil {
		return
	}
	m.sinkFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("sink", sinkName)))
}

// RecordTransition records a committed status change
func (m *RobotMetrics) RecordTransition(ctx context.Context, status string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))

	var busy int64
	if status == "busy" {
		busy = 1
	}
	m.busy.Record(ctx, busy)
}

// RecordObserverDelta adjusts the connected observer count
func (m *RobotMetrics) RecordObserverDelta(ctx context.Context, delta int64) {
	if m == nil || m.observers == nil {
		return
	}
	m.observers.Add(ctx, delta)
}

// RecordDroppedUpdate counts an update discarded from a full observer queue
func (m *RobotMetrics) RecordDroppedUpdate(ctx context.Context) {
	if m == nil || m.droppedEvents == nil {
		return
	}
	m.droppedEvents.Add(ctx, 1)
}
