package app

import (
	"github.com/stacklok/hospital-robot-server/internal/coordinator"
	"github.com/stacklok/hospital-robot-server/internal/observer"
	"github.com/stacklok/hospital-robot-server/internal/service"
	"github.com/stacklok/hospital-robot-server/internal/sink"
	"github.com/stacklok/hospital-robot-server/internal/telemetry"
)

// AppComponents groups all application components
//
//nolint:revive // This name is fine
type AppComponents struct {
	// Coordinator owns the robot status and reversion timers
	Coordinator *coordinator.Coordinator

	// Registry holds the connected status observers
	Registry *observer.Registry

	// Sink delivers move requests to the actuator
	Sink sink.Sink

	// RobotService is the facade used by the HTTP layer
	RobotService service.RobotService

	// Telemetry owns the tracer and meter providers
	Telemetry *telemetry.Telemetry

	// Metrics is shared by the coordinator, registry and HTTP routes
	Metrics *telemetry.RobotMetrics
}
