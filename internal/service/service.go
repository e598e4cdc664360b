// Package service exposes the robot status coordinator and actuator sink to
// the HTTP layer.
package service

import (
	"context"
	"errors"

	"github.com/stacklok/hospital-robot-server/internal/coordinator"
	"github.com/stacklok/hospital-robot-server/internal/observer"
	"github.com/stacklok/hospital-robot-server/internal/robot"
	"github.com/stacklok/hospital-robot-server/internal/sink"
)

// ErrNotReady is returned by CheckReadiness once the service has shut down
var ErrNotReady = errors.New("robot service not ready")

//go:generate mockgen -destination=mocks/mock_service.go -package=mocks -source=service.go RobotService

// RobotService defines the operations served over HTTP
type RobotService interface {
	// RobotID returns the identifier of the managed robot
	RobotID() string

	// SubmitMove records a move request and forwards it to the actuator
	SubmitMove(ctx context.Context, req robot.MoveRequest) (coordinator.Ack, error)

	// Current returns the current status snapshot
	Current() robot.StatusUpdate

	// Subscribe registers a push observer that first receives the current snapshot
	Subscribe() *observer.Handle

	// Unsubscribe removes a push observer
	Unsubscribe(h *observer.Handle)

	// CheckReadiness returns nil while move requests are accepted
	CheckReadiness(ctx context.Context) error

	// SinkStatus returns nil when the actuator is reachable
	SinkStatus() error
}

type robotService struct {
	robotID string
	coord   *coordinator.Coordinator
	sink    sink.Sink
}

// NewRobotService creates a RobotService backed by coord and s
func NewRobotService(robotID string, coord *coordinator.Coordinator, s sink.Sink) RobotService {
	return &robotService{
		robotID: robotID,
		coord:   coord,
		sink:    s,
	}
}

func (s *robotService) RobotID() string {
	return s.robotID
}

func (s *robotService) SubmitMove(ctx context.Context, req robot.MoveRequest) (coordinator.Ack, error) {
	return s.coord.SubmitMove(ctx, req)
}

func (s *robotService) Current() robot.StatusUpdate {
	return s.coord.Current()
}

func (s *robotService) Subscribe() *observer.Handle {
	return s.coord.Subscribe()
}

func (s *robotService) Unsubscribe(h *observer.Handle) {
	s.coord.Unsubscribe(h)
}

// CheckReadiness does not depend on the sink: requests are still accepted
// and broadcast while the actuator is unreachable
func (s *robotService) CheckReadiness(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.coord.Stopped() {
		return ErrNotReady
	}
	return nil
}

func (s *robotService) SinkStatus() error {
	return s.sink.Ready()
}
