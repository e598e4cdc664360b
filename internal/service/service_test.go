package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	testingclock "k8s.io/utils/clock/testing"

	"github.com/stacklok/hospital-robot-server/internal/coordinator"
	"github.com/stacklok/hospital-robot-server/internal/observer"
	"github.com/stacklok/hospital-robot-server/internal/robot"
	"github.com/stacklok/hospital-robot-server/internal/sink"
)

func newTestService(t *testing.T) (RobotService, *coordinator.Coordinator, *sink.LogSink) {
	t.Helper()

	s := sink.NewLogSink()
	coord := coordinator.New(s, observer.NewRegistry(),
		coordinator.WithClock(testingclock.NewFakeClock(time.Now())))
	t.Cleanup(coord.Stop)

	return NewRobotService("HR-007", coord, s), coord, s
}

func TestRobotService_Delegates(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService(t)
	assert.Equal(t, "HR-007", svc.RobotID())

	h := svc.Subscribe()
	snapshot := <-h.Updates()
	assert.Equal(t, robot.StatusIdle, snapshot.Status)

	ack, err := svc.SubmitMove(context.Background(), robot.MoveRequest{Floor: 2, Room: "lab"})
	require.NoError(t, err)
	assert.Equal(t, ack.Update, svc.Current())
	assert.Equal(t, robot.StatusBusy, (<-h.Updates()).Status)

	svc.Unsubscribe(h)
	_, open := <-h.Updates()
	assert.False(t, open)
}

func TestRobotService_CheckReadiness(t *testing.T) {
	t.Parallel()

	svc, coord, _ := newTestService(t)
	require.NoError(t, svc.CheckReadiness(context.Background()))

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, svc.CheckReadiness(cancelled), context.Canceled)

	coord.Stop()
	assert.ErrorIs(t, svc.CheckReadiness(context.Background()), ErrNotReady)
}

func TestRobotService_SinkStatus(t *testing.T) {
	t.Parallel()

	svc, _, s := newTestService(t)
	require.NoError(t, svc.SinkStatus())

	require.NoError(t, s.Close())
	assert.ErrorIs(t, svc.SinkStatus(), sink.ErrSinkUnavailable)

	// a closed sink does not make the service unready
	assert.NoError(t, svc.CheckReadiness(context.Background()))
}
