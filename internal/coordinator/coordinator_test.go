package coordinator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/mock/gomock"
	testingclock "k8s.io/utils/clock/testing"

	"github.com/stacklok/hospital-robot-server/internal/observer"
	"github.com/stacklok/hospital-robot-server/internal/robot"
	"github.com/stacklok/hospital-robot-server/internal/sink"
	"github.com/stacklok/hospital-robot-server/internal/sink/mocks"
	"github.com/stacklok/hospital-robot-server/internal/telemetry"
)

const testDelay = 20 * time.Second

type fixture struct {
	coord    *Coordinator
	clock    *testingclock.FakeClock
	registry *observer.Registry
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()

	fakeClock := testingclock.NewFakeClock(time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC))
	registry := observer.NewRegistry()
	opts = append([]Option{WithClock(fakeClock), WithReversionDelay(testDelay)}, opts...)

	coord := New(sink.NewLogSink(), registry, opts...)
	t.Cleanup(coord.Stop)

	return &fixture{coord: coord, clock: fakeClock, registry: registry}
}

// next waits for the next update delivered to h
func next(t *testing.T, h *observer.Handle) robot.StatusUpdate {
	t.Helper()
	select {
	case u, ok := <-h.Updates():
		require.True(t, ok, "observer closed unexpectedly")
		return u
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for status update")
		return robot.StatusUpdate{}
	}
}

func assertNoUpdate(t *testing.T, h *observer.Handle) {
	t.Helper()
	select {
	case u := <-h.Updates():
		t.Fatalf("unexpected update %+v", u)
	case <-time.After(50 * time.Millisecond):
	}
}

func (f *fixture) pending() int {
	f.coord.mu.Lock()
	defer f.coord.mu.Unlock()
	return len(f.coord.timers)
}

func move(floor int, room string) robot.MoveRequest {
	return robot.MoveRequest{X: 1.5, Y: -2, Floor: floor, Yaw: 90, Room: room}
}

func TestNew_InitialState(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	got := f.coord.Current()

	assert.Equal(t, robot.StatusIdle, got.Status)
	assert.Equal(t, robot.Location{Floor: 1, Room: "Lobby"}, got.CurrentLocation)
}

func TestNew_InitialLocationOverride(t *testing.T) {
	t.Parallel()

	loc := robot.Location{Floor: 2, Room: "Dock", X: 3}
	f := newFixture(t, WithInitialLocation(loc))
	assert.Equal(t, loc, f.coord.Current().CurrentLocation)
}

func TestSubmitMove_MarksBusyAndBroadcasts(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	h := f.coord.Subscribe()
	assert.Equal(t, robot.StatusIdle, next(t, h).Status)

	ack, err := f.coord.SubmitMove(context.Background(), move(3, "lab"))
	require.NoError(t, err)
	assert.NotEmpty(t, ack.RequestID)

	want := robot.StatusUpdate{
		Status:          robot.StatusBusy,
		CurrentLocation: robot.Location{Floor: 3, Room: "lab", X: 1.5, Y: -2, Yaw: 90},
	}
	assert.Equal(t, want, ack.Update)
	assert.Equal(t, want, f.coord.Current())
	assert.Equal(t, want, next(t, h))
}

func TestSubmitMove_RevertsToIdleAfterDelay(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	h := f.coord.Subscribe()
	_ = next(t, h)

	_, err := f.coord.SubmitMove(context.Background(), move(2, "pharmacy"))
	require.NoError(t, err)
	busy := next(t, h)

	f.clock.Step(testDelay - time.Second)
	assertNoUpdate(t, h)
	assert.True(t, f.coord.Current().IsBusy())

	f.clock.Step(time.Second)
	idle := next(t, h)

	assert.Equal(t, robot.StatusIdle, idle.Status)
	assert.Equal(t, busy.CurrentLocation, idle.CurrentLocation)
	assert.Equal(t, idle, f.coord.Current())
	assert.Zero(t, f.pending())
}

func TestSubscribe_WhileBusyGetsBusySnapshot(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	_, err := f.coord.SubmitMove(context.Background(), move(4, "ward"))
	require.NoError(t, err)

	h := f.coord.Subscribe()
	snapshot := next(t, h)

	assert.Equal(t, robot.StatusBusy, snapshot.Status)
	assert.Equal(t, "ward", snapshot.CurrentLocation.Room)
}

func TestUnsubscribe_IsIdempotent(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	h := f.coord.Subscribe()

	f.coord.Unsubscribe(h)
	assert.NotPanics(t, func() { f.coord.Unsubscribe(h) })
	assert.Equal(t, 0, f.registry.Len())

	_, err := f.coord.SubmitMove(context.Background(), move(1, "lab"))
	require.NoError(t, err)
}

func TestSubmitMove_ObserverSeesBusyThenIdle(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	h := f.coord.Subscribe()
	_ = next(t, h)

	_, err := f.coord.SubmitMove(context.Background(), move(1, "radiology"))
	require.NoError(t, err)
	f.clock.Step(testDelay)

	assert.Equal(t, robot.StatusBusy, next(t, h).Status)
	assert.Equal(t, robot.StatusIdle, next(t, h).Status)
}

func TestSubmitMove_MissingRoomDefaultsToUnknown(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	_, err := f.coord.SubmitMove(context.Background(), robot.MoveRequest{X: 1, Y: 2, Floor: 1})
	require.NoError(t, err)

	assert.Equal(t, robot.DefaultRoom, f.coord.Current().CurrentLocation.Room)
}

func TestSubmitMove_SupersedePolicy(t *testing.T) {
	t.Parallel()

	f := newFixture(t, WithPolicy(PolicySupersede))
	h := f.coord.Subscribe()
	_ = next(t, h)

	_, err := f.coord.SubmitMove(context.Background(), move(1, "lab"))
	require.NoError(t, err)
	assert.Equal(t, "lab", next(t, h).CurrentLocation.Room)

	f.clock.Step(10 * time.Second)
	_, err = f.coord.SubmitMove(context.Background(), move(1, "icu"))
	require.NoError(t, err)
	assert.Equal(t, "icu", next(t, h).CurrentLocation.Room)
	assert.Equal(t, 1, f.pending())

	// the lab request's window has passed but icu's has not
	f.clock.Step(10 * time.Second)
	assertNoUpdate(t, h)
	assert.Equal(t, robot.StatusBusy, f.coord.Current().Status)

	f.clock.Step(10 * time.Second)
	idle := next(t, h)
	assert.Equal(t, robot.StatusIdle, idle.Status)
	assert.Equal(t, "icu", idle.CurrentLocation.Room)
}

func TestSubmitMove_OverlapPolicy(t *testing.T) {
	t.Parallel()

	f := newFixture(t, WithPolicy(PolicyOverlap))
	h := f.coord.Subscribe()
	_ = next(t, h)

	_, err := f.coord.SubmitMove(context.Background(), move(1, "lab"))
	require.NoError(t, err)
	_ = next(t, h)

	f.clock.Step(10 * time.Second)
	_, err = f.coord.SubmitMove(context.Background(), move(1, "icu"))
	require.NoError(t, err)
	_ = next(t, h)
	assert.Equal(t, 2, f.pending())

	// the lab timer still fires and reports idle at the icu location
	f.clock.Step(10 * time.Second)
	early := next(t, h)
	assert.Equal(t, robot.StatusIdle, early.Status)
	assert.Equal(t, "icu", early.CurrentLocation.Room)

	f.clock.Step(10 * time.Second)
	late := next(t, h)
	assert.Equal(t, robot.StatusIdle, late.Status)
	assert.Zero(t, f.pending())
}

func TestRevert_IgnoresSupersededTimer(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ack, err := f.coord.SubmitMove(context.Background(), move(1, "lab"))
	require.NoError(t, err)
	_, err = f.coord.SubmitMove(context.Background(), move(1, "icu"))
	require.NoError(t, err)

	h := f.coord.Subscribe()
	_ = next(t, h)

	// simulate the first timer firing after it lost the race with Stop
	f.coord.revert(ack.RequestID)

	assertNoUpdate(t, h)
	assert.Equal(t, robot.StatusBusy, f.coord.Current().Status)
	assert.Equal(t, 1, f.pending())
}

func TestSubmitMove_SinkFailureStillCommits(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	mockSink := mocks.NewMockSink(ctrl)
	mockSink.EXPECT().Name().Return("rosbridge").AnyTimes()
	mockSink.EXPECT().Publish(gomock.Any(), gomock.Any()).
		Return(errors.New("not connected"))

	registry := observer.NewRegistry()
	coord := New(mockSink, registry, WithClock(testingclock.NewFakeClock(time.Now())))
	t.Cleanup(coord.Stop)

	h := coord.Subscribe()
	_ = next(t, h)

	ack, err := coord.SubmitMove(context.Background(), move(2, "lab"))
	require.Error(t, err)

	var sinkErr *SinkError
	require.ErrorAs(t, err, &sinkErr)
	assert.Equal(t, "rosbridge", sinkErr.Sink)
	assert.ErrorIs(t, err, sink.ErrSinkUnavailable)

	assert.Equal(t, robot.StatusBusy, ack.Update.Status)
	assert.Equal(t, robot.StatusBusy, coord.Current().Status)
	assert.Equal(t, "lab", next(t, h).CurrentLocation.Room)
}

func TestSubmitMove_PublishesEncodedRequest(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	mockSink := mocks.NewMockSink(ctrl)
	mockSink.EXPECT().Name().Return("mock").AnyTimes()
	mockSink.EXPECT().Publish(gomock.Any(), []byte(`{"x":1.5,"y":-2,"floor":3,"yaw":90,"room":"icu"}`)).
		Return(nil)

	coord := New(mockSink, observer.NewRegistry(), WithClock(testingclock.NewFakeClock(time.Now())))
	t.Cleanup(coord.Stop)

	_, err := coord.SubmitMove(context.Background(), move(3, "icu"))
	require.NoError(t, err)
}

func TestStop(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	_, err := f.coord.SubmitMove(context.Background(), move(1, "lab"))
	require.NoError(t, err)

	f.coord.Stop()
	f.coord.Stop()
	assert.Zero(t, f.pending())
	assert.False(t, f.clock.HasWaiters())

	_, err = f.coord.SubmitMove(context.Background(), move(1, "icu"))
	assert.ErrorIs(t, err, ErrStopped)

	// the last status stays readable
	assert.Equal(t, "lab", f.coord.Current().CurrentLocation.Room)
}

func TestSubmitMove_ConcurrentRequestsKeepOneTimer(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	h := f.coord.Subscribe()

	var wg sync.WaitGroup
	for i := 1; i <= 10; i++ {
		wg.Add(1)
		go func(floor int) {
			defer wg.Done()
			_, err := f.coord.SubmitMove(context.Background(), move(floor, "ward"))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, f.pending())
	assert.True(t, f.coord.Current().IsBusy())

	f.coord.Unsubscribe(h)
}

func TestSubmitMove_RecordsMetrics(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = mp.Shutdown(context.Background()) }()

	metrics, err := telemetry.NewRobotMetrics(mp)
	require.NoError(t, err)

	f := newFixture(t, WithMetrics(metrics))
	_, err = f.coord.SubmitMove(context.Background(), move(1, "lab"))
	require.NoError(t, err)
	f.clock.Step(testDelay)
	require.Eventually(t, func() bool { return !f.coord.Current().IsBusy() }, 5*time.Second, 10*time.Millisecond)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	totals := map[string]int64{}
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					totals[m.Name] += dp.Value
				}
			}
		}
	}

	assert.Equal(t, int64(1), totals["hrobot_move_requests_total"])
	assert.Equal(t, int64(2), totals["hrobot_status_transitions_total"])
}

func TestParsePolicy(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    Policy
		wantErr bool
	}{
		{in: "", want: PolicySupersede},
		{in: "supersede", want: PolicySupersede},
		{in: "overlap", want: PolicyOverlap},
		{in: "latest", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()

			got, err := ParsePolicy(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
