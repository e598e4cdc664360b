package observer

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/stacklok/hospital-robot-server/internal/robot"
	"github.com/stacklok/hospital-robot-server/internal/telemetry"
)

func update(status robot.Status, room string) robot.StatusUpdate {
	return robot.StatusUpdate{
		Status:          status,
		CurrentLocation: robot.Location{Floor: 1, Room: room},
	}
}

// drain reads everything currently queued without blocking
func drain(h *Handle) []robot.StatusUpdate {
	var got []robot.StatusUpdate
	for {
		select {
		case u, ok := <-h.Updates():
			if !ok {
				return got
			}
			got = append(got, u)
		default:
			return got
		}
	}
}

func TestRegistry_SubscribeDeliversSnapshotFirst(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	snapshot := update(robot.StatusBusy, "lab")

	h := r.Subscribe(snapshot)
	require.NotEmpty(t, h.ID())
	assert.Equal(t, 1, r.Len())

	r.Broadcast(update(robot.StatusIdle, "lab"))

	got := drain(h)
	require.Len(t, got, 2)
	assert.Equal(t, snapshot, got[0])
	assert.Equal(t, robot.StatusIdle, got[1].Status)
}

func TestRegistry_BroadcastOrder(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	a := r.Subscribe(update(robot.StatusIdle, robot.InitialRoom))
	b := r.Subscribe(update(robot.StatusIdle, robot.InitialRoom))

	r.Broadcast(update(robot.StatusBusy, "lab"))
	r.Broadcast(update(robot.StatusIdle, "lab"))

	for _, h := range []*Handle{a, b} {
		got := drain(h)
		require.Len(t, got, 3)
		assert.Equal(t, []robot.Status{robot.StatusIdle, robot.StatusBusy, robot.StatusIdle},
			[]robot.Status{got[0].Status, got[1].Status, got[2].Status})
	}
}

func TestRegistry_UnsubscribeIsIdempotent(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	h := r.Subscribe(update(robot.StatusIdle, robot.InitialRoom))
	other := r.Subscribe(update(robot.StatusIdle, robot.InitialRoom))

	r.Unsubscribe(h)
	assert.NotPanics(t, func() { r.Unsubscribe(h) })
	assert.NotPanics(t, func() { r.Unsubscribe(nil) })
	assert.Equal(t, 1, r.Len())

	select {
	case <-h.Done():
	default:
		t.Fatal("done channel should be closed after unsubscribe")
	}

	// a removed observer is never written to again
	assert.NotPanics(t, func() { r.Broadcast(update(robot.StatusBusy, "icu")) })

	got := drain(other)
	require.Len(t, got, 2)
	assert.Equal(t, "icu", got[1].CurrentLocation.Room)
}

func TestRegistry_DropOldestOnOverflow(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = mp.Shutdown(context.Background()) }()
	metrics, err := telemetry.NewRobotMetrics(mp)
	require.NoError(t, err)

	r := NewRegistry(WithQueueSize(2), WithMetrics(metrics))
	h := r.Subscribe(update(robot.StatusIdle, robot.InitialRoom))

	r.Broadcast(update(robot.StatusBusy, "a"))
	r.Broadcast(update(robot.StatusBusy, "b"))
	r.Broadcast(update(robot.StatusBusy, "c"))

	got := drain(h)
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].CurrentLocation.Room)
	assert.Equal(t, "c", got[1].CurrentLocation.Room)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	var dropped int64
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if m.Name != "hrobot_observer_dropped_updates_total" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			for _, dp := range sum.DataPoints {
				dropped += dp.Value
			}
		}
	}
	assert.Equal(t, int64(2), dropped)
}

func TestRegistry_WithQueueSizeIgnoresInvalid(t *testing.T) {
	t.Parallel()

	r := NewRegistry(WithQueueSize(0))
	assert.Equal(t, DefaultQueueSize, r.queueSize)
}

func TestRegistry_CloseUnsubscribesAll(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	handles := []*Handle{
		r.Subscribe(update(robot.StatusIdle, robot.InitialRoom)),
		r.Subscribe(update(robot.StatusIdle, robot.InitialRoom)),
	}

	r.Close()
	assert.Equal(t, 0, r.Len())

	for _, h := range handles {
		got := drain(h)
		assert.Len(t, got, 1, "snapshot stays readable after close")
		_, open := <-h.Updates()
		assert.False(t, open)
	}
}

func TestRegistry_ConcurrentUse(t *testing.T) {
	t.Parallel()

	r := NewRegistry(WithQueueSize(4))
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h := r.Subscribe(update(robot.StatusIdle, robot.InitialRoom))
			for j := 0; j < 20; j++ {
				r.Broadcast(update(robot.StatusBusy, "ward"))
			}
			r.Unsubscribe(h)
			for range h.Updates() {
			}
		}()
	}

	wg.Wait()
	assert.Equal(t, 0, r.Len())
}
