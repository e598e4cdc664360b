// Package observer tracks the connected status observers and fans robot status
// updates out to them through bounded per-observer queues.
package observer

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/stacklok/hospital-robot-server/internal/robot"
	"github.com/stacklok/hospital-robot-server/internal/telemetry"
)

// DefaultQueueSize is the number of undelivered updates kept per observer
const DefaultQueueSize = 16

// Handle is a single subscribed observer. Updates are read from Updates until
// the channel is closed by Unsubscribe.
type Handle struct {
	id      string
	updates chan robot.StatusUpdate
	done    chan struct{}
}

// ID returns the observer identifier
func (h *Handle) ID() string {
	return h.id
}

// Updates returns the observer's delivery queue
func (h *Handle) Updates() <-chan robot.StatusUpdate {
	return h.updates
}

// Done is closed once the observer has been unsubscribed
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Option configures a Registry
type Option func(*Registry)

// WithQueueSize sets the per-observer queue capacity. Values below 1 keep the default.
func WithQueueSize(size int) Option {
	return func(r *Registry) {
		if size > 0 {
			r.queueSize = size
		}
	}
}

// WithMetrics records observer counts and dropped updates
func WithMetrics(metrics *telemetry.RobotMetrics) Option {
	return func(r *Registry) {
		r.metrics = metrics
	}
}

// Registry is the set of connected observers. All methods are safe for
// concurrent use and none of them block on a slow observer.
type Registry struct {
	mu        sync.Mutex
	observers map[string]*Handle
	queueSize int
	metrics   *telemetry.RobotMetrics
}

// NewRegistry creates an empty registry
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		observers: make(map[string]*Handle),
		queueSize: DefaultQueueSize,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Subscribe registers a new observer and queues snapshot as its first update
func (r *Registry) Subscribe(snapshot robot.StatusUpdate) *Handle {
	h := &Handle{
		id:      uuid.NewString(),
		updates: make(chan robot.StatusUpdate, r.queueSize),
		done:    make(chan struct{}),
	}
	h.updates <- snapshot

	r.mu.Lock()
	r.observers[h.id] = h
	count := len(r.observers)
	r.mu.Unlock()

	r.metrics.RecordObserverDelta(context.Background(), 1)
	slog.Debug("Observer subscribed", "observer_id", h.id, "observers", count)
	return h
}

// Unsubscribe removes the observer and closes its queue. Calling it more than
// once, or with a nil handle, is a no-op.
func (r *Registry) Unsubscribe(h *Handle) {
	if h == nil {
		return
	}

	r.mu.Lock()
	if _, ok := r.observers[h.id]; !ok {
		r.mu.Unlock()
		return
	}
	delete(r.observers, h.id)
	close(h.updates)
	close(h.done)
	count := len(r.observers)
	r.mu.Unlock()

	r.metrics.RecordObserverDelta(context.Background(), -1)
	slog.Debug("Observer unsubscribed", "observer_id", h.id, "observers", count)
}

// Broadcast queues update for every observer. When an observer's queue is
// full its oldest pending update is discarded to make room.
func (r *Registry) Broadcast(update robot.StatusUpdate) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, h := range r.observers {
		if enqueue(h.updates, update) {
			continue
		}
		r.metrics.RecordDroppedUpdate(context.Background())
		slog.Warn("Observer queue full, dropped oldest update", "observer_id", h.id)
	}
}

// enqueue reports false when an older update had to be dropped
func enqueue(ch chan robot.StatusUpdate, update robot.StatusUpdate) bool {
	select {
	case ch <- update:
		return true
	default:
	}

	// only Broadcast sends, under the registry lock, so one receive frees a slot
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- update:
	default:
	}
	return false
}

// Len returns the number of connected observers
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.observers)
}

// Close unsubscribes every observer so that push handlers return
func (r *Registry) Close() {
	r.mu.Lock()
	handles := make([]*Handle, 0, len(r.observers))
	for _, h := range r.observers {
		handles = append(handles, h)
	}
	r.mu.Unlock()

	for _, h := range handles {
		r.Unsubscribe(h)
	}
}
