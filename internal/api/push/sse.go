package push

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/stacklok/hospital-robot-server/internal/robot"
	"github.com/stacklok/hospital-robot-server/internal/service"
)

const defaultHeartbeat = 15 * time.Second

// SSEOption configures an SSEHandler
type SSEOption func(*SSEHandler)

// WithHeartbeat sets the interval of keep-alive comments
func WithHeartbeat(interval time.Duration) SSEOption {
	return func(h *SSEHandler) {
		if interval > 0 {
			h.heartbeat = interval
		}
	}
}

// SSEHandler streams status updates as server-sent events named robot_status
type SSEHandler struct {
	svc       service.RobotService
	heartbeat time.Duration
}

// NewSSEHandler creates an SSEHandler
func NewSSEHandler(svc service.RobotService, opts ...SSEOption) *SSEHandler {
	h := &SSEHandler{svc: svc, heartbeat: defaultHeartbeat}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *SSEHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)
	// the stream outlives the server write timeout
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		slog.DebugContext(r.Context(), "Could not clear write deadline", "error", err)
	}

	obs := h.svc.Subscribe()
	defer h.svc.Unsubscribe(obs)
	annotateSpan(r, obs, TransportSSE)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		slog.ErrorContext(r.Context(), "Streaming not supported", "error", err)
		return
	}

	slog.InfoContext(r.Context(), "Observer connected", "observer_id", obs.ID(), "transport", TransportSSE)
	defer slog.InfoContext(r.Context(), "Observer disconnected", "observer_id", obs.ID(), "transport", TransportSSE)

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	var seq uint64
	for {
		select {
		case <-r.Context().Done():
			return
		case update, ok := <-obs.Updates():
			if !ok {
				return
			}
			seq++
			if err := writeEvent(w, seq, update); err != nil {
				return
			}
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}

func writeEvent(w http.ResponseWriter, seq uint64, update robot.StatusUpdate) error {
	data, err := json.Marshal(update)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", seq, robot.EventStatus, data)
	return err
}
