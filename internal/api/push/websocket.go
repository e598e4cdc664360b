package push

import (
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/gorilla/websocket"

	"github.com/stacklok/hospital-robot-server/internal/observer"
	"github.com/stacklok/hospital-robot-server/internal/service"
)

const (
	defaultWriteWait  = 10 * time.Second
	defaultPongWait   = 60 * time.Second
	maxInboundMessage = 512
)

// WebSocketOption configures a WebSocketHandler
type WebSocketOption func(*WebSocketHandler)

// WithAllowedOrigins restricts the Origin header accepted on upgrade.
// An empty list accepts any origin.
func WithAllowedOrigins(origins ...string) WebSocketOption {
	return func(h *WebSocketHandler) {
		h.allowedOrigins = origins
	}
}

// WithPongWait sets how long a silent client is kept; pings go out at 9/10 of it
func WithPongWait(wait time.Duration) WebSocketOption {
	return func(h *WebSocketHandler) {
		if wait > 0 {
			h.pongWait = wait
		}
	}
}

// WebSocketHandler upgrades requests and streams status updates until the
// client goes away. Clients are not expected to send anything.
type WebSocketHandler struct {
	svc            service.RobotService
	upgrader       websocket.Upgrader
	allowedOrigins []string
	writeWait      time.Duration
	pongWait       time.Duration
}

// NewWebSocketHandler creates a WebSocketHandler
func NewWebSocketHandler(svc service.RobotService, opts ...WebSocketOption) *WebSocketHandler {
	h := &WebSocketHandler{
		svc:       svc,
		writeWait: defaultWriteWait,
		pongWait:  defaultPongWait,
	}
	for _, opt := range opts {
		opt(h)
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	if len(h.allowedOrigins) == 0 {
		return true
	}
	return slices.Contains(h.allowedOrigins, r.Header.Get("Origin"))
}

func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader has already replied
		slog.DebugContext(r.Context(), "WebSocket upgrade failed", "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	obs := h.svc.Subscribe()
	defer h.svc.Unsubscribe(obs)
	annotateSpan(r, obs, TransportWebSocket)

	slog.InfoContext(r.Context(), "Observer connected",
		"observer_id", obs.ID(),
		"transport", TransportWebSocket,
		"remote_addr", r.RemoteAddr,
	)

	go h.readPump(conn, obs)
	h.writePump(conn, obs)

	slog.InfoContext(r.Context(), "Observer disconnected",
		"observer_id", obs.ID(),
		"transport", TransportWebSocket,
	)
}

// readPump discards client frames and unsubscribes once the connection fails,
// which closes the update queue and ends writePump
func (h *WebSocketHandler) readPump(conn *websocket.Conn, obs *observer.Handle) {
	defer h.svc.Unsubscribe(obs)

	conn.SetReadLimit(maxInboundMessage)
	_ = conn.SetReadDeadline(time.Now().Add(h.pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *WebSocketHandler) writePump(conn *websocket.Conn, obs *observer.Handle) {
	ticker := time.NewTicker(h.pongWait * 9 / 10)
	defer ticker.Stop()

	for {
		select {
		case update, ok := <-obs.Updates():
			_ = conn.SetWriteDeadline(time.Now().Add(h.writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := conn.WriteJSON(statusMessage(update)); err != nil {
				slog.Debug("WebSocket write failed", "observer_id", obs.ID(), "error", err)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(h.writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
