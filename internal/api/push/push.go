// Package push streams robot status updates to dashboards over WebSocket
// and server-sent events.
package push

import (
	"net/http"

	"go.opentelemetry.io/otel/trace"

	"github.com/stacklok/hospital-robot-server/internal/observer"
	"github.com/stacklok/hospital-robot-server/internal/otel"
	"github.com/stacklok/hospital-robot-server/internal/robot"
)

// Transport names recorded on spans and logs
const (
	TransportWebSocket = "websocket"
	TransportSSE       = "sse"
)

// Message is the envelope written to WebSocket observers
type Message struct {
	Event string             `json:"event"`
	Data  robot.StatusUpdate `json:"data"`
}

func statusMessage(u robot.StatusUpdate) Message {
	return Message{Event: robot.EventStatus, Data: u}
}

func annotateSpan(r *http.Request, h *observer.Handle, transport string) {
	trace.SpanFromContext(r.Context()).SetAttributes(
		otel.AttrObserverID.String(h.ID()),
		otel.AttrTransport.String(transport),
	)
}
