// Package health serves the liveness, readiness and version endpoints.
package health

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/stacklok/hospital-robot-server/internal/api/common"
	"github.com/stacklok/hospital-robot-server/internal/service"
	"github.com/stacklok/hospital-robot-server/internal/versions"
)

// Sink states reported by the readiness endpoint
const (
	SinkConnected   = "connected"
	SinkUnavailable = "unavailable"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Status string `json:"status"`
}

// ReadinessResponse represents the readiness check response
type ReadinessResponse struct {
	Status    string `json:"status"`
	Sink      string `json:"sink"`
	SinkError string `json:"sinkError,omitempty"`
}

// Router creates a router for health check endpoints
func Router(svc service.RobotService) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", healthHandler)
	r.Get("/readiness", readinessHandler(svc))
	r.Get("/version", versionHandler)

	return r
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	common.WriteJSONResponse(w, HealthResponse{Status: "healthy"}, http.StatusOK)
}

// readinessHandler reports the actuator state alongside readiness; an
// unreachable actuator alone does not make the server unready
func readinessHandler(svc service.RobotService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.CheckReadiness(r.Context()); err != nil {
			common.WriteErrorResponse(w, "Robot service not ready: "+err.Error(), http.StatusServiceUnavailable)
			return
		}

		resp := ReadinessResponse{Status: "ready", Sink: SinkConnected}
		if err := svc.SinkStatus(); err != nil {
			resp.Sink = SinkUnavailable
			resp.SinkError = err.Error()
		}
		common.WriteJSONResponse(w, resp, http.StatusOK)
	}
}

func versionHandler(w http.ResponseWriter, _ *http.Request) {
	common.WriteJSONResponse(w, versions.GetVersionInfo(), http.StatusOK)
}
