// Package rest serves the move request, robot id, login and status endpoints.
package rest

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/tidwall/gjson"

	"github.com/stacklok/hospital-robot-server/internal/api/common"
	"github.com/stacklok/hospital-robot-server/internal/coordinator"
	"github.com/stacklok/hospital-robot-server/internal/robot"
	"github.com/stacklok/hospital-robot-server/internal/service"
	"github.com/stacklok/hospital-robot-server/internal/telemetry"
)

// DefaultMaxBodyBytes bounds request bodies on this router
const DefaultMaxBodyBytes = 64 << 10

// loginErrorMessage is returned when either credential is missing
const loginErrorMessage = "Please provide both username and password."

// MoveResponse is returned for an accepted move request
type MoveResponse struct {
	Success bool `json:"success"`

	// SinkError is set when the request was accepted but the actuator could not be reached
	SinkError string `json:"sinkError,omitempty"`
}

// RobotIDResponse is returned by the robot id endpoint
type RobotIDResponse struct {
	ID string `json:"id"`
}

// LoginResponse echoes the accepted username
type LoginResponse struct {
	Username string `json:"username"`
}

// Option configures the routes
type Option func(*Routes)

// WithStrictValidation controls whether malformed move requests are rejected
func WithStrictValidation(strict bool) Option {
	return func(rt *Routes) {
		rt.strict = strict
	}
}

// WithMetrics counts rejected move requests
func WithMetrics(metrics *telemetry.RobotMetrics) Option {
	return func(rt *Routes) {
		rt.metrics = metrics
	}
}

// Routes holds the dependencies of the robot endpoints
type Routes struct {
	svc     service.RobotService
	strict  bool
	maxBody int64
	metrics *telemetry.RobotMetrics
}

// NewRoutes creates a new Routes instance with the provided service
func NewRoutes(svc service.RobotService, opts ...Option) *Routes {
	rt := &Routes{
		svc:     svc,
		strict:  true,
		maxBody: DefaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(rt)
	}
	return rt
}

// Router creates the /api router
func Router(svc service.RobotService, opts ...Option) http.Handler {
	routes := NewRoutes(svc, opts...)

	r := chi.NewRouter()
	r.Post("/robot-request", routes.submitMove)
	r.Get("/robot-id", routes.getRobotID)
	r.Post("/login", routes.login)
	r.Get("/robot-status", routes.getStatus)

	return r
}

// submitMove handles POST /api/robot-request
func (rt *Routes) submitMove(w http.ResponseWriter, r *http.Request) {
	body, ok := rt.readBody(w, r)
	if !ok {
		return
	}

	req, err := robot.ParseMoveRequest(body, robot.WithStrictValidation(rt.strict))
	if err != nil {
		rt.metrics.RecordMoveRequest(r.Context(), telemetry.OutcomeRejected)
		slog.DebugContext(r.Context(), "Rejected move request",
			"error", err,
			"request_id", middleware.GetReqID(r.Context()),
		)
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	_, err = rt.svc.SubmitMove(r.Context(), req)
	var sinkErr *coordinator.SinkError
	switch {
	case err == nil:
		common.WriteJSONResponse(w, MoveResponse{Success: true}, http.StatusOK)
	case errors.As(err, &sinkErr):
		common.WriteJSONResponse(w, MoveResponse{Success: true, SinkError: sinkErr.Error()}, http.StatusOK)
	case errors.Is(err, coordinator.ErrStopped):
		common.WriteErrorResponse(w, "Server is shutting down", http.StatusServiceUnavailable)
	default:
		slog.ErrorContext(r.Context(), "Failed to submit move request", "error", err)
		common.WriteErrorResponse(w, "Failed to submit move request", http.StatusInternalServerError)
	}
}

// getRobotID handles GET /api/robot-id
func (rt *Routes) getRobotID(w http.ResponseWriter, _ *http.Request) {
	common.WriteJSONResponse(w, RobotIDResponse{ID: rt.svc.RobotID()}, http.StatusOK)
}

// login handles POST /api/login. Credentials are not checked against any store.
func (rt *Routes) login(w http.ResponseWriter, r *http.Request) {
	body, ok := rt.readBody(w, r)
	if !ok {
		return
	}

	username := gjson.GetBytes(body, "username")
	password := gjson.GetBytes(body, "password")
	if !nonEmptyString(username) || !nonEmptyString(password) {
		common.WriteErrorResponse(w, loginErrorMessage, http.StatusBadRequest)
		return
	}

	common.WriteJSONResponse(w, LoginResponse{Username: username.Str}, http.StatusOK)
}

// getStatus handles GET /api/robot-status
func (rt *Routes) getStatus(w http.ResponseWriter, _ *http.Request) {
	common.WriteJSONResponse(w, rt.svc.Current(), http.StatusOK)
}

func (rt *Routes) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, rt.maxBody))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			common.WriteErrorResponse(w, "Request body too large", http.StatusRequestEntityTooLarge)
			return nil, false
		}
		common.WriteErrorResponse(w, "Failed to read request body", http.StatusBadRequest)
		return nil, false
	}
	return body, true
}

func nonEmptyString(v gjson.Result) bool {
	return v.Type == gjson.String && v.Str != ""
}
