// Package api assembles the HTTP router of the hospital robot server.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/stacklok/hospital-robot-server/internal/api/health"
	"github.com/stacklok/hospital-robot-server/internal/api/push"
	"github.com/stacklok/hospital-robot-server/internal/api/rest"
	"github.com/stacklok/hospital-robot-server/internal/service"
)

// Route paths of the push endpoints
const (
	WebSocketPath = "/ws"
	SSEPath       = "/api/robot-status/stream"
	MetricsPath   = "/metrics"
)

// ServerOption configures the robot API server
type ServerOption func(*serverConfig)

type serverConfig struct {
	middlewares    []func(http.Handler) http.Handler
	requestTimeout time.Duration
	metricsHandler http.Handler
	restOptions    []rest.Option
	wsOptions      []push.WebSocketOption
	sseOptions     []push.SSEOption
}

// WithMiddlewares adds middleware to every route
func WithMiddlewares(mw ...func(http.Handler) http.Handler) ServerOption {
	return func(cfg *serverConfig) {
		cfg.middlewares = append(cfg.middlewares, mw...)
	}
}

// WithRequestTimeout bounds request/response routes. Push routes are exempt.
func WithRequestTimeout(timeout time.Duration) ServerOption {
	return func(cfg *serverConfig) {
		cfg.requestTimeout = timeout
	}
}

// WithMetricsHandler serves h on /metrics
func WithMetricsHandler(h http.Handler) ServerOption {
	return func(cfg *serverConfig) {
		cfg.metricsHandler = h
	}
}

// WithRestOptions configures the /api routes
func WithRestOptions(opts ...rest.Option) ServerOption {
	return func(cfg *serverConfig) {
		cfg.restOptions = append(cfg.restOptions, opts...)
	}
}

// WithWebSocketOptions configures the WebSocket push route
func WithWebSocketOptions(opts ...push.WebSocketOption) ServerOption {
	return func(cfg *serverConfig) {
		cfg.wsOptions = append(cfg.wsOptions, opts...)
	}
}

// WithSSEOptions configures the server-sent events push route
func WithSSEOptions(opts ...push.SSEOption) ServerOption {
	return func(cfg *serverConfig) {
		cfg.sseOptions = append(cfg.sseOptions, opts...)
	}
}

// NewServer creates and configures the HTTP router with the given service and options
func NewServer(svc service.RobotService, opts ...ServerOption) *chi.Mux {
	cfg := &serverConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	r := chi.NewRouter()
	for _, mw := range cfg.middlewares {
		r.Use(mw)
	}

	// push streams stay open for the life of the dashboard
	r.Get(WebSocketPath, push.NewWebSocketHandler(svc, cfg.wsOptions...).ServeHTTP)
	r.Get(SSEPath, push.NewSSEHandler(svc, cfg.sseOptions...).ServeHTTP)

	r.Group(func(r chi.Router) {
		if cfg.requestTimeout > 0 {
			r.Use(middleware.Timeout(cfg.requestTimeout))
		}

		r.Mount("/", health.Router(svc))
		r.Mount("/api", rest.Router(svc, cfg.restOptions...))

		if cfg.metricsHandler != nil {
			r.Handle(MetricsPath, cfg.metricsHandler)
		}
	})

	return r
}

// LoggingMiddleware logs HTTP requests
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		slog.DebugContext(r.Context(), "HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
