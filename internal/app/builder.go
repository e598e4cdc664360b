package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"k8s.io/utils/clock"

	"github.com/stacklok/hospital-robot-server/internal/api"
	"github.com/stacklok/hospital-robot-server/internal/api/push"
	"github.com/stacklok/hospital-robot-server/internal/api/rest"
	"github.com/stacklok/hospital-robot-server/internal/config"
	"github.com/stacklok/hospital-robot-server/internal/coordinator"
	"github.com/stacklok/hospital-robot-server/internal/observer"
	"github.com/stacklok/hospital-robot-server/internal/service"
	"github.com/stacklok/hospital-robot-server/internal/sink"
	"github.com/stacklok/hospital-robot-server/internal/telemetry"
	"github.com/stacklok/hospital-robot-server/internal/versions"
)

const (
	defaultHTTPAddress    = ":3001"
	defaultRequestTimeout = 10 * time.Second
	defaultReadTimeout    = 10 * time.Second
	defaultWriteTimeout   = 15 * time.Second
	defaultIdleTimeout    = 60 * time.Second

	tracerName = "github.com/stacklok/hospital-robot-server/coordinator"
)

// RobotAppOptions is a function that configures the robot app builder
type RobotAppOptions func(*robotAppConfig) error

// robotAppConfig collects builder inputs. Overrides exist mostly for tests.
type robotAppConfig struct {
	config *config.Config

	// Optional component overrides (primarily for testing)
	sink      sink.Sink
	clock     clock.WithDelayedExecution
	telemetry *telemetry.Telemetry

	// HTTP server options
	address        string
	middlewares    []func(http.Handler) http.Handler
	allowedOrigins []string
	requestTimeout time.Duration
	readTimeout    time.Duration
	writeTimeout   time.Duration
	idleTimeout    time.Duration
}

func baseConfig(opts ...RobotAppOptions) (*robotAppConfig, error) {
	cfg := &robotAppConfig{
		address:        defaultHTTPAddress,
		requestTimeout: defaultRequestTimeout,
		readTimeout:    defaultReadTimeout,
		writeTimeout:   defaultWriteTimeout,
		idleTimeout:    defaultIdleTimeout,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// NewRobotApp wires configuration, telemetry, the coordinator and the HTTP server
func NewRobotApp(
	ctx context.Context,
	opts ...RobotAppOptions,
) (*RobotApp, error) {
	cfg, err := baseConfig(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build base configuration: %w", err)
	}
	if cfg.config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	if cfg.telemetry == nil {
		cfg.telemetry, err = telemetry.New(ctx, telemetry.WithTelemetryConfig(cfg.config.Telemetry))
		if err != nil {
			return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
		}
	}

	components, err := buildRobotComponents(cfg)
	if err != nil {
		_ = cfg.telemetry.Shutdown(ctx)
		return nil, fmt.Errorf("failed to build robot components: %w", err)
	}

	httpServer, err := buildHTTPServer(cfg, components)
	if err != nil {
		components.Coordinator.Stop()
		_ = components.Sink.Close()
		_ = cfg.telemetry.Shutdown(ctx)
		return nil, fmt.Errorf("failed to build HTTP server: %w", err)
	}

	appCtx, cancel := context.WithCancel(ctx)

	return &RobotApp{
		config:     cfg.config,
		components: components,
		httpServer: httpServer,
		ctx:        appCtx,
		cancelFunc: cancel,
	}, nil
}

// WithConfig sets the configuration
func WithConfig(c *config.Config) RobotAppOptions {
	return func(cfg *robotAppConfig) error {
		cfg.config = c
		return nil
	}
}

// WithAddress sets the HTTP server address
func WithAddress(addr string) RobotAppOptions {
	return func(cfg *robotAppConfig) error {
		if addr == "" {
			return fmt.Errorf("address cannot be empty")
		}

		host, port, found := strings.Cut(addr, ":")
		if !found || port == "" {
			return fmt.Errorf("address is not a valid port: %s", addr)
		}
		if host == "localhost" {
			host = "127.0.0.1"
		}
		if host == "" {
			host = "0.0.0.0"
		}

		if _, err := netip.ParseAddrPort(host + ":" + port); err != nil {
			return fmt.Errorf("address is not a valid port: %w", err)
		}

		cfg.address = addr
		return nil
	}
}

// WithMiddlewares sets custom HTTP middlewares
func WithMiddlewares(mw ...func(http.Handler) http.Handler) RobotAppOptions {
	return func(cfg *robotAppConfig) error {
		cfg.middlewares = mw
		return nil
	}
}

// WithAllowedOrigins restricts WebSocket upgrades to the given origins
func WithAllowedOrigins(origins ...string) RobotAppOptions {
	return func(cfg *robotAppConfig) error {
		cfg.allowedOrigins = origins
		return nil
	}
}

// WithRequestTimeout bounds request/response handlers
func WithRequestTimeout(timeout time.Duration) RobotAppOptions {
	return func(cfg *robotAppConfig) error {
		if timeout <= 0 {
			return fmt.Errorf("request timeout must be positive")
		}
		cfg.requestTimeout = timeout
		return nil
	}
}

// WithSink allows injecting a custom actuator sink (for testing)
func WithSink(s sink.Sink) RobotAppOptions {
	return func(cfg *robotAppConfig) error {
		cfg.sink = s
		return nil
	}
}

// WithClock allows injecting the clock used for reversion timers (for testing)
func WithClock(clk clock.WithDelayedExecution) RobotAppOptions {
	return func(cfg *robotAppConfig) error {
		cfg.clock = clk
		return nil
	}
}

// WithTelemetry allows injecting pre-built telemetry providers
func WithTelemetry(t *telemetry.Telemetry) RobotAppOptions {
	return func(cfg *robotAppConfig) error {
		cfg.telemetry = t
		return nil
	}
}

// buildSink creates the actuator sink selected by configuration
func buildSink(c config.SinkConfig, metrics *telemetry.RobotMetrics) (sink.Sink, error) {
	switch c.Type {
	case config.SinkTypeLog:
		return sink.NewLogSink(), nil
	case config.SinkTypeRosbridge:
		if c.Rosbridge == nil {
			return nil, fmt.Errorf("rosbridge sink requires rosbridge configuration")
		}
		return sink.NewRosbridge(sink.RosbridgeConfig{
			URL:         c.Rosbridge.URL,
			Topic:       c.Rosbridge.Topic,
			MessageType: c.Rosbridge.MessageType,
			QueueSize:   c.Rosbridge.QueueSize,
		}, sink.WithRosbridgeMetrics(metrics)), nil
	default:
		return nil, fmt.Errorf("unsupported sink type: %s", c.Type)
	}
}

// buildRobotComponents builds the sink, observer registry, coordinator and service
func buildRobotComponents(b *robotAppConfig) (*AppComponents, error) {
	slog.Info("Initializing robot components")

	robotMetrics, err := telemetry.NewRobotMetrics(b.telemetry.MeterProvider())
	if err != nil {
		return nil, fmt.Errorf("failed to create robot metrics: %w", err)
	}

	if b.sink == nil {
		b.sink, err = buildSink(b.config.Sink, robotMetrics)
		if err != nil {
			return nil, err
		}
	}

	policy, err := coordinator.ParsePolicy(b.config.Robot.ReversionPolicy)
	if err != nil {
		return nil, err
	}

	registry := observer.NewRegistry(
		observer.WithQueueSize(b.config.Observers.QueueSize),
		observer.WithMetrics(robotMetrics),
	)

	coordOpts := []coordinator.Option{
		coordinator.WithReversionDelay(b.config.Robot.GetReversionDelay()),
		coordinator.WithPolicy(policy),
		coordinator.WithInitialLocation(b.config.Robot.GetInitialLocation()),
		coordinator.WithMetrics(robotMetrics),
		coordinator.WithTracer(b.telemetry.TracerProvider().Tracer(tracerName)),
	}
	if b.clock != nil {
		coordOpts = append(coordOpts, coordinator.WithClock(b.clock))
	}
	coord := coordinator.New(b.sink, registry, coordOpts...)

	svc := service.NewRobotService(b.config.Robot.ID, coord, b.sink)

	slog.Info("Robot components initialized successfully",
		"robot_id", b.config.Robot.ID,
		"sink", b.sink.Name(),
		"reversion_delay", b.config.Robot.GetReversionDelay(),
		"reversion_policy", policy,
		"version", versions.GetVersionInfo().Version,
	)

	return &AppComponents{
		Coordinator:  coord,
		Registry:     registry,
		Sink:         b.sink,
		RobotService: svc,
		Telemetry:    b.telemetry,
		Metrics:      robotMetrics,
	}, nil
}

// buildHTTPServer builds the HTTP server with router and middleware
func buildHTTPServer(b *robotAppConfig, components *AppComponents) (*http.Server, error) {
	slog.Info("Initializing HTTP server")

	// Use default middlewares if not provided
	if b.middlewares == nil {
		b.middlewares = []func(http.Handler) http.Handler{
			middleware.RequestID,
			middleware.RealIP,
			middleware.Recoverer,
			api.LoggingMiddleware,
		}
	}

	// Telemetry goes first so rejected requests are still measured
	metricsMiddleware, err := telemetry.MetricsMiddleware(b.telemetry.MeterProvider())
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics middleware: %w", err)
	}
	b.middlewares = append([]func(http.Handler) http.Handler{
		metricsMiddleware,
		telemetry.TracingMiddleware(b.telemetry.TracerProvider()),
	}, b.middlewares...)

	router := api.NewServer(components.RobotService,
		api.WithMiddlewares(b.middlewares...),
		api.WithRequestTimeout(b.requestTimeout),
		api.WithMetricsHandler(b.telemetry.MetricsHandler()),
		api.WithRestOptions(
			rest.WithStrictValidation(b.config.Robot.IsStrictValidation()),
			rest.WithMetrics(components.Metrics),
		),
		api.WithWebSocketOptions(push.WithAllowedOrigins(b.allowedOrigins...)),
	)

	server := &http.Server{
		Addr:         b.address,
		Handler:      router,
		ReadTimeout:  b.readTimeout,
		WriteTimeout: b.writeTimeout,
		IdleTimeout:  b.idleTimeout,
	}
	// Push handlers return once their observer queue is closed
	server.RegisterOnShutdown(components.Registry.Close)

	slog.Info("HTTP server configured", "address", b.address)
	return server, nil
}
