// Package logging builds the process-wide slog handler.
//
// Records flow slog -> logr -> zap, so the JSON layout and level names are
// zap's production defaults. OpenTelemetry trace and span ids are attached
// to every record logged with a context that carries a valid span.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/stacklok/hospital-robot-server/internal/config"
)

// Option configures the handler
type Option func(*options)

type options struct {
	level  slog.Level
	writer io.Writer
}

// WithLevel sets the minimum level. Defaults to info.
func WithLevel(level slog.Level) Option {
	return func(o *options) {
		o.level = level
	}
}

// WithWriter sets the output. Defaults to stderr so stdout stays clean for
// commands that print data.
func WithWriter(w io.Writer) Option {
	return func(o *options) {
		o.writer = w
	}
}

// NewHandler returns a JSON slog handler backed by zap
func NewHandler(opts ...Option) slog.Handler {
	o := &options{level: slog.LevelInfo, writer: os.Stderr}
	for _, opt := range opts {
		opt(o)
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	// zap levels below debug are logr verbosity levels
	zapLevel := zapcore.Level(min(int(o.level), 0))
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderCfg),
		zapcore.Lock(zapcore.AddSync(o.writer)),
		zap.NewAtomicLevelAt(zapLevel),
	)

	base := logr.ToSlogHandler(zapr.NewLogger(zap.New(core)))
	return &traceHandler{Handler: base, level: o.level}
}

// New returns a logger using NewHandler
func New(opts ...Option) *slog.Logger {
	return slog.New(NewHandler(opts...))
}

// traceHandler wraps an slog.Handler to automatically inject OpenTelemetry
// trace_id and span_id into every log record, enabling log-trace correlation.
type traceHandler struct {
	slog.Handler
	level slog.Level
}

func (h *traceHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.level && h.Handler.Enabled(ctx, level)
}

func (h *traceHandler) Handle(ctx context.Context, r slog.Record) error {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		r.AddAttrs(
			slog.String("trace_id", span.SpanContext().TraceID().String()),
			slog.String("span_id", span.SpanContext().SpanID().String()),
		)
	}
	return h.Handler.Handle(ctx, r)
}

func (h *traceHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &traceHandler{Handler: h.Handler.WithAttrs(attrs), level: h.level}
}

func (h *traceHandler) WithGroup(name string) slog.Handler {
	return &traceHandler{Handler: h.Handler.WithGroup(name), level: h.level}
}

// LevelFromEnv parses HROBOT_LOG_LEVEL, falling back to LOG_LEVEL.
// Defaults to info if neither is set or if the value is invalid.
func LevelFromEnv() slog.Level {
	v := viper.New()
	v.SetEnvPrefix(config.EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	levelStr := v.GetString("LOG_LEVEL")
	if levelStr == "" {
		levelStr = os.Getenv("LOG_LEVEL")
	}

	level, ok := ParseLevel(levelStr)
	if !ok {
		slog.Warn("Invalid LOG_LEVEL, using INFO", "value", levelStr)
	}
	return level
}

// ParseLevel maps a level name to a slog.Level. Unknown names yield info
// and false.
func ParseLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, true
	case "info", "":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}
