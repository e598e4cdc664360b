package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()

	var records []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var rec map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &rec), line)
		records = append(records, rec)
	}
	return records
}

func TestNewHandler_WritesJSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := New(WithWriter(&buf))

	logger.Info("robot moved", "floor", 3, "room", "icu")

	records := decodeLines(t, &buf)
	require.Len(t, records, 1)
	assert.Equal(t, "robot moved", records[0]["msg"])
	assert.Equal(t, "icu", records[0]["room"])
	assert.EqualValues(t, 3, records[0]["floor"])
}

func TestNewHandler_Level(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		level    slog.Level
		expected []string
	}{
		{"debug", slog.LevelDebug, []string{"d", "i", "w", "e"}},
		{"info", slog.LevelInfo, []string{"i", "w", "e"}},
		{"warn", slog.LevelWarn, []string{"w", "e"}},
		{"error", slog.LevelError, []string{"e"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			logger := New(WithWriter(&buf), WithLevel(tt.level))

			logger.Debug("d")
			logger.Info("i")
			logger.Warn("w")
			logger.Error("e")

			var got []string
			for _, rec := range decodeLines(t, &buf) {
				got = append(got, rec["msg"].(string))
			}
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestTraceHandler_InjectsSpanContext(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := New(WithWriter(&buf)).With("component", "coordinator")

	tp := sdktrace.NewTracerProvider()
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	logger.InfoContext(ctx, "with span")
	span.End()
	logger.InfoContext(context.Background(), "without span")

	records := decodeLines(t, &buf)
	require.Len(t, records, 2)

	assert.Equal(t, span.SpanContext().TraceID().String(), records[0]["trace_id"])
	assert.Equal(t, span.SpanContext().SpanID().String(), records[0]["span_id"])
	assert.Equal(t, "coordinator", records[0]["component"])

	assert.NotContains(t, records[1], "trace_id")
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input    string
		expected slog.Level
		ok       bool
	}{
		{"", slog.LevelInfo, true},
		{"debug", slog.LevelDebug, true},
		{"INFO", slog.LevelInfo, true},
		{"warning", slog.LevelWarn, true},
		{" error ", slog.LevelError, true},
		{"verbose", slog.LevelInfo, false},
	}

	for _, tt := range tests {
		level, ok := ParseLevel(tt.input)
		assert.Equal(t, tt.expected, level, tt.input)
		assert.Equal(t, tt.ok, ok, tt.input)
	}
}

//nolint:paralleltest // modifies environment
func TestLevelFromEnv(t *testing.T) {
	t.Setenv("HROBOT_LOG_LEVEL", "")
	t.Setenv("LOG_LEVEL", "")
	assert.Equal(t, slog.LevelInfo, LevelFromEnv())

	t.Setenv("LOG_LEVEL", "error")
	assert.Equal(t, slog.LevelError, LevelFromEnv())

	t.Setenv("HROBOT_LOG_LEVEL", "debug")
	assert.Equal(t, slog.LevelDebug, LevelFromEnv())

	t.Setenv("HROBOT_LOG_LEVEL", "chatty")
	assert.Equal(t, slog.LevelInfo, LevelFromEnv())
}
