package sink

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
)

// LogSinkName is the Name of the log sink
const LogSinkName = "log"

// LogSink writes move requests to the application log instead of a robot.
// It is the default when no rosbridge URL is configured.
type LogSink struct {
	closed atomic.Bool
}

// NewLogSink creates a log-only sink
func NewLogSink() *LogSink {
	return &LogSink{}
}

// Name implements Sink
func (*LogSink) Name() string {
	return LogSinkName
}

// Publish implements Sink
func (s *LogSink) Publish(ctx context.Context, payload []byte) error {
	if s.closed.Load() {
		return fmt.Errorf("%w: log sink closed", ErrSinkUnavailable)
	}
	slog.InfoContext(ctx, "Move request published", "sink", LogSinkName, "payload", string(payload))
	return nil
}

// Ready implements Sink
func (s *LogSink) Ready() error {
	if s.closed.Load() {
		return fmt.Errorf("%w: log sink closed", ErrSinkUnavailable)
	}
	return nil
}

// Close implements Sink
func (s *LogSink) Close() error {
	s.closed.Store(true)
	return nil
}
