package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gorilla/websocket"

	"github.com/stacklok/hospital-robot-server/internal/telemetry"
)

const (
	// RosbridgeSinkName is the Name of the rosbridge sink
	RosbridgeSinkName = "rosbridge"

	// DefaultTopic is the topic move requests are published on
	DefaultTopic = "/robot/request"

	// DefaultMessageType is the ROS message type of DefaultTopic
	DefaultMessageType = "std_msgs/String"

	// DefaultOutboundQueueSize bounds the messages waiting for the socket writer
	DefaultOutboundQueueSize = 32

	defaultDialTimeout  = 5 * time.Second
	defaultWriteTimeout = 5 * time.Second
	defaultMinReconnect = 500 * time.Millisecond
	defaultMaxReconnect = 30 * time.Second
)

// RosbridgeConfig describes the rosbridge endpoint and topic
type RosbridgeConfig struct {
	// URL is the rosbridge WebSocket address, e.g. ws://localhost:9090
	URL string

	// Topic receives the encoded move requests
	Topic string

	// MessageType is advertised for Topic
	MessageType string

	// QueueSize bounds the outbound queue
	QueueSize int
}

func (c RosbridgeConfig) withDefaults() RosbridgeConfig {
	if c.Topic == "" {
		c.Topic = DefaultTopic
	}
	if c.MessageType == "" {
		c.MessageType = DefaultMessageType
	}
	if c.QueueSize <= 0 {
		c.QueueSize = DefaultOutboundQueueSize
	}
	return c
}

// rosbridgeMessage is the subset of the rosbridge v2 protocol used here
type rosbridgeMessage struct {
	Op    string         `json:"op"`
	ID    string         `json:"id,omitempty"`
	Topic string         `json:"topic"`
	Type  string         `json:"type,omitempty"`
	Msg   *stringMessage `json:"msg,omitempty"`
}

type stringMessage struct {
	Data string `json:"data"`
}

// RosbridgeOption configures a Rosbridge sink
type RosbridgeOption func(*Rosbridge)

// WithDialer overrides the WebSocket dialer
func WithDialer(dialer *websocket.Dialer) RosbridgeOption {
	return func(s *Rosbridge) {
		s.dialer = dialer
	}
}

// WithReconnectInterval sets the initial and maximum reconnect backoff
func WithReconnectInterval(initial, maxInterval time.Duration) RosbridgeOption {
	return func(s *Rosbridge) {
		if initial > 0 {
			s.minReconnect = initial
		}
		if maxInterval >= s.minReconnect {
			s.maxReconnect = maxInterval
		}
	}
}

// WithWriteTimeout bounds each socket write
func WithWriteTimeout(timeout time.Duration) RosbridgeOption {
	return func(s *Rosbridge) {
		if timeout > 0 {
			s.writeTimeout = timeout
		}
	}
}

// WithRosbridgeMetrics counts publishes that were accepted but never written
// as sink failures
func WithRosbridgeMetrics(metrics *telemetry.RobotMetrics) RosbridgeOption {
	return func(s *Rosbridge) {
		s.metrics = metrics
	}
}

// Rosbridge publishes move requests to a ROS topic through a rosbridge
// WebSocket server. Run owns the connection and reconnects with exponential
// backoff; Publish only enqueues and fails fast while disconnected.
// Publishes still queued when a connection is lost are discarded, never
// replayed on the next connection.
type Rosbridge struct {
	cfg          RosbridgeConfig
	dialer       *websocket.Dialer
	writeTimeout time.Duration
	minReconnect time.Duration
	maxReconnect time.Duration
	metrics      *telemetry.RobotMetrics

	outbound    chan []byte
	connected   atomic.Bool
	published   atomic.Uint64
	undelivered atomic.Uint64

	closed    chan struct{}
	closeOnce sync.Once
}

// NewRosbridge creates a rosbridge sink. Nothing is dialled until Run is called.
func NewRosbridge(cfg RosbridgeConfig, opts ...RosbridgeOption) *Rosbridge {
	cfg = cfg.withDefaults()
	s := &Rosbridge{
		cfg:          cfg,
		dialer:       &websocket.Dialer{HandshakeTimeout: defaultDialTimeout},
		writeTimeout: defaultWriteTimeout,
		minReconnect: defaultMinReconnect,
		maxReconnect: defaultMaxReconnect,
		outbound:     make(chan []byte, cfg.QueueSize),
		closed:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name implements Sink
func (*Rosbridge) Name() string {
	return RosbridgeSinkName
}

// Publish implements Sink
func (s *Rosbridge) Publish(ctx context.Context, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.Ready(); err != nil {
		return err
	}

	id := s.published.Add(1)
	msg, err := json.Marshal(rosbridgeMessage{
		Op:    "publish",
		ID:    fmt.Sprintf("publish:%s:%d", s.cfg.Topic, id),
		Topic: s.cfg.Topic,
		Msg:   &stringMessage{Data: string(payload)},
	})
	if err != nil {
		return fmt.Errorf("failed to encode rosbridge message: %w", err)
	}

	select {
	case s.outbound <- msg:
		return nil
	default:
		return fmt.Errorf("%w: rosbridge outbound queue full", ErrSinkUnavailable)
	}
}

// Ready implements Sink
func (s *Rosbridge) Ready() error {
	select {
	case <-s.closed:
		return fmt.Errorf("%w: rosbridge sink closed", ErrSinkUnavailable)
	default:
	}
	if !s.connected.Load() {
		return fmt.Errorf("%w: not connected to %s", ErrSinkUnavailable, s.cfg.URL)
	}
	return nil
}

// Undelivered returns how many accepted publishes were dropped because the
// connection failed before they were written
func (s *Rosbridge) Undelivered() uint64 {
	return s.undelivered.Load()
}

// Close implements Sink. It stops Run.
func (s *Rosbridge) Close() error {
	s.closeOnce.Do(func() {
		close(s.closed)
	})
	return nil
}

// Run implements Runner. It returns nil once ctx is cancelled or the sink is closed.
func (s *Rosbridge) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-s.closed:
			cancel()
		case <-ctx.Done():
		}
	}()

	slog.Info("Starting rosbridge sink", "url", s.cfg.URL, "topic", s.cfg.Topic)

	for {
		conn, err := backoff.Retry(ctx, func() (*websocket.Conn, error) {
			return s.dial(ctx)
		},
			backoff.WithBackOff(s.newBackOff()),
			backoff.WithNotify(func(err error, next time.Duration) {
				slog.Warn("Rosbridge connection failed, retrying",
					"url", s.cfg.URL,
					"retry_in", next,
					"error", err,
				)
			}),
		)
		if ctx.Err() != nil {
			if conn != nil {
				_ = conn.Close()
			}
			slog.Info("Rosbridge sink stopped")
			return nil
		}
		if err != nil {
			slog.Error("Rosbridge reconnect attempts exhausted, starting over", "error", err)
			continue
		}

		err = s.serve(ctx, conn)
		s.connected.Store(false)
		s.discardQueued(ctx)
		if ctx.Err() != nil {
			slog.Info("Rosbridge sink stopped")
			return nil
		}
		slog.Warn("Rosbridge connection lost", "url", s.cfg.URL, "error", err)
	}
}

func (s *Rosbridge) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.minReconnect
	b.MaxInterval = s.maxReconnect
	return b
}

func (s *Rosbridge) dial(ctx context.Context) (*websocket.Conn, error) {
	conn, resp, err := s.dialer.DialContext(ctx, s.cfg.URL, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", s.cfg.URL, err)
	}
	return conn, nil
}

// serve advertises the topic, then writes queued messages until the
// connection fails or ctx ends
func (s *Rosbridge) serve(ctx context.Context, conn *websocket.Conn) error {
	defer func() { _ = conn.Close() }()

	if err := s.write(conn, rosbridgeMessage{
		Op:    "advertise",
		ID:    "advertise:" + s.cfg.Topic,
		Topic: s.cfg.Topic,
		Type:  s.cfg.MessageType,
	}); err != nil {
		return fmt.Errorf("failed to advertise %s: %w", s.cfg.Topic, err)
	}

	s.connected.Store(true)
	slog.Info("Connected to rosbridge", "url", s.cfg.URL, "topic", s.cfg.Topic)

	// rosbridge answers with status and service messages we do not act on;
	// reading is still required to notice a closed peer
	readErr := make(chan error, 1)
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				readErr <- err
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			s.connected.Store(false)
			_ = s.write(conn, rosbridgeMessage{Op: "unadvertise", Topic: s.cfg.Topic})
			deadline := time.Now().Add(s.writeTimeout)
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
			return ctx.Err()
		case err := <-readErr:
			return err
		case msg := <-s.outbound:
			if err := s.writeRaw(conn, msg); err != nil {
				slog.Error("Dropped move request, rosbridge write failed", "error", err)
				s.recordUndelivered(ctx, 1)
				return err
			}
		}
	}
}

// discardQueued empties the outbound queue after a connection ends
func (s *Rosbridge) discardQueued(ctx context.Context) {
	dropped := 0
	for {
		select {
		case <-s.outbound:
			dropped++
		default:
			if dropped > 0 {
				slog.Warn("Discarded queued move requests after rosbridge disconnect",
					"url", s.cfg.URL,
					"count", dropped,
				)
				s.recordUndelivered(ctx, dropped)
			}
			return
		}
	}
}

func (s *Rosbridge) recordUndelivered(ctx context.Context, n int) {
	s.undelivered.Add(uint64(n))
	// ctx may already be cancelled during shutdown; the count must still land
	ctx = context.WithoutCancel(ctx)
	for range n {
		s.metrics.RecordSinkFailure(ctx, RosbridgeSinkName)
	}
}

func (s *Rosbridge) write(conn *websocket.Conn, msg rosbridgeMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return s.writeRaw(conn, data)
}

func (s *Rosbridge) writeRaw(conn *websocket.Conn, data []byte) error {
	if err := conn.SetWriteDeadline(time.Now().Add(s.writeTimeout)); err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}
