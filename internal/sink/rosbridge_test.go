package sink_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/stacklok/hospital-robot-server/internal/sink"
)

// fakeRosbridge accepts WebSocket clients and records every frame they send
type fakeRosbridge struct {
	server   *httptest.Server
	conns    chan *websocket.Conn
	messages chan map[string]any
}

func newFakeRosbridge() *fakeRosbridge {
	f := &fakeRosbridge{
		conns:    make(chan *websocket.Conn, 8),
		messages: make(chan map[string]any, 64),
	}
	upgrader := websocket.Upgrader{}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		f.conns <- conn
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var msg map[string]any
			if json.Unmarshal(data, &msg) == nil {
				f.messages <- msg
			}
		}
	}))
	return f
}

func (f *fakeRosbridge) URL() string {
	return "ws" + strings.TrimPrefix(f.server.URL, "http")
}

func (f *fakeRosbridge) nextMessage() map[string]any {
	var msg map[string]any
	Eventually(f.messages, 5*time.Second).Should(Receive(&msg))
	return msg
}

var _ = Describe("Rosbridge", func() {
	var (
		fake   *fakeRosbridge
		rb     *sink.Rosbridge
		ctx    context.Context
		cancel context.CancelFunc
		runErr chan error
	)

	BeforeEach(func() {
		fake = newFakeRosbridge()
		rb = sink.NewRosbridge(
			sink.RosbridgeConfig{URL: fake.URL()},
			sink.WithReconnectInterval(10*time.Millisecond, 50*time.Millisecond),
		)
		ctx, cancel = context.WithCancel(context.Background())
		runErr = make(chan error, 1)
	})

	AfterEach(func() {
		cancel()
		_ = rb.Close()
		fake.server.Close()
	})

	start := func() {
		go func() { runErr <- rb.Run(ctx) }()
	}

	It("reports its name", func() {
		Expect(rb.Name()).To(Equal(sink.RosbridgeSinkName))
	})

	Context("before connecting", func() {
		It("is not ready", func() {
			Expect(rb.Ready()).To(MatchError(sink.ErrSinkUnavailable))
		})

		It("rejects publishes without blocking", func() {
			err := rb.Publish(ctx, []byte(`{"x":1}`))
			Expect(err).To(MatchError(sink.ErrSinkUnavailable))
		})
	})

	Context("once connected", func() {
		BeforeEach(func() {
			start()
			Eventually(rb.Ready, 5*time.Second).Should(Succeed())
		})

		It("advertises the default topic first", func() {
			msg := fake.nextMessage()
			Expect(msg).To(HaveKeyWithValue("op", "advertise"))
			Expect(msg).To(HaveKeyWithValue("topic", sink.DefaultTopic))
			Expect(msg).To(HaveKeyWithValue("type", sink.DefaultMessageType))
		})

		It("publishes the payload as std_msgs/String data", func() {
			_ = fake.nextMessage()

			payload := `{"x":1,"y":2,"floor":3,"yaw":90,"room":"icu"}`
			Expect(rb.Publish(ctx, []byte(payload))).To(Succeed())

			msg := fake.nextMessage()
			Expect(msg).To(HaveKeyWithValue("op", "publish"))
			Expect(msg).To(HaveKeyWithValue("topic", sink.DefaultTopic))
			Expect(msg).To(HaveKeyWithValue("msg", HaveKeyWithValue("data", payload)))
		})

		It("reconnects and re-advertises after the peer drops", func() {
			_ = fake.nextMessage()

			var first *websocket.Conn
			Eventually(fake.conns).Should(Receive(&first))
			Expect(first.Close()).To(Succeed())

			msg := fake.nextMessage()
			Expect(msg).To(HaveKeyWithValue("op", "advertise"))
			Eventually(rb.Ready, 5*time.Second).Should(Succeed())
		})

		It("stops when the context is cancelled", func() {
			cancel()
			Eventually(runErr, 5*time.Second).Should(Receive(BeNil()))
			Expect(rb.Ready()).To(MatchError(sink.ErrSinkUnavailable))
		})

		It("stops and rejects publishes after Close", func() {
			Expect(rb.Close()).To(Succeed())
			Eventually(runErr, 5*time.Second).Should(Receive(BeNil()))
			Expect(rb.Publish(context.Background(), []byte(`{}`))).To(MatchError(sink.ErrSinkUnavailable))
		})
	})

	Context("when rosbridge is unreachable", func() {
		It("keeps retrying until cancelled", func() {
			fake.server.Close()
			start()

			Consistently(rb.Ready, 200*time.Millisecond).ShouldNot(Succeed())
			cancel()
			Eventually(runErr, 5*time.Second).Should(Receive(BeNil()))
		})
	})
})
