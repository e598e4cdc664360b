package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestHTTPMetrics_NilPassThrough(t *testing.T) {
	t.Parallel()

	var metrics *HTTPMetrics
	handler := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTeapot, rr.Code)
}

func TestMetricsMiddleware_RecordsRoutePattern(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = mp.Shutdown(context.Background()) }()

	mw, err := MetricsMiddleware(mp)
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Use(mw)
	r.Get("/api/robot-id", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/robot-id", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	found := collectMetricNames(t, reader, HTTPMetricsMeterName)
	total, ok := found["hrobot_http_requests_total"].(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, total.DataPoints, 1)

	route, ok := total.DataPoints[0].Attributes.Value("route")
	require.True(t, ok)
	assert.Equal(t, "/api/robot-id", route.AsString())
}

func TestTracingMiddleware(t *testing.T) {
	t.Parallel()

	t.Run("nil provider passes through", func(t *testing.T) {
		t.Parallel()

		handler := TracingMiddleware(nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusAccepted)
		}))
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusAccepted, rr.Code)
	})

	t.Run("names span after route pattern", func(t *testing.T) {
		t.Parallel()

		recorder := tracetest.NewSpanRecorder()
		tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
		defer func() { _ = tp.Shutdown(context.Background()) }()

		r := chi.NewRouter()
		r.Use(TracingMiddleware(tp))
		r.Post("/api/robot-request", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
		})

		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/robot-request", nil))

		spans := recorder.Ended()
		require.Len(t, spans, 1)
		assert.Equal(t, "POST /api/robot-request", spans[0].Name())
		assert.Equal(t, "Error", spans[0].Status().Code.String())
	})
}
