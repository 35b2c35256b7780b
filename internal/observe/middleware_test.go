package observe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// newInstrumentedRouter mounts handler at pattern on a chi router wrapped in
// [Middleware], backed by in-memory metric and span collectors.
func newInstrumentedRouter(t *testing.T, pattern string, handler http.HandlerFunc) (*chi.Mux, *sdkmetric.ManualReader, *tracetest.InMemoryExporter) {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	origTP := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(origTP) })

	r := chi.NewRouter()
	r.Use(Middleware(m))
	r.Get(pattern, handler)
	return r, reader, exp
}

func TestMiddleware_SetsCorrelationID(t *testing.T) {
	var gotCID string
	r, _, _ := newInstrumentedRouter(t, "/v1/health", func(w http.ResponseWriter, req *http.Request) {
		gotCID = CorrelationID(req.Context())
		w.WriteHeader(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("GET", "/v1/health", nil))

	if gotCID == "" {
		t.Error("handler context carries no correlation ID")
	}
	if len(gotCID) != 32 {
		t.Errorf("correlation ID length = %d, want 32", len(gotCID))
	}
	if got := rec.Header().Get("X-Correlation-ID"); got != gotCID {
		t.Errorf("X-Correlation-ID = %q, want %q", got, gotCID)
	}
}

func TestMiddleware_SpanUsesRoutePattern(t *testing.T) {
	r, _, exp := newInstrumentedRouter(t, "/v1/users/{userID}/recommendations", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("GET", "/v1/users/u123/recommendations", nil))

	spans := exp.GetSpans()
	if len(spans) == 0 {
		t.Fatal("no span recorded")
	}
	if want := "GET /v1/users/{userID}/recommendations"; spans[0].Name != want {
		t.Errorf("span name = %q, want %q", spans[0].Name, want)
	}
	var gotRoute string
	for _, a := range spans[0].Attributes {
		if string(a.Key) == "http.route" {
			gotRoute = a.Value.AsString()
		}
	}
	if gotRoute != "/v1/users/{userID}/recommendations" {
		t.Errorf("http.route = %q, raw user path must not leak", gotRoute)
	}
}

func TestMiddleware_RecordsDurationByRoute(t *testing.T) {
	r, reader, _ := newInstrumentedRouter(t, "/v1/users/{userID}/recommendations", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	// Two users, one route pattern: both land in the same series.
	for _, path := range []string{"/v1/users/u1/recommendations", "/v1/users/u2/recommendations"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest("GET", path, nil))
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}

	met := findMetric(rm, "cadenza.http.request.duration")
	if met == nil {
		t.Fatal("request duration metric not found")
	}
	hist, ok := met.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatal("metric is not a histogram")
	}
	if len(hist.DataPoints) != 1 {
		t.Fatalf("got %d series, want 1 (per-user paths must collapse)", len(hist.DataPoints))
	}

	dp := hist.DataPoints[0]
	if dp.Count != 2 {
		t.Errorf("sample count = %d, want 2", dp.Count)
	}
	var gotMethod, gotRoute string
	for _, kv := range dp.Attributes.ToSlice() {
		switch string(kv.Key) {
		case "method":
			gotMethod = kv.Value.AsString()
		case "route":
			gotRoute = kv.Value.AsString()
		}
	}
	if gotMethod != "GET" {
		t.Errorf("method attribute = %q, want GET", gotMethod)
	}
	if gotRoute != "/v1/users/{userID}/recommendations" {
		t.Errorf("route attribute = %q, want the chi pattern", gotRoute)
	}
}

func TestMiddleware_CapturesStatusCode(t *testing.T) {
	r, _, exp := newInstrumentedRouter(t, "/v1/users/{userID}/recommendations", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("GET", "/v1/users/nobody/recommendations", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("response status = %d, want 404", rec.Code)
	}

	spans := exp.GetSpans()
	if len(spans) == 0 {
		t.Fatal("no span recorded")
	}
	found := false
	for _, a := range spans[0].Attributes {
		if string(a.Key) == "http.response.status_code" && a.Value.AsInt64() == 404 {
			found = true
		}
	}
	if !found {
		t.Error("span missing http.response.status_code=404")
	}
}

func TestMiddleware_ContinuesCallerTrace(t *testing.T) {
	var gotCID string
	r, _, _ := newInstrumentedRouter(t, "/v1/health", func(w http.ResponseWriter, req *http.Request) {
		gotCID = CorrelationID(req.Context())
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest("GET", "/v1/health", nil)
	req.Header.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	const want = "4bf92f3577b34da6a3ce929d0e0e4736"
	if gotCID != want {
		t.Errorf("correlation ID = %q, want the caller's trace ID", gotCID)
	}
	if got := rec.Header().Get("X-Correlation-ID"); got != want {
		t.Errorf("X-Correlation-ID = %q, want %q", got, want)
	}
}
