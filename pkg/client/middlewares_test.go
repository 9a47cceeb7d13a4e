package client

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func okTransport(status int) *mockTransport {
	return &mockTransport{
		roundTripFunc: func(req *http.Request) (*http.Response, error) {
			return &http.Response{StatusCode: status, Body: io.NopCloser(bytes.NewReader(nil))}, nil
		},
	}
}

func TestMetricsMiddlewareIdempotentRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()

	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("MetricsMiddleware panicked on double registration: %v", r)
		}
	}()

	cfg := &MetricsConfig{Namespace: "test_idempotent", Subsystem: "sub", Registerer: reg}
	mw1 := MetricsMiddleware(cfg)
	if mw1 == nil {
		t.Fatal("expected non-nil middleware")
	}
	mw2 := MetricsMiddleware(cfg)
	if mw2 == nil {
		t.Fatal("expected non-nil middleware on second call")
	}

	req, _ := http.NewRequest(http.MethodPost, "http://jobs:34000/internal/ingestions/epv", nil)
	_, _ = mw1(okTransport(202)).RoundTrip(req)
	_, _ = mw2(okTransport(202)).RoundTrip(req)

	n, err := testutil.GatherAndCount(reg, "test_idempotent_sub_requests_total")
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if n != 1 {
		t.Errorf("expected a single series shared by both middlewares, got %d", n)
	}
}

func TestMetricsMiddlewareCountsTransportErrors(t *testing.T) {
	reg := prometheus.NewRegistry()
	mw := MetricsMiddleware(&MetricsConfig{Namespace: "ingest", Registerer: reg})
	failing := &mockTransport{
		roundTripFunc: func(req *http.Request) (*http.Response, error) {
			return nil, io.ErrUnexpectedEOF
		},
	}

	req, _ := http.NewRequest(http.MethodPost, "http://jobs:34000/internal/ingestions/epv", nil)
	if _, rtErr := mw(failing).RoundTrip(req); rtErr == nil {
		t.Fatal("expected error")
	}
	n, err := testutil.GatherAndCount(reg, "ingest_request_errors_total")
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if n != 1 {
		t.Errorf("expected one error series, got %d", n)
	}
}

func TestMaxResponseSizeMiddleware(t *testing.T) {
	body := []byte("hello world, this is a long response body for testing")
	transport := &mockTransport{
		roundTripFunc: func(req *http.Request) (*http.Response, error) {
			return &http.Response{
				StatusCode: 200,
				Body:       io.NopCloser(bytes.NewReader(body)),
			}, nil
		},
	}

	wrapped := MaxResponseSizeMiddleware(5)(transport)

	req, _ := http.NewRequest(http.MethodGet, "http://example.com", nil)
	resp, err := wrapped.RoundTrip(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, _ := io.ReadAll(resp.Body)
	if len(data) > 5 {
		t.Errorf("expected at most 5 bytes, got %d", len(data))
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	var seen string
	transport := &mockTransport{
		roundTripFunc: func(req *http.Request) (*http.Response, error) {
			seen = req.Header.Get(RequestIDHeader)
			return &http.Response{StatusCode: 200, Body: io.NopCloser(bytes.NewReader(nil))}, nil
		},
	}
	rt := RequestIDMiddleware()(transport)

	req, _ := http.NewRequest(http.MethodPost, "http://example.com", nil)
	_, _ = rt.RoundTrip(req)
	if len(seen) < 20 {
		t.Errorf("expected a generated request id, got %q", seen)
	}

	req, _ = http.NewRequest(http.MethodPost, "http://example.com", nil)
	req.Header.Set(RequestIDHeader, "fixed-id")
	_, _ = rt.RoundTrip(req)
	if seen != "fixed-id" {
		t.Errorf("expected caller id to be kept, got %q", seen)
	}
}

func TestTracingMiddlewareRecordsClientSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	var traceparent string
	transport := &mockTransport{
		roundTripFunc: func(req *http.Request) (*http.Response, error) {
			traceparent = req.Header.Get("traceparent")
			return &http.Response{StatusCode: 500, Body: io.NopCloser(bytes.NewReader(nil))}, nil
		},
	}
	rt := TracingMiddleware(&TracingConfig{
		TracerProvider: tp,
		Propagators:    propagation.TraceContext{},
	})(transport)

	req, _ := http.NewRequest(http.MethodPost, "http://jobs:34000/internal/ingestions/epv", nil)
	if _, err := rt.RoundTrip(req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected one span, got %d", len(spans))
	}
	if spans[0].Name() != "HTTP POST" {
		t.Errorf("unexpected span name %s", spans[0].Name())
	}
	if traceparent == "" {
		t.Error("expected trace context to be propagated")
	}
}
