package client

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

const RequestIDHeader = "X-Request-ID"

type Middleware func(next http.RoundTripper) http.RoundTripper

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

// RequestIDMiddleware sets X-Request-ID when the caller did not.
func RequestIDMiddleware() Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return roundTripperFunc(func(req *http.Request) (*http.Response, error) {
			if req.Header.Get(RequestIDHeader) == "" {
				req.Header.Set(RequestIDHeader, uuid.New().String())
			}
			return next.RoundTrip(req)
		})
	}
}

func UserAgentMiddleware(agent string) Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return roundTripperFunc(func(req *http.Request) (*http.Response, error) {
			if agent != "" && req.Header.Get("User-Agent") == "" {
				req.Header.Set("User-Agent", agent)
			}
			return next.RoundTrip(req)
		})
	}
}

type RateLimitConfig struct {
	LimiterFor func(method, path string) *rate.Limiter
}

func RateLimitMiddleware(cfg *RateLimitConfig) Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return roundTripperFunc(func(req *http.Request) (*http.Response, error) {
			if cfg != nil && cfg.LimiterFor != nil {
				if limiter := cfg.LimiterFor(req.Method, req.URL.Path); limiter != nil {
					if err := limiter.Wait(req.Context()); err != nil {
						return nil, err
					}
				}
			}
			return next.RoundTrip(req)
		})
	}
}

// ErrServerFailure marks a response counted against a circuit breaker.
var ErrServerFailure = errors.New("server failure")

type CircuitBreakerConfig struct {
	BreakerFor func(method, path string) *gobreaker.CircuitBreaker
	// IsFailure decides whether a response counts against the breaker.
	// Nil counts 5xx responses. Transport errors always count.
	IsFailure func(resp *http.Response) bool
}

// ServerErrors reports 5xx responses as failures.
func ServerErrors(resp *http.Response) bool {
	return resp.StatusCode >= 500
}

// TransportErrorsOnly never counts a response, whatever its status.
func TransportErrorsOnly(*http.Response) bool {
	return false
}

// CircuitBreakerMiddleware counts transport errors and, by default, 5xx responses as failures.
// While the breaker is open requests fail with gobreaker.ErrOpenState without reaching the server.
func CircuitBreakerMiddleware(cfg *CircuitBreakerConfig) Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return roundTripperFunc(func(req *http.Request) (*http.Response, error) {
			if cfg == nil || cfg.BreakerFor == nil {
				return next.RoundTrip(req)
			}
			breaker := cfg.BreakerFor(req.Method, req.URL.Path)
			if breaker == nil {
				return next.RoundTrip(req)
			}
			isFailure := cfg.IsFailure
			if isFailure == nil {
				isFailure = ServerErrors
			}
			var resp *http.Response
			_, err := breaker.Execute(func() (interface{}, error) {
				var err error
				resp, err = next.RoundTrip(req)
				if err != nil {
					return nil, err
				}
				if isFailure(resp) {
					return resp, ErrServerFailure
				}
				return resp, nil
			})
			if errors.Is(err, ErrServerFailure) {
				return resp, nil
			}
			if err != nil {
				return nil, err
			}
			return resp, nil
		})
	}
}

// NewBreaker returns a breaker that opens after consecutive failures.
func NewBreaker(name string, consecutiveFailures uint32, openFor time.Duration) *gobreaker.CircuitBreaker {
	if consecutiveFailures == 0 {
		consecutiveFailures = 5
	}
	if openFor <= 0 {
		openFor = 30 * time.Second
	}
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     openFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= consecutiveFailures
		},
	})
}

type TracingConfig struct {
	TracerProvider    trace.TracerProvider
	Propagators       propagation.TextMapPropagator
	SpanNameFormatter func(r *http.Request) string
}

func DefaultTracingConfig() *TracingConfig {
	return &TracingConfig{
		TracerProvider: otel.GetTracerProvider(),
		Propagators:    otel.GetTextMapPropagator(),
		SpanNameFormatter: func(r *http.Request) string {
			return fmt.Sprintf("HTTP %s", r.Method)
		},
	}
}

func TracingMiddleware(config *TracingConfig) Middleware {
	if config == nil {
		config = DefaultTracingConfig()
	}
	if config.TracerProvider == nil {
		config.TracerProvider = otel.GetTracerProvider()
	}
	if config.Propagators == nil {
		config.Propagators = otel.GetTextMapPropagator()
	}
	if config.SpanNameFormatter == nil {
		config.SpanNameFormatter = DefaultTracingConfig().SpanNameFormatter
	}
	return func(next http.RoundTripper) http.RoundTripper {
		return &tracingTransport{
			next:   next,
			config: config,
			tracer: config.TracerProvider.Tracer("github.com/fsandov/ingestion-sdk/pkg/client"),
		}
	}
}

type tracingTransport struct {
	next   http.RoundTripper
	config *TracingConfig
	tracer trace.Tracer
}

func (t *tracingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx, span := t.tracer.Start(req.Context(), t.config.SpanNameFormatter(req), trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	req = req.WithContext(ctx)
	t.config.Propagators.Inject(ctx, propagation.HeaderCarrier(req.Header))
	span.SetAttributes(
		attribute.String("http.method", req.Method),
		attribute.String("http.url", req.URL.String()),
		attribute.String("http.target", req.URL.Path),
		attribute.String("http.host", req.URL.Host),
	)
	if id := req.Header.Get(RequestIDHeader); id != "" {
		span.SetAttributes(attribute.String("http.request_id", id))
	}
	if req.ContentLength > 0 {
		span.SetAttributes(attribute.Int("http.request_content_length", int(req.ContentLength)))
	}
	resp, err := t.next.RoundTrip(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if resp.StatusCode >= 400 {
		span.SetStatus(codes.Error, http.StatusText(resp.StatusCode))
	}
	return resp, nil
}

type MetricsConfig struct {
	Namespace  string
	Subsystem  string
	Registerer prometheus.Registerer
}

type clientMetrics struct {
	requestDuration *prometheus.HistogramVec
	requestsTotal   *prometheus.CounterVec
	requestErrors   *prometheus.CounterVec
}

// MetricsMiddleware records request counts, latencies and transport errors.
// Registering twice against the same registerer reuses the existing collectors.
func MetricsMiddleware(config *MetricsConfig) Middleware {
	if config == nil {
		return nil
	}
	namespace := config.Namespace
	if namespace == "" {
		namespace = "http_client"
	}
	reg := config.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	labels := []string{"method", "host", "path", "status"}
	m := &clientMetrics{
		requestDuration: registerHistogramVec(reg, prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: config.Subsystem,
				Name:      "request_duration_seconds",
				Help:      "Time spent processing HTTP requests",
				Buckets:   prometheus.DefBuckets,
			}, labels)),
		requestsTotal: registerCounterVec(reg, prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: config.Subsystem,
				Name:      "requests_total",
				Help:      "Total number of HTTP requests",
			}, labels)),
		requestErrors: registerCounterVec(reg, prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: config.Subsystem,
				Name:      "request_errors_total",
				Help:      "Total number of HTTP requests that got no response",
			}, []string{"method", "host", "path"})),
	}
	return func(next http.RoundTripper) http.RoundTripper {
		return &metricsTransport{next: next, metrics: m}
	}
}

func registerCounterVec(reg prometheus.Registerer, c *prometheus.CounterVec) *prometheus.CounterVec {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing
			}
		}
	}
	return c
}

func registerHistogramVec(reg prometheus.Registerer, h *prometheus.HistogramVec) *prometheus.HistogramVec {
	if err := reg.Register(h); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing
			}
		}
	}
	return h
}

type metricsTransport struct {
	next    http.RoundTripper
	metrics *clientMetrics
}

func (t *metricsTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	method, host, path := req.Method, req.URL.Host, req.URL.Path
	resp, err := t.next.RoundTrip(req)
	if err != nil {
		t.metrics.requestErrors.WithLabelValues(method, host, path).Inc()
		return nil, err
	}
	status := strconv.Itoa(resp.StatusCode)
	t.metrics.requestDuration.WithLabelValues(method, host, path, status).Observe(time.Since(start).Seconds())
	t.metrics.requestsTotal.WithLabelValues(method, host, path, status).Inc()
	return resp, nil
}

// MaxResponseSizeMiddleware truncates response bodies to maxSize bytes.
func MaxResponseSizeMiddleware(maxSize int64) Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return roundTripperFunc(func(req *http.Request) (*http.Response, error) {
			resp, err := next.RoundTrip(req)
			if err != nil || maxSize <= 0 || resp.Body == nil {
				return resp, err
			}
			resp.Body = struct {
				io.Reader
				io.Closer
			}{io.LimitReader(resp.Body, maxSize), resp.Body}
			return resp, nil
		})
	}
}
