package ingestion

import (
	"context"
	"net/http"

	"github.com/fsandov/ingestion-sdk/pkg/client"
	"github.com/fsandov/ingestion-sdk/pkg/config"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

const (
	userAgent = "ingestion-notifier/1"

	// The response body is never consumed; cap what gets buffered.
	maxResponseBytes = 64 << 10

	maxBurst = 1000
)

// Doer sends a prepared request. *client.Client satisfies it.
type Doer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, *client.Error)
}

// NewHTTPClient builds the client used to reach the ingestion service: one
// attempt bounded by cfg.Timeout, the caller's options (tracing, metrics, a
// custom transport), then rate limiting and circuit breaking when cfg enables them.
func NewHTTPClient(cfg config.IngestionConfig, opts ...client.Option) *client.Client {
	cfg = cfg.Normalize()

	all := []client.Option{
		client.WithBaseURL(cfg.BaseURL()),
		client.WithTransport(http.DefaultTransport.(*http.Transport).Clone()),
		client.WithDefaultSettings(&client.EndpointSettings{
			Timeout: cfg.Timeout,
			Headers: map[string]string{"Accept": "application/json"},
		}),
		client.WithMiddleware(client.RequestIDMiddleware()),
		client.WithMiddleware(client.UserAgentMiddleware(userAgent)),
	}
	all = append(all, opts...)

	if cfg.RateLimit > 0 {
		burst := int(min(cfg.RateLimit, maxBurst))
		if burst < 1 {
			burst = 1
		}
		limiter := rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
		all = append(all, client.WithRateLimit(&client.RateLimitConfig{
			LimiterFor: func(method, path string) *rate.Limiter { return limiter },
		}))
	}
	if cfg.BreakerFailures > 0 {
		breaker := client.NewBreaker("ingestion-service", cfg.BreakerFailures, 0)
		all = append(all, client.WithCircuitBreaker(&client.CircuitBreakerConfig{
			BreakerFor: func(method, path string) *gobreaker.CircuitBreaker { return breaker },
			// Any answer means the request was delivered; only an unreachable service trips it.
			IsFailure: client.TransportErrorsOnly,
		}))
	}
	all = append(all, client.WithMiddleware(client.MaxResponseSizeMiddleware(maxResponseBytes)))

	return client.NewClient(all...)
}
