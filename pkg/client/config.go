package client

import (
	"context"
	"net/http"
	"time"
)

// EndpointSettings tunes requests for one endpoint. MaxRetries is 0 unless set:
// a request is attempted once.
type EndpointSettings struct {
	Timeout         time.Duration
	MaxRetries      int
	ShouldRetry     func(resp *http.Response, err error) bool
	BackoffStrategy func(attempt int) time.Duration
	Headers         map[string]string
}

func applyDefaults(cfg *EndpointSettings) *EndpointSettings {
	if cfg == nil {
		cfg = &EndpointSettings{}
	}
	out := *cfg
	if out.Timeout <= 0 {
		out.Timeout = 10 * time.Second
	}
	if out.MaxRetries < 0 {
		out.MaxRetries = 0
	}
	if out.Headers == nil {
		out.Headers = map[string]string{}
	}
	return &out
}

type RequestInfo struct {
	Method string
	Path   string
}

type EndpointConfig func(method, path string) *EndpointSettings

type HooksConfig struct {
	PreRequest  func(ctx context.Context, req *RequestInfo)
	PostRequest func(ctx context.Context, req *RequestInfo, status int)
	OnError     func(ctx context.Context, req *RequestInfo, err *Error)
}
