package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type Client struct {
	httpClient *http.Client
	base       http.RoundTripper
	options    *options
}

type options struct {
	baseURL         string
	endpointConfig  EndpointConfig
	defaultSettings *EndpointSettings
	middlewares     []Middleware
	hooks           *HooksConfig
	transport       http.RoundTripper
}

// Option configures a Client.
type Option func(*options)

func WithBaseURL(url string) Option {
	return func(o *options) { o.baseURL = strings.TrimRight(url, "/") }
}
func WithEndpointConfig(ec EndpointConfig) Option {
	return func(o *options) { o.endpointConfig = ec }
}
func WithDefaultSettings(s *EndpointSettings) Option {
	return func(o *options) { o.defaultSettings = s }
}

// WithMiddleware appends mw to the chain. The first registered middleware is the outermost. Nil is ignored.
func WithMiddleware(mw Middleware) Option {
	return func(o *options) {
		if mw != nil {
			o.middlewares = append(o.middlewares, mw)
		}
	}
}
func WithRateLimit(cfg *RateLimitConfig) Option {
	return WithMiddleware(RateLimitMiddleware(cfg))
}
func WithCircuitBreaker(cfg *CircuitBreakerConfig) Option {
	return WithMiddleware(CircuitBreakerMiddleware(cfg))
}
func WithHooks(hooks *HooksConfig) Option { return func(o *options) { o.hooks = hooks } }

// WithTransport replaces the base transport, http.DefaultTransport otherwise.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *options) { o.transport = rt }
}

func NewClient(opts ...Option) *Client {
	o := &options{
		defaultSettings: &EndpointSettings{
			Timeout: 30 * time.Second,
			Headers: map[string]string{},
		},
		hooks: &HooksConfig{},
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.defaultSettings == nil {
		o.defaultSettings = &EndpointSettings{}
	}
	if o.hooks == nil {
		o.hooks = &HooksConfig{}
	}
	base := o.transport
	if base == nil {
		base = http.DefaultTransport
	}
	transport := base
	for i := len(o.middlewares) - 1; i >= 0; i-- {
		transport = o.middlewares[i](transport)
	}
	return &Client{
		httpClient: &http.Client{Transport: transport},
		base:       base,
		options:    o,
	}
}

type EndpointConfigKey struct{}

// Do sends req with the settings resolved for its method and path.
// Responses with status >= 400 and transport failures are reported as *Error;
// the response body is always buffered and restored.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, *Error) {
	var cfg *EndpointSettings
	if c.options.endpointConfig != nil {
		cfg = c.options.endpointConfig(req.Method, req.URL.Path)
	}
	if cfg == nil {
		cfg = c.options.defaultSettings
	}
	cfg = applyDefaults(cfg)
	ctx = context.WithValue(ctx, EndpointConfigKey{}, cfg)

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	req = req.WithContext(ctx)

	for k, v := range c.options.defaultSettings.Headers {
		if req.Header.Get(k) == "" {
			req.Header.Set(k, v)
		}
	}
	for k, v := range cfg.Headers {
		req.Header.Set(k, v)
	}

	info := &RequestInfo{Method: req.Method, Path: req.URL.Path}
	if c.options.hooks.PreRequest != nil {
		c.options.hooks.PreRequest(ctx, info)
	}

	var (
		resp  *http.Response
		err   error
		retry int
		body  []byte
	)
	shouldRetry := cfg.ShouldRetry
	if shouldRetry == nil {
		shouldRetry = func(resp *http.Response, err error) bool {
			return err != nil || (resp != nil && resp.StatusCode >= 500)
		}
	}
	backoffStrategy := cfg.BackoffStrategy
	if backoffStrategy == nil {
		backoffStrategy = func(attempt int) time.Duration { return 200 * time.Millisecond }
	}

	for retry = 0; retry <= cfg.MaxRetries; retry++ {
		if retry > 0 && req.GetBody != nil {
			if req.Body, err = req.GetBody(); err != nil {
				break
			}
		}
		resp, err = c.httpClient.Do(req)
		if retry == cfg.MaxRetries || !shouldRetry(resp, err) {
			break
		}
		if resp != nil && resp.Body != nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}
		select {
		case <-ctx.Done():
			err = ctx.Err()
			resp = nil
		case <-time.After(backoffStrategy(retry)):
			continue
		}
		break
	}
	if resp != nil && resp.Body != nil {
		body, _ = io.ReadAll(resp.Body)
		resp.Body.Close()
		resp.Body = io.NopCloser(bytes.NewReader(body))
	}
	if err != nil || (resp != nil && resp.StatusCode >= 400) {
		clientErr := &Error{
			Err:          err,
			Retries:      retry,
			Method:       req.Method,
			URL:          req.URL.String(),
			LastResponse: resp,
		}
		if resp != nil {
			clientErr.StatusCode = resp.StatusCode
			clientErr.Body = body
		}
		if c.options.hooks.OnError != nil {
			c.options.hooks.OnError(ctx, info, clientErr)
		}
		return resp, clientErr
	}
	if c.options.hooks.PostRequest != nil {
		c.options.hooks.PostRequest(ctx, info, resp.StatusCode)
	}
	return resp, nil
}

// NewRequest builds a request against the base URL. A path that is already an absolute URL is used as is.
func (c *Client) NewRequest(ctx context.Context, method, path string, body []byte, headers map[string]string) (*http.Request, error) {
	target := path
	if !strings.HasPrefix(path, "http://") && !strings.HasPrefix(path, "https://") {
		target = c.options.baseURL + path
	}
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("build %s %s: %w", method, target, err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return req, nil
}

func (c *Client) send(ctx context.Context, method, path string, body []byte, headers map[string]string) (*http.Response, *Error) {
	req, err := c.NewRequest(ctx, method, path, body, headers)
	if err != nil {
		return nil, &Error{Err: err, Method: method, URL: c.options.baseURL + path}
	}
	return c.Do(ctx, req)
}

func (c *Client) Get(ctx context.Context, path string, headers map[string]string) (*http.Response, *Error) {
	return c.send(ctx, http.MethodGet, path, nil, headers)
}
func (c *Client) Post(ctx context.Context, path string, body []byte, headers map[string]string) (*http.Response, *Error) {
	return c.send(ctx, http.MethodPost, path, body, headers)
}
func (c *Client) Put(ctx context.Context, path string, body []byte, headers map[string]string) (*http.Response, *Error) {
	return c.send(ctx, http.MethodPut, path, body, headers)
}
func (c *Client) Delete(ctx context.Context, path string, headers map[string]string) (*http.Response, *Error) {
	return c.send(ctx, http.MethodDelete, path, nil, headers)
}

// PostJSON marshals v and posts it with a JSON content type.
func (c *Client) PostJSON(ctx context.Context, path string, v any, headers map[string]string) (*http.Response, *Error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, &Error{Err: fmt.Errorf("error marshalling payload: %w", err), Method: http.MethodPost, URL: c.options.baseURL + path}
	}
	h := map[string]string{"Content-Type": "application/json"}
	for k, v := range headers {
		h[k] = v
	}
	return c.Post(ctx, path, data, h)
}

func (c *Client) Close() {
	type idleCloser interface{ CloseIdleConnections() }
	if ic, ok := c.base.(idleCloser); ok {
		ic.CloseIdleConnections()
	}
}
