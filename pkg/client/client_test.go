package client

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"sync/atomic"
	"testing"
	"time"
)

type mockTransport struct {
	roundTripFunc func(*http.Request) (*http.Response, error)
}

func (m *mockTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return m.roundTripFunc(req)
}

func newTestClient(transport http.RoundTripper, settings *EndpointSettings) *Client {
	return NewClient(WithTransport(transport), WithDefaultSettings(settings))
}

func TestSingleAttemptByDefault(t *testing.T) {
	var calls int32
	transport := &mockTransport{
		roundTripFunc: func(req *http.Request) (*http.Response, error) {
			atomic.AddInt32(&calls, 1)
			return nil, errors.New("connection refused")
		},
	}

	c := newTestClient(transport, &EndpointSettings{Timeout: time.Second})
	_, cErr := c.Post(context.Background(), "http://example.com/ingest", []byte(`{}`), nil)
	if cErr == nil {
		t.Fatal("expected error")
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("expected exactly one attempt, got %d", got)
	}
	if cErr.Sent() {
		t.Error("expected Sent() to be false for a transport failure")
	}
	if cErr.Retries != 0 {
		t.Errorf("expected 0 retries, got %d", cErr.Retries)
	}
}

func TestRetryClosesBodyOnFailedAttempts(t *testing.T) {
	var closeCalls int32

	transport := &mockTransport{
		roundTripFunc: func(req *http.Request) (*http.Response, error) {
			return &http.Response{
				StatusCode: 500,
				Body: &trackingReadCloser{
					Reader:  bytes.NewReader([]byte("error")),
					onClose: func() { atomic.AddInt32(&closeCalls, 1) },
				},
			}, nil
		},
	}

	c := newTestClient(transport, &EndpointSettings{
		Timeout:         5 * time.Second,
		MaxRetries:      2,
		BackoffStrategy: func(int) time.Duration { return time.Millisecond },
	})

	req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, "http://example.com/test", nil)
	_, cErr := c.Do(context.Background(), req)
	if cErr == nil || cErr.StatusCode != 500 {
		t.Fatalf("expected 500 error, got %v", cErr)
	}
	if cErr.Retries != 2 {
		t.Errorf("expected 2 retries, got %d", cErr.Retries)
	}

	if closed := atomic.LoadInt32(&closeCalls); closed < 3 {
		t.Errorf("expected at least 3 body closes (2 retries + final read), got %d", closed)
	}
}

func TestRetryReplaysRequestBody(t *testing.T) {
	var bodies []string
	transport := &mockTransport{
		roundTripFunc: func(req *http.Request) (*http.Response, error) {
			b, _ := io.ReadAll(req.Body)
			bodies = append(bodies, string(b))
			return &http.Response{StatusCode: 503, Body: io.NopCloser(bytes.NewReader(nil))}, nil
		},
	}

	c := newTestClient(transport, &EndpointSettings{
		Timeout:         time.Second,
		MaxRetries:      1,
		BackoffStrategy: func(int) time.Duration { return time.Millisecond },
	})
	_, _ = c.Post(context.Background(), "http://example.com/ingest", []byte("payload"), nil)

	if len(bodies) != 2 {
		t.Fatalf("expected 2 attempts, got %d", len(bodies))
	}
	for i, b := range bodies {
		if b != "payload" {
			t.Errorf("attempt %d: expected replayed body, got %q", i, b)
		}
	}
}

func TestTimeoutRespectsContextDeadline(t *testing.T) {
	transport := &mockTransport{
		roundTripFunc: func(req *http.Request) (*http.Response, error) {
			deadline, ok := req.Context().Deadline()
			if !ok {
				t.Error("expected context to have deadline")
			}
			if remaining := time.Until(deadline); remaining > 3*time.Second {
				t.Errorf("deadline too far: %v", remaining)
			}
			return &http.Response{
				StatusCode: 200,
				Body:       io.NopCloser(bytes.NewReader(nil)),
			}, nil
		},
	}

	c := newTestClient(transport, &EndpointSettings{Timeout: 2 * time.Second})

	req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, "http://example.com/test", nil)
	if _, cErr := c.Do(context.Background(), req); cErr != nil {
		t.Fatalf("unexpected error: %v", cErr)
	}
}

func TestHooksAreCalled(t *testing.T) {
	transport := &mockTransport{
		roundTripFunc: func(req *http.Request) (*http.Response, error) {
			if req.URL.Path == "/fail" {
				return &http.Response{StatusCode: 502, Body: io.NopCloser(bytes.NewReader([]byte("bad gateway")))}, nil
			}
			return &http.Response{StatusCode: 202, Body: io.NopCloser(bytes.NewReader(nil))}, nil
		},
	}

	var pre, post, onErr int
	var lastStatus int
	c := NewClient(
		WithTransport(transport),
		WithBaseURL("http://example.com/"),
		WithHooks(&HooksConfig{
			PreRequest:  func(ctx context.Context, req *RequestInfo) { pre++ },
			PostRequest: func(ctx context.Context, req *RequestInfo, status int) { post++; lastStatus = status },
			OnError:     func(ctx context.Context, req *RequestInfo, err *Error) { onErr++ },
		}),
	)

	if _, cErr := c.Post(context.Background(), "/ok", nil, nil); cErr != nil {
		t.Fatalf("unexpected error: %v", cErr)
	}
	_, cErr := c.Get(context.Background(), "/fail", nil)
	if cErr == nil || string(cErr.Body) != "bad gateway" {
		t.Fatalf("expected error carrying the body, got %v", cErr)
	}
	if !cErr.Sent() {
		t.Error("expected Sent() for an answered request")
	}

	if pre != 2 || post != 1 || onErr != 1 {
		t.Errorf("unexpected hook counts pre=%d post=%d onErr=%d", pre, post, onErr)
	}
	if lastStatus != 202 {
		t.Errorf("expected 202, got %d", lastStatus)
	}
}

func TestPostJSONSetsContentType(t *testing.T) {
	transport := &mockTransport{
		roundTripFunc: func(req *http.Request) (*http.Response, error) {
			if ct := req.Header.Get("Content-Type"); ct != "application/json" {
				t.Errorf("expected application/json, got %q", ct)
			}
			b, _ := io.ReadAll(req.Body)
			if string(b) != `{"a":1}` {
				t.Errorf("unexpected body %s", b)
			}
			return &http.Response{StatusCode: 200, Body: io.NopCloser(bytes.NewReader(nil))}, nil
		},
	}

	c := NewClient(WithTransport(transport), WithBaseURL("http://example.com"))
	if _, cErr := c.PostJSON(context.Background(), "/json", map[string]int{"a": 1}, nil); cErr != nil {
		t.Fatalf("unexpected error: %v", cErr)
	}
}

func TestNewRequestRejectsMalformedURL(t *testing.T) {
	c := NewClient(WithBaseURL("http://bad host"))
	if _, err := c.NewRequest(context.Background(), http.MethodPost, "/x", nil, nil); err == nil {
		t.Fatal("expected malformed url error")
	}
}

type trackingReadCloser struct {
	io.Reader
	onClose func()
}

func (r *trackingReadCloser) Close() error {
	if r.onClose != nil {
		r.onClose()
	}
	return nil
}

func (r *trackingReadCloser) Read(p []byte) (int, error) {
	return r.Reader.Read(p)
}
