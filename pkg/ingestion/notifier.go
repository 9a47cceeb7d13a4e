package ingestion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/fsandov/ingestion-sdk/pkg/client"
	"github.com/fsandov/ingestion-sdk/pkg/config"
	"github.com/fsandov/ingestion-sdk/pkg/logs"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Notifier tells the ingestion service about packages missing from the graph.
// It owns its HTTP client unless one is injected with WithClient.
type Notifier struct {
	url      string
	timeout  time.Duration
	client   Doer
	owned    *client.Client
	logger   *logs.Logger
	outcomes *OutcomeStore
	now      func() time.Time

	mu       sync.Mutex
	inflight int
	idle     chan struct{} // closed while no request is in flight
}

type Option func(*Notifier)

func WithClient(d Doer) Option {
	return func(n *Notifier) { n.client = d }
}

func WithLogger(l *logs.Logger) Option {
	return func(n *Notifier) {
		if l != nil {
			n.logger = l
		}
	}
}

// WithOutcomeStore records the outcome of every request in s.
func WithOutcomeStore(s *OutcomeStore) Option {
	return func(n *Notifier) { n.outcomes = s }
}

func NewNotifier(cfg config.IngestionConfig, opts ...Option) *Notifier {
	cfg = cfg.Normalize()
	n := &Notifier{
		url:     cfg.URL(),
		timeout: cfg.Timeout,
		logger:  logs.GetLogger(),
		now:     time.Now,
		idle:    make(chan struct{}),
	}
	close(n.idle)
	for _, opt := range opts {
		opt(n)
	}
	if n.client == nil {
		n.owned = NewHTTPClient(cfg)
		n.client = n.owned
	}
	return n
}

func (n *Notifier) URL() string {
	return n.url
}

// UnknownPackageFlow posts pkgs to the ingestion service without waiting for
// the answer. An empty set is a no-op and yields a nil task. Only failures to
// build the request are returned; they match ErrIngestionFailed. What happens
// afterwards is available through the returned task and is never raised.
func (n *Notifier) UnknownPackageFlow(ctx context.Context, ecosystem string, pkgs PackageSet) (*Task, error) {
	n.logger.Debug(ctx, "triggered unknown package flow",
		zap.String("ecosystem", ecosystem),
		zap.Strings("packages", pkgs.Strings()),
	)
	if pkgs.Len() == 0 {
		return nil, nil
	}

	// The request outlives the caller: keep ctx values, drop its cancellation.
	bg := context.WithoutCancel(ctx)
	req, payload, err := n.prepare(bg, ecosystem, pkgs)
	if err != nil {
		return nil, err
	}

	task := newTask(req.Header.Get(client.RequestIDHeader))
	started := n.now()
	n.begin()
	go func() {
		defer n.end()
		resp, cErr := n.client.Do(bg, req)
		o := n.outcomeOf(task.ID(), payload, started, resp, cErr)
		n.report(bg, o)
		task.finish(o)
	}()

	n.logger.Info(ctx, "ingestion call being executed",
		zap.String("request_id", task.ID()),
		zap.String("ecosystem", ecosystem),
		zap.Int("packages", len(payload.Packages)),
	)
	return task, nil
}

// Submit posts pkgs and waits at most the configured timeout for the service
// to answer. Any status code counts as delivered; transport failures are
// returned as ingestion failures.
func (n *Notifier) Submit(ctx context.Context, ecosystem string, pkgs PackageSet) error {
	n.logger.Debug(ctx, "submitting unknown packages",
		zap.String("ecosystem", ecosystem),
		zap.Strings("packages", pkgs.Strings()),
	)
	if pkgs.Len() == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	req, payload, err := n.prepare(ctx, ecosystem, pkgs)
	if err != nil {
		return err
	}

	started := n.now()
	resp, cErr := n.client.Do(ctx, req)
	o := n.outcomeOf(req.Header.Get(client.RequestIDHeader), payload, started, resp, cErr)
	n.record(ctx, o)
	if !o.Delivered {
		var cause error = errors.New(o.Error)
		if cErr != nil {
			cause = cErr
		}
		return n.fail(ctx, payload, cause)
	}

	n.logger.Info(ctx, "ingestion call completed",
		zap.String("request_id", o.RequestID),
		zap.String("ecosystem", ecosystem),
		zap.Int("status", o.StatusCode),
	)
	return nil
}

func (n *Notifier) begin() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.inflight == 0 {
		n.idle = make(chan struct{})
	}
	n.inflight++
}

func (n *Notifier) end() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.inflight--
	if n.inflight == 0 {
		close(n.idle)
	}
}

// Wait blocks until no background request is in flight or ctx ends.
func (n *Notifier) Wait(ctx context.Context) error {
	n.mu.Lock()
	idle := n.idle
	n.mu.Unlock()
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close waits for in-flight requests, bounded by ctx, then releases the owned client.
func (n *Notifier) Close(ctx context.Context) error {
	err := n.Wait(ctx)
	if n.owned != nil {
		n.owned.Close()
	}
	return err
}

func (n *Notifier) prepare(ctx context.Context, ecosystem string, pkgs PackageSet) (*http.Request, Payload, error) {
	if strings.TrimSpace(ecosystem) == "" {
		return nil, Payload{}, ErrInvalidEcosystem
	}
	payload := NewPayload(ecosystem, pkgs)

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, payload, n.fail(ctx, payload, fmt.Errorf("encode payload: %w", err))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return nil, payload, n.fail(ctx, payload, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(client.RequestIDHeader, uuid.New().String())
	return req, payload, nil
}

func (n *Notifier) fail(ctx context.Context, payload Payload, err error) error {
	n.logger.Error(ctx, "failed to trigger unknown package flow",
		zap.Any("payload", payload),
		zap.Error(err),
	)
	return &DispatchError{Ecosystem: payload.Ecosystem, Payload: payload, Err: err}
}

func (n *Notifier) outcomeOf(id string, payload Payload, started time.Time, resp *http.Response, cErr *client.Error) Outcome {
	o := Outcome{
		RequestID:   id,
		Ecosystem:   payload.Ecosystem,
		Packages:    len(payload.Packages),
		StartedAt:   started,
		CompletedAt: n.now(),
	}
	switch {
	case cErr != nil && cErr.Sent():
		o.Delivered = true
		o.StatusCode = cErr.StatusCode
	case cErr != nil:
		o.Error = cErr.Error()
	case resp != nil:
		o.Delivered = true
		o.StatusCode = resp.StatusCode
	default:
		o.Error = "no response"
	}
	return o
}

// report logs and records the outcome of a background request.
func (n *Notifier) report(ctx context.Context, o Outcome) {
	if o.Delivered {
		n.logger.Debug(ctx, "ingestion call completed",
			zap.String("request_id", o.RequestID),
			zap.Int("status", o.StatusCode),
		)
	} else {
		n.logger.Warn(ctx, "ingestion call did not reach the service",
			zap.String("request_id", o.RequestID),
			zap.String("ecosystem", o.Ecosystem),
			zap.String("error", o.Error),
		)
	}
	n.record(ctx, o)
}

func (n *Notifier) record(ctx context.Context, o Outcome) {
	if n.outcomes == nil {
		return
	}
	if err := n.outcomes.Record(ctx, o); err != nil {
		n.logger.Warn(ctx, "failed to record ingestion outcome",
			zap.String("request_id", o.RequestID),
			zap.Error(err),
		)
	}
}
