package ingestion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fsandov/ingestion-sdk/pkg/cache"
)

const (
	outcomeKeyPrefix  = "ingestion:outcome:"
	DefaultOutcomeTTL = time.Hour
)

// OutcomeStore keeps recent outcomes so fire-and-forget requests can be inspected later.
type OutcomeStore struct {
	cache cache.Cache
	ttl   time.Duration
}

func NewOutcomeStore(c cache.Cache, ttl time.Duration) *OutcomeStore {
	if ttl <= 0 {
		ttl = DefaultOutcomeTTL
	}
	return &OutcomeStore{cache: c, ttl: ttl}
}

func (s *OutcomeStore) Record(ctx context.Context, o Outcome) error {
	data, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("encode outcome %s: %w", o.RequestID, err)
	}
	if err := s.cache.Set(ctx, outcomeKeyPrefix+o.RequestID, string(data), s.ttl); err != nil {
		return fmt.Errorf("store outcome %s: %w", o.RequestID, err)
	}
	return nil
}

func (s *OutcomeStore) Lookup(ctx context.Context, requestID string) (Outcome, error) {
	raw, err := s.cache.Get(ctx, outcomeKeyPrefix+requestID)
	if err != nil {
		if errors.Is(err, cache.ErrKeyNotFound) {
			return Outcome{}, ErrOutcomeNotFound
		}
		return Outcome{}, fmt.Errorf("load outcome %s: %w", requestID, err)
	}
	var o Outcome
	if err := json.Unmarshal([]byte(raw), &o); err != nil {
		return Outcome{}, fmt.Errorf("decode outcome %s: %w", requestID, err)
	}
	return o, nil
}
