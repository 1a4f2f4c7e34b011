package policy

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

// CachedTermStore fronts a TermStore with an in-process ristretto L1 cache.
// Terms are read-only reference data, so a short TTL is enough to pick up
// plan updates without hitting Postgres on every adjudication.
type CachedTermStore struct {
	next TermStore
	c    *ristretto.Cache[string, []byte]
	ttl  time.Duration
}

// NewCachedTermStore wraps next with a cache bounded by maxCostBytes.
func NewCachedTermStore(next TermStore, maxCostBytes int64, ttl time.Duration) (*CachedTermStore, error) {
	c, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: maxCostBytes / 100 * 10,
		MaxCost:     maxCostBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("policy: term cache: %w", err)
	}
	return &CachedTermStore{next: next, c: c, ttl: ttl}, nil
}

// Lookup returns the cached term when present, falling through to the
// underlying store otherwise. Store errors are never cached.
func (s *CachedTermStore) Lookup(ctx context.Context, termID string) (Term, error) {
	if data, ok := s.c.Get(termID); ok {
		var t Term
		if err := json.Unmarshal(data, &t); err == nil {
			return t, nil
		}
		s.c.Del(termID)
	}

	t, err := s.next.Lookup(ctx, termID)
	if err != nil {
		return Term{}, err
	}

	if data, err := json.Marshal(t); err == nil {
		s.c.SetWithTTL(termID, data, int64(len(data)), s.ttl)
	}
	return t, nil
}

// Close releases cache resources.
func (s *CachedTermStore) Close() {
	s.c.Close()
}
