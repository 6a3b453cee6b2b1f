package state

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dropDatabas3/oauth2client/internal/cache"
)

const keyPrefix = "oauth2:authz_req:"

// CacheStore keeps records as JSON in a cache.Client.
type CacheStore struct {
	c   cache.Client
	now func() time.Time
}

// NewCacheStore wraps c. A nil now defaults to time.Now.
func NewCacheStore(c cache.Client, now func() time.Time) *CacheStore {
	if now == nil {
		now = time.Now
	}
	return &CacheStore{c: c, now: now}
}

func (s *CacheStore) Save(ctx context.Context, key string, rec Record, ttl time.Duration) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("state: encode: %w", err)
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if err := s.c.Set(ctx, keyPrefix+key, string(b), ttl); err != nil {
		return fmt.Errorf("state: save: %w", err)
	}
	return nil
}

func (s *CacheStore) Take(ctx context.Context, key string) (Record, error) {
	raw, err := s.c.Take(ctx, keyPrefix+key)
	if cache.IsNotFound(err) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("state: take: %w", err)
	}
	var rec Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return Record{}, fmt.Errorf("state: decode: %w", err)
	}
	if rec.Expired(s.now()) {
		return Record{}, ErrNotFound
	}
	return rec, nil
}
