package backend

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

// StatCache memoizes successful Stat results for a fixed TTL.
//
// Freshness checks then see backing store changes up to ttl late, in
// exchange for fewer stat calls on the hit path. Missing files are not
// memoized. Read is passed through unchanged.
type StatCache struct {
	next  Backend
	cache *ristretto.Cache[string, Info]
	ttl   time.Duration
}

var _ Backend = (*StatCache)(nil)

// NewStatCache wraps next, holding at most maxEntries stat results.
func NewStatCache(next Backend, maxEntries int64, ttl time.Duration) (*StatCache, error) {
	if maxEntries <= 0 {
		return nil, fmt.Errorf("stat cache size must be greater than 0")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("stat cache ttl must be greater than 0")
	}

	c, err := ristretto.NewCache(&ristretto.Config[string, Info]{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create ristretto cache: %w", err)
	}

	return &StatCache{next: next, cache: c, ttl: ttl}, nil
}

// Stat implements Backend.
func (s *StatCache) Stat(ctx context.Context, path string) (Info, error) {
	if info, ok := s.cache.Get(path); ok {
		return info, nil
	}

	info, err := s.next.Stat(ctx, path)
	if err != nil {
		return Info{}, err
	}

	s.cache.SetWithTTL(path, info, 1, s.ttl)
	s.cache.Wait()
	return info, nil
}

// Read implements Backend.
func (s *StatCache) Read(ctx context.Context, path string) ([]byte, error) {
	return s.next.Read(ctx, path)
}

// Forget drops the memoized result for path.
func (s *StatCache) Forget(path string) {
	s.cache.Del(path)
}

// Close releases the memo's background goroutines.
func (s *StatCache) Close() {
	s.cache.Close()
}
