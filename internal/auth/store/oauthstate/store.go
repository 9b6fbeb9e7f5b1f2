// Package oauthstate holds the anti-CSRF state values issued when a
// federated login starts. Each value is accepted once, within its TTL.
package oauthstate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"eshop/internal/sentinel"
)

const (
	DefaultTTL = 10 * time.Minute
	keyPrefix  = "oauth_state:"
)

// RedisStore keeps state values in Redis with a TTL and consumes them
// atomically with GETDEL.
type RedisStore struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewRedis(client redis.Cmdable, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Save(ctx context.Context, state string) error {
	if err := s.client.Set(ctx, keyPrefix+state, "1", s.ttl).Err(); err != nil {
		return fmt.Errorf("save oauth state: %w", err)
	}
	return nil
}

// Consume deletes state and reports sentinel.ErrNotFound when it was never
// issued, already used or expired.
func (s *RedisStore) Consume(ctx context.Context, state string) error {
	err := s.client.GetDel(ctx, keyPrefix+state).Err()
	if errors.Is(err, redis.Nil) {
		return fmt.Errorf("oauth state: %w", sentinel.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("consume oauth state: %w", err)
	}
	return nil
}

// MemoryStore is the single-process StateStore used in development and tests.
type MemoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]time.Time
}

func NewMemory(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{ttl: ttl, now: time.Now, entries: make(map[string]time.Time)}
}

func (s *MemoryStore) Save(_ context.Context, state string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for k, exp := range s.entries {
		if !now.Before(exp) {
			delete(s.entries, k)
		}
	}
	s.entries[state] = now.Add(s.ttl)
	return nil
}

func (s *MemoryStore) Consume(_ context.Context, state string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.entries[state]
	delete(s.entries, state)
	if !ok || !s.now().Before(exp) {
		return fmt.Errorf("oauth state: %w", sentinel.ErrNotFound)
	}
	return nil
}
