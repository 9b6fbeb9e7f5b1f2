// Package ratelimit throttles sensitive endpoints per client IP with token
// buckets.
package ratelimit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	DefaultPerMinute   = 10
	DefaultIdleTimeout = 10 * time.Minute
	defaultSweep       = time.Minute
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter keeps one bucket per key. A bucket refills at perMinute tokens a
// minute and holds at most perMinute.
type Limiter struct {
	mu        sync.Mutex
	visitors  map[string]*visitor
	perMinute int
	idle      time.Duration
	now       func() time.Time
	logger    *slog.Logger
}

type Option func(*Limiter)

func WithIdleTimeout(d time.Duration) Option {
	return func(l *Limiter) {
		if d > 0 {
			l.idle = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(l *Limiter) {
		if logger != nil {
			l.logger = logger
		}
	}
}

func New(perMinute int, opts ...Option) *Limiter {
	if perMinute <= 0 {
		perMinute = DefaultPerMinute
	}
	l := &Limiter{
		visitors:  make(map[string]*visitor),
		perMinute: perMinute,
		idle:      DefaultIdleTimeout,
		now:       time.Now,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Result is the outcome of one Allow call.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// Allow takes a token from key's bucket.
func (l *Limiter) Allow(key string) Result {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	v, ok := l.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rate.Limit(l.perMinute)/60, l.perMinute)}
		l.visitors[key] = v
	}
	v.lastSeen = now

	res := Result{Limit: l.perMinute}
	r := v.limiter.ReserveN(now, 1)
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		res.RetryAfter = delay
		return res
	}
	res.Allowed = true
	res.Remaining = max(int(v.limiter.TokensAt(now)), 0)
	return res
}

// Sweep drops buckets idle for longer than the idle timeout and returns
// how many were removed.
func (l *Limiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := l.now().Add(-l.idle)
	removed := 0
	for key, v := range l.visitors {
		if v.lastSeen.Before(cutoff) {
			delete(l.visitors, key)
			removed++
		}
	}
	return removed
}

// Len is the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.visitors)
}

// Start sweeps idle buckets every minute until ctx is done.
func (l *Limiter) Start(ctx context.Context) {
	ticker := time.NewTicker(defaultSweep)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := l.Sweep(); n > 0 {
				l.logger.Debug("rate limit buckets swept", "removed", n)
			}
		}
	}
}
