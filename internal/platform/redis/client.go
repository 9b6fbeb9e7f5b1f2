// Package redis opens the shared Redis client (federated sign-in state) and
// exports its pool statistics.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"

	"eshop/internal/platform/config"
)

// Metrics mirrors the go-redis pool counters.
type Metrics struct {
	hits       prometheus.Counter
	misses     prometheus.Counter
	timeouts   prometheus.Counter
	staleConns prometheus.Counter
	totalConns prometheus.Gauge
	idleConns  prometheus.Gauge
}

func NewMetrics() *Metrics {
	return &Metrics{
		hits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "eshop_redis_pool_hits_total",
			Help: "Number of times a connection was found in the pool",
		}),
		misses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "eshop_redis_pool_misses_total",
			Help: "Number of times a connection was not found in the pool",
		}),
		timeouts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "eshop_redis_pool_timeouts_total",
			Help: "Number of times a connection was not obtained due to timeout",
		}),
		staleConns: promauto.NewCounter(prometheus.CounterOpts{
			Name: "eshop_redis_pool_stale_conns_total",
			Help: "Number of stale connections removed from the pool",
		}),
		totalConns: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "eshop_redis_pool_total_conns",
			Help: "Number of total connections in the pool",
		}),
		idleConns: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "eshop_redis_pool_idle_conns",
			Help: "Number of idle connections in the pool",
		}),
	}
}

// Client wraps the go-redis client with health checking capabilities.
type Client struct {
	*redis.Client
	metrics   *Metrics
	lastStats *redis.PoolStats
}

// New connects to cfg.URL and pings it.
func New(ctx context.Context, cfg config.RedisConfig, metrics *Metrics) (*Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns
	opts.DialTimeout = cfg.DialTimeout
	opts.ReadTimeout = cfg.ReadTimeout
	opts.WriteTimeout = cfg.WriteTimeout

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close() //nolint:errcheck // best-effort cleanup on init failure
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &Client{Client: client, metrics: metrics}, nil
}

func (c *Client) Health(ctx context.Context) error {
	return c.Ping(ctx).Err()
}

// RecordPoolStats updates the pool metrics. Counters advance by the delta
// since the previous call.
func (c *Client) RecordPoolStats() {
	if c.metrics == nil {
		return
	}
	stats := c.PoolStats()
	m := c.metrics
	m.totalConns.Set(float64(stats.TotalConns))
	m.idleConns.Set(float64(stats.IdleConns))

	var last redis.PoolStats
	if c.lastStats != nil {
		last = *c.lastStats
	}
	m.hits.Add(float64(delta(stats.Hits, last.Hits)))
	m.misses.Add(float64(delta(stats.Misses, last.Misses)))
	m.timeouts.Add(float64(delta(stats.Timeouts, last.Timeouts)))
	m.staleConns.Add(float64(delta(stats.StaleConns, last.StaleConns)))
	c.lastStats = stats
}

// RunPoolStats records pool statistics every interval until ctx is done.
func (c *Client) RunPoolStats(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.RecordPoolStats()
		}
	}
}

func delta(now, before uint32) uint32 {
	if now < before {
		return 0
	}
	return now - before
}
