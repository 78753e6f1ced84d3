// Package redis opens the shared go-redis pool used by the bundle cache,
// the token revocation list and the rate limiter.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"frost/internal/platform/config"
)

// Client is the shared pool. The embedded client is handed to components
// that need the raw go-redis API.
type Client struct {
	*redis.Client
}

// New dials and pings cfg.URL. An empty URL means Redis is not configured
// and yields a nil client with no error.
func New(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	applyPool(opts, cfg)

	c := &Client{Client: redis.NewClient(opts)}
	if err := c.Health(ctx); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return c, nil
}

func applyPool(opts *redis.Options, cfg config.RedisConfig) {
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if cfg.MinIdleConns > 0 {
		opts.MinIdleConns = cfg.MinIdleConns
	}
	for dst, v := range map[*time.Duration]time.Duration{
		&opts.DialTimeout:  cfg.DialTimeout,
		&opts.ReadTimeout:  cfg.ReadTimeout,
		&opts.WriteTimeout: cfg.WriteTimeout,
	} {
		if v > 0 {
			*dst = v
		}
	}
}

func (c *Client) Health(ctx context.Context) error {
	return c.Ping(ctx).Err()
}

// RegisterPoolMetrics exports the pool counters as frost_redis_pool_*
// series on reg.
func (c *Client) RegisterPoolMetrics(reg prometheus.Registerer) error {
	stats := func(pick func(*redis.PoolStats) uint32) func() float64 {
		return func() float64 { return float64(pick(c.PoolStats())) }
	}
	collectors := []prometheus.Collector{
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "frost_redis_pool_hits_total",
			Help: "Times a free connection was found in the pool.",
		}, stats(func(s *redis.PoolStats) uint32 { return s.Hits })),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "frost_redis_pool_misses_total",
			Help: "Times a new connection had to be dialed.",
		}, stats(func(s *redis.PoolStats) uint32 { return s.Misses })),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "frost_redis_pool_timeouts_total",
			Help: "Times waiting for a connection timed out.",
		}, stats(func(s *redis.PoolStats) uint32 { return s.Timeouts })),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "frost_redis_pool_connections",
			Help: "Open connections in the pool.",
		}, stats(func(s *redis.PoolStats) uint32 { return s.TotalConns })),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "frost_redis_pool_idle_connections",
			Help: "Idle connections in the pool.",
		}, stats(func(s *redis.PoolStats) uint32 { return s.IdleConns })),
	}
	for _, col := range collectors {
		if err := reg.Register(col); err != nil {
			return err
		}
	}
	return nil
}
