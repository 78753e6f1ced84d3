// Package cache keeps fetched ledger bundles in Redis. Bundles are immutable
// once attached, so cached entries never need invalidation; the TTL only
// bounds memory.
package cache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"frost/internal/ledger"
	"frost/internal/ledger/metrics"
	"frost/pkg/platform/codec"
)

const (
	bundleKeyPrefix = "ledger:bundle:"
	defaultTTL      = 24 * time.Hour
)

type cachedBundle struct {
	Fragments []string `cbor:"1,keyasint"`
	CachedAt  int64    `cbor:"2,keyasint"`
}

// Gateway wraps a ledger.Gateway with a read-through bundle cache. Cache
// failures are logged and fall through to the wrapped gateway.
type Gateway struct {
	next    ledger.Gateway
	client  *redis.Client
	ttl     time.Duration
	metrics *metrics.Metrics
	logger  *slog.Logger
}

type Option func(*Gateway)

func WithTTL(ttl time.Duration) Option {
	return func(g *Gateway) {
		if ttl > 0 {
			g.ttl = ttl
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Gateway) {
		g.metrics = m
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) {
		if logger != nil {
			g.logger = logger
		}
	}
}

func New(next ledger.Gateway, client *redis.Client, opts ...Option) *Gateway {
	g := &Gateway{
		next:   next,
		client: client,
		ttl:    defaultTTL,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Gateway) DeriveAddress(ctx context.Context, seed string) (string, error) {
	return g.next.DeriveAddress(ctx, seed)
}

func (g *Gateway) Submit(ctx context.Context, seed string, chunks []string, address string) (string, error) {
	return g.next.Submit(ctx, seed, chunks, address)
}

func (g *Gateway) FetchBundle(ctx context.Context, hash string) ([]string, error) {
	key := bundleKeyPrefix + hash
	data, err := g.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var entry cachedBundle
		if decodeErr := codec.Unmarshal(data, &entry); decodeErr == nil {
			g.metrics.IncrementCache("hit")
			return entry.Fragments, nil
		} else {
			g.logger.WarnContext(ctx, "discarding undecodable cached bundle", "bundle", hash, "error", decodeErr)
			g.metrics.IncrementCache("error")
		}
	case errors.Is(err, redis.Nil):
		g.metrics.IncrementCache("miss")
	default:
		g.logger.WarnContext(ctx, "bundle cache read failed", "bundle", hash, "error", err)
		g.metrics.IncrementCache("error")
	}

	fragments, err := g.next.FetchBundle(ctx, hash)
	if err != nil {
		return nil, err
	}
	g.store(ctx, key, fragments)
	return fragments, nil
}

func (g *Gateway) store(ctx context.Context, key string, fragments []string) {
	data, err := codec.Marshal(cachedBundle{Fragments: fragments, CachedAt: time.Now().Unix()})
	if err != nil {
		g.logger.WarnContext(ctx, "encode bundle for cache", "key", key, "error", err)
		return
	}
	if err := g.client.Set(ctx, key, data, g.ttl).Err(); err != nil {
		g.logger.WarnContext(ctx, "bundle cache write failed", "key", key, "error", err)
	}
}
