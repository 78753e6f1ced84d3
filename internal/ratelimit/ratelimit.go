// Package ratelimit limits how many policy store requests a client may make
// in a sliding window.
package ratelimit

import (
	"context"
	"errors"
	"time"

	"frost/internal/ratelimit/metrics"
	"frost/internal/ratelimit/models"
)

// Store counts requests per key in a sliding window.
type Store interface {
	AllowN(ctx context.Context, key string, cost, limit int, window time.Duration) (*models.Result, error)
}

// Limiter applies one limit to every client key of a transport.
type Limiter struct {
	store   Store
	limit   int
	window  time.Duration
	metrics *metrics.Metrics
}

type Option func(*Limiter)

func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Limiter) {
		l.metrics = m
	}
}

func New(store Store, limit int, window time.Duration, opts ...Option) (*Limiter, error) {
	if store == nil {
		return nil, errors.New("rate limit store is required")
	}
	if limit <= 0 || window <= 0 {
		return nil, errors.New("rate limit and window must be positive")
	}
	l := &Limiter{store: store, limit: limit, window: window}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Allow counts one request from client on transport.
func (l *Limiter) Allow(ctx context.Context, transport, client string) (*models.Result, error) {
	result, err := l.store.AllowN(ctx, models.Key(transport, client), 1, l.limit, l.window)
	if err != nil {
		l.metrics.IncrementErrors(transport)
		return nil, err
	}
	if !result.Allowed {
		l.metrics.IncrementRejected(transport)
	}
	return result, nil
}
