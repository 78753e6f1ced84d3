// Package reconcile re-indexes ledger bundles whose index write failed after
// the bundle was attached.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"frost/internal/ledger"
	"frost/internal/ledger/bundle"
	"frost/internal/policy/metrics"
	"frost/internal/policy/models"
	"frost/pkg/platform/sentinel"
	"frost/pkg/requestcontext"
)

const (
	defaultInterval  = time.Minute
	defaultBatchSize = 100
)

// OrphanStore lists and settles orphaned bundles.
type OrphanStore interface {
	ListUnreconciled(ctx context.Context, limit int) ([]*models.OrphanedBundle, error)
	MarkReconciled(ctx context.Context, hashes []string, at time.Time) (int, error)
}

// Index is the subset of the policy index the worker writes to.
type Index interface {
	GetByPolicyID(ctx context.Context, policyID string) (*models.PolicyRecord, error)
	AddNew(ctx context.Context, record *models.PolicyRecord) error
}

// Worker periodically settles orphaned bundles.
//
// An orphan left by a failed index write is re-indexed when its policy id is
// still free and the bundle on the ledger holds the same policy. An orphan
// from a lost publish race is settled without writing: the winning record
// already covers the policy id, and re-adding after a clear would resurrect a
// deleted policy.
type Worker struct {
	orphans   OrphanStore
	index     Index
	ledger    ledger.Gateway
	interval  time.Duration
	batchSize int
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

type Option func(*Worker)

func WithInterval(d time.Duration) Option {
	return func(w *Worker) {
		if d > 0 {
			w.interval = d
		}
	}
}

func WithBatchSize(n int) Option {
	return func(w *Worker) {
		if n > 0 {
			w.batchSize = n
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) {
		w.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(w *Worker) {
		w.metrics = m
	}
}

func NewWorker(orphans OrphanStore, index Index, gateway ledger.Gateway, opts ...Option) *Worker {
	w := &Worker{
		orphans:   orphans,
		index:     index,
		ledger:    gateway,
		interval:  defaultInterval,
		batchSize: defaultBatchSize,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = slog.Default()
	}
	return w
}

// Run reconciles on every tick until ctx is cancelled. A failed pass is
// logged and retried on the next tick.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := w.RunOnce(ctx); err != nil && ctx.Err() == nil {
				w.logger.ErrorContext(ctx, "reconcile pass failed", "error", err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// RunOnce settles one batch of orphans and returns how many were settled.
// Orphans whose ledger or index access fails stay pending.
func (w *Worker) RunOnce(ctx context.Context) (int, error) {
	pending, err := w.orphans.ListUnreconciled(ctx, w.batchSize)
	if err != nil {
		return 0, fmt.Errorf("list orphaned bundles: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	settled := make([]string, 0, len(pending))
	for _, orphan := range pending {
		ok, err := w.settle(ctx, orphan)
		if err != nil {
			w.logger.WarnContext(ctx, "orphaned bundle left pending",
				"ledger_hash", orphan.LedgerHash,
				"policy_id", orphan.PolicyID,
				"error", err,
			)
			continue
		}
		if ok {
			settled = append(settled, orphan.LedgerHash)
		}
	}
	if len(settled) == 0 {
		return 0, nil
	}

	n, err := w.orphans.MarkReconciled(ctx, settled, requestcontext.Now(ctx))
	if err != nil {
		return 0, fmt.Errorf("mark orphaned bundles reconciled: %w", err)
	}
	w.logger.InfoContext(ctx, "orphaned bundles reconciled", "count", n, "pending", len(pending)-n)
	return n, nil
}

func (w *Worker) settle(ctx context.Context, orphan *models.OrphanedBundle) (bool, error) {
	if orphan.Reason != models.OrphanReasonIndexFailed {
		return true, nil
	}

	_, err := w.index.GetByPolicyID(ctx, orphan.PolicyID)
	switch {
	case err == nil:
		return true, nil
	case !errors.Is(err, sentinel.ErrNotFound):
		return false, fmt.Errorf("look up policy: %w", err)
	}

	fragments, err := w.ledger.FetchBundle(ctx, orphan.LedgerHash)
	if errors.Is(err, ledger.ErrBundleNotFound) {
		w.logger.WarnContext(ctx, "orphaned bundle missing from ledger", "ledger_hash", orphan.LedgerHash)
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("fetch bundle: %w", err)
	}
	text, err := bundle.Reconstruct(fragments)
	if err != nil {
		w.discard(ctx, orphan, err)
		return true, nil
	}
	doc, err := models.ParseDocument(text)
	if err != nil {
		w.discard(ctx, orphan, err)
		return true, nil
	}
	if doc.PolicyID != orphan.PolicyID {
		w.discard(ctx, orphan, fmt.Errorf("bundle holds policy %q", doc.PolicyID))
		return true, nil
	}

	record := &models.PolicyRecord{
		PolicyID:   orphan.PolicyID,
		DeviceID:   doc.DeviceID,
		Owner:      doc.Owner,
		LedgerHash: orphan.LedgerHash,
		CreatedAt:  orphan.RecordedAt,
	}
	if err := w.index.AddNew(ctx, record); err != nil && !errors.Is(err, sentinel.ErrAlreadyUsed) {
		return false, fmt.Errorf("index policy: %w", err)
	}
	w.metrics.IncrementReconciled()
	w.logger.InfoContext(ctx, "orphaned bundle re-indexed",
		"policy_id", orphan.PolicyID,
		"ledger_hash", orphan.LedgerHash,
	)
	return true, nil
}

// discard settles an orphan whose bundle cannot be indexed.
func (w *Worker) discard(ctx context.Context, orphan *models.OrphanedBundle, cause error) {
	w.logger.WarnContext(ctx, "orphaned bundle not indexable",
		"ledger_hash", orphan.LedgerHash,
		"policy_id", orphan.PolicyID,
		"error", cause,
	)
}
