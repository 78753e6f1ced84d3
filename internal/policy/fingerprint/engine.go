// Package fingerprint computes the policy store id of a device: a digest over
// every policy document the device has published, used by clients to detect
// a stale cached policy list.
package fingerprint

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"golang.org/x/sync/errgroup"

	"frost/internal/ledger/bundle"
	"frost/internal/policy/models"
)

const defaultConcurrency = 8

// RecordLister reads a device's index records in index order.
type RecordLister interface {
	ListByDeviceID(ctx context.Context, deviceID string) ([]*models.PolicyRecord, error)
}

// BundleFetcher fetches the fragments of a ledger bundle.
type BundleFetcher interface {
	FetchBundle(ctx context.Context, hash string) ([]string, error)
}

// Engine computes fingerprints. It is safe for concurrent use.
type Engine struct {
	index       RecordLister
	ledger      BundleFetcher
	mode        FoldMode
	concurrency int
}

type Option func(*Engine)

func WithFoldMode(mode FoldMode) Option {
	return func(e *Engine) {
		e.mode = mode
	}
}

// WithConcurrency bounds how many bundles are fetched at once.
func WithConcurrency(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

func New(index RecordLister, ledger BundleFetcher, opts ...Option) *Engine {
	e := &Engine{
		index:       index,
		ledger:      ledger,
		mode:        FoldLegacy,
		concurrency: defaultConcurrency,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Mode() FoldMode {
	return e.mode
}

// Compute returns "0x" followed by the hex SHA-256 of the folded documents.
func (e *Engine) Compute(ctx context.Context, deviceID string) (string, error) {
	fingerprint, _, err := e.Snapshot(ctx, deviceID)
	return fingerprint, err
}

// Snapshot returns the fingerprint together with the policy ids of the same
// index read, in index order.
func (e *Engine) Snapshot(ctx context.Context, deviceID string) (string, []string, error) {
	records, err := e.index.ListByDeviceID(ctx, deviceID)
	if err != nil {
		return "", nil, fmt.Errorf("list policies for device: %w", err)
	}

	ids := make([]string, 0, len(records))
	hashes := make([]string, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.PolicyID)
		if r.LedgerHash != "" {
			hashes = append(hashes, r.LedgerHash)
		}
	}

	values, err := e.fetchAll(ctx, hashes)
	if err != nil {
		return "", nil, err
	}
	folded, err := e.mode.fold(values)
	if err != nil {
		return "", nil, err
	}
	return Digest(folded), ids, nil
}

// fetchAll reconstructs and parses every bundle. Fetches run concurrently;
// values keep the order of hashes.
func (e *Engine) fetchAll(ctx context.Context, hashes []string) ([]any, error) {
	values := make([]any, len(hashes))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, hash := range hashes {
		g.Go(func() error {
			fragments, err := e.ledger.FetchBundle(ctx, hash)
			if err != nil {
				return fmt.Errorf("fetch bundle %s: %w", hash, err)
			}
			text, err := bundle.Reconstruct(fragments)
			if err != nil {
				return fmt.Errorf("reconstruct bundle %s: %w", hash, err)
			}
			v, err := models.ParseValue(text)
			if err != nil {
				return fmt.Errorf("parse bundle %s: %w", hash, err)
			}
			values[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return values, nil
}

// Digest hashes folded text into a policy store id.
func Digest(folded string) string {
	sum := sha256.Sum256([]byte(folded))
	return "0x" + hex.EncodeToString(sum[:])
}
