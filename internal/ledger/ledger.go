// Package ledger defines the contract between the policy store and the
// append-only ledger network. Implementations live in subpackages: node
// (remote ledger node over HTTP), memory (simulated ledger) and cache
// (read-through bundle cache).
package ledger

import (
	"context"
	"errors"
)

//go:generate mockgen -source=ledger.go -destination=mocks/mocks.go -package=mocks Gateway

// Gateway submits payload chunks as one atomic bundle and fetches bundles
// back. Fragments are returned in ledger order, one per record, padded by the
// ledger to the record size.
type Gateway interface {
	DeriveAddress(ctx context.Context, seed string) (string, error)
	Submit(ctx context.Context, seed string, chunks []string, address string) (string, error)
	FetchBundle(ctx context.Context, hash string) ([]string, error)
}

var (
	// ErrBundleNotFound is returned when the ledger has no bundle for a hash.
	ErrBundleNotFound = errors.New("ledger: bundle not found")
	// ErrRejected is returned when the ledger refuses a submission.
	ErrRejected = errors.New("ledger: submission rejected")
	// ErrUnavailable is returned when the ledger cannot be reached.
	ErrUnavailable = errors.New("ledger: node unavailable")
)
