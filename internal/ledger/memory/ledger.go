// Package memory simulates a ledger network in process. It keeps the
// properties the policy store depends on: records padded to the record size,
// bundles returned in submission order, immutable bundles addressed by hash.
package memory

import (
	"context"
	"encoding/binary"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/crypto/sha3"

	"frost/internal/ledger"
	"frost/internal/ledger/trytes"
)

// HashLength is the tryte length of addresses and bundle hashes.
const HashLength = 81

// Ledger is an in-memory ledger.Gateway.
type Ledger struct {
	mu             sync.RWMutex
	bundles        map[string][]string
	addressIndex   map[string]uint64
	submissions    int
	paddingRecords int
}

type Option func(*Ledger)

// WithPaddingRecords appends n padding-only records to every bundle, the way
// value-less input and remainder transactions show up in real bundles.
func WithPaddingRecords(n int) Option {
	return func(l *Ledger) {
		if n >= 0 {
			l.paddingRecords = n
		}
	}
}

func New(opts ...Option) *Ledger {
	l := &Ledger{
		bundles:      make(map[string][]string),
		addressIndex: make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// DeriveAddress returns the next unused address for seed.
func (l *Ledger) DeriveAddress(_ context.Context, seed string) (string, error) {
	if seed == "" {
		return "", fmt.Errorf("%w: seed is required", ledger.ErrRejected)
	}
	l.mu.Lock()
	index := l.addressIndex[seed]
	l.addressIndex[seed] = index + 1
	l.mu.Unlock()

	var idx [8]byte
	binary.BigEndian.PutUint64(idx[:], index)
	return digest([]byte(seed), idx[:]), nil
}

// Submit stores chunks as one bundle. Each record is padded to
// trytes.MaxChunkSize.
func (l *Ledger) Submit(_ context.Context, seed string, chunks []string, address string) (string, error) {
	if seed == "" || address == "" {
		return "", fmt.Errorf("%w: seed and address are required", ledger.ErrRejected)
	}
	if len(chunks) == 0 {
		return "", fmt.Errorf("%w: empty bundle", ledger.ErrRejected)
	}
	fragments := make([]string, 0, len(chunks)+l.paddingRecords)
	for i, chunk := range chunks {
		if len(chunk) > trytes.MaxChunkSize {
			return "", fmt.Errorf("%w: record %d exceeds %d trytes", ledger.ErrRejected, i, trytes.MaxChunkSize)
		}
		if !trytes.IsValid(chunk) {
			return "", fmt.Errorf("%w: record %d is not trytes", ledger.ErrRejected, i)
		}
		fragments = append(fragments, padRecord(chunk))
	}
	for range l.paddingRecords {
		fragments = append(fragments, padRecord(""))
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.submissions++
	var seq [8]byte
	binary.BigEndian.PutUint64(seq[:], uint64(l.submissions))
	hash := digest([]byte(address), []byte(strings.Join(fragments, "")), seq[:])
	l.bundles[hash] = fragments
	return hash, nil
}

// FetchBundle returns a copy of the bundle's fragments in submission order.
func (l *Ledger) FetchBundle(_ context.Context, hash string) ([]string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	fragments, ok := l.bundles[hash]
	if !ok {
		return nil, ledger.ErrBundleNotFound
	}
	return append([]string(nil), fragments...), nil
}

// Submissions returns how many bundles were accepted.
func (l *Ledger) Submissions() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.submissions
}

func padRecord(chunk string) string {
	return chunk + strings.Repeat(string(trytes.Padding), trytes.MaxChunkSize-len(chunk))
}

// digest hashes parts with Keccak-512 and renders the first HashLength trytes.
func digest(parts ...[]byte) string {
	h := sha3.NewLegacyKeccak512()
	for _, p := range parts {
		h.Write(p)
	}
	return trytes.Encode(string(h.Sum(nil)))[:HashLength]
}
