package store

import (
	"context"
	"sync"
	"time"

	"frost/internal/policy/models"
)

// InMemoryOrphans records orphaned bundles in memory, keyed by ledger hash.
type InMemoryOrphans struct {
	mu      sync.Mutex
	orphans map[string]*models.OrphanedBundle
	order   []string
}

func NewInMemoryOrphans() *InMemoryOrphans {
	return &InMemoryOrphans{orphans: make(map[string]*models.OrphanedBundle)}
}

// Record stores the orphan. Recording the same ledger hash twice is a no-op.
func (s *InMemoryOrphans) Record(_ context.Context, orphan *models.OrphanedBundle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.orphans[orphan.LedgerHash]; exists {
		return nil
	}
	clone := *orphan
	s.orphans[orphan.LedgerHash] = &clone
	s.order = append(s.order, orphan.LedgerHash)
	return nil
}

// ListUnreconciled returns up to limit pending orphans, oldest first.
func (s *InMemoryOrphans) ListUnreconciled(_ context.Context, limit int) ([]*models.OrphanedBundle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.OrphanedBundle
	for _, hash := range s.order {
		if limit > 0 && len(out) >= limit {
			break
		}
		orphan := s.orphans[hash]
		if orphan.ReconciledAt != nil {
			continue
		}
		clone := *orphan
		out = append(out, &clone)
	}
	return out, nil
}

// MarkReconciled stamps the given orphans and returns how many changed.
func (s *InMemoryOrphans) MarkReconciled(_ context.Context, hashes []string, at time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	marked := 0
	for _, hash := range hashes {
		orphan, ok := s.orphans[hash]
		if !ok || orphan.ReconciledAt != nil {
			continue
		}
		stamp := at
		orphan.ReconciledAt = &stamp
		marked++
	}
	return marked, nil
}

// SettlePolicy stamps every pending orphan of policyID.
func (s *InMemoryOrphans) SettlePolicy(_ context.Context, policyID string, at time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	settled := 0
	for _, hash := range s.order {
		orphan := s.orphans[hash]
		if orphan.PolicyID != policyID || orphan.ReconciledAt != nil {
			continue
		}
		stamp := at
		orphan.ReconciledAt = &stamp
		settled++
	}
	return settled, nil
}
