package store

import (
	"context"
	"sync"

	"frost/internal/policy/models"
	"frost/pkg/platform/sentinel"
)

// InMemory is a policy index for development and tests. Device listings keep
// insertion order.
type InMemory struct {
	mu       sync.RWMutex
	byPolicy map[string]*models.PolicyRecord
	byDevice map[string][]string
}

func NewInMemory() *InMemory {
	return &InMemory{
		byPolicy: make(map[string]*models.PolicyRecord),
		byDevice: make(map[string][]string),
	}
}

func (s *InMemory) GetByPolicyID(_ context.Context, policyID string) (*models.PolicyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.byPolicy[policyID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *record
	return &clone, nil
}

func (s *InMemory) ListByDeviceID(_ context.Context, deviceID string) ([]*models.PolicyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.byDevice[deviceID]
	records := make([]*models.PolicyRecord, 0, len(ids))
	for _, id := range ids {
		clone := *s.byPolicy[id]
		records = append(records, &clone)
	}
	return records, nil
}

// AddNew inserts the record unless its policy id is already indexed.
func (s *InMemory) AddNew(_ context.Context, record *models.PolicyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byPolicy[record.PolicyID]; exists {
		return sentinel.ErrAlreadyUsed
	}
	clone := *record
	s.byPolicy[record.PolicyID] = &clone
	s.byDevice[record.DeviceID] = append(s.byDevice[record.DeviceID], record.PolicyID)
	return nil
}

func (s *InMemory) DeleteAllForDevice(_ context.Context, deviceID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := s.byDevice[deviceID]
	for _, id := range ids {
		delete(s.byPolicy, id)
	}
	delete(s.byDevice, deviceID)
	return len(ids), nil
}
