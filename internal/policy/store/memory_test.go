package store

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"frost/internal/policy/models"
	"frost/pkg/platform/sentinel"
)

func record(policyID, deviceID string) *models.PolicyRecord {
	return &models.PolicyRecord{
		PolicyID:   policyID,
		DeviceID:   deviceID,
		Owner:      "owner",
		LedgerHash: "HASH" + policyID,
		CreatedAt:  time.Now(),
	}
}

func TestInMemory(t *testing.T) {
	ctx := context.Background()

	t.Run("get unknown policy", func(t *testing.T) {
		_, err := NewInMemory().GetByPolicyID(ctx, "nope")
		require.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("add then get", func(t *testing.T) {
		s := NewInMemory()
		require.NoError(t, s.AddNew(ctx, record("p1", "d1")))

		got, err := s.GetByPolicyID(ctx, "p1")
		require.NoError(t, err)
		assert.Equal(t, "d1", got.DeviceID)
		assert.Equal(t, "HASHp1", got.LedgerHash)

		got.LedgerHash = "mutated"
		again, err := s.GetByPolicyID(ctx, "p1")
		require.NoError(t, err)
		assert.Equal(t, "HASHp1", again.LedgerHash, "returned records are copies")
	})

	t.Run("duplicate policy id is rejected", func(t *testing.T) {
		s := NewInMemory()
		require.NoError(t, s.AddNew(ctx, record("p1", "d1")))
		require.ErrorIs(t, s.AddNew(ctx, record("p1", "d2")), sentinel.ErrAlreadyUsed)

		list, err := s.ListByDeviceID(ctx, "d2")
		require.NoError(t, err)
		assert.Empty(t, list)
	})

	t.Run("list keeps insertion order", func(t *testing.T) {
		s := NewInMemory()
		for _, id := range []string{"c", "a", "b"} {
			require.NoError(t, s.AddNew(ctx, record(id, "d1")))
		}
		require.NoError(t, s.AddNew(ctx, record("x", "d2")))

		list, err := s.ListByDeviceID(ctx, "d1")
		require.NoError(t, err)
		ids := make([]string, len(list))
		for i, r := range list {
			ids[i] = r.PolicyID
		}
		assert.Equal(t, []string{"c", "a", "b"}, ids)
	})

	t.Run("delete all for device", func(t *testing.T) {
		s := NewInMemory()
		require.NoError(t, s.AddNew(ctx, record("p1", "d1")))
		require.NoError(t, s.AddNew(ctx, record("p2", "d1")))
		require.NoError(t, s.AddNew(ctx, record("p3", "d2")))

		n, err := s.DeleteAllForDevice(ctx, "d1")
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		_, err = s.GetByPolicyID(ctx, "p1")
		require.ErrorIs(t, err, sentinel.ErrNotFound)
		_, err = s.GetByPolicyID(ctx, "p3")
		require.NoError(t, err)

		n, err = s.DeleteAllForDevice(ctx, "d1")
		require.NoError(t, err)
		assert.Zero(t, n)

		require.NoError(t, s.AddNew(ctx, record("p1", "d3")), "policy id is free again after delete")
	})

	t.Run("concurrent inserts of one policy id", func(t *testing.T) {
		s := NewInMemory()
		var wg sync.WaitGroup
		var wins, conflicts atomic.Int32
		for range 50 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				switch err := s.AddNew(ctx, record("p1", "d1")); {
				case err == nil:
					wins.Add(1)
				case assert.ErrorIs(t, err, sentinel.ErrAlreadyUsed):
					conflicts.Add(1)
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), wins.Load())
		assert.Equal(t, int32(49), conflicts.Load())
	})
}

func TestInMemoryOrphans(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryOrphans()
	at := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	for _, hash := range []string{"H1", "H2", "H3"} {
		require.NoError(t, s.Record(ctx, &models.OrphanedBundle{LedgerHash: hash, PolicyID: "p" + hash, Reason: models.OrphanReasonIndexFailed}))
	}
	require.NoError(t, s.Record(ctx, &models.OrphanedBundle{LedgerHash: "H1", PolicyID: "other"}))

	pending, err := s.ListUnreconciled(ctx, 2)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "H1", pending[0].LedgerHash)
	assert.Equal(t, "pH1", pending[0].PolicyID, "first record wins")

	n, err := s.MarkReconciled(ctx, []string{"H1", "H3", "missing"}, at)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = s.MarkReconciled(ctx, []string{"H1"}, at)
	require.NoError(t, err)
	assert.Zero(t, n)

	pending, err = s.ListUnreconciled(ctx, 0)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "H2", pending[0].LedgerHash)
}

func TestInMemoryOrphansSettlePolicy(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryOrphans()
	at := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.Record(ctx, &models.OrphanedBundle{LedgerHash: "H1", PolicyID: "p1"}))
	require.NoError(t, s.Record(ctx, &models.OrphanedBundle{LedgerHash: "H2", PolicyID: "p1"}))
	require.NoError(t, s.Record(ctx, &models.OrphanedBundle{LedgerHash: "H3", PolicyID: "p2"}))

	n, err := s.SettlePolicy(ctx, "p1", at)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = s.SettlePolicy(ctx, "p1", at)
	require.NoError(t, err)
	assert.Zero(t, n, "already settled")

	pending, err := s.ListUnreconciled(ctx, 0)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "p2", pending[0].PolicyID)
}
