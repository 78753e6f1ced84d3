//go:build integration

package store_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"frost/internal/policy/models"
	"frost/internal/policy/store"
	"frost/pkg/platform/sentinel"
	"frost/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
	orphans  *store.PostgresOrphans
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.Require().NoError(store.Migrate(context.Background(), s.postgres.DB))
	s.Require().NoError(store.Migrate(context.Background(), s.postgres.DB), "migration is idempotent")
	s.store = store.NewPostgres(s.postgres.DB)
	s.orphans = store.NewPostgresOrphans(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "policies", "orphaned_bundles"))
}

func newRecord(policyID, deviceID string) *models.PolicyRecord {
	return &models.PolicyRecord{
		PolicyID:   policyID,
		DeviceID:   deviceID,
		Owner:      "owner-" + deviceID,
		LedgerHash: "HASH" + policyID,
		CreatedAt:  time.Now().UTC().Truncate(time.Microsecond),
	}
}

func (s *PostgresStoreSuite) TestAddGetListDelete() {
	ctx := context.Background()

	_, err := s.store.GetByPolicyID(ctx, "missing")
	s.Require().ErrorIs(err, sentinel.ErrNotFound)

	for _, id := range []string{"p3", "p1", "p2"} {
		s.Require().NoError(s.store.AddNew(ctx, newRecord(id, "d1")))
	}
	s.Require().NoError(s.store.AddNew(ctx, newRecord("q1", "d2")))

	got, err := s.store.GetByPolicyID(ctx, "p1")
	s.Require().NoError(err)
	s.Equal("d1", got.DeviceID)
	s.Equal("HASHp1", got.LedgerHash)

	list, err := s.store.ListByDeviceID(ctx, "d1")
	s.Require().NoError(err)
	s.Require().Len(list, 3)
	s.Equal("p3", list[0].PolicyID)
	s.Equal("p1", list[1].PolicyID)
	s.Equal("p2", list[2].PolicyID)

	n, err := s.store.DeleteAllForDevice(ctx, "d1")
	s.Require().NoError(err)
	s.Equal(3, n)

	list, err = s.store.ListByDeviceID(ctx, "d1")
	s.Require().NoError(err)
	s.Empty(list)
}

// TestConcurrentAddNew verifies the insert-if-absent holds under contention.
func (s *PostgresStoreSuite) TestConcurrentAddNew() {
	ctx := context.Background()
	policyID := "race-" + uuid.NewString()
	const goroutines = 50

	var wg sync.WaitGroup
	var successCount, conflictCount atomic.Int32
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.store.AddNew(ctx, newRecord(policyID, "d1"))
			if err == nil {
				successCount.Add(1)
			} else if s.ErrorIs(err, sentinel.ErrAlreadyUsed) {
				conflictCount.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), successCount.Load())
	s.Equal(int32(goroutines-1), conflictCount.Load())
}

func (s *PostgresStoreSuite) TestOrphans() {
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Second)

	for i, hash := range []string{"H1", "H2", "H3"} {
		s.Require().NoError(s.orphans.Record(ctx, &models.OrphanedBundle{
			LedgerHash: hash,
			PolicyID:   "p" + hash,
			DeviceID:   "d1",
			Owner:      "o1",
			Reason:     models.OrphanReasonIndexFailed,
			RecordedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}
	s.Require().NoError(s.orphans.Record(ctx, &models.OrphanedBundle{
		LedgerHash: "H1", PolicyID: "dup", DeviceID: "d1", Owner: "o1", Reason: "x", RecordedAt: base,
	}))

	pending, err := s.orphans.ListUnreconciled(ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(pending, 3)
	s.Equal("pH1", pending[0].PolicyID)

	n, err := s.orphans.MarkReconciled(ctx, []string{"H1", "H2"}, base.Add(time.Minute))
	s.Require().NoError(err)
	s.Equal(2, n)

	pending, err = s.orphans.ListUnreconciled(ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(pending, 1)
	s.Equal("H3", pending[0].LedgerHash)

	n, err = s.orphans.SettlePolicy(ctx, "pH3", base.Add(2*time.Minute))
	s.Require().NoError(err)
	s.Equal(1, n)
	n, err = s.orphans.SettlePolicy(ctx, "pH3", base.Add(3*time.Minute))
	s.Require().NoError(err)
	s.Zero(n)

	pending, err = s.orphans.ListUnreconciled(ctx, 10)
	s.Require().NoError(err)
	s.Empty(pending)
}
