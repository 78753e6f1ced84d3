package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"frost/internal/ledger/memory"
	"frost/internal/ledger/trytes"
	"frost/internal/policy/metrics"
	"frost/internal/policy/models"
	"frost/internal/policy/service"
	"frost/internal/policy/store"
	"frost/pkg/requestcontext"
)

type failingIndex struct {
	*store.InMemory
	lookupErr error
	// failAdds fails that many AddNew calls before delegating.
	failAdds int
}

func (f *failingIndex) AddNew(ctx context.Context, record *models.PolicyRecord) error {
	if f.failAdds > 0 {
		f.failAdds--
		return errors.New("connection reset")
	}
	return f.InMemory.AddNew(ctx, record)
}

func (f *failingIndex) GetByPolicyID(ctx context.Context, policyID string) (*models.PolicyRecord, error) {
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	return f.InMemory.GetByPolicyID(ctx, policyID)
}

type WorkerSuite struct {
	suite.Suite
	ctx     context.Context
	now     time.Time
	ledger  *memory.Ledger
	index   *failingIndex
	orphans *store.InMemoryOrphans
	metrics *metrics.Metrics
	worker  *Worker
}

func TestWorkerSuite(t *testing.T) {
	suite.Run(t, new(WorkerSuite))
}

func (s *WorkerSuite) SetupTest() {
	s.now = time.Date(2026, 5, 2, 12, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
	s.ledger = memory.New()
	s.index = &failingIndex{InMemory: store.NewInMemory()}
	s.orphans = store.NewInMemoryOrphans()
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.worker = NewWorker(s.orphans, s.index, s.ledger,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithMetrics(s.metrics),
		WithBatchSize(10),
	)
}

// attach submits text to the ledger and records the bundle as orphaned.
func (s *WorkerSuite) attach(policyID, text, reason string) string {
	chunks := trytes.Chunk(trytes.Encode(text), trytes.MaxChunkSize)
	hash, err := s.ledger.Submit(s.ctx, "SEED", chunks, "ADDR")
	s.Require().NoError(err)
	s.Require().NoError(s.orphans.Record(s.ctx, &models.OrphanedBundle{
		LedgerHash: hash,
		PolicyID:   policyID,
		DeviceID:   "d1",
		Owner:      "o1",
		Reason:     reason,
		RecordedAt: s.now.Add(-time.Hour),
	}))
	return hash
}

func envelope(policyID string) string {
	return `{"policyId":"` + policyID + `","deviceId":"d1","owner":"o1","policy":{"policy_id":"` + policyID + `"},"signature":"sig"}`
}

func (s *WorkerSuite) pending() int {
	list, err := s.orphans.ListUnreconciled(s.ctx, 0)
	s.Require().NoError(err)
	return len(list)
}

func (s *WorkerSuite) TestReindexesFailedIndexWrite() {
	hash := s.attach("p1", envelope("p1"), models.OrphanReasonIndexFailed)

	n, err := s.worker.RunOnce(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, n)
	s.Zero(s.pending())

	record, err := s.index.GetByPolicyID(s.ctx, "p1")
	s.Require().NoError(err)
	s.Equal(hash, record.LedgerHash)
	s.Equal("d1", record.DeviceID)
	s.Equal(s.now.Add(-time.Hour), record.CreatedAt)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.Reconciled))
}

func (s *WorkerSuite) TestIndexedPolicyIsSettledWithoutWrite() {
	s.Require().NoError(s.index.AddNew(s.ctx, &models.PolicyRecord{PolicyID: "p1", DeviceID: "d1", LedgerHash: "WINNER"}))
	s.attach("p1", envelope("p1"), models.OrphanReasonIndexFailed)

	n, err := s.worker.RunOnce(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, n)

	record, err := s.index.GetByPolicyID(s.ctx, "p1")
	s.Require().NoError(err)
	s.Equal("WINNER", record.LedgerHash)
	s.Zero(testutil.ToFloat64(s.metrics.Reconciled))
}

func (s *WorkerSuite) TestClearedPolicyStaysClearedAfterRetriedPublish() {
	svc, err := service.New(s.index, s.ledger, "SEED",
		service.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		service.WithOrphanRecorder(s.orphans),
	)
	s.Require().NoError(err)
	req := models.PublishRequest{
		Policy:    json.RawMessage(`{"policy_id":"p1"}`),
		Owner:     "o1",
		DeviceID:  "d1",
		Signature: "sig",
	}

	s.index.failAdds = 1
	result, err := svc.Publish(s.ctx, req)
	s.Require().NoError(err)
	s.Require().Equal(models.StatusFailed, result.Status)
	s.Require().Equal(1, s.pending())

	result, err = svc.Publish(s.ctx, req)
	s.Require().NoError(err)
	s.Require().Equal(models.StatusPublished, result.Status)
	s.Zero(s.pending(), "retried publish settles the earlier orphan")

	result, err = svc.ClearAll(s.ctx, "d1")
	s.Require().NoError(err)
	s.Require().Equal(models.StatusCleared, result.Status)

	n, err := s.worker.RunOnce(s.ctx)
	s.Require().NoError(err)
	s.Zero(n)

	result, err = svc.Retrieve(s.ctx, "p1")
	s.Require().NoError(err)
	s.Equal(models.StatusNotFound, result.Status)
	s.Zero(testutil.ToFloat64(s.metrics.Reconciled))
}

func (s *WorkerSuite) TestLostRaceIsNeverReindexed() {
	s.attach("p1", envelope("p1"), models.OrphanReasonLostRace)

	n, err := s.worker.RunOnce(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, n)

	records, err := s.index.ListByDeviceID(s.ctx, "d1")
	s.Require().NoError(err)
	s.Empty(records)
}

func (s *WorkerSuite) TestMismatchedBundleIsDiscarded() {
	s.attach("p1", envelope("other"), models.OrphanReasonIndexFailed)
	s.attach("p2", `{not json`, models.OrphanReasonIndexFailed)

	n, err := s.worker.RunOnce(s.ctx)
	s.Require().NoError(err)
	s.Equal(2, n)

	records, err := s.index.ListByDeviceID(s.ctx, "d1")
	s.Require().NoError(err)
	s.Empty(records)
}

func (s *WorkerSuite) TestMissingBundleIsSettled() {
	s.Require().NoError(s.orphans.Record(s.ctx, &models.OrphanedBundle{
		LedgerHash: "GONE",
		PolicyID:   "p1",
		Reason:     models.OrphanReasonIndexFailed,
	}))

	n, err := s.worker.RunOnce(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, n)
}

func (s *WorkerSuite) TestLookupFailureLeavesOrphanPending() {
	s.attach("p1", envelope("p1"), models.OrphanReasonIndexFailed)
	s.index.lookupErr = errors.New("db down")

	n, err := s.worker.RunOnce(s.ctx)
	s.Require().NoError(err)
	s.Zero(n)
	s.Equal(1, s.pending())

	s.index.lookupErr = nil
	n, err = s.worker.RunOnce(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, n)
}

func (s *WorkerSuite) TestRunStopsOnCancel() {
	s.attach("p1", envelope("p1"), models.OrphanReasonIndexFailed)
	worker := NewWorker(s.orphans, s.index, s.ledger,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithInterval(5*time.Millisecond),
	)

	ctx, cancel := context.WithCancel(s.ctx)
	done := make(chan error, 1)
	go func() { done <- worker.Run(ctx) }()

	s.Eventually(func() bool {
		_, err := s.index.InMemory.GetByPolicyID(s.ctx, "p1")
		return err == nil
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		s.ErrorIs(err, context.Canceled)
	case <-time.After(time.Second):
		s.Fail("worker did not stop")
	}
}
