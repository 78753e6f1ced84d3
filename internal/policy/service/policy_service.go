package service

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"frost/internal/ledger/bundle"
	"frost/internal/ledger/trytes"
	"frost/internal/policy/events"
	"frost/internal/policy/models"
	dErrors "frost/pkg/domain-errors"
	"frost/pkg/platform/sentinel"
	"frost/pkg/requestcontext"
)

const (
	opPublish  = "publish"
	opRetrieve = "retrieve"
	opListIDs  = "list_ids"
	opClearAll = "clear_all"
)

// Publish writes the policy envelope to the ledger and indexes it. Publishing
// an already indexed policy id is a successful no-op that never contacts the
// ledger. Missing fields are rejected with a validation error before any I/O;
// every later failure is logged and reported as a failed result.
func (s *Service) Publish(ctx context.Context, req models.PublishRequest) (*models.Result, error) {
	policyID, err := validatePublish(req)
	if err != nil {
		return nil, err
	}

	ctx, span := s.startSpan(ctx, opPublish,
		attribute.String("policy.id", policyID),
		attribute.String("device.id", req.DeviceID),
	)
	defer span.End()
	start := time.Now()

	result := s.publish(ctx, policyID, req)
	s.finish(span, opPublish, result, start)
	return result, nil
}

func (s *Service) publish(ctx context.Context, policyID string, req models.PublishRequest) *models.Result {
	unableToAdd := models.Failure(models.StatusFailed, models.MsgUnableToAddPolicy)

	existing, err := s.index.GetByPolicyID(ctx, policyID)
	switch {
	case err == nil && existing != nil:
		s.logger.InfoContext(ctx, "policy already published",
			"policy_id", policyID,
			"ledger_hash", existing.LedgerHash,
		)
		return models.Success(models.StatusAlreadyPublished, models.MsgPolicyAlreadyPublished, nil)
	case err != nil && !errors.Is(err, sentinel.ErrNotFound):
		s.logger.ErrorContext(ctx, "failed to look up policy before publish",
			"policy_id", policyID,
			"error", err,
		)
		return unableToAdd
	}

	address, err := s.ledger.DeriveAddress(ctx, s.seed)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to derive ledger address", "policy_id", policyID, "error", err)
		return unableToAdd
	}

	text, err := models.NewEnvelope(policyID, req).Marshal()
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to encode policy envelope", "policy_id", policyID, "error", err)
		return unableToAdd
	}
	chunks := trytes.Chunk(trytes.Encode(text), trytes.MaxChunkSize)

	hash, err := s.ledger.Submit(ctx, s.seed, chunks, address)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to submit policy bundle",
			"policy_id", policyID,
			"records", len(chunks),
			"error", err,
		)
		return unableToAdd
	}
	s.metrics.ObservePublishedRecords(len(chunks))

	record := &models.PolicyRecord{
		PolicyID:   policyID,
		DeviceID:   req.DeviceID,
		Owner:      req.Owner,
		LedgerHash: hash,
		CreatedAt:  requestcontext.Now(ctx),
	}
	if err := s.index.AddNew(ctx, record); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			// A concurrent publish of the same policy id won the insert.
			s.recordOrphan(ctx, record, models.OrphanReasonLostRace, err)
			return models.Success(models.StatusAlreadyPublished, models.MsgPolicyAlreadyPublished, nil)
		}
		s.recordOrphan(ctx, record, models.OrphanReasonIndexFailed, err)
		return unableToAdd
	}
	s.settleOrphans(ctx, policyID)

	s.logger.InfoContext(ctx, "policy published",
		"policy_id", policyID,
		"device_id", req.DeviceID,
		"ledger_hash", hash,
		"records", len(chunks),
	)
	event := events.New(ctx, events.TypePolicyPublished, req.DeviceID)
	event.PolicyID = policyID
	event.LedgerHash = hash
	s.emit(ctx, event)

	return models.Success(models.StatusPublished, models.MsgPolicyAdded, nil)
}

func (s *Service) recordOrphan(ctx context.Context, record *models.PolicyRecord, reason string, cause error) {
	s.logger.WarnContext(ctx, "ledger bundle attached without index record",
		"policy_id", record.PolicyID,
		"ledger_hash", record.LedgerHash,
		"reason", reason,
		"error", cause,
	)
	s.metrics.IncrementOrphaned(reason)

	if s.orphans != nil {
		orphan := &models.OrphanedBundle{
			LedgerHash: record.LedgerHash,
			PolicyID:   record.PolicyID,
			DeviceID:   record.DeviceID,
			Owner:      record.Owner,
			Reason:     reason,
			RecordedAt: requestcontext.Now(ctx),
		}
		if err := s.orphans.Record(ctx, orphan); err != nil {
			s.logger.ErrorContext(ctx, "failed to record orphaned bundle",
				"ledger_hash", record.LedgerHash,
				"error", err,
			)
		}
	}

	event := events.New(ctx, events.TypeBundleOrphaned, record.DeviceID)
	event.PolicyID = record.PolicyID
	event.LedgerHash = record.LedgerHash
	event.Reason = reason
	s.emit(ctx, event)
}

// settleOrphans closes bundles left by earlier failed attempts at policyID.
// A failure only delays settling; the worker skips indexed policy ids.
func (s *Service) settleOrphans(ctx context.Context, policyID string) {
	if s.orphans == nil {
		return
	}
	n, err := s.orphans.SettlePolicy(ctx, policyID, requestcontext.Now(ctx))
	if err != nil {
		s.logger.WarnContext(ctx, "failed to settle orphaned bundles",
			"policy_id", policyID,
			"error", err,
		)
		return
	}
	if n > 0 {
		s.logger.InfoContext(ctx, "orphaned bundles superseded by publish",
			"policy_id", policyID,
			"count", n,
		)
	}
}

// Retrieve reads a policy document back from the ledger.
func (s *Service) Retrieve(ctx context.Context, policyID string) (*models.Result, error) {
	if policyID == "" {
		return nil, dErrors.New(dErrors.CodeValidation, models.MsgMissingPolicyID)
	}

	ctx, span := s.startSpan(ctx, opRetrieve, attribute.String("policy.id", policyID))
	defer span.End()
	start := time.Now()

	result := s.retrieve(ctx, policyID)
	s.finish(span, opRetrieve, result, start)
	return result, nil
}

func (s *Service) retrieve(ctx context.Context, policyID string) *models.Result {
	notFound := models.Failure(models.StatusNotFound, models.MsgPolicyNotFound)
	unableToGet := models.Failure(models.StatusFailed, models.MsgUnableToGetPolicy)

	record, err := s.index.GetByPolicyID(ctx, policyID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return notFound
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to look up policy", "policy_id", policyID, "error", err)
		return unableToGet
	}
	if record == nil || record.LedgerHash == "" {
		return notFound
	}

	fragments, err := s.ledger.FetchBundle(ctx, record.LedgerHash)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to fetch policy bundle",
			"policy_id", policyID,
			"ledger_hash", record.LedgerHash,
			"error", err,
		)
		return unableToGet
	}
	text, err := bundle.Reconstruct(fragments)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to reconstruct policy bundle",
			"policy_id", policyID,
			"ledger_hash", record.LedgerHash,
			"error", err,
		)
		return unableToGet
	}
	doc, err := models.ParseDocument(text)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to parse policy document",
			"policy_id", policyID,
			"ledger_hash", record.LedgerHash,
			"error", err,
		)
		return unableToGet
	}
	return models.Success(models.StatusFound, "", doc)
}

// ListIDs compares the client's policy store id with the current one. When
// they match no list is returned; otherwise the ordered policy ids and the
// fresh policy store id are.
func (s *Service) ListIDs(ctx context.Context, deviceID, clientFingerprint string) (*models.Result, error) {
	if deviceID == "" {
		return nil, dErrors.New(dErrors.CodeValidation, models.MsgMissingDeviceID)
	}
	if clientFingerprint == "" {
		return nil, dErrors.New(dErrors.CodeValidation, models.MsgMissingPolicyStoreID)
	}

	ctx, span := s.startSpan(ctx, opListIDs, attribute.String("device.id", deviceID))
	defer span.End()
	start := time.Now()

	var result *models.Result
	fp, ids, err := s.fingerprints.Snapshot(ctx, deviceID)
	switch {
	case err != nil:
		failed(span, err)
		s.logger.ErrorContext(ctx, "failed to compute policy store id", "device_id", deviceID, "error", err)
		result = models.Failure(models.StatusFailed, models.MsgUnableToGetPolicies)
	case fp == clientFingerprint:
		result = models.Success(models.StatusUnchanged, models.MsgPolicyStoreNotChanged, nil)
	default:
		if ids == nil {
			ids = []string{}
		}
		result = models.Success(models.StatusChanged, "", &models.PolicyList{List: ids, PolicyStoreID: fp})
	}
	s.finish(span, opListIDs, result, start)
	return result, nil
}

// ClearAll removes every index record of a device. Ledger bundles are
// immutable and stay where they are.
func (s *Service) ClearAll(ctx context.Context, deviceID string) (*models.Result, error) {
	if deviceID == "" {
		return nil, dErrors.New(dErrors.CodeValidation, models.MsgMissingDeviceID)
	}

	ctx, span := s.startSpan(ctx, opClearAll, attribute.String("device.id", deviceID))
	defer span.End()
	start := time.Now()

	result := s.clearAll(ctx, deviceID)
	s.finish(span, opClearAll, result, start)
	return result, nil
}

func (s *Service) clearAll(ctx context.Context, deviceID string) *models.Result {
	unableToDelete := models.Failure(models.StatusFailed, models.MsgUnableToDeletePolicies)

	records, err := s.index.ListByDeviceID(ctx, deviceID)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to list policies for clear", "device_id", deviceID, "error", err)
		return unableToDelete
	}
	if len(records) == 0 {
		return models.Success(models.StatusNothingToClear, models.MsgPolicyStoreEmpty, nil)
	}

	removed, err := s.index.DeleteAllForDevice(ctx, deviceID)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to delete policies", "device_id", deviceID, "error", err)
		return unableToDelete
	}

	s.logger.InfoContext(ctx, "policies cleared", "device_id", deviceID, "removed", removed)
	event := events.New(ctx, events.TypePolicyCleared, deviceID)
	event.Count = removed
	s.emit(ctx, event)

	return models.Success(models.StatusCleared, models.MsgDeletingAllPolicies, nil)
}

func validatePublish(req models.PublishRequest) (string, error) {
	if len(req.Policy) == 0 || string(req.Policy) == "null" {
		return "", dErrors.New(dErrors.CodeValidation, models.MsgMissingPolicyIDInsidePolicy)
	}
	if req.Owner == "" {
		return "", dErrors.New(dErrors.CodeValidation, models.MsgMissingOwner)
	}
	if req.DeviceID == "" {
		return "", dErrors.New(dErrors.CodeValidation, models.MsgMissingDeviceID)
	}
	if req.Signature == "" {
		return "", dErrors.New(dErrors.CodeValidation, models.MsgMissingSignature)
	}
	policyID := models.ExtractPolicyID(req.Policy)
	if policyID == "" {
		return "", dErrors.New(dErrors.CodeValidation, models.MsgMissingPolicyIDInsidePolicy)
	}
	return policyID, nil
}
