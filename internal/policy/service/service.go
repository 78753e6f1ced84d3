package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"frost/internal/ledger"
	"frost/internal/policy/events"
	"frost/internal/policy/fingerprint"
	"frost/internal/policy/metrics"
	"frost/internal/policy/models"
)

const tracerName = "frost/internal/policy/service"

// PolicyIndex is the secondary index over published policies.
// GetByPolicyID returns sentinel.ErrNotFound when no record exists. AddNew is
// an atomic insert-if-absent returning sentinel.ErrAlreadyUsed when a record
// with the same policy id exists. ListByDeviceID returns records in index
// order.
type PolicyIndex interface {
	GetByPolicyID(ctx context.Context, policyID string) (*models.PolicyRecord, error)
	ListByDeviceID(ctx context.Context, deviceID string) ([]*models.PolicyRecord, error)
	AddNew(ctx context.Context, record *models.PolicyRecord) error
	DeleteAllForDevice(ctx context.Context, deviceID string) (int, error)
}

// OrphanRecorder keeps ledger bundles that were attached but never indexed.
// SettlePolicy closes the pending orphans of a policy id once a later
// publish indexed it, so reconciliation cannot write them back after a clear.
type OrphanRecorder interface {
	Record(ctx context.Context, orphan *models.OrphanedBundle) error
	SettlePolicy(ctx context.Context, policyID string, at time.Time) (int, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

// Service implements the policy store operations on top of a ledger gateway
// and a policy index.
type Service struct {
	index        PolicyIndex
	ledger       ledger.Gateway
	seed         string
	foldMode     fingerprint.FoldMode
	fingerprints *fingerprint.Engine
	orphans      OrphanRecorder
	events       EventPublisher
	logger       *slog.Logger
	metrics      *metrics.Metrics
	tracer       trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithFoldMode selects how documents are folded into the policy store id.
func WithFoldMode(mode fingerprint.FoldMode) Option {
	return func(s *Service) {
		s.foldMode = mode
	}
}

func WithOrphanRecorder(r OrphanRecorder) Option {
	return func(s *Service) {
		s.orphans = r
	}
}

func WithEventPublisher(p EventPublisher) Option {
	return func(s *Service) {
		s.events = p
	}
}

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) {
		if tp != nil {
			s.tracer = tp.Tracer(tracerName)
		}
	}
}

// New constructs a Service. seed is the ledger account every bundle is
// attached from.
func New(index PolicyIndex, gateway ledger.Gateway, seed string, opts ...Option) (*Service, error) {
	if index == nil {
		return nil, errors.New("policy index is required")
	}
	if gateway == nil {
		return nil, errors.New("ledger gateway is required")
	}
	if seed == "" {
		return nil, errors.New("ledger seed is required")
	}
	s := &Service{
		index:    index,
		ledger:   gateway,
		seed:     seed,
		foldMode: fingerprint.FoldLegacy,
		logger:   slog.Default(),
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.fingerprints = fingerprint.New(index, gateway, fingerprint.WithFoldMode(s.foldMode))
	return s, nil
}

// FoldMode reports the fold mode the policy store id is computed with.
func (s *Service) FoldMode() fingerprint.FoldMode {
	return s.fingerprints.Mode()
}

func (s *Service) startSpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "policy."+operation, trace.WithAttributes(attrs...))
}

// finish records the outcome of an operation on its span and in metrics.
func (s *Service) finish(span trace.Span, operation string, result *models.Result, start time.Time) {
	span.SetAttributes(attribute.String("policy.status", string(result.Status)))
	if result.Status == models.StatusFailed {
		span.SetStatus(codes.Error, result.Message)
	}
	s.metrics.IncrementOperation(operation, string(result.Status))
	s.metrics.ObserveOperationLatency(operation, time.Since(start))
}

func (s *Service) emit(ctx context.Context, event events.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to publish policy event",
			"type", string(event.Type),
			"device_id", event.DeviceID,
			"error", err,
		)
	}
}

func failed(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, fmt.Sprint(err))
}
