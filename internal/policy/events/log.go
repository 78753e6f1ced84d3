package events

import (
	"context"
	"log/slog"
)

// LogPublisher writes events to a logger. Used when no broker is configured.
type LogPublisher struct {
	logger *slog.Logger
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, event Event) error {
	p.logger.InfoContext(ctx, "policy event",
		"event_id", event.ID,
		"type", string(event.Type),
		"device_id", event.DeviceID,
		"policy_id", event.PolicyID,
		"ledger_hash", event.LedgerHash,
		"count", event.Count,
		"reason", event.Reason,
		"request_id", event.RequestID,
	)
	return nil
}
