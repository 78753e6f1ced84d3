// Package events publishes policy store domain events.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"frost/pkg/requestcontext"
)

type Type string

const (
	TypePolicyPublished Type = "policy.published"
	TypePolicyCleared   Type = "policy.cleared"
	TypeBundleOrphaned  Type = "ledger.bundle_orphaned"
)

// Event is a fact about the policy store. Count is the number of removed
// records for TypePolicyCleared; Reason is set for TypeBundleOrphaned.
type Event struct {
	ID         string    `cbor:"1,keyasint" json:"id"`
	Type       Type      `cbor:"2,keyasint" json:"type"`
	DeviceID   string    `cbor:"3,keyasint" json:"device_id"`
	PolicyID   string    `cbor:"4,keyasint,omitempty" json:"policy_id,omitempty"`
	LedgerHash string    `cbor:"5,keyasint,omitempty" json:"ledger_hash,omitempty"`
	Count      int       `cbor:"6,keyasint,omitempty" json:"count,omitempty"`
	Reason     string    `cbor:"7,keyasint,omitempty" json:"reason,omitempty"`
	RequestID  string    `cbor:"8,keyasint,omitempty" json:"request_id,omitempty"`
	OccurredAt time.Time `cbor:"9,keyasint" json:"occurred_at"`
}

// New stamps an event with an id, the request time and the request id.
func New(ctx context.Context, typ Type, deviceID string) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       typ,
		DeviceID:   deviceID,
		RequestID:  requestcontext.RequestID(ctx),
		OccurredAt: requestcontext.Now(ctx),
	}
}

// Publisher delivers events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}
