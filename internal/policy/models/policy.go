package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrMalformedDocument is returned when reconstructed ledger text is not a
// policy document.
var ErrMalformedDocument = errors.New("malformed policy document")

// PolicyDocument is the envelope written to the ledger. It is immutable once
// published; the ledger copy is the source of truth.
//
// Field order matters: it is the serialization order of the envelope.
type PolicyDocument struct {
	PolicyID  string          `json:"policyId"`
	DeviceID  string          `json:"deviceId"`
	Owner     string          `json:"owner"`
	Policy    json.RawMessage `json:"policy"`
	Signature string          `json:"signature"`
}

// PolicyRecord is the index entry pointing at a published document.
//
// Invariants:
//   - PolicyID is unique across the index
//   - LedgerHash identifies the bundle holding the full document
type PolicyRecord struct {
	PolicyID   string    `json:"policy_id"`
	DeviceID   string    `json:"device_id"`
	Owner      string    `json:"owner"`
	LedgerHash string    `json:"ledger_hash"`
	CreatedAt  time.Time `json:"created_at"`
}

// PublishRequest carries the fields a device sends to publish a policy. The
// policy id is read from Policy's policy_id member.
type PublishRequest struct {
	Policy    json.RawMessage `json:"policy"`
	Owner     string          `json:"owner"`
	DeviceID  string          `json:"deviceId"`
	Signature string          `json:"signature"`
}

// PolicyList is returned by ListIDs when the client's fingerprint is stale.
type PolicyList struct {
	List          []string `json:"list"`
	PolicyStoreID string   `json:"policyStoreId"`
}

// OrphanedBundle is a ledger bundle that was attached but never indexed.
type OrphanedBundle struct {
	LedgerHash   string     `json:"ledger_hash"`
	PolicyID     string     `json:"policy_id"`
	DeviceID     string     `json:"device_id"`
	Owner        string     `json:"owner"`
	Reason       string     `json:"reason"`
	RecordedAt   time.Time  `json:"recorded_at"`
	ReconciledAt *time.Time `json:"reconciled_at,omitempty"`
}

// Orphan reasons.
const (
	OrphanReasonIndexFailed = "index_write_failed"
	OrphanReasonLostRace    = "lost_publish_race"
)

// NewEnvelope builds the ledger envelope for a publish request.
func NewEnvelope(policyID string, req PublishRequest) *PolicyDocument {
	return &PolicyDocument{
		PolicyID:  policyID,
		DeviceID:  req.DeviceID,
		Owner:     req.Owner,
		Policy:    req.Policy,
		Signature: req.Signature,
	}
}

// Marshal renders the envelope as compact JSON without HTML escaping.
func (d *PolicyDocument) Marshal() (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(d); err != nil {
		return "", fmt.Errorf("marshal policy envelope: %w", err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// ExtractPolicyID returns the policy_id member of a policy. A missing,
// empty or non-string id yields "".
func ExtractPolicyID(policy json.RawMessage) string {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(policy, &fields); err != nil {
		return ""
	}
	raw, ok := fields["policy_id"]
	if !ok {
		return ""
	}
	var id string
	if err := json.Unmarshal(raw, &id); err != nil {
		return ""
	}
	return id
}

// TrimPayload drops the NUL bytes and whitespace that padding leaves at the
// end of reconstructed ledger text.
func TrimPayload(text string) string {
	return strings.TrimRight(text, "\x00 \t\r\n")
}

// ParseDocument decodes reconstructed ledger text into a document.
func ParseDocument(text string) (*PolicyDocument, error) {
	var doc PolicyDocument
	if err := json.Unmarshal([]byte(TrimPayload(text)), &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}
	return &doc, nil
}

// ParseValue decodes reconstructed ledger text as an arbitrary JSON value.
func ParseValue(text string) (any, error) {
	var v any
	if err := json.Unmarshal([]byte(TrimPayload(text)), &v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}
	return v, nil
}
