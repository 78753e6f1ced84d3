package sentinel

import "errors"

// Sentinel errors for infrastructure facts. The policy index, the ledger
// gateways and the orphan log return these (optionally wrapped) so the
// policy service can translate them into results or domain errors.
//
//   - ErrNotFound: no record for the key
//   - ErrAlreadyUsed: insert-if-absent lost against an existing record
//   - ErrUnavailable: backing system (node, database, cache) unreachable
//
// Missing request fields are validation failures, see pkg/domain-errors.
var (
	ErrNotFound    = errors.New("not found")
	ErrAlreadyUsed = errors.New("already used")
	ErrUnavailable = errors.New("unavailable")
)
