package models

// Status is the outcome of a policy store operation.
type Status string

const (
	StatusPublished        Status = "published"
	StatusAlreadyPublished Status = "already_published"
	StatusFound            Status = "found"
	StatusNotFound         Status = "not_found"
	StatusUnchanged        Status = "unchanged"
	StatusChanged          Status = "changed"
	StatusNothingToClear   Status = "nothing_to_clear"
	StatusCleared          Status = "cleared"
	StatusFailed           Status = "failed"
)

// User-facing messages. Internal error detail never reaches callers.
const (
	MsgPolicyAdded            = "Policy added successfully."
	MsgPolicyAlreadyPublished = "Policy already published."
	MsgUnableToAddPolicy      = "Unable to add policy."
	MsgPolicyStoreEmpty       = "Policy store is empty."
	MsgDeletingAllPolicies    = "Deleting all policies."
	MsgUnableToDeletePolicies = "Unable to delete policies."
	MsgPolicyNotFound         = "Policy not found."
	MsgUnableToGetPolicy      = "Unable to get policy."
	MsgOK                     = "OK"
	MsgPolicyStoreNotChanged  = "Policy store not changed."
	MsgUnableToGetPolicies    = "Unable to get policies."

	MsgMissingPolicyIDInsidePolicy = "Missing policy_id inside policy."
	MsgMissingOwner                = "Missing owner."
	MsgMissingDeviceID             = "Missing deviceId."
	MsgMissingSignature            = "Missing signature."
	MsgMissingPolicyID             = "Missing policyId."
	MsgMissingPolicyStoreID        = "Missing policyStoreId."

	MsgMissingBody        = "Missing body."
	MsgMissingCommand     = "Missing command."
	MsgUnsupportedCommand = "Unsupported command."
	MsgMalformedJSON      = "Malformed JSON."
	MsgDeviceMismatch     = "Token does not belong to this device."
)

// Result is what every operation returns once its inputs are valid.
// Payload is a *PolicyDocument for Retrieve and a *PolicyList for ListIDs
// when the store changed; nil otherwise.
type Result struct {
	Status  Status
	IsError bool
	Message string
	Payload any
}

func Success(status Status, message string, payload any) *Result {
	return &Result{Status: status, Message: message, Payload: payload}
}

func Failure(status Status, message string) *Result {
	return &Result{Status: status, IsError: true, Message: message}
}
