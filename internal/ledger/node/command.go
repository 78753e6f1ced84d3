// Package node talks to a ledger node over its JSON command API, and serves
// that same API in front of any ledger.Gateway.
package node

// APIVersionHeader must accompany every command.
const (
	APIVersionHeader = "X-IOTA-API-Version"
	APIVersion       = "1"
	// APITokenHeader carries the token of a node that requires one.
	APITokenHeader = "X-Admin-Token"
)

// Commands understood by the node.
const (
	CommandGetNewAddress = "getNewAddress"
	CommandSendBundle    = "sendBundle"
	CommandGetBundle     = "getBundle"
)

// Proof-of-work parameters used for every submission.
const (
	DefaultDepth              = 3
	DefaultMinWeightMagnitude = 9
)

type commandRequest struct {
	Command            string   `json:"command"`
	Seed               string   `json:"seed,omitempty"`
	Address            string   `json:"address,omitempty"`
	Chunks             []string `json:"chunks,omitempty"`
	Depth              int      `json:"depth,omitempty"`
	MinWeightMagnitude int      `json:"minWeightMagnitude,omitempty"`
	Bundle             string   `json:"bundle,omitempty"`
}

type addressResponse struct {
	Address string `json:"address"`
}

type sendBundleResponse struct {
	Bundle string `json:"bundle"`
}

type getBundleResponse struct {
	Fragments []string `json:"fragments"`
}

type errorResponse struct {
	Error string `json:"error"`
}
