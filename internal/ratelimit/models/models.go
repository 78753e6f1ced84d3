package models

import "time"

// Result is the outcome of one rate limit check.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
	// RetryAfter is the number of seconds until the client may retry.
	RetryAfter int
}

// ExceededResponse is the body of a 429 response.
type ExceededResponse struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retry_after"`
}

const MsgTooManyRequests = "Too many requests. Please try again later."

// Key namespaces a client identifier by transport.
func Key(transport, client string) string {
	if client == "" {
		client = "unknown"
	}
	return "frost:ratelimit:" + transport + ":" + client
}
