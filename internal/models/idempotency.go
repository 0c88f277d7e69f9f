package models

import (
	"encoding/json"
	"time"
)

// Prefix of request ids derived by the ledger itself
// Client request ids must not use it
const FeeRequestIDPrefix = "fee:"

const (
	RequestInFlight  = "IN_FLIGHT"
	RequestSucceeded = "SUCCEEDED"
	RequestFailed    = "FAILED"
)

// Outcome of the request processed under the client request id
type IdempotencyRecord struct {
	RequestID   string
	Operation   string
	Fingerprint string
	Status      string

	// Set for succeeded requests
	Payload json.RawMessage

	// Set for failed requests
	ErrorCode    string
	ErrorMessage string

	LockedAt    time.Time
	CompletedAt *time.Time // nil while request is in flight
}

func (r IdempotencyRecord) IsTerminal() bool {
	return r.Status == RequestSucceeded || r.Status == RequestFailed
}
