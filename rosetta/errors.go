package rosetta

import (
	"fmt"
)

// Error is the structured error every endpoint returns. Retriable tells the
// caller whether the same request may succeed later.
type Error struct {
	Code      int32                  `json:"code"`
	Message   string                 `json:"message"`
	Retriable bool                   `json:"retriable"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("rosetta error %d: %s", e.Code, e.Message)
}

// WithDetail returns a copy carrying extra context; the code table stays
// immutable.
func (e *Error) WithDetail(key string, value interface{}) *Error {
	clone := *e
	clone.Details = map[string]interface{}{}
	for k, v := range e.Details {
		clone.Details[k] = v
	}
	clone.Details[key] = value
	return &clone
}

// Fixed error code table, also reported by /network/options.
var (
	ErrInvalidRequest      = &Error{Code: 100, Message: "Request format is invalid", Retriable: false}
	ErrUnsupportedNetwork  = &Error{Code: 101, Message: "Network identifier is not served by this gateway", Retriable: false}
	ErrInvalidAccount      = &Error{Code: 102, Message: "Account identifier is invalid", Retriable: false}
	ErrInvalidCurve        = &Error{Code: 103, Message: "Public key curve type is not supported", Retriable: false}
	ErrInvalidAmount       = &Error{Code: 104, Message: "Amount is not a valid decimal integer", Retriable: false}
	ErrInvalidOperations   = &Error{Code: 105, Message: "Operation set does not describe a supported transaction", Retriable: false}
	ErrBlockNotFound       = &Error{Code: 200, Message: "Block could not be found", Retriable: false}
	ErrTransactionNotFound = &Error{Code: 201, Message: "Transaction could not be found", Retriable: false}
	ErrNotSynced           = &Error{Code: 300, Message: "Gateway has not synced any blocks yet", Retriable: true}
	ErrSyncHalted          = &Error{Code: 301, Message: "Sync engine halted on an integrity fault", Retriable: false}
	ErrLedgerRejected      = &Error{Code: 400, Message: "Ledger rejected the transaction", Retriable: false}
	ErrAmbiguousSubmission = &Error{Code: 401, Message: "Submission outcome unknown, re-query before resubmitting", Retriable: true}
	ErrStaleMetadata       = &Error{Code: 402, Message: "Construction metadata is stale", Retriable: false}
	ErrInvalidSignature    = &Error{Code: 403, Message: "Signature is invalid for the signing payload", Retriable: false}
	ErrInternal            = &Error{Code: 500, Message: "Internal gateway fault", Retriable: true}
	ErrLedgerUnavailable   = &Error{Code: 501, Message: "Ledger service is unreachable", Retriable: true}
)

// AllErrors lists every error the gateway can return, for /network/options.
func AllErrors() []*Error {
	return []*Error{
		ErrInvalidRequest, ErrUnsupportedNetwork, ErrInvalidAccount,
		ErrInvalidCurve, ErrInvalidAmount, ErrInvalidOperations,
		ErrBlockNotFound, ErrTransactionNotFound,
		ErrNotSynced, ErrSyncHalted,
		ErrLedgerRejected, ErrAmbiguousSubmission, ErrStaleMetadata, ErrInvalidSignature,
		ErrInternal, ErrLedgerUnavailable,
	}
}
