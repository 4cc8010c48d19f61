package ledgerclient

import (
	"errors"
	"fmt"
)

// TransientError wraps network and timeout failures of read calls. Safe to
// retry.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient ledger fault: %v", e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// RejectedError is a ledger-side validation failure. Not retryable; surfaced
// to the caller.
type RejectedError struct {
	Code    int
	Message string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("ledger rejected request (code %d): %s", e.Code, e.Message)
}

// AmbiguousError is a submit that failed after the request may have been
// sent. The outcome on the ledger is unknown; the caller must re-check state
// before resubmitting.
type AmbiguousError struct {
	Err error
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("submission outcome unknown: %v", e.Err)
}

func (e *AmbiguousError) Unwrap() error { return e.Err }

func IsTransient(err error) bool {
	var t *TransientError
	return errors.As(err, &t)
}

func IsRejected(err error) bool {
	var r *RejectedError
	return errors.As(err, &r)
}

func IsAmbiguous(err error) bool {
	var a *AmbiguousError
	return errors.As(err, &a)
}
