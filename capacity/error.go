package capacity

import "fmt"

type ErrorReason string

const (
	REASON_FULL            ErrorReason = "FULL"
	REASON_FAILED_TO_FETCH ErrorReason = "FAILED_TO_FETCH"
	REASON_FAILED_TO_WRITE ErrorReason = "FAILED_TO_WRITE"
	REASON_TIMEOUT         ErrorReason = "TIMEOUT"
)

type Error struct {
	Reason  ErrorReason
	Message string
	Cause   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s. Cause: %s", e.Reason, e.Message, e.Cause)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func newCapacityError(reason ErrorReason, message string, cause error) *Error {
	return &Error{
		Reason:  reason,
		Message: message,
		Cause:   cause,
	}
}

func NewFullError(ledgerID string) *Error {
	return newCapacityError(REASON_FULL, fmt.Sprintf("Ledger %q has no remaining capacity", ledgerID), nil)
}

func NewFailedToFetchError(message string, cause error) *Error {
	return newCapacityError(REASON_FAILED_TO_FETCH, message, cause)
}

func NewFailedToWriteError(message string, cause error) *Error {
	return newCapacityError(REASON_FAILED_TO_WRITE, message, cause)
}

func NewTimeoutError(message string) *Error {
	return newCapacityError(REASON_TIMEOUT, message, nil)
}
