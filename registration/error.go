package registration

import "fmt"

type ErrorReason string

const (
	REASON_FAILED_TO_TRANSLATE_TO_DB_MODEL ErrorReason = "FAILED_TO_TRANSLATE_TO_DB_MODEL"
	REASON_FAILED_TO_WRITE                 ErrorReason = "FAILED_TO_WRITE"
	REASON_FAILED_TO_FETCH                 ErrorReason = "FAILED_TO_FETCH"
	REASON_REGISTRATION_DOES_NOT_EXIST     ErrorReason = "REGISTRATION_DOES_NOT_EXIST"
	REASON_REGISTRATION_ALREADY_EXISTS     ErrorReason = "REGISTRATION_ALREADY_EXISTS"
	REASON_DUPLICATE_EMAIL                 ErrorReason = "DUPLICATE_EMAIL"
	REASON_CAPACITY_EXCEEDED               ErrorReason = "CAPACITY_EXCEEDED"
	REASON_TEAM_SIZE_NOT_ALLOWED           ErrorReason = "TEAM_SIZE_NOT_ALLOWED"
	REASON_INVALID_CREDENTIALS             ErrorReason = "INVALID_CREDENTIALS"
	REASON_SUBMISSIONS_CLOSED              ErrorReason = "SUBMISSIONS_CLOSED"
	REASON_INVALID_CURSOR                  ErrorReason = "INVALID_CURSOR"
	REASON_TIMEOUT                         ErrorReason = "TIMEOUT"
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

func newRegistrationError(reason ErrorReason, message string, cause error) *Error {
	return &Error{
		Reason:  reason,
		Message: message,
		Cause:   cause,
	}
}

func NewFailedToTranslateToDBModelError(message string, cause error) *Error {
	return newRegistrationError(REASON_FAILED_TO_TRANSLATE_TO_DB_MODEL, message, cause)
}

func NewFailedToWriteError(message string, cause error) *Error {
	return newRegistrationError(REASON_FAILED_TO_WRITE, message, cause)
}

func NewFailedToFetchError(message string, cause error) *Error {
	return newRegistrationError(REASON_FAILED_TO_FETCH, message, cause)
}

func NewRegistrationDoesNotExistError(message string, cause error) *Error {
	return newRegistrationError(REASON_REGISTRATION_DOES_NOT_EXIST, message, cause)
}

func NewRegistrationAlreadyExistsError(message string, cause error) *Error {
	return newRegistrationError(REASON_REGISTRATION_ALREADY_EXISTS, message, cause)
}

func NewDuplicateEmailError(email string) *Error {
	return newRegistrationError(REASON_DUPLICATE_EMAIL, fmt.Sprintf("Email %q already registered", email), nil)
}

func NewCapacityExceededError(message string, cause error) *Error {
	return newRegistrationError(REASON_CAPACITY_EXCEEDED, message, cause)
}

func NewTeamSizeNotAllowedError(size int, cause error) *Error {
	return newRegistrationError(REASON_TEAM_SIZE_NOT_ALLOWED, fmt.Sprintf("No price tier for team size %d", size), cause)
}

func NewInvalidCredentialsError() *Error {
	return newRegistrationError(REASON_INVALID_CREDENTIALS, "Invalid credentials", nil)
}

func NewSubmissionsClosedError() *Error {
	return newRegistrationError(REASON_SUBMISSIONS_CLOSED, "Submissions are currently closed", nil)
}

func NewInvalidCursorError(message string, cause error) *Error {
	return newRegistrationError(REASON_INVALID_CURSOR, message, cause)
}

func NewTimeoutError(message string) *Error {
	return newRegistrationError(REASON_TIMEOUT, message, nil)
}
