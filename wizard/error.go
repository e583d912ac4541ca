package wizard

import "fmt"

type ErrorReason string

const (
	REASON_VALIDATION            ErrorReason = "VALIDATION"
	REASON_SUBMIT_IN_FLIGHT      ErrorReason = "SUBMIT_IN_FLIGHT"
	REASON_NOT_ON_FINAL_STEP     ErrorReason = "NOT_ON_FINAL_STEP"
	REASON_TEAM_SIZE_NOT_ALLOWED ErrorReason = "TEAM_SIZE_NOT_ALLOWED"
	REASON_MACHINE_CLOSED        ErrorReason = "MACHINE_CLOSED"
)

type Error struct {
	Reason  ErrorReason
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Reason, e.Message)
}

func newWizardError(reason ErrorReason, message string) *Error {
	return &Error{
		Reason:  reason,
		Message: message,
	}
}

func NewValidationError(message string) *Error {
	return newWizardError(REASON_VALIDATION, message)
}

func NewSubmitInFlightError() *Error {
	return newWizardError(REASON_SUBMIT_IN_FLIGHT, "A submission is already in progress")
}

func NewNotOnFinalStepError(step Step) *Error {
	return newWizardError(REASON_NOT_ON_FINAL_STEP, fmt.Sprintf("Cannot submit from step %d", step))
}

func NewTeamSizeNotAllowedError(size int) *Error {
	return newWizardError(REASON_TEAM_SIZE_NOT_ALLOWED, fmt.Sprintf("Team size %d is not offered", size))
}

func NewMachineClosedError() *Error {
	return newWizardError(REASON_MACHINE_CLOSED, "Wizard has been closed")
}
