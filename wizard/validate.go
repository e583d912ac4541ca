package wizard

import (
	"fmt"
	"regexp"
	"strings"
)

var emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

const minPhoneDigits = 10

// ValidateStep runs the step's field checks in their fixed order and returns
// nil or a REASON_VALIDATION error carrying the first violated constraint's
// message. The ordering is part of the contract: name before email before
// phone, and so on.
func ValidateStep(step Step, form Form) error {
	switch step {
	case StepLeader:
		return validateLeader(form)
	case StepTeam:
		return validateTeam(form)
	case StepPayment:
		return validatePayment(form)
	default:
		return NewValidationError(fmt.Sprintf("Unknown step %d", step))
	}
}

func validateLeader(form Form) error {
	if strings.TrimSpace(form.Name) == "" {
		return NewValidationError("Leader name is required")
	}
	if !emailRegex.MatchString(form.Email) {
		return NewValidationError("Enter valid email address")
	}
	if countDigits(form.Phone) < minPhoneDigits {
		return NewValidationError("Enter valid mobile number")
	}
	return nil
}

func validateTeam(form Form) error {
	if strings.TrimSpace(form.TeamName) == "" {
		return NewValidationError("Team name is required")
	}

	// Member labels are offset by one because the leader is member 1.
	for i, member := range form.Members {
		if strings.TrimSpace(member.Name) == "" {
			return NewValidationError(fmt.Sprintf("Member %d name required", i+2))
		}
		if !emailRegex.MatchString(member.Email) {
			return NewValidationError(fmt.Sprintf("Member %d email invalid", i+2))
		}
	}

	return nil
}

func validatePayment(form Form) error {
	if form.Screenshot == "" {
		return NewValidationError("Payment screenshot required")
	}
	return nil
}

func countDigits(s string) int {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}
