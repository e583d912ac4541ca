// Package pricing holds the static team-size price table for the event.
package pricing

import (
	"fmt"

	"github.com/Rhymond/go-money"
)

// Tier is the amount a team pays and the payment QR image shown for it.
type Tier struct {
	Price         *money.Money
	ProofImageRef string
}

// Prices are in INR minor units.
var tiers = map[int]Tier{
	2: {Price: money.New(30000, money.INR), ProofImageRef: "/assets/images/QR/qr2.png"},
	3: {Price: money.New(45000, money.INR), ProofImageRef: "/assets/images/QR/qr3.png"},
}

type ErrorReason string

const (
	REASON_TEAM_SIZE_NOT_ALLOWED ErrorReason = "TEAM_SIZE_NOT_ALLOWED"
)

type Error struct {
	Reason  ErrorReason
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Reason, e.Message)
}

func NewTeamSizeNotAllowedError(size int) *Error {
	return &Error{
		Reason:  REASON_TEAM_SIZE_NOT_ALLOWED,
		Message: fmt.Sprintf("No price tier defined for team size %d", size),
	}
}

// TierForSize returns the price tier for a team size. Sizes outside the
// table are rejected explicitly rather than treated as free.
func TierForSize(size int) (Tier, error) {
	tier, ok := tiers[size]
	if !ok {
		return Tier{}, NewTeamSizeNotAllowedError(size)
	}
	return tier, nil
}

// AllowedSizes lists the team sizes the table defines.
func AllowedSizes() []int {
	return []int{2, 3}
}
