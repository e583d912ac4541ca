// Package registration owns the durable registration record and the commit
// pipeline that creates one under the shared capacity cap.
package registration

import (
	"context"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/buildx-events/registration/wizard"
	"github.com/google/uuid"
)

type PaymentStatus string

const (
	PAYMENT_PENDING  PaymentStatus = "pending"
	PAYMENT_VERIFIED PaymentStatus = "verified"
	PAYMENT_REJECTED PaymentStatus = "rejected"
)

// Record is the durable registration, created once at commit time and
// uniquely identified by the leader's email. The pipeline never mutates it
// afterward; submission and login-secret updates come from the dashboard.
type Record struct {
	ID             uuid.UUID
	Name           string
	Email          string
	Phone          string
	TeamName       string
	TeamSize       int
	Members        []wizard.Member
	Screenshot     string
	PaymentStatus  PaymentStatus
	PricePaid      *money.Money
	LoginPassword  string
	Score          int
	ProjectTagline string
	Submission     *Submission
	CreatedAt      time.Time
}

// Submission is a team's project hand-in, stored on their record.
type Submission struct {
	RepoURL     string
	DemoURL     string
	SubmittedAt time.Time
}

// Controls are the admin toggles gating the dashboard surfaces.
type Controls struct {
	SubmissionOpen     bool
	LeaderboardVisible bool
}

type ListRegistrationsResponse struct {
	Data        []Record
	Cursor      *string
	HasNextPage bool
}

type Repository interface {
	// EmailExists is the duplicate guard's advisory fast path. The
	// authoritative uniqueness check happens inside CreateRegistration.
	EmailExists(ctx context.Context, email string) (bool, error)
	// CreateRegistration debits one ledger slot and writes the record as a
	// single atomic unit: either both happen or neither does.
	CreateRegistration(ctx context.Context, record Record, ledgerID string) error
	GetRegistrationByEmail(ctx context.Context, email string) (Record, error)
	GetRegistrationByLogin(ctx context.Context, email string, password string) (Record, error)
	ListRegistrations(ctx context.Context, limit int32, cursor *string) (ListRegistrationsResponse, error)
	UpdateSubmission(ctx context.Context, email string, submission Submission) error
	UpdateLoginPassword(ctx context.Context, email string, password string) error
	GetControls(ctx context.Context) (Controls, error)
}
