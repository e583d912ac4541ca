// Package api exposes the registration pipeline and the team dashboard over
// HTTP.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/buildx-events/registration/capacity"
	"github.com/buildx-events/registration/registration"
	"github.com/buildx-events/registration/wizard"
)

type Environment int

const (
	LOCAL Environment = iota
	PROD
)

// DB is the store surface the handlers need.
type DB interface {
	registration.Repository
}

// Submitter runs the commit pipeline for a finished form.
type Submitter interface {
	Submit(ctx context.Context, form wizard.Form) (registration.Record, error)
}

// DraftStoreFactory scopes draft storage to one session key.
type DraftStoreFactory func(sessionID string) wizard.DraftStore

const (
	sessionTTL             = 30 * time.Minute
	sessionCleanupInterval = 10 * time.Minute
)

type API struct {
	db        DB
	gate      capacity.Gate
	submitter Submitter
	drafts    DraftStoreFactory
	ledgerID  string
	logger    *slog.Logger
	env       Environment

	// Wizard machines live server-side per session; evicted sessions are
	// restored from their draft slot on the next touch.
	sessions *gocache.Cache
}

func NewAPI(db DB, gate capacity.Gate, submitter Submitter, drafts DraftStoreFactory, ledgerID string, logger *slog.Logger, env Environment) *API {
	sessions := gocache.New(sessionTTL, sessionCleanupInterval)
	sessions.OnEvicted(func(key string, value any) {
		if m, ok := value.(*wizard.Machine); ok {
			m.Close()
		}
	})

	return &API{
		db:        db,
		gate:      gate,
		submitter: submitter,
		drafts:    drafts,
		ledgerID:  ledgerID,
		logger:    logger,
		env:       env,
		sessions:  sessions,
	}
}

// Routes builds the ServeMux for every endpoint.
func (a *API) Routes() *http.ServeMux {
	r := http.NewServeMux()

	r.HandleFunc("POST /register", a.postRegister)
	r.HandleFunc("GET /registrations", a.getRegistrations)
	r.HandleFunc("GET /capacity", a.getCapacity)

	r.HandleFunc("GET /drafts/{sessionId}", a.getDraft)
	r.HandleFunc("PUT /drafts/{sessionId}", a.putDraft)
	r.HandleFunc("DELETE /drafts/{sessionId}", a.deleteDraft)

	r.HandleFunc("GET /wizard/{sessionId}", a.getWizard)
	r.HandleFunc("POST /wizard/{sessionId}/form", a.postWizardForm)
	r.HandleFunc("POST /wizard/{sessionId}/team-size", a.postWizardTeamSize)
	r.HandleFunc("POST /wizard/{sessionId}/next", a.postWizardNext)
	r.HandleFunc("POST /wizard/{sessionId}/back", a.postWizardBack)
	r.HandleFunc("POST /wizard/{sessionId}/submit", a.postWizardSubmit)
	r.HandleFunc("POST /wizard/{sessionId}/reset", a.postWizardReset)

	r.HandleFunc("POST /team/login", a.postTeamLogin)
	r.HandleFunc("PUT /team/{email}/submission", a.putTeamSubmission)
	r.HandleFunc("PUT /team/{email}/password", a.putTeamPassword)
	r.HandleFunc("GET /leaderboard", a.getLeaderboard)

	return r
}
