package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/buildx-events/registration/registration"
	"github.com/buildx-events/registration/slices"
)

// normalizeEmail matches the casing the commit pipeline keys records by.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (a *API) postTeamLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := getLoggerFromCtx(ctx)

	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		logger.Warn("Invalid body for team login", "error", err)

		a.writeError(w, http.StatusBadRequest, InvalidBody, "Invalid body")
		return
	}

	record, err := a.db.GetRegistrationByLogin(ctx, normalizeEmail(body.Email), body.Password)
	if err != nil {
		var registrationErr *registration.Error
		if errors.As(err, &registrationErr) {
			switch registrationErr.Reason {
			case registration.REASON_INVALID_CREDENTIALS, registration.REASON_REGISTRATION_DOES_NOT_EXIST:
				// Same answer for a wrong password and an unknown email.
				a.writeError(w, http.StatusUnauthorized, InvalidCredentials, "Invalid email or password")
				return
			}
		}
		logger.Error("Failed to log team in", "error", err)

		a.writeError(w, http.StatusInternalServerError, InternalError, "Failed to log in")
		return
	}

	a.writeJSON(w, http.StatusOK, registrationToApi(record))
}

func (a *API) putTeamSubmission(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := getLoggerFromCtx(ctx)
	email := normalizeEmail(r.PathValue("email"))

	var body struct {
		Password string `json:"password"`
		RepoUrl  string `json:"repoUrl"`
		DemoUrl  string `json:"demoUrl"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		logger.Warn("Invalid body for submission", "error", err)

		a.writeError(w, http.StatusBadRequest, InvalidBody, "Invalid body")
		return
	}
	if strings.TrimSpace(body.RepoUrl) == "" {
		a.writeError(w, http.StatusBadRequest, ValidationError, "Repository URL is required")
		return
	}

	if _, err := a.db.GetRegistrationByLogin(ctx, email, body.Password); err != nil {
		a.writeTeamAuthError(w, logger, err)
		return
	}

	controls, err := a.db.GetControls(ctx)
	if err != nil {
		logger.Error("Failed to fetch event controls", "error", err)

		a.writeError(w, http.StatusInternalServerError, InternalError, "Failed to save submission")
		return
	}
	if !controls.SubmissionOpen {
		a.writeError(w, http.StatusForbidden, SubmissionsClosed, "Submissions are currently closed")
		return
	}

	submission := registration.Submission{
		RepoURL:     body.RepoUrl,
		DemoURL:     body.DemoUrl,
		SubmittedAt: time.Now().UTC(),
	}
	if err := a.db.UpdateSubmission(ctx, email, submission); err != nil {
		logger.Error("Failed to save submission", "error", err)

		a.writeRegistrationError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (a *API) putTeamPassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := getLoggerFromCtx(ctx)
	email := normalizeEmail(r.PathValue("email"))

	var body struct {
		Password    string `json:"password"`
		NewPassword string `json:"newPassword"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		logger.Warn("Invalid body for password change", "error", err)

		a.writeError(w, http.StatusBadRequest, InvalidBody, "Invalid body")
		return
	}
	if len(body.NewPassword) < 8 {
		a.writeError(w, http.StatusBadRequest, ValidationError, "New password must be at least 8 characters")
		return
	}

	if _, err := a.db.GetRegistrationByLogin(ctx, email, body.Password); err != nil {
		a.writeTeamAuthError(w, logger, err)
		return
	}

	if err := a.db.UpdateLoginPassword(ctx, email, body.NewPassword); err != nil {
		logger.Error("Failed to update login password", "error", err)

		a.writeRegistrationError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type leaderboardEntry struct {
	Rank           int    `json:"rank"`
	TeamName       string `json:"teamName"`
	Score          int    `json:"score"`
	ProjectTagline string `json:"projectTagline,omitempty"`
	Submitted      bool   `json:"submitted"`
}

func (a *API) getLeaderboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := getLoggerFromCtx(ctx)

	controls, err := a.db.GetControls(ctx)
	if err != nil {
		logger.Error("Failed to fetch event controls", "error", err)

		a.writeError(w, http.StatusInternalServerError, InternalError, "Failed to fetch leaderboard")
		return
	}
	if !controls.LeaderboardVisible {
		a.writeError(w, http.StatusForbidden, LeaderboardHidden, "Leaderboard is not visible yet")
		return
	}

	// The full field fits in a handful of pages at the capacity cap, so the
	// leaderboard ranks in memory rather than maintaining a score index.
	var records []registration.Record
	var cursor *string
	for {
		page, err := a.db.ListRegistrations(ctx, 50, cursor)
		if err != nil {
			logger.Error("Failed to list registrations for leaderboard", "error", err)

			a.writeError(w, http.StatusInternalServerError, InternalError, "Failed to fetch leaderboard")
			return
		}

		records = append(records, page.Data...)
		if !page.HasNextPage {
			break
		}
		cursor = page.Cursor
	}

	sort.SliceStable(records, func(i, j int) bool {
		if records[i].Score != records[j].Score {
			return records[i].Score > records[j].Score
		}
		return records[i].TeamName < records[j].TeamName
	})

	entries := slices.Map(records, func(record registration.Record) leaderboardEntry {
		return leaderboardEntry{
			TeamName:       record.TeamName,
			Score:          record.Score,
			ProjectTagline: record.ProjectTagline,
			Submitted:      record.Submission != nil,
		}
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}

	a.writeJSON(w, http.StatusOK, struct {
		Data []leaderboardEntry `json:"data"`
	}{Data: entries})
}

func (a *API) writeTeamAuthError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var registrationErr *registration.Error
	if errors.As(err, &registrationErr) {
		switch registrationErr.Reason {
		case registration.REASON_INVALID_CREDENTIALS, registration.REASON_REGISTRATION_DOES_NOT_EXIST:
			a.writeError(w, http.StatusUnauthorized, InvalidCredentials, "Invalid email or password")
			return
		}
	}
	logger.Error("Failed to verify team credentials", "error", err)

	a.writeError(w, http.StatusInternalServerError, InternalError, "Failed to verify credentials")
}
