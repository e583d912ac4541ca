package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	gocache "github.com/patrickmn/go-cache"

	"github.com/buildx-events/registration/wizard"
)

type wizardView struct {
	Step         wizard.Step `json:"step"`
	State        string      `json:"state"`
	Form         wizard.Form `json:"form"`
	ErrorMessage string      `json:"errorMessage,omitempty"`
}

func (a *API) viewOf(m *wizard.Machine) wizardView {
	view := wizardView{
		Step:  m.Step(),
		State: m.State().String(),
		Form:  m.FormSnapshot(),
	}
	if failure := m.Failure(); failure != nil {
		var wizardErr *wizard.Error
		if errors.As(failure, &wizardErr) {
			view.ErrorMessage = wizardErr.Message
		} else {
			view.ErrorMessage = "Something went wrong, please try again"
		}
	}
	return view
}

// machineForSession returns the session's wizard, creating one seeded from the
// session's draft slot on first touch. Every touch refreshes the session TTL.
func (a *API) machineForSession(ctx context.Context, sessionId string) *wizard.Machine {
	if v, ok := a.sessions.Get(sessionId); ok {
		m := v.(*wizard.Machine)
		a.sessions.Set(sessionId, m, gocache.DefaultExpiration)
		return m
	}

	m := wizard.NewMachine(ctx, a.drafts(sessionId), a.submitForm, wizard.Options{Logger: a.logger})
	if err := a.sessions.Add(sessionId, m, gocache.DefaultExpiration); err != nil {
		// Lost the creation race to a concurrent request for the same
		// session. The closed loser must never be cached, so start over and
		// pick up whichever machine won.
		m.Close()
		return a.machineForSession(ctx, sessionId)
	}
	return m
}

func (a *API) submitForm(ctx context.Context, form wizard.Form) error {
	_, err := a.submitter.Submit(ctx, form)
	return err
}

func (a *API) getWizard(w http.ResponseWriter, r *http.Request) {
	m := a.machineForSession(r.Context(), r.PathValue("sessionId"))
	a.writeJSON(w, http.StatusOK, a.viewOf(m))
}

func (a *API) postWizardForm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := getLoggerFromCtx(ctx)
	m := a.machineForSession(ctx, r.PathValue("sessionId"))

	var form wizard.Form
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		logger.Warn("Invalid body for wizard form", "error", err)

		a.writeError(w, http.StatusBadRequest, InvalidBody, "Invalid body")
		return
	}

	err := m.UpdateForm(func(f *wizard.Form) {
		*f = form
	})
	if err != nil {
		logger.Warn("Rejected wizard form update", "error", err)

		a.writeWizardError(w, err)
		return
	}

	a.writeJSON(w, http.StatusOK, a.viewOf(m))
}

func (a *API) postWizardTeamSize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := getLoggerFromCtx(ctx)
	m := a.machineForSession(ctx, r.PathValue("sessionId"))

	var body struct {
		TeamSize int `json:"teamSize"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		logger.Warn("Invalid body for team size", "error", err)

		a.writeError(w, http.StatusBadRequest, InvalidBody, "Invalid body")
		return
	}

	if err := m.SetTeamSize(body.TeamSize); err != nil {
		logger.Warn("Rejected team size", "error", err, "teamSize", body.TeamSize)

		a.writeWizardError(w, err)
		return
	}

	a.writeJSON(w, http.StatusOK, a.viewOf(m))
}

func (a *API) postWizardNext(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	m := a.machineForSession(ctx, r.PathValue("sessionId"))

	if err := m.Next(ctx); err != nil {
		a.writeWizardError(w, err)
		return
	}

	a.writeJSON(w, http.StatusOK, a.viewOf(m))
}

func (a *API) postWizardBack(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	m := a.machineForSession(ctx, r.PathValue("sessionId"))

	if err := m.Back(ctx); err != nil {
		a.writeWizardError(w, err)
		return
	}

	a.writeJSON(w, http.StatusOK, a.viewOf(m))
}

func (a *API) postWizardSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := getLoggerFromCtx(ctx)
	m := a.machineForSession(ctx, r.PathValue("sessionId"))

	if err := m.Submit(ctx); err != nil {
		logger.Error("Wizard submit failed", "error", err)

		a.writeWizardError(w, err)
		return
	}

	a.writeJSON(w, http.StatusOK, a.viewOf(m))
}

func (a *API) postWizardReset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := getLoggerFromCtx(ctx)
	m := a.machineForSession(ctx, r.PathValue("sessionId"))

	if err := m.Reset(ctx); err != nil {
		logger.Error("Wizard reset failed", "error", err)

		a.writeWizardError(w, err)
		return
	}

	a.writeJSON(w, http.StatusOK, a.viewOf(m))
}

func (a *API) writeWizardError(w http.ResponseWriter, err error) {
	var wizardErr *wizard.Error
	if errors.As(err, &wizardErr) {
		switch wizardErr.Reason {
		case wizard.REASON_VALIDATION, wizard.REASON_NOT_ON_FINAL_STEP:
			a.writeError(w, http.StatusBadRequest, ValidationError, wizardErr.Message)
		case wizard.REASON_TEAM_SIZE_NOT_ALLOWED:
			a.writeError(w, http.StatusBadRequest, TeamSizeNotAllowed, wizardErr.Message)
		case wizard.REASON_SUBMIT_IN_FLIGHT:
			a.writeError(w, http.StatusConflict, SubmitInFlight, wizardErr.Message)
		default:
			a.writeError(w, http.StatusInternalServerError, InternalError, "Wizard is unavailable")
		}
		return
	}

	// Submit surfaces the commit pipeline's errors unchanged.
	a.writeRegistrationError(w, err)
}
