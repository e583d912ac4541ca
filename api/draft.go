package api

import (
	"encoding/json"
	"net/http"

	"github.com/buildx-events/registration/wizard"
)

func (a *API) getDraft(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := getLoggerFromCtx(ctx)
	sessionId := r.PathValue("sessionId")

	draft, found, err := a.drafts(sessionId).Restore(ctx)
	if err != nil {
		logger.Error("Failed to restore draft", "error", err, "sessionId", sessionId)

		a.writeError(w, http.StatusInternalServerError, InternalError, "Failed to fetch draft")
		return
	}
	if !found {
		a.writeError(w, http.StatusNotFound, NotFound, "No draft for this session")
		return
	}

	a.writeJSON(w, http.StatusOK, draft)
}

func (a *API) putDraft(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := getLoggerFromCtx(ctx)
	sessionId := r.PathValue("sessionId")

	var draft wizard.Draft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		logger.Warn("Invalid body for draft", "error", err, "sessionId", sessionId)

		a.writeError(w, http.StatusBadRequest, InvalidBody, "Invalid body")
		return
	}
	if draft.Step < wizard.StepLeader || draft.Step > wizard.StepPayment {
		a.writeError(w, http.StatusBadRequest, ValidationError, "Draft step is out of range")
		return
	}

	if err := a.drafts(sessionId).Save(ctx, draft); err != nil {
		logger.Error("Failed to save draft", "error", err, "sessionId", sessionId)

		a.writeError(w, http.StatusInternalServerError, InternalError, "Failed to save draft")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (a *API) deleteDraft(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := getLoggerFromCtx(ctx)
	sessionId := r.PathValue("sessionId")

	if err := a.drafts(sessionId).Clear(ctx); err != nil {
		logger.Error("Failed to delete draft", "error", err, "sessionId", sessionId)

		a.writeError(w, http.StatusInternalServerError, InternalError, "Failed to delete draft")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
