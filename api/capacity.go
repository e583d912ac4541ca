package api

import (
	"net/http"
)

func (a *API) getCapacity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := getLoggerFromCtx(ctx)

	ledger, err := a.gate.GetLedger(ctx, a.ledgerID)
	if err != nil {
		logger.Error("Failed to fetch capacity ledger", "error", err)

		a.writeError(w, http.StatusInternalServerError, InternalError, "Failed to fetch capacity")
		return
	}

	a.writeJSON(w, http.StatusOK, struct {
		Current   int  `json:"current"`
		Max       int  `json:"max"`
		Remaining int  `json:"remaining"`
		Full      bool `json:"full"`
	}{
		Current:   ledger.Current,
		Max:       ledger.Max,
		Remaining: ledger.Remaining(),
		Full:      ledger.Remaining() <= 0,
	})
}
