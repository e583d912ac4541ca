package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/buildx-events/registration/ptr"
	"github.com/buildx-events/registration/registration"
	"github.com/buildx-events/registration/wizard"
)

// Registration is the wire shape of a committed registration. The payment
// screenshot and login secret never leave the store through this surface.
type Registration struct {
	Id             uuid.UUID       `json:"id"`
	Name           string          `json:"name"`
	Email          string          `json:"email"`
	Phone          string          `json:"phone"`
	TeamName       string          `json:"teamName"`
	TeamSize       int             `json:"teamSize"`
	Members        []wizard.Member `json:"members"`
	PaymentStatus  string          `json:"paymentStatus"`
	Price          float64         `json:"price"`
	PriceCurrency  string          `json:"priceCurrency"`
	Score          int             `json:"score"`
	ProjectTagline string          `json:"projectTagline,omitempty"`
	Submission     *Submission     `json:"submission,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
}

type Submission struct {
	RepoUrl     string    `json:"repoUrl"`
	DemoUrl     string    `json:"demoUrl"`
	SubmittedAt time.Time `json:"submittedAt"`
}

func (a *API) postRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := getLoggerFromCtx(ctx)

	var form wizard.Form
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		logger.Warn("Invalid body for registration", "error", err)

		a.writeError(w, http.StatusBadRequest, InvalidBody, "Invalid body")
		return
	}

	// The direct endpoint replays every wizard step's checks in order, so a
	// caller bypassing the wizard cannot commit a form the wizard would have
	// blocked.
	for _, step := range []wizard.Step{wizard.StepLeader, wizard.StepTeam, wizard.StepPayment} {
		if err := wizard.ValidateStep(step, form); err != nil {
			logger.Warn("Registration form failed validation", "error", err)

			var wizardErr *wizard.Error
			if errors.As(err, &wizardErr) {
				a.writeError(w, http.StatusBadRequest, ValidationError, wizardErr.Message)
				return
			}
			a.writeError(w, http.StatusBadRequest, ValidationError, "Form is invalid")
			return
		}
	}

	record, err := a.submitter.Submit(ctx, form)
	if err != nil {
		logger.Error("Error trying to register", "error", err)

		a.writeRegistrationError(w, err)
		return
	}

	a.writeJSON(w, http.StatusCreated, registrationToApi(record))
}

func (a *API) getRegistrations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := getLoggerFromCtx(ctx)

	limit := 10
	if limitParam := r.URL.Query().Get("limit"); limitParam != "" {
		userLimit, err := strconv.Atoi(limitParam)
		if err != nil || userLimit < 1 || userLimit > 50 {
			logger.Warn("Limit out of bounds", "limit", limitParam)

			a.writeError(w, http.StatusBadRequest, LimitOutOfBounds, "Limit must be between 1 and 50")
			return
		}
		limit = userLimit
	}

	var cursor *string
	if cursorParam := r.URL.Query().Get("cursor"); cursorParam != "" {
		cursor = ptr.String(cursorParam)
	}

	result, err := a.db.ListRegistrations(ctx, int32(limit), cursor)
	if err != nil {
		logger.Error("Failed to list registrations", "error", err)

		var registrationErr *registration.Error
		if errors.As(err, &registrationErr) {
			switch registrationErr.Reason {
			case registration.REASON_INVALID_CURSOR:
				a.writeError(w, http.StatusBadRequest, InvalidCursor, "Cursor is invalid")
				return
			}
		}
		a.writeError(w, http.StatusInternalServerError, InternalError, "Failed to list registrations")
		return
	}

	respRegs := []Registration{}
	for _, v := range result.Data {
		respRegs = append(respRegs, registrationToApi(v))
	}

	a.writeJSON(w, http.StatusOK, struct {
		Data        []Registration `json:"data"`
		Cursor      *string        `json:"cursor,omitempty"`
		HasNextPage bool           `json:"hasNextPage"`
	}{
		Data:        respRegs,
		Cursor:      result.Cursor,
		HasNextPage: result.HasNextPage,
	})
}

func (a *API) writeRegistrationError(w http.ResponseWriter, err error) {
	var registrationErr *registration.Error

	if errors.As(err, &registrationErr) {
		switch registrationErr.Reason {
		case registration.REASON_DUPLICATE_EMAIL, registration.REASON_REGISTRATION_ALREADY_EXISTS:
			a.writeError(w, http.StatusConflict, AlreadyExists, "Email already registered")
			return
		case registration.REASON_CAPACITY_EXCEEDED:
			a.writeError(w, http.StatusConflict, CapacityExceeded, "Event is at full capacity")
			return
		case registration.REASON_TEAM_SIZE_NOT_ALLOWED:
			a.writeError(w, http.StatusBadRequest, TeamSizeNotAllowed, registrationErr.Message)
			return
		case registration.REASON_TIMEOUT:
			a.writeError(w, http.StatusGatewayTimeout, Timeout, "Registration store timed out")
			return
		case registration.REASON_REGISTRATION_DOES_NOT_EXIST:
			a.writeError(w, http.StatusNotFound, NotFound, "Registration was not found")
			return
		}
	}

	a.writeError(w, http.StatusInternalServerError, InternalError, "Failed to register")
}

func registrationToApi(record registration.Record) Registration {
	apiReg := Registration{
		Id:             record.ID,
		Name:           record.Name,
		Email:          record.Email,
		Phone:          record.Phone,
		TeamName:       record.TeamName,
		TeamSize:       record.TeamSize,
		Members:        record.Members,
		PaymentStatus:  string(record.PaymentStatus),
		Score:          record.Score,
		ProjectTagline: record.ProjectTagline,
		CreatedAt:      record.CreatedAt,
	}

	if record.PricePaid != nil {
		apiReg.Price = record.PricePaid.AsMajorUnits()
		apiReg.PriceCurrency = record.PricePaid.Currency().Code
	}
	if record.Submission != nil {
		apiReg.Submission = &Submission{
			RepoUrl:     record.Submission.RepoURL,
			DemoUrl:     record.Submission.DemoURL,
			SubmittedAt: record.Submission.SubmittedAt,
		}
	}

	return apiReg
}
