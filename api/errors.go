package api

import (
	"encoding/json"
	"net/http"
)

type ErrorCode string

const (
	InternalError        ErrorCode = "InternalError"
	InputValidationError ErrorCode = "InputValidationError"
	AuthError            ErrorCode = "AuthError"
	EmptyBody            ErrorCode = "EmptyBody"
	InvalidBody          ErrorCode = "InvalidBody"
	ValidationError      ErrorCode = "ValidationError"
	AlreadyExists        ErrorCode = "AlreadyExists"
	CapacityExceeded     ErrorCode = "CapacityExceeded"
	Timeout              ErrorCode = "Timeout"
	NotFound             ErrorCode = "NotFound"
	InvalidCredentials   ErrorCode = "InvalidCredentials"
	SubmissionsClosed    ErrorCode = "SubmissionsClosed"
	LeaderboardHidden    ErrorCode = "LeaderboardHidden"
	InvalidCursor        ErrorCode = "InvalidCursor"
	LimitOutOfBounds     ErrorCode = "LimitOutOfBounds"
	SubmitInFlight       ErrorCode = "SubmitInFlight"
	TeamSizeNotAllowed   ErrorCode = "TeamSizeNotAllowed"
)

type Error struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

func (a *API) writeJSON(w http.ResponseWriter, statusCode int, body any) {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		a.logger.Error("failed to marshal response body", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	w.Write(jsonBody)
}

func (a *API) writeError(w http.ResponseWriter, statusCode int, code ErrorCode, message string) {
	a.writeJSON(w, statusCode, Error{
		Code:    code,
		Message: message,
	})
}
