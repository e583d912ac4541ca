package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/buildx-events/registration/capacity"
	"github.com/buildx-events/registration/registration"
	"github.com/buildx-events/registration/wizard"
)

var noopLogger = slog.New(slog.DiscardHandler)

const testLedgerID = "test-event"

var _ DB = &mockDB{}

type mockDB struct {
	EmailExistsFunc            func(ctx context.Context, email string) (bool, error)
	CreateRegistrationFunc     func(ctx context.Context, record registration.Record, ledgerID string) error
	GetRegistrationByEmailFunc func(ctx context.Context, email string) (registration.Record, error)
	GetRegistrationByLoginFunc func(ctx context.Context, email string, password string) (registration.Record, error)
	ListRegistrationsFunc      func(ctx context.Context, limit int32, cursor *string) (registration.ListRegistrationsResponse, error)
	UpdateSubmissionFunc       func(ctx context.Context, email string, submission registration.Submission) error
	UpdateLoginPasswordFunc    func(ctx context.Context, email string, password string) error
	GetControlsFunc            func(ctx context.Context) (registration.Controls, error)
}

func (m *mockDB) EmailExists(ctx context.Context, email string) (bool, error) {
	return m.EmailExistsFunc(ctx, email)
}

func (m *mockDB) CreateRegistration(ctx context.Context, record registration.Record, ledgerID string) error {
	return m.CreateRegistrationFunc(ctx, record, ledgerID)
}

func (m *mockDB) GetRegistrationByEmail(ctx context.Context, email string) (registration.Record, error) {
	return m.GetRegistrationByEmailFunc(ctx, email)
}

func (m *mockDB) GetRegistrationByLogin(ctx context.Context, email string, password string) (registration.Record, error) {
	return m.GetRegistrationByLoginFunc(ctx, email, password)
}

func (m *mockDB) ListRegistrations(ctx context.Context, limit int32, cursor *string) (registration.ListRegistrationsResponse, error) {
	return m.ListRegistrationsFunc(ctx, limit, cursor)
}

func (m *mockDB) UpdateSubmission(ctx context.Context, email string, submission registration.Submission) error {
	return m.UpdateSubmissionFunc(ctx, email, submission)
}

func (m *mockDB) UpdateLoginPassword(ctx context.Context, email string, password string) error {
	return m.UpdateLoginPasswordFunc(ctx, email, password)
}

func (m *mockDB) GetControls(ctx context.Context) (registration.Controls, error) {
	return m.GetControlsFunc(ctx)
}

var _ Submitter = &mockSubmitter{}

type mockSubmitter struct {
	SubmitFunc func(ctx context.Context, form wizard.Form) (registration.Record, error)
}

func (m *mockSubmitter) Submit(ctx context.Context, form wizard.Form) (registration.Record, error) {
	return m.SubmitFunc(ctx, form)
}

func newMemoryDraftFactory() DraftStoreFactory {
	cache := wizard.NewMemoryDraftCache()
	return func(sessionID string) wizard.DraftStore {
		return wizard.NewMemoryDraftStore(cache, sessionID)
	}
}

func newTestAPI(db *mockDB, gate capacity.Gate, submitter Submitter) *API {
	if db == nil {
		db = &mockDB{}
	}
	if gate == nil {
		gate = capacity.NewMemoryGate(100)
	}
	if submitter == nil {
		submitter = &mockSubmitter{
			SubmitFunc: func(ctx context.Context, form wizard.Form) (registration.Record, error) {
				return registration.Record{}, nil
			},
		}
	}

	return NewAPI(db, gate, submitter, newMemoryDraftFactory(), testLedgerID, noopLogger, LOCAL)
}

func doRequest(t *testing.T, api *API, method string, target string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, target, reader)
	rec := httptest.NewRecorder()
	api.Routes().ServeHTTP(rec, req)

	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var out T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out
}

func validApiForm() wizard.Form {
	return wizard.Form{
		Name:     "Asha Rao",
		Email:    "asha@example.com",
		Phone:    "9876543210",
		TeamName: "Bit Benders",
		TeamSize: 2,
		Members: []wizard.Member{
			{Name: "Ravi Kumar", Email: "ravi@example.com"},
		},
		Screenshot: "data:image/png;base64,AAAA",
	}
}
