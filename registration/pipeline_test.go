package registration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buildx-events/registration/capacity"
	"github.com/buildx-events/registration/notify"
	"github.com/buildx-events/registration/wizard"
)

var noopLogger = slog.New(slog.DiscardHandler)

var _ Repository = &mockRepository{}

type mockRepository struct {
	EmailExistsFunc            func(ctx context.Context, email string) (bool, error)
	CreateRegistrationFunc     func(ctx context.Context, record Record, ledgerID string) error
	GetRegistrationByEmailFunc func(ctx context.Context, email string) (Record, error)
	GetRegistrationByLoginFunc func(ctx context.Context, email string, password string) (Record, error)
	ListRegistrationsFunc      func(ctx context.Context, limit int32, cursor *string) (ListRegistrationsResponse, error)
	UpdateSubmissionFunc       func(ctx context.Context, email string, submission Submission) error
	UpdateLoginPasswordFunc    func(ctx context.Context, email string, password string) error
	GetControlsFunc            func(ctx context.Context) (Controls, error)
}

func (m *mockRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	return m.EmailExistsFunc(ctx, email)
}

func (m *mockRepository) CreateRegistration(ctx context.Context, record Record, ledgerID string) error {
	return m.CreateRegistrationFunc(ctx, record, ledgerID)
}

func (m *mockRepository) GetRegistrationByEmail(ctx context.Context, email string) (Record, error) {
	return m.GetRegistrationByEmailFunc(ctx, email)
}

func (m *mockRepository) GetRegistrationByLogin(ctx context.Context, email string, password string) (Record, error) {
	return m.GetRegistrationByLoginFunc(ctx, email, password)
}

func (m *mockRepository) ListRegistrations(ctx context.Context, limit int32, cursor *string) (ListRegistrationsResponse, error) {
	return m.ListRegistrationsFunc(ctx, limit, cursor)
}

func (m *mockRepository) UpdateSubmission(ctx context.Context, email string, submission Submission) error {
	return m.UpdateSubmissionFunc(ctx, email, submission)
}

func (m *mockRepository) UpdateLoginPassword(ctx context.Context, email string, password string) error {
	return m.UpdateLoginPasswordFunc(ctx, email, password)
}

func (m *mockRepository) GetControls(ctx context.Context) (Controls, error) {
	return m.GetControlsFunc(ctx)
}

type mockNotifier struct {
	payloads chan notify.Payload
	err      error
}

func newMockNotifier() *mockNotifier {
	return &mockNotifier{payloads: make(chan notify.Payload, 1)}
}

func (m *mockNotifier) Notify(ctx context.Context, payload notify.Payload) error {
	m.payloads <- payload
	return m.err
}

func testForm() wizard.Form {
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

func TestPipelineSubmit(t *testing.T) {
	ctx := context.Background()

	t.Run("commits a record and notifies", func(t *testing.T) {
		fixedID := uuid.New()
		fixedNow := time.Date(2026, time.March, 14, 10, 0, 0, 0, time.UTC)

		var created Record
		var createdLedgerID string
		mockRepo := &mockRepository{
			EmailExistsFunc: func(ctx context.Context, email string) (bool, error) {
				return false, nil
			},
			CreateRegistrationFunc: func(ctx context.Context, record Record, ledgerID string) error {
				created = record
				createdLedgerID = ledgerID
				return nil
			},
		}
		notifier := newMockNotifier()
		pipeline := NewPipeline(mockRepo, notifier, "main-event", noopLogger, PipelineOptions{
			Now:   func() time.Time { return fixedNow },
			NewID: func() uuid.UUID { return fixedID },
		})

		record, err := pipeline.Submit(ctx, testForm())
		require.NoError(t, err)

		assert.Equal(t, fixedID, record.ID)
		assert.Equal(t, "asha@example.com", record.Email)
		assert.Equal(t, PAYMENT_PENDING, record.PaymentStatus)
		assert.Equal(t, fixedNow, record.CreatedAt)
		assert.Equal(t, int64(30000), record.PricePaid.Amount())
		assert.Equal(t, money.INR, record.PricePaid.Currency().Code)

		assert.Equal(t, record, created)
		assert.Equal(t, "main-event", createdLedgerID)

		select {
		case payload := <-notifier.payloads:
			assert.Equal(t, "Bit Benders", payload.TeamName)
			assert.Equal(t, 300.0, payload.Price)
			assert.Len(t, payload.Members, 1)
		case <-time.After(time.Second):
			t.Fatal("notification was never sent")
		}
	})

	t.Run("keys the record by the normalized email", func(t *testing.T) {
		var guardedEmail string
		var created Record
		mockRepo := &mockRepository{
			EmailExistsFunc: func(ctx context.Context, email string) (bool, error) {
				guardedEmail = email
				return false, nil
			},
			CreateRegistrationFunc: func(ctx context.Context, record Record, ledgerID string) error {
				created = record
				return nil
			},
		}
		pipeline := NewPipeline(mockRepo, notify.NopNotifier{}, "main-event", noopLogger, PipelineOptions{})

		form := testForm()
		form.Email = "  Asha@Example.com "

		record, err := pipeline.Submit(ctx, form)
		require.NoError(t, err)

		// A leader who registers with mixed casing must be able to log in
		// later with any casing, so the stored identity is always lowercase.
		assert.Equal(t, "asha@example.com", record.Email)
		assert.Equal(t, "asha@example.com", created.Email)
		assert.Equal(t, "asha@example.com", guardedEmail)
	})

	t.Run("rejects team sizes without a price tier", func(t *testing.T) {
		pipeline := NewPipeline(&mockRepository{}, notify.NopNotifier{}, "main-event", noopLogger, PipelineOptions{})

		form := testForm()
		form.TeamSize = 4

		_, err := pipeline.Submit(ctx, form)

		var regErr *Error
		require.True(t, errors.As(err, &regErr))
		assert.Equal(t, REASON_TEAM_SIZE_NOT_ALLOWED, regErr.Reason)
	})

	t.Run("duplicate guard rejects a known email without writing", func(t *testing.T) {
		created := false
		mockRepo := &mockRepository{
			EmailExistsFunc: func(ctx context.Context, email string) (bool, error) {
				return true, nil
			},
			CreateRegistrationFunc: func(ctx context.Context, record Record, ledgerID string) error {
				created = true
				return nil
			},
		}
		pipeline := NewPipeline(mockRepo, notify.NopNotifier{}, "main-event", noopLogger, PipelineOptions{})

		_, err := pipeline.Submit(ctx, testForm())

		var regErr *Error
		require.True(t, errors.As(err, &regErr))
		assert.Equal(t, REASON_DUPLICATE_EMAIL, regErr.Reason)
		assert.False(t, created)
	})

	t.Run("storage level duplicate passes through", func(t *testing.T) {
		mockRepo := &mockRepository{
			EmailExistsFunc: func(ctx context.Context, email string) (bool, error) {
				// The advisory check raced a concurrent commit and missed.
				return false, nil
			},
			CreateRegistrationFunc: func(ctx context.Context, record Record, ledgerID string) error {
				return NewRegistrationAlreadyExistsError("already exists", nil)
			},
		}
		pipeline := NewPipeline(mockRepo, notify.NopNotifier{}, "main-event", noopLogger, PipelineOptions{})

		_, err := pipeline.Submit(ctx, testForm())

		var regErr *Error
		require.True(t, errors.As(err, &regErr))
		assert.Equal(t, REASON_REGISTRATION_ALREADY_EXISTS, regErr.Reason)
	})

	t.Run("capacity exceeded passes through", func(t *testing.T) {
		mockRepo := &mockRepository{
			EmailExistsFunc: func(ctx context.Context, email string) (bool, error) {
				return false, nil
			},
			CreateRegistrationFunc: func(ctx context.Context, record Record, ledgerID string) error {
				return NewCapacityExceededError("event full", nil)
			},
		}
		pipeline := NewPipeline(mockRepo, notify.NopNotifier{}, "main-event", noopLogger, PipelineOptions{})

		_, err := pipeline.Submit(ctx, testForm())

		var regErr *Error
		require.True(t, errors.As(err, &regErr))
		assert.Equal(t, REASON_CAPACITY_EXCEEDED, regErr.Reason)
	})

	t.Run("a hung store surfaces as a timeout", func(t *testing.T) {
		mockRepo := &mockRepository{
			EmailExistsFunc: func(ctx context.Context, email string) (bool, error) {
				<-ctx.Done()
				return false, ctx.Err()
			},
		}
		pipeline := NewPipeline(mockRepo, notify.NopNotifier{}, "main-event", noopLogger, PipelineOptions{
			SubmitTimeout: 10 * time.Millisecond,
		})

		_, err := pipeline.Submit(ctx, testForm())

		var regErr *Error
		require.True(t, errors.As(err, &regErr))
		assert.Equal(t, REASON_TIMEOUT, regErr.Reason)
	})

	t.Run("notification failure does not fail the submit", func(t *testing.T) {
		mockRepo := &mockRepository{
			EmailExistsFunc: func(ctx context.Context, email string) (bool, error) {
				return false, nil
			},
			CreateRegistrationFunc: func(ctx context.Context, record Record, ledgerID string) error {
				return nil
			},
		}
		notifier := newMockNotifier()
		notifier.err = errors.New("webhook down")
		pipeline := NewPipeline(mockRepo, notifier, "main-event", noopLogger, PipelineOptions{})

		_, err := pipeline.Submit(ctx, testForm())
		require.NoError(t, err)

		select {
		case <-notifier.payloads:
		case <-time.After(time.Second):
			t.Fatal("notification was never attempted")
		}
	})
}

// ledgerRepository is a stateful in-process Repository whose CreateRegistration
// mirrors the store's semantics: the slot debit and the record write succeed or
// fail together, with email uniqueness enforced at write time.
type ledgerRepository struct {
	mu         sync.Mutex
	gate       *capacity.MemoryGate
	records    map[string]Record
	failWrites bool
}

func newLedgerRepository(gate *capacity.MemoryGate) *ledgerRepository {
	return &ledgerRepository{
		gate:    gate,
		records: map[string]Record{},
	}
}

func (r *ledgerRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.records[email]
	return ok, nil
}

func (r *ledgerRepository) CreateRegistration(ctx context.Context, record Record, ledgerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.records[record.Email]; ok {
		return NewRegistrationAlreadyExistsError(fmt.Sprintf("registration exists for %s", record.Email), nil)
	}
	if r.failWrites {
		// Simulated record-write failure; the transaction never debits.
		return NewFailedToWriteError("write failed", errors.New("simulated"))
	}

	if err := r.gate.ReserveSlot(ctx, ledgerID); err != nil {
		var capErr *capacity.Error
		if errors.As(err, &capErr) && capErr.Reason == capacity.REASON_FULL {
			return NewCapacityExceededError("event is full", err)
		}
		return NewFailedToWriteError("failed to reserve slot", err)
	}

	r.records[record.Email] = record
	return nil
}

func (r *ledgerRepository) GetRegistrationByEmail(ctx context.Context, email string) (Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.records[email]
	if !ok {
		return Record{}, NewRegistrationDoesNotExistError(fmt.Sprintf("no registration for %s", email), nil)
	}
	return record, nil
}

func (r *ledgerRepository) GetRegistrationByLogin(ctx context.Context, email string, password string) (Record, error) {
	return Record{}, NewInvalidCredentialsError()
}

func (r *ledgerRepository) ListRegistrations(ctx context.Context, limit int32, cursor *string) (ListRegistrationsResponse, error) {
	return ListRegistrationsResponse{}, nil
}

func (r *ledgerRepository) UpdateSubmission(ctx context.Context, email string, submission Submission) error {
	return nil
}

func (r *ledgerRepository) UpdateLoginPassword(ctx context.Context, email string, password string) error {
	return nil
}

func (r *ledgerRepository) GetControls(ctx context.Context) (Controls, error) {
	return Controls{}, nil
}

func TestPipelineSubmitCapacityRace(t *testing.T) {
	ctx := context.Background()

	t.Run("one slot left, many concurrent submits, exactly one wins", func(t *testing.T) {
		const contenders = 20

		gate := capacity.NewMemoryGate(100)
		gate.SetLedger("main-event", capacity.Ledger{Current: 99, Max: 100})
		repo := newLedgerRepository(gate)
		pipeline := NewPipeline(repo, notify.NopNotifier{}, "main-event", noopLogger, PipelineOptions{})

		var wg sync.WaitGroup
		results := make(chan error, contenders)
		for i := range contenders {
			wg.Add(1)
			go func() {
				defer wg.Done()

				form := testForm()
				form.Email = fmt.Sprintf("team%d@example.com", i)
				_, err := pipeline.Submit(ctx, form)
				results <- err
			}()
		}
		wg.Wait()
		close(results)

		committed := 0
		rejected := 0
		for err := range results {
			if err == nil {
				committed++
				continue
			}

			var regErr *Error
			require.True(t, errors.As(err, &regErr))
			assert.Equal(t, REASON_CAPACITY_EXCEEDED, regErr.Reason)
			rejected++
		}

		assert.Equal(t, 1, committed)
		assert.Equal(t, contenders-1, rejected)

		ledger, err := gate.GetLedger(ctx, "main-event")
		require.NoError(t, err)
		assert.Equal(t, 100, ledger.Current)
	})

	t.Run("a failed record write leaves the ledger untouched", func(t *testing.T) {
		gate := capacity.NewMemoryGate(100)
		gate.SetLedger("main-event", capacity.Ledger{Current: 40, Max: 100})
		repo := newLedgerRepository(gate)
		repo.failWrites = true
		pipeline := NewPipeline(repo, notify.NopNotifier{}, "main-event", noopLogger, PipelineOptions{})

		_, err := pipeline.Submit(ctx, testForm())

		var regErr *Error
		require.True(t, errors.As(err, &regErr))
		assert.Equal(t, REASON_FAILED_TO_WRITE, regErr.Reason)

		ledger, err := gate.GetLedger(ctx, "main-event")
		require.NoError(t, err)
		assert.Equal(t, 40, ledger.Current)
	})

	t.Run("same email twice commits once and debits once", func(t *testing.T) {
		gate := capacity.NewMemoryGate(100)
		gate.SetLedger("main-event", capacity.Ledger{Current: 0, Max: 100})
		repo := newLedgerRepository(gate)
		pipeline := NewPipeline(repo, notify.NopNotifier{}, "main-event", noopLogger, PipelineOptions{})

		_, err := pipeline.Submit(ctx, testForm())
		require.NoError(t, err)

		_, err = pipeline.Submit(ctx, testForm())
		var regErr *Error
		require.True(t, errors.As(err, &regErr))
		assert.Equal(t, REASON_DUPLICATE_EMAIL, regErr.Reason)

		ledger, err := gate.GetLedger(ctx, "main-event")
		require.NoError(t, err)
		assert.Equal(t, 1, ledger.Current)
	})
}
