package wizard

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/buildx-events/registration/pricing"
)

//go:generate go tool stringer -type=State

// State is the submit lifecycle of the wizard.
type State int

const (
	EDITING State = iota
	SUBMITTING
	SUCCEEDED
	FAILED
)

// SubmitFunc runs the commit pipeline for a finished form.
type SubmitFunc func(ctx context.Context, form Form) error

type Options struct {
	// SaveDelay debounces draft writes on form edits. Zero means the
	// default; negative disables debouncing and writes through.
	SaveDelay time.Duration
	// DismissAfter is how long a success acknowledgment stays up before the
	// wizard resets to an empty step 1.
	DismissAfter time.Duration
	Logger       *slog.Logger
}

const (
	defaultSaveDelay    = 500 * time.Millisecond
	defaultDismissAfter = 3500 * time.Millisecond
)

// Machine owns one client session's wizard state: current step, form data and
// the last failure. All transitions go through its methods; step 3 is
// unreachable without passing step 2 validation, and submission is gated on
// step 3 validation. Safe for concurrent use, though a session normally has a
// single caller plus the machine's own timers.
type Machine struct {
	mu      sync.Mutex
	step    Step
	form    Form
	state   State
	failure error
	closed  bool

	store  DraftStore
	submit SubmitFunc
	logger *slog.Logger

	saveDelay    time.Duration
	dismissAfter time.Duration
	saveTimer    *time.Timer
	dismissTimer *time.Timer
}

// NewMachine builds a wizard seeded from the session's draft slot if a
// parseable draft exists, otherwise starting at step 1 with an empty form.
func NewMachine(ctx context.Context, store DraftStore, submit SubmitFunc, opts Options) *Machine {
	if opts.SaveDelay == 0 {
		opts.SaveDelay = defaultSaveDelay
	}
	if opts.DismissAfter == 0 {
		opts.DismissAfter = defaultDismissAfter
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	m := &Machine{
		step:         firstStep,
		form:         NewForm(),
		store:        store,
		submit:       submit,
		logger:       opts.Logger,
		saveDelay:    opts.SaveDelay,
		dismissAfter: opts.DismissAfter,
	}

	draft, found, err := store.Restore(ctx)
	if err != nil {
		m.logger.Warn("Failed to restore draft, starting fresh", "error", err)
		return m
	}
	if found && draft.Step >= firstStep && draft.Step <= lastStep && draft.Form.TeamSize > 0 {
		m.step = draft.Step
		m.form = draft.Form
	}

	return m
}

func (m *Machine) Step() Step {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.step
}

func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Failure returns the error behind the current Failed state, or the last
// rejected transition's validation error. Nil while everything is fine.
func (m *Machine) Failure() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.failure
}

// FormSnapshot returns a copy of the current form.
func (m *Machine) FormSnapshot() Form {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneForm(m.form)
}

// UpdateForm applies fn to the form and schedules a draft save. Edits are
// allowed while editing or after a failed submit, never mid-submission.
func (m *Machine) UpdateForm(fn func(*Form)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return NewMachineClosedError()
	}
	if m.state == SUBMITTING {
		return NewSubmitInFlightError()
	}

	fn(&m.form)
	m.scheduleSaveLocked()
	return nil
}

// SetTeamSize switches the price tier and resets the member rows. Sizes the
// price table does not define are rejected.
func (m *Machine) SetTeamSize(size int) error {
	if _, err := pricing.TierForSize(size); err != nil {
		return NewTeamSizeNotAllowedError(size)
	}

	return m.UpdateForm(func(f *Form) {
		f.ResizeMembers(size)
	})
}

// Next validates the current step and advances. The draft is flushed
// immediately on a step transition.
func (m *Machine) Next(ctx context.Context) error {
	m.mu.Lock()

	if m.closed {
		m.mu.Unlock()
		return NewMachineClosedError()
	}
	if m.state == SUBMITTING {
		m.mu.Unlock()
		return NewSubmitInFlightError()
	}
	if m.step >= lastStep {
		m.mu.Unlock()
		return nil
	}

	if err := ValidateStep(m.step, m.form); err != nil {
		m.failure = err
		m.mu.Unlock()
		return err
	}

	m.failure = nil
	m.step++
	draft := m.draftLocked()
	m.mu.Unlock()

	m.saveDraft(ctx, draft)
	return nil
}

// Back moves one step back without validating; flushes the draft.
func (m *Machine) Back(ctx context.Context) error {
	m.mu.Lock()

	if m.closed {
		m.mu.Unlock()
		return NewMachineClosedError()
	}
	if m.state == SUBMITTING {
		m.mu.Unlock()
		return NewSubmitInFlightError()
	}
	if m.step <= firstStep {
		m.mu.Unlock()
		return nil
	}

	m.step--
	draft := m.draftLocked()
	m.mu.Unlock()

	m.saveDraft(ctx, draft)
	return nil
}

// Submit runs the commit pipeline from the final step. Re-entrant submits are
// rejected while one is in flight. On success the draft is cleared and the
// wizard resets to an empty step 1 after the dismiss delay; on failure the
// draft and step are untouched so the user can retry.
func (m *Machine) Submit(ctx context.Context) error {
	m.mu.Lock()

	if m.closed {
		m.mu.Unlock()
		return NewMachineClosedError()
	}
	if m.state == SUBMITTING {
		m.mu.Unlock()
		return NewSubmitInFlightError()
	}
	if m.step != lastStep {
		err := NewNotOnFinalStepError(m.step)
		m.failure = err
		m.mu.Unlock()
		return err
	}
	if err := ValidateStep(lastStep, m.form); err != nil {
		m.failure = err
		m.mu.Unlock()
		return err
	}

	m.state = SUBMITTING
	m.failure = nil
	form := cloneForm(m.form)
	m.mu.Unlock()

	err := m.submit(ctx, form)

	m.mu.Lock()
	defer m.mu.Unlock()

	if err != nil {
		m.state = FAILED
		m.failure = err
		return err
	}

	if clearErr := m.store.Clear(ctx); clearErr != nil {
		// The registration committed; a stale draft only means a spurious
		// restore next time.
		m.logger.Warn("Failed to clear draft after successful commit", "error", clearErr)
	}

	m.state = SUCCEEDED
	if m.dismissTimer != nil {
		m.dismissTimer.Stop()
	}
	m.dismissTimer = time.AfterFunc(m.dismissAfter, m.dismissSuccess)
	return nil
}

// Reset discards the draft and returns to an empty step 1.
func (m *Machine) Reset(ctx context.Context) error {
	m.mu.Lock()

	if m.state == SUBMITTING {
		m.mu.Unlock()
		return NewSubmitInFlightError()
	}

	m.step = firstStep
	m.form = NewForm()
	m.state = EDITING
	m.failure = nil
	m.stopSaveTimerLocked()
	m.mu.Unlock()

	return m.store.Clear(ctx)
}

// Close flushes any pending draft write and stops the machine's timers.
func (m *Machine) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true

	pending := m.saveTimer != nil && m.saveTimer.Stop()
	m.saveTimer = nil
	if m.dismissTimer != nil {
		m.dismissTimer.Stop()
		m.dismissTimer = nil
	}
	draft := m.draftLocked()
	editing := m.state == EDITING || m.state == FAILED
	m.mu.Unlock()

	if pending && editing {
		m.saveDraft(context.Background(), draft)
	}
}

func (m *Machine) dismissSuccess() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed || m.state != SUCCEEDED {
		return
	}

	m.state = EDITING
	m.step = firstStep
	m.form = NewForm()
}

func (m *Machine) draftLocked() Draft {
	return Draft{
		Step: m.step,
		Form: cloneForm(m.form),
	}
}

func (m *Machine) stopSaveTimerLocked() {
	if m.saveTimer != nil {
		m.saveTimer.Stop()
		m.saveTimer = nil
	}
}

func (m *Machine) scheduleSaveLocked() {
	if m.saveDelay < 0 {
		draft := m.draftLocked()
		go m.saveDraft(context.Background(), draft)
		return
	}

	if m.saveTimer != nil {
		m.saveTimer.Stop()
	}
	m.saveTimer = time.AfterFunc(m.saveDelay, m.flushDraft)
}

func (m *Machine) flushDraft() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	draft := m.draftLocked()
	m.mu.Unlock()

	m.saveDraft(context.Background(), draft)
}

func (m *Machine) saveDraft(ctx context.Context, draft Draft) {
	if err := m.store.Save(ctx, draft); err != nil {
		// Draft persistence is best-effort; losing it costs a re-type, not
		// a registration.
		m.logger.Warn("Failed to save draft", "error", err)
	}
}

func cloneForm(f Form) Form {
	clone := f
	clone.Members = make([]Member, len(f.Members))
	copy(clone.Members, f.Members)
	return clone
}
