package registration

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/buildx-events/registration/notify"
	"github.com/buildx-events/registration/pricing"
	"github.com/buildx-events/registration/wizard"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultSubmitTimeout = 10 * time.Second
	defaultNotifyTimeout = 5 * time.Second
)

// Pipeline orchestrates a final-step submit: duplicate guard, then the
// atomic capacity-debit-plus-record-write, then the best-effort notification.
// Every failure maps to one typed reason; no step is retried automatically.
type Pipeline struct {
	repo     Repository
	notifier notify.Notifier
	ledgerID string
	logger   *slog.Logger
	tracer   trace.Tracer

	submitTimeout time.Duration
	notifyTimeout time.Duration
	now           func() time.Time
	newID         func() uuid.UUID
}

type PipelineOptions struct {
	// SubmitTimeout bounds each remote call so a hung store request fails
	// with REASON_TIMEOUT instead of leaving the wizard submitting forever.
	SubmitTimeout time.Duration
	NotifyTimeout time.Duration
	Now           func() time.Time
	NewID         func() uuid.UUID
}

func NewPipeline(repo Repository, notifier notify.Notifier, ledgerID string, logger *slog.Logger, opts PipelineOptions) *Pipeline {
	if opts.SubmitTimeout == 0 {
		opts.SubmitTimeout = defaultSubmitTimeout
	}
	if opts.NotifyTimeout == 0 {
		opts.NotifyTimeout = defaultNotifyTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.New
	}

	return &Pipeline{
		repo:          repo,
		notifier:      notifier,
		ledgerID:      ledgerID,
		logger:        logger,
		tracer:        otel.Tracer("registration/pipeline"),
		submitTimeout: opts.SubmitTimeout,
		notifyTimeout: opts.NotifyTimeout,
		now:           opts.Now,
		newID:         opts.NewID,
	}
}

// Submit commits a finished form and returns the created record.
// The caller is expected to have validated the form per step already; the
// price table lookup still rejects team sizes it does not define.
func (p *Pipeline) Submit(ctx context.Context, form wizard.Form) (Record, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.submit", trace.WithAttributes(
		attribute.Int("registration.team_size", form.TeamSize),
	))
	defer span.End()

	tier, err := pricing.TierForSize(form.TeamSize)
	if err != nil {
		return Record{}, NewTeamSizeNotAllowedError(form.TeamSize, err)
	}

	// The leader's email is the record's identity. Normalizing it here, before
	// the duplicate guard, is what keeps the stored key and every later lookup
	// (login included) agreeing on one casing.
	form.Email = strings.ToLower(strings.TrimSpace(form.Email))

	ctx, cancel := context.WithTimeout(ctx, p.submitTimeout)
	defer cancel()

	exists, err := p.repo.EmailExists(ctx, form.Email)
	if err != nil {
		return Record{}, p.asRemoteError(err, "Duplicate check failed")
	}
	if exists {
		span.SetAttributes(attribute.Bool("registration.duplicate", true))
		return Record{}, NewDuplicateEmailError(form.Email)
	}

	record := Record{
		ID:            p.newID(),
		Name:          form.Name,
		Email:         form.Email,
		Phone:         form.Phone,
		TeamName:      form.TeamName,
		TeamSize:      form.TeamSize,
		Members:       form.Members,
		Screenshot:    form.Screenshot,
		PaymentStatus: PAYMENT_PENDING,
		PricePaid:     tier.Price,
		CreatedAt:     p.now().UTC(),
	}

	if err := p.repo.CreateRegistration(ctx, record, p.ledgerID); err != nil {
		return Record{}, p.asRemoteError(err, "Failed to commit registration")
	}

	// Fire-and-forget: the submission's outcome is already decided.
	go p.sendNotification(record, tier.Price.AsMajorUnits())

	p.logger.Info("Registration committed",
		"registrationId", record.ID,
		"teamSize", record.TeamSize,
	)

	return record, nil
}

// SubmitForm adapts Submit to the wizard's SubmitFunc signature.
func (p *Pipeline) SubmitForm(ctx context.Context, form wizard.Form) error {
	_, err := p.Submit(ctx, form)
	return err
}

func (p *Pipeline) sendNotification(record Record, price float64) {
	ctx, cancel := context.WithTimeout(context.Background(), p.notifyTimeout)
	defer cancel()

	err := p.notifier.Notify(ctx, notify.Payload{
		Name:     record.Name,
		Email:    record.Email,
		Phone:    record.Phone,
		TeamName: record.TeamName,
		TeamSize: record.TeamSize,
		Price:    price,
		Members:  record.Members,
	})
	if err != nil {
		// At-most-once, no delivery guarantee: log and drop.
		p.logger.Debug("Registration notification failed", "error", err, "registrationId", record.ID)
	}
}

func (p *Pipeline) asRemoteError(err error, message string) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return NewTimeoutError(message + ": timed out")
	}

	var regErr *Error
	if errors.As(err, &regErr) {
		return err
	}

	return NewFailedToWriteError(message, err)
}
