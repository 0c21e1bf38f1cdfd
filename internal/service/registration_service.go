// Package service implements business logic, validation, and orchestration
// between HTTP handlers and the repository layer.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Shivanand-hulikatti/event-seat-ledger/internal/ledger"
	"github.com/Shivanand-hulikatti/event-seat-ledger/internal/log"
	"github.com/Shivanand-hulikatti/event-seat-ledger/internal/model"
	"github.com/Shivanand-hulikatti/event-seat-ledger/internal/notify"
	"github.com/Shivanand-hulikatti/event-seat-ledger/internal/repository"
	"github.com/Shivanand-hulikatti/event-seat-ledger/internal/tracing"
)

const (
	// invitationAttempts bounds regeneration of colliding invitation codes.
	invitationAttempts = 5
	// statusAttempts bounds re-evaluation after a concurrent status change.
	statusAttempts = 5
)

// Store is the persistence the registration workflow needs.
type Store interface {
	repository.EventStore
	repository.RegistrationStore
}

// Option customises a service.
type Option func(*options)

type options struct {
	publisher notify.Publisher
	tracer    trace.Tracer
	now       func() time.Time
}

// WithPublisher sets where lifecycle messages go. The default drops them.
func WithPublisher(p notify.Publisher) Option {
	return func(o *options) { o.publisher = p }
}

// WithTracer sets the tracer used for operation spans.
func WithTracer(t trace.Tracer) Option {
	return func(o *options) { o.tracer = t }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func newOptions(opts []Option) options {
	o := options{
		publisher: notify.Noop{},
		tracer:    defaultTracer(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// RegistrationService runs the registration lifecycle and keeps each
// event's reserved seats equal to its pending and approved registrations.
type RegistrationService struct {
	store  Store
	ledger *ledger.Ledger
	options
}

// NewRegistrationService constructs a RegistrationService with its dependencies.
func NewRegistrationService(store Store, l *ledger.Ledger, opts ...Option) *RegistrationService {
	return &RegistrationService{store: store, ledger: l, options: newOptions(opts)}
}

// Create validates the request, reserves a seat and stores the registration.
// If the insert fails the seat is handed back before the error is returned.
func (s *RegistrationService) Create(ctx context.Context, req model.CreateRegistrationRequest) (*model.Registration, error) {
	ctx, span := s.tracer.Start(ctx, "registration.create",
		trace.WithAttributes(attribute.String(tracing.AttrEventID, req.EventID)))
	reg, err := s.create(ctx, req)
	if reg != nil {
		span.SetAttributes(attribute.String(tracing.AttrRegistrationID, reg.ID))
	}
	return reg, endSpan(span, err)
}

func (s *RegistrationService) create(ctx context.Context, req model.CreateRegistrationRequest) (*model.Registration, error) {
	req.EventID = strings.TrimSpace(req.EventID)
	req.AttendeeInfo.Email = normalizeEmail(req.AttendeeInfo.Email)
	if req.EventID == "" {
		return nil, invalid("eventId", "is required")
	}
	if req.AttendeeInfo.Email == "" {
		return nil, invalid("attendeeInfo.email", "is required")
	}
	if !isValidEmail(req.AttendeeInfo.Email) {
		return nil, invalid("attendeeInfo.email", "is not a valid email address")
	}
	if req.TotalAmount < 0 {
		return nil, invalid("totalAmount", "must not be negative")
	}

	// Fast path only; the store's unique constraint decides races.
	_, err := s.store.FindByEventAndEmail(ctx, req.EventID, req.AttendeeInfo.Email)
	switch {
	case err == nil:
		return nil, ErrDuplicateRegistration
	case !errors.Is(err, repository.ErrNotFound):
		return nil, fmt.Errorf("check existing registration: %w", err)
	}

	event, err := s.store.GetEvent(ctx, req.EventID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}

	status := model.StatusApproved
	if event.RequiresApproval {
		status = model.StatusPending
	}

	if err := s.ledger.Reserve(ctx, event.ID); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	reg := &model.Registration{
		ID:               uuid.NewString(),
		EventID:          event.ID,
		AttendeeInfo:     req.AttendeeInfo,
		PricingID:        strings.TrimSpace(req.PricingID),
		Status:           status,
		PaymentStatus:    model.PaymentStatusFor(req.TotalAmount),
		TotalAmount:      req.TotalAmount,
		RegistrationDate: now,
		UpdatedAt:        now,
	}

	for attempt := 1; ; attempt++ {
		reg.InvitationCode = newInvitationCode()
		err = s.store.InsertRegistration(ctx, reg)
		if !errors.Is(err, repository.ErrDuplicateInvitation) || attempt == invitationAttempts {
			break
		}
		log.Debug(log.CatWorkflow, "invitation code collision", "attempt", attempt)
	}
	if err != nil {
		s.compensateReserve(ctx, event.ID, err)
		switch {
		case errors.Is(err, repository.ErrDuplicate):
			return nil, ErrDuplicateRegistration
		case errors.Is(err, repository.ErrNotFound):
			// The event was deleted between the reserve and the insert.
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("insert registration: %w", err)
	}

	log.Info(log.CatWorkflow, "registration created",
		"registration_id", reg.ID, "event_id", reg.EventID, "status", reg.Status)
	s.publish(ctx, notify.RegistrationCreated, reg)
	return reg, nil
}

// compensateReserve hands back a seat whose registration was never stored.
func (s *RegistrationService) compensateReserve(ctx context.Context, eventID string, cause error) {
	if err := s.ledger.Release(context.WithoutCancel(ctx), eventID); err != nil {
		log.ErrorErr(log.CatWorkflow, "compensating release failed, reserved count is now high by one", err,
			"event_id", eventID, "cause", cause)
	}
}

// SetStatus moves a registration to status and applies the ledger effect
// of the (old, new) pair. The write is conditional on the old status, so a
// concurrent change is re-read and judged again.
func (s *RegistrationService) SetStatus(ctx context.Context, id string, status model.Status, reason string) (*model.Registration, error) {
	ctx, span := s.tracer.Start(ctx, "registration.set_status", trace.WithAttributes(
		attribute.String(tracing.AttrRegistrationID, id),
		attribute.String(tracing.AttrStatusTo, string(status)),
	))
	reg, err := s.setStatus(ctx, span, id, status, reason)
	return reg, endSpan(span, err)
}

func (s *RegistrationService) setStatus(ctx context.Context, span trace.Span, id string, status model.Status, reason string) (*model.Registration, error) {
	switch status {
	case model.StatusApproved, model.StatusRejected, model.StatusCancelled:
	default:
		return nil, fmt.Errorf("%w: got %q", ErrInvalidStatus, status)
	}

	for attempt := 1; attempt <= statusAttempts; attempt++ {
		current, err := s.get(ctx, id)
		if err != nil {
			return nil, err
		}

		effect := TransitionEffect(current.Status, status)
		span.SetAttributes(
			attribute.String(tracing.AttrEventID, current.EventID),
			attribute.String(tracing.AttrStatusFrom, string(current.Status)),
			attribute.String(tracing.AttrLedgerEffect, effect.String()),
		)
		if effect == EffectForbidden {
			return nil, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, current.Status, status)
		}

		change := model.StatusChange{Status: status, UpdatedAt: s.now().UTC()}
		if status == model.StatusRejected {
			change.RejectionReason = strings.TrimSpace(reason)
		}

		err = s.store.UpdateRegistrationStatus(ctx, id, current.Status, change)
		switch {
		case errors.Is(err, repository.ErrConflict):
			log.Debug(log.CatWorkflow, "status changed concurrently, re-reading",
				"registration_id", id, "attempt", attempt)
			continue
		case errors.Is(err, repository.ErrNotFound):
			return nil, ErrRegistrationNotFound
		case err != nil:
			return nil, fmt.Errorf("update registration status: %w", err)
		}

		if effect == EffectRelease {
			if err := s.ledger.Release(ctx, current.EventID); err != nil {
				s.revertStatus(ctx, current, status)
				return nil, fmt.Errorf("release seat: %w", err)
			}
		}

		updated := *current
		updated.Status = change.Status
		updated.RejectionReason = change.RejectionReason
		updated.UpdatedAt = change.UpdatedAt

		log.Info(log.CatWorkflow, "registration status changed", "registration_id", id,
			"event_id", current.EventID, "from", current.Status, "to", status, "effect", effect)
		s.publish(ctx, notify.TypeForStatus(status), &updated)
		return &updated, nil
	}
	return nil, fmt.Errorf("%w: registration %s", ErrContention, id)
}

// revertStatus puts back the status a failed release was paired with.
func (s *RegistrationService) revertStatus(ctx context.Context, prev *model.Registration, written model.Status) {
	back := model.StatusChange{
		Status:          prev.Status,
		RejectionReason: prev.RejectionReason,
		UpdatedAt:       prev.UpdatedAt,
	}
	if err := s.store.UpdateRegistrationStatus(context.WithoutCancel(ctx), prev.ID, written, back); err != nil {
		log.ErrorErr(log.CatWorkflow, "reverting status after failed release", err,
			"registration_id", prev.ID, "status", written, "want", prev.Status)
	}
}

// Delete removes a registration, releasing its seat only if it still held one.
func (s *RegistrationService) Delete(ctx context.Context, id string) error {
	ctx, span := s.tracer.Start(ctx, "registration.delete",
		trace.WithAttributes(attribute.String(tracing.AttrRegistrationID, id)))
	return endSpan(span, s.delete(ctx, span, id))
}

func (s *RegistrationService) delete(ctx context.Context, span trace.Span, id string) error {
	for attempt := 1; attempt <= statusAttempts; attempt++ {
		current, err := s.get(ctx, id)
		if err != nil {
			return err
		}

		effect := DeleteEffect(current.Status)
		span.SetAttributes(
			attribute.String(tracing.AttrEventID, current.EventID),
			attribute.String(tracing.AttrStatusFrom, string(current.Status)),
			attribute.String(tracing.AttrLedgerEffect, effect.String()),
		)

		err = s.store.DeleteRegistration(ctx, id, current.Status)
		switch {
		case errors.Is(err, repository.ErrConflict):
			continue
		case errors.Is(err, repository.ErrNotFound):
			return ErrRegistrationNotFound
		case err != nil:
			return fmt.Errorf("delete registration: %w", err)
		}

		if effect == EffectRelease {
			if err := s.ledger.Release(ctx, current.EventID); err != nil {
				if rerr := s.store.InsertRegistration(context.WithoutCancel(ctx), current); rerr != nil {
					log.ErrorErr(log.CatWorkflow, "restoring registration after failed release", rerr,
						"registration_id", id, "event_id", current.EventID)
				}
				return fmt.Errorf("release seat: %w", err)
			}
		}

		log.Info(log.CatWorkflow, "registration deleted", "registration_id", id,
			"event_id", current.EventID, "status", current.Status, "effect", effect)
		s.publish(ctx, notify.RegistrationDeleted, current)
		return nil
	}
	return fmt.Errorf("%w: registration %s", ErrContention, id)
}

// Get returns a single registration by ID.
func (s *RegistrationService) Get(ctx context.Context, id string) (*model.Registration, error) {
	ctx, span := s.tracer.Start(ctx, "registration.get",
		trace.WithAttributes(attribute.String(tracing.AttrRegistrationID, id)))
	reg, err := s.get(ctx, id)
	return reg, endSpan(span, err)
}

func (s *RegistrationService) get(ctx context.Context, id string) (*model.Registration, error) {
	if strings.TrimSpace(id) == "" {
		return nil, invalid("id", "is required")
	}
	reg, err := s.store.GetRegistration(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRegistrationNotFound
		}
		return nil, fmt.Errorf("get registration: %w", err)
	}
	return reg, nil
}

// GetByInvitationCode looks a registration up by its invitation code.
func (s *RegistrationService) GetByInvitationCode(ctx context.Context, code string) (*model.Registration, error) {
	ctx, span := s.tracer.Start(ctx, "registration.get_by_invitation")
	defer span.End()

	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, invalid("code", "is required")
	}
	reg, err := s.store.FindByInvitationCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRegistrationNotFound
		}
		return nil, fmt.Errorf("find by invitation code: %w", err)
	}
	return reg, nil
}

// List returns registrations matching filter, oldest first.
func (s *RegistrationService) List(ctx context.Context, filter model.RegistrationFilter) ([]model.Registration, error) {
	ctx, span := s.tracer.Start(ctx, "registration.list",
		trace.WithAttributes(attribute.String(tracing.AttrEventID, filter.EventID)))

	if filter.Status != nil {
		if _, err := model.ParseStatus(string(*filter.Status)); err != nil {
			return nil, endSpan(span, invalid("status", "must be one of pending, approved, rejected, cancelled"))
		}
	}
	regs, err := s.store.ListRegistrations(ctx, filter)
	if err != nil {
		return nil, endSpan(span, fmt.Errorf("list registrations: %w", err))
	}
	span.End()
	return regs, nil
}

func (s *RegistrationService) publish(ctx context.Context, kind string, reg *model.Registration) {
	if err := s.publisher.Publish(context.WithoutCancel(ctx), notify.NewMessage(kind, reg)); err != nil {
		log.Warn(log.CatNotify, "publish lifecycle message failed",
			"type", kind, "registration_id", reg.ID, "error", err)
	}
}
