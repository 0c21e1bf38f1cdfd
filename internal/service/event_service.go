package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Shivanand-hulikatti/event-seat-ledger/internal/ledger"
	"github.com/Shivanand-hulikatti/event-seat-ledger/internal/log"
	"github.com/Shivanand-hulikatti/event-seat-ledger/internal/model"
	"github.com/Shivanand-hulikatti/event-seat-ledger/internal/repository"
	"github.com/Shivanand-hulikatti/event-seat-ledger/internal/tracing"
)

const maxCapacity = 100_000

// EventService orchestrates event-related business operations.
type EventService struct {
	events repository.EventStore
	ledger *ledger.Ledger
	options
}

// NewEventService constructs an EventService with its dependencies.
func NewEventService(events repository.EventStore, l *ledger.Ledger, opts ...Option) *EventService {
	return &EventService{events: events, ledger: l, options: newOptions(opts)}
}

// CreateEvent validates the request and stores a new event with no seats
// reserved.
func (s *EventService) CreateEvent(ctx context.Context, req model.CreateEventRequest) (*model.Event, error) {
	ctx, span := s.tracer.Start(ctx, "event.create")
	event, err := s.createEvent(ctx, req)
	if event != nil {
		span.SetAttributes(attribute.String(tracing.AttrEventID, event.ID))
	}
	return event, endSpan(span, err)
}

func (s *EventService) createEvent(ctx context.Context, req model.CreateEventRequest) (*model.Event, error) {
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		return nil, invalid("title", "is required")
	}
	if err := validateTotal(req.Capacity); err != nil {
		return nil, err
	}
	if req.Status == "" {
		req.Status = model.EventPublished
	}
	if !req.Status.Valid() {
		return nil, invalid("status", "must be one of draft, published, cancelled, completed")
	}

	now := s.now().UTC()
	event := &model.Event{
		ID:               uuid.NewString(),
		Title:            req.Title,
		Description:      strings.TrimSpace(req.Description),
		Status:           req.Status,
		RequiresApproval: req.RequiresApproval,
		Capacity:         model.NewCapacity(req.Capacity, 0),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.events.CreateEvent(ctx, event); err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}
	log.Info(log.CatWorkflow, "event created", "event_id", event.ID, "total", req.Capacity)
	return event, nil
}

// ListEvents returns all events, newest first.
func (s *EventService) ListEvents(ctx context.Context) ([]model.Event, error) {
	events, err := s.events.ListEvents(ctx)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}

// GetEvent returns a single event by ID.
func (s *EventService) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	if strings.TrimSpace(id) == "" {
		return nil, invalid("id", "is required")
	}
	event, err := s.events.GetEvent(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return event, nil
}

// DeleteEvent removes an event that has no registrations.
func (s *EventService) DeleteEvent(ctx context.Context, id string) error {
	ctx, span := s.tracer.Start(ctx, "event.delete",
		trace.WithAttributes(attribute.String(tracing.AttrEventID, id)))

	err := s.events.DeleteEvent(ctx, id)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		err = ErrEventNotFound
	case errors.Is(err, repository.ErrHasRegistrations):
		err = ErrEventHasRegistrations
	case err != nil:
		err = fmt.Errorf("delete event: %w", err)
	default:
		log.Info(log.CatWorkflow, "event deleted", "event_id", id)
	}
	return endSpan(span, err)
}

// ResizeCapacity changes the total seats of an event through the ledger.
func (s *EventService) ResizeCapacity(ctx context.Context, id string, total int) (*model.Event, error) {
	ctx, span := s.tracer.Start(ctx, "event.resize_capacity",
		trace.WithAttributes(attribute.String(tracing.AttrEventID, id)))

	if err := validateTotal(total); err != nil {
		return nil, endSpan(span, err)
	}
	if _, err := s.ledger.Resize(ctx, id, total); err != nil {
		return nil, endSpan(span, err)
	}
	event, err := s.GetEvent(ctx, id)
	return event, endSpan(span, err)
}

func validateTotal(total int) error {
	if total <= 0 {
		return invalid("capacity", "must be a positive integer")
	}
	if total > maxCapacity {
		return invalid("capacity", "cannot exceed 100,000")
	}
	return nil
}
