// Package repository defines the event and registration stores and their
// adapters: PostgreSQL (pgx), MongoDB, in-memory and a read-only fixture set.
package repository

import (
	"context"
	"errors"

	"github.com/Shivanand-hulikatti/event-seat-ledger/internal/model"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a conditional write lost a race: the event
// version or the registration status no longer matches what the caller read.
var ErrConflict = errors.New("record changed concurrently")

// ErrDuplicate is returned when a registration for the same event and
// attendee email already exists.
var ErrDuplicate = errors.New("registration already exists for this event and email")

// ErrDuplicateInvitation is returned when an invitation code is already taken.
var ErrDuplicateInvitation = errors.New("invitation code already in use")

// ErrHasRegistrations is returned when deleting an event that still has
// registrations.
var ErrHasRegistrations = errors.New("event has registrations")

// ErrReadOnly is returned by every mutation of a read-only store.
var ErrReadOnly = errors.New("store is read-only")

// ErrUnavailable is returned when the backing store cannot be reached.
var ErrUnavailable = errors.New("store unavailable")

// EventStore persists events and their capacity triple.
type EventStore interface {
	CreateEvent(ctx context.Context, event *model.Event) error
	GetEvent(ctx context.Context, id string) (*model.Event, error)
	ListEvents(ctx context.Context) ([]model.Event, error)
	// SwapCapacity writes c and bumps the version only if the stored version
	// still equals version. Otherwise it returns ErrConflict.
	SwapCapacity(ctx context.Context, id string, version int64, c model.Capacity) error
	// DeleteEvent removes an event with no registrations.
	DeleteEvent(ctx context.Context, id string) error
}

// RegistrationStore persists registrations.
type RegistrationStore interface {
	// InsertRegistration fails with ErrDuplicate when (eventId, email) is
	// taken and ErrDuplicateInvitation when the invitation code is.
	InsertRegistration(ctx context.Context, reg *model.Registration) error
	GetRegistration(ctx context.Context, id string) (*model.Registration, error)
	FindByEventAndEmail(ctx context.Context, eventID, email string) (*model.Registration, error)
	FindByInvitationCode(ctx context.Context, code string) (*model.Registration, error)
	ListRegistrations(ctx context.Context, filter model.RegistrationFilter) ([]model.Registration, error)
	// UpdateRegistrationStatus applies change only if the stored status is
	// still from. Otherwise it returns ErrConflict.
	UpdateRegistrationStatus(ctx context.Context, id string, from model.Status, change model.StatusChange) error
	// DeleteRegistration removes the record only if its status is still
	// expected. Otherwise it returns ErrConflict.
	DeleteRegistration(ctx context.Context, id string, expected model.Status) error
}

// Store is a complete persistence backend.
type Store interface {
	EventStore
	RegistrationStore
	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error
	// ReadOnly reports whether mutations are refused.
	ReadOnly() bool
	// Name identifies the adapter in logs and readiness output.
	Name() string
	Close(ctx context.Context) error
}
