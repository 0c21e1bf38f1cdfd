package service

import (
	"errors"
	"fmt"

	"github.com/Shivanand-hulikatti/event-seat-ledger/internal/ledger"
)

// ValidationError reports a request field that failed validation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Message)
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

var (
	ErrDuplicateRegistration = errors.New("a registration for this email already exists for this event")
	ErrRegistrationNotFound  = errors.New("registration not found")
	ErrInvalidStatus         = errors.New("status must be one of approved, rejected, cancelled")
	ErrInvalidTransition     = errors.New("status change not allowed")
	ErrEventHasRegistrations = errors.New("event has registrations and cannot be deleted")
)

// Ledger errors surfaced unchanged by the services.
var (
	ErrEventNotFound = ledger.ErrEventNotFound
	ErrEventFull     = ledger.ErrEventFull
	ErrContention    = ledger.ErrContention
	ErrBelowReserved = ledger.ErrBelowReserved
)
