// Package notify publishes registration lifecycle messages.
package notify

import (
	"context"
	"time"

	"github.com/Shivanand-hulikatti/event-seat-ledger/internal/model"
)

// Routing keys.
const (
	RegistrationCreated   = "registration.created"
	RegistrationApproved  = "registration.approved"
	RegistrationRejected  = "registration.rejected"
	RegistrationCancelled = "registration.cancelled"
	RegistrationDeleted   = "registration.deleted"
)

// Message is the JSON body of a lifecycle notification.
type Message struct {
	Type           string       `json:"type"`
	RegistrationID string       `json:"registrationId"`
	EventID        string       `json:"eventId"`
	Email          string       `json:"email"`
	Status         model.Status `json:"status"`
	InvitationCode string       `json:"invitationCode,omitempty"`
	OccurredAt     time.Time    `json:"occurredAt"`
}

// NewMessage builds a message of type kind for reg.
func NewMessage(kind string, reg *model.Registration) Message {
	return Message{
		Type:           kind,
		RegistrationID: reg.ID,
		EventID:        reg.EventID,
		Email:          reg.AttendeeInfo.Email,
		Status:         reg.Status,
		InvitationCode: reg.InvitationCode,
		OccurredAt:     time.Now().UTC(),
	}
}

// TypeForStatus returns the routing key announcing a move into s.
func TypeForStatus(s model.Status) string {
	switch s {
	case model.StatusApproved:
		return RegistrationApproved
	case model.StatusRejected:
		return RegistrationRejected
	case model.StatusCancelled:
		return RegistrationCancelled
	}
	return RegistrationCreated
}

// Publisher delivers lifecycle messages.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
	Close() error
}

// Noop discards every message.
type Noop struct{}

func (Noop) Publish(context.Context, Message) error { return nil }
func (Noop) Close() error                           { return nil }
