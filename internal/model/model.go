// Package model defines the core domain types for event seat reservation
// and registration approval.
package model

import (
	"fmt"
	"time"
)

// EventStatus is the publication state of an event. The capacity ledger
// does not look at it.
type EventStatus string

const (
	EventDraft     EventStatus = "draft"
	EventPublished EventStatus = "published"
	EventCancelled EventStatus = "cancelled"
	EventCompleted EventStatus = "completed"
)

// Valid reports whether s is a known event status.
func (s EventStatus) Valid() bool {
	switch s {
	case EventDraft, EventPublished, EventCancelled, EventCompleted:
		return true
	}
	return false
}

// Capacity is the seat triple of an event.
// Available is always Total - Reserved.
type Capacity struct {
	Total     int `json:"total" bson:"total" yaml:"total"`
	Reserved  int `json:"reserved" bson:"reserved" yaml:"reserved"`
	Available int `json:"available" bson:"available" yaml:"available"`
}

// NewCapacity returns a triple with the given total and reserved seats.
func NewCapacity(total, reserved int) Capacity {
	return Capacity{Total: total, Reserved: reserved, Available: total - reserved}
}

// Valid reports whether the triple satisfies 0 <= reserved <= total and
// reserved + available == total.
func (c Capacity) Valid() bool {
	return c.Reserved >= 0 && c.Reserved <= c.Total && c.Reserved+c.Available == c.Total
}

// IsFull returns true when no seats remain.
func (c Capacity) IsFull() bool {
	return c.Reserved >= c.Total
}

// Reserve returns the triple with one more seat reserved, or false when the
// event is full.
func (c Capacity) Reserve() (Capacity, bool) {
	if c.IsFull() {
		return c, false
	}
	return NewCapacity(c.Total, c.Reserved+1), true
}

// Release returns the triple with one seat handed back, clamped at zero.
func (c Capacity) Release() Capacity {
	reserved := c.Reserved - 1
	if reserved < 0 {
		reserved = 0
	}
	if reserved > c.Total {
		reserved = c.Total
	}
	return NewCapacity(c.Total, reserved)
}

// Resize returns the triple with a new total. It fails when the new total
// would drop below the seats already reserved.
func (c Capacity) Resize(total int) (Capacity, error) {
	if total < c.Reserved {
		return c, fmt.Errorf("total %d is below %d reserved seats", total, c.Reserved)
	}
	return NewCapacity(total, c.Reserved), nil
}

// Event represents a bookable event.
type Event struct {
	ID               string      `json:"id"`
	Title            string      `json:"title"`
	Description      string      `json:"description,omitempty"`
	Status           EventStatus `json:"status"`
	RequiresApproval bool        `json:"requiresApproval"`
	Capacity         Capacity    `json:"capacity"`
	// Version is bumped on every capacity write and guards the ledger's
	// conditional updates.
	Version   int64     `json:"-"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Status is the lifecycle state of a registration.
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusCancelled Status = "cancelled"
)

// Statuses lists every registration status.
var Statuses = []Status{StatusPending, StatusApproved, StatusRejected, StatusCancelled}

// ParseStatus converts s into a Status.
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusPending, StatusApproved, StatusRejected, StatusCancelled:
		return st, nil
	}
	return "", fmt.Errorf("unknown registration status %q", s)
}

// HoldsSeat reports whether a registration in this status counts against
// the event's reserved seats.
func (s Status) HoldsSeat() bool {
	switch s {
	case StatusPending, StatusApproved:
		return true
	case StatusRejected, StatusCancelled:
		return false
	}
	return false
}

// Terminal reports whether no further status change is defined.
func (s Status) Terminal() bool {
	return s == StatusRejected || s == StatusCancelled
}

// PaymentStatus records whether a registration still owes money.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
)

// PaymentStatusFor returns paid for free registrations.
func PaymentStatusFor(amount float64) PaymentStatus {
	if amount > 0 {
		return PaymentPending
	}
	return PaymentPaid
}

// AttendeeInfo describes the person attending.
type AttendeeInfo struct {
	Email   string `json:"email" bson:"email" yaml:"email"`
	Name    string `json:"name,omitempty" bson:"name,omitempty" yaml:"name"`
	Phone   string `json:"phone,omitempty" bson:"phone,omitempty" yaml:"phone"`
	Company string `json:"company,omitempty" bson:"company,omitempty" yaml:"company"`
}

// Registration represents an attendee's registration for an event.
type Registration struct {
	ID               string        `json:"id"`
	EventID          string        `json:"eventId"`
	AttendeeInfo     AttendeeInfo  `json:"attendeeInfo"`
	PricingID        string        `json:"pricingId,omitempty"`
	Status           Status        `json:"status"`
	PaymentStatus    PaymentStatus `json:"paymentStatus"`
	TotalAmount      float64       `json:"totalAmount"`
	InvitationCode   string        `json:"invitationCode"`
	RejectionReason  string        `json:"rejectionReason,omitempty"`
	RegistrationDate time.Time     `json:"registrationDate"`
	UpdatedAt        time.Time     `json:"updatedAt"`
}

// RegistrationFilter narrows a registration listing. Empty fields match all.
type RegistrationFilter struct {
	EventID string
	Status  *Status
}

// StatusChange is the patch applied when a registration changes status.
type StatusChange struct {
	Status          Status
	RejectionReason string
	UpdatedAt       time.Time
}

// CreateEventRequest is the payload for creating a new event.
type CreateEventRequest struct {
	Title            string      `json:"title"`
	Description      string      `json:"description"`
	Status           EventStatus `json:"status"`
	RequiresApproval bool        `json:"requiresApproval"`
	Capacity         int         `json:"capacity"`
}

// ResizeCapacityRequest is the payload for changing an event's total seats.
type ResizeCapacityRequest struct {
	Total int `json:"total"`
}

// CreateRegistrationRequest is the payload for registering for an event.
type CreateRegistrationRequest struct {
	EventID      string       `json:"eventId"`
	AttendeeInfo AttendeeInfo `json:"attendeeInfo"`
	PricingID    string       `json:"pricingId"`
	TotalAmount  float64      `json:"totalAmount"`
}

// UpdateRegistrationRequest is the payload for a status change.
type UpdateRegistrationRequest struct {
	Status          string `json:"status"`
	RejectionReason string `json:"rejectionReason"`
}

// ErrorResponse is a standard JSON error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
}

// MessageResponse acknowledges a request that returns no resource.
type MessageResponse struct {
	Message string `json:"message"`
}

type RegistrationResponse struct {
	Registration *Registration `json:"registration"`
}

type RegistrationListResponse struct {
	Registrations []Registration `json:"registrations"`
	Count         int            `json:"count"`
}

type EventResponse struct {
	Event *Event `json:"event"`
}

type EventListResponse struct {
	Events []Event `json:"events"`
	Count  int     `json:"count"`
}

// ReadinessResponse reports whether the store answers and whether writes
// are accepted.
type ReadinessResponse struct {
	Status string `json:"status"`
	Mode   string `json:"mode"`
	Store  string `json:"store"`
}
