package repository

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/Shivanand-hulikatti/event-seat-ledger/internal/model"
)

type attendeeKey struct {
	eventID string
	email   string
}

// MemoryStore keeps events and registrations in process memory. Every
// method runs under one mutex, so its conditional writes are linearizable
// within a single instance.
type MemoryStore struct {
	mu         sync.RWMutex
	events     map[string]model.Event
	regs       map[string]model.Registration
	byAttendee map[attendeeKey]string
	byCode     map[string]string
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		events:     make(map[string]model.Event),
		regs:       make(map[string]model.Registration),
		byAttendee: make(map[attendeeKey]string),
		byCode:     make(map[string]string),
	}
}

func (s *MemoryStore) Name() string                   { return "memory" }
func (s *MemoryStore) ReadOnly() bool                 { return false }
func (s *MemoryStore) Ping(ctx context.Context) error { return ctx.Err() }
func (s *MemoryStore) Close(context.Context) error    { return nil }

func (s *MemoryStore) CreateEvent(ctx context.Context, event *model.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[event.ID]; ok {
		return ErrDuplicate
	}
	s.events[event.ID] = *event
	return nil
}

func (s *MemoryStore) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.events[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &e, nil
}

func (s *MemoryStore) ListEvents(ctx context.Context) ([]model.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Event, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e)
	}
	slices.SortFunc(out, func(a, b model.Event) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (s *MemoryStore) SwapCapacity(ctx context.Context, id string, version int64, c model.Capacity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[id]
	if !ok {
		return ErrNotFound
	}
	if e.Version != version {
		return ErrConflict
	}
	e.Capacity = c
	e.Version++
	s.events[id] = e
	return nil
}

func (s *MemoryStore) DeleteEvent(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[id]
	if !ok {
		return ErrNotFound
	}
	if e.Capacity.Reserved > 0 {
		return ErrHasRegistrations
	}
	for _, r := range s.regs {
		if r.EventID == id {
			return ErrHasRegistrations
		}
	}
	delete(s.events, id)
	return nil
}

func (s *MemoryStore) InsertRegistration(ctx context.Context, reg *model.Registration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[reg.EventID]; !ok {
		return ErrNotFound
	}
	key := attendeeKey{reg.EventID, reg.AttendeeInfo.Email}
	if _, ok := s.byAttendee[key]; ok {
		return ErrDuplicate
	}
	if _, ok := s.byCode[reg.InvitationCode]; ok {
		return ErrDuplicateInvitation
	}
	if _, ok := s.regs[reg.ID]; ok {
		return ErrDuplicate
	}
	s.regs[reg.ID] = *reg
	s.byAttendee[key] = reg.ID
	s.byCode[reg.InvitationCode] = reg.ID
	return nil
}

func (s *MemoryStore) GetRegistration(ctx context.Context, id string) (*model.Registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.regs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &r, nil
}

func (s *MemoryStore) FindByEventAndEmail(ctx context.Context, eventID, email string) (*model.Registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byAttendee[attendeeKey{eventID, email}]
	if !ok {
		return nil, ErrNotFound
	}
	r := s.regs[id]
	return &r, nil
}

func (s *MemoryStore) FindByInvitationCode(ctx context.Context, code string) (*model.Registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byCode[code]
	if !ok {
		return nil, ErrNotFound
	}
	r := s.regs[id]
	return &r, nil
}

func (s *MemoryStore) ListRegistrations(ctx context.Context, filter model.RegistrationFilter) ([]model.Registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Registration, 0)
	for _, r := range s.regs {
		if matches(r, filter) {
			out = append(out, r)
		}
	}
	sortRegistrations(out)
	return out, nil
}

func (s *MemoryStore) UpdateRegistrationStatus(ctx context.Context, id string, from model.Status, change model.StatusChange) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.regs[id]
	if !ok {
		return ErrNotFound
	}
	if r.Status != from {
		return ErrConflict
	}
	r.Status = change.Status
	r.RejectionReason = change.RejectionReason
	r.UpdatedAt = change.UpdatedAt
	s.regs[id] = r
	return nil
}

func (s *MemoryStore) DeleteRegistration(ctx context.Context, id string, expected model.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.regs[id]
	if !ok {
		return ErrNotFound
	}
	if r.Status != expected {
		return ErrConflict
	}
	delete(s.regs, id)
	delete(s.byAttendee, attendeeKey{r.EventID, r.AttendeeInfo.Email})
	delete(s.byCode, r.InvitationCode)
	return nil
}

func matches(r model.Registration, f model.RegistrationFilter) bool {
	if f.EventID != "" && r.EventID != f.EventID {
		return false
	}
	if f.Status != nil && r.Status != *f.Status {
		return false
	}
	return true
}

func sortRegistrations(regs []model.Registration) {
	slices.SortFunc(regs, func(a, b model.Registration) int {
		if c := a.RegistrationDate.Compare(b.RegistrationDate); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}
