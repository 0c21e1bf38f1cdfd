package repository

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/Shivanand-hulikatti/event-seat-ledger/internal/model"
)

// runStoreContract exercises behaviour every read-write Store must share.
func runStoreContract(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("event round trip", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		e := sampleEvent(10)
		require.NoError(t, s.CreateEvent(ctx, e))

		got, err := s.GetEvent(ctx, e.ID)
		require.NoError(t, err)
		require.Equal(t, e.Title, got.Title)
		require.Equal(t, model.NewCapacity(10, 0), got.Capacity)
		require.True(t, got.RequiresApproval)

		_, err = s.GetEvent(ctx, uuid.NewString())
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("swap capacity is conditional on version", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		e := sampleEvent(2)
		require.NoError(t, s.CreateEvent(ctx, e))

		require.NoError(t, s.SwapCapacity(ctx, e.ID, e.Version, model.NewCapacity(2, 1)))
		require.ErrorIs(t, s.SwapCapacity(ctx, e.ID, e.Version, model.NewCapacity(2, 2)), ErrConflict)
		require.ErrorIs(t, s.SwapCapacity(ctx, uuid.NewString(), 0, model.NewCapacity(2, 0)), ErrNotFound)

		got, err := s.GetEvent(ctx, e.ID)
		require.NoError(t, err)
		require.Equal(t, model.NewCapacity(2, 1), got.Capacity)
		require.Equal(t, e.Version+1, got.Version)
	})

	t.Run("concurrent swaps on one version admit exactly one writer", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		e := sampleEvent(5)
		require.NoError(t, s.CreateEvent(ctx, e))

		var wins atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if s.SwapCapacity(ctx, e.ID, e.Version, model.NewCapacity(5, 1)) == nil {
					wins.Add(1)
				}
			}()
		}
		wg.Wait()
		require.Equal(t, int32(1), wins.Load())
	})

	t.Run("registration uniqueness", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		e := sampleEvent(10)
		require.NoError(t, s.CreateEvent(ctx, e))

		first := sampleRegistration(e.ID, "a@x.com", model.StatusPending)
		require.NoError(t, s.InsertRegistration(ctx, first))

		dup := sampleRegistration(e.ID, "a@x.com", model.StatusPending)
		require.ErrorIs(t, s.InsertRegistration(ctx, dup), ErrDuplicate)

		sameCode := sampleRegistration(e.ID, "b@x.com", model.StatusPending)
		sameCode.InvitationCode = first.InvitationCode
		require.ErrorIs(t, s.InsertRegistration(ctx, sameCode), ErrDuplicateInvitation)

		got, err := s.FindByEventAndEmail(ctx, e.ID, "a@x.com")
		require.NoError(t, err)
		require.Equal(t, first.ID, got.ID)

		got, err = s.FindByInvitationCode(ctx, first.InvitationCode)
		require.NoError(t, err)
		require.Equal(t, first.ID, got.ID)
	})

	t.Run("status update and delete are conditional", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		e := sampleEvent(10)
		require.NoError(t, s.CreateEvent(ctx, e))
		reg := sampleRegistration(e.ID, "c@x.com", model.StatusPending)
		require.NoError(t, s.InsertRegistration(ctx, reg))

		change := model.StatusChange{Status: model.StatusRejected, RejectionReason: "no slots", UpdatedAt: time.Now().UTC()}
		require.NoError(t, s.UpdateRegistrationStatus(ctx, reg.ID, model.StatusPending, change))
		require.ErrorIs(t, s.UpdateRegistrationStatus(ctx, reg.ID, model.StatusPending, change), ErrConflict)
		require.ErrorIs(t, s.UpdateRegistrationStatus(ctx, uuid.NewString(), model.StatusPending, change), ErrNotFound)

		got, err := s.GetRegistration(ctx, reg.ID)
		require.NoError(t, err)
		require.Equal(t, model.StatusRejected, got.Status)
		require.Equal(t, "no slots", got.RejectionReason)

		require.ErrorIs(t, s.DeleteRegistration(ctx, reg.ID, model.StatusPending), ErrConflict)
		require.NoError(t, s.DeleteRegistration(ctx, reg.ID, model.StatusRejected))
		require.ErrorIs(t, s.DeleteRegistration(ctx, reg.ID, model.StatusRejected), ErrNotFound)

		// The attendee may register again once the record is gone.
		again := sampleRegistration(e.ID, "c@x.com", model.StatusPending)
		require.NoError(t, s.InsertRegistration(ctx, again))
	})

	t.Run("list filters by event and status", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		e1, e2 := sampleEvent(10), sampleEvent(10)
		require.NoError(t, s.CreateEvent(ctx, e1))
		require.NoError(t, s.CreateEvent(ctx, e2))

		require.NoError(t, s.InsertRegistration(ctx, sampleRegistration(e1.ID, "a@x.com", model.StatusPending)))
		require.NoError(t, s.InsertRegistration(ctx, sampleRegistration(e1.ID, "b@x.com", model.StatusApproved)))
		require.NoError(t, s.InsertRegistration(ctx, sampleRegistration(e2.ID, "a@x.com", model.StatusApproved)))

		all, err := s.ListRegistrations(ctx, model.RegistrationFilter{EventID: e1.ID})
		require.NoError(t, err)
		require.Len(t, all, 2)

		approved := model.StatusApproved
		got, err := s.ListRegistrations(ctx, model.RegistrationFilter{EventID: e1.ID, Status: &approved})
		require.NoError(t, err)
		require.Len(t, got, 1)
		require.Equal(t, "b@x.com", got[0].AttendeeInfo.Email)
	})

	t.Run("event with registrations cannot be deleted", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		e := sampleEvent(10)
		require.NoError(t, s.CreateEvent(ctx, e))
		reg := sampleRegistration(e.ID, "a@x.com", model.StatusCancelled)
		require.NoError(t, s.InsertRegistration(ctx, reg))

		require.ErrorIs(t, s.DeleteEvent(ctx, e.ID), ErrHasRegistrations)
		require.NoError(t, s.DeleteRegistration(ctx, reg.ID, model.StatusCancelled))
		require.NoError(t, s.DeleteEvent(ctx, e.ID))
		require.ErrorIs(t, s.DeleteEvent(ctx, e.ID), ErrNotFound)
	})

	t.Run("event with reserved seats cannot be deleted", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		e := sampleEvent(3)
		require.NoError(t, s.CreateEvent(ctx, e))
		require.NoError(t, s.SwapCapacity(ctx, e.ID, e.Version, model.NewCapacity(3, 1)))

		require.ErrorIs(t, s.DeleteEvent(ctx, e.ID), ErrHasRegistrations)
		_, err := s.GetEvent(ctx, e.ID)
		require.NoError(t, err)

		require.NoError(t, s.SwapCapacity(ctx, e.ID, e.Version+1, model.NewCapacity(3, 0)))
		require.NoError(t, s.DeleteEvent(ctx, e.ID))
	})

	t.Run("registration for a missing event is rejected", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		reg := sampleRegistration(uuid.NewString(), "a@x.com", model.StatusPending)
		require.ErrorIs(t, s.InsertRegistration(ctx, reg), ErrNotFound)
	})
}

var sampleSeq atomic.Int64

func sampleEvent(total int) *model.Event {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &model.Event{
		ID:               uuid.NewString(),
		Title:            "Skin Science Masterclass",
		Status:           model.EventPublished,
		RequiresApproval: true,
		Capacity:         model.NewCapacity(total, 0),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

func sampleRegistration(eventID, email string, status model.Status) *model.Registration {
	n := sampleSeq.Add(1)
	now := time.Now().UTC().Truncate(time.Millisecond).Add(time.Duration(n) * time.Millisecond)
	return &model.Registration{
		ID:               uuid.NewString(),
		EventID:          eventID,
		AttendeeInfo:     model.AttendeeInfo{Email: email, Name: "Test Attendee"},
		Status:           status,
		PaymentStatus:    model.PaymentPaid,
		InvitationCode:   fmt.Sprintf("INV-%012X", n),
		RegistrationDate: now,
		UpdatedAt:        now,
	}
}
