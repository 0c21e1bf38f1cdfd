// Package ledger reserves and releases event seats. Every write is a
// compare-and-swap on the event's version, retried with exponential backoff
// when another writer got there first.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/cenkalti/backoff/v5"

	"github.com/Shivanand-hulikatti/event-seat-ledger/internal/config"
	"github.com/Shivanand-hulikatti/event-seat-ledger/internal/log"
	"github.com/Shivanand-hulikatti/event-seat-ledger/internal/model"
	"github.com/Shivanand-hulikatti/event-seat-ledger/internal/repository"
)

var (
	ErrEventNotFound = errors.New("event not found")
	ErrEventFull     = errors.New("event is fully booked")
	// ErrContention is returned when the retry budget ran out while other
	// writers kept changing the event.
	ErrContention    = errors.New("event capacity is under heavy contention, retry later")
	ErrBelowReserved = errors.New("capacity cannot be lower than the seats already reserved")
	ErrInvalidTotal  = errors.New("capacity must be a positive integer")
)

// Ledger owns the capacity triple of every event.
type Ledger struct {
	store repository.EventStore
	cfg   config.LedgerConfig
}

// New returns a ledger writing through store.
func New(store repository.EventStore, cfg config.LedgerConfig) *Ledger {
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = config.Defaults().Ledger.MaxAttempts
	}
	return &Ledger{store: store, cfg: cfg}
}

// Reserve takes one seat.
func (l *Ledger) Reserve(ctx context.Context, eventID string) error {
	c, err := l.update(ctx, eventID, func(c model.Capacity) (model.Capacity, error) {
		next, ok := c.Reserve()
		if !ok {
			return c, ErrEventFull
		}
		return next, nil
	})
	if err != nil {
		return err
	}
	log.Debug(log.CatLedger, "seat reserved", "event_id", eventID,
		"total", c.Total, "reserved", c.Reserved, "available", c.Available)
	return nil
}

// Release hands one seat back. Reserved never drops below zero. Release is
// not idempotent: callers must invoke it once per seat they hold.
func (l *Ledger) Release(ctx context.Context, eventID string) error {
	c, err := l.update(ctx, eventID, func(c model.Capacity) (model.Capacity, error) {
		if c.Reserved <= 0 {
			log.Warn(log.CatLedger, "release with no reserved seats", "event_id", eventID)
		}
		return c.Release(), nil
	})
	if err != nil {
		return err
	}
	log.Debug(log.CatLedger, "seat released", "event_id", eventID,
		"total", c.Total, "reserved", c.Reserved, "available", c.Available)
	return nil
}

// Resize changes the total seat count of an event.
func (l *Ledger) Resize(ctx context.Context, eventID string, total int) (model.Capacity, error) {
	if total <= 0 {
		return model.Capacity{}, ErrInvalidTotal
	}
	c, err := l.update(ctx, eventID, func(c model.Capacity) (model.Capacity, error) {
		if total < c.Reserved {
			return c, ErrBelowReserved
		}
		return c.Resize(total)
	})
	if err != nil {
		return model.Capacity{}, err
	}
	log.Info(log.CatLedger, "capacity resized", "event_id", eventID,
		"total", c.Total, "reserved", c.Reserved, "available", c.Available)
	return c, nil
}

// Snapshot returns the current triple.
func (l *Ledger) Snapshot(ctx context.Context, eventID string) (model.Capacity, error) {
	event, err := l.store.GetEvent(ctx, eventID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Capacity{}, ErrEventNotFound
		}
		return model.Capacity{}, fmt.Errorf("read event %s: %w", eventID, err)
	}
	return event.Capacity, nil
}

// update runs read, compute, conditional write until the write lands, the
// computation refuses, or the attempt budget is spent.
func (l *Ledger) update(ctx context.Context, eventID string, next func(model.Capacity) (model.Capacity, error)) (model.Capacity, error) {
	attempt := 0
	op := func() (model.Capacity, error) {
		attempt++
		event, err := l.store.GetEvent(ctx, eventID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return model.Capacity{}, backoff.Permanent(ErrEventNotFound)
			}
			return model.Capacity{}, backoff.Permanent(fmt.Errorf("read event %s: %w", eventID, err))
		}

		c, err := next(event.Capacity)
		if err != nil {
			return model.Capacity{}, backoff.Permanent(err)
		}

		err = l.store.SwapCapacity(ctx, eventID, event.Version, c)
		switch {
		case err == nil:
			return c, nil
		case errors.Is(err, repository.ErrConflict):
			log.Debug(log.CatLedger, "capacity write lost race", "event_id", eventID, "attempt", attempt)
			return model.Capacity{}, err
		case errors.Is(err, repository.ErrNotFound):
			return model.Capacity{}, backoff.Permanent(ErrEventNotFound)
		default:
			return model.Capacity{}, backoff.Permanent(fmt.Errorf("write capacity of %s: %w", eventID, err))
		}
	}

	c, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(l.newBackOff()),
		backoff.WithMaxTries(l.cfg.MaxAttempts),
	)
	if err == nil {
		return c, nil
	}

	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		err = permanent.Err
	}
	if errors.Is(err, repository.ErrConflict) {
		log.Warn(log.CatLedger, "capacity retry budget exhausted", "event_id", eventID, "attempts", attempt)
		return model.Capacity{}, fmt.Errorf("%w: event %s", ErrContention, eventID)
	}
	return model.Capacity{}, err
}

func (l *Ledger) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	if l.cfg.InitialBackoff > 0 {
		b.InitialInterval = l.cfg.InitialBackoff
	}
	if l.cfg.MaxBackoff > 0 {
		b.MaxInterval = l.cfg.MaxBackoff
	}
	return b
}
