package service

import "github.com/Shivanand-hulikatti/event-seat-ledger/internal/model"

// Effect is what a status change does to the event's seat count.
type Effect int

const (
	EffectForbidden Effect = iota
	EffectNone
	EffectRelease
)

func (e Effect) String() string {
	switch e {
	case EffectNone:
		return "none"
	case EffectRelease:
		return "release"
	}
	return "forbidden"
}

type transition struct {
	from, to model.Status
}

// transitions lists every (old, new) pair. A missing pair would read as
// forbidden; the table test keeps it complete.
var transitions = map[transition]Effect{
	{model.StatusPending, model.StatusPending}:   EffectForbidden,
	{model.StatusPending, model.StatusApproved}:  EffectNone,
	{model.StatusPending, model.StatusRejected}:  EffectRelease,
	{model.StatusPending, model.StatusCancelled}: EffectRelease,

	{model.StatusApproved, model.StatusPending}:   EffectForbidden,
	{model.StatusApproved, model.StatusApproved}:  EffectForbidden,
	{model.StatusApproved, model.StatusRejected}:  EffectRelease,
	{model.StatusApproved, model.StatusCancelled}: EffectRelease,

	{model.StatusRejected, model.StatusPending}:   EffectForbidden,
	{model.StatusRejected, model.StatusApproved}:  EffectForbidden,
	{model.StatusRejected, model.StatusRejected}:  EffectForbidden,
	{model.StatusRejected, model.StatusCancelled}: EffectForbidden,

	{model.StatusCancelled, model.StatusPending}:   EffectForbidden,
	{model.StatusCancelled, model.StatusApproved}:  EffectForbidden,
	{model.StatusCancelled, model.StatusRejected}:  EffectForbidden,
	{model.StatusCancelled, model.StatusCancelled}: EffectForbidden,
}

// TransitionEffect returns the ledger effect of moving from one status to
// another.
func TransitionEffect(from, to model.Status) Effect {
	return transitions[transition{from, to}]
}

// DeleteEffect returns the ledger effect of deleting a record in status s.
func DeleteEffect(s model.Status) Effect {
	if s.HoldsSeat() {
		return EffectRelease
	}
	return EffectNone
}
