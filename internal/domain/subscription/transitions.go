// internal/domain/subscription/transitions.go
package subscription

import (
	"fmt"
	"time"
)

type Event string

const (
	EventSubscribe   Event = "subscribe"
	EventStartTrial  Event = "start_trial"
	EventActivate    Event = "activate"
	EventReject      Event = "reject"
	EventExtendTrial Event = "extend_trial"
	EventChangePlan  Event = "change_plan"
	EventCancel      Event = "cancel"
	EventExpire      Event = "expire"
	EventRenew       Event = "renew"
)

// Effect is a side-effect hint produced by a transition. The machine itself
// performs no I/O; the lifecycle service interprets effects when persisting.
type Effect string

const (
	EffectSetPeriod              Effect = "set_period"
	EffectSetTrialEnd            Effect = "set_trial_end"
	EffectClearTrialEnd          Effect = "clear_trial_end"
	EffectRecordActivation       Effect = "record_activation"
	EffectRecordCancellation     Effect = "record_cancellation"
	EffectRecordRejection        Effect = "record_rejection"
	EffectCreateRecord           Effect = "create_record"
	EffectInvalidateEntitlements Effect = "invalidate_entitlements"
)

// GuardInput carries the data transition guards need. Fields irrelevant to
// a given event are ignored.
type GuardInput struct {
	Now time.Time

	// Subscribe: free plans go live immediately, paid plans await approval.
	FreePlan bool

	// Reject.
	Reason string

	// ExtendTrial: proposed new trial end vs the current one.
	CurrentTrialEnd time.Time
	NewTrialEnd     time.Time

	// Expire: the record's due moment (end date or trial end).
	DueAt time.Time
}

// Result is the outcome of applying an event.
type Result struct {
	Status  Status
	Effects []Effect

	// NoOp marks transitions that legally change nothing, such as
	// expiring an already-expired subscription.
	NoOp bool
}

type transitionKey struct {
	From  Status
	Event Event
}

type transition struct {
	To      Status
	Effects []Effect
	Guard   func(in GuardInput) error
}

// transitions is the full lifecycle table. Everything not listed here is
// an invalid transition.
var transitions = map[transitionKey]transition{
	{StatusNone, EventSubscribe}: {
		// Resolved to active or pending_approval in Apply based on FreePlan.
		To:      StatusPendingApproval,
		Effects: []Effect{EffectCreateRecord},
	},
	{StatusNone, EventStartTrial}: {
		To:      StatusTrial,
		Effects: []Effect{EffectCreateRecord, EffectSetTrialEnd},
	},
	{StatusPendingApproval, EventActivate}: {
		To:      StatusActive,
		Effects: []Effect{EffectSetPeriod, EffectRecordActivation, EffectInvalidateEntitlements},
	},
	{StatusPendingApproval, EventReject}: {
		To:      StatusRejected,
		Effects: []Effect{EffectRecordRejection},
		Guard: func(in GuardInput) error {
			if in.Reason == "" {
				return ErrRejectionReasonRequired
			}
			return nil
		},
	},
	{StatusTrial, EventExtendTrial}: {
		To:      StatusTrial,
		Effects: []Effect{EffectSetTrialEnd},
		Guard: func(in GuardInput) error {
			if !in.NewTrialEnd.After(in.CurrentTrialEnd) {
				return ErrInvalidTrialExtension
			}
			return nil
		},
	},
	{StatusTrial, EventChangePlan}: {
		// Switching plan mid-trial converts the subscription to a paid
		// active one; trials are not carried across plans.
		To:      StatusActive,
		Effects: []Effect{EffectSetPeriod, EffectClearTrialEnd, EffectInvalidateEntitlements},
	},
	{StatusActive, EventChangePlan}: {
		To:      StatusActive,
		Effects: []Effect{EffectInvalidateEntitlements},
	},
	{StatusActive, EventCancel}: {
		To:      StatusCancelled,
		Effects: []Effect{EffectRecordCancellation, EffectInvalidateEntitlements},
	},
	{StatusTrial, EventCancel}: {
		To:      StatusCancelled,
		Effects: []Effect{EffectRecordCancellation, EffectInvalidateEntitlements},
	},
	{StatusActive, EventExpire}: {
		To:      StatusExpired,
		Effects: []Effect{EffectInvalidateEntitlements},
		Guard:   guardPastDue,
	},
	{StatusTrial, EventExpire}: {
		To:      StatusExpired,
		Effects: []Effect{EffectInvalidateEntitlements},
		Guard:   guardPastDue,
	},
	{StatusExpired, EventRenew}: {
		To:      StatusActive,
		Effects: []Effect{EffectCreateRecord, EffectSetPeriod},
	},
	{StatusCancelled, EventRenew}: {
		To:      StatusActive,
		Effects: []Effect{EffectCreateRecord, EffectSetPeriod},
	},
}

func guardPastDue(in GuardInput) error {
	if in.DueAt.IsZero() || in.DueAt.After(in.Now) {
		return fmt.Errorf("%w: subscription is not past due", ErrInvalidTransition)
	}
	return nil
}

// Apply validates the event against the current status and returns the
// resulting status with its side-effect hints. It performs no I/O.
func Apply(current Status, ev Event, in GuardInput) (Result, error) {
	// Expiring an already-expired subscription is a no-op, not an error,
	// so the sweeper can safely re-deliver.
	if current == StatusExpired && ev == EventExpire {
		return Result{Status: StatusExpired, NoOp: true}, nil
	}

	t, ok := transitions[transitionKey{From: current, Event: ev}]
	if !ok {
		return Result{}, fmt.Errorf("%w: cannot %s from %q", ErrInvalidTransition, ev, current)
	}
	if t.Guard != nil {
		if err := t.Guard(in); err != nil {
			return Result{}, err
		}
	}

	to := t.To
	effects := t.Effects
	if ev == EventSubscribe && in.FreePlan {
		to = StatusActive
		effects = []Effect{EffectCreateRecord, EffectSetPeriod}
	}

	return Result{Status: to, Effects: effects}, nil
}

// CanTransition reports whether the event is legal from the given status,
// ignoring guard inputs.
func CanTransition(from Status, ev Event) bool {
	if from == StatusExpired && ev == EventExpire {
		return true
	}
	_, ok := transitions[transitionKey{From: from, Event: ev}]
	return ok
}
