// internal/domain/subscription/entity.go
package subscription

import (
	"database/sql"
	"time"
)

type Status string

const (
	StatusPendingApproval Status = "pending_approval"
	StatusTrial           Status = "trial"
	StatusActive          Status = "active"
	StatusExpired         Status = "expired"
	StatusCancelled       Status = "cancelled"
	StatusRejected        Status = "rejected"

	// StatusNone is the state before any subscription record exists.
	// Creation events (subscribe, start trial) transition out of it.
	StatusNone Status = ""
)

// IsLive reports whether the status counts against the
// one-live-subscription-per-organization invariant.
func (s Status) IsLive() bool {
	return s == StatusTrial || s == StatusActive
}

// IsTerminal reports whether the subscription instance is finished.
// Terminal records are kept for history; a new record is created for
// any further subscribe or renew attempt.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusExpired, StatusCancelled, StatusRejected:
		return true
	}
	return false
}

type BillingCycle string

const (
	CycleMonthly BillingCycle = "monthly"
	CycleYearly  BillingCycle = "yearly"
)

// PeriodDays is the nominal cycle length used for proration arithmetic.
func (c BillingCycle) PeriodDays() int {
	if c == CycleYearly {
		return 365
	}
	return 30
}

// NextPeriodEnd returns the calendar end of a billing period starting at t.
func (c BillingCycle) NextPeriodEnd(t time.Time) time.Time {
	if c == CycleYearly {
		return t.AddDate(1, 0, 0)
	}
	return t.AddDate(0, 1, 0)
}

type Subscription struct {
	ID                    int64  `json:"id" db:"id"`
	SubscriptionReference string `json:"subscription_reference" db:"subscription_reference"`

	// Related entities
	OrganizationID int64 `json:"organization_id" db:"organization_id"`
	PlanID         int64 `json:"plan_id" db:"plan_id"`

	// Lifecycle
	Status       Status       `json:"status" db:"status"`
	BillingCycle BillingCycle `json:"billing_cycle" db:"billing_cycle"`
	StartDate    time.Time    `json:"start_date" db:"start_date"`
	EndDate      sql.NullTime `json:"end_date,omitempty" db:"end_date"`
	TrialEndsAt  sql.NullTime `json:"trial_ends_at,omitempty" db:"trial_ends_at"`

	// Actors
	RequestedBy int64         `json:"requested_by" db:"requested_by"`
	ActivatedBy sql.NullInt64 `json:"activated_by,omitempty" db:"activated_by"`
	ActivatedAt sql.NullTime  `json:"activated_at,omitempty" db:"activated_at"`

	// Cancellation / rejection
	CancelledBy        sql.NullInt64  `json:"cancelled_by,omitempty" db:"cancelled_by"`
	CancelledAt        sql.NullTime   `json:"cancelled_at,omitempty" db:"cancelled_at"`
	CancellationReason sql.NullString `json:"cancellation_reason,omitempty" db:"cancellation_reason"`
	RejectedBy         sql.NullInt64  `json:"rejected_by,omitempty" db:"rejected_by"`
	RejectionReason    sql.NullString `json:"rejection_reason,omitempty" db:"rejection_reason"`

	// Renewal lineage: set when this record was created by renewing a
	// terminal predecessor.
	RenewedFromID sql.NullInt64 `json:"renewed_from_id,omitempty" db:"renewed_from_id"`

	// Metadata
	Metadata map[string]interface{} `json:"metadata,omitempty" db:"metadata"`

	// Timestamps
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// IsLive reports whether this record is the organization's live subscription.
func (s *Subscription) IsLive() bool {
	return s.Status.IsLive()
}

// PastDue reports whether the record's end-of-life moment has passed:
// trial end for trials, period end for active subscriptions.
func (s *Subscription) PastDue(now time.Time) bool {
	switch s.Status {
	case StatusTrial:
		return s.TrialEndsAt.Valid && !s.TrialEndsAt.Time.After(now)
	case StatusActive:
		return s.EndDate.Valid && !s.EndDate.Time.After(now)
	}
	return false
}

// RemainingDays is the number of whole days until the record's end of
// life, floored at zero: the trial end for trials, the period end
// otherwise. Used for proration and surfaced to callers.
func (s *Subscription) RemainingDays(now time.Time) int {
	end := s.EndDate
	if s.Status == StatusTrial {
		end = s.TrialEndsAt
	}
	if !end.Valid {
		return 0
	}
	remaining := end.Time.Sub(now)
	if remaining <= 0 {
		return 0
	}
	return int(remaining.Hours() / 24)
}
