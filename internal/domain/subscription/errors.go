// internal/domain/subscription/errors.go
package subscription

import "errors"

var (
	ErrInvalidTransition            = errors.New("invalid subscription state transition")
	ErrAlreadyHasActiveSubscription = errors.New("organization already has an active subscription")
	ErrNoActiveSubscription         = errors.New("organization has no active subscription")
	ErrSubscriptionNotFound         = errors.New("subscription not found")
	ErrNotPendingApproval           = errors.New("subscription is not pending approval")
	ErrNotInTrial                   = errors.New("subscription is not in trial")
	ErrNotRenewable                 = errors.New("subscription is not expired or cancelled")
	ErrCannotBeChanged              = errors.New("subscription cannot be upgraded or downgraded in its current state")
	ErrRejectionReasonRequired      = errors.New("rejection reason is required")
	ErrInvalidTrialExtension        = errors.New("trial extension must be a positive number of days")
)
