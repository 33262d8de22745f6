// internal/domain/subscription/dto.go
package subscription

import "time"

type SubscribeRequest struct {
	PlanID       int64        `json:"plan_id" binding:"required"`
	BillingCycle BillingCycle `json:"billing_cycle"`
}

type StartTrialRequest struct {
	PlanID int64 `json:"plan_id" binding:"required"`
}

type ChangePlanRequest struct {
	NewPlanID       int64        `json:"new_plan_id" binding:"required"`
	NewBillingCycle BillingCycle `json:"new_billing_cycle"`
}

type CancelRequest struct {
	Reason string `json:"reason"`
}

type RenewRequest struct {
	SubscriptionID int64        `json:"subscription_id" binding:"required"`
	BillingCycle   BillingCycle `json:"billing_cycle"`
}

type RejectRequest struct {
	Reason string `json:"reason" binding:"required"`
}

type ExtendTrialRequest struct {
	AdditionalDays int `json:"additional_days" binding:"required"`
}

type ListFilters struct {
	Status Status `form:"status"`
	Limit  int    `form:"limit"`
	Offset int    `form:"offset"`
}

// LifecycleEvent is published to the event hub after a transition has been
// persisted.
type LifecycleEvent struct {
	OrganizationID int64     `json:"organization_id"`
	SubscriptionID int64     `json:"subscription_id"`
	PlanID         int64     `json:"plan_id"`
	From           Status    `json:"from"`
	To             Status    `json:"to"`
	Event          Event     `json:"event"`
	OccurredAt     time.Time `json:"occurred_at"`
}
