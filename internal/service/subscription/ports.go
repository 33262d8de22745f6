// internal/service/subscription/ports.go
package subscription

import (
	"context"
	"time"

	"tenantcore-service/internal/domain/plan"
	"tenantcore-service/internal/domain/subscription"
)

// SubscriptionStore is the persistence port for subscription records.
//
// Create and the Mutate variants are atomic units: the implementation must
// run the guard-relevant read and the write in one transaction (or an
// equivalent conditional write), and must enforce the one-live-subscription
// -per-organization invariant, reporting violations as
// subscription.ErrAlreadyHasActiveSubscription.
type SubscriptionStore interface {
	Create(ctx context.Context, sub *subscription.Subscription) error

	// Mutate loads the record by ID with a write lock, applies fn and
	// persists the result if fn reports a change. fn returning an error
	// aborts the unit without writing.
	Mutate(ctx context.Context, id int64, fn func(sub *subscription.Subscription) (changed bool, err error)) (*subscription.Subscription, error)

	// MutateActiveByOrganization is Mutate addressed at the organization's
	// live subscription; subscription.ErrNoActiveSubscription when none.
	MutateActiveByOrganization(ctx context.Context, orgID int64, fn func(sub *subscription.Subscription) (changed bool, err error)) (*subscription.Subscription, error)

	FindByID(ctx context.Context, id int64) (*subscription.Subscription, error)
	FindActiveByOrganization(ctx context.Context, orgID int64) (*subscription.Subscription, error)
	FindByOrganization(ctx context.Context, orgID int64, filters *subscription.ListFilters) ([]subscription.Subscription, error)
	FindByStatus(ctx context.Context, status subscription.Status, limit int) ([]subscription.Subscription, error)
	FindExpiringBefore(ctx context.Context, cutoff time.Time, limit int) ([]subscription.Subscription, error)
	FindTrialEndingBefore(ctx context.Context, cutoff time.Time, limit int) ([]subscription.Subscription, error)
	ExistsActiveForOrganization(ctx context.Context, orgID int64) (bool, error)
}

// PlanCatalog is the read-only plan lookup port.
type PlanCatalog interface {
	FindByID(ctx context.Context, id int64) (*plan.Plan, error)
	FindByPlanCode(ctx context.Context, planCode string) (*plan.Plan, error)
	ListActive(ctx context.Context, filters *plan.ListFilters) ([]plan.Plan, error)
	FindCustomByOrganization(ctx context.Context, orgID int64) (*plan.Plan, error)
}

// PlanModuleStore exposes plan-to-module composition.
type PlanModuleStore interface {
	FindByPlanID(ctx context.Context, planID int64) ([]plan.PlanModule, error)
	FindByPlanAndModule(ctx context.Context, planID, moduleID int64) (*plan.PlanModule, error)
	ExistsByPlanAndModule(ctx context.Context, planID, moduleID int64) (bool, error)
}

// EntitlementCache invalidates cached module-entitlement decisions after a
// lifecycle transition changes what an organization may use.
type EntitlementCache interface {
	InvalidateOrganization(ctx context.Context, orgID int64) error
}

// EventPublisher receives lifecycle events after they are persisted.
// Publishing is fire-and-forget; delivery failures never fail the
// operation that produced the event.
type EventPublisher interface {
	PublishLifecycleEvent(ev subscription.LifecycleEvent)
}
