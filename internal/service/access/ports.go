// internal/service/access/ports.go
package access

import (
	"context"

	"tenantcore-service/internal/domain/access"
	"tenantcore-service/internal/domain/plan"
	"tenantcore-service/internal/domain/subscription"
)

// ModuleAccessStore persists per-user module grants. GrantWithCap must
// enforce the seat cap atomically: counting active grants and inserting
// the new one are one unit, so concurrent registrations cannot both take
// the last seat.
type ModuleAccessStore interface {
	GrantWithCap(ctx context.Context, grant *access.ModuleAccessGrant, maxUsers int32) error
	FindUserGrant(ctx context.Context, userID, moduleID, orgID int64) (*access.ModuleAccessGrant, error)
	ListActiveByModuleAndOrg(ctx context.Context, moduleID, orgID int64) ([]access.ModuleAccessGrant, error)
	CountActiveUsers(ctx context.Context, moduleID, orgID int64) (int, error)
	Revoke(ctx context.Context, userID, moduleID, orgID, revokedBy int64) error
}

// SubscriptionReader is the slice of the subscription store the gate needs.
type SubscriptionReader interface {
	FindActiveByOrganization(ctx context.Context, orgID int64) (*subscription.Subscription, error)
}

// PlanModuleReader resolves plan-to-module composition.
type PlanModuleReader interface {
	FindByPlanAndModule(ctx context.Context, planID, moduleID int64) (*plan.PlanModule, error)
}

// Entitlement is the cached organization-level decision for one module.
type Entitlement struct {
	Entitled  bool  `json:"entitled"`
	SeatLimit int32 `json:"seat_limit"`
}

// EntitlementCache caches organization-level entitlement decisions.
// A miss returns ok=false; cache failures are treated as misses.
type EntitlementCache interface {
	Get(ctx context.Context, orgID, moduleID int64) (Entitlement, bool)
	Set(ctx context.Context, orgID, moduleID int64, ent Entitlement)
	InvalidateOrganization(ctx context.Context, orgID int64) error
}
