// internal/service/plan/plan_service.go
package plan

import (
	"context"
	"fmt"

	"tenantcore-service/internal/domain/plan"
	"tenantcore-service/internal/domain/subscription"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Catalog is the read surface a plan service needs. The postgres
// repositories satisfy it directly.
type Catalog interface {
	FindByID(ctx context.Context, id int64) (*plan.Plan, error)
	FindByPlanCode(ctx context.Context, planCode string) (*plan.Plan, error)
	ListActive(ctx context.Context, filters *plan.ListFilters) ([]plan.Plan, error)
	FindCustomByOrganization(ctx context.Context, orgID int64) (*plan.Plan, error)
}

type ModuleCatalog interface {
	FindByPlanID(ctx context.Context, planID int64) ([]plan.PlanModule, error)
}

type PlanService struct {
	plans   Catalog
	modules ModuleCatalog
	logger  *zap.Logger
}

func NewPlanService(plans Catalog, modules ModuleCatalog, logger *zap.Logger) *PlanService {
	return &PlanService{
		plans:   plans,
		modules: modules,
		logger:  logger,
	}
}

// GetPlan retrieves a plan by ID.
func (s *PlanService) GetPlan(ctx context.Context, id int64) (*plan.Plan, error) {
	return s.plans.FindByID(ctx, id)
}

// GetPlanByCode retrieves a plan by its plan code.
func (s *PlanService) GetPlanByCode(ctx context.Context, planCode string) (*plan.Plan, error) {
	return s.plans.FindByPlanCode(ctx, planCode)
}

// ListPlans returns the active catalog, ordered by display order. Custom
// plans are only visible to the organization they belong to.
func (s *PlanService) ListPlans(ctx context.Context, filters *plan.ListFilters) ([]plan.Plan, error) {
	if filters == nil {
		filters = &plan.ListFilters{}
	}
	return s.plans.ListActive(ctx, filters)
}

// GetPlanModules returns the module rows configured for a plan.
func (s *PlanService) GetPlanModules(ctx context.Context, planID int64) ([]plan.PlanModule, error) {
	if _, err := s.plans.FindByID(ctx, planID); err != nil {
		return nil, err
	}
	return s.modules.FindByPlanID(ctx, planID)
}

// PlanPrice returns the price of a plan for a billing cycle.
func (s *PlanService) PlanPrice(p *plan.Plan, cycle subscription.BillingCycle) decimal.Decimal {
	if cycle == subscription.CycleYearly {
		return p.PriceYearly
	}
	return p.PriceMonthly
}

// ComparePlans returns a side-by-side comparison of two or more plans,
// ordered from lowest tier to highest.
func (s *PlanService) ComparePlans(ctx context.Context, planIDs []int64) ([]plan.ComparisonRow, error) {
	if len(planIDs) < 2 {
		return nil, fmt.Errorf("at least two plans are required for a comparison")
	}

	rows := make([]plan.ComparisonRow, 0, len(planIDs))
	plans := make([]*plan.Plan, 0, len(planIDs))
	for _, id := range planIDs {
		p, err := s.plans.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		plans = append(plans, p)
	}

	// Sort by tier order so the response reads low to high.
	for i := 1; i < len(plans); i++ {
		for j := i; j > 0 && plan.Less(plans[j], plans[j-1]); j-- {
			plans[j], plans[j-1] = plans[j-1], plans[j]
		}
	}

	for _, p := range plans {
		mods, err := s.modules.FindByPlanID(ctx, p.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load modules for plan %d: %w", p.ID, err)
		}
		moduleIDs := make([]int64, 0, len(mods))
		for _, m := range mods {
			moduleIDs = append(moduleIDs, m.ModuleID)
		}
		rows = append(rows, plan.ComparisonRow{
			PlanID:        p.ID,
			PlanCode:      p.PlanCode,
			Name:          p.Name,
			DisplayOrder:  p.DisplayOrder,
			PriceMonthly:  p.PriceMonthly,
			PriceYearly:   p.PriceYearly,
			Currency:      p.Currency,
			SupportsTrial: p.SupportsTrial,
			FeatureTags:   p.FeatureTags,
			ModuleIDs:     moduleIDs,
		})
	}

	return rows, nil
}

// ValidateChange reports whether moving from one plan to another is an
// upgrade or a downgrade, or rejects the pair.
func (s *PlanService) ValidateChange(ctx context.Context, currentPlanID, targetPlanID int64) (plan.ChangeDirection, error) {
	current, err := s.plans.FindByID(ctx, currentPlanID)
	if err != nil {
		return "", err
	}
	target, err := s.plans.FindByID(ctx, targetPlanID)
	if err != nil {
		return "", err
	}
	if !target.IsActive {
		return "", plan.ErrPlanNotActive
	}
	return plan.ValidateChange(current, target)
}
