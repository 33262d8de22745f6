// internal/domain/billing/proration.go
package billing

import (
	"time"

	"tenantcore-service/internal/domain/plan"
	"tenantcore-service/internal/domain/subscription"

	"github.com/shopspring/decimal"
)

// Quote is the outcome of a proration calculation. Amount is signed:
// positive means an additional charge, negative a credit. It is an
// abstract figure handed to downstream billing, not a completed charge.
type Quote struct {
	CurrentPlanPrice decimal.Decimal `json:"current_plan_price"`
	NewPlanPrice     decimal.Decimal `json:"new_plan_price"`
	RemainingDays    int             `json:"remaining_days"`
	TotalCycleDays   int             `json:"total_cycle_days"`
	UnusedValue      decimal.Decimal `json:"unused_value"`
	NewPlanCost      decimal.Decimal `json:"new_plan_cost"`
	Amount           decimal.Decimal `json:"amount"`
	Currency         string          `json:"currency"`
}

// PlanPrice picks the plan price matching the billing cycle.
func PlanPrice(p *plan.Plan, cycle subscription.BillingCycle) decimal.Decimal {
	if cycle == subscription.CycleYearly {
		return p.PriceYearly
	}
	return p.PriceMonthly
}

// CalculateProration computes the signed adjustment for switching the
// current subscription to newPlan on newCycle at the moment now.
//
// The unused value of the current plan and the cost of the new plan are
// both scaled by remainingDays/totalCycleDays. Two edge cases:
//   - the current period has already ended: the change is a fresh cycle,
//     charged at the full new-plan price;
//   - the current subscription is a trial: trials are not refundable, so
//     the unused value is zero and the full prorated new cost is charged.
func CalculateProration(current *subscription.Subscription, currentPlan, newPlan *plan.Plan, newCycle subscription.BillingCycle, now time.Time) Quote {
	q := Quote{
		CurrentPlanPrice: PlanPrice(currentPlan, current.BillingCycle),
		NewPlanPrice:     PlanPrice(newPlan, newCycle),
		TotalCycleDays:   current.BillingCycle.PeriodDays(),
		Currency:         newPlan.Currency,
		UnusedValue:      decimal.Zero,
		NewPlanCost:      decimal.Zero,
	}

	// RemainingDays measures trials against the trial end and everything
	// else against the period end.
	q.RemainingDays = current.RemainingDays(now)
	if q.RemainingDays <= 0 {
		// Nothing left of the current period: charge a full fresh cycle.
		q.NewPlanCost = q.NewPlanPrice
		q.Amount = q.NewPlanPrice
		return q
	}

	fraction := decimal.NewFromInt(int64(q.RemainingDays)).
		Div(decimal.NewFromInt(int64(q.TotalCycleDays)))

	q.NewPlanCost = q.NewPlanPrice.Mul(fraction).Round(2)
	if current.Status != subscription.StatusTrial {
		q.UnusedValue = q.CurrentPlanPrice.Mul(fraction).Round(2)
	}
	q.Amount = q.NewPlanCost.Sub(q.UnusedValue)
	return q
}
