package billing_test

import (
	"database/sql"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"tenantcore-service/internal/domain/billing"
	"tenantcore-service/internal/domain/plan"
	"tenantcore-service/internal/domain/subscription"
)

var (
	basicPlan = &plan.Plan{
		ID:           1,
		PlanCode:     "basic",
		PriceMonthly: decimal.NewFromInt(30),
		PriceYearly:  decimal.NewFromInt(300),
		Currency:     "USD",
		IsActive:     true,
	}
	proPlan = &plan.Plan{
		ID:           2,
		PlanCode:     "pro",
		PriceMonthly: decimal.NewFromInt(90),
		PriceYearly:  decimal.NewFromInt(900),
		Currency:     "USD",
		IsActive:     true,
	}
)

func TestPlanPrice(t *testing.T) {
	t.Parallel()

	assert.True(t, billing.PlanPrice(basicPlan, subscription.CycleMonthly).Equal(decimal.NewFromInt(30)))
	assert.True(t, billing.PlanPrice(basicPlan, subscription.CycleYearly).Equal(decimal.NewFromInt(300)))
}

func TestCalculateProration_Upgrade(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	current := &subscription.Subscription{
		Status:       subscription.StatusActive,
		BillingCycle: subscription.CycleMonthly,
		EndDate:      sql.NullTime{Time: now.AddDate(0, 0, 15), Valid: true},
	}

	q := billing.CalculateProration(current, basicPlan, proPlan, subscription.CycleMonthly, now)

	assert.Equal(t, 15, q.RemainingDays)
	assert.Equal(t, 30, q.TotalCycleDays)
	assert.Equal(t, "USD", q.Currency)

	// Half the cycle remains: pro costs 45, unused basic value is 15.
	assert.True(t, q.NewPlanCost.Equal(decimal.NewFromInt(45)), "new plan cost %s", q.NewPlanCost)
	assert.True(t, q.UnusedValue.Equal(decimal.NewFromInt(15)), "unused value %s", q.UnusedValue)
	assert.True(t, q.Amount.Equal(decimal.NewFromInt(30)), "amount %s", q.Amount)
}

func TestCalculateProration_DowngradeYieldsCredit(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	current := &subscription.Subscription{
		Status:       subscription.StatusActive,
		BillingCycle: subscription.CycleMonthly,
		EndDate:      sql.NullTime{Time: now.AddDate(0, 0, 15), Valid: true},
	}

	q := billing.CalculateProration(current, proPlan, basicPlan, subscription.CycleMonthly, now)

	// Moving down mid-cycle: basic costs 15, unused pro value is 45.
	assert.True(t, q.Amount.Equal(decimal.NewFromInt(-30)), "amount %s", q.Amount)
	assert.True(t, q.Amount.IsNegative())
}

func TestCalculateProration_PeriodAlreadyEnded(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	current := &subscription.Subscription{
		Status:       subscription.StatusActive,
		BillingCycle: subscription.CycleMonthly,
		EndDate:      sql.NullTime{Time: now.AddDate(0, 0, -1), Valid: true},
	}

	q := billing.CalculateProration(current, basicPlan, proPlan, subscription.CycleMonthly, now)

	// Nothing remains, so the change is a fresh full cycle.
	assert.Equal(t, 0, q.RemainingDays)
	assert.True(t, q.Amount.Equal(decimal.NewFromInt(90)), "amount %s", q.Amount)
	assert.True(t, q.UnusedValue.IsZero())
}

func TestCalculateProration_TrialHasNoUnusedValue(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	current := &subscription.Subscription{
		Status:       subscription.StatusTrial,
		BillingCycle: subscription.CycleMonthly,
		TrialEndsAt:  sql.NullTime{Time: now.AddDate(0, 0, 15), Valid: true},
	}

	q := billing.CalculateProration(current, basicPlan, proPlan, subscription.CycleMonthly, now)

	assert.Equal(t, 15, q.RemainingDays)
	assert.True(t, q.UnusedValue.IsZero(), "trial must not produce credit")
	assert.True(t, q.NewPlanCost.Equal(decimal.NewFromInt(45)))
	assert.True(t, q.Amount.Equal(decimal.NewFromInt(45)))
}

func TestCalculateProration_YearlyCycleChange(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	current := &subscription.Subscription{
		Status:       subscription.StatusActive,
		BillingCycle: subscription.CycleYearly,
		EndDate:      sql.NullTime{Time: now.AddDate(0, 0, 73), Valid: true},
	}

	q := billing.CalculateProration(current, basicPlan, proPlan, subscription.CycleYearly, now)

	// 73/365 = exactly one fifth of the yearly cycle.
	assert.Equal(t, 73, q.RemainingDays)
	assert.Equal(t, 365, q.TotalCycleDays)
	assert.True(t, q.NewPlanCost.Equal(decimal.NewFromInt(180)), "new plan cost %s", q.NewPlanCost)
	assert.True(t, q.UnusedValue.Equal(decimal.NewFromInt(60)), "unused value %s", q.UnusedValue)
	assert.True(t, q.Amount.Equal(decimal.NewFromInt(120)), "amount %s", q.Amount)
}
