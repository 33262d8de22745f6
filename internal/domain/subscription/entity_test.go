package subscription_test

import (
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"tenantcore-service/internal/domain/subscription"
)

func TestStatus_Classification(t *testing.T) {
	t.Parallel()

	assert.True(t, subscription.StatusTrial.IsLive())
	assert.True(t, subscription.StatusActive.IsLive())
	assert.False(t, subscription.StatusPendingApproval.IsLive())
	assert.False(t, subscription.StatusExpired.IsLive())

	assert.True(t, subscription.StatusExpired.IsTerminal())
	assert.True(t, subscription.StatusCancelled.IsTerminal())
	assert.True(t, subscription.StatusRejected.IsTerminal())
	assert.False(t, subscription.StatusActive.IsTerminal())
	assert.False(t, subscription.StatusPendingApproval.IsTerminal())
}

func TestBillingCycle_Periods(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 30, subscription.CycleMonthly.PeriodDays())
	assert.Equal(t, 365, subscription.CycleYearly.PeriodDays())

	start := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC), subscription.CycleMonthly.NextPeriodEnd(start))
	assert.Equal(t, time.Date(2027, 1, 15, 0, 0, 0, 0, time.UTC), subscription.CycleYearly.NextPeriodEnd(start))
}

func TestSubscription_PastDue(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		sub  subscription.Subscription
		want bool
	}{
		{
			name: "active past end date",
			sub: subscription.Subscription{
				Status:  subscription.StatusActive,
				EndDate: sql.NullTime{Time: now.Add(-time.Minute), Valid: true},
			},
			want: true,
		},
		{
			name: "active before end date",
			sub: subscription.Subscription{
				Status:  subscription.StatusActive,
				EndDate: sql.NullTime{Time: now.Add(time.Minute), Valid: true},
			},
			want: false,
		},
		{
			name: "trial past trial end",
			sub: subscription.Subscription{
				Status:      subscription.StatusTrial,
				TrialEndsAt: sql.NullTime{Time: now.Add(-time.Hour), Valid: true},
			},
			want: true,
		},
		{
			name: "trial without trial end",
			sub: subscription.Subscription{
				Status: subscription.StatusTrial,
			},
			want: false,
		},
		{
			name: "expired is never past due",
			sub: subscription.Subscription{
				Status:  subscription.StatusExpired,
				EndDate: sql.NullTime{Time: now.Add(-time.Hour), Valid: true},
			},
			want: false,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.sub.PastDue(now))
		})
	}
}

func TestSubscription_RemainingDays(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	sub := subscription.Subscription{
		EndDate: sql.NullTime{Time: now.AddDate(0, 0, 10), Valid: true},
	}
	assert.Equal(t, 10, sub.RemainingDays(now))

	// Partial days round down
	sub.EndDate = sql.NullTime{Time: now.Add(36 * time.Hour), Valid: true}
	assert.Equal(t, 1, sub.RemainingDays(now))

	// Past end dates floor at zero
	sub.EndDate = sql.NullTime{Time: now.Add(-time.Hour), Valid: true}
	assert.Equal(t, 0, sub.RemainingDays(now))

	// No end date set
	sub.EndDate = sql.NullTime{}
	assert.Equal(t, 0, sub.RemainingDays(now))

	// Trials measure against the trial end, not the billing period end
	trial := subscription.Subscription{
		Status:      subscription.StatusTrial,
		TrialEndsAt: sql.NullTime{Time: now.AddDate(0, 0, 7), Valid: true},
	}
	assert.Equal(t, 7, trial.RemainingDays(now))

	trial.TrialEndsAt = sql.NullTime{Time: now.Add(-time.Hour), Valid: true}
	assert.Equal(t, 0, trial.RemainingDays(now))
}
