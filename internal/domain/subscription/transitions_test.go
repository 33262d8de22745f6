package subscription_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tenantcore-service/internal/domain/subscription"
)

func TestApply_Transitions(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		from    subscription.Status
		event   subscription.Event
		in      subscription.GuardInput
		want    subscription.Status
		effects []subscription.Effect
		wantErr error
	}{
		{
			name:  "subscribe to paid plan awaits approval",
			from:  subscription.StatusNone,
			event: subscription.EventSubscribe,
			in:    subscription.GuardInput{Now: now},
			want:  subscription.StatusPendingApproval,
			effects: []subscription.Effect{
				subscription.EffectCreateRecord,
			},
		},
		{
			name:  "subscribe to free plan goes live immediately",
			from:  subscription.StatusNone,
			event: subscription.EventSubscribe,
			in:    subscription.GuardInput{Now: now, FreePlan: true},
			want:  subscription.StatusActive,
			effects: []subscription.Effect{
				subscription.EffectCreateRecord,
				subscription.EffectSetPeriod,
			},
		},
		{
			name:  "start trial",
			from:  subscription.StatusNone,
			event: subscription.EventStartTrial,
			in:    subscription.GuardInput{Now: now},
			want:  subscription.StatusTrial,
			effects: []subscription.Effect{
				subscription.EffectCreateRecord,
				subscription.EffectSetTrialEnd,
			},
		},
		{
			name:  "activate pending subscription",
			from:  subscription.StatusPendingApproval,
			event: subscription.EventActivate,
			in:    subscription.GuardInput{Now: now},
			want:  subscription.StatusActive,
			effects: []subscription.Effect{
				subscription.EffectSetPeriod,
				subscription.EffectRecordActivation,
				subscription.EffectInvalidateEntitlements,
			},
		},
		{
			name:    "reject requires a reason",
			from:    subscription.StatusPendingApproval,
			event:   subscription.EventReject,
			in:      subscription.GuardInput{Now: now},
			wantErr: subscription.ErrRejectionReasonRequired,
		},
		{
			name:  "reject with reason",
			from:  subscription.StatusPendingApproval,
			event: subscription.EventReject,
			in:    subscription.GuardInput{Now: now, Reason: "payment not verified"},
			want:  subscription.StatusRejected,
			effects: []subscription.Effect{
				subscription.EffectRecordRejection,
			},
		},
		{
			name:  "extend trial forward",
			from:  subscription.StatusTrial,
			event: subscription.EventExtendTrial,
			in: subscription.GuardInput{
				Now:             now,
				CurrentTrialEnd: now.AddDate(0, 0, 7),
				NewTrialEnd:     now.AddDate(0, 0, 14),
			},
			want: subscription.StatusTrial,
			effects: []subscription.Effect{
				subscription.EffectSetTrialEnd,
			},
		},
		{
			name:  "extend trial backwards is rejected",
			from:  subscription.StatusTrial,
			event: subscription.EventExtendTrial,
			in: subscription.GuardInput{
				Now:             now,
				CurrentTrialEnd: now.AddDate(0, 0, 14),
				NewTrialEnd:     now.AddDate(0, 0, 7),
			},
			wantErr: subscription.ErrInvalidTrialExtension,
		},
		{
			name:  "change plan mid-trial converts to active",
			from:  subscription.StatusTrial,
			event: subscription.EventChangePlan,
			in:    subscription.GuardInput{Now: now},
			want:  subscription.StatusActive,
			effects: []subscription.Effect{
				subscription.EffectSetPeriod,
				subscription.EffectClearTrialEnd,
				subscription.EffectInvalidateEntitlements,
			},
		},
		{
			name:  "change plan while active",
			from:  subscription.StatusActive,
			event: subscription.EventChangePlan,
			in:    subscription.GuardInput{Now: now},
			want:  subscription.StatusActive,
			effects: []subscription.Effect{
				subscription.EffectInvalidateEntitlements,
			},
		},
		{
			name:  "cancel active subscription",
			from:  subscription.StatusActive,
			event: subscription.EventCancel,
			in:    subscription.GuardInput{Now: now},
			want:  subscription.StatusCancelled,
			effects: []subscription.Effect{
				subscription.EffectRecordCancellation,
				subscription.EffectInvalidateEntitlements,
			},
		},
		{
			name:  "expire past-due active subscription",
			from:  subscription.StatusActive,
			event: subscription.EventExpire,
			in:    subscription.GuardInput{Now: now, DueAt: now.Add(-time.Hour)},
			want:  subscription.StatusExpired,
			effects: []subscription.Effect{
				subscription.EffectInvalidateEntitlements,
			},
		},
		{
			name:    "expire before due date is rejected",
			from:    subscription.StatusActive,
			event:   subscription.EventExpire,
			in:      subscription.GuardInput{Now: now, DueAt: now.Add(time.Hour)},
			wantErr: subscription.ErrInvalidTransition,
		},
		{
			name:  "renew expired subscription",
			from:  subscription.StatusExpired,
			event: subscription.EventRenew,
			in:    subscription.GuardInput{Now: now},
			want:  subscription.StatusActive,
			effects: []subscription.Effect{
				subscription.EffectCreateRecord,
				subscription.EffectSetPeriod,
			},
		},
		{
			name:  "renew cancelled subscription",
			from:  subscription.StatusCancelled,
			event: subscription.EventRenew,
			in:    subscription.GuardInput{Now: now},
			want:  subscription.StatusActive,
			effects: []subscription.Effect{
				subscription.EffectCreateRecord,
				subscription.EffectSetPeriod,
			},
		},
		{
			name:    "cancel from expired is invalid",
			from:    subscription.StatusExpired,
			event:   subscription.EventCancel,
			in:      subscription.GuardInput{Now: now},
			wantErr: subscription.ErrInvalidTransition,
		},
		{
			name:    "activate from active is invalid",
			from:    subscription.StatusActive,
			event:   subscription.EventActivate,
			in:      subscription.GuardInput{Now: now},
			wantErr: subscription.ErrInvalidTransition,
		},
		{
			name:    "renew from rejected is invalid",
			from:    subscription.StatusRejected,
			event:   subscription.EventRenew,
			in:      subscription.GuardInput{Now: now},
			wantErr: subscription.ErrInvalidTransition,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			res, err := subscription.Apply(tt.from, tt.event, tt.in)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Status)
			assert.Equal(t, tt.effects, res.Effects)
			assert.False(t, res.NoOp)
		})
	}
}

func TestApply_ExpireIsIdempotent(t *testing.T) {
	t.Parallel()

	res, err := subscription.Apply(subscription.StatusExpired, subscription.EventExpire, subscription.GuardInput{
		Now: time.Now(),
	})
	require.NoError(t, err)
	assert.True(t, res.NoOp)
	assert.Equal(t, subscription.StatusExpired, res.Status)
	assert.Empty(t, res.Effects)
}

func TestCanTransition(t *testing.T) {
	t.Parallel()

	assert.True(t, subscription.CanTransition(subscription.StatusActive, subscription.EventCancel))
	assert.True(t, subscription.CanTransition(subscription.StatusTrial, subscription.EventChangePlan))
	assert.True(t, subscription.CanTransition(subscription.StatusExpired, subscription.EventExpire))
	assert.False(t, subscription.CanTransition(subscription.StatusCancelled, subscription.EventCancel))
	assert.False(t, subscription.CanTransition(subscription.StatusRejected, subscription.EventActivate))
	assert.False(t, subscription.CanTransition(subscription.StatusPendingApproval, subscription.EventChangePlan))
}
