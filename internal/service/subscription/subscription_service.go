// internal/service/subscription/subscription_service.go
package subscription

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"tenantcore-service/internal/domain/billing"
	"tenantcore-service/internal/domain/plan"
	"tenantcore-service/internal/domain/subscription"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

const defaultTrialDays = 14

// SubscriptionService orchestrates the subscription lifecycle: it runs the
// guard checks, drives the state machine and persists the outcome through
// the store port. All state-changing operations are atomic at the store.
type SubscriptionService struct {
	subs        SubscriptionStore
	plans       PlanCatalog
	planModules PlanModuleStore
	cache       EntitlementCache
	events      EventPublisher
	logger      *zap.Logger
	trialDays   int
}

func NewSubscriptionService(
	subs SubscriptionStore,
	plans PlanCatalog,
	planModules PlanModuleStore,
	cache EntitlementCache,
	events EventPublisher,
	logger *zap.Logger,
	trialDays int,
) *SubscriptionService {
	if trialDays <= 0 {
		trialDays = defaultTrialDays
	}
	return &SubscriptionService{
		subs:        subs,
		plans:       plans,
		planModules: planModules,
		cache:       cache,
		events:      events,
		logger:      logger,
		trialDays:   trialDays,
	}
}

// Subscribe creates a new subscription for the organization. Free plans go
// live immediately; paid plans wait in pending_approval for an admin.
func (s *SubscriptionService) Subscribe(ctx context.Context, orgID int64, req *subscription.SubscribeRequest, requestedBy int64) (*subscription.Subscription, error) {
	p, err := s.plans.FindByID(ctx, req.PlanID)
	if err != nil {
		return nil, err
	}
	if !p.IsActive {
		return nil, plan.ErrPlanNotActive
	}

	// Friendly pre-check; the store's uniqueness guard is the authority
	// under concurrency.
	exists, err := s.subs.ExistsActiveForOrganization(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, subscription.ErrAlreadyHasActiveSubscription
	}

	now := time.Now()
	res, err := subscription.Apply(subscription.StatusNone, subscription.EventSubscribe, subscription.GuardInput{
		Now:      now,
		FreePlan: p.IsFree(),
	})
	if err != nil {
		return nil, err
	}

	cycle := req.BillingCycle
	if cycle == "" {
		cycle = subscription.CycleMonthly
	}

	sub := &subscription.Subscription{
		SubscriptionReference: newSubscriptionReference(),
		OrganizationID:        orgID,
		PlanID:                p.ID,
		Status:                res.Status,
		BillingCycle:          cycle,
		StartDate:             now,
		RequestedBy:           requestedBy,
	}
	if hasEffect(res, subscription.EffectSetPeriod) {
		sub.EndDate = sql.NullTime{Time: cycle.NextPeriodEnd(now), Valid: true}
	}

	if err := s.subs.Create(ctx, sub); err != nil {
		return nil, err
	}

	s.logger.Info("subscription created",
		zap.Int64("subscription_id", sub.ID),
		zap.String("subscription_reference", sub.SubscriptionReference),
		zap.Int64("organization_id", orgID),
		zap.Int64("plan_id", p.ID),
		zap.String("status", string(sub.Status)),
	)

	s.afterTransition(ctx, sub, subscription.StatusNone, subscription.EventSubscribe, res)
	return sub, nil
}

// StartTrial creates a trial subscription on a trial-capable plan.
func (s *SubscriptionService) StartTrial(ctx context.Context, orgID int64, req *subscription.StartTrialRequest, requestedBy int64) (*subscription.Subscription, error) {
	p, err := s.plans.FindByID(ctx, req.PlanID)
	if err != nil {
		return nil, err
	}
	if !p.IsActive {
		return nil, plan.ErrPlanNotActive
	}
	if !p.SupportsTrial {
		return nil, plan.ErrPlanDoesNotSupportTrial
	}

	exists, err := s.subs.ExistsActiveForOrganization(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, subscription.ErrAlreadyHasActiveSubscription
	}

	now := time.Now()
	res, err := subscription.Apply(subscription.StatusNone, subscription.EventStartTrial, subscription.GuardInput{Now: now})
	if err != nil {
		return nil, err
	}

	trialDays := s.trialDays
	if p.TrialDays.Valid && p.TrialDays.Int32 > 0 {
		trialDays = int(p.TrialDays.Int32)
	}

	sub := &subscription.Subscription{
		SubscriptionReference: newSubscriptionReference(),
		OrganizationID:        orgID,
		PlanID:                p.ID,
		Status:                res.Status,
		BillingCycle:          subscription.CycleMonthly,
		StartDate:             now,
		TrialEndsAt:           sql.NullTime{Time: now.AddDate(0, 0, trialDays), Valid: true},
		RequestedBy:           requestedBy,
	}

	if err := s.subs.Create(ctx, sub); err != nil {
		return nil, err
	}

	s.logger.Info("trial started",
		zap.Int64("subscription_id", sub.ID),
		zap.Int64("organization_id", orgID),
		zap.Int64("plan_id", p.ID),
		zap.Time("trial_ends_at", sub.TrialEndsAt.Time),
	)

	s.afterTransition(ctx, sub, subscription.StatusNone, subscription.EventStartTrial, res)
	return sub, nil
}

// UpgradeSubscription moves the organization's live subscription to a
// strictly higher plan, returning the proration quote for the change.
func (s *SubscriptionService) UpgradeSubscription(ctx context.Context, orgID int64, req *subscription.ChangePlanRequest, requestedBy int64) (*subscription.Subscription, *billing.Quote, error) {
	return s.changePlan(ctx, orgID, req, plan.DirectionUpgrade, requestedBy)
}

// DowngradeSubscription is the mirror move to a strictly lower plan.
func (s *SubscriptionService) DowngradeSubscription(ctx context.Context, orgID int64, req *subscription.ChangePlanRequest, requestedBy int64) (*subscription.Subscription, *billing.Quote, error) {
	return s.changePlan(ctx, orgID, req, plan.DirectionDowngrade, requestedBy)
}

func (s *SubscriptionService) changePlan(ctx context.Context, orgID int64, req *subscription.ChangePlanRequest, direction plan.ChangeDirection, requestedBy int64) (*subscription.Subscription, *billing.Quote, error) {
	newPlan, err := s.plans.FindByID(ctx, req.NewPlanID)
	if err != nil {
		return nil, nil, err
	}

	var quote billing.Quote
	var fromStatus subscription.Status
	var result subscription.Result

	sub, err := s.subs.MutateActiveByOrganization(ctx, orgID, func(cur *subscription.Subscription) (bool, error) {
		if !subscription.CanTransition(cur.Status, subscription.EventChangePlan) {
			return false, subscription.ErrCannotBeChanged
		}

		curPlan, err := s.plans.FindByID(ctx, cur.PlanID)
		if err != nil {
			return false, err
		}

		switch direction {
		case plan.DirectionUpgrade:
			if err := plan.ValidateUpgrade(curPlan, newPlan); err != nil {
				return false, err
			}
		case plan.DirectionDowngrade:
			if err := plan.ValidateDowngrade(curPlan, newPlan); err != nil {
				return false, err
			}
		}

		now := time.Now()
		res, err := subscription.Apply(cur.Status, subscription.EventChangePlan, subscription.GuardInput{Now: now})
		if err != nil {
			return false, err
		}

		newCycle := req.NewBillingCycle
		if newCycle == "" {
			newCycle = cur.BillingCycle
		}
		quote = billing.CalculateProration(cur, curPlan, newPlan, newCycle, now)

		fromStatus = cur.Status
		result = res

		// Tier changes mutate the live record in place; history stays
		// append-only per terminal transition, not per tier change.
		cur.PlanID = newPlan.ID
		cur.Status = res.Status
		cur.BillingCycle = newCycle
		if hasEffect(res, subscription.EffectSetPeriod) {
			cur.StartDate = now
			cur.EndDate = sql.NullTime{Time: newCycle.NextPeriodEnd(now), Valid: true}
		}
		if hasEffect(res, subscription.EffectClearTrialEnd) {
			cur.TrialEndsAt = sql.NullTime{}
		}
		return true, nil
	})
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info("subscription plan changed",
		zap.Int64("subscription_id", sub.ID),
		zap.Int64("organization_id", orgID),
		zap.Int64("new_plan_id", newPlan.ID),
		zap.String("direction", string(direction)),
		zap.Int64("requested_by", requestedBy),
		zap.String("proration_amount", quote.Amount.String()),
	)

	s.afterTransition(ctx, sub, fromStatus, subscription.EventChangePlan, result)
	return sub, &quote, nil
}

// CancelSubscription cancels the organization's live subscription.
func (s *SubscriptionService) CancelSubscription(ctx context.Context, orgID int64, reason string, cancelledBy int64) (*subscription.Subscription, error) {
	var fromStatus subscription.Status
	var result subscription.Result

	sub, err := s.subs.MutateActiveByOrganization(ctx, orgID, func(cur *subscription.Subscription) (bool, error) {
		now := time.Now()
		res, err := subscription.Apply(cur.Status, subscription.EventCancel, subscription.GuardInput{Now: now})
		if err != nil {
			return false, err
		}

		fromStatus = cur.Status
		result = res

		cur.Status = res.Status
		cur.CancelledBy = sql.NullInt64{Int64: cancelledBy, Valid: true}
		cur.CancelledAt = sql.NullTime{Time: now, Valid: true}
		if reason != "" {
			cur.CancellationReason = sql.NullString{String: reason, Valid: true}
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("subscription cancelled",
		zap.Int64("subscription_id", sub.ID),
		zap.Int64("organization_id", orgID),
		zap.String("reason", reason),
	)

	s.afterTransition(ctx, sub, fromStatus, subscription.EventCancel, result)
	return sub, nil
}

// RenewSubscription opens a fresh active record for an expired or
// cancelled subscription. The terminal record is kept as history.
func (s *SubscriptionService) RenewSubscription(ctx context.Context, orgID, subscriptionID int64, req *subscription.RenewRequest, renewedBy int64) (*subscription.Subscription, error) {
	prev, err := s.subs.FindByID(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	if prev.OrganizationID != orgID {
		return nil, subscription.ErrSubscriptionNotFound
	}
	if prev.Status != subscription.StatusExpired && prev.Status != subscription.StatusCancelled {
		return nil, subscription.ErrNotRenewable
	}

	p, err := s.plans.FindByID(ctx, prev.PlanID)
	if err != nil {
		return nil, err
	}
	if !p.IsActive {
		return nil, plan.ErrPlanNotActive
	}

	now := time.Now()
	res, err := subscription.Apply(prev.Status, subscription.EventRenew, subscription.GuardInput{Now: now})
	if err != nil {
		return nil, err
	}

	cycle := req.BillingCycle
	if cycle == "" {
		cycle = prev.BillingCycle
	}

	sub := &subscription.Subscription{
		SubscriptionReference: newSubscriptionReference(),
		OrganizationID:        orgID,
		PlanID:                prev.PlanID,
		Status:                res.Status,
		BillingCycle:          cycle,
		StartDate:             now,
		EndDate:               sql.NullTime{Time: cycle.NextPeriodEnd(now), Valid: true},
		RequestedBy:           renewedBy,
		RenewedFromID:         sql.NullInt64{Int64: prev.ID, Valid: true},
	}

	if err := s.subs.Create(ctx, sub); err != nil {
		return nil, err
	}

	s.logger.Info("subscription renewed",
		zap.Int64("subscription_id", sub.ID),
		zap.Int64("renewed_from_id", prev.ID),
		zap.Int64("organization_id", orgID),
	)

	s.afterTransition(ctx, sub, prev.Status, subscription.EventRenew, res)
	return sub, nil
}

// ActivateSubscription resolves a pending approval into an active
// subscription and opens its first billing period.
func (s *SubscriptionService) ActivateSubscription(ctx context.Context, subscriptionID, activatedBy int64) (*subscription.Subscription, error) {
	var fromStatus subscription.Status
	var result subscription.Result

	sub, err := s.subs.Mutate(ctx, subscriptionID, func(cur *subscription.Subscription) (bool, error) {
		if cur.Status != subscription.StatusPendingApproval {
			return false, subscription.ErrNotPendingApproval
		}

		now := time.Now()
		res, err := subscription.Apply(cur.Status, subscription.EventActivate, subscription.GuardInput{Now: now})
		if err != nil {
			return false, err
		}

		fromStatus = cur.Status
		result = res

		cur.Status = res.Status
		cur.StartDate = now
		cur.EndDate = sql.NullTime{Time: cur.BillingCycle.NextPeriodEnd(now), Valid: true}
		cur.ActivatedBy = sql.NullInt64{Int64: activatedBy, Valid: true}
		cur.ActivatedAt = sql.NullTime{Time: now, Valid: true}
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("subscription activated",
		zap.Int64("subscription_id", sub.ID),
		zap.Int64("organization_id", sub.OrganizationID),
		zap.Int64("activated_by", activatedBy),
	)

	s.afterTransition(ctx, sub, fromStatus, subscription.EventActivate, result)
	return sub, nil
}

// RejectSubscription resolves a pending approval into rejection. A
// non-empty reason is required.
func (s *SubscriptionService) RejectSubscription(ctx context.Context, subscriptionID int64, reason string, rejectedBy int64) (*subscription.Subscription, error) {
	var fromStatus subscription.Status
	var result subscription.Result

	sub, err := s.subs.Mutate(ctx, subscriptionID, func(cur *subscription.Subscription) (bool, error) {
		if cur.Status != subscription.StatusPendingApproval {
			return false, subscription.ErrNotPendingApproval
		}

		res, err := subscription.Apply(cur.Status, subscription.EventReject, subscription.GuardInput{
			Now:    time.Now(),
			Reason: reason,
		})
		if err != nil {
			return false, err
		}

		fromStatus = cur.Status
		result = res

		cur.Status = res.Status
		cur.RejectedBy = sql.NullInt64{Int64: rejectedBy, Valid: true}
		cur.RejectionReason = sql.NullString{String: reason, Valid: true}
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("subscription rejected",
		zap.Int64("subscription_id", sub.ID),
		zap.Int64("organization_id", sub.OrganizationID),
		zap.String("reason", reason),
	)

	s.afterTransition(ctx, sub, fromStatus, subscription.EventReject, result)
	return sub, nil
}

// ExtendTrial pushes the trial end of a trial subscription further out.
func (s *SubscriptionService) ExtendTrial(ctx context.Context, subscriptionID int64, additionalDays int, extendedBy int64) (*subscription.Subscription, error) {
	if additionalDays <= 0 {
		return nil, subscription.ErrInvalidTrialExtension
	}

	sub, err := s.subs.Mutate(ctx, subscriptionID, func(cur *subscription.Subscription) (bool, error) {
		if cur.Status != subscription.StatusTrial {
			return false, subscription.ErrNotInTrial
		}

		newEnd := cur.TrialEndsAt.Time.AddDate(0, 0, additionalDays)
		_, err := subscription.Apply(cur.Status, subscription.EventExtendTrial, subscription.GuardInput{
			Now:             time.Now(),
			CurrentTrialEnd: cur.TrialEndsAt.Time,
			NewTrialEnd:     newEnd,
		})
		if err != nil {
			return false, err
		}

		cur.TrialEndsAt = sql.NullTime{Time: newEnd, Valid: true}
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("trial extended",
		zap.Int64("subscription_id", sub.ID),
		zap.Int("additional_days", additionalDays),
		zap.Int64("extended_by", extendedBy),
		zap.Time("trial_ends_at", sub.TrialEndsAt.Time),
	)
	return sub, nil
}

// ExpireSubscription expires a past-due live subscription. Expiring an
// already-expired subscription is a no-op, so the sweeper can re-deliver
// safely.
func (s *SubscriptionService) ExpireSubscription(ctx context.Context, subscriptionID int64) (*subscription.Subscription, error) {
	var fromStatus subscription.Status
	var result subscription.Result

	sub, err := s.subs.Mutate(ctx, subscriptionID, func(cur *subscription.Subscription) (bool, error) {
		now := time.Now()
		in := subscription.GuardInput{Now: now}
		switch cur.Status {
		case subscription.StatusTrial:
			if cur.TrialEndsAt.Valid {
				in.DueAt = cur.TrialEndsAt.Time
			}
		default:
			if cur.EndDate.Valid {
				in.DueAt = cur.EndDate.Time
			}
		}

		res, err := subscription.Apply(cur.Status, subscription.EventExpire, in)
		if err != nil {
			return false, err
		}
		if res.NoOp {
			return false, nil
		}

		fromStatus = cur.Status
		result = res
		cur.Status = res.Status
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	if result.Status != "" {
		s.logger.Info("subscription expired",
			zap.Int64("subscription_id", sub.ID),
			zap.Int64("organization_id", sub.OrganizationID),
		)
		s.afterTransition(ctx, sub, fromStatus, subscription.EventExpire, result)
	}
	return sub, nil
}

// GetSubscription retrieves one subscription of the organization.
func (s *SubscriptionService) GetSubscription(ctx context.Context, orgID, subscriptionID int64) (*subscription.Subscription, error) {
	sub, err := s.subs.FindByID(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	if sub.OrganizationID != orgID {
		return nil, subscription.ErrSubscriptionNotFound
	}
	return sub, nil
}

// GetActiveSubscription returns the organization's live subscription.
func (s *SubscriptionService) GetActiveSubscription(ctx context.Context, orgID int64) (*subscription.Subscription, error) {
	return s.subs.FindActiveByOrganization(ctx, orgID)
}

// HasActiveSubscription reports whether a live subscription exists.
func (s *SubscriptionService) HasActiveSubscription(ctx context.Context, orgID int64) (bool, error) {
	return s.subs.ExistsActiveForOrganization(ctx, orgID)
}

// ListSubscriptions returns the organization's subscription history.
func (s *SubscriptionService) ListSubscriptions(ctx context.Context, orgID int64, filters *subscription.ListFilters) ([]subscription.Subscription, error) {
	return s.subs.FindByOrganization(ctx, orgID, filters)
}

// GetRemainingDays returns whole days left in the live subscription's
// current period.
func (s *SubscriptionService) GetRemainingDays(ctx context.Context, orgID int64) (int, error) {
	sub, err := s.subs.FindActiveByOrganization(ctx, orgID)
	if err != nil {
		return 0, err
	}
	return sub.RemainingDays(time.Now()), nil
}

// CalculateProration previews the signed adjustment for switching the
// live subscription to another plan, without changing anything.
func (s *SubscriptionService) CalculateProration(ctx context.Context, orgID, newPlanID int64, newCycle subscription.BillingCycle) (*billing.Quote, error) {
	sub, err := s.subs.FindActiveByOrganization(ctx, orgID)
	if err != nil {
		return nil, err
	}
	curPlan, err := s.plans.FindByID(ctx, sub.PlanID)
	if err != nil {
		return nil, err
	}
	newPlan, err := s.plans.FindByID(ctx, newPlanID)
	if err != nil {
		return nil, err
	}
	if newCycle == "" {
		newCycle = sub.BillingCycle
	}

	quote := billing.CalculateProration(sub, curPlan, newPlan, newCycle, time.Now())
	return &quote, nil
}

// ValidateSubscriptionChange reports whether switching the live
// subscription to the target plan would be an upgrade or a downgrade,
// or why it is not allowed.
func (s *SubscriptionService) ValidateSubscriptionChange(ctx context.Context, orgID, newPlanID int64) (plan.ChangeDirection, error) {
	sub, err := s.subs.FindActiveByOrganization(ctx, orgID)
	if err != nil {
		return "", err
	}
	curPlan, err := s.plans.FindByID(ctx, sub.PlanID)
	if err != nil {
		return "", err
	}
	newPlan, err := s.plans.FindByID(ctx, newPlanID)
	if err != nil {
		return "", err
	}
	return plan.ValidateChange(curPlan, newPlan)
}

// CanAccessModule reports whether the organization's live subscription
// entitles it to the module at all. Per-user grant and seat-count checks
// are the access gate's concern.
func (s *SubscriptionService) CanAccessModule(ctx context.Context, orgID, moduleID int64) (bool, error) {
	sub, err := s.subs.FindActiveByOrganization(ctx, orgID)
	if err != nil {
		if errors.Is(err, subscription.ErrNoActiveSubscription) {
			return false, nil
		}
		return false, err
	}

	pm, err := s.planModules.FindByPlanAndModule(ctx, sub.PlanID, moduleID)
	if err != nil {
		return false, err
	}
	if pm == nil {
		return false, nil
	}
	return pm.IsIncluded || pm.LicenseType == plan.LicenseAddon, nil
}

// afterTransition runs the persisted transition's side effects: cache
// invalidation and event publication. Neither failure mode fails the
// operation that already committed.
func (s *SubscriptionService) afterTransition(ctx context.Context, sub *subscription.Subscription, from subscription.Status, ev subscription.Event, res subscription.Result) {
	if s.cache != nil && (hasEffect(res, subscription.EffectInvalidateEntitlements) || res.Status.IsLive()) {
		if err := s.cache.InvalidateOrganization(ctx, sub.OrganizationID); err != nil {
			s.logger.Warn("failed to invalidate entitlement cache",
				zap.Int64("organization_id", sub.OrganizationID),
				zap.Error(err),
			)
		}
	}

	if s.events != nil {
		s.events.PublishLifecycleEvent(subscription.LifecycleEvent{
			OrganizationID: sub.OrganizationID,
			SubscriptionID: sub.ID,
			PlanID:         sub.PlanID,
			From:           from,
			To:             res.Status,
			Event:          ev,
			OccurredAt:     time.Now(),
		})
	}
}

func hasEffect(res subscription.Result, effect subscription.Effect) bool {
	for _, e := range res.Effects {
		if e == effect {
			return true
		}
	}
	return false
}

func newSubscriptionReference() string {
	return fmt.Sprintf("SUB-%s", ulid.Make().String())
}
