package subscription_test

import (
	"context"
	"sync"
	"time"

	domain "tenantcore-service/internal/domain/subscription"

	"tenantcore-service/internal/domain/plan"
)

// fakeStore is an in-memory SubscriptionStore enforcing the same
// one-live-subscription-per-organization invariant as the database.
type fakeStore struct {
	mu     sync.Mutex
	nextID int64
	subs   map[int64]domain.Subscription
}

func newFakeStore() *fakeStore {
	return &fakeStore{subs: make(map[int64]domain.Subscription)}
}

func (f *fakeStore) liveForOrgLocked(orgID int64, excludeID int64) *domain.Subscription {
	for id, s := range f.subs {
		if s.OrganizationID == orgID && s.Status.IsLive() && id != excludeID {
			sub := s
			return &sub
		}
	}
	return nil
}

func (f *fakeStore) Create(ctx context.Context, sub *domain.Subscription) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if sub.Status.IsLive() && f.liveForOrgLocked(sub.OrganizationID, 0) != nil {
		return domain.ErrAlreadyHasActiveSubscription
	}

	f.nextID++
	sub.ID = f.nextID
	sub.CreatedAt = time.Now()
	sub.UpdatedAt = sub.CreatedAt
	f.subs[sub.ID] = *sub
	return nil
}

func (f *fakeStore) mutateLocked(id int64, fn func(sub *domain.Subscription) (bool, error)) (*domain.Subscription, error) {
	cur, ok := f.subs[id]
	if !ok {
		return nil, domain.ErrSubscriptionNotFound
	}

	changed, err := fn(&cur)
	if err != nil {
		return nil, err
	}
	if changed {
		if cur.Status.IsLive() && f.liveForOrgLocked(cur.OrganizationID, cur.ID) != nil {
			return nil, domain.ErrAlreadyHasActiveSubscription
		}
		cur.UpdatedAt = time.Now()
		f.subs[id] = cur
	}
	return &cur, nil
}

func (f *fakeStore) Mutate(ctx context.Context, id int64, fn func(sub *domain.Subscription) (bool, error)) (*domain.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mutateLocked(id, fn)
}

func (f *fakeStore) MutateActiveByOrganization(ctx context.Context, orgID int64, fn func(sub *domain.Subscription) (bool, error)) (*domain.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	live := f.liveForOrgLocked(orgID, 0)
	if live == nil {
		return nil, domain.ErrNoActiveSubscription
	}
	return f.mutateLocked(live.ID, fn)
}

func (f *fakeStore) FindByID(ctx context.Context, id int64) (*domain.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	sub, ok := f.subs[id]
	if !ok {
		return nil, domain.ErrSubscriptionNotFound
	}
	return &sub, nil
}

func (f *fakeStore) FindActiveByOrganization(ctx context.Context, orgID int64) (*domain.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if live := f.liveForOrgLocked(orgID, 0); live != nil {
		return live, nil
	}
	return nil, domain.ErrNoActiveSubscription
}

func (f *fakeStore) FindByOrganization(ctx context.Context, orgID int64, filters *domain.ListFilters) ([]domain.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []domain.Subscription
	for _, s := range f.subs {
		if s.OrganizationID != orgID {
			continue
		}
		if filters != nil && filters.Status != "" && s.Status != filters.Status {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func (f *fakeStore) FindByStatus(ctx context.Context, status domain.Status, limit int) ([]domain.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []domain.Subscription
	for _, s := range f.subs {
		if s.Status == status {
			out = append(out, s)
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (f *fakeStore) FindExpiringBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []domain.Subscription
	for _, s := range f.subs {
		if s.Status == domain.StatusActive && s.EndDate.Valid && !s.EndDate.Time.After(cutoff) {
			out = append(out, s)
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (f *fakeStore) FindTrialEndingBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []domain.Subscription
	for _, s := range f.subs {
		if s.Status == domain.StatusTrial && s.TrialEndsAt.Valid && !s.TrialEndsAt.Time.After(cutoff) {
			out = append(out, s)
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (f *fakeStore) ExistsActiveForOrganization(ctx context.Context, orgID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.liveForOrgLocked(orgID, 0) != nil, nil
}

// fakeCatalog is an in-memory PlanCatalog.
type fakeCatalog struct {
	plans map[int64]*plan.Plan
}

func newFakeCatalog(plans ...*plan.Plan) *fakeCatalog {
	c := &fakeCatalog{plans: make(map[int64]*plan.Plan)}
	for _, p := range plans {
		c.plans[p.ID] = p
	}
	return c
}

func (f *fakeCatalog) FindByID(ctx context.Context, id int64) (*plan.Plan, error) {
	p, ok := f.plans[id]
	if !ok {
		return nil, plan.ErrPlanNotFound
	}
	return p, nil
}

func (f *fakeCatalog) FindByPlanCode(ctx context.Context, planCode string) (*plan.Plan, error) {
	for _, p := range f.plans {
		if p.PlanCode == planCode {
			return p, nil
		}
	}
	return nil, plan.ErrPlanNotFound
}

func (f *fakeCatalog) ListActive(ctx context.Context, filters *plan.ListFilters) ([]plan.Plan, error) {
	var out []plan.Plan
	for _, p := range f.plans {
		if p.IsActive {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakeCatalog) FindCustomByOrganization(ctx context.Context, orgID int64) (*plan.Plan, error) {
	for _, p := range f.plans {
		if p.IsCustom && p.OrganizationID.Valid && p.OrganizationID.Int64 == orgID {
			return p, nil
		}
	}
	return nil, plan.ErrPlanNotFound
}

// fakePlanModules is an in-memory PlanModuleStore.
type fakePlanModules struct {
	modules []plan.PlanModule
}

func (f *fakePlanModules) FindByPlanID(ctx context.Context, planID int64) ([]plan.PlanModule, error) {
	var out []plan.PlanModule
	for _, m := range f.modules {
		if m.PlanID == planID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakePlanModules) FindByPlanAndModule(ctx context.Context, planID, moduleID int64) (*plan.PlanModule, error) {
	for _, m := range f.modules {
		if m.PlanID == planID && m.ModuleID == moduleID {
			pm := m
			return &pm, nil
		}
	}
	return nil, nil
}

func (f *fakePlanModules) ExistsByPlanAndModule(ctx context.Context, planID, moduleID int64) (bool, error) {
	pm, _ := f.FindByPlanAndModule(ctx, planID, moduleID)
	return pm != nil, nil
}

// fakeCache records entitlement invalidations.
type fakeCache struct {
	mu            sync.Mutex
	invalidations []int64
}

func (f *fakeCache) InvalidateOrganization(ctx context.Context, orgID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidations = append(f.invalidations, orgID)
	return nil
}

func (f *fakeCache) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.invalidations)
}

// fakePublisher collects lifecycle events.
type fakePublisher struct {
	mu     sync.Mutex
	events []domain.LifecycleEvent
}

func (f *fakePublisher) PublishLifecycleEvent(ev domain.LifecycleEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
}

func (f *fakePublisher) all() []domain.LifecycleEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.LifecycleEvent, len(f.events))
	copy(out, f.events)
	return out
}

func (f *fakePublisher) last() (domain.LifecycleEvent, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.events) == 0 {
		return domain.LifecycleEvent{}, false
	}
	return f.events[len(f.events)-1], true
}
