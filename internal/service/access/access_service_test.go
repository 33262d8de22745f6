package access_test

import (
	"context"
	"database/sql"
	"sync"
	"testing"

	"tenantcore-service/internal/domain/access"
	"tenantcore-service/internal/domain/plan"
	"tenantcore-service/internal/domain/subscription"
	accsvc "tenantcore-service/internal/service/access"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	orgID       = int64(10)
	basicPlanID = int64(2)
	crmModuleID = int64(7)
	hrModuleID  = int64(8)
)

// fakeGrantStore implements ModuleAccessStore with the same atomic
// count-then-insert seat cap behavior as the database store.
type fakeGrantStore struct {
	mu     sync.Mutex
	nextID int64
	grants []access.ModuleAccessGrant
}

func (f *fakeGrantStore) activeCountLocked(moduleID, org int64) int {
	n := 0
	for _, g := range f.grants {
		if g.ModuleID == moduleID && g.OrganizationID == org && g.IsActive {
			n++
		}
	}
	return n
}

func (f *fakeGrantStore) GrantWithCap(ctx context.Context, grant *access.ModuleAccessGrant, maxUsers int32) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, g := range f.grants {
		if g.UserID == grant.UserID && g.ModuleID == grant.ModuleID && g.OrganizationID == grant.OrganizationID && g.IsActive {
			return access.ErrGrantAlreadyExists
		}
	}
	if maxUsers > 0 && f.activeCountLocked(grant.ModuleID, grant.OrganizationID) >= int(maxUsers) {
		return access.ErrMaxUsersLimitReached
	}

	f.nextID++
	grant.ID = f.nextID
	grant.IsActive = true
	f.grants = append(f.grants, *grant)
	return nil
}

func (f *fakeGrantStore) FindUserGrant(ctx context.Context, userID, moduleID, org int64) (*access.ModuleAccessGrant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, g := range f.grants {
		if g.UserID == userID && g.ModuleID == moduleID && g.OrganizationID == org && g.IsActive {
			grant := g
			return &grant, nil
		}
	}
	return nil, access.ErrGrantNotFound
}

func (f *fakeGrantStore) ListActiveByModuleAndOrg(ctx context.Context, moduleID, org int64) ([]access.ModuleAccessGrant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []access.ModuleAccessGrant
	for _, g := range f.grants {
		if g.ModuleID == moduleID && g.OrganizationID == org && g.IsActive {
			out = append(out, g)
		}
	}
	return out, nil
}

func (f *fakeGrantStore) CountActiveUsers(ctx context.Context, moduleID, org int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.activeCountLocked(moduleID, org), nil
}

func (f *fakeGrantStore) Revoke(ctx context.Context, userID, moduleID, org, revokedBy int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i, g := range f.grants {
		if g.UserID == userID && g.ModuleID == moduleID && g.OrganizationID == org && g.IsActive {
			f.grants[i].IsActive = false
			f.grants[i].RevokedBy = sql.NullInt64{Int64: revokedBy, Valid: true}
			return nil
		}
	}
	return access.ErrGrantNotFound
}

// fakeSubReader serves one live subscription, or none.
type fakeSubReader struct {
	sub *subscription.Subscription
}

func (f *fakeSubReader) FindActiveByOrganization(ctx context.Context, org int64) (*subscription.Subscription, error) {
	if f.sub == nil || f.sub.OrganizationID != org {
		return nil, subscription.ErrNoActiveSubscription
	}
	return f.sub, nil
}

type fakePlanModuleReader struct {
	mu      sync.Mutex
	modules []plan.PlanModule
	calls   int
}

func (f *fakePlanModuleReader) lookups() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakePlanModuleReader) FindByPlanAndModule(ctx context.Context, planID, moduleID int64) (*plan.PlanModule, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	for _, m := range f.modules {
		if m.PlanID == planID && m.ModuleID == moduleID {
			pm := m
			return &pm, nil
		}
	}
	return nil, nil
}

// memoryCache is an in-process EntitlementCache.
type memoryCache struct {
	mu      sync.Mutex
	entries map[int64]map[int64]accsvc.Entitlement
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: make(map[int64]map[int64]accsvc.Entitlement)}
}

func (c *memoryCache) Get(ctx context.Context, org, moduleID int64) (accsvc.Entitlement, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ent, ok := c.entries[org][moduleID]
	return ent, ok
}

func (c *memoryCache) Set(ctx context.Context, org, moduleID int64, ent accsvc.Entitlement) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entries[org] == nil {
		c.entries[org] = make(map[int64]accsvc.Entitlement)
	}
	c.entries[org][moduleID] = ent
}

func (c *memoryCache) InvalidateOrganization(ctx context.Context, org int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, org)
	return nil
}

type accessFixture struct {
	grants      *fakeGrantStore
	subs        *fakeSubReader
	planModules *fakePlanModuleReader
	cache       *memoryCache
	svc         *accsvc.AccessService
}

func newAccessFixture(t *testing.T) *accessFixture {
	t.Helper()

	f := &accessFixture{
		grants: &fakeGrantStore{},
		subs: &fakeSubReader{sub: &subscription.Subscription{
			ID:             1,
			OrganizationID: orgID,
			PlanID:         basicPlanID,
			Status:         subscription.StatusActive,
		}},
		planModules: &fakePlanModuleReader{modules: []plan.PlanModule{
			{PlanID: basicPlanID, ModuleID: crmModuleID, LicenseType: plan.LicenseIncluded, IsIncluded: true},
			{
				PlanID: basicPlanID, ModuleID: hrModuleID,
				LicenseType: plan.LicenseIncluded, IsIncluded: true,
				MaxUsersPerModule: sql.NullInt32{Int32: 2, Valid: true},
			},
		}},
		cache: newMemoryCache(),
	}
	f.svc = accsvc.NewAccessService(f.grants, f.subs, f.planModules, f.cache, zap.NewNop())
	return f
}

func (f *accessFixture) grant(t *testing.T, userID, moduleID int64) {
	t.Helper()
	_, err := f.svc.RegisterUserToModule(context.Background(), orgID, &access.RegisterUserRequest{UserID: userID, ModuleID: moduleID}, 1)
	require.NoError(t, err)
}

func TestHasAccess_AllowsGrantedUser(t *testing.T) {
	t.Parallel()
	f := newAccessFixture(t)
	ctx := context.Background()

	f.grant(t, 100, crmModuleID)

	result, err := f.svc.HasAccess(ctx, 100, crmModuleID, orgID)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.Empty(t, result.Reason)
}

func TestHasAccess_DeniesUserWithoutGrant(t *testing.T) {
	t.Parallel()
	f := newAccessFixture(t)

	result, err := f.svc.HasAccess(context.Background(), 100, crmModuleID, orgID)
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Equal(t, access.ErrGrantNotFound.Error(), result.Reason)
}

func TestHasAccess_DeniesModuleOutsidePlan(t *testing.T) {
	t.Parallel()
	f := newAccessFixture(t)

	result, err := f.svc.HasAccess(context.Background(), 100, 999, orgID)
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Equal(t, access.ErrOrganizationNoAccess.Error(), result.Reason)
}

func TestHasAccess_DeniesWithoutLiveSubscription(t *testing.T) {
	t.Parallel()
	f := newAccessFixture(t)
	f.subs.sub = nil

	result, err := f.svc.HasAccess(context.Background(), 100, crmModuleID, orgID)
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Equal(t, access.ErrOrganizationNoAccess.Error(), result.Reason)
}

func TestHasAccess_CachesEntitlementDecisions(t *testing.T) {
	t.Parallel()
	f := newAccessFixture(t)
	ctx := context.Background()

	// Granting resolves the entitlement too, so start from a cold cache.
	f.grant(t, 100, crmModuleID)
	require.NoError(t, f.cache.InvalidateOrganization(ctx, orgID))
	lookupsBefore := f.planModules.lookups()

	first, err := f.svc.HasAccess(ctx, 100, crmModuleID, orgID)
	require.NoError(t, err)
	second, err := f.svc.HasAccess(ctx, 100, crmModuleID, orgID)
	require.NoError(t, err)

	assert.False(t, first.FromCache)
	assert.True(t, second.FromCache)
	assert.Equal(t, lookupsBefore+1, f.planModules.lookups(), "second check served from cache")

	// Negative decisions are cached too.
	_, err = f.svc.HasAccess(ctx, 100, 999, orgID)
	require.NoError(t, err)
	denied, err := f.svc.HasAccess(ctx, 100, 999, orgID)
	require.NoError(t, err)
	assert.True(t, denied.FromCache)

	// Invalidation forces a fresh lookup.
	require.NoError(t, f.cache.InvalidateOrganization(ctx, orgID))
	third, err := f.svc.HasAccess(ctx, 100, crmModuleID, orgID)
	require.NoError(t, err)
	assert.False(t, third.FromCache)
}

func TestHasAccess_DeniesWhenGrantsExceedSeatCap(t *testing.T) {
	t.Parallel()
	f := newAccessFixture(t)
	ctx := context.Background()

	// Fill the hr module's two seats, then push a third grant in behind
	// the service's back, as a plan downgrade would.
	f.grant(t, 100, hrModuleID)
	f.grant(t, 101, hrModuleID)
	require.NoError(t, f.grants.GrantWithCap(ctx, &access.ModuleAccessGrant{
		UserID: 102, ModuleID: hrModuleID, OrganizationID: orgID, GrantedBy: 1,
	}, 0))

	result, err := f.svc.HasAccess(ctx, 100, hrModuleID, orgID)
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Equal(t, access.ErrMaxUsersLimitReached.Error(), result.Reason)
	assert.Equal(t, 3, result.SeatsUsed)
	assert.Equal(t, 2, result.SeatLimit)
}

func TestRegisterUserToModule(t *testing.T) {
	t.Parallel()
	f := newAccessFixture(t)
	ctx := context.Background()

	grant, err := f.svc.RegisterUserToModule(ctx, orgID, &access.RegisterUserRequest{UserID: 100, ModuleID: crmModuleID}, 1)
	require.NoError(t, err)
	assert.NotZero(t, grant.ID)
	assert.True(t, grant.IsActive)
	assert.Equal(t, int64(1), grant.GrantedBy)

	_, err = f.svc.RegisterUserToModule(ctx, orgID, &access.RegisterUserRequest{UserID: 100, ModuleID: crmModuleID}, 1)
	assert.ErrorIs(t, err, access.ErrGrantAlreadyExists)

	_, err = f.svc.RegisterUserToModule(ctx, orgID, &access.RegisterUserRequest{UserID: 100, ModuleID: 999}, 1)
	assert.ErrorIs(t, err, access.ErrOrganizationNoAccess)
}

func TestRegisterUserToModule_SeatCapUnderConcurrency(t *testing.T) {
	t.Parallel()
	f := newAccessFixture(t)
	ctx := context.Background()

	const attempts = 8
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.RegisterUserToModule(ctx, orgID, &access.RegisterUserRequest{
				UserID:   int64(100 + i),
				ModuleID: hrModuleID,
			}, 1)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, access.ErrMaxUsersLimitReached)
		}
	}
	assert.Equal(t, 2, succeeded, "the cap admits exactly two seats")
}

func TestRevokeUserModule(t *testing.T) {
	t.Parallel()
	f := newAccessFixture(t)
	ctx := context.Background()

	err := f.svc.RevokeUserModule(ctx, orgID, 100, crmModuleID, 1)
	assert.ErrorIs(t, err, access.ErrGrantNotFound)

	f.grant(t, 100, crmModuleID)
	require.NoError(t, f.svc.RevokeUserModule(ctx, orgID, 100, crmModuleID, 1))

	result, err := f.svc.HasAccess(ctx, 100, crmModuleID, orgID)
	require.NoError(t, err)
	assert.False(t, result.Allowed)

	// Revoking frees the seat for someone else.
	f.grant(t, 100, hrModuleID)
	f.grant(t, 101, hrModuleID)
	_, err = f.svc.RegisterUserToModule(ctx, orgID, &access.RegisterUserRequest{UserID: 102, ModuleID: hrModuleID}, 1)
	assert.ErrorIs(t, err, access.ErrMaxUsersLimitReached)
	require.NoError(t, f.svc.RevokeUserModule(ctx, orgID, 101, hrModuleID, 1))
	f.grant(t, 102, hrModuleID)
}

func TestListModuleUsers(t *testing.T) {
	t.Parallel()
	f := newAccessFixture(t)
	ctx := context.Background()

	users, err := f.svc.ListModuleUsers(ctx, orgID, crmModuleID)
	require.NoError(t, err)
	assert.Empty(t, users)

	f.grant(t, 100, crmModuleID)
	f.grant(t, 101, crmModuleID)
	require.NoError(t, f.svc.RevokeUserModule(ctx, orgID, 101, crmModuleID, 1))

	users, err = f.svc.ListModuleUsers(ctx, orgID, crmModuleID)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, int64(100), users[0].UserID)
}
