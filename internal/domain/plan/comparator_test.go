package plan_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tenantcore-service/internal/domain/plan"
)

func tier(id int64, code string, order int) *plan.Plan {
	return &plan.Plan{ID: id, PlanCode: code, DisplayOrder: order, IsActive: true}
}

func TestLess(t *testing.T) {
	t.Parallel()

	basic := tier(1, "basic", 10)
	pro := tier(2, "pro", 20)
	proAlt := tier(3, "pro_alt", 20)

	assert.True(t, plan.Less(basic, pro))
	assert.False(t, plan.Less(pro, basic))

	// Ties on display order break on plan code, so ordering is total.
	assert.True(t, plan.Less(pro, proAlt))
	assert.False(t, plan.Less(proAlt, pro))
	assert.False(t, plan.Less(pro, pro))
}

func TestValidateUpgrade(t *testing.T) {
	t.Parallel()

	basic := tier(1, "basic", 10)
	pro := tier(2, "pro", 20)

	require.NoError(t, plan.ValidateUpgrade(basic, pro))

	assert.ErrorIs(t, plan.ValidateUpgrade(pro, basic), plan.ErrNewPlanMustBeHigher)
	assert.ErrorIs(t, plan.ValidateUpgrade(pro, pro), plan.ErrSamePlan)

	inactive := tier(3, "enterprise", 30)
	inactive.IsActive = false
	assert.ErrorIs(t, plan.ValidateUpgrade(basic, inactive), plan.ErrPlanNotActive)
}

func TestValidateDowngrade(t *testing.T) {
	t.Parallel()

	basic := tier(1, "basic", 10)
	pro := tier(2, "pro", 20)

	require.NoError(t, plan.ValidateDowngrade(pro, basic))

	assert.ErrorIs(t, plan.ValidateDowngrade(basic, pro), plan.ErrNewPlanMustBeLower)
	assert.ErrorIs(t, plan.ValidateDowngrade(basic, basic), plan.ErrSamePlan)
}

func TestValidateChange(t *testing.T) {
	t.Parallel()

	basic := tier(1, "basic", 10)
	pro := tier(2, "pro", 20)

	dir, err := plan.ValidateChange(basic, pro)
	require.NoError(t, err)
	assert.Equal(t, plan.DirectionUpgrade, dir)

	dir, err = plan.ValidateChange(pro, basic)
	require.NoError(t, err)
	assert.Equal(t, plan.DirectionDowngrade, dir)

	_, err = plan.ValidateChange(pro, pro)
	assert.ErrorIs(t, err, plan.ErrSamePlan)
}
