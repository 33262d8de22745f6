// internal/domain/plan/comparator.go
package plan

type ChangeDirection string

const (
	DirectionUpgrade   ChangeDirection = "upgrade"
	DirectionDowngrade ChangeDirection = "downgrade"
)

// Less reports whether a sorts strictly before b in the plan order.
// Plans are totally ordered by (display_order, plan_code).
func Less(a, b *Plan) bool {
	if a.DisplayOrder != b.DisplayOrder {
		return a.DisplayOrder < b.DisplayOrder
	}
	return a.PlanCode < b.PlanCode
}

// ValidateUpgrade checks that target is a strictly higher, active plan.
func ValidateUpgrade(current, target *Plan) error {
	if target.ID == current.ID {
		return ErrSamePlan
	}
	if !target.IsActive {
		return ErrPlanNotActive
	}
	if !Less(current, target) {
		return ErrNewPlanMustBeHigher
	}
	return nil
}

// ValidateDowngrade checks that target is a strictly lower, active plan.
func ValidateDowngrade(current, target *Plan) error {
	if target.ID == current.ID {
		return ErrSamePlan
	}
	if !target.IsActive {
		return ErrPlanNotActive
	}
	if !Less(target, current) {
		return ErrNewPlanMustBeLower
	}
	return nil
}

// ValidateChange dispatches to upgrade or downgrade validation based on the
// relative order of the two plans. Switching to the same plan is rejected
// with ErrSamePlan rather than silently accepted; the caller must be able
// to tell "already on this plan" apart from a real change.
func ValidateChange(current, target *Plan) (ChangeDirection, error) {
	if target.ID == current.ID {
		return "", ErrSamePlan
	}
	if Less(current, target) {
		return DirectionUpgrade, ValidateUpgrade(current, target)
	}
	return DirectionDowngrade, ValidateDowngrade(current, target)
}
