// internal/domain/plan/errors.go
package plan

import "errors"

var (
	ErrPlanNotFound            = errors.New("plan not found")
	ErrPlanNotActive           = errors.New("plan is not active")
	ErrPlanDoesNotSupportTrial = errors.New("plan does not support trial")
	ErrSamePlan                = errors.New("new plan is the same as the current plan")
	ErrNewPlanMustBeHigher     = errors.New("new plan must be higher than the current plan")
	ErrNewPlanMustBeLower      = errors.New("new plan must be lower than the current plan")
)
