// internal/domain/access/errors.go
package access

import "errors"

var (
	ErrMaxUsersLimitReached = errors.New("maximum number of users for this module has been reached")
	ErrModuleNotInPlan      = errors.New("module is not part of the subscription plan")
	ErrOrganizationNoAccess = errors.New("organization cannot access this module")
	ErrGrantNotFound        = errors.New("module access grant not found")
	ErrGrantAlreadyExists   = errors.New("user already has an active grant for this module")
)
