// internal/domain/access/dto.go
package access

type RegisterUserRequest struct {
	UserID   int64 `json:"user_id" binding:"required"`
	ModuleID int64 `json:"module_id" binding:"required"`
}

// CheckResult explains an entitlement decision so callers can surface the
// denial reason instead of a bare boolean.
type CheckResult struct {
	Allowed   bool   `json:"allowed"`
	Reason    string `json:"reason,omitempty"`
	SeatsUsed int    `json:"seats_used,omitempty"`
	SeatLimit int    `json:"seat_limit,omitempty"`
	FromCache bool   `json:"-"`
}
