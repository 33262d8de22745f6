// internal/domain/access/entity.go
package access

import (
	"database/sql"
	"time"
)

// ModuleAccessGrant is an explicit per-user entitlement layered on top of
// the organization's plan. Its lifecycle is independent of the
// subscription; its effect is conditioned on the organization currently
// holding module access.
type ModuleAccessGrant struct {
	ID             int64         `json:"id" db:"id"`
	UserID         int64         `json:"user_id" db:"user_id"`
	ModuleID       int64         `json:"module_id" db:"module_id"`
	OrganizationID int64         `json:"organization_id" db:"organization_id"`
	GrantedBy      int64         `json:"granted_by" db:"granted_by"`
	IsActive       bool          `json:"is_active" db:"is_active"`
	RevokedBy      sql.NullInt64 `json:"revoked_by,omitempty" db:"revoked_by"`
	RevokedAt      sql.NullTime  `json:"revoked_at,omitempty" db:"revoked_at"`
	CreatedAt      time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at" db:"updated_at"`
}
