// internal/domain/identity/entity.go
package identity

import (
	"database/sql"
	"time"
)

const (
	RoleSuperAdmin = "super_admin"
	RoleOrgAdmin   = "org_admin"
	RoleMember     = "member"
)

type Identity struct {
	ID             int64          `json:"id" db:"id"`
	Email          string         `json:"email" db:"email"`
	PasswordHash   string         `json:"-" db:"password_hash"`
	FullName       string         `json:"full_name" db:"full_name"`
	Role           string         `json:"role" db:"role"`
	OrganizationID sql.NullInt64  `json:"organization_id,omitempty" db:"organization_id"`
	IsActive       bool           `json:"is_active" db:"is_active"`
	LastLoginAt    sql.NullTime   `json:"last_login_at,omitempty" db:"last_login_at"`
	CreatedAt      time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at" db:"updated_at"`
}

// IsAdmin reports whether the identity may resolve pending approvals.
func (i *Identity) IsAdmin() bool {
	return i.Role == RoleSuperAdmin
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Identity  *Identity `json:"identity"`
}
