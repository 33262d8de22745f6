// internal/domain/plan/entity.go
package plan

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"
)

type LicenseType string

const (
	LicenseIncluded LicenseType = "included"
	LicenseAddon    LicenseType = "addon"
)

type Plan struct {
	ID          int64          `json:"id" db:"id"`
	PlanCode    string         `json:"plan_code" db:"plan_code"`
	Name        string         `json:"name" db:"name"`
	Description sql.NullString `json:"description,omitempty" db:"description"`

	// Ordering: plans form a total order by (display_order, plan_code);
	// upgrade/downgrade validation is defined against this order.
	DisplayOrder int `json:"display_order" db:"display_order"`

	// Pricing
	PriceMonthly decimal.Decimal `json:"price_monthly" db:"price_monthly"`
	PriceYearly  decimal.Decimal `json:"price_yearly" db:"price_yearly"`
	Currency     string          `json:"currency" db:"currency"`

	// Trial
	SupportsTrial bool          `json:"supports_trial" db:"supports_trial"`
	TrialDays     sql.NullInt32 `json:"trial_days,omitempty" db:"trial_days"`

	// A custom plan belongs to exactly one organization.
	IsCustom       bool          `json:"is_custom" db:"is_custom"`
	OrganizationID sql.NullInt64 `json:"organization_id,omitempty" db:"organization_id"`

	// Features
	FeatureTags []string               `json:"feature_tags,omitempty" db:"feature_tags"`
	Metadata    map[string]interface{} `json:"metadata,omitempty" db:"metadata"`

	// Status
	IsActive bool `json:"is_active" db:"is_active"`

	// Timestamps
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// IsFree reports whether the plan carries no charge on any billing cycle.
// Free plans activate immediately on subscribe, skipping approval.
func (p *Plan) IsFree() bool {
	return p.PriceMonthly.IsZero() && p.PriceYearly.IsZero()
}

type PlanModule struct {
	ID                int64         `json:"id" db:"id"`
	PlanID            int64         `json:"plan_id" db:"plan_id"`
	ModuleID          int64         `json:"module_id" db:"module_id"`
	LicenseType       LicenseType   `json:"license_type" db:"license_type"`
	IsIncluded        bool          `json:"is_included" db:"is_included"`
	MaxUsersPerModule sql.NullInt32 `json:"max_users_per_module,omitempty" db:"max_users_per_module"`
	CreatedAt         time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at" db:"updated_at"`
}

// HasSeatCap reports whether the plan limits how many users of an
// organization may hold an active grant on this module at once.
func (pm *PlanModule) HasSeatCap() bool {
	return pm.MaxUsersPerModule.Valid && pm.MaxUsersPerModule.Int32 > 0
}
