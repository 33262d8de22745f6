// internal/domain/plan/dto.go
package plan

import "github.com/shopspring/decimal"

type ListFilters struct {
	IncludeInactive bool  `form:"include_inactive"`
	OrganizationID  int64 `form:"organization_id"`
	Limit           int   `form:"limit"`
	Offset          int   `form:"offset"`
}

// ComparisonRow is one plan in a side-by-side comparison response.
type ComparisonRow struct {
	PlanID        int64           `json:"plan_id"`
	PlanCode      string          `json:"plan_code"`
	Name          string          `json:"name"`
	DisplayOrder  int             `json:"display_order"`
	PriceMonthly  decimal.Decimal `json:"price_monthly"`
	PriceYearly   decimal.Decimal `json:"price_yearly"`
	Currency      string          `json:"currency"`
	SupportsTrial bool            `json:"supports_trial"`
	FeatureTags   []string        `json:"feature_tags,omitempty"`
	ModuleIDs     []int64         `json:"module_ids,omitempty"`
}
