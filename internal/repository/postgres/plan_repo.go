// internal/repository/postgres/plan_repo.go
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"tenantcore-service/internal/domain/plan"

	"github.com/jackc/pgx/v5"
	"github.com/lib/pq"
)

// PlanRepository is the read-only plan catalog. Catalog management is
// ordinary data administration handled elsewhere; the lifecycle engine
// only ever reads from it.
type PlanRepository struct {
	db *DB
}

func NewPlanRepository(db *DB) *PlanRepository {
	return &PlanRepository{db: db}
}

const planColumns = `
	id, plan_code, name, description, display_order,
	price_monthly, price_yearly, currency,
	supports_trial, trial_days, is_custom, organization_id,
	feature_tags, metadata, is_active, created_at, updated_at`

func scanPlan(row rowScanner) (*plan.Plan, error) {
	var p plan.Plan
	var tags []string
	var metadataJSON []byte

	err := row.Scan(
		&p.ID, &p.PlanCode, &p.Name, &p.Description, &p.DisplayOrder,
		&p.PriceMonthly, &p.PriceYearly, &p.Currency,
		&p.SupportsTrial, &p.TrialDays, &p.IsCustom, &p.OrganizationID,
		pq.Array(&tags), &metadataJSON, &p.IsActive, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.FeatureTags = tags
	if len(metadataJSON) > 0 {
		json.Unmarshal(metadataJSON, &p.Metadata)
	}
	return &p, nil
}

// FindByID retrieves a plan by ID.
func (r *PlanRepository) FindByID(ctx context.Context, id int64) (*plan.Plan, error) {
	query := `SELECT ` + planColumns + ` FROM plans WHERE id = $1`

	p, err := scanPlan(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, plan.ErrPlanNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find plan: %w", err)
	}
	return p, nil
}

// FindByPlanCode retrieves a plan by its unique code.
func (r *PlanRepository) FindByPlanCode(ctx context.Context, planCode string) (*plan.Plan, error) {
	query := `SELECT ` + planColumns + ` FROM plans WHERE plan_code = $1`

	p, err := scanPlan(r.db.QueryRow(ctx, query, planCode))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, plan.ErrPlanNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find plan by code: %w", err)
	}
	return p, nil
}

// ListActive returns all active plans in display order. Custom plans are
// excluded unless the filter names their organization.
func (r *PlanRepository) ListActive(ctx context.Context, filters *plan.ListFilters) ([]plan.Plan, error) {
	query := `
		SELECT ` + planColumns + `
		FROM plans
		WHERE is_active = TRUE AND (is_custom = FALSE OR organization_id = $1)
		ORDER BY display_order ASC, plan_code ASC
	`
	var orgID int64
	if filters != nil {
		orgID = filters.OrganizationID
	}

	rows, err := r.db.Query(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	defer rows.Close()

	var plans []plan.Plan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan plan: %w", err)
		}
		plans = append(plans, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read plans: %w", err)
	}
	return plans, nil
}

// FindCustomByOrganization retrieves the organization's custom plan, if any.
func (r *PlanRepository) FindCustomByOrganization(ctx context.Context, orgID int64) (*plan.Plan, error) {
	query := `SELECT ` + planColumns + ` FROM plans WHERE is_custom = TRUE AND organization_id = $1`

	p, err := scanPlan(r.db.QueryRow(ctx, query, orgID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, plan.ErrPlanNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find custom plan: %w", err)
	}
	return p, nil
}
