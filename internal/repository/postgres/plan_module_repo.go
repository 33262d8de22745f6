// internal/repository/postgres/plan_module_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"

	"tenantcore-service/internal/domain/plan"

	"github.com/jackc/pgx/v5"
)

type PlanModuleRepository struct {
	db *DB
}

func NewPlanModuleRepository(db *DB) *PlanModuleRepository {
	return &PlanModuleRepository{db: db}
}

const planModuleColumns = `
	id, plan_id, module_id, license_type, is_included,
	max_users_per_module, created_at, updated_at`

func scanPlanModule(row rowScanner) (*plan.PlanModule, error) {
	var pm plan.PlanModule
	err := row.Scan(
		&pm.ID, &pm.PlanID, &pm.ModuleID, &pm.LicenseType, &pm.IsIncluded,
		&pm.MaxUsersPerModule, &pm.CreatedAt, &pm.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &pm, nil
}

// FindByPlanID returns the module composition of a plan.
func (r *PlanModuleRepository) FindByPlanID(ctx context.Context, planID int64) ([]plan.PlanModule, error) {
	query := `SELECT ` + planModuleColumns + ` FROM plan_modules WHERE plan_id = $1 ORDER BY module_id ASC`

	rows, err := r.db.Query(ctx, query, planID)
	if err != nil {
		return nil, fmt.Errorf("failed to list plan modules: %w", err)
	}
	defer rows.Close()

	var modules []plan.PlanModule
	for rows.Next() {
		pm, err := scanPlanModule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan plan module: %w", err)
		}
		modules = append(modules, *pm)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read plan modules: %w", err)
	}
	return modules, nil
}

// FindByPlanAndModule returns the association row for one (plan, module)
// pair. At most one row exists per pair.
func (r *PlanModuleRepository) FindByPlanAndModule(ctx context.Context, planID, moduleID int64) (*plan.PlanModule, error) {
	query := `SELECT ` + planModuleColumns + ` FROM plan_modules WHERE plan_id = $1 AND module_id = $2`

	pm, err := scanPlanModule(r.db.QueryRow(ctx, query, planID, moduleID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find plan module: %w", err)
	}
	return pm, nil
}

// ExistsByPlanAndModule reports whether the plan composes the module at all.
func (r *PlanModuleRepository) ExistsByPlanAndModule(ctx context.Context, planID, moduleID int64) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM plan_modules WHERE plan_id = $1 AND module_id = $2)`

	var exists bool
	if err := r.db.QueryRow(ctx, query, planID, moduleID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check plan module: %w", err)
	}
	return exists, nil
}
