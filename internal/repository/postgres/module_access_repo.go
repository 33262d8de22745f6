// internal/repository/postgres/module_access_repo.go
package postgres

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/fnv"

	"tenantcore-service/internal/domain/access"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type ModuleAccessRepository struct {
	db *DB
}

func NewModuleAccessRepository(db *DB) *ModuleAccessRepository {
	return &ModuleAccessRepository{db: db}
}

// grantLockKey hashes the (module, organization) pair into the single
// bigint advisory-lock keyspace. Hashing keeps the full 64 bits of both
// IDs in play; the two-int32 lock form would truncate them.
func grantLockKey(moduleID, orgID int64) int64 {
	var buf [16]byte
	binary.BigEndian.PutUint64(buf[:8], uint64(moduleID))
	binary.BigEndian.PutUint64(buf[8:], uint64(orgID))

	h := fnv.New64a()
	h.Write(buf[:])
	return int64(h.Sum64())
}

const grantColumns = `
	id, user_id, module_id, organization_id, granted_by,
	is_active, revoked_by, revoked_at, created_at, updated_at`

func scanGrant(row rowScanner) (*access.ModuleAccessGrant, error) {
	var g access.ModuleAccessGrant
	err := row.Scan(
		&g.ID, &g.UserID, &g.ModuleID, &g.OrganizationID, &g.GrantedBy,
		&g.IsActive, &g.RevokedBy, &g.RevokedAt, &g.CreatedAt, &g.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// GrantWithCap inserts an active grant, enforcing the plan's seat cap
// atomically. The count and the insert run in one transaction behind an
// advisory lock keyed on (module, organization), so two concurrent grants
// for the last seat cannot both pass the check. maxUsers <= 0 means the
// plan does not cap seats for this module.
func (r *ModuleAccessRepository) GrantWithCap(ctx context.Context, grant *access.ModuleAccessGrant, maxUsers int32) error {
	return r.db.RunInTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`,
			grantLockKey(grant.ModuleID, grant.OrganizationID)); err != nil {
			return fmt.Errorf("failed to take grant lock: %w", err)
		}

		if maxUsers > 0 {
			var count int32
			countQuery := `
				SELECT COUNT(*) FROM module_access_grants
				WHERE module_id = $1 AND organization_id = $2 AND is_active = TRUE
			`
			if err := tx.QueryRow(ctx, countQuery, grant.ModuleID, grant.OrganizationID).Scan(&count); err != nil {
				return fmt.Errorf("failed to count active grants: %w", err)
			}
			if count >= maxUsers {
				return access.ErrMaxUsersLimitReached
			}
		}

		insertQuery := `
			INSERT INTO module_access_grants (user_id, module_id, organization_id, granted_by, is_active)
			VALUES ($1, $2, $3, $4, TRUE)
			RETURNING id, created_at, updated_at
		`
		err := tx.QueryRow(ctx, insertQuery,
			grant.UserID, grant.ModuleID, grant.OrganizationID, grant.GrantedBy,
		).Scan(&grant.ID, &grant.CreatedAt, &grant.UpdatedAt)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return access.ErrGrantAlreadyExists
			}
			return fmt.Errorf("failed to create grant: %w", err)
		}
		grant.IsActive = true
		return nil
	})
}

// FindUserGrant retrieves the user's active grant for a module, if any.
func (r *ModuleAccessRepository) FindUserGrant(ctx context.Context, userID, moduleID, orgID int64) (*access.ModuleAccessGrant, error) {
	query := `
		SELECT ` + grantColumns + `
		FROM module_access_grants
		WHERE user_id = $1 AND module_id = $2 AND organization_id = $3 AND is_active = TRUE
	`

	g, err := scanGrant(r.db.QueryRow(ctx, query, userID, moduleID, orgID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, access.ErrGrantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find grant: %w", err)
	}
	return g, nil
}

// ListActiveByModuleAndOrg lists active grants for one module of one
// organization.
func (r *ModuleAccessRepository) ListActiveByModuleAndOrg(ctx context.Context, moduleID, orgID int64) ([]access.ModuleAccessGrant, error) {
	query := `
		SELECT ` + grantColumns + `
		FROM module_access_grants
		WHERE module_id = $1 AND organization_id = $2 AND is_active = TRUE
		ORDER BY created_at ASC
	`

	rows, err := r.db.Query(ctx, query, moduleID, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list grants: %w", err)
	}
	defer rows.Close()

	var grants []access.ModuleAccessGrant
	for rows.Next() {
		g, err := scanGrant(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan grant: %w", err)
		}
		grants = append(grants, *g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read grants: %w", err)
	}
	return grants, nil
}

// CountActiveUsers counts active grants for one module of one organization.
func (r *ModuleAccessRepository) CountActiveUsers(ctx context.Context, moduleID, orgID int64) (int, error) {
	query := `
		SELECT COUNT(*) FROM module_access_grants
		WHERE module_id = $1 AND organization_id = $2 AND is_active = TRUE
	`

	var count int
	if err := r.db.QueryRow(ctx, query, moduleID, orgID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count grants: %w", err)
	}
	return count, nil
}

// Revoke deactivates the user's grant. The row is kept for audit.
func (r *ModuleAccessRepository) Revoke(ctx context.Context, userID, moduleID, orgID, revokedBy int64) error {
	query := `
		UPDATE module_access_grants
		SET is_active = FALSE, revoked_by = $4, revoked_at = NOW(), updated_at = NOW()
		WHERE user_id = $1 AND module_id = $2 AND organization_id = $3 AND is_active = TRUE
	`

	tag, err := r.db.Exec(ctx, query, userID, moduleID, orgID, revokedBy)
	if err != nil {
		return fmt.Errorf("failed to revoke grant: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return access.ErrGrantNotFound
	}
	return nil
}
