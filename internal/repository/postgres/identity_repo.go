// internal/repository/postgres/identity_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"

	"tenantcore-service/internal/domain/identity"
	xerrors "tenantcore-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type IdentityRepository struct {
	db *DB
}

func NewIdentityRepository(db *DB) *IdentityRepository {
	return &IdentityRepository{db: db}
}

const identityColumns = `
	id, email, password_hash, full_name, role, organization_id,
	is_active, last_login_at, created_at, updated_at`

func scanIdentity(row rowScanner) (*identity.Identity, error) {
	var id identity.Identity
	err := row.Scan(
		&id.ID, &id.Email, &id.PasswordHash, &id.FullName, &id.Role, &id.OrganizationID,
		&id.IsActive, &id.LastLoginAt, &id.CreatedAt, &id.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// FindByEmail retrieves an identity by email.
func (r *IdentityRepository) FindByEmail(ctx context.Context, email string) (*identity.Identity, error) {
	query := `SELECT ` + identityColumns + ` FROM identities WHERE email = $1`

	id, err := scanIdentity(r.db.QueryRow(ctx, query, email))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find identity: %w", err)
	}
	return id, nil
}

// FindByID retrieves an identity by ID.
func (r *IdentityRepository) FindByID(ctx context.Context, identityID int64) (*identity.Identity, error) {
	query := `SELECT ` + identityColumns + ` FROM identities WHERE id = $1`

	id, err := scanIdentity(r.db.QueryRow(ctx, query, identityID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find identity: %w", err)
	}
	return id, nil
}

// Create inserts a new identity.
func (r *IdentityRepository) Create(ctx context.Context, id *identity.Identity) error {
	query := `
		INSERT INTO identities (email, password_hash, full_name, role, organization_id, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRow(ctx, query,
		id.Email, id.PasswordHash, id.FullName, id.Role, id.OrganizationID, id.IsActive,
	).Scan(&id.ID, &id.CreatedAt, &id.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return xerrors.ErrDuplicateEntry
		}
		return fmt.Errorf("failed to create identity: %w", err)
	}
	return nil
}

// UpdateLastLogin stamps the identity's last successful login.
func (r *IdentityRepository) UpdateLastLogin(ctx context.Context, identityID int64) error {
	query := `UPDATE identities SET last_login_at = NOW(), updated_at = NOW() WHERE id = $1`

	if _, err := r.db.Exec(ctx, query, identityID); err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}
	return nil
}

// ExistsSuperAdmin reports whether any super admin identity exists.
func (r *IdentityRepository) ExistsSuperAdmin(ctx context.Context) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM identities WHERE role = 'super_admin' AND is_active = TRUE)`

	var exists bool
	if err := r.db.QueryRow(ctx, query).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check super admin: %w", err)
	}
	return exists, nil
}
