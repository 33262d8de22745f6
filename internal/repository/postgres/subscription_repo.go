// internal/repository/postgres/subscription_repo.go
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"tenantcore-service/internal/domain/subscription"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// uniqueLiveConstraint is the partial unique index enforcing at most one
// live (trial or active) subscription per organization. Inserts and status
// updates that would violate it are surfaced as the typed domain error.
const uniqueLiveConstraint = "uq_subscriptions_one_live_per_org"

const subscriptionColumns = `
	id, subscription_reference, organization_id, plan_id,
	status, billing_cycle, start_date, end_date, trial_ends_at,
	requested_by, activated_by, activated_at,
	cancelled_by, cancelled_at, cancellation_reason,
	rejected_by, rejection_reason, renewed_from_id,
	metadata, created_at, updated_at`

type SubscriptionRepository struct {
	db *DB
}

func NewSubscriptionRepository(db *DB) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubscription(row rowScanner) (*subscription.Subscription, error) {
	var sub subscription.Subscription
	var metadataJSON []byte

	err := row.Scan(
		&sub.ID, &sub.SubscriptionReference, &sub.OrganizationID, &sub.PlanID,
		&sub.Status, &sub.BillingCycle, &sub.StartDate, &sub.EndDate, &sub.TrialEndsAt,
		&sub.RequestedBy, &sub.ActivatedBy, &sub.ActivatedAt,
		&sub.CancelledBy, &sub.CancelledAt, &sub.CancellationReason,
		&sub.RejectedBy, &sub.RejectionReason, &sub.RenewedFromID,
		&metadataJSON, &sub.CreatedAt, &sub.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(metadataJSON) > 0 {
		json.Unmarshal(metadataJSON, &sub.Metadata)
	}
	return &sub, nil
}

func mapLiveConflict(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == uniqueLiveConstraint {
		return subscription.ErrAlreadyHasActiveSubscription
	}
	return err
}

// CreateWithTx inserts a new subscription record within a transaction.
// A concurrent live subscription for the same organization trips the
// partial unique index and comes back as ErrAlreadyHasActiveSubscription.
func (r *SubscriptionRepository) CreateWithTx(ctx context.Context, tx pgx.Tx, sub *subscription.Subscription) error {
	query := `
		INSERT INTO subscriptions (
			subscription_reference, organization_id, plan_id,
			status, billing_cycle, start_date, end_date, trial_ends_at,
			requested_by, activated_by, activated_at, renewed_from_id, metadata
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id, created_at, updated_at
	`

	var metadataJSON []byte
	var err error
	if sub.Metadata != nil {
		metadataJSON, err = json.Marshal(sub.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
	}

	err = tx.QueryRow(
		ctx, query,
		sub.SubscriptionReference, sub.OrganizationID, sub.PlanID,
		sub.Status, sub.BillingCycle, sub.StartDate, sub.EndDate, sub.TrialEndsAt,
		sub.RequestedBy, sub.ActivatedBy, sub.ActivatedAt, sub.RenewedFromID, metadataJSON,
	).Scan(&sub.ID, &sub.CreatedAt, &sub.UpdatedAt)

	if err != nil {
		if mapped := mapLiveConflict(err); mapped != err {
			return mapped
		}
		return fmt.Errorf("failed to create subscription: %w", err)
	}
	return nil
}

// UpdateWithTx persists the mutable lifecycle fields of an existing record.
func (r *SubscriptionRepository) UpdateWithTx(ctx context.Context, tx pgx.Tx, sub *subscription.Subscription) error {
	query := `
		UPDATE subscriptions SET
			plan_id = $1, status = $2, billing_cycle = $3,
			start_date = $4, end_date = $5, trial_ends_at = $6,
			activated_by = $7, activated_at = $8,
			cancelled_by = $9, cancelled_at = $10, cancellation_reason = $11,
			rejected_by = $12, rejection_reason = $13,
			metadata = $14, updated_at = NOW()
		WHERE id = $15
		RETURNING updated_at
	`

	var metadataJSON []byte
	var err error
	if sub.Metadata != nil {
		metadataJSON, err = json.Marshal(sub.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
	}

	err = tx.QueryRow(
		ctx, query,
		sub.PlanID, sub.Status, sub.BillingCycle,
		sub.StartDate, sub.EndDate, sub.TrialEndsAt,
		sub.ActivatedBy, sub.ActivatedAt,
		sub.CancelledBy, sub.CancelledAt, sub.CancellationReason,
		sub.RejectedBy, sub.RejectionReason,
		metadataJSON, sub.ID,
	).Scan(&sub.UpdatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return subscription.ErrSubscriptionNotFound
	}
	if err != nil {
		if mapped := mapLiveConflict(err); mapped != err {
			return mapped
		}
		return fmt.Errorf("failed to update subscription: %w", err)
	}
	return nil
}

// FindByID retrieves a subscription by ID.
func (r *SubscriptionRepository) FindByID(ctx context.Context, id int64) (*subscription.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE id = $1`

	sub, err := scanSubscription(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, subscription.ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find subscription: %w", err)
	}
	return sub, nil
}

// FindByIDForUpdate retrieves a subscription and row-locks it for the
// duration of the transaction, serializing lifecycle writes on one record.
func (r *SubscriptionRepository) FindByIDForUpdate(ctx context.Context, tx pgx.Tx, id int64) (*subscription.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE id = $1 FOR UPDATE`

	sub, err := scanSubscription(tx.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, subscription.ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock subscription: %w", err)
	}
	return sub, nil
}

// FindActiveByOrganization retrieves the organization's live subscription.
func (r *SubscriptionRepository) FindActiveByOrganization(ctx context.Context, orgID int64) (*subscription.Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE organization_id = $1 AND status IN ('trial', 'active')
		LIMIT 1
	`

	sub, err := scanSubscription(r.db.QueryRow(ctx, query, orgID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, subscription.ErrNoActiveSubscription
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find active subscription: %w", err)
	}
	return sub, nil
}

// FindActiveByOrganizationForUpdate is the locking variant used inside
// lifecycle transactions.
func (r *SubscriptionRepository) FindActiveByOrganizationForUpdate(ctx context.Context, tx pgx.Tx, orgID int64) (*subscription.Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE organization_id = $1 AND status IN ('trial', 'active')
		LIMIT 1
		FOR UPDATE
	`

	sub, err := scanSubscription(tx.QueryRow(ctx, query, orgID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, subscription.ErrNoActiveSubscription
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock active subscription: %w", err)
	}
	return sub, nil
}

// ExistsActiveForOrganization reports whether a live subscription exists.
func (r *SubscriptionRepository) ExistsActiveForOrganization(ctx context.Context, orgID int64) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM subscriptions
			WHERE organization_id = $1 AND status IN ('trial', 'active')
		)
	`

	var exists bool
	if err := r.db.QueryRow(ctx, query, orgID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check active subscription: %w", err)
	}
	return exists, nil
}

// FindByOrganization lists an organization's subscription history,
// newest first. Terminal records are retained, never deleted.
func (r *SubscriptionRepository) FindByOrganization(ctx context.Context, orgID int64, filters *subscription.ListFilters) ([]subscription.Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE organization_id = $1
	`
	args := []any{orgID}

	if filters != nil && filters.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", len(args)+1)
		args = append(args, filters.Status)
	}
	query += " ORDER BY created_at DESC"
	if filters != nil && filters.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
		args = append(args, filters.Limit, filters.Offset)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	defer rows.Close()

	return collectSubscriptions(rows)
}

// FindByStatus lists subscriptions in a given status.
func (r *SubscriptionRepository) FindByStatus(ctx context.Context, status subscription.Status, limit int) ([]subscription.Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, status, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions by status: %w", err)
	}
	defer rows.Close()

	return collectSubscriptions(rows)
}

// FindExpiringBefore lists active subscriptions whose period end has
// passed the cutoff. Consumed by the expiration sweeper.
func (r *SubscriptionRepository) FindExpiringBefore(ctx context.Context, cutoff time.Time, limit int) ([]subscription.Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE status = 'active' AND end_date IS NOT NULL AND end_date <= $1
		ORDER BY end_date ASC
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list expiring subscriptions: %w", err)
	}
	defer rows.Close()

	return collectSubscriptions(rows)
}

// FindTrialEndingBefore lists trials whose trial end has passed the cutoff.
func (r *SubscriptionRepository) FindTrialEndingBefore(ctx context.Context, cutoff time.Time, limit int) ([]subscription.Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE status = 'trial' AND trial_ends_at IS NOT NULL AND trial_ends_at <= $1
		ORDER BY trial_ends_at ASC
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list ending trials: %w", err)
	}
	defer rows.Close()

	return collectSubscriptions(rows)
}

// Create inserts a new subscription in its own transaction.
func (r *SubscriptionRepository) Create(ctx context.Context, sub *subscription.Subscription) error {
	err := r.db.RunInTx(ctx, func(tx pgx.Tx) error {
		return r.CreateWithTx(ctx, tx, sub)
	})
	return mapLiveConflict(err)
}

// Mutate loads the record under a row lock, applies fn and persists the
// result when fn reports a change. Guard check and write share the
// transaction, so concurrent lifecycle calls on the same record serialize.
func (r *SubscriptionRepository) Mutate(ctx context.Context, id int64, fn func(sub *subscription.Subscription) (bool, error)) (*subscription.Subscription, error) {
	tx, err := r.db.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	sub, err := r.FindByIDForUpdate(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	changed, err := fn(sub)
	if err != nil {
		return nil, err
	}
	if changed {
		if err := r.UpdateWithTx(ctx, tx, sub); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		if mapped := mapLiveConflict(err); mapped != err {
			return nil, mapped
		}
		return nil, fmt.Errorf("failed to commit subscription update: %w", err)
	}
	return sub, nil
}

// MutateActiveByOrganization is Mutate addressed at the organization's
// live subscription.
func (r *SubscriptionRepository) MutateActiveByOrganization(ctx context.Context, orgID int64, fn func(sub *subscription.Subscription) (bool, error)) (*subscription.Subscription, error) {
	tx, err := r.db.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	sub, err := r.FindActiveByOrganizationForUpdate(ctx, tx, orgID)
	if err != nil {
		return nil, err
	}

	changed, err := fn(sub)
	if err != nil {
		return nil, err
	}
	if changed {
		if err := r.UpdateWithTx(ctx, tx, sub); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		if mapped := mapLiveConflict(err); mapped != err {
			return nil, mapped
		}
		return nil, fmt.Errorf("failed to commit subscription update: %w", err)
	}
	return sub, nil
}

func collectSubscriptions(rows pgx.Rows) ([]subscription.Subscription, error) {
	var subs []subscription.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan subscription: %w", err)
		}
		subs = append(subs, *sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read subscriptions: %w", err)
	}
	return subs, nil
}
