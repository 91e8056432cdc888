package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/ThorWarnken/heimdall-server/internal/access"
	"github.com/ThorWarnken/heimdall-server/pkg/pg"
)

// Get implements access.UserStore.
func (s *Store) Get(ctx context.Context, identity string) (*access.UserRecord, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT identity, COALESCE(provider_customer_id, ''), subscription_status,
		       trial_start, trial_end, subscription_synced_at, created_at
		FROM users
		WHERE identity = $1`, identity)

	var user access.UserRecord
	var status string
	err := row.Scan(&user.Identity, &user.ProviderCustomerID, &status,
		&user.TrialStart, &user.TrialEnd, &user.SubscriptionSyncedAt, &user.CreatedAt)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, access.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to load user record: %w", err)
	}
	user.SubscriptionStatus = access.SubscriptionStatus(status)
	return &user, nil
}

// CreateIfAbsent implements access.UserStore. The ON CONFLICT DO NOTHING
// insert is the atomic insert-if-absent primitive; the follow-up read
// returns whichever record is durable.
func (s *Store) CreateIfAbsent(ctx context.Context, record *access.UserRecord) (*access.UserRecord, error) {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (identity, provider_customer_id, subscription_status,
		                   trial_start, trial_end, created_at)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6)
		ON CONFLICT (identity) DO NOTHING`,
		record.Identity, record.ProviderCustomerID, string(record.SubscriptionStatus),
		record.TrialStart, record.TrialEnd, record.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert user record: %w", err)
	}
	return s.Get(ctx, record.Identity)
}

// SetProviderCustomerID implements access.UserStore.
func (s *Store) SetProviderCustomerID(ctx context.Context, identity, customerID string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE users
		SET provider_customer_id = $2
		WHERE identity = $1 AND provider_customer_id IS NULL`,
		identity, customerID)
	if err != nil {
		return fmt.Errorf("failed to set provider customer id: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	// Either the record already has a customer ID (fine) or it is missing.
	var exists bool
	if err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE identity = $1)`, identity).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check user record: %w", err)
	}
	if !exists {
		return access.ErrUserNotFound
	}
	return nil
}

// ApplySubscriptionStatus implements access.UserStore. The WHERE clause makes
// the write conditional on event ordering, so a stale redelivery updates
// zero rows instead of regressing the status.
func (s *Store) ApplySubscriptionStatus(ctx context.Context, identity string, status access.SubscriptionStatus, customerID string, eventAt time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE users
		SET subscription_status = $2,
		    subscription_synced_at = $3,
		    provider_customer_id = COALESCE(provider_customer_id, NULLIF($4, ''))
		WHERE identity = $1
		  AND (subscription_synced_at IS NULL OR subscription_synced_at <= $3)`,
		identity, string(status), eventAt, customerID)
	if err != nil {
		return false, fmt.Errorf("failed to apply subscription status: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
