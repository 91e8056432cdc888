package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ThorWarnken/heimdall-server/internal/promo"
	"github.com/ThorWarnken/heimdall-server/pkg/pg"
)

// GetCode implements promo.Store.
func (s *Store) GetCode(ctx context.Context, code string) (*promo.Code, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT code, free_days, max_uses, times_used, created_at
		FROM promo_codes
		WHERE code = $1`, code)

	var entry promo.Code
	err := row.Scan(&entry.Code, &entry.FreeDays, &entry.MaxUses, &entry.TimesUsed, &entry.CreatedAt)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, promo.ErrCodeNotFound
		}
		return nil, fmt.Errorf("failed to load promo code: %w", err)
	}
	return &entry, nil
}

// CreateCode implements promo.Store.
func (s *Store) CreateCode(ctx context.Context, code *promo.Code) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO promo_codes (code, free_days, max_uses, times_used, created_at)
		VALUES ($1, $2, $3, 0, $4)`,
		code.Code, code.FreeDays, code.MaxUses, code.CreatedAt)
	if err != nil {
		if pg.IsDuplicateKeyError(err) {
			return promo.ErrCodeAlreadyExists
		}
		return fmt.Errorf("failed to insert promo code: %w", err)
	}
	return nil
}

// Redeem implements promo.Store. The FOR UPDATE lock on the code row
// serializes concurrent redeemers of the same code, so the uses check, the
// redemption insert, and the increment commit or roll back as one unit.
func (s *Store) Redeem(ctx context.Context, identity, code string, now time.Time) (*promo.Redemption, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin redemption transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var freeDays, maxUses, timesUsed int
	err = tx.QueryRow(ctx, `
		SELECT free_days, max_uses, times_used
		FROM promo_codes
		WHERE code = $1
		FOR UPDATE`, code).Scan(&freeDays, &maxUses, &timesUsed)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, promo.ErrCodeNotFound
		}
		return nil, fmt.Errorf("failed to lock promo code: %w", err)
	}
	if timesUsed >= maxUses {
		return nil, promo.ErrCodeExhausted
	}

	var redeemed bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM promo_redemptions WHERE identity = $1 AND code = $2)`,
		identity, code).Scan(&redeemed)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing redemption: %w", err)
	}
	if redeemed {
		return nil, promo.ErrAlreadyRedeemed
	}

	// Redemption must not retroactively start a trial, so the fallback
	// record carries status none and no trial window.
	_, err = tx.Exec(ctx, `
		INSERT INTO users (identity, subscription_status, created_at)
		VALUES ($1, 'none', $2)
		ON CONFLICT (identity) DO NOTHING`, identity, now)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure user record: %w", err)
	}

	redemption := &promo.Redemption{
		Identity:   identity,
		Code:       code,
		RedeemedAt: now,
		ExpiresAt:  now.Add(time.Duration(freeDays) * 24 * time.Hour),
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO promo_redemptions (identity, code, redeemed_at, expires_at)
		VALUES ($1, $2, $3, $4)`,
		redemption.Identity, redemption.Code, redemption.RedeemedAt, redemption.ExpiresAt)
	if err != nil {
		// Composite-key uniqueness backstops the existence check under
		// concurrent retries by the same identity.
		if pg.IsDuplicateKeyError(err) {
			return nil, promo.ErrAlreadyRedeemed
		}
		return nil, fmt.Errorf("failed to insert redemption: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE promo_codes SET times_used = times_used + 1 WHERE code = $1`, code)
	if err != nil {
		return nil, fmt.Errorf("failed to increment promo code uses: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, errors.Join(errors.New("failed to commit redemption"), err)
	}
	return redemption, nil
}

// LatestActiveRedemption implements promo.Store and access.RedemptionSource.
func (s *Store) LatestActiveRedemption(ctx context.Context, identity string, now time.Time) (*time.Time, error) {
	var expiresAt time.Time
	err := s.pool.QueryRow(ctx, `
		SELECT expires_at
		FROM promo_redemptions
		WHERE identity = $1 AND expires_at > $2
		ORDER BY expires_at DESC
		LIMIT 1`, identity, now).Scan(&expiresAt)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load active redemption: %w", err)
	}
	return &expiresAt, nil
}
