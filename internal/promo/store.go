package promo

import (
	"context"
	"time"
)

// Store is the durable registry of promo codes and their redemptions. All
// inputs are canonical (NormalizeCode / access.NormalizeIdentity applied by
// the ledger).
type Store interface {
	// GetCode returns the code entry, or ErrCodeNotFound.
	GetCode(ctx context.Context, code string) (*Code, error)

	// CreateCode inserts a new code. Returns ErrCodeAlreadyExists when the
	// code collides with an existing one.
	CreateCode(ctx context.Context, code *Code) error

	// Redeem performs the whole redemption as one atomic unit:
	//
	//   1. fail with ErrCodeNotFound if the code does not exist;
	//   2. fail with ErrCodeExhausted if no uses remain;
	//   3. fail with ErrAlreadyRedeemed if (identity, code) was already used;
	//   4. ensure a user record exists for identity, without granting a trial;
	//   5. insert the redemption with expiry now + FreeDays;
	//   6. increment the code's use counter.
	//
	// Either all effects happen or none do. Two concurrent redeemers of a
	// code with one use left cannot both succeed.
	Redeem(ctx context.Context, identity, code string, now time.Time) (*Redemption, error)

	// LatestActiveRedemption returns the expiry of the identity's live
	// redemption with the latest ExpiresAt, or nil when none is live.
	LatestActiveRedemption(ctx context.Context, identity string, now time.Time) (*time.Time, error)
}
