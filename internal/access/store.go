package access

import (
	"context"
	"time"
)

// UserStore is the durable keyed storage for user access records. The
// evaluator and the subscription sync both mutate records through it, so the
// contract below is what makes their race safe.
type UserStore interface {
	// Get returns the record for a canonical identity.
	// Returns ErrUserNotFound if no record exists.
	Get(ctx context.Context, identity string) (*UserRecord, error)

	// CreateIfAbsent atomically inserts the record unless one already exists
	// for the same identity. It returns the record that is durable after the
	// call: the inserted one, or the pre-existing one on conflict. Exactly
	// one record ever exists per identity, regardless of concurrent callers.
	CreateIfAbsent(ctx context.Context, record *UserRecord) (*UserRecord, error)

	// SetProviderCustomerID stores the provider's customer reference if the
	// record has none yet. A customer ID is never overwritten or cleared.
	SetProviderCustomerID(ctx context.Context, identity, customerID string) error

	// ApplySubscriptionStatus overwrites the record's subscription status and
	// (if unset) provider customer ID, touching no other field. The write is
	// conditional on eventAt being no older than the record's
	// SubscriptionSyncedAt, making redelivered and out-of-order provider
	// events safe to apply. Returns false when the event was stale or the
	// record does not exist.
	ApplySubscriptionStatus(ctx context.Context, identity string, status SubscriptionStatus, customerID string, eventAt time.Time) (bool, error)
}

// RedemptionSource exposes the single promo-ledger read the evaluator needs:
// the live redemption with the latest expiry, if any.
type RedemptionSource interface {
	LatestActiveRedemption(ctx context.Context, identity string, now time.Time) (*time.Time, error)
}
