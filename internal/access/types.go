package access

import (
	"strings"
	"time"
)

// SubscriptionStatus mirrors the lifecycle state of a user's subscription
// at the payment provider. Values map one-to-one onto the provider's
// subscription statuses; anything else is rejected before storage.
type SubscriptionStatus string

const (
	StatusNone     SubscriptionStatus = "none"
	StatusTrialing SubscriptionStatus = "trialing"
	StatusActive   SubscriptionStatus = "active"
	StatusPastDue  SubscriptionStatus = "past_due"
	StatusCanceled SubscriptionStatus = "canceled"
)

// ParseStatus validates a provider-reported status string against the local
// enum. Unknown values are not stored; callers decide whether to drop or fail.
func ParseStatus(s string) (SubscriptionStatus, bool) {
	switch SubscriptionStatus(strings.ToLower(s)) {
	case StatusNone, StatusTrialing, StatusActive, StatusPastDue, StatusCanceled:
		return SubscriptionStatus(strings.ToLower(s)), true
	default:
		return "", false
	}
}

// UserRecord is the durable access record for a single user identity.
// TrialStart/TrialEnd are set exactly once, at the first-ever access check,
// and never mutated afterward. ProviderCustomerID is never cleared once set.
type UserRecord struct {
	Identity           string
	ProviderCustomerID string
	SubscriptionStatus SubscriptionStatus
	TrialStart         *time.Time
	TrialEnd           *time.Time
	// SubscriptionSyncedAt holds the provider timestamp of the last applied
	// subscription event. Events older than it are discarded.
	SubscriptionSyncedAt *time.Time
	CreatedAt            time.Time
}

// Reason explains an access decision.
type Reason string

const (
	ReasonActive   Reason = "active"
	ReasonTrialing Reason = "trialing"
	ReasonPromo    Reason = "promo"
	ReasonExpired  Reason = "expired"
)

// Decision is the authoritative access verdict for one identity at one instant.
type Decision struct {
	Access   bool
	Reason   Reason
	DaysLeft int // remaining trial or promo days, ceiling-rounded; 0 when not applicable
	// TrialStarted is true only on the evaluation that created the record.
	TrialStarted bool
}

// NormalizeIdentity canonicalizes a user identity (email) before any lookup
// or storage. Every entry point must pass identities through here.
func NormalizeIdentity(identity string) string {
	return strings.ToLower(strings.TrimSpace(identity))
}

// DaysLeft returns the number of whole days between now and deadline,
// rounded up. Any positive remainder counts as a full day, so a user with
// seconds of access left is never reported as having zero days.
func DaysLeft(now, deadline time.Time) int {
	remaining := deadline.Sub(now)
	if remaining <= 0 {
		return 0
	}
	days := int(remaining / (24 * time.Hour))
	if remaining%(24*time.Hour) > 0 {
		days++
	}
	return days
}
