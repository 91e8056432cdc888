package promo

import (
	"strings"
	"time"
)

// Code is a finite-use promotional code granting temporary access.
// TimesUsed never exceeds MaxUses; the store enforces this by making the
// uses-remaining check and the increment a single atomic step.
type Code struct {
	Code      string
	FreeDays  int
	MaxUses   int
	TimesUsed int
	CreatedAt time.Time
}

// Redemption records one use of a code by one identity. At most one
// redemption exists per (identity, code) pair, and it is immutable.
type Redemption struct {
	Identity   string
	Code       string
	RedeemedAt time.Time
	ExpiresAt  time.Time
}

// RedemptionResult is returned to the caller on a successful redemption.
type RedemptionResult struct {
	Code      string
	FreeDays  int
	ExpiresAt time.Time
}

// NormalizeCode canonicalizes a promo code before any lookup or storage.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
