package promo

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ThorWarnken/heimdall-server/internal/access"
)

const (
	// DefaultFreeDays is granted per redemption when a code is created
	// without an explicit grant length.
	DefaultFreeDays = 30
	// DefaultMaxUses is the use budget of a code created without one.
	DefaultMaxUses = 1

	generatedCodeBytes = 4 // 8 hex characters after encoding
)

// Ledger validates and redeems promo codes against the finite-use registry.
type Ledger struct {
	store Store
	log   *slog.Logger
}

// NewLedger creates a Ledger over the given store. Panics if store is nil.
func NewLedger(store Store, log *slog.Logger) *Ledger {
	if store == nil {
		panic("promo: Store is required")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Ledger{store: store, log: log}
}

// Redeem grants identity the code's free days. Exactly-once per
// (identity, code): a second attempt fails with ErrAlreadyRedeemed and does
// not change the use counter.
func (l *Ledger) Redeem(ctx context.Context, identity, code string, now time.Time) (*RedemptionResult, error) {
	identity = access.NormalizeIdentity(identity)
	if identity == "" {
		return nil, ErrMissingIdentity
	}
	code = NormalizeCode(code)
	if code == "" {
		return nil, ErrMissingCode
	}

	redemption, err := l.store.Redeem(ctx, identity, code, now)
	if err != nil {
		return nil, err
	}

	freeDays := access.DaysLeft(redemption.RedeemedAt, redemption.ExpiresAt)
	l.log.InfoContext(ctx, "promo code redeemed",
		slog.String("identity", identity),
		slog.String("code", code),
		slog.Time("expires_at", redemption.ExpiresAt))

	return &RedemptionResult{
		Code:      code,
		FreeDays:  freeDays,
		ExpiresAt: redemption.ExpiresAt,
	}, nil
}

// CreateParams configures Create. Zero values fall back to the defaults;
// Code empty means "generate one".
type CreateParams struct {
	Code     string
	FreeDays int
	MaxUses  int
}

// Create registers a new promo code. When no code is given, a random
// 8-hex-character uppercase code is generated. Fails with
// ErrCodeAlreadyExists on collision with an existing code.
func (l *Ledger) Create(ctx context.Context, params CreateParams, now time.Time) (*Code, error) {
	code := NormalizeCode(params.Code)
	if code == "" {
		generated, err := generateCode()
		if err != nil {
			return nil, err
		}
		code = generated
	}

	freeDays := params.FreeDays
	if freeDays == 0 {
		freeDays = DefaultFreeDays
	}
	if freeDays < 0 {
		return nil, ErrInvalidFreeDays
	}

	maxUses := params.MaxUses
	if maxUses == 0 {
		maxUses = DefaultMaxUses
	}
	if maxUses < 0 {
		return nil, ErrInvalidMaxUses
	}

	entry := &Code{
		Code:      code,
		FreeDays:  freeDays,
		MaxUses:   maxUses,
		CreatedAt: now,
	}
	if err := l.store.CreateCode(ctx, entry); err != nil {
		return nil, err
	}

	l.log.InfoContext(ctx, "promo code created",
		slog.String("code", code),
		slog.Int("free_days", freeDays),
		slog.Int("max_uses", maxUses))

	return entry, nil
}

func generateCode() (string, error) {
	buf := make([]byte, generatedCodeBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate promo code: %w", err)
	}
	return strings.ToUpper(hex.EncodeToString(buf)), nil
}
