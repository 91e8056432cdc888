package access

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// DefaultTrialDays is the trial window granted at a user's first access check.
const DefaultTrialDays = 7

// Evaluator derives the authoritative access decision for an identity from
// its user record, trial clock, and promo redemptions. Evaluation is
// read-only except for the lazy creation of first-seen records.
type Evaluator struct {
	users       UserStore
	redemptions RedemptionSource
	trialDays   int
	log         *slog.Logger
}

// EvaluatorOption configures an Evaluator.
type EvaluatorOption func(*Evaluator)

// WithTrialDays overrides the default trial length.
// Panics on non-positive values to fail fast during initialization.
func WithTrialDays(days int) EvaluatorOption {
	if days <= 0 {
		panic("access: trial days must be positive")
	}
	return func(e *Evaluator) { e.trialDays = days }
}

// WithLogger supplies a structured logger. A nil logger is ignored.
func WithLogger(log *slog.Logger) EvaluatorOption {
	return func(e *Evaluator) {
		if log != nil {
			e.log = log
		}
	}
}

// NewEvaluator creates an Evaluator backed by the given stores.
// Panics if either store is nil.
func NewEvaluator(users UserStore, redemptions RedemptionSource, opts ...EvaluatorOption) *Evaluator {
	if users == nil {
		panic("access: UserStore is required")
	}
	if redemptions == nil {
		panic("access: RedemptionSource is required")
	}

	e := &Evaluator{
		users:       users,
		redemptions: redemptions,
		trialDays:   DefaultTrialDays,
		log:         slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate returns the access decision for identity at the given instant.
//
// A previously unseen identity gets a record with a fresh trial window; the
// insert is atomic, so concurrent first-time callers all observe the same
// window. Existing records are evaluated in strict precedence order: active
// subscription, live trial, live promo redemption, expired.
func (e *Evaluator) Evaluate(ctx context.Context, identity string, now time.Time) (Decision, error) {
	identity = NormalizeIdentity(identity)
	if identity == "" {
		return Decision{}, ErrMissingIdentity
	}

	user, err := e.users.Get(ctx, identity)
	if err == nil {
		return e.decide(ctx, user, now)
	}
	if !errors.Is(err, ErrUserNotFound) {
		return Decision{}, err
	}

	trialStart := now
	trialEnd := now.Add(time.Duration(e.trialDays) * 24 * time.Hour)
	user, err = e.users.CreateIfAbsent(ctx, &UserRecord{
		Identity:           identity,
		SubscriptionStatus: StatusTrialing,
		TrialStart:         &trialStart,
		TrialEnd:           &trialEnd,
		CreatedAt:          now,
	})
	if err != nil {
		return Decision{}, err
	}

	decision, err := e.decide(ctx, user, now)
	if err != nil {
		return Decision{}, err
	}
	// The insert may have lost a race against another first check, a
	// redemption, or a checkout; only a record created by this call counts
	// as a fresh trial. Lost-race records may carry no trial window at all.
	if decision.Reason == ReasonTrialing && user.TrialStart != nil && user.TrialStart.Equal(trialStart) {
		decision.TrialStarted = true
		e.log.InfoContext(ctx, "trial started",
			slog.String("identity", identity),
			slog.Time("trial_end", trialEnd))
	}
	return decision, nil
}

func (e *Evaluator) decide(ctx context.Context, user *UserRecord, now time.Time) (Decision, error) {
	if user.SubscriptionStatus == StatusActive {
		return Decision{Access: true, Reason: ReasonActive}, nil
	}

	if user.TrialEnd != nil && now.Before(*user.TrialEnd) {
		return Decision{
			Access:   true,
			Reason:   ReasonTrialing,
			DaysLeft: DaysLeft(now, *user.TrialEnd),
		}, nil
	}

	expiresAt, err := e.redemptions.LatestActiveRedemption(ctx, user.Identity, now)
	if err != nil {
		return Decision{}, err
	}
	if expiresAt != nil {
		return Decision{
			Access:   true,
			Reason:   ReasonPromo,
			DaysLeft: DaysLeft(now, *expiresAt),
		}, nil
	}

	return Decision{Access: false, Reason: ReasonExpired}, nil
}
