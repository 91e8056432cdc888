package access_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ThorWarnken/heimdall-server/internal/access"
	"github.com/ThorWarnken/heimdall-server/internal/promo"
	"github.com/ThorWarnken/heimdall-server/internal/storage/memory"
)

var baseTime = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func TestEvaluatorEvaluate(t *testing.T) {
	t.Parallel()

	t.Run("first check starts a trial", func(t *testing.T) {
		t.Parallel()

		store := memory.New()
		evaluator := access.NewEvaluator(store, store)

		decision, err := evaluator.Evaluate(context.Background(), "New.User@Example.COM", baseTime)
		require.NoError(t, err)

		assert.True(t, decision.Access)
		assert.Equal(t, access.ReasonTrialing, decision.Reason)
		assert.Equal(t, 7, decision.DaysLeft)
		assert.True(t, decision.TrialStarted)

		user, err := store.Get(context.Background(), "new.user@example.com")
		require.NoError(t, err)
		require.NotNil(t, user.TrialStart)
		require.NotNil(t, user.TrialEnd)
		assert.True(t, user.TrialStart.Equal(baseTime))
		assert.True(t, user.TrialEnd.Equal(baseTime.Add(7*24*time.Hour)))
		assert.Equal(t, access.StatusTrialing, user.SubscriptionStatus)
	})

	t.Run("second check does not restart the trial", func(t *testing.T) {
		t.Parallel()

		store := memory.New()
		evaluator := access.NewEvaluator(store, store)
		ctx := context.Background()

		_, err := evaluator.Evaluate(ctx, "user@example.com", baseTime)
		require.NoError(t, err)

		decision, err := evaluator.Evaluate(ctx, "user@example.com", baseTime.Add(3*24*time.Hour))
		require.NoError(t, err)

		assert.True(t, decision.Access)
		assert.Equal(t, access.ReasonTrialing, decision.Reason)
		assert.Equal(t, 4, decision.DaysLeft)
		assert.False(t, decision.TrialStarted)
	})

	t.Run("trial expires after the window", func(t *testing.T) {
		t.Parallel()

		store := memory.New()
		evaluator := access.NewEvaluator(store, store)
		ctx := context.Background()

		_, err := evaluator.Evaluate(ctx, "user@example.com", baseTime)
		require.NoError(t, err)

		decision, err := evaluator.Evaluate(ctx, "user@example.com", baseTime.Add(7*24*time.Hour))
		require.NoError(t, err)

		assert.False(t, decision.Access)
		assert.Equal(t, access.ReasonExpired, decision.Reason)
		assert.Zero(t, decision.DaysLeft)
	})

	t.Run("active subscription wins over expired trial", func(t *testing.T) {
		t.Parallel()

		store := memory.New()
		evaluator := access.NewEvaluator(store, store)
		ctx := context.Background()

		_, err := evaluator.Evaluate(ctx, "user@example.com", baseTime)
		require.NoError(t, err)

		applied, err := store.ApplySubscriptionStatus(ctx, "user@example.com", access.StatusActive, "ctm_123", baseTime.Add(time.Hour))
		require.NoError(t, err)
		require.True(t, applied)

		decision, err := evaluator.Evaluate(ctx, "user@example.com", baseTime.Add(30*24*time.Hour))
		require.NoError(t, err)

		assert.True(t, decision.Access)
		assert.Equal(t, access.ReasonActive, decision.Reason)
	})

	t.Run("canceled subscription falls back to the trial clock", func(t *testing.T) {
		t.Parallel()

		store := memory.New()
		evaluator := access.NewEvaluator(store, store)
		ctx := context.Background()

		_, err := evaluator.Evaluate(ctx, "user@example.com", baseTime)
		require.NoError(t, err)

		applied, err := store.ApplySubscriptionStatus(ctx, "user@example.com", access.StatusCanceled, "ctm_123", baseTime.Add(time.Hour))
		require.NoError(t, err)
		require.True(t, applied)

		decision, err := evaluator.Evaluate(ctx, "user@example.com", baseTime.Add(2*24*time.Hour))
		require.NoError(t, err)

		assert.True(t, decision.Access)
		assert.Equal(t, access.ReasonTrialing, decision.Reason)
		assert.Equal(t, 5, decision.DaysLeft)
	})

	t.Run("live promo redemption outlasts the trial", func(t *testing.T) {
		t.Parallel()

		store := memory.New()
		evaluator := access.NewEvaluator(store, store)
		ledger := promo.NewLedger(store, nil)
		ctx := context.Background()

		_, err := evaluator.Evaluate(ctx, "user@example.com", baseTime)
		require.NoError(t, err)

		_, err = ledger.Create(ctx, promo.CreateParams{Code: "WELCOME30", FreeDays: 30, MaxUses: 100}, baseTime)
		require.NoError(t, err)
		_, err = ledger.Redeem(ctx, "user@example.com", "WELCOME30", baseTime.Add(24*time.Hour))
		require.NoError(t, err)

		decision, err := evaluator.Evaluate(ctx, "user@example.com", baseTime.Add(10*24*time.Hour))
		require.NoError(t, err)

		assert.True(t, decision.Access)
		assert.Equal(t, access.ReasonPromo, decision.Reason)
		assert.Equal(t, 21, decision.DaysLeft)
	})

	t.Run("normalizes identity before lookup", func(t *testing.T) {
		t.Parallel()

		store := memory.New()
		evaluator := access.NewEvaluator(store, store)
		ctx := context.Background()

		first, err := evaluator.Evaluate(ctx, "User@Example.com", baseTime)
		require.NoError(t, err)
		assert.True(t, first.TrialStarted)

		second, err := evaluator.Evaluate(ctx, "  user@example.COM ", baseTime.Add(time.Minute))
		require.NoError(t, err)
		assert.False(t, second.TrialStarted)
	})

	t.Run("rejects empty identity", func(t *testing.T) {
		t.Parallel()

		store := memory.New()
		evaluator := access.NewEvaluator(store, store)

		_, err := evaluator.Evaluate(context.Background(), "   ", baseTime)
		assert.ErrorIs(t, err, access.ErrMissingIdentity)
	})

	t.Run("custom trial length", func(t *testing.T) {
		t.Parallel()

		store := memory.New()
		evaluator := access.NewEvaluator(store, store, access.WithTrialDays(14))

		decision, err := evaluator.Evaluate(context.Background(), "user@example.com", baseTime)
		require.NoError(t, err)
		assert.Equal(t, 14, decision.DaysLeft)
	})
}

// raceStore simulates a record appearing between the not-found read and the
// insert, as when a concurrent redemption or checkout creates the user first.
type raceStore struct {
	access.UserStore
	existing *access.UserRecord
}

func (s *raceStore) Get(context.Context, string) (*access.UserRecord, error) {
	return nil, access.ErrUserNotFound
}

func (s *raceStore) CreateIfAbsent(context.Context, *access.UserRecord) (*access.UserRecord, error) {
	return s.existing, nil
}

func TestEvaluateLostCreateRace(t *testing.T) {
	t.Parallel()

	t.Run("trial-less record from a concurrent redemption", func(t *testing.T) {
		t.Parallel()

		store := memory.New()
		users := &raceStore{existing: &access.UserRecord{
			Identity:           "user@example.com",
			SubscriptionStatus: access.StatusNone,
			CreatedAt:          baseTime,
		}}
		evaluator := access.NewEvaluator(users, store)

		decision, err := evaluator.Evaluate(context.Background(), "user@example.com", baseTime)
		require.NoError(t, err)

		assert.False(t, decision.Access)
		assert.Equal(t, access.ReasonExpired, decision.Reason)
		assert.False(t, decision.TrialStarted)
	})

	t.Run("trialing record from a concurrent first check", func(t *testing.T) {
		t.Parallel()

		otherStart := baseTime.Add(-time.Hour)
		otherEnd := otherStart.Add(7 * 24 * time.Hour)
		users := &raceStore{existing: &access.UserRecord{
			Identity:           "user@example.com",
			SubscriptionStatus: access.StatusTrialing,
			TrialStart:         &otherStart,
			TrialEnd:           &otherEnd,
			CreatedAt:          otherStart,
		}}
		evaluator := access.NewEvaluator(users, memory.New())

		decision, err := evaluator.Evaluate(context.Background(), "user@example.com", baseTime)
		require.NoError(t, err)

		assert.True(t, decision.Access)
		assert.Equal(t, access.ReasonTrialing, decision.Reason)
		assert.False(t, decision.TrialStarted, "the winner's trial is not this call's")
	})
}

func TestDaysLeft(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		deadline time.Time
		want     int
	}{
		{"exactly seven days", baseTime.Add(7 * 24 * time.Hour), 7},
		{"partial day rounds up", baseTime.Add(6*24*time.Hour + time.Hour), 7},
		{"one second left counts as a day", baseTime.Add(time.Second), 1},
		{"deadline reached", baseTime, 0},
		{"deadline passed", baseTime.Add(-time.Hour), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, access.DaysLeft(baseTime, tt.deadline))
		})
	}
}

func TestParseStatus(t *testing.T) {
	t.Parallel()

	got, ok := access.ParseStatus("Active")
	require.True(t, ok)
	assert.Equal(t, access.StatusActive, got)

	_, ok = access.ParseStatus("paused")
	assert.False(t, ok)
}

func TestNewEvaluatorPanics(t *testing.T) {
	t.Parallel()

	store := memory.New()
	assert.Panics(t, func() { access.NewEvaluator(nil, store) })
	assert.Panics(t, func() { access.NewEvaluator(store, nil) })
	assert.Panics(t, func() { access.WithTrialDays(0) })
}
