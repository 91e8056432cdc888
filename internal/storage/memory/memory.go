// Package memory provides an in-process implementation of the user and promo
// stores. A single mutex spans both tables, which gives every multi-step
// operation (insert-if-absent, the redemption unit, conditional status
// writes) the same atomicity the SQL implementation gets from transactions.
// It backs tests and the zero-dependency development mode.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/ThorWarnken/heimdall-server/internal/access"
	"github.com/ThorWarnken/heimdall-server/internal/promo"
)

// Store holds all records in process memory.
type Store struct {
	mu          sync.Mutex
	users       map[string]*access.UserRecord
	codes       map[string]*promo.Code
	redemptions map[string][]*promo.Redemption // keyed by identity
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		users:       make(map[string]*access.UserRecord),
		codes:       make(map[string]*promo.Code),
		redemptions: make(map[string][]*promo.Redemption),
	}
}

// Get implements access.UserStore.
func (s *Store) Get(ctx context.Context, identity string) (*access.UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[identity]
	if !ok {
		return nil, access.ErrUserNotFound
	}
	return cloneUser(user), nil
}

// CreateIfAbsent implements access.UserStore.
func (s *Store) CreateIfAbsent(ctx context.Context, record *access.UserRecord) (*access.UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.users[record.Identity]; ok {
		return cloneUser(existing), nil
	}
	s.users[record.Identity] = cloneUser(record)
	return cloneUser(record), nil
}

// SetProviderCustomerID implements access.UserStore.
func (s *Store) SetProviderCustomerID(ctx context.Context, identity, customerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[identity]
	if !ok {
		return access.ErrUserNotFound
	}
	if user.ProviderCustomerID == "" {
		user.ProviderCustomerID = customerID
	}
	return nil
}

// ApplySubscriptionStatus implements access.UserStore.
func (s *Store) ApplySubscriptionStatus(ctx context.Context, identity string, status access.SubscriptionStatus, customerID string, eventAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[identity]
	if !ok {
		return false, nil
	}
	if user.SubscriptionSyncedAt != nil && eventAt.Before(*user.SubscriptionSyncedAt) {
		return false, nil
	}

	user.SubscriptionStatus = status
	syncedAt := eventAt
	user.SubscriptionSyncedAt = &syncedAt
	if user.ProviderCustomerID == "" && customerID != "" {
		user.ProviderCustomerID = customerID
	}
	return true, nil
}

// GetCode implements promo.Store.
func (s *Store) GetCode(ctx context.Context, code string) (*promo.Code, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.codes[code]
	if !ok {
		return nil, promo.ErrCodeNotFound
	}
	clone := *entry
	return &clone, nil
}

// CreateCode implements promo.Store.
func (s *Store) CreateCode(ctx context.Context, code *promo.Code) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.codes[code.Code]; ok {
		return promo.ErrCodeAlreadyExists
	}
	clone := *code
	s.codes[code.Code] = &clone
	return nil
}

// Redeem implements promo.Store. The whole unit runs under one lock
// acquisition, so concurrent redeemers serialize and the uses check, the
// increment, and the insert cannot interleave.
func (s *Store) Redeem(ctx context.Context, identity, code string, now time.Time) (*promo.Redemption, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.codes[code]
	if !ok {
		return nil, promo.ErrCodeNotFound
	}
	if entry.TimesUsed >= entry.MaxUses {
		return nil, promo.ErrCodeExhausted
	}
	for _, r := range s.redemptions[identity] {
		if r.Code == code {
			return nil, promo.ErrAlreadyRedeemed
		}
	}

	if _, ok := s.users[identity]; !ok {
		s.users[identity] = &access.UserRecord{
			Identity:           identity,
			SubscriptionStatus: access.StatusNone,
			CreatedAt:          now,
		}
	}

	redemption := &promo.Redemption{
		Identity:   identity,
		Code:       code,
		RedeemedAt: now,
		ExpiresAt:  now.Add(time.Duration(entry.FreeDays) * 24 * time.Hour),
	}
	s.redemptions[identity] = append(s.redemptions[identity], redemption)
	entry.TimesUsed++

	clone := *redemption
	return &clone, nil
}

// LatestActiveRedemption implements promo.Store and access.RedemptionSource.
func (s *Store) LatestActiveRedemption(ctx context.Context, identity string, now time.Time) (*time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var latest *time.Time
	for _, r := range s.redemptions[identity] {
		if r.ExpiresAt.After(now) && (latest == nil || r.ExpiresAt.After(*latest)) {
			expiresAt := r.ExpiresAt
			latest = &expiresAt
		}
	}
	return latest, nil
}

func cloneUser(u *access.UserRecord) *access.UserRecord {
	clone := *u
	if u.TrialStart != nil {
		ts := *u.TrialStart
		clone.TrialStart = &ts
	}
	if u.TrialEnd != nil {
		te := *u.TrialEnd
		clone.TrialEnd = &te
	}
	if u.SubscriptionSyncedAt != nil {
		sa := *u.SubscriptionSyncedAt
		clone.SubscriptionSyncedAt = &sa
	}
	return &clone
}
