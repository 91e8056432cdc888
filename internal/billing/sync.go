package billing

import (
	"context"
	"log/slog"
	"time"

	"github.com/ThorWarnken/heimdall-server/internal/access"
)

// CustomerResolver resolves a provider customer reference to a billing email.
// Satisfied by Provider; split out so Sync can be tested without a provider.
type CustomerResolver interface {
	CustomerEmail(ctx context.Context, customerID string) (string, error)
}

// Sync reconciles payment-provider lifecycle events into user records.
//
// Application is idempotent and tolerant of redelivery: each event is a
// last-writer-wins overwrite of the subscription fields only, guarded by the
// provider's own event timestamp so stale redeliveries cannot regress the
// status. Trial and promo fields are never touched.
//
// An event may arrive before the identity's first access check. Sync first
// inserts the same trial-default record the evaluator would (atomic
// insert-if-absent), then overwrites the status, so the final record is the
// same whichever side wins the race.
type Sync struct {
	users     access.UserStore
	resolver  CustomerResolver
	trialDays int
	log       *slog.Logger
}

// NewSync creates a Sync. Panics if users or resolver is nil.
func NewSync(users access.UserStore, resolver CustomerResolver, log *slog.Logger) *Sync {
	if users == nil {
		panic("billing: UserStore is required")
	}
	if resolver == nil {
		panic("billing: CustomerResolver is required")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Sync{
		users:     users,
		resolver:  resolver,
		trialDays: access.DefaultTrialDays,
		log:       log,
	}
}

// Apply reconciles one provider event into the matching user record.
//
// Events whose customer cannot be resolved to an identity, whose status is
// not recognized, or whose timestamp is older than the last applied event
// are logged and dropped. None of these fails the delivery, so the provider
// does not redeliver them.
func (s *Sync) Apply(ctx context.Context, event *Event, now time.Time) error {
	if event == nil || event.Type == EventIgnored {
		return nil
	}

	attrs := []any{
		slog.String("event_id", event.ID),
		slog.String("provider_event", event.ProviderEvent),
		slog.String("customer_id", event.CustomerID),
	}

	email, err := s.resolver.CustomerEmail(ctx, event.CustomerID)
	if err != nil || email == "" {
		s.log.WarnContext(ctx, "dropping event: cannot resolve customer to identity",
			append(attrs, slog.Any("error", err))...)
		return nil
	}
	identity := access.NormalizeIdentity(email)

	var status access.SubscriptionStatus
	switch event.Type {
	case EventSubscriptionChanged:
		parsed, ok := access.ParseStatus(event.Status)
		if !ok {
			s.log.WarnContext(ctx, "dropping event: unrecognized subscription status",
				append(attrs, slog.String("status", event.Status))...)
			return nil
		}
		status = parsed
	case EventSubscriptionDeleted:
		status = access.StatusCanceled
	case EventPaymentFailed:
		status = access.StatusPastDue
	default:
		return nil
	}

	trialStart := now
	trialEnd := now.Add(time.Duration(s.trialDays) * 24 * time.Hour)
	if _, err := s.users.CreateIfAbsent(ctx, &access.UserRecord{
		Identity:           identity,
		SubscriptionStatus: access.StatusTrialing,
		TrialStart:         &trialStart,
		TrialEnd:           &trialEnd,
		CreatedAt:          now,
	}); err != nil {
		return err
	}

	eventAt := event.OccurredAt
	if eventAt.IsZero() {
		// Unsigned dev-mode payloads may omit occurred_at; treat them as
		// current so they are never discarded as stale.
		eventAt = now
	}

	applied, err := s.users.ApplySubscriptionStatus(ctx, identity, status, event.CustomerID, eventAt)
	if err != nil {
		return err
	}
	if !applied {
		s.log.InfoContext(ctx, "skipped stale event",
			append(attrs, slog.String("identity", identity))...)
		return nil
	}

	s.log.InfoContext(ctx, "subscription status applied",
		append(attrs, slog.String("identity", identity), slog.String("status", string(status)))...)
	return nil
}
