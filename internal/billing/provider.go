package billing

import (
	"context"
	"time"
)

// Provider is the minimal payment-provider surface this server needs:
// hosted checkout creation, customer resolution, and webhook ingestion.
// Keeping it an interface avoids vendor lock-in and lets tests swap in fakes.
type Provider interface {
	// EnsureCustomer returns the provider customer ID for an email,
	// creating the customer when none exists yet.
	EnsureCustomer(ctx context.Context, email string) (string, error)

	// CreateCheckoutSession creates a hosted subscription checkout session.
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)

	// CustomerEmail resolves a provider customer reference to the billing
	// email on the customer profile. Returns an empty string when the
	// profile has no email.
	CustomerEmail(ctx context.Context, customerID string) (string, error)

	// ParseWebhook verifies and parses a raw webhook delivery into a
	// normalized event. Signature verification is mandatory whenever a
	// webhook secret is configured.
	ParseWebhook(ctx context.Context, payload []byte, signature string) (*Event, error)
}

// CheckoutRequest carries everything needed to open a checkout session.
type CheckoutRequest struct {
	CustomerID string // provider customer reference, from EnsureCustomer
	Email      string
	SuccessURL string
	CancelURL  string
}

// CheckoutSession is a hosted checkout the user is redirected to.
type CheckoutSession struct {
	URL       string
	SessionID string
}

// EventType is the normalized subscription lifecycle event type. Provider
// implementations map their own event names onto these.
type EventType string

const (
	// EventSubscriptionChanged covers both creation and any later update;
	// the event's Status field carries the provider-reported status.
	EventSubscriptionChanged EventType = "subscription_changed"
	EventSubscriptionDeleted EventType = "subscription_deleted"
	EventPaymentFailed       EventType = "payment_failed"
	// EventIgnored marks provider events this server does not act on.
	EventIgnored EventType = "ignored"
)

// Event is a normalized webhook event from the payment provider.
type Event struct {
	ID            string    // provider's event identifier
	Type          EventType // normalized type
	ProviderEvent string    // original provider event name
	CustomerID    string    // provider's opaque customer reference
	Status        string    // provider-reported subscription status, verbatim
	OccurredAt    time.Time // provider-side event timestamp, used for ordering
}
