package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	paddle "github.com/PaddleHQ/paddle-go-sdk/v4"
)

// PaddleConfig holds configuration for the Paddle billing provider.
type PaddleConfig struct {
	APIKey        string `env:"PADDLE_API_KEY,required"`
	PriceID       string `env:"PADDLE_PRICE_ID,required"`
	WebhookSecret string `env:"PADDLE_WEBHOOK_SECRET"`
	Environment   string `env:"PADDLE_ENVIRONMENT" envDefault:"production"`
	// AllowUnsigned permits unsigned webhook payloads when no webhook secret
	// is configured. Dev-mode affordance only; with an empty secret and
	// AllowUnsigned false, provider construction fails.
	AllowUnsigned bool `env:"PADDLE_ALLOW_UNSIGNED_WEBHOOKS" envDefault:"false"`
}

// PaddleProvider implements Provider on the Paddle Billing API.
// The 7-day checkout trial is configured on the Paddle price itself
// (trial_period on the catalog price), not per session.
type PaddleProvider struct {
	client   *paddle.SDK
	verifier *paddle.WebhookVerifier
	config   PaddleConfig
}

// NewPaddleProvider creates a Paddle-backed billing provider.
func NewPaddleProvider(config PaddleConfig) (*PaddleProvider, error) {
	if config.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if config.PriceID == "" {
		return nil, ErrMissingPriceID
	}
	if config.WebhookSecret == "" && !config.AllowUnsigned {
		return nil, ErrMissingWebhookSecret
	}

	var client *paddle.SDK
	var err error

	switch strings.ToLower(config.Environment) {
	case "sandbox":
		client, err = paddle.NewSandbox(config.APIKey)
	case "production", "":
		client, err = paddle.New(config.APIKey)
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidEnvironment, config.Environment)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create paddle client: %w", err)
	}

	p := &PaddleProvider{
		client: client,
		config: config,
	}
	if config.WebhookSecret != "" {
		p.verifier = paddle.NewWebhookVerifier(config.WebhookSecret)
	}
	return p, nil
}

// EnsureCustomer creates a Paddle customer for the email, reusing the
// existing one when Paddle reports the email as already taken.
func (p *PaddleProvider) EnsureCustomer(ctx context.Context, email string) (string, error) {
	customer, err := p.client.CustomersClient.CreateCustomer(ctx, &paddle.CreateCustomerRequest{
		Email: email,
	})
	if err == nil {
		return customer.ID, nil
	}

	// Creation conflicts when the email is known; fall back to lookup.
	existing, lookupErr := p.findCustomerByEmail(ctx, email)
	if lookupErr != nil {
		return "", errors.Join(ErrProviderFailure, err, lookupErr)
	}
	return existing, nil
}

func (p *PaddleProvider) findCustomerByEmail(ctx context.Context, email string) (string, error) {
	res, err := p.client.CustomersClient.ListCustomers(ctx, &paddle.ListCustomersRequest{
		Email: []string{email},
	})
	if err != nil {
		return "", fmt.Errorf("failed to list paddle customers: %w", err)
	}

	var customerID string
	err = res.Iter(ctx, func(c *paddle.Customer) (bool, error) {
		customerID = c.ID
		return false, nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to iterate paddle customers: %w", err)
	}
	if customerID == "" {
		return "", ErrCustomerNotFound
	}
	return customerID, nil
}

// CreateCheckoutSession creates a hosted checkout transaction in Paddle.
func (p *PaddleProvider) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	item := paddle.NewCreateTransactionItemsTransactionItemFromCatalog(&paddle.TransactionItemFromCatalog{
		PriceID:  p.config.PriceID,
		Quantity: 1,
	})

	transactionReq := &paddle.CreateTransactionRequest{
		Items: []paddle.CreateTransactionItems{*item},
		CustomData: paddle.CustomData{
			"email": req.Email,
		},
	}
	if req.CustomerID != "" {
		transactionReq.CustomerID = paddle.PtrTo(req.CustomerID)
	}
	if req.SuccessURL != "" {
		transactionReq.Checkout = &paddle.TransactionCheckout{
			URL: paddle.PtrTo(req.SuccessURL),
		}
	}

	transaction, err := p.client.TransactionsClient.CreateTransaction(ctx, transactionReq)
	if err != nil {
		return nil, errors.Join(ErrProviderFailure, err)
	}

	if transaction.Checkout == nil || transaction.Checkout.URL == nil || *transaction.Checkout.URL == "" {
		return nil, ErrNoCheckoutURL
	}

	return &CheckoutSession{
		URL:       *transaction.Checkout.URL,
		SessionID: transaction.ID,
	}, nil
}

// CustomerEmail resolves a Paddle customer ID to the profile email.
func (p *PaddleProvider) CustomerEmail(ctx context.Context, customerID string) (string, error) {
	customer, err := p.client.CustomersClient.GetCustomer(ctx, &paddle.GetCustomerRequest{
		CustomerID: customerID,
	})
	if err != nil {
		return "", errors.Join(ErrProviderFailure, err)
	}
	return customer.Email, nil
}

// ParseWebhook verifies the Paddle signature and normalizes the payload.
// Unsigned payloads are accepted only when no secret is configured and
// AllowUnsigned was set at construction.
func (p *PaddleProvider) ParseWebhook(ctx context.Context, payload []byte, signature string) (*Event, error) {
	if p.verifier != nil {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, "/webhook", bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("failed to create request for verification: %w", err)
		}
		req.Header.Set("Paddle-Signature", signature)

		valid, err := p.verifier.Verify(req)
		if err != nil {
			return nil, errors.Join(ErrWebhookVerificationFailed, err)
		}
		if !valid {
			return nil, ErrWebhookVerificationFailed
		}
	}

	var paddleEvent struct {
		EventID    string         `json:"event_id"`
		EventType  string         `json:"event_type"`
		OccurredAt string         `json:"occurred_at"`
		Data       map[string]any `json:"data"`
	}
	if err := json.Unmarshal(payload, &paddleEvent); err != nil {
		return nil, errors.Join(ErrWebhookParseFailed, err)
	}

	event := &Event{
		ID:            paddleEvent.EventID,
		Type:          mapPaddleEventType(paddleEvent.EventType),
		ProviderEvent: paddleEvent.EventType,
	}

	if paddleEvent.OccurredAt != "" {
		occurredAt, err := time.Parse(time.RFC3339, paddleEvent.OccurredAt)
		if err != nil {
			return nil, errors.Join(ErrWebhookParseFailed, err)
		}
		event.OccurredAt = occurredAt
	}

	if customerID, ok := paddleEvent.Data["customer_id"].(string); ok {
		event.CustomerID = customerID
	}
	if status, ok := paddleEvent.Data["status"].(string); ok {
		event.Status = status
	}

	return event, nil
}

func mapPaddleEventType(paddleEvent string) EventType {
	switch paddleEvent {
	case "subscription.created", "subscription.updated", "subscription.resumed":
		return EventSubscriptionChanged
	case "subscription.canceled":
		return EventSubscriptionDeleted
	case "transaction.payment_failed":
		return EventPaymentFailed
	default:
		return EventIgnored
	}
}
