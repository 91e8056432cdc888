package billing

import "errors"

var (
	ErrMissingAPIKey             = errors.New("billing provider API key is required")
	ErrMissingPriceID            = errors.New("billing provider price ID is required")
	ErrMissingWebhookSecret      = errors.New("webhook secret is required unless unsigned webhooks are explicitly allowed")
	ErrInvalidEnvironment        = errors.New("invalid billing provider environment")
	ErrWebhookVerificationFailed = errors.New("webhook signature verification failed")
	ErrWebhookParseFailed        = errors.New("failed to parse webhook payload")
	ErrNoCheckoutURL             = errors.New("no checkout URL returned from provider")
	ErrCustomerNotFound          = errors.New("provider customer not found")
	ErrProviderFailure           = errors.New("payment provider call failed")
)
