package promo

import "errors"

var (
	ErrCodeNotFound      = errors.New("promo code not found")
	ErrCodeExhausted     = errors.New("promo code has been fully redeemed")
	ErrAlreadyRedeemed   = errors.New("promo code already redeemed by this identity")
	ErrCodeAlreadyExists = errors.New("promo code already exists")
	ErrMissingIdentity   = errors.New("identity is required")
	ErrMissingCode       = errors.New("promo code is required")
	ErrInvalidFreeDays   = errors.New("free days must be positive")
	ErrInvalidMaxUses    = errors.New("max uses must be positive")
)
