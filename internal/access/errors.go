package access

import "errors"

var (
	ErrUserNotFound     = errors.New("user record not found")
	ErrMissingIdentity  = errors.New("identity is required")
	ErrInvalidStatus    = errors.New("unrecognized subscription status")
	ErrStoreUnavailable = errors.New("user record store unavailable")
)
