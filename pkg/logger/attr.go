package logger

import "log/slog"

// Error records a single error under the key "error".
// Returns an empty Attr for nil errors.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// Component records the emitting component under the key "component".
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// Identity records the user identity under the key "identity".
func Identity(identity string) slog.Attr {
	return slog.String("identity", identity)
}

// CustomerID records the payment-provider customer reference.
func CustomerID(id string) slog.Attr {
	return slog.String("customer_id", id)
}

// PromoCode records a promo code under the key "code".
func PromoCode(code string) slog.Attr {
	return slog.String("code", code)
}

// Event records the provider event name under the key "event".
func Event(name string) slog.Attr {
	return slog.String("event", name)
}
