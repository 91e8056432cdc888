// Package httpapi exposes the access-control server's HTTP surface: access
// checks, checkout creation, promo redemption, promo administration, and the
// payment-provider webhook.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ThorWarnken/heimdall-server/internal/access"
	"github.com/ThorWarnken/heimdall-server/internal/billing"
	"github.com/ThorWarnken/heimdall-server/internal/promo"
	"github.com/ThorWarnken/heimdall-server/pkg/requestid"
)

// Config holds the HTTP-surface configuration.
type Config struct {
	AdminKey  string `env:"ADMIN_KEY,required"`
	ServerURL string `env:"SERVER_URL" envDefault:"http://localhost:8080"`
}

// Deps carries the wired components the API dispatches to.
type Deps struct {
	Evaluator *access.Evaluator
	Ledger    *promo.Ledger
	Sync      *billing.Sync
	Provider  billing.Provider
	Users     access.UserStore
	Config    Config
	Log       *slog.Logger

	// Limiter, when set, wraps the abuse-prone routes (redeem, admin).
	Limiter func(http.Handler) http.Handler
	// Health lists readiness probes surfaced on /healthz.
	Health []func(context.Context) error
	// Now supplies the current time; tests inject fixed instants.
	Now func() time.Time
}

type api struct {
	Deps
}

// NewRouter builds the chi router for the API.
// Panics when a required dependency is missing to fail fast during wiring.
func NewRouter(deps Deps) http.Handler {
	if deps.Evaluator == nil || deps.Ledger == nil || deps.Sync == nil ||
		deps.Provider == nil || deps.Users == nil {
		panic("httpapi: all components are required")
	}
	if deps.Log == nil {
		deps.Log = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = func() time.Time { return time.Now().UTC() }
	}
	a := &api{Deps: deps}

	r := chi.NewRouter()
	r.Use(requestid.Middleware)
	r.Use(middleware.Recoverer)

	r.Get("/", a.root)
	r.Get("/healthz", a.healthz)
	r.Get("/payment-success", a.paymentSuccess)
	r.Get("/payment-cancel", a.paymentCancel)

	r.Post("/check-access", a.checkAccess)
	r.Post("/create-checkout", a.createCheckout)
	r.Post("/webhook", a.webhook)

	limited := func(h http.HandlerFunc) http.Handler {
		if deps.Limiter == nil {
			return h
		}
		return deps.Limiter(h)
	}
	r.Method(http.MethodPost, "/redeem-code", limited(a.redeemCode))
	r.Method(http.MethodPost, "/admin/create-promo", limited(a.createPromo))

	return r
}
