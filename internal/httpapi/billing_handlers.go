package httpapi

import (
	"errors"
	"io"
	"net/http"

	"github.com/ThorWarnken/heimdall-server/internal/access"
	"github.com/ThorWarnken/heimdall-server/internal/billing"
	"github.com/ThorWarnken/heimdall-server/pkg/logger"
)

type createCheckoutRequest struct {
	Email string `json:"email"`
}

type createCheckoutResponse struct {
	URL       string `json:"url"`
	SessionID string `json:"sessionId"`
}

func (a *api) createCheckout(w http.ResponseWriter, r *http.Request) {
	var req createCheckoutRequest
	if err := decodeJSON(r, &req); err != nil || req.Email == "" {
		respondError(w, http.StatusBadRequest, "Email required")
		return
	}

	ctx := r.Context()
	identity := access.NormalizeIdentity(req.Email)

	var customerID string
	user, err := a.Users.Get(ctx, identity)
	switch {
	case err == nil:
		customerID = user.ProviderCustomerID
	case errors.Is(err, access.ErrUserNotFound):
		// First contact via checkout: the record is created without a
		// trial; the trial clock starts only at the first access check.
	default:
		a.Log.ErrorContext(ctx, "failed to load user record", logger.Identity(identity), logger.Error(err))
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	if customerID == "" {
		customerID, err = a.Provider.EnsureCustomer(ctx, identity)
		if err != nil {
			a.Log.ErrorContext(ctx, "failed to create provider customer",
				logger.Identity(identity), logger.Error(err))
			respondError(w, http.StatusInternalServerError, "Failed to create checkout session")
			return
		}
		if _, err := a.Users.CreateIfAbsent(ctx, &access.UserRecord{
			Identity:           identity,
			SubscriptionStatus: access.StatusNone,
			CreatedAt:          a.Now(),
		}); err != nil {
			a.Log.ErrorContext(ctx, "failed to ensure user record", logger.Identity(identity), logger.Error(err))
			respondError(w, http.StatusInternalServerError, "Internal server error")
			return
		}
		if err := a.Users.SetProviderCustomerID(ctx, identity, customerID); err != nil {
			a.Log.ErrorContext(ctx, "failed to store provider customer id",
				logger.Identity(identity), logger.CustomerID(customerID), logger.Error(err))
			respondError(w, http.StatusInternalServerError, "Internal server error")
			return
		}
	}

	session, err := a.Provider.CreateCheckoutSession(ctx, billing.CheckoutRequest{
		CustomerID: customerID,
		Email:      identity,
		SuccessURL: a.Config.ServerURL + "/payment-success",
		CancelURL:  a.Config.ServerURL + "/payment-cancel",
	})
	if err != nil {
		a.Log.ErrorContext(ctx, "checkout session creation failed",
			logger.Identity(identity), logger.CustomerID(customerID), logger.Error(err))
		respondError(w, http.StatusInternalServerError, "Failed to create checkout session")
		return
	}

	respondJSON(w, http.StatusOK, createCheckoutResponse{
		URL:       session.URL,
		SessionID: session.SessionID,
	})
}

func (a *api) webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Failed to read webhook body")
		return
	}

	event, err := a.Provider.ParseWebhook(r.Context(), payload, r.Header.Get("Paddle-Signature"))
	if err != nil {
		a.Log.WarnContext(r.Context(), "webhook rejected", logger.Error(err))
		respondError(w, http.StatusBadRequest, "Webhook Error: "+err.Error())
		return
	}

	if err := a.Sync.Apply(r.Context(), event, a.Now()); err != nil {
		a.Log.ErrorContext(r.Context(), "webhook application failed",
			logger.Event(event.ProviderEvent), logger.Error(err))
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondJSON(w, http.StatusOK, map[string]bool{"received": true})
}
