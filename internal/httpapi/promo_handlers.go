package httpapi

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ThorWarnken/heimdall-server/internal/promo"
	"github.com/ThorWarnken/heimdall-server/pkg/logger"
)

type redeemCodeRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type redeemCodeResponse struct {
	Success   bool      `json:"success"`
	FreeDays  int       `json:"free_days"`
	ExpiresAt time.Time `json:"expires_at"`
	Message   string    `json:"message"`
}

func (a *api) redeemCode(w http.ResponseWriter, r *http.Request) {
	var req redeemCodeRequest
	if err := decodeJSON(r, &req); err != nil || req.Email == "" || req.Code == "" {
		respondError(w, http.StatusBadRequest, "Email and code required")
		return
	}

	result, err := a.Ledger.Redeem(r.Context(), req.Email, req.Code, a.Now())
	switch {
	case errors.Is(err, promo.ErrCodeNotFound):
		respondError(w, http.StatusNotFound, "Invalid promo code")
		return
	case errors.Is(err, promo.ErrCodeExhausted):
		respondError(w, http.StatusBadRequest, "This promo code has been fully redeemed")
		return
	case errors.Is(err, promo.ErrAlreadyRedeemed):
		respondError(w, http.StatusBadRequest, "You've already used this code")
		return
	case err != nil:
		a.Log.ErrorContext(r.Context(), "promo redemption failed",
			logger.PromoCode(promo.NormalizeCode(req.Code)), logger.Error(err))
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondJSON(w, http.StatusOK, redeemCodeResponse{
		Success:   true,
		FreeDays:  result.FreeDays,
		ExpiresAt: result.ExpiresAt,
		Message:   fmt.Sprintf("Code redeemed! You have %d free days.", result.FreeDays),
	})
}

type createPromoRequest struct {
	AdminKey string `json:"admin_key"`
	Code     string `json:"code"`
	FreeDays int    `json:"free_days"`
	MaxUses  int    `json:"max_uses"`
}

type createPromoResponse struct {
	Code     string `json:"code"`
	FreeDays int    `json:"free_days"`
	MaxUses  int    `json:"max_uses"`
}

func (a *api) createPromo(w http.ResponseWriter, r *http.Request) {
	var req createPromoRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if subtle.ConstantTimeCompare([]byte(req.AdminKey), []byte(a.Config.AdminKey)) != 1 {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	code, err := a.Ledger.Create(r.Context(), promo.CreateParams{
		Code:     req.Code,
		FreeDays: req.FreeDays,
		MaxUses:  req.MaxUses,
	}, a.Now())
	switch {
	case errors.Is(err, promo.ErrCodeAlreadyExists):
		respondError(w, http.StatusBadRequest, "Code already exists")
		return
	case errors.Is(err, promo.ErrInvalidFreeDays), errors.Is(err, promo.ErrInvalidMaxUses):
		respondError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		a.Log.ErrorContext(r.Context(), "promo creation failed", logger.Error(err))
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondJSON(w, http.StatusOK, createPromoResponse{
		Code:     code.Code,
		FreeDays: code.FreeDays,
		MaxUses:  code.MaxUses,
	})
}
