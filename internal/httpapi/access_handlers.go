package httpapi

import (
	"fmt"
	"net/http"

	"github.com/ThorWarnken/heimdall-server/internal/access"
	"github.com/ThorWarnken/heimdall-server/pkg/logger"
)

type checkAccessRequest struct {
	Email string `json:"email"`
}

type checkAccessResponse struct {
	Access        bool   `json:"access"`
	Status        string `json:"status"`
	TrialDaysLeft *int   `json:"trial_days_left,omitempty"`
	DaysLeft      *int   `json:"days_left,omitempty"`
	Message       string `json:"message"`
}

func (a *api) checkAccess(w http.ResponseWriter, r *http.Request) {
	var req checkAccessRequest
	if err := decodeJSON(r, &req); err != nil || req.Email == "" {
		respondError(w, http.StatusBadRequest, "Email required")
		return
	}

	decision, err := a.Evaluator.Evaluate(r.Context(), req.Email, a.Now())
	if err != nil {
		a.Log.ErrorContext(r.Context(), "access evaluation failed",
			logger.Identity(access.NormalizeIdentity(req.Email)), logger.Error(err))
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	resp := checkAccessResponse{
		Access: decision.Access,
		Status: string(decision.Reason),
	}
	switch decision.Reason {
	case access.ReasonActive:
		resp.Message = "Subscription active"
	case access.ReasonTrialing:
		days := decision.DaysLeft
		resp.TrialDaysLeft = &days
		if decision.TrialStarted {
			resp.Message = fmt.Sprintf("Welcome! Your %d-day free trial has started.", days)
		} else {
			resp.Message = fmt.Sprintf("Trial: %d %s left", days, pluralDays(days))
		}
	case access.ReasonPromo:
		days := decision.DaysLeft
		resp.DaysLeft = &days
		resp.Message = fmt.Sprintf("Promo active: %d %s left", days, pluralDays(days))
	case access.ReasonExpired:
		resp.Message = "Trial expired. Subscribe to continue using Heimdall."
	}

	respondJSON(w, http.StatusOK, resp)
}

func pluralDays(n int) string {
	if n == 1 {
		return "day"
	}
	return "days"
}
