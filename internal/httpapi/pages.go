package httpapi

import (
	"net/http"
)

// Version is reported by the root probe.
const Version = "1.0.0"

const paymentSuccessPage = `<html><head><title>Welcome to Heimdall Pro!</title></head><body style="background:#000;color:#fff;font-family:system-ui;display:flex;align-items:center;justify-content:center;min-height:100vh;text-align:center;"><div><h1 style="font-size:48px;margin-bottom:8px;">&#9876;&#65039;</h1><h2>Welcome to Heimdall Pro!</h2><p style="color:#888;">Your subscription is active. You can close this tab.</p></div></body></html>`

const paymentCancelPage = `<html><head><title>Payment Cancelled</title></head><body style="background:#000;color:#fff;font-family:system-ui;display:flex;align-items:center;justify-content:center;min-height:100vh;text-align:center;"><div><h2>Payment Cancelled</h2><p style="color:#888;">No worries! Subscribe anytime from the Heimdall extension.</p></div></body></html>`

func (a *api) root(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "Heimdall server running",
		"version": Version,
	})
}

func (a *api) healthz(w http.ResponseWriter, r *http.Request) {
	for _, probe := range a.Health {
		if err := probe(r.Context()); err != nil {
			respondError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *api) paymentSuccess(w http.ResponseWriter, _ *http.Request) {
	serveHTML(w, paymentSuccessPage)
}

func (a *api) paymentCancel(w http.ResponseWriter, _ *http.Request) {
	serveHTML(w, paymentCancelPage)
}

func serveHTML(w http.ResponseWriter, page string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(page))
}
