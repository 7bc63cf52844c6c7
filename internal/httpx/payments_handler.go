package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/example/storefront/internal/orders"
	"github.com/example/storefront/internal/payments"
)

type PaymentsHandler struct {
	Preferences *payments.PreferenceService
	Reconcile   *payments.ReconcileService
	Log         *zap.Logger
}

func (h *PaymentsHandler) Register(r *chi.Mux) {
	r.Post("/api/payments/preference", h.createPreference)
	r.Get("/api/payments/webhook", h.webhook)
	r.Post("/api/payments/webhook", h.webhook)
}

type preferenceReq struct {
	OrderID string `json:"orderId"`
}

type preferenceResp struct {
	OK               bool   `json:"ok"`
	OrderID          string `json:"orderId"`
	PreferenceID     string `json:"preferenceId"`
	InitPoint        string `json:"initPoint"`
	SandboxInitPoint string `json:"sandboxInitPoint"`
}

func (h *PaymentsHandler) createPreference(w http.ResponseWriter, r *http.Request) {
	var req preferenceReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.OrderID == "" {
		writeError(w, http.StatusBadRequest, "missing orderId")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	redirect, err := h.Preferences.Create(ctx, req.OrderID)
	if err != nil {
		var pe *payments.ProviderError
		switch {
		case errors.Is(err, orders.ErrNotFound):
			writeError(w, http.StatusNotFound, "order not found")
		case errors.Is(err, payments.ErrEmptyOrder):
			writeError(w, http.StatusBadRequest, "order has no items")
		case errors.As(err, &pe):
			h.Log.Error("provider error",
				zap.String("order_id", req.OrderID),
				zap.Int("provider_status", pe.StatusCode),
				zap.String("provider_body", pe.Body))
			writeJSON(w, http.StatusBadGateway, map[string]any{
				"error":          "payment provider rejected the request",
				"providerStatus": pe.StatusCode,
			})
		default:
			h.Log.Error("create preference", zap.String("order_id", req.OrderID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "could not create payment preference")
		}
		return
	}

	writeJSON(w, http.StatusOK, preferenceResp{
		OK:               true,
		OrderID:          redirect.OrderID,
		PreferenceID:     redirect.PreferenceID,
		InitPoint:        redirect.InitPoint,
		SandboxInitPoint: redirect.SandboxInitPoint,
	})
}

// webhook always acknowledges with 200: returning an error to the provider
// only buys an uncontrolled retry storm. Failures are logged and recovered
// through the provider's own redelivery.
func (h *PaymentsHandler) webhook(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	paymentID := paymentIDFromQuery(q)
	if paymentID == "" {
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	if err := h.Reconcile.HandleNotification(ctx, paymentID); err != nil {
		h.Log.Error("webhook reconciliation", zap.String("payment_id", paymentID), zap.Error(err))
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true, "received": true})
}

// paymentIDFromQuery accepts the query-parameter spellings the provider has
// used over time. A topic other than "payment" carries a non-payment id and
// is skipped.
func paymentIDFromQuery(q url.Values) string {
	if topic := firstNonEmpty(q.Get("topic"), q.Get("type")); topic != "" && topic != "payment" {
		return ""
	}
	return firstNonEmpty(
		q.Get("data.id"),
		q.Get("data[id]"),
		q.Get("id"),
		q.Get("payment_id"),
	)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
