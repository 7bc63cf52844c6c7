package httpx

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/example/storefront/internal/orders"
	"github.com/example/storefront/internal/payments"
)

type stubOrderLoader struct {
	order orders.Order
	err   error
}

func (s *stubOrderLoader) GetWithItems(context.Context, string) (orders.Order, error) {
	return s.order, s.err
}

func (s *stubOrderLoader) SetPreference(context.Context, string, string, string, string) error {
	return nil
}

type stubPreferenceAPI struct {
	pref *payments.Preference
	err  error
}

func (s *stubPreferenceAPI) CreatePreference(context.Context, payments.PreferenceRequest, string) (*payments.Preference, error) {
	return s.pref, s.err
}

type stubPaymentAPI struct {
	payment *payments.Payment
	err     error
	calls   int
}

func (s *stubPaymentAPI) GetPayment(context.Context, string) (*payments.Payment, error) {
	s.calls++
	return s.payment, s.err
}

type stubReconcileStore struct{ stubOrderLoader }

func (s *stubReconcileStore) CompletePayment(context.Context, string, string, string) (bool, error) {
	return true, nil
}

func (s *stubReconcileStore) UpdatePaymentState(context.Context, string, orders.PaymentStatus, orders.OrderStatus, string, string) error {
	return nil
}

type stubStock struct{}

func (stubStock) DecrementStock(context.Context, string, int) error { return nil }

func newPaymentsHandler(loader *stubOrderLoader, api *stubPreferenceAPI, paymentAPI *stubPaymentAPI) *PaymentsHandler {
	return &PaymentsHandler{
		Preferences: &payments.PreferenceService{
			Orders:   loader,
			Provider: api,
			SiteURL:  "https://shop.example.com",
			Currency: "UYU",
			Log:      zap.NewNop(),
		},
		Reconcile: &payments.ReconcileService{
			Provider:    paymentAPI,
			Orders:      &stubReconcileStore{stubOrderLoader: *loader},
			Stock:       stubStock{},
			ServiceName: "test",
			Log:         zap.NewNop(),
		},
		Log: zap.NewNop(),
	}
}

func TestCreatePreferenceHandler_MissingOrderID(t *testing.T) {
	h := newPaymentsHandler(&stubOrderLoader{}, &stubPreferenceAPI{}, &stubPaymentAPI{})

	req := httptest.NewRequest(http.MethodPost, "/api/payments/preference", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	h.createPreference(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "missing orderId")
}

func TestCreatePreferenceHandler_OrderNotFound(t *testing.T) {
	h := newPaymentsHandler(&stubOrderLoader{err: orders.ErrNotFound}, &stubPreferenceAPI{}, &stubPaymentAPI{})

	req := httptest.NewRequest(http.MethodPost, "/api/payments/preference", strings.NewReader(`{"orderId":"ghost"}`))
	rec := httptest.NewRecorder()
	h.createPreference(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreatePreferenceHandler_EmptyOrder(t *testing.T) {
	h := newPaymentsHandler(&stubOrderLoader{order: orders.Order{ID: "o1"}}, &stubPreferenceAPI{}, &stubPaymentAPI{})

	req := httptest.NewRequest(http.MethodPost, "/api/payments/preference", strings.NewReader(`{"orderId":"o1"}`))
	rec := httptest.NewRecorder()
	h.createPreference(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "no items")
}

func TestCreatePreferenceHandler_Success(t *testing.T) {
	loader := &stubOrderLoader{order: orders.Order{
		ID:    "o1",
		Items: []orders.Item{{ProductID: "p1", Name: "Thing", UnitPriceCents: 1000, Quantity: 1}},
	}}
	api := &stubPreferenceAPI{pref: &payments.Preference{ID: "pref-1", InitPoint: "https://pay/init", SandboxInitPoint: "https://pay/sb"}}
	h := newPaymentsHandler(loader, api, &stubPaymentAPI{})

	req := httptest.NewRequest(http.MethodPost, "/api/payments/preference", strings.NewReader(`{"orderId":"o1"}`))
	rec := httptest.NewRecorder()
	h.createPreference(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `"preferenceId":"pref-1"`)
	assert.Contains(t, body, `"initPoint":"https://pay/init"`)
}

func TestCreatePreferenceHandler_ProviderError(t *testing.T) {
	loader := &stubOrderLoader{order: orders.Order{
		ID:    "o1",
		Items: []orders.Item{{ProductID: "p1", Name: "Thing", UnitPriceCents: 1000, Quantity: 1}},
	}}
	api := &stubPreferenceAPI{err: &payments.ProviderError{StatusCode: 400, Body: "bad items"}}
	h := newPaymentsHandler(loader, api, &stubPaymentAPI{})

	req := httptest.NewRequest(http.MethodPost, "/api/payments/preference", strings.NewReader(`{"orderId":"o1"}`))
	rec := httptest.NewRecorder()
	h.createPreference(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), `"providerStatus":400`)
}

func TestWebhook_AlwaysAcknowledges(t *testing.T) {
	// provider lookup fails internally; the provider must still get a 200
	h := newPaymentsHandler(&stubOrderLoader{}, &stubPreferenceAPI{}, &stubPaymentAPI{err: errors.New("provider down")})

	req := httptest.NewRequest(http.MethodPost, "/api/payments/webhook?id=42", nil)
	rec := httptest.NewRecorder()
	h.webhook(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"received":true`)
}

func TestWebhook_MissingPaymentIDStillAcknowledges(t *testing.T) {
	api := &stubPaymentAPI{}
	h := newPaymentsHandler(&stubOrderLoader{}, &stubPreferenceAPI{}, api)

	req := httptest.NewRequest(http.MethodGet, "/api/payments/webhook", nil)
	rec := httptest.NewRecorder()
	h.webhook(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, api.calls, "no provider lookup without a payment id")
}

func TestPaymentIDFromQuery(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"id=123", "123"},
		{"data.id=456", "456"},
		{"data%5Bid%5D=789", "789"},
		{"payment_id=321", "321"},
		{"type=payment&data.id=456", "456"},
		{"topic=payment&id=123", "123"},
		{"topic=merchant_order&id=123", ""},
		{"type=plan&id=123", ""},
		{"", ""},
		{"data.id=456&id=123", "456"},
	}
	for _, tc := range tests {
		q, err := url.ParseQuery(tc.raw)
		require.NoError(t, err)
		assert.Equal(t, tc.want, paymentIDFromQuery(q), "query %q", tc.raw)
	}
}
