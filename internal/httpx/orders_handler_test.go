package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/example/storefront/internal/catalog"
	"github.com/example/storefront/internal/checkout"
	"github.com/example/storefront/internal/config"
	"github.com/example/storefront/internal/orders"
)

type stubCatalog struct{ products map[string]catalog.Product }

func (s *stubCatalog) GetByIDs(_ context.Context, ids []string) (map[string]catalog.Product, error) {
	out := map[string]catalog.Product{}
	for _, id := range ids {
		if p, ok := s.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (s *stubCatalog) ListActive(context.Context) ([]catalog.Product, error) {
	var out []catalog.Product
	for _, p := range s.products {
		if p.IsActive {
			out = append(out, p)
		}
	}
	return out, nil
}

type stubOrderStore struct {
	created []*orders.Order
	byID    map[string]orders.Order
}

func (s *stubOrderStore) CreateWithItems(_ context.Context, o *orders.Order) error {
	o.ID = "order-1"
	o.Reference = "ORD-2026-123456"
	s.created = append(s.created, o)
	return nil
}

func (s *stubOrderStore) GetByID(_ context.Context, id string) (orders.Order, error) {
	o, ok := s.byID[id]
	if !ok {
		return orders.Order{}, orders.ErrNotFound
	}
	return o, nil
}

type mapCache struct{ entries map[string]string }

func (c *mapCache) Get(_ context.Context, orderID string) (string, bool) {
	s, ok := c.entries[orderID]
	return s, ok
}

func (c *mapCache) Set(_ context.Context, orderID, payload string) {
	if c.entries == nil {
		c.entries = map[string]string{}
	}
	c.entries[orderID] = payload
}

func newOrdersHandler(products map[string]catalog.Product, store *stubOrderStore, cache *mapCache) *OrdersHandler {
	cat := &stubCatalog{products: products}
	return &OrdersHandler{
		Checkout: &checkout.Service{
			Catalog:     cat,
			Orders:      store,
			Shipping:    config.Shipping{FreeThresholdCents: 2000, FlatFeeCents: 250},
			ServiceName: "test",
			Log:         zap.NewNop(),
		},
		Orders:   store,
		Products: cat,
		Cache:    cache,
		Log:      zap.NewNop(),
	}
}

const validOrderBody = `{
	"customerInfo": {
		"email": "ana@example.com",
		"fullName": "Ana García",
		"phone": "099123456",
		"address": "18 de Julio 1234",
		"city": "Montevideo",
		"department": "Montevideo"
	},
	"items": [{"id": "p1", "quantity": 2}],
	"paymentMethod": "provider-checkout"
}`

func TestCreateOrderHandler_Success(t *testing.T) {
	store := &stubOrderStore{}
	h := newOrdersHandler(map[string]catalog.Product{
		"p1": {ID: "p1", Name: "Thing", PriceCents: 1000, StockCount: 5, IsActive: true},
	}, store, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(validOrderBody))
	rec := httptest.NewRecorder()
	h.createOrder(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["ok"])
	assert.Equal(t, "order-1", resp["orderId"])
	assert.Equal(t, "ORD-2026-123456", resp["orderNumber"])
	assert.EqualValues(t, 2000, resp["total"])
	require.Len(t, store.created, 1)
}

func TestCreateOrderHandler_InvalidJSON(t *testing.T) {
	h := newOrdersHandler(nil, &stubOrderStore{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(`{`))
	rec := httptest.NewRecorder()
	h.createOrder(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateOrderHandler_ValidationFailure(t *testing.T) {
	h := newOrdersHandler(nil, &stubOrderStore{}, nil)

	body := strings.Replace(validOrderBody, `"ana@example.com"`, `""`, 1)
	req := httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.createOrder(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "customerInfo.email")
}

func TestCreateOrderHandler_InsufficientStock(t *testing.T) {
	store := &stubOrderStore{}
	h := newOrdersHandler(map[string]catalog.Product{
		"p1": {ID: "p1", Name: "Thing", PriceCents: 1000, StockCount: 1, IsActive: true},
	}, store, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(validOrderBody))
	rec := httptest.NewRecorder()
	h.createOrder(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "insufficient stock")
	assert.Empty(t, store.created)
}

func getWithURLParam(h http.HandlerFunc, target, key, val string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, val)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func TestGetOrderHandler_CacheHit(t *testing.T) {
	cache := &mapCache{entries: map[string]string{"order-1": `{"orderId":"order-1","paymentStatus":"completed"}`}}
	h := newOrdersHandler(nil, &stubOrderStore{}, cache)

	rec := getWithURLParam(h.getOrder, "/api/orders/order-1", "id", "order-1")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"paymentStatus":"completed"`)
}

func TestGetOrderHandler_CacheMissFallsBackToStore(t *testing.T) {
	cache := &mapCache{}
	store := &stubOrderStore{byID: map[string]orders.Order{
		"order-1": {ID: "order-1", Reference: "ORD-2026-000001", PaymentStatus: orders.PaymentPending, OrderStatus: orders.StatusPending},
	}}
	h := newOrdersHandler(nil, store, cache)

	rec := getWithURLParam(h.getOrder, "/api/orders/order-1", "id", "order-1")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"orderNumber":"ORD-2026-000001"`)
	_, ok := cache.entries["order-1"]
	assert.True(t, ok, "the miss should populate the cache")
}

func TestGetOrderHandler_NotFound(t *testing.T) {
	h := newOrdersHandler(nil, &stubOrderStore{}, &mapCache{})

	rec := getWithURLParam(h.getOrder, "/api/orders/ghost", "id", "ghost")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListProductsHandler_OnlyActive(t *testing.T) {
	h := newOrdersHandler(map[string]catalog.Product{
		"p1": {ID: "p1", Name: "Visible", IsActive: true},
		"p2": {ID: "p2", Name: "Hidden", IsActive: false},
	}, &stubOrderStore{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/products", nil)
	rec := httptest.NewRecorder()
	h.listProducts(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Visible")
	assert.NotContains(t, rec.Body.String(), "Hidden")
}
