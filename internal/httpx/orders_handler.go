package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/example/storefront/internal/catalog"
	"github.com/example/storefront/internal/checkout"
	"github.com/example/storefront/internal/orders"
)

type OrderStatusReader interface {
	GetByID(ctx context.Context, id string) (orders.Order, error)
}

type ProductLister interface {
	ListActive(ctx context.Context) ([]catalog.Product, error)
}

// StatusCache fronts the order-status lookup so the storefront can poll
// cheaply while waiting for the payment redirect to land.
type StatusCache interface {
	Get(ctx context.Context, orderID string) (string, bool)
	Set(ctx context.Context, orderID, payload string)
}

type OrdersHandler struct {
	Checkout *checkout.Service
	Orders   OrderStatusReader
	Products ProductLister
	Cache    StatusCache
	Log      *zap.Logger
}

func (h *OrdersHandler) Register(r *chi.Mux) {
	r.Post("/api/orders", h.createOrder)
	r.Get("/api/orders/{id}", h.getOrder)
	r.Get("/api/products", h.listProducts)
}

type createOrderResp struct {
	OK          bool   `json:"ok"`
	OrderID     string `json:"orderId"`
	OrderNumber string `json:"orderNumber"`
	TotalCents  int64  `json:"total"`
}

func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	var sub checkout.CartSubmission
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	placed, err := h.Checkout.PlaceOrder(ctx, sub)
	if err != nil {
		var ve *checkout.ValidationError
		var pe *checkout.ProductError
		switch {
		case errors.As(err, &ve), errors.As(err, &pe):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			h.Log.Error("create order", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "could not create order")
		}
		return
	}

	writeJSON(w, http.StatusOK, createOrderResp{
		OK:          true,
		OrderID:     placed.OrderID,
		OrderNumber: placed.Reference,
		TotalCents:  placed.TotalCents,
	})
}

type orderStatusResp struct {
	OrderID       string `json:"orderId"`
	Reference     string `json:"orderNumber"`
	PaymentStatus string `json:"paymentStatus"`
	OrderStatus   string `json:"orderStatus"`
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	if orderID == "" {
		writeError(w, http.StatusBadRequest, "missing id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if h.Cache != nil {
		if s, ok := h.Cache.Get(ctx, orderID); ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(s))
			return
		}
	}

	o, err := h.Orders.GetByID(ctx, orderID)
	if errors.Is(err, orders.ErrNotFound) {
		writeError(w, http.StatusNotFound, "order not found")
		return
	}
	if err != nil {
		h.Log.Error("get order", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not load order")
		return
	}

	resp := orderStatusResp{
		OrderID:       o.ID,
		Reference:     o.Reference,
		PaymentStatus: string(o.PaymentStatus),
		OrderStatus:   string(o.OrderStatus),
	}
	if h.Cache != nil {
		if b, err := json.Marshal(resp); err == nil {
			h.Cache.Set(ctx, orderID, string(b))
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *OrdersHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ps, err := h.Products.ListActive(ctx)
	if err != nil {
		h.Log.Error("list products", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not load products")
		return
	}
	if ps == nil {
		ps = []catalog.Product{}
	}
	writeJSON(w, http.StatusOK, ps)
}
