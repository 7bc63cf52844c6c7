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
	"github.com/example/storefront/internal/orders"
)

type InventoryStore interface {
	List(ctx context.Context) ([]catalog.Product, error)
	Create(ctx context.Context, p catalog.Product) (catalog.Product, error)
	Update(ctx context.Context, p catalog.Product) (catalog.Product, error)
	Deactivate(ctx context.Context, id string) error
}

type OrderAdmin interface {
	AdminUpdateStatus(ctx context.Context, orderID string, upd orders.AdminStatusUpdate) (orders.Order, error)
}

// AdminHandler is the back-office surface. Authentication is delegated to an
// identity-aware proxy in front of this service.
type AdminHandler struct {
	Inventory InventoryStore
	Orders    OrderAdmin
	Log       *zap.Logger
}

func (h *AdminHandler) Register(r *chi.Mux) {
	r.Get("/admin/products", h.listProducts)
	r.Post("/admin/products", h.createProduct)
	r.Put("/admin/products/{id}", h.updateProduct)
	r.Delete("/admin/products/{id}", h.deactivateProduct)
	r.Patch("/admin/orders/{id}/status", h.updateOrderStatus)
}

type productReq struct {
	Name       string `json:"name"`
	Model      string `json:"model"`
	ImageURL   string `json:"imageUrl"`
	PriceCents int64  `json:"priceCents"`
	StockCount int    `json:"stockCount"`
	IsActive   *bool  `json:"isActive"`
}

func (p productReq) validate() string {
	if p.Name == "" {
		return "name is required"
	}
	if p.PriceCents < 0 {
		return "priceCents must not be negative"
	}
	if p.StockCount < 0 {
		return "stockCount must not be negative"
	}
	return ""
}

func (h *AdminHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ps, err := h.Inventory.List(ctx)
	if err != nil {
		h.Log.Error("admin list products", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not load products")
		return
	}
	if ps == nil {
		ps = []catalog.Product{}
	}
	writeJSON(w, http.StatusOK, ps)
}

func (h *AdminHandler) createProduct(w http.ResponseWriter, r *http.Request) {
	var req productReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	p, err := h.Inventory.Create(ctx, catalog.Product{
		Name:       req.Name,
		Model:      req.Model,
		ImageURL:   req.ImageURL,
		PriceCents: req.PriceCents,
		StockCount: req.StockCount,
		IsActive:   active,
	})
	if err != nil {
		h.Log.Error("admin create product", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not create product")
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *AdminHandler) updateProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req productReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	p, err := h.Inventory.Update(ctx, catalog.Product{
		ID:         id,
		Name:       req.Name,
		Model:      req.Model,
		ImageURL:   req.ImageURL,
		PriceCents: req.PriceCents,
		StockCount: req.StockCount,
		IsActive:   active,
	})
	if errors.Is(err, catalog.ErrNotFound) {
		writeError(w, http.StatusNotFound, "product not found")
		return
	}
	if err != nil {
		h.Log.Error("admin update product", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not update product")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *AdminHandler) deactivateProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	err := h.Inventory.Deactivate(ctx, id)
	if errors.Is(err, catalog.ErrNotFound) {
		writeError(w, http.StatusNotFound, "product not found")
		return
	}
	if err != nil {
		h.Log.Error("admin deactivate product", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not deactivate product")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

type orderStatusPatch struct {
	Status         string `json:"status"`
	TrackingNumber string `json:"tracking_number"`
	PaymentStatus  string `json:"payment_status"`
	CancelPayment  bool   `json:"cancel_payment"`
}

func (h *AdminHandler) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req orderStatusPatch
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	upd := orders.AdminStatusUpdate{
		Status:         orders.OrderStatus(req.Status),
		TrackingNumber: req.TrackingNumber,
		PaymentStatus:  orders.PaymentStatus(req.PaymentStatus),
	}
	if req.CancelPayment {
		upd.Status = orders.StatusCancelled
		upd.PaymentStatus = orders.PaymentFailed
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	o, err := h.Orders.AdminUpdateStatus(ctx, id, upd)
	switch {
	case errors.Is(err, orders.ErrNotFound):
		writeError(w, http.StatusNotFound, "order not found")
	case errors.Is(err, orders.ErrInvalidTransition):
		writeError(w, http.StatusBadRequest, err.Error())
	case err != nil:
		h.Log.Error("admin update order", zap.String("order_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not update order")
	default:
		writeJSON(w, http.StatusOK, o)
	}
}
