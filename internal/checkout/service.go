package checkout

import (
	"context"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/example/storefront/internal/catalog"
	"github.com/example/storefront/internal/config"
	kafkax "github.com/example/storefront/internal/kafka"
	"github.com/example/storefront/internal/orders"
)

// CartSubmission is the untrusted client payload. Prices are deliberately
// absent: they are always re-derived from the catalog.
type CartSubmission struct {
	Customer       orders.CustomerInfo   `json:"customerInfo"`
	Items          []CartLine            `json:"items"`
	PaymentMethod  orders.PaymentMethod  `json:"paymentMethod"`
	DeliveryMethod orders.DeliveryMethod `json:"deliveryMethod,omitempty"`
}

type CartLine struct {
	ProductID string `json:"id"`
	Quantity  int    `json:"quantity"`
}

type PlacedOrder struct {
	OrderID    string
	Reference  string
	TotalCents int64
}

type ProductFinder interface {
	GetByIDs(ctx context.Context, ids []string) (map[string]catalog.Product, error)
}

type OrderCreator interface {
	CreateWithItems(ctx context.Context, o *orders.Order) error
}

type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

type Service struct {
	Catalog     ProductFinder
	Orders      OrderCreator
	Events      Publisher
	Shipping    config.Shipping
	ServiceName string
	Log         *zap.Logger
}

// PlaceOrder validates the submission against the live catalog, computes
// totals server-side and persists the order with its item snapshots. All
// validation completes before any write; there are no partial orders.
func (s *Service) PlaceOrder(ctx context.Context, sub CartSubmission) (*PlacedOrder, error) {
	if err := validateSubmission(sub); err != nil {
		return nil, err
	}

	lines := dedupeLines(sub.Items)

	ids := make([]string, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.ProductID)
	}
	products, err := s.Catalog.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	for _, l := range lines {
		p, ok := products[l.ProductID]
		if !ok {
			return nil, &ProductError{ProductID: l.ProductID, Reason: ProductNotFound}
		}
		if !p.IsActive {
			return nil, &ProductError{ProductID: l.ProductID, Reason: ProductInactive}
		}
		if l.Quantity > p.StockCount {
			return nil, &ProductError{
				ProductID: l.ProductID, Reason: InsufficientStock,
				Requested: l.Quantity, Available: p.StockCount,
			}
		}
	}

	delivery := sub.DeliveryMethod
	if delivery == "" {
		delivery = orders.DeliveryShip
	}

	var subtotal int64
	items := make([]orders.Item, 0, len(lines))
	for _, l := range lines {
		p := products[l.ProductID]
		it := orders.Item{
			ProductID:      p.ID,
			Name:           p.Name,
			Model:          p.Model,
			ImageURL:       p.ImageURL,
			UnitPriceCents: p.PriceCents,
			Quantity:       l.Quantity,
		}
		subtotal += it.LineTotalCents()
		items = append(items, it)
	}

	shipping := s.shippingCost(subtotal, delivery)

	order := &orders.Order{
		Customer:       sub.Customer,
		SubtotalCents:  subtotal,
		ShippingCents:  shipping,
		TotalCents:     subtotal + shipping,
		PaymentMethod:  sub.PaymentMethod,
		DeliveryMethod: delivery,
		Items:          items,
	}
	if err := s.Orders.CreateWithItems(ctx, order); err != nil {
		return nil, err
	}

	s.Log.Info("order placed",
		zap.String("order_id", order.ID),
		zap.String("reference", order.Reference),
		zap.String("payment_method", string(order.PaymentMethod)),
		zap.Int64("total_cents", order.TotalCents))

	s.publishCreated(order)

	return &PlacedOrder{OrderID: order.ID, Reference: order.Reference, TotalCents: order.TotalCents}, nil
}

func (s *Service) shippingCost(subtotal int64, delivery orders.DeliveryMethod) int64 {
	if delivery == orders.DeliveryPickup {
		return 0
	}
	if subtotal >= s.Shipping.FreeThresholdCents {
		return 0
	}
	return s.Shipping.FlatFeeCents
}

func (s *Service) publishCreated(o *orders.Order) {
	if s.Events == nil {
		return
	}
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     orders.EventOrderCreated,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      s.ServiceName,
		CorrelationID: o.ID,
		Payload: kafkax.MustMarshal(orders.OrderCreatedPayload{
			OrderID:       o.ID,
			Reference:     o.Reference,
			PaymentMethod: string(o.PaymentMethod),
			SubtotalCents: o.SubtotalCents,
			ShippingCents: o.ShippingCents,
			TotalCents:    o.TotalCents,
		}),
	}
	s.Events.Publish(orders.PartitionKey(o.ID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(orders.EventOrderCreated)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

func validateSubmission(sub CartSubmission) error {
	c := sub.Customer
	if c.Email == "" {
		return invalid("customerInfo.email", "required")
	}
	if c.FullName == "" {
		return invalid("customerInfo.fullName", "required")
	}
	if c.Phone == "" {
		return invalid("customerInfo.phone", "required")
	}
	if !orders.ValidPaymentMethod(sub.PaymentMethod) {
		return invalid("paymentMethod", "must be provider-checkout or bank-transfer")
	}
	switch sub.DeliveryMethod {
	case "", orders.DeliveryPickup, orders.DeliveryShip:
	default:
		return invalid("deliveryMethod", "must be pickup or delivery")
	}

	if sub.DeliveryMethod != orders.DeliveryPickup {
		if c.Address == "" {
			return invalid("customerInfo.address", "required for delivery")
		}
		if c.City == "" {
			return invalid("customerInfo.city", "required for delivery")
		}
		if c.Department == "" {
			return invalid("customerInfo.department", "required for delivery")
		}
		if !orders.ValidDepartment(c.Department) {
			return invalid("customerInfo.department", "not a valid department")
		}
	}

	if len(sub.Items) == 0 {
		return invalid("items", "cart is empty")
	}
	for _, l := range sub.Items {
		if l.ProductID == "" {
			return invalid("items", "product id is required")
		}
		if l.Quantity <= 0 {
			return invalid("items", "quantity must be greater than zero")
		}
	}
	return nil
}

// dedupeLines merges duplicate cart lines by product id, summing quantities.
// Guards against client-side duplicate bugs. Order of first appearance is
// preserved so validation errors are deterministic.
func dedupeLines(in []CartLine) []CartLine {
	idx := make(map[string]int, len(in))
	out := make([]CartLine, 0, len(in))
	for _, l := range in {
		if i, ok := idx[l.ProductID]; ok {
			out[i].Quantity += l.Quantity
			continue
		}
		idx[l.ProductID] = len(out)
		out = append(out, l)
	}
	return out
}
