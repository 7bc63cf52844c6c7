package payments

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	kafkax "github.com/example/storefront/internal/kafka"
	"github.com/example/storefront/internal/orders"
)

type PaymentFetcher interface {
	GetPayment(ctx context.Context, id string) (*Payment, error)
}

type OrderReconciler interface {
	GetWithItems(ctx context.Context, id string) (orders.Order, error)
	CompletePayment(ctx context.Context, orderID, providerPaymentID, providerStatus string) (bool, error)
	UpdatePaymentState(ctx context.Context, orderID string, ps orders.PaymentStatus, os orders.OrderStatus, providerPaymentID, providerStatus string) error
}

type StockAdjuster interface {
	DecrementStock(ctx context.Context, productID string, qty int) error
}

// LockManager serializes concurrent deliveries for one order. The durable
// duplicate guard is the conditional update in CompletePayment; the lock only
// keeps simultaneous deliveries from doing redundant provider lookups.
type LockManager interface {
	TryAcquire(ctx context.Context, orderID string) (bool, error)
	Release(ctx context.Context, orderID string) error
}

type CacheInvalidator interface {
	Invalidate(ctx context.Context, orderID string)
}

type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

type ReconcileService struct {
	Provider        PaymentFetcher
	Orders          OrderReconciler
	Stock           StockAdjuster
	Locks           LockManager
	Cache           CacheInvalidator
	EventsCompleted Publisher // publishes to order.payment.completed
	EventsFailed    Publisher // publishes to order.payment.failed
	ServiceName     string
	Log             *zap.Logger
}

// HandleNotification reconciles one webhook delivery. The returned error is
// for logging only: the HTTP handler acknowledges the provider regardless,
// and a dropped delivery is recovered by the provider's redelivery.
func (s *ReconcileService) HandleNotification(ctx context.Context, paymentID string) error {
	payment, err := s.Provider.GetPayment(ctx, paymentID)
	if err != nil {
		return err
	}

	orderID := payment.ExternalReference
	if orderID == "" {
		// Orphaned notification; nothing to reconcile and nothing a retry
		// could fix.
		s.Log.Warn("payment without order reference", zap.String("payment_id", paymentID))
		return nil
	}
	log := s.Log.With(zap.String("order_id", orderID), zap.String("payment_id", paymentID))

	if s.Locks != nil {
		acquired, err := s.Locks.TryAcquire(ctx, orderID)
		if err != nil {
			// Lock store down; proceed, the conditional update still holds.
			log.Warn("reconcile lock unavailable", zap.Error(err))
		} else if !acquired {
			log.Info("reconciliation already in flight")
			return nil
		} else {
			defer func() { _ = s.Locks.Release(ctx, orderID) }()
		}
	}

	o, err := s.Orders.GetWithItems(ctx, orderID)
	if errors.Is(err, orders.ErrNotFound) {
		log.Warn("payment references unknown order")
		return nil
	}
	if err != nil {
		return err
	}
	if o.PaymentStatus == orders.PaymentCompleted {
		// Already reconciled by an earlier delivery.
		return nil
	}

	ps, os := orders.MapProviderStatus(payment.Status)
	providerPaymentID := strconv.FormatInt(payment.ID, 10)

	if ps != orders.PaymentCompleted {
		if err := s.Orders.UpdatePaymentState(ctx, orderID, ps, os, providerPaymentID, payment.Status); err != nil {
			return err
		}
		s.invalidate(ctx, orderID)
		if ps == orders.PaymentFailed || ps == orders.PaymentRefunded {
			s.publishFailed(o, payment.Status)
		}
		log.Info("payment state updated",
			zap.String("provider_status", payment.Status),
			zap.String("payment_status", string(ps)))
		return nil
	}

	won, err := s.Orders.CompletePayment(ctx, orderID, providerPaymentID, payment.Status)
	if errors.Is(err, orders.ErrNotFound) {
		log.Warn("order vanished during reconciliation")
		return nil
	}
	if err != nil {
		return err
	}
	if !won {
		// A concurrent delivery completed the order first; stock was already
		// decremented exactly once there.
		return nil
	}

	for _, it := range o.Items {
		if err := s.Stock.DecrementStock(ctx, it.ProductID, it.Quantity); err != nil {
			log.Error("stock decrement failed",
				zap.String("product_id", it.ProductID),
				zap.Int("quantity", it.Quantity),
				zap.Error(err))
		}
	}
	s.invalidate(ctx, orderID)
	s.publishCompleted(o, providerPaymentID)
	log.Info("payment completed", zap.Int64("amount_cents", o.TotalCents))
	return nil
}

func (s *ReconcileService) invalidate(ctx context.Context, orderID string) {
	if s.Cache != nil {
		s.Cache.Invalidate(ctx, orderID)
	}
}

func (s *ReconcileService) publishCompleted(o orders.Order, providerPaymentID string) {
	if s.EventsCompleted == nil {
		return
	}
	s.publish(s.EventsCompleted, o.ID, orders.EventPaymentCompleted, kafkax.MustMarshal(orders.PaymentCompletedPayload{
		OrderID:           o.ID,
		Reference:         o.Reference,
		ProviderPaymentID: providerPaymentID,
		AmountCents:       o.TotalCents,
	}))
}

func (s *ReconcileService) publishFailed(o orders.Order, providerStatus string) {
	if s.EventsFailed == nil {
		return
	}
	s.publish(s.EventsFailed, o.ID, orders.EventPaymentFailed, kafkax.MustMarshal(orders.PaymentFailedPayload{
		OrderID:        o.ID,
		Reference:      o.Reference,
		ProviderStatus: providerStatus,
	}))
}

func (s *ReconcileService) publish(p Publisher, orderID, eventType string, payload []byte) {
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      s.ServiceName,
		CorrelationID: orderID,
		Payload:       payload,
	}
	p.Publish(orders.PartitionKey(orderID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
