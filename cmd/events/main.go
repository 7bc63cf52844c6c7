package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/example/storefront/internal/config"
	kafkax "github.com/example/storefront/internal/kafka"
	"github.com/example/storefront/internal/logx"
	"github.com/example/storefront/internal/orders"
	"github.com/example/storefront/internal/redisx"
)

// The events consumer mirrors order lifecycle events into the Redis status
// cache, so storefront polling after the payment redirect rarely hits the
// database, and keeps a structured audit log of every transition.

type mirror struct {
	cache *redisx.StatusCache
	log   *zap.Logger
}

type cachedStatus struct {
	OrderID       string `json:"orderId"`
	Reference     string `json:"orderNumber"`
	PaymentStatus string `json:"paymentStatus"`
	OrderStatus   string `json:"orderStatus"`
}

func (m *mirror) handle(ctx context.Context, msg kafkago.Message) error {
	var env orders.Envelope
	if err := json.Unmarshal(msg.Value, &env); err != nil {
		// Malformed message; retrying cannot fix it.
		m.log.Warn("malformed envelope", zap.Error(err))
		return nil
	}

	switch env.EventType {
	case orders.EventOrderCreated:
		p, err := kafkax.UnwrapPayload[orders.OrderCreatedPayload](env.Payload)
		if err != nil {
			m.log.Warn("malformed payload", zap.String("event", env.EventType), zap.Error(err))
			return nil
		}
		m.set(ctx, cachedStatus{
			OrderID:       p.OrderID,
			Reference:     p.Reference,
			PaymentStatus: string(orders.PaymentPending),
			OrderStatus:   string(orders.StatusPending),
		})
		m.log.Info("order created",
			zap.String("order_id", p.OrderID),
			zap.String("reference", p.Reference),
			zap.String("payment_method", p.PaymentMethod),
			zap.Int64("total_cents", p.TotalCents))

	case orders.EventPaymentCompleted:
		p, err := kafkax.UnwrapPayload[orders.PaymentCompletedPayload](env.Payload)
		if err != nil {
			m.log.Warn("malformed payload", zap.String("event", env.EventType), zap.Error(err))
			return nil
		}
		m.set(ctx, cachedStatus{
			OrderID:       p.OrderID,
			Reference:     p.Reference,
			PaymentStatus: string(orders.PaymentCompleted),
			OrderStatus:   string(orders.StatusProcessing),
		})
		m.log.Info("payment completed",
			zap.String("order_id", p.OrderID),
			zap.String("reference", p.Reference),
			zap.String("provider_payment_id", p.ProviderPaymentID),
			zap.Int64("amount_cents", p.AmountCents))

	case orders.EventPaymentFailed:
		p, err := kafkax.UnwrapPayload[orders.PaymentFailedPayload](env.Payload)
		if err != nil {
			m.log.Warn("malformed payload", zap.String("event", env.EventType), zap.Error(err))
			return nil
		}
		ps, os := orders.MapProviderStatus(p.ProviderStatus)
		m.set(ctx, cachedStatus{
			OrderID:       p.OrderID,
			Reference:     p.Reference,
			PaymentStatus: string(ps),
			OrderStatus:   string(os),
		})
		m.log.Info("payment failed",
			zap.String("order_id", p.OrderID),
			zap.String("reference", p.Reference),
			zap.String("provider_status", p.ProviderStatus))

	default:
		m.log.Debug("ignoring event", zap.String("event", env.EventType))
	}
	return nil
}

func (m *mirror) set(ctx context.Context, s cachedStatus) {
	b, err := json.Marshal(s)
	if err != nil {
		return
	}
	m.cache.Set(ctx, s.OrderID, string(b))
}

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	log := logx.New(cfg.ServiceName + "-events")
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	m := &mirror{cache: &redisx.StatusCache{RDB: rdb}, log: log}

	group := getenv("EVENTS_GROUP", "order-events-mirror")
	workers := mustAtoi(os.Getenv("EVENTS_WORKERS"), 4)

	topics := []string{orders.TopicOrderCreated, orders.TopicPaymentCompleted, orders.TopicPaymentFailed}
	for _, topic := range topics {
		cons := kafkax.NewConsumer(cfg.KafkaBrokers, group, topic, workers, log)
		go func(topic string) {
			log.Info("consumer started", zap.String("group", group), zap.String("topic", topic))
			if err := cons.Start(ctx, m.handle); err != nil {
				log.Error("consumer exit", zap.String("topic", topic), zap.Error(err))
				cancel()
			}
		}(topic)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
		log.Info("shutting down")
		cancel()
	case <-ctx.Done():
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func mustAtoi(s string, def int) int {
	if s == "" {
		return def
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}
