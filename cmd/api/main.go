package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/example/storefront/internal/catalog"
	"github.com/example/storefront/internal/checkout"
	"github.com/example/storefront/internal/config"
	"github.com/example/storefront/internal/httpx"
	kafkax "github.com/example/storefront/internal/kafka"
	"github.com/example/storefront/internal/logx"
	"github.com/example/storefront/internal/orders"
	"github.com/example/storefront/internal/payments"
	"github.com/example/storefront/internal/postgres"
	"github.com/example/storefront/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logx.New(cfg.ServiceName)
	defer func() { _ = log.Sync() }()

	if err := cfg.Validate(); err != nil {
		log.Fatal("config", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	prodCreated := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderCreated, 1024, log)
	prodCreated.Start(ctx)
	prodCompleted := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicPaymentCompleted, 1024, log)
	prodCompleted.Start(ctx)
	prodFailed := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicPaymentFailed, 1024, log)
	prodFailed.Start(ctx)

	catalogRepo := &catalog.Repo{DB: db}
	orderRepo := &orders.Repo{DB: db}
	cache := &redisx.StatusCache{RDB: rdb}

	checkoutSvc := &checkout.Service{
		Catalog:     catalogRepo,
		Orders:      orderRepo,
		Events:      prodCreated,
		Shipping:    cfg.Shipping,
		ServiceName: cfg.ServiceName,
		Log:         log,
	}

	provider := payments.NewClient(cfg.ProviderBaseURL, cfg.ProviderToken)

	prefSvc := &payments.PreferenceService{
		Orders:   orderRepo,
		Provider: provider,
		SiteURL:  cfg.SiteURL,
		Currency: cfg.Currency,
		Log:      log,
	}

	reconcileSvc := &payments.ReconcileService{
		Provider:        provider,
		Orders:          orderRepo,
		Stock:           catalogRepo,
		Locks:           &redisx.Locker{RDB: rdb},
		Cache:           cache,
		EventsCompleted: prodCompleted,
		EventsFailed:    prodFailed,
		ServiceName:     cfg.ServiceName,
		Log:             log,
	}

	router := httpx.NewRouter()
	(&httpx.OrdersHandler{
		Checkout: checkoutSvc,
		Orders:   orderRepo,
		Products: catalogRepo,
		Cache:    cache,
		Log:      log,
	}).Register(router)
	(&httpx.PaymentsHandler{
		Preferences: prefSvc,
		Reconcile:   reconcileSvc,
		Log:         log,
	}).Register(router)
	(&httpx.AdminHandler{
		Inventory: catalogRepo,
		Orders:    orderRepo,
		Log:       log,
	}).Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		log.Info("http listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("listen", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)

	// close inboxes first so the producers flush, then stop their loops
	prodCreated.Close()
	prodCompleted.Close()
	prodFailed.Close()
	prodCreated.WaitClosed()
	prodCompleted.WaitClosed()
	prodFailed.WaitClosed()
}
