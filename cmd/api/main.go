package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/ariefcatur/rushbasket/internal/config"
	"github.com/ariefcatur/rushbasket/internal/httpx"
	"github.com/ariefcatur/rushbasket/internal/inventory"
	kafkax "github.com/ariefcatur/rushbasket/internal/kafka"
	"github.com/ariefcatur/rushbasket/internal/logging"
	"github.com/ariefcatur/rushbasket/internal/metrics"
	"github.com/ariefcatur/rushbasket/internal/orders"
	"github.com/ariefcatur/rushbasket/internal/postgres"
	"github.com/ariefcatur/rushbasket/internal/redisx"
	"github.com/ariefcatur/rushbasket/internal/stock"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := logging.New(cfg.ServiceName, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()
	if cfg.ThresholdsOverlap() {
		logger.Warn("out-of-stock threshold >= low-stock threshold, low stock alerts will never fire",
			zap.Int("low", cfg.LowStockThreshold), zap.Int("out", cfg.OutOfStockThreshold))
	}
	metrics.Register()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN, int32(cfg.PostgresMaxConns))
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()
	if err := postgres.Migrate(ctx, db); err != nil {
		logger.Fatal("db migrate", zap.Error(err))
	}

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producers
	prodCreated := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderCreated, 1024, logger)
	prodCreated.Start()
	prodStatus := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderStatusChanged, 1024, logger)
	prodStatus.Start()
	prodAlert := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicStockAlert, 256, logger)
	prodAlert.Start()

	notifier := &stock.Notifier{
		Thresholds: cfg.Thresholds(),
		Publisher:  &inventory.AlertPublisher{Producer: prodAlert, ServiceName: cfg.ServiceName},
		Log:        logger,
		OnFire:     func(k stock.Kind) { metrics.StockAlertsTotal.WithLabelValues(string(k)).Inc() },
	}

	// Repos & handlers
	router := httpx.NewRouter(logger)
	(&httpx.OrdersHandler{
		Repo:           &orders.Repo{DB: db, Shipping: cfg.ShippingPolicy()},
		Reservations:   &orders.ReservationRepo{DB: db},
		Producer:       prodCreated,
		StatusProducer: prodStatus,
		Notifier:       notifier,
		Redis:          rdb,
		Service:        cfg.ServiceName,
		Log:            logger,
	}).Register(router)
	(&httpx.ProductsHandler{
		Repo:     &orders.ProductRepo{DB: db},
		Notifier: notifier,
		Log:      logger,
	}).Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Info("HTTP listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("shutting down")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	// close inboxes so the loops flush, then wait for them
	for _, p := range []*kafkax.Producer{prodCreated, prodStatus, prodAlert} {
		p.Close()
	}
	for _, p := range []*kafkax.Producer{prodCreated, prodStatus, prodAlert} {
		p.WaitClosed()
	}
	cancel()
}
