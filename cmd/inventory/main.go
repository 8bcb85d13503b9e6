package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/ariefcatur/rushbasket/internal/config"
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
	name := cfg.ServiceName + "-inventory"
	logger, err := logging.New(name, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()
	metrics.Register()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN, int32(cfg.PostgresMaxConns))
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// reserved, rejected and stock alerts go to separate topics
	pOK := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicStockReserved, 1024, logger)
	pOK.Start()
	pRJ := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicStockRejected, 1024, logger)
	pRJ.Start()
	pAlert := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicStockAlert, 256, logger)
	pAlert.Start()

	svc := &inventory.Service{
		Repo:           &orders.ReservationRepo{DB: db},
		Redis:          rdb,
		ProducerOK:     pOK,
		ProducerReject: pRJ,
		Notifier: &stock.Notifier{
			Thresholds: cfg.Thresholds(),
			Publisher:  &inventory.AlertPublisher{Producer: pAlert, ServiceName: name},
			Log:        logger,
			OnFire:     func(k stock.Kind) { metrics.StockAlertsTotal.WithLabelValues(string(k)).Inc() },
		},
		ServiceName: name,
		Log:         logger,
	}

	srv := metrics.Serve(cfg.HTTPAddr, logger)

	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.InventoryGroup, orders.TopicOrderCreated, cfg.InventoryWorkers, logger)
	done := make(chan struct{})
	go func() {
		defer close(done)
		logger.Info("inventory consumer started",
			zap.String("group", cfg.InventoryGroup),
			zap.String("topic", orders.TopicOrderCreated),
			zap.Int("workers", cfg.InventoryWorkers),
		)
		if err := cons.Start(ctx, svc.HandleOrderCreated); err != nil {
			logger.Error("consumer exit", zap.Error(err))
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	logger.Info("shutting down consumer")
	// stops fetching; messages already in a worker finish and commit first
	cancel()
	<-done
	ctx2, cancel2 := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	// nothing publishes any more: flush and close
	for _, p := range []*kafkax.Producer{pOK, pRJ, pAlert} {
		p.Close()
	}
	for _, p := range []*kafkax.Producer{pOK, pRJ, pAlert} {
		p.WaitClosed()
	}
}
