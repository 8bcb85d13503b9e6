package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/ariefcatur/rushbasket/internal/config"
	kafkax "github.com/ariefcatur/rushbasket/internal/kafka"
	"github.com/ariefcatur/rushbasket/internal/logging"
	"github.com/ariefcatur/rushbasket/internal/metrics"
	"github.com/ariefcatur/rushbasket/internal/notify"
	"github.com/ariefcatur/rushbasket/internal/orders"
	"github.com/ariefcatur/rushbasket/internal/redisx"
)

func main() {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	name := cfg.ServiceName + "-notifier"
	logger, err := logging.New(name, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()
	metrics.Register()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	var sender notify.Sender = notify.LogSender{Log: logger}
	if cfg.SMS.GatewayURL != "" {
		sender = &notify.SMSGateway{
			BaseURL:    cfg.SMS.GatewayURL,
			AccountSID: cfg.SMS.AccountSID,
			AuthToken:  cfg.SMS.AuthToken,
			From:       cfg.SMS.From,
			Client:     &http.Client{Timeout: 10 * time.Second},
		}
	} else {
		logger.Warn("SMS_GATEWAY_URL not set, alerts are only logged")
	}
	if len(cfg.SMS.To) == 0 {
		logger.Warn("SMS_TO is empty, alerts have no recipients")
	}

	svc := &notify.Service{
		Redis:       rdb,
		Sender:      notify.NewRateLimited(sender, cfg.SMS.RatePerSec),
		Recipients:  cfg.SMS.To,
		ServiceName: name,
		Log:         logger,
		OnResult:    func(r string) { metrics.AlertDispatchTotal.WithLabelValues(r).Inc() },
	}

	srv := metrics.Serve(cfg.HTTPAddr, logger)

	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.NotifierGroup, orders.TopicStockAlert, cfg.NotifierWorkers, logger)
	done := make(chan struct{})
	go func() {
		defer close(done)
		logger.Info("stock alert consumer started",
			zap.String("group", cfg.NotifierGroup),
			zap.Int("workers", cfg.NotifierWorkers),
		)
		if err := cons.Start(ctx, svc.HandleStockAlert); err != nil {
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
	logger.Info("shutting down notifier")
	cancel()
	<-done
	ctx2, cancel2 := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
}
