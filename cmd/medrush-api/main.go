// README: Entry point; loads config, wires services, starts HTTP server and
// background sweeps.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"medrush/internal/config"
	httptransport "medrush/internal/http"
	"medrush/internal/infra"
	"medrush/internal/logging"
	"medrush/internal/modules/assignment"
	"medrush/internal/modules/order"
	"medrush/internal/modules/rider"
	"medrush/internal/notify"
)

func main() {
	_ = godotenv.Load()

	log := logging.New()
	defer func() { _ = log.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("load config", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		log.Fatal("connect database", zap.Error(err))
	}
	defer dbPool.Close()

	redisClient := infra.NewRedis(cfg.Redis.Addr)

	var notifier notify.Notifier
	if cfg.Kafka.Brokers != "" {
		writer := infra.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer func() { _ = writer.Close() }()
		notifier = notify.NewKafkaNotifier(writer)
	} else {
		notifier = notify.NewLogNotifier(log)
	}

	feed := assignment.NewRedisFeed(redisClient)

	riderStore := rider.NewPGStore(dbPool)
	riderSvc := rider.NewService(riderStore, feed)

	orderStore := order.NewPGStore(dbPool)
	orderSvc := order.NewService(orderStore, riderSvc, notifier, log).
		WithMaxRetries(cfg.Lifecycle.MaxRetries)

	assignmentSvc := assignment.NewService(orderSvc, feed, log)

	handler := httptransport.NewRouter(httptransport.RouterDeps{
		Orders:     orderSvc,
		Riders:     riderSvc,
		Assignment: assignmentSvc,
		JWTSecret:  cfg.Auth.JWTSecret,
		Log:        log,
	})

	go orderSvc.RunAutoConfirm(ctx, cfg.Lifecycle)

	server := &http.Server{Addr: cfg.HTTP.Addr, Handler: handler}
	go func() {
		<-ctx.Done()
		_ = server.Shutdown(context.Background())
	}()

	log.Info("listening", zap.String("addr", cfg.HTTP.Addr))
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("serve", zap.Error(err))
	}
}
