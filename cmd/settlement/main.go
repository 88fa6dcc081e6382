package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/davshn/w-technical-test-sub000/internal/config"
	"github.com/davshn/w-technical-test-sub000/internal/gateway"
	kafkax "github.com/davshn/w-technical-test-sub000/internal/kafka"
	"github.com/davshn/w-technical-test-sub000/internal/payments"
	"github.com/davshn/w-technical-test-sub000/internal/postgres"
	"github.com/davshn/w-technical-test-sub000/internal/redisx"
	"github.com/davshn/w-technical-test-sub000/internal/settlement"
)

func init() {
	log.SetFormatter(&log.JSONFormatter{})
	log.SetLevel(log.InfoLevel)
}

func mustAtoi(s, def string) int {
	if s == "" {
		s = def
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return 1
	}
	return i
}

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Producers untuk hasil settlement
	pSettled := kafkax.NewProducer(cfg.KafkaBrokers, payments.TopicTransactionSettled, 1024)
	pSettled.Start(ctx)
	pRejected := kafkax.NewProducer(cfg.KafkaBrokers, payments.TopicTransactionRejected, 1024)
	pRejected.Start(ctx)

	orch := &payments.Orchestrator{
		Builder:          &payments.Builder{Catalog: &payments.Catalog{DB: db}},
		Store:            &payments.Store{DB: db},
		Ledger:           &payments.Ledger{DB: db},
		Gateway:          gateway.New(cfg.Gateway),
		SettledProducer:  pSettled,
		RejectedProducer: pRejected,
		ServiceName:      cfg.ServiceName + "-settlement",
	}

	// Service
	svc := &settlement.Service{
		Confirmer:    orch,
		Redis:        rdb,
		ServiceName:  cfg.ServiceName + "-settlement",
		PollInterval: cfg.Gateway.PollInterval,
		PollAttempts: cfg.Gateway.PollAttempts,
	}

	// Consumer
	group := getenv("SETTLEMENT_GROUP", "settlement-svc")
	workers := mustAtoi(os.Getenv("SETTLEMENT_WORKERS"), "8")
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, group, payments.TopicTransactionCreated, workers)

	go func() {
		log.WithFields(log.Fields{
			"group":   group,
			"topic":   payments.TopicTransactionCreated,
			"workers": workers,
		}).Info("settlement consumer started")
		if err := cons.Start(ctx, svc.HandleTransactionCreated); err != nil {
			log.WithError(err).Error("consumer exit")
			cancel()
		}
	}()

	// graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down consumer...")
	cancel()
	time.Sleep(500 * time.Millisecond)
	pSettled.Close()
	pRejected.Close()
	pSettled.WaitClosed()
	pRejected.WaitClosed()
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
