package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/davshn/w-technical-test-sub000/internal/config"
	"github.com/davshn/w-technical-test-sub000/internal/gateway"
	"github.com/davshn/w-technical-test-sub000/internal/httpx"
	kafkax "github.com/davshn/w-technical-test-sub000/internal/kafka"
	"github.com/davshn/w-technical-test-sub000/internal/payments"
	"github.com/davshn/w-technical-test-sub000/internal/postgres"
	"github.com/davshn/w-technical-test-sub000/internal/redisx"
)

func init() {
	log.SetFormatter(&log.JSONFormatter{})
	log.SetLevel(log.InfoLevel)
}

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producers
	pCreated := kafkax.NewProducer(cfg.KafkaBrokers, payments.TopicTransactionCreated, 1024)
	pCreated.Start(ctx)
	pSettled := kafkax.NewProducer(cfg.KafkaBrokers, payments.TopicTransactionSettled, 1024)
	pSettled.Start(ctx)
	pRejected := kafkax.NewProducer(cfg.KafkaBrokers, payments.TopicTransactionRejected, 1024)
	pRejected.Start(ctx)

	// Gateway client & orchestrator
	gw := gateway.New(cfg.Gateway)
	orch := &payments.Orchestrator{
		Builder:          &payments.Builder{Catalog: &payments.Catalog{DB: db}},
		Store:            &payments.Store{DB: db},
		Ledger:           &payments.Ledger{DB: db},
		Gateway:          gw,
		CreatedProducer:  pCreated,
		SettledProducer:  pSettled,
		RejectedProducer: pRejected,
		ServiceName:      cfg.ServiceName,
	}

	router := httpx.NewRouter()
	th := &httpx.TransactionsHandler{
		Orch:      orch,
		Tokenizer: gw,
		Redis:     rdb,
	}
	th.Register(router)

	// HTTP server
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	// graceful shutdown
	go func() {
		log.WithField("addr", cfg.HTTPAddr).Info("HTTP listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	// wait signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	pCreated.Close() // tutup inbox -> flush & close writer
	pSettled.Close()
	pRejected.Close()
	cancel() // stop producer loop
	pCreated.WaitClosed()
	pSettled.WaitClosed()
	pRejected.WaitClosed()
}
