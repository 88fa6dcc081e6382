package settlement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	log "github.com/sirupsen/logrus"

	kafkax "github.com/davshn/w-technical-test-sub000/internal/kafka"
	"github.com/davshn/w-technical-test-sub000/internal/payments"
	"github.com/davshn/w-technical-test-sub000/internal/redisx"
)

// Confirmer dipenuhi oleh payments.Orchestrator.
type Confirmer interface {
	ConfirmTransaction(ctx context.Context, transactionID string) (payments.Transaction, error)
}

// Service menunggu verdict gateway untuk transaksi baru. Gateway yang
// diamati hanya menyediakan polling, tidak ada webhook; jadi worker ini
// poll QueryStatus (lewat ConfirmTransaction yang idempotent) sampai
// terminal atau attempts habis.
type Service struct {
	Confirmer    Confirmer
	Redis        *redis.Client
	ServiceName  string
	PollInterval time.Duration
	PollAttempts int
}

// HandleTransactionCreated: dipasang sebagai handler consumer.
func (s *Service) HandleTransactionCreated(ctx context.Context, m kafkago.Message) error {
	// 1) decode envelope
	var env payments.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return err
	}
	if env.EventType != payments.EventTransactionCreated {
		return nil
	} // ignore

	// 2) dedup via Redis (pakai event_id)
	if s.Redis != nil {
		dkey := fmt.Sprintf(redisx.KeyDedup, "settlement", env.EventID)
		exists, _ := redisx.Exists(ctx, s.Redis, dkey)
		if exists {
			return nil
		}
		_ = s.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err()
	}

	// 3) decode payload
	p, err := kafkax.UnwrapPayload[payments.TransactionCreatedPayload](env.Payload)
	if err != nil {
		return err
	}

	return s.pollUntilSettled(ctx, p.TransactionID)
}

func (s *Service) pollUntilSettled(ctx context.Context, transactionID string) error {
	for attempt := 1; attempt <= s.PollAttempts; attempt++ {
		txn, err := s.Confirmer.ConfirmTransaction(ctx, transactionID)
		switch {
		case err == nil:
			log.WithFields(log.Fields{
				"transaction_id": transactionID,
				"status":         txn.Status,
				"attempts":       attempt,
			}).Info("transaction settled")
			return nil
		case errors.Is(err, payments.ErrStateConflict):
			// sudah dikonfirmasi jalur lain (PUT manual atau worker lain)
			return nil
		case errors.Is(err, payments.ErrPaymentPending):
			// verdict belum ada; tunggu lalu poll lagi
		default:
			var stockErr *payments.InsufficientStockError
			if errors.As(err, &stockErr) {
				// status ERROR sudah tercatat; tidak ada yang bisa di-retry
				return nil
			}
			log.WithError(err).WithField("transaction_id", transactionID).
				Warn("confirm attempt failed, will retry")
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(s.PollInterval):
		}
	}

	// biarkan PENDING; masih bisa dikonfirmasi manual lewat PUT /transactions/{id}
	log.WithField("transaction_id", transactionID).
		Warn("poll attempts exhausted, transaction left pending")
	return nil
}
