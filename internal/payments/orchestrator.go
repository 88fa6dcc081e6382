package payments

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	log "github.com/sirupsen/logrus"

	kafkax "github.com/davshn/w-technical-test-sub000/internal/kafka"
	"github.com/davshn/w-technical-test-sub000/internal/metrics"
)

// CardToken adalah satu-satunya artefak yang boleh disimpan dari data kartu.
type CardToken struct {
	ID       string `json:"id"`
	Brand    string `json:"brand"`
	LastFour string `json:"last_four"`
}

type ChargeInput struct {
	Reference       string // transaction id lokal
	AmountInCents   int
	CustomerEmail   string
	CardToken       string
	AcceptanceToken string
	Installments    int
}

type Charge struct {
	ID     string
	Status string
}

// PaymentGateway: tiga operasi remote yang dibutuhkan orchestrator.
// Tokenisasi kartu tidak lewat sini; itu urusan handler tokens.
type PaymentGateway interface {
	FetchAcceptanceToken(ctx context.Context) (string, error)
	CreateCharge(ctx context.Context, in ChargeInput) (Charge, error)
	QueryStatus(ctx context.Context, gatewayPaymentID string) (string, error)
}

type TransactionStore interface {
	Create(ctx context.Context, customerEmail string, totalCents int, items []OrderItem) (Transaction, error)
	AttachGatewayReference(ctx context.Context, transactionID, gatewayPaymentID string) error
	UpdateStatus(ctx context.Context, transactionID string, from, to Status) error
	Get(ctx context.Context, transactionID string) (Transaction, error)
	List(ctx context.Context) ([]Transaction, error)
}

type StockLedger interface {
	DecrementAll(ctx context.Context, items []LineItem) error
}

// Publisher dipenuhi oleh kafkax.Producer.
type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

type CreateInput struct {
	CustomerEmail string
	CardToken     string
	Installments  int
	Items         []ItemInput
	TraceID       string
}

// Orchestrator memiliki state machine transaksi; satu-satunya jalur yang
// boleh mengubah status dan stok bersamaan.
type Orchestrator struct {
	Builder          *Builder
	Store            TransactionStore
	Ledger           StockLedger
	Gateway          PaymentGateway
	CreatedProducer  Publisher
	SettledProducer  Publisher
	RejectedProducer Publisher
	ServiceName      string
}

// CreateTransaction: build -> persist PENDING -> charge di gateway -> attach
// reference. Kegagalan gateway meninggalkan transaksi PENDING tanpa reference;
// jangan pernah di-mark APPROVED atau dibuang diam-diam.
func (o *Orchestrator) CreateTransaction(ctx context.Context, in CreateInput) (Transaction, error) {
	order, err := o.Builder.Build(ctx, in.CustomerEmail, in.Items)
	if err != nil {
		// gagal validasi = belum ada I/O gateway, belum ada row
		return Transaction{}, err
	}
	if in.CardToken == "" {
		return Transaction{}, &ValidationError{Msg: "card_token is required"}
	}
	installments := in.Installments
	if installments < 1 {
		installments = 1
	}

	txn, err := o.Store.Create(ctx, order.CustomerEmail, order.TotalCents, order.Items)
	if err != nil {
		return Transaction{}, err
	}

	acceptance, err := o.Gateway.FetchAcceptanceToken(ctx)
	if err != nil {
		metrics.TransactionsTotal.WithLabelValues("gateway_failed").Inc()
		return txn, err
	}

	charge, err := o.Gateway.CreateCharge(ctx, ChargeInput{
		Reference:       txn.ID,
		AmountInCents:   txn.TotalCents,
		CustomerEmail:   txn.CustomerEmail,
		CardToken:       in.CardToken,
		AcceptanceToken: acceptance,
		Installments:    installments,
	})
	if err != nil {
		metrics.TransactionsTotal.WithLabelValues("gateway_failed").Inc()
		return txn, err
	}

	if err := o.Store.AttachGatewayReference(ctx, txn.ID, charge.ID); err != nil {
		return txn, err
	}
	txn.GatewayPaymentID = charge.ID

	o.publishCreated(txn, in.TraceID)
	metrics.TransactionsTotal.WithLabelValues("created").Inc()
	log.WithFields(log.Fields{
		"transaction_id": txn.ID,
		"gateway_id":     charge.ID,
		"total_cents":    txn.TotalCents,
	}).Info("transaction created, awaiting settlement")
	return txn, nil
}

// ConfirmTransaction idempotent & aman dipanggil dari poller maupun handler.
// Hanya verdict terminal dari gateway yang mengubah status lokal.
func (o *Orchestrator) ConfirmTransaction(ctx context.Context, transactionID string) (Transaction, error) {
	txn, err := o.Store.Get(ctx, transactionID)
	if err != nil {
		return Transaction{}, err
	}

	switch {
	case txn.Status == StatusFinished:
		// sudah settle; no-op success
		return txn, nil
	case txn.Status != StatusPending:
		// terminal, atau APPROVED sedang di-settle jalur lain; hanya pemenang
		// CAS keluar dari PENDING yang boleh menyentuh stok
		return txn, ErrStateConflict
	}

	if txn.GatewayPaymentID == "" {
		// charge belum pernah tercatat di gateway; tidak ada yang bisa di-query
		return txn, ErrPaymentPending
	}

	gwStatus, err := o.Gateway.QueryStatus(ctx, txn.GatewayPaymentID)
	if err != nil {
		// status lokal tidak berubah; aman di-retry
		return txn, err
	}

	switch gwStatus {
	case string(StatusPending):
		return txn, ErrPaymentPending
	case string(StatusApproved):
		if err := o.Store.UpdateStatus(ctx, txn.ID, StatusPending, StatusApproved); err != nil {
			// kalah race dengan konfirmasi lain; yang menang yang urus stok
			return txn, err
		}
		txn.Status = StatusApproved
		return o.settle(ctx, txn)
	default:
		final := mapGatewayStatus(gwStatus)
		if err := o.Store.UpdateStatus(ctx, txn.ID, StatusPending, final); err != nil {
			return txn, err
		}
		txn.Status = final
		// stok tidak pernah disentuh di path ini
		o.publishRejected(txn, "gateway reported "+gwStatus)
		metrics.TransactionsTotal.WithLabelValues("rejected").Inc()
		log.WithFields(log.Fields{
			"transaction_id": txn.ID,
			"status":         final,
		}).Info("transaction rejected by gateway")
		return txn, nil
	}
}

// settle menurunkan stok setiap line item (urutan tercatat, satu DB tx) lalu
// transisi ke FINISHED. Kekurangan stok -> ERROR, tidak ada decrement parsial.
func (o *Orchestrator) settle(ctx context.Context, txn Transaction) (Transaction, error) {
	if err := o.Ledger.DecrementAll(ctx, txn.Items); err != nil {
		var stockErr *InsufficientStockError
		if errors.As(err, &stockErr) {
			metrics.StockDecrements.WithLabelValues("insufficient").Inc()
			if uerr := o.Store.UpdateStatus(ctx, txn.ID, StatusApproved, StatusError); uerr != nil {
				return txn, uerr
			}
			txn.Status = StatusError
			o.publishRejected(txn, err.Error())
			metrics.TransactionsTotal.WithLabelValues("stock_error").Inc()
			log.WithFields(log.Fields{
				"transaction_id": txn.ID,
				"product_id":     stockErr.ProductID,
			}).Warn("stock moved since order time, transaction errored")
			return txn, err
		}
		// error infra: biarkan APPROVED, confirm berikutnya resume dari sini
		return txn, err
	}
	metrics.StockDecrements.WithLabelValues("ok").Inc()

	if err := o.Store.UpdateStatus(ctx, txn.ID, StatusApproved, StatusFinished); err != nil {
		return txn, err
	}
	txn.Status = StatusFinished
	o.publishSettled(txn)
	metrics.TransactionsTotal.WithLabelValues("finished").Inc()
	log.WithField("transaction_id", txn.ID).Info("transaction settled")
	return txn, nil
}

func (o *Orchestrator) GetTransaction(ctx context.Context, transactionID string) (Transaction, error) {
	return o.Store.Get(ctx, transactionID)
}

func (o *Orchestrator) ListTransactions(ctx context.Context) ([]Transaction, error) {
	return o.Store.List(ctx)
}

func mapGatewayStatus(s string) Status {
	switch s {
	case string(StatusDeclined):
		return StatusDeclined
	case string(StatusVoided):
		return StatusVoided
	default:
		return StatusError
	}
}

func (o *Orchestrator) publishCreated(txn Transaction, trace string) {
	if o.CreatedProducer == nil {
		return
	}
	items := make([]EventItem, 0, len(txn.Items))
	for _, it := range txn.Items {
		items = append(items, EventItem{ProductID: it.ProductID, Qty: it.Qty})
	}
	o.publish(o.CreatedProducer, EventTransactionCreated, txn.ID, trace, TransactionCreatedPayload{
		TransactionID: txn.ID,
		CustomerEmail: txn.CustomerEmail,
		TotalCents:    txn.TotalCents,
		Items:         items,
	})
}

func (o *Orchestrator) publishSettled(txn Transaction) {
	if o.SettledProducer == nil {
		return
	}
	o.publish(o.SettledProducer, EventTransactionSettled, txn.ID, "", TransactionSettledPayload{
		TransactionID:    txn.ID,
		GatewayPaymentID: txn.GatewayPaymentID,
		TotalCents:       txn.TotalCents,
	})
}

func (o *Orchestrator) publishRejected(txn Transaction, reason string) {
	if o.RejectedProducer == nil {
		return
	}
	o.publish(o.RejectedProducer, EventTransactionRejected, txn.ID, "", TransactionRejectedPayload{
		TransactionID: txn.ID,
		FinalStatus:   string(txn.Status),
		Reason:        reason,
	})
}

func (o *Orchestrator) publish(p Publisher, eventType, transactionID, trace string, payload any) {
	ev := Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      o.ServiceName,
		TraceID:       trace,
		CorrelationID: transactionID,
		Payload:       kafkax.MustMarshal(payload),
	}
	p.Publish(PartitionKey(transactionID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
