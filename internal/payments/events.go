package payments

import (
	"encoding/json"
	"time"
)

const (
	EventTransactionCreated  = "TransactionCreated"
	EventTransactionSettled  = "TransactionSettled"
	EventTransactionRejected = "TransactionRejected"
)

type Envelope struct {
	EventID       string          `json:"event_id"`      // uuid
	EventType     string          `json:"event_type"`    // salah satu const di atas
	EventVersion  int             `json:"event_version"` // 1
	OccurredAt    time.Time       `json:"occurred_at"`   // RFC3339
	Producer      string          `json:"producer"`      // e.g., "payments-api"
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // biasanya transaction_id
	Payload       json.RawMessage `json:"payload"`
}

// ---- Payload tipe per event ----

type EventItem struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
}

type TransactionCreatedPayload struct {
	TransactionID string      `json:"transaction_id"`
	CustomerEmail string      `json:"customer_email"`
	TotalCents    int         `json:"total_cents"`
	Items         []EventItem `json:"items"`
}

type TransactionSettledPayload struct {
	TransactionID    string `json:"transaction_id"`
	GatewayPaymentID string `json:"gateway_payment_id"`
	TotalCents       int    `json:"total_cents"`
}

type TransactionRejectedPayload struct {
	TransactionID string `json:"transaction_id"`
	FinalStatus   string `json:"final_status"` // DECLINED | VOIDED | ERROR
	Reason        string `json:"reason,omitempty"`
}
