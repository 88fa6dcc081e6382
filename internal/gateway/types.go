package gateway

import "fmt"

// Statuses reported by the gateway for a charge.
const (
	StatusPending  = "PENDING"
	StatusApproved = "APPROVED"
	StatusDeclined = "DECLINED"
	StatusVoided   = "VOIDED"
	StatusError    = "ERROR"
)

// Error membedakan 4xx (non-retryable) dari network/5xx/timeout (retryable).
type Error struct {
	Op         string
	StatusCode int
	Retryable  bool
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("gateway %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("gateway %s: status %d", e.Op, e.StatusCode)
}

func (e *Error) Unwrap() error { return e.Err }

// ---- wire shapes ----

type merchantResponse struct {
	Data struct {
		PresignedAcceptance struct {
			AcceptanceToken string `json:"acceptance_token"`
			Permalink       string `json:"permalink"`
			Type            string `json:"type"`
		} `json:"presigned_acceptance"`
	} `json:"data"`
}

type tokenizeCardRequest struct {
	Number     string `json:"number"`
	CVC        string `json:"cvc"`
	ExpMonth   string `json:"exp_month"`
	ExpYear    string `json:"exp_year"`
	CardHolder string `json:"card_holder"`
}

type tokenizeCardResponse struct {
	Status string `json:"status"`
	Data   struct {
		ID       string `json:"id"`
		Brand    string `json:"brand"`
		LastFour string `json:"last_four"`
	} `json:"data"`
}

type paymentMethod struct {
	Type         string `json:"type"`
	Token        string `json:"token"`
	Installments int    `json:"installments"`
}

type chargeRequest struct {
	AcceptanceToken string        `json:"acceptance_token"`
	AmountInCents   int           `json:"amount_in_cents"`
	Currency        string        `json:"currency"`
	CustomerEmail   string        `json:"customer_email"`
	Reference       string        `json:"reference"`
	Signature       string        `json:"signature"`
	PaymentMethod   paymentMethod `json:"payment_method"`
}

type chargeResponse struct {
	Data struct {
		ID            string `json:"id"`
		Status        string `json:"status"`
		StatusMessage string `json:"status_message"`
	} `json:"data"`
}
