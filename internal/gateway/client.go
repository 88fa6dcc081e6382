package gateway

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	log "github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/davshn/w-technical-test-sub000/internal/config"
	"github.com/davshn/w-technical-test-sub000/internal/metrics"
	"github.com/davshn/w-technical-test-sub000/internal/payments"
)

// Client membungkus empat operasi remote gateway di balik satu base URL +
// public key. Signature integrity dihitung di sini, tidak di tempat lain.
type Client struct {
	http     *resty.Client
	breaker  *gobreaker.CircuitBreaker
	secret   string
	currency string
}

func New(cfg config.GatewayConfig) *Client {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "payment-gateway",
		MaxRequests: 3,
		Interval:    15 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && ratio >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.GatewayBreakerState.Set(breakerStateValue(to))
			log.WithFields(log.Fields{"from": from.String(), "to": to.String()}).
				Info("gateway circuit breaker state changed")
		},
	})
	return &Client{
		http: resty.New().
			SetBaseURL(cfg.BaseURL).
			SetTimeout(cfg.Timeout).
			SetAuthToken(cfg.PublicKey).
			SetRetryCount(0), // retry diputuskan caller, bukan di transport
		breaker:  cb,
		secret:   cfg.IntegritySecret,
		currency: cfg.Currency,
	}
}

// FetchAcceptanceToken: GET merchant info, ambil presigned acceptance token.
// Idempotent, aman di-retry.
func (c *Client) FetchAcceptanceToken(ctx context.Context) (string, error) {
	var out merchantResponse
	err := c.do(ctx, "fetch_acceptance_token", func() (*resty.Response, error) {
		return c.http.R().SetContext(ctx).SetResult(&out).Get("/merchants/me")
	})
	if err != nil {
		return "", err
	}
	if out.Data.PresignedAcceptance.AcceptanceToken == "" {
		return "", &Error{Op: "fetch_acceptance_token", Retryable: true,
			Err: fmt.Errorf("empty acceptance token in merchant response")}
	}
	return out.Data.PresignedAcceptance.AcceptanceToken, nil
}

// TokenizeCard mengirim data kartu mentah sekali; hanya token yang disimpan.
// Tidak aman di-retry buta (bisa dobel tokenisasi), jadi kegagalan bersifat
// terminal untuk attempt ini.
func (c *Client) TokenizeCard(ctx context.Context, card payments.Card) (payments.CardToken, error) {
	req := tokenizeCardRequest{
		Number:     card.Number,
		CVC:        card.CVC,
		ExpMonth:   card.ExpMonth,
		ExpYear:    card.ExpYear,
		CardHolder: card.Holder,
	}
	var out tokenizeCardResponse
	err := c.do(ctx, "tokenize_card", func() (*resty.Response, error) {
		return c.http.R().SetContext(ctx).SetBody(req).SetResult(&out).Post("/tokens/cards")
	})
	if err != nil {
		return payments.CardToken{}, err
	}
	return payments.CardToken{ID: out.Data.ID, Brand: out.Data.Brand, LastFour: out.Data.LastFour}, nil
}

// CreateCharge: body membawa signature yang mengikat reference + amount,
// supaya amount tidak bisa diutak-atik di jalan. Tidak idempotent di gateway;
// orchestrator jamin tidak dipanggil dua kali untuk transaksi yang sudah
// punya reference.
func (c *Client) CreateCharge(ctx context.Context, in payments.ChargeInput) (payments.Charge, error) {
	req := chargeRequest{
		AcceptanceToken: in.AcceptanceToken,
		AmountInCents:   in.AmountInCents,
		Currency:        c.currency,
		CustomerEmail:   in.CustomerEmail,
		Reference:       in.Reference,
		Signature:       c.Signature(in.Reference, in.AmountInCents),
		PaymentMethod: paymentMethod{
			Type:         "CARD",
			Token:        in.CardToken,
			Installments: in.Installments,
		},
	}
	var out chargeResponse
	err := c.do(ctx, "create_charge", func() (*resty.Response, error) {
		return c.http.R().SetContext(ctx).SetBody(req).SetResult(&out).Post("/transactions")
	})
	if err != nil {
		return payments.Charge{}, err
	}
	status := out.Data.Status
	if status == "" {
		status = StatusPending
	}
	return payments.Charge{ID: out.Data.ID, Status: status}, nil
}

// QueryStatus: GET, idempotent, aman di-poll berulang.
func (c *Client) QueryStatus(ctx context.Context, gatewayPaymentID string) (string, error) {
	var out chargeResponse
	err := c.do(ctx, "query_status", func() (*resty.Response, error) {
		return c.http.R().SetContext(ctx).SetResult(&out).Get("/transactions/" + gatewayPaymentID)
	})
	if err != nil {
		return "", err
	}
	return out.Data.Status, nil
}

// Signature = hex(SHA256(reference || amount_in_cents || currency || secret)).
// Field set mengikuti kontrak gateway; kalau dokumentasi berubah, cukup
// ubah di sini.
func (c *Client) Signature(reference string, amountInCents int) string {
	h := sha256.Sum256([]byte(reference + strconv.Itoa(amountInCents) + c.currency + c.secret))
	return hex.EncodeToString(h[:])
}

// do menjalankan satu call lewat breaker dan menormalkan kegagalan jadi *Error.
func (c *Client) do(ctx context.Context, op string, fn func() (*resty.Response, error)) error {
	_, err := c.breaker.Execute(func() (interface{}, error) {
		resp, err := fn()
		if err != nil {
			// network / timeout: retryable
			return nil, &Error{Op: op, Retryable: true, Err: err}
		}
		if resp.IsError() {
			code := resp.StatusCode()
			return nil, &Error{Op: op, StatusCode: code, Retryable: code >= 500}
		}
		return nil, nil
	})
	if err != nil {
		metrics.GatewayRequests.WithLabelValues(op, "error").Inc()
		if gerr, ok := err.(*Error); ok {
			return gerr
		}
		// breaker open / too many requests di half-open: perlakukan retryable
		return &Error{Op: op, Retryable: true, Err: err}
	}
	metrics.GatewayRequests.WithLabelValues(op, "ok").Inc()
	return nil
}

func breakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateOpen:
		return 1
	case gobreaker.StateHalfOpen:
		return 2
	default:
		return 0
	}
}
