package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/davshn/w-technical-test-sub000/internal/gateway"
	"github.com/davshn/w-technical-test-sub000/internal/payments"
	"github.com/davshn/w-technical-test-sub000/internal/redisx"
)

// CardTokenizer dipenuhi oleh gateway.Client.
type CardTokenizer interface {
	TokenizeCard(ctx context.Context, card payments.Card) (payments.CardToken, error)
}

type TransactionsHandler struct {
	Orch      *payments.Orchestrator
	Tokenizer CardTokenizer
	Redis     *redis.Client
}

type CreateTransactionReq struct {
	CustomerEmail string               `json:"customer_email"`
	CardToken     string               `json:"card_token"`
	Installments  int                  `json:"installments"`
	Products      []payments.ItemInput `json:"products"`
}

type TokenizeCardReq struct {
	Number     string `json:"number"`
	CVC        string `json:"cvc"`
	ExpMonth   string `json:"exp_month"`
	ExpYear    string `json:"exp_year"`
	CardHolder string `json:"card_holder"`
}

type LineItemResp struct {
	ProductID  string `json:"product_id"`
	Quantity   int    `json:"quantity"`
	PriceCents int    `json:"price_cents"`
}

type TransactionResp struct {
	ID               string         `json:"id"`
	CustomerEmail    string         `json:"customer_email"`
	Status           string         `json:"status"`
	TotalCents       int            `json:"total_cents"`
	GatewayPaymentID string         `json:"gateway_payment_id,omitempty"`
	Items            []LineItemResp `json:"items,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
}

func (h *TransactionsHandler) Register(r *chi.Mux) {
	r.Post("/transactions", h.createTransaction)
	r.Put("/transactions/{id}", h.confirmTransaction)
	r.Get("/transactions", h.listTransactions)
	r.Get("/transactions/{id}", h.getTransaction)
	r.Post("/tokens/cards", h.tokenizeCard)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func toResp(t payments.Transaction) TransactionResp {
	resp := TransactionResp{
		ID:               t.ID,
		CustomerEmail:    t.CustomerEmail,
		Status:           string(t.Status),
		TotalCents:       t.TotalCents,
		GatewayPaymentID: t.GatewayPaymentID,
		CreatedAt:        t.CreatedAt,
	}
	for _, it := range t.Items {
		resp.Items = append(resp.Items, LineItemResp{
			ProductID: it.ProductID, Quantity: it.Qty, PriceCents: it.PriceCents,
		})
	}
	return resp
}

func (h *TransactionsHandler) createTransaction(w http.ResponseWriter, r *http.Request) {
	var req CreateTransactionReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	txn, err := h.Orch.CreateTransaction(ctx, payments.CreateInput{
		CustomerEmail: req.CustomerEmail,
		CardToken:     req.CardToken,
		Installments:  req.Installments,
		Items:         req.Products,
		TraceID:       r.Header.Get("X-Request-Id"),
	})
	if err != nil {
		var gerr *gateway.Error
		if errors.As(err, &gerr) && txn.ID != "" {
			// transaksi tetap PENDING tanpa reference; kembalikan row-nya
			writeJSON(w, http.StatusBadGateway, map[string]any{
				"error":       "payment gateway unavailable, transaction left pending",
				"transaction": toResp(txn),
			})
			return
		}
		h.writeError(w, err)
		return
	}

	h.cacheTransaction(ctx, txn)
	writeJSON(w, http.StatusCreated, toResp(txn))
}

func (h *TransactionsHandler) confirmTransaction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing id"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	txn, err := h.Orch.ConfirmTransaction(ctx, id)
	if err != nil {
		switch {
		case errors.Is(err, payments.ErrPaymentPending):
			writeJSON(w, http.StatusConflict, map[string]any{
				"error":       "payment still pending, retry later",
				"transaction": toResp(txn),
			})
		case errors.Is(err, payments.ErrStateConflict):
			writeJSON(w, http.StatusConflict, map[string]any{
				"error":       "transaction already settled",
				"transaction": toResp(txn),
			})
		default:
			var stockErr *payments.InsufficientStockError
			if errors.As(err, &stockErr) {
				h.cacheTransaction(ctx, txn)
				writeJSON(w, http.StatusConflict, map[string]any{
					"error":       err.Error(),
					"transaction": toResp(txn),
				})
				return
			}
			h.writeError(w, err)
		}
		return
	}

	h.cacheTransaction(ctx, txn)
	writeJSON(w, http.StatusOK, toResp(txn))
}

func (h *TransactionsHandler) getTransaction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	// 1) coba cache
	key := fmt.Sprintf(redisx.KeyTxnStatus, id)
	if h.Redis != nil {
		if s, err := h.Redis.Get(ctx, key).Result(); err == nil && s != "" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(s))
			return
		}
	}

	// 2) fallback DB
	txn, err := h.Orch.GetTransaction(ctx, id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.cacheTransaction(ctx, txn)
	writeJSON(w, http.StatusOK, toResp(txn))
}

func (h *TransactionsHandler) listTransactions(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	txns, err := h.Orch.ListTransactions(ctx)
	if err != nil {
		h.writeError(w, err)
		return
	}
	out := make([]TransactionResp, 0, len(txns))
	for _, t := range txns {
		out = append(out, toResp(t))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *TransactionsHandler) tokenizeCard(w http.ResponseWriter, r *http.Request) {
	var req TokenizeCardReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	card := payments.Card{
		Number:   req.Number,
		CVC:      req.CVC,
		ExpMonth: req.ExpMonth,
		ExpYear:  req.ExpYear,
		Holder:   req.CardHolder,
	}
	// validasi murni dulu, jangan buang network I/O untuk input invalid
	if fieldErrs := payments.ValidateCard(card); len(fieldErrs) > 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{"errors": fieldErrs})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	token, err := h.Tokenizer.TokenizeCard(ctx, card)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, token)
}

// writeError memetakan taxonomy error domain ke status HTTP.
func (h *TransactionsHandler) writeError(w http.ResponseWriter, err error) {
	var (
		valErr      *payments.ValidationError
		notFound    *payments.ProductNotFoundError
		stock       *payments.InsufficientStockError
		gatewayFail *gateway.Error
	)
	switch {
	case errors.As(err, &valErr):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": valErr.Msg})
	case errors.As(err, &notFound), errors.As(err, &stock):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, payments.ErrTransactionNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "transaction not found"})
	case errors.Is(err, payments.ErrStateConflict):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.As(err, &gatewayFail):
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}

func (h *TransactionsHandler) cacheTransaction(ctx context.Context, txn payments.Transaction) {
	if h.Redis == nil || txn.ID == "" {
		return
	}
	b, err := json.Marshal(toResp(txn))
	if err != nil {
		return
	}
	key := fmt.Sprintf(redisx.KeyTxnStatus, txn.ID)
	_ = h.Redis.Set(ctx, key, b, redisx.TTLStatusCache).Err()
}
