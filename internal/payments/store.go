package payments

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store adalah satu-satunya penulis state transaksi.
type Store struct{ DB *pgxpool.Pool }

// Create: insert row transaksi + seluruh line item dalam satu pgx tx,
// supaya crash di tengah tidak meninggalkan transaksi yatim.
func (s *Store) Create(ctx context.Context, customerEmail string, totalCents int, items []OrderItem) (Transaction, error) {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Transaction{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	t := Transaction{
		ID:            uuid.NewString(),
		CustomerEmail: customerEmail,
		TotalCents:    totalCents,
		Status:        StatusPending,
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO transactions(id, customer_email, status, total_cents)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at`,
		t.ID, customerEmail, StatusPending, totalCents,
	).Scan(&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return Transaction{}, err
	}

	for _, it := range items {
		if _, err := tx.Exec(ctx, `
			INSERT INTO line_items(transaction_id, product_id, qty, price_cents)
			VALUES ($1, $2, $3, $4)`,
			t.ID, it.ProductID, it.Qty, it.PriceCents,
		); err != nil {
			return Transaction{}, err
		}
		t.Items = append(t.Items, LineItem{
			TransactionID: t.ID, ProductID: it.ProductID, Qty: it.Qty, PriceCents: it.PriceCents,
		})
	}

	if err := tx.Commit(ctx); err != nil {
		return Transaction{}, err
	}
	return t, nil
}

func (s *Store) AttachGatewayReference(ctx context.Context, transactionID, gatewayPaymentID string) error {
	ct, err := s.DB.Exec(ctx, `
		UPDATE transactions SET gateway_payment_id=$2, updated_at=now()
		WHERE id=$1`, transactionID, gatewayPaymentID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrTransactionNotFound
	}
	return nil
}

// UpdateStatus adalah compare-and-set: hanya menang kalau status masih `from`.
// Dua konfirmasi konkuren untuk transaksi yang sama -> satu yang keluar dari PENDING.
func (s *Store) UpdateStatus(ctx context.Context, transactionID string, from, to Status) error {
	if !CanTransition(from, to) {
		return ErrStateConflict
	}
	ct, err := s.DB.Exec(ctx, `
		UPDATE transactions SET status=$3, updated_at=now()
		WHERE id=$1 AND status=$2`, transactionID, from, to)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrStateConflict
	}
	return nil
}

func (s *Store) Get(ctx context.Context, transactionID string) (Transaction, error) {
	var t Transaction
	var gatewayID *string
	err := s.DB.QueryRow(ctx, `
		SELECT id, customer_email, status, total_cents, gateway_payment_id, created_at, updated_at
		FROM transactions WHERE id=$1`, transactionID).
		Scan(&t.ID, &t.CustomerEmail, &t.Status, &t.TotalCents, &gatewayID, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Transaction{}, ErrTransactionNotFound
	}
	if err != nil {
		return Transaction{}, err
	}
	if gatewayID != nil {
		t.GatewayPaymentID = *gatewayID
	}

	// line items sesuai urutan insert; urutan ini yang dipakai saat decrement
	rows, err := s.DB.Query(ctx, `
		SELECT transaction_id, product_id, qty, price_cents
		FROM line_items WHERE transaction_id=$1 ORDER BY id`, transactionID)
	if err != nil {
		return Transaction{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var li LineItem
		if err := rows.Scan(&li.TransactionID, &li.ProductID, &li.Qty, &li.PriceCents); err != nil {
			return Transaction{}, err
		}
		t.Items = append(t.Items, li)
	}
	return t, rows.Err()
}

func (s *Store) List(ctx context.Context) ([]Transaction, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT id, customer_email, status, total_cents, gateway_payment_id, created_at, updated_at
		FROM transactions ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		var t Transaction
		var gatewayID *string
		if err := rows.Scan(&t.ID, &t.CustomerEmail, &t.Status, &t.TotalCents, &gatewayID, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		if gatewayID != nil {
			t.GatewayPaymentID = *gatewayID
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
