package payments

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Ledger adalah satu-satunya penulis stok. Semua decrement lewat predicate
// kondisional `stock >= n`, bukan read-then-write.
type Ledger struct{ DB *pgxpool.Pool }

func (l *Ledger) Decrement(ctx context.Context, productID string, qty int) error {
	ct, err := l.DB.Exec(ctx, `
		UPDATE products SET stock = stock - $2, updated_at = now()
		WHERE id = $1 AND stock >= $2`, productID, qty)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return l.shortfall(ctx, productID, qty)
	}
	return nil
}

// DecrementAll: seluruh line item dalam satu DB tx, urutan sesuai input.
// Satu item kurang stok -> rollback semuanya, tidak ada prefix yang nyangkut.
func (l *Ledger) DecrementAll(ctx context.Context, items []LineItem) error {
	tx, err := l.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, it := range items {
		ct, err := tx.Exec(ctx, `
			UPDATE products SET stock = stock - $2, updated_at = now()
			WHERE id = $1 AND stock >= $2`, it.ProductID, it.Qty)
		if err != nil {
			return err
		}
		if ct.RowsAffected() == 0 {
			return l.shortfall(ctx, it.ProductID, it.Qty)
		}
	}
	return tx.Commit(ctx)
}

// shortfall melengkapi error dengan stok aktual; produk hilang dianggap stok 0.
func (l *Ledger) shortfall(ctx context.Context, productID string, qty int) error {
	var available int
	err := l.DB.QueryRow(ctx, `SELECT stock FROM products WHERE id=$1`, productID).Scan(&available)
	if err != nil {
		available = 0
	}
	return &InsufficientStockError{ProductID: productID, Requested: qty, Available: available}
}
