package payments

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Catalog membaca tabel products; tidak pernah menulis (itu kerjaan Ledger).
type Catalog struct{ DB *pgxpool.Pool }

func (c *Catalog) ByID(ctx context.Context, productID string) (Product, error) {
	var p Product
	err := c.DB.QueryRow(ctx, `SELECT id, name, price_cents, stock, created_at, updated_at
	                           FROM products WHERE id=$1`, productID).
		Scan(&p.ID, &p.Name, &p.PriceCents, &p.Stock, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, &ProductNotFoundError{ProductID: productID}
	}
	if err != nil {
		return Product{}, err
	}
	return p, nil
}
