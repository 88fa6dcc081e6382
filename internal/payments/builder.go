package payments

import "context"

// CatalogReader: lookup read-only ke katalog produk. CRUD katalog di luar service ini.
type CatalogReader interface {
	ByID(ctx context.Context, productID string) (Product, error)
}

// Builder memvalidasi item terhadap katalog dan menghitung total.
// Tidak ada side effect: gagal validasi = belum ada apa-apa yang tersimpan.
type Builder struct {
	Catalog CatalogReader
}

// Build validasi item sesuai urutan input; kegagalan pertama menang.
// Total dihitung pakai integer cents, jangan pernah float untuk uang.
func (b *Builder) Build(ctx context.Context, customerEmail string, items []ItemInput) (Order, error) {
	if customerEmail == "" {
		return Order{}, &ValidationError{Msg: "customer_email is required"}
	}
	if len(items) == 0 {
		return Order{}, &ValidationError{Msg: "at least one product is required"}
	}

	order := Order{CustomerEmail: customerEmail, Items: make([]OrderItem, 0, len(items))}
	for _, it := range items {
		if it.ProductID == "" {
			return Order{}, &ValidationError{Msg: "product_id is required"}
		}
		if it.Qty < 1 {
			return Order{}, &ValidationError{Msg: "quantity must be >= 1 for product " + it.ProductID}
		}

		p, err := b.Catalog.ByID(ctx, it.ProductID)
		if err != nil {
			return Order{}, err
		}
		if p.Stock < it.Qty {
			return Order{}, &InsufficientStockError{
				ProductID: it.ProductID, Requested: it.Qty, Available: p.Stock,
			}
		}

		order.TotalCents += p.PriceCents * it.Qty
		order.Items = append(order.Items, OrderItem{
			ProductID:  it.ProductID,
			Qty:        it.Qty,
			PriceCents: p.PriceCents,
		})
	}
	return order, nil
}
