package payments

import "time"

type Product struct {
	ID         string
	Name       string
	PriceCents int
	Stock      int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type Transaction struct {
	ID               string
	CustomerEmail    string
	TotalCents       int
	Status           Status // lihat status.go
	GatewayPaymentID string // kosong sampai gateway merespons
	Items            []LineItem
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// LineItem immutable setelah transaksi dipersist; harga di-capture saat create.
type LineItem struct {
	TransactionID string
	ProductID     string
	Qty           int
	PriceCents    int
}

// Order adalah hasil Build: sudah divalidasi & dihitung, belum dipersist.
type Order struct {
	CustomerEmail string
	TotalCents    int
	Items         []OrderItem
}

type OrderItem struct {
	ProductID  string
	Qty        int
	PriceCents int
}

type ItemInput struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"quantity"`
}
