package payments

import (
	"errors"
	"fmt"
)

var (
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrStateConflict       = errors.New("transaction not confirmable in current state")
	// ErrPaymentPending: gateway belum kasih verdict final; aman untuk re-poll.
	ErrPaymentPending = errors.New("payment still pending at gateway")
)

type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product not found: %s", e.ProductID)
}

type InsufficientStockError struct {
	ProductID string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }
