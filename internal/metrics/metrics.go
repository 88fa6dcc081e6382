package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TransactionsTotal tracks transactions by final outcome of each operation
	TransactionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_transactions_total",
			Help: "Total number of payment transactions by outcome",
		},
		[]string{"outcome"},
	)

	// GatewayRequests tracks calls to the external payment gateway
	GatewayRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_gateway_requests_total",
			Help: "Total number of payment gateway requests by operation",
		},
		[]string{"operation", "result"},
	)

	// GatewayBreakerState: 0=closed, 1=open, 2=half-open
	GatewayBreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "payment_gateway_breaker_state",
			Help: "Payment gateway circuit breaker state (0=closed, 1=open, 2=half-open)",
		},
	)

	// StockDecrements tracks ledger decrement outcomes
	StockDecrements = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stock_decrements_total",
			Help: "Total number of stock decrement attempts by result",
		},
		[]string{"result"},
	)
)
