package payments

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
)

// Mock TransactionStore
type memStore struct {
	mu   sync.Mutex
	seq  int
	txns map[string]Transaction
}

func newMemStore() *memStore {
	return &memStore{txns: make(map[string]Transaction)}
}

func (s *memStore) Create(ctx context.Context, customerEmail string, totalCents int, items []OrderItem) (Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	t := Transaction{
		ID:            fmt.Sprintf("txn-%d", s.seq),
		CustomerEmail: customerEmail,
		TotalCents:    totalCents,
		Status:        StatusPending,
	}
	for _, it := range items {
		t.Items = append(t.Items, LineItem{
			TransactionID: t.ID, ProductID: it.ProductID, Qty: it.Qty, PriceCents: it.PriceCents,
		})
	}
	s.txns[t.ID] = t
	return t, nil
}

func (s *memStore) AttachGatewayReference(ctx context.Context, transactionID, gatewayPaymentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.txns[transactionID]
	if !ok {
		return ErrTransactionNotFound
	}
	t.GatewayPaymentID = gatewayPaymentID
	s.txns[transactionID] = t
	return nil
}

func (s *memStore) UpdateStatus(ctx context.Context, transactionID string, from, to Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.txns[transactionID]
	if !ok || t.Status != from || !CanTransition(from, to) {
		return ErrStateConflict
	}
	t.Status = to
	s.txns[transactionID] = t
	return nil
}

func (s *memStore) Get(ctx context.Context, transactionID string) (Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.txns[transactionID]
	if !ok {
		return Transaction{}, ErrTransactionNotFound
	}
	t.Items = append([]LineItem(nil), t.Items...)
	return t, nil
}

func (s *memStore) List(ctx context.Context) ([]Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Transaction, 0, len(s.txns))
	for _, t := range s.txns {
		out = append(out, t)
	}
	return out, nil
}

func (s *memStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.txns)
}

// Mock StockLedger: all-or-nothing di atas katalog yang sama, seperti
// implementasi DB-nya.
type memLedger struct {
	cat   *mockCatalog
	calls int
}

func (l *memLedger) DecrementAll(ctx context.Context, items []LineItem) error {
	l.cat.mu.Lock()
	defer l.cat.mu.Unlock()
	l.calls++
	for _, it := range items {
		if l.cat.products[it.ProductID].Stock < it.Qty {
			return &InsufficientStockError{
				ProductID: it.ProductID,
				Requested: it.Qty,
				Available: l.cat.products[it.ProductID].Stock,
			}
		}
	}
	for _, it := range items {
		p := l.cat.products[it.ProductID]
		p.Stock -= it.Qty
		l.cat.products[it.ProductID] = p
	}
	return nil
}

// Mock PaymentGateway
type mockGateway struct {
	mu            sync.Mutex
	acceptanceErr error
	chargeErr     error
	queryErr      error
	queryStatus   string
	chargeCalls   int
}

func (g *mockGateway) FetchAcceptanceToken(ctx context.Context) (string, error) {
	if g.acceptanceErr != nil {
		return "", g.acceptanceErr
	}
	return "accept-tok", nil
}

func (g *mockGateway) CreateCharge(ctx context.Context, in ChargeInput) (Charge, error) {
	g.mu.Lock()
	g.chargeCalls++
	g.mu.Unlock()
	if g.chargeErr != nil {
		return Charge{}, g.chargeErr
	}
	return Charge{ID: "gw-" + in.Reference, Status: "PENDING"}, nil
}

func (g *mockGateway) QueryStatus(ctx context.Context, gatewayPaymentID string) (string, error) {
	if g.queryErr != nil {
		return "", g.queryErr
	}
	return g.queryStatus, nil
}

func newTestOrch() (*Orchestrator, *mockCatalog, *memStore, *memLedger, *mockGateway) {
	cat := newMockCatalog(
		Product{ID: "p1", PriceCents: 100, Stock: 10},
		Product{ID: "p2", PriceCents: 50, Stock: 5},
	)
	store := newMemStore()
	ledger := &memLedger{cat: cat}
	gw := &mockGateway{queryStatus: "PENDING"}
	orch := &Orchestrator{
		Builder:     &Builder{Catalog: cat},
		Store:       store,
		Ledger:      ledger,
		Gateway:     gw,
		ServiceName: "payments-test",
	}
	return orch, cat, store, ledger, gw
}

func createInput() CreateInput {
	return CreateInput{
		CustomerEmail: "buyer@example.com",
		CardToken:     "tok_123",
		Installments:  1,
		Items: []ItemInput{
			{ProductID: "p1", Qty: 2},
			{ProductID: "p2", Qty: 1},
		},
	}
}

func TestCreateTransaction_Pending(t *testing.T) {
	orch, cat, _, _, gw := newTestOrch()

	txn, err := orch.CreateTransaction(context.Background(), createInput())
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if txn.TotalCents != 250 {
		t.Errorf("expected total 250, got %d", txn.TotalCents)
	}
	if txn.Status != StatusPending {
		t.Errorf("expected PENDING, got %s", txn.Status)
	}
	if txn.GatewayPaymentID == "" {
		t.Error("expected gateway reference attached")
	}
	if gw.chargeCalls != 1 {
		t.Errorf("expected 1 charge call, got %d", gw.chargeCalls)
	}
	// stok belum disentuh sebelum settlement
	if cat.stock("p1") != 10 || cat.stock("p2") != 5 {
		t.Errorf("stock must be unchanged, got p1=%d p2=%d", cat.stock("p1"), cat.stock("p2"))
	}
}

func TestCreateTransaction_InsufficientStock(t *testing.T) {
	orch, _, store, _, gw := newTestOrch()

	in := createInput()
	in.Items = []ItemInput{{ProductID: "p1", Qty: 20}}
	_, err := orch.CreateTransaction(context.Background(), in)

	var stockErr *InsufficientStockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}
	// gagal validasi: tidak ada row, tidak ada I/O gateway
	if store.count() != 0 {
		t.Errorf("expected no transaction rows, got %d", store.count())
	}
	if gw.chargeCalls != 0 {
		t.Errorf("expected no gateway calls, got %d", gw.chargeCalls)
	}
}

func TestCreateTransaction_MissingCardToken(t *testing.T) {
	orch, _, store, _, _ := newTestOrch()

	in := createInput()
	in.CardToken = ""
	_, err := orch.CreateTransaction(context.Background(), in)

	var valErr *ValidationError
	if !errors.As(err, &valErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if store.count() != 0 {
		t.Errorf("expected no transaction rows, got %d", store.count())
	}
}

func TestCreateTransaction_GatewayDown(t *testing.T) {
	orch, _, store, _, gw := newTestOrch()
	gw.chargeErr = errors.New("gateway timeout")

	txn, err := orch.CreateTransaction(context.Background(), createInput())
	if err == nil {
		t.Fatal("expected error from gateway")
	}

	// transaksi tetap tersimpan PENDING tanpa reference, tidak dibuang
	stored, gerr := store.Get(context.Background(), txn.ID)
	if gerr != nil {
		t.Fatalf("transaction must survive gateway failure: %v", gerr)
	}
	if stored.Status != StatusPending {
		t.Errorf("expected PENDING, got %s", stored.Status)
	}
	if stored.GatewayPaymentID != "" {
		t.Errorf("expected no gateway reference, got %s", stored.GatewayPaymentID)
	}
}

func TestConfirm_Approved(t *testing.T) {
	orch, cat, _, _, gw := newTestOrch()
	txn, _ := orch.CreateTransaction(context.Background(), createInput())

	gw.queryStatus = "APPROVED"
	got, err := orch.ConfirmTransaction(context.Background(), txn.ID)
	if err != nil {
		t.Fatalf("confirm failed: %v", err)
	}

	if got.Status != StatusFinished {
		t.Errorf("expected FINISHED, got %s", got.Status)
	}
	if cat.stock("p1") != 8 {
		t.Errorf("expected p1 stock 8, got %d", cat.stock("p1"))
	}
	if cat.stock("p2") != 4 {
		t.Errorf("expected p2 stock 4, got %d", cat.stock("p2"))
	}
}

func TestConfirm_Declined(t *testing.T) {
	orch, cat, _, ledger, gw := newTestOrch()
	txn, _ := orch.CreateTransaction(context.Background(), createInput())

	gw.queryStatus = "DECLINED"
	got, err := orch.ConfirmTransaction(context.Background(), txn.ID)
	if err != nil {
		t.Fatalf("confirm failed: %v", err)
	}

	if got.Status != StatusDeclined {
		t.Errorf("expected DECLINED, got %s", got.Status)
	}
	// stok tidak pernah disentuh di path non-approved
	if ledger.calls != 0 {
		t.Errorf("ledger must not be called, got %d calls", ledger.calls)
	}
	if cat.stock("p1") != 10 || cat.stock("p2") != 5 {
		t.Errorf("stock must be unchanged, got p1=%d p2=%d", cat.stock("p1"), cat.stock("p2"))
	}
}

func TestConfirm_StockMovedSinceOrder(t *testing.T) {
	orch, cat, _, _, gw := newTestOrch()
	txn, _ := orch.CreateTransaction(context.Background(), createInput())

	// stok p2 habis diambil transaksi lain sebelum approval
	cat.mu.Lock()
	p := cat.products["p2"]
	p.Stock = 0
	cat.products["p2"] = p
	cat.mu.Unlock()

	gw.queryStatus = "APPROVED"
	got, err := orch.ConfirmTransaction(context.Background(), txn.ID)

	var stockErr *InsufficientStockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}
	if got.Status != StatusError {
		t.Errorf("expected ERROR, got %s", got.Status)
	}
	// batch all-or-nothing: decrement p1 ikut di-rollback
	if cat.stock("p1") != 10 {
		t.Errorf("expected p1 stock untouched at 10, got %d", cat.stock("p1"))
	}
}

func TestConfirm_Idempotent(t *testing.T) {
	orch, cat, _, ledger, gw := newTestOrch()
	txn, _ := orch.CreateTransaction(context.Background(), createInput())

	gw.queryStatus = "APPROVED"
	if _, err := orch.ConfirmTransaction(context.Background(), txn.ID); err != nil {
		t.Fatalf("first confirm failed: %v", err)
	}

	// confirm kedua: no-op success, stok tidak turun lagi
	got, err := orch.ConfirmTransaction(context.Background(), txn.ID)
	if err != nil {
		t.Fatalf("second confirm must be no-op success: %v", err)
	}
	if got.Status != StatusFinished {
		t.Errorf("expected FINISHED, got %s", got.Status)
	}
	if ledger.calls != 1 {
		t.Errorf("expected exactly 1 ledger call, got %d", ledger.calls)
	}
	if cat.stock("p1") != 8 {
		t.Errorf("stock decremented twice: p1=%d", cat.stock("p1"))
	}
}

func TestConfirm_GatewayStillPending(t *testing.T) {
	orch, _, store, _, gw := newTestOrch()
	txn, _ := orch.CreateTransaction(context.Background(), createInput())

	gw.queryStatus = "PENDING"
	_, err := orch.ConfirmTransaction(context.Background(), txn.ID)
	if !errors.Is(err, ErrPaymentPending) {
		t.Fatalf("expected ErrPaymentPending, got %v", err)
	}

	stored, _ := store.Get(context.Background(), txn.ID)
	if stored.Status != StatusPending {
		t.Errorf("status must stay PENDING, got %s", stored.Status)
	}
}

func TestConfirm_GatewayError(t *testing.T) {
	orch, _, store, _, gw := newTestOrch()
	txn, _ := orch.CreateTransaction(context.Background(), createInput())

	gw.queryErr = errors.New("gateway 500")
	_, err := orch.ConfirmTransaction(context.Background(), txn.ID)
	if err == nil {
		t.Fatal("expected error")
	}

	// status lokal tidak berubah; aman di-retry
	stored, _ := store.Get(context.Background(), txn.ID)
	if stored.Status != StatusPending {
		t.Errorf("status must stay PENDING, got %s", stored.Status)
	}
}

func TestConfirm_NoGatewayReference(t *testing.T) {
	orch, _, _, _, gw := newTestOrch()
	gw.chargeErr = errors.New("down")
	txn, _ := orch.CreateTransaction(context.Background(), createInput())

	_, err := orch.ConfirmTransaction(context.Background(), txn.ID)
	if !errors.Is(err, ErrPaymentPending) {
		t.Fatalf("expected ErrPaymentPending, got %v", err)
	}
}

func TestConfirm_NotFound(t *testing.T) {
	orch, _, _, _, _ := newTestOrch()
	_, err := orch.ConfirmTransaction(context.Background(), "ghost")
	if !errors.Is(err, ErrTransactionNotFound) {
		t.Fatalf("expected ErrTransactionNotFound, got %v", err)
	}
}

func TestConfirm_ConcurrentSameTransaction(t *testing.T) {
	orch, cat, _, ledger, gw := newTestOrch()
	txn, _ := orch.CreateTransaction(context.Background(), createInput())

	gw.queryStatus = "APPROVED"
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = orch.ConfirmTransaction(context.Background(), txn.ID)
		}()
	}
	wg.Wait()

	// hanya pemenang CAS keluar dari PENDING yang menurunkan stok
	if ledger.calls != 1 {
		t.Errorf("expected exactly 1 ledger call, got %d", ledger.calls)
	}
	if cat.stock("p1") != 8 || cat.stock("p2") != 4 {
		t.Errorf("stock double spent: p1=%d p2=%d", cat.stock("p1"), cat.stock("p2"))
	}

	got, _ := orch.GetTransaction(context.Background(), txn.ID)
	if got.Status != StatusFinished {
		t.Errorf("expected FINISHED, got %s", got.Status)
	}
}

func TestConfirm_VoidedMapsToVoided(t *testing.T) {
	orch, _, _, _, gw := newTestOrch()
	txn, _ := orch.CreateTransaction(context.Background(), createInput())

	gw.queryStatus = "VOIDED"
	got, err := orch.ConfirmTransaction(context.Background(), txn.ID)
	if err != nil {
		t.Fatalf("confirm failed: %v", err)
	}
	if got.Status != StatusVoided {
		t.Errorf("expected VOIDED, got %s", got.Status)
	}

	// verdict terminal non-approved tidak bisa dikonfirmasi ulang
	_, err = orch.ConfirmTransaction(context.Background(), txn.ID)
	if !errors.Is(err, ErrStateConflict) {
		t.Fatalf("expected ErrStateConflict, got %v", err)
	}
}
