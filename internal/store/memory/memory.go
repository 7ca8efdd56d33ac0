package memory

import (
	"context"
	"fmt"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"tokokas/backend/internal/domain"
	"tokokas/backend/internal/ledger"
	"tokokas/backend/internal/store"
)

// Store is the in-memory Repository used by tests and dev mode. One mutex
// guards every commit, which makes each multi-record write trivially atomic.
type Store struct {
	mu               sync.RWMutex
	products         map[string]domain.Product
	inventoryLog     []domain.InventoryLogEntry
	transactionsByID map[string]*domain.Transaction
	transactionIDs   []string
	shiftsByID       map[string]*domain.ShiftSession
	shiftIDs         []string
	openShiftID      string
	dailySales       map[string]domain.DailySalesAggregate
	suppliersByID    map[string]domain.Supplier
	purchaseOrders   map[string]*domain.PurchaseOrder
	usersByUsername  map[string]domain.UserAccount
}

func newID(prefix string) string {
	return prefix + "-" + uuid.NewString()
}

// seedUsers builds the initial in-memory user accounts for dev/demo mode.
// Credentials come from SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD; if
// unset, hardcoded dev defaults are used with a warning. Production runs
// use PostgreSQL (DATABASE_URL) and never touch these.
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	cashierPwd := envOr("SEED_CASHIER_PASSWORD", "cashier123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_CASHIER_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, "admin"},
		{"cashier", cashierPwd, "cashier"},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func NewSeeded() *Store {
	now := time.Now().UTC()
	products := []domain.Product{
		{ID: "PRD-AIR-01", Name: "Air Mineral 600ml", Category: "beverage", PriceCents: 3900, Stock: 120, MinStock: 24, Type: domain.ProductTypeRetail, Active: true},
		{ID: "PRD-KOPI-01", Name: "Kopi Susu Botol", Category: "beverage", PriceCents: 12500, Stock: 60, MinStock: 12, Type: domain.ProductTypeRetail, Active: true},
		{ID: "PRD-ROTI-01", Name: "Roti Bakar", Category: "snack", PriceCents: 17800, Stock: 40, MinStock: 10, Type: domain.ProductTypeRetail, Active: true},
		{ID: "PRD-KERIPIK-01", Name: "Keripik Singkong", Category: "snack", PriceCents: 12800, Stock: 80, MinStock: 16, Type: domain.ProductTypeRetail, Active: true},
		{ID: "PRD-HANDUK-01", Name: "Handuk Kecil", Category: "merchandise", PriceCents: 45000, Stock: 25, MinStock: 5, Type: domain.ProductTypeRetail, Active: true},
		{ID: "PRD-MEMBER-30", Name: "Membership 30 Hari", Category: "membership", PriceCents: 350000, Stock: 500, MinStock: 0, Type: domain.ProductTypeRetail, Active: true},
		{ID: "PRD-PT-01", Name: "Sesi Personal Training", Category: "training", PriceCents: 150000, Stock: 500, MinStock: 0, Type: domain.ProductTypeRetail, Active: true},
		{ID: "PRD-SABUN-01", Name: "Sabun Cair Refill", Category: "supplies", PriceCents: 26000, Stock: 30, MinStock: 6, Type: domain.ProductTypeConsumable, Active: true},
		{ID: "PRD-TISU-01", Name: "Tisu Gulung", Category: "supplies", PriceCents: 8000, Stock: 50, MinStock: 12, Type: domain.ProductTypeConsumable, Active: true},
	}

	productMap := make(map[string]domain.Product, len(products))
	for _, p := range products {
		p.CreatedAt = now
		p.UpdatedAt = now
		productMap[p.ID] = p
	}

	return &Store{
		products:         productMap,
		inventoryLog:     make([]domain.InventoryLogEntry, 0, 256),
		transactionsByID: make(map[string]*domain.Transaction),
		shiftsByID:       make(map[string]*domain.ShiftSession),
		dailySales:       make(map[string]domain.DailySalesAggregate),
		suppliersByID:    make(map[string]domain.Supplier),
		purchaseOrders:   make(map[string]*domain.PurchaseOrder),
		usersByUsername:  seedUsers(),
	}
}

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		if !p.Active {
			continue
		}
		products = append(products, p)
	}

	slices.SortFunc(products, func(a, b domain.Product) int {
		if a.Category == b.Category {
			return strings.Compare(a.Name, b.Name)
		}
		return strings.Compare(a.Category, b.Category)
	})

	return products, nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if product.Name == "" || product.Category == "" || product.PriceCents < 1 {
		return nil, store.ErrInvalidInput
	}
	if product.Type != domain.ProductTypeRetail && product.Type != domain.ProductTypeConsumable {
		return nil, store.ErrInvalidInput
	}
	if product.Stock < 0 || product.MinStock < 0 {
		return nil, store.ErrInvalidInput
	}
	if product.ID == "" {
		product.ID = newID("prd")
	}
	if _, exists := s.products[product.ID]; exists {
		return nil, store.ErrInvalidInput
	}

	now := time.Now().UTC()
	product.Active = true
	product.CreatedAt = now
	product.UpdatedAt = now
	s.products[product.ID] = product
	created := product
	return &created, nil
}

func (s *Store) UpdateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if product.ID == "" || product.Name == "" || product.Category == "" || product.PriceCents < 1 {
		return nil, store.ErrInvalidInput
	}
	existing, exists := s.products[product.ID]
	if !exists {
		return nil, store.ErrNotFound
	}

	// Stock is never written through this path; only the ledger moves it.
	product.Stock = existing.Stock
	product.CreatedAt = existing.CreatedAt
	product.UpdatedAt = time.Now().UTC()
	s.products[product.ID] = product
	updated := product
	return &updated, nil
}

func (s *Store) GetProductByID(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, exists := s.products[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyProduct := product
	return &copyProduct, nil
}

func (s *Store) GetProductsByIDs(_ context.Context, ids []string) (map[string]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]domain.Product, len(ids))
	for _, id := range ids {
		if p, ok := s.products[id]; ok {
			result[id] = p
		}
	}
	return result, nil
}

func (s *Store) OpenShift(_ context.Context, shift domain.ShiftSession) (*domain.ShiftSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if shift.OpeningBalanceCents < 0 || strings.TrimSpace(shift.OpenedBy) == "" {
		return nil, store.ErrInvalidInput
	}
	if s.openShiftID != "" {
		return nil, store.ErrShiftAlreadyOpen
	}

	if shift.ID == "" {
		shift.ID = newID("shift")
	}
	if shift.OpenedAt.IsZero() {
		shift.OpenedAt = time.Now().UTC()
	}
	shift.Status = domain.ShiftStatusOpen
	shift.TotalCashSalesCents = 0
	shift.TotalNonCashSalesCents = 0
	shift.TotalExpensesCents = 0
	shift.TotalFloatInCents = 0
	shift.TotalFloatOutCents = 0
	shift.ExpectedClosingCents = shift.OpeningBalanceCents
	shift.ActualClosingCents = 0
	shift.DiscrepancyCents = 0
	shift.ClosedBy = ""
	shift.ClosedAt = nil
	shift.Transactions = make([]domain.CashTransaction, 0, 32)

	stored := shift
	s.shiftsByID[shift.ID] = &stored
	s.shiftIDs = append(s.shiftIDs, shift.ID)
	s.openShiftID = shift.ID

	return cloneShift(&stored), nil
}

func (s *Store) GetOpenShift(_ context.Context) (*domain.ShiftSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.openShiftID == "" {
		return nil, store.ErrNotFound
	}
	return cloneShift(s.shiftsByID[s.openShiftID]), nil
}

func (s *Store) GetShiftByID(_ context.Context, id string) (*domain.ShiftSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	shift, exists := s.shiftsByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	return cloneShift(shift), nil
}

func (s *Store) ListShifts(_ context.Context, limit int) ([]domain.ShiftSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit < 1 {
		limit = 50
	}
	result := make([]domain.ShiftSession, 0, limit)
	for i := len(s.shiftIDs) - 1; i >= 0 && len(result) < limit; i-- {
		result = append(result, *cloneShift(s.shiftsByID[s.shiftIDs[i]]))
	}
	return result, nil
}

func (s *Store) AppendCashTransaction(_ context.Context, entry domain.CashTransaction) (*domain.ShiftSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.openShiftID == "" {
		return nil, store.ErrNoOpenShift
	}
	shift := s.shiftsByID[s.openShiftID]
	if err := applyCashEntry(shift, &entry); err != nil {
		return nil, err
	}
	return cloneShift(shift), nil
}

// applyCashEntry appends one ledger line and maintains the running totals.
// Caller holds the write lock and guarantees the shift is open.
func applyCashEntry(shift *domain.ShiftSession, entry *domain.CashTransaction) error {
	if entry.AmountCents <= 0 {
		return store.ErrInvalidInput
	}
	switch entry.Type {
	case domain.CashTxSale:
		shift.TotalCashSalesCents += entry.AmountCents
	case domain.CashTxExpense:
		shift.TotalExpensesCents += entry.AmountCents
	case domain.CashTxFloatIn:
		shift.TotalFloatInCents += entry.AmountCents
	case domain.CashTxFloatOut:
		shift.TotalFloatOutCents += entry.AmountCents
	default:
		return store.ErrInvalidInput
	}

	if entry.ID == "" {
		entry.ID = newID("ct")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	entry.ShiftID = shift.ID
	shift.Transactions = append(shift.Transactions, *entry)
	shift.ExpectedClosingCents = ledger.ExpectedClosing(*shift)
	return nil
}

func (s *Store) CloseShift(_ context.Context, shiftID string, actualClosingCents int64, closedBy string, closedAt time.Time) (*domain.ShiftSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.openShiftID == "" {
		return nil, store.ErrNoOpenShift
	}
	if shiftID != "" && shiftID != s.openShiftID {
		return nil, store.ErrNotFound
	}
	if closedAt.IsZero() {
		closedAt = time.Now().UTC()
	}

	shift := s.shiftsByID[s.openShiftID]
	shift.Status = domain.ShiftStatusClosed
	shift.ActualClosingCents = actualClosingCents
	shift.DiscrepancyCents = actualClosingCents - shift.ExpectedClosingCents
	shift.ClosedBy = closedBy
	at := closedAt
	shift.ClosedAt = &at
	s.openShiftID = ""

	return cloneShift(shift), nil
}

func (s *Store) CreateCheckout(_ context.Context, tx domain.Transaction) (*domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(tx.Lines) == 0 {
		return nil, store.ErrEmptyCart
	}
	if s.openShiftID == "" || tx.ShiftID != s.openShiftID {
		return nil, store.ErrNoOpenShift
	}

	// Validate every line before mutating anything: a failed checkout must
	// leave no partial state.
	needed := make(map[string]int, len(tx.Lines))
	for _, line := range tx.Lines {
		if line.Qty < 1 {
			return nil, store.ErrInvalidInput
		}
		needed[line.ProductID] += line.Qty
	}
	for productID, qty := range needed {
		product, exists := s.products[productID]
		if !exists {
			return nil, fmt.Errorf("%w: product %s", store.ErrNotFound, productID)
		}
		if product.Stock < qty {
			return nil, fmt.Errorf("%w: product %s has %d, cart needs %d",
				store.ErrInsufficientStock, productID, product.Stock, qty)
		}
	}

	if tx.ID == "" {
		tx.ID = newID("tx")
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}

	total := int64(0)
	for _, line := range tx.Lines {
		total += line.SubtotalCents
	}
	tx.TotalCents = total

	// One decrement plus one SALE log entry per cart line.
	for _, line := range tx.Lines {
		product := s.products[line.ProductID]
		previous := product.Stock
		product.Stock = previous - line.Qty
		product.UpdatedAt = tx.CreatedAt
		s.products[line.ProductID] = product

		s.inventoryLog = append(s.inventoryLog, domain.InventoryLogEntry{
			ID:            newID("inv"),
			ProductID:     product.ID,
			ProductName:   product.Name,
			ChangeType:    domain.ChangeSale,
			ChangeAmount:  -line.Qty,
			PreviousStock: previous,
			NewStock:      product.Stock,
			Actor:         tx.Actor,
			ReferenceID:   tx.ID,
			CreatedAt:     tx.CreatedAt,
		})
	}

	stored := tx
	s.transactionsByID[tx.ID] = &stored
	s.transactionIDs = append(s.transactionIDs, tx.ID)

	date := tx.CreatedAt.UTC().Format("2006-01-02")
	agg := s.dailySales[date]
	agg.Date = date
	agg.TotalCents += tx.TotalCents
	agg.TransactionCount++
	agg.UpdatedAt = tx.CreatedAt
	s.dailySales[date] = agg

	shift := s.shiftsByID[s.openShiftID]
	entry := domain.CashTransaction{
		Type:        domain.CashTxSale,
		AmountCents: tx.TotalCents,
		Reason:      fmt.Sprintf("sale %s (%s)", tx.ID, tx.PaymentMethod),
		Actor:       tx.Actor,
		SaleID:      tx.ID,
		CreatedAt:   tx.CreatedAt,
	}
	if tx.PaymentMethod == domain.PaymentCash {
		if err := applyCashEntry(shift, &entry); err != nil {
			return nil, err
		}
	} else {
		// Non-cash sales are ledgered but do not move the physical drawer.
		shift.TotalNonCashSalesCents += tx.TotalCents
		if entry.ID == "" {
			entry.ID = newID("ct")
		}
		entry.ShiftID = shift.ID
		shift.Transactions = append(shift.Transactions, entry)
	}

	saved := stored
	return &saved, nil
}

func (s *Store) FindTransactionByID(_ context.Context, id string) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, exists := s.transactionsByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	return cloneTransaction(tx), nil
}

func (s *Store) ListTransactions(_ context.Context, from time.Time, to time.Time, limit int) ([]domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// limit <= 0 returns every transaction in the window; the report
	// readers rely on that.
	result := make([]domain.Transaction, 0, 64)
	for _, id := range s.transactionIDs {
		tx := s.transactionsByID[id]
		if tx.CreatedAt.Before(from) || !tx.CreatedAt.Before(to) {
			continue
		}
		result = append(result, *cloneTransaction(tx))
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result, nil
}

func (s *Store) ApplyStockChanges(_ context.Context, changes []domain.StockChange) ([]domain.InventoryLogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.applyStockChangesLocked(changes)
}

func (s *Store) applyStockChangesLocked(changes []domain.StockChange) ([]domain.InventoryLogEntry, error) {
	if len(changes) == 0 {
		return nil, store.ErrInvalidInput
	}

	// Validate the whole batch first; no partial application.
	projected := make(map[string]int, len(changes))
	for _, change := range changes {
		product, exists := s.products[change.ProductID]
		if !exists {
			return nil, fmt.Errorf("%w: product %s", store.ErrNotFound, change.ProductID)
		}
		if change.Delta == 0 {
			return nil, store.ErrInvalidInput
		}
		if _, seen := projected[change.ProductID]; !seen {
			projected[change.ProductID] = product.Stock
		}
		projected[change.ProductID] += change.Delta
		if projected[change.ProductID] < 0 {
			return nil, fmt.Errorf("%w: product %s", store.ErrInsufficientStock, change.ProductID)
		}
	}

	now := time.Now().UTC()
	entries := make([]domain.InventoryLogEntry, 0, len(changes))
	for _, change := range changes {
		product := s.products[change.ProductID]
		previous := product.Stock
		product.Stock = previous + change.Delta
		product.UpdatedAt = now
		s.products[change.ProductID] = product

		entry := domain.InventoryLogEntry{
			ID:            newID("inv"),
			ProductID:     product.ID,
			ProductName:   product.Name,
			ChangeType:    change.ChangeType,
			ChangeAmount:  change.Delta,
			PreviousStock: previous,
			NewStock:      product.Stock,
			Actor:         change.Actor,
			ReferenceID:   change.ReferenceID,
			Notes:         change.Notes,
			CreatedAt:     now,
		}
		s.inventoryLog = append(s.inventoryLog, entry)
		entries = append(entries, entry)
	}
	return entries, nil
}

func (s *Store) ListInventoryLog(_ context.Context, productID string, limit int) ([]domain.InventoryLogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit < 1 {
		limit = 100
	}
	result := make([]domain.InventoryLogEntry, 0, limit)
	for i := len(s.inventoryLog) - 1; i >= 0 && len(result) < limit; i-- {
		entry := s.inventoryLog[i]
		if productID != "" && entry.ProductID != productID {
			continue
		}
		result = append(result, entry)
	}
	return result, nil
}

func (s *Store) CreateSupplier(_ context.Context, supplier domain.Supplier) (*domain.Supplier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(supplier.Name) == "" {
		return nil, store.ErrInvalidInput
	}
	if supplier.ID == "" {
		supplier.ID = newID("sup")
	}
	if supplier.CreatedAt.IsZero() {
		supplier.CreatedAt = time.Now().UTC()
	}
	s.suppliersByID[supplier.ID] = supplier
	created := supplier
	return &created, nil
}

func (s *Store) ListSuppliers(_ context.Context) ([]domain.Supplier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	suppliers := make([]domain.Supplier, 0, len(s.suppliersByID))
	for _, sup := range s.suppliersByID {
		suppliers = append(suppliers, sup)
	}
	slices.SortFunc(suppliers, func(a, b domain.Supplier) int {
		return strings.Compare(a.Name, b.Name)
	})
	return suppliers, nil
}

func (s *Store) CreatePurchaseOrder(_ context.Context, po domain.PurchaseOrder) (*domain.PurchaseOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if po.SupplierID == "" || len(po.Items) == 0 {
		return nil, store.ErrInvalidInput
	}
	if _, exists := s.suppliersByID[po.SupplierID]; !exists {
		return nil, fmt.Errorf("%w: supplier %s", store.ErrNotFound, po.SupplierID)
	}
	for _, item := range po.Items {
		if item.Qty < 1 || item.CostCents < 0 {
			return nil, store.ErrInvalidInput
		}
		if _, exists := s.products[item.ProductID]; !exists {
			return nil, fmt.Errorf("%w: product %s", store.ErrNotFound, item.ProductID)
		}
	}

	if po.ID == "" {
		po.ID = newID("po")
	}
	if po.CreatedAt.IsZero() {
		po.CreatedAt = time.Now().UTC()
	}
	po.Status = domain.PurchaseOrderDraft
	stored := po
	stored.Items = slices.Clone(po.Items)
	s.purchaseOrders[po.ID] = &stored

	created := stored
	created.Items = slices.Clone(stored.Items)
	return &created, nil
}

func (s *Store) GetPurchaseOrderByID(_ context.Context, purchaseOrderID string) (*domain.PurchaseOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	po, exists := s.purchaseOrders[purchaseOrderID]
	if !exists {
		return nil, store.ErrNotFound
	}
	copied := *po
	copied.Items = slices.Clone(po.Items)
	return &copied, nil
}

func (s *Store) ListPurchaseOrders(_ context.Context, status string, limit int) ([]domain.PurchaseOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit < 1 {
		limit = 100
	}
	result := make([]domain.PurchaseOrder, 0, len(s.purchaseOrders))
	for _, po := range s.purchaseOrders {
		if status != "" && po.Status != status {
			continue
		}
		copied := *po
		copied.Items = slices.Clone(po.Items)
		result = append(result, copied)
	}
	slices.SortFunc(result, func(a, b domain.PurchaseOrder) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// ReceivePurchaseOrder marks the order received and applies one RESTOCK
// increment + log entry per line in the same locked section.
func (s *Store) ReceivePurchaseOrder(_ context.Context, purchaseOrderID string, receivedBy string, receivedAt time.Time) (*domain.PurchaseOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	po, exists := s.purchaseOrders[purchaseOrderID]
	if !exists {
		return nil, store.ErrNotFound
	}
	if po.Status == domain.PurchaseOrderReceived {
		return nil, store.ErrInvalidInput
	}
	if receivedAt.IsZero() {
		receivedAt = time.Now().UTC()
	}

	changes := make([]domain.StockChange, 0, len(po.Items))
	for _, item := range po.Items {
		changes = append(changes, domain.StockChange{
			ProductID:   item.ProductID,
			Delta:       item.Qty,
			ChangeType:  domain.ChangeRestock,
			Actor:       receivedBy,
			ReferenceID: po.ID,
			Notes:       fmt.Sprintf("purchase order %s from supplier %s", po.ID, po.SupplierID),
		})
	}
	if _, err := s.applyStockChangesLocked(changes); err != nil {
		return nil, err
	}

	po.Status = domain.PurchaseOrderReceived
	po.ReceivedBy = receivedBy
	at := receivedAt
	po.ReceivedAt = &at

	copied := *po
	copied.Items = slices.Clone(po.Items)
	return &copied, nil
}

func (s *Store) GetDailySales(_ context.Context, date string) (*domain.DailySalesAggregate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	agg, exists := s.dailySales[date]
	if !exists {
		return nil, store.ErrNotFound
	}
	copied := agg
	return &copied, nil
}

// RebuildDailySales recomputes the aggregate for a day by replaying the
// committed transactions, overwriting the incremental value.
func (s *Store) RebuildDailySales(_ context.Context, date string) (*domain.DailySalesAggregate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	agg := domain.DailySalesAggregate{Date: date, UpdatedAt: time.Now().UTC()}
	for _, id := range s.transactionIDs {
		tx := s.transactionsByID[id]
		if tx.CreatedAt.UTC().Format("2006-01-02") != date {
			continue
		}
		agg.TotalCents += tx.TotalCents
		agg.TransactionCount++
	}
	s.dailySales[date] = agg
	copied := agg
	return &copied, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user.Username == "" || user.Password == "" {
		return store.ErrInvalidInput
	}
	if _, exists := s.usersByUsername[user.Username]; exists {
		return store.ErrInvalidInput
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, u := range s.usersByUsername {
		users = append(users, u)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return strings.Compare(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, exists := s.usersByUsername[username]
	if !exists {
		return store.ErrNotFound
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}

func cloneShift(shift *domain.ShiftSession) *domain.ShiftSession {
	copied := *shift
	copied.Transactions = slices.Clone(shift.Transactions)
	if shift.ClosedAt != nil {
		at := *shift.ClosedAt
		copied.ClosedAt = &at
	}
	return &copied
}

func cloneTransaction(tx *domain.Transaction) *domain.Transaction {
	copied := *tx
	copied.Lines = slices.Clone(tx.Lines)
	return &copied
}
