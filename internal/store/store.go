package store

import (
	"context"
	"errors"
	"time"

	"tokokas/backend/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrShiftAlreadyOpen  = errors.New("a shift is already open")
	ErrNoOpenShift       = errors.New("no open shift")
	ErrRegisterClosed    = errors.New("register closed: open a shift first")
	ErrEmptyCart         = errors.New("cart is empty")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidInput      = errors.New("invalid input")
)

// Repository is the durable record store. Implementations must make
// CreateCheckout, ApplyStockChanges, ReceivePurchaseOrder and
// AppendCashTransaction all-or-nothing commits: a failed call leaves no
// observable partial state. The single-open-shift rule is enforced here,
// not by any in-process cache.
type Repository interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	GetProductByID(ctx context.Context, id string) (*domain.Product, error)
	GetProductsByIDs(ctx context.Context, ids []string) (map[string]domain.Product, error)

	OpenShift(ctx context.Context, shift domain.ShiftSession) (*domain.ShiftSession, error)
	GetOpenShift(ctx context.Context) (*domain.ShiftSession, error)
	GetShiftByID(ctx context.Context, id string) (*domain.ShiftSession, error)
	ListShifts(ctx context.Context, limit int) ([]domain.ShiftSession, error)
	AppendCashTransaction(ctx context.Context, entry domain.CashTransaction) (*domain.ShiftSession, error)
	CloseShift(ctx context.Context, shiftID string, actualClosingCents int64, closedBy string, closedAt time.Time) (*domain.ShiftSession, error)

	CreateCheckout(ctx context.Context, tx domain.Transaction) (*domain.Transaction, error)
	FindTransactionByID(ctx context.Context, id string) (*domain.Transaction, error)
	ListTransactions(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.Transaction, error)

	ApplyStockChanges(ctx context.Context, changes []domain.StockChange) ([]domain.InventoryLogEntry, error)
	ListInventoryLog(ctx context.Context, productID string, limit int) ([]domain.InventoryLogEntry, error)

	CreateSupplier(ctx context.Context, supplier domain.Supplier) (*domain.Supplier, error)
	ListSuppliers(ctx context.Context) ([]domain.Supplier, error)
	CreatePurchaseOrder(ctx context.Context, po domain.PurchaseOrder) (*domain.PurchaseOrder, error)
	GetPurchaseOrderByID(ctx context.Context, purchaseOrderID string) (*domain.PurchaseOrder, error)
	ListPurchaseOrders(ctx context.Context, status string, limit int) ([]domain.PurchaseOrder, error)
	ReceivePurchaseOrder(ctx context.Context, purchaseOrderID string, receivedBy string, receivedAt time.Time) (*domain.PurchaseOrder, error)

	GetDailySales(ctx context.Context, date string) (*domain.DailySalesAggregate, error)
	RebuildDailySales(ctx context.Context, date string) (*domain.DailySalesAggregate, error)

	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}
