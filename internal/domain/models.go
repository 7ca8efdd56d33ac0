package domain

import "time"

const (
	ProductTypeRetail     = "RETAIL"
	ProductTypeConsumable = "CONSUMABLE"
)

const (
	ChangeSale            = "SALE"
	ChangeInternalUse     = "INTERNAL_USE"
	ChangeRestock         = "RESTOCK"
	ChangeAuditAdjustment = "AUDIT_ADJUSTMENT"
)

const (
	CashTxSale     = "sale"
	CashTxExpense  = "expense"
	CashTxFloatIn  = "float_in"
	CashTxFloatOut = "float_out"
)

const (
	ShiftStatusOpen   = "open"
	ShiftStatusClosed = "closed"
)

const (
	PaymentCash     = "cash"
	PaymentCard     = "card"
	PaymentQRIS     = "qris"
	PaymentTransfer = "transfer"
)

const (
	PurchaseOrderDraft    = "draft"
	PurchaseOrderReceived = "received"
)

const (
	VarianceBalanced = "balanced"
	VarianceShortage = "shortage"
	VarianceOverage  = "overage"
)

type Product struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Category   string    `json:"category"`
	PriceCents int64     `json:"price_cents"`
	Stock      int       `json:"stock"`
	MinStock   int       `json:"min_stock"`
	Type       string    `json:"type"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type ProductCreateRequest struct {
	Name         string `json:"name"`
	Category     string `json:"category"`
	PriceCents   int64  `json:"price_cents"`
	MinStock     int    `json:"min_stock"`
	Type         string `json:"type"`
	InitialStock int    `json:"initial_stock"`
}

type ProductUpdateRequest struct {
	Name       *string `json:"name,omitempty"`
	Category   *string `json:"category,omitempty"`
	PriceCents *int64  `json:"price_cents,omitempty"`
	MinStock   *int    `json:"min_stock,omitempty"`
	Active     *bool   `json:"active,omitempty"`
}

// InventoryLogEntry is the append-only audit trail of every stock mutation.
// NewStock == PreviousStock + ChangeAmount always holds; entries are written
// in the same commit as the stock change they describe.
type InventoryLogEntry struct {
	ID            string    `json:"id"`
	ProductID     string    `json:"product_id"`
	ProductName   string    `json:"product_name"`
	ChangeType    string    `json:"change_type"`
	ChangeAmount  int       `json:"change_amount"`
	PreviousStock int       `json:"previous_stock"`
	NewStock      int       `json:"new_stock"`
	Actor         string    `json:"actor"`
	ReferenceID   string    `json:"reference_id,omitempty"`
	Notes         string    `json:"notes,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// StockChange is a staged signed stock delta. The store applies a batch
// atomically, computing PreviousStock/NewStock under its own lock and
// emitting one InventoryLogEntry per change.
type StockChange struct {
	ProductID   string
	Delta       int
	ChangeType  string
	Actor       string
	ReferenceID string
	Notes       string
}

type SaleLine struct {
	ProductID       string `json:"product_id"`
	Name            string `json:"name"`
	UnitPriceCents  int64  `json:"unit_price_cents"`
	Qty             int    `json:"qty"`
	SubtotalCents   int64  `json:"subtotal_cents"`
	PriceOverridden bool   `json:"price_overridden,omitempty"`
	OverrideReason  string `json:"override_reason,omitempty"`
}

// Transaction is an immutable sale record. Once committed it is never
// updated or deleted; corrections happen through new records.
type Transaction struct {
	ID            string     `json:"id"`
	Lines         []SaleLine `json:"lines"`
	TotalCents    int64      `json:"total_cents"`
	PaymentMethod string     `json:"payment_method"`
	Reference     string     `json:"reference,omitempty"`
	MemberID      string     `json:"member_id,omitempty"`
	ShiftID       string     `json:"shift_id"`
	Actor         string     `json:"actor"`
	CreatedAt     time.Time  `json:"created_at"`
}

// CashTransaction is one immutable ledger line inside a shift.
type CashTransaction struct {
	ID          string    `json:"id"`
	ShiftID     string    `json:"shift_id"`
	Type        string    `json:"type"`
	AmountCents int64     `json:"amount_cents"`
	Reason      string    `json:"reason"`
	Actor       string    `json:"actor"`
	SaleID      string    `json:"sale_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// ShiftSession is mutable while open and sealed forever once closed.
// ExpectedClosingCents = opening + cash sales + float in - expenses - float out.
type ShiftSession struct {
	ID                     string            `json:"id"`
	OpeningBalanceCents    int64             `json:"opening_balance_cents"`
	TotalCashSalesCents    int64             `json:"total_cash_sales_cents"`
	TotalNonCashSalesCents int64             `json:"total_non_cash_sales_cents"`
	TotalExpensesCents     int64             `json:"total_expenses_cents"`
	TotalFloatInCents      int64             `json:"total_float_in_cents"`
	TotalFloatOutCents     int64             `json:"total_float_out_cents"`
	ExpectedClosingCents   int64             `json:"expected_closing_cents"`
	ActualClosingCents     int64             `json:"actual_closing_cents"`
	DiscrepancyCents       int64             `json:"discrepancy_cents"`
	Status                 string            `json:"status"`
	OpenedBy               string            `json:"opened_by"`
	ClosedBy               string            `json:"closed_by,omitempty"`
	OpenedAt               time.Time         `json:"opened_at"`
	ClosedAt               *time.Time        `json:"closed_at,omitempty"`
	Transactions           []CashTransaction `json:"transactions"`
}

type DailySalesAggregate struct {
	Date             string    `json:"date"`
	TotalCents       int64     `json:"total_cents"`
	TransactionCount int64     `json:"transaction_count"`
	UpdatedAt        time.Time `json:"updated_at"`
}

type Supplier struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	CreatedAt time.Time `json:"created_at"`
}

type SupplierCreateRequest struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

type PurchaseOrderItem struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
	CostCents int64  `json:"cost_cents"`
}

type PurchaseOrder struct {
	ID         string              `json:"id"`
	SupplierID string              `json:"supplier_id"`
	Status     string              `json:"status"`
	Items      []PurchaseOrderItem `json:"items"`
	CreatedBy  string              `json:"created_by"`
	CreatedAt  time.Time           `json:"created_at"`
	ReceivedBy string              `json:"received_by,omitempty"`
	ReceivedAt *time.Time          `json:"received_at,omitempty"`
}

type PurchaseOrderCreateRequest struct {
	SupplierID string              `json:"supplier_id"`
	Items      []PurchaseOrderItem `json:"items"`
}

type CheckoutItem struct {
	ProductID      string `json:"product_id"`
	Qty            int    `json:"qty"`
	UnitPriceCents int64  `json:"unit_price_cents,omitempty"`
	OverrideReason string `json:"override_reason,omitempty"`
}

type CheckoutRequest struct {
	Items         []CheckoutItem `json:"items"`
	PaymentMethod string         `json:"payment_method"`
	Reference     string         `json:"reference,omitempty"`
	MemberID      string         `json:"member_id,omitempty"`
	TenderedCents int64          `json:"tendered_cents,omitempty"`
	SyntheticCart bool           `json:"synthetic_cart,omitempty"`
}

type CheckoutResponse struct {
	TransactionID string     `json:"transaction_id"`
	TotalCents    int64      `json:"total_cents"`
	PaymentMethod string     `json:"payment_method"`
	ChangeCents   int64      `json:"change_cents"`
	ShiftID       string     `json:"shift_id"`
	Lines         []SaleLine `json:"lines"`
	CreatedAt     string     `json:"created_at"`
}

type ShiftOpenRequest struct {
	OpeningBalanceCents int64 `json:"opening_balance_cents"`
}

type ShiftCloseRequest struct {
	ActualClosingCents int64  `json:"actual_closing_cents"`
	Notes              string `json:"notes,omitempty"`
}

type CashTransactionRequest struct {
	AmountCents int64  `json:"amount_cents"`
	Reason      string `json:"reason"`
}

// ShiftSummary is a pure projection of the open shift used by the register
// UI; CurrentCashCents mirrors ExpectedClosingCents while the shift is open.
type ShiftSummary struct {
	ShiftID                string `json:"shift_id"`
	Status                 string `json:"status"`
	OpeningBalanceCents    int64  `json:"opening_balance_cents"`
	TotalCashSalesCents    int64  `json:"total_cash_sales_cents"`
	TotalNonCashSalesCents int64  `json:"total_non_cash_sales_cents"`
	TotalExpensesCents     int64  `json:"total_expenses_cents"`
	TotalFloatInCents      int64  `json:"total_float_in_cents"`
	TotalFloatOutCents     int64  `json:"total_float_out_cents"`
	ExpectedClosingCents   int64  `json:"expected_closing_cents"`
	CurrentCashCents       int64  `json:"current_cash_cents"`
	EntryCount             int    `json:"entry_count"`
	OpenedBy               string `json:"opened_by"`
	OpenedAt               string `json:"opened_at"`
}

type ConsumptionRequest struct {
	ProductID string `json:"product_id"`
	Amount    int    `json:"amount"`
	Notes     string `json:"notes,omitempty"`
}

type AuditLine struct {
	ProductID     string `json:"product_id"`
	PhysicalCount int    `json:"physical_count"`
}

type ReconcileRequest struct {
	Lines []AuditLine `json:"lines"`
	Notes string      `json:"notes,omitempty"`
}

type ReconcileLineResult struct {
	ProductID     string `json:"product_id"`
	ProductName   string `json:"product_name"`
	SystemStock   int    `json:"system_stock"`
	PhysicalCount int    `json:"physical_count"`
	VarianceQty   int    `json:"variance_qty"`
	Adjusted      bool   `json:"adjusted"`
}

type ReconcileResponse struct {
	AuditID   string                `json:"audit_id"`
	Lines     []ReconcileLineResult `json:"lines"`
	Adjusted  int                   `json:"adjusted"`
	CreatedAt string                `json:"created_at"`
}

type PaymentBreakdown struct {
	PaymentMethod string `json:"payment_method"`
	Transactions  int64  `json:"transactions"`
	TotalCents    int64  `json:"total_cents"`
}

type SalesReport struct {
	From         string             `json:"from"`
	To           string             `json:"to"`
	Transactions int64              `json:"transactions"`
	TotalCents   int64              `json:"total_cents"`
	ByPayment    []PaymentBreakdown `json:"by_payment"`
}

type ProductVolume struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	UnitsSold   int    `json:"units_sold"`
}

// SaleCompleted is delivered to subscribers only after a checkout commit
// succeeds, never before.
type SaleCompleted struct {
	TransactionID string    `json:"transaction_id"`
	TotalCents    int64     `json:"total_cents"`
	PaymentMethod string    `json:"payment_method"`
	At            time.Time `json:"at"`
}

type LowStockAlert struct {
	ProductID   string    `json:"product_id"`
	ProductName string    `json:"product_name"`
	Stock       int       `json:"stock"`
	MinStock    int       `json:"min_stock"`
	RaisedAt    time.Time `json:"raised_at"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}

type CashierCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type CashierUser struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}
