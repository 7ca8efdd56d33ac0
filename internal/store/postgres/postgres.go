package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"tokokas/backend/internal/domain"
	"tokokas/backend/internal/ledger"
	"tokokas/backend/internal/store"
)

// Store is the PostgreSQL-backed Repository. The single-open-shift rule is
// a partial unique index on shifts (status = 'open'); checkout, stock
// batches and purchase-order receipts run as serializable transactions with
// row locks, so a failed call never leaves partial state.
type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func newID(prefix string) string {
	return prefix + "-" + uuid.NewString()
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, category, price_cents, stock, min_stock, type, active, created_at, updated_at
		FROM products
		WHERE active = true
		ORDER BY category, name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 128)
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Category, &p.PriceCents, &p.Stock, &p.MinStock, &p.Type, &p.Active, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		p.CreatedAt = p.CreatedAt.UTC()
		p.UpdatedAt = p.UpdatedAt.UTC()
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return products, nil
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
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

	now := time.Now().UTC()
	product.Active = true
	product.CreatedAt = now
	product.UpdatedAt = now
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, name, category, price_cents, stock, min_stock, type, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, product.ID, product.Name, product.Category, product.PriceCents, product.Stock, product.MinStock, product.Type, product.Active, product.CreatedAt, product.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidInput
		}
		return nil, err
	}

	created := product
	return &created, nil
}

func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.ID == "" || product.Name == "" || product.Category == "" || product.PriceCents < 1 {
		return nil, store.ErrInvalidInput
	}

	// Stock is deliberately absent from the SET list; only the inventory
	// ledger moves it.
	var updated domain.Product
	err := s.db.QueryRowContext(ctx, `
		UPDATE products
		SET name = $2, category = $3, price_cents = $4, min_stock = $5, active = $6, updated_at = now()
		WHERE id = $1
		RETURNING id, name, category, price_cents, stock, min_stock, type, active, created_at, updated_at
	`, product.ID, product.Name, product.Category, product.PriceCents, product.MinStock, product.Active).Scan(
		&updated.ID, &updated.Name, &updated.Category, &updated.PriceCents, &updated.Stock,
		&updated.MinStock, &updated.Type, &updated.Active, &updated.CreatedAt, &updated.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	updated.CreatedAt = updated.CreatedAt.UTC()
	updated.UpdatedAt = updated.UpdatedAt.UTC()
	return &updated, nil
}

func (s *Store) GetProductByID(ctx context.Context, id string) (*domain.Product, error) {
	var p domain.Product
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, category, price_cents, stock, min_stock, type, active, created_at, updated_at
		FROM products
		WHERE id = $1
	`, id).Scan(&p.ID, &p.Name, &p.Category, &p.PriceCents, &p.Stock, &p.MinStock, &p.Type, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return &p, nil
}

func (s *Store) GetProductsByIDs(ctx context.Context, ids []string) (map[string]domain.Product, error) {
	result := make(map[string]domain.Product, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, category, price_cents, stock, min_stock, type, active, created_at, updated_at
		FROM products
		WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Category, &p.PriceCents, &p.Stock, &p.MinStock, &p.Type, &p.Active, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		p.CreatedAt = p.CreatedAt.UTC()
		p.UpdatedAt = p.UpdatedAt.UTC()
		result[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (s *Store) OpenShift(ctx context.Context, shift domain.ShiftSession) (*domain.ShiftSession, error) {
	if shift.OpeningBalanceCents < 0 || shift.OpenedBy == "" {
		return nil, store.ErrInvalidInput
	}
	if shift.ID == "" {
		shift.ID = newID("shift")
	}
	if shift.OpenedAt.IsZero() {
		shift.OpenedAt = time.Now().UTC()
	}
	shift.Status = domain.ShiftStatusOpen
	shift.ExpectedClosingCents = shift.OpeningBalanceCents

	// The partial unique index shifts_one_open_idx (status = 'open') turns a
	// concurrent second open into a unique violation.
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO shifts (
			id, opening_balance_cents, total_cash_sales_cents, total_non_cash_sales_cents,
			total_expenses_cents, total_float_in_cents, total_float_out_cents,
			expected_closing_cents, actual_closing_cents, discrepancy_cents,
			status, opened_by, closed_by, opened_at, closed_at
		)
		VALUES ($1,$2,0,0,0,0,0,$3,0,0,$4,$5,'',$6,NULL)
	`, shift.ID, shift.OpeningBalanceCents, shift.ExpectedClosingCents, shift.Status, shift.OpenedBy, shift.OpenedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrShiftAlreadyOpen
		}
		return nil, err
	}

	shift.Transactions = make([]domain.CashTransaction, 0)
	saved := shift
	return &saved, nil
}

const shiftColumns = `
	id, opening_balance_cents, total_cash_sales_cents, total_non_cash_sales_cents,
	total_expenses_cents, total_float_in_cents, total_float_out_cents,
	expected_closing_cents, actual_closing_cents, discrepancy_cents,
	status, opened_by, closed_by, opened_at, closed_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanShift(row rowScanner) (*domain.ShiftSession, error) {
	var shift domain.ShiftSession
	var closedAt sql.NullTime
	err := row.Scan(
		&shift.ID, &shift.OpeningBalanceCents, &shift.TotalCashSalesCents, &shift.TotalNonCashSalesCents,
		&shift.TotalExpensesCents, &shift.TotalFloatInCents, &shift.TotalFloatOutCents,
		&shift.ExpectedClosingCents, &shift.ActualClosingCents, &shift.DiscrepancyCents,
		&shift.Status, &shift.OpenedBy, &shift.ClosedBy, &shift.OpenedAt, &closedAt,
	)
	if err != nil {
		return nil, err
	}
	shift.OpenedAt = shift.OpenedAt.UTC()
	if closedAt.Valid {
		at := closedAt.Time.UTC()
		shift.ClosedAt = &at
	}
	return &shift, nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func loadShiftEntries(ctx context.Context, q querier, shiftID string) ([]domain.CashTransaction, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, shift_id, type, amount_cents, reason, actor, COALESCE(sale_id,''), created_at
		FROM shift_transactions
		WHERE shift_id = $1
		ORDER BY created_at ASC, id ASC
	`, shiftID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]domain.CashTransaction, 0, 32)
	for rows.Next() {
		var entry domain.CashTransaction
		if err := rows.Scan(&entry.ID, &entry.ShiftID, &entry.Type, &entry.AmountCents, &entry.Reason, &entry.Actor, &entry.SaleID, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.CreatedAt = entry.CreatedAt.UTC()
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *Store) getShift(ctx context.Context, where string, args ...any) (*domain.ShiftSession, error) {
	shift, err := scanShift(s.db.QueryRowContext(ctx, `SELECT`+shiftColumns+` FROM shifts WHERE `+where, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	shift.Transactions, err = loadShiftEntries(ctx, s.db, shift.ID)
	if err != nil {
		return nil, err
	}
	return shift, nil
}

func (s *Store) GetOpenShift(ctx context.Context) (*domain.ShiftSession, error) {
	return s.getShift(ctx, `status = 'open' ORDER BY opened_at DESC LIMIT 1`)
}

func (s *Store) GetShiftByID(ctx context.Context, id string) (*domain.ShiftSession, error) {
	return s.getShift(ctx, `id = $1`, id)
}

func (s *Store) ListShifts(ctx context.Context, limit int) ([]domain.ShiftSession, error) {
	if limit < 1 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `SELECT`+shiftColumns+` FROM shifts ORDER BY opened_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	shifts := make([]domain.ShiftSession, 0, limit)
	for rows.Next() {
		shift, err := scanShift(rows)
		if err != nil {
			return nil, err
		}
		shifts = append(shifts, *shift)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range shifts {
		entries, err := loadShiftEntries(ctx, s.db, shifts[i].ID)
		if err != nil {
			return nil, err
		}
		shifts[i].Transactions = entries
	}
	return shifts, nil
}

// lockOpenShift reads the open shift row FOR UPDATE inside tx. Callers
// append ledger lines and rewrite the totals while holding the lock.
func lockOpenShift(ctx context.Context, tx *sql.Tx) (*domain.ShiftSession, error) {
	shift, err := scanShift(tx.QueryRowContext(ctx, `SELECT`+shiftColumns+` FROM shifts WHERE status = 'open' FOR UPDATE`))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNoOpenShift
		}
		return nil, err
	}
	return shift, nil
}

func insertCashEntry(ctx context.Context, tx *sql.Tx, shift *domain.ShiftSession, entry *domain.CashTransaction) error {
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
	shift.ExpectedClosingCents = ledger.ExpectedClosing(*shift)

	if entry.ID == "" {
		entry.ID = newID("ct")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	entry.ShiftID = shift.ID

	_, err := tx.ExecContext(ctx, `
		INSERT INTO shift_transactions (id, shift_id, type, amount_cents, reason, actor, sale_id, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, entry.ID, entry.ShiftID, entry.Type, entry.AmountCents, entry.Reason, entry.Actor, nullIfEmpty(entry.SaleID), entry.CreatedAt)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE shifts
		SET total_cash_sales_cents = $2, total_non_cash_sales_cents = $3, total_expenses_cents = $4,
			total_float_in_cents = $5, total_float_out_cents = $6, expected_closing_cents = $7
		WHERE id = $1
	`, shift.ID, shift.TotalCashSalesCents, shift.TotalNonCashSalesCents, shift.TotalExpensesCents,
		shift.TotalFloatInCents, shift.TotalFloatOutCents, shift.ExpectedClosingCents)
	return err
}

func (s *Store) AppendCashTransaction(ctx context.Context, entry domain.CashTransaction) (*domain.ShiftSession, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	shift, err := lockOpenShift(ctx, tx)
	if err != nil {
		return nil, err
	}
	if err := insertCashEntry(ctx, tx, shift, &entry); err != nil {
		return nil, err
	}

	entries, err := loadShiftEntries(ctx, tx, shift.ID)
	if err != nil {
		return nil, err
	}
	shift.Transactions = entries

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return shift, nil
}

func (s *Store) CloseShift(ctx context.Context, shiftID string, actualClosingCents int64, closedBy string, closedAt time.Time) (*domain.ShiftSession, error) {
	if closedAt.IsZero() {
		closedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	shift, err := lockOpenShift(ctx, tx)
	if err != nil {
		return nil, err
	}
	if shiftID != "" && shiftID != shift.ID {
		return nil, store.ErrNotFound
	}

	shift.Status = domain.ShiftStatusClosed
	shift.ActualClosingCents = actualClosingCents
	shift.DiscrepancyCents = actualClosingCents - shift.ExpectedClosingCents
	shift.ClosedBy = closedBy
	at := closedAt
	shift.ClosedAt = &at

	_, err = tx.ExecContext(ctx, `
		UPDATE shifts
		SET status = 'closed', actual_closing_cents = $2, discrepancy_cents = $3, closed_by = $4, closed_at = $5
		WHERE id = $1
	`, shift.ID, shift.ActualClosingCents, shift.DiscrepancyCents, shift.ClosedBy, closedAt)
	if err != nil {
		return nil, err
	}

	entries, err := loadShiftEntries(ctx, tx, shift.ID)
	if err != nil {
		return nil, err
	}
	shift.Transactions = entries

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return shift, nil
}

func (s *Store) CreateCheckout(ctx context.Context, saleTx domain.Transaction) (*domain.Transaction, error) {
	if len(saleTx.Lines) == 0 {
		return nil, store.ErrEmptyCart
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	shift, err := lockOpenShift(ctx, tx)
	if err != nil {
		return nil, err
	}
	if saleTx.ShiftID != shift.ID {
		return nil, store.ErrNoOpenShift
	}

	ids := uniqueProductIDs(saleTx.Lines)
	needed := make(map[string]int, len(ids))
	for _, line := range saleTx.Lines {
		if line.Qty < 1 {
			return nil, store.ErrInvalidInput
		}
		needed[line.ProductID] += line.Qty
	}

	productRows, err := tx.QueryContext(ctx, `
		SELECT id, name, stock
		FROM products
		WHERE id = ANY($1)
		FOR UPDATE
	`, ids)
	if err != nil {
		return nil, err
	}
	type lockedProduct struct {
		name  string
		stock int
	}
	locked := make(map[string]lockedProduct, len(ids))
	for productRows.Next() {
		var id, name string
		var stock int
		if err := productRows.Scan(&id, &name, &stock); err != nil {
			_ = productRows.Close()
			return nil, err
		}
		locked[id] = lockedProduct{name: name, stock: stock}
	}
	if err := productRows.Err(); err != nil {
		_ = productRows.Close()
		return nil, err
	}
	_ = productRows.Close()

	for productID, qty := range needed {
		product, exists := locked[productID]
		if !exists {
			return nil, fmt.Errorf("%w: product %s", store.ErrNotFound, productID)
		}
		if product.stock < qty {
			return nil, fmt.Errorf("%w: product %s has %d, cart needs %d",
				store.ErrInsufficientStock, productID, product.stock, qty)
		}
	}

	if saleTx.ID == "" {
		saleTx.ID = newID("tx")
	}
	if saleTx.CreatedAt.IsZero() {
		saleTx.CreatedAt = time.Now().UTC()
	}

	total := int64(0)
	for _, line := range saleTx.Lines {
		total += line.SubtotalCents
	}
	saleTx.TotalCents = total

	for _, line := range saleTx.Lines {
		product := locked[line.ProductID]
		previous := product.stock
		product.stock = previous - line.Qty
		locked[line.ProductID] = product

		_, err = tx.ExecContext(ctx, `
			UPDATE products SET stock = $2, updated_at = now() WHERE id = $1
		`, line.ProductID, product.stock)
		if err != nil {
			return nil, err
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO inventory_log (
				id, product_id, product_name, change_type, change_amount,
				previous_stock, new_stock, actor, reference_id, notes, created_at
			)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,'',$10)
		`, newID("inv"), line.ProductID, product.name, domain.ChangeSale, -line.Qty,
			previous, product.stock, saleTx.Actor, saleTx.ID, saleTx.CreatedAt)
		if err != nil {
			return nil, err
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO transactions (id, total_cents, payment_method, reference, member_id, shift_id, actor, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, saleTx.ID, saleTx.TotalCents, saleTx.PaymentMethod, nullIfEmpty(saleTx.Reference),
		nullIfEmpty(saleTx.MemberID), saleTx.ShiftID, saleTx.Actor, saleTx.CreatedAt)
	if err != nil {
		return nil, err
	}

	for _, line := range saleTx.Lines {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO transaction_lines (
				transaction_id, product_id, name, unit_price_cents, qty,
				subtotal_cents, price_overridden, override_reason
			)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		`, saleTx.ID, line.ProductID, line.Name, line.UnitPriceCents, line.Qty,
			line.SubtotalCents, line.PriceOverridden, line.OverrideReason)
		if err != nil {
			return nil, err
		}
	}

	date := saleTx.CreatedAt.UTC().Format("2006-01-02")
	_, err = tx.ExecContext(ctx, `
		INSERT INTO daily_sales (date, total_cents, transaction_count, updated_at)
		VALUES ($1,$2,1,$3)
		ON CONFLICT (date)
		DO UPDATE SET total_cents = daily_sales.total_cents + EXCLUDED.total_cents,
			transaction_count = daily_sales.transaction_count + 1,
			updated_at = EXCLUDED.updated_at
	`, date, saleTx.TotalCents, saleTx.CreatedAt)
	if err != nil {
		return nil, err
	}

	entry := domain.CashTransaction{
		Type:        domain.CashTxSale,
		AmountCents: saleTx.TotalCents,
		Reason:      fmt.Sprintf("sale %s (%s)", saleTx.ID, saleTx.PaymentMethod),
		Actor:       saleTx.Actor,
		SaleID:      saleTx.ID,
		CreatedAt:   saleTx.CreatedAt,
	}
	if saleTx.PaymentMethod == domain.PaymentCash {
		if err := insertCashEntry(ctx, tx, shift, &entry); err != nil {
			return nil, err
		}
	} else {
		// Non-cash sales are mirrored in the ledger but leave the drawer
		// totals alone.
		entry.ID = newID("ct")
		entry.ShiftID = shift.ID
		shift.TotalNonCashSalesCents += saleTx.TotalCents
		_, err = tx.ExecContext(ctx, `
			INSERT INTO shift_transactions (id, shift_id, type, amount_cents, reason, actor, sale_id, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		`, entry.ID, entry.ShiftID, entry.Type, entry.AmountCents, entry.Reason, entry.Actor, nullIfEmpty(entry.SaleID), entry.CreatedAt)
		if err != nil {
			return nil, err
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE shifts SET total_non_cash_sales_cents = $2 WHERE id = $1
		`, shift.ID, shift.TotalNonCashSalesCents)
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &saleTx, nil
}

func (s *Store) FindTransactionByID(ctx context.Context, id string) (*domain.Transaction, error) {
	var tx domain.Transaction
	var reference, memberID sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, total_cents, payment_method, reference, member_id, shift_id, actor, created_at
		FROM transactions
		WHERE id = $1
	`, id).Scan(&tx.ID, &tx.TotalCents, &tx.PaymentMethod, &reference, &memberID, &tx.ShiftID, &tx.Actor, &tx.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if reference.Valid {
		tx.Reference = reference.String
	}
	if memberID.Valid {
		tx.MemberID = memberID.String
	}
	tx.CreatedAt = tx.CreatedAt.UTC()

	tx.Lines, err = s.loadTransactionLines(ctx, tx.ID)
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

func (s *Store) loadTransactionLines(ctx context.Context, transactionID string) ([]domain.SaleLine, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT product_id, name, unit_price_cents, qty, subtotal_cents, price_overridden, override_reason
		FROM transaction_lines
		WHERE transaction_id = $1
		ORDER BY id ASC
	`, transactionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	lines := make([]domain.SaleLine, 0, 8)
	for rows.Next() {
		var line domain.SaleLine
		if err := rows.Scan(&line.ProductID, &line.Name, &line.UnitPriceCents, &line.Qty, &line.SubtotalCents, &line.PriceOverridden, &line.OverrideReason); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

func (s *Store) ListTransactions(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.Transaction, error) {
	// limit <= 0 returns every transaction in the window; the report
	// readers rely on that.
	query := `
		SELECT id, total_cents, payment_method, reference, member_id, shift_id, actor, created_at
		FROM transactions
		WHERE created_at >= $1 AND created_at < $2
		ORDER BY created_at ASC`
	args := []any{from, to}
	if limit > 0 {
		query += " LIMIT $3"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	transactions := make([]domain.Transaction, 0, 64)
	for rows.Next() {
		var tx domain.Transaction
		var reference, memberID sql.NullString
		if err := rows.Scan(&tx.ID, &tx.TotalCents, &tx.PaymentMethod, &reference, &memberID, &tx.ShiftID, &tx.Actor, &tx.CreatedAt); err != nil {
			return nil, err
		}
		if reference.Valid {
			tx.Reference = reference.String
		}
		if memberID.Valid {
			tx.MemberID = memberID.String
		}
		tx.CreatedAt = tx.CreatedAt.UTC()
		transactions = append(transactions, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range transactions {
		lines, err := s.loadTransactionLines(ctx, transactions[i].ID)
		if err != nil {
			return nil, err
		}
		transactions[i].Lines = lines
	}
	return transactions, nil
}

func (s *Store) ApplyStockChanges(ctx context.Context, changes []domain.StockChange) ([]domain.InventoryLogEntry, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	entries, err := applyStockChangesTx(ctx, tx, changes)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return entries, nil
}

// applyStockChangesTx locks the touched product rows, validates the whole
// batch against resulting negative stock, then applies each change and
// writes its log entry. Runs inside the caller's transaction.
func applyStockChangesTx(ctx context.Context, tx *sql.Tx, changes []domain.StockChange) ([]domain.InventoryLogEntry, error) {
	if len(changes) == 0 {
		return nil, store.ErrInvalidInput
	}

	ids := make([]string, 0, len(changes))
	seen := make(map[string]struct{}, len(changes))
	for _, change := range changes {
		if change.Delta == 0 {
			return nil, store.ErrInvalidInput
		}
		if _, ok := seen[change.ProductID]; ok {
			continue
		}
		seen[change.ProductID] = struct{}{}
		ids = append(ids, change.ProductID)
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT id, name, stock
		FROM products
		WHERE id = ANY($1)
		FOR UPDATE
	`, ids)
	if err != nil {
		return nil, err
	}
	type lockedProduct struct {
		name  string
		stock int
	}
	locked := make(map[string]lockedProduct, len(ids))
	for rows.Next() {
		var id, name string
		var stock int
		if err := rows.Scan(&id, &name, &stock); err != nil {
			_ = rows.Close()
			return nil, err
		}
		locked[id] = lockedProduct{name: name, stock: stock}
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	projected := make(map[string]int, len(ids))
	for _, change := range changes {
		product, exists := locked[change.ProductID]
		if !exists {
			return nil, fmt.Errorf("%w: product %s", store.ErrNotFound, change.ProductID)
		}
		if _, ok := projected[change.ProductID]; !ok {
			projected[change.ProductID] = product.stock
		}
		projected[change.ProductID] += change.Delta
		if projected[change.ProductID] < 0 {
			return nil, fmt.Errorf("%w: product %s", store.ErrInsufficientStock, change.ProductID)
		}
	}

	now := time.Now().UTC()
	entries := make([]domain.InventoryLogEntry, 0, len(changes))
	for _, change := range changes {
		product := locked[change.ProductID]
		previous := product.stock
		product.stock = previous + change.Delta
		locked[change.ProductID] = product

		_, err = tx.ExecContext(ctx, `
			UPDATE products SET stock = $2, updated_at = now() WHERE id = $1
		`, change.ProductID, product.stock)
		if err != nil {
			return nil, err
		}

		entry := domain.InventoryLogEntry{
			ID:            newID("inv"),
			ProductID:     change.ProductID,
			ProductName:   product.name,
			ChangeType:    change.ChangeType,
			ChangeAmount:  change.Delta,
			PreviousStock: previous,
			NewStock:      product.stock,
			Actor:         change.Actor,
			ReferenceID:   change.ReferenceID,
			Notes:         change.Notes,
			CreatedAt:     now,
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO inventory_log (
				id, product_id, product_name, change_type, change_amount,
				previous_stock, new_stock, actor, reference_id, notes, created_at
			)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		`, entry.ID, entry.ProductID, entry.ProductName, entry.ChangeType, entry.ChangeAmount,
			entry.PreviousStock, entry.NewStock, entry.Actor, nullIfEmpty(entry.ReferenceID), entry.Notes, entry.CreatedAt)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (s *Store) ListInventoryLog(ctx context.Context, productID string, limit int) ([]domain.InventoryLogEntry, error) {
	if limit < 1 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, product_id, product_name, change_type, change_amount,
			previous_stock, new_stock, actor, COALESCE(reference_id,''), notes, created_at
		FROM inventory_log
		WHERE ($1 = '' OR product_id = $1)
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, productID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]domain.InventoryLogEntry, 0, limit)
	for rows.Next() {
		var entry domain.InventoryLogEntry
		if err := rows.Scan(&entry.ID, &entry.ProductID, &entry.ProductName, &entry.ChangeType, &entry.ChangeAmount,
			&entry.PreviousStock, &entry.NewStock, &entry.Actor, &entry.ReferenceID, &entry.Notes, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.CreatedAt = entry.CreatedAt.UTC()
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *Store) CreateSupplier(ctx context.Context, supplier domain.Supplier) (*domain.Supplier, error) {
	if supplier.Name == "" {
		return nil, store.ErrInvalidInput
	}
	if supplier.ID == "" {
		supplier.ID = newID("sup")
	}
	if supplier.CreatedAt.IsZero() {
		supplier.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO suppliers (id, name, phone, created_at)
		VALUES ($1,$2,$3,$4)
	`, supplier.ID, supplier.Name, supplier.Phone, supplier.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidInput
		}
		return nil, err
	}
	created := supplier
	return &created, nil
}

func (s *Store) ListSuppliers(ctx context.Context) ([]domain.Supplier, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, phone, created_at
		FROM suppliers
		ORDER BY name ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	suppliers := make([]domain.Supplier, 0, 16)
	for rows.Next() {
		var supplier domain.Supplier
		if err := rows.Scan(&supplier.ID, &supplier.Name, &supplier.Phone, &supplier.CreatedAt); err != nil {
			return nil, err
		}
		supplier.CreatedAt = supplier.CreatedAt.UTC()
		suppliers = append(suppliers, supplier)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return suppliers, nil
}

func (s *Store) CreatePurchaseOrder(ctx context.Context, po domain.PurchaseOrder) (*domain.PurchaseOrder, error) {
	if po.SupplierID == "" || len(po.Items) == 0 {
		return nil, store.ErrInvalidInput
	}
	for _, item := range po.Items {
		if item.Qty < 1 || item.CostCents < 0 {
			return nil, store.ErrInvalidInput
		}
	}
	if po.ID == "" {
		po.ID = newID("po")
	}
	if po.CreatedAt.IsZero() {
		po.CreatedAt = time.Now().UTC()
	}
	po.Status = domain.PurchaseOrderDraft

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO purchase_orders (id, supplier_id, status, created_by, created_at, received_by, received_at)
		VALUES ($1,$2,$3,$4,$5,'',NULL)
	`, po.ID, po.SupplierID, po.Status, po.CreatedBy, po.CreatedAt)
	if err != nil {
		return nil, err
	}

	for _, item := range po.Items {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO purchase_order_items (purchase_order_id, product_id, qty, cost_cents)
			VALUES ($1,$2,$3,$4)
		`, po.ID, item.ProductID, item.Qty, item.CostCents)
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	created := po
	return &created, nil
}

func (s *Store) loadPurchaseOrderItems(ctx context.Context, q querier, purchaseOrderID string) ([]domain.PurchaseOrderItem, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT product_id, qty, cost_cents
		FROM purchase_order_items
		WHERE purchase_order_id = $1
		ORDER BY id ASC
	`, purchaseOrderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.PurchaseOrderItem, 0, 8)
	for rows.Next() {
		var item domain.PurchaseOrderItem
		if err := rows.Scan(&item.ProductID, &item.Qty, &item.CostCents); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func scanPurchaseOrder(row rowScanner) (*domain.PurchaseOrder, error) {
	var po domain.PurchaseOrder
	var receivedAt sql.NullTime
	err := row.Scan(&po.ID, &po.SupplierID, &po.Status, &po.CreatedBy, &po.CreatedAt, &po.ReceivedBy, &receivedAt)
	if err != nil {
		return nil, err
	}
	po.CreatedAt = po.CreatedAt.UTC()
	if receivedAt.Valid {
		at := receivedAt.Time.UTC()
		po.ReceivedAt = &at
	}
	return &po, nil
}

func (s *Store) GetPurchaseOrderByID(ctx context.Context, purchaseOrderID string) (*domain.PurchaseOrder, error) {
	po, err := scanPurchaseOrder(s.db.QueryRowContext(ctx, `
		SELECT id, supplier_id, status, created_by, created_at, received_by, received_at
		FROM purchase_orders
		WHERE id = $1
	`, purchaseOrderID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	po.Items, err = s.loadPurchaseOrderItems(ctx, s.db, po.ID)
	if err != nil {
		return nil, err
	}
	return po, nil
}

func (s *Store) ListPurchaseOrders(ctx context.Context, status string, limit int) ([]domain.PurchaseOrder, error) {
	if limit < 1 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, supplier_id, status, created_by, created_at, received_by, received_at
		FROM purchase_orders
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC
		LIMIT $2
	`, status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := make([]domain.PurchaseOrder, 0, limit)
	for rows.Next() {
		po, err := scanPurchaseOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *po)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range orders {
		items, err := s.loadPurchaseOrderItems(ctx, s.db, orders[i].ID)
		if err != nil {
			return nil, err
		}
		orders[i].Items = items
	}
	return orders, nil
}

func (s *Store) ReceivePurchaseOrder(ctx context.Context, purchaseOrderID string, receivedBy string, receivedAt time.Time) (*domain.PurchaseOrder, error) {
	if receivedAt.IsZero() {
		receivedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	po, err := scanPurchaseOrder(tx.QueryRowContext(ctx, `
		SELECT id, supplier_id, status, created_by, created_at, received_by, received_at
		FROM purchase_orders
		WHERE id = $1
		FOR UPDATE
	`, purchaseOrderID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if po.Status == domain.PurchaseOrderReceived {
		return nil, store.ErrInvalidInput
	}

	po.Items, err = s.loadPurchaseOrderItems(ctx, tx, po.ID)
	if err != nil {
		return nil, err
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
	if _, err := applyStockChangesTx(ctx, tx, changes); err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE purchase_orders
		SET status = $2, received_by = $3, received_at = $4
		WHERE id = $1
	`, po.ID, domain.PurchaseOrderReceived, receivedBy, receivedAt)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	po.Status = domain.PurchaseOrderReceived
	po.ReceivedBy = receivedBy
	at := receivedAt
	po.ReceivedAt = &at
	return po, nil
}

func (s *Store) GetDailySales(ctx context.Context, date string) (*domain.DailySalesAggregate, error) {
	var agg domain.DailySalesAggregate
	err := s.db.QueryRowContext(ctx, `
		SELECT date, total_cents, transaction_count, updated_at
		FROM daily_sales
		WHERE date = $1
	`, date).Scan(&agg.Date, &agg.TotalCents, &agg.TransactionCount, &agg.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	agg.UpdatedAt = agg.UpdatedAt.UTC()
	return &agg, nil
}

func (s *Store) RebuildDailySales(ctx context.Context, date string) (*domain.DailySalesAggregate, error) {
	var agg domain.DailySalesAggregate
	agg.Date = date
	agg.UpdatedAt = time.Now().UTC()

	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(total_cents),0)::bigint, COUNT(*)::bigint
		FROM transactions
		WHERE created_at >= $1::date AND created_at < $1::date + interval '1 day'
	`, date).Scan(&agg.TotalCents, &agg.TransactionCount)
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO daily_sales (date, total_cents, transaction_count, updated_at)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (date)
		DO UPDATE SET total_cents = EXCLUDED.total_cents,
			transaction_count = EXCLUDED.transaction_count,
			updated_at = EXCLUDED.updated_at
	`, agg.Date, agg.TotalCents, agg.TransactionCount, agg.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &agg, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	if user.Username == "" || user.Password == "" {
		return store.ErrInvalidInput
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, password, role, active, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, user.Username, user.Password, user.Role, user.Active, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrInvalidInput
		}
		return err
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, role, active, created_at
		FROM users
		ORDER BY username ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 8)
	for rows.Next() {
		var user domain.UserAccount
		if err := rows.Scan(&user.Username, &user.Password, &user.Role, &user.Active, &user.CreatedAt); err != nil {
			return nil, err
		}
		user.CreatedAt = user.CreatedAt.UTC()
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET password = $2 WHERE username = $1
	`, username, password)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func uniqueProductIDs(lines []domain.SaleLine) []string {
	set := make(map[string]struct{}, len(lines))
	ids := make([]string, 0, len(lines))
	for _, line := range lines {
		if line.ProductID == "" {
			continue
		}
		if _, ok := set[line.ProductID]; ok {
			continue
		}
		set[line.ProductID] = struct{}{}
		ids = append(ids, line.ProductID)
	}
	return ids
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}
