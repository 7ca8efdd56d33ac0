package postgres

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"tokokas/backend/internal/domain"
)

func TestCheckoutDeductsStockAndSettlesShift(t *testing.T) {
	databaseURL := os.Getenv("TOKOKAS_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set TOKOKAS_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})

	stamp := time.Now().UnixNano()
	productID := fmt.Sprintf("prd-checkout-it-%d", stamp)
	shiftID := fmt.Sprintf("shift-checkout-it-%d", stamp)

	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM shift_transactions WHERE shift_id = $1`, shiftID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM transaction_lines WHERE product_id = $1`, productID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM transactions WHERE shift_id = $1`, shiftID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM inventory_log WHERE product_id = $1`, productID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM shifts WHERE id = $1`, shiftID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, productID)
	})

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, name, category, price_cents, stock, min_stock, type, active, created_at, updated_at)
		VALUES ($1, 'Checkout IT Product', 'snack', 12000, 10, 2, 'RETAIL', true, now(), now())
	`, productID); err != nil {
		t.Fatalf("insert product: %v", err)
	}

	shift, err := s.OpenShift(ctx, domain.ShiftSession{
		ID:                  shiftID,
		OpeningBalanceCents: 100000,
		OpenedBy:            "it-cashier",
	})
	if err != nil {
		t.Fatalf("open shift: %v", err)
	}

	saved, err := s.CreateCheckout(ctx, domain.Transaction{
		Lines: []domain.SaleLine{
			{ProductID: productID, Name: "Checkout IT Product", UnitPriceCents: 12000, Qty: 2, SubtotalCents: 24000},
		},
		PaymentMethod: domain.PaymentCash,
		ShiftID:       shift.ID,
		Actor:         "it-cashier",
	})
	if err != nil {
		t.Fatalf("create checkout: %v", err)
	}
	if saved.TotalCents != 24000 {
		t.Fatalf("expected total 24000, got %d", saved.TotalCents)
	}

	product, err := s.GetProductByID(ctx, productID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if product.Stock != 8 {
		t.Fatalf("expected stock 8 after checkout, got %d", product.Stock)
	}

	closed, err := s.CloseShift(ctx, shift.ID, 124000, "it-cashier", time.Now().UTC())
	if err != nil {
		t.Fatalf("close shift: %v", err)
	}
	if closed.ExpectedClosingCents != 124000 {
		t.Fatalf("expected closing 124000, got %d", closed.ExpectedClosingCents)
	}
	if closed.DiscrepancyCents != 0 {
		t.Fatalf("expected zero discrepancy, got %d", closed.DiscrepancyCents)
	}

	entries, err := s.ListInventoryLog(ctx, productID, 10)
	if err != nil {
		t.Fatalf("list inventory log: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(entries))
	}
	entry := entries[0]
	if entry.ChangeType != domain.ChangeSale || entry.ChangeAmount != -2 {
		t.Fatalf("unexpected log entry: %+v", entry)
	}
	if entry.NewStock != entry.PreviousStock+entry.ChangeAmount {
		t.Fatalf("log entry arithmetic broken: %+v", entry)
	}
}
