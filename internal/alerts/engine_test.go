package alerts

import (
	"context"
	"testing"
	"time"

	"tokokas/backend/internal/domain"
	"tokokas/backend/internal/store/memory"
	"tokokas/backend/pkg/logger"
)

func commitSale(t *testing.T, repo *memory.Store, productID string, qty int) domain.SaleCompleted {
	t.Helper()
	ctx := context.Background()

	shift, err := repo.GetOpenShift(ctx)
	if err != nil {
		shift, err = repo.OpenShift(ctx, domain.ShiftSession{
			ID:                  "shift-alerts-test",
			OpeningBalanceCents: 100000,
			Status:              domain.ShiftStatusOpen,
			OpenedBy:            "cashier",
			OpenedAt:            time.Now().UTC(),
		})
		if err != nil {
			t.Fatalf("open shift: %v", err)
		}
	}

	product, err := repo.GetProductByID(ctx, productID)
	if err != nil {
		t.Fatalf("load product: %v", err)
	}

	tx, err := repo.CreateCheckout(ctx, domain.Transaction{
		Lines: []domain.SaleLine{{
			ProductID:      product.ID,
			Name:           product.Name,
			UnitPriceCents: product.PriceCents,
			Qty:            qty,
			SubtotalCents:  product.PriceCents * int64(qty),
		}},
		PaymentMethod: domain.PaymentCash,
		ShiftID:       shift.ID,
		Actor:         "cashier",
	})
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	return domain.SaleCompleted{
		TransactionID: tx.ID,
		TotalCents:    tx.TotalCents,
		PaymentMethod: tx.PaymentMethod,
		At:            tx.CreatedAt,
	}
}

func TestHandleSaleRaisesLowStockAlert(t *testing.T) {
	repo := memory.NewSeeded()
	log := logger.New(logger.Config{Env: "test", Level: "error"})
	engine := NewEngine(repo, time.Minute, log)

	// PRD-HANDUK-01 starts at 25 with a minimum of 5.
	event := commitSale(t, repo, "PRD-HANDUK-01", 20)
	engine.HandleSale(event)

	alerts := engine.Recent(10)
	if len(alerts) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(alerts))
	}
	if alerts[0].ProductID != "PRD-HANDUK-01" || alerts[0].Stock != 5 {
		t.Fatalf("unexpected alert %+v", alerts[0])
	}
}

func TestHandleSaleIgnoresHealthyStock(t *testing.T) {
	repo := memory.NewSeeded()
	log := logger.New(logger.Config{Env: "test", Level: "error"})
	engine := NewEngine(repo, time.Minute, log)

	event := commitSale(t, repo, "PRD-AIR-01", 2)
	engine.HandleSale(event)

	if got := engine.Recent(10); len(got) != 0 {
		t.Fatalf("expected no alerts, got %d", len(got))
	}
}

func TestCooldownSuppressesRepeatAlerts(t *testing.T) {
	repo := memory.NewSeeded()
	log := logger.New(logger.Config{Env: "test", Level: "error"})
	engine := NewEngine(repo, time.Hour, log)

	first := commitSale(t, repo, "PRD-HANDUK-01", 20)
	engine.HandleSale(first)
	second := commitSale(t, repo, "PRD-HANDUK-01", 2)
	engine.HandleSale(second)

	if got := engine.Recent(10); len(got) != 1 {
		t.Fatalf("expected cooldown to suppress second alert, got %d", len(got))
	}
}
