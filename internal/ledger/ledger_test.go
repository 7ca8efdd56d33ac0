package ledger

import (
	"testing"

	"tokokas/backend/internal/domain"
)

func TestVarianceZeroWhileOpen(t *testing.T) {
	shift := domain.ShiftSession{
		Status:               domain.ShiftStatusOpen,
		ExpectedClosingCents: 125000,
		ActualClosingCents:   0,
	}
	if got := Variance(shift); got != 0 {
		t.Fatalf("expected variance 0 for an open shift, got %d", got)
	}
}

func TestVarianceAfterClose(t *testing.T) {
	cases := []struct {
		name     string
		expected int64
		actual   int64
		want     int64
		wantType string
	}{
		{"balanced", 125000, 125000, 0, domain.VarianceBalanced},
		{"shortage", 125000, 120000, -5000, domain.VarianceShortage},
		{"overage", 125000, 126500, 1500, domain.VarianceOverage},
	}
	for _, tc := range cases {
		shift := domain.ShiftSession{
			Status:               domain.ShiftStatusClosed,
			ExpectedClosingCents: tc.expected,
			ActualClosingCents:   tc.actual,
		}
		if got := Variance(shift); got != tc.want {
			t.Fatalf("%s: variance = %d, want %d", tc.name, got, tc.want)
		}
		if got := VarianceType(Variance(shift)); got != tc.wantType {
			t.Fatalf("%s: variance type = %s, want %s", tc.name, got, tc.wantType)
		}
	}
}

func TestVarianceTypeIsTotal(t *testing.T) {
	// Every int64 maps to exactly one bucket and balanced only at zero.
	for _, v := range []int64{-1 << 40, -100, -1, 0, 1, 99, 1 << 40} {
		got := VarianceType(v)
		switch {
		case v == 0 && got != domain.VarianceBalanced:
			t.Fatalf("variance %d should be balanced, got %s", v, got)
		case v < 0 && got != domain.VarianceShortage:
			t.Fatalf("variance %d should be shortage, got %s", v, got)
		case v > 0 && got != domain.VarianceOverage:
			t.Fatalf("variance %d should be overage, got %s", v, got)
		}
	}
}

func TestNetCashFlow(t *testing.T) {
	shift := domain.ShiftSession{
		TotalCashSalesCents: 400000,
		TotalFloatInCents:   50000,
		TotalExpensesCents:  30000,
		TotalFloatOutCents:  100000,
	}
	if got := NetCashFlow(shift); got != 320000 {
		t.Fatalf("net cash flow = %d, want 320000", got)
	}
}

func TestExpectedClosingFormula(t *testing.T) {
	shift := domain.ShiftSession{
		OpeningBalanceCents: 100000,
		TotalCashSalesCents: 25000,
	}
	if got := ExpectedClosing(shift); got != 125000 {
		t.Fatalf("expected closing = %d, want 125000", got)
	}

	shift.TotalExpensesCents = 10000
	shift.TotalFloatOutCents = 50000
	shift.TotalFloatInCents = 20000
	if got := ExpectedClosing(shift); got != 85000 {
		t.Fatalf("expected closing = %d, want 85000", got)
	}
}

func TestFilterByTypePreservesOrder(t *testing.T) {
	entries := []domain.CashTransaction{
		{ID: "ct-1", Type: domain.CashTxSale},
		{ID: "ct-2", Type: domain.CashTxExpense},
		{ID: "ct-3", Type: domain.CashTxSale},
		{ID: "ct-4", Type: domain.CashTxFloatIn},
		{ID: "ct-5", Type: domain.CashTxSale},
	}

	sales := FilterByType(entries, domain.CashTxSale)
	if len(sales) != 3 {
		t.Fatalf("expected 3 sale entries, got %d", len(sales))
	}
	for i, id := range []string{"ct-1", "ct-3", "ct-5"} {
		if sales[i].ID != id {
			t.Fatalf("entry %d = %s, want %s (order must be preserved)", i, sales[i].ID, id)
		}
	}

	if got := FilterByType(entries, domain.CashTxFloatOut); len(got) != 0 {
		t.Fatalf("expected no float_out entries, got %d", len(got))
	}
}

func TestStockVariance(t *testing.T) {
	if got := StockVariance(10, 8); got != -2 {
		t.Fatalf("stock variance = %d, want -2", got)
	}
	if got := StockVariance(5, 5); got != 0 {
		t.Fatalf("stock variance = %d, want 0", got)
	}
	if got := StockVariance(3, 7); got != 4 {
		t.Fatalf("stock variance = %d, want 4", got)
	}
}
