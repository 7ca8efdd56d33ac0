// Package ledger holds the pure cash and stock arithmetic shared by the
// shift manager, the reconciliation engine and the reports. No I/O.
package ledger

import "tokokas/backend/internal/domain"

// Variance returns actual minus expected closing balance. Zero until the
// shift has been closed.
func Variance(shift domain.ShiftSession) int64 {
	if shift.Status != domain.ShiftStatusClosed {
		return 0
	}
	return shift.ActualClosingCents - shift.ExpectedClosingCents
}

func VarianceType(varianceCents int64) string {
	switch {
	case varianceCents < 0:
		return domain.VarianceShortage
	case varianceCents > 0:
		return domain.VarianceOverage
	default:
		return domain.VarianceBalanced
	}
}

// NetCashFlow is total inflow (cash sales + float in) minus total outflow
// (expenses + float out), ignoring the opening balance.
func NetCashFlow(shift domain.ShiftSession) int64 {
	return (shift.TotalCashSalesCents + shift.TotalFloatInCents) -
		(shift.TotalExpensesCents + shift.TotalFloatOutCents)
}

// ExpectedClosing recomputes the derived drawer balance from the running
// totals. The store keeps the persisted field in sync with this formula.
func ExpectedClosing(shift domain.ShiftSession) int64 {
	return shift.OpeningBalanceCents +
		shift.TotalCashSalesCents +
		shift.TotalFloatInCents -
		shift.TotalExpensesCents -
		shift.TotalFloatOutCents
}

// FilterByType returns the ledger lines of the given type, preserving order.
func FilterByType(entries []domain.CashTransaction, txType string) []domain.CashTransaction {
	filtered := make([]domain.CashTransaction, 0, len(entries))
	for _, entry := range entries {
		if entry.Type == txType {
			filtered = append(filtered, entry)
		}
	}
	return filtered
}

// StockVariance is physical count minus system stock: negative means the
// shelf holds less than the books say.
func StockVariance(systemStock int, physicalCount int) int {
	return physicalCount - systemStock
}
