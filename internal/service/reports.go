package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"tokokas/backend/internal/domain"
	"tokokas/backend/internal/store"
)

func parseDate(date string) (time.Time, error) {
	day, err := time.ParseInLocation("2006-01-02", date, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date must be YYYY-MM-DD", store.ErrInvalidInput)
	}
	return day, nil
}

// DailySales reads the incrementally maintained aggregate. With rebuild
// set it recomputes the day from the committed transactions first, which
// also repairs a drifted aggregate.
func (s *Service) DailySales(ctx context.Context, date string, rebuild bool) (domain.DailySalesAggregate, error) {
	if _, err := parseDate(date); err != nil {
		return domain.DailySalesAggregate{}, err
	}

	if rebuild {
		agg, err := s.repo.RebuildDailySales(ctx, date)
		if err != nil {
			return domain.DailySalesAggregate{}, err
		}
		return *agg, nil
	}

	agg, err := s.repo.GetDailySales(ctx, date)
	if err != nil {
		if isNotFound(err) {
			return domain.DailySalesAggregate{Date: date}, nil
		}
		return domain.DailySalesAggregate{}, err
	}
	return *agg, nil
}

// SalesReport replays committed transactions in [from, to) and totals them
// by payment method.
func (s *Service) SalesReport(ctx context.Context, fromDate string, toDate string) (domain.SalesReport, error) {
	from, err := parseDate(fromDate)
	if err != nil {
		return domain.SalesReport{}, err
	}
	to, err := parseDate(toDate)
	if err != nil {
		return domain.SalesReport{}, err
	}
	to = to.AddDate(0, 0, 1)
	if !from.Before(to) {
		return domain.SalesReport{}, fmt.Errorf("%w: from must not be after to", store.ErrInvalidInput)
	}

	transactions, err := s.repo.ListTransactions(ctx, from, to, 0)
	if err != nil {
		return domain.SalesReport{}, err
	}

	report := domain.SalesReport{From: fromDate, To: toDate}
	byPayment := make(map[string]*domain.PaymentBreakdown, 4)
	for _, tx := range transactions {
		report.Transactions++
		report.TotalCents += tx.TotalCents

		row, exists := byPayment[tx.PaymentMethod]
		if !exists {
			row = &domain.PaymentBreakdown{PaymentMethod: tx.PaymentMethod}
			byPayment[tx.PaymentMethod] = row
		}
		row.Transactions++
		row.TotalCents += tx.TotalCents
	}

	report.ByPayment = make([]domain.PaymentBreakdown, 0, len(byPayment))
	for _, row := range byPayment {
		report.ByPayment = append(report.ByPayment, *row)
	}
	sort.Slice(report.ByPayment, func(i, j int) bool {
		return report.ByPayment[i].PaymentMethod < report.ByPayment[j].PaymentMethod
	})
	return report, nil
}

// ProductVolume counts units sold per product over [from, to), replaying
// the sale lines of committed transactions.
func (s *Service) ProductVolume(ctx context.Context, fromDate string, toDate string) ([]domain.ProductVolume, error) {
	from, err := parseDate(fromDate)
	if err != nil {
		return nil, err
	}
	to, err := parseDate(toDate)
	if err != nil {
		return nil, err
	}
	to = to.AddDate(0, 0, 1)

	transactions, err := s.repo.ListTransactions(ctx, from, to, 0)
	if err != nil {
		return nil, err
	}

	units := make(map[string]*domain.ProductVolume, 16)
	for _, tx := range transactions {
		for _, line := range tx.Lines {
			row, exists := units[line.ProductID]
			if !exists {
				row = &domain.ProductVolume{ProductID: line.ProductID, ProductName: line.Name}
				units[line.ProductID] = row
			}
			row.UnitsSold += line.Qty
		}
	}

	volumes := make([]domain.ProductVolume, 0, len(units))
	for _, row := range units {
		volumes = append(volumes, *row)
	}
	sort.Slice(volumes, func(i, j int) bool {
		if volumes[i].UnitsSold == volumes[j].UnitsSold {
			return volumes[i].ProductID < volumes[j].ProductID
		}
		return volumes[i].UnitsSold > volumes[j].UnitsSold
	})
	return volumes, nil
}

func (s *Service) ListTransactions(ctx context.Context, fromDate string, toDate string, limit int) ([]domain.Transaction, error) {
	from, err := parseDate(fromDate)
	if err != nil {
		return nil, err
	}
	to, err := parseDate(toDate)
	if err != nil {
		return nil, err
	}
	return s.repo.ListTransactions(ctx, from, to.AddDate(0, 0, 1), limit)
}
