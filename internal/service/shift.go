package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tokokas/backend/internal/domain"
	"tokokas/backend/internal/ledger"
	"tokokas/backend/internal/store"
)

func (s *Service) OpenShift(ctx context.Context, req domain.ShiftOpenRequest) (domain.ShiftSession, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.ShiftSession{}, err
	}
	if req.OpeningBalanceCents < 0 {
		return domain.ShiftSession{}, store.ErrInvalidInput
	}

	shift, err := s.repo.OpenShift(ctx, domain.ShiftSession{
		ID:                  newID("shift"),
		OpeningBalanceCents: req.OpeningBalanceCents,
		OpenedBy:            actor.Username,
		OpenedAt:            time.Now().UTC(),
	})
	if err != nil {
		return domain.ShiftSession{}, err
	}

	s.setCurrentShift(shift)
	s.refreshShiftCache(ctx, shift)

	s.log.Info().
		Str("shift_id", shift.ID).
		Str("actor", actor.Username).
		Int64("opening_cents", shift.OpeningBalanceCents).
		Msg("shift opened")
	return *shift, nil
}

func (s *Service) CloseShift(ctx context.Context, req domain.ShiftCloseRequest) (domain.ShiftSession, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.ShiftSession{}, err
	}
	if req.ActualClosingCents < 0 {
		return domain.ShiftSession{}, store.ErrInvalidInput
	}

	closed, err := s.repo.CloseShift(ctx, "", req.ActualClosingCents, actor.Username, time.Now().UTC())
	if err != nil {
		return domain.ShiftSession{}, err
	}

	s.setCurrentShift(nil)
	if err := s.shiftCache.Delete(ctx, shiftCacheKey); err != nil {
		s.log.Warn().Err(err).Msg("shift cache invalidate")
	}

	variance := ledger.Variance(*closed)
	s.log.Info().
		Str("shift_id", closed.ID).
		Str("actor", actor.Username).
		Int64("expected_cents", closed.ExpectedClosingCents).
		Int64("actual_cents", closed.ActualClosingCents).
		Int64("discrepancy_cents", variance).
		Str("variance", ledger.VarianceType(variance)).
		Msg("shift closed")
	return *closed, nil
}

func (s *Service) AddExpense(ctx context.Context, req domain.CashTransactionRequest) (domain.ShiftSession, error) {
	return s.addCashTransaction(ctx, domain.CashTxExpense, req)
}

func (s *Service) AddFloatIn(ctx context.Context, req domain.CashTransactionRequest) (domain.ShiftSession, error) {
	return s.addCashTransaction(ctx, domain.CashTxFloatIn, req)
}

func (s *Service) AddFloatOut(ctx context.Context, req domain.CashTransactionRequest) (domain.ShiftSession, error) {
	return s.addCashTransaction(ctx, domain.CashTxFloatOut, req)
}

func (s *Service) addCashTransaction(ctx context.Context, txType string, req domain.CashTransactionRequest) (domain.ShiftSession, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.ShiftSession{}, err
	}
	if req.AmountCents <= 0 {
		return domain.ShiftSession{}, fmt.Errorf("%w: amount must be positive", store.ErrInvalidInput)
	}
	if strings.TrimSpace(req.Reason) == "" {
		return domain.ShiftSession{}, fmt.Errorf("%w: reason required", store.ErrInvalidInput)
	}

	shift, err := s.repo.AppendCashTransaction(ctx, domain.CashTransaction{
		ID:          newID("ct"),
		Type:        txType,
		AmountCents: req.AmountCents,
		Reason:      strings.TrimSpace(req.Reason),
		Actor:       actor.Username,
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		return domain.ShiftSession{}, err
	}

	s.setCurrentShift(shift)
	s.refreshShiftCache(ctx, shift)

	s.log.Info().
		Str("shift_id", shift.ID).
		Str("type", txType).
		Int64("amount_cents", req.AmountCents).
		Str("actor", actor.Username).
		Msg("cash transaction recorded")
	return *shift, nil
}

func (s *Service) IsShiftOpen() bool {
	return s.cachedShift() != nil
}

// CurrentShift reads the open shift, preferring the process cache and
// falling back to the store.
func (s *Service) CurrentShift(ctx context.Context) (domain.ShiftSession, error) {
	if shift := s.cachedShift(); shift != nil {
		return *shift, nil
	}

	shift, err := s.repo.GetOpenShift(ctx)
	if err != nil {
		if isNotFound(err) {
			return domain.ShiftSession{}, store.ErrNoOpenShift
		}
		return domain.ShiftSession{}, err
	}
	s.setCurrentShift(shift)
	return *shift, nil
}

// CurrentCash is the drawer's expected content right now.
func (s *Service) CurrentCash(ctx context.Context) (int64, error) {
	shift, err := s.CurrentShift(ctx)
	if err != nil {
		return 0, err
	}
	return shift.ExpectedClosingCents, nil
}

func (s *Service) ShiftSummary(ctx context.Context) (domain.ShiftSummary, error) {
	if summary, ok, err := s.shiftCache.Get(ctx, shiftCacheKey); err == nil && ok {
		return *summary, nil
	}

	shift, err := s.CurrentShift(ctx)
	if err != nil {
		return domain.ShiftSummary{}, err
	}

	summary := summarize(&shift)
	if err := s.shiftCache.Set(ctx, shiftCacheKey, &summary, s.shiftCacheTTL); err != nil {
		s.log.Warn().Err(err).Msg("shift cache set")
	}
	return summary, nil
}

func (s *Service) refreshShiftCache(ctx context.Context, shift *domain.ShiftSession) {
	summary := summarize(shift)
	if err := s.shiftCache.Set(ctx, shiftCacheKey, &summary, s.shiftCacheTTL); err != nil {
		s.log.Warn().Err(err).Msg("shift cache set")
	}
}

func summarize(shift *domain.ShiftSession) domain.ShiftSummary {
	return domain.ShiftSummary{
		ShiftID:                shift.ID,
		Status:                 shift.Status,
		OpeningBalanceCents:    shift.OpeningBalanceCents,
		TotalCashSalesCents:    shift.TotalCashSalesCents,
		TotalNonCashSalesCents: shift.TotalNonCashSalesCents,
		TotalExpensesCents:     shift.TotalExpensesCents,
		TotalFloatInCents:      shift.TotalFloatInCents,
		TotalFloatOutCents:     shift.TotalFloatOutCents,
		ExpectedClosingCents:   shift.ExpectedClosingCents,
		CurrentCashCents:       shift.ExpectedClosingCents,
		EntryCount:             len(shift.Transactions),
		OpenedBy:               shift.OpenedBy,
		OpenedAt:               shift.OpenedAt.Format(time.RFC3339),
	}
}

func (s *Service) ListShifts(ctx context.Context, limit int) ([]domain.ShiftSession, error) {
	return s.repo.ListShifts(ctx, limit)
}

func (s *Service) GetShift(ctx context.Context, id string) (domain.ShiftSession, error) {
	shift, err := s.repo.GetShiftByID(ctx, id)
	if err != nil {
		return domain.ShiftSession{}, err
	}
	return *shift, nil
}
