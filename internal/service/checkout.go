package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"tokokas/backend/internal/domain"
	"tokokas/backend/internal/renewal"
	"tokokas/backend/internal/store"
)

func isSupportedPaymentMethod(method string) bool {
	switch method {
	case domain.PaymentCash, domain.PaymentCard, domain.PaymentQRIS, domain.PaymentTransfer:
		return true
	}
	return false
}

// Checkout settles a cart in one store commit: stock decrements, SALE log
// entries, the immutable sale record, the daily aggregate bump and the
// shift ledger append all land together or not at all. Events and renewals
// run strictly after the commit.
func (s *Service) Checkout(ctx context.Context, req domain.CheckoutRequest) (domain.CheckoutResponse, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.CheckoutResponse{}, err
	}

	shift, err := s.CurrentShift(ctx)
	if err != nil {
		if errors.Is(err, store.ErrNoOpenShift) || isNotFound(err) {
			return domain.CheckoutResponse{}, store.ErrRegisterClosed
		}
		return domain.CheckoutResponse{}, err
	}

	if len(req.Items) == 0 {
		return domain.CheckoutResponse{}, store.ErrEmptyCart
	}
	if req.PaymentMethod == "" {
		req.PaymentMethod = domain.PaymentCash
	}
	if !isSupportedPaymentMethod(req.PaymentMethod) {
		return domain.CheckoutResponse{}, fmt.Errorf("%w: payment method %s", store.ErrInvalidInput, req.PaymentMethod)
	}

	ids := make([]string, 0, len(req.Items))
	for _, item := range req.Items {
		if item.Qty < 1 {
			return domain.CheckoutResponse{}, fmt.Errorf("%w: qty must be at least 1", store.ErrInvalidInput)
		}
		ids = append(ids, item.ProductID)
	}

	products, err := s.fetchProducts(ctx, ids)
	if err != nil {
		return domain.CheckoutResponse{}, err
	}

	lines := make([]domain.SaleLine, 0, len(req.Items))
	total := int64(0)
	for _, item := range req.Items {
		product, exists := products[item.ProductID]
		if !exists {
			// A single missing product aborts the whole checkout.
			return domain.CheckoutResponse{}, fmt.Errorf("%w: product %s", store.ErrNotFound, item.ProductID)
		}
		if !product.Active {
			return domain.CheckoutResponse{}, fmt.Errorf("%w: product %s is inactive", store.ErrInvalidInput, product.ID)
		}
		if product.Type != domain.ProductTypeRetail {
			return domain.CheckoutResponse{}, fmt.Errorf("%w: product %s is not sellable", store.ErrInvalidInput, product.ID)
		}

		unitPrice := product.PriceCents
		overridden := false
		if item.UnitPriceCents > 0 && item.UnitPriceCents != product.PriceCents {
			if strings.TrimSpace(item.OverrideReason) == "" {
				return domain.CheckoutResponse{}, fmt.Errorf("%w: price override requires a reason", store.ErrInvalidInput)
			}
			if actor.Role != "admin" {
				return domain.CheckoutResponse{}, fmt.Errorf("price override requires admin role")
			}
			unitPrice = item.UnitPriceCents
			overridden = true
		}

		subtotal := unitPrice * int64(item.Qty)
		lines = append(lines, domain.SaleLine{
			ProductID:       product.ID,
			Name:            product.Name,
			UnitPriceCents:  unitPrice,
			Qty:             item.Qty,
			SubtotalCents:   subtotal,
			PriceOverridden: overridden,
			OverrideReason:  strings.TrimSpace(item.OverrideReason),
		})
		total += subtotal
	}

	changeCents := int64(0)
	if req.PaymentMethod == domain.PaymentCash && req.TenderedCents > 0 {
		if req.TenderedCents < total {
			return domain.CheckoutResponse{}, fmt.Errorf("%w: tendered %d below total %d", store.ErrInvalidInput, req.TenderedCents, total)
		}
		changeCents = req.TenderedCents - total
	}

	saved, err := s.repo.CreateCheckout(ctx, domain.Transaction{
		ID:            newID("tx"),
		Lines:         lines,
		TotalCents:    total,
		PaymentMethod: req.PaymentMethod,
		Reference:     strings.TrimSpace(req.Reference),
		MemberID:      strings.TrimSpace(req.MemberID),
		ShiftID:       shift.ID,
		Actor:         actor.Username,
		CreatedAt:     time.Now().UTC(),
	})
	if err != nil {
		return domain.CheckoutResponse{}, err
	}

	// The shift row changed inside the commit; refresh the process mirror.
	// The sale is durable either way, so a failed refresh only leaves the
	// mirror stale until the next shift mutation.
	if fresh, err := s.repo.GetOpenShift(ctx); err == nil {
		s.setCurrentShift(fresh)
		s.refreshShiftCache(ctx, fresh)
	} else {
		s.log.Warn().Err(err).
			Str("transaction_id", saved.ID).
			Msg("shift mirror refresh after checkout")
	}

	s.afterCheckout(ctx, saved, products)

	s.log.Info().
		Str("transaction_id", saved.ID).
		Str("shift_id", saved.ShiftID).
		Str("payment_method", saved.PaymentMethod).
		Int64("total_cents", saved.TotalCents).
		Str("actor", actor.Username).
		Bool("synthetic_cart", req.SyntheticCart).
		Msg("checkout settled")

	return domain.CheckoutResponse{
		TransactionID: saved.ID,
		TotalCents:    saved.TotalCents,
		PaymentMethod: saved.PaymentMethod,
		ChangeCents:   changeCents,
		ShiftID:       saved.ShiftID,
		Lines:         saved.Lines,
		CreatedAt:     saved.CreatedAt.Format(time.RFC3339),
	}, nil
}

// afterCheckout runs the post-commit side effects. Nothing here can fail
// the sale; the transaction is already durable.
func (s *Service) afterCheckout(ctx context.Context, tx *domain.Transaction, products map[string]domain.Product) {
	if s.bus != nil {
		s.bus.Publish(ctx, domain.SaleCompleted{
			TransactionID: tx.ID,
			TotalCents:    tx.TotalCents,
			PaymentMethod: tx.PaymentMethod,
			At:            tx.CreatedAt,
		})
	}

	if s.renewals == nil || tx.MemberID == "" {
		return
	}
	for _, line := range tx.Lines {
		product, exists := products[line.ProductID]
		if !exists {
			continue
		}
		if _, triggers := s.renewalCategories[product.Category]; !triggers {
			continue
		}
		s.renewals.Enqueue(renewal.Job{
			MemberID:      tx.MemberID,
			ProductID:     product.ID,
			Category:      product.Category,
			TransactionID: tx.ID,
		})
	}
}
