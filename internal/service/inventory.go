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

// LogConsumption records internal use of a consumable. A non-positive
// amount is a documented no-op.
func (s *Service) LogConsumption(ctx context.Context, req domain.ConsumptionRequest) (*domain.InventoryLogEntry, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	if req.Amount <= 0 {
		return nil, nil
	}
	if req.ProductID == "" {
		return nil, store.ErrInvalidInput
	}

	entries, err := s.repo.ApplyStockChanges(ctx, []domain.StockChange{{
		ProductID:  req.ProductID,
		Delta:      -req.Amount,
		ChangeType: domain.ChangeInternalUse,
		Actor:      actor.Username,
		Notes:      strings.TrimSpace(req.Notes),
	}})
	if err != nil {
		return nil, err
	}

	entry := entries[0]
	s.log.Info().
		Str("product_id", entry.ProductID).
		Int("amount", req.Amount).
		Str("actor", actor.Username).
		Msg("consumption logged")
	return &entry, nil
}

// ReconcileInventory settles a physical count against the books. Matching
// counts are reported but not adjusted; every non-zero variance becomes a
// signed AUDIT_ADJUSTMENT in one atomic batch.
func (s *Service) ReconcileInventory(ctx context.Context, req domain.ReconcileRequest) (domain.ReconcileResponse, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.ReconcileResponse{}, err
	}
	if len(req.Lines) == 0 {
		return domain.ReconcileResponse{}, store.ErrInvalidInput
	}

	ids := make([]string, 0, len(req.Lines))
	for _, line := range req.Lines {
		if line.ProductID == "" || line.PhysicalCount < 0 {
			return domain.ReconcileResponse{}, store.ErrInvalidInput
		}
		ids = append(ids, line.ProductID)
	}

	products, err := s.fetchProducts(ctx, ids)
	if err != nil {
		return domain.ReconcileResponse{}, err
	}

	auditID := newID("audit")
	now := time.Now().UTC()
	results := make([]domain.ReconcileLineResult, 0, len(req.Lines))
	changes := make([]domain.StockChange, 0, len(req.Lines))
	for _, line := range req.Lines {
		product, exists := products[line.ProductID]
		if !exists {
			return domain.ReconcileResponse{}, fmt.Errorf("%w: product %s", store.ErrNotFound, line.ProductID)
		}

		variance := ledger.StockVariance(product.Stock, line.PhysicalCount)
		result := domain.ReconcileLineResult{
			ProductID:     product.ID,
			ProductName:   product.Name,
			SystemStock:   product.Stock,
			PhysicalCount: line.PhysicalCount,
			VarianceQty:   variance,
		}
		if variance != 0 {
			result.Adjusted = true
			notes := fmt.Sprintf("count %d -> %d", product.Stock, line.PhysicalCount)
			if req.Notes != "" {
				notes += "; " + strings.TrimSpace(req.Notes)
			}
			changes = append(changes, domain.StockChange{
				ProductID:   product.ID,
				Delta:       variance,
				ChangeType:  domain.ChangeAuditAdjustment,
				Actor:       actor.Username,
				ReferenceID: auditID,
				Notes:       notes,
			})
		}
		results = append(results, result)
	}

	if len(changes) > 0 {
		if _, err := s.repo.ApplyStockChanges(ctx, changes); err != nil {
			return domain.ReconcileResponse{}, err
		}
	}

	s.log.Info().
		Str("audit_id", auditID).
		Int("lines", len(results)).
		Int("adjusted", len(changes)).
		Str("actor", actor.Username).
		Msg("inventory reconciled")

	return domain.ReconcileResponse{
		AuditID:   auditID,
		Lines:     results,
		Adjusted:  len(changes),
		CreatedAt: now.Format(time.RFC3339),
	}, nil
}

func (s *Service) InventoryLog(ctx context.Context, productID string, limit int) ([]domain.InventoryLogEntry, error) {
	return s.repo.ListInventoryLog(ctx, productID, limit)
}

func (s *Service) CreateSupplier(ctx context.Context, req domain.SupplierCreateRequest) (domain.Supplier, error) {
	_, err := requireAdmin(ctx)
	if err != nil {
		return domain.Supplier{}, err
	}
	if strings.TrimSpace(req.Name) == "" {
		return domain.Supplier{}, store.ErrInvalidInput
	}

	supplier, err := s.repo.CreateSupplier(ctx, domain.Supplier{
		ID:        newID("sup"),
		Name:      strings.TrimSpace(req.Name),
		Phone:     strings.TrimSpace(req.Phone),
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return domain.Supplier{}, err
	}
	return *supplier, nil
}

func (s *Service) ListSuppliers(ctx context.Context) ([]domain.Supplier, error) {
	return s.repo.ListSuppliers(ctx)
}

func (s *Service) CreatePurchaseOrder(ctx context.Context, req domain.PurchaseOrderCreateRequest) (domain.PurchaseOrder, error) {
	actor, err := requireAdmin(ctx)
	if err != nil {
		return domain.PurchaseOrder{}, err
	}
	if req.SupplierID == "" || len(req.Items) == 0 {
		return domain.PurchaseOrder{}, store.ErrInvalidInput
	}
	for _, item := range req.Items {
		if item.ProductID == "" || item.Qty < 1 || item.CostCents < 0 {
			return domain.PurchaseOrder{}, store.ErrInvalidInput
		}
	}

	po, err := s.repo.CreatePurchaseOrder(ctx, domain.PurchaseOrder{
		ID:         newID("po"),
		SupplierID: req.SupplierID,
		Items:      req.Items,
		CreatedBy:  actor.Username,
		CreatedAt:  time.Now().UTC(),
	})
	if err != nil {
		return domain.PurchaseOrder{}, err
	}

	s.log.Info().
		Str("purchase_order_id", po.ID).
		Str("supplier_id", po.SupplierID).
		Int("items", len(po.Items)).
		Str("actor", actor.Username).
		Msg("purchase order created")
	return *po, nil
}

func (s *Service) ListPurchaseOrders(ctx context.Context, status string, limit int) ([]domain.PurchaseOrder, error) {
	return s.repo.ListPurchaseOrders(ctx, status, limit)
}

// ReceivePurchaseOrder books the delivery: RESTOCK entries and stock
// increments for every line, and the order flips to received, atomically.
func (s *Service) ReceivePurchaseOrder(ctx context.Context, purchaseOrderID string) (domain.PurchaseOrder, error) {
	actor, err := requireAdmin(ctx)
	if err != nil {
		return domain.PurchaseOrder{}, err
	}
	if purchaseOrderID == "" {
		return domain.PurchaseOrder{}, store.ErrInvalidInput
	}

	po, err := s.repo.ReceivePurchaseOrder(ctx, purchaseOrderID, actor.Username, time.Now().UTC())
	if err != nil {
		return domain.PurchaseOrder{}, err
	}

	s.log.Info().
		Str("purchase_order_id", po.ID).
		Str("actor", actor.Username).
		Msg("purchase order received")
	return *po, nil
}
