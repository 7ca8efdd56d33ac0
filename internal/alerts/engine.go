// Package alerts watches committed sales and raises low-stock alerts when
// a product falls to or below its minimum. Alerts are advisory for the
// back office and never block the register.
package alerts

import (
	"context"
	"sync"
	"time"

	"tokokas/backend/internal/domain"
	"tokokas/backend/internal/store"
	"tokokas/backend/pkg/logger"
)

type Engine struct {
	repo     store.Repository
	log      *logger.Logger
	cooldown time.Duration

	mu        sync.Mutex
	lastAlert map[string]time.Time
	recent    []domain.LowStockAlert
}

func NewEngine(repo store.Repository, cooldown time.Duration, log *logger.Logger) *Engine {
	if cooldown <= 0 {
		cooldown = 30 * time.Minute
	}
	return &Engine{
		repo:      repo,
		log:       log,
		cooldown:  cooldown,
		lastAlert: make(map[string]time.Time),
		recent:    make([]domain.LowStockAlert, 0, 32),
	}
}

// HandleSale inspects the products touched by a committed sale. It is
// wired as an event-bus subscriber, so it runs outside the checkout path.
func (e *Engine) HandleSale(event domain.SaleCompleted) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tx, err := e.repo.FindTransactionByID(ctx, event.TransactionID)
	if err != nil {
		e.log.Warn().Err(err).Str("transaction_id", event.TransactionID).Msg("alerts: load sale")
		return
	}

	ids := make([]string, 0, len(tx.Lines))
	for _, line := range tx.Lines {
		ids = append(ids, line.ProductID)
	}
	products, err := e.repo.GetProductsByIDs(ctx, ids)
	if err != nil {
		e.log.Warn().Err(err).Str("transaction_id", event.TransactionID).Msg("alerts: load products")
		return
	}

	now := time.Now().UTC()
	for _, product := range products {
		if product.MinStock < 1 || product.Stock > product.MinStock {
			continue
		}
		if !e.shouldRaise(product.ID, now) {
			continue
		}
		alert := domain.LowStockAlert{
			ProductID:   product.ID,
			ProductName: product.Name,
			Stock:       product.Stock,
			MinStock:    product.MinStock,
			RaisedAt:    now,
		}
		e.record(alert)
		e.log.Warn().
			Str("product_id", alert.ProductID).
			Int("stock", alert.Stock).
			Int("min_stock", alert.MinStock).
			Msg("low stock")
	}
}

func (e *Engine) shouldRaise(productID string, now time.Time) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if last, ok := e.lastAlert[productID]; ok && now.Sub(last) < e.cooldown {
		return false
	}
	e.lastAlert[productID] = now
	return true
}

func (e *Engine) record(alert domain.LowStockAlert) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.recent = append(e.recent, alert)
	if len(e.recent) > 100 {
		e.recent = e.recent[len(e.recent)-100:]
	}
}

// Recent returns the newest alerts first.
func (e *Engine) Recent(limit int) []domain.LowStockAlert {
	if limit < 1 {
		limit = 20
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	result := make([]domain.LowStockAlert, 0, limit)
	for i := len(e.recent) - 1; i >= 0 && len(result) < limit; i-- {
		result = append(result, e.recent[i])
	}
	return result
}
