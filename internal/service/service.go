package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"tokokas/backend/internal/cache"
	"tokokas/backend/internal/domain"
	"tokokas/backend/internal/events"
	"tokokas/backend/internal/renewal"
	"tokokas/backend/internal/store"
	"tokokas/backend/pkg/logger"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

// productQueryChunk bounds the id list passed to a single product read.
const productQueryChunk = 10

const shiftCacheKey = "pos:shift:current"

type Service struct {
	repo              store.Repository
	bus               *events.Bus
	renewals          *renewal.Queue
	shiftCache        cache.ShiftCache
	shiftCacheTTL     time.Duration
	renewalCategories map[string]struct{}
	log               *logger.Logger

	// currentShift mirrors the store's open shift for cheap reads. The
	// store stays authoritative; this is refreshed on every mutation and
	// at startup via Resync.
	mu           sync.RWMutex
	currentShift *domain.ShiftSession
}

func New(
	repo store.Repository,
	bus *events.Bus,
	renewals *renewal.Queue,
	shiftCache cache.ShiftCache,
	shiftCacheTTL time.Duration,
	renewalCategories []string,
	log *logger.Logger,
) *Service {
	if shiftCache == nil {
		shiftCache = cache.NoopShiftCache{}
	}
	if shiftCacheTTL <= 0 {
		shiftCacheTTL = 15 * time.Second
	}

	categories := make(map[string]struct{}, len(renewalCategories))
	for _, category := range renewalCategories {
		categories[category] = struct{}{}
	}

	return &Service{
		repo:              repo,
		bus:               bus,
		renewals:          renewals,
		shiftCache:        shiftCache,
		shiftCacheTTL:     shiftCacheTTL,
		renewalCategories: categories,
		log:               log,
	}
}

// Resync loads the open shift from the store into the process cache.
// Called at startup so a restart mid-shift resumes where it left off.
func (s *Service) Resync(ctx context.Context) error {
	shift, err := s.repo.GetOpenShift(ctx)
	if err != nil {
		if isNotFound(err) {
			s.setCurrentShift(nil)
			return nil
		}
		return err
	}
	s.setCurrentShift(shift)
	s.log.Info().Str("shift_id", shift.ID).Msg("resumed open shift")
	return nil
}

func newID(prefix string) string {
	return prefix + "-" + uuid.NewString()
}

func isNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}

func (s *Service) setCurrentShift(shift *domain.ShiftSession) {
	s.mu.Lock()
	s.currentShift = shift
	s.mu.Unlock()
}

func (s *Service) cachedShift() *domain.ShiftSession {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentShift
}

func requireActor(ctx context.Context) (domain.Actor, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Username == "" {
		return domain.Actor{}, fmt.Errorf("authenticated actor required")
	}
	return actor, nil
}

func requireAdmin(ctx context.Context) (domain.Actor, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.Actor{}, err
	}
	if actor.Role != "admin" {
		return domain.Actor{}, fmt.Errorf("admin role required")
	}
	return actor, nil
}

// fetchProducts reads product snapshots in fixed-size id chunks.
func (s *Service) fetchProducts(ctx context.Context, ids []string) (map[string]domain.Product, error) {
	unique := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}

	result := make(map[string]domain.Product, len(unique))
	for start := 0; start < len(unique); start += productQueryChunk {
		end := start + productQueryChunk
		if end > len(unique) {
			end = len(unique)
		}
		chunk, err := s.repo.GetProductsByIDs(ctx, unique[start:end])
		if err != nil {
			return nil, err
		}
		for id, product := range chunk {
			result[id] = product
		}
	}
	return result, nil
}

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx)
}

func (s *Service) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	product, err := s.repo.GetProductByID(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}
	return *product, nil
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	actor, err := requireAdmin(ctx)
	if err != nil {
		return domain.Product{}, err
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Category = strings.TrimSpace(req.Category)
	if req.Name == "" || req.Category == "" || req.PriceCents < 1 {
		return domain.Product{}, store.ErrInvalidInput
	}
	if req.Type == "" {
		req.Type = domain.ProductTypeRetail
	}
	if req.Type != domain.ProductTypeRetail && req.Type != domain.ProductTypeConsumable {
		return domain.Product{}, store.ErrInvalidInput
	}
	if req.InitialStock < 0 || req.MinStock < 0 {
		return domain.Product{}, store.ErrInvalidInput
	}

	// Products start at zero; initial stock arrives through the ledger so
	// every unit ever held has a log entry.
	created, err := s.repo.CreateProduct(ctx, domain.Product{
		Name:       req.Name,
		Category:   req.Category,
		PriceCents: req.PriceCents,
		Stock:      0,
		MinStock:   req.MinStock,
		Type:       req.Type,
	})
	if err != nil {
		return domain.Product{}, err
	}

	if req.InitialStock > 0 {
		entries, err := s.repo.ApplyStockChanges(ctx, []domain.StockChange{{
			ProductID:  created.ID,
			Delta:      req.InitialStock,
			ChangeType: domain.ChangeRestock,
			Actor:      actor.Username,
			Notes:      "initial stock",
		}})
		if err != nil {
			// Two store calls, not one commit: at this point the product
			// row exists at zero stock and the admin has to restock it.
			s.log.Warn().Err(err).
				Str("product_id", created.ID).
				Msg("initial stock not ledgered; product left at zero stock")
			return domain.Product{}, fmt.Errorf("initial stock for %s: %w", created.ID, err)
		}
		created.Stock = entries[0].NewStock
	}

	s.log.Info().
		Str("product_id", created.ID).
		Str("actor", actor.Username).
		Int("initial_stock", req.InitialStock).
		Msg("product created")
	return *created, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id string, req domain.ProductUpdateRequest) (domain.Product, error) {
	actor, err := requireAdmin(ctx)
	if err != nil {
		return domain.Product{}, err
	}
	if id == "" {
		return domain.Product{}, store.ErrInvalidInput
	}

	existing, err := s.repo.GetProductByID(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}

	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Product{}, store.ErrInvalidInput
		}
		updated.Name = name
	}
	if req.Category != nil {
		category := strings.TrimSpace(*req.Category)
		if category == "" {
			return domain.Product{}, store.ErrInvalidInput
		}
		updated.Category = category
	}
	if req.PriceCents != nil {
		if *req.PriceCents < 1 {
			return domain.Product{}, store.ErrInvalidInput
		}
		updated.PriceCents = *req.PriceCents
	}
	if req.MinStock != nil {
		if *req.MinStock < 0 {
			return domain.Product{}, store.ErrInvalidInput
		}
		updated.MinStock = *req.MinStock
	}
	if req.Active != nil {
		updated.Active = *req.Active
	}

	saved, err := s.repo.UpdateProduct(ctx, updated)
	if err != nil {
		return domain.Product{}, err
	}

	s.log.Info().
		Str("product_id", saved.ID).
		Str("actor", actor.Username).
		Msg("product updated")
	return *saved, nil
}

func (s *Service) FindTransaction(ctx context.Context, id string) (domain.Transaction, error) {
	tx, err := s.repo.FindTransactionByID(ctx, id)
	if err != nil {
		return domain.Transaction{}, err
	}
	return *tx, nil
}
