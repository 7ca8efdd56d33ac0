package cache

import (
	"context"
	"time"

	"tokokas/backend/internal/domain"
)

// ShiftCache holds the register's shift summary for cheap reads by the
// frontend poll loop. It is a convenience layer only; the store remains
// authoritative and a cache miss is never an error.
type ShiftCache interface {
	Get(ctx context.Context, key string) (*domain.ShiftSummary, bool, error)
	Set(ctx context.Context, key string, value *domain.ShiftSummary, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type NoopShiftCache struct{}

func (NoopShiftCache) Get(_ context.Context, _ string) (*domain.ShiftSummary, bool, error) {
	return nil, false, nil
}

func (NoopShiftCache) Set(_ context.Context, _ string, _ *domain.ShiftSummary, _ time.Duration) error {
	return nil
}

func (NoopShiftCache) Delete(_ context.Context, _ string) error {
	return nil
}
