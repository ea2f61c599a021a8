package cache

import (
	"context"
	"time"

	"tokoban/backend/internal/domain"
)

// SaleCache holds rendered sale details keyed by SaleKey. Writers overwrite
// the entry after commit with Set; readers fill misses with SetIfAbsent so a
// slow reader never replaces a newer entry.
type SaleCache interface {
	Get(ctx context.Context, key string) (*domain.Sale, bool, error)
	Set(ctx context.Context, key string, value *domain.Sale, ttl time.Duration) error
	SetIfAbsent(ctx context.Context, key string, value *domain.Sale, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, key string) error
}

func SaleKey(storeID string, saleID string) string {
	return "sale:" + storeID + ":" + saleID
}

type NoopSaleCache struct{}

func (NoopSaleCache) Get(_ context.Context, _ string) (*domain.Sale, bool, error) {
	return nil, false, nil
}

func (NoopSaleCache) Set(_ context.Context, _ string, _ *domain.Sale, _ time.Duration) error {
	return nil
}

func (NoopSaleCache) SetIfAbsent(_ context.Context, _ string, _ *domain.Sale, _ time.Duration) (bool, error) {
	return false, nil
}

func (NoopSaleCache) Delete(_ context.Context, _ string) error {
	return nil
}
