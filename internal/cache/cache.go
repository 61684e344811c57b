package cache

import (
	"context"
	"time"

	"smartseller/backend/internal/domain"
)

type MarketReportCache interface {
	Get(ctx context.Context, key string) (*domain.MarketReport, bool, error)
	Set(ctx context.Context, key string, value *domain.MarketReport, ttl time.Duration) error
}

type NoopMarketReportCache struct{}

func (NoopMarketReportCache) Get(_ context.Context, _ string) (*domain.MarketReport, bool, error) {
	return nil, false, nil
}

func (NoopMarketReportCache) Set(_ context.Context, _ string, _ *domain.MarketReport, _ time.Duration) error {
	return nil
}
