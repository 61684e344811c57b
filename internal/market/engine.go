// Package market produces the cached market analysis of the current catalog.
package market

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"smartseller/backend/internal/cache"
	"smartseller/backend/internal/domain"
	"smartseller/backend/internal/logger"
)

// Analyzer is the hosted model call behind a report.
type Analyzer interface {
	AnalyzeMarket(ctx context.Context, products []domain.Product) (*domain.MarketReport, error)
}

type Engine struct {
	analyzer Analyzer
	cache    cache.MarketReportCache
	cacheTTL time.Duration
}

func NewEngine(analyzer Analyzer, cacheStore cache.MarketReportCache, cacheTTL time.Duration) *Engine {
	if cacheStore == nil {
		cacheStore = cache.NoopMarketReportCache{}
	}
	if cacheTTL <= 0 {
		cacheTTL = time.Hour
	}

	return &Engine{
		analyzer: analyzer,
		cache:    cacheStore,
		cacheTTL: cacheTTL,
	}
}

// Analyze returns the cached report for this exact catalog or asks the
// analyzer for a fresh one. cached reports whether the cache answered.
// Cache failures never fail the call.
func (e *Engine) Analyze(ctx context.Context, products []domain.Product) (report *domain.MarketReport, cached bool, err error) {
	cacheKey := buildCacheKey(products)
	hit, ok, cacheErr := e.cache.Get(ctx, cacheKey)
	if cacheErr != nil {
		logger.Warn(ctx).
			Str("component", "market").
			Err(cacheErr).
			Msg("market report cache read failed")
	} else if ok {
		return hit, true, nil
	}

	report, err = e.analyzer.AnalyzeMarket(ctx, products)
	if err != nil {
		return nil, false, err
	}
	if err := e.cache.Set(ctx, cacheKey, report, e.cacheTTL); err != nil {
		logger.Warn(ctx).
			Str("component", "market").
			Err(err).
			Msg("market report cache write failed")
	}
	return report, false, nil
}

// buildCacheKey hashes the fields the analysis depends on, so any price,
// cost, category or stock change produces a new report.
func buildCacheKey(products []domain.Product) string {
	parts := make([]string, 0, len(products))
	for _, p := range products {
		parts = append(parts, fmt.Sprintf("%d:%s:%s:%s:%s:%d", p.ID, p.Name, p.Category, p.Price, p.Cost, p.Stock))
	}
	sort.Strings(parts)

	hash := sha1.Sum([]byte(strings.Join(parts, "|")))
	return "smartseller:market:" + hex.EncodeToString(hash[:])
}
