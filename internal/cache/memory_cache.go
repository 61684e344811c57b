package cache

import (
	"context"
	"sync"
	"time"

	"smartseller/backend/internal/domain"
)

// MemoryMarketReportCache keeps reports in process. It backs the server when
// no Redis address is configured.
type MemoryMarketReportCache struct {
	mu      sync.Mutex
	now     func() time.Time
	entries map[string]memoryEntry
}

type memoryEntry struct {
	report    domain.MarketReport
	expiresAt time.Time
}

func NewMemoryMarketReportCache() *MemoryMarketReportCache {
	return &MemoryMarketReportCache{now: time.Now, entries: make(map[string]memoryEntry)}
}

func (c *MemoryMarketReportCache) Get(_ context.Context, key string) (*domain.MarketReport, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !entry.expiresAt.After(c.now()) {
		delete(c.entries, key)
		return nil, false, nil
	}
	report := cloneReport(entry.report)
	return &report, true, nil
}

func (c *MemoryMarketReportCache) Set(_ context.Context, key string, value *domain.MarketReport, ttl time.Duration) error {
	if value == nil || ttl <= 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = memoryEntry{report: cloneReport(*value), expiresAt: c.now().Add(ttl)}
	return nil
}

func cloneReport(src domain.MarketReport) domain.MarketReport {
	dup := src
	dup.Insights = make([]domain.MarketInsight, len(src.Insights))
	copy(dup.Insights, src.Insights)
	return dup
}
