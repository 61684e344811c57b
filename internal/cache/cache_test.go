package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartseller/backend/internal/domain"
)

func TestNoopNeverHits(t *testing.T) {
	var c MarketReportCache = NoopMarketReportCache{}
	require.NoError(t, c.Set(context.Background(), "k", &domain.MarketReport{GeneralReport: "x"}, time.Minute))
	_, ok, err := c.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryCacheExpires(t *testing.T) {
	now := time.Date(2026, 10, 18, 8, 0, 0, 0, time.UTC)
	c := NewMemoryMarketReportCache()
	c.now = func() time.Time { return now }
	ctx := context.Background()

	report := &domain.MarketReport{GeneralReport: "steady", Insights: []domain.MarketInsight{{ProductName: "Kopi"}}}
	require.NoError(t, c.Set(ctx, "k", report, time.Hour))
	report.Insights[0].ProductName = "mutated"

	got, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Kopi", got.Insights[0].ProductName)

	now = now.Add(time.Hour)
	_, ok, err = c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisCacheMissWithoutServer(t *testing.T) {
	c := NewRedisMarketReportCache("127.0.0.1:1", "", 0)
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	assert.Error(t, c.Ping(ctx))
}
