package market

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"smartseller/backend/internal/cache"
	"smartseller/backend/internal/domain"
	"smartseller/backend/internal/logger"
)

type countingAnalyzer struct {
	calls int
	err   error
}

func (a *countingAnalyzer) AnalyzeMarket(_ context.Context, products []domain.Product) (*domain.MarketReport, error) {
	a.calls++
	if a.err != nil {
		return nil, a.err
	}
	return &domain.MarketReport{GeneralReport: "ok", Insights: []domain.MarketInsight{{ProductName: products[0].Name}}}, nil
}

func catalog(price int64) []domain.Product {
	return []domain.Product{{ID: 1, Name: "Kopi", Price: decimal.NewFromInt(price), Cost: decimal.NewFromInt(1700), Stock: 5}}
}

func TestAnalyzeUsesCacheForSameCatalog(t *testing.T) {
	analyzer := &countingAnalyzer{}
	engine := NewEngine(analyzer, cache.NewMemoryMarketReportCache(), time.Minute)

	_, cached, err := engine.Analyze(context.Background(), catalog(2600))
	if err != nil || cached {
		t.Fatalf("first call: cached=%v err=%v", cached, err)
	}
	report, cached, err := engine.Analyze(context.Background(), catalog(2600))
	if err != nil || !cached {
		t.Fatalf("second call: cached=%v err=%v", cached, err)
	}
	if report.Insights[0].ProductName != "Kopi" {
		t.Fatalf("unexpected report %+v", report)
	}
	if analyzer.calls != 1 {
		t.Fatalf("expected one analyzer call, got %d", analyzer.calls)
	}

	if _, cached, _ := engine.Analyze(context.Background(), catalog(2800)); cached {
		t.Fatalf("price change must miss the cache")
	}
	if analyzer.calls != 2 {
		t.Fatalf("expected two analyzer calls, got %d", analyzer.calls)
	}
}

func TestAnalyzePropagatesFailure(t *testing.T) {
	wantErr := errors.New("quota exceeded")
	engine := NewEngine(&countingAnalyzer{err: wantErr}, nil, 0)

	_, _, err := engine.Analyze(context.Background(), catalog(1))
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected %v, got %v", wantErr, err)
	}
}

func TestCacheKeyIgnoresOrder(t *testing.T) {
	a := []domain.Product{{ID: 1, Name: "A"}, {ID: 2, Name: "B"}}
	b := []domain.Product{{ID: 2, Name: "B"}, {ID: 1, Name: "A"}}
	if buildCacheKey(a) != buildCacheKey(b) {
		t.Fatalf("cache key must not depend on order")
	}
}

type brokenCache struct{}

func (brokenCache) Get(context.Context, string) (*domain.MarketReport, bool, error) {
	return nil, false, errors.New("connection refused")
}

func (brokenCache) Set(context.Context, string, *domain.MarketReport, time.Duration) error {
	return errors.New("connection refused")
}

func TestAnalyzeLogsCacheFailures(t *testing.T) {
	var buf bytes.Buffer
	previous := logger.Logger
	logger.Logger = zerolog.New(&buf)
	t.Cleanup(func() { logger.Logger = previous })

	analyzer := &countingAnalyzer{}
	engine := NewEngine(analyzer, brokenCache{}, time.Minute)

	report, cached, err := engine.Analyze(context.Background(), catalog(2600))
	if err != nil || cached || report == nil {
		t.Fatalf("a broken cache must not fail the call: report=%v cached=%v err=%v", report, cached, err)
	}
	out := buf.String()
	if !strings.Contains(out, "market report cache write failed") || !strings.Contains(out, "market report cache read failed") {
		t.Fatalf("expected cache failures logged, got %q", out)
	}
	if !strings.Contains(out, `"component":"market"`) {
		t.Fatalf("expected market component in log, got %q", out)
	}
}
