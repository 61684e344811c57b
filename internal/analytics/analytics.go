// Package analytics derives business figures from in-memory snapshots of the
// store. Nothing here reads or writes persistent state.
package analytics

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"smartseller/backend/internal/domain"
)

// SeriesDays is the length of the trailing daily series, today included.
const SeriesDays = 7

func Valuation(products []domain.Product) domain.InventoryValuation {
	result := domain.InventoryValuation{
		Products:        make([]domain.ProductValuation, 0, len(products)),
		WholesaleValue:  decimal.Zero,
		MarketValue:     decimal.Zero,
		PotentialProfit: decimal.Zero,
	}
	for _, p := range products {
		stock := decimal.NewFromInt(int64(p.Stock))
		row := domain.ProductValuation{
			ProductID:       p.ID,
			Name:            p.Name,
			Stock:           p.Stock,
			WholesaleValue:  p.Cost.Mul(stock),
			MarketValue:     p.Price.Mul(stock),
			PotentialProfit: p.Price.Sub(p.Cost).Mul(stock),
		}
		result.Products = append(result.Products, row)
		result.WholesaleValue = result.WholesaleValue.Add(row.WholesaleValue)
		result.MarketValue = result.MarketValue.Add(row.MarketValue)
		result.PotentialProfit = result.PotentialProfit.Add(row.PotentialProfit)
	}
	return result
}

func TotalRevenue(sales []domain.Sale) decimal.Decimal {
	total := decimal.Zero
	for _, s := range sales {
		total = total.Add(s.Total)
	}
	return total
}

// TotalCOGS prices every sold unit at the product's current cost. Items whose
// product no longer exists contribute nothing.
func TotalCOGS(sales []domain.Sale, products []domain.Product) decimal.Decimal {
	costByID := make(map[int64]decimal.Decimal, len(products))
	for _, p := range products {
		costByID[p.ID] = p.Cost
	}

	total := decimal.Zero
	for _, s := range sales {
		for _, item := range s.Items {
			cost, ok := costByID[item.ProductID]
			if !ok {
				continue
			}
			total = total.Add(cost.Mul(decimal.NewFromInt(int64(item.Quantity))))
		}
	}
	return total
}

func TotalExpenses(expenses []domain.Expense) decimal.Decimal {
	total := decimal.Zero
	for _, e := range expenses {
		total = total.Add(e.Amount)
	}
	return total
}

func Summarize(products []domain.Product, sales []domain.Sale, expenses []domain.Expense, customers []domain.Customer) domain.BusinessSummary {
	revenue := TotalRevenue(sales)
	cogs := TotalCOGS(sales, products)
	spent := TotalExpenses(expenses)
	gross := revenue.Sub(cogs)

	return domain.BusinessSummary{
		TotalRevenue:  revenue,
		TotalCOGS:     cogs,
		TotalExpenses: spent,
		GrossProfit:   gross,
		NetProfit:     gross.Sub(spent),
		SalesCount:    len(sales),
		ProductCount:  len(products),
		CustomerCount: len(customers),
	}
}

// SevenDaySeries buckets sale totals and expense amounts into the trailing
// seven calendar days (UTC), oldest first. A record lands in a day when its
// date string starts with that day's YYYY-MM-DD.
func SevenDaySeries(sales []domain.Sale, expenses []domain.Expense, now time.Time) []domain.DailyPoint {
	today := now.UTC()
	series := make([]domain.DailyPoint, 0, SeriesDays)
	for offset := SeriesDays - 1; offset >= 0; offset-- {
		day := today.AddDate(0, 0, -offset).Format(domain.DateLayout)
		point := domain.DailyPoint{Day: day, Sales: decimal.Zero, Expenses: decimal.Zero}
		for _, s := range sales {
			if strings.HasPrefix(s.Date.UTC().Format(time.RFC3339), day) {
				point.Sales = point.Sales.Add(s.Total)
			}
		}
		for _, e := range expenses {
			if strings.HasPrefix(e.Date, day) {
				point.Expenses = point.Expenses.Add(e.Amount)
			}
		}
		series = append(series, point)
	}
	return series
}

// LowStock returns products at or below threshold, lowest stock first.
func LowStock(products []domain.Product, threshold int) []domain.Product {
	result := make([]domain.Product, 0)
	for _, p := range products {
		if p.Stock <= threshold {
			result = append(result, p)
		}
	}
	slices.SortStableFunc(result, func(a, b domain.Product) int {
		return cmp.Compare(a.Stock, b.Stock)
	})
	return result
}

// SearchProducts keeps products whose name or category contains query,
// ignoring case. An empty query keeps everything.
func SearchProducts(products []domain.Product, query string) []domain.Product {
	query = strings.ToLower(strings.TrimSpace(query))
	result := make([]domain.Product, 0, len(products))
	for _, p := range products {
		if query == "" ||
			strings.Contains(strings.ToLower(p.Name), query) ||
			strings.Contains(strings.ToLower(p.Category), query) {
			result = append(result, p)
		}
	}
	return result
}

// MovementHistory filters movements by product name and orders them newest
// first. Ties keep the higher id first.
func MovementHistory(movements []domain.StockMovement, query string) []domain.StockMovement {
	query = strings.ToLower(strings.TrimSpace(query))
	result := make([]domain.StockMovement, 0, len(movements))
	for _, m := range movements {
		if query == "" || strings.Contains(strings.ToLower(m.ProductName), query) {
			result = append(result, m)
		}
	}
	slices.SortFunc(result, func(a, b domain.StockMovement) int {
		if c := b.Date.Compare(a.Date); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return result
}
