package analytics

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartseller/backend/internal/domain"
)

func dec(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func TestValuation(t *testing.T) {
	got := Valuation([]domain.Product{
		{ID: 1, Name: "Beras", Price: dec(100), Cost: dec(60), Stock: 10},
		{ID: 2, Name: "Minyak", Price: dec(25), Cost: dec(20), Stock: 4},
	})

	require.Len(t, got.Products, 2)
	assert.True(t, got.Products[0].WholesaleValue.Equal(dec(600)))
	assert.True(t, got.Products[0].MarketValue.Equal(dec(1000)))
	assert.True(t, got.Products[0].PotentialProfit.Equal(dec(400)))
	assert.True(t, got.WholesaleValue.Equal(dec(680)))
	assert.True(t, got.MarketValue.Equal(dec(1100)))
	assert.True(t, got.PotentialProfit.Equal(dec(420)))
}

func TestSummarizeProfitIdentity(t *testing.T) {
	products := []domain.Product{
		{ID: 1, Price: dec(100), Cost: dec(60)},
		{ID: 2, Price: decimal.RequireFromString("12.5"), Cost: decimal.RequireFromString("7.25")},
	}
	sales := []domain.Sale{
		{Total: dec(300), Items: []domain.SaleItem{{ProductID: 1, Quantity: 3, UnitPrice: dec(100)}}},
		{Total: dec(25), Items: []domain.SaleItem{{ProductID: 2, Quantity: 2, UnitPrice: decimal.RequireFromString("12.5")}}},
		// product 9 no longer exists and adds nothing to COGS
		{Total: dec(40), Items: []domain.SaleItem{{ProductID: 9, Quantity: 4, UnitPrice: dec(10)}}},
	}
	expenses := []domain.Expense{{Amount: dec(30)}, {Amount: decimal.RequireFromString("4.5")}}

	got := Summarize(products, sales, expenses, []domain.Customer{{ID: 1}})

	assert.True(t, got.TotalRevenue.Equal(dec(365)))
	assert.True(t, got.TotalCOGS.Equal(decimal.RequireFromString("194.5")), "cogs = %s", got.TotalCOGS)
	assert.True(t, got.TotalExpenses.Equal(decimal.RequireFromString("34.5")))
	assert.True(t, got.GrossProfit.Equal(got.TotalRevenue.Sub(got.TotalCOGS)))
	assert.True(t, got.NetProfit.Equal(got.TotalRevenue.Sub(got.TotalCOGS).Sub(got.TotalExpenses)))
	assert.Equal(t, 3, got.SalesCount)
	assert.Equal(t, 2, got.ProductCount)
	assert.Equal(t, 1, got.CustomerCount)
}

func TestTotalsOfEmptySnapshot(t *testing.T) {
	got := Summarize(nil, nil, nil, nil)
	assert.True(t, got.TotalRevenue.IsZero())
	assert.True(t, got.NetProfit.IsZero())
}

func TestSevenDaySeries(t *testing.T) {
	now := time.Date(2026, 10, 18, 15, 30, 0, 0, time.UTC)
	sales := []domain.Sale{
		{Date: now.AddDate(0, 0, -6), Total: dec(100)},
		{Date: now.AddDate(0, 0, -3), Total: dec(50)},
		{Date: now, Total: dec(20)},
		{Date: now.AddDate(0, 0, -7), Total: dec(999)},
	}

	series := SevenDaySeries(sales, nil, now)
	require.Len(t, series, SeriesDays)
	assert.Equal(t, "2026-10-12", series[0].Day)
	assert.Equal(t, "2026-10-18", series[6].Day)

	sum := decimal.Zero
	zeroDays := 0
	for _, p := range series {
		sum = sum.Add(p.Sales)
		if p.Sales.IsZero() {
			zeroDays++
		}
		assert.True(t, p.Expenses.IsZero())
	}
	assert.True(t, sum.Equal(dec(170)), "sum = %s", sum)
	assert.Equal(t, 4, zeroDays)
	assert.True(t, series[0].Sales.Equal(dec(100)))
	assert.True(t, series[3].Sales.Equal(dec(50)))
	assert.True(t, series[6].Sales.Equal(dec(20)))
}

func TestSevenDaySeriesMatchesExpenseDays(t *testing.T) {
	now := time.Date(2026, 10, 18, 1, 0, 0, 0, time.UTC)
	expenses := []domain.Expense{
		{Date: "2026-10-18", Amount: dec(15)},
		{Date: "2026-10-17", Amount: dec(5)},
		{Date: "2026-10-17", Amount: dec(5)},
		{Date: "2026-09-30", Amount: dec(500)},
	}

	series := SevenDaySeries(nil, expenses, now)
	assert.True(t, series[6].Expenses.Equal(dec(15)))
	assert.True(t, series[5].Expenses.Equal(dec(10)))
	assert.True(t, series[0].Expenses.IsZero())
}

func TestLowStock(t *testing.T) {
	got := LowStock([]domain.Product{
		{ID: 1, Stock: 20},
		{ID: 2, Stock: 5},
		{ID: 3, Stock: -2},
		{ID: 4, Stock: 6},
	}, 5)

	require.Len(t, got, 2)
	assert.Equal(t, int64(3), got[0].ID)
	assert.Equal(t, int64(2), got[1].ID)
}

func TestSearchProducts(t *testing.T) {
	products := []domain.Product{
		{ID: 1, Name: "Susu UHT", Category: "dairy"},
		{ID: 2, Name: "Kopi Sachet", Category: "beverage"},
		{ID: 3, Name: "Teh Celup", Category: "Beverage"},
	}

	assert.Len(t, SearchProducts(products, ""), 3)
	assert.Len(t, SearchProducts(products, "BEVER"), 2)
	got := SearchProducts(products, "susu")
	require.Len(t, got, 1)
	assert.Equal(t, int64(1), got[0].ID)
}

func TestMovementHistory(t *testing.T) {
	base := time.Date(2026, 10, 1, 8, 0, 0, 0, time.UTC)
	movements := []domain.StockMovement{
		{ID: 1, ProductName: "Kopi", Date: base},
		{ID: 2, ProductName: "Teh", Date: base.Add(2 * time.Hour)},
		{ID: 3, ProductName: "Kopi Susu", Date: base.Add(time.Hour)},
		{ID: 4, ProductName: "Kopi", Date: base.Add(2 * time.Hour)},
	}

	got := MovementHistory(movements, "")
	require.Len(t, got, 4)
	assert.Equal(t, []int64{4, 2, 3, 1}, []int64{got[0].ID, got[1].ID, got[2].ID, got[3].ID})

	kopi := MovementHistory(movements, "kopi")
	require.Len(t, kopi, 3)
	assert.Equal(t, int64(4), kopi[0].ID)
}
