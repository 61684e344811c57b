// Package storetest holds the behaviour every store.Repository must share.
// Implementations call Run from their own tests with a factory that returns
// a fresh, not yet initialized store.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartseller/backend/internal/domain"
	"smartseller/backend/internal/store"
)

type Factory func(t *testing.T) store.Repository

func Run(t *testing.T, newRepo Factory) {
	t.Run("NotInitialized", func(t *testing.T) { testNotInitialized(t, newRepo(t)) })
	t.Run("InitIsIdempotent", func(t *testing.T) { testInitIsIdempotent(t, newRepo(t)) })
	t.Run("ProductCRUD", func(t *testing.T) { testProductCRUD(t, ready(t, newRepo)) })
	t.Run("CustomerCRUD", func(t *testing.T) { testCustomerCRUD(t, ready(t, newRepo)) })
	t.Run("ExpenseCRUD", func(t *testing.T) { testExpenseCRUD(t, ready(t, newRepo)) })
	t.Run("MovementCRUD", func(t *testing.T) { testMovementCRUD(t, ready(t, newRepo)) })
	t.Run("SaleCRUD", func(t *testing.T) { testSaleCRUD(t, ready(t, newRepo)) })
	t.Run("IDsAreNeverReused", func(t *testing.T) { testIDsAreNeverReused(t, ready(t, newRepo)) })
	t.Run("RejectsInvalidRecords", func(t *testing.T) { testRejectsInvalidRecords(t, ready(t, newRepo)) })
	t.Run("RecordSaleScenario", func(t *testing.T) { testRecordSaleScenario(t, ready(t, newRepo)) })
	t.Run("RecordSaleIsAllOrNothing", func(t *testing.T) { testRecordSaleIsAllOrNothing(t, ready(t, newRepo)) })
	t.Run("RecordSaleUnknownCustomer", func(t *testing.T) { testRecordSaleUnknownCustomer(t, ready(t, newRepo)) })
	t.Run("RecordSaleAllowsNegativeStock", func(t *testing.T) { testRecordSaleAllowsNegativeStock(t, ready(t, newRepo)) })
	t.Run("RestockUnknownProduct", func(t *testing.T) { testRestockUnknownProduct(t, ready(t, newRepo)) })
	t.Run("StockConservation", func(t *testing.T) { testStockConservation(t, ready(t, newRepo)) })
}

func ready(t *testing.T, newRepo Factory) store.Repository {
	t.Helper()
	repo := newRepo(t)
	require.NoError(t, repo.Init(context.Background()))
	return repo
}

func dec(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func seedProduct(t *testing.T, repo store.Repository, name string, price, cost int64, stock int) *domain.Product {
	t.Helper()
	product, err := repo.CreateProduct(context.Background(), domain.Product{
		Name:     name,
		Price:    dec(price),
		Cost:     dec(cost),
		Stock:    stock,
		Category: "grocery",
		Barcode:  "BC-" + name,
	})
	require.NoError(t, err)
	return product
}

func saleOf(customerID *int64, items ...domain.SaleItem) domain.Sale {
	sale := domain.Sale{CustomerID: customerID, Items: items}
	sale.Total = sale.ComputeTotal()
	return sale
}

func testNotInitialized(t *testing.T, repo store.Repository) {
	ctx := context.Background()

	_, err := repo.CreateProduct(ctx, domain.Product{Name: "Kopi", Price: dec(1)})
	assert.ErrorIs(t, err, store.ErrNotInitialized)
	_, err = repo.ListProducts(ctx)
	assert.ErrorIs(t, err, store.ErrNotInitialized)
	_, err = repo.GetCustomer(ctx, 1)
	assert.ErrorIs(t, err, store.ErrNotInitialized)
	_, err = repo.ListSales(ctx)
	assert.ErrorIs(t, err, store.ErrNotInitialized)
	assert.ErrorIs(t, repo.DeleteExpense(ctx, 1), store.ErrNotInitialized)
	_, err = repo.ListMovements(ctx)
	assert.ErrorIs(t, err, store.ErrNotInitialized)
	_, err = repo.RecordSale(ctx, saleOf(nil, domain.SaleItem{ProductID: 1, Quantity: 1, UnitPrice: dec(1)}))
	assert.ErrorIs(t, err, store.ErrNotInitialized)
	_, _, err = repo.Restock(ctx, 1, 1, time.Now())
	assert.ErrorIs(t, err, store.ErrNotInitialized)

	require.NoError(t, repo.Init(ctx))
	products, err := repo.ListProducts(ctx)
	require.NoError(t, err)
	assert.Empty(t, products)
}

func testInitIsIdempotent(t *testing.T, repo store.Repository) {
	ctx := context.Background()
	require.NoError(t, repo.Init(ctx))
	first := seedProduct(t, repo, "Teh", 5000, 3000, 4)

	require.NoError(t, repo.Init(ctx))
	got, err := repo.GetProduct(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "Teh", got.Name)
	assert.Equal(t, 4, got.Stock)

	second := seedProduct(t, repo, "Gula", 17000, 15000, 1)
	assert.Greater(t, second.ID, first.ID)
}

func testProductCRUD(t *testing.T, repo store.Repository) {
	ctx := context.Background()
	created := seedProduct(t, repo, "Susu", 18900, 13600, 12)
	assert.Positive(t, created.ID)

	got, err := repo.GetProduct(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Susu", got.Name)
	assert.True(t, got.Price.Equal(dec(18900)))

	got.Name = "Susu UHT"
	got.Price = dec(19500)
	updated, err := repo.UpdateProduct(ctx, *got)
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)

	reloaded, err := repo.GetProduct(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Susu UHT", reloaded.Name)
	assert.True(t, reloaded.Price.Equal(dec(19500)))

	_, err = repo.UpdateProduct(ctx, domain.Product{ID: 999, Name: "ghost", Price: dec(1)})
	assert.ErrorIs(t, err, store.ErrNotFound)

	seedProduct(t, repo, "Roti", 17800, 12500, 3)
	products, err := repo.ListProducts(ctx)
	require.NoError(t, err)
	assert.Len(t, products, 2)

	require.NoError(t, repo.DeleteProduct(ctx, created.ID))
	_, err = repo.GetProduct(ctx, created.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, repo.DeleteProduct(ctx, created.ID), store.ErrNotFound)
}

func testCustomerCRUD(t *testing.T, repo store.Repository) {
	ctx := context.Background()
	created, err := repo.CreateCustomer(ctx, domain.Customer{Name: "Budi", Phone: "0812"})
	require.NoError(t, err)
	assert.Positive(t, created.ID)
	assert.True(t, created.TotalPurchases.IsZero())

	created.Email = "budi@example.com"
	_, err = repo.UpdateCustomer(ctx, *created)
	require.NoError(t, err)

	got, err := repo.GetCustomer(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "budi@example.com", got.Email)

	customers, err := repo.ListCustomers(ctx)
	require.NoError(t, err)
	assert.Len(t, customers, 1)

	require.NoError(t, repo.DeleteCustomer(ctx, created.ID))
	_, err = repo.GetCustomer(ctx, created.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testExpenseCRUD(t *testing.T, repo store.Repository) {
	ctx := context.Background()
	created, err := repo.CreateExpense(ctx, domain.Expense{
		Description: "Listrik",
		Amount:      dec(250000),
		Category:    "utilities",
		Date:        "2026-10-01",
	})
	require.NoError(t, err)

	got, err := repo.GetExpense(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Listrik", got.Description)
	assert.Equal(t, "2026-10-01", got.Date)

	got.Amount = dec(275000)
	_, err = repo.UpdateExpense(ctx, *got)
	require.NoError(t, err)

	expenses, err := repo.ListExpenses(ctx)
	require.NoError(t, err)
	require.Len(t, expenses, 1)
	assert.True(t, expenses[0].Amount.Equal(dec(275000)))

	require.NoError(t, repo.DeleteExpense(ctx, created.ID))
	expenses, err = repo.ListExpenses(ctx)
	require.NoError(t, err)
	assert.Empty(t, expenses)
}

func testMovementCRUD(t *testing.T, repo store.Repository) {
	ctx := context.Background()
	product := seedProduct(t, repo, "Sabun", 7400, 5000, 0)
	created, err := repo.CreateMovement(ctx, domain.StockMovement{
		ProductID:   product.ID,
		ProductName: product.Name,
		Type:        domain.MovementIn,
		Quantity:    6,
	})
	require.NoError(t, err)
	assert.False(t, created.Date.IsZero())

	got, err := repo.GetMovement(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.MovementIn, got.Type)
	assert.Equal(t, 6, got.Quantity)

	got.Quantity = 7
	_, err = repo.UpdateMovement(ctx, *got)
	require.NoError(t, err)

	require.NoError(t, repo.DeleteMovement(ctx, created.ID))
	_, err = repo.GetMovement(ctx, created.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testSaleCRUD(t *testing.T, repo store.Repository) {
	ctx := context.Background()
	product := seedProduct(t, repo, "Kopi", 2600, 1700, 10)
	created, err := repo.CreateSale(ctx, saleOf(nil, domain.SaleItem{
		ProductID:   product.ID,
		ProductName: product.Name,
		Quantity:    2,
		UnitPrice:   product.Price,
	}))
	require.NoError(t, err)
	assert.False(t, created.Date.IsZero())

	got, err := repo.GetSale(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.True(t, got.Total.Equal(dec(5200)))

	// CreateSale is plain CRUD: it leaves stock alone.
	reloaded, err := repo.GetProduct(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, reloaded.Stock)

	sales, err := repo.ListSales(ctx)
	require.NoError(t, err)
	assert.Len(t, sales, 1)

	require.NoError(t, repo.DeleteSale(ctx, created.ID))
	_, err = repo.GetSale(ctx, created.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testIDsAreNeverReused(t *testing.T, repo store.Repository) {
	ctx := context.Background()
	first := seedProduct(t, repo, "A", 1, 1, 0)
	second := seedProduct(t, repo, "B", 1, 1, 0)
	require.NoError(t, repo.DeleteProduct(ctx, second.ID))
	third := seedProduct(t, repo, "C", 1, 1, 0)

	assert.Greater(t, second.ID, first.ID)
	assert.Greater(t, third.ID, second.ID)
}

func testRejectsInvalidRecords(t *testing.T, repo store.Repository) {
	ctx := context.Background()

	_, err := repo.CreateProduct(ctx, domain.Product{Name: " ", Price: dec(1)})
	assert.ErrorIs(t, err, store.ErrInvalidRecord)
	_, err = repo.CreateProduct(ctx, domain.Product{Name: "Minus", Price: dec(-1)})
	assert.ErrorIs(t, err, store.ErrInvalidRecord)
	_, err = repo.CreateExpense(ctx, domain.Expense{Description: "Sewa", Amount: dec(-5)})
	assert.ErrorIs(t, err, store.ErrInvalidRecord)
	_, err = repo.CreateProduct(ctx, domain.Product{Name: "Huge", Price: decimal.New(1, 99999999)})
	assert.ErrorIs(t, err, store.ErrInvalidRecord)
	_, err = repo.CreateExpense(ctx, domain.Expense{Description: "Huge", Amount: decimal.New(9, 99999999)})
	assert.ErrorIs(t, err, store.ErrInvalidRecord)
	_, err = repo.CreateMovement(ctx, domain.StockMovement{ProductID: 1, Type: domain.MovementIn})
	assert.ErrorIs(t, err, store.ErrInvalidRecord)

	product := seedProduct(t, repo, "Mie", 3500, 2700, 5)
	bad := saleOf(nil, domain.SaleItem{ProductID: product.ID, Quantity: 1, UnitPrice: product.Price})
	bad.Total = dec(1)
	_, err = repo.RecordSale(ctx, bad)
	assert.ErrorIs(t, err, store.ErrInvalidRecord)
	_, err = repo.RecordSale(ctx, domain.Sale{})
	assert.ErrorIs(t, err, store.ErrInvalidRecord)
	_, _, err = repo.Restock(ctx, product.ID, 0, time.Now())
	assert.ErrorIs(t, err, store.ErrInvalidRecord)
}

func testRecordSaleScenario(t *testing.T, repo store.Repository) {
	ctx := context.Background()
	product := seedProduct(t, repo, "Beras", 100, 60, 10)
	customer, err := repo.CreateCustomer(ctx, domain.Customer{Name: "Siti", Phone: "0813"})
	require.NoError(t, err)

	receipt, err := repo.RecordSale(ctx, saleOf(&customer.ID, domain.SaleItem{
		ProductID:   product.ID,
		ProductName: product.Name,
		Quantity:    3,
		UnitPrice:   product.Price,
	}))
	require.NoError(t, err)
	sale := receipt.Sale
	assert.Positive(t, sale.ID)
	assert.Equal(t, map[int64]int{product.ID: 7}, receipt.StockAfter)
	assert.Empty(t, receipt.Backordered())
	assert.True(t, sale.Total.Equal(dec(300)))
	assert.Equal(t, "Siti", sale.CustomerName)

	stored, err := repo.GetSale(ctx, sale.ID)
	require.NoError(t, err)
	assert.True(t, stored.Total.Equal(stored.ComputeTotal()))

	reloaded, err := repo.GetProduct(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, reloaded.Stock)

	movements, err := repo.ListMovements(ctx)
	require.NoError(t, err)
	require.Len(t, movements, 1)
	assert.Equal(t, product.ID, movements[0].ProductID)
	assert.Equal(t, domain.MovementOut, movements[0].Type)
	assert.Equal(t, 3, movements[0].Quantity)
	assert.Equal(t, "Beras", movements[0].ProductName)

	buyer, err := repo.GetCustomer(ctx, customer.ID)
	require.NoError(t, err)
	assert.True(t, buyer.TotalPurchases.Equal(dec(300)), "total purchases = %s", buyer.TotalPurchases)

	restocked, movement, err := repo.Restock(ctx, product.ID, 5, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, 12, restocked.Stock)
	assert.Equal(t, domain.MovementIn, movement.Type)
	assert.Equal(t, 5, movement.Quantity)

	movements, err = repo.ListMovements(ctx)
	require.NoError(t, err)
	assert.Len(t, movements, 2)
}

func testRecordSaleIsAllOrNothing(t *testing.T, repo store.Repository) {
	ctx := context.Background()
	product := seedProduct(t, repo, "Telur", 26500, 23000, 8)
	customer, err := repo.CreateCustomer(ctx, domain.Customer{Name: "Andi"})
	require.NoError(t, err)

	_, err = repo.RecordSale(ctx, saleOf(&customer.ID,
		domain.SaleItem{ProductID: product.ID, ProductName: product.Name, Quantity: 2, UnitPrice: product.Price},
		domain.SaleItem{ProductID: product.ID + 100, ProductName: "missing", Quantity: 1, UnitPrice: dec(10)},
	))
	require.ErrorIs(t, err, store.ErrNotFound)

	sales, err := repo.ListSales(ctx)
	require.NoError(t, err)
	assert.Empty(t, sales)

	movements, err := repo.ListMovements(ctx)
	require.NoError(t, err)
	assert.Empty(t, movements)

	reloaded, err := repo.GetProduct(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 8, reloaded.Stock)

	buyer, err := repo.GetCustomer(ctx, customer.ID)
	require.NoError(t, err)
	assert.True(t, buyer.TotalPurchases.IsZero())
}

func testRecordSaleUnknownCustomer(t *testing.T, repo store.Repository) {
	ctx := context.Background()
	product := seedProduct(t, repo, "Gula", 17400, 15300, 5)
	missing := int64(42)

	_, err := repo.RecordSale(ctx, saleOf(&missing, domain.SaleItem{
		ProductID: product.ID, Quantity: 1, UnitPrice: product.Price,
	}))
	require.ErrorIs(t, err, store.ErrNotFound)

	reloaded, err := repo.GetProduct(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, reloaded.Stock)
}

func testRecordSaleAllowsNegativeStock(t *testing.T, repo store.Repository) {
	ctx := context.Background()
	product := seedProduct(t, repo, "Roti", 17800, 12500, 2)
	other := seedProduct(t, repo, "Selai", 21000, 16000, 10)

	receipt, err := repo.RecordSale(ctx, saleOf(nil,
		domain.SaleItem{ProductID: product.ID, Quantity: 5, UnitPrice: product.Price},
		domain.SaleItem{ProductID: other.ID, Quantity: 1, UnitPrice: other.Price},
	))
	require.NoError(t, err)
	assert.Equal(t, -3, receipt.StockAfter[product.ID])
	assert.Equal(t, 9, receipt.StockAfter[other.ID])
	assert.Equal(t, []int64{product.ID}, receipt.Backordered())

	// A second sale sees the stock the first one left behind.
	receipt, err = repo.RecordSale(ctx, saleOf(nil, domain.SaleItem{
		ProductID: other.ID, Quantity: 10, UnitPrice: other.Price,
	}))
	require.NoError(t, err)
	assert.Equal(t, []int64{other.ID}, receipt.Backordered())

	reloaded, err := repo.GetProduct(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, -3, reloaded.Stock)
}

func testRestockUnknownProduct(t *testing.T, repo store.Repository) {
	ctx := context.Background()
	product := seedProduct(t, repo, "Teh", 9800, 7250, 3)

	_, _, err := repo.Restock(ctx, product.ID+1, 5, time.Now())
	require.ErrorIs(t, err, store.ErrNotFound)

	movements, err := repo.ListMovements(ctx)
	require.NoError(t, err)
	assert.Empty(t, movements)

	reloaded, err := repo.GetProduct(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, reloaded.Stock)
}

func testStockConservation(t *testing.T, repo store.Repository) {
	ctx := context.Background()
	const initial = 20
	product := seedProduct(t, repo, "Air", 3900, 2800, initial)

	restocks := []int{4, 10, 1}
	sold := []int{3, 7, 2, 5}
	for _, q := range restocks {
		_, _, err := repo.Restock(ctx, product.ID, q, time.Now().UTC())
		require.NoError(t, err)
	}
	for _, r := range sold {
		_, err := repo.RecordSale(ctx, saleOf(nil, domain.SaleItem{
			ProductID: product.ID, Quantity: r, UnitPrice: product.Price,
		}))
		require.NoError(t, err)
	}

	want := initial
	for _, q := range restocks {
		want += q
	}
	for _, r := range sold {
		want -= r
	}
	reloaded, err := repo.GetProduct(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, want, reloaded.Stock)

	movements, err := repo.ListMovements(ctx)
	require.NoError(t, err)
	require.Len(t, movements, len(restocks)+len(sold))
	in, out := 0, 0
	for _, m := range movements {
		assert.Equal(t, product.ID, m.ProductID)
		switch m.Type {
		case domain.MovementIn:
			in += m.Quantity
		case domain.MovementOut:
			out += m.Quantity
		}
	}
	assert.Equal(t, 15, in)
	assert.Equal(t, 17, out)
}
