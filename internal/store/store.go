package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"smartseller/backend/internal/domain"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrNotInitialized   = errors.New("store not initialized")
	ErrInvalidRecord    = errors.New("invalid record")
	ErrPartiallyApplied = errors.New("sale partially applied")
)

// IOError wraps a failure of the underlying storage medium.
type IOError struct {
	Op         string
	Collection string
	Err        error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("store %s %s: %v", e.Op, e.Collection, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// Collection names. They double as bucket names in the bolt store.
const (
	Products  = "products"
	Customers = "customers"
	Sales     = "sales"
	Expenses  = "expenses"
	Movements = "movements"
)

// Collections lists every collection Init must create.
var Collections = []string{Products, Customers, Sales, Expenses, Movements}

// Repository is the local record store. Every method except Init and Close
// returns ErrNotInitialized until Init has completed. List methods make no
// ordering promise. The store assumes a single writer process.
type Repository interface {
	Init(ctx context.Context) error
	Close() error

	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id int64) error
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
	ListProducts(ctx context.Context) ([]domain.Product, error)

	CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)
	UpdateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)
	DeleteCustomer(ctx context.Context, id int64) error
	GetCustomer(ctx context.Context, id int64) (*domain.Customer, error)
	ListCustomers(ctx context.Context) ([]domain.Customer, error)

	CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error)
	UpdateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error)
	DeleteSale(ctx context.Context, id int64) error
	GetSale(ctx context.Context, id int64) (*domain.Sale, error)
	ListSales(ctx context.Context) ([]domain.Sale, error)

	CreateExpense(ctx context.Context, expense domain.Expense) (*domain.Expense, error)
	UpdateExpense(ctx context.Context, expense domain.Expense) (*domain.Expense, error)
	DeleteExpense(ctx context.Context, id int64) error
	GetExpense(ctx context.Context, id int64) (*domain.Expense, error)
	ListExpenses(ctx context.Context) ([]domain.Expense, error)

	CreateMovement(ctx context.Context, movement domain.StockMovement) (*domain.StockMovement, error)
	UpdateMovement(ctx context.Context, movement domain.StockMovement) (*domain.StockMovement, error)
	DeleteMovement(ctx context.Context, id int64) error
	GetMovement(ctx context.Context, id int64) (*domain.StockMovement, error)
	ListMovements(ctx context.Context) ([]domain.StockMovement, error)

	// RecordSale inserts the sale, decrements stock and appends one OUT
	// movement per item, then accrues the total on the referenced customer.
	// Stock may go negative; the receipt reports the stock each item left.
	// All steps commit together or not at all; an implementation that cannot
	// honour that returns an error wrapping ErrPartiallyApplied.
	RecordSale(ctx context.Context, sale domain.Sale) (*SaleReceipt, error)

	// Restock adds qty to the product's stock and appends one IN movement.
	// An unknown product returns ErrNotFound and writes nothing.
	Restock(ctx context.Context, productID int64, qty int, at time.Time) (*domain.Product, *domain.StockMovement, error)
}

// SaleReceipt is what RecordSale committed. StockAfter holds each sold
// product's stock as it stood right after this sale's decrement, read inside
// the same transaction.
type SaleReceipt struct {
	Sale       domain.Sale
	StockAfter map[int64]int
}

// Backordered lists the sold products this sale left below zero, in item
// order.
func (r SaleReceipt) Backordered() []int64 {
	var ids []int64
	for _, item := range r.Sale.Items {
		if stock, ok := r.StockAfter[item.ProductID]; ok && stock < 0 {
			ids = append(ids, item.ProductID)
		}
	}
	return ids
}

// ValidateSale checks the shape every store requires before RecordSale
// touches any collection.
func ValidateSale(sale domain.Sale) error {
	if len(sale.Items) == 0 {
		return fmt.Errorf("%w: sale has no items", ErrInvalidRecord)
	}
	for _, item := range sale.Items {
		if item.ProductID < 1 || item.Quantity < 1 || item.Quantity > domain.MaxQuantity {
			return fmt.Errorf("%w: sale item product=%d qty=%d", ErrInvalidRecord, item.ProductID, item.Quantity)
		}
		if item.UnitPrice.IsNegative() {
			return fmt.Errorf("%w: negative unit price for product %d", ErrInvalidRecord, item.ProductID)
		}
		if !domain.ValidAmount(item.UnitPrice) {
			return fmt.Errorf("%w: unit price out of range for product %d", ErrInvalidRecord, item.ProductID)
		}
	}
	if !domain.BoundedTotal(sale.Total) || !sale.Total.Equal(sale.ComputeTotal()) {
		return fmt.Errorf("%w: sale total does not match its items", ErrInvalidRecord)
	}
	if sale.CustomerID != nil && *sale.CustomerID < 1 {
		return fmt.Errorf("%w: customer id %d", ErrInvalidRecord, *sale.CustomerID)
	}
	return nil
}
