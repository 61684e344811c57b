// Package bolt keeps the five collections in a single local bbolt file, one
// bucket per collection. Records are JSON values under big-endian ids so a
// cursor walks them in insertion order.
package bolt

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.etcd.io/bbolt"

	"smartseller/backend/internal/domain"
	"smartseller/backend/internal/store"
)

type Store struct {
	db    *bbolt.DB
	ready atomic.Bool
}

// Open opens or creates the database file. Collections are not touched until
// Init runs.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, &store.IOError{Op: "open", Collection: path, Err: err}
	}
	return &Store{db: db}, nil
}

// Init creates missing buckets and leaves existing ones alone.
func (s *Store) Init(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range store.Collections {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		return &store.IOError{Op: "init", Collection: "*", Err: err}
	}
	s.ready.Store(true)
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// entity describes how one collection maps onto its Go type.
type entity[T any] struct {
	collection string
	validate   func(T) error
	id         func(*T) *int64
}

var (
	products = entity[domain.Product]{
		collection: store.Products,
		validate:   store.ValidateProduct,
		id:         func(p *domain.Product) *int64 { return &p.ID },
	}
	customers = entity[domain.Customer]{
		collection: store.Customers,
		validate:   store.ValidateCustomer,
		id:         func(c *domain.Customer) *int64 { return &c.ID },
	}
	sales = entity[domain.Sale]{
		collection: store.Sales,
		validate:   store.ValidateSale,
		id:         func(s *domain.Sale) *int64 { return &s.ID },
	}
	expenses = entity[domain.Expense]{
		collection: store.Expenses,
		validate:   store.ValidateExpense,
		id:         func(e *domain.Expense) *int64 { return &e.ID },
	}
	movements = entity[domain.StockMovement]{
		collection: store.Movements,
		validate:   store.ValidateMovement,
		id:         func(m *domain.StockMovement) *int64 { return &m.ID },
	}
)

func (s *Store) view(ctx context.Context, collection string, fn func(tx *bbolt.Tx) error) error {
	if !s.ready.Load() {
		return store.ErrNotInitialized
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return wrapIO("view", collection, s.db.View(fn))
}

func (s *Store) update(ctx context.Context, collection string, fn func(tx *bbolt.Tx) error) error {
	if !s.ready.Load() {
		return store.ErrNotInitialized
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return wrapIO("update", collection, s.db.Update(fn))
}

func create[T any](ctx context.Context, s *Store, e entity[T], v T) (*T, error) {
	if err := e.validate(v); err != nil {
		return nil, err
	}
	err := s.update(ctx, e.collection, func(tx *bbolt.Tx) error {
		b, err := bucket(tx, e.collection)
		if err != nil {
			return err
		}
		id, err := nextID(b, e.collection)
		if err != nil {
			return err
		}
		*e.id(&v) = id
		return save(b, e.collection, id, v)
	})
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func replace[T any](ctx context.Context, s *Store, e entity[T], v T) (*T, error) {
	if err := e.validate(v); err != nil {
		return nil, err
	}
	id := *e.id(&v)
	err := s.update(ctx, e.collection, func(tx *bbolt.Tx) error {
		b, err := bucket(tx, e.collection)
		if err != nil {
			return err
		}
		if b.Get(key(id)) == nil {
			return store.ErrNotFound
		}
		return save(b, e.collection, id, v)
	})
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func remove[T any](ctx context.Context, s *Store, e entity[T], id int64) error {
	return s.update(ctx, e.collection, func(tx *bbolt.Tx) error {
		b, err := bucket(tx, e.collection)
		if err != nil {
			return err
		}
		if b.Get(key(id)) == nil {
			return store.ErrNotFound
		}
		if err := b.Delete(key(id)); err != nil {
			return &store.IOError{Op: "delete", Collection: e.collection, Err: err}
		}
		return nil
	})
}

func fetch[T any](ctx context.Context, s *Store, e entity[T], id int64) (*T, error) {
	var v T
	err := s.view(ctx, e.collection, func(tx *bbolt.Tx) error {
		b, err := bucket(tx, e.collection)
		if err != nil {
			return err
		}
		v, err = load[T](b, e.collection, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func all[T any](ctx context.Context, s *Store, e entity[T]) ([]T, error) {
	result := make([]T, 0, 32)
	err := s.view(ctx, e.collection, func(tx *bbolt.Tx) error {
		b, err := bucket(tx, e.collection)
		if err != nil {
			return err
		}
		return b.ForEach(func(_, raw []byte) error {
			var v T
			if err := json.Unmarshal(raw, &v); err != nil {
				return &store.IOError{Op: "decode", Collection: e.collection, Err: err}
			}
			result = append(result, v)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	return create(ctx, s, products, product)
}

func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	return replace(ctx, s, products, product)
}

func (s *Store) DeleteProduct(ctx context.Context, id int64) error {
	return remove(ctx, s, products, id)
}

func (s *Store) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	return fetch(ctx, s, products, id)
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return all(ctx, s, products)
}

func (s *Store) CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	return create(ctx, s, customers, customer)
}

func (s *Store) UpdateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	return replace(ctx, s, customers, customer)
}

func (s *Store) DeleteCustomer(ctx context.Context, id int64) error {
	return remove(ctx, s, customers, id)
}

func (s *Store) GetCustomer(ctx context.Context, id int64) (*domain.Customer, error) {
	return fetch(ctx, s, customers, id)
}

func (s *Store) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	return all(ctx, s, customers)
}

func (s *Store) CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
	if sale.Date.IsZero() {
		sale.Date = time.Now().UTC()
	}
	return create(ctx, s, sales, sale)
}

func (s *Store) UpdateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
	return replace(ctx, s, sales, sale)
}

func (s *Store) DeleteSale(ctx context.Context, id int64) error {
	return remove(ctx, s, sales, id)
}

func (s *Store) GetSale(ctx context.Context, id int64) (*domain.Sale, error) {
	return fetch(ctx, s, sales, id)
}

func (s *Store) ListSales(ctx context.Context) ([]domain.Sale, error) {
	return all(ctx, s, sales)
}

func (s *Store) CreateExpense(ctx context.Context, expense domain.Expense) (*domain.Expense, error) {
	return create(ctx, s, expenses, expense)
}

func (s *Store) UpdateExpense(ctx context.Context, expense domain.Expense) (*domain.Expense, error) {
	return replace(ctx, s, expenses, expense)
}

func (s *Store) DeleteExpense(ctx context.Context, id int64) error {
	return remove(ctx, s, expenses, id)
}

func (s *Store) GetExpense(ctx context.Context, id int64) (*domain.Expense, error) {
	return fetch(ctx, s, expenses, id)
}

func (s *Store) ListExpenses(ctx context.Context) ([]domain.Expense, error) {
	return all(ctx, s, expenses)
}

func (s *Store) CreateMovement(ctx context.Context, movement domain.StockMovement) (*domain.StockMovement, error) {
	if movement.Date.IsZero() {
		movement.Date = time.Now().UTC()
	}
	return create(ctx, s, movements, movement)
}

func (s *Store) UpdateMovement(ctx context.Context, movement domain.StockMovement) (*domain.StockMovement, error) {
	return replace(ctx, s, movements, movement)
}

func (s *Store) DeleteMovement(ctx context.Context, id int64) error {
	return remove(ctx, s, movements, id)
}

func (s *Store) GetMovement(ctx context.Context, id int64) (*domain.StockMovement, error) {
	return fetch(ctx, s, movements, id)
}

func (s *Store) ListMovements(ctx context.Context) ([]domain.StockMovement, error) {
	return all(ctx, s, movements)
}

// RecordSale writes the sale, every stock decrement and OUT movement, and the
// customer accrual in one bolt transaction. Any failure rolls all of it back,
// sequence numbers included.
func (s *Store) RecordSale(ctx context.Context, sale domain.Sale) (*store.SaleReceipt, error) {
	if err := store.ValidateSale(sale); err != nil {
		return nil, err
	}
	if sale.Date.IsZero() {
		sale.Date = time.Now().UTC()
	}

	stockAfter := make(map[int64]int, len(sale.Items))
	err := s.update(ctx, store.Sales, func(tx *bbolt.Tx) error {
		saleBucket, err := bucket(tx, store.Sales)
		if err != nil {
			return err
		}
		productBucket, err := bucket(tx, store.Products)
		if err != nil {
			return err
		}
		movementBucket, err := bucket(tx, store.Movements)
		if err != nil {
			return err
		}
		customerBucket, err := bucket(tx, store.Customers)
		if err != nil {
			return err
		}

		var customer domain.Customer
		if sale.CustomerID != nil {
			customer, err = load[domain.Customer](customerBucket, store.Customers, *sale.CustomerID)
			if err != nil {
				return err
			}
			if sale.CustomerName == "" {
				sale.CustomerName = customer.Name
			}
		}

		sale.ID, err = nextID(saleBucket, store.Sales)
		if err != nil {
			return err
		}
		if err := save(saleBucket, store.Sales, sale.ID, sale); err != nil {
			return err
		}

		for _, item := range sale.Items {
			product, err := load[domain.Product](productBucket, store.Products, item.ProductID)
			if err != nil {
				return err
			}
			product.Stock -= item.Quantity
			if err := save(productBucket, store.Products, product.ID, product); err != nil {
				return err
			}
			stockAfter[product.ID] = product.Stock

			price := item.UnitPrice
			movement := domain.StockMovement{
				ProductID:   product.ID,
				ProductName: product.Name,
				Type:        domain.MovementOut,
				Quantity:    item.Quantity,
				Date:        sale.Date,
				Price:       &price,
			}
			movement.ID, err = nextID(movementBucket, store.Movements)
			if err != nil {
				return err
			}
			if err := save(movementBucket, store.Movements, movement.ID, movement); err != nil {
				return err
			}
		}

		if sale.CustomerID != nil {
			customer.TotalPurchases = customer.TotalPurchases.Add(sale.Total)
			if err := save(customerBucket, store.Customers, customer.ID, customer); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &store.SaleReceipt{Sale: sale, StockAfter: stockAfter}, nil
}

func (s *Store) Restock(ctx context.Context, productID int64, qty int, at time.Time) (*domain.Product, *domain.StockMovement, error) {
	if qty < 1 {
		return nil, nil, store.ErrInvalidRecord
	}
	if at.IsZero() {
		at = time.Now().UTC()
	}

	var (
		product  domain.Product
		movement domain.StockMovement
	)
	err := s.update(ctx, store.Products, func(tx *bbolt.Tx) error {
		productBucket, err := bucket(tx, store.Products)
		if err != nil {
			return err
		}
		movementBucket, err := bucket(tx, store.Movements)
		if err != nil {
			return err
		}

		product, err = load[domain.Product](productBucket, store.Products, productID)
		if err != nil {
			return err
		}
		product.Stock += qty
		if err := save(productBucket, store.Products, product.ID, product); err != nil {
			return err
		}

		movement = domain.StockMovement{
			ProductID:   product.ID,
			ProductName: product.Name,
			Type:        domain.MovementIn,
			Quantity:    qty,
			Date:        at,
		}
		movement.ID, err = nextID(movementBucket, store.Movements)
		if err != nil {
			return err
		}
		return save(movementBucket, store.Movements, movement.ID, movement)
	})
	if err != nil {
		return nil, nil, err
	}
	return &product, &movement, nil
}

func bucket(tx *bbolt.Tx, collection string) (*bbolt.Bucket, error) {
	b := tx.Bucket([]byte(collection))
	if b == nil {
		return nil, store.ErrNotInitialized
	}
	return b, nil
}

func key(id int64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(id))
	return buf
}

func nextID(b *bbolt.Bucket, collection string) (int64, error) {
	seq, err := b.NextSequence()
	if err != nil {
		return 0, &store.IOError{Op: "sequence", Collection: collection, Err: err}
	}
	return int64(seq), nil
}

func load[T any](b *bbolt.Bucket, collection string, id int64) (T, error) {
	var v T
	raw := b.Get(key(id))
	if raw == nil {
		return v, store.ErrNotFound
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, &store.IOError{Op: "decode", Collection: collection, Err: err}
	}
	return v, nil
}

func save[T any](b *bbolt.Bucket, collection string, id int64, v T) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return &store.IOError{Op: "encode", Collection: collection, Err: err}
	}
	if err := b.Put(key(id), raw); err != nil {
		return &store.IOError{Op: "put", Collection: collection, Err: err}
	}
	return nil
}

// wrapIO leaves store errors as they are and types everything else bolt
// returns (commit, mmap, closed database) as an IOError.
func wrapIO(op, collection string, err error) error {
	if err == nil {
		return nil
	}
	var ioErr *store.IOError
	switch {
	case errors.As(err, &ioErr),
		errors.Is(err, store.ErrNotFound),
		errors.Is(err, store.ErrInvalidRecord),
		errors.Is(err, store.ErrNotInitialized):
		return err
	}
	return &store.IOError{Op: op, Collection: collection, Err: err}
}

var _ store.Repository = (*Store)(nil)
