package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"smartseller/backend/internal/domain"
	"smartseller/backend/internal/store"
)

// table is one collection: rows keyed by id plus the last id handed out.
type table[T any] struct {
	seq  int64
	rows map[int64]T
}

func (t *table[T]) ensure() {
	if t.rows == nil {
		t.rows = make(map[int64]T)
	}
}

func (t *table[T]) next() int64 {
	t.seq++
	return t.seq
}

func (t *table[T]) list(clone func(T) T) []T {
	ids := make([]int64, 0, len(t.rows))
	for id := range t.rows {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	result := make([]T, 0, len(ids))
	for _, id := range ids {
		result = append(result, clone(t.rows[id]))
	}
	return result
}

type Store struct {
	mu          sync.RWMutex
	initialized bool
	products    table[domain.Product]
	customers   table[domain.Customer]
	sales       table[domain.Sale]
	expenses    table[domain.Expense]
	movements   table[domain.StockMovement]
}

// New returns an empty store. Init must be called before use.
func New() *Store {
	return &Store{}
}

// NewSeeded returns an initialized store holding a small demo catalog.
func NewSeeded() *Store {
	s := New()
	_ = s.Init(context.Background())

	products := []domain.Product{
		{Name: "Mie Goreng Instan", Category: "grocery", Price: decimal.NewFromInt(3500), Cost: decimal.NewFromInt(2700), Stock: 120, Barcode: "8991001000011"},
		{Name: "Telur 10 Butir", Category: "grocery", Price: decimal.NewFromInt(26500), Cost: decimal.NewFromInt(23000), Stock: 40, Barcode: "8991001000028"},
		{Name: "Susu UHT 1L", Category: "dairy", Price: decimal.NewFromInt(18900), Cost: decimal.NewFromInt(13600), Stock: 36, Barcode: "8991001000035"},
		{Name: "Roti Tawar", Category: "bakery", Price: decimal.NewFromInt(17800), Cost: decimal.NewFromInt(12500), Stock: 4, Barcode: "8991001000042"},
		{Name: "Kopi Sachet", Category: "beverage", Price: decimal.NewFromInt(2600), Cost: decimal.NewFromInt(1700), Stock: 200, Barcode: "8991001000059"},
		{Name: "Gula 1kg", Category: "grocery", Price: decimal.NewFromInt(17400), Cost: decimal.NewFromInt(15300), Stock: 25, Barcode: "8991001000066"},
		{Name: "Teh Celup", Category: "beverage", Price: decimal.NewFromInt(9800), Cost: decimal.NewFromInt(7250), Stock: 3, Barcode: "8991001000073"},
		{Name: "Sabun Mandi", Category: "household", Price: decimal.NewFromInt(7400), Cost: decimal.NewFromInt(5000), Stock: 60, Barcode: "8991001000080"},
	}
	for _, p := range products {
		p.ID = s.products.next()
		s.products.rows[p.ID] = p
	}

	customers := []domain.Customer{
		{Name: "Budi Santoso", Phone: "081234567890"},
		{Name: "Siti Aminah", Phone: "081298765432", Email: "siti@example.com"},
	}
	for _, c := range customers {
		c.ID = s.customers.next()
		s.customers.rows[c.ID] = c
	}
	return s
}

// Init creates any missing collection. Existing rows and sequences are kept.
func (s *Store) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.products.ensure()
	s.customers.ensure()
	s.sales.ensure()
	s.expenses.ensure()
	s.movements.ensure()
	s.initialized = true
	return nil
}

func (s *Store) Close() error {
	return nil
}

func (s *Store) ready() error {
	if !s.initialized {
		return store.ErrNotInitialized
	}
	return nil
}

// Products

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ready(); err != nil {
		return nil, err
	}
	if err := store.ValidateProduct(product); err != nil {
		return nil, err
	}
	product.ID = s.products.next()
	s.products.rows[product.ID] = product
	created := product
	return &created, nil
}

func (s *Store) UpdateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ready(); err != nil {
		return nil, err
	}
	if err := store.ValidateProduct(product); err != nil {
		return nil, err
	}
	if _, exists := s.products.rows[product.ID]; !exists {
		return nil, store.ErrNotFound
	}
	s.products.rows[product.ID] = product
	updated := product
	return &updated, nil
}

func (s *Store) DeleteProduct(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ready(); err != nil {
		return err
	}
	if _, exists := s.products.rows[id]; !exists {
		return store.ErrNotFound
	}
	delete(s.products.rows, id)
	return nil
}

func (s *Store) GetProduct(_ context.Context, id int64) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.ready(); err != nil {
		return nil, err
	}
	product, exists := s.products.rows[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	return &product, nil
}

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.products.list(identity[domain.Product]), nil
}

// Customers

func (s *Store) CreateCustomer(_ context.Context, customer domain.Customer) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ready(); err != nil {
		return nil, err
	}
	if err := store.ValidateCustomer(customer); err != nil {
		return nil, err
	}
	customer.ID = s.customers.next()
	s.customers.rows[customer.ID] = customer
	created := customer
	return &created, nil
}

func (s *Store) UpdateCustomer(_ context.Context, customer domain.Customer) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ready(); err != nil {
		return nil, err
	}
	if err := store.ValidateCustomer(customer); err != nil {
		return nil, err
	}
	if _, exists := s.customers.rows[customer.ID]; !exists {
		return nil, store.ErrNotFound
	}
	s.customers.rows[customer.ID] = customer
	updated := customer
	return &updated, nil
}

func (s *Store) DeleteCustomer(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ready(); err != nil {
		return err
	}
	if _, exists := s.customers.rows[id]; !exists {
		return store.ErrNotFound
	}
	delete(s.customers.rows, id)
	return nil
}

func (s *Store) GetCustomer(_ context.Context, id int64) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.ready(); err != nil {
		return nil, err
	}
	customer, exists := s.customers.rows[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	return &customer, nil
}

func (s *Store) ListCustomers(_ context.Context) ([]domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.customers.list(identity[domain.Customer]), nil
}

// Sales

func (s *Store) CreateSale(_ context.Context, sale domain.Sale) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ready(); err != nil {
		return nil, err
	}
	if err := store.ValidateSale(sale); err != nil {
		return nil, err
	}
	if sale.Date.IsZero() {
		sale.Date = time.Now().UTC()
	}
	sale.ID = s.sales.next()
	s.sales.rows[sale.ID] = cloneSale(sale)
	created := cloneSale(sale)
	return &created, nil
}

func (s *Store) UpdateSale(_ context.Context, sale domain.Sale) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ready(); err != nil {
		return nil, err
	}
	if err := store.ValidateSale(sale); err != nil {
		return nil, err
	}
	if _, exists := s.sales.rows[sale.ID]; !exists {
		return nil, store.ErrNotFound
	}
	s.sales.rows[sale.ID] = cloneSale(sale)
	updated := cloneSale(sale)
	return &updated, nil
}

func (s *Store) DeleteSale(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ready(); err != nil {
		return err
	}
	if _, exists := s.sales.rows[id]; !exists {
		return store.ErrNotFound
	}
	delete(s.sales.rows, id)
	return nil
}

func (s *Store) GetSale(_ context.Context, id int64) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.ready(); err != nil {
		return nil, err
	}
	sale, exists := s.sales.rows[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	dup := cloneSale(sale)
	return &dup, nil
}

func (s *Store) ListSales(_ context.Context) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.sales.list(cloneSale), nil
}

// Expenses

func (s *Store) CreateExpense(_ context.Context, expense domain.Expense) (*domain.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ready(); err != nil {
		return nil, err
	}
	if err := store.ValidateExpense(expense); err != nil {
		return nil, err
	}
	expense.ID = s.expenses.next()
	s.expenses.rows[expense.ID] = expense
	created := expense
	return &created, nil
}

func (s *Store) UpdateExpense(_ context.Context, expense domain.Expense) (*domain.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ready(); err != nil {
		return nil, err
	}
	if err := store.ValidateExpense(expense); err != nil {
		return nil, err
	}
	if _, exists := s.expenses.rows[expense.ID]; !exists {
		return nil, store.ErrNotFound
	}
	s.expenses.rows[expense.ID] = expense
	updated := expense
	return &updated, nil
}

func (s *Store) DeleteExpense(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ready(); err != nil {
		return err
	}
	if _, exists := s.expenses.rows[id]; !exists {
		return store.ErrNotFound
	}
	delete(s.expenses.rows, id)
	return nil
}

func (s *Store) GetExpense(_ context.Context, id int64) (*domain.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.ready(); err != nil {
		return nil, err
	}
	expense, exists := s.expenses.rows[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	return &expense, nil
}

func (s *Store) ListExpenses(_ context.Context) ([]domain.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.expenses.list(identity[domain.Expense]), nil
}

// Movements

func (s *Store) CreateMovement(_ context.Context, movement domain.StockMovement) (*domain.StockMovement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ready(); err != nil {
		return nil, err
	}
	if err := store.ValidateMovement(movement); err != nil {
		return nil, err
	}
	created := s.appendMovement(movement)
	return &created, nil
}

func (s *Store) UpdateMovement(_ context.Context, movement domain.StockMovement) (*domain.StockMovement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ready(); err != nil {
		return nil, err
	}
	if err := store.ValidateMovement(movement); err != nil {
		return nil, err
	}
	if _, exists := s.movements.rows[movement.ID]; !exists {
		return nil, store.ErrNotFound
	}
	s.movements.rows[movement.ID] = cloneMovement(movement)
	updated := cloneMovement(movement)
	return &updated, nil
}

func (s *Store) DeleteMovement(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ready(); err != nil {
		return err
	}
	if _, exists := s.movements.rows[id]; !exists {
		return store.ErrNotFound
	}
	delete(s.movements.rows, id)
	return nil
}

func (s *Store) GetMovement(_ context.Context, id int64) (*domain.StockMovement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.ready(); err != nil {
		return nil, err
	}
	movement, exists := s.movements.rows[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	dup := cloneMovement(movement)
	return &dup, nil
}

func (s *Store) ListMovements(_ context.Context) ([]domain.StockMovement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.movements.list(cloneMovement), nil
}

// Workflows

// RecordSale resolves every referenced record before the first write, so a
// failed sale leaves the store untouched.
func (s *Store) RecordSale(_ context.Context, sale domain.Sale) (*store.SaleReceipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ready(); err != nil {
		return nil, err
	}
	if err := store.ValidateSale(sale); err != nil {
		return nil, err
	}
	for _, item := range sale.Items {
		if _, exists := s.products.rows[item.ProductID]; !exists {
			return nil, store.ErrNotFound
		}
	}
	var customer domain.Customer
	if sale.CustomerID != nil {
		found, exists := s.customers.rows[*sale.CustomerID]
		if !exists {
			return nil, store.ErrNotFound
		}
		customer = found
		if sale.CustomerName == "" {
			sale.CustomerName = customer.Name
		}
	}
	if sale.Date.IsZero() {
		sale.Date = time.Now().UTC()
	}

	sale.ID = s.sales.next()
	s.sales.rows[sale.ID] = cloneSale(sale)

	stockAfter := make(map[int64]int, len(sale.Items))

	for _, item := range sale.Items {
		product := s.products.rows[item.ProductID]
		product.Stock -= item.Quantity
		s.products.rows[product.ID] = product
		stockAfter[product.ID] = product.Stock

		price := item.UnitPrice
		s.appendMovement(domain.StockMovement{
			ProductID:   product.ID,
			ProductName: product.Name,
			Type:        domain.MovementOut,
			Quantity:    item.Quantity,
			Date:        sale.Date,
			Price:       &price,
		})
	}

	if sale.CustomerID != nil {
		customer.TotalPurchases = customer.TotalPurchases.Add(sale.Total)
		s.customers.rows[customer.ID] = customer
	}

	return &store.SaleReceipt{Sale: cloneSale(sale), StockAfter: stockAfter}, nil
}

func (s *Store) Restock(_ context.Context, productID int64, qty int, at time.Time) (*domain.Product, *domain.StockMovement, error) {
	if qty < 1 {
		return nil, nil, store.ErrInvalidRecord
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ready(); err != nil {
		return nil, nil, err
	}
	product, exists := s.products.rows[productID]
	if !exists {
		return nil, nil, store.ErrNotFound
	}
	if at.IsZero() {
		at = time.Now().UTC()
	}

	product.Stock += qty
	s.products.rows[product.ID] = product
	movement := s.appendMovement(domain.StockMovement{
		ProductID:   product.ID,
		ProductName: product.Name,
		Type:        domain.MovementIn,
		Quantity:    qty,
		Date:        at,
	})
	return &product, &movement, nil
}

// appendMovement assumes the write lock is held.
func (s *Store) appendMovement(movement domain.StockMovement) domain.StockMovement {
	if movement.Date.IsZero() {
		movement.Date = time.Now().UTC()
	}
	movement.ID = s.movements.next()
	s.movements.rows[movement.ID] = cloneMovement(movement)
	return cloneMovement(movement)
}

func identity[T any](v T) T {
	return v
}

func cloneSale(src domain.Sale) domain.Sale {
	dup := src
	items := make([]domain.SaleItem, len(src.Items))
	copy(items, src.Items)
	dup.Items = items
	if src.CustomerID != nil {
		id := *src.CustomerID
		dup.CustomerID = &id
	}
	return dup
}

func cloneMovement(src domain.StockMovement) domain.StockMovement {
	dup := src
	if src.Price != nil {
		price := *src.Price
		dup.Price = &price
	}
	return dup
}

var _ store.Repository = (*Store)(nil)
