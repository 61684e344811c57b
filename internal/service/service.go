package service

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"smartseller/backend/internal/analytics"
	"smartseller/backend/internal/domain"
	"smartseller/backend/internal/interpreter"
	"smartseller/backend/internal/logger"
	"smartseller/backend/internal/market"
	"smartseller/backend/internal/metrics"
	"smartseller/backend/internal/store"
	"smartseller/backend/internal/xid"
)

const DefaultLowStockThreshold = 5

var ErrUnknownAction = errors.New("unknown action")

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Service struct {
	repo              store.Repository
	assistant         interpreter.Interpreter
	advisor           *market.Engine
	metrics           *metrics.Metrics
	lowStockThreshold int
	now               func() time.Time
}

func New(repo store.Repository, assistant interpreter.Interpreter, advisor *market.Engine, lowStockThreshold int) *Service {
	if assistant == nil {
		assistant = interpreter.Unavailable{}
	}
	if advisor == nil {
		advisor = market.NewEngine(assistant, nil, 0)
	}
	if lowStockThreshold <= 0 {
		lowStockThreshold = DefaultLowStockThreshold
	}

	return &Service{
		repo:              repo,
		assistant:         assistant,
		advisor:           advisor,
		lowStockThreshold: lowStockThreshold,
		now:               time.Now,
	}
}

// SetMetrics attaches domain counters. A nil value disables them.
func (s *Service) SetMetrics(m *metrics.Metrics) {
	s.metrics = m
}

// Products

func (s *Service) ListProducts(ctx context.Context, query string) ([]domain.Product, error) {
	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	return analytics.SearchProducts(products, query), nil
}

func (s *Service) GetProduct(ctx context.Context, id int64) (domain.Product, error) {
	if id < 1 {
		return domain.Product{}, store.ErrInvalidRecord
	}
	product, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}
	return *product, nil
}

// CreateProduct stores a new product. Initial stock is recorded as-is and
// does not produce a movement.
func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Category = strings.TrimSpace(req.Category)
	req.Barcode = strings.TrimSpace(req.Barcode)

	if req.Name == "" {
		return domain.Product{}, fmt.Errorf("%w: name is required", store.ErrInvalidRecord)
	}
	if req.Price.IsNegative() || req.Cost.IsNegative() || req.Stock < 0 {
		return domain.Product{}, fmt.Errorf("%w: price, cost and stock must not be negative", store.ErrInvalidRecord)
	}
	if !domain.ValidAmount(req.Price) || !domain.ValidAmount(req.Cost) || req.Stock > domain.MaxQuantity {
		return domain.Product{}, fmt.Errorf("%w: price, cost or stock out of range", store.ErrInvalidRecord)
	}
	if req.Category == "" {
		req.Category = domain.DefaultCategory
	}
	if req.Barcode == "" {
		req.Barcode = xid.Barcode()
	}

	created, err := s.repo.CreateProduct(ctx, domain.Product{
		Name:     req.Name,
		Price:    req.Price,
		Cost:     req.Cost,
		Stock:    req.Stock,
		Category: req.Category,
		Barcode:  req.Barcode,
	})
	if err != nil {
		return domain.Product{}, err
	}

	s.warnBelowCost(ctx, *created)
	s.logAudit(ctx, "product_create", "product", created.ID, fmt.Sprintf("name=%s,price=%s,stock=%d", created.Name, created.Price, created.Stock))
	return *created, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id int64, req domain.ProductUpdateRequest) (domain.Product, error) {
	existing, err := s.GetProduct(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}

	updated := existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Product{}, fmt.Errorf("%w: name is required", store.ErrInvalidRecord)
		}
		updated.Name = name
	}
	if req.Category != nil {
		updated.Category = defaultString(strings.TrimSpace(*req.Category), domain.DefaultCategory)
	}
	if req.Barcode != nil {
		updated.Barcode = strings.TrimSpace(*req.Barcode)
	}
	if req.Price != nil {
		if req.Price.IsNegative() {
			return domain.Product{}, fmt.Errorf("%w: negative price", store.ErrInvalidRecord)
		}
		if !domain.ValidAmount(*req.Price) {
			return domain.Product{}, fmt.Errorf("%w: price out of range", store.ErrInvalidRecord)
		}
		updated.Price = *req.Price
	}
	if req.Cost != nil {
		if req.Cost.IsNegative() {
			return domain.Product{}, fmt.Errorf("%w: negative cost", store.ErrInvalidRecord)
		}
		if !domain.ValidAmount(*req.Cost) {
			return domain.Product{}, fmt.Errorf("%w: cost out of range", store.ErrInvalidRecord)
		}
		updated.Cost = *req.Cost
	}

	saved, err := s.repo.UpdateProduct(ctx, updated)
	if err != nil {
		return domain.Product{}, err
	}
	s.warnBelowCost(ctx, *saved)
	s.logAudit(ctx, "product_update", "product", saved.ID, fmt.Sprintf("price=%s,cost=%s", saved.Price, saved.Cost))
	return *saved, nil
}

// Restock adds qty units and appends one IN movement. Unknown products fail
// with store.ErrNotFound and leave the ledger untouched.
func (s *Service) Restock(ctx context.Context, productID int64, req domain.RestockRequest) (domain.RestockResponse, error) {
	if productID < 1 || req.Quantity < 1 {
		return domain.RestockResponse{}, fmt.Errorf("%w: restock quantity must be positive", store.ErrInvalidRecord)
	}
	if req.Quantity > domain.MaxQuantity {
		return domain.RestockResponse{}, fmt.Errorf("%w: restock quantity out of range", store.ErrInvalidRecord)
	}

	product, movement, err := s.repo.Restock(ctx, productID, req.Quantity, s.now().UTC())
	if err != nil {
		return domain.RestockResponse{}, err
	}

	s.metrics.Restocked()
	s.logAudit(ctx, "product_restock", "product", product.ID, fmt.Sprintf("qty=%d,stock=%d", req.Quantity, product.Stock))
	return domain.RestockResponse{Product: *product, Movement: *movement}, nil
}

func (s *Service) Valuation(ctx context.Context) (domain.InventoryValuation, error) {
	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return domain.InventoryValuation{}, err
	}
	return analytics.Valuation(products), nil
}

// ListMovements returns the ledger newest first, optionally filtered by
// product name.
func (s *Service) ListMovements(ctx context.Context, query string, limit int) ([]domain.StockMovement, error) {
	movements, err := s.repo.ListMovements(ctx)
	if err != nil {
		return nil, err
	}
	result := analytics.MovementHistory(movements, query)
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Service) LowStock(ctx context.Context, threshold int) ([]domain.Product, error) {
	if threshold <= 0 {
		threshold = s.lowStockThreshold
	}
	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	return analytics.LowStock(products, threshold), nil
}

// Customers

func (s *Service) CreateCustomer(ctx context.Context, req domain.CustomerCreateRequest) (domain.Customer, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Customer{}, fmt.Errorf("%w: name is required", store.ErrInvalidRecord)
	}

	created, err := s.repo.CreateCustomer(ctx, domain.Customer{
		Name:           name,
		Phone:          strings.TrimSpace(req.Phone),
		Email:          strings.TrimSpace(req.Email),
		TotalPurchases: decimal.Zero,
	})
	if err != nil {
		return domain.Customer{}, err
	}
	s.logAudit(ctx, "customer_create", "customer", created.ID, created.Name)
	return *created, nil
}

// UpdateCustomer edits contact details. TotalPurchases only moves with sales.
func (s *Service) UpdateCustomer(ctx context.Context, id int64, req domain.CustomerUpdateRequest) (domain.Customer, error) {
	existing, err := s.GetCustomer(ctx, id)
	if err != nil {
		return domain.Customer{}, err
	}

	updated := existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Customer{}, fmt.Errorf("%w: name is required", store.ErrInvalidRecord)
		}
		updated.Name = name
	}
	if req.Phone != nil {
		updated.Phone = strings.TrimSpace(*req.Phone)
	}
	if req.Email != nil {
		updated.Email = strings.TrimSpace(*req.Email)
	}

	saved, err := s.repo.UpdateCustomer(ctx, updated)
	if err != nil {
		return domain.Customer{}, err
	}
	return *saved, nil
}

func (s *Service) GetCustomer(ctx context.Context, id int64) (domain.Customer, error) {
	if id < 1 {
		return domain.Customer{}, store.ErrInvalidRecord
	}
	customer, err := s.repo.GetCustomer(ctx, id)
	if err != nil {
		return domain.Customer{}, err
	}
	return *customer, nil
}

func (s *Service) ListCustomers(ctx context.Context, query string) ([]domain.Customer, error) {
	customers, err := s.repo.ListCustomers(ctx)
	if err != nil {
		return nil, err
	}
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return customers, nil
	}
	result := make([]domain.Customer, 0, len(customers))
	for _, c := range customers {
		if strings.Contains(strings.ToLower(c.Name), query) || strings.Contains(c.Phone, query) {
			result = append(result, c)
		}
	}
	return result, nil
}

// Expenses

func (s *Service) CreateExpense(ctx context.Context, req domain.ExpenseCreateRequest) (domain.Expense, error) {
	description := strings.TrimSpace(req.Description)
	if description == "" {
		return domain.Expense{}, fmt.Errorf("%w: description is required", store.ErrInvalidRecord)
	}
	if req.Amount.IsNegative() {
		return domain.Expense{}, fmt.Errorf("%w: negative amount", store.ErrInvalidRecord)
	}
	if !domain.ValidAmount(req.Amount) {
		return domain.Expense{}, fmt.Errorf("%w: amount out of range", store.ErrInvalidRecord)
	}
	date := strings.TrimSpace(req.Date)
	if date == "" {
		date = s.now().UTC().Format(domain.DateLayout)
	} else if _, err := time.Parse(domain.DateLayout, date); err != nil {
		return domain.Expense{}, fmt.Errorf("%w: date must be YYYY-MM-DD", store.ErrInvalidRecord)
	}

	created, err := s.repo.CreateExpense(ctx, domain.Expense{
		Description: description,
		Amount:      req.Amount,
		Category:    defaultString(strings.TrimSpace(req.Category), domain.DefaultCategory),
		Date:        date,
	})
	if err != nil {
		return domain.Expense{}, err
	}
	s.logAudit(ctx, "expense_create", "expense", created.ID, fmt.Sprintf("amount=%s,category=%s", created.Amount, created.Category))
	return *created, nil
}

func (s *Service) DeleteExpense(ctx context.Context, id int64) error {
	if id < 1 {
		return store.ErrInvalidRecord
	}
	if err := s.repo.DeleteExpense(ctx, id); err != nil {
		return err
	}
	s.logAudit(ctx, "expense_delete", "expense", id, "")
	return nil
}

// ListExpenses returns expenses newest first.
func (s *Service) ListExpenses(ctx context.Context) ([]domain.Expense, error) {
	expenses, err := s.repo.ListExpenses(ctx)
	if err != nil {
		return nil, err
	}
	slices.SortFunc(expenses, func(a, b domain.Expense) int {
		if c := cmp.Compare(b.Date, a.Date); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return expenses, nil
}

// Dashboard

func (s *Service) Dashboard(ctx context.Context) (domain.Dashboard, error) {
	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return domain.Dashboard{}, err
	}
	sales, err := s.repo.ListSales(ctx)
	if err != nil {
		return domain.Dashboard{}, err
	}
	expenses, err := s.repo.ListExpenses(ctx)
	if err != nil {
		return domain.Dashboard{}, err
	}
	customers, err := s.repo.ListCustomers(ctx)
	if err != nil {
		return domain.Dashboard{}, err
	}

	return domain.Dashboard{
		Summary:  analytics.Summarize(products, sales, expenses, customers),
		Series:   analytics.SevenDaySeries(sales, expenses, s.now()),
		LowStock: analytics.LowStock(products, s.lowStockThreshold),
	}, nil
}

func (s *Service) warnBelowCost(ctx context.Context, product domain.Product) {
	if product.Price.LessThan(product.Cost) {
		logger.Warn(ctx).
			Str("component", "service").
			Int64("product_id", product.ID).
			Str("price", product.Price.String()).
			Str("cost", product.Cost.String()).
			Msg("product priced below cost")
	}
}

// logAudit records who changed what. It never fails the operation.
func (s *Service) logAudit(ctx context.Context, action string, entityType string, entityID int64, detail string) {
	event := logger.Info(ctx).
		Str("component", "audit").
		Str("action", action).
		Str("entity_type", entityType).
		Int64("entity_id", entityID)
	if actor, ok := ActorFromContext(ctx); ok {
		event = event.Str("actor", actor.Username).Str("role", actor.Role)
	}
	if detail != "" {
		event = event.Str("detail", detail)
	}
	event.Msg("audit")
}

func defaultString(value string, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
