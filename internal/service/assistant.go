package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"smartseller/backend/internal/domain"
	"smartseller/backend/internal/interpreter"
	"smartseller/backend/internal/logger"
	"smartseller/backend/internal/store"
)

const (
	assistantUnavailableMessage = "The assistant is unavailable right now. Please try again or enter the record manually."
	assistantUnclearMessage     = "Sorry, I could not turn that into an action. Please rephrase."
)

// defaultCostRatio estimates cost from price when the assistant did not
// propose one.
var defaultCostRatio = decimal.RequireFromString("0.7")

// Interpret proposes an action for a free-text command. It never writes to
// the store. Assistant failures degrade to an Unknown action with an
// explanatory message.
func (s *Service) Interpret(ctx context.Context, command string) (interpreter.Result, error) {
	command = strings.TrimSpace(command)
	if command == "" {
		return interpreter.Result{}, fmt.Errorf("%w: command is required", store.ErrInvalidRecord)
	}

	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return interpreter.Result{}, err
	}
	customers, err := s.repo.ListCustomers(ctx)
	if err != nil {
		return interpreter.Result{}, err
	}

	result, err := s.assistant.Interpret(ctx, command, interpreter.Snapshot{Products: products, Customers: customers})
	return s.degrade(ctx, "interpret", result, err), nil
}

// IdentifyImage proposes CREATE_SALE or ADD_PRODUCT for a product photo.
// Like Interpret it never writes to the store.
func (s *Service) IdentifyImage(ctx context.Context, image []byte, mimeType string) (interpreter.Result, error) {
	if len(image) == 0 {
		return interpreter.Result{}, fmt.Errorf("%w: image is required", store.ErrInvalidRecord)
	}

	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return interpreter.Result{}, err
	}
	names := make([]string, 0, len(products))
	for _, p := range products {
		names = append(names, p.Name)
	}

	result, err := interpreter.RestrictToVision(s.assistant.IdentifyImage(ctx, image, mimeType, names))
	return s.degrade(ctx, "identify_image", result, err), nil
}

func (s *Service) degrade(ctx context.Context, op string, result interpreter.Result, err error) interpreter.Result {
	if result.Action == nil {
		result.Action = interpreter.Unknown{}
	}
	switch {
	case err == nil:
		s.metrics.AssistantCall(op, "ok")
		return result
	case errors.Is(err, interpreter.ErrInvalidAction):
		s.metrics.AssistantCall(op, "invalid")
		logger.Warn(ctx).Str("component", "assistant").Str("operation", op).Err(err).Msg("assistant reply rejected")
		return interpreter.Result{Message: defaultString(result.Message, assistantUnclearMessage), Action: interpreter.Unknown{}}
	default:
		s.metrics.AssistantCall(op, "failed")
		logger.Error(ctx).Str("component", "assistant").Str("operation", op).Err(err).Msg("assistant request failed")
		return interpreter.Result{Message: assistantUnavailableMessage, Action: interpreter.Unknown{}}
	}
}

// ApplyAction performs a proposed action after the user confirmed it.
// Unknown actions are rejected with ErrUnknownAction and write nothing.
func (s *Service) ApplyAction(ctx context.Context, result interpreter.Result) (domain.AppliedAction, error) {
	if result.Action == nil {
		return domain.AppliedAction{}, ErrUnknownAction
	}

	applied := domain.AppliedAction{Type: string(result.Action.Kind()), Message: result.Message}
	switch action := result.Action.(type) {
	case interpreter.AddProduct:
		cost := action.Price.Mul(defaultCostRatio).Round(2)
		if action.Cost != nil {
			cost = *action.Cost
		}
		product, err := s.CreateProduct(ctx, domain.ProductCreateRequest{
			Name:     action.Name,
			Price:    action.Price,
			Cost:     cost,
			Stock:    action.Stock,
			Category: action.Category,
		})
		if err != nil {
			return domain.AppliedAction{}, err
		}
		applied.Product = &product

	case interpreter.AddExpense:
		expense, err := s.CreateExpense(ctx, domain.ExpenseCreateRequest{
			Description: action.Description,
			Amount:      action.Amount,
			Category:    action.Category,
		})
		if err != nil {
			return domain.AppliedAction{}, err
		}
		applied.Expense = &expense

	case interpreter.CreateSale:
		cart, err := s.resolveSaleLines(ctx, action.Items)
		if err != nil {
			return domain.AppliedAction{}, err
		}
		sale, err := s.RecordSale(ctx, domain.SaleCreateRequest{Items: cart})
		if err != nil {
			return domain.AppliedAction{}, err
		}
		applied.Sale = &sale

	default:
		return domain.AppliedAction{}, ErrUnknownAction
	}
	return applied, nil
}

// resolveSaleLines maps spoken product names onto catalog ids: an exact name
// wins, otherwise the first product whose name contains the text ignoring
// case.
func (s *Service) resolveSaleLines(ctx context.Context, lines []interpreter.SaleLine) ([]domain.CartItem, error) {
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: sale without items", store.ErrInvalidRecord)
	}
	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return nil, err
	}

	cart := make([]domain.CartItem, 0, len(lines))
	for _, line := range lines {
		product, ok := matchProduct(products, line.ProductName)
		if !ok {
			return nil, fmt.Errorf("%w: no product matches %q", store.ErrNotFound, line.ProductName)
		}
		cart = append(cart, domain.CartItem{ProductID: product.ID, Quantity: line.Quantity})
	}
	return cart, nil
}

func matchProduct(products []domain.Product, name string) (domain.Product, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Product{}, false
	}
	for _, p := range products {
		if p.Name == name {
			return p, true
		}
	}
	needle := strings.ToLower(name)
	for _, p := range products {
		if strings.Contains(strings.ToLower(p.Name), needle) {
			return p, true
		}
	}
	return domain.Product{}, false
}

// MarketAnalysis returns the market report for the current catalog, served
// from cache while the catalog is unchanged.
func (s *Service) MarketAnalysis(ctx context.Context) (*domain.MarketReport, error) {
	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return nil, fmt.Errorf("%w: catalog is empty", store.ErrInvalidRecord)
	}

	report, cached, err := s.advisor.Analyze(ctx, products)
	if err != nil {
		s.metrics.AssistantCall("analyze_market", "failed")
		logger.Error(ctx).Str("component", "assistant").Err(err).Msg("market analysis failed")
		return nil, err
	}
	outcome := "ok"
	if cached {
		outcome = "cached"
	}
	s.metrics.AssistantCall("analyze_market", outcome)
	return report, nil
}
