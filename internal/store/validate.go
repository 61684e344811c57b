package store

import (
	"fmt"
	"strings"

	"smartseller/backend/internal/domain"
)

func ValidateProduct(product domain.Product) error {
	if strings.TrimSpace(product.Name) == "" {
		return fmt.Errorf("%w: product name is required", ErrInvalidRecord)
	}
	if product.Price.IsNegative() || product.Cost.IsNegative() {
		return fmt.Errorf("%w: product %q has a negative price or cost", ErrInvalidRecord, product.Name)
	}
	if !domain.ValidAmount(product.Price) || !domain.ValidAmount(product.Cost) {
		return fmt.Errorf("%w: product %q price or cost out of range", ErrInvalidRecord, product.Name)
	}
	return nil
}

func ValidateCustomer(customer domain.Customer) error {
	if strings.TrimSpace(customer.Name) == "" {
		return fmt.Errorf("%w: customer name is required", ErrInvalidRecord)
	}
	if customer.TotalPurchases.IsNegative() {
		return fmt.Errorf("%w: negative total purchases", ErrInvalidRecord)
	}
	if !domain.BoundedTotal(customer.TotalPurchases) {
		return fmt.Errorf("%w: total purchases out of range", ErrInvalidRecord)
	}
	return nil
}

func ValidateExpense(expense domain.Expense) error {
	if strings.TrimSpace(expense.Description) == "" {
		return fmt.Errorf("%w: expense description is required", ErrInvalidRecord)
	}
	if expense.Amount.IsNegative() {
		return fmt.Errorf("%w: negative expense amount", ErrInvalidRecord)
	}
	if !domain.ValidAmount(expense.Amount) {
		return fmt.Errorf("%w: expense amount out of range", ErrInvalidRecord)
	}
	return nil
}

func ValidateMovement(movement domain.StockMovement) error {
	if movement.ProductID < 1 || movement.Quantity < 1 || movement.Quantity > domain.MaxQuantity {
		return fmt.Errorf("%w: movement product=%d qty=%d", ErrInvalidRecord, movement.ProductID, movement.Quantity)
	}
	if movement.Type != domain.MovementIn && movement.Type != domain.MovementOut {
		return fmt.Errorf("%w: movement type %q", ErrInvalidRecord, movement.Type)
	}
	return nil
}
