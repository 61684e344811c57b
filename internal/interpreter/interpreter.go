// Package interpreter turns free text or a product photo into a proposed
// business action by asking a hosted generative model, and validates every
// reply before anyone reads its fields.
package interpreter

import (
	"context"
	"fmt"

	"smartseller/backend/internal/domain"
)

// Snapshot is the catalog context sent along with a command.
type Snapshot struct {
	Products  []domain.Product
	Customers []domain.Customer
}

type Interpreter interface {
	Interpret(ctx context.Context, command string, snapshot Snapshot) (Result, error)
	// IdentifyImage only ever proposes CREATE_SALE or ADD_PRODUCT.
	IdentifyImage(ctx context.Context, image []byte, mimeType string, productNames []string) (Result, error)
	AnalyzeMarket(ctx context.Context, products []domain.Product) (*domain.MarketReport, error)
}

// Unavailable is used when no API key is configured. Every call fails with
// ErrAIRequest, which callers already degrade gracefully.
type Unavailable struct{}

func (Unavailable) Interpret(context.Context, string, Snapshot) (Result, error) {
	return Result{Action: Unknown{}}, errNotConfigured
}

func (Unavailable) IdentifyImage(context.Context, []byte, string, []string) (Result, error) {
	return Result{Action: Unknown{}}, errNotConfigured
}

func (Unavailable) AnalyzeMarket(context.Context, []domain.Product) (*domain.MarketReport, error) {
	return nil, errNotConfigured
}

var errNotConfigured = fmt.Errorf("%w: GEMINI_API_KEY is not set", ErrAIRequest)
