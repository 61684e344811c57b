package service

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"smartseller/backend/internal/domain"
	"smartseller/backend/internal/logger"
	"smartseller/backend/internal/store"
)

// RecordSale checks out a cart. Unit prices and names are captured from the
// catalog at this moment, duplicate cart lines are merged, and stock may go
// negative: lines that oversell are reported in Backordered.
func (s *Service) RecordSale(ctx context.Context, req domain.SaleCreateRequest) (domain.SaleResponse, error) {
	if len(req.Items) == 0 {
		return domain.SaleResponse{}, fmt.Errorf("%w: cart is empty", store.ErrInvalidRecord)
	}
	if req.CustomerID != nil && *req.CustomerID < 1 {
		return domain.SaleResponse{}, fmt.Errorf("%w: customer id %d", store.ErrInvalidRecord, *req.CustomerID)
	}

	cart, err := mergeCart(req.Items)
	if err != nil {
		return domain.SaleResponse{}, err
	}

	sale := domain.Sale{
		Date:       s.now().UTC(),
		CustomerID: req.CustomerID,
		Items:      make([]domain.SaleItem, 0, len(cart)),
	}
	for _, line := range cart {
		product, err := s.repo.GetProduct(ctx, line.ProductID)
		if err != nil {
			return domain.SaleResponse{}, err
		}
		sale.Items = append(sale.Items, domain.SaleItem{
			ProductID:   product.ID,
			ProductName: product.Name,
			Quantity:    line.Quantity,
			UnitPrice:   product.Price,
		})
	}
	if req.CustomerID != nil {
		customer, err := s.repo.GetCustomer(ctx, *req.CustomerID)
		if err != nil {
			return domain.SaleResponse{}, err
		}
		sale.CustomerName = customer.Name
	}
	sale.Total = sale.ComputeTotal()

	receipt, err := s.repo.RecordSale(ctx, sale)
	if err != nil {
		return domain.SaleResponse{}, err
	}
	recorded := receipt.Sale
	backordered := receipt.Backordered()

	if len(backordered) > 0 {
		logger.Warn(ctx).
			Str("component", "service").
			Int64("sale_id", recorded.ID).
			Ints64("product_ids", backordered).
			Msg("sale oversold available stock")
	}
	total, _ := recorded.Total.Float64()
	s.metrics.SaleRecorded(total, len(backordered))
	s.logAudit(ctx, "sale_create", "sale", recorded.ID, fmt.Sprintf("total=%s,items=%d", recorded.Total, len(recorded.Items)))

	resp := domain.SaleResponse{Sale: recorded}
	if len(backordered) > 0 {
		resp.Backordered = backordered
	}
	return resp, nil
}

func (s *Service) GetSale(ctx context.Context, id int64) (domain.Sale, error) {
	if id < 1 {
		return domain.Sale{}, store.ErrInvalidRecord
	}
	sale, err := s.repo.GetSale(ctx, id)
	if err != nil {
		return domain.Sale{}, err
	}
	return *sale, nil
}

// ListSales returns sales newest first, capped at limit when limit > 0.
func (s *Service) ListSales(ctx context.Context, limit int) ([]domain.Sale, error) {
	sales, err := s.repo.ListSales(ctx)
	if err != nil {
		return nil, err
	}
	slices.SortFunc(sales, func(a, b domain.Sale) int {
		if c := b.Date.Compare(a.Date); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	if limit > 0 && len(sales) > limit {
		sales = sales[:limit]
	}
	return sales, nil
}

// mergeCart folds repeated product ids into one line, keeping the order in
// which each product first appeared.
func mergeCart(items []domain.CartItem) ([]domain.CartItem, error) {
	merged := make([]domain.CartItem, 0, len(items))
	index := make(map[int64]int, len(items))
	for _, item := range items {
		if item.ProductID < 1 || item.Quantity < 1 {
			return nil, fmt.Errorf("%w: cart line product=%d qty=%d", store.ErrInvalidRecord, item.ProductID, item.Quantity)
		}
		if item.Quantity > domain.MaxQuantity {
			return nil, fmt.Errorf("%w: cart line quantity out of range", store.ErrInvalidRecord)
		}
		if i, seen := index[item.ProductID]; seen {
			merged[i].Quantity += item.Quantity
			if merged[i].Quantity > domain.MaxQuantity {
				return nil, fmt.Errorf("%w: cart line quantity out of range", store.ErrInvalidRecord)
			}
			continue
		}
		index[item.ProductID] = len(merged)
		merged = append(merged, item)
	}
	return merged, nil
}
