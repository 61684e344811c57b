package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID       int64           `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Cost     decimal.Decimal `json:"cost"`
	Stock    int             `json:"stock"`
	Category string          `json:"category"`
	Barcode  string          `json:"barcode"`
}

type ProductCreateRequest struct {
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Cost     decimal.Decimal `json:"cost"`
	Stock    int             `json:"stock"`
	Category string          `json:"category"`
	Barcode  string          `json:"barcode"`
}

// ProductUpdateRequest patches catalog fields. Stock is only changed through
// restock and sales so that every change leaves a movement behind.
type ProductUpdateRequest struct {
	Name     *string          `json:"name,omitempty"`
	Price    *decimal.Decimal `json:"price,omitempty"`
	Cost     *decimal.Decimal `json:"cost,omitempty"`
	Category *string          `json:"category,omitempty"`
	Barcode  *string          `json:"barcode,omitempty"`
}

type RestockRequest struct {
	Quantity int `json:"quantity"`
}

type RestockResponse struct {
	Product  Product       `json:"product"`
	Movement StockMovement `json:"movement"`
}

type MovementType string

const (
	MovementIn  MovementType = "IN"
	MovementOut MovementType = "OUT"
)

type StockMovement struct {
	ID          int64            `json:"id"`
	ProductID   int64            `json:"product_id"`
	ProductName string           `json:"product_name"`
	Type        MovementType     `json:"type"`
	Quantity    int              `json:"quantity"`
	Date        time.Time        `json:"date"`
	Price       *decimal.Decimal `json:"price,omitempty"`
}

type Customer struct {
	ID             int64           `json:"id"`
	Name           string          `json:"name"`
	Phone          string          `json:"phone"`
	Email          string          `json:"email,omitempty"`
	TotalPurchases decimal.Decimal `json:"total_purchases"`
}

type CustomerCreateRequest struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email"`
}

type CustomerUpdateRequest struct {
	Name  *string `json:"name,omitempty"`
	Phone *string `json:"phone,omitempty"`
	Email *string `json:"email,omitempty"`
}

type SaleItem struct {
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

// LineTotal is Quantity x UnitPrice.
func (i SaleItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

type Sale struct {
	ID           int64           `json:"id"`
	Date         time.Time       `json:"date"`
	CustomerID   *int64          `json:"customer_id,omitempty"`
	CustomerName string          `json:"customer_name,omitempty"`
	Total        decimal.Decimal `json:"total"`
	Items        []SaleItem      `json:"items"`
}

// ComputeTotal sums the line totals. A recorded sale always has
// Total == ComputeTotal().
func (s Sale) ComputeTotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range s.Items {
		total = total.Add(item.LineTotal())
	}
	return total
}

type CartItem struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

type SaleCreateRequest struct {
	CustomerID *int64     `json:"customer_id,omitempty"`
	Items      []CartItem `json:"items"`
}

type SaleResponse struct {
	Sale        Sale    `json:"sale"`
	Backordered []int64 `json:"backordered,omitempty"`
}

type Expense struct {
	ID          int64           `json:"id"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Category    string          `json:"category"`
	Date        string          `json:"date"`
}

type ExpenseCreateRequest struct {
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Category    string          `json:"category"`
	Date        string          `json:"date"`
}

type ProductValuation struct {
	ProductID       int64           `json:"product_id"`
	Name            string          `json:"name"`
	Stock           int             `json:"stock"`
	WholesaleValue  decimal.Decimal `json:"wholesale_value"`
	MarketValue     decimal.Decimal `json:"market_value"`
	PotentialProfit decimal.Decimal `json:"potential_profit"`
}

type InventoryValuation struct {
	Products        []ProductValuation `json:"products"`
	WholesaleValue  decimal.Decimal    `json:"wholesale_value"`
	MarketValue     decimal.Decimal    `json:"market_value"`
	PotentialProfit decimal.Decimal    `json:"potential_profit"`
}

type DailyPoint struct {
	Day      string          `json:"day"`
	Sales    decimal.Decimal `json:"sales"`
	Expenses decimal.Decimal `json:"expenses"`
}

type BusinessSummary struct {
	TotalRevenue  decimal.Decimal `json:"total_revenue"`
	TotalCOGS     decimal.Decimal `json:"total_cogs"`
	TotalExpenses decimal.Decimal `json:"total_expenses"`
	GrossProfit   decimal.Decimal `json:"gross_profit"`
	NetProfit     decimal.Decimal `json:"net_profit"`
	SalesCount    int             `json:"sales_count"`
	ProductCount  int             `json:"product_count"`
	CustomerCount int             `json:"customer_count"`
}

type Dashboard struct {
	Summary  BusinessSummary `json:"summary"`
	Series   []DailyPoint    `json:"series"`
	LowStock []Product       `json:"low_stock"`
}

type MarketInsight struct {
	ProductName         string `json:"product_name"`
	MarketTrend         string `json:"market_trend"`
	SuggestedPriceRange string `json:"suggested_price_range"`
	CompetitorStrategy  string `json:"competitor_strategy,omitempty"`
	Advice              string `json:"advice"`
}

type MarketReport struct {
	Insights      []MarketInsight `json:"insights"`
	GeneralReport string          `json:"general_report"`
	GeneratedAt   time.Time       `json:"generated_at"`
}

// AppliedAction reports the record a confirmed assistant action produced.
type AppliedAction struct {
	Type    string        `json:"type"`
	Message string        `json:"message,omitempty"`
	Product *Product      `json:"product,omitempty"`
	Expense *Expense      `json:"expense,omitempty"`
	Sale    *SaleResponse `json:"sale,omitempty"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

const (
	RoleOwner   = "owner"
	RoleCashier = "cashier"
)

// DefaultCategory is used when a product or expense arrives without one.
const DefaultCategory = "general"

// DateLayout is the calendar-day format used for expense dates and the
// dashboard series.
const DateLayout = "2006-01-02"
