package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"smartseller/backend/internal/domain"
	"smartseller/backend/internal/interpreter"
	"smartseller/backend/internal/metrics"
	"smartseller/backend/internal/service"
	"smartseller/backend/internal/store/memory"
)

const (
	testOwnerPassword   = "owner-secret"
	testCashierPassword = "cashier-secret"
)

type stubInterpreter struct {
	result interpreter.Result
	err    error
	report *domain.MarketReport
}

func (s stubInterpreter) Interpret(context.Context, string, interpreter.Snapshot) (interpreter.Result, error) {
	return s.result, s.err
}

func (s stubInterpreter) IdentifyImage(context.Context, []byte, string, []string) (interpreter.Result, error) {
	return s.result, s.err
}

func (s stubInterpreter) AnalyzeMarket(context.Context, []domain.Product) (*domain.MarketReport, error) {
	return s.report, s.err
}

// newTestAPI builds a full API with a seeded in-memory store, a real
// AuthManager and a real Service so handler tests exercise the whole path.
func newTestAPI(t *testing.T) *API {
	t.Helper()
	return newTestAPIWith(t, interpreter.Unavailable{})
}

func newTestAPIWith(t *testing.T, assistant interpreter.Interpreter) *API {
	t.Helper()

	m := metrics.New()
	svc := service.New(memory.NewSeeded(), assistant, nil, 5)
	svc.SetMetrics(m)
	auth := NewAuthManager("test-secret-key-with-32-characters", time.Hour,
		mustHashPassword(t, testOwnerPassword), mustHashPassword(t, testCashierPassword))

	return New(svc, auth, m, "*")
}

// mustHashPassword generates a bcrypt hash at minimum cost to keep tests fast.
func mustHashPassword(t *testing.T, plain string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	return string(hash)
}

// client remembers a token and a CSRF token for follow-up calls.
type client struct {
	t       *testing.T
	handler http.Handler
	token   string
	csrf    string
}

func newClient(t *testing.T, api *API, username, password string) *client {
	t.Helper()
	return &client{
		t:       t,
		handler: api.Handler(),
		token:   login(t, api, username, password),
		csrf:    fetchCSRFToken(t, api),
	}
}

func (c *client) do(method, path string, body any) *httptest.ResponseRecorder {
	c.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("X-CSRF-Token", c.csrf)
	rec := httptest.NewRecorder()
	c.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dest any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(dest); err != nil {
		t.Fatalf("decode body: %v (raw: %s)", err, rec.Body.String())
	}
}

func TestHandleHealth(t *testing.T) {
	handler := newTestAPI(t).Handler()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]any
	decodeBody(t, rec, &body)
	if body["ok"] != true {
		t.Fatalf("expected ok:true, got %v", body["ok"])
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatalf("expected a request id header")
	}
}

func TestHandleLogin_InvalidCredentials(t *testing.T) {
	handler := newTestAPI(t).Handler()

	payload, _ := json.Marshal(domain.LoginRequest{Username: "owner", Password: "wrongpassword"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(payload))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestHandleProducts_RequiresAuth(t *testing.T) {
	handler := newTestAPI(t).Handler()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestProductLifecycle(t *testing.T) {
	api := newTestAPI(t)
	owner := newClient(t, api, "owner", testOwnerPassword)
	cashier := newClient(t, api, "cashier", testCashierPassword)

	rec := cashier.do(http.MethodPost, "/api/v1/products", domain.ProductCreateRequest{
		Name:  "Kerupuk",
		Price: decimal.NewFromInt(5000),
		Cost:  decimal.NewFromInt(3000),
		Stock: 10,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var created struct {
		Product domain.Product `json:"product"`
	}
	decodeBody(t, rec, &created)
	path := fmt.Sprintf("/api/v1/products/%d", created.Product.ID)

	price := decimal.NewFromInt(5500)
	if rec := cashier.do(http.MethodPatch, path, domain.ProductUpdateRequest{Price: &price}); rec.Code != http.StatusForbidden {
		t.Fatalf("expected cashier PATCH to be forbidden, got %d", rec.Code)
	}
	if rec := owner.do(http.MethodPatch, path, domain.ProductUpdateRequest{Price: &price}); rec.Code != http.StatusOK {
		t.Fatalf("expected owner PATCH 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	if rec := cashier.do(http.MethodPost, path+"/restock", domain.RestockRequest{Quantity: 5}); rec.Code != http.StatusForbidden {
		t.Fatalf("expected cashier restock to be forbidden, got %d", rec.Code)
	}
	rec = owner.do(http.MethodPost, path+"/restock", domain.RestockRequest{Quantity: 5})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected restock 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var restocked domain.RestockResponse
	decodeBody(t, rec, &restocked)
	if restocked.Product.Stock != 15 || !restocked.Product.Price.Equal(price) {
		t.Fatalf("unexpected restocked product %+v", restocked.Product)
	}

	if rec := owner.do(http.MethodPost, "/api/v1/products/9999/restock", domain.RestockRequest{Quantity: 1}); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown product, got %d", rec.Code)
	}
	if rec := owner.do(http.MethodGet, "/api/v1/products/abc", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed id, got %d", rec.Code)
	}
}

func TestCreateProductValidation(t *testing.T) {
	cashier := newClient(t, newTestAPI(t), "cashier", testCashierPassword)

	rec := cashier.do(http.MethodPost, "/api/v1/products", map[string]any{"name": "", "price": "100"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	rec = cashier.do(http.MethodPost, "/api/v1/products", map[string]any{"name": "X", "color": "red"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected unknown fields rejected, got %d", rec.Code)
	}
	rec = cashier.do(http.MethodPost, "/api/v1/products", map[string]any{"name": "X", "price": "1e99999999"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected huge price rejected, got %d", rec.Code)
	}
	if rec.Body.Len() > 512 {
		t.Fatalf("expected a short error body, got %d bytes", rec.Body.Len())
	}
}

func TestSaleCheckoutReportsBackorder(t *testing.T) {
	api := newTestAPI(t)
	cashier := newClient(t, api, "cashier", testCashierPassword)

	// seeded product 4 is Roti Tawar with 4 in stock
	rec := cashier.do(http.MethodPost, "/api/v1/sales", domain.SaleCreateRequest{
		Items: []domain.CartItem{{ProductID: 4, Quantity: 6}, {ProductID: 1, Quantity: 1}},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var resp domain.SaleResponse
	decodeBody(t, rec, &resp)
	if len(resp.Backordered) != 1 || resp.Backordered[0] != 4 {
		t.Fatalf("expected product 4 backordered, got %v", resp.Backordered)
	}
	if !resp.Sale.Total.Equal(resp.Sale.ComputeTotal()) {
		t.Fatalf("total %s does not match lines", resp.Sale.Total)
	}

	rec = cashier.do(http.MethodGet, fmt.Sprintf("/api/v1/sales/%d", resp.Sale.ID), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected sale lookup 200, got %d", rec.Code)
	}

	rec = cashier.do(http.MethodGet, "/api/v1/inventory/movements?q=roti", nil)
	var movements struct {
		Movements []domain.StockMovement `json:"movements"`
	}
	decodeBody(t, rec, &movements)
	if len(movements.Movements) != 1 || movements.Movements[0].Type != domain.MovementOut {
		t.Fatalf("expected one OUT movement for roti, got %+v", movements.Movements)
	}

	if rec := cashier.do(http.MethodPost, "/api/v1/sales", domain.SaleCreateRequest{}); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected empty cart rejected, got %d", rec.Code)
	}
	missing := int64(99)
	rec = cashier.do(http.MethodPost, "/api/v1/sales", domain.SaleCreateRequest{
		CustomerID: &missing,
		Items:      []domain.CartItem{{ProductID: 1, Quantity: 1}},
	})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected unknown customer 404, got %d", rec.Code)
	}
}

func TestExpenseDeleteRequiresOwner(t *testing.T) {
	api := newTestAPI(t)
	owner := newClient(t, api, "owner", testOwnerPassword)
	cashier := newClient(t, api, "cashier", testCashierPassword)

	rec := cashier.do(http.MethodPost, "/api/v1/expenses", domain.ExpenseCreateRequest{
		Description: "Listrik",
		Amount:      decimal.NewFromInt(200000),
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var created struct {
		Expense domain.Expense `json:"expense"`
	}
	decodeBody(t, rec, &created)
	path := fmt.Sprintf("/api/v1/expenses/%d", created.Expense.ID)

	if rec := cashier.do(http.MethodDelete, path, nil); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	if rec := owner.do(http.MethodDelete, path, nil); rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if rec := owner.do(http.MethodDelete, path, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on second delete, got %d", rec.Code)
	}
}

func TestDashboardAndInventoryReports(t *testing.T) {
	cashier := newClient(t, newTestAPI(t), "cashier", testCashierPassword)

	rec := cashier.do(http.MethodGet, "/api/v1/dashboard", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var dashboard domain.Dashboard
	decodeBody(t, rec, &dashboard)
	if len(dashboard.Series) != 7 || dashboard.Summary.ProductCount != 8 || len(dashboard.LowStock) != 2 {
		t.Fatalf("unexpected dashboard %+v", dashboard)
	}

	rec = cashier.do(http.MethodGet, "/api/v1/inventory/valuation", nil)
	var valuation domain.InventoryValuation
	decodeBody(t, rec, &valuation)
	if !valuation.PotentialProfit.Equal(valuation.MarketValue.Sub(valuation.WholesaleValue)) {
		t.Fatalf("valuation does not add up: %+v", valuation)
	}

	rec = cashier.do(http.MethodGet, "/api/v1/inventory/low-stock?threshold=30", nil)
	var low struct {
		Products []domain.Product `json:"products"`
	}
	decodeBody(t, rec, &low)
	if len(low.Products) != 3 {
		t.Fatalf("expected 3 products at or below 30, got %d", len(low.Products))
	}
}

func TestCustomersEndpoints(t *testing.T) {
	cashier := newClient(t, newTestAPI(t), "cashier", testCashierPassword)

	rec := cashier.do(http.MethodPost, "/api/v1/customers", domain.CustomerCreateRequest{Name: "Andi", Phone: "0811"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	var created struct {
		Customer domain.Customer `json:"customer"`
	}
	decodeBody(t, rec, &created)

	email := "andi@example.com"
	rec = cashier.do(http.MethodPatch, fmt.Sprintf("/api/v1/customers/%d", created.Customer.ID), domain.CustomerUpdateRequest{Email: &email})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	rec = cashier.do(http.MethodGet, "/api/v1/customers?q=andi", nil)
	var list struct {
		Customers []domain.Customer `json:"customers"`
	}
	decodeBody(t, rec, &list)
	if len(list.Customers) != 1 || list.Customers[0].Email != email {
		t.Fatalf("unexpected customers %+v", list.Customers)
	}
}

func TestAssistantCommandDegradesWithoutKey(t *testing.T) {
	cashier := newClient(t, newTestAPI(t), "cashier", testCashierPassword)

	rec := cashier.do(http.MethodPost, "/api/v1/assistant/command", map[string]string{"command": "jual 2 kopi"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var body map[string]any
	decodeBody(t, rec, &body)
	if body["type"] != string(interpreter.KindUnknown) || body["message"] == "" {
		t.Fatalf("expected degraded UNKNOWN proposal, got %v", body)
	}
}

func TestAssistantProposeThenApply(t *testing.T) {
	api := newTestAPIWith(t, stubInterpreter{result: interpreter.Result{
		Message: "Sell 2 Kopi Sachet",
		Action:  interpreter.CreateSale{Items: []interpreter.SaleLine{{ProductName: "kopi", Quantity: 2}}},
	}})
	cashier := newClient(t, api, "cashier", testCashierPassword)

	rec := cashier.do(http.MethodPost, "/api/v1/assistant/command", map[string]string{"command": "jual 2 kopi"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	proposal := rec.Body.Bytes()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/assistant/apply", bytes.NewReader(proposal))
	req.Header.Set("Authorization", "Bearer "+cashier.token)
	req.Header.Set("X-CSRF-Token", cashier.csrf)
	applied := httptest.NewRecorder()
	cashier.handler.ServeHTTP(applied, req)
	if applied.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", applied.Code, applied.Body.String())
	}
	var result domain.AppliedAction
	decodeBody(t, applied, &result)
	if result.Sale == nil || result.Sale.Sale.Items[0].ProductName != "Kopi Sachet" {
		t.Fatalf("expected a sale of Kopi Sachet, got %+v", result)
	}

	rec = cashier.do(http.MethodPost, "/api/v1/assistant/apply", map[string]any{"message": "?", "type": "UNKNOWN"})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for UNKNOWN, got %d", rec.Code)
	}
	rec = cashier.do(http.MethodPost, "/api/v1/assistant/apply", map[string]any{"type": "DELETE_ALL", "payload": map[string]any{}})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid action, got %d", rec.Code)
	}
}

func TestMarketAnalysisOwnerOnlyAndUpstreamFailure(t *testing.T) {
	api := newTestAPI(t)
	cashier := newClient(t, api, "cashier", testCashierPassword)
	owner := newClient(t, api, "owner", testOwnerPassword)

	if rec := cashier.do(http.MethodGet, "/api/v1/assistant/market-analysis", nil); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	rec := owner.do(http.MethodGet, "/api/v1/assistant/market-analysis", nil)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502 without an assistant, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "GEMINI_API_KEY") {
		t.Fatalf("upstream details must not leak: %s", rec.Body.String())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	api := newTestAPI(t)
	cashier := newClient(t, api, "cashier", testCashierPassword)
	cashier.do(http.MethodGet, "/api/v1/products/1", nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `endpoint="/api/v1/products/{id}"`) {
		t.Fatalf("expected normalized endpoint label in metrics output")
	}
}
