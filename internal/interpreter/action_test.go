package interpreter

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeAddProduct(t *testing.T) {
	got, err := Decode([]byte(`{"message":"Adding tea","type":"ADD_PRODUCT","payload":{"name":" Teh Celup ","price":9800,"cost":"7250.5","stock":12,"category":"beverage"}}`))
	require.NoError(t, err)
	assert.Equal(t, "Adding tea", got.Message)

	action, ok := got.Action.(AddProduct)
	require.True(t, ok, "got %T", got.Action)
	assert.Equal(t, "Teh Celup", action.Name)
	assert.True(t, action.Price.Equal(decimal.NewFromInt(9800)))
	require.NotNil(t, action.Cost)
	assert.True(t, action.Cost.Equal(decimal.RequireFromString("7250.5")))
	assert.Equal(t, 12, action.Stock)
	assert.Equal(t, "beverage", action.Category)
}

func TestDecodeAddProductWithoutCostOrStock(t *testing.T) {
	got, err := Decode([]byte(`{"message":"ok","type":"add_product","payload":{"name":"Gula","price":17400}}`))
	require.NoError(t, err)
	action := got.Action.(AddProduct)
	assert.Nil(t, action.Cost)
	assert.Equal(t, 0, action.Stock)
}

func TestDecodeCreateSaleDefaultsQuantity(t *testing.T) {
	got, err := Decode([]byte(`{"message":"Selling","type":"CREATE_SALE","payload":{"items":[{"productName":"Kopi"},{"productName":"Teh","quantity":3}]}}`))
	require.NoError(t, err)
	action := got.Action.(CreateSale)
	assert.Equal(t, []SaleLine{{ProductName: "Kopi", Quantity: 1}, {ProductName: "Teh", Quantity: 3}}, action.Items)
}

func TestDecodeAddExpense(t *testing.T) {
	got, err := Decode([]byte(`{"message":"Saving","type":"ADD_EXPENSE","payload":{"description":"Listrik","amount":250000}}`))
	require.NoError(t, err)
	action := got.Action.(AddExpense)
	assert.Equal(t, "Listrik", action.Description)
	assert.True(t, action.Amount.Equal(decimal.NewFromInt(250000)))
	assert.Equal(t, "", action.Category)
}

func TestDecodeExplicitUnknown(t *testing.T) {
	got, err := Decode([]byte(`{"message":"Sorry, I did not get that","type":"UNKNOWN"}`))
	require.NoError(t, err)
	assert.Equal(t, KindUnknown, got.Action.Kind())
	assert.Equal(t, "Sorry, I did not get that", got.Message)
}

func TestDecodeRejectsInvalidShapes(t *testing.T) {
	cases := map[string]string{
		"not json":              `I think you want to add a product`,
		"unknown type":          `{"message":"x","type":"DELETE_EVERYTHING","payload":{}}`,
		"missing payload":       `{"message":"x","type":"ADD_PRODUCT"}`,
		"payload not object":    `{"message":"x","type":"ADD_EXPENSE","payload":"lots"}`,
		"product without name":  `{"message":"x","type":"ADD_PRODUCT","payload":{"price":10}}`,
		"product without price": `{"message":"x","type":"ADD_PRODUCT","payload":{"name":"Kopi"}}`,
		"negative price":        `{"message":"x","type":"ADD_PRODUCT","payload":{"name":"Kopi","price":-1}}`,
		"negative cost":         `{"message":"x","type":"ADD_PRODUCT","payload":{"name":"Kopi","price":1,"cost":-2}}`,
		"fractional stock":      `{"message":"x","type":"ADD_PRODUCT","payload":{"name":"Kopi","price":1,"stock":2.5}}`,
		"negative stock":        `{"message":"x","type":"ADD_PRODUCT","payload":{"name":"Kopi","price":1,"stock":-4}}`,
		"negative amount":       `{"message":"x","type":"ADD_EXPENSE","payload":{"description":"Sewa","amount":-10}}`,
		"expense no amount":     `{"message":"x","type":"ADD_EXPENSE","payload":{"description":"Sewa"}}`,
		"sale no items":         `{"message":"x","type":"CREATE_SALE","payload":{"items":[]}}`,
		"sale zero quantity":    `{"message":"x","type":"CREATE_SALE","payload":{"items":[{"productName":"Kopi","quantity":0}]}}`,
		"sale fractional qty":   `{"message":"x","type":"CREATE_SALE","payload":{"items":[{"productName":"Kopi","quantity":1.5}]}}`,
		"sale blank name":       `{"message":"x","type":"CREATE_SALE","payload":{"items":[{"productName":" ","quantity":1}]}}`,
		"wrong field type":      `{"message":"x","type":"CREATE_SALE","payload":{"items":[{"productName":"Kopi","quantity":"many"}]}}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			got, err := Decode([]byte(raw))
			require.ErrorIs(t, err, ErrInvalidAction)
			assert.Equal(t, KindUnknown, got.Action.Kind())
		})
	}
}

func TestResultRoundTripsThroughJSON(t *testing.T) {
	cost := decimal.RequireFromString("2.75")
	original := Result{
		Message: "confirm?",
		Action:  AddProduct{Name: "Kopi", Price: decimal.RequireFromString("3.5"), Cost: &cost, Stock: 4, Category: "beverage"},
	}
	raw, err := json.Marshal(original)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"type":"ADD_PRODUCT"`)
	assert.Contains(t, string(raw), `"price":3.5`)

	var back Result
	require.NoError(t, json.Unmarshal(raw, &back))
	action := back.Action.(AddProduct)
	assert.Equal(t, "Kopi", action.Name)
	assert.True(t, action.Cost.Equal(cost))
	assert.Equal(t, 4, action.Stock)
}

func TestUnmarshalRejectsInvalidAction(t *testing.T) {
	var back Result
	err := json.Unmarshal([]byte(`{"message":"x","type":"CREATE_SALE","payload":{"items":[{"productName":"Kopi","quantity":-3}]}}`), &back)
	require.ErrorIs(t, err, ErrInvalidAction)
	assert.Equal(t, KindUnknown, back.Action.Kind())
}

func TestDecodeRejectsHugeNumbers(t *testing.T) {
	cases := map[string]string{
		"quantity exponent":  `{"type":"CREATE_SALE","payload":{"items":[{"productName":"Kopi","quantity":1e99999999}]}}`,
		"tiny quantity":      `{"type":"CREATE_SALE","payload":{"items":[{"productName":"Kopi","quantity":1e-99999999}]}}`,
		"quantity too large": `{"type":"CREATE_SALE","payload":{"items":[{"productName":"Kopi","quantity":2000000000}]}}`,
		"price exponent":     `{"type":"ADD_PRODUCT","payload":{"name":"Kopi","price":"1e9999999"}}`,
		"price too large":    `{"type":"ADD_PRODUCT","payload":{"name":"Kopi","price":1000000000001}}`,
		"cost scale":         `{"type":"ADD_PRODUCT","payload":{"name":"Kopi","price":1,"cost":"1e-99999999"}}`,
		"stock exponent":     `{"type":"ADD_PRODUCT","payload":{"name":"Kopi","price":1,"stock":1e99999999}}`,
		"amount exponent":    `{"type":"ADD_EXPENSE","payload":{"description":"Listrik","amount":9e99999999}}`,
		"long number":        `{"type":"ADD_EXPENSE","payload":{"description":"Listrik","amount":1234567890123456789012345678901234567890}}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			got, err := Decode([]byte(raw))
			require.ErrorIs(t, err, ErrInvalidAction)
			assert.Equal(t, KindUnknown, got.Action.Kind())
			assert.Less(t, len(err.Error()), 200, "error must not echo the value")
		})
	}
}

func TestDecodeAcceptsLargestAmount(t *testing.T) {
	got, err := Decode([]byte(`{"type":"ADD_EXPENSE","payload":{"description":"Renovasi","amount":"1e12"}}`))
	require.NoError(t, err)
	assert.True(t, got.Action.(AddExpense).Amount.Equal(decimal.New(1, 12)))
}
