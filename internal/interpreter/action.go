package interpreter

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"smartseller/backend/internal/domain"
)

type Kind string

const (
	KindAddProduct Kind = "ADD_PRODUCT"
	KindAddExpense Kind = "ADD_EXPENSE"
	KindCreateSale Kind = "CREATE_SALE"
	KindUnknown    Kind = "UNKNOWN"
)

var (
	// ErrInvalidAction marks a reply whose type or payload does not fit the
	// action vocabulary. The accompanying Result always carries Unknown.
	ErrInvalidAction = errors.New("invalid action")
	ErrAIRequest     = errors.New("ai request failed")
)

// Action is one of AddProduct, AddExpense, CreateSale or Unknown.
type Action interface {
	Kind() Kind
}

type AddProduct struct {
	Name     string
	Price    decimal.Decimal
	Cost     *decimal.Decimal
	Stock    int
	Category string
}

type AddExpense struct {
	Description string
	Amount      decimal.Decimal
	Category    string
}

type SaleLine struct {
	ProductName string
	Quantity    int
}

type CreateSale struct {
	Items []SaleLine
}

type Unknown struct{}

func (AddProduct) Kind() Kind { return KindAddProduct }
func (AddExpense) Kind() Kind { return KindAddExpense }
func (CreateSale) Kind() Kind { return KindCreateSale }
func (Unknown) Kind() Kind    { return KindUnknown }

// Result is a decoded interpreter reply: a message for the user plus the
// proposed action. Nothing is applied until the caller confirms it.
type Result struct {
	Message string
	Action  Action
}

type wireResult struct {
	Message string       `json:"message"`
	Type    string       `json:"type"`
	Payload *wirePayload `json:"payload,omitempty"`
}

type wirePayload struct {
	Name        string       `json:"name,omitempty"`
	Price       *json.Number `json:"price,omitempty"`
	Cost        *json.Number `json:"cost,omitempty"`
	Stock       *json.Number `json:"stock,omitempty"`
	Description string       `json:"description,omitempty"`
	Amount      *json.Number `json:"amount,omitempty"`
	Category    string       `json:"category,omitempty"`
	Items       []wireLine   `json:"items,omitempty"`
}

type wireLine struct {
	ProductName string       `json:"productName"`
	Quantity    *json.Number `json:"quantity,omitempty"`
}

// Decode parses and validates a {message, type, payload} document. Any
// shape it cannot fully validate comes back as Unknown together with an
// error wrapping ErrInvalidAction; the message is kept when it was readable.
func Decode(raw []byte) (Result, error) {
	var wire wireResult
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&wire); err != nil {
		return Result{Action: Unknown{}}, fmt.Errorf("%w: %v", ErrInvalidAction, err)
	}

	result := Result{Message: strings.TrimSpace(wire.Message), Action: Unknown{}}
	action, err := decodeAction(Kind(strings.ToUpper(strings.TrimSpace(wire.Type))), wire.Payload)
	if err != nil {
		return result, err
	}
	result.Action = action
	return result, nil
}

func decodeAction(kind Kind, payload *wirePayload) (Action, error) {
	if kind == KindUnknown {
		return Unknown{}, nil
	}
	if kind != KindAddProduct && kind != KindAddExpense && kind != KindCreateSale {
		return nil, fmt.Errorf("%w: unrecognized type %q", ErrInvalidAction, kind)
	}
	if payload == nil {
		return nil, fmt.Errorf("%w: %s without payload", ErrInvalidAction, kind)
	}

	switch kind {
	case KindAddProduct:
		name := strings.TrimSpace(payload.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: product name is required", ErrInvalidAction)
		}
		if payload.Price == nil {
			return nil, fmt.Errorf("%w: product price is required", ErrInvalidAction)
		}
		price, err := nonNegativeDecimal("price", *payload.Price)
		if err != nil {
			return nil, err
		}
		action := AddProduct{Name: name, Price: price, Category: strings.TrimSpace(payload.Category)}
		if payload.Cost != nil {
			cost, err := nonNegativeDecimal("cost", *payload.Cost)
			if err != nil {
				return nil, err
			}
			action.Cost = &cost
		}
		if payload.Stock != nil {
			stock, err := integral("stock", *payload.Stock)
			if err != nil {
				return nil, err
			}
			if stock < 0 {
				return nil, fmt.Errorf("%w: stock %d is negative", ErrInvalidAction, stock)
			}
			action.Stock = stock
		}
		return action, nil

	case KindAddExpense:
		description := strings.TrimSpace(payload.Description)
		if description == "" {
			description = strings.TrimSpace(payload.Name)
		}
		if description == "" {
			return nil, fmt.Errorf("%w: expense description is required", ErrInvalidAction)
		}
		if payload.Amount == nil {
			return nil, fmt.Errorf("%w: expense amount is required", ErrInvalidAction)
		}
		amount, err := nonNegativeDecimal("amount", *payload.Amount)
		if err != nil {
			return nil, err
		}
		return AddExpense{Description: description, Amount: amount, Category: strings.TrimSpace(payload.Category)}, nil

	default:
		if len(payload.Items) == 0 {
			return nil, fmt.Errorf("%w: sale without items", ErrInvalidAction)
		}
		lines := make([]SaleLine, 0, len(payload.Items))
		for i, item := range payload.Items {
			name := strings.TrimSpace(item.ProductName)
			if name == "" {
				return nil, fmt.Errorf("%w: item %d has no product name", ErrInvalidAction, i)
			}
			qty := 1
			if item.Quantity != nil {
				n, err := integral("quantity", *item.Quantity)
				if err != nil {
					return nil, err
				}
				if n < 1 {
					return nil, fmt.Errorf("%w: item %d quantity %d must be positive", ErrInvalidAction, i, n)
				}
				qty = n
			}
			lines = append(lines, SaleLine{ProductName: name, Quantity: qty})
		}
		return CreateSale{Items: lines}, nil
	}
}

// maxNumberLength bounds the raw text of a payload number. Parsed values are
// never echoed in errors.
const maxNumberLength = 32

func nonNegativeDecimal(field string, n json.Number) (decimal.Decimal, error) {
	if len(n) > maxNumberLength {
		return decimal.Zero, fmt.Errorf("%w: %s is too long", ErrInvalidAction, field)
	}
	d, err := decimal.NewFromString(string(n))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s is not a number", ErrInvalidAction, field)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: %s is negative", ErrInvalidAction, field)
	}
	if !domain.ValidAmount(d) {
		return decimal.Zero, fmt.Errorf("%w: %s is out of range", ErrInvalidAction, field)
	}
	return d, nil
}

func integral(field string, n json.Number) (int, error) {
	if len(n) > maxNumberLength {
		return 0, fmt.Errorf("%w: %s is too long", ErrInvalidAction, field)
	}
	d, err := decimal.NewFromString(string(n))
	if err != nil {
		return 0, fmt.Errorf("%w: %s is not a number", ErrInvalidAction, field)
	}
	// Bound the exponent before IsInteger or a comparison expands the value.
	if exp := d.Exponent(); exp < -maxNumberLength || exp > 9 {
		return 0, fmt.Errorf("%w: %s is out of range", ErrInvalidAction, field)
	}
	if !d.IsInteger() {
		return 0, fmt.Errorf("%w: %s is not a whole number", ErrInvalidAction, field)
	}
	if d.Abs().GreaterThan(decimal.NewFromInt(domain.MaxQuantity)) {
		return 0, fmt.Errorf("%w: %s is out of range", ErrInvalidAction, field)
	}
	return int(d.IntPart()), nil
}

// MarshalJSON writes the same {message, type, payload} shape Decode reads,
// so a proposed action can travel to a client and back for confirmation.
func (r Result) MarshalJSON() ([]byte, error) {
	action := r.Action
	if action == nil {
		action = Unknown{}
	}
	wire := wireResult{Message: r.Message, Type: string(action.Kind())}

	number := func(d decimal.Decimal) *json.Number {
		n := json.Number(d.String())
		return &n
	}

	switch a := action.(type) {
	case AddProduct:
		p := &wirePayload{Name: a.Name, Price: number(a.Price), Category: a.Category}
		stock := json.Number(fmt.Sprint(a.Stock))
		p.Stock = &stock
		if a.Cost != nil {
			p.Cost = number(*a.Cost)
		}
		wire.Payload = p
	case AddExpense:
		wire.Payload = &wirePayload{Description: a.Description, Amount: number(a.Amount), Category: a.Category}
	case CreateSale:
		p := &wirePayload{Items: make([]wireLine, 0, len(a.Items))}
		for _, line := range a.Items {
			qty := json.Number(fmt.Sprint(line.Quantity))
			p.Items = append(p.Items, wireLine{ProductName: line.ProductName, Quantity: &qty})
		}
		wire.Payload = p
	}
	return json.Marshal(wire)
}

// UnmarshalJSON runs the full Decode validation.
func (r *Result) UnmarshalJSON(raw []byte) error {
	decoded, err := Decode(raw)
	*r = decoded
	return err
}
