package interpreter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"smartseller/backend/internal/domain"
)

const (
	DefaultModel   = "gemini-2.5-flash"
	DefaultTimeout = 30 * time.Second
)

// completer is the one model call Gemini needs.
type completer interface {
	complete(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (string, error)
}

type modelCompleter struct {
	models *genai.Models
	model  string
}

func (m modelCompleter) complete(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (string, error) {
	resp, err := m.models.GenerateContent(ctx, m.model, contents, config)
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}

type Gemini struct {
	llm     completer
	timeout time.Duration
	now     func() time.Time
}

func NewGemini(ctx context.Context, apiKey string, model string, timeout time.Duration) (*Gemini, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errNotConfigured
	}
	if model == "" {
		model = DefaultModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return newGemini(modelCompleter{models: client.Models, model: model}, timeout), nil
}

func newGemini(llm completer, timeout time.Duration) *Gemini {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Gemini{llm: llm, timeout: timeout, now: time.Now}
}

func (g *Gemini) Interpret(ctx context.Context, command string, snapshot Snapshot) (Result, error) {
	command = strings.TrimSpace(command)
	if command == "" {
		return Result{Action: Unknown{}}, fmt.Errorf("%w: empty command", ErrInvalidAction)
	}

	names := make([]string, 0, len(snapshot.Products))
	for _, p := range snapshot.Products {
		names = append(names, fmt.Sprintf("%s (price: %s, stock: %d)", p.Name, p.Price, p.Stock))
	}
	customers := make([]string, 0, len(snapshot.Customers))
	for _, c := range snapshot.Customers {
		customers = append(customers, c.Name)
	}
	instruction := fmt.Sprintf(commandInstruction, strings.Join(names, ", "), strings.Join(customers, ", "))

	raw, err := g.generate(ctx, "interpret", genai.Text(command), instruction, actionSchema())
	if err != nil {
		return Result{Action: Unknown{}}, err
	}
	return Decode([]byte(raw))
}

func (g *Gemini) IdentifyImage(ctx context.Context, image []byte, mimeType string, productNames []string) (Result, error) {
	if len(image) == 0 {
		return Result{Action: Unknown{}}, fmt.Errorf("%w: empty image", ErrInvalidAction)
	}
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(image, mimeType),
			genai.NewPartFromText("Identify this product and suggest the matching action."),
		}, genai.RoleUser),
	}
	instruction := fmt.Sprintf(visionInstruction, strings.Join(productNames, ", "))

	raw, err := g.generate(ctx, "identify_image", contents, instruction, actionSchema())
	if err != nil {
		return Result{Action: Unknown{}}, err
	}
	return RestrictToVision(Decode([]byte(raw)))
}

// RestrictToVision downgrades anything other than CREATE_SALE or
// ADD_PRODUCT to Unknown.
func RestrictToVision(result Result, err error) (Result, error) {
	if err != nil {
		return result, err
	}
	switch result.Action.Kind() {
	case KindCreateSale, KindAddProduct, KindUnknown:
		return result, nil
	}
	kind := result.Action.Kind()
	result.Action = Unknown{}
	return result, fmt.Errorf("%w: %s is not allowed for photographs", ErrInvalidAction, kind)
}

type wireMarketReport struct {
	Insights []struct {
		ProductName         string `json:"productName"`
		MarketTrend         string `json:"marketTrend"`
		SuggestedPriceRange string `json:"suggestedPriceRange"`
		CompetitorStrategy  string `json:"competitorStrategy"`
		Advice              string `json:"advice"`
	} `json:"insights"`
	GeneralReport string `json:"generalReport"`
}

func (g *Gemini) AnalyzeMarket(ctx context.Context, products []domain.Product) (*domain.MarketReport, error) {
	lines := make([]string, 0, len(products))
	for _, p := range products {
		lines = append(lines, fmt.Sprintf("%s (category: %s, price: %s, cost: %s, stock: %d)", p.Name, p.Category, p.Price, p.Cost, p.Stock))
	}
	prompt := "Analyse this inventory: " + strings.Join(lines, ", ")

	raw, err := g.generate(ctx, "analyze_market", genai.Text(prompt), marketInstruction, marketSchema())
	if err != nil {
		return nil, err
	}

	var wire wireMarketReport
	if err := json.Unmarshal([]byte(raw), &wire); err != nil {
		return nil, fmt.Errorf("%w: decode market report: %v", ErrAIRequest, err)
	}
	if strings.TrimSpace(wire.GeneralReport) == "" && len(wire.Insights) == 0 {
		return nil, fmt.Errorf("%w: empty market report", ErrAIRequest)
	}

	report := &domain.MarketReport{
		Insights:      make([]domain.MarketInsight, 0, len(wire.Insights)),
		GeneralReport: strings.TrimSpace(wire.GeneralReport),
		GeneratedAt:   g.now().UTC(),
	}
	for _, in := range wire.Insights {
		report.Insights = append(report.Insights, domain.MarketInsight{
			ProductName:         in.ProductName,
			MarketTrend:         in.MarketTrend,
			SuggestedPriceRange: in.SuggestedPriceRange,
			CompetitorStrategy:  in.CompetitorStrategy,
			Advice:              in.Advice,
		})
	}
	return report, nil
}

func (g *Gemini) generate(ctx context.Context, op string, contents []*genai.Content, instruction string, schema *genai.Schema) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	raw, err := g.llm.complete(ctx, contents, &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(instruction, genai.RoleUser),
		ResponseMIMEType:  "application/json",
		ResponseSchema:    schema,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrAIRequest, op, err)
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%w: %s: empty response", ErrAIRequest, op)
	}
	return raw, nil
}

const commandInstruction = `You are the assistant of a small shop owner. Turn the owner's command, in any
language or dialect, into exactly one bookkeeping action.
Supported types:
- ADD_PRODUCT: add a new product (name, price, optional cost, stock, category)
- ADD_EXPENSE: record an expense (description, amount, category)
- CREATE_SALE: create a sale (items with productName and quantity)
- UNKNOWN: anything else
Current products: [%s]
Known customers: [%s]
Reply with JSON only. "message" tells the owner what will happen once confirmed.`

const visionInstruction = `You recognise retail products in photographs. Identify the product in the image
and compare it with the shop's catalog: [%s].
If the product is already in the catalog suggest CREATE_SALE with that exact product name.
If it is new suggest ADD_PRODUCT with a name and an estimated price.
Reply with JSON only.`

const marketInstruction = `You are a retail market analyst. Review the shop's inventory and return:
1. how each price compares with the typical market price,
2. which products to stock up on or clear out,
3. expected seasonal demand,
4. a pricing strategy to stay competitive.
Reply with JSON containing "insights" (one per product) and "generalReport".`

func actionSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"message": {Type: genai.TypeString, Description: "what will happen once the owner confirms"},
			"type": {
				Type: genai.TypeString,
				Enum: []string{string(KindAddProduct), string(KindAddExpense), string(KindCreateSale), string(KindUnknown)},
			},
			"payload": {
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"name":        {Type: genai.TypeString},
					"price":       {Type: genai.TypeNumber},
					"cost":        {Type: genai.TypeNumber},
					"stock":       {Type: genai.TypeInteger},
					"description": {Type: genai.TypeString},
					"amount":      {Type: genai.TypeNumber},
					"category":    {Type: genai.TypeString},
					"items": {
						Type: genai.TypeArray,
						Items: &genai.Schema{
							Type: genai.TypeObject,
							Properties: map[string]*genai.Schema{
								"productName": {Type: genai.TypeString},
								"quantity":    {Type: genai.TypeInteger},
							},
							Required: []string{"productName"},
						},
					},
				},
			},
		},
		Required: []string{"message", "type"},
	}
}

func marketSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"insights": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"productName":         {Type: genai.TypeString},
						"marketTrend":         {Type: genai.TypeString},
						"suggestedPriceRange": {Type: genai.TypeString},
						"competitorStrategy":  {Type: genai.TypeString},
						"advice":              {Type: genai.TypeString},
					},
				},
			},
			"generalReport": {Type: genai.TypeString},
		},
		Required: []string{"insights", "generalReport"},
	}
}
