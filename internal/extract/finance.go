// Package extract turns routed text into validated domain records: finance
// batches, health entries and journal entries.
package extract

import (
	"context"
	"errors"
	"strings"

	"github.com/dvloznov/lifelog/internal/llm"
	"github.com/dvloznov/lifelog/internal/logger"
	"github.com/dvloznov/lifelog/internal/schema"
	"github.com/dvloznov/lifelog/internal/taxonomy"
	"google.golang.org/genai"
)

var errMissingTransactions = errors.New("response has no transactions list")

// Finance extracts every transaction mentioned in a text.
type Finance struct {
	model    llm.Model
	resolver Resolver
}

// NewFinance binds a finance extractor to a model, the active taxonomy and
// the clock used for relative dates.
func NewFinance(model llm.Model, tax *taxonomy.Taxonomy, clock Clock) *Finance {
	return &Finance{
		model:    model,
		resolver: Resolver{Taxonomy: tax, Clock: clock},
	}
}

// Taxonomy returns the bound taxonomy.
func (f *Finance) Taxonomy() *taxonomy.Taxonomy {
	return f.resolver.Taxonomy
}

// transactionsOutput is the envelope both the finance extractor and the
// document analyzer ask the model for.
type transactionsOutput struct {
	Transactions *[]RawTransaction `json:"transactions"`
}

// Extract returns the batch of transactions found in text, in source order.
// A text without transactions yields an empty batch. Any invalid transaction
// fails the call with a *schema.ExtractionError.
func (f *Finance) Extract(ctx context.Context, text string) (schema.FinanceBatch, error) {
	log := logger.FromContext(ctx)
	if strings.TrimSpace(text) == "" {
		return schema.FinanceBatch{}, nil
	}

	var out transactionsOutput
	err := llm.GenerateJSON(ctx, f.model, llm.Request{
		Name:   string(schema.StageFinance),
		System: f.systemPrompt(),
		Input:  text,
		Schema: TransactionsSchema(f.resolver.Taxonomy),
	}, &out)
	if err != nil {
		return schema.FinanceBatch{}, extractionError(schema.StageFinance, text, err)
	}
	if out.Transactions == nil {
		return schema.FinanceBatch{}, extractionError(schema.StageFinance, text, errMissingTransactions)
	}

	batch, err := f.resolver.ResolveBatch(*out.Transactions, text)
	if err != nil {
		return schema.FinanceBatch{}, extractionError(schema.StageFinance, text, err)
	}

	log.Debug().
		Str("stage", string(schema.StageFinance)).
		Int("transactions", len(batch.Transactions)).
		Str("excerpt", schema.Excerpt(text)).
		Msg("Transactions extracted")

	return batch, nil
}

func (f *Finance) systemPrompt() string {
	tax := f.resolver.Taxonomy
	today := f.resolver.Today().Format(schema.DateLayout)

	var b strings.Builder
	b.WriteString("You are an expert personal accountant. Extract ALL financial transactions from the text.\n\n")
	b.WriteString("RULES:\n")
	b.WriteString("1. Multiple expenses: the user may list several expenses in one sentence. Extract each as a separate entry, in the order they appear.\n")
	b.WriteString("2. Date: today is " + today + ". Resolve relative dates (\"hoy\", \"ayer\") against it. Use null when no date is mentioned.\n")
	b.WriteString("3. Currency: use \"" + tax.HomeCurrency + "\" unless another currency is explicitly stated (e.g. USD).\n")
	b.WriteString("4. Amount: a positive number.\n")
	b.WriteString("5. Merchant: if the merchant is named (e.g. \"Coto\", \"Shell\"), use it. If NOT named, infer a generic entity from context:\n")
	b.WriteString("   \"luz\" -> \"Servicios Eléctricos\", \"gas\" -> \"Distribuidora de Gas\", \"nafta\" -> \"Estación de Servicio\", \"alfajor\" -> \"Kiosco\".\n")
	b.WriteString("   NEVER use \"Desconocido\" or \"unknown\", and never concatenate words.\n")
	b.WriteString("6. Installments: when the text mentions installments (\"en 6 cuotas\", \"cuota 2 de 12\"), fill installments {current, total}; otherwise null.\n")
	b.WriteString("7. is_client_expense: true only when the expense is paid on behalf of a client or third party.\n")
	b.WriteString("8. If there is no transaction in the text, return an empty transactions list.\n\n")
	b.WriteString(tax.Prompt())
	return b.String()
}

// TransactionsSchema is the response schema for a list of transactions
// labelled with tax.
func TransactionsSchema(tax *taxonomy.Taxonomy) *genai.Schema {
	props := map[string]*genai.Schema{
		"amount":            {Type: genai.TypeNumber},
		"currency":          {Type: genai.TypeString, Nullable: genai.Ptr(true)},
		"category":          {Type: genai.TypeString, Enum: tax.CategoryNames()},
		"subcategory":       {Type: genai.TypeString, Nullable: genai.Ptr(true)},
		"merchant":          {Type: genai.TypeString, Nullable: genai.Ptr(true)},
		"item":              {Type: genai.TypeString, Nullable: genai.Ptr(true)},
		"date":              {Type: genai.TypeString, Nullable: genai.Ptr(true), Description: "YYYY-MM-DD"},
		"is_client_expense": {Type: genai.TypeBoolean},
		"is_fixed":          {Type: genai.TypeBoolean, Nullable: genai.Ptr(true)},
		"installments": {
			Type:     genai.TypeObject,
			Nullable: genai.Ptr(true),
			Properties: map[string]*genai.Schema{
				"current": {Type: genai.TypeInteger},
				"total":   {Type: genai.TypeInteger},
			},
			Required: []string{"current", "total"},
		},
	}
	required := []string{"amount", "category", "merchant", "is_client_expense"}
	if tax.Extended() {
		props["payment_method"] = &genai.Schema{Type: genai.TypeString, Enum: tax.PaymentMethods}
		required = append(required, "payment_method")
	}

	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"transactions": {
				Type:  genai.TypeArray,
				Items: &genai.Schema{Type: genai.TypeObject, Properties: props, Required: required},
			},
		},
		Required: []string{"transactions"},
	}
}

func extractionError(stage schema.Stage, text string, err error) error {
	return &schema.ExtractionError{Stage: stage, Excerpt: schema.Excerpt(text), Err: err}
}
