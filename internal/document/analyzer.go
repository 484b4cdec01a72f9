package document

import (
	"context"
	"errors"
	"strings"

	"github.com/dvloznov/lifelog/internal/extract"
	"github.com/dvloznov/lifelog/internal/llm"
	"github.com/dvloznov/lifelog/internal/logger"
	"github.com/dvloznov/lifelog/internal/schema"
	"github.com/dvloznov/lifelog/internal/taxonomy"
)

// stageName labels document model calls in logs and metrics.
const stageName = "document"

var errMissingTransactions = errors.New("response has no transactions list")

// Analyzer extracts the transactions listed in a statement, ticket or invoice.
type Analyzer struct {
	text     llm.Model
	vision   llm.Model
	resolver extract.Resolver
}

// NewAnalyzer binds an analyzer to a text model, a vision-capable model for
// images, the active taxonomy and the clock used for relative dates. A nil
// vision model falls back to the text model.
func NewAnalyzer(text, vision llm.Model, tax *taxonomy.Taxonomy, clock extract.Clock) *Analyzer {
	if vision == nil {
		vision = text
	}
	return &Analyzer{
		text:     text,
		vision:   vision,
		resolver: extract.Resolver{Taxonomy: tax, Clock: clock},
	}
}

// Analyze reads d and returns its transactions. PDFs go through text
// extraction first; images are sent whole to the vision model.
func (a *Analyzer) Analyze(ctx context.Context, d Document) (schema.FinanceBatch, error) {
	kind, mt, err := DetectKind(d)
	if err != nil {
		return schema.FinanceBatch{}, err
	}

	switch kind {
	case KindImage:
		return a.AnalyzeImage(ctx, llm.Media{MIMEType: mt, Data: d.Data}, d.Source())
	case KindPDF:
		var text string
		err := WithTempFile(d.Name, d.Data, func(path string) error {
			var readErr error
			text, readErr = ReadPDFFile(path)
			return readErr
		})
		if err != nil {
			var readErr *schema.DocumentReadError
			if errors.As(err, &readErr) {
				readErr.Source = d.Name
			}
			return schema.FinanceBatch{}, err
		}
		return a.AnalyzeText(ctx, text, d.Source())
	default:
		return schema.FinanceBatch{}, &schema.DocumentReadError{Source: d.Name, Err: schema.ErrUnsupportedMedia}
	}
}

// AnalyzeText extracts the transactions from a document's plain text.
// Blank text is a *schema.DocumentReadError, never an empty batch.
func (a *Analyzer) AnalyzeText(ctx context.Context, text, source string) (schema.FinanceBatch, error) {
	if strings.TrimSpace(text) == "" {
		return schema.FinanceBatch{}, &schema.DocumentReadError{Source: source, Err: schema.ErrNoText}
	}
	return a.run(ctx, a.text, llm.Request{
		Name:   stageName,
		System: a.systemPrompt(),
		Input:  text,
		Schema: extract.TransactionsSchema(a.resolver.Taxonomy),
	}, text, source)
}

// AnalyzeImage extracts the transactions shown in an image.
func (a *Analyzer) AnalyzeImage(ctx context.Context, img llm.Media, source string) (schema.FinanceBatch, error) {
	if len(img.Data) == 0 {
		return schema.FinanceBatch{}, &schema.DocumentReadError{Source: source, Err: schema.ErrNoText}
	}
	return a.run(ctx, a.vision, llm.Request{
		Name:   stageName,
		System: a.systemPrompt(),
		Input:  "Extract the transactions shown in the attached image.",
		Media:  &img,
		Schema: extract.TransactionsSchema(a.resolver.Taxonomy),
	}, "", source)
}

type documentOutput struct {
	Transactions *[]extract.RawTransaction `json:"transactions"`
}

func (a *Analyzer) run(ctx context.Context, model llm.Model, req llm.Request, text, source string) (schema.FinanceBatch, error) {
	log := logger.FromContext(ctx)
	excerpt := source
	if text != "" {
		excerpt = schema.Excerpt(text)
	}
	fail := func(err error) (schema.FinanceBatch, error) {
		return schema.FinanceBatch{}, &schema.ExtractionError{Stage: schema.StageDocument, Excerpt: excerpt, Err: err}
	}

	var out documentOutput
	if err := llm.GenerateJSON(ctx, model, req, &out); err != nil {
		return fail(err)
	}
	if out.Transactions == nil {
		return fail(errMissingTransactions)
	}

	// Statement lines name their own merchants; the document body is not
	// used as keyword context.
	batch, err := a.resolver.ResolveBatch(*out.Transactions, "")
	if err != nil {
		return fail(err)
	}

	log.Info().
		Str("stage", string(schema.StageDocument)).
		Str("source", source).
		Int("transactions", len(batch.Transactions)).
		Msg("Document analyzed")

	return batch, nil
}

func (a *Analyzer) systemPrompt() string {
	tax := a.resolver.Taxonomy
	today := a.resolver.Today().Format(schema.DateLayout)

	var b strings.Builder
	b.WriteString("You are an expert accountant. Analyze this document (account statement, ticket or invoice).\n")
	b.WriteString("Extract ONE list of financial transactions.\n\n")
	b.WriteString("RULES:\n")
	b.WriteString("1. Ignore payments of the card itself, previous balances and financing interest unless they are genuine new purchases.\n")
	b.WriteString("2. For each transaction extract: date (YYYY-MM-DD), item/description, amount, currency and category.\n")
	b.WriteString("3. Use the merchant printed on the line. Never use \"Desconocido\" or \"unknown\".\n")
	b.WriteString("4. If the currency is not explicit, use \"" + tax.HomeCurrency + "\".\n")
	b.WriteString("5. Today is " + today + "; a line without a date belongs to today.\n")
	b.WriteString("6. Installment lines (\"cuota 2/6\") fill installments {current, total}.\n")
	b.WriteString("7. If the document lists no purchases, return an empty transactions list.\n\n")
	b.WriteString(tax.Prompt())
	return b.String()
}
