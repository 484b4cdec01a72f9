package pipeline

import (
	"context"

	"github.com/dvloznov/lifelog/internal/document"
	"github.com/dvloznov/lifelog/internal/embedding"
	"github.com/dvloznov/lifelog/internal/schema"
	"github.com/dvloznov/lifelog/internal/store"
)

// Classifier routes a text to one category.
type Classifier interface {
	Classify(ctx context.Context, text string) (schema.RoutingDecision, error)
}

// FinanceExtractor returns every transaction mentioned in a text.
type FinanceExtractor interface {
	Extract(ctx context.Context, text string) (schema.FinanceBatch, error)
}

// HealthExtractor returns the health activity described by a text.
type HealthExtractor interface {
	Extract(ctx context.Context, text string) (schema.HealthEntry, error)
}

// JournalExtractor returns the mood log described by a text.
type JournalExtractor interface {
	Extract(ctx context.Context, text string) (schema.JournalEntry, error)
}

// Embedder is the embedding backend used for journal entries.
type Embedder = embedding.Embedder

// DocumentAnalyzer extracts transactions from an uploaded document.
type DocumentAnalyzer interface {
	Analyze(ctx context.Context, d document.Document) (schema.FinanceBatch, error)
}

// DocumentFetcher downloads a stored document, e.g. from a gs:// URI.
type DocumentFetcher interface {
	Fetch(ctx context.Context, uri string) (document.Document, error)
}

// TransactionSink persists one finance entry of a batch.
type TransactionSink interface {
	RecordTransaction(ctx context.Context, entry schema.FinanceEntry, ref store.Ref) error
}
