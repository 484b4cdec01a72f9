package pipeline

import (
	"context"
	"fmt"

	"github.com/dvloznov/lifelog/internal/document"
	"github.com/dvloznov/lifelog/internal/logger"
	"github.com/dvloznov/lifelog/internal/schema"
	"github.com/dvloznov/lifelog/internal/store"
	"github.com/shopspring/decimal"
)

// PipelineStep represents a single step in document ingestion.
type PipelineStep interface {
	Execute(ctx context.Context, state *PipelineState) error
}

// PipelineState holds the shared state across all pipeline steps.
type PipelineState struct {
	GCSURI   string
	UserID   string
	Document document.Document
	Batch    schema.FinanceBatch
	Saved    int
	// Total sums the amounts of the saved entries.
	Total decimal.Decimal
	// Failed counts entries the sink rejected; they do not stop the run.
	Failed int
}

// Source is the provenance label of the state's document.
func (s *PipelineState) Source() string {
	return s.Document.Source()
}

// FetchDocumentStep downloads the document when only a URI is known.
type FetchDocumentStep struct {
	Fetcher DocumentFetcher
}

func (s *FetchDocumentStep) Execute(ctx context.Context, state *PipelineState) error {
	if len(state.Document.Data) > 0 || state.GCSURI == "" {
		return nil
	}
	if s.Fetcher == nil {
		return fmt.Errorf("FetchDocumentStep: no fetcher for %s", state.GCSURI)
	}
	doc, err := s.Fetcher.Fetch(ctx, state.GCSURI)
	if err != nil {
		return err
	}
	state.Document = doc
	return nil
}

// AnalyzeDocumentStep extracts the transactions of the document.
type AnalyzeDocumentStep struct {
	Analyzer DocumentAnalyzer
}

func (s *AnalyzeDocumentStep) Execute(ctx context.Context, state *PipelineState) error {
	batch, err := s.Analyzer.Analyze(ctx, state.Document)
	if err != nil {
		return err
	}
	state.Batch = batch
	return nil
}

// PersistTransactionsStep records each entry independently. A failed insert
// is logged and counted; the remaining entries are still recorded.
type PersistTransactionsStep struct {
	Sink TransactionSink
}

func (s *PersistTransactionsStep) Execute(ctx context.Context, state *PipelineState) error {
	log := logger.FromContext(ctx)
	docID := store.DocumentID(state.Document.Data)
	for i, tx := range state.Batch.Transactions {
		ref := store.Ref{Source: state.Source(), MessageID: docID, Index: i, UserID: state.UserID}
		if err := s.Sink.RecordTransaction(ctx, tx, ref); err != nil {
			state.Failed++
			log.Error().Err(err).
				Str("source", state.Source()).
				Int("index", i).
				Msg("Failed to record transaction")
			continue
		}
		state.Saved++
		state.Total = state.Total.Add(tx.Amount)
	}
	if state.Saved == 0 && state.Failed > 0 {
		return fmt.Errorf("PersistTransactionsStep: all %d transactions failed", state.Failed)
	}
	return nil
}

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps []PipelineStep
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(steps ...PipelineStep) *Pipeline {
	return &Pipeline{steps: steps}
}

// Execute runs all steps in the pipeline sequentially.
func (p *Pipeline) Execute(ctx context.Context, state *PipelineState) error {
	for i, step := range p.steps {
		if err := step.Execute(ctx, state); err != nil {
			return fmt.Errorf("pipeline step %d failed: %w", i+1, err)
		}
	}
	return nil
}

// NewDocumentIngestionPipeline fetches, analyzes and persists one document.
func NewDocumentIngestionPipeline(fetcher DocumentFetcher, analyzer DocumentAnalyzer, sink TransactionSink) *Pipeline {
	return NewPipeline(
		&FetchDocumentStep{Fetcher: fetcher},
		&AnalyzeDocumentStep{Analyzer: analyzer},
		&PersistTransactionsStep{Sink: sink},
	)
}
