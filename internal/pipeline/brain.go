// Package pipeline routes a text to its life domain and runs the matching
// extractor, and chains the steps of document ingestion.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dvloznov/lifelog/internal/extract"
	"github.com/dvloznov/lifelog/internal/llm"
	"github.com/dvloznov/lifelog/internal/logger"
	"github.com/dvloznov/lifelog/internal/router"
	"github.com/dvloznov/lifelog/internal/schema"
	"github.com/dvloznov/lifelog/internal/taxonomy"
)

// Result is the outcome of ProcessInput.
type Result struct {
	Category   schema.Category `json:"category"`
	Confidence float64         `json:"confidence"`
	Data       schema.Record   `json:"data"`
}

// Brain binds one classifier and one extractor per category. It keeps no
// per-call state and is safe for concurrent use.
type Brain struct {
	router   Classifier
	finance  FinanceExtractor
	health   HealthExtractor
	journal  JournalExtractor
	embedder Embedder
}

// Options wires a Brain from its parts.
type Options struct {
	Router   Classifier
	Finance  FinanceExtractor
	Health   HealthExtractor
	Journal  JournalExtractor
	Embedder Embedder
}

// New validates opts and returns a Brain.
func New(opts Options) (*Brain, error) {
	var missing []string
	if opts.Router == nil {
		missing = append(missing, "router")
	}
	if opts.Finance == nil {
		missing = append(missing, "finance")
	}
	if opts.Health == nil {
		missing = append(missing, "health")
	}
	if opts.Journal == nil {
		missing = append(missing, "journal")
	}
	if opts.Embedder == nil {
		missing = append(missing, "embedder")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("pipeline.New: missing %s", strings.Join(missing, ", "))
	}
	return &Brain{
		router:   opts.Router,
		finance:  opts.Finance,
		health:   opts.Health,
		journal:  opts.Journal,
		embedder: opts.Embedder,
	}, nil
}

// NewFromModel builds the standard Brain: every stage on model, finance
// bound to tax and clock.
func NewFromModel(model llm.Model, tax *taxonomy.Taxonomy, clock extract.Clock, embedder Embedder) (*Brain, error) {
	return New(Options{
		Router:   router.New(model),
		Finance:  extract.NewFinance(model, tax, clock),
		Health:   extract.NewHealth(model),
		Journal:  extract.NewJournal(model),
		Embedder: embedder,
	})
}

// ProcessInput classifies text and extracts the record of its category.
// Other never reaches an extractor and carries a schema.Fallback.
func (b *Brain) ProcessInput(ctx context.Context, text string) (Result, error) {
	log := logger.FromContext(ctx)

	decision, err := b.router.Classify(ctx, text)
	if err != nil {
		log.Error().Err(err).Str("stage", string(schema.StageRouting)).Str("excerpt", schema.Excerpt(text)).Msg("Routing failed")
		return Result{}, err
	}

	result := Result{Category: decision.Category, Confidence: decision.Confidence}

	switch decision.Category {
	case schema.Finance:
		result.Data, err = b.finance.Extract(ctx, text)
	case schema.Health:
		result.Data, err = b.health.Extract(ctx, text)
	case schema.Journal:
		result.Data, err = b.extractJournal(ctx, text)
	case schema.Other:
		result.Data = schema.Fallback{RawText: text, Message: schema.FallbackMessage}
	default:
		err = &schema.ClassificationError{
			Excerpt: schema.Excerpt(text),
			Err:     fmt.Errorf("unhandled category %v", decision.Category),
		}
	}
	if err != nil {
		log.Error().Err(err).
			Str("category", decision.Category.String()).
			Str("excerpt", schema.Excerpt(text)).
			Msg("Extraction failed")
		return Result{}, err
	}

	log.Info().
		Str("category", decision.Category.String()).
		Float64("confidence", decision.Confidence).
		Msg("Input processed")

	return result, nil
}

// extractJournal embeds the raw text, not the refined summary.
func (b *Brain) extractJournal(ctx context.Context, text string) (schema.JournalEntry, error) {
	entry, err := b.journal.Extract(ctx, text)
	if err != nil {
		return schema.JournalEntry{}, err
	}

	vec, err := b.embedder.Embed(ctx, text)
	if err != nil {
		return schema.JournalEntry{}, embeddingError(text, err)
	}
	entry.Embedding = vec
	if err := entry.ValidateEmbedding(b.embedder.Dimension()); err != nil {
		return schema.JournalEntry{}, embeddingError(text, err)
	}
	return entry, nil
}

func embeddingError(text string, err error) error {
	var extErr *schema.ExtractionError
	if errors.As(err, &extErr) {
		return err
	}
	return &schema.ExtractionError{Stage: schema.StageEmbedding, Excerpt: schema.Excerpt(text), Err: err}
}
