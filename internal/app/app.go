// Package app builds the lifelog components from a Config.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/dvloznov/lifelog/internal/config"
	"github.com/dvloznov/lifelog/internal/document"
	"github.com/dvloznov/lifelog/internal/embedding"
	"github.com/dvloznov/lifelog/internal/extract"
	"github.com/dvloznov/lifelog/internal/ingest"
	"github.com/dvloznov/lifelog/internal/llm"
	"github.com/dvloznov/lifelog/internal/metrics"
	"github.com/dvloznov/lifelog/internal/pipeline"
	"github.com/dvloznov/lifelog/internal/storage"
	"github.com/dvloznov/lifelog/internal/store"
	"github.com/dvloznov/lifelog/internal/store/bigquery"
	"github.com/dvloznov/lifelog/internal/store/notion"
	"github.com/dvloznov/lifelog/internal/store/postgres"
	"github.com/dvloznov/lifelog/internal/taxonomy"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"
)

// userAgent identifies lifelog to Google Cloud APIs.
const userAgent = "lifelog"

// App holds the wired components. Close releases them.
type App struct {
	Config    config.Config
	Taxonomy  *taxonomy.Taxonomy
	Processor ingest.Processor
	Analyzer  *document.Analyzer
	// GCS is nil when no bucket is configured.
	GCS      *storage.GCS
	Recorder store.Recorder
	Service  *ingest.Service

	closers []func() error
}

// Build wires every component. m may be nil.
func Build(ctx context.Context, cfg config.Config, m *metrics.Metrics, log zerolog.Logger) (*App, error) {
	a := &App{Config: cfg}

	tax, err := Taxonomy(cfg)
	if err != nil {
		return nil, err
	}
	a.Taxonomy = tax

	text, vision, err := Models(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if m != nil {
		text, vision = m.Model(text), m.Model(vision)
	}

	embedder, err := Embedder(ctx, cfg)
	if err != nil {
		return nil, err
	}

	clock := extract.InLocation(cfg.Location())
	brain, err := pipeline.NewFromModel(text, tax, clock, embedder)
	if err != nil {
		return nil, err
	}
	a.Processor = brain
	if m != nil {
		a.Processor = m.Processor(brain)
	}
	a.Analyzer = document.NewAnalyzer(text, vision, tax, clock)

	recorder, err := Recorder(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, recorder.Close)
	if m != nil {
		recorder = m.Recorder(recorder)
	}
	a.Recorder = recorder

	var fetcher pipeline.DocumentFetcher
	if cfg.GCSBucket != "" {
		gcs, err := storage.NewGCS(ctx, option.WithUserAgent(userAgent))
		if err != nil {
			a.Close()
			return nil, err
		}
		a.GCS = gcs
		a.closers = append(a.closers, gcs.Close)
		fetcher = gcs
	} else {
		log.Warn().Msg("No GCS bucket configured - uploads will not be archived")
	}

	a.Service = ingest.NewService(a.Processor, a.Analyzer, fetcher, a.Recorder)
	return a, nil
}

// Close releases the store and GCS clients.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}

// Taxonomy resolves the configured taxonomy and home currency.
func Taxonomy(cfg config.Config) (*taxonomy.Taxonomy, error) {
	tax, err := taxonomy.Resolve(cfg.Taxonomy)
	if err != nil {
		return nil, fmt.Errorf("taxonomy: %w", err)
	}
	if cfg.HomeCurrency != "" {
		tax = tax.WithHomeCurrency(cfg.HomeCurrency)
	}
	return tax, nil
}

// Models returns the text and vision models of the configured provider.
// Both share one rate limiter when LLMRPS is positive.
func Models(ctx context.Context, cfg config.Config) (text, vision llm.Model, err error) {
	switch cfg.LLMProvider {
	case config.ProviderGemini:
		textName := or(cfg.LLMModel, llm.DefaultGeminiModel)
		if text, err = llm.NewGemini(ctx, cfg.GoogleKey, textName); err != nil {
			return nil, nil, err
		}
		if vision, err = llm.NewGemini(ctx, cfg.GoogleKey, or(cfg.VisionModel, textName)); err != nil {
			return nil, nil, err
		}
	case config.ProviderOpenAI:
		if text, err = llm.NewOpenAI(cfg.OpenAIKey, or(cfg.LLMModel, llm.DefaultOpenAIModel), cfg.OpenAIBaseURL); err != nil {
			return nil, nil, err
		}
		if vision, err = llm.NewOpenAI(cfg.OpenAIKey, or(cfg.VisionModel, llm.DefaultVisionModel), cfg.OpenAIBaseURL); err != nil {
			return nil, nil, err
		}
	default:
		return nil, nil, fmt.Errorf("unknown LLM provider %q", cfg.LLMProvider)
	}

	if cfg.LLMRPS > 0 {
		limiter := rate.NewLimiter(rate.Limit(cfg.LLMRPS), 1)
		text, vision = llm.WithRateLimit(text, limiter), llm.WithRateLimit(vision, limiter)
	}
	return text, vision, nil
}

// Embedder returns the configured embedding backend.
func Embedder(ctx context.Context, cfg config.Config) (embedding.Embedder, error) {
	switch cfg.EmbedProvider {
	case config.ProviderOpenAI:
		return embedding.NewOpenAI(embedding.Config{
			Model:     cfg.EmbedModel,
			APIKey:    cfg.OpenAIKey,
			BaseURL:   cfg.OpenAIBaseURL,
			Dimension: cfg.EmbedDim,
		})
	case config.ProviderGemini:
		return embedding.NewGemini(ctx, embedding.Config{
			Model:     cfg.EmbedModel,
			APIKey:    cfg.GoogleKey,
			Dimension: cfg.EmbedDim,
		})
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.EmbedProvider)
	}
}

// Recorder opens every configured store. Several stores are written in
// order through store.Multi; none falls back to the log recorder.
func Recorder(ctx context.Context, cfg config.Config, log zerolog.Logger) (store.Recorder, error) {
	var recorders []store.Recorder
	closeAll := func() {
		for _, r := range recorders {
			_ = r.Close()
		}
	}

	for _, name := range cfg.Stores {
		var (
			r   store.Recorder
			err error
		)
		switch name {
		case config.StoreNone:
			continue
		case config.StorePostgres:
			r, err = postgres.Open(ctx, cfg.DatabaseURL)
		case config.StoreBigQuery:
			r, err = bigquery.New(ctx, cfg.BQProject, cfg.BQDataset, option.WithUserAgent(userAgent))
		case config.StoreNotion:
			r = notion.New(notion.NewClient(cfg.NotionToken), cfg.NotionFinanceDB, cfg.NotionJournalDB)
		default:
			err = fmt.Errorf("unknown store %q", name)
		}
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("store %s: %w", name, err)
		}
		log.Info().Str("store", name).Msg("Store opened")
		recorders = append(recorders, r)
	}

	switch len(recorders) {
	case 0:
		log.Warn().Msg("No store configured - records are only logged")
		return store.Log{}, nil
	case 1:
		return recorders[0], nil
	default:
		return store.NewMulti(recorders...), nil
	}
}

func or(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}
