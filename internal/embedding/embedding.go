// Package embedding turns journal text into fixed-length vectors.
package embedding

import (
	"context"
	"errors"
	"fmt"

	"github.com/dvloznov/lifelog/internal/schema"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
	"google.golang.org/genai"
)

// Defaults for the OpenAI backend.
const (
	DefaultOpenAIModel = "text-embedding-3-small"
	DefaultDimension   = 1536
	DefaultGeminiModel = "gemini-embedding-001"
)

// ErrInvalidConfig indicates an unusable embedder configuration.
var ErrInvalidConfig = errors.New("invalid embedding configuration")

// Embedder produces vectors of a fixed dimension for one deployment.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}

// Config selects the backend model and vector size.
type Config struct {
	Model     string
	APIKey    string
	BaseURL   string
	Dimension int
}

func (c Config) withDefaults(model string) Config {
	if c.Model == "" {
		c.Model = model
	}
	if c.Dimension == 0 {
		c.Dimension = DefaultDimension
	}
	return c
}

// OpenAI embeds through langchaingo's OpenAI client.
type OpenAI struct {
	embedder embeddings.Embedder
	dim      int
}

// NewOpenAI creates an OpenAI embedder.
func NewOpenAI(cfg Config) (*OpenAI, error) {
	cfg = cfg.withDefaults(DefaultOpenAIModel)
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: OpenAI API key required", ErrInvalidConfig)
	}

	opts := []openai.Option{
		openai.WithEmbeddingModel(cfg.Model),
		openai.WithToken(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	client, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("NewOpenAI: creating OpenAI client: %w", err)
	}
	return NewOpenAIWithClient(client, cfg.Dimension)
}

// NewOpenAIWithClient builds the embedder on any langchaingo embedding client.
func NewOpenAIWithClient(client embeddings.EmbedderClient, dim int) (*OpenAI, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("%w: dimension %d", ErrInvalidConfig, dim)
	}
	embedder, err := embeddings.NewEmbedder(client)
	if err != nil {
		return nil, fmt.Errorf("NewOpenAIWithClient: creating embedder: %w", err)
	}
	return &OpenAI{embedder: embedder, dim: dim}, nil
}

// Embed implements Embedder.
func (o *OpenAI) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := o.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("OpenAI.Embed: %w", err)
	}
	return checkDimension(vec, o.dim)
}

// Dimension implements Embedder.
func (o *OpenAI) Dimension() int { return o.dim }

// Gemini embeds through the genai Models service.
type Gemini struct {
	client *genai.Client
	model  string
	dim    int
}

// NewGemini creates a Gemini embedder.
func NewGemini(ctx context.Context, cfg Config) (*Gemini, error) {
	cfg = cfg.withDefaults(DefaultGeminiModel)
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("NewGemini: create genai client: %w", err)
	}
	return &Gemini{client: client, model: cfg.Model, dim: cfg.Dimension}, nil
}

// Embed implements Embedder.
func (g *Gemini) Embed(ctx context.Context, text string) ([]float32, error) {
	dim := int32(g.dim)
	resp, err := g.client.Models.EmbedContent(ctx, g.model, genai.Text(text), &genai.EmbedContentConfig{
		OutputDimensionality: &dim,
	})
	if err != nil {
		return nil, fmt.Errorf("Gemini.Embed: embed content: %w", err)
	}
	if len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil {
		return nil, fmt.Errorf("Gemini.Embed: no embedding returned")
	}
	return checkDimension(resp.Embeddings[0].Values, g.dim)
}

// Dimension implements Embedder.
func (g *Gemini) Dimension() int { return g.dim }

func checkDimension(vec []float32, dim int) ([]float32, error) {
	if len(vec) != dim {
		return nil, fmt.Errorf("%w: got %d, want %d", schema.ErrDimensionMismatch, len(vec), dim)
	}
	return vec, nil
}
