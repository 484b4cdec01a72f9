// Package router assigns raw text to one of the four life-domain categories.
package router

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dvloznov/lifelog/internal/llm"
	"github.com/dvloznov/lifelog/internal/logger"
	"github.com/dvloznov/lifelog/internal/schema"
	"google.golang.org/genai"
)

const systemPrompt = `You are the central router for a personal Life OS.
Analyze the user's input and categorize it into one of the following:
- FINANCE: Expense tracking, purchases, income.
- HEALTH: Workouts, meals, medical info, grooming.
- JOURNAL: Personal reflections, mood logs, diary entries.
- OTHER: Anything that doesn't fit (e.g., questions, random chatter).

Return a confidence score between 0.0 and 1.0.`

var responseSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"category":   {Type: genai.TypeString, Enum: schema.CategoryNames()},
		"confidence": {Type: genai.TypeNumber},
	},
	Required: []string{"category", "confidence"},
}

var errMissingField = errors.New("missing field")

// Router classifies text with a single stateless model call.
type Router struct {
	model llm.Model
}

// New creates a Router on model.
func New(model llm.Model) *Router {
	return &Router{model: model}
}

type routingOutput struct {
	Category   *string  `json:"category"`
	Confidence *float64 `json:"confidence"`
}

// Classify returns the routing decision for text. Categories outside the
// known four become Other; a missing or out-of-range field is a
// *schema.ClassificationError.
func (r *Router) Classify(ctx context.Context, text string) (schema.RoutingDecision, error) {
	log := logger.FromContext(ctx)
	excerpt := schema.Excerpt(text)

	if strings.TrimSpace(text) == "" {
		return schema.RoutingDecision{}, &schema.ClassificationError{Excerpt: excerpt, Err: schema.ErrEmptyInput}
	}

	var out routingOutput
	err := llm.GenerateJSON(ctx, r.model, llm.Request{
		Name:   string(schema.StageRouting),
		System: systemPrompt,
		Input:  text,
		Schema: responseSchema,
	}, &out)
	if err != nil {
		return schema.RoutingDecision{}, &schema.ClassificationError{Excerpt: excerpt, Err: err}
	}

	decision, err := out.decision()
	if err != nil {
		return schema.RoutingDecision{}, &schema.ClassificationError{Excerpt: excerpt, Err: err}
	}

	log.Debug().
		Str("stage", string(schema.StageRouting)).
		Str("category", decision.Category.String()).
		Float64("confidence", decision.Confidence).
		Str("excerpt", excerpt).
		Msg("Input classified")

	return decision, nil
}

func (o routingOutput) decision() (schema.RoutingDecision, error) {
	if o.Category == nil {
		return schema.RoutingDecision{}, fmt.Errorf("%w: category", errMissingField)
	}
	if o.Confidence == nil {
		return schema.RoutingDecision{}, fmt.Errorf("%w: confidence", errMissingField)
	}
	d := schema.RoutingDecision{
		Category:   schema.ParseCategory(*o.Category),
		Confidence: *o.Confidence,
	}
	if err := d.Validate(); err != nil {
		return schema.RoutingDecision{}, err
	}
	return d, nil
}
