package extract

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/dvloznov/lifelog/internal/llm"
	"github.com/dvloznov/lifelog/internal/logger"
	"github.com/dvloznov/lifelog/internal/schema"
	"google.golang.org/genai"
)

const journalPrompt = `Analyze the text for a journal entry.
- Estimate a 'mood_score' from 1 (terrible) to 10 (amazing) based on the sentiment.
- Generate a list of 'sentiment_tags' (3-5 short lower-case tags, in English).
- 'reflection_summary' should be the refined content of the user's thought.`

var journalSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"mood_score": {Type: genai.TypeInteger, Minimum: genai.Ptr(1.0), Maximum: genai.Ptr(10.0)},
		"sentiment_tags": {
			Type:     genai.TypeArray,
			Items:    &genai.Schema{Type: genai.TypeString},
			MinItems: genai.Ptr[int64](3),
			MaxItems: genai.Ptr[int64](5),
		},
		"reflection_summary": {Type: genai.TypeString},
	},
	Required: []string{"mood_score", "sentiment_tags", "reflection_summary"},
}

var (
	errMissingMood    = errors.New("mood_score is missing")
	errFractionalMood = errors.New("mood_score is not an integer")
)

// Journal extracts mood, tags and a refined summary.
type Journal struct {
	model llm.Model
}

// NewJournal binds a journal extractor to a model.
func NewJournal(model llm.Model) *Journal {
	return &Journal{model: model}
}

type journalOutput struct {
	MoodScore         *float64 `json:"mood_score"`
	SentimentTags     []string `json:"sentiment_tags"`
	ReflectionSummary string   `json:"reflection_summary"`
}

// Extract returns the journal entry for text, without embedding.
func (j *Journal) Extract(ctx context.Context, text string) (schema.JournalEntry, error) {
	log := logger.FromContext(ctx)
	if strings.TrimSpace(text) == "" {
		return schema.JournalEntry{}, extractionError(schema.StageJournal, text, schema.ErrEmptyInput)
	}

	var out journalOutput
	err := llm.GenerateJSON(ctx, j.model, llm.Request{
		Name:   string(schema.StageJournal),
		System: journalPrompt,
		Input:  text,
		Schema: journalSchema,
	}, &out)
	if err != nil {
		return schema.JournalEntry{}, extractionError(schema.StageJournal, text, err)
	}
	if out.MoodScore == nil {
		return schema.JournalEntry{}, extractionError(schema.StageJournal, text, errMissingMood)
	}
	if mood := *out.MoodScore; mood != math.Trunc(mood) {
		return schema.JournalEntry{}, extractionError(schema.StageJournal, text, fmt.Errorf("%w: %v", errFractionalMood, mood))
	}

	entry := schema.JournalEntry{
		MoodScore:         int(*out.MoodScore),
		SentimentTags:     normalizeTags(out.SentimentTags),
		ReflectionSummary: strings.TrimSpace(out.ReflectionSummary),
	}
	if err := entry.Validate(); err != nil {
		return schema.JournalEntry{}, extractionError(schema.StageJournal, text, err)
	}

	log.Debug().
		Str("stage", string(schema.StageJournal)).
		Int("mood_score", entry.MoodScore).
		Strs("tags", entry.SentimentTags).
		Msg("Journal entry extracted")

	return entry, nil
}

// normalizeTags trims, lower-cases and de-duplicates tags, keeping order.
func normalizeTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.Join(strings.Fields(tag), " "))
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	return out
}
