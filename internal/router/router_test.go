package router

import (
	"context"
	"errors"
	"testing"

	"github.com/dvloznov/lifelog/internal/llm"
	"github.com/dvloznov/lifelog/internal/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func answering(raw string) llm.Model {
	return llm.ModelFunc(func(ctx context.Context, req llm.Request) (string, error) {
		return raw, nil
	})
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		answer   string
		want     schema.Category
		wantConf float64
	}{
		{name: "finance", answer: `{"category":"FINANCE","confidence":0.97}`, want: schema.Finance, wantConf: 0.97},
		{name: "health", answer: `{"category":"HEALTH","confidence":0.9}`, want: schema.Health, wantConf: 0.9},
		{name: "journal lower case", answer: `{"category":"journal","confidence":0.6}`, want: schema.Journal, wantConf: 0.6},
		{name: "question is other", answer: `{"category":"OTHER","confidence":0.99}`, want: schema.Other, wantConf: 0.99},
		{name: "unknown category becomes other", answer: `{"category":"SHOPPING","confidence":0.5}`, want: schema.Other, wantConf: 0.5},
		{name: "boundary confidence", answer: `{"category":"FINANCE","confidence":0}`, want: schema.Finance, wantConf: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := New(answering(tt.answer)).Classify(context.Background(), "some input")
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.Category)
			assert.InDelta(t, tt.wantConf, d.Confidence, 1e-9)
			assert.NoError(t, d.Validate())
		})
	}
}

func TestClassifyFailures(t *testing.T) {
	tests := []struct {
		name  string
		model llm.Model
	}{
		{name: "unreachable", model: llm.ModelFunc(func(context.Context, llm.Request) (string, error) {
			return "", errors.New("connection refused")
		})},
		{name: "not json", model: answering("I think this is finance")},
		{name: "missing category", model: answering(`{"confidence":0.8}`)},
		{name: "missing confidence", model: answering(`{"category":"FINANCE"}`)},
		{name: "confidence above one", model: answering(`{"category":"FINANCE","confidence":1.5}`)},
		{name: "negative confidence", model: answering(`{"category":"HEALTH","confidence":-0.2}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := New(tt.model).Classify(context.Background(), "¿Qué hora es?")
			require.Error(t, err)

			var clsErr *schema.ClassificationError
			require.True(t, errors.As(err, &clsErr))
			assert.Equal(t, "¿Qué hora es?", clsErr.Excerpt)
			assert.Equal(t, schema.RoutingDecision{}, d)
		})
	}
}

func TestClassifyEmptyInput(t *testing.T) {
	called := false
	m := llm.ModelFunc(func(context.Context, llm.Request) (string, error) {
		called = true
		return "{}", nil
	})

	_, err := New(m).Classify(context.Background(), "   ")
	assert.ErrorIs(t, err, schema.ErrEmptyInput)
	assert.False(t, called)
}

func TestClassifySendsSchema(t *testing.T) {
	var got llm.Request
	m := llm.ModelFunc(func(ctx context.Context, req llm.Request) (string, error) {
		got = req
		return `{"category":"OTHER","confidence":1}`, nil
	})

	_, err := New(m).Classify(context.Background(), "¿Qué hora es?")
	require.NoError(t, err)
	assert.Equal(t, "¿Qué hora es?", got.Input)
	require.NotNil(t, got.Schema)
	assert.ElementsMatch(t, []string{"FINANCE", "HEALTH", "JOURNAL", "OTHER"}, got.Schema.Properties["category"].Enum)
}
