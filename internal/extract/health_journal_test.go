package extract

import (
	"context"
	"errors"
	"testing"

	"github.com/dvloznov/lifelog/internal/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthWorkout(t *testing.T) {
	m := &scripted{answer: `{"activity_type":"Workout","details_json":"{\"exercise\":\"running\",\"distance_km\":5}","duration_minutes":null}`}

	entry, err := NewHealth(m).Extract(context.Background(), "Corrí 5km hoy")
	require.NoError(t, err)
	assert.Equal(t, schema.ActivityWorkout, entry.ActivityType)
	assert.Equal(t, 5.0, entry.Details["distance_km"])
	assert.Nil(t, entry.DurationMinutes)
	assert.NoError(t, entry.Validate())
}

func TestHealthFreeFormDetails(t *testing.T) {
	tests := []struct {
		name    string
		answer  string
		text    string
		want    map[string]any
		wantAct string
	}{
		{
			name:    "distance with unit",
			answer:  `{"activity_type":"workout","details_json":"{\"exercise\":\"running\",\"distance\":\"5km\"}"}`,
			text:    "Corrí 5km hoy",
			want:    map[string]any{"exercise": "running", "distance": "5km", "distance_km": 5.0},
			wantAct: schema.ActivityWorkout,
		},
		{
			name:    "rep range and weight with unit",
			answer:  `{"activity_type":"workout","details_json":"{\"exercise\":\"sentadillas\",\"sets\":4,\"reps\":\"8-10\",\"weight\":\"60kg\"}"}`,
			text:    "Sentadillas 4x8-10 con 60kg",
			want:    map[string]any{"exercise": "sentadillas", "sets": 4.0, "reps": "8-10", "weight": "60kg", "weight_kg": 60.0},
			wantAct: schema.ActivityWorkout,
		},
		{
			name:    "distance without a number",
			answer:  `{"activity_type":"workout","details_json":"{\"distance\":\"hasta el parque\"}"}`,
			text:    "Caminé hasta el parque",
			want:    map[string]any{"distance": "hasta el parque"},
			wantAct: schema.ActivityWorkout,
		},
		{
			name:    "meal time outside the usual four",
			answer:  `{"activity_type":"meal","details_json":"{\"food_items\":[\"huevos\",\"tostadas\"],\"meal_time\":\"Brunch\"}"}`,
			text:    "Brunch de huevos con tostadas",
			want:    map[string]any{"food_items": []any{"huevos", "tostadas"}, "meal_time": "brunch"},
			wantAct: schema.ActivityMeal,
		},
		{
			name:    "calories as text",
			answer:  `{"activity_type":"meal","details_json":"{\"calories_est\":\"unas 800\"}"}`,
			text:    "Comí pizza, unas 800 calorías",
			want:    map[string]any{"calories_est": "unas 800"},
			wantAct: schema.ActivityMeal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry, err := NewHealth(&scripted{answer: tt.answer}).Extract(context.Background(), tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.wantAct, entry.ActivityType)
			assert.Equal(t, tt.want, entry.Details)
		})
	}
}

func TestLeadingNumber(t *testing.T) {
	tests := []struct {
		in     string
		want   float64
		unit   string
		wantOK bool
	}{
		{"5km", 5, "km", true},
		{" 5,5 Km ", 5.5, "km", true},
		{"60", 60, "", true},
		{"km", 0, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			n, unit, ok := leadingNumber(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, n)
			assert.Equal(t, tt.unit, unit)
		})
	}
}

func TestHealthMeal(t *testing.T) {
	m := &scripted{answer: `{"activity_type":"comida","details_json":"{\"food_items\":[\"milanesa\",\"puré\"],\"calories_est\":850,\"meal_time\":\"Cena\"}"}`}

	entry, err := NewHealth(m).Extract(context.Background(), "Cené milanesa con puré")
	require.NoError(t, err)
	assert.Equal(t, schema.ActivityMeal, entry.ActivityType)
	assert.Equal(t, "dinner", entry.Details["meal_time"])
	assert.Equal(t, []any{"milanesa", "puré"}, entry.Details["food_items"])
}

func TestHealthInlineDetailsAndDuration(t *testing.T) {
	m := &scripted{answer: `{"activity_type":"yoga","details":{"style":"vinyasa","duration_minutes":45.4}}`}

	entry, err := NewHealth(m).Extract(context.Background(), "45 minutos de yoga")
	require.NoError(t, err)
	assert.Equal(t, "yoga", entry.ActivityType)
	require.NotNil(t, entry.DurationMinutes)
	assert.Equal(t, 45, *entry.DurationMinutes)
}

func TestHealthErrors(t *testing.T) {
	tests := []struct {
		name   string
		answer string
		text   string
		err    error
	}{
		{name: "empty activity", answer: `{"activity_type":"","details_json":"{}"}`, text: "algo", err: schema.ErrInvalidRecord},
		{name: "details not json", answer: `{"activity_type":"meal","details_json":"milanesa"}`, text: "algo"},
		{name: "duration over a day", answer: `{"activity_type":"workout","details_json":"{}","duration_minutes":5000}`, text: "algo", err: schema.ErrInvalidRecord},
		{name: "blank input", answer: `{}`, text: " ", err: schema.ErrEmptyInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewHealth(&scripted{answer: tt.answer}).Extract(context.Background(), tt.text)
			require.Error(t, err)
			var extErr *schema.ExtractionError
			require.True(t, errors.As(err, &extErr))
			assert.Equal(t, schema.StageHealth, extErr.Stage)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
			}
		})
	}
}

func TestJournal(t *testing.T) {
	m := &scripted{answer: `{"mood_score":6,"sentiment_tags":["Productive","tired"," tired ","motivated"],"reflection_summary":" Me sentí productivo aunque cansado. "}`}

	entry, err := NewJournal(m).Extract(context.Background(), "Hoy me sentí productivo pero cansado")
	require.NoError(t, err)
	assert.Equal(t, 6, entry.MoodScore)
	assert.Equal(t, []string{"productive", "tired", "motivated"}, entry.SentimentTags)
	assert.Equal(t, "Me sentí productivo aunque cansado.", entry.ReflectionSummary)
	assert.Nil(t, entry.Embedding)
}

func TestJournalErrors(t *testing.T) {
	tests := []struct {
		name   string
		answer string
		err    error
	}{
		{name: "mood out of range", answer: `{"mood_score":11,"sentiment_tags":["a","b","c"],"reflection_summary":"x"}`, err: schema.ErrInvalidRecord},
		{name: "mood zero", answer: `{"mood_score":0,"sentiment_tags":["a","b","c"],"reflection_summary":"x"}`, err: schema.ErrInvalidRecord},
		{name: "fractional mood", answer: `{"mood_score":6.5,"sentiment_tags":["a","b","c"],"reflection_summary":"x"}`, err: errFractionalMood},
		{name: "missing mood", answer: `{"sentiment_tags":["a","b","c"],"reflection_summary":"x"}`, err: errMissingMood},
		{name: "too few tags after dedupe", answer: `{"mood_score":5,"sentiment_tags":["calm","Calm","tired"],"reflection_summary":"x"}`, err: schema.ErrInvalidRecord},
		{name: "too many tags", answer: `{"mood_score":5,"sentiment_tags":["a","b","c","d","e","f"],"reflection_summary":"x"}`, err: schema.ErrInvalidRecord},
		{name: "empty summary", answer: `{"mood_score":5,"sentiment_tags":["a","b","c"],"reflection_summary":""}`, err: schema.ErrInvalidRecord},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewJournal(&scripted{answer: tt.answer}).Extract(context.Background(), "Un día raro")
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.err)
			var extErr *schema.ExtractionError
			require.True(t, errors.As(err, &extErr))
			assert.Equal(t, schema.StageJournal, extErr.Stage)
		})
	}
}
