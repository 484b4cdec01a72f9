package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/dvloznov/lifelog/internal/llm"
	"github.com/dvloznov/lifelog/internal/logger"
	"github.com/dvloznov/lifelog/internal/schema"
	"google.golang.org/genai"
)

const healthPrompt = `Extract health, workout, or nutrition details.

IF IT IS A MEAL:
- Set 'activity_type' to 'meal'.
- In 'details_json', try to extract: 'food_items' (list), 'calories_est' (int), 'meal_time' (breakfast/lunch/dinner/snack).

IF IT IS A WORKOUT:
- Set 'activity_type' to 'workout'.
- In 'details_json', extract exercises, sets, reps, weight, and distance ('distance_km') when present.

OTHERWISE:
- Set 'activity_type' to a short lower-case label (e.g. 'sleep', 'medical', 'grooming') and put what you can infer in 'details_json'.

'details_json' is a JSON object encoded as a string. Set 'duration_minutes' when a duration is stated, otherwise null.`

var healthSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"activity_type":    {Type: genai.TypeString},
		"details_json":     {Type: genai.TypeString, Description: "JSON object encoded as a string"},
		"duration_minutes": {Type: genai.TypeInteger, Nullable: genai.Ptr(true)},
	},
	Required: []string{"activity_type", "details_json"},
}

var activityAliases = map[string]string{
	"comida":        schema.ActivityMeal,
	"food":          schema.ActivityMeal,
	"nutrition":     schema.ActivityMeal,
	"nutrición":     schema.ActivityMeal,
	"entrenamiento": schema.ActivityWorkout,
	"exercise":      schema.ActivityWorkout,
	"ejercicio":     schema.ActivityWorkout,
	"training":      schema.ActivityWorkout,
}

var mealTimeAliases = map[string]string{
	"desayuno": "breakfast",
	"almuerzo": "lunch",
	"cena":     "dinner",
	"merienda": "snack",
}

// Health extracts one meal, workout or other health activity.
type Health struct {
	model llm.Model
}

// NewHealth binds a health extractor to a model.
func NewHealth(model llm.Model) *Health {
	return &Health{model: model}
}

type healthOutput struct {
	ActivityType    string          `json:"activity_type"`
	Details         map[string]any  `json:"details"`
	DetailsJSON     json.RawMessage `json:"details_json"`
	DurationMinutes *float64        `json:"duration_minutes"`
}

// Extract returns the health entry described by text.
func (h *Health) Extract(ctx context.Context, text string) (schema.HealthEntry, error) {
	log := logger.FromContext(ctx)
	if strings.TrimSpace(text) == "" {
		return schema.HealthEntry{}, extractionError(schema.StageHealth, text, schema.ErrEmptyInput)
	}

	var out healthOutput
	err := llm.GenerateJSON(ctx, h.model, llm.Request{
		Name:   string(schema.StageHealth),
		System: healthPrompt,
		Input:  text,
		Schema: healthSchema,
	}, &out)
	if err != nil {
		return schema.HealthEntry{}, extractionError(schema.StageHealth, text, err)
	}

	entry, err := out.entry()
	if err != nil {
		return schema.HealthEntry{}, extractionError(schema.StageHealth, text, err)
	}
	if err := entry.Validate(); err != nil {
		return schema.HealthEntry{}, extractionError(schema.StageHealth, text, err)
	}

	log.Debug().
		Str("stage", string(schema.StageHealth)).
		Str("activity_type", entry.ActivityType).
		Str("excerpt", schema.Excerpt(text)).
		Msg("Health entry extracted")

	return entry, nil
}

func (o healthOutput) entry() (schema.HealthEntry, error) {
	details, err := o.details()
	if err != nil {
		return schema.HealthEntry{}, err
	}

	activity := strings.ToLower(strings.TrimSpace(o.ActivityType))
	if alias, ok := activityAliases[activity]; ok {
		activity = alias
	}
	entry := schema.HealthEntry{ActivityType: activity, Details: details}

	duration := o.DurationMinutes
	if duration == nil {
		if n, ok := schema.Number(details["duration_minutes"]); ok {
			duration = &n
		}
	}
	if duration != nil {
		minutes := int(math.Round(*duration))
		entry.DurationMinutes = &minutes
	}

	if activity == schema.ActivityWorkout {
		normalizeWorkout(details)
	}
	if mt, ok := details["meal_time"].(string); ok {
		mt = strings.ToLower(strings.TrimSpace(mt))
		if alias, ok := mealTimeAliases[mt]; ok {
			mt = alias
		}
		details["meal_time"] = mt
	}
	return entry, nil
}

// workoutUnits maps a free-text quantity key to the numeric key filled from
// it and the unit suffixes that key accepts.
var workoutUnits = []struct {
	from, to string
	units    []string
}{
	{"distance", "distance_km", []string{"km", "k", "kms", "kilómetros", "kilometros", ""}},
	{"weight", "weight_kg", []string{"kg", "kgs", "kilos", ""}},
}

// normalizeWorkout fills distance_km and weight_kg from values like "5km"
// or "60 kilos". The original keys are left untouched and values that do
// not parse are kept as given.
func normalizeWorkout(details map[string]any) {
	for _, u := range workoutUnits {
		if _, ok := details[u.to]; ok {
			continue
		}
		s, ok := details[u.from].(string)
		if !ok {
			continue
		}
		n, unit, ok := leadingNumber(s)
		if !ok || !slices.Contains(u.units, unit) {
			continue
		}
		details[u.to] = n
	}
}

// leadingNumber splits "5,5 km" into 5.5 and "km".
func leadingNumber(s string) (float64, string, bool) {
	s = strings.TrimSpace(s)
	end := 0
	for end < len(s) && (s[end] >= '0' && s[end] <= '9' || s[end] == '.' || s[end] == ',') {
		end++
	}
	if end == 0 {
		return 0, "", false
	}
	n, err := strconv.ParseFloat(strings.ReplaceAll(s[:end], ",", "."), 64)
	if err != nil {
		return 0, "", false
	}
	return n, strings.ToLower(strings.TrimSpace(s[end:])), true
}

// details accepts either an inline object or a JSON-encoded string.
func (o healthOutput) details() (map[string]any, error) {
	details := map[string]any{}
	for k, v := range o.Details {
		details[k] = v
	}

	raw := strings.TrimSpace(string(o.DetailsJSON))
	if raw == "" || raw == "null" {
		return details, nil
	}
	if strings.HasPrefix(raw, `"`) {
		var encoded string
		if err := json.Unmarshal([]byte(raw), &encoded); err != nil {
			return nil, fmt.Errorf("details_json: %w", err)
		}
		raw = strings.TrimSpace(llm.CleanJSON(encoded))
		if raw == "" {
			return details, nil
		}
	}

	var decoded map[string]any
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return nil, fmt.Errorf("details_json: %w", err)
	}
	for k, v := range decoded {
		details[k] = v
	}
	return details, nil
}
