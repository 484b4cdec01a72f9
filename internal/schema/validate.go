package schema

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"
	"unicode"
)

var currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)

// placeholderMerchants are never acceptable merchant names.
var placeholderMerchants = map[string]bool{
	"":                     true,
	"unknown":              true,
	"unknown merchant":     true,
	"desconocido":          true,
	"comercio desconocido": true,
	"sin datos":            true,
	"no especificado":      true,
	"unspecified":          true,
	"n/a":                  true,
	"na":                   true,
	"none":                 true,
	"null":                 true,
	"merchant":             true,
	"?":                    true,
	"-":                    true,
}

// IsPlaceholderMerchant reports whether name stands for "unknown".
func IsPlaceholderMerchant(name string) bool {
	return placeholderMerchants[strings.ToLower(strings.TrimSpace(name))]
}

// IsConcatenatedMerchant reports whether name looks like unrelated words run
// together, e.g. "SupermercadoNaftaLuz", "gas_kiosco" or "nafta + luz".
// A trailing "+" as in "Disney+" is part of the brand.
func IsConcatenatedMerchant(name string) bool {
	if strings.Contains(name, "_") || strings.Contains(name, " + ") {
		return true
	}
	transitions := 0
	var prev rune
	for _, r := range name {
		if unicode.IsSpace(r) {
			// Multi-word names are fine as long as each word is.
			prev = r
			continue
		}
		if unicode.IsLower(prev) && unicode.IsUpper(r) {
			transitions++
		}
		prev = r
	}
	return transitions >= 2
}

// ValidDate reports whether s is a real calendar date in DateLayout.
func ValidDate(s string) bool {
	t, err := time.Parse(DateLayout, s)
	return err == nil && t.Format(DateLayout) == s
}

// Validate checks the installment plan.
func (i Installments) Validate() error {
	if i.Total < 1 {
		return invalid("installments.total", "%d must be at least 1", i.Total)
	}
	if i.Current < 1 || i.Current > i.Total {
		return invalid("installments.current", "%d is outside [1, %d]", i.Current, i.Total)
	}
	return nil
}

// Validate checks every field invariant of the entry against vocab.
func (e FinanceEntry) Validate(vocab Vocabulary) error {
	if !e.Amount.IsPositive() {
		return invalid("amount", "%s must be positive", e.Amount)
	}
	if !currencyPattern.MatchString(e.Currency) {
		return invalid("currency", "%q is not a three-letter code", e.Currency)
	}
	if !vocab.HasCategory(e.Category) {
		return invalid("category", "%q is not in the taxonomy", e.Category)
	}
	if e.Subcategory != "" && !vocab.HasSubcategory(e.Category, e.Subcategory) {
		return invalid("subcategory", "%q is not a subcategory of %q", e.Subcategory, e.Category)
	}
	if IsPlaceholderMerchant(e.Merchant) {
		return invalid("merchant", "%q is a placeholder", e.Merchant)
	}
	if IsConcatenatedMerchant(e.Merchant) {
		return invalid("merchant", "%q looks like concatenated words", e.Merchant)
	}
	if !ValidDate(e.Date) {
		return invalid("date", "%q is not YYYY-MM-DD", e.Date)
	}
	if vocab.UsesPaymentMethods() {
		if !vocab.HasPaymentMethod(e.PaymentMethod) {
			return invalid("payment_method", "%q is not in the taxonomy", e.PaymentMethod)
		}
	} else if e.PaymentMethod != "" {
		return invalid("payment_method", "taxonomy defines no payment methods, got %q", e.PaymentMethod)
	}
	if e.Installments != nil {
		if err := e.Installments.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks every entry of the batch. An empty batch is valid.
func (b FinanceBatch) Validate(vocab Vocabulary) error {
	for i, tx := range b.Transactions {
		if err := tx.Validate(vocab); err != nil {
			return fmt.Errorf("transaction %d: %w", i, err)
		}
	}
	return nil
}

const maxDurationMinutes = 24 * 60

// Validate checks the activity envelope. Details is an open map and its
// values are stored as given.
func (h HealthEntry) Validate() error {
	activity := strings.TrimSpace(h.ActivityType)
	if activity == "" {
		return invalid("activity_type", "must not be empty")
	}
	if activity != strings.ToLower(activity) {
		return invalid("activity_type", "%q must be lower case", h.ActivityType)
	}
	if h.DurationMinutes != nil {
		if d := *h.DurationMinutes; d < 0 || d > maxDurationMinutes {
			return invalid("duration_minutes", "%d is outside [0, %d]", d, maxDurationMinutes)
		}
	}
	return nil
}

const (
	minMood = 1
	maxMood = 10
	minTags = 3
	maxTags = 5
)

// Validate checks mood range, tag count and summary.
func (j JournalEntry) Validate() error {
	if j.MoodScore < minMood || j.MoodScore > maxMood {
		return invalid("mood_score", "%d is outside [%d, %d]", j.MoodScore, minMood, maxMood)
	}
	if n := len(j.SentimentTags); n < minTags || n > maxTags {
		return invalid("sentiment_tags", "%d tags, want %d to %d", n, minTags, maxTags)
	}
	for i, tag := range j.SentimentTags {
		if strings.TrimSpace(tag) == "" {
			return invalid("sentiment_tags", "tag %d is empty", i)
		}
	}
	if strings.TrimSpace(j.ReflectionSummary) == "" {
		return invalid("reflection_summary", "must not be empty")
	}
	return nil
}

// ValidateEmbedding checks that the attached vector has dim finite values.
func (j JournalEntry) ValidateEmbedding(dim int) error {
	if len(j.Embedding) != dim {
		return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(j.Embedding), dim)
	}
	for i, v := range j.Embedding {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return invalid("embedding", "component %d is not finite", i)
		}
	}
	return nil
}

// Number converts the numeric kinds found in decoded details to float64.
func Number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
