package schema

import (
	"github.com/shopspring/decimal"
)

// DateLayout is the only date format records carry.
const DateLayout = "2006-01-02"

// Vocabulary is the closed label set a finance record is checked against.
// taxonomy.Taxonomy satisfies it.
type Vocabulary interface {
	HasCategory(label string) bool
	HasSubcategory(category, subcategory string) bool
	HasPaymentMethod(label string) bool
	// UsesPaymentMethods reports whether entries must carry a payment method.
	UsesPaymentMethods() bool
}

// Installments describes a purchase split across several payments.
type Installments struct {
	Current int `json:"current"`
	Total   int `json:"total"`
}

// FinanceEntry is one money movement.
type FinanceEntry struct {
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	Category        string          `json:"category"`
	Subcategory     string          `json:"subcategory,omitempty"`
	Merchant        string          `json:"merchant"`
	Item            string          `json:"item,omitempty"`
	Date            string          `json:"date"`
	PaymentMethod   string          `json:"payment_method,omitempty"`
	IsFixed         bool            `json:"is_fixed"`
	IsClientExpense bool            `json:"is_client_expense"`
	Installments    *Installments   `json:"installments,omitempty"`
}

// FinanceBatch holds every transaction found in one input, in source order.
type FinanceBatch struct {
	Transactions []FinanceEntry `json:"transactions"`
}

// Total sums the amounts of the batch regardless of currency.
func (b FinanceBatch) Total() decimal.Decimal {
	total := decimal.Zero
	for _, tx := range b.Transactions {
		total = total.Add(tx.Amount)
	}
	return total
}

// Activity types with a known details shape.
const (
	ActivityMeal    = "meal"
	ActivityWorkout = "workout"
)

// HealthEntry is a meal, a workout or any other health activity.
// Details stays open; only keys the extractor could infer are present.
type HealthEntry struct {
	ActivityType    string         `json:"activity_type"`
	Details         map[string]any `json:"details"`
	DurationMinutes *int           `json:"duration_minutes,omitempty"`
}

// JournalEntry is a mood log. Embedding is attached after extraction.
type JournalEntry struct {
	MoodScore         int       `json:"mood_score"`
	SentimentTags     []string  `json:"sentiment_tags"`
	ReflectionSummary string    `json:"reflection_summary"`
	Embedding         []float32 `json:"embedding,omitempty"`
}

// Fallback is returned for inputs routed to Other.
type Fallback struct {
	RawText string `json:"raw_text"`
	Message string `json:"message"`
}

// FallbackMessage accompanies every Fallback.
const FallbackMessage = "Could not categorize input."

// Record is the payload of a processed input: a FinanceBatch, a HealthEntry,
// a JournalEntry or a Fallback.
type Record interface {
	Kind() Category
}

func (FinanceBatch) Kind() Category { return Finance }
func (HealthEntry) Kind() Category  { return Health }
func (JournalEntry) Kind() Category { return Journal }
func (Fallback) Kind() Category     { return Other }
