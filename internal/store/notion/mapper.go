package notion

import (
	"fmt"
	"time"

	"github.com/dvloznov/lifelog/internal/schema"
	"github.com/jomei/notionapi"
)

// KeyProperty holds the idempotency key on every mirrored page.
const KeyProperty = "Key"

func title(s string) notionapi.TitleProperty {
	return notionapi.TitleProperty{
		Title: []notionapi.RichText{{Type: notionapi.ObjectTypeText, Text: &notionapi.Text{Content: s}}},
	}
}

func richText(s string) notionapi.RichTextProperty {
	return notionapi.RichTextProperty{
		RichText: []notionapi.RichText{{Type: notionapi.ObjectTypeText, Text: &notionapi.Text{Content: s}}},
	}
}

func selectOption(s string) notionapi.SelectProperty {
	return notionapi.SelectProperty{Select: notionapi.Option{Name: s}}
}

func dateProperty(t time.Time) notionapi.DateProperty {
	d := notionapi.Date(t)
	return notionapi.DateProperty{Date: &notionapi.DateObject{Start: &d}}
}

// TransactionProperties maps a finance entry to a page of the finance
// database.
func TransactionProperties(e schema.FinanceEntry, key, source string) (notionapi.Properties, error) {
	date, err := time.Parse(schema.DateLayout, e.Date)
	if err != nil {
		return nil, fmt.Errorf("TransactionProperties: date %q: %w", e.Date, err)
	}

	props := notionapi.Properties{
		"Merchant":       title(e.Merchant),
		"Amount":         notionapi.NumberProperty{Number: e.Amount.InexactFloat64()},
		"Currency":       selectOption(e.Currency),
		"Category":       selectOption(e.Category),
		"Date":           dateProperty(date),
		"Fixed":          notionapi.CheckboxProperty{Checkbox: e.IsFixed},
		"Client Expense": notionapi.CheckboxProperty{Checkbox: e.IsClientExpense},
		"Source":         richText(source),
		KeyProperty:      richText(key),
	}
	if e.Subcategory != "" {
		props["Subcategory"] = selectOption(e.Subcategory)
	}
	if e.PaymentMethod != "" {
		props["Payment Method"] = selectOption(e.PaymentMethod)
	}
	if e.Item != "" {
		props["Description"] = richText(e.Item)
	}
	if e.Installments != nil {
		props["Installment"] = richText(fmt.Sprintf("%d/%d", e.Installments.Current, e.Installments.Total))
	}
	return props, nil
}

// JournalProperties maps a journal entry to a page of the journal database.
// The embedding stays out of Notion.
func JournalProperties(e schema.JournalEntry, key string, at time.Time) notionapi.Properties {
	tags := make([]notionapi.Option, 0, len(e.SentimentTags))
	for _, tag := range e.SentimentTags {
		tags = append(tags, notionapi.Option{Name: tag})
	}
	return notionapi.Properties{
		"Summary":   title(e.ReflectionSummary),
		"Mood":      notionapi.NumberProperty{Number: float64(e.MoodScore)},
		"Tags":      notionapi.MultiSelectProperty{MultiSelect: tags},
		"Date":      dateProperty(at),
		KeyProperty: richText(key),
	}
}
