package bigquery

import (
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/dvloznov/lifelog/internal/schema"
	"github.com/dvloznov/lifelog/internal/store"
)

// Table names inside the dataset.
const (
	rawLogsTable      = "raw_logs"
	transactionsTable = "finance_transactions"
	activitiesTable   = "activities"
	journalTable      = "journal_entries"
)

type RawLogRow struct {
	ID             string              `bigquery:"id"`
	UserID         bigquery.NullString `bigquery:"user_id"`
	MessageContent string              `bigquery:"message_content"`
	MediaType      string              `bigquery:"media_type"`
	CreatedTS      time.Time           `bigquery:"created_ts"`
}

type TransactionRow struct {
	ID     string              `bigquery:"id"`     // REQUIRED, idempotency key
	UserID bigquery.NullString `bigquery:"user_id"` // NULLABLE

	DateTransaction civil.Date `bigquery:"date_transaction"` // REQUIRED
	Amount          *big.Rat   `bigquery:"amount"`           // REQUIRED NUMERIC
	Currency        string     `bigquery:"currency"`

	Category      string              `bigquery:"category"`
	Subcategory   bigquery.NullString `bigquery:"subcategory"`
	Merchant      string              `bigquery:"merchant"`
	PaymentMethod bigquery.NullString `bigquery:"payment_method"`

	IsFixed         bool `bigquery:"is_fixed"`
	IsClientExpense bool `bigquery:"is_client_expense"`

	InstallmentCurrent bigquery.NullInt64 `bigquery:"installment_current"`
	InstallmentTotal   bigquery.NullInt64 `bigquery:"installment_total"`

	OriginalDesc bigquery.NullString `bigquery:"original_desc"`
	Source       string              `bigquery:"source"`
	CreatedTS    time.Time           `bigquery:"created_ts"`
}

type ActivityRow struct {
	ID              string              `bigquery:"id"`
	UserID          bigquery.NullString `bigquery:"user_id"`
	Type            string              `bigquery:"type"`
	Details         bigquery.NullJSON   `bigquery:"details"`
	DurationMinutes bigquery.NullInt64  `bigquery:"duration_minutes"`
	CreatedTS       time.Time           `bigquery:"created_ts"`
}

type JournalRow struct {
	ID            string              `bigquery:"id"`
	UserID        bigquery.NullString `bigquery:"user_id"`
	Content       string              `bigquery:"content"`
	MoodScore     int64               `bigquery:"mood_score"`
	SentimentTags []string            `bigquery:"sentiment_tags"` // REPEATED STRING
	Embedding     []float64           `bigquery:"embedding"`      // REPEATED FLOAT64
	CreatedTS     time.Time           `bigquery:"created_ts"`
}

func nullString(s string) bigquery.NullString {
	return bigquery.NullString{StringVal: s, Valid: s != ""}
}

func rawLogRow(msg store.RawMessage, ref store.Ref, created time.Time) *RawLogRow {
	return &RawLogRow{
		ID:             ref.Key(),
		UserID:         nullString(msg.UserID),
		MessageContent: msg.Content,
		MediaType:      msg.MediaType,
		CreatedTS:      created,
	}
}

func transactionRow(e schema.FinanceEntry, ref store.Ref, created time.Time) (*TransactionRow, error) {
	date, err := civil.ParseDate(e.Date)
	if err != nil {
		return nil, fmt.Errorf("transactionRow: date %q: %w", e.Date, err)
	}
	row := &TransactionRow{
		ID:              ref.Key(),
		UserID:          nullString(ref.UserID),
		DateTransaction: date,
		Amount:          e.Amount.Rat(),
		Currency:        e.Currency,
		Category:        e.Category,
		Subcategory:     nullString(e.Subcategory),
		Merchant:        e.Merchant,
		PaymentMethod:   nullString(e.PaymentMethod),
		IsFixed:         e.IsFixed,
		IsClientExpense: e.IsClientExpense,
		OriginalDesc:    nullString(e.Item),
		Source:          ref.Source,
		CreatedTS:       created,
	}
	if e.Installments != nil {
		row.InstallmentCurrent = bigquery.NullInt64{Int64: int64(e.Installments.Current), Valid: true}
		row.InstallmentTotal = bigquery.NullInt64{Int64: int64(e.Installments.Total), Valid: true}
	}
	return row, nil
}

func activityRow(e schema.HealthEntry, ref store.Ref, created time.Time) (*ActivityRow, error) {
	row := &ActivityRow{
		ID:        ref.Key(),
		UserID:    nullString(ref.UserID),
		Type:      e.ActivityType,
		CreatedTS: created,
	}
	if len(e.Details) > 0 {
		details, err := json.Marshal(e.Details)
		if err != nil {
			return nil, fmt.Errorf("activityRow: marshal details: %w", err)
		}
		row.Details = bigquery.NullJSON{JSONVal: string(details), Valid: true}
	}
	if e.DurationMinutes != nil {
		row.DurationMinutes = bigquery.NullInt64{Int64: int64(*e.DurationMinutes), Valid: true}
	}
	return row, nil
}

func journalRow(e schema.JournalEntry, ref store.Ref, created time.Time) *JournalRow {
	vec := make([]float64, len(e.Embedding))
	for i, v := range e.Embedding {
		vec[i] = float64(v)
	}
	return &JournalRow{
		ID:            ref.Key(),
		UserID:        nullString(ref.UserID),
		Content:       e.ReflectionSummary,
		MoodScore:     int64(e.MoodScore),
		SentimentTags: e.SentimentTags,
		Embedding:     vec,
		CreatedTS:     created,
	}
}
