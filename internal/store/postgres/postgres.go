// Package postgres records lifelog entries in a Postgres (Supabase) database.
// Tables are expected to exist; every insert ignores an existing id.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dvloznov/lifelog/internal/schema"
	"github.com/dvloznov/lifelog/internal/store"
	"github.com/lib/pq"
)

const (
	insertRawMessage = `INSERT INTO raw_logs (id, user_id, message_content, media_type, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING`

	insertTransaction = `INSERT INTO finance_transactions (
			id, user_id, date_transaction, amount, currency, category, subcategory, merchant,
			payment_method, is_fixed, is_client_expense, installment_current, installment_total,
			original_desc, source, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (id) DO NOTHING`

	insertActivity = `INSERT INTO activities (id, user_id, type, details, duration_minutes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING`

	insertJournal = `INSERT INTO journal_entries (id, user_id, content, mood_score, sentiment_tags, embedding, created_at)
		VALUES ($1, $2, $3, $4, $5, $6::vector, $7)
		ON CONFLICT (id) DO NOTHING`
)

// Execer is the subset of *sql.DB the recorder uses.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Recorder inserts records with lib/pq.
type Recorder struct {
	db    Execer
	close func() error
	now   func() time.Time
}

var _ store.Recorder = (*Recorder)(nil)

// Open connects to dbURL and verifies the connection.
func Open(ctx context.Context, dbURL string) (*Recorder, error) {
	if dbURL == "" {
		return nil, fmt.Errorf("postgres.Open: DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		return nil, fmt.Errorf("postgres.Open: open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres.Open: ping database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	return &Recorder{db: db, close: db.Close, now: time.Now}, nil
}

// New wraps an existing connection.
func New(db Execer) *Recorder {
	return &Recorder{db: db, now: time.Now}
}

func (r *Recorder) createdAt(ref store.Ref) time.Time {
	if !ref.At.IsZero() {
		return ref.At
	}
	return r.now()
}

func (r *Recorder) RecordRawMessage(ctx context.Context, msg store.RawMessage, ref store.Ref) error {
	_, err := r.db.ExecContext(ctx, insertRawMessage,
		ref.Key(), nullString(msg.UserID), msg.Content, msg.MediaType, r.createdAt(ref))
	if err != nil {
		return fmt.Errorf("RecordRawMessage: %w", err)
	}
	return nil
}

func (r *Recorder) RecordTransaction(ctx context.Context, e schema.FinanceEntry, ref store.Ref) error {
	var current, total sql.NullInt64
	if e.Installments != nil {
		current = sql.NullInt64{Int64: int64(e.Installments.Current), Valid: true}
		total = sql.NullInt64{Int64: int64(e.Installments.Total), Valid: true}
	}
	_, err := r.db.ExecContext(ctx, insertTransaction,
		ref.Key(),
		nullString(ref.UserID),
		e.Date,
		e.Amount.StringFixed(2),
		e.Currency,
		e.Category,
		nullString(e.Subcategory),
		e.Merchant,
		nullString(e.PaymentMethod),
		e.IsFixed,
		e.IsClientExpense,
		current,
		total,
		nullString(e.Item),
		ref.Source,
		r.createdAt(ref),
	)
	if err != nil {
		return fmt.Errorf("RecordTransaction: %w", err)
	}
	return nil
}

func (r *Recorder) RecordActivity(ctx context.Context, e schema.HealthEntry, ref store.Ref) error {
	details, err := json.Marshal(e.Details)
	if err != nil {
		return fmt.Errorf("RecordActivity: marshal details: %w", err)
	}
	var duration sql.NullInt64
	if e.DurationMinutes != nil {
		duration = sql.NullInt64{Int64: int64(*e.DurationMinutes), Valid: true}
	}
	_, err = r.db.ExecContext(ctx, insertActivity,
		ref.Key(), nullString(ref.UserID), e.ActivityType, string(details), duration, r.createdAt(ref))
	if err != nil {
		return fmt.Errorf("RecordActivity: %w", err)
	}
	return nil
}

func (r *Recorder) RecordJournal(ctx context.Context, e schema.JournalEntry, ref store.Ref) error {
	_, err := r.db.ExecContext(ctx, insertJournal,
		ref.Key(),
		nullString(ref.UserID),
		e.ReflectionSummary,
		e.MoodScore,
		pq.Array(e.SentimentTags),
		nullString(store.FormatEmbedding(e.Embedding)),
		r.createdAt(ref),
	)
	if err != nil {
		return fmt.Errorf("RecordJournal: %w", err)
	}
	return nil
}

// Close closes the connection when the recorder opened it.
func (r *Recorder) Close() error {
	if r.close == nil {
		return nil
	}
	return r.close()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
