package store

import (
	"context"

	"github.com/dvloznov/lifelog/internal/logger"
	"github.com/dvloznov/lifelog/internal/schema"
)

// Log records nothing and logs every record at info level. It backs
// LIFELOG_STORE=none.
type Log struct{}

var _ Recorder = Log{}

func (Log) RecordRawMessage(ctx context.Context, msg RawMessage, ref Ref) error {
	log := logger.FromContext(ctx)
	log.Info().
		Str("key", ref.Key()).
		Str("media_type", msg.MediaType).
		Str("excerpt", schema.Excerpt(msg.Content)).
		Msg("Raw message")
	return nil
}

func (Log) RecordTransaction(ctx context.Context, entry schema.FinanceEntry, ref Ref) error {
	log := logger.FromContext(ctx)
	log.Info().
		Str("key", ref.Key()).
		Str("source", ref.Source).
		Str("amount", entry.Amount.StringFixed(2)).
		Str("currency", entry.Currency).
		Str("category", entry.Category).
		Str("merchant", entry.Merchant).
		Str("date", entry.Date).
		Msg("Transaction")
	return nil
}

func (Log) RecordActivity(ctx context.Context, entry schema.HealthEntry, ref Ref) error {
	log := logger.FromContext(ctx)
	log.Info().
		Str("key", ref.Key()).
		Str("activity_type", entry.ActivityType).
		Interface("details", entry.Details).
		Msg("Activity")
	return nil
}

func (Log) RecordJournal(ctx context.Context, entry schema.JournalEntry, ref Ref) error {
	log := logger.FromContext(ctx)
	log.Info().
		Str("key", ref.Key()).
		Int("mood_score", entry.MoodScore).
		Strs("tags", entry.SentimentTags).
		Int("embedding_dim", len(entry.Embedding)).
		Msg("Journal entry")
	return nil
}

func (Log) Close() error { return nil }
