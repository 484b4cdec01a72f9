// Package notion mirrors finance and journal records into Notion databases.
// Raw messages and activities are not mirrored.
package notion

import (
	"context"
	"fmt"
	"time"

	"github.com/dvloznov/lifelog/internal/logger"
	"github.com/dvloznov/lifelog/internal/schema"
	"github.com/dvloznov/lifelog/internal/store"
	"github.com/jomei/notionapi"
)

// Recorder creates one page per record, skipping keys already present.
type Recorder struct {
	service   Service
	financeDB string
	journalDB string
	now       func() time.Time
}

var _ store.Recorder = (*Recorder)(nil)

// New creates a Recorder. An empty database id disables that record kind.
func New(service Service, financeDB, journalDB string) *Recorder {
	return &Recorder{service: service, financeDB: financeDB, journalDB: journalDB, now: time.Now}
}

// exists reports whether a page with key is already in databaseID.
func (r *Recorder) exists(ctx context.Context, databaseID, key string) (bool, error) {
	resp, err := r.service.QueryDatabase(ctx, databaseID, &notionapi.DatabaseQueryRequest{
		Filter: &notionapi.PropertyFilter{
			Property: KeyProperty,
			RichText: &notionapi.TextFilterCondition{Equals: key},
		},
		PageSize: 1,
	})
	if err != nil {
		return false, err
	}
	return len(resp.Results) > 0, nil
}

func (r *Recorder) create(ctx context.Context, databaseID, key string, props notionapi.Properties) error {
	log := logger.FromContext(ctx)

	found, err := r.exists(ctx, databaseID, key)
	if err != nil {
		return err
	}
	if found {
		log.Debug().Str("key", key).Msg("Notion page already exists, skipping")
		return nil
	}
	_, err = r.service.CreatePage(ctx, databaseID, props)
	return err
}

func (r *Recorder) RecordRawMessage(ctx context.Context, msg store.RawMessage, ref store.Ref) error {
	return nil
}

func (r *Recorder) RecordTransaction(ctx context.Context, e schema.FinanceEntry, ref store.Ref) error {
	if r.financeDB == "" {
		return nil
	}
	key := ref.Key()
	props, err := TransactionProperties(e, key, ref.Source)
	if err != nil {
		return fmt.Errorf("RecordTransaction: %w", err)
	}
	if err := r.create(ctx, r.financeDB, key, props); err != nil {
		return fmt.Errorf("RecordTransaction: %w", err)
	}
	return nil
}

func (r *Recorder) RecordActivity(ctx context.Context, e schema.HealthEntry, ref store.Ref) error {
	return nil
}

func (r *Recorder) RecordJournal(ctx context.Context, e schema.JournalEntry, ref store.Ref) error {
	if r.journalDB == "" {
		return nil
	}
	at := ref.At
	if at.IsZero() {
		at = r.now()
	}
	key := ref.Key()
	if err := r.create(ctx, r.journalDB, key, JournalProperties(e, key, at)); err != nil {
		return fmt.Errorf("RecordJournal: %w", err)
	}
	return nil
}

func (r *Recorder) Close() error { return nil }
