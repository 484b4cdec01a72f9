// Package bigquery streams lifelog records into BigQuery tables. The
// idempotency key doubles as the streaming insert id, so BigQuery drops
// retried rows on its side.
package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/lifelog/internal/schema"
	"github.com/dvloznov/lifelog/internal/store"
	"google.golang.org/api/option"
)

// Putter is the part of *bigquery.Inserter the recorder uses.
type Putter interface {
	Put(ctx context.Context, src interface{}) error
}

// Recorder holds a shared BigQuery client for all inserts.
type Recorder struct {
	client *bigquery.Client
	table  func(name string) Putter
	now    func() time.Time
}

var _ store.Recorder = (*Recorder)(nil)

// New creates a Recorder writing to projectID.datasetID.
func New(ctx context.Context, projectID, datasetID string, opts ...option.ClientOption) (*Recorder, error) {
	if projectID == "" || datasetID == "" {
		return nil, fmt.Errorf("bigquery.New: project and dataset are required")
	}
	client, err := bigquery.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("bigquery.New: creating client: %w", err)
	}
	dataset := client.DatasetInProject(projectID, datasetID)
	return &Recorder{
		client: client,
		table: func(name string) Putter {
			return dataset.Table(name).Inserter()
		},
		now: time.Now,
	}, nil
}

// NewWithTables creates a Recorder over custom table inserters.
func NewWithTables(table func(name string) Putter) *Recorder {
	return &Recorder{table: table, now: time.Now}
}

func (r *Recorder) createdAt(ref store.Ref) time.Time {
	if !ref.At.IsZero() {
		return ref.At
	}
	return r.now()
}

func (r *Recorder) put(ctx context.Context, table string, row interface{}, key string) error {
	saver := &bigquery.StructSaver{Struct: row, InsertID: key}
	if err := r.table(table).Put(ctx, saver); err != nil {
		return fmt.Errorf("inserting into %s: %w", table, err)
	}
	return nil
}

func (r *Recorder) RecordRawMessage(ctx context.Context, msg store.RawMessage, ref store.Ref) error {
	if err := r.put(ctx, rawLogsTable, rawLogRow(msg, ref, r.createdAt(ref)), ref.Key()); err != nil {
		return fmt.Errorf("RecordRawMessage: %w", err)
	}
	return nil
}

func (r *Recorder) RecordTransaction(ctx context.Context, e schema.FinanceEntry, ref store.Ref) error {
	row, err := transactionRow(e, ref, r.createdAt(ref))
	if err != nil {
		return fmt.Errorf("RecordTransaction: %w", err)
	}
	if err := r.put(ctx, transactionsTable, row, row.ID); err != nil {
		return fmt.Errorf("RecordTransaction: %w", err)
	}
	return nil
}

func (r *Recorder) RecordActivity(ctx context.Context, e schema.HealthEntry, ref store.Ref) error {
	row, err := activityRow(e, ref, r.createdAt(ref))
	if err != nil {
		return fmt.Errorf("RecordActivity: %w", err)
	}
	if err := r.put(ctx, activitiesTable, row, row.ID); err != nil {
		return fmt.Errorf("RecordActivity: %w", err)
	}
	return nil
}

func (r *Recorder) RecordJournal(ctx context.Context, e schema.JournalEntry, ref store.Ref) error {
	row := journalRow(e, ref, r.createdAt(ref))
	if err := r.put(ctx, journalTable, row, row.ID); err != nil {
		return fmt.Errorf("RecordJournal: %w", err)
	}
	return nil
}

// Close closes the BigQuery client connection.
func (r *Recorder) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}
