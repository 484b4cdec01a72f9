package store

import (
	"context"
	"errors"

	"github.com/dvloznov/lifelog/internal/schema"
)

// Multi fans out every record to several recorders. If one recorder fails,
// the remaining recorders still receive the record.
type Multi struct {
	recorders []Recorder
}

var _ Recorder = (*Multi)(nil)

// NewMulti creates a Multi over recorders.
func NewMulti(recorders ...Recorder) *Multi {
	return &Multi{recorders: recorders}
}

func (m *Multi) each(fn func(Recorder) error) error {
	var errs []error
	for _, r := range m.recorders {
		if err := fn(r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *Multi) RecordRawMessage(ctx context.Context, msg RawMessage, ref Ref) error {
	return m.each(func(r Recorder) error { return r.RecordRawMessage(ctx, msg, ref) })
}

func (m *Multi) RecordTransaction(ctx context.Context, entry schema.FinanceEntry, ref Ref) error {
	return m.each(func(r Recorder) error { return r.RecordTransaction(ctx, entry, ref) })
}

func (m *Multi) RecordActivity(ctx context.Context, entry schema.HealthEntry, ref Ref) error {
	return m.each(func(r Recorder) error { return r.RecordActivity(ctx, entry, ref) })
}

func (m *Multi) RecordJournal(ctx context.Context, entry schema.JournalEntry, ref Ref) error {
	return m.each(func(r Recorder) error { return r.RecordJournal(ctx, entry, ref) })
}

// Close calls Close on every wrapped recorder, collecting errors.
func (m *Multi) Close() error {
	return m.each(func(r Recorder) error { return r.Close() })
}
