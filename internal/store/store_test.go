package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dvloznov/lifelog/internal/schema"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRefKeyIsDeterministic(t *testing.T) {
	a := Ref{Source: SourceManual, MessageID: "42", Index: 0}
	b := Ref{Source: SourceManual, MessageID: "42", Index: 0, UserID: "other", At: time.Now()}
	assert.Equal(t, a.Key(), b.Key(), "user and time are not part of the key")

	seen := map[string]bool{a.Key(): true}
	for _, r := range []Ref{
		{Source: SourceManual, MessageID: "42", Index: 1},
		{Source: SourceManual, MessageID: "43", Index: 0},
		{Source: "doc_parser_x.pdf", MessageID: "42", Index: 0},
	} {
		assert.False(t, seen[r.Key()], "collision for %+v", r)
		seen[r.Key()] = true
	}
	assert.Len(t, a.Key(), 36)
}

func TestMessageIDAndDocumentID(t *testing.T) {
	at := time.Date(2026, 10, 17, 21, 0, 0, 0, time.UTC)
	assert.Equal(t, MessageID("hola", at), MessageID("hola", at.In(time.FixedZone("ART", -3*3600))))
	assert.NotEqual(t, MessageID("hola", at), MessageID("hola", at.Add(time.Second)))
	assert.Len(t, DocumentID([]byte("x")), 24)
}

func TestFormatEmbedding(t *testing.T) {
	assert.Equal(t, "[0.5,-1,0.25]", FormatEmbedding([]float32{0.5, -1, 0.25}))
	assert.Empty(t, FormatEmbedding(nil))
}

// fakeRecorder records calls and optionally fails.
type fakeRecorder struct {
	err    error
	calls  []string
	closed bool
}

func (f *fakeRecorder) RecordRawMessage(ctx context.Context, msg RawMessage, ref Ref) error {
	f.calls = append(f.calls, "raw")
	return f.err
}

func (f *fakeRecorder) RecordTransaction(ctx context.Context, entry schema.FinanceEntry, ref Ref) error {
	f.calls = append(f.calls, "tx")
	return f.err
}

func (f *fakeRecorder) RecordActivity(ctx context.Context, entry schema.HealthEntry, ref Ref) error {
	f.calls = append(f.calls, "activity")
	return f.err
}

func (f *fakeRecorder) RecordJournal(ctx context.Context, entry schema.JournalEntry, ref Ref) error {
	f.calls = append(f.calls, "journal")
	return f.err
}

func (f *fakeRecorder) Close() error {
	f.closed = true
	return f.err
}

func TestMultiDeliversToAll(t *testing.T) {
	failing := &fakeRecorder{err: errors.New("bigquery down")}
	ok := &fakeRecorder{}
	m := NewMulti(failing, ok)
	ctx := context.Background()

	err := m.RecordTransaction(ctx, schema.FinanceEntry{Amount: decimal.NewFromInt(1)}, Ref{})
	assert.EqualError(t, err, "bigquery down")
	assert.Error(t, m.RecordActivity(ctx, schema.HealthEntry{}, Ref{}))
	require.NoError(t, NewMulti(ok).RecordJournal(ctx, schema.JournalEntry{}, Ref{}))
	assert.Error(t, m.RecordRawMessage(ctx, RawMessage{}, Ref{}))
	assert.Error(t, m.Close())

	assert.Equal(t, []string{"tx", "activity", "raw"}, failing.calls)
	assert.Equal(t, []string{"tx", "activity", "journal", "raw"}, ok.calls)
	assert.True(t, failing.closed)
	assert.True(t, ok.closed)
}

func TestMultiJoinsErrors(t *testing.T) {
	a := &fakeRecorder{err: errors.New("a")}
	b := &fakeRecorder{err: errors.New("b")}
	err := NewMulti(a, b).RecordJournal(context.Background(), schema.JournalEntry{}, Ref{})
	require.Error(t, err)
	assert.ErrorIs(t, err, a.err)
	assert.ErrorIs(t, err, b.err)
}

func TestLogRecorder(t *testing.T) {
	var r Recorder = Log{}
	ctx := context.Background()
	assert.NoError(t, r.RecordRawMessage(ctx, RawMessage{Content: "hola"}, Ref{}))
	assert.NoError(t, r.RecordTransaction(ctx, schema.FinanceEntry{Amount: decimal.NewFromInt(5)}, Ref{}))
	assert.NoError(t, r.RecordActivity(ctx, schema.HealthEntry{ActivityType: "meal"}, Ref{}))
	assert.NoError(t, r.RecordJournal(ctx, schema.JournalEntry{MoodScore: 5}, Ref{}))
	assert.NoError(t, r.Close())
}
