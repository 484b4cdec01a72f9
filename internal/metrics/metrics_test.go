package metrics

import (
	"context"
	"errors"
	"testing"

	"github.com/dvloznov/lifelog/internal/jobs"
	"github.com/dvloznov/lifelog/internal/llm"
	"github.com/dvloznov/lifelog/internal/pipeline"
	"github.com/dvloznov/lifelog/internal/schema"
	"github.com/dvloznov/lifelog/internal/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type processorFunc func(ctx context.Context, text string) (pipeline.Result, error)

func (f processorFunc) ProcessInput(ctx context.Context, text string) (pipeline.Result, error) {
	return f(ctx, text)
}

func TestModel(t *testing.T) {
	m := New(prometheus.NewRegistry())
	calls := 0
	model := m.Model(llm.ModelFunc(func(ctx context.Context, req llm.Request) (string, error) {
		calls++
		if calls == 2 {
			return "", errors.New("quota")
		}
		return `{"ok":true}`, nil
	}))

	out, err := model.Generate(context.Background(), llm.Request{Name: "routing"})
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, out)
	_, err = model.Generate(context.Background(), llm.Request{Name: "routing"})
	assert.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ModelRequests.WithLabelValues("routing", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ModelRequests.WithLabelValues("routing", "error")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.ModelDuration))
}

func TestProcessor(t *testing.T) {
	m := New(prometheus.NewRegistry())
	results := []error{
		nil,
		&schema.ClassificationError{Err: errors.New("no category")},
		&schema.ExtractionError{Stage: schema.StageEmbedding, Err: schema.ErrDimensionMismatch},
	}
	i := 0
	p := m.Processor(processorFunc(func(ctx context.Context, text string) (pipeline.Result, error) {
		err := results[i]
		i++
		if err != nil {
			return pipeline.Result{}, err
		}
		return pipeline.Result{Category: schema.Journal, Confidence: 0.9}, nil
	}))

	for range results {
		_, _ = p.ProcessInput(context.Background(), "x")
	}
	assert.Equal(t, 1.0, testutil.ToFloat64(m.InputsTotal.WithLabelValues("JOURNAL")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StageErrorsTotal.WithLabelValues("routing")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StageErrorsTotal.WithLabelValues("embedding")))
}

func TestRecorder(t *testing.T) {
	m := New(prometheus.NewRegistry())
	failing := store.NewMulti(store.Log{}, errRecorder{})
	r := m.Recorder(failing)
	ctx := context.Background()

	assert.Error(t, r.RecordTransaction(ctx, schema.FinanceEntry{}, store.Ref{}))
	assert.Error(t, r.RecordJournal(ctx, schema.JournalEntry{}, store.Ref{}))
	ok := m.Recorder(store.Log{})
	assert.NoError(t, ok.RecordActivity(ctx, schema.HealthEntry{}, store.Ref{}))
	assert.NoError(t, ok.RecordRawMessage(ctx, store.RawMessage{}, store.Ref{}))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RecordsTotal.WithLabelValues("transaction", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RecordsTotal.WithLabelValues("journal", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RecordsTotal.WithLabelValues("activity", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RecordsTotal.WithLabelValues("raw_message", "ok")))
	assert.NoError(t, ok.Close())
}

func TestJobHandler(t *testing.T) {
	m := New(prometheus.NewRegistry())
	errs := []error{nil, errors.New("transient"), jobs.Permanent(errors.New("bad pdf"))}
	for _, want := range errs {
		h := m.JobHandler(func(ctx context.Context, job *jobs.AnalyzeDocumentJob) error { return want })
		_ = h(context.Background(), &jobs.AnalyzeDocumentJob{MaxRetries: 3})
	}
	h := m.JobHandler(func(ctx context.Context, job *jobs.AnalyzeDocumentJob) error { return errors.New("again") })
	_ = h(context.Background(), &jobs.AnalyzeDocumentJob{RetryCount: 3, MaxRetries: 3})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.JobsTotal.WithLabelValues("completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.JobsTotal.WithLabelValues("retrying")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.JobsTotal.WithLabelValues("failed")))
}

type errRecorder struct{}

func (errRecorder) RecordRawMessage(context.Context, store.RawMessage, store.Ref) error {
	return errors.New("down")
}
func (errRecorder) RecordTransaction(context.Context, schema.FinanceEntry, store.Ref) error {
	return errors.New("down")
}
func (errRecorder) RecordActivity(context.Context, schema.HealthEntry, store.Ref) error {
	return errors.New("down")
}
func (errRecorder) RecordJournal(context.Context, schema.JournalEntry, store.Ref) error {
	return errors.New("down")
}
func (errRecorder) Close() error { return nil }
