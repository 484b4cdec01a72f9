package inmemory

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dvloznov/lifelog/internal/jobs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startQueue(t *testing.T, handler jobs.JobHandler) (*Queue, *Store) {
	t.Helper()
	store := NewStore()
	q := NewQueue(4, 2, store)
	q.backoff = func(int) time.Duration { return time.Millisecond }
	require.NoError(t, q.Start(context.Background(), handler))
	t.Cleanup(func() { _ = q.Close() })
	return q, store
}

func waitSettled(t *testing.T, store *Store, id string) *jobs.AnalyzeDocumentJob {
	t.Helper()
	var job *jobs.AnalyzeDocumentJob
	require.Eventually(t, func() bool {
		var err error
		job, err = store.GetJob(context.Background(), id)
		return err == nil && job.Settled()
	}, 2*time.Second, 5*time.Millisecond)
	return job
}

func TestQueueCompletesJob(t *testing.T) {
	q, store := startQueue(t, func(ctx context.Context, job *jobs.AnalyzeDocumentJob) error {
		job.Saved = 2
		job.Reply = "ok"
		return nil
	})

	job := &jobs.AnalyzeDocumentJob{DocumentName: "resumen.pdf", Data: []byte("%PDF")}
	require.NoError(t, q.PublishAnalyzeDocument(context.Background(), job))
	require.NotEmpty(t, job.JobID)

	got := waitSettled(t, store, job.JobID)
	assert.Equal(t, jobs.JobStatusCompleted, got.Status)
	assert.Equal(t, 2, got.Saved)
	assert.Equal(t, "ok", got.Reply)
	assert.Equal(t, DefaultMaxRetries, got.MaxRetries)
	assert.Nil(t, got.Data)
	assert.NotNil(t, got.StartedAt)
}

func TestQueueRetriesTransientErrors(t *testing.T) {
	var calls atomic.Int32
	q, store := startQueue(t, func(ctx context.Context, job *jobs.AnalyzeDocumentJob) error {
		if calls.Add(1) < 3 {
			return errors.New("model unavailable")
		}
		return nil
	})

	job := &jobs.AnalyzeDocumentJob{DocumentName: "a.pdf"}
	require.NoError(t, q.PublishAnalyzeDocument(context.Background(), job))

	got := waitSettled(t, store, job.JobID)
	assert.Equal(t, jobs.JobStatusCompleted, got.Status)
	assert.Equal(t, 2, got.RetryCount)
	assert.Empty(t, got.Error)
	assert.Equal(t, int32(3), calls.Load())
}

func TestQueueDoesNotRetryPermanentErrors(t *testing.T) {
	var calls atomic.Int32
	q, store := startQueue(t, func(ctx context.Context, job *jobs.AnalyzeDocumentJob) error {
		calls.Add(1)
		return jobs.Permanent(errors.New("no text"))
	})

	job := &jobs.AnalyzeDocumentJob{DocumentName: "scan.pdf"}
	require.NoError(t, q.PublishAnalyzeDocument(context.Background(), job))

	got := waitSettled(t, store, job.JobID)
	assert.Equal(t, jobs.JobStatusFailed, got.Status)
	assert.Equal(t, "no text", got.Error)
	assert.Zero(t, got.RetryCount)
	assert.Equal(t, int32(1), calls.Load())
}

func TestQueueGivesUpAfterMaxRetries(t *testing.T) {
	q, store := startQueue(t, func(ctx context.Context, job *jobs.AnalyzeDocumentJob) error {
		return errors.New("down")
	})

	job := &jobs.AnalyzeDocumentJob{DocumentName: "a.pdf", MaxRetries: 1}
	require.NoError(t, q.PublishAnalyzeDocument(context.Background(), job))

	got := waitSettled(t, store, job.JobID)
	assert.Equal(t, jobs.JobStatusFailed, got.Status)
	assert.Equal(t, 1, got.RetryCount)
}

func TestQueueRejectsAfterStop(t *testing.T) {
	q := NewQueue(1, 1, nil)
	require.NoError(t, q.Stop(context.Background()))
	assert.Error(t, q.PublishAnalyzeDocument(context.Background(), &jobs.AnalyzeDocumentJob{}))
	assert.Error(t, q.Start(context.Background(), nil))
	assert.NoError(t, q.Close())
}

func TestStoreListJobs(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	base := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)
	for i, j := range []jobs.AnalyzeDocumentJob{
		{JobID: "a", UserID: "u1", Status: jobs.JobStatusCompleted, CreatedAt: base},
		{JobID: "b", UserID: "u1", Status: jobs.JobStatusFailed, CreatedAt: base.Add(time.Minute)},
		{JobID: "c", UserID: "u2", Status: jobs.JobStatusCompleted, CreatedAt: base.Add(2 * time.Minute)},
	} {
		j := j
		require.NoError(t, s.SaveJob(ctx, &j), i)
	}

	all, err := s.ListJobs(ctx, jobs.JobFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "c", all[0].JobID)

	mine, err := s.ListJobs(ctx, jobs.JobFilter{UserID: "u1"})
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	done, err := s.ListJobs(ctx, jobs.JobFilter{Status: jobs.JobStatusCompleted, Offset: 1, Limit: 5})
	require.NoError(t, err)
	require.Len(t, done, 1)
	assert.Equal(t, "a", done[0].JobID)

	none, err := s.ListJobs(ctx, jobs.JobFilter{Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, none)

	moved := jobs.AnalyzeDocumentJob{JobID: "a", UserID: "u2", Status: jobs.JobStatusCompleted, CreatedAt: base}
	require.NoError(t, s.SaveJob(ctx, &moved))
	mine, err = s.ListJobs(ctx, jobs.JobFilter{UserID: "u1"})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "b", mine[0].JobID)
	theirs, err := s.ListJobs(ctx, jobs.JobFilter{UserID: "u2"})
	require.NoError(t, err)
	assert.Len(t, theirs, 2)

	unknown, err := s.ListJobs(ctx, jobs.JobFilter{UserID: "nobody"})
	require.NoError(t, err)
	assert.Empty(t, unknown)
}

func TestStoreListJobsPageSize(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	base := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)
	for i := range jobs.MaxPageSize + 10 {
		job := &jobs.AnalyzeDocumentJob{
			JobID:     fmt.Sprintf("job-%03d", i),
			UserID:    "owner",
			Status:    jobs.JobStatusCompleted,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, s.SaveJob(ctx, job))
	}

	tests := []struct {
		name      string
		filter    jobs.JobFilter
		wantLen   int
		wantFirst string
	}{
		{name: "default page", filter: jobs.JobFilter{}, wantLen: jobs.DefaultPageSize, wantFirst: "job-109"},
		{name: "explicit limit", filter: jobs.JobFilter{Limit: 5, Offset: 5}, wantLen: 5, wantFirst: "job-104"},
		{name: "capped limit", filter: jobs.JobFilter{Limit: 1000}, wantLen: jobs.MaxPageSize, wantFirst: "job-109"},
		{name: "negative offset", filter: jobs.JobFilter{Limit: 1, Offset: -3}, wantLen: 1, wantFirst: "job-109"},
		{name: "last partial page", filter: jobs.JobFilter{Limit: 50, Offset: 100}, wantLen: 10, wantFirst: "job-009"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := s.ListJobs(ctx, tt.filter)
			require.NoError(t, err)
			require.Len(t, page, tt.wantLen)
			assert.Equal(t, tt.wantFirst, page[0].JobID)
		})
	}
}

func TestStoreStatusTimestamps(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	clock := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return clock }

	require.NoError(t, s.SaveJob(ctx, &jobs.AnalyzeDocumentJob{JobID: "x", Status: jobs.JobStatusPending}))
	require.NoError(t, s.UpdateJobStatus(ctx, "x", jobs.JobStatusRunning, ""))
	started := clock

	clock = clock.Add(time.Minute)
	require.NoError(t, s.UpdateJobStatus(ctx, "x", jobs.JobStatusRetrying, "timeout"))
	require.NoError(t, s.UpdateJobStatus(ctx, "x", jobs.JobStatusRunning, ""))

	got, err := s.GetJob(ctx, "x")
	require.NoError(t, err)
	require.NotNil(t, got.StartedAt)
	assert.True(t, got.StartedAt.Equal(started))
	assert.Nil(t, got.CompletedAt)
	assert.Equal(t, "timeout", got.Error)

	clock = clock.Add(time.Minute)
	require.NoError(t, s.UpdateJobStatus(ctx, "x", jobs.JobStatusCompleted, ""))
	got, err = s.GetJob(ctx, "x")
	require.NoError(t, err)
	require.NotNil(t, got.CompletedAt)
	assert.True(t, got.CompletedAt.Equal(clock))
}

func TestStoreGetAndUpdate(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	_, err := s.GetJob(ctx, "missing")
	assert.ErrorIs(t, err, jobs.ErrJobNotFound)
	assert.ErrorIs(t, s.UpdateJobStatus(ctx, "missing", jobs.JobStatusFailed, ""), jobs.ErrJobNotFound)
	assert.Error(t, s.SaveJob(ctx, &jobs.AnalyzeDocumentJob{}))

	job := &jobs.AnalyzeDocumentJob{JobID: "x", Status: jobs.JobStatusPending, Data: []byte("payload")}
	require.NoError(t, s.SaveJob(ctx, job))
	require.NoError(t, s.UpdateJobStatus(ctx, "x", jobs.JobStatusFailed, "boom"))

	got, err := s.GetJob(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, jobs.JobStatusFailed, got.Status)
	assert.Equal(t, "boom", got.Error)
	assert.Nil(t, got.Data)
	assert.Equal(t, []byte("payload"), job.Data)
}

func TestPermanent(t *testing.T) {
	cause := errors.New("bad pdf")
	err := jobs.Permanent(cause)
	assert.True(t, jobs.IsPermanent(err))
	assert.ErrorIs(t, err, cause)
	assert.False(t, jobs.IsPermanent(cause))
	assert.NoError(t, jobs.Permanent(nil))
}
