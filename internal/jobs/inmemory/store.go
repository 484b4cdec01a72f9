package inmemory

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/dvloznov/lifelog/internal/jobs"
)

// Store keeps document jobs in memory, indexed by owner so the jobs endpoint
// can list one user's uploads without a full scan. Payloads are never held:
// a stored job always has Data cleared. Everything is lost on restart.
type Store struct {
	mu     sync.RWMutex
	byID   map[string]*jobs.AnalyzeDocumentJob
	byUser map[string]map[string]struct{}
	now    func() time.Time
}

// NewStore creates an empty job store.
func NewStore() *Store {
	return &Store{
		byID:   make(map[string]*jobs.AnalyzeDocumentJob),
		byUser: make(map[string]map[string]struct{}),
		now:    time.Now,
	}
}

var errMissingJobID = errors.New("job ID is required")

// SaveJob stores a copy of job without its payload.
func (s *Store) SaveJob(ctx context.Context, job *jobs.AnalyzeDocumentJob) error {
	if job.JobID == "" {
		return errMissingJobID
	}

	stored := *job
	stored.Data = nil

	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.byID[job.JobID]; ok && prev.UserID != job.UserID {
		s.unindex(prev)
	}
	s.byID[job.JobID] = &stored
	owned, ok := s.byUser[job.UserID]
	if !ok {
		owned = make(map[string]struct{})
		s.byUser[job.UserID] = owned
	}
	owned[job.JobID] = struct{}{}
	return nil
}

func (s *Store) unindex(job *jobs.AnalyzeDocumentJob) {
	owned := s.byUser[job.UserID]
	delete(owned, job.JobID)
	if len(owned) == 0 {
		delete(s.byUser, job.UserID)
	}
}

// GetJob returns a copy of the job or ErrJobNotFound.
func (s *Store) GetJob(ctx context.Context, jobID string) (*jobs.AnalyzeDocumentJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.byID[jobID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", jobs.ErrJobNotFound, jobID)
	}
	found := *job
	return &found, nil
}

// ListJobs returns one page of matching jobs, newest upload first. Jobs
// created at the same instant are ordered by ID.
func (s *Store) ListJobs(ctx context.Context, filter jobs.JobFilter) ([]*jobs.AnalyzeDocumentJob, error) {
	s.mu.RLock()
	var matched []*jobs.AnalyzeDocumentJob
	keep := func(job *jobs.AnalyzeDocumentJob) {
		if filter.Status == "" || job.Status == filter.Status {
			found := *job
			matched = append(matched, &found)
		}
	}
	if filter.UserID != "" {
		for id := range s.byUser[filter.UserID] {
			keep(s.byID[id])
		}
	} else {
		for _, job := range s.byID {
			keep(job)
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(matched, func(a, b *jobs.AnalyzeDocumentJob) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.JobID, b.JobID)
	})

	start := min(max(filter.Offset, 0), len(matched))
	end := min(start+filter.PageSize(), len(matched))
	return append([]*jobs.AnalyzeDocumentJob{}, matched[start:end]...), nil
}

// UpdateJobStatus moves a job to status. Running stamps StartedAt once and
// a settled status stamps CompletedAt. A non-empty errorMsg replaces Error.
func (s *Store) UpdateJobStatus(ctx context.Context, jobID string, status jobs.JobStatus, errorMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.byID[jobID]
	if !ok {
		return fmt.Errorf("%w: %s", jobs.ErrJobNotFound, jobID)
	}

	now := s.now()
	job.Status = status
	if status == jobs.JobStatusRunning && job.StartedAt == nil {
		job.StartedAt = &now
	}
	if job.Settled() {
		job.CompletedAt = &now
	}
	if errorMsg != "" {
		job.Error = errorMsg
	}
	return nil
}

var _ jobs.JobStore = (*Store)(nil)
