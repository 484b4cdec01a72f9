package ingest

import (
	"context"
	"errors"

	"github.com/dvloznov/lifelog/internal/document"
	"github.com/dvloznov/lifelog/internal/jobs"
	"github.com/dvloznov/lifelog/internal/schema"
)

// JobHandler runs document jobs through HandleDocument. Unreadable
// documents fail without retry.
func (s *Service) JobHandler() jobs.JobHandler {
	return func(ctx context.Context, job *jobs.AnalyzeDocumentJob) error {
		reply, err := s.HandleDocument(ctx, Upload{
			Document: document.Document{Name: job.DocumentName, MIMEType: job.MIMEType, Data: job.Data},
			GCSURI:   job.GCSURI,
			UserID:   job.UserID,
		})
		job.Reply = reply.Text
		job.Saved = reply.Saved

		var readErr *schema.DocumentReadError
		if errors.As(err, &readErr) {
			return jobs.Permanent(err)
		}
		return err
	}
}
