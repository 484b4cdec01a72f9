package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dvloznov/lifelog/internal/api/middleware"
	"github.com/dvloznov/lifelog/internal/document"
	"github.com/dvloznov/lifelog/internal/ingest"
	"github.com/dvloznov/lifelog/internal/jobs"
	"github.com/dvloznov/lifelog/internal/schema"
	"github.com/dvloznov/lifelog/internal/storage"
	"github.com/dvloznov/lifelog/internal/store"
	"github.com/rs/zerolog"
)

const (
	// DefaultMaxUploadBytes bounds a document upload.
	DefaultMaxUploadBytes = 20 << 20
	// DefaultMaxMessageBytes bounds the JSON body of a text message.
	DefaultMaxMessageBytes = 64 << 10
)

// MessageService handles one text message.
type MessageService interface {
	HandleMessage(ctx context.Context, msg ingest.Message) (ingest.Reply, error)
}

// Uploader archives an uploaded document.
type Uploader interface {
	Upload(ctx context.Context, bucket, object, contentType string, r io.Reader) (string, error)
}

// MessagesHandler handles message endpoints.
type MessagesHandler struct {
	service  MessageService
	userID   string
	maxBytes int64
	log      zerolog.Logger
}

// NewMessagesHandler creates a new messages handler. userID is used when a
// request names no user.
func NewMessagesHandler(service MessageService, userID string, log zerolog.Logger) *MessagesHandler {
	return &MessagesHandler{
		service:  service,
		userID:   userID,
		maxBytes: DefaultMaxMessageBytes,
		log:      log,
	}
}

type messageResponse struct {
	ingest.Reply
	Error string `json:"error,omitempty"`
}

// PostMessage handles POST /api/messages
func (h *MessagesHandler) PostMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text      string `json:"text"`
		MessageID string `json:"message_id"`
		UserID    string `json:"user_id"`
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			middleware.WriteError(w, http.StatusRequestEntityTooLarge, "Message too large")
			return
		}
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if strings.TrimSpace(req.Text) == "" {
		middleware.WriteError(w, http.StatusBadRequest, "text is required")
		return
	}
	if req.UserID == "" {
		req.UserID = h.userID
	}

	reply, err := h.service.HandleMessage(r.Context(), ingest.Message{
		Text:      req.Text,
		MessageID: req.MessageID,
		UserID:    req.UserID,
		Source:    store.SourceAPI,
	})
	if err != nil {
		middleware.WriteJSON(w, errorStatus(err), messageResponse{Reply: reply, Error: err.Error()})
		return
	}

	middleware.WriteJSON(w, http.StatusOK, messageResponse{Reply: reply})
}

// errorStatus maps pipeline failures to 422 and everything else to 500.
func errorStatus(err error) int {
	var (
		cls *schema.ClassificationError
		ext *schema.ExtractionError
		doc *schema.DocumentReadError
	)
	if errors.As(err, &cls) || errors.As(err, &ext) || errors.As(err, &doc) {
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// DocumentsHandler handles document-related endpoints.
type DocumentsHandler struct {
	publisher jobs.Publisher
	uploader  Uploader
	bucket    string
	userID    string
	maxBytes  int64
	log       zerolog.Logger
}

// NewDocumentsHandler creates a new documents handler. With an uploader and
// a bucket, every upload is also archived in GCS.
func NewDocumentsHandler(publisher jobs.Publisher, uploader Uploader, bucket, userID string, log zerolog.Logger) *DocumentsHandler {
	return &DocumentsHandler{
		publisher: publisher,
		uploader:  uploader,
		bucket:    bucket,
		userID:    userID,
		maxBytes:  DefaultMaxUploadBytes,
		log:       log,
	}
}

// CreateDocument handles POST /api/documents
// The body is either a multipart form with a "file" field or JSON naming a
// gs:// URI.
func (h *DocumentsHandler) CreateDocument(w http.ResponseWriter, r *http.Request) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	var (
		job *jobs.AnalyzeDocumentJob
		ok  bool
	)
	if mediaType == "multipart/form-data" {
		job, ok = h.fromForm(w, r)
	} else {
		job, ok = h.fromJSON(w, r)
	}
	if !ok {
		return
	}
	if job.UserID == "" {
		job.UserID = h.userID
	}

	if err := h.publisher.PublishAnalyzeDocument(r.Context(), job); err != nil {
		h.log.Error().Err(err).Msg("Failed to enqueue document job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue document job")
		return
	}

	h.log.Info().
		Str("job_id", job.JobID).
		Str("document", job.DocumentName).
		Str("gcs_uri", job.GCSURI).
		Msg("Document job enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id":        job.JobID,
		"document_name": job.DocumentName,
		"gcs_uri":       job.GCSURI,
		"status":        string(job.Status),
	})
}

func (h *DocumentsHandler) fromForm(w http.ResponseWriter, r *http.Request) (*jobs.AnalyzeDocumentJob, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)

	file, header, err := r.FormFile("file")
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		middleware.WriteError(w, http.StatusRequestEntityTooLarge, "File too large")
		return nil, false
	}
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "file is required")
		return nil, false
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		middleware.WriteError(w, http.StatusRequestEntityTooLarge, "File too large")
		return nil, false
	}
	if len(data) == 0 {
		middleware.WriteError(w, http.StatusBadRequest, "file is empty")
		return nil, false
	}

	doc := document.Document{
		Name:     filepath.Base(header.Filename),
		MIMEType: header.Header.Get("Content-Type"),
		Data:     data,
	}
	_, mimeType, err := document.DetectKind(doc)
	if err != nil {
		var readErr *schema.DocumentReadError
		if errors.As(err, &readErr) {
			middleware.WriteError(w, http.StatusUnsupportedMediaType, readErr.UserMessage())
			return nil, false
		}
		middleware.WriteError(w, http.StatusBadRequest, "Unreadable document")
		return nil, false
	}
	doc.MIMEType = mimeType

	job := &jobs.AnalyzeDocumentJob{
		DocumentName: doc.Name,
		MIMEType:     doc.MIMEType,
		Data:         doc.Data,
		UserID:       r.FormValue("user_id"),
	}

	if h.uploader != nil && h.bucket != "" {
		object := storage.ObjectName(doc.Name, time.Now())
		uri, err := h.uploader.Upload(r.Context(), h.bucket, object, doc.MIMEType, bytes.NewReader(doc.Data))
		if err != nil {
			h.log.Warn().Err(err).Str("document", doc.Name).Msg("Failed to archive upload, analyzing inline copy")
		} else {
			job.GCSURI = uri
		}
	}

	return job, true
}

func (h *DocumentsHandler) fromJSON(w http.ResponseWriter, r *http.Request) (*jobs.AnalyzeDocumentJob, bool) {
	var req struct {
		GCSURI string `json:"gcs_uri"`
		UserID string `json:"user_id"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return nil, false
	}
	if _, _, err := storage.ParseURI(req.GCSURI); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "gcs_uri must be a gs://bucket/object URI")
		return nil, false
	}

	return &jobs.AnalyzeDocumentJob{
		DocumentName: storage.FilenameFromURI(req.GCSURI),
		GCSURI:       req.GCSURI,
		UserID:       req.UserID,
	}, true
}

// JobsHandler handles job-related endpoints.
type JobsHandler struct {
	store jobs.JobStore
	log   zerolog.Logger
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(store jobs.JobStore, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{
		store: store,
		log:   log,
	}
}

// GetJob handles GET /api/jobs/{id}
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")

	job, err := h.store.GetJob(r.Context(), jobID)
	if errors.Is(err, jobs.ErrJobNotFound) {
		middleware.WriteError(w, http.StatusNotFound, "Job not found")
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("job_id", jobID).Msg("Failed to get job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to get job")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /api/jobs
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := jobs.JobFilter{
		UserID: query.Get("user_id"),
		Status: jobs.JobStatus(query.Get("status")),
	}

	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}

	if offsetStr := query.Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil {
			filter.Offset = offset
		}
	}

	jobsList, err := h.store.ListJobs(r.Context(), filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobsList,
		"count": len(jobsList),
	})
}
