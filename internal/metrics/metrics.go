// Package metrics exposes Prometheus instruments for the pipeline and
// wrappers that record them around models, processors and recorders.
package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/dvloznov/lifelog/internal/jobs"
	"github.com/dvloznov/lifelog/internal/llm"
	"github.com/dvloznov/lifelog/internal/pipeline"
	"github.com/dvloznov/lifelog/internal/schema"
	"github.com/dvloznov/lifelog/internal/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the lifelog instruments. All names carry the "lifelog_"
// prefix.
//
//   - lifelog_inputs_total{category}
//   - lifelog_stage_errors_total{stage}
//   - lifelog_model_requests_total{request,outcome}
//   - lifelog_model_request_duration_seconds{request}
//   - lifelog_records_total{kind,outcome}
//   - lifelog_jobs_total{status}
//   - lifelog_http_requests_total{code,method}
type Metrics struct {
	InputsTotal      *prometheus.CounterVec
	StageErrorsTotal *prometheus.CounterVec
	ModelRequests    *prometheus.CounterVec
	ModelDuration    *prometheus.HistogramVec
	RecordsTotal     *prometheus.CounterVec
	JobsTotal        *prometheus.CounterVec
	HTTPRequests     *prometheus.CounterVec
}

// New registers the instruments with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		InputsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lifelog_inputs_total",
				Help: "Inputs processed, by routed category",
			},
			[]string{"category"},
		),
		StageErrorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lifelog_stage_errors_total",
				Help: "Failed inputs, by the stage that failed",
			},
			[]string{"stage"},
		),
		ModelRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lifelog_model_requests_total",
				Help: "Generative model calls, by request name and outcome",
			},
			[]string{"request", "outcome"},
		),
		ModelDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "lifelog_model_request_duration_seconds",
				Help:    "Latency of generative model calls",
				Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32},
			},
			[]string{"request"},
		),
		RecordsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lifelog_records_total",
				Help: "Record inserts, by record kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		JobsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lifelog_jobs_total",
				Help: "Document job runs, by the status they lead to",
			},
			[]string{"status"},
		),
		HTTPRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lifelog_http_requests_total",
				Help: "HTTP requests, by status code and method",
			},
			[]string{"code", "method"},
		),
	}
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// stageOf names the stage behind a pipeline error.
func stageOf(err error) string {
	var (
		cls *schema.ClassificationError
		ext *schema.ExtractionError
		doc *schema.DocumentReadError
	)
	switch {
	case errors.As(err, &cls):
		return string(schema.StageRouting)
	case errors.As(err, &ext):
		return string(ext.Stage)
	case errors.As(err, &doc):
		return string(schema.StageDocument)
	default:
		return "unknown"
	}
}

// Model wraps an llm.Model, timing and counting every call.
func (m *Metrics) Model(next llm.Model) llm.Model {
	return llm.ModelFunc(func(ctx context.Context, req llm.Request) (string, error) {
		start := time.Now()
		out, err := next.Generate(ctx, req)
		m.ModelDuration.WithLabelValues(req.Name).Observe(time.Since(start).Seconds())
		m.ModelRequests.WithLabelValues(req.Name, outcome(err)).Inc()
		return out, err
	})
}

// Processor is the ProcessInput entry point.
type Processor interface {
	ProcessInput(ctx context.Context, text string) (pipeline.Result, error)
}

type processor struct {
	next Processor
	m    *Metrics
}

// Processor wraps next, counting routed categories and failed stages.
func (m *Metrics) Processor(next Processor) Processor {
	return &processor{next: next, m: m}
}

func (p *processor) ProcessInput(ctx context.Context, text string) (pipeline.Result, error) {
	result, err := p.next.ProcessInput(ctx, text)
	if err != nil {
		p.m.StageErrorsTotal.WithLabelValues(stageOf(err)).Inc()
		return result, err
	}
	p.m.InputsTotal.WithLabelValues(result.Category.String()).Inc()
	return result, nil
}

type recorder struct {
	next store.Recorder
	m    *Metrics
}

// Recorder wraps next, counting inserts per record kind.
func (m *Metrics) Recorder(next store.Recorder) store.Recorder {
	return &recorder{next: next, m: m}
}

func (r *recorder) count(kind string, err error) error {
	r.m.RecordsTotal.WithLabelValues(kind, outcome(err)).Inc()
	return err
}

func (r *recorder) RecordRawMessage(ctx context.Context, msg store.RawMessage, ref store.Ref) error {
	return r.count("raw_message", r.next.RecordRawMessage(ctx, msg, ref))
}

func (r *recorder) RecordTransaction(ctx context.Context, e schema.FinanceEntry, ref store.Ref) error {
	return r.count("transaction", r.next.RecordTransaction(ctx, e, ref))
}

func (r *recorder) RecordActivity(ctx context.Context, e schema.HealthEntry, ref store.Ref) error {
	return r.count("activity", r.next.RecordActivity(ctx, e, ref))
}

func (r *recorder) RecordJournal(ctx context.Context, e schema.JournalEntry, ref store.Ref) error {
	return r.count("journal", r.next.RecordJournal(ctx, e, ref))
}

func (r *recorder) Close() error { return r.next.Close() }

// JobHandler wraps next, counting each run by the status it leads to.
// A retried run counts as "retrying".
func (m *Metrics) JobHandler(next jobs.JobHandler) jobs.JobHandler {
	return func(ctx context.Context, job *jobs.AnalyzeDocumentJob) error {
		err := next(ctx, job)
		switch {
		case err == nil:
			m.JobsTotal.WithLabelValues(string(jobs.JobStatusCompleted)).Inc()
		case jobs.IsPermanent(err) || job.RetryCount >= job.MaxRetries:
			m.JobsTotal.WithLabelValues(string(jobs.JobStatusFailed)).Inc()
		default:
			m.JobsTotal.WithLabelValues(string(jobs.JobStatusRetrying)).Inc()
		}
		return err
	}
}
