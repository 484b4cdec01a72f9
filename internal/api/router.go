// Package api assembles the HTTP surface: message and document intake, job
// status, health and metrics.
package api

import (
	"net/http"
	"time"

	"github.com/dvloznov/lifelog/internal/api/handlers"
	"github.com/dvloznov/lifelog/internal/api/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// Handlers are the endpoint groups served by the router.
type Handlers struct {
	Messages  *handlers.MessagesHandler
	Documents *handlers.DocumentsHandler
	Jobs      *handlers.JobsHandler
}

// Options tune the middleware chain.
type Options struct {
	// RateLimit is requests per second per client IP; zero disables it.
	RateLimit float64
	Burst     int
	// Requests counts served requests when set.
	Requests *prometheus.CounterVec
	// Metrics serves /metrics when set.
	Metrics http.Handler
}

// NewRouter routes the endpoints and applies the middleware chain.
func NewRouter(h Handlers, log zerolog.Logger, opts Options) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/messages", h.Messages.PostMessage)
	mux.HandleFunc("POST /api/documents", h.Documents.CreateDocument)
	mux.HandleFunc("GET /api/jobs", h.Jobs.ListJobs)
	mux.HandleFunc("GET /api/jobs/{id}", h.Jobs.GetJob)

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	if opts.Metrics != nil {
		mux.Handle("GET /metrics", opts.Metrics)
	}

	var handler http.Handler = mux
	if opts.RateLimit > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		handler = middleware.NewRateLimiter(opts.RateLimit, burst).Middleware(handler)
	}

	return middleware.Recovery(log)(
		middleware.Logger(log)(
			middleware.Instrument(opts.Requests)(
				middleware.RequestID(log)(
					middleware.CORS(handler),
				),
			),
		),
	)
}
