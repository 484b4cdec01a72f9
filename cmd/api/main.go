package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/lifelog/internal/api"
	"github.com/dvloznov/lifelog/internal/api/handlers"
	"github.com/dvloznov/lifelog/internal/app"
	"github.com/dvloznov/lifelog/internal/config"
	"github.com/dvloznov/lifelog/internal/jobs/inmemory"
	"github.com/dvloznov/lifelog/internal/logger"
	"github.com/dvloznov/lifelog/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		l := logger.New()
		l.Fatal().Err(err).Msg("Invalid configuration")
	}

	port := flag.String("port", cfg.Port, "HTTP server port (or set PORT env)")
	flag.Parse()

	// Initialize logger
	log := logger.NewForFormat(cfg.LogFormat).Level(logger.ParseLevel(cfg.LogLevel))

	ctx := context.Background()
	ctx = logger.WithContext(ctx, log)

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	// Wire the pipeline, stores and GCS
	a, err := app.Build(ctx, cfg, m, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize")
	}
	defer a.Close()

	// Initialize job infrastructure
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(100, cfg.Workers, jobStore)

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	log.Info().Int("workers", cfg.Workers).Msg("Starting job workers")
	if err := jobQueue.Start(workerCtx, m.JobHandler(a.Service.JobHandler())); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job consumer")
	}

	// Initialize handlers
	var uploader handlers.Uploader
	if a.GCS != nil {
		uploader = a.GCS
	}
	router := api.NewRouter(api.Handlers{
		Messages:  handlers.NewMessagesHandler(a.Service, cfg.UserID, log),
		Documents: handlers.NewDocumentsHandler(jobQueue, uploader, cfg.GCSBucket, cfg.UserID, log),
		Jobs:      handlers.NewJobsHandler(jobStore, log),
	}, log, api.Options{
		RateLimit: cfg.APIRPS,
		Burst:     cfg.APIBurst,
		Requests:  m.HTTPRequests,
		Metrics:   promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}),
	})

	// Create HTTP server. Message handling waits on the model, so the write
	// timeout is longer than a plain JSON API needs.
	server := &http.Server{
		Addr:         ":" + *port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("port", *port).Strs("stores", cfg.Stores).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Stop job queue and wait for in-flight jobs
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}
	cancelWorker()

	if err := jobQueue.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close job queue")
	}

	log.Info().Msg("Server exited")
}
