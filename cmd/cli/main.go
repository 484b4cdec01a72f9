package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dvloznov/lifelog/internal/app"
	"github.com/dvloznov/lifelog/internal/config"
	"github.com/dvloznov/lifelog/internal/document"
	"github.com/dvloznov/lifelog/internal/ingest"
	"github.com/dvloznov/lifelog/internal/logger"
	"github.com/dvloznov/lifelog/internal/storage"
	"github.com/dvloznov/lifelog/internal/store"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

func main() {
	log := logger.New()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	log = log.Level(logger.ParseLevel(cfg.LogLevel))

	switch os.Args[1] {
	case "process":
		runProcess(cfg, log)
	case "analyze":
		runAnalyze(cfg, log)
	case "upload":
		runUpload(cfg, log)
	case "taxonomy":
		runTaxonomy(cfg, log)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Lifelog CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  process   Classify a text, extract its record and store it")
	fmt.Println("  analyze   Extract transactions from a PDF or image, local or in GCS")
	fmt.Println("  upload    Upload a file to GCS")
	fmt.Println("  taxonomy  Print the active finance taxonomy")
	fmt.Println("  help      Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

func build(ctx context.Context, cfg config.Config, log zerolog.Logger) *app.App {
	a, err := app.Build(ctx, cfg, nil, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize")
	}
	return a
}

func runProcess(cfg config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("process", flag.ExitOnError)
	text := fs.String("text", "", "Text to process")
	dryRun := fs.Bool("dry-run", false, "Print the result without storing it")
	fs.Parse(os.Args[2:])

	if *text == "" {
		log.Fatal().Msg("Usage: cli process -text TEXT [-dry-run]")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	a := build(ctx, cfg, log)
	defer a.Close()

	if *dryRun {
		result, err := a.Processor.ProcessInput(ctx, *text)
		if err != nil {
			log.Fatal().Err(err).Msg("Processing failed")
		}
		printJSON(result)
		return
	}

	reply, err := a.Service.HandleMessage(ctx, ingest.Message{
		Text:   *text,
		UserID: cfg.UserID,
		Source: store.SourceCLI,
	})
	fmt.Println(reply.Text)
	if reply.Result != nil {
		printJSON(reply.Result)
	}
	if err != nil {
		os.Exit(1)
	}
}

func runAnalyze(cfg config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	filePath := fs.String("file", "", "Path to a local PDF or image")
	gcsURI := fs.String("gcs-uri", "", "GCS URI of a PDF or image")
	fs.Parse(os.Args[2:])

	if (*filePath == "") == (*gcsURI == "") {
		log.Fatal().Msg("Usage: cli analyze -file PATH | -gcs-uri URI")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	a := build(ctx, cfg, log)
	defer a.Close()

	var up ingest.Upload
	service := a.Service
	if *filePath != "" {
		data, err := os.ReadFile(*filePath)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to read file")
		}
		up.Document = document.Document{Name: filepath.Base(*filePath), Data: data}
	} else {
		up.GCSURI = *gcsURI
		if a.GCS == nil {
			gcs, err := storage.NewGCS(ctx)
			if err != nil {
				log.Fatal().Err(err).Msg("Failed to create GCS client")
			}
			defer gcs.Close()
			service = ingest.NewService(a.Processor, a.Analyzer, gcs, a.Recorder)
		}
	}
	up.UserID = cfg.UserID

	log.Info().Str("file", *filePath).Str("gcs_uri", *gcsURI).Msg("Analyzing document")

	reply, err := service.HandleDocument(ctx, up)
	fmt.Println(reply.Text)
	if err != nil {
		os.Exit(1)
	}
}

func runUpload(cfg config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	bucketName := fs.String("bucket", cfg.GCSBucket, "GCS bucket name (or set GCS_BUCKET env)")
	filePath := fs.String("file", "", "Path to local file")
	contentType := fs.String("content-type", "", "Content type (detected when empty)")
	fs.Parse(os.Args[2:])

	if *bucketName == "" || *filePath == "" {
		log.Fatal().Msg("Usage: cli upload -bucket NAME -file PATH")
	}

	ctx := context.Background()
	ctx = logger.WithContext(ctx, log)

	if *contentType == "" {
		data, err := os.ReadFile(*filePath)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to read file")
		}
		if _, mt, err := document.DetectKind(document.Document{Name: filepath.Base(*filePath), Data: data}); err == nil {
			*contentType = mt
		}
	}

	gcs, err := storage.NewGCS(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create GCS client")
	}
	defer gcs.Close()

	log.Info().
		Str("bucket", *bucketName).
		Str("file", *filePath).
		Str("content_type", *contentType).
		Msg("Uploading file to GCS")

	uri, err := gcs.UploadFile(ctx, *bucketName, *filePath, *contentType)
	if err != nil {
		log.Fatal().Err(err).Msg("Upload failed")
	}

	fmt.Printf("Uploaded %s to %s\n", *filePath, uri)
}

func runTaxonomy(cfg config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("taxonomy", flag.ExitOnError)
	fs.Parse(os.Args[2:])

	tax, err := app.Taxonomy(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load taxonomy")
	}

	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)
	defer enc.Close()
	if err := enc.Encode(tax); err != nil {
		log.Fatal().Err(err).Msg("Failed to print taxonomy")
	}
}

func printJSON(v any) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Println(v)
		return
	}
	fmt.Println(string(b))
}
