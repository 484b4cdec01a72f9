package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/lifelog/internal/checkin"
	"github.com/dvloznov/lifelog/internal/config"
	"github.com/dvloznov/lifelog/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		l := logger.New()
		l.Fatal().Err(err).Msg("Invalid configuration")
	}

	schedule := flag.String("schedule", cfg.CheckinCron, "Cron schedule (or set LIFELOG_CHECKIN_CRON env)")
	now := flag.Bool("now", false, "Send one check-in and exit")
	flag.Parse()

	// Initialize logger
	log := logger.NewForFormat(cfg.LogFormat).Level(logger.ParseLevel(cfg.LogLevel))

	var notifier checkin.Notifier = checkin.LogNotifier{Log: log}
	if cfg.CheckinWebhook != "" {
		notifier = checkin.NewWebhook(cfg.CheckinWebhook, cfg.UserID)
	} else {
		log.Warn().Msg("No check-in webhook configured - prompts will only be logged")
	}

	scheduler, err := checkin.NewScheduler(*schedule, cfg.Location(), notifier, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create scheduler")
	}

	if *now {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := scheduler.Run(ctx); err != nil {
			log.Fatal().Err(err).Msg("Check-in failed")
		}
		return
	}

	scheduler.Start()
	log.Info().Str("schedule", *schedule).Str("timezone", cfg.Timezone).Msg("Check-in service started, waiting for schedule...")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down check-in service...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := scheduler.Stop(ctx); err != nil {
		log.Error().Err(err).Msg("Error stopping scheduler")
	}

	log.Info().Msg("Check-in service stopped")
}
