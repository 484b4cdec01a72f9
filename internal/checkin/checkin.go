// Package checkin sends the nightly mood check-in prompt on a cron schedule.
package checkin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Prompt is the check-in text sent to the user.
const Prompt = "🌙 Buenas noches. Es hora de tu check-in diario.\n¿Cómo te sentiste hoy? (Del 1 al 10) ¿Qué tal estuvo tu día?"

const (
	defaultTimeout = 10 * time.Second
	maxRetries     = 3
)

// Notifier delivers a check-in prompt.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// Payload is the JSON body POSTed by Webhook.
type Payload struct {
	UserID string    `json:"user_id,omitempty"`
	Text   string    `json:"text"`
	SentAt time.Time `json:"sent_at"`
}

// Webhook POSTs the prompt as JSON. Retries on 5xx with exponential backoff.
type Webhook struct {
	client *http.Client
	url    string
	userID string
	now    func() time.Time
	// backoff is the wait before retry n (n >= 1).
	backoff func(n int) time.Duration
}

// NewWebhook creates a webhook notifier targeting url.
func NewWebhook(url, userID string) *Webhook {
	return &Webhook{
		client:  &http.Client{Timeout: defaultTimeout},
		url:     url,
		userID:  userID,
		now:     time.Now,
		backoff: func(n int) time.Duration { return time.Duration(1<<(n-1)) * time.Second },
	}
}

// Notify implements Notifier.
func (w *Webhook) Notify(ctx context.Context, text string) error {
	body, err := json.Marshal(Payload{UserID: w.userID, Text: text, SentAt: w.now().UTC()})
	if err != nil {
		return fmt.Errorf("webhook: marshal: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(w.backoff(attempt)):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("webhook: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := w.client.Do(req)
		if err != nil {
			return fmt.Errorf("webhook: %w", err)
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil
		}
		lastErr = fmt.Errorf("webhook: HTTP %d", resp.StatusCode)
		if resp.StatusCode < 500 {
			return lastErr
		}
	}
	return lastErr
}

// LogNotifier writes the prompt to the log. Used when no webhook is set.
type LogNotifier struct {
	Log zerolog.Logger
}

// Notify implements Notifier.
func (n LogNotifier) Notify(ctx context.Context, text string) error {
	n.Log.Info().Str("text", text).Msg("Check-in")
	return nil
}

// Scheduler fires the check-in on a standard five-field cron expression.
type Scheduler struct {
	cron     *cron.Cron
	schedule cron.Schedule
	loc      *time.Location
	notifier Notifier
	log      zerolog.Logger
}

// NewScheduler parses expr and registers the check-in job in loc.
func NewScheduler(expr string, loc *time.Location, notifier Notifier, log zerolog.Logger) (*Scheduler, error) {
	schedule, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, fmt.Errorf("checkin: invalid schedule %q: %w", expr, err)
	}
	if loc == nil {
		loc = time.Local
	}

	s := &Scheduler{
		cron:     cron.New(cron.WithLocation(loc)),
		schedule: schedule,
		loc:      loc,
		notifier: notifier,
		log:      log,
	}
	s.cron.Schedule(schedule, cron.FuncJob(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*defaultTimeout*maxRetries)
		defer cancel()
		if err := s.Run(ctx); err != nil {
			s.log.Error().Err(err).Msg("Check-in failed")
		}
	}))
	return s, nil
}

// Run sends one check-in now.
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.notifier.Notify(ctx, Prompt); err != nil {
		return err
	}
	s.log.Info().Time("next", s.Next(time.Now())).Msg("Check-in sent")
	return nil
}

// Next is the first run after from.
func (s *Scheduler) Next(from time.Time) time.Time {
	return s.schedule.Next(from.In(s.loc))
}

// Start runs the scheduler in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Time("next", s.Next(time.Now())).Msg("Check-in scheduler started")
}

// Stop stops the scheduler and waits for a running check-in, bounded by ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	select {
	case <-s.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
