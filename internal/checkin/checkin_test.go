package checkin

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockNotifier is a mock implementation of Notifier.
type MockNotifier struct {
	NotifyFunc func(ctx context.Context, text string) error
}

func (m *MockNotifier) Notify(ctx context.Context, text string) error {
	return m.NotifyFunc(ctx, text)
}

func testWebhook(url string) *Webhook {
	w := NewWebhook(url, "user-1")
	w.now = func() time.Time { return time.Date(2026, 10, 17, 21, 0, 0, 0, time.UTC) }
	w.backoff = func(int) time.Duration { return time.Millisecond }
	return w
}

func TestWebhookNotify(t *testing.T) {
	var got Payload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	require.NoError(t, testWebhook(srv.URL).Notify(context.Background(), Prompt))
	assert.Equal(t, "user-1", got.UserID)
	assert.Equal(t, Prompt, got.Text)
	assert.True(t, got.SentAt.Equal(time.Date(2026, 10, 17, 21, 0, 0, 0, time.UTC)))
}

func TestWebhookRetries(t *testing.T) {
	tests := []struct {
		name      string
		statuses  []int
		wantCalls int32
		wantErr   string
	}{
		{"recovers after 5xx", []int{500, 502, 200}, 3, ""},
		{"no retry on 4xx", []int{404}, 1, "HTTP 404"},
		{"gives up", []int{503, 503, 503, 503, 503}, maxRetries + 1, "HTTP 503"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				n := calls.Add(1)
				w.WriteHeader(tt.statuses[n-1])
			}))
			defer srv.Close()

			err := testWebhook(srv.URL).Notify(context.Background(), "hi")
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.ErrorContains(t, err, tt.wantErr)
			}
			assert.Equal(t, tt.wantCalls, calls.Load())
		})
	}
}

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	n := LogNotifier{Log: zerolog.New(&buf)}

	require.NoError(t, n.Notify(context.Background(), Prompt))
	assert.Contains(t, buf.String(), "Check-in")
	assert.Contains(t, buf.String(), "check-in diario")
}

func TestSchedulerNext(t *testing.T) {
	loc, err := time.LoadLocation("America/Argentina/Buenos_Aires")
	require.NoError(t, err)

	s, err := NewScheduler("0 21 * * *", loc, LogNotifier{Log: zerolog.Nop()}, zerolog.Nop())
	require.NoError(t, err)

	morning := time.Date(2026, 10, 17, 10, 0, 0, 0, loc)
	assert.WithinDuration(t, time.Date(2026, 10, 17, 21, 0, 0, 0, loc), s.Next(morning), 0)

	late := time.Date(2026, 10, 17, 22, 30, 0, 0, loc)
	assert.WithinDuration(t, time.Date(2026, 10, 18, 21, 0, 0, 0, loc), s.Next(late), 0)

	utc := time.Date(2026, 10, 17, 23, 0, 0, 0, time.UTC) // 20:00 in Buenos Aires
	assert.WithinDuration(t, time.Date(2026, 10, 17, 21, 0, 0, 0, loc), s.Next(utc), 0)
}

func TestSchedulerInvalidSpec(t *testing.T) {
	_, err := NewScheduler("every night", time.UTC, LogNotifier{}, zerolog.Nop())
	assert.ErrorContains(t, err, "invalid schedule")
}

func TestSchedulerRun(t *testing.T) {
	var sent string
	mock := &MockNotifier{NotifyFunc: func(ctx context.Context, text string) error {
		sent = text
		return nil
	}}
	s, err := NewScheduler("0 21 * * *", time.UTC, mock, zerolog.Nop())
	require.NoError(t, err)

	require.NoError(t, s.Run(context.Background()))
	assert.Equal(t, Prompt, sent)

	mock.NotifyFunc = func(ctx context.Context, text string) error { return errors.New("down") }
	assert.EqualError(t, s.Run(context.Background()), "down")
}

func TestSchedulerStartStop(t *testing.T) {
	s, err := NewScheduler("* * * * *", time.UTC, LogNotifier{Log: zerolog.Nop()}, zerolog.Nop())
	require.NoError(t, err)

	s.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, s.Stop(ctx))
}
