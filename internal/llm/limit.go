package llm

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// Limited waits on a token bucket before every call. It adds no retry.
type Limited struct {
	next    Model
	limiter *rate.Limiter
}

// WithRateLimit wraps m so that calls are paced by limiter.
func WithRateLimit(m Model, limiter *rate.Limiter) *Limited {
	return &Limited{next: m, limiter: limiter}
}

// Generate implements Model.
func (l *Limited) Generate(ctx context.Context, req Request) (string, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit: %w", err)
	}
	return l.next.Generate(ctx, req)
}
