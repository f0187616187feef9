package github

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Pacer gates every outbound search request. *rate.Limiter satisfies it.
type Pacer interface {
	Wait(ctx context.Context) error
}

// NewFixedDelayPacer returns a limiter that spaces requests at least delay
// apart. A non-positive delay disables pacing.
func NewFixedDelayPacer(delay time.Duration) *rate.Limiter {
	if delay <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Every(delay), 1)
}
