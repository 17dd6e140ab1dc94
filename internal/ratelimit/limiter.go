// Package ratelimit counts requests per subject over a rolling window using the
// two-bucket sliding estimate httprate applies.
package ratelimit

import (
	"context"
	"math"
	"time"
)

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// ResetIn returns the whole seconds until the current window closes, rounded up.
func (d Decision) ResetIn(now time.Time) int {
	wait := d.ResetAt.Sub(now)
	if wait <= 0 {
		return 0
	}
	return int(math.Ceil(wait.Seconds()))
}

// Limiter admits or rejects a request for key.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// slidingRate estimates the requests seen in the window ending elapsed into the
// current bucket.
func slidingRate(curr, prev int, elapsed, window time.Duration) int {
	weight := float64(window-elapsed) / float64(window)
	return int(math.Round(float64(prev)*weight + float64(curr)))
}
