package catalog

import (
	"time"

	"golang.org/x/time/rate"
)

// newPacer spaces out dispatches to the upstream host: each Wait returns no
// earlier than interval after the previous one, and concurrent callers are
// released one interval apart. A non-positive interval never waits.
func newPacer(interval time.Duration) *rate.Limiter {
	if interval <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}

	return rate.NewLimiter(rate.Every(interval), 1)
}
