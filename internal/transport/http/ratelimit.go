package http

import (
	"time"

	"golang.org/x/time/rate"
)

// newRateLimiter allows perMinute events with a burst of a tenth of that. Nil means unlimited.
func newRateLimiter(perMinute int) *rate.Limiter {
	if perMinute <= 0 {
		return nil
	}
	burst := max(perMinute/10, 1)
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), burst)
}

func allow(l *rate.Limiter) bool {
	return l == nil || l.Allow()
}
