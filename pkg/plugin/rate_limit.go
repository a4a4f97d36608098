package plugin

import (
	"golang.org/x/time/rate"
)

// newRateLimiter returns nil (no limit) when rps or burst is not positive
func newRateLimiter(rps float64, burst int) *rate.Limiter {
	if rps <= 0 || burst <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

// allow reports whether an LLM-backed request may proceed
func (i *Instance) allow() bool {
	if i.limiter == nil {
		return true
	}
	return i.limiter.Allow()
}
