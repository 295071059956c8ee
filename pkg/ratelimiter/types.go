package ratelimiter

import "time"

// Result contains the outcome of a rate limit check.
type Result struct {
	Limit     int       // Maximum requests per window
	Remaining int       // Requests left in the current window
	ResetAt   time.Time // When the current window ends
	Degraded  bool      // Store was unavailable and the check failed open

	allowed bool
}

// Allowed reports whether the request may proceed.
func (r *Result) Allowed() bool {
	return r.allowed
}

// RetryAfter returns how long to wait before the next request.
// Returns 0 if the request was allowed.
func (r *Result) RetryAfter() time.Duration {
	if r.allowed {
		return 0
	}
	return max(time.Until(r.ResetAt), 0)
}

// Config defines the fixed window.
type Config struct {
	Limit  int           `env:"RATE_LIMIT_PER_USER" envDefault:"100"`
	Window time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"60s"`
}
