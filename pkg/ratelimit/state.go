// Package ratelimit paces requests to the photo service and honours the
// cooldowns it announces. A local token bucket spaces out requests; a 429
// or 503 with Retry-After (or an exhausted X-RateLimit-Remaining) starts a
// cooldown that is shared through Redis when one is configured, so every
// gallery process backs off together.
package ratelimit

import (
	"time"
)

// Redis keys for rate limit state storage.
const (
	RedisKeyCooldownUntil = "picsum:rate_limit:cooldown_until"
	RedisKeyLastUpdate    = "picsum:rate_limit:last_update"
)

// MaxCooldown caps how long a single Retry-After can block requests.
const MaxCooldown = 5 * time.Minute

// RateLimitState is the current cooldown state.
type RateLimitState struct {
	// CooldownUntil blocks requests until this instant. Zero means no cooldown.
	CooldownUntil time.Time `json:"cooldown_until"`

	// LastUpdate is when the state was last changed.
	LastUpdate time.Time `json:"last_update"`
}

// InCooldown reports whether requests must currently be blocked.
func (s *RateLimitState) InCooldown() bool {
	return !s.CooldownUntil.IsZero() && time.Now().Before(s.CooldownUntil)
}

// IsStale returns true if the state data is older than the given duration.
func (s *RateLimitState) IsStale(maxAge time.Duration) bool {
	return time.Since(s.LastUpdate) > maxAge
}

// TimeUntilReset returns the remaining cooldown.
// Returns 0 if no cooldown is active.
func (s *RateLimitState) TimeUntilReset() time.Duration {
	if s.CooldownUntil.IsZero() {
		return 0
	}
	duration := time.Until(s.CooldownUntil)
	if duration < 0 {
		return 0
	}
	return duration
}
