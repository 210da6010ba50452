package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Prometheus metrics for rate limit tracking.
var (
	picsumRateLimitBlocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "picsum_rate_limit_blocks_total",
		Help: "Total number of requests blocked by an active cooldown",
	})

	picsumRateLimitCooldownsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "picsum_rate_limit_cooldowns_total",
		Help: "Total number of cooldowns started from service responses",
	})

	picsumRateLimitWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "picsum_rate_limit_wait_seconds",
		Help:    "Time spent waiting for the local token bucket",
		Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 2},
	})
)

// Tracker paces requests and tracks service-announced cooldowns.
type Tracker struct {
	redis   *redis.Client
	limiter *rate.Limiter
	logger  zerolog.Logger

	mu    sync.Mutex
	local RateLimitState
}

// NewTracker creates a new rate limit tracker. redisClient may be nil, in
// which case the cooldown is kept in process. A non-positive rps disables
// local pacing.
func NewTracker(redisClient *redis.Client, rps float64, burst int, logger zerolog.Logger) *Tracker {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	if burst <= 0 {
		burst = 1
	}
	return &Tracker{
		redis:   redisClient,
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger,
	}
}

// GetState returns the current cooldown state.
func (t *Tracker) GetState(ctx context.Context) (*RateLimitState, error) {
	if t.redis == nil {
		t.mu.Lock()
		defer t.mu.Unlock()
		state := t.local
		return &state, nil
	}

	untilUnixMilli, err := t.redis.Get(ctx, RedisKeyCooldownUntil).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get cooldown: %w", err)
	}

	lastUpdateUnixMilli, lerr := t.redis.Get(ctx, RedisKeyLastUpdate).Int64()
	if lerr != nil && !errors.Is(lerr, redis.Nil) {
		return nil, fmt.Errorf("get last update: %w", lerr)
	}

	state := &RateLimitState{}
	if err == nil {
		state.CooldownUntil = time.UnixMilli(untilUnixMilli)
	}
	if lerr == nil {
		state.LastUpdate = time.UnixMilli(lastUpdateUnixMilli)
	}
	return state, nil
}

// UpdateFromResponse inspects a service response and starts a cooldown
// when the service asks clients to back off.
func (t *Tracker) UpdateFromResponse(ctx context.Context, statusCode int, headers http.Header) error {
	wait, ok, err := cooldownFromResponse(statusCode, headers, time.Now())
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	return t.startCooldown(ctx, wait)
}

func (t *Tracker) startCooldown(ctx context.Context, wait time.Duration) error {
	if wait > MaxCooldown {
		wait = MaxCooldown
	}
	now := time.Now()
	until := now.Add(wait)

	picsumRateLimitCooldownsTotal.Inc()
	t.logger.Warn().
		Dur("cooldown", wait).
		Time("cooldown_until", until).
		Msg("Photo service asked to back off - cooldown started")

	if t.redis == nil {
		t.mu.Lock()
		defer t.mu.Unlock()
		if until.After(t.local.CooldownUntil) {
			t.local.CooldownUntil = until
		}
		t.local.LastUpdate = now
		return nil
	}

	pipe := t.redis.Pipeline()
	// Expire with the cooldown so a crashed writer cannot block forever.
	pipe.Set(ctx, RedisKeyCooldownUntil, until.UnixMilli(), wait)
	pipe.Set(ctx, RedisKeyLastUpdate, now.UnixMilli(), 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store cooldown in redis: %w", err)
	}
	return nil
}

// ShouldAllowRequest returns false while a cooldown is active. Otherwise it
// waits for a token from the local bucket and returns true.
func (t *Tracker) ShouldAllowRequest(ctx context.Context) (bool, error) {
	state, err := t.GetState(ctx)
	if err != nil {
		return false, fmt.Errorf("get rate limit state: %w", err)
	}

	if state.InCooldown() {
		t.logger.Warn().
			Dur("wait_duration", state.TimeUntilReset()).
			Msg("Cooldown active - blocking request")
		picsumRateLimitBlocksTotal.Inc()
		return false, nil
	}

	start := time.Now()
	if err := t.limiter.Wait(ctx); err != nil {
		return false, fmt.Errorf("wait for rate limiter: %w", err)
	}
	picsumRateLimitWaitSeconds.Observe(time.Since(start).Seconds())

	return true, nil
}

// WaitForRequest is ShouldAllowRequest for retries: an active cooldown no
// longer than maxWait is waited out before taking a token. A longer
// cooldown returns false without waiting.
func (t *Tracker) WaitForRequest(ctx context.Context, maxWait time.Duration) (bool, error) {
	state, err := t.GetState(ctx)
	if err != nil {
		return false, fmt.Errorf("get rate limit state: %w", err)
	}

	if wait := state.TimeUntilReset(); wait > 0 {
		if wait > maxWait {
			picsumRateLimitBlocksTotal.Inc()
			return false, nil
		}
		t.logger.Debug().Dur("wait_duration", wait).Msg("Waiting out cooldown before retry")

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return false, ctx.Err()
		case <-timer.C:
		}
	}

	return t.ShouldAllowRequest(ctx)
}

// cooldownFromResponse works out how long to back off after a response.
// Retry-After is honoured on 429 and 503; an exhausted X-RateLimit-Remaining
// uses X-RateLimit-Reset (seconds).
func cooldownFromResponse(statusCode int, headers http.Header, now time.Time) (time.Duration, bool, error) {
	if statusCode == http.StatusTooManyRequests || statusCode == http.StatusServiceUnavailable {
		if v := headers.Get("Retry-After"); v != "" {
			wait, err := parseRetryAfter(v, now)
			if err != nil {
				return 0, false, err
			}
			return wait, true, nil
		}
		if statusCode == http.StatusTooManyRequests {
			return time.Second, true, nil
		}
	}

	remain := headers.Get("X-RateLimit-Remaining")
	if remain == "" {
		return 0, false, nil
	}
	n, err := strconv.Atoi(remain)
	if err != nil {
		return 0, false, fmt.Errorf("parse X-RateLimit-Remaining header: %w", err)
	}
	if n > 0 {
		return 0, false, nil
	}
	reset := headers.Get("X-RateLimit-Reset")
	if reset == "" {
		return 0, false, fmt.Errorf("X-RateLimit-Reset header missing")
	}
	secs, err := strconv.Atoi(reset)
	if err != nil {
		return 0, false, fmt.Errorf("parse X-RateLimit-Reset header: %w", err)
	}
	return time.Duration(secs) * time.Second, true, nil
}

// parseRetryAfter accepts delta-seconds or an HTTP date.
func parseRetryAfter(value string, now time.Time) (time.Duration, error) {
	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			return 0, fmt.Errorf("negative Retry-After %d", secs)
		}
		return time.Duration(secs) * time.Second, nil
	}
	at, err := http.ParseTime(value)
	if err != nil {
		return 0, fmt.Errorf("parse Retry-After header: %w", err)
	}
	if at.Before(now) {
		return 0, nil
	}
	return at.Sub(now), nil
}
