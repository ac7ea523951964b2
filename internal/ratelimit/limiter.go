// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package ratelimit implements a distributed sliding-window rate limiter
// backed by the store, so every process enforcing the same identifier's
// limit shares one counter instead of each keeping its own local budget.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/daniell-olaitan/sensorhub/internal/store"
)

var rateLimitExceeded = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "sensorhub",
		Name:      "ratelimit_exceeded_total",
		Help:      "Total rate limit rejections",
	},
	[]string{"limit_type"},
)

// slidingWindowScript admits a request only if it does not push the window
// over max_requests; it only consumes a slot on admission, leaving the
// window untouched on rejection (per spec §4.3 and §9 design note).
const slidingWindowScript = `
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window_start = tonumber(ARGV[2])
local max_requests = tonumber(ARGV[3])
local window_seconds = tonumber(ARGV[4])

redis.call("ZREMRANGEBYSCORE", key, 0, window_start)
local current_count = redis.call("ZCARD", key)

if current_count < max_requests then
	redis.call("ZADD", key, now, now .. "-" .. current_count)
	redis.call("EXPIRE", key, window_seconds * 2)
	return {1, max_requests - current_count - 1}
else
	return {0, 0}
end
`

// Config holds the two limiter shapes spec §4.3 defines.
type Config struct {
	TelemetryPerDevice int
	WindowSeconds      int
	GlobalPerSecond    int
}

// DefaultConfig returns the spec's documented defaults.
func DefaultConfig() Config {
	return Config{
		TelemetryPerDevice: 100,
		WindowSeconds:      60,
		GlobalPerSecond:    10000,
	}
}

// Limiter enforces sliding-window limits against the backing store.
type Limiter struct {
	store  *store.Store
	config Config
}

// New builds a Limiter over store using cfg.
func New(s *store.Store, cfg Config) *Limiter {
	return &Limiter{store: s, config: cfg}
}

// Check evaluates whether identifier may proceed under a window of
// windowSeconds admitting at most maxRequests. It returns whether the
// request is allowed and how many requests remain in the current window.
func (l *Limiter) Check(ctx context.Context, identifier string, maxRequests, windowSeconds int) (allowed bool, remaining int, err error) {
	key := store.RateLimitKey(identifier)
	now := time.Now().UnixMilli()
	windowStart := now - int64(windowSeconds)*1000

	res, err := l.store.Eval(ctx, slidingWindowScript, []string{key}, now, windowStart, maxRequests, windowSeconds)
	if err != nil {
		return false, 0, fmt.Errorf("ratelimit: check %s: %w", identifier, err)
	}

	vals, ok := res.([]any)
	if !ok || len(vals) != 2 {
		return false, 0, fmt.Errorf("ratelimit: unexpected script result %#v", res)
	}

	allowedN, _ := vals[0].(int64)
	remainingN, _ := vals[1].(int64)
	return allowedN == 1, int(remainingN), nil
}

// CheckDevice applies the per-device telemetry limit.
func (l *Limiter) CheckDevice(ctx context.Context, deviceID string) (bool, int, error) {
	allowed, remaining, err := l.Check(ctx, fmt.Sprintf("device:%s", deviceID), l.config.TelemetryPerDevice, l.config.WindowSeconds)
	if err == nil && !allowed {
		rateLimitExceeded.WithLabelValues("device").Inc()
	}
	return allowed, remaining, err
}

// CheckGlobal applies the global ingress limit with a fixed one-second
// window.
func (l *Limiter) CheckGlobal(ctx context.Context) (bool, int, error) {
	allowed, remaining, err := l.Check(ctx, "global", l.config.GlobalPerSecond, 1)
	if err == nil && !allowed {
		rateLimitExceeded.WithLabelValues("global").Inc()
	}
	return allowed, remaining, err
}
