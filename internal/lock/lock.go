// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package lock provides lease-based distributed mutual exclusion backed by
// the store, with a fencing token so a lock can only be released or
// extended by the holder that acquired it.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/daniell-olaitan/sensorhub/internal/store"
)

// ErrNotAcquired is returned when a lock could not be acquired, including
// after the retry wrapper exhausts its attempts.
var ErrNotAcquired = errors.New("lock: not acquired")

const releaseScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`

const extendScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("expire", KEYS[1], ARGV[2])
else
	return 0
end
`

// Lock represents a held (or attempted) lease over a named resource.
type Lock struct {
	store    *store.Store
	resource string
	key      string
	token    string
	timeout  time.Duration
}

// Config tunes the retry wrapper's acquisition policy.
type Config struct {
	// Timeout is the lease TTL applied to the lock key. Defaults to 10s,
	// matching spec §6.4's lock_timeout_seconds default.
	Timeout time.Duration
	// RetryCount is how many times distributed_lock retries acquisition
	// before giving up. Defaults to 3.
	RetryCount int
	// RetryDelay is the fixed delay between acquisition attempts.
	// Defaults to 50ms.
	RetryDelay time.Duration
}

// DefaultConfig returns the spec's documented defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:    10 * time.Second,
		RetryCount: 3,
		RetryDelay: 50 * time.Millisecond,
	}
}

// New builds a Lock handle for resource. Acquire must be called before the
// lock protects anything.
func New(s *store.Store, resource string, timeout time.Duration) *Lock {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Lock{
		store:    s,
		resource: resource,
		key:      store.LockKey(resource),
		timeout:  timeout,
	}
}

// Acquire attempts a single set-if-absent acquisition with a fresh fencing
// token. It does not retry; callers wanting retry semantics should use
// WithLock or call Acquire themselves in a loop.
func (l *Lock) Acquire(ctx context.Context) (bool, error) {
	token := uuid.NewString()
	ok, err := l.store.SetNX(ctx, l.key, token, l.timeout)
	if err != nil {
		return false, fmt.Errorf("lock: acquire %s: %w", l.resource, err)
	}
	if ok {
		l.token = token
	}
	return ok, nil
}

// Release runs an atomic compare-key-value-then-delete, so a lock can only
// be released by the token that acquired it. It runs on the ctx it is given;
// WithLock releases on a fresh background context (2s timeout) so that a
// canceled caller context does not prevent cleanup.
func (l *Lock) Release(ctx context.Context) error {
	if l.token == "" {
		return nil
	}
	_, err := l.store.Eval(ctx, releaseScript, []string{l.key}, l.token)
	if err != nil {
		return fmt.Errorf("lock: release %s: %w", l.resource, err)
	}
	return nil
}

// Extend runs an atomic compare-key-value-then-set-TTL, resetting the
// lease's remaining TTL to additional (whole seconds) without granting it
// to a new holder.
func (l *Lock) Extend(ctx context.Context, additional time.Duration) (bool, error) {
	if l.token == "" {
		return false, ErrNotAcquired
	}
	res, err := l.store.Eval(ctx, extendScript, []string{l.key}, l.token, int64(additional.Seconds()))
	if err != nil {
		return false, fmt.Errorf("lock: extend %s: %w", l.resource, err)
	}
	n, _ := res.(int64)
	return n == 1, nil
}

// WithLock acquires resource with retry (per cfg), runs fn while held, and
// always releases afterward — the convenience wrapper spec §4.2 describes.
func WithLock(ctx context.Context, s *store.Store, resource string, cfg Config, fn func(ctx context.Context) error) error {
	if cfg.Timeout <= 0 {
		cfg = DefaultConfig()
	}
	if cfg.RetryCount <= 0 {
		cfg.RetryCount = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 50 * time.Millisecond
	}

	l := New(s, resource, cfg.Timeout)

	var acquired bool
	for attempt := 0; attempt < cfg.RetryCount; attempt++ {
		ok, err := l.Acquire(ctx)
		if err != nil {
			return err
		}
		if ok {
			acquired = true
			break
		}
		if attempt < cfg.RetryCount-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(cfg.RetryDelay):
			}
		}
	}

	if !acquired {
		return fmt.Errorf("%w: resource %q after %d attempts", ErrNotAcquired, resource, cfg.RetryCount)
	}

	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = l.Release(releaseCtx)
	}()

	return fn(ctx)
}
