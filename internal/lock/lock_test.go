// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package lock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/daniell-olaitan/sensorhub/internal/store"
)

func setupTestStore(t *testing.T) (*miniredis.Miniredis, *store.Store) {
	t.Helper()
	mr := miniredis.NewMiniRedis()
	if err := mr.Start(); err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, store.NewWithClient(client, zerolog.Nop())
}

func TestLock_AcquireRelease(t *testing.T) {
	mr, s := setupTestStore(t)
	defer mr.Close()
	ctx := context.Background()

	l := New(s, "device:1", time.Second)
	ok, err := l.Acquire(ctx)
	if err != nil || !ok {
		t.Fatalf("expected acquire to succeed, ok=%v err=%v", ok, err)
	}

	other := New(s, "device:1", time.Second)
	ok, err = other.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if ok {
		t.Error("expected second acquire to fail while held")
	}

	if err := l.Release(ctx); err != nil {
		t.Fatalf("Release: %v", err)
	}

	ok, err = other.Acquire(ctx)
	if err != nil || !ok {
		t.Fatalf("expected acquire to succeed after release, ok=%v err=%v", ok, err)
	}
}

func TestLock_ReleaseRequiresMatchingToken(t *testing.T) {
	mr, s := setupTestStore(t)
	defer mr.Close()
	ctx := context.Background()

	l := New(s, "device:1", time.Second)
	if _, err := l.Acquire(ctx); err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	// Simulate a different holder trying to release with a stale token.
	impostor := &Lock{store: s, resource: "device:1", key: store.LockKey("device:1"), token: "not-the-real-token"}
	if err := impostor.Release(ctx); err != nil {
		t.Fatalf("Release: %v", err)
	}

	// The original holder's lock should still be held.
	other := New(s, "device:1", time.Second)
	ok, err := other.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if ok {
		t.Error("expected lock to remain held after impostor release")
	}
}

func TestLock_Extend(t *testing.T) {
	mr, s := setupTestStore(t)
	defer mr.Close()
	ctx := context.Background()

	l := New(s, "device:1", time.Second)
	if _, err := l.Acquire(ctx); err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	ok, err := l.Extend(ctx, 5*time.Second)
	if err != nil || !ok {
		t.Fatalf("expected extend to succeed, ok=%v err=%v", ok, err)
	}
}

func TestWithLock_ExhaustsRetries(t *testing.T) {
	mr, s := setupTestStore(t)
	defer mr.Close()
	ctx := context.Background()

	holder := New(s, "device:1", time.Minute)
	if _, err := holder.Acquire(ctx); err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	cfg := Config{Timeout: time.Minute, RetryCount: 2, RetryDelay: time.Millisecond}
	err := WithLock(ctx, s, "device:1", cfg, func(ctx context.Context) error { return nil })
	if !errors.Is(err, ErrNotAcquired) {
		t.Fatalf("expected ErrNotAcquired, got %v", err)
	}
}

func TestWithLock_RunsAndReleases(t *testing.T) {
	mr, s := setupTestStore(t)
	defer mr.Close()
	ctx := context.Background()

	ran := false
	cfg := DefaultConfig()
	cfg.RetryDelay = time.Millisecond
	err := WithLock(ctx, s, "device:1", cfg, func(ctx context.Context) error {
		ran = true
		return nil
	})
	if err != nil {
		t.Fatalf("WithLock: %v", err)
	}
	if !ran {
		t.Error("expected fn to run")
	}

	l := New(s, "device:1", time.Second)
	ok, err := l.Acquire(ctx)
	if err != nil || !ok {
		t.Fatalf("expected lock to be released after WithLock, ok=%v err=%v", ok, err)
	}
}
