// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func setupTestStore(t *testing.T) (*miniredis.Miniredis, *Store) {
	t.Helper()

	mr := miniredis.NewMiniRedis()
	if err := mr.Start(); err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, NewWithClient(client, zerolog.Nop())
}

func TestStore_SetGetJSON(t *testing.T) {
	mr, s := setupTestStore(t)
	defer mr.Close()
	ctx := context.Background()

	type payload struct {
		Name string `json:"name"`
	}

	if err := s.SetJSON(ctx, "k1", payload{Name: "device-1"}, time.Minute); err != nil {
		t.Fatalf("SetJSON: %v", err)
	}

	var got payload
	if err := s.GetJSON(ctx, "k1", &got); err != nil {
		t.Fatalf("GetJSON: %v", err)
	}
	if got.Name != "device-1" {
		t.Errorf("got %q, want device-1", got.Name)
	}
}

func TestStore_GetJSON_NotFound(t *testing.T) {
	mr, s := setupTestStore(t)
	defer mr.Close()
	ctx := context.Background()

	var out map[string]any
	err := s.GetJSON(ctx, "missing", &out)
	if !IsNotFound(err) {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestStore_SetNX(t *testing.T) {
	mr, s := setupTestStore(t)
	defer mr.Close()
	ctx := context.Background()

	ok, err := s.SetNX(ctx, "serial:abc", "device-1", time.Hour)
	if err != nil || !ok {
		t.Fatalf("expected first SetNX to succeed, ok=%v err=%v", ok, err)
	}

	ok, err = s.SetNX(ctx, "serial:abc", "device-2", time.Hour)
	if err != nil {
		t.Fatalf("SetNX: %v", err)
	}
	if ok {
		t.Error("expected second SetNX to fail (key already present)")
	}

	got, err := s.GetString(ctx, "serial:abc")
	if err != nil || got != "device-1" {
		t.Errorf("expected device-1, got %q err=%v", got, err)
	}
}

func TestStore_SortedSetWindow(t *testing.T) {
	mr, s := setupTestStore(t)
	defer mr.Close()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := s.ZAdd(ctx, "zs", float64(i), i); err != nil {
			t.Fatalf("ZAdd: %v", err)
		}
	}

	if err := s.ZRemRangeByScore(ctx, "zs", "0", "1"); err != nil {
		t.Fatalf("ZRemRangeByScore: %v", err)
	}

	card, err := s.ZCard(ctx, "zs")
	if err != nil {
		t.Fatalf("ZCard: %v", err)
	}
	if card != 3 {
		t.Errorf("expected 3 remaining members, got %d", card)
	}
}

func TestStore_SetOps(t *testing.T) {
	mr, s := setupTestStore(t)
	defer mr.Close()
	ctx := context.Background()

	if err := s.SAdd(ctx, "set", "a", "b", "c"); err != nil {
		t.Fatalf("SAdd: %v", err)
	}
	members, err := s.SMembers(ctx, "set")
	if err != nil {
		t.Fatalf("SMembers: %v", err)
	}
	if len(members) != 3 {
		t.Fatalf("expected 3 members, got %d", len(members))
	}

	if err := s.SRem(ctx, "set", "b"); err != nil {
		t.Fatalf("SRem: %v", err)
	}
	card, err := s.SCard(ctx, "set")
	if err != nil || card != 2 {
		t.Errorf("expected cardinality 2, got %d err=%v", card, err)
	}
}

func TestStore_HealthCheck(t *testing.T) {
	mr, s := setupTestStore(t)
	defer mr.Close()

	if err := s.HealthCheck(context.Background()); err != nil {
		t.Errorf("expected healthy store, got %v", err)
	}

	mr.Close()

	if err := s.HealthCheck(context.Background()); err == nil {
		t.Error("expected health check to fail after store shutdown")
	}
}

func TestStore_Eval(t *testing.T) {
	mr, s := setupTestStore(t)
	defer mr.Close()
	ctx := context.Background()

	const script = `return redis.call("set", KEYS[1], ARGV[1])`
	if _, err := s.Eval(ctx, script, []string{"evalkey"}, "value"); err != nil {
		t.Fatalf("Eval: %v", err)
	}

	got, err := s.GetString(ctx, "evalkey")
	if err != nil || got != "value" {
		t.Errorf("expected value, got %q err=%v", got, err)
	}
}
