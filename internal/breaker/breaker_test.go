// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package breaker

import (
	"errors"
	"testing"
)

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	b := New(t.Name(), Config{FailureThreshold: 3, TimeoutSeconds: 60, HalfOpenMaxCalls: 1})

	failing := errors.New("boom")
	for i := 0; i < 3; i++ {
		if err := b.Call(func() error { return failing }); !errors.Is(err, failing) {
			t.Fatalf("attempt %d: expected underlying error, got %v", i, err)
		}
	}

	err := b.Call(func() error { return nil })
	if !errors.Is(err, ErrOpen) {
		t.Fatalf("expected circuit to be open after threshold failures, got %v", err)
	}
	if b.State() != "open" {
		t.Errorf("expected state open, got %s", b.State())
	}
}

func TestBreaker_SuccessInClosedDoesNotAccumulate(t *testing.T) {
	b := New(t.Name(), Config{FailureThreshold: 2, TimeoutSeconds: 60, HalfOpenMaxCalls: 1})

	failing := errors.New("boom")
	_ = b.Call(func() error { return failing })
	_ = b.Call(func() error { return nil })
	_ = b.Call(func() error { return failing })

	if b.State() != "closed" {
		t.Errorf("expected circuit to remain closed (success resets consecutive count), got %s", b.State())
	}
}

func TestRegistry_SharesBreakerByName(t *testing.T) {
	r := NewRegistry(Config{FailureThreshold: 1, TimeoutSeconds: 60, HalfOpenMaxCalls: 1})

	a := r.Get("notification_service")
	b := r.Get("notification_service")
	if a != b {
		t.Error("expected the same breaker instance for the same name")
	}

	c := r.Get("other")
	if a == c {
		t.Error("expected distinct breakers for distinct names")
	}
}
