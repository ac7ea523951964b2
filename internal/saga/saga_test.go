// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package saga

import (
	"context"
	"errors"
	"testing"
)

func TestSaga_ExecuteSucceeds(t *testing.T) {
	var ran []string
	s := New("test").
		AddStep(Step{Name: "a", Action: func(ctx context.Context) error { ran = append(ran, "a"); return nil }}).
		AddStep(Step{Name: "b", Action: func(ctx context.Context) error { ran = append(ran, "b"); return nil }})

	if err := s.Execute(context.Background()); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(ran) != 2 || ran[0] != "a" || ran[1] != "b" {
		t.Errorf("expected steps to run in order, got %v", ran)
	}
}

func TestSaga_CompensatesInReverseOrder(t *testing.T) {
	var compensated []string
	boom := errors.New("boom")

	s := New("firmware_update_1").
		AddStep(Step{
			Name:         "download",
			Action:       func(ctx context.Context) error { return nil },
			Compensation: func(ctx context.Context) error { compensated = append(compensated, "download"); return nil },
		}).
		AddStep(Step{
			Name:         "install",
			Action:       func(ctx context.Context) error { return nil },
			Compensation: func(ctx context.Context) error { compensated = append(compensated, "install"); return nil },
		}).
		AddStep(Step{
			Name:   "verify",
			Action: func(ctx context.Context) error { return boom },
		})

	err := s.Execute(context.Background())
	var failErr *FailureError
	if !errors.As(err, &failErr) {
		t.Fatalf("expected *FailureError, got %v", err)
	}
	if !errors.Is(err, boom) {
		t.Errorf("expected wrapped error to unwrap to boom, got %v", err)
	}

	if len(compensated) != 2 || compensated[0] != "install" || compensated[1] != "download" {
		t.Errorf("expected compensation in reverse order [install download], got %v", compensated)
	}
}

func TestSaga_CompensationFailureDoesNotStopEarlierCompensations(t *testing.T) {
	var compensated []string
	boom := errors.New("boom")
	compensationErr := errors.New("compensation failed")

	s := New("test").
		AddStep(Step{
			Name:         "a",
			Action:       func(ctx context.Context) error { return nil },
			Compensation: func(ctx context.Context) error { compensated = append(compensated, "a"); return nil },
		}).
		AddStep(Step{
			Name:         "b",
			Action:       func(ctx context.Context) error { return nil },
			Compensation: func(ctx context.Context) error { return compensationErr },
		}).
		AddStep(Step{
			Name:   "c",
			Action: func(ctx context.Context) error { return boom },
		})

	if err := s.Execute(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped boom, got %v", err)
	}

	if len(compensated) != 1 || compensated[0] != "a" {
		t.Errorf("expected step a's compensation to still run despite step b's compensation failing, got %v", compensated)
	}
}

func TestSaga_NoCompensationBeforeAnyStepCompletes(t *testing.T) {
	boom := errors.New("boom")
	compensationRan := false

	s := New("test").
		AddStep(Step{
			Name:         "a",
			Action:       func(ctx context.Context) error { return boom },
			Compensation: func(ctx context.Context) error { compensationRan = true; return nil },
		})

	if err := s.Execute(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped boom, got %v", err)
	}
	if compensationRan {
		t.Error("expected no compensation to run since step a's action never completed")
	}
}
