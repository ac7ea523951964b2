// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package saga implements the ordered-steps-with-compensation pattern used
// by multi-stage workflows (firmware rollout) that must unwind cleanly on
// failure. Each step exposes a single invoke(ctx) capability rather than
// separate sync/async action and compensation callables.
package saga

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/daniell-olaitan/sensorhub/internal/log"
)

// Step is one stage of a saga: Action performs the work, Compensation
// undoes it. Compensation is only invoked for steps whose Action already
// completed successfully.
type Step struct {
	Name         string
	Action       func(ctx context.Context) error
	Compensation func(ctx context.Context) error
}

// FailureError wraps the error that aborted a saga, after compensation has
// run for every completed step.
type FailureError struct {
	SagaName string
	Err      error
}

func (e *FailureError) Error() string {
	return fmt.Sprintf("saga %q failed: %v", e.SagaName, e.Err)
}

func (e *FailureError) Unwrap() error { return e.Err }

// Saga is an ordered, append-only sequence of steps built with AddStep.
type Saga struct {
	name   string
	steps  []Step
	logger zerolog.Logger
}

// New builds an empty Saga identified by name (used only for logging and
// the wrapped FailureError).
func New(name string) *Saga {
	return &Saga{name: name, logger: log.WithComponent("saga")}
}

// AddStep appends a step, returning the Saga for chaining.
func (s *Saga) AddStep(step Step) *Saga {
	s.steps = append(s.steps, step)
	return s
}

// Execute runs every step's Action in order. On the first failure it
// compensates every already-completed step in reverse order (logging, not
// aborting on compensation errors) and returns a *FailureError wrapping the
// original cause.
func (s *Saga) Execute(ctx context.Context) error {
	completed := make([]Step, 0, len(s.steps))

	for _, step := range s.steps {
		if err := step.Action(ctx); err != nil {
			s.compensate(ctx, completed)
			return &FailureError{SagaName: s.name, Err: err}
		}
		completed = append(completed, step)
	}

	return nil
}

func (s *Saga) compensate(ctx context.Context, completed []Step) {
	for i := len(completed) - 1; i >= 0; i-- {
		step := completed[i]
		if step.Compensation == nil {
			continue
		}
		if err := step.Compensation(ctx); err != nil {
			s.logger.Error().
				Err(err).
				Str("saga", s.name).
				Str("step", step.Name).
				Msg("saga compensation failed, continuing with remaining compensations")
		}
	}
}
