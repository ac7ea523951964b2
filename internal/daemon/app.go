// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/daniell-olaitan/sensorhub/internal/domain"
)

// App is the composition root: it owns every fully-wired collaborator via
// Deps, delegates process lifecycle to Manager, and enforces the one
// cross-cutting concern that doesn't belong inside any single service —
// the global ingress rate gate, which must run ahead of telemetry so a
// flood gets rejected before it ever reaches per-device accounting.
type App struct {
	deps    Deps
	manager Manager
}

// NewApp builds an App over deps (already Validate()-clean, since
// NewManager below validates it too) and the Manager driving its lifecycle.
func NewApp(deps Deps, manager Manager) *App {
	return &App{deps: deps, manager: manager}
}

// Run starts the event bus via Manager and blocks until ctx is cancelled or
// the manager's lifecycle ends for any other reason.
func (a *App) Run(ctx context.Context) error {
	if a.manager == nil {
		return ErrMissingManager
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := a.manager.Start(ctx)
		if err != nil {
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
			_ = a.manager.Shutdown(shutdownCtx)
			cancel()
		}
		return err
	})

	return g.Wait()
}

// IngestPoint applies the global ingress gate before delegating to the
// telemetry service. Per-device limiting still happens inside
// telemetry.Service.IngestPoint; this only protects the process as a whole
// from a fleet-wide flood no single device's limiter would catch.
func (a *App) IngestPoint(ctx context.Context, point domain.Point) error {
	if ok, _, err := a.deps.Limiter.CheckGlobal(ctx); err != nil {
		return err
	} else if !ok {
		return ErrGlobalRateLimitExceeded
	}
	return a.deps.Telemetry.IngestPoint(ctx, point)
}

// IngestBatch applies the global ingress gate before delegating to the
// telemetry service's batch path.
func (a *App) IngestBatch(ctx context.Context, batch domain.Batch) error {
	if ok, _, err := a.deps.Limiter.CheckGlobal(ctx); err != nil {
		return err
	} else if !ok {
		return ErrGlobalRateLimitExceeded
	}
	return a.deps.Telemetry.IngestBatch(ctx, batch)
}
