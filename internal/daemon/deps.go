// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"github.com/rs/zerolog"

	"github.com/daniell-olaitan/sensorhub/internal/alerts"
	"github.com/daniell-olaitan/sensorhub/internal/analytics"
	"github.com/daniell-olaitan/sensorhub/internal/breaker"
	"github.com/daniell-olaitan/sensorhub/internal/bus"
	"github.com/daniell-olaitan/sensorhub/internal/config"
	"github.com/daniell-olaitan/sensorhub/internal/firmware"
	"github.com/daniell-olaitan/sensorhub/internal/health"
	"github.com/daniell-olaitan/sensorhub/internal/ratelimit"
	"github.com/daniell-olaitan/sensorhub/internal/registry"
	"github.com/daniell-olaitan/sensorhub/internal/store"
	"github.com/daniell-olaitan/sensorhub/internal/telemetry"
)

// Deps is every collaborator the composition root wires together before
// handing the result to Manager. Each field is already fully constructed;
// Manager and App only sequence their lifecycles and enforce the one
// cross-cutting concern (the global ingress gate) that doesn't belong
// inside any single service.
type Deps struct {
	Logger zerolog.Logger
	Config config.Config

	Store    *store.Store
	Bus      *bus.Bus
	Limiter  *ratelimit.Limiter
	Breakers *breaker.Registry

	Registry  *registry.Registry
	Alerts    *alerts.Service
	Telemetry *telemetry.Service
	Firmware  *firmware.Orchestrator
	Analytics *analytics.Service
	Health    *health.Manager
}

// Validate checks that every required collaborator was supplied. It runs
// once at startup so a wiring mistake in the composition root fails fast
// instead of surfacing as a nil-pointer panic from inside a request.
func (d *Deps) Validate() error {
	if d.Store == nil {
		return ErrMissingStore
	}
	if d.Bus == nil {
		return ErrMissingBus
	}
	if d.Limiter == nil {
		return ErrMissingLimiter
	}
	if d.Breakers == nil {
		return ErrMissingBreakers
	}
	if d.Registry == nil {
		return ErrMissingRegistry
	}
	if d.Alerts == nil {
		return ErrMissingAlerts
	}
	if d.Telemetry == nil {
		return ErrMissingTelemetry
	}
	if d.Firmware == nil {
		return ErrMissingFirmware
	}
	if d.Analytics == nil {
		return ErrMissingAnalytics
	}
	if d.Health == nil {
		return ErrMissingHealth
	}
	return nil
}
