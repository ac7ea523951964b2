// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import "errors"

var (
	// ErrMissingLogger is returned when logger is not provided
	ErrMissingLogger = errors.New("logger is required")

	// ErrMissingManager is returned when a daemon app is created without a manager.
	ErrMissingManager = errors.New("manager is required")

	// ErrManagerNotStarted is returned when trying to shutdown a manager that hasn't started
	ErrManagerNotStarted = errors.New("manager not started")

	// ErrMissingStore is returned when Deps is validated without a store.
	ErrMissingStore = errors.New("store is required")

	// ErrMissingBus is returned when Deps is validated without an event bus.
	ErrMissingBus = errors.New("event bus is required")

	// ErrMissingLimiter is returned when Deps is validated without a rate limiter.
	ErrMissingLimiter = errors.New("rate limiter is required")

	// ErrMissingBreakers is returned when Deps is validated without a breaker registry.
	ErrMissingBreakers = errors.New("breaker registry is required")

	// ErrMissingRegistry is returned when Deps is validated without a device registry.
	ErrMissingRegistry = errors.New("device registry is required")

	// ErrMissingAlerts is returned when Deps is validated without an alerts service.
	ErrMissingAlerts = errors.New("alerts service is required")

	// ErrMissingTelemetry is returned when Deps is validated without a telemetry service.
	ErrMissingTelemetry = errors.New("telemetry service is required")

	// ErrMissingFirmware is returned when Deps is validated without a firmware orchestrator.
	ErrMissingFirmware = errors.New("firmware orchestrator is required")

	// ErrMissingAnalytics is returned when Deps is validated without an analytics service.
	ErrMissingAnalytics = errors.New("analytics service is required")

	// ErrMissingHealth is returned when Deps is validated without a health manager.
	ErrMissingHealth = errors.New("health manager is required")

	// ErrGlobalRateLimitExceeded is returned when the composition root's
	// global ingress gate rejects a telemetry submission before it ever
	// reaches the telemetry service.
	ErrGlobalRateLimitExceeded = errors.New("global rate limit exceeded")
)
