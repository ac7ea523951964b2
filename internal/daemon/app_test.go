// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/daniell-olaitan/sensorhub/internal/alerts"
	"github.com/daniell-olaitan/sensorhub/internal/analytics"
	"github.com/daniell-olaitan/sensorhub/internal/breaker"
	"github.com/daniell-olaitan/sensorhub/internal/bus"
	"github.com/daniell-olaitan/sensorhub/internal/domain"
	"github.com/daniell-olaitan/sensorhub/internal/firmware"
	"github.com/daniell-olaitan/sensorhub/internal/health"
	"github.com/daniell-olaitan/sensorhub/internal/notify"
	"github.com/daniell-olaitan/sensorhub/internal/ratelimit"
	"github.com/daniell-olaitan/sensorhub/internal/registry"
	"github.com/daniell-olaitan/sensorhub/internal/store"
	"github.com/daniell-olaitan/sensorhub/internal/telemetry"
)

func setupTestAppDeps(t *testing.T, globalPerSecond int) (*miniredis.Miniredis, Deps, *registry.Registry) {
	t.Helper()
	mr := miniredis.NewMiniRedis()
	if err := mr.Start(); err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}

	s := store.NewWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), zerolog.Nop())
	b := bus.New(s, bus.Config{QueueMaxSize: 16, WorkerCount: 1})
	limiter := ratelimit.New(s, ratelimit.Config{TelemetryPerDevice: 1000, WindowSeconds: 60, GlobalPerSecond: globalPerSecond})
	breakers := breaker.NewRegistry(breaker.DefaultConfig())
	devices := registry.New(s, b)
	alertSvc := alerts.New(s, b, breakers, notify.NoOpNotifier{}, devices)
	telemetrySvc := telemetry.New(s, b, limiter, devices, alertSvc, telemetry.DefaultConfig())
	firmwareSvc := firmware.New(s, b, devices)
	analyticsSvc := analytics.New(devices, telemetrySvc, alertSvc, firmwareSvc)
	healthMgr := health.NewManager("test")

	deps := Deps{
		Logger:    zerolog.Nop(),
		Store:     s,
		Bus:       b,
		Limiter:   limiter,
		Breakers:  breakers,
		Registry:  devices,
		Alerts:    alertSvc,
		Telemetry: telemetrySvc,
		Firmware:  firmwareSvc,
		Analytics: analyticsSvc,
		Health:    healthMgr,
	}
	return mr, deps, devices
}

func TestApp_IngestPointRejectsOverGlobalLimit(t *testing.T) {
	mr, deps, devices := setupTestAppDeps(t, 1)
	defer mr.Close()

	ctx := context.Background()
	device, err := devices.Register(ctx, domain.Registration{SerialNumber: "SN-APP-1", Type: domain.DeviceSensor, FirmwareVersion: "v1"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	mgr, err := NewManager(deps)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	app := NewApp(deps, mgr)

	point := domain.Point{DeviceID: device.ID, Metric: "temperature", Value: 21.5}
	if err := app.IngestPoint(ctx, point); err != nil {
		t.Fatalf("first IngestPoint should be admitted, got %v", err)
	}
	if err := app.IngestPoint(ctx, point); !errors.Is(err, ErrGlobalRateLimitExceeded) {
		t.Errorf("second IngestPoint should be rejected by the global gate, got %v", err)
	}
}

func TestApp_IngestBatchAdmittedUnderLimit(t *testing.T) {
	mr, deps, devices := setupTestAppDeps(t, 1000)
	defer mr.Close()

	ctx := context.Background()
	device, err := devices.Register(ctx, domain.Registration{SerialNumber: "SN-APP-2", Type: domain.DeviceSensor, FirmwareVersion: "v1"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	mgr, err := NewManager(deps)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	app := NewApp(deps, mgr)

	batch := domain.Batch{
		DeviceID: device.ID,
		Points:   []domain.Point{{DeviceID: device.ID, Metric: "humidity", Value: 55}},
	}
	if err := app.IngestBatch(ctx, batch); err != nil {
		t.Errorf("expected batch to be admitted, got %v", err)
	}
}
