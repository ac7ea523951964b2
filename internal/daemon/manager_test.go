// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/daniell-olaitan/sensorhub/internal/alerts"
	"github.com/daniell-olaitan/sensorhub/internal/analytics"
	"github.com/daniell-olaitan/sensorhub/internal/breaker"
	"github.com/daniell-olaitan/sensorhub/internal/bus"
	"github.com/daniell-olaitan/sensorhub/internal/firmware"
	"github.com/daniell-olaitan/sensorhub/internal/health"
	"github.com/daniell-olaitan/sensorhub/internal/notify"
	"github.com/daniell-olaitan/sensorhub/internal/ratelimit"
	"github.com/daniell-olaitan/sensorhub/internal/registry"
	"github.com/daniell-olaitan/sensorhub/internal/store"
	"github.com/daniell-olaitan/sensorhub/internal/telemetry"
)

func setupTestDeps(t *testing.T) (*miniredis.Miniredis, Deps) {
	t.Helper()
	mr := miniredis.NewMiniRedis()
	if err := mr.Start(); err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}

	s := store.NewWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), zerolog.Nop())
	b := bus.New(s, bus.Config{QueueMaxSize: 16, WorkerCount: 1})
	limiter := ratelimit.New(s, ratelimit.DefaultConfig())
	breakers := breaker.NewRegistry(breaker.DefaultConfig())
	devices := registry.New(s, b)
	alertSvc := alerts.New(s, b, breakers, notify.NoOpNotifier{}, devices)
	telemetrySvc := telemetry.New(s, b, limiter, devices, alertSvc, telemetry.DefaultConfig())
	firmwareSvc := firmware.New(s, b, devices)
	analyticsSvc := analytics.New(devices, telemetrySvc, alertSvc, firmwareSvc)
	healthMgr := health.NewManager("test")
	healthMgr.RegisterChecker(health.NewStoreChecker(s))
	healthMgr.RegisterChecker(health.NewBusChecker(b, 1000))

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
	return mr, deps
}

func TestNewManager_ValidDeps(t *testing.T) {
	mr, deps := setupTestDeps(t)
	defer mr.Close()

	mgr, err := NewManager(deps)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	if mgr == nil {
		t.Fatal("NewManager() returned nil manager")
	}
}

func TestNewManager_MissingStore(t *testing.T) {
	_, deps := setupTestDeps(t)
	deps.Store = nil

	_, err := NewManager(deps)
	if !errors.Is(err, ErrMissingStore) {
		t.Errorf("NewManager() error = %v, want %v", err, ErrMissingStore)
	}
}

func TestNewManager_MissingHealth(t *testing.T) {
	_, deps := setupTestDeps(t)
	deps.Health = nil

	_, err := NewManager(deps)
	if !errors.Is(err, ErrMissingHealth) {
		t.Errorf("NewManager() error = %v, want %v", err, ErrMissingHealth)
	}
}

func TestManager_StartStop_OK(t *testing.T) {
	mr, deps := setupTestDeps(t)
	defer mr.Close()

	mgr, err := NewManager(deps)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errChan := make(chan error, 1)
	go func() {
		errChan <- mgr.Start(ctx)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errChan:
		if err != nil {
			t.Errorf("Start() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Start() did not return after context cancellation")
	}
}

func TestManager_Shutdown_NotStarted(t *testing.T) {
	mr, deps := setupTestDeps(t)
	defer mr.Close()

	mgr, err := NewManager(deps)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	err = mgr.Shutdown(context.Background())
	if !errors.Is(err, ErrManagerNotStarted) {
		t.Errorf("Shutdown() error = %v, want %v", err, ErrManagerNotStarted)
	}
}

func TestManager_RunsShutdownHooksInReverseOrder(t *testing.T) {
	mr, deps := setupTestDeps(t)
	defer mr.Close()

	mgr, err := NewManager(deps)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	var order []string
	mgr.RegisterShutdownHook("first", func(ctx context.Context) error {
		order = append(order, "first")
		return nil
	})
	mgr.RegisterShutdownHook("second", func(ctx context.Context) error {
		order = append(order, "second")
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errChan := make(chan error, 1)
	go func() {
		errChan <- mgr.Start(ctx)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-errChan:
	case <-time.After(5 * time.Second):
		t.Fatal("Start() did not return after context cancellation")
	}

	if len(order) != 2 || order[0] != "second" || order[1] != "first" {
		t.Errorf("expected hooks to run LIFO, got %v", order)
	}
}

func TestManager_ShutdownCollectsHookErrors(t *testing.T) {
	mr, deps := setupTestDeps(t)
	defer mr.Close()

	mgr, err := NewManager(deps)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	mgr.RegisterShutdownHook("broken", func(ctx context.Context) error {
		return errors.New("boom")
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errChan := make(chan error, 1)
	go func() {
		errChan <- mgr.Start(ctx)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errChan:
		if err == nil {
			t.Fatal("expected shutdown error from broken hook")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Start() did not return after context cancellation")
	}
}
