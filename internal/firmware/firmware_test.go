// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package firmware

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/daniell-olaitan/sensorhub/internal/apperr"
	"github.com/daniell-olaitan/sensorhub/internal/bus"
	"github.com/daniell-olaitan/sensorhub/internal/domain"
	"github.com/daniell-olaitan/sensorhub/internal/registry"
	"github.com/daniell-olaitan/sensorhub/internal/store"
)

func setupTestOrchestrator(t *testing.T) (*miniredis.Miniredis, *Orchestrator, *registry.Registry) {
	t.Helper()
	mr := miniredis.NewMiniRedis()
	if err := mr.Start(); err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	s := store.NewWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), zerolog.Nop())
	b := bus.New(s, bus.Config{QueueMaxSize: 16, WorkerCount: 1})
	devices := registry.New(s, b)
	o := New(s, b, devices)
	return mr, o, devices
}

func waitForTerminal(t *testing.T, o *Orchestrator, updateID string) domain.FirmwareUpdate {
	t.Helper()
	ctx := context.Background()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		u, err := o.GetUpdate(ctx, updateID)
		if err != nil {
			t.Fatalf("GetUpdate: %v", err)
		}
		if u.Status.Terminal() {
			return u
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("update %s never reached a terminal state", updateID)
	return domain.FirmwareUpdate{}
}

func TestFirmware_InitiateUpdateAlwaysEndsRolledBackOrFailed(t *testing.T) {
	mr, o, devices := setupTestOrchestrator(t)
	defer mr.Close()

	ctx := context.Background()
	device, err := devices.Register(ctx, domain.Registration{SerialNumber: "SN-FW-1", Type: domain.DeviceSensor, FirmwareVersion: "v1"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := o.RegisterFirmware(ctx, domain.Metadata{Version: "v2"}); err != nil {
		t.Fatalf("RegisterFirmware: %v", err)
	}

	update, err := o.InitiateUpdate(ctx, domain.UpdateRequest{DeviceID: device.ID, ToVersion: "v2"})
	if err != nil {
		t.Fatalf("InitiateUpdate: %v", err)
	}
	if update.Status != domain.UpdatePending {
		t.Fatalf("expected pending status immediately after initiate, got %s", update.Status)
	}

	final := waitForTerminal(t, o, update.ID)
	if final.Status != domain.UpdateRolledBack && final.Status != domain.UpdateFailed {
		t.Fatalf("expected rolled_back or failed, got %s", final.Status)
	}
	if final.Status != domain.UpdateRolledBack {
		t.Fatalf("expected rolled_back since the download/install steps ran and registered compensations, got %s", final.Status)
	}

	got, err := devices.Get(ctx, device.ID)
	if err != nil {
		t.Fatalf("Get device: %v", err)
	}
	if got.FirmwareVersion != "v1" {
		t.Errorf("expected device firmware version restored to v1, got %s", got.FirmwareVersion)
	}
	if got.Status != domain.DeviceRegistered {
		t.Errorf("expected device status restored to registered, got %s", got.Status)
	}
}

func TestFirmware_InitiateUpdateRejectsUnknownVersion(t *testing.T) {
	mr, o, devices := setupTestOrchestrator(t)
	defer mr.Close()

	ctx := context.Background()
	device, err := devices.Register(ctx, domain.Registration{SerialNumber: "SN-FW-2", Type: domain.DeviceSensor})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	_, err = o.InitiateUpdate(ctx, domain.UpdateRequest{DeviceID: device.ID, ToVersion: "vNOPE"})
	if !apperr.Is(err, apperr.KindInvalid) {
		t.Fatalf("expected invalid error for unknown version, got %v", err)
	}
}

func TestFirmware_InitiateUpdateIsIdempotent(t *testing.T) {
	mr, o, devices := setupTestOrchestrator(t)
	defer mr.Close()

	ctx := context.Background()
	device, err := devices.Register(ctx, domain.Registration{SerialNumber: "SN-FW-3", Type: domain.DeviceSensor, FirmwareVersion: "v1"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := o.RegisterFirmware(ctx, domain.Metadata{Version: "v2"}); err != nil {
		t.Fatalf("RegisterFirmware: %v", err)
	}

	first, err := o.InitiateUpdate(ctx, domain.UpdateRequest{DeviceID: device.ID, ToVersion: "v2"})
	if err != nil {
		t.Fatalf("first InitiateUpdate: %v", err)
	}

	second, err := o.InitiateUpdate(ctx, domain.UpdateRequest{DeviceID: device.ID, ToVersion: "v2"})
	if err != nil {
		t.Fatalf("second InitiateUpdate: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("expected the in-flight update to be returned unchanged, got a new id %s vs %s", second.ID, first.ID)
	}

	waitForTerminal(t, o, first.ID)
}

func TestFirmware_SaveUpdateLocksOutWritesAfterFailed(t *testing.T) {
	mr, o, _ := setupTestOrchestrator(t)
	defer mr.Close()

	ctx := context.Background()
	u := domain.FirmwareUpdate{ID: "u-1", DeviceID: "d-1", Status: domain.UpdateFailed, Error: "boom"}
	if err := o.saveUpdate(ctx, u); err != nil {
		t.Fatalf("saveUpdate: %v", err)
	}

	later := u
	later.Status = domain.UpdateInstalled
	later.Error = ""
	if err := o.saveUpdate(ctx, later); err != nil {
		t.Fatalf("saveUpdate (later): %v", err)
	}

	got, err := o.getUpdate(ctx, "u-1")
	if err != nil {
		t.Fatalf("getUpdate: %v", err)
	}
	if got.Status != domain.UpdateFailed {
		t.Errorf("expected failed status to remain locked, got %s", got.Status)
	}
}

func TestFirmware_ListVersionsAndPending(t *testing.T) {
	mr, o, devices := setupTestOrchestrator(t)
	defer mr.Close()

	ctx := context.Background()
	if err := o.RegisterFirmware(ctx, domain.Metadata{Version: "v2"}); err != nil {
		t.Fatalf("RegisterFirmware: %v", err)
	}
	versions, err := o.ListVersions(ctx)
	if err != nil {
		t.Fatalf("ListVersions: %v", err)
	}
	if len(versions) != 1 || versions[0] != "v2" {
		t.Errorf("expected [v2], got %v", versions)
	}

	device, err := devices.Register(ctx, domain.Registration{SerialNumber: "SN-FW-4", Type: domain.DeviceSensor})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	update, err := o.InitiateUpdate(ctx, domain.UpdateRequest{DeviceID: device.ID, ToVersion: "v2"})
	if err != nil {
		t.Fatalf("InitiateUpdate: %v", err)
	}

	pending, err := o.ListPending(ctx)
	if err != nil {
		t.Fatalf("ListPending: %v", err)
	}
	found := false
	for _, p := range pending {
		if p.ID == update.ID {
			found = true
		}
	}
	if !found {
		t.Errorf("expected update %s to be listed pending immediately after initiation", update.ID)
	}

	waitForTerminal(t, o, update.ID)
}
