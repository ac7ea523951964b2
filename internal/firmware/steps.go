// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package firmware

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/daniell-olaitan/sensorhub/internal/domain"
	"github.com/daniell-olaitan/sensorhub/internal/store"
)

// downloadDelay and installDelay simulate the time a real transfer or flash
// would take; verifyDelay simulates the checksum pass right before it
// always fails.
const (
	downloadDelay = 100 * time.Millisecond
	installDelay  = 100 * time.Millisecond
	verifyDelay   = 50 * time.Millisecond
)

func newUpdateID() string {
	return uuid.NewString()
}

// download marks the rollout downloading, sleeps to simulate transfer, then
// marks it downloaded.
func (o *Orchestrator) download(ctx context.Context, updateID string) error {
	update, err := o.getUpdate(ctx, updateID)
	if err != nil {
		return err
	}
	update.Status = domain.UpdateDownloading
	update.Progress = 0
	if err := o.saveUpdate(ctx, update); err != nil {
		return err
	}

	time.Sleep(downloadDelay)

	update.Status = domain.UpdateDownloaded
	update.Progress = 30
	return o.saveUpdate(ctx, update)
}

func (o *Orchestrator) rollbackDownload(ctx context.Context, updateID string) error {
	update, err := o.getUpdate(ctx, updateID)
	if err != nil {
		return err
	}
	update.Status = domain.UpdateRolledBack
	return o.saveUpdate(ctx, update)
}

// setMaintenance snapshots the device's current status before flipping it to
// maintenance, so restoreDeviceStatus puts back what was actually there
// instead of the post-mutation value.
func (o *Orchestrator) setMaintenance(ctx context.Context, updateID string) error {
	update, err := o.getUpdate(ctx, updateID)
	if err != nil {
		return err
	}

	device, err := o.devices.Get(ctx, update.DeviceID)
	if err != nil {
		return err
	}
	previous := device.Status

	if err := o.store.SetString(ctx, store.FirmwareMaintenanceKey(updateID), string(previous), 0); err != nil {
		return err
	}

	maintenance := domain.DeviceMaintenance
	_, err = o.devices.Update(ctx, update.DeviceID, domain.Update{Status: &maintenance})
	return err
}

func (o *Orchestrator) restoreDeviceStatus(ctx context.Context, updateID string) error {
	update, err := o.getUpdate(ctx, updateID)
	if err != nil {
		return err
	}

	raw, err := o.store.GetString(ctx, store.FirmwareMaintenanceKey(updateID))
	if err != nil {
		if store.IsNotFound(err) {
			return nil
		}
		return err
	}

	previous := domain.DeviceStatus(raw)
	_, err = o.devices.Update(ctx, update.DeviceID, domain.Update{Status: &previous})
	return err
}

// install marks the rollout installing, sleeps to simulate flashing, then
// applies the new firmware version to the device.
func (o *Orchestrator) install(ctx context.Context, updateID string) error {
	update, err := o.getUpdate(ctx, updateID)
	if err != nil {
		return err
	}

	update.Status = domain.UpdateInstalling
	update.Progress = 50
	if err := o.saveUpdate(ctx, update); err != nil {
		return err
	}

	time.Sleep(installDelay)

	toVersion := update.ToVersion
	if _, err := o.devices.Update(ctx, update.DeviceID, domain.Update{FirmwareVersion: &toVersion}); err != nil {
		return err
	}

	update.Progress = 80
	return o.saveUpdate(ctx, update)
}

// rollbackInstall restores the device's prior firmware version using the
// update's own FromVersion field, recorded when the rollout was initiated.
func (o *Orchestrator) rollbackInstall(ctx context.Context, updateID string) error {
	update, err := o.getUpdate(ctx, updateID)
	if err != nil {
		return err
	}

	if update.FromVersion != "" {
		fromVersion := update.FromVersion
		if _, err := o.devices.Update(ctx, update.DeviceID, domain.Update{FirmwareVersion: &fromVersion}); err != nil {
			return err
		}
	}

	update.Status = domain.UpdateRolledBack
	return o.saveUpdate(ctx, update)
}

// verify always fails: this core exists to exercise the compensation path,
// not to model a real checksum. There is no compensation for this step.
func (o *Orchestrator) verify(ctx context.Context, updateID string) error {
	time.Sleep(verifyDelay)
	return errVerificationFailed
}
