// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package firmware drives device firmware rollouts through a four-step
// saga (download, enter maintenance, install, verify), compensating in
// reverse on the first failure. The verify step always fails in this
// core, by design: it exists to exercise the compensation path.
package firmware

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/daniell-olaitan/sensorhub/internal/apperr"
	"github.com/daniell-olaitan/sensorhub/internal/bus"
	"github.com/daniell-olaitan/sensorhub/internal/domain"
	"github.com/daniell-olaitan/sensorhub/internal/lock"
	"github.com/daniell-olaitan/sensorhub/internal/log"
	"github.com/daniell-olaitan/sensorhub/internal/metrics"
	"github.com/daniell-olaitan/sensorhub/internal/registry"
	"github.com/daniell-olaitan/sensorhub/internal/saga"
	"github.com/daniell-olaitan/sensorhub/internal/store"
	"github.com/daniell-olaitan/sensorhub/internal/validate"
)

// initiateLockResource scopes the distributed lock InitiateUpdate takes
// around its idempotency check, so two concurrent requests for the same
// device can't both observe "no update in flight" and both start a
// rollout.
func initiateLockResource(deviceID string) string {
	return fmt.Sprintf("firmware:initiate:%s", deviceID)
}

// errVerificationFailed is the fixed cause every rollout's verify step
// raises, mirroring the original's unconditional checksum-mismatch
// exception.
var errVerificationFailed = errors.New("installation verification failed: checksum mismatch")

// Orchestrator drives firmware rollouts end to end: initiation, the
// download/maintenance/install/verify saga, and the read-only catalog.
type Orchestrator struct {
	store   *store.Store
	bus     *bus.Bus
	devices *registry.Registry
	logger  zerolog.Logger
}

// New builds an Orchestrator.
func New(s *store.Store, b *bus.Bus, devices *registry.Registry) *Orchestrator {
	return &Orchestrator{store: s, bus: b, devices: devices, logger: log.WithComponent("firmware")}
}

// InitiateUpdate starts (or returns the existing) rollout for a device. If
// an update is already in flight for the device and req.Force is false,
// that in-flight update is returned instead of starting a new one.
func (o *Orchestrator) InitiateUpdate(ctx context.Context, req domain.UpdateRequest) (domain.FirmwareUpdate, error) {
	if err := validate.Struct("firmware_update", req); err != nil {
		return domain.FirmwareUpdate{}, err
	}

	var update domain.FirmwareUpdate
	var existingInFlight bool

	lockErr := lock.WithLock(ctx, o.store, initiateLockResource(req.DeviceID), lock.DefaultConfig(), func(ctx context.Context) error {
		if !req.Force {
			existing, found, err := o.getDeviceUpdate(ctx, req.DeviceID)
			if err != nil {
				return err
			}
			if found && !existing.Status.Terminal() {
				update = existing
				existingInFlight = true
				return nil
			}
		}

		device, err := o.devices.Get(ctx, req.DeviceID)
		if err != nil {
			return err
		}

		if _, found, err := o.getMetadata(ctx, req.ToVersion); err != nil {
			return err
		} else if !found {
			return apperr.Invalid("firmware_update", fmt.Sprintf("version %s not found", req.ToVersion))
		}

		update = domain.FirmwareUpdate{
			ID:          newUpdateID(),
			DeviceID:    device.ID,
			FromVersion: device.FirmwareVersion,
			ToVersion:   req.ToVersion,
			Status:      domain.UpdatePending,
			StartedAt:   time.Now().UTC(),
		}
		return o.saveUpdate(ctx, update)
	})
	if lockErr != nil {
		if errors.Is(lockErr, lock.ErrNotAcquired) {
			return domain.FirmwareUpdate{}, apperr.LockUnavailable("firmware_update", lockErr)
		}
		return domain.FirmwareUpdate{}, lockErr
	}

	if existingInFlight {
		return update, nil
	}

	go o.run(context.WithoutCancel(ctx), update.ID)

	return update, nil
}

// run executes the saga for an already-pending update and records its
// terminal outcome. It runs detached from the request that started it:
// initiate_update's original request handler awaits the rollout inline, but
// per the concurrency model every suspension point here is I/O (simulated
// download/install delays, store round-trips), so the caller gets the
// pending record back immediately and the rollout's progress is observed
// through GetUpdate or the firmware.updates events, not the initiate call.
func (o *Orchestrator) run(ctx context.Context, updateID string) {
	var compensated bool

	s := saga.New(fmt.Sprintf("firmware_update_%s", updateID)).
		AddStep(saga.Step{
			Name:         "download",
			Action:       func(ctx context.Context) error { return o.download(ctx, updateID) },
			Compensation: func(ctx context.Context) error { compensated = true; return o.rollbackDownload(ctx, updateID) },
		}).
		AddStep(saga.Step{
			Name:         "set_maintenance",
			Action:       func(ctx context.Context) error { return o.setMaintenance(ctx, updateID) },
			Compensation: func(ctx context.Context) error { compensated = true; return o.restoreDeviceStatus(ctx, updateID) },
		}).
		AddStep(saga.Step{
			Name:         "install",
			Action:       func(ctx context.Context) error { return o.install(ctx, updateID) },
			Compensation: func(ctx context.Context) error { compensated = true; return o.rollbackInstall(ctx, updateID) },
		}).
		AddStep(saga.Step{
			Name:   "verify",
			Action: func(ctx context.Context) error { return o.verify(ctx, updateID) },
		})

	if err := s.Execute(ctx); err != nil {
		o.finishFailed(ctx, updateID, err, compensated)
		return
	}
	o.finishInstalled(ctx, updateID)
}

func (o *Orchestrator) finishInstalled(ctx context.Context, updateID string) {
	update, err := o.getUpdate(ctx, updateID)
	if err != nil {
		o.logger.Error().Err(err).Str("update_id", updateID).Msg("failed to load update after saga success")
		return
	}

	now := time.Now().UTC()
	update.Status = domain.UpdateInstalled
	update.Progress = 100
	update.CompletedAt = &now
	if err := o.saveUpdate(ctx, update); err != nil {
		o.logger.Error().Err(err).Str("update_id", updateID).Msg("failed to save installed update")
	}

	statusActive := domain.DeviceActive
	if _, err := o.devices.Update(ctx, update.DeviceID, domain.Update{Status: &statusActive}); err != nil {
		o.logger.Error().Err(err).Str("device_id", update.DeviceID).Msg("failed to activate device after install")
	}

	metrics.FirmwareUpdatesTotal.WithLabelValues("installed").Inc()
	if o.bus != nil {
		_ = o.bus.Publish(ctx, "firmware.updates", "update.completed", map[string]any{
			"update_id": update.ID,
			"device_id": update.DeviceID,
		})
	}
}

// finishFailed records the saga's terminal outcome. Per spec §4.10, the
// outcome depends on whether any compensation actually ran: if the saga
// unwound state, the rollout is rolled_back; if it failed before any step
// completed (nothing to unwind), it is failed.
func (o *Orchestrator) finishFailed(ctx context.Context, updateID string, cause error, compensated bool) {
	update, err := o.getUpdate(ctx, updateID)
	if err != nil {
		o.logger.Error().Err(err).Str("update_id", updateID).Msg("failed to load update after saga failure")
		return
	}

	now := time.Now().UTC()
	outcome := domain.UpdateFailed
	if compensated {
		outcome = domain.UpdateRolledBack
	}
	update.Status = outcome
	update.Error = apperr.SagaFailed("firmware_update", cause).Error()
	update.CompletedAt = &now
	if err := o.saveUpdate(ctx, update); err != nil {
		o.logger.Error().Err(err).Str("update_id", updateID).Msg("failed to save failed update")
	}

	metrics.FirmwareUpdatesTotal.WithLabelValues(string(outcome)).Inc()
	if o.bus != nil {
		_ = o.bus.Publish(ctx, "firmware.updates", "update.failed", map[string]any{
			"update_id": update.ID,
			"error":     update.Error,
		})
	}
}

// GetUpdate loads a rollout by ID.
func (o *Orchestrator) GetUpdate(ctx context.Context, updateID string) (domain.FirmwareUpdate, error) {
	return o.getUpdate(ctx, updateID)
}

// RegisterFirmware adds a version to the catalog and publishes
// firmware.catalog/firmware.registered.
func (o *Orchestrator) RegisterFirmware(ctx context.Context, m domain.Metadata) error {
	if err := o.saveMetadata(ctx, m); err != nil {
		return err
	}
	if o.bus != nil {
		_ = o.bus.Publish(ctx, "firmware.catalog", "firmware.registered", map[string]any{"version": m.Version})
	}
	return nil
}

// ListVersions returns every catalog version.
func (o *Orchestrator) ListVersions(ctx context.Context) ([]string, error) {
	return o.listVersions(ctx)
}

// ListPending returns every rollout not yet in a terminal state.
func (o *Orchestrator) ListPending(ctx context.Context) ([]domain.FirmwareUpdate, error) {
	return o.listPendingUpdates(ctx)
}
