// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package registry manages the device fleet: idempotent registration,
// lookup, update, and last-seen tracking, backed by the store and
// publishing lifecycle events on the bus.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/daniell-olaitan/sensorhub/internal/apperr"
	"github.com/daniell-olaitan/sensorhub/internal/bus"
	"github.com/daniell-olaitan/sensorhub/internal/domain"
	"github.com/daniell-olaitan/sensorhub/internal/log"
	"github.com/daniell-olaitan/sensorhub/internal/metrics"
	"github.com/daniell-olaitan/sensorhub/internal/store"
	"github.com/daniell-olaitan/sensorhub/internal/validate"
)

// maxRegistrationAttempts bounds the set-if-absent CAS loop; the spec
// documents the original's sleep-retry-storm hazard and adopts the
// bounded-CAS redesign instead (Open Question resolution #1).
const maxRegistrationAttempts = 10

const serialReservationTTL = time.Hour

// Registry is the device fleet's source of truth.
type Registry struct {
	store  *store.Store
	bus    *bus.Bus
	cache  *deviceCache
	logger zerolog.Logger
}

// New builds a Registry over store, publishing lifecycle events on b.
func New(s *store.Store, b *bus.Bus) *Registry {
	return &Registry{
		store:  s,
		bus:    b,
		cache:  newDeviceCache(1024),
		logger: log.WithComponent("registry"),
	}
}

// Register idempotently creates a device for the given serial number. If a
// device is already registered (or reserved) under that serial, the
// existing device is returned instead of creating a duplicate.
func (r *Registry) Register(ctx context.Context, reg domain.Registration) (domain.Device, error) {
	if err := validate.Struct("device", reg); err != nil {
		return domain.Device{}, err
	}

	serialKey := store.DeviceSerialKey(reg.SerialNumber)

	for attempt := 0; attempt < maxRegistrationAttempts; attempt++ {
		if existingID, err := r.store.GetString(ctx, serialKey); err == nil {
			d, err := r.Get(ctx, existingID)
			if !apperr.Is(err, apperr.KindNotFound) {
				return d, err
			}
			// Reserved by a concurrent registration whose device record is
			// not saved yet: fall through, lose the SetNX, back off, re-read.
		} else if !store.IsNotFound(err) {
			return domain.Device{}, fmt.Errorf("registry: check serial %s: %w", reg.SerialNumber, err)
		}

		deviceID := uuid.NewString()
		ok, err := r.store.SetNX(ctx, serialKey, deviceID, serialReservationTTL)
		if err != nil {
			return domain.Device{}, fmt.Errorf("registry: reserve serial %s: %w", reg.SerialNumber, err)
		}

		if ok {
			device := domain.Device{
				ID:              deviceID,
				SerialNumber:    reg.SerialNumber,
				Type:            reg.Type,
				Status:          domain.DeviceRegistered,
				FirmwareVersion: reg.FirmwareVersion,
				Metadata:        reg.Metadata,
				RegisteredAt:    time.Now().UTC(),
				Location:        reg.Location,
				GroupID:         reg.GroupID,
			}
			if err := r.save(ctx, device); err != nil {
				return domain.Device{}, err
			}

			metrics.DevicesRegisteredTotal.Inc()
			if r.bus != nil {
				_ = r.bus.Publish(ctx, "device.lifecycle", "device.registered", map[string]any{
					"device_id":     device.ID,
					"serial_number": device.SerialNumber,
				})
			}
			return device, nil
		}

		if attempt < maxRegistrationAttempts-1 {
			time.Sleep(time.Duration(10*(attempt+1)) * time.Millisecond)
		}
	}

	if existingID, err := r.store.GetString(ctx, serialKey); err == nil {
		return r.Get(ctx, existingID)
	}

	return domain.Device{}, fmt.Errorf("registry: failed to register serial %s after %d attempts", reg.SerialNumber, maxRegistrationAttempts)
}

func (r *Registry) save(ctx context.Context, d domain.Device) error {
	pipe := r.store.Pipeline()

	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("registry: marshal device %s: %w", d.ID, err)
	}

	pipe.Set(ctx, store.DeviceKey(d.ID), data, 0)
	pipe.SAdd(ctx, store.DeviceAllKey(), d.ID)
	if d.GroupID != "" {
		pipe.SAdd(ctx, store.DeviceGroupKey(d.GroupID), d.ID)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("registry: save device %s: %w", d.ID, err)
	}

	r.cache.delete(d.ID)
	return nil
}

// Get returns a device by ID, consulting the in-process cache first.
func (r *Registry) Get(ctx context.Context, id string) (domain.Device, error) {
	if d, ok := r.cache.get(id); ok {
		return d, nil
	}

	var d domain.Device
	if err := r.store.GetJSON(ctx, store.DeviceKey(id), &d); err != nil {
		if store.IsNotFound(err) {
			return domain.Device{}, apperr.NotFound("device", id)
		}
		return domain.Device{}, fmt.Errorf("registry: get device %s: %w", id, err)
	}

	r.cache.put(d)
	return d, nil
}

// GetBySerial resolves a device by its serial number.
func (r *Registry) GetBySerial(ctx context.Context, serial string) (domain.Device, error) {
	id, err := r.store.GetString(ctx, store.DeviceSerialKey(serial))
	if err != nil {
		if store.IsNotFound(err) {
			return domain.Device{}, apperr.NotFound("device", serial)
		}
		return domain.Device{}, fmt.Errorf("registry: resolve serial %s: %w", serial, err)
	}
	return r.Get(ctx, id)
}

// Update applies u to the device identified by id and persists the result.
func (r *Registry) Update(ctx context.Context, id string, u domain.Update) (domain.Device, error) {
	d, err := r.Get(ctx, id)
	if err != nil {
		return domain.Device{}, err
	}

	u.Apply(&d)
	if err := r.save(ctx, d); err != nil {
		return domain.Device{}, err
	}

	if r.bus != nil {
		_ = r.bus.Publish(ctx, "device.lifecycle", "device.updated", map[string]any{
			"device_id": d.ID,
		})
	}

	return d, nil
}

// MarkActive stamps last_seen and transitions the device to active, the
// side effect every successful telemetry ingest triggers.
func (r *Registry) MarkActive(ctx context.Context, id string) error {
	d, err := r.Get(ctx, id)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	d.LastSeen = &now
	d.Status = domain.DeviceActive

	return r.save(ctx, d)
}

// List returns devices, optionally scoped to a group, up to limit.
func (r *Registry) List(ctx context.Context, groupID string, limit int) ([]domain.Device, error) {
	key := store.DeviceAllKey()
	if groupID != "" {
		key = store.DeviceGroupKey(groupID)
	}

	ids, err := r.store.SMembers(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("registry: list devices: %w", err)
	}

	devices := make([]domain.Device, 0, len(ids))
	for _, id := range ids {
		d, err := r.Get(ctx, id)
		if err != nil {
			continue
		}
		devices = append(devices, d)
		if limit > 0 && len(devices) >= limit {
			break
		}
	}
	return devices, nil
}

// ExistsBySerial reports whether a device is already registered for serial.
func (r *Registry) ExistsBySerial(ctx context.Context, serial string) (bool, error) {
	_, err := r.store.GetString(ctx, store.DeviceSerialKey(serial))
	if err == nil {
		return true, nil
	}
	if store.IsNotFound(err) {
		return false, nil
	}
	return false, err
}
