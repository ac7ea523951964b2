// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package firmware

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/daniell-olaitan/sensorhub/internal/apperr"
	"github.com/daniell-olaitan/sensorhub/internal/domain"
	"github.com/daniell-olaitan/sensorhub/internal/store"
)

// saveUpdate persists an update record and maintains the device and
// pending indexes. A record already marked failed is terminal: later
// writes for the same update ID are silently dropped, matching
// firmware_store.py's own refusal to resurrect a failed rollout.
func (o *Orchestrator) saveUpdate(ctx context.Context, u domain.FirmwareUpdate) error {
	var existing domain.FirmwareUpdate
	if err := o.store.GetJSON(ctx, store.FirmwareUpdateKey(u.ID), &existing); err == nil {
		if existing.Status == domain.UpdateFailed {
			return nil
		}
	} else if !store.IsNotFound(err) {
		return fmt.Errorf("firmware: check existing update %s: %w", u.ID, err)
	}

	data, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("firmware: marshal update %s: %w", u.ID, err)
	}

	pipe := o.store.Pipeline()
	pipe.Set(ctx, store.FirmwareUpdateKey(u.ID), data, 0)
	pipe.Set(ctx, store.FirmwareDeviceKey(u.DeviceID), u.ID, 0)

	switch u.Status {
	case domain.UpdatePending:
		pipe.SAdd(ctx, store.FirmwarePendingKey(), u.ID)
	case domain.UpdateInstalled, domain.UpdateFailed, domain.UpdateRolledBack:
		pipe.SRem(ctx, store.FirmwarePendingKey(), u.ID)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("firmware: save update %s: %w", u.ID, err)
	}
	return nil
}

func (o *Orchestrator) getUpdate(ctx context.Context, id string) (domain.FirmwareUpdate, error) {
	var u domain.FirmwareUpdate
	if err := o.store.GetJSON(ctx, store.FirmwareUpdateKey(id), &u); err != nil {
		if store.IsNotFound(err) {
			return domain.FirmwareUpdate{}, apperr.NotFound("firmware_update", id)
		}
		return domain.FirmwareUpdate{}, fmt.Errorf("firmware: get update %s: %w", id, err)
	}
	return u, nil
}

func (o *Orchestrator) getDeviceUpdate(ctx context.Context, deviceID string) (domain.FirmwareUpdate, bool, error) {
	id, err := o.store.GetString(ctx, store.FirmwareDeviceKey(deviceID))
	if err != nil {
		if store.IsNotFound(err) {
			return domain.FirmwareUpdate{}, false, nil
		}
		return domain.FirmwareUpdate{}, false, fmt.Errorf("firmware: resolve device update for %s: %w", deviceID, err)
	}
	u, err := o.getUpdate(ctx, id)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return domain.FirmwareUpdate{}, false, nil
		}
		return domain.FirmwareUpdate{}, false, err
	}
	return u, true, nil
}

// listPendingUpdates returns every update not yet in a terminal state.
func (o *Orchestrator) listPendingUpdates(ctx context.Context) ([]domain.FirmwareUpdate, error) {
	ids, err := o.store.SMembers(ctx, store.FirmwarePendingKey())
	if err != nil {
		return nil, fmt.Errorf("firmware: list pending updates: %w", err)
	}

	updates := make([]domain.FirmwareUpdate, 0, len(ids))
	for _, id := range ids {
		u, err := o.getUpdate(ctx, id)
		if err != nil {
			continue
		}
		updates = append(updates, u)
	}
	return updates, nil
}

// saveMetadata registers a firmware image in the catalog.
func (o *Orchestrator) saveMetadata(ctx context.Context, m domain.Metadata) error {
	if err := o.store.SetJSON(ctx, store.FirmwareMetadataKey(m.Version), m, 0); err != nil {
		return fmt.Errorf("firmware: save metadata %s: %w", m.Version, err)
	}
	if err := o.store.SAdd(ctx, store.FirmwareVersionsKey(), m.Version); err != nil {
		return fmt.Errorf("firmware: index version %s: %w", m.Version, err)
	}
	return nil
}

func (o *Orchestrator) getMetadata(ctx context.Context, version string) (domain.Metadata, bool, error) {
	var m domain.Metadata
	if err := o.store.GetJSON(ctx, store.FirmwareMetadataKey(version), &m); err != nil {
		if store.IsNotFound(err) {
			return domain.Metadata{}, false, nil
		}
		return domain.Metadata{}, false, fmt.Errorf("firmware: get metadata %s: %w", version, err)
	}
	return m, true, nil
}

// listVersions returns every firmware version registered in the catalog.
func (o *Orchestrator) listVersions(ctx context.Context) ([]string, error) {
	return o.store.SMembers(ctx, store.FirmwareVersionsKey())
}
