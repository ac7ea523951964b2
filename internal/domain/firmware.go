// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package domain

import "time"

// UpdateStatus is the lifecycle state of a firmware rollout.
type UpdateStatus string

const (
	UpdatePending     UpdateStatus = "pending"
	UpdateDownloading UpdateStatus = "downloading"
	UpdateDownloaded  UpdateStatus = "downloaded"
	UpdateInstalling  UpdateStatus = "installing"
	UpdateInstalled   UpdateStatus = "installed"
	UpdateFailed      UpdateStatus = "failed"
	UpdateRolledBack  UpdateStatus = "rolled_back"
)

// Terminal reports whether status is a terminal state for the rollout.
func (s UpdateStatus) Terminal() bool {
	switch s {
	case UpdateInstalled, UpdateFailed, UpdateRolledBack:
		return true
	default:
		return false
	}
}

// FirmwareUpdate tracks a single device's rollout of a new firmware version.
type FirmwareUpdate struct {
	ID          string       `json:"id"`
	DeviceID    string       `json:"device_id"`
	FromVersion string       `json:"from_version"`
	ToVersion   string       `json:"to_version"`
	Status      UpdateStatus `json:"status"`
	Progress    int          `json:"progress"`
	StartedAt   time.Time    `json:"started_at"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
	Error       string       `json:"error,omitempty"`
}

// UpdateRequest is the input to initiating a firmware rollout.
type UpdateRequest struct {
	DeviceID  string `validate:"required"`
	ToVersion string `validate:"required,max=64"`
	Force     bool
}

// Metadata describes a firmware image available in the catalog.
type Metadata struct {
	Version              string    `json:"version"`
	SizeBytes            int64     `json:"size_bytes"`
	Checksum             string    `json:"checksum"`
	ReleaseNotes         string    `json:"release_notes"`
	MinCompatibleVersion string    `json:"min_compatible_version"`
	CreatedAt            time.Time `json:"created_at"`
}
