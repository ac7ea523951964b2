// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package domain holds the data model shared across every SensorHub
// component: devices, telemetry, alerts, firmware updates and the
// analytics read model built on top of them.
package domain

import "time"

// DeviceStatus is the lifecycle state of a registered device.
type DeviceStatus string

const (
	DeviceRegistered    DeviceStatus = "registered"
	DeviceActive        DeviceStatus = "active"
	DeviceInactive      DeviceStatus = "inactive"
	DeviceMaintenance   DeviceStatus = "maintenance"
	DeviceDecommission  DeviceStatus = "decommissioned"
)

// DeviceType classifies the kind of physical device.
type DeviceType string

const (
	DeviceSensor   DeviceType = "sensor"
	DeviceGateway  DeviceType = "gateway"
	DeviceActuator DeviceType = "actuator"
	DeviceHybrid   DeviceType = "hybrid"
)

// Device is a single fleet member.
type Device struct {
	ID              string         `json:"id"`
	SerialNumber    string         `json:"serial_number"`
	Type            DeviceType     `json:"device_type"`
	Status          DeviceStatus   `json:"status"`
	FirmwareVersion string         `json:"firmware_version"`
	Metadata        map[string]any `json:"metadata,omitempty"`
	RegisteredAt    time.Time      `json:"registered_at"`
	LastSeen        *time.Time     `json:"last_seen,omitempty"`
	Location        string         `json:"location,omitempty"`
	GroupID         string         `json:"group_id,omitempty"`
}

// Registration is the input to registering a new device.
type Registration struct {
	SerialNumber    string         `validate:"required,max=128"`
	Type            DeviceType     `validate:"required,oneof=sensor gateway actuator hybrid"`
	FirmwareVersion string         `validate:"omitempty,max=64"`
	Metadata        map[string]any
	Location        string `validate:"omitempty,max=256"`
	GroupID         string `validate:"omitempty,max=128"`
}

// Update carries the subset of fields a caller wants changed. Nil pointers
// mean "leave unchanged" (the Go analogue of Pydantic's exclude_unset).
type Update struct {
	Status          *DeviceStatus
	Location        *string
	Metadata        map[string]any
	GroupID         *string
	FirmwareVersion *string
}

// Apply mutates d in place, applying only the fields set on u.
func (u Update) Apply(d *Device) {
	if u.Status != nil {
		d.Status = *u.Status
	}
	if u.Location != nil {
		d.Location = *u.Location
	}
	if u.Metadata != nil {
		d.Metadata = u.Metadata
	}
	if u.GroupID != nil {
		d.GroupID = *u.GroupID
	}
	if u.FirmwareVersion != nil {
		d.FirmwareVersion = *u.FirmwareVersion
	}
}
