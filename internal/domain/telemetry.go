// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package domain

import "time"

// Point is a single telemetry reading.
type Point struct {
	DeviceID  string         `json:"device_id" validate:"required"`
	Timestamp time.Time      `json:"timestamp"`
	Metric    string         `json:"metric" validate:"required,max=128"`
	Value     float64        `json:"value"`
	Unit      string         `json:"unit,omitempty" validate:"omitempty,max=32"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Batch is a set of points emitted by a single device in one submission.
type Batch struct {
	DeviceID string  `json:"device_id" validate:"required"`
	Points   []Point `json:"points" validate:"required,min=1,dive"`
}

// Query selects telemetry points for a device.
type Query struct {
	DeviceID  string
	Metric    string
	StartTime time.Time
	EndTime   time.Time
	Limit     int
}
