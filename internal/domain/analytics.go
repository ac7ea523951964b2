// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package domain

import "time"

// DeviceMetrics is the per-device analytics read model.
type DeviceMetrics struct {
	DeviceID          string     `json:"device_id"`
	UptimeSeconds     int64      `json:"uptime_seconds"`
	MessageCount      int64      `json:"message_count"`
	LastSeen          *time.Time `json:"last_seen,omitempty"`
	ErrorCount        int64      `json:"error_count"`
	AverageLatencyMs  float64    `json:"average_latency_ms"`
}

// FleetAnalytics is the fleet-wide analytics read model.
type FleetAnalytics struct {
	TotalDevices         int     `json:"total_devices"`
	ActiveDevices        int     `json:"active_devices"`
	InactiveDevices      int     `json:"inactive_devices"`
	TotalMessages        int64   `json:"total_messages"`
	MessagesPerSecond    float64 `json:"messages_per_second"`
	ActiveAlerts         int64   `json:"active_alerts"`
	PendingUpdates       int     `json:"pending_updates"`
	AverageUptimeSeconds float64 `json:"average_uptime_seconds"`
}

// GroupAnalytics is the per-group analytics read model.
type GroupAnalytics struct {
	GroupID              string  `json:"group_id"`
	DeviceCount          int     `json:"device_count"`
	ActiveCount          int     `json:"active_count"`
	TotalMessages        int64   `json:"total_messages"`
	AlertCount           int64   `json:"alert_count"`
	AverageUptimeSeconds float64 `json:"average_uptime_seconds"`
}
