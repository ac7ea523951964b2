// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	DevicesRegisteredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sensorhub_devices_registered_total",
		Help: "Total number of devices registered",
	})

	TelemetryPointsIngestedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sensorhub_telemetry_points_ingested_total",
		Help: "Total number of telemetry points ingested",
	}, []string{"metric"})

	TelemetryRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sensorhub_telemetry_rejected_total",
		Help: "Total number of telemetry submissions rejected",
	}, []string{"reason"})

	AlertsTriggeredTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sensorhub_alerts_triggered_total",
		Help: "Total number of alerts triggered",
	}, []string{"severity"})

	FirmwareUpdatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sensorhub_firmware_updates_total",
		Help: "Total number of firmware updates by terminal outcome",
	}, []string{"outcome"})
)
