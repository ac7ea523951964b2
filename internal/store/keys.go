// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package store

import "fmt"

// Key layout. These are the stable key strings every domain package must
// agree on; centralizing them here keeps the on-disk schema in one place.
func DeviceKey(id string) string            { return fmt.Sprintf("device:%s", id) }
func DeviceAllKey() string                  { return "device:all" }
func DeviceGroupKey(group string) string    { return fmt.Sprintf("device:group:%s", group) }
func DeviceSerialKey(serial string) string  { return fmt.Sprintf("device:serial:%s", serial) }

func TelemetryKey(device, metric string) string { return fmt.Sprintf("telemetry:%s:%s", device, metric) }
func TelemetryPattern(device string) string     { return fmt.Sprintf("telemetry:%s:*", device) }
func TelemetryCountKey(device string) string    { return fmt.Sprintf("telemetry:count:%s", device) }

func AlertRuleKey(id string) string             { return fmt.Sprintf("alert:rule:%s", id) }
func AlertRulesAllKey() string                  { return "alert:rules:all" }
func AlertRulesDeviceKey(device string) string  { return fmt.Sprintf("alert:rules:device:%s", device) }
func AlertRulesGroupKey(group string) string    { return fmt.Sprintf("alert:rules:group:%s", group) }
func AlertKey(id string) string                 { return fmt.Sprintf("alert:%s", id) }
func AlertTimelineKey() string                  { return "alert:timeline" }
func AlertDeviceKey(device string) string       { return fmt.Sprintf("alert:device:%s", device) }
func AlertOpenKey() string                      { return "alert:open" }

func FirmwareUpdateKey(id string) string       { return fmt.Sprintf("firmware:update:%s", id) }
func FirmwareDeviceKey(device string) string   { return fmt.Sprintf("firmware:device:%s", device) }
func FirmwarePendingKey() string               { return "firmware:pending" }
func FirmwareMetadataKey(version string) string { return fmt.Sprintf("firmware:metadata:%s", version) }
func FirmwareVersionsKey() string              { return "firmware:versions" }
func FirmwareMaintenanceKey(updateID string) string {
	return fmt.Sprintf("firmware:maintenance:%s", updateID)
}

func EventsKey(topic string) string { return fmt.Sprintf("events:%s", topic) }
func LockKey(resource string) string { return fmt.Sprintf("lock:%s", resource) }
func RateLimitKey(identifier string) string { return fmt.Sprintf("ratelimit:%s", identifier) }
