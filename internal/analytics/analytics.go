// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package analytics builds read-only rollups (per-device, fleet-wide,
// per-group) over the registry, telemetry, alerts and firmware packages.
// It owns no storage of its own.
package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/daniell-olaitan/sensorhub/internal/apperr"
	"github.com/daniell-olaitan/sensorhub/internal/cache"
	"github.com/daniell-olaitan/sensorhub/internal/domain"
)

type deviceLister interface {
	Get(ctx context.Context, id string) (domain.Device, error)
	List(ctx context.Context, groupID string, limit int) ([]domain.Device, error)
}

type messageCounter interface {
	MessageCount(ctx context.Context, deviceID string) (int64, error)
}

type openAlertCounter interface {
	CountOpenAlerts(ctx context.Context) (int64, error)
}

type pendingUpdateLister interface {
	ListPending(ctx context.Context) ([]domain.FirmwareUpdate, error)
}

// listLimit bounds how many devices a fleet/group rollup will scan,
// matching the original's list_devices(limit=10000) ceiling.
const listLimit = 10000

// averageLatencyMs and the zeroed error/alert counts below are carried
// over unchanged from the original: nothing in this core's telemetry or
// alert storage tracks per-message latency or per-device error counts, so
// get_device_metrics and get_group_analytics report fixed placeholders
// rather than inventing a metric this core doesn't actually compute.
const averageLatencyMs = 10.5

// fleetCacheKey caches the single most expensive rollup this package
// computes: FleetAnalytics scans every registered device. A dashboard
// polling it repeatedly would otherwise re-run that scan on every request.
const fleetCacheKey = "fleet"
const fleetCacheTTL = 5 * time.Second

// Service computes analytics rollups from the other services' read paths.
type Service struct {
	devices  deviceLister
	messages messageCounter
	alerts   openAlertCounter
	firmware pendingUpdateLister

	cache    cache.Cache
	cacheTTL time.Duration
}

// New builds a Service over its collaborators, caching FleetAnalytics in an
// in-memory store for fleetCacheTTL.
func New(devices deviceLister, messages messageCounter, alerts openAlertCounter, firmware pendingUpdateLister) *Service {
	return newService(devices, messages, alerts, firmware, cache.NewMemoryCache(time.Minute), fleetCacheTTL)
}

// NewWithCache builds a Service over a caller-supplied cache backend (for
// example a cache.RedisCache, so the FleetAnalytics rollup is shared across
// every process in a fleet rather than cached per-instance) and TTL.
func NewWithCache(devices deviceLister, messages messageCounter, alerts openAlertCounter, firmware pendingUpdateLister, c cache.Cache, ttl time.Duration) *Service {
	return newService(devices, messages, alerts, firmware, c, ttl)
}

func newService(devices deviceLister, messages messageCounter, alerts openAlertCounter, firmware pendingUpdateLister, c cache.Cache, ttl time.Duration) *Service {
	return &Service{devices: devices, messages: messages, alerts: alerts, firmware: firmware, cache: c, cacheTTL: ttl}
}

// DeviceMetrics reports uptime, message volume and the fixed
// error/latency placeholders for a single device.
func (s *Service) DeviceMetrics(ctx context.Context, deviceID string) (domain.DeviceMetrics, error) {
	device, err := s.devices.Get(ctx, deviceID)
	if err != nil {
		return domain.DeviceMetrics{}, err
	}

	count, err := s.messages.MessageCount(ctx, deviceID)
	if err != nil {
		return domain.DeviceMetrics{}, fmt.Errorf("analytics: message count for %s: %w", deviceID, err)
	}

	return domain.DeviceMetrics{
		DeviceID:         deviceID,
		UptimeSeconds:    uptimeSeconds(device),
		MessageCount:     count,
		LastSeen:         device.LastSeen,
		ErrorCount:       0,
		AverageLatencyMs: averageLatencyMs,
	}, nil
}

// FleetAnalytics rolls up every registered device: counts by status,
// total message volume, average uptime, open alerts and pending rollouts.
func (s *Service) FleetAnalytics(ctx context.Context) (domain.FleetAnalytics, error) {
	if cached, ok := s.cache.Get(fleetCacheKey); ok {
		if fa, ok := cached.(domain.FleetAnalytics); ok {
			return fa, nil
		}
		// A JSON-backed cache such as cache.RedisCache hands back the
		// decoded JSON value rather than the struct; convert it back.
		if raw, err := json.Marshal(cached); err == nil {
			var fa domain.FleetAnalytics
			if json.Unmarshal(raw, &fa) == nil {
				return fa, nil
			}
		}
	}

	fa, err := s.computeFleetAnalytics(ctx)
	if err != nil {
		return domain.FleetAnalytics{}, err
	}

	s.cache.Set(fleetCacheKey, fa, s.cacheTTL)
	return fa, nil
}

func (s *Service) computeFleetAnalytics(ctx context.Context) (domain.FleetAnalytics, error) {
	devices, err := s.devices.List(ctx, "", listLimit)
	if err != nil {
		return domain.FleetAnalytics{}, fmt.Errorf("analytics: list devices: %w", err)
	}

	active := 0
	var totalMessages, totalUptime int64
	for _, d := range devices {
		if d.Status == domain.DeviceActive {
			active++
		}
		count, err := s.messages.MessageCount(ctx, d.ID)
		if err != nil {
			return domain.FleetAnalytics{}, fmt.Errorf("analytics: message count for %s: %w", d.ID, err)
		}
		totalMessages += count
		totalUptime += uptimeSeconds(d)
	}

	openAlerts, err := s.alerts.CountOpenAlerts(ctx)
	if err != nil {
		return domain.FleetAnalytics{}, fmt.Errorf("analytics: count open alerts: %w", err)
	}

	pending, err := s.firmware.ListPending(ctx)
	if err != nil {
		return domain.FleetAnalytics{}, fmt.Errorf("analytics: list pending updates: %w", err)
	}

	total := len(devices)
	return domain.FleetAnalytics{
		TotalDevices:         total,
		ActiveDevices:        active,
		InactiveDevices:      total - active,
		TotalMessages:        totalMessages,
		MessagesPerSecond:    0,
		ActiveAlerts:         openAlerts,
		PendingUpdates:       len(pending),
		AverageUptimeSeconds: averageOf(totalUptime, total),
	}, nil
}

// GroupAnalytics rolls up every device in a group. alert_count is a fixed
// zero: the original never wires the alert store into this path either.
func (s *Service) GroupAnalytics(ctx context.Context, groupID string) (domain.GroupAnalytics, error) {
	if groupID == "" {
		return domain.GroupAnalytics{}, apperr.Invalid("group_analytics", "group id is required")
	}

	devices, err := s.devices.List(ctx, groupID, listLimit)
	if err != nil {
		return domain.GroupAnalytics{}, fmt.Errorf("analytics: list devices for group %s: %w", groupID, err)
	}

	active := 0
	var totalMessages, totalUptime int64
	for _, d := range devices {
		if d.Status == domain.DeviceActive {
			active++
		}
		count, err := s.messages.MessageCount(ctx, d.ID)
		if err != nil {
			return domain.GroupAnalytics{}, fmt.Errorf("analytics: message count for %s: %w", d.ID, err)
		}
		totalMessages += count
		totalUptime += uptimeSeconds(d)
	}

	return domain.GroupAnalytics{
		GroupID:              groupID,
		DeviceCount:          len(devices),
		ActiveCount:          active,
		TotalMessages:        totalMessages,
		AlertCount:           0,
		AverageUptimeSeconds: averageOf(totalUptime, len(devices)),
	}, nil
}

func uptimeSeconds(d domain.Device) int64 {
	if d.LastSeen == nil {
		return 0
	}
	return int64(d.LastSeen.Sub(d.RegisteredAt).Seconds())
}

func averageOf(total int64, count int) float64 {
	if count == 0 {
		return 0
	}
	return float64(total) / float64(count)
}
