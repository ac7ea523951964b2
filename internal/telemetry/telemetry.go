// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package telemetry ingests device readings through the gate/persist/
// side-effect pipeline spec §4.2 describes: global rate limit,
// backpressure shedding, per-device rate limit, persistence, device
// activity tracking, alert evaluation, and an ingestion event.
package telemetry

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/daniell-olaitan/sensorhub/internal/apperr"
	"github.com/daniell-olaitan/sensorhub/internal/bus"
	"github.com/daniell-olaitan/sensorhub/internal/domain"
	"github.com/daniell-olaitan/sensorhub/internal/log"
	"github.com/daniell-olaitan/sensorhub/internal/metrics"
	"github.com/daniell-olaitan/sensorhub/internal/ratelimit"
	"github.com/daniell-olaitan/sensorhub/internal/store"
	"github.com/daniell-olaitan/sensorhub/internal/validate"
)

// Backpressure thresholds against the bus queue depth, straight from the
// original's BackpressureMiddleware (queue_threshold / reject_threshold).
const (
	defaultQueueThreshold  = 8000
	defaultRejectThreshold = 9500
)

// activeMarker is the subset of registry.Registry telemetry depends on, so
// this package never needs the full registry surface (or its import).
type activeMarker interface {
	MarkActive(ctx context.Context, id string) error
}

// alertChecker is the subset of alerts.Service telemetry needs.
type alertChecker interface {
	CheckAlerts(ctx context.Context, point domain.Point) error
}

// Config tunes the backpressure gate.
type Config struct {
	QueueThreshold  int
	RejectThreshold int
}

// DefaultConfig returns the original's documented thresholds.
func DefaultConfig() Config {
	return Config{QueueThreshold: defaultQueueThreshold, RejectThreshold: defaultRejectThreshold}
}

// Service ingests and queries telemetry.
type Service struct {
	store   *store.Store
	bus     *bus.Bus
	limiter *ratelimit.Limiter
	devices activeMarker
	alerts  alertChecker
	config  Config
	logger  zerolog.Logger
}

// New builds a Service. devices and alerts may be nil in tests that only
// exercise the gating/persistence path.
func New(s *store.Store, b *bus.Bus, limiter *ratelimit.Limiter, devices activeMarker, alerts alertChecker, cfg Config) *Service {
	if cfg.QueueThreshold <= 0 {
		cfg = DefaultConfig()
	}
	return &Service{
		store:   s,
		bus:     b,
		limiter: limiter,
		devices: devices,
		alerts:  alerts,
		config:  cfg,
		logger:  log.WithComponent("telemetry"),
	}
}

// checkBackpressure sheds load before a device-level rate check ever runs,
// mirroring the original's reject-threshold-before-queue-threshold order.
func (s *Service) checkBackpressure() error {
	if s.bus == nil {
		return nil
	}
	depth := s.bus.QueueDepth()
	if depth >= s.config.RejectThreshold {
		metrics.TelemetryRejectedTotal.WithLabelValues("overloaded").Inc()
		return apperr.Shed("telemetry", "service unavailable due to high load")
	}
	if depth >= s.config.QueueThreshold {
		metrics.TelemetryRejectedTotal.WithLabelValues("backpressure").Inc()
		return apperr.New(apperr.KindRateLimited, "telemetry", "too many requests, please slow down")
	}
	return nil
}

func (s *Service) checkDeviceRateLimit(ctx context.Context, deviceID string) error {
	if s.limiter == nil {
		return nil
	}
	allowed, _, err := s.limiter.CheckDevice(ctx, deviceID)
	if err != nil {
		return fmt.Errorf("telemetry: rate limit check for %s: %w", deviceID, err)
	}
	if !allowed {
		metrics.TelemetryRejectedTotal.WithLabelValues("rate_limited").Inc()
		return apperr.RateLimited("telemetry", fmt.Sprintf("rate limit exceeded for device %s", deviceID))
	}
	return nil
}

// IngestPoint runs a single point through the full pipeline.
func (s *Service) IngestPoint(ctx context.Context, point domain.Point) error {
	if err := validate.Struct("telemetry_point", point); err != nil {
		return err
	}
	if err := s.checkBackpressure(); err != nil {
		return err
	}
	if err := s.checkDeviceRateLimit(ctx, point.DeviceID); err != nil {
		return err
	}

	if err := s.savePoint(ctx, point); err != nil {
		return err
	}

	s.afterIngest(ctx, point.DeviceID, []domain.Point{point})

	if s.bus != nil {
		_ = s.bus.Publish(ctx, "telemetry.ingested", "telemetry.point", map[string]any{
			"device_id": point.DeviceID,
			"metric":    point.Metric,
			"value":     point.Value,
		})
	}

	return nil
}

// IngestBatch runs a batch of points from one device through the pipeline,
// checking the device rate limit once for the whole batch.
func (s *Service) IngestBatch(ctx context.Context, batch domain.Batch) error {
	if err := validate.Struct("telemetry_batch", batch); err != nil {
		return err
	}
	if err := s.checkBackpressure(); err != nil {
		return err
	}
	if err := s.checkDeviceRateLimit(ctx, batch.DeviceID); err != nil {
		return err
	}

	if err := s.saveBatch(ctx, batch.Points); err != nil {
		return err
	}

	s.afterIngest(ctx, batch.DeviceID, batch.Points)

	if s.bus != nil {
		_ = s.bus.Publish(ctx, "telemetry.ingested", "telemetry.batch", map[string]any{
			"device_id":   batch.DeviceID,
			"point_count": len(batch.Points),
		})
	}

	return nil
}

// afterIngest runs the side effects common to both paths: mark the device
// active and evaluate alert rules against every point. Neither failure
// aborts ingestion — the point is already durably persisted.
func (s *Service) afterIngest(ctx context.Context, deviceID string, points []domain.Point) {
	if s.devices != nil {
		if err := s.devices.MarkActive(ctx, deviceID); err != nil {
			s.logger.Warn().Err(err).Str("device_id", deviceID).Msg("failed to mark device active")
		}
	}

	for _, p := range points {
		metrics.TelemetryPointsIngestedTotal.WithLabelValues(p.Metric).Inc()
		if s.alerts == nil {
			continue
		}
		if err := s.alerts.CheckAlerts(ctx, p); err != nil {
			s.logger.Warn().Err(err).Str("device_id", deviceID).Str("metric", p.Metric).Msg("alert evaluation failed")
		}
	}
}

func (s *Service) savePoint(ctx context.Context, point domain.Point) error {
	pipe := s.store.Pipeline()
	if err := pipeAddPoint(pipe, point); err != nil {
		return err
	}
	pipe.Incr(ctx, store.TelemetryCountKey(point.DeviceID))

	if _, err := pipe.Exec(ctx); err != nil {
		return apperr.Wrap(apperr.KindTransient, "telemetry_point", fmt.Errorf("save point for %s: %w", point.DeviceID, err))
	}
	return nil
}

func (s *Service) saveBatch(ctx context.Context, points []domain.Point) error {
	if len(points) == 0 {
		return nil
	}

	pipe := s.store.Pipeline()
	for _, p := range points {
		if err := pipeAddPoint(pipe, p); err != nil {
			return err
		}
	}
	pipe.IncrBy(ctx, store.TelemetryCountKey(points[0].DeviceID), int64(len(points)))

	if _, err := pipe.Exec(ctx); err != nil {
		return apperr.Wrap(apperr.KindTransient, "telemetry_batch", fmt.Errorf("save batch for %s: %w", points[0].DeviceID, err))
	}
	return nil
}

// Query returns points matching q, most recent first, truncated to q.Limit.
func (s *Service) Query(ctx context.Context, q domain.Query) ([]domain.Point, error) {
	var keys []string
	if q.Metric != "" {
		keys = []string{store.TelemetryKey(q.DeviceID, q.Metric)}
	} else {
		found, err := s.store.Keys(ctx, store.TelemetryPattern(q.DeviceID))
		if err != nil {
			return nil, fmt.Errorf("telemetry: list metrics for %s: %w", q.DeviceID, err)
		}
		keys = found
	}

	minScore, maxScore := scoreRangeFor(q)

	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}

	var points []domain.Point
	for _, key := range keys {
		raw, err := s.store.ZRangeByScore(ctx, key, minScore, maxScore, 0)
		if err != nil {
			return nil, fmt.Errorf("telemetry: query %s: %w", key, err)
		}
		for _, r := range raw {
			p, err := decodePoint(r)
			if err != nil {
				continue
			}
			points = append(points, p)
		}
	}

	sort.Slice(points, func(i, j int) bool { return points[i].Timestamp.After(points[j].Timestamp) })
	if len(points) > limit {
		points = points[:limit]
	}
	return points, nil
}

// Latest returns the most recent point for device/metric, if any.
func (s *Service) Latest(ctx context.Context, deviceID, metric string) (domain.Point, bool, error) {
	key := store.TelemetryKey(deviceID, metric)
	raw, err := s.store.ZRange(ctx, key, -1, -1)
	if err != nil {
		return domain.Point{}, false, fmt.Errorf("telemetry: latest for %s/%s: %w", deviceID, metric, err)
	}
	if len(raw) == 0 {
		return domain.Point{}, false, nil
	}
	p, err := decodePoint(raw[0])
	if err != nil {
		return domain.Point{}, false, err
	}
	return p, true, nil
}

// MessageCount returns the total number of points ever recorded for a
// device (the running counter save{Point,Batch} increments).
func (s *Service) MessageCount(ctx context.Context, deviceID string) (int64, error) {
	count, err := s.store.Client().Get(ctx, store.TelemetryCountKey(deviceID)).Int64()
	if err != nil {
		if store.IsNotFound(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("telemetry: message count for %s: %w", deviceID, err)
	}
	return count, nil
}
