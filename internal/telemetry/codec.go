// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/daniell-olaitan/sensorhub/internal/domain"
	"github.com/daniell-olaitan/sensorhub/internal/store"
)

// retentionSeconds bounds how long a telemetry series stays queryable,
// matching the original's telemetry_retention_seconds default (24h).
const retentionSeconds = 86400

func pipeAddPoint(pipe redis.Pipeliner, p domain.Point) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("telemetry: marshal point for %s/%s: %w", p.DeviceID, p.Metric, err)
	}

	key := store.TelemetryKey(p.DeviceID, p.Metric)
	ctx := context.Background()
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(p.Timestamp.Unix()), Member: data})
	pipe.Expire(ctx, key, retentionSeconds*time.Second)
	return nil
}

func decodePoint(raw string) (domain.Point, error) {
	var p domain.Point
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return domain.Point{}, fmt.Errorf("telemetry: decode point: %w", err)
	}
	return p, nil
}

func scoreRangeFor(q domain.Query) (string, string) {
	min := "-inf"
	max := "+inf"
	if !q.StartTime.IsZero() {
		min = strconv.FormatInt(q.StartTime.Unix(), 10)
	}
	if !q.EndTime.IsZero() {
		max = strconv.FormatInt(q.EndTime.Unix(), 10)
	}
	return min, max
}
