// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import "time"

// Config enumerates every tunable the composition root reads at startup.
// Defaults mirror the specification's configuration table; store/logging/
// notifier settings are the ambient additions needed to actually run the
// process (the distilled spec treats the store and CLI entry as external
// collaborators, but a running binary still needs to know how to reach
// them).
type Config struct {
	// Store connection.
	StoreAddr        string
	StorePassword    string
	StoreDB          int
	StoreDialTimeout time.Duration

	// Logging.
	LogLevel    string
	ServiceName string
	Version     string

	// Rate limiting.
	RateLimitTelemetryPerDevice int
	RateLimitWindowSeconds      int
	RateLimitGlobalPerSecond    int

	// Circuit breaker.
	CircuitBreakerFailureThreshold int
	CircuitBreakerTimeoutSeconds   int
	CircuitBreakerHalfOpenMaxCalls int

	// Distributed lock.
	LockTimeoutSeconds int
	LockRetryDelayMs   int

	// Telemetry.
	TelemetryBatchMaxSize      int
	TelemetryRetentionSeconds  int
	BackpressureQueueThreshold int
	BackpressureRejectThreshold int

	// Event bus.
	EventBusQueueMaxSize int
	EventBusWorkerCount  int

	// Notifier (supplemented feature; see SPEC_FULL.md §9).
	NotifierWebhookURL string
	NotifierChannel    string

	// Firmware catalog seed file (optional).
	FirmwareCatalogPath string

	// Analytics fleet-rollup cache. Backend is "memory" or "redis"; the
	// redis fields are only read when Backend is "redis", defaulting to
	// the same store connection when left blank.
	AnalyticsCacheBackend       string
	AnalyticsCacheTTLSeconds    int
	AnalyticsCacheRedisAddr     string
	AnalyticsCacheRedisPassword string
	AnalyticsCacheRedisDB       int
}

// Load reads Config from the process environment, using the defaults from
// the specification's configuration table.
func Load() Config {
	return Config{
		StoreAddr:        ParseString("SENSORHUB_STORE_ADDR", "localhost:6379"),
		StorePassword:    ParseString("SENSORHUB_STORE_PASSWORD", ""),
		StoreDB:          ParseInt("SENSORHUB_STORE_DB", 0),
		StoreDialTimeout: ParseDuration("SENSORHUB_STORE_DIAL_TIMEOUT", 5*time.Second),

		LogLevel:    ParseString("SENSORHUB_LOG_LEVEL", "info"),
		ServiceName: ParseString("SENSORHUB_SERVICE_NAME", "sensorhub"),
		Version:     ParseString("SENSORHUB_VERSION", "dev"),

		RateLimitTelemetryPerDevice: ParseInt("SENSORHUB_RATE_LIMIT_TELEMETRY_PER_DEVICE", 100),
		RateLimitWindowSeconds:      ParseInt("SENSORHUB_RATE_LIMIT_WINDOW_SECONDS", 60),
		RateLimitGlobalPerSecond:    ParseInt("SENSORHUB_RATE_LIMIT_GLOBAL_PER_SECOND", 10000),

		CircuitBreakerFailureThreshold: ParseInt("SENSORHUB_CIRCUIT_BREAKER_FAILURE_THRESHOLD", 6),
		CircuitBreakerTimeoutSeconds:   ParseInt("SENSORHUB_CIRCUIT_BREAKER_TIMEOUT_SECONDS", 60),
		CircuitBreakerHalfOpenMaxCalls: ParseInt("SENSORHUB_CIRCUIT_BREAKER_HALF_OPEN_MAX_CALLS", 3),

		LockTimeoutSeconds: ParseInt("SENSORHUB_LOCK_TIMEOUT_SECONDS", 10),
		LockRetryDelayMs:   ParseInt("SENSORHUB_LOCK_RETRY_DELAY_MS", 50),

		TelemetryBatchMaxSize:       ParseInt("SENSORHUB_TELEMETRY_BATCH_MAX_SIZE", 1000),
		TelemetryRetentionSeconds:   ParseInt("SENSORHUB_TELEMETRY_RETENTION_SECONDS", 86400),
		BackpressureQueueThreshold:  ParseInt("SENSORHUB_BACKPRESSURE_QUEUE_THRESHOLD", 8000),
		BackpressureRejectThreshold: ParseInt("SENSORHUB_BACKPRESSURE_REJECT_THRESHOLD", 9500),

		EventBusQueueMaxSize: ParseInt("SENSORHUB_EVENT_BUS_QUEUE_MAX_SIZE", 10000),
		EventBusWorkerCount:  ParseInt("SENSORHUB_EVENT_BUS_WORKER_COUNT", 4),

		NotifierWebhookURL: ParseString("SENSORHUB_NOTIFIER_WEBHOOK_URL", ""),
		NotifierChannel:    ParseString("SENSORHUB_NOTIFIER_CHANNEL", "#alerts"),

		FirmwareCatalogPath: ParseString("SENSORHUB_FIRMWARE_CATALOG_PATH", ""),

		AnalyticsCacheBackend:       ParseString("SENSORHUB_ANALYTICS_CACHE_BACKEND", "memory"),
		AnalyticsCacheTTLSeconds:    ParseInt("SENSORHUB_ANALYTICS_CACHE_TTL_SECONDS", 5),
		AnalyticsCacheRedisAddr:     ParseString("SENSORHUB_ANALYTICS_CACHE_REDIS_ADDR", ""),
		AnalyticsCacheRedisPassword: ParseString("SENSORHUB_ANALYTICS_CACHE_REDIS_PASSWORD", ""),
		AnalyticsCacheRedisDB:       ParseInt("SENSORHUB_ANALYTICS_CACHE_REDIS_DB", 0),
	}
}
