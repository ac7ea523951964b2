// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/daniell-olaitan/sensorhub/internal/alerts"
	"github.com/daniell-olaitan/sensorhub/internal/analytics"
	"github.com/daniell-olaitan/sensorhub/internal/breaker"
	"github.com/daniell-olaitan/sensorhub/internal/bus"
	"github.com/daniell-olaitan/sensorhub/internal/cache"
	"github.com/daniell-olaitan/sensorhub/internal/config"
	"github.com/daniell-olaitan/sensorhub/internal/daemon"
	"github.com/daniell-olaitan/sensorhub/internal/firmware"
	"github.com/daniell-olaitan/sensorhub/internal/health"
	sensorlog "github.com/daniell-olaitan/sensorhub/internal/log"
	"github.com/daniell-olaitan/sensorhub/internal/notify"
	"github.com/daniell-olaitan/sensorhub/internal/ratelimit"
	"github.com/daniell-olaitan/sensorhub/internal/registry"
	"github.com/daniell-olaitan/sensorhub/internal/store"
	"github.com/daniell-olaitan/sensorhub/internal/telemetry"
	"github.com/daniell-olaitan/sensorhub/internal/version"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("sensorhubd %s (commit %s, built %s)\n", version.Version, version.Commit, version.Date)
		os.Exit(0)
	}

	sensorlog.Configure(sensorlog.Config{Level: "info", Service: "sensorhub", Version: version.Version})
	logger := sensorlog.WithComponent("main")

	cfg := config.Load()
	cfg.Version = version.Version

	sensorlog.Configure(sensorlog.Config{Level: cfg.LogLevel, Service: cfg.ServiceName, Version: cfg.Version})
	logger = sensorlog.WithComponent("main")

	if err := health.PerformStartupChecks(cfg); err != nil {
		logger.Fatal().Err(err).Msg("startup checks failed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := wire(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to wire dependencies")
	}

	mgr, err := daemon.NewManager(*deps)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build manager")
	}

	app := daemon.NewApp(*deps, mgr)

	logger.Info().Str("service", cfg.ServiceName).Str("version", cfg.Version).Msg("starting sensorhub")
	if err := app.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("sensorhub exited with error")
		os.Exit(1)
	}
}

// wire is the composition root: it builds every collaborator in dependency
// order (store first, since everything else is built over it) and returns
// them bundled as daemon.Deps.
func wire(ctx context.Context, cfg config.Config) (*daemon.Deps, error) {
	logger := sensorlog.WithComponent("wire")

	s, err := store.New(ctx, store.Config{
		Addr:        cfg.StoreAddr,
		Password:    cfg.StorePassword,
		DB:          cfg.StoreDB,
		DialTimeout: cfg.StoreDialTimeout,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("connect store: %w", err)
	}

	eventBus := bus.New(s, bus.Config{
		QueueMaxSize: cfg.EventBusQueueMaxSize,
		WorkerCount:  cfg.EventBusWorkerCount,
	})

	limiter := ratelimit.New(s, ratelimit.Config{
		TelemetryPerDevice: cfg.RateLimitTelemetryPerDevice,
		WindowSeconds:      cfg.RateLimitWindowSeconds,
		GlobalPerSecond:    cfg.RateLimitGlobalPerSecond,
	})

	breakers := breaker.NewRegistry(breaker.Config{
		FailureThreshold: cfg.CircuitBreakerFailureThreshold,
		TimeoutSeconds:   cfg.CircuitBreakerTimeoutSeconds,
		HalfOpenMaxCalls: cfg.CircuitBreakerHalfOpenMaxCalls,
	})

	devices := registry.New(s, eventBus)

	var notifier notify.Notifier = notify.NoOpNotifier{}
	if cfg.NotifierWebhookURL != "" {
		notifier = notify.New(cfg.NotifierWebhookURL)
	}
	alertSvc := alerts.New(s, eventBus, breakers, notifier, devices)

	telemetrySvc := telemetry.New(s, eventBus, limiter, devices, alertSvc, telemetry.Config{
		QueueThreshold:  cfg.BackpressureQueueThreshold,
		RejectThreshold: cfg.BackpressureRejectThreshold,
	})

	firmwareSvc := firmware.New(s, eventBus, devices)
	if cfg.FirmwareCatalogPath != "" {
		if err := loadFirmwareCatalog(ctx, firmwareSvc, cfg.FirmwareCatalogPath); err != nil {
			logger.Warn().Err(err).Str("path", cfg.FirmwareCatalogPath).Msg("failed to seed firmware catalog")
		}
	}

	analyticsSvc, err := buildAnalyticsService(cfg, devices, telemetrySvc, alertSvc, firmwareSvc, logger)
	if err != nil {
		return nil, fmt.Errorf("build analytics cache: %w", err)
	}

	healthMgr := health.NewManager(cfg.Version)
	healthMgr.RegisterChecker(health.NewStoreChecker(s))
	healthMgr.RegisterChecker(health.NewBusChecker(eventBus, cfg.BackpressureQueueThreshold))

	return &daemon.Deps{
		Logger:    logger,
		Config:    cfg,
		Store:     s,
		Bus:       eventBus,
		Limiter:   limiter,
		Breakers:  breakers,
		Registry:  devices,
		Alerts:    alertSvc,
		Telemetry: telemetrySvc,
		Firmware:  firmwareSvc,
		Analytics: analyticsSvc,
		Health:    healthMgr,
	}, nil
}

// buildAnalyticsService picks the analytics fleet-rollup cache backend from
// cfg. "redis" shares the cached rollup across every sensorhubd process
// fronting the same fleet; "memory" (the default) keeps it process-local.
func buildAnalyticsService(
	cfg config.Config,
	devices *registry.Registry,
	telemetrySvc *telemetry.Service,
	alertSvc *alerts.Service,
	firmwareSvc *firmware.Orchestrator,
	logger zerolog.Logger,
) (*analytics.Service, error) {
	ttl := time.Duration(cfg.AnalyticsCacheTTLSeconds) * time.Second

	switch cfg.AnalyticsCacheBackend {
	case "redis":
		addr := cfg.AnalyticsCacheRedisAddr
		if addr == "" {
			addr = cfg.StoreAddr
		}
		password := cfg.AnalyticsCacheRedisPassword
		if password == "" {
			password = cfg.StorePassword
		}
		c, err := cache.NewRedisCache(cache.RedisConfig{
			Addr:     addr,
			Password: password,
			DB:       cfg.AnalyticsCacheRedisDB,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("connect analytics redis cache: %w", err)
		}
		return analytics.NewWithCache(devices, telemetrySvc, alertSvc, firmwareSvc, c, ttl), nil
	default:
		return analytics.New(devices, telemetrySvc, alertSvc, firmwareSvc), nil
	}
}
