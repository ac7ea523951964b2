// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package health

import (
	"fmt"
	"net"
	"net/url"

	"github.com/daniell-olaitan/sensorhub/internal/config"
	"github.com/daniell-olaitan/sensorhub/internal/log"
)

// PerformStartupChecks validates configuration before the composition root
// dials the store or starts the event bus, so a misconfigured process fails
// fast with a clear message instead of surfacing as a confusing runtime
// error several layers down.
func PerformStartupChecks(cfg config.Config) error {
	logger := log.WithComponent("startup-check")
	logger.Info().Msg("running pre-flight startup checks")

	if _, _, err := net.SplitHostPort(cfg.StoreAddr); err != nil {
		return fmt.Errorf("invalid store address %q: %w", cfg.StoreAddr, err)
	}
	logger.Info().Str("addr", cfg.StoreAddr).Msg("store address is valid")

	if cfg.NotifierWebhookURL != "" {
		u, err := url.Parse(cfg.NotifierWebhookURL)
		if err != nil {
			return fmt.Errorf("invalid notifier webhook URL: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("notifier webhook URL scheme must be http or https, got %q", u.Scheme)
		}
		logger.Info().Msg("notifier webhook URL is valid")
	} else {
		logger.Warn().Msg("no notifier webhook URL configured; alert notifications are disabled")
	}

	if err := checkPositive(cfg.RateLimitTelemetryPerDevice, "rate limit telemetry per device"); err != nil {
		return err
	}
	if err := checkPositive(cfg.RateLimitWindowSeconds, "rate limit window seconds"); err != nil {
		return err
	}
	if err := checkPositive(cfg.EventBusQueueMaxSize, "event bus queue max size"); err != nil {
		return err
	}
	if cfg.BackpressureRejectThreshold <= cfg.BackpressureQueueThreshold {
		return fmt.Errorf("backpressure reject threshold (%d) must exceed the queue threshold (%d)",
			cfg.BackpressureRejectThreshold, cfg.BackpressureQueueThreshold)
	}

	logger.Info().Msg("all startup checks passed")
	return nil
}

func checkPositive(v int, name string) error {
	if v <= 0 {
		return fmt.Errorf("%s must be positive, got %d", name, v)
	}
	return nil
}
