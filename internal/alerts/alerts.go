// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package alerts stores alert rules, evaluates incoming telemetry against
// them, and manages the lifecycle of triggered alerts.
package alerts

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/daniell-olaitan/sensorhub/internal/apperr"
	"github.com/daniell-olaitan/sensorhub/internal/breaker"
	"github.com/daniell-olaitan/sensorhub/internal/bus"
	"github.com/daniell-olaitan/sensorhub/internal/domain"
	"github.com/daniell-olaitan/sensorhub/internal/log"
	"github.com/daniell-olaitan/sensorhub/internal/metrics"
	"github.com/daniell-olaitan/sensorhub/internal/notify"
	"github.com/daniell-olaitan/sensorhub/internal/store"
	"github.com/daniell-olaitan/sensorhub/internal/validate"
)

// groupResolver resolves the group a device belongs to, so group-scoped
// rules can be matched without alerts depending on the full registry type.
type groupResolver interface {
	Get(ctx context.Context, id string) (domain.Device, error)
}

// Service evaluates alert rules against telemetry and manages alerts.
type Service struct {
	store      *store.Store
	bus        *bus.Bus
	breakers   *breaker.Registry
	notifier   notify.Notifier
	devices    groupResolver
	logger     zerolog.Logger
}

// New builds a Service. devices resolves a device's group for group-scoped
// rule matching and may be nil if group-scoped rules are never used.
func New(s *store.Store, b *bus.Bus, breakers *breaker.Registry, notifier notify.Notifier, devices groupResolver) *Service {
	if notifier == nil {
		notifier = notify.NoOpNotifier{}
	}
	return &Service{
		store:    s,
		bus:      b,
		breakers: breakers,
		notifier: notifier,
		devices:  devices,
		logger:   log.WithComponent("alerts"),
	}
}

// CreateRule persists a new rule and publishes alert.rules/rule.created.
func (s *Service) CreateRule(ctx context.Context, rc domain.RuleCreate) (domain.AlertRule, error) {
	if err := validate.Struct("alert_rule", rc); err != nil {
		return domain.AlertRule{}, err
	}

	rule := domain.AlertRule{
		ID:        uuid.NewString(),
		DeviceID:  rc.DeviceID,
		GroupID:   rc.GroupID,
		Metric:    rc.Metric,
		Operator:  rc.Operator,
		Threshold: rc.Threshold,
		Severity:  rc.Severity,
		Enabled:   true,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.saveRule(ctx, rule); err != nil {
		return domain.AlertRule{}, err
	}

	if s.bus != nil {
		_ = s.bus.Publish(ctx, "alert.rules", "rule.created", map[string]any{"rule_id": rule.ID})
	}

	return rule, nil
}

func (s *Service) saveRule(ctx context.Context, rule domain.AlertRule) error {
	pipe := s.store.Pipeline()

	data, err := json.Marshal(rule)
	if err != nil {
		return fmt.Errorf("alerts: marshal rule %s: %w", rule.ID, err)
	}

	pipe.Set(ctx, store.AlertRuleKey(rule.ID), data, 0)
	pipe.SAdd(ctx, store.AlertRulesAllKey(), rule.ID)
	if rule.DeviceID != "" {
		pipe.SAdd(ctx, store.AlertRulesDeviceKey(rule.DeviceID), rule.ID)
	}
	if rule.GroupID != "" {
		pipe.SAdd(ctx, store.AlertRulesGroupKey(rule.GroupID), rule.ID)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("alerts: save rule %s: %w", rule.ID, err)
	}
	return nil
}

// GetRule loads a rule by ID.
func (s *Service) GetRule(ctx context.Context, ruleID string) (domain.AlertRule, error) {
	var rule domain.AlertRule
	if err := s.store.GetJSON(ctx, store.AlertRuleKey(ruleID), &rule); err != nil {
		if store.IsNotFound(err) {
			return domain.AlertRule{}, apperr.NotFound("alert_rule", ruleID)
		}
		return domain.AlertRule{}, fmt.Errorf("alerts: get rule %s: %w", ruleID, err)
	}
	return rule, nil
}

// ListRules returns the enabled rules indexed under deviceID (or every
// enabled rule when deviceID is empty); disabled rules are never returned.
func (s *Service) ListRules(ctx context.Context, deviceID string) ([]domain.AlertRule, error) {
	key := store.AlertRulesAllKey()
	if deviceID != "" {
		key = store.AlertRulesDeviceKey(deviceID)
	}
	return s.loadRules(ctx, key, true)
}

func (s *Service) loadRules(ctx context.Context, key string, enabledOnly bool) ([]domain.AlertRule, error) {
	ids, err := s.store.SMembers(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("alerts: list rules %s: %w", key, err)
	}

	rules := make([]domain.AlertRule, 0, len(ids))
	for _, id := range ids {
		rule, err := s.GetRule(ctx, id)
		if err != nil {
			continue
		}
		if enabledOnly && !rule.Enabled {
			continue
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

// ruleMatchesScope reports whether rule applies to a point from deviceID
// (optionally in groupID). A rule with neither DeviceID nor GroupID set is
// fleet-wide.
func ruleMatchesScope(rule domain.AlertRule, deviceID, groupID string) bool {
	if rule.DeviceID == "" && rule.GroupID == "" {
		return true
	}
	if rule.DeviceID != "" && rule.DeviceID == deviceID {
		return true
	}
	if rule.GroupID != "" && groupID != "" && rule.GroupID == groupID {
		return true
	}
	return false
}

// CheckAlerts evaluates every enabled rule scoped to point's device (its
// own device-scoped rules, its group's rules, and fleet-wide rules) and
// triggers an alert for each rule whose condition the point satisfies.
func (s *Service) CheckAlerts(ctx context.Context, point domain.Point) error {
	groupID := ""
	if s.devices != nil {
		if d, err := s.devices.Get(ctx, point.DeviceID); err == nil {
			groupID = d.GroupID
		}
	}

	seen := make(map[string]bool)
	var rules []domain.AlertRule

	for _, key := range s.candidateIndexKeys(point.DeviceID, groupID) {
		loaded, err := s.loadRules(ctx, key, true)
		if err != nil {
			return err
		}
		for _, r := range loaded {
			if seen[r.ID] {
				continue
			}
			seen[r.ID] = true
			rules = append(rules, r)
		}
	}

	for _, rule := range rules {
		if rule.Metric != point.Metric {
			continue
		}
		if !ruleMatchesScope(rule, point.DeviceID, groupID) {
			continue
		}
		if rule.Operator.Evaluate(point.Value, rule.Threshold) {
			if err := s.triggerAlert(ctx, rule, point); err != nil {
				s.logger.Error().Err(err).Str("rule_id", rule.ID).Msg("failed to trigger alert")
			}
		}
	}
	return nil
}

func (s *Service) candidateIndexKeys(deviceID, groupID string) []string {
	keys := []string{store.AlertRulesAllKey(), store.AlertRulesDeviceKey(deviceID)}
	if groupID != "" {
		keys = append(keys, store.AlertRulesGroupKey(groupID))
	}
	return keys
}

func (s *Service) triggerAlert(ctx context.Context, rule domain.AlertRule, point domain.Point) error {
	alert := domain.Alert{
		ID:          uuid.NewString(),
		RuleID:      rule.ID,
		DeviceID:    point.DeviceID,
		Severity:    rule.Severity,
		Status:      domain.AlertOpen,
		Message:     fmt.Sprintf("%s %s %.2f", point.Metric, rule.Operator, rule.Threshold),
		Value:       point.Value,
		Threshold:   rule.Threshold,
		TriggeredAt: time.Now().UTC(),
	}

	if err := s.saveAlert(ctx, alert); err != nil {
		return err
	}

	metrics.AlertsTriggeredTotal.WithLabelValues(string(alert.Severity)).Inc()

	if s.bus != nil {
		_ = s.bus.Publish(ctx, "alert.triggered", "alert.new", map[string]any{
			"alert_id":  alert.ID,
			"device_id": alert.DeviceID,
			"severity":  string(alert.Severity),
		})
	}

	if s.breakers != nil {
		cb := s.breakers.Get("notification_service")
		if err := cb.Call(func() error {
			return s.notifier.Notify(ctx, alert)
		}); err != nil {
			// Notifier failures are always swallowed: the alert itself is
			// already persisted and triggered regardless of delivery.
			s.logger.Warn().Err(apperr.CircuitOpen("notification_service", err)).Str("alert_id", alert.ID).Msg("alert notification not delivered")
		}
	}

	return nil
}

func (s *Service) saveAlert(ctx context.Context, alert domain.Alert) error {
	pipe := s.store.Pipeline()

	data, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("alerts: marshal alert %s: %w", alert.ID, err)
	}

	pipe.Set(ctx, store.AlertKey(alert.ID), data, 0)
	pipe.ZAdd(ctx, store.AlertTimelineKey(), redis.Z{
		Score:  float64(alert.TriggeredAt.Unix()),
		Member: alert.ID,
	})
	pipe.SAdd(ctx, store.AlertDeviceKey(alert.DeviceID), alert.ID)
	if alert.Status == domain.AlertOpen {
		pipe.SAdd(ctx, store.AlertOpenKey(), alert.ID)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("alerts: save alert %s: %w", alert.ID, err)
	}
	return nil
}

// GetAlert loads an alert by ID.
func (s *Service) GetAlert(ctx context.Context, alertID string) (domain.Alert, error) {
	var alert domain.Alert
	if err := s.store.GetJSON(ctx, store.AlertKey(alertID), &alert); err != nil {
		if store.IsNotFound(err) {
			return domain.Alert{}, apperr.NotFound("alert", alertID)
		}
		return domain.Alert{}, fmt.Errorf("alerts: get alert %s: %w", alertID, err)
	}
	return alert, nil
}

// ListAlerts returns alerts scoped by status (open index), device, or the
// full timeline, most recent first, truncated to limit.
func (s *Service) ListAlerts(ctx context.Context, deviceID string, status domain.AlertStatus, limit int) ([]domain.Alert, error) {
	var ids []string
	var err error

	switch {
	case status == domain.AlertOpen:
		ids, err = s.store.SMembers(ctx, store.AlertOpenKey())
	case deviceID != "":
		ids, err = s.store.SMembers(ctx, store.AlertDeviceKey(deviceID))
	default:
		ids, err = s.store.ZRangeByScore(ctx, store.AlertTimelineKey(), "-inf", "+inf", 0)
		reverse(ids)
	}
	if err != nil {
		return nil, fmt.Errorf("alerts: list alerts: %w", err)
	}

	alerts := make([]domain.Alert, 0, len(ids))
	for _, id := range ids {
		alert, err := s.GetAlert(ctx, id)
		if err != nil {
			continue
		}
		if status != "" && alert.Status != status {
			continue
		}
		alerts = append(alerts, alert)
		if limit > 0 && len(alerts) >= limit {
			break
		}
	}
	return alerts, nil
}

// AcknowledgeAlert transitions an alert to acknowledged.
func (s *Service) AcknowledgeAlert(ctx context.Context, alertID string) (domain.Alert, error) {
	return s.updateAlertStatus(ctx, alertID, domain.AlertAcknowledged)
}

// ResolveAlert transitions an alert to resolved.
func (s *Service) ResolveAlert(ctx context.Context, alertID string) (domain.Alert, error) {
	return s.updateAlertStatus(ctx, alertID, domain.AlertResolved)
}

func (s *Service) updateAlertStatus(ctx context.Context, alertID string, status domain.AlertStatus) (domain.Alert, error) {
	alert, err := s.GetAlert(ctx, alertID)
	if err != nil {
		return domain.Alert{}, err
	}

	now := time.Now().UTC()
	alert.Status = status
	switch status {
	case domain.AlertAcknowledged:
		alert.AcknowledgedAt = &now
	case domain.AlertResolved:
		alert.ResolvedAt = &now
	}

	if err := s.saveAlert(ctx, alert); err != nil {
		return domain.Alert{}, err
	}

	if status != domain.AlertOpen {
		if err := s.store.SRem(ctx, store.AlertOpenKey(), alertID); err != nil {
			return domain.Alert{}, fmt.Errorf("alerts: remove %s from open index: %w", alertID, err)
		}
	}

	return alert, nil
}

// CountOpenAlerts returns the number of currently-open alerts.
func (s *Service) CountOpenAlerts(ctx context.Context) (int64, error) {
	return s.store.SCard(ctx, store.AlertOpenKey())
}

func reverse(s []string) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
