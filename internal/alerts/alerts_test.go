// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package alerts

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/daniell-olaitan/sensorhub/internal/apperr"
	"github.com/daniell-olaitan/sensorhub/internal/breaker"
	"github.com/daniell-olaitan/sensorhub/internal/bus"
	"github.com/daniell-olaitan/sensorhub/internal/domain"
	"github.com/daniell-olaitan/sensorhub/internal/store"
)

type stubNotifier struct{ calls int }

func (n *stubNotifier) Notify(ctx context.Context, alert domain.Alert) error {
	n.calls++
	return errors.New("notification service unavailable")
}

func setupTestService(t *testing.T) (*miniredis.Miniredis, *Service, *stubNotifier) {
	t.Helper()
	mr := miniredis.NewMiniRedis()
	if err := mr.Start(); err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := store.NewWithClient(client, zerolog.Nop())
	b := bus.New(s, bus.Config{QueueMaxSize: 10, WorkerCount: 1})
	n := &stubNotifier{}
	svc := New(s, b, breaker.NewRegistry(breaker.DefaultConfig()), n, nil)
	return mr, svc, n
}

func TestAlerts_CreateRuleIndexesByDevice(t *testing.T) {
	mr, svc, _ := setupTestService(t)
	defer mr.Close()

	ctx := context.Background()
	rule, err := svc.CreateRule(ctx, domain.RuleCreate{
		DeviceID:  "dev-1",
		Metric:    "temperature",
		Operator:  domain.OpGT,
		Threshold: 90,
		Severity:  domain.SeverityCritical,
	})
	if err != nil {
		t.Fatalf("CreateRule: %v", err)
	}

	rules, err := svc.ListRules(ctx, "dev-1")
	if err != nil {
		t.Fatalf("ListRules: %v", err)
	}
	if len(rules) != 1 || rules[0].ID != rule.ID {
		t.Errorf("expected rule indexed under device dev-1, got %+v", rules)
	}
}

func TestAlerts_CreateRuleRejectsUnknownOperator(t *testing.T) {
	mr, svc, _ := setupTestService(t)
	defer mr.Close()

	ctx := context.Background()
	_, err := svc.CreateRule(ctx, domain.RuleCreate{
		DeviceID:  "dev-1",
		Metric:    "temperature",
		Operator:  domain.RuleOperator("bogus"),
		Threshold: 90,
		Severity:  domain.SeverityCritical,
	})
	if !apperr.Is(err, apperr.KindInvalid) {
		t.Fatalf("expected invalid error for unknown operator, got %v", err)
	}
}

func TestAlerts_CreateRuleRejectsUnknownSeverity(t *testing.T) {
	mr, svc, _ := setupTestService(t)
	defer mr.Close()

	ctx := context.Background()
	_, err := svc.CreateRule(ctx, domain.RuleCreate{
		DeviceID:  "dev-1",
		Metric:    "temperature",
		Operator:  domain.OpGT,
		Threshold: 90,
		Severity:  domain.AlertSeverity("urgent"),
	})
	if !apperr.Is(err, apperr.KindInvalid) {
		t.Fatalf("expected invalid error for unknown severity, got %v", err)
	}
}

func TestAlerts_CheckAlertsTriggersOnThresholdBreach(t *testing.T) {
	mr, svc, notifier := setupTestService(t)
	defer mr.Close()

	ctx := context.Background()
	if _, err := svc.CreateRule(ctx, domain.RuleCreate{
		DeviceID:  "dev-1",
		Metric:    "temperature",
		Operator:  domain.OpGT,
		Threshold: 90,
		Severity:  domain.SeverityCritical,
	}); err != nil {
		t.Fatalf("CreateRule: %v", err)
	}

	if err := svc.CheckAlerts(ctx, domain.Point{DeviceID: "dev-1", Metric: "temperature", Value: 95}); err != nil {
		t.Fatalf("CheckAlerts: %v", err)
	}

	open, err := svc.ListAlerts(ctx, "", domain.AlertOpen, 10)
	if err != nil {
		t.Fatalf("ListAlerts: %v", err)
	}
	if len(open) != 1 {
		t.Fatalf("expected 1 open alert, got %d", len(open))
	}
	if open[0].Value != 95 {
		t.Errorf("expected alert value 95, got %v", open[0].Value)
	}
	if notifier.calls != 1 {
		t.Errorf("expected notifier to be called once, got %d", notifier.calls)
	}
}

func TestAlerts_CheckAlertsDoesNotTriggerBelowThreshold(t *testing.T) {
	mr, svc, _ := setupTestService(t)
	defer mr.Close()

	ctx := context.Background()
	if _, err := svc.CreateRule(ctx, domain.RuleCreate{
		DeviceID: "dev-1", Metric: "temperature", Operator: domain.OpGT, Threshold: 90, Severity: domain.SeverityWarning,
	}); err != nil {
		t.Fatalf("CreateRule: %v", err)
	}

	if err := svc.CheckAlerts(ctx, domain.Point{DeviceID: "dev-1", Metric: "temperature", Value: 50}); err != nil {
		t.Fatalf("CheckAlerts: %v", err)
	}

	count, err := svc.CountOpenAlerts(ctx)
	if err != nil {
		t.Fatalf("CountOpenAlerts: %v", err)
	}
	if count != 0 {
		t.Errorf("expected no open alerts, got %d", count)
	}
}

func TestAlerts_FleetWideRuleMatchesAnyDevice(t *testing.T) {
	mr, svc, _ := setupTestService(t)
	defer mr.Close()

	ctx := context.Background()
	if _, err := svc.CreateRule(ctx, domain.RuleCreate{
		Metric: "humidity", Operator: domain.OpLT, Threshold: 10, Severity: domain.SeverityWarning,
	}); err != nil {
		t.Fatalf("CreateRule: %v", err)
	}

	if err := svc.CheckAlerts(ctx, domain.Point{DeviceID: "any-device", Metric: "humidity", Value: 5}); err != nil {
		t.Fatalf("CheckAlerts: %v", err)
	}

	count, err := svc.CountOpenAlerts(ctx)
	if err != nil {
		t.Fatalf("CountOpenAlerts: %v", err)
	}
	if count != 1 {
		t.Errorf("expected fleet-wide rule to trigger for any device, got %d open alerts", count)
	}
}

func TestAlerts_AcknowledgeRemovesFromOpenIndex(t *testing.T) {
	mr, svc, _ := setupTestService(t)
	defer mr.Close()

	ctx := context.Background()
	if _, err := svc.CreateRule(ctx, domain.RuleCreate{
		DeviceID: "dev-1", Metric: "temperature", Operator: domain.OpGT, Threshold: 1, Severity: domain.SeverityWarning,
	}); err != nil {
		t.Fatalf("CreateRule: %v", err)
	}
	if err := svc.CheckAlerts(ctx, domain.Point{DeviceID: "dev-1", Metric: "temperature", Value: 100}); err != nil {
		t.Fatalf("CheckAlerts: %v", err)
	}

	open, err := svc.ListAlerts(ctx, "", domain.AlertOpen, 10)
	if err != nil || len(open) != 1 {
		t.Fatalf("expected 1 open alert before ack, got %+v err=%v", open, err)
	}

	acked, err := svc.AcknowledgeAlert(ctx, open[0].ID)
	if err != nil {
		t.Fatalf("AcknowledgeAlert: %v", err)
	}
	if acked.Status != domain.AlertAcknowledged || acked.AcknowledgedAt == nil {
		t.Errorf("expected acknowledged alert with timestamp, got %+v", acked)
	}

	count, err := svc.CountOpenAlerts(ctx)
	if err != nil {
		t.Fatalf("CountOpenAlerts: %v", err)
	}
	if count != 0 {
		t.Errorf("expected open count 0 after acknowledge, got %d", count)
	}
}
