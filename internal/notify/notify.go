// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package notify sends alert notifications to an external channel. It is
// the concrete, genuinely-unreliable collaborator the breaker package
// guards: a Slack incoming webhook.
package notify

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"

	"github.com/daniell-olaitan/sensorhub/internal/domain"
)

// Notifier sends an alert notification, returning an error the caller's
// circuit breaker can count against.
type Notifier interface {
	Notify(ctx context.Context, alert domain.Alert) error
}

// SlackNotifier posts alert notifications to a Slack incoming webhook.
type SlackNotifier struct {
	webhookURL string
}

// New builds a SlackNotifier posting to webhookURL.
func New(webhookURL string) *SlackNotifier {
	return &SlackNotifier{webhookURL: webhookURL}
}

// Notify posts alert as a Slack message. It does not retry; retry and
// trip-on-failure behavior belongs to the caller's breaker.Breaker.
func (n *SlackNotifier) Notify(ctx context.Context, alert domain.Alert) error {
	msg := slack.WebhookMessage{
		Text: fmt.Sprintf("[%s] %s: %s (value=%.2f threshold=%.2f)",
			alert.Severity, alert.DeviceID, alert.Message, alert.Value, alert.Threshold),
	}
	return slack.PostWebhookContext(ctx, n.webhookURL, &msg)
}

// NoOpNotifier discards notifications; used when no webhook is configured.
type NoOpNotifier struct{}

func (NoOpNotifier) Notify(ctx context.Context, alert domain.Alert) error { return nil }
