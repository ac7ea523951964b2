// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldCorrelationID = "correlation_id"
	FieldRequestID     = "request_id"
	FieldJobID         = "job_id"

	// Process / pipeline fields
	FieldEvent     = "event"
	FieldComponent = "component"

	// Domain fields
	FieldDeviceID = "device_id"
	FieldSerial   = "serial_number"
	FieldMetric   = "metric"
	FieldTopic    = "topic"
	FieldResource = "resource"
	FieldRuleID   = "rule_id"
	FieldAlertID  = "alert_id"
	FieldUpdateID = "update_id"
	FieldGroupID  = "group_id"

	// State fields
	FieldOldState = "old_state"
	FieldNewState = "new_state"
)
