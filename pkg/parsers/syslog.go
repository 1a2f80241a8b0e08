/*
 * Copyright 2026 Gridwatch Systems, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package parsers

import (
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/gridwatch/otmap/pkg/models"
)

type syslogPayload struct {
	Events []models.SyslogEvent `json:"events"`
}

// securityPatterns maps alert types to the message patterns that should
// surface as alerts. Routine messages that match nothing produce no alert.
var securityPatterns = []struct {
	alertType string
	title     string
	pattern   *regexp.Regexp
}{
	{
		alertType: "authentication_failure",
		title:     "Authentication failure",
		pattern:   regexp.MustCompile(`(?i)(authentication fail|auth.*fail|login fail|failed password|invalid user|unauthorized access)`),
	},
	{
		alertType: "firewall_denial",
		title:     "Firewall denial",
		pattern:   regexp.MustCompile(`(?i)(denied|blocked|drop(ped)? packet|access denied|firewall.*(deny|reject))`),
	},
	{
		alertType: "policy_violation",
		title:     "Policy violation",
		pattern:   regexp.MustCompile(`(?i)(policy violation|violat|intrusion|tamper|unauthorized change)`),
	},
}

// ParseSyslog extracts syslog events from a payload. Rows without a message
// or with an out-of-range severity are skipped.
func ParseSyslog(record *models.TelemetryRecord) ([]models.SyslogEvent, error) {
	if record.Source != models.SourceSyslog {
		return nil, fmt.Errorf("%w: got %q", ErrWrongSource, record.Source)
	}

	if len(record.Payload) == 0 {
		return []models.SyslogEvent{}, nil
	}

	var payload syslogPayload

	if err := json.Unmarshal(record.Payload, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode syslog payload: %w", err)
	}

	events := make([]models.SyslogEvent, 0, len(payload.Events))

	for _, e := range payload.Events {
		if e.Message == "" {
			continue
		}

		if e.Severity < 0 || e.Severity > 7 {
			continue
		}

		if e.Timestamp.IsZero() {
			e.Timestamp = record.Timestamp
		}

		events = append(events, e)
	}

	return events, nil
}

// AlertFromEvent maps a syslog event to a candidate alert, or nil when the
// message is not security relevant.
func AlertFromEvent(event *models.SyslogEvent) *models.Alert {
	for _, sp := range securityPatterns {
		if !sp.pattern.MatchString(event.Message) {
			continue
		}

		return &models.Alert{
			Type:        sp.alertType,
			Severity:    severityFromSyslog(event.Severity),
			Title:       sp.title,
			Description: event.Message,
			Details: map[string]interface{}{
				"hostname": event.Hostname,
				"app_name": event.AppName,
				"facility": event.Facility,
				"severity": event.Severity,
			},
			CreatedAt: event.Timestamp,
		}
	}

	return nil
}

// severityFromSyslog maps the syslog 0-7 scale onto alert severities.
func severityFromSyslog(severity int) models.AlertSeverity {
	switch {
	case severity <= 2: // emerg, alert, crit
		return models.SeverityCritical
	case severity == 3: // err
		return models.SeverityHigh
	case severity == 4: // warning
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}
