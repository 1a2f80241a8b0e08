package models

import (
	"time"
)

// AlertSeverity ranks how urgent an alert is.
type AlertSeverity string

const (
	SeverityLow      AlertSeverity = "low"
	SeverityMedium   AlertSeverity = "medium"
	SeverityHigh     AlertSeverity = "high"
	SeverityCritical AlertSeverity = "critical"
)

// Alert is a user-facing notification about the monitored network. Alerts
// are only ever mutated through acknowledge/resolve, never deleted.
type Alert struct {
	ID             string                 `json:"id"`
	Type           string                 `json:"type"`
	Severity       AlertSeverity          `json:"severity"`
	Title          string                 `json:"title"`
	Description    string                 `json:"description,omitempty"`
	DeviceID       string                 `json:"device_id,omitempty"`
	Details        map[string]interface{} `json:"details,omitempty"`
	Acknowledged   bool                   `json:"acknowledged"`
	Resolved       bool                   `json:"resolved"`
	CreatedAt      time.Time              `json:"created_at"`
	AcknowledgedAt *time.Time             `json:"acknowledged_at,omitempty"`
	ResolvedAt     *time.Time             `json:"resolved_at,omitempty"`
}
