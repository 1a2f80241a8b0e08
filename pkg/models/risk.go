package models

import (
	"time"
)

// RiskCategory names one scored dimension of a device's security posture.
type RiskCategory string

const (
	RiskVulnerability RiskCategory = "vulnerability"
	RiskConfiguration RiskCategory = "configuration"
	RiskExposure      RiskCategory = "exposure"
	RiskCompliance    RiskCategory = "compliance"
)

// RiskFactor is one scored category with its supporting detail.
type RiskFactor struct {
	Category    RiskCategory           `json:"category"`
	Score       float64                `json:"score"`
	Weight      float64                `json:"weight"`
	Description string                 `json:"description"`
	Details     map[string]interface{} `json:"details,omitempty"`
}

// RiskAssessment is the weighted risk picture of one device.
type RiskAssessment struct {
	DeviceID        string       `json:"device_id"`
	OverallScore    float64      `json:"overall_score"`
	Factors         []RiskFactor `json:"factors"`
	Recommendations []string     `json:"recommendations,omitempty"`
	AssessedAt      time.Time    `json:"assessed_at"`
}

// SecurityFinding is a concrete surfaced issue for a high-risk device.
type SecurityFinding struct {
	DeviceID    string        `json:"device_id"`
	Severity    AlertSeverity `json:"severity"`
	Title       string        `json:"title"`
	Description string        `json:"description,omitempty"`
	Score       float64       `json:"score"`
}

// ZoneRisk summarizes the risk of all devices on one Purdue level.
type ZoneRisk struct {
	Level        PurdueLevel  `json:"level"`
	Zone         SecurityZone `json:"zone"`
	DeviceCount  int          `json:"device_count"`
	AverageRisk  float64      `json:"average_risk"`
	HighestRisk  float64      `json:"highest_risk"`
	HighRiskIDs  []string     `json:"high_risk_device_ids,omitempty"`
}

// TopologyAssessment is the topology-wide risk snapshot.
type TopologyAssessment struct {
	Zones      []ZoneRisk        `json:"zones"`
	Findings   []SecurityFinding `json:"findings,omitempty"`
	AssessedAt time.Time         `json:"assessed_at"`
}
