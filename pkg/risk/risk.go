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

// Package risk computes deterministic, explainable 0-100 risk scores per
// device and per topology snapshot.
package risk

import (
	"fmt"
	"sort"
	"time"

	"github.com/gridwatch/otmap/pkg/models"
	"github.com/gridwatch/otmap/pkg/parsers"
)

// Config carries the scoring weights and thresholds.
type Config struct {
	Weights           map[models.RiskCategory]float64 `json:"weights,omitempty"`
	MediumThreshold   float64                         `json:"medium_threshold,omitempty"`
	HighThreshold     float64                         `json:"high_threshold,omitempty"`
	CriticalThreshold float64                         `json:"critical_threshold,omitempty"`
	IndustrialPorts   parsers.PortTable               `json:"industrial_ports,omitempty"`
}

// DefaultConfig returns the built-in weights and thresholds.
func DefaultConfig() Config {
	return Config{
		Weights: map[models.RiskCategory]float64{
			models.RiskVulnerability: 0.35,
			models.RiskConfiguration: 0.25,
			models.RiskExposure:      0.25,
			models.RiskCompliance:    0.15,
		},
		MediumThreshold:   50,
		HighThreshold:     70,
		CriticalThreshold: 85,
		IndustrialPorts:   parsers.DefaultIndustrialPorts(),
	}
}

// Analyzer scores devices and topology snapshots.
type Analyzer struct {
	cfg Config
}

// New builds an analyzer; zero config fields fall back to the defaults.
func New(cfg Config) *Analyzer {
	defaults := DefaultConfig()

	if cfg.Weights == nil {
		cfg.Weights = defaults.Weights
	}

	if cfg.MediumThreshold == 0 {
		cfg.MediumThreshold = defaults.MediumThreshold
	}

	if cfg.HighThreshold == 0 {
		cfg.HighThreshold = defaults.HighThreshold
	}

	if cfg.CriticalThreshold == 0 {
		cfg.CriticalThreshold = defaults.CriticalThreshold
	}

	if cfg.IndustrialPorts == nil {
		cfg.IndustrialPorts = defaults.IndustrialPorts
	}

	return &Analyzer{cfg: cfg}
}

// AssessDevice computes the weighted risk assessment of one device from its
// attributes and its connections.
func (a *Analyzer) AssessDevice(device *models.Device, conns []models.Connection) models.RiskAssessment {
	factors := []models.RiskFactor{
		a.vulnerabilityFactor(device),
		a.configurationFactor(conns),
		a.exposureFactor(device, conns),
		a.complianceFactor(device),
	}

	var weightedSum, weightTotal float64

	for i := range factors {
		factors[i].Score = clamp(factors[i].Score)
		factors[i].Weight = a.cfg.Weights[factors[i].Category]
		weightedSum += factors[i].Score * factors[i].Weight
		weightTotal += factors[i].Weight
	}

	overall := 0.0
	if weightTotal > 0 {
		overall = clamp(weightedSum / weightTotal)
	}

	return models.RiskAssessment{
		DeviceID:        device.ID,
		OverallScore:    overall,
		Factors:         factors,
		Recommendations: a.recommendations(factors),
		AssessedAt:      time.Now(),
	}
}

func (a *Analyzer) vulnerabilityFactor(device *models.Device) models.RiskFactor {
	var score float64

	details := map[string]interface{}{}

	if device.IsControlDevice() {
		score += 30
		details["control_device"] = true
	}

	if device.FirmwareVersion == "" {
		score += 20
		details["firmware_unknown"] = true
	}

	if device.Vendor == "" {
		score += 15
		details["vendor_unknown"] = true
	}

	return models.RiskFactor{
		Category:    models.RiskVulnerability,
		Score:       score,
		Description: "known-weakness exposure of the device itself",
		Details:     details,
	}
}

func (a *Analyzer) configurationFactor(conns []models.Connection) models.RiskFactor {
	var score float64

	details := map[string]interface{}{}

	insecure := 0
	unencrypted := 0
	industrialPort := false

	for i := range conns {
		if !conns[i].IsSecure {
			insecure++
		}

		if conns[i].EncryptionType == "" {
			unencrypted++
		}

		if _, ok := a.cfg.IndustrialPorts[conns[i].Port]; ok {
			industrialPort = true
		}
	}

	if insecure > 0 {
		score += 25
		details["insecure_connections"] = insecure
	}

	if len(conns) > 0 && unencrypted*2 > len(conns) {
		score += 20
		details["unencrypted_connections"] = unencrypted
	}

	if industrialPort {
		score += 15
		details["default_industrial_port"] = true
	}

	return models.RiskFactor{
		Category:    models.RiskConfiguration,
		Score:       score,
		Description: "weak communication configuration",
		Details:     details,
	}
}

func (a *Analyzer) exposureFactor(device *models.Device, conns []models.Connection) models.RiskFactor {
	var score float64

	details := map[string]interface{}{}

	if device.PurdueLevel <= models.PurdueLevel1 {
		score += 20
		details["process_level"] = device.PurdueLevel.String()
	}

	if len(conns) > 10 {
		score += 15
		details["connection_count"] = len(conns)
	}

	if device.PurdueLevel < models.PurdueLevel4 && device.Zone != models.ZoneDMZ {
		score += 10
		details["below_enterprise_outside_dmz"] = true
	}

	return models.RiskFactor{
		Category:    models.RiskExposure,
		Score:       score,
		Description: "attack surface from network position",
		Details:     details,
	}
}

func (a *Analyzer) complianceFactor(device *models.Device) models.RiskFactor {
	var score float64

	details := map[string]interface{}{}

	if device.Vendor == "" || device.Model == "" {
		score += 15
		details["asset_record_incomplete"] = true
	}

	if device.Location == "" {
		score += 10
		details["location_missing"] = true
	}

	if device.Zone == models.ZoneUntrusted {
		score += 25
		details["untrusted_zone"] = true
	}

	return models.RiskFactor{
		Category:    models.RiskCompliance,
		Score:       score,
		Description: "asset governance gaps",
		Details:     details,
	}
}

var factorRecommendations = map[models.RiskCategory]string{
	models.RiskVulnerability: "inventory firmware and vendor data, and track published advisories for this device",
	models.RiskConfiguration: "enable secure, encrypted protocols and restrict default industrial ports",
	models.RiskExposure:      "segment the device behind a firewall and reduce its connection fan-out",
	models.RiskCompliance:    "complete the asset record (vendor, model, location) and assign a trusted zone",
}

func (a *Analyzer) recommendations(factors []models.RiskFactor) []string {
	var recs []string

	seen := make(map[string]struct{})

	for i := range factors {
		if factors[i].Score < a.cfg.HighThreshold {
			continue
		}

		rec := factorRecommendations[factors[i].Category]
		if _, ok := seen[rec]; ok {
			continue
		}

		seen[rec] = struct{}{}
		recs = append(recs, rec)
	}

	return recs
}

// AnalyzeTopology groups devices by Purdue level, computes per-zone average
// risk, and emits one finding per high-risk device.
func (a *Analyzer) AnalyzeTopology(devices []models.Device, connsByDevice map[string][]models.Connection) models.TopologyAssessment {
	type zoneAcc struct {
		total   float64
		highest float64
		count   int
		highIDs []string
	}

	accs := make(map[models.PurdueLevel]*zoneAcc)

	var findings []models.SecurityFinding

	for i := range devices {
		device := &devices[i]
		assessment := a.AssessDevice(device, connsByDevice[device.ID])

		acc, ok := accs[device.PurdueLevel]
		if !ok {
			acc = &zoneAcc{}
			accs[device.PurdueLevel] = acc
		}

		acc.total += assessment.OverallScore
		acc.count++

		if assessment.OverallScore > acc.highest {
			acc.highest = assessment.OverallScore
		}

		if assessment.OverallScore >= a.cfg.HighThreshold {
			acc.highIDs = append(acc.highIDs, device.ID)

			severity := models.SeverityHigh
			if assessment.OverallScore >= a.cfg.CriticalThreshold {
				severity = models.SeverityCritical
			}

			findings = append(findings, models.SecurityFinding{
				DeviceID: device.ID,
				Severity: severity,
				Title:    fmt.Sprintf("High-risk device %s", device.Name),
				Description: fmt.Sprintf("device scores %.0f, at or above the high-risk threshold of %.0f",
					assessment.OverallScore, a.cfg.HighThreshold),
				Score: assessment.OverallScore,
			})
		}
	}

	zones := make([]models.ZoneRisk, 0, len(accs))

	for level, acc := range accs {
		zones = append(zones, models.ZoneRisk{
			Level:       level,
			Zone:        models.ZoneForLevel(level),
			DeviceCount: acc.count,
			AverageRisk: acc.total / float64(acc.count),
			HighestRisk: acc.highest,
			HighRiskIDs: acc.highIDs,
		})
	}

	sort.Slice(zones, func(i, j int) bool { return zones[i].Level < zones[j].Level })

	return models.TopologyAssessment{
		Zones:      zones,
		Findings:   findings,
		AssessedAt: time.Now(),
	}
}

// AlertFromAssessment converts an assessment into an alert, or nil when the
// overall score sits below the medium threshold. Low-risk devices never
// generate alert churn.
func (a *Analyzer) AlertFromAssessment(assessment *models.RiskAssessment) *models.Alert {
	if assessment.OverallScore < a.cfg.MediumThreshold {
		return nil
	}

	severity := models.SeverityMedium

	switch {
	case assessment.OverallScore >= a.cfg.CriticalThreshold:
		severity = models.SeverityCritical
	case assessment.OverallScore >= a.cfg.HighThreshold:
		severity = models.SeverityHigh
	}

	return &models.Alert{
		Type:        "risk_assessment",
		Severity:    severity,
		Title:       fmt.Sprintf("Device risk score %.0f", assessment.OverallScore),
		Description: "device risk assessment crossed the alerting threshold",
		DeviceID:    assessment.DeviceID,
		Details: map[string]interface{}{
			"overall_score":   assessment.OverallScore,
			"recommendations": assessment.Recommendations,
		},
		CreatedAt: assessment.AssessedAt,
	}
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}

	if v > 100 {
		return 100
	}

	return v
}
