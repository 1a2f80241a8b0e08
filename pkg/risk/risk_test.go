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

package risk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridwatch/otmap/pkg/models"
)

func TestAssessDevice(t *testing.T) {
	analyzer := New(Config{})

	t.Run("scores stay within bounds", func(t *testing.T) {
		devices := []*models.Device{
			{ID: "a", Type: models.DeviceTypePLC, PurdueLevel: models.PurdueLevel1, Zone: models.ZoneControl},
			{ID: "b", Type: models.DeviceTypeERP, PurdueLevel: models.PurdueLevel5, Zone: models.ZoneEnterprise,
				Vendor: "SAP", Model: "S4", FirmwareVersion: "2.1", Location: "HQ"},
			{ID: "c", Type: models.DeviceTypeUnknown, Zone: models.ZoneUntrusted},
		}

		for _, device := range devices {
			assessment := analyzer.AssessDevice(device, nil)

			assert.GreaterOrEqual(t, assessment.OverallScore, 0.0)
			assert.LessOrEqual(t, assessment.OverallScore, 100.0)
			require.Len(t, assessment.Factors, 4)

			for _, factor := range assessment.Factors {
				assert.GreaterOrEqual(t, factor.Score, 0.0)
				assert.LessOrEqual(t, factor.Score, 100.0)
			}
		}
	})

	t.Run("fully documented enterprise device scores low", func(t *testing.T) {
		device := &models.Device{
			ID:              "erp-1",
			Type:            models.DeviceTypeERP,
			Vendor:          "SAP",
			Model:           "S4",
			FirmwareVersion: "2024.1",
			Location:        "HQ DC rack 4",
			PurdueLevel:     models.PurdueLevel5,
			Zone:            models.ZoneEnterprise,
		}

		assessment := analyzer.AssessDevice(device, nil)
		assert.Less(t, assessment.OverallScore, 50.0)
	})

	t.Run("exposed control device outranks documented one", func(t *testing.T) {
		exposed := &models.Device{
			ID:          "plc-1",
			Type:        models.DeviceTypePLC,
			PurdueLevel: models.PurdueLevel1,
			Zone:        models.ZoneControl,
		}

		documented := &models.Device{
			ID:              "plc-2",
			Type:            models.DeviceTypePLC,
			Vendor:          "Siemens",
			Model:           "S7-1500",
			FirmwareVersion: "V2.9",
			Location:        "Line 3",
			PurdueLevel:     models.PurdueLevel1,
			Zone:            models.ZoneControl,
		}

		conns := []models.Connection{
			{Port: 502, IsSecure: false},
			{Port: 102, IsSecure: false},
		}

		exposedScore := analyzer.AssessDevice(exposed, conns).OverallScore
		documentedScore := analyzer.AssessDevice(documented, nil).OverallScore

		assert.Greater(t, exposedScore, documentedScore)
	})

	t.Run("recommendations fire per high factor, deduplicated", func(t *testing.T) {
		strict := New(Config{HighThreshold: 40})
		device := &models.Device{ID: "d", Type: models.DeviceTypeRTU, Zone: models.ZoneControl}

		conns := []models.Connection{{Port: 502, IsSecure: false}}

		assessment := strict.AssessDevice(device, conns)
		require.NotEmpty(t, assessment.Recommendations)

		seen := map[string]int{}
		for _, rec := range assessment.Recommendations {
			seen[rec]++
		}

		for rec, n := range seen {
			assert.Equal(t, 1, n, "recommendation %q repeated", rec)
		}
	})
}

func TestAlertFromAssessment(t *testing.T) {
	analyzer := New(Config{})

	tests := []struct {
		name  string
		score float64
		want  models.AlertSeverity
		nilOK bool
	}{
		{name: "below medium is silent", score: 49, nilOK: true},
		{name: "medium", score: 50, want: models.SeverityMedium},
		{name: "high", score: 70, want: models.SeverityHigh},
		{name: "critical", score: 85, want: models.SeverityCritical},
		{name: "maximum", score: 100, want: models.SeverityCritical},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assessment := &models.RiskAssessment{
				DeviceID:     "dev-1",
				OverallScore: tt.score,
				AssessedAt:   time.Now(),
			}

			alert := analyzer.AlertFromAssessment(assessment)

			if tt.nilOK {
				assert.Nil(t, alert)

				return
			}

			require.NotNil(t, alert)
			assert.Equal(t, tt.want, alert.Severity)
			assert.Equal(t, "dev-1", alert.DeviceID)
			assert.Equal(t, "risk_assessment", alert.Type)
		})
	}
}

func TestAnalyzeTopology(t *testing.T) {
	analyzer := New(Config{})

	devices := []models.Device{
		{ID: "plc-1", Name: "PLC-1", Type: models.DeviceTypePLC, PurdueLevel: models.PurdueLevel1, Zone: models.ZoneControl},
		{ID: "plc-2", Name: "PLC-2", Type: models.DeviceTypePLC, PurdueLevel: models.PurdueLevel1, Zone: models.ZoneControl},
		{ID: "erp-1", Name: "ERP", Type: models.DeviceTypeERP, PurdueLevel: models.PurdueLevel5, Zone: models.ZoneEnterprise,
			Vendor: "SAP", Model: "S4", FirmwareVersion: "1.0", Location: "HQ"},
	}

	conns := map[string][]models.Connection{
		"plc-1": {{Port: 502, IsSecure: false}},
	}

	result := analyzer.AnalyzeTopology(devices, conns)

	require.Len(t, result.Zones, 2)
	assert.Equal(t, models.PurdueLevel1, result.Zones[0].Level)
	assert.Equal(t, 2, result.Zones[0].DeviceCount)
	assert.Equal(t, models.PurdueLevel5, result.Zones[1].Level)

	for _, zone := range result.Zones {
		assert.GreaterOrEqual(t, zone.HighestRisk, zone.AverageRisk)
	}

	for _, finding := range result.Findings {
		assert.GreaterOrEqual(t, finding.Score, 70.0)
	}
}
