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

package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridwatch/otmap/pkg/models"
)

func newClassifier(t *testing.T) *Classifier {
	t.Helper()

	c, err := New(Config{})
	require.NoError(t, err)

	return c
}

func TestClassify(t *testing.T) {
	c := newClassifier(t)

	t.Run("siemens plc lands in the control zone", func(t *testing.T) {
		device := &models.Device{
			ID:     "dev-1",
			Name:   "PLC-MAIN-001",
			Type:   models.DeviceTypePLC,
			Vendor: "Siemens",
			Interfaces: []models.NetworkInterface{
				{IPAddress: "10.0.3.12"},
			},
		}

		result := c.Classify(device)

		assert.Equal(t, models.PurdueLevel1, result.Level)
		assert.Equal(t, models.ZoneControl, result.Zone)
		assert.Greater(t, result.Confidence, 0.0)
		assert.LessOrEqual(t, result.Confidence, 100.0)
		assert.NotEmpty(t, result.Reasons)
	})

	t.Run("every signal agreeing yields full confidence", func(t *testing.T) {
		device := &models.Device{
			ID:     "dev-2",
			Name:   "PLC-7",
			Type:   models.DeviceTypePLC,
			Vendor: "Rockwell Automation",
			Interfaces: []models.NetworkInterface{
				{IPAddress: "10.0.1.4"},
			},
		}

		result := c.Classify(device)

		assert.Equal(t, models.PurdueLevel1, result.Level)
		assert.InDelta(t, 100.0, result.Confidence, 0.001)
	})

	t.Run("no signal keeps prior level at default confidence", func(t *testing.T) {
		device := &models.Device{
			ID:          "dev-3",
			Name:        "X",
			Type:        models.DeviceTypeUnknown,
			PurdueLevel: models.PurdueLevel3,
		}

		result := c.Classify(device)

		assert.Equal(t, models.PurdueLevel3, result.Level)
		assert.Equal(t, models.ZoneOperations, result.Zone)
		assert.InDelta(t, 50.0, result.Confidence, 0.001)
	})

	t.Run("tie keeps current level", func(t *testing.T) {
		// Type says DMZ, name pattern plus subnet says level 2: 40 vs 40.
		device := &models.Device{
			ID:          "dev-4",
			Name:        "scada-gw",
			Type:        models.DeviceTypeJumpServer,
			PurdueLevel: models.PurdueLevel2,
			Interfaces: []models.NetworkInterface{
				{IPAddress: "10.1.0.9"},
			},
		}

		result := c.Classify(device)

		// "scada" pattern (25) + subnet 10.1 (15) ties the type vote (40);
		// the device's current level wins the tie.
		assert.Equal(t, models.PurdueLevel2, result.Level)
	})

	t.Run("tie without current level picks lowest", func(t *testing.T) {
		device := &models.Device{
			ID:          "dev-5",
			Name:        "scada-gw",
			Type:        models.DeviceTypeJumpServer,
			PurdueLevel: models.PurdueLevel4,
			Interfaces: []models.NetworkInterface{
				{IPAddress: "10.1.0.9"},
			},
		}

		result := c.Classify(device)

		assert.Equal(t, models.PurdueLevel2, result.Level)
	})

	t.Run("alternatives ranked by probability", func(t *testing.T) {
		device := &models.Device{
			ID:   "dev-6",
			Name: "PLC-MAIN-001",
			Type: models.DeviceTypeHMI,
		}

		result := c.Classify(device)
		require.GreaterOrEqual(t, len(result.Alternatives), 2)

		for i := 1; i < len(result.Alternatives); i++ {
			assert.GreaterOrEqual(t, result.Alternatives[i-1].Probability, result.Alternatives[i].Probability)
		}
	})

	t.Run("firewall maps to dmz zone", func(t *testing.T) {
		device := &models.Device{
			ID:     "dev-7",
			Name:   "edge-fw",
			Type:   models.DeviceTypeFirewall,
			Vendor: "Fortinet",
		}

		result := c.Classify(device)

		assert.Equal(t, models.PurdueLevelDMZ, result.Level)
		assert.Equal(t, models.ZoneDMZ, result.Zone)
	})
}

func TestReclassify(t *testing.T) {
	c := newClassifier(t)

	t.Run("neighbor context lifts weak evidence", func(t *testing.T) {
		device := &models.Device{
			ID:   "dev-1",
			Name: "node-17",
			Type: models.DeviceTypeUnknown,
		}

		neighbors := []models.Device{
			{PurdueLevel: models.PurdueLevel1},
			{PurdueLevel: models.PurdueLevel1},
			{PurdueLevel: models.PurdueLevel1},
		}

		result := c.Reclassify(device, neighbors)

		assert.Equal(t, models.PurdueLevel1, result.Level)
		assert.Equal(t, models.ZoneControl, result.Zone)
	})

	t.Run("no neighbors behaves like classify", func(t *testing.T) {
		device := &models.Device{
			ID:   "dev-2",
			Name: "PLC-3",
			Type: models.DeviceTypePLC,
		}

		plain := c.Classify(device)
		re := c.Reclassify(device, nil)

		assert.Equal(t, plain.Level, re.Level)
		assert.InDelta(t, plain.Confidence, re.Confidence, 0.001)
	})
}
