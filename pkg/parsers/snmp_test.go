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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridwatch/otmap/pkg/models"
)

func snmpRecord(t *testing.T, info models.SNMPSystemInfo) *models.TelemetryRecord {
	t.Helper()

	payload, err := json.Marshal(info)
	require.NoError(t, err)

	return &models.TelemetryRecord{
		ID:        "rec-1",
		Source:    models.SourceSNMP,
		Timestamp: time.Now(),
		Payload:   payload,
	}
}

func TestParseSNMP(t *testing.T) {
	t.Run("rejects wrong source", func(t *testing.T) {
		record := &models.TelemetryRecord{Source: models.SourceARP, Payload: []byte(`{}`)}

		_, err := ParseSNMP(record)
		require.ErrorIs(t, err, ErrWrongSource)
	})

	t.Run("rejects empty payload", func(t *testing.T) {
		record := &models.TelemetryRecord{Source: models.SourceSNMP}

		_, err := ParseSNMP(record)
		require.ErrorIs(t, err, ErrEmptyPayload)
	})

	t.Run("rejects payload without system fields", func(t *testing.T) {
		record := snmpRecord(t, models.SNMPSystemInfo{})

		_, err := ParseSNMP(record)
		require.ErrorIs(t, err, ErrNotSystemRecord)
	})

	t.Run("parses system info", func(t *testing.T) {
		record := snmpRecord(t, models.SNMPSystemInfo{
			SysName:  "PLC-MAIN-001",
			SysDescr: "Siemens, SIMATIC S7, CPU 1516-3",
		})

		info, err := ParseSNMP(record)
		require.NoError(t, err)
		assert.Equal(t, "PLC-MAIN-001", info.SysName)
	})
}

func TestDeviceFromSystem(t *testing.T) {
	now := time.Now()

	t.Run("siemens controller", func(t *testing.T) {
		info := &models.SNMPSystemInfo{
			SysName:     "PLC-MAIN-001",
			SysDescr:    "Siemens SIMATIC S7-1500 PLC firmware V2.9",
			SysLocation: "Line 3 cabinet",
			SysContact:  "ot-team@example.com",
			Interfaces: []models.SNMPInterface{
				{Index: 1, Name: "eth0", IPAddress: "10.0.3.12", MACAddress: "00:1b:1b:aa:bb:cc"},
			},
		}

		device := DeviceFromSystem(info, now)

		assert.Equal(t, "PLC-MAIN-001", device.Name)
		assert.Equal(t, models.DeviceTypePLC, device.Type)
		assert.Equal(t, "Siemens", device.Vendor)
		assert.Equal(t, "S7-1500", device.Model)
		assert.Equal(t, "Line 3 cabinet", device.Location)
		assert.Equal(t, models.DeviceStatusOnline, device.Status)
		assert.Equal(t, now, device.LastSeen)
		require.Len(t, device.Interfaces, 1)
		assert.Equal(t, "10.0.3.12", device.Interfaces[0].IPAddress)
		assert.Equal(t, info.SysDescr, device.Metadata["sys_descr"])
	})

	t.Run("name always mirrors sysName", func(t *testing.T) {
		for _, name := range []string{"HMI-PANEL-7", "core-sw-01", "historian.plant.local"} {
			device := DeviceFromSystem(&models.SNMPSystemInfo{SysName: name}, now)
			assert.Equal(t, name, device.Name)
		}
	})

	t.Run("vendor from enterprise number", func(t *testing.T) {
		info := &models.SNMPSystemInfo{
			SysName:     "edge-fw-1",
			SysDescr:    "network appliance",
			SysObjectID: ".1.3.6.1.4.1.12356.101.1.1",
		}

		device := DeviceFromSystem(info, now)
		assert.Equal(t, "Fortinet", device.Vendor)
	})

	t.Run("type heuristics", func(t *testing.T) {
		tests := []struct {
			descr string
			want  models.DeviceType
		}{
			{"Allen-Bradley ControlLogix 5580", models.DeviceTypePLC},
			{"FortiGate-600E firewall platform", models.DeviceTypeFirewall},
			{"Cisco IOS Software, Catalyst L3 Switch", models.DeviceTypeSwitch},
			{"PanelView Plus 7 HMI terminal", models.DeviceTypeHMI},
			{"OSIsoft PI Server historian node", models.DeviceTypeHistorian},
			{"generic embedded platform", models.DeviceTypeUnknown},
		}

		for _, tt := range tests {
			device := DeviceFromSystem(&models.SNMPSystemInfo{SysName: "dev", SysDescr: tt.descr}, now)
			assert.Equal(t, tt.want, device.Type, "descr %q", tt.descr)
		}
	})
}
