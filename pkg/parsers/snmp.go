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
	"strings"
	"time"

	"github.com/gridwatch/otmap/pkg/models"
)

// vendorKeywords maps lowercase sysDescr substrings to canonical vendor
// names. Checked in order so multi-word vendors win over single-word ones.
var vendorKeywords = []struct {
	keyword string
	vendor  string
}{
	{"allen-bradley", "Rockwell Automation"},
	{"rockwell", "Rockwell Automation"},
	{"phoenix contact", "Phoenix Contact"},
	{"palo alto", "Palo Alto Networks"},
	{"schneider", "Schneider Electric"},
	{"siemens", "Siemens"},
	{"mitsubishi", "Mitsubishi Electric"},
	{"honeywell", "Honeywell"},
	{"yokogawa", "Yokogawa"},
	{"emerson", "Emerson"},
	{"beckhoff", "Beckhoff"},
	{"omron", "Omron"},
	{"wago", "WAGO"},
	{"abb", "ABB"},
	{"moxa", "Moxa"},
	{"hirschmann", "Hirschmann"},
	{"wonderware", "AVEVA"},
	{"osisoft", "OSIsoft"},
	{"fortinet", "Fortinet"},
	{"fortigate", "Fortinet"},
	{"juniper", "Juniper Networks"},
	{"cisco", "Cisco"},
}

// enterpriseVendors maps SNMP enterprise numbers (from sysObjectID) to
// vendors, as a fallback when sysDescr carries no vendor text.
var enterpriseVendors = map[string]string{
	"9":     "Cisco",
	"95":    "Rockwell Automation",
	"2636":  "Juniper Networks",
	"3833":  "Schneider Electric",
	"4196":  "Siemens",
	"12356": "Fortinet",
}

// modelPattern matches vendor model tokens like "S7-1500" or "MicroLogix-1400".
var modelPattern = regexp.MustCompile(`(?i)\b([a-z]+[a-z0-9]*-[0-9]{2,5}[a-z0-9]*)\b`)

var enterprisePattern = regexp.MustCompile(`^\.?1\.3\.6\.1\.4\.1\.([0-9]+)`)

// ParseSNMP validates and decodes an SNMP system-description payload.
func ParseSNMP(record *models.TelemetryRecord) (*models.SNMPSystemInfo, error) {
	if record.Source != models.SourceSNMP {
		return nil, fmt.Errorf("%w: got %q", ErrWrongSource, record.Source)
	}

	if len(record.Payload) == 0 {
		return nil, ErrEmptyPayload
	}

	var info models.SNMPSystemInfo

	if err := json.Unmarshal(record.Payload, &info); err != nil {
		return nil, fmt.Errorf("failed to decode SNMP payload: %w", err)
	}

	if info.SysName == "" && info.SysDescr == "" {
		return nil, ErrNotSystemRecord
	}

	return &info, nil
}

// DeviceFromSystem maps parsed system information onto a device. The Purdue
// level is left at 0 pending classification.
func DeviceFromSystem(info *models.SNMPSystemInfo, seenAt time.Time) *models.Device {
	device := &models.Device{
		Name:        info.SysName,
		Hostname:    info.SysName,
		Type:        inferDeviceType(info),
		Vendor:      extractVendor(info),
		Model:       extractModel(info.SysDescr),
		PurdueLevel: models.PurdueLevel0,
		Zone:        models.ZoneForLevel(models.PurdueLevel0),
		Status:      models.DeviceStatusOnline,
		Location:    info.SysLocation,
		LastSeen:    seenAt,
		Metadata:    map[string]string{},
	}

	if info.SysDescr != "" {
		device.Metadata["sys_descr"] = info.SysDescr
	}

	if info.SysContact != "" {
		device.Metadata["sys_contact"] = info.SysContact
	}

	if info.SysObjectID != "" {
		device.Metadata["sys_object_id"] = info.SysObjectID
	}

	for _, si := range info.Interfaces {
		device.Interfaces = append(device.Interfaces, models.NetworkInterface{
			Index:       si.Index,
			Name:        si.Name,
			IPAddress:   si.IPAddress,
			MACAddress:  si.MACAddress,
			SpeedBPS:    si.SpeedBPS,
			AdminStatus: si.AdminStatus,
			OperStatus:  si.OperStatus,
		})
	}

	return device
}

func extractVendor(info *models.SNMPSystemInfo) string {
	haystack := strings.ToLower(info.SysDescr + " " + info.SysName)

	for _, v := range vendorKeywords {
		if strings.Contains(haystack, v.keyword) {
			return v.vendor
		}
	}

	if m := enterprisePattern.FindStringSubmatch(info.SysObjectID); m != nil {
		if vendor, ok := enterpriseVendors[m[1]]; ok {
			return vendor
		}
	}

	return ""
}

func extractModel(sysDescr string) string {
	if m := modelPattern.FindStringSubmatch(sysDescr); m != nil {
		return m[1]
	}

	return ""
}

func inferDeviceType(info *models.SNMPSystemInfo) models.DeviceType {
	haystack := strings.ToLower(info.SysName + " " + info.SysDescr)

	switch {
	case containsAny(haystack, "plc", "s7-", "controllogix", "micrologix", "compactlogix", "modicon"):
		return models.DeviceTypePLC
	case containsAny(haystack, "rtu "):
		return models.DeviceTypeRTU
	case strings.Contains(haystack, "rtu-"):
		return models.DeviceTypeRTU
	case containsAny(haystack, "hmi", "panelview", "operator panel"):
		return models.DeviceTypeHMI
	case containsAny(haystack, "scada", "wincc", "ifix", "citect"):
		return models.DeviceTypeSCADAServer
	case containsAny(haystack, "historian", "pi server", "pi data archive"):
		return models.DeviceTypeHistorian
	case containsAny(haystack, "firewall", "fortigate", "adaptive security appliance", "pan-os"):
		return models.DeviceTypeFirewall
	case containsAny(haystack, "switch", "catalyst", "nexus"):
		return models.DeviceTypeSwitch
	case containsAny(haystack, "router", "ios xr", "junos"):
		return models.DeviceTypeRouter
	case containsAny(haystack, "jump", "bastion"):
		return models.DeviceTypeJumpServer
	default:
		return models.DeviceTypeUnknown
	}
}

func containsAny(haystack string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}

	return false
}
