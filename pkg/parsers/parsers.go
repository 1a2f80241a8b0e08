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

// Package parsers turns raw telemetry payloads into typed entities. Every
// parser is a pure function over a TelemetryRecord: partial or malformed rows
// inside a payload are skipped, only an entirely unparseable envelope is an
// error.
package parsers

import "errors"

var (
	ErrWrongSource     = errors.New("telemetry record has a different source type")
	ErrEmptyPayload    = errors.New("telemetry record has no payload")
	ErrNotSystemRecord = errors.New("payload is not an SNMP system-description record")
)

// PortTable maps well-known TCP/UDP ports to industrial protocol labels. The
// defaults cover the common OT protocols; deployments can extend or replace
// the table through configuration.
type PortTable map[uint16]string

// DefaultIndustrialPorts returns the built-in industrial protocol table.
func DefaultIndustrialPorts() PortTable {
	return PortTable{
		102:   "S7comm",
		502:   "Modbus",
		2404:  "IEC-104",
		4840:  "OPC-UA",
		20000: "DNP3",
		44818: "EtherNet-IP",
		47808: "BACnet",
	}
}
