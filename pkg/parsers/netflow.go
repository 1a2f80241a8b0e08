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
	"net"
	"time"

	"github.com/gridwatch/otmap/pkg/models"
)

type netflowPayload struct {
	Flows []netflowFlow `json:"flows"`
}

type netflowFlow struct {
	SrcAddr string    `json:"src_addr"`
	DstAddr string    `json:"dst_addr"`
	SrcPort uint16    `json:"src_port"`
	DstPort uint16    `json:"dst_port"`
	Proto   uint8     `json:"protocol"`
	Bytes   uint64    `json:"bytes"`
	Packets uint64    `json:"packets"`
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
}

// NetFlowParser tags flows against a configurable industrial-port table.
type NetFlowParser struct {
	ports PortTable
}

// NewNetFlowParser builds a parser; a nil table falls back to the defaults.
func NewNetFlowParser(ports PortTable) *NetFlowParser {
	if ports == nil {
		ports = DefaultIndustrialPorts()
	}

	return &NetFlowParser{ports: ports}
}

// Parse extracts flow records from a payload. Flows with an invalid endpoint
// address are skipped. The flow duration is floored at one second when
// deriving bytes per second, so the rate is always finite and non-negative.
func (p *NetFlowParser) Parse(record *models.TelemetryRecord) ([]models.NetFlowRecord, error) {
	if record.Source != models.SourceNetFlow {
		return nil, fmt.Errorf("%w: got %q", ErrWrongSource, record.Source)
	}

	if len(record.Payload) == 0 {
		return []models.NetFlowRecord{}, nil
	}

	var payload netflowPayload

	if err := json.Unmarshal(record.Payload, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode NetFlow payload: %w", err)
	}

	records := make([]models.NetFlowRecord, 0, len(payload.Flows))

	for _, f := range payload.Flows {
		if net.ParseIP(f.SrcAddr) == nil || net.ParseIP(f.DstAddr) == nil {
			continue
		}

		rec := models.NetFlowRecord{
			SrcAddr:        f.SrcAddr,
			DstAddr:        f.DstAddr,
			SrcPort:        f.SrcPort,
			DstPort:        f.DstPort,
			Protocol:       f.Proto,
			Bytes:          f.Bytes,
			Packets:        f.Packets,
			Start:          f.Start,
			End:            f.End,
			BytesPerSecond: bytesPerSecond(f.Bytes, f.Start, f.End),
		}

		if label, ok := p.ports[f.DstPort]; ok {
			rec.IsIndustrial = true
			rec.IndustrialProtocol = label
		} else if label, ok := p.ports[f.SrcPort]; ok {
			rec.IsIndustrial = true
			rec.IndustrialProtocol = label
		}

		records = append(records, rec)
	}

	return records, nil
}

func bytesPerSecond(bytes uint64, start, end time.Time) float64 {
	seconds := end.Sub(start).Seconds()
	if seconds < 1 {
		seconds = 1
	}

	return float64(bytes) / seconds
}
