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
	"strings"

	"github.com/gridwatch/otmap/pkg/models"
)

type arpPayload struct {
	Entries []models.ARPEntry `json:"entries"`
}

// ParseARP extracts ARP entries from a table payload. An empty or missing
// table yields an empty list; rows with an invalid IP or MAC are skipped.
func ParseARP(record *models.TelemetryRecord) ([]models.ARPEntry, error) {
	if record.Source != models.SourceARP {
		return nil, fmt.Errorf("%w: got %q", ErrWrongSource, record.Source)
	}

	if len(record.Payload) == 0 {
		return []models.ARPEntry{}, nil
	}

	var payload arpPayload

	if err := json.Unmarshal(record.Payload, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode ARP payload: %w", err)
	}

	entries := make([]models.ARPEntry, 0, len(payload.Entries))

	for _, e := range payload.Entries {
		if net.ParseIP(e.IP) == nil {
			continue
		}

		mac, err := net.ParseMAC(e.MAC)
		if err != nil {
			continue
		}

		e.MAC = strings.ToLower(mac.String())

		if e.Type == "" {
			e.Type = models.ARPEntryDynamic
		}

		entries = append(entries, e)
	}

	return entries, nil
}
