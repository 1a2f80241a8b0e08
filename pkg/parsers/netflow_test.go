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
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridwatch/otmap/pkg/models"
)

func netflowRecord(payload string) *models.TelemetryRecord {
	return &models.TelemetryRecord{
		ID:        "rec-1",
		Source:    models.SourceNetFlow,
		Timestamp: time.Now(),
		Payload:   []byte(payload),
	}
}

func TestNetFlowParse(t *testing.T) {
	parser := NewNetFlowParser(nil)

	t.Run("rejects wrong source", func(t *testing.T) {
		_, err := parser.Parse(&models.TelemetryRecord{Source: models.SourceSNMP, Payload: []byte(`{}`)})
		require.ErrorIs(t, err, ErrWrongSource)
	})

	t.Run("empty payload yields empty list", func(t *testing.T) {
		flows, err := parser.Parse(&models.TelemetryRecord{Source: models.SourceNetFlow})
		require.NoError(t, err)
		assert.Empty(t, flows)
	})

	t.Run("tags modbus flow", func(t *testing.T) {
		start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		end := start.Add(time.Second)

		payload := fmt.Sprintf(`{"flows":[{
			"src_addr":"10.0.3.12","dst_addr":"10.1.0.5",
			"src_port":49152,"dst_port":502,"protocol":6,
			"bytes":600,"packets":12,
			"start":%q,"end":%q}]}`, start.Format(time.RFC3339), end.Format(time.RFC3339))

		flows, err := parser.Parse(netflowRecord(payload))
		require.NoError(t, err)
		require.Len(t, flows, 1)

		flow := flows[0]
		assert.True(t, flow.IsIndustrial)
		assert.Equal(t, "Modbus", flow.IndustrialProtocol)
		assert.InDelta(t, 600.0, flow.BytesPerSecond, 0.001)
	})

	t.Run("duration floored at one second", func(t *testing.T) {
		at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

		payload := fmt.Sprintf(`{"flows":[{
			"src_addr":"10.0.0.1","dst_addr":"10.0.0.2",
			"src_port":1000,"dst_port":2000,"protocol":17,
			"bytes":1000,"packets":2,
			"start":%q,"end":%q}]}`, at.Format(time.RFC3339), at.Format(time.RFC3339))

		flows, err := parser.Parse(netflowRecord(payload))
		require.NoError(t, err)
		require.Len(t, flows, 1)
		assert.InDelta(t, 1000.0, flows[0].BytesPerSecond, 0.001)
	})

	t.Run("rate never negative", func(t *testing.T) {
		end := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		start := end.Add(time.Minute) // clock skew: start after end

		payload := fmt.Sprintf(`{"flows":[{
			"src_addr":"10.0.0.1","dst_addr":"10.0.0.2",
			"src_port":1000,"dst_port":2000,"protocol":6,
			"bytes":5000,"packets":10,
			"start":%q,"end":%q}]}`, start.Format(time.RFC3339), end.Format(time.RFC3339))

		flows, err := parser.Parse(netflowRecord(payload))
		require.NoError(t, err)
		require.Len(t, flows, 1)
		assert.GreaterOrEqual(t, flows[0].BytesPerSecond, 0.0)
	})

	t.Run("invalid endpoints skipped", func(t *testing.T) {
		payload := `{"flows":[
			{"src_addr":"not-an-ip","dst_addr":"10.0.0.2","bytes":10},
			{"src_addr":"10.0.0.1","dst_addr":"10.0.0.2","src_port":1,"dst_port":2,"protocol":6,"bytes":10,"packets":1}
		]}`

		flows, err := parser.Parse(netflowRecord(payload))
		require.NoError(t, err)
		assert.Len(t, flows, 1)
	})

	t.Run("source port fallback", func(t *testing.T) {
		payload := `{"flows":[{
			"src_addr":"10.0.0.1","dst_addr":"10.0.0.2",
			"src_port":44818,"dst_port":50000,"protocol":6,
			"bytes":10,"packets":1}]}`

		flows, err := parser.Parse(netflowRecord(payload))
		require.NoError(t, err)
		require.Len(t, flows, 1)
		assert.Equal(t, "EtherNet-IP", flows[0].IndustrialProtocol)
	})
}
