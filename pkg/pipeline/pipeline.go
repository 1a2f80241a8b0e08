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

// Package pipeline turns raw telemetry into topology state: it parses each
// record, resolves device identity, classifies, assesses risk, persists, and
// publishes the resulting updates.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gridwatch/otmap/pkg/broadcast"
	"github.com/gridwatch/otmap/pkg/classifier"
	"github.com/gridwatch/otmap/pkg/collector"
	"github.com/gridwatch/otmap/pkg/logger"
	"github.com/gridwatch/otmap/pkg/models"
	"github.com/gridwatch/otmap/pkg/parsers"
	"github.com/gridwatch/otmap/pkg/resolver"
	"github.com/gridwatch/otmap/pkg/risk"
	"github.com/gridwatch/otmap/pkg/store"
)

var ErrUnknownSource = errors.New("unknown telemetry source")

// Broadcaster is the realtime fan-out surface the pipeline publishes to.
// *broadcast.Hub satisfies it.
type Broadcaster interface {
	Broadcast(channel string, data interface{})
}

// Pipeline wires the parsers, resolver, classifier, and risk analyzer into a
// single Process entrypoint.
type Pipeline struct {
	store      store.Store
	resolver   *resolver.Resolver
	classifier *classifier.Classifier
	risk       *risk.Analyzer
	netflow    *parsers.NetFlowParser
	hub        Broadcaster
	log        logger.Logger
}

// New assembles a pipeline over the given store and broadcaster.
func New(st store.Store, res *resolver.Resolver, cls *classifier.Classifier, analyzer *risk.Analyzer, hub Broadcaster, log logger.Logger) *Pipeline {
	return &Pipeline{
		store:      st,
		resolver:   res,
		classifier: cls,
		risk:       analyzer,
		netflow:    parsers.NewNetFlowParser(nil),
		hub:        hub,
		log:        log.WithComponent("pipeline"),
	}
}

// Process routes one telemetry record through the stage chain for its
// source. A failed record leaves previously persisted state intact.
func (p *Pipeline) Process(ctx context.Context, record *models.TelemetryRecord) error {
	switch record.Source {
	case models.SourceSNMP:
		return p.processSNMP(ctx, record)
	case models.SourceARP:
		return p.processARP(ctx, record)
	case models.SourceNetFlow:
		return p.processNetFlow(ctx, record)
	case models.SourceSyslog:
		return p.processSyslog(ctx, record)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownSource, record.Source)
	}
}

// ProcessBatch processes records independently; one bad record never stops
// the rest. It returns the number successfully processed.
func (p *Pipeline) ProcessBatch(ctx context.Context, records []*models.TelemetryRecord) int {
	processed := 0

	for _, record := range records {
		if err := p.Process(ctx, record); err != nil {
			p.log.Warn().Err(err).Str("record_id", record.ID).Str("source", string(record.Source)).Msg("record failed")

			continue
		}

		processed++
	}

	return processed
}

// Run consumes collector events until the context is canceled or the
// collector reports stopped.
func (p *Pipeline) Run(ctx context.Context, events <-chan collector.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-events:
			switch ev.Kind {
			case collector.EventStopped:
				return
			case collector.EventError:
				p.log.Warn().Err(ev.Err).Str("target_id", ev.TargetID).Msg("collector error")
			case collector.EventData:
				if err := p.ingest(ctx, ev.Record); err != nil {
					p.log.Warn().Err(err).Msg("failed to ingest collector record")
				}
			case collector.EventStarted:
			}
		}
	}
}

func (p *Pipeline) ingest(ctx context.Context, record *models.TelemetryRecord) error {
	if record == nil {
		return nil
	}

	if err := p.store.InsertTelemetry(ctx, record); err != nil {
		return fmt.Errorf("failed to persist telemetry: %w", err)
	}

	if err := p.Process(ctx, record); err != nil {
		return err
	}

	if err := p.store.MarkProcessed(ctx, record.ID); err != nil {
		p.log.Warn().Err(err).Str("record_id", record.ID).Msg("failed to mark telemetry processed")
	}

	return nil
}

func (p *Pipeline) processSNMP(ctx context.Context, record *models.TelemetryRecord) error {
	info, err := parsers.ParseSNMP(record)
	if err != nil {
		return err
	}

	seenAt := record.Timestamp
	if seenAt.IsZero() {
		seenAt = time.Now()
	}

	parsed := parsers.DeviceFromSystem(info, seenAt)

	device, err := p.resolveDevice(ctx, parsed, seenAt)
	if err != nil {
		return err
	}

	result := p.classifier.Classify(device)
	device.PurdueLevel = result.Level
	device.Zone = result.Zone

	conns, err := p.store.ListConnectionsByDevice(ctx, device.ID)
	if err != nil {
		return fmt.Errorf("failed to list connections for %s: %w", device.ID, err)
	}

	assessment := p.risk.AssessDevice(device, conns)
	device.RiskScore = assessment.OverallScore

	if err := p.store.Update(ctx, device); err != nil {
		return fmt.Errorf("failed to update device %s: %w", device.ID, err)
	}

	if alert := p.risk.AlertFromAssessment(&assessment); alert != nil {
		created, alertErr := p.store.CreateAlert(ctx, alert)
		if alertErr != nil {
			return fmt.Errorf("failed to create risk alert: %w", alertErr)
		}

		p.hub.Broadcast(broadcast.ChannelAlerts, created)
	}

	p.hub.Broadcast(broadcast.ChannelDevices, device)
	p.hub.Broadcast(broadcast.ChannelTopology, map[string]interface{}{
		"device_id":      device.ID,
		"purdue_level":   device.PurdueLevel,
		"zone":           device.Zone,
		"classification": result,
	})

	return nil
}

// resolveDevice attaches the parsed device to an existing identity when any
// of its addresses is already known, otherwise registers it as new.
func (p *Pipeline) resolveDevice(ctx context.Context, parsed *models.Device, seenAt time.Time) (*models.Device, error) {
	for _, ip := range parsed.IPAddresses() {
		id, ok, err := p.resolver.Resolve(ctx, ip)
		if err != nil {
			return nil, fmt.Errorf("identity resolution failed for %s: %w", ip, err)
		}

		if !ok {
			continue
		}

		existing, err := p.store.Get(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to load device %s: %w", id, err)
		}

		mergeDevice(existing, parsed)
		existing.Touch(seenAt)
		p.resolver.PutDevice(existing)

		return existing, nil
	}

	created, err := p.store.Create(ctx, parsed)
	if err != nil {
		return nil, fmt.Errorf("failed to create device: %w", err)
	}

	p.resolver.PutDevice(created)
	p.log.Info().Str("device_id", created.ID).Str("name", created.Name).Msg("new device discovered")

	return created, nil
}

// mergeDevice folds freshly parsed attributes into the stored device,
// keeping stored values where the new observation is silent.
func mergeDevice(dst, src *models.Device) {
	if src.Name != "" {
		dst.Name = src.Name
	}

	if src.Hostname != "" {
		dst.Hostname = src.Hostname
	}

	if src.Type != models.DeviceTypeUnknown {
		dst.Type = src.Type
	}

	if src.Vendor != "" {
		dst.Vendor = src.Vendor
	}

	if src.Model != "" {
		dst.Model = src.Model
	}

	if src.Location != "" {
		dst.Location = src.Location
	}

	if len(src.Interfaces) > 0 {
		dst.Interfaces = src.Interfaces
	}

	dst.Status = models.DeviceStatusOnline

	if dst.Metadata == nil {
		dst.Metadata = make(map[string]string)
	}

	for k, v := range src.Metadata {
		dst.Metadata[k] = v
	}
}

func (p *Pipeline) processARP(ctx context.Context, record *models.TelemetryRecord) error {
	entries, err := parsers.ParseARP(record)
	if err != nil {
		return err
	}

	seenAt := record.Timestamp
	if seenAt.IsZero() {
		seenAt = time.Now()
	}

	for _, entry := range entries {
		id, ok, err := p.resolver.Resolve(ctx, entry.IP)
		if err != nil {
			return fmt.Errorf("identity resolution failed for %s: %w", entry.IP, err)
		}

		if !ok {
			continue
		}

		// The MAC now maps to the same identity as the IP.
		p.resolver.Put(entry.MAC, id)

		if err := p.store.UpdateLastSeen(ctx, id, seenAt); err != nil && !errors.Is(err, store.ErrDeviceNotFound) {
			return fmt.Errorf("failed to refresh device %s: %w", id, err)
		}
	}

	return nil
}

func (p *Pipeline) processNetFlow(ctx context.Context, record *models.TelemetryRecord) error {
	flows, err := p.netflow.Parse(record)
	if err != nil {
		return err
	}

	seenAt := record.Timestamp
	if seenAt.IsZero() {
		seenAt = time.Now()
	}

	for i := range flows {
		flow := &flows[i]

		srcID, srcOK, err := p.resolver.Resolve(ctx, flow.SrcAddr)
		if err != nil {
			return fmt.Errorf("identity resolution failed for %s: %w", flow.SrcAddr, err)
		}

		dstID, dstOK, err := p.resolver.Resolve(ctx, flow.DstAddr)
		if err != nil {
			return fmt.Errorf("identity resolution failed for %s: %w", flow.DstAddr, err)
		}

		// Flows between unresolved endpoints carry no topology signal.
		if !srcOK || !dstOK {
			continue
		}

		// Both addresses on one device, e.g. traffic between its own
		// interfaces. A connection always links two distinct devices.
		if srcID == dstID {
			continue
		}

		lastSeen := flow.End
		if lastSeen.IsZero() {
			lastSeen = seenAt
		}

		conn := &models.Connection{
			SourceDeviceID: srcID,
			TargetDeviceID: dstID,
			Type:           models.ConnectionTypeEthernet,
			Protocol:       flowProtocol(flow),
			Port:           flow.DstPort,
			BandwidthBPS:   flow.BytesPerSecond,
			Stats: models.ConnectionStats{
				Bytes:        flow.Bytes,
				Packets:      flow.Packets,
				IsIndustrial: flow.IsIndustrial,
			},
			DiscoveredAt: seenAt,
			LastSeenAt:   lastSeen,
		}

		upserted, err := p.store.UpsertConnection(ctx, conn)
		if err != nil {
			return fmt.Errorf("failed to upsert connection: %w", err)
		}

		p.hub.Broadcast(broadcast.ChannelConnections, upserted)
	}

	return nil
}

func flowProtocol(flow *models.NetFlowRecord) string {
	if flow.IndustrialProtocol != "" {
		return flow.IndustrialProtocol
	}

	switch flow.Protocol {
	case 6:
		return "TCP"
	case 17:
		return "UDP"
	case 1:
		return "ICMP"
	default:
		return strconv.Itoa(int(flow.Protocol))
	}
}

func (p *Pipeline) processSyslog(ctx context.Context, record *models.TelemetryRecord) error {
	events, err := parsers.ParseSyslog(record)
	if err != nil {
		return err
	}

	for i := range events {
		event := &events[i]

		alert := parsers.AlertFromEvent(event)
		if alert == nil {
			continue
		}

		// Best effort: the reporting host may be a known device.
		if event.Hostname != "" {
			if id, ok, resolveErr := p.resolver.Resolve(ctx, event.Hostname); resolveErr == nil && ok {
				alert.DeviceID = id
			}
		}

		created, err := p.store.CreateAlert(ctx, alert)
		if err != nil {
			return fmt.Errorf("failed to create alert: %w", err)
		}

		p.hub.Broadcast(broadcast.ChannelAlerts, created)
	}

	return nil
}
