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

package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gridwatch/otmap/pkg/models"
)

// MemoryStore is an in-process Store. It backs tests and standalone runs
// where no database is configured.
type MemoryStore struct {
	mu          sync.RWMutex
	devices     map[string]*models.Device
	connections map[string]*models.Connection
	telemetry   map[string]*models.TelemetryRecord
	alerts      map[string]*models.Alert
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		devices:     make(map[string]*models.Device),
		connections: make(map[string]*models.Connection),
		telemetry:   make(map[string]*models.TelemetryRecord),
		alerts:      make(map[string]*models.Alert),
	}
}

func (s *MemoryStore) Search(_ context.Context, criteria SearchCriteria) ([]models.Device, Page, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]models.Device, 0, len(s.devices))

	for _, d := range s.devices {
		if criteria.Type != "" && d.Type != criteria.Type {
			continue
		}

		if criteria.Zone != "" && d.Zone != criteria.Zone {
			continue
		}

		if criteria.Level != nil && d.PurdueLevel != *criteria.Level {
			continue
		}

		if criteria.Status != "" && d.Status != criteria.Status {
			continue
		}

		matched = append(matched, *d)
	}

	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })

	page := Page{Total: len(matched), Limit: criteria.Limit, Offset: criteria.Offset}

	if criteria.Offset > 0 {
		if criteria.Offset >= len(matched) {
			matched = nil
		} else {
			matched = matched[criteria.Offset:]
		}
	}

	if criteria.Limit > 0 && len(matched) > criteria.Limit {
		matched = matched[:criteria.Limit]
	}

	return matched, page, nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*models.Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.devices[id]
	if !ok {
		return nil, ErrDeviceNotFound
	}

	clone := *d

	return &clone, nil
}

func (s *MemoryStore) Create(_ context.Context, device *models.Device) (*models.Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if device.ID == "" {
		device.ID = uuid.New().String()
	}

	if device.DiscoveredAt.IsZero() {
		device.DiscoveredAt = time.Now()
	}

	if device.LastSeen.IsZero() {
		device.LastSeen = device.DiscoveredAt
	}

	clone := *device
	s.devices[device.ID] = &clone

	return device, nil
}

func (s *MemoryStore) Update(_ context.Context, device *models.Device) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.devices[device.ID]
	if !ok {
		return ErrDeviceNotFound
	}

	// LastSeen only ever moves forward.
	if device.LastSeen.Before(existing.LastSeen) {
		device.LastSeen = existing.LastSeen
	}

	clone := *device
	s.devices[device.ID] = &clone

	return nil
}

func (s *MemoryStore) UpdateLastSeen(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.devices[id]
	if !ok {
		return ErrDeviceNotFound
	}

	d.Touch(at)

	return nil
}

func (s *MemoryStore) FindByIPAddress(_ context.Context, ip string) (*models.Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, d := range s.devices {
		for i := range d.Interfaces {
			if d.Interfaces[i].IPAddress == ip {
				clone := *d

				return &clone, nil
			}
		}
	}

	return nil, ErrDeviceNotFound
}

func (s *MemoryStore) UpsertConnection(_ context.Context, conn *models.Connection) (*models.Connection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := conn.Key()

	if existing, ok := s.connections[key]; ok {
		if conn.LastSeenAt.After(existing.LastSeenAt) {
			existing.LastSeenAt = conn.LastSeenAt
		}

		existing.BandwidthBPS = conn.BandwidthBPS
		existing.Stats.Bytes += conn.Stats.Bytes
		existing.Stats.Packets += conn.Stats.Packets
		existing.IsSecure = conn.IsSecure
		existing.IsEncrypted = conn.IsEncrypted
		existing.EncryptionType = conn.EncryptionType

		clone := *existing

		return &clone, nil
	}

	if conn.ID == "" {
		conn.ID = uuid.New().String()
	}

	if conn.DiscoveredAt.IsZero() {
		conn.DiscoveredAt = time.Now()
	}

	if conn.LastSeenAt.IsZero() {
		conn.LastSeenAt = conn.DiscoveredAt
	}

	clone := *conn
	s.connections[key] = &clone

	result := clone

	return &result, nil
}

func (s *MemoryStore) ListConnectionsByDevice(_ context.Context, deviceID string) ([]models.Connection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var conns []models.Connection

	for _, c := range s.connections {
		if c.SourceDeviceID == deviceID || c.TargetDeviceID == deviceID {
			conns = append(conns, *c)
		}
	}

	return conns, nil
}

func (s *MemoryStore) ListConnections(_ context.Context) ([]models.Connection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conns := make([]models.Connection, 0, len(s.connections))

	for _, c := range s.connections {
		conns = append(conns, *c)
	}

	return conns, nil
}

func (s *MemoryStore) InsertTelemetry(_ context.Context, record *models.TelemetryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if record.ID == "" {
		record.ID = uuid.New().String()
	}

	clone := *record
	s.telemetry[record.ID] = &clone

	return nil
}

func (s *MemoryStore) GetTelemetry(_ context.Context, id string) (*models.TelemetryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.telemetry[id]
	if !ok {
		return nil, ErrTelemetryNotFound
	}

	clone := *rec

	return &clone, nil
}

func (s *MemoryStore) ListTelemetry(_ context.Context, limit int) ([]models.TelemetryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]models.TelemetryRecord, 0, len(s.telemetry))

	for _, rec := range s.telemetry {
		records = append(records, *rec)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].Timestamp.After(records[j].Timestamp)
	})

	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}

	return records, nil
}

func (s *MemoryStore) MarkProcessed(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.telemetry[id]
	if !ok {
		return ErrTelemetryNotFound
	}

	rec.Processed = true

	return nil
}

func (s *MemoryStore) CreateAlert(_ context.Context, alert *models.Alert) (*models.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if alert.ID == "" {
		alert.ID = uuid.New().String()
	}

	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = time.Now()
	}

	clone := *alert
	s.alerts[alert.ID] = &clone

	return alert, nil
}

func (s *MemoryStore) AcknowledgeAlert(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.alerts[id]
	if !ok {
		return ErrAlertNotFound
	}

	now := time.Now()
	a.Acknowledged = true
	a.AcknowledgedAt = &now

	return nil
}

func (s *MemoryStore) ResolveAlert(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.alerts[id]
	if !ok {
		return ErrAlertNotFound
	}

	now := time.Now()
	a.Resolved = true
	a.ResolvedAt = &now

	return nil
}

func (*MemoryStore) Close() error { return nil }

var _ Store = (*MemoryStore)(nil)
