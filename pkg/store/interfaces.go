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

// Package store defines the repository contract the pipeline persists
// through. The durable engine behind it is interchangeable; a Postgres
// implementation and an in-memory implementation live here.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/gridwatch/otmap/pkg/models"
)

var (
	ErrDeviceNotFound     = errors.New("device not found")
	ErrConnectionNotFound = errors.New("connection not found")
	ErrTelemetryNotFound  = errors.New("telemetry record not found")
	ErrAlertNotFound      = errors.New("alert not found")
)

// SearchCriteria filters device searches. Zero values match everything.
type SearchCriteria struct {
	Type   models.DeviceType
	Zone   models.SecurityZone
	Level  *models.PurdueLevel
	Status models.DeviceStatus
	Limit  int
	Offset int
}

// Page describes the pagination of a search result.
type Page struct {
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// DeviceStore persists devices.
type DeviceStore interface {
	Search(ctx context.Context, criteria SearchCriteria) ([]models.Device, Page, error)
	Get(ctx context.Context, id string) (*models.Device, error)
	Create(ctx context.Context, device *models.Device) (*models.Device, error)
	Update(ctx context.Context, device *models.Device) error
	UpdateLastSeen(ctx context.Context, id string, at time.Time) error
	FindByIPAddress(ctx context.Context, ip string) (*models.Device, error)
}

// ConnectionStore persists topology edges, upserted by
// (source, target, protocol, port).
type ConnectionStore interface {
	UpsertConnection(ctx context.Context, conn *models.Connection) (*models.Connection, error)
	ListConnectionsByDevice(ctx context.Context, deviceID string) ([]models.Connection, error)
	ListConnections(ctx context.Context) ([]models.Connection, error)
}

// TelemetryStore persists raw telemetry envelopes.
type TelemetryStore interface {
	InsertTelemetry(ctx context.Context, record *models.TelemetryRecord) error
	GetTelemetry(ctx context.Context, id string) (*models.TelemetryRecord, error)
	ListTelemetry(ctx context.Context, limit int) ([]models.TelemetryRecord, error)
	MarkProcessed(ctx context.Context, id string) error
}

// AlertStore persists alerts.
type AlertStore interface {
	CreateAlert(ctx context.Context, alert *models.Alert) (*models.Alert, error)
	AcknowledgeAlert(ctx context.Context, id string) error
	ResolveAlert(ctx context.Context, id string) error
}

// Store is the full repository contract consumed by the pipeline.
type Store interface {
	DeviceStore
	ConnectionStore
	TelemetryStore
	AlertStore
	Close() error
}
