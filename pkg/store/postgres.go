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
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gridwatch/otmap/pkg/models"
)

// PostgresConfig describes the database connection.
type PostgresConfig struct {
	Host           string `json:"host"`
	Port           int    `json:"port"`
	Database       string `json:"database"`
	Username       string `json:"username"`
	Password       string `json:"password"`
	SSLMode        string `json:"ssl_mode"`
	MaxConnections int32  `json:"max_connections"`
}

// PostgresStore is the Store implementation on a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresPool dials the configured database and returns a pgx pool.
func NewPostgresPool(ctx context.Context, cfg *PostgresConfig) (*pgxpool.Pool, error) {
	pg := *cfg
	if pg.Port == 0 {
		pg.Port = 5432
	}

	connURL := url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", pg.Host, pg.Port),
		Path:   "/" + pg.Database,
	}

	if pg.Username != "" {
		if pg.Password != "" {
			connURL.User = url.UserPassword(pg.Username, pg.Password)
		} else {
			connURL.User = url.User(pg.Username)
		}
	}

	query := connURL.Query()

	sslMode := pg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	query.Set("sslmode", sslMode)
	connURL.RawQuery = query.Encode()

	poolConfig, err := pgxpool.ParseConfig(connURL.String())
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to parse connection string: %w", err)
	}

	if pg.MaxConnections > 0 {
		poolConfig.MaxConns = pg.MaxConnections
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to create pool: %w", err)
	}

	return pool, nil
}

// NewPostgresStore wraps an existing pool as a Store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const deviceColumns = `id, name, hostname, type, vendor, model, firmware_version,
	purdue_level, zone, status, location, interfaces, metadata, discovered_at, last_seen`

func scanDevice(row pgx.Row) (*models.Device, error) {
	var (
		d          models.Device
		interfaces []byte
		metadata   []byte
	)

	err := row.Scan(&d.ID, &d.Name, &d.Hostname, &d.Type, &d.Vendor, &d.Model,
		&d.FirmwareVersion, &d.PurdueLevel, &d.Zone, &d.Status, &d.Location,
		&interfaces, &metadata, &d.DiscoveredAt, &d.LastSeen)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}

		return nil, err
	}

	if len(interfaces) > 0 {
		if err := json.Unmarshal(interfaces, &d.Interfaces); err != nil {
			return nil, fmt.Errorf("postgres: failed to decode interfaces: %w", err)
		}
	}

	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &d.Metadata); err != nil {
			return nil, fmt.Errorf("postgres: failed to decode metadata: %w", err)
		}
	}

	return &d, nil
}

func (s *PostgresStore) Search(ctx context.Context, criteria SearchCriteria) ([]models.Device, Page, error) {
	where := " WHERE ($1 = '' OR type = $1) AND ($2 = '' OR zone = $2)" +
		" AND ($3::int IS NULL OR purdue_level = $3) AND ($4 = '' OR status = $4)"

	var level *int

	if criteria.Level != nil {
		v := int(*criteria.Level)
		level = &v
	}

	var total int

	err := s.pool.QueryRow(ctx, "SELECT count(*) FROM devices"+where,
		string(criteria.Type), string(criteria.Zone), level, string(criteria.Status)).Scan(&total)
	if err != nil {
		return nil, Page{}, fmt.Errorf("postgres: device count failed: %w", err)
	}

	q := "SELECT " + deviceColumns + " FROM devices" + where + " ORDER BY id"

	args := []interface{}{string(criteria.Type), string(criteria.Zone), level, string(criteria.Status)}

	if criteria.Limit > 0 {
		q += fmt.Sprintf(" LIMIT %d", criteria.Limit)
	}

	if criteria.Offset > 0 {
		q += fmt.Sprintf(" OFFSET %d", criteria.Offset)
	}

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, Page{}, fmt.Errorf("postgres: device search failed: %w", err)
	}
	defer rows.Close()

	var devices []models.Device

	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, Page{}, err
		}

		devices = append(devices, *d)
	}

	return devices, Page{Total: total, Limit: criteria.Limit, Offset: criteria.Offset}, rows.Err()
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*models.Device, error) {
	row := s.pool.QueryRow(ctx, "SELECT "+deviceColumns+" FROM devices WHERE id = $1", id)

	return scanDevice(row)
}

func (s *PostgresStore) Create(ctx context.Context, device *models.Device) (*models.Device, error) {
	if device.ID == "" {
		device.ID = uuid.New().String()
	}

	if device.DiscoveredAt.IsZero() {
		device.DiscoveredAt = time.Now()
	}

	if device.LastSeen.IsZero() {
		device.LastSeen = device.DiscoveredAt
	}

	interfaces, err := json.Marshal(device.Interfaces)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to encode interfaces: %w", err)
	}

	metadata, err := json.Marshal(device.Metadata)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to encode metadata: %w", err)
	}

	_, err = s.pool.Exec(ctx, `INSERT INTO devices (`+deviceColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		device.ID, device.Name, device.Hostname, device.Type, device.Vendor,
		device.Model, device.FirmwareVersion, device.PurdueLevel, device.Zone,
		device.Status, device.Location, interfaces, metadata,
		device.DiscoveredAt, device.LastSeen)
	if err != nil {
		return nil, fmt.Errorf("postgres: device insert failed: %w", err)
	}

	return device, nil
}

func (s *PostgresStore) Update(ctx context.Context, device *models.Device) error {
	interfaces, err := json.Marshal(device.Interfaces)
	if err != nil {
		return fmt.Errorf("postgres: failed to encode interfaces: %w", err)
	}

	metadata, err := json.Marshal(device.Metadata)
	if err != nil {
		return fmt.Errorf("postgres: failed to encode metadata: %w", err)
	}

	tag, err := s.pool.Exec(ctx, `UPDATE devices SET
		name = $2, hostname = $3, type = $4, vendor = $5, model = $6,
		firmware_version = $7, purdue_level = $8, zone = $9, status = $10,
		location = $11, interfaces = $12, metadata = $13,
		last_seen = GREATEST(last_seen, $14)
		WHERE id = $1`,
		device.ID, device.Name, device.Hostname, device.Type, device.Vendor,
		device.Model, device.FirmwareVersion, device.PurdueLevel, device.Zone,
		device.Status, device.Location, interfaces, metadata, device.LastSeen)
	if err != nil {
		return fmt.Errorf("postgres: device update failed: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrDeviceNotFound
	}

	return nil
}

func (s *PostgresStore) UpdateLastSeen(ctx context.Context, id string, at time.Time) error {
	tag, err := s.pool.Exec(ctx,
		"UPDATE devices SET last_seen = GREATEST(last_seen, $2) WHERE id = $1", id, at)
	if err != nil {
		return fmt.Errorf("postgres: last_seen update failed: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrDeviceNotFound
	}

	return nil
}

func (s *PostgresStore) FindByIPAddress(ctx context.Context, ip string) (*models.Device, error) {
	row := s.pool.QueryRow(ctx, "SELECT "+deviceColumns+` FROM devices
		WHERE interfaces @> jsonb_build_array(jsonb_build_object('ip_address', $1::text))
		LIMIT 1`, ip)

	return scanDevice(row)
}

func (s *PostgresStore) UpsertConnection(ctx context.Context, conn *models.Connection) (*models.Connection, error) {
	if conn.ID == "" {
		conn.ID = uuid.New().String()
	}

	if conn.DiscoveredAt.IsZero() {
		conn.DiscoveredAt = time.Now()
	}

	if conn.LastSeenAt.IsZero() {
		conn.LastSeenAt = conn.DiscoveredAt
	}

	row := s.pool.QueryRow(ctx, `INSERT INTO connections (
		id, source_device_id, target_device_id, type, protocol, port,
		bandwidth_bps, is_secure, is_encrypted, encryption_type,
		bytes, packets, is_industrial, discovered_at, last_seen_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (source_device_id, target_device_id, protocol, port) DO UPDATE SET
			bandwidth_bps = EXCLUDED.bandwidth_bps,
			is_secure = EXCLUDED.is_secure,
			is_encrypted = EXCLUDED.is_encrypted,
			encryption_type = EXCLUDED.encryption_type,
			bytes = connections.bytes + EXCLUDED.bytes,
			packets = connections.packets + EXCLUDED.packets,
			is_industrial = EXCLUDED.is_industrial,
			last_seen_at = GREATEST(connections.last_seen_at, EXCLUDED.last_seen_at)
		RETURNING id, discovered_at, last_seen_at, bytes, packets`,
		conn.ID, conn.SourceDeviceID, conn.TargetDeviceID, conn.Type, conn.Protocol,
		conn.Port, conn.BandwidthBPS, conn.IsSecure, conn.IsEncrypted, conn.EncryptionType,
		conn.Stats.Bytes, conn.Stats.Packets, conn.Stats.IsIndustrial,
		conn.DiscoveredAt, conn.LastSeenAt)

	result := *conn

	err := row.Scan(&result.ID, &result.DiscoveredAt, &result.LastSeenAt,
		&result.Stats.Bytes, &result.Stats.Packets)
	if err != nil {
		return nil, fmt.Errorf("postgres: connection upsert failed: %w", err)
	}

	return &result, nil
}

const connectionColumns = `id, source_device_id, target_device_id, type, protocol, port,
	bandwidth_bps, is_secure, is_encrypted, encryption_type,
	bytes, packets, is_industrial, discovered_at, last_seen_at`

func scanConnections(rows pgx.Rows) ([]models.Connection, error) {
	defer rows.Close()

	var conns []models.Connection

	for rows.Next() {
		var c models.Connection

		err := rows.Scan(&c.ID, &c.SourceDeviceID, &c.TargetDeviceID, &c.Type,
			&c.Protocol, &c.Port, &c.BandwidthBPS, &c.IsSecure, &c.IsEncrypted,
			&c.EncryptionType, &c.Stats.Bytes, &c.Stats.Packets,
			&c.Stats.IsIndustrial, &c.DiscoveredAt, &c.LastSeenAt)
		if err != nil {
			return nil, err
		}

		conns = append(conns, c)
	}

	return conns, rows.Err()
}

func (s *PostgresStore) ListConnectionsByDevice(ctx context.Context, deviceID string) ([]models.Connection, error) {
	rows, err := s.pool.Query(ctx, "SELECT "+connectionColumns+
		" FROM connections WHERE source_device_id = $1 OR target_device_id = $1", deviceID)
	if err != nil {
		return nil, fmt.Errorf("postgres: connection list failed: %w", err)
	}

	return scanConnections(rows)
}

func (s *PostgresStore) ListConnections(ctx context.Context) ([]models.Connection, error) {
	rows, err := s.pool.Query(ctx, "SELECT "+connectionColumns+" FROM connections")
	if err != nil {
		return nil, fmt.Errorf("postgres: connection list failed: %w", err)
	}

	return scanConnections(rows)
}

func (s *PostgresStore) InsertTelemetry(ctx context.Context, record *models.TelemetryRecord) error {
	if record.ID == "" {
		record.ID = uuid.New().String()
	}

	metadata, err := json.Marshal(record.Metadata)
	if err != nil {
		return fmt.Errorf("postgres: failed to encode metadata: %w", err)
	}

	_, err = s.pool.Exec(ctx, `INSERT INTO telemetry (id, source, timestamp, payload, processed, metadata)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		record.ID, record.Source, record.Timestamp, []byte(record.Payload), record.Processed, metadata)
	if err != nil {
		return fmt.Errorf("postgres: telemetry insert failed: %w", err)
	}

	return nil
}

func (s *PostgresStore) GetTelemetry(ctx context.Context, id string) (*models.TelemetryRecord, error) {
	row := s.pool.QueryRow(ctx,
		"SELECT id, source, timestamp, payload, processed, metadata FROM telemetry WHERE id = $1", id)

	return scanTelemetry(row)
}

func (s *PostgresStore) ListTelemetry(ctx context.Context, limit int) ([]models.TelemetryRecord, error) {
	q := "SELECT id, source, timestamp, payload, processed, metadata FROM telemetry ORDER BY timestamp DESC"

	if limit > 0 {
		q += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("postgres: telemetry list failed: %w", err)
	}
	defer rows.Close()

	var records []models.TelemetryRecord

	for rows.Next() {
		rec, err := scanTelemetry(rows)
		if err != nil {
			return nil, err
		}

		records = append(records, *rec)
	}

	return records, rows.Err()
}

func scanTelemetry(row pgx.Row) (*models.TelemetryRecord, error) {
	var (
		rec      models.TelemetryRecord
		payload  []byte
		metadata []byte
	)

	err := row.Scan(&rec.ID, &rec.Source, &rec.Timestamp, &payload, &rec.Processed, &metadata)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTelemetryNotFound
		}

		return nil, err
	}

	rec.Payload = payload

	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &rec.Metadata); err != nil {
			return nil, fmt.Errorf("postgres: failed to decode metadata: %w", err)
		}
	}

	return &rec, nil
}

func (s *PostgresStore) MarkProcessed(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, "UPDATE telemetry SET processed = true WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("postgres: telemetry update failed: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrTelemetryNotFound
	}

	return nil
}

func (s *PostgresStore) CreateAlert(ctx context.Context, alert *models.Alert) (*models.Alert, error) {
	if alert.ID == "" {
		alert.ID = uuid.New().String()
	}

	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = time.Now()
	}

	details, err := json.Marshal(alert.Details)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to encode details: %w", err)
	}

	_, err = s.pool.Exec(ctx, `INSERT INTO alerts (
		id, type, severity, title, description, device_id, details,
		acknowledged, resolved, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		alert.ID, alert.Type, alert.Severity, alert.Title, alert.Description,
		alert.DeviceID, details, alert.Acknowledged, alert.Resolved, alert.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("postgres: alert insert failed: %w", err)
	}

	return alert, nil
}

func (s *PostgresStore) AcknowledgeAlert(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		"UPDATE alerts SET acknowledged = true, acknowledged_at = now() WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("postgres: alert update failed: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrAlertNotFound
	}

	return nil
}

func (s *PostgresStore) ResolveAlert(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		"UPDATE alerts SET resolved = true, resolved_at = now() WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("postgres: alert update failed: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrAlertNotFound
	}

	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()

	return nil
}

var _ Store = (*PostgresStore)(nil)
