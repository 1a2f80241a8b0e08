package models

import (
	"fmt"
	"time"
)

// ConnectionType categorizes how two devices talk to each other.
type ConnectionType string

const (
	ConnectionTypeEthernet   ConnectionType = "ethernet"
	ConnectionTypeSerial     ConnectionType = "serial"
	ConnectionTypeFieldbus   ConnectionType = "fieldbus"
	ConnectionTypeWireless   ConnectionType = "wireless"
	ConnectionTypeVPN        ConnectionType = "vpn"
	ConnectionTypeUnknownLnk ConnectionType = "unknown"
)

// ConnectionStats carries observed traffic volume for a connection.
type ConnectionStats struct {
	Bytes        uint64 `json:"bytes"`
	Packets      uint64 `json:"packets"`
	IsIndustrial bool   `json:"is_industrial"`
}

// Connection is a directed edge between two devices, keyed by
// (source, target, protocol, port). A repeated observation updates the
// existing edge instead of creating a duplicate.
type Connection struct {
	ID             string          `json:"id"`
	SourceDeviceID string          `json:"source_device_id"`
	TargetDeviceID string          `json:"target_device_id"`
	Type           ConnectionType  `json:"type"`
	Protocol       string          `json:"protocol"`
	Port           uint16          `json:"port"`
	BandwidthBPS   float64         `json:"bandwidth_bps"`
	IsSecure       bool            `json:"is_secure"`
	IsEncrypted    bool            `json:"is_encrypted"`
	EncryptionType string          `json:"encryption_type,omitempty"`
	Stats          ConnectionStats `json:"stats"`
	DiscoveredAt   time.Time       `json:"discovered_at"`
	LastSeenAt     time.Time       `json:"last_seen_at"`
}

// Key returns the upsert key of the edge.
func (c *Connection) Key() string {
	return fmt.Sprintf("%s|%s|%s|%d", c.SourceDeviceID, c.TargetDeviceID, c.Protocol, c.Port)
}
