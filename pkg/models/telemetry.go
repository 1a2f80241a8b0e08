package models

import (
	"encoding/json"
	"time"
)

// TelemetrySource declares which protocol produced a telemetry record.
type TelemetrySource string

const (
	SourceSNMP    TelemetrySource = "snmp"
	SourceARP     TelemetrySource = "arp"
	SourceNetFlow TelemetrySource = "netflow"
	SourceSyslog  TelemetrySource = "syslog"
)

// TelemetryRecord is the envelope every telemetry observation travels in,
// whether actively collected or received from a broker. The payload stays
// opaque until the parser for the declared source turns it into typed
// entities.
type TelemetryRecord struct {
	ID        string            `json:"id"`
	Source    TelemetrySource   `json:"source"`
	Timestamp time.Time         `json:"timestamp"`
	Payload   json.RawMessage   `json:"data"`
	Processed bool              `json:"processed"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// SNMPInterface mirrors the NetworkInterface shape before identity
// resolution has attached it to a device.
type SNMPInterface struct {
	Index       int    `json:"index"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	IPAddress   string `json:"ip_address,omitempty"`
	MACAddress  string `json:"mac_address,omitempty"`
	SpeedBPS    int64  `json:"speed_bps,omitempty"`
	AdminStatus string `json:"admin_status,omitempty"`
	OperStatus  string `json:"oper_status,omitempty"`
}

// SNMPSystemInfo is the parsed form of an SNMP system-description payload.
type SNMPSystemInfo struct {
	SysName       string          `json:"sys_name"`
	SysDescr      string          `json:"sys_descr"`
	SysLocation   string          `json:"sys_location,omitempty"`
	SysContact    string          `json:"sys_contact,omitempty"`
	SysObjectID   string          `json:"sys_object_id,omitempty"`
	UptimeSeconds int64           `json:"uptime_seconds,omitempty"`
	Interfaces    []SNMPInterface `json:"interfaces,omitempty"`
}

// ARPEntryType distinguishes learned from configured ARP entries.
type ARPEntryType string

const (
	ARPEntryDynamic ARPEntryType = "dynamic"
	ARPEntryStatic  ARPEntryType = "static"
)

// ARPEntry is a single row of an ARP table payload.
type ARPEntry struct {
	IP         string       `json:"ip"`
	MAC        string       `json:"mac"`
	Interface  string       `json:"interface,omitempty"`
	VLANID     int          `json:"vlan_id,omitempty"`
	Type       ARPEntryType `json:"type,omitempty"`
	AgeSeconds float64      `json:"age_seconds,omitempty"`
}

// NetFlowRecord is one parsed flow observation. BytesPerSecond is derived at
// parse time with the flow duration floored at one second.
type NetFlowRecord struct {
	SrcAddr            string    `json:"src_addr"`
	DstAddr            string    `json:"dst_addr"`
	SrcPort            uint16    `json:"src_port"`
	DstPort            uint16    `json:"dst_port"`
	Protocol           uint8     `json:"protocol"`
	IsIndustrial       bool      `json:"is_industrial"`
	IndustrialProtocol string    `json:"industrial_protocol,omitempty"`
	Bytes              uint64    `json:"bytes"`
	Packets            uint64    `json:"packets"`
	Start              time.Time `json:"start"`
	End                time.Time `json:"end"`
	BytesPerSecond     float64   `json:"bytes_per_second"`
}

// SyslogEvent is one parsed syslog message.
type SyslogEvent struct {
	Facility  int       `json:"facility"`
	Severity  int       `json:"severity"`
	Timestamp time.Time `json:"timestamp"`
	Hostname  string    `json:"hostname,omitempty"`
	AppName   string    `json:"app_name,omitempty"`
	Message   string    `json:"message"`
}
