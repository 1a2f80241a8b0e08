package models

import (
	"time"
)

// DeviceType identifies the functional class of a discovered device.
type DeviceType string

const (
	DeviceTypeSensor      DeviceType = "sensor"
	DeviceTypeActuator    DeviceType = "actuator"
	DeviceTypePLC         DeviceType = "plc"
	DeviceTypeRTU         DeviceType = "rtu"
	DeviceTypeDCS         DeviceType = "dcs"
	DeviceTypeHMI         DeviceType = "hmi"
	DeviceTypeSCADAServer DeviceType = "scada_server"
	DeviceTypeHistorian   DeviceType = "historian"
	DeviceTypeMES         DeviceType = "mes"
	DeviceTypeERP         DeviceType = "erp"
	DeviceTypeWorkstation DeviceType = "workstation"
	DeviceTypeFirewall    DeviceType = "firewall"
	DeviceTypeSwitch      DeviceType = "switch"
	DeviceTypeRouter      DeviceType = "router"
	DeviceTypeJumpServer  DeviceType = "jump_server"
	DeviceTypeDataDiode   DeviceType = "data_diode"
	DeviceTypeUnknown     DeviceType = "unknown"
)

// DeviceStatus describes device reachability.
type DeviceStatus string

const (
	DeviceStatusOnline  DeviceStatus = "online"
	DeviceStatusOffline DeviceStatus = "offline"
	DeviceStatusUnknown DeviceStatus = "unknown"
)

// PurdueLevel is a layer of the Purdue reference architecture. The DMZ sits
// above level 5 in the ordering so numeric comparisons against production
// levels stay meaningful.
type PurdueLevel int

const (
	PurdueLevel0 PurdueLevel = iota
	PurdueLevel1
	PurdueLevel2
	PurdueLevel3
	PurdueLevel4
	PurdueLevel5
	PurdueLevelDMZ
)

func (l PurdueLevel) String() string {
	switch l {
	case PurdueLevel0:
		return "0"
	case PurdueLevel1:
		return "1"
	case PurdueLevel2:
		return "2"
	case PurdueLevel3:
		return "3"
	case PurdueLevel4:
		return "4"
	case PurdueLevel5:
		return "5"
	case PurdueLevelDMZ:
		return "dmz"
	default:
		return "unknown"
	}
}

// SecurityZone is the coarse trust domain a device belongs to.
type SecurityZone string

const (
	ZoneControl     SecurityZone = "control"
	ZoneSupervisory SecurityZone = "supervisory"
	ZoneOperations  SecurityZone = "operations"
	ZoneEnterprise  SecurityZone = "enterprise"
	ZoneDMZ         SecurityZone = "dmz"
	ZoneUntrusted   SecurityZone = "untrusted"
)

// levelZones is the fixed level-to-zone mapping that keeps a device's level
// and zone consistent.
var levelZones = map[PurdueLevel]SecurityZone{
	PurdueLevel0:   ZoneControl,
	PurdueLevel1:   ZoneControl,
	PurdueLevel2:   ZoneSupervisory,
	PurdueLevel3:   ZoneOperations,
	PurdueLevel4:   ZoneEnterprise,
	PurdueLevel5:   ZoneEnterprise,
	PurdueLevelDMZ: ZoneDMZ,
}

// ZoneForLevel returns the security zone derived from a Purdue level.
func ZoneForLevel(l PurdueLevel) SecurityZone {
	if z, ok := levelZones[l]; ok {
		return z
	}

	return ZoneUntrusted
}

// InterfaceCounters holds traffic counters for a network interface.
type InterfaceCounters struct {
	BytesIn    uint64 `json:"bytes_in"`
	BytesOut   uint64 `json:"bytes_out"`
	PacketsIn  uint64 `json:"packets_in"`
	PacketsOut uint64 `json:"packets_out"`
}

// NetworkInterface is one interface belonging to a device.
type NetworkInterface struct {
	Index       int               `json:"index"`
	Name        string            `json:"name"`
	IPAddress   string            `json:"ip_address,omitempty"`
	MACAddress  string            `json:"mac_address,omitempty"`
	AdminStatus string            `json:"admin_status,omitempty"`
	OperStatus  string            `json:"oper_status,omitempty"`
	SpeedBPS    int64             `json:"speed_bps,omitempty"`
	Counters    InterfaceCounters `json:"counters"`
}

// Device represents a device on the monitored network.
type Device struct {
	ID              string             `json:"id"`
	Name            string             `json:"name"`
	Hostname        string             `json:"hostname,omitempty"`
	Type            DeviceType         `json:"type"`
	Vendor          string             `json:"vendor,omitempty"`
	Model           string             `json:"model,omitempty"`
	FirmwareVersion string             `json:"firmware_version,omitempty"`
	PurdueLevel     PurdueLevel        `json:"purdue_level"`
	Zone            SecurityZone       `json:"zone"`
	Status          DeviceStatus       `json:"status"`
	RiskScore       float64            `json:"risk_score"`
	Location        string             `json:"location,omitempty"`
	Interfaces      []NetworkInterface `json:"interfaces,omitempty"`
	Metadata        map[string]string  `json:"metadata,omitempty"`
	DiscoveredAt    time.Time          `json:"discovered_at"`
	LastSeen        time.Time          `json:"last_seen"`
}

// Touch advances LastSeen, never moving it backwards.
func (d *Device) Touch(at time.Time) {
	if at.After(d.LastSeen) {
		d.LastSeen = at
	}
}

// IPAddresses returns all interface addresses of the device.
func (d *Device) IPAddresses() []string {
	addrs := make([]string, 0, len(d.Interfaces))

	for i := range d.Interfaces {
		if d.Interfaces[i].IPAddress != "" {
			addrs = append(addrs, d.Interfaces[i].IPAddress)
		}
	}

	return addrs
}

// IsControlDevice reports whether the device directly drives a physical
// process (PLC/RTU class).
func (d *Device) IsControlDevice() bool {
	switch d.Type {
	case DeviceTypePLC, DeviceTypeRTU, DeviceTypeDCS:
		return true
	default:
		return false
	}
}
