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

package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/gosnmp/gosnmp"

	"github.com/gridwatch/otmap/pkg/models"
)

// System group and table OIDs queried on every poll.
const (
	oidSysDescr    = ".1.3.6.1.2.1.1.1.0"
	oidSysObjectID = ".1.3.6.1.2.1.1.2.0"
	oidSysUptime   = ".1.3.6.1.2.1.1.3.0"
	oidSysContact  = ".1.3.6.1.2.1.1.4.0"
	oidSysName     = ".1.3.6.1.2.1.1.5.0"
	oidSysLocation = ".1.3.6.1.2.1.1.6.0"

	oidIfTable       = ".1.3.6.1.2.1.2.2.1"
	oidIfDescr       = ".1.3.6.1.2.1.2.2.1.2"
	oidIfSpeed       = ".1.3.6.1.2.1.2.2.1.5"
	oidIfPhysAddress = ".1.3.6.1.2.1.2.2.1.6"
	oidIfAdminStatus = ".1.3.6.1.2.1.2.2.1.7"
	oidIfOperStatus  = ".1.3.6.1.2.1.2.2.1.8"

	oidIfXTable    = ".1.3.6.1.2.1.31.1.1.1"
	oidIfName      = ".1.3.6.1.2.1.31.1.1.1.1"
	oidIfHighSpeed = ".1.3.6.1.2.1.31.1.1.1.15"

	oidIPAddrTable    = ".1.3.6.1.2.1.4.20.1"
	oidIPAdEntIfIndex = ".1.3.6.1.2.1.4.20.1.2"
)

var (
	ErrUnsupportedSNMPVersion = errors.New("unsupported SNMP version")
	ErrNoSNMPData             = errors.New("no SNMP data returned")
)

// session is the subset of gosnmp.GoSNMP the poller needs; a seam for tests.
type session interface {
	Connect() error
	Get(oids []string) (*gosnmp.SnmpPacket, error)
	BulkWalk(rootOid string, walkFn gosnmp.WalkFunc) error
	Close() error
}

type snmpSession struct {
	client    *gosnmp.GoSNMP
	connected bool
}

func (s *snmpSession) Connect() error {
	if err := s.client.Connect(); err != nil {
		return err
	}

	s.connected = true

	return nil
}

func (s *snmpSession) Get(oids []string) (*gosnmp.SnmpPacket, error) {
	if !s.connected {
		if err := s.Connect(); err != nil {
			return nil, fmt.Errorf("failed to connect to target: %w", err)
		}
	}

	return s.client.Get(oids)
}

func (s *snmpSession) BulkWalk(rootOid string, walkFn gosnmp.WalkFunc) error {
	if !s.connected {
		if err := s.Connect(); err != nil {
			return fmt.Errorf("failed to connect to target: %w", err)
		}
	}

	return s.client.BulkWalk(rootOid, walkFn)
}

func (s *snmpSession) Close() error {
	if !s.connected || s.client.Conn == nil {
		return nil
	}

	s.connected = false

	return s.client.Conn.Close()
}

// newSNMPSession builds a persistent client for a target from its spec.
func newSNMPSession(spec TargetSpec, timeout time.Duration, retries int) (session, error) {
	// Flat retries: each attempt gets the same timeout, so a target always
	// reports within retries x timeout of its tick.
	client := &gosnmp.GoSNMP{
		Target:             spec.Host,
		Port:               spec.Port,
		Timeout:            timeout,
		Retries:            retries,
		MaxOids:            gosnmp.MaxOids,
		MaxRepetitions:     10,
		ExponentialTimeout: false,
	}

	if err := configureVersion(client, spec); err != nil {
		return nil, err
	}

	return &snmpSession{client: client}, nil
}

func configureVersion(client *gosnmp.GoSNMP, spec TargetSpec) error {
	switch strings.ToLower(spec.Version) {
	case "v1", "1":
		client.Version = gosnmp.Version1
		client.Community = spec.Community
	case "v2c", "2c", "2":
		client.Version = gosnmp.Version2c
		client.Community = spec.Community
	case "v3", "3":
		client.Version = gosnmp.Version3
		client.SecurityModel = gosnmp.UserSecurityModel
		client.MsgFlags = msgFlags(spec.SecurityLevel)

		usm := &gosnmp.UsmSecurityParameters{UserName: spec.SecurityName}
		configureV3Auth(usm, spec)
		configureV3Priv(usm, spec)
		client.SecurityParameters = usm
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedSNMPVersion, spec.Version)
	}

	return nil
}

func msgFlags(level string) gosnmp.SnmpV3MsgFlags {
	switch strings.ToLower(level) {
	case "authnopriv":
		return gosnmp.AuthNoPriv
	case "authpriv":
		return gosnmp.AuthPriv
	default:
		return gosnmp.NoAuthNoPriv
	}
}

func configureV3Auth(usm *gosnmp.UsmSecurityParameters, spec TargetSpec) {
	switch strings.ToUpper(spec.AuthProtocol) {
	case "MD5":
		usm.AuthenticationProtocol = gosnmp.MD5
		usm.AuthenticationPassphrase = spec.AuthKey
	case "SHA":
		usm.AuthenticationProtocol = gosnmp.SHA
		usm.AuthenticationPassphrase = spec.AuthKey
	case "SHA256":
		usm.AuthenticationProtocol = gosnmp.SHA256
		usm.AuthenticationPassphrase = spec.AuthKey
	case "SHA512":
		usm.AuthenticationProtocol = gosnmp.SHA512
		usm.AuthenticationPassphrase = spec.AuthKey
	}
}

func configureV3Priv(usm *gosnmp.UsmSecurityParameters, spec TargetSpec) {
	switch strings.ToUpper(spec.PrivProtocol) {
	case "DES":
		usm.PrivacyProtocol = gosnmp.DES
		usm.PrivacyPassphrase = spec.PrivKey
	case "AES":
		usm.PrivacyProtocol = gosnmp.AES
		usm.PrivacyPassphrase = spec.PrivKey
	case "AES256":
		usm.PrivacyProtocol = gosnmp.AES256
		usm.PrivacyPassphrase = spec.PrivKey
	}
}

// snmpPoll performs one full poll: system group, ifTable/ifXTable, and the
// ipAddrTable, assembled into a system-description payload.
func snmpPoll(ctx context.Context, sess session, spec TargetSpec) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	info, err := querySystem(sess, spec.Host)
	if err != nil {
		return nil, err
	}

	// Interface and address tables are best effort: many field devices
	// only implement the system group.
	if ifaces, ifErr := queryInterfaces(sess); ifErr == nil {
		info.Interfaces = ifaces
	}

	payload, err := json.Marshal(info)
	if err != nil {
		return nil, fmt.Errorf("failed to encode SNMP payload: %w", err)
	}

	return payload, nil
}

func querySystem(sess session, host string) (*models.SNMPSystemInfo, error) {
	oids := []string{
		oidSysDescr,
		oidSysObjectID,
		oidSysUptime,
		oidSysContact,
		oidSysName,
		oidSysLocation,
	}

	result, err := sess.Get(oids)
	if err != nil {
		return nil, fmt.Errorf("SNMP get failed: %w", err)
	}

	if result.Error != gosnmp.NoError {
		return nil, fmt.Errorf("SNMP error: %s", result.Error)
	}

	info := &models.SNMPSystemInfo{}
	found := false

	for _, v := range result.Variables {
		if v.Type == gosnmp.NoSuchObject || v.Type == gosnmp.NoSuchInstance {
			continue
		}

		found = true

		switch v.Name {
		case oidSysDescr:
			info.SysDescr = octetString(v)
		case oidSysObjectID:
			if s, ok := v.Value.(string); ok {
				info.SysObjectID = s
			}
		case oidSysUptime:
			if ticks, ok := v.Value.(uint32); ok {
				info.UptimeSeconds = int64(ticks) / 100
			}
		case oidSysContact:
			info.SysContact = octetString(v)
		case oidSysName:
			info.SysName = octetString(v)
		case oidSysLocation:
			info.SysLocation = octetString(v)
		}
	}

	if !found {
		return nil, ErrNoSNMPData
	}

	if info.SysName == "" {
		info.SysName = host
	}

	return info, nil
}

func queryInterfaces(sess session) ([]models.SNMPInterface, error) {
	ifMap := make(map[int]*models.SNMPInterface)

	err := sess.BulkWalk(oidIfTable, func(pdu gosnmp.SnmpPDU) error {
		index, prefix, ok := splitColumnOID(pdu.Name)
		if !ok {
			return nil
		}

		iface, exists := ifMap[index]
		if !exists {
			iface = &models.SNMPInterface{Index: index}
			ifMap[index] = iface
		}

		switch prefix {
		case oidIfDescr:
			iface.Description = octetString(pdu)
		case oidIfSpeed:
			if v, ok := pdu.Value.(uint); ok {
				iface.SpeedBPS = int64(v)
			}
		case oidIfPhysAddress:
			if b, ok := pdu.Value.([]byte); ok {
				iface.MACAddress = formatMAC(b)
			}
		case oidIfAdminStatus:
			iface.AdminStatus = ifStatus(pdu)
		case oidIfOperStatus:
			iface.OperStatus = ifStatus(pdu)
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk ifTable: %w", err)
	}

	// ifXTable is optional; ignore walk errors.
	_ = sess.BulkWalk(oidIfXTable, func(pdu gosnmp.SnmpPDU) error {
		index, prefix, ok := splitColumnOID(pdu.Name)
		if !ok {
			return nil
		}

		iface, exists := ifMap[index]
		if !exists {
			return nil
		}

		switch prefix {
		case oidIfName:
			iface.Name = octetString(pdu)
		case oidIfHighSpeed:
			if v, ok := pdu.Value.(uint); ok {
				// ifHighSpeed is Mbps.
				if bps := int64(v) * 1_000_000; bps > iface.SpeedBPS {
					iface.SpeedBPS = bps
				}
			}
		}

		return nil
	})

	_ = sess.BulkWalk(oidIPAddrTable, func(pdu gosnmp.SnmpPDU) error {
		if !strings.HasPrefix(pdu.Name, oidIPAdEntIfIndex) {
			return nil
		}

		index, ok := pdu.Value.(int)
		if !ok {
			return nil
		}

		iface, exists := ifMap[index]
		if !exists {
			return nil
		}

		// The instance suffix of ipAdEntIfIndex is the address itself.
		parts := strings.Split(pdu.Name, ".")
		if len(parts) < 4 {
			return nil
		}

		ip := strings.Join(parts[len(parts)-4:], ".")
		if net.ParseIP(ip) != nil {
			iface.IPAddress = ip
		}

		return nil
	})

	ifaces := make([]models.SNMPInterface, 0, len(ifMap))
	for _, iface := range ifMap {
		ifaces = append(ifaces, *iface)
	}

	return ifaces, nil
}

// splitColumnOID returns the instance index and the column prefix of a table
// cell OID.
func splitColumnOID(oid string) (index int, prefix string, ok bool) {
	parts := strings.Split(oid, ".")
	if len(parts) < 2 {
		return 0, "", false
	}

	index, err := strconv.Atoi(parts[len(parts)-1])
	if err != nil {
		return 0, "", false
	}

	prefix = strings.Join(parts[:len(parts)-1], ".")
	if !strings.HasPrefix(prefix, ".") {
		prefix = "." + prefix
	}

	return index, prefix, true
}

func octetString(pdu gosnmp.SnmpPDU) string {
	if b, ok := pdu.Value.([]byte); ok {
		return string(b)
	}

	return ""
}

func ifStatus(pdu gosnmp.SnmpPDU) string {
	v, ok := pdu.Value.(int)
	if !ok {
		return ""
	}

	switch v {
	case 1:
		return "up"
	case 2:
		return "down"
	case 3:
		return "testing"
	default:
		return ""
	}
}

func formatMAC(b []byte) string {
	if len(b) == 0 {
		return ""
	}

	parts := make([]string, len(b))
	for i, octet := range b {
		parts[i] = fmt.Sprintf("%02x", octet)
	}

	return strings.Join(parts, ":")
}
