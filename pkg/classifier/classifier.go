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

// Package classifier assigns devices a Purdue level and security zone by
// weighted multi-signal voting over partial, noisy evidence.
package classifier

import (
	"fmt"
	"math"
	"net"
	"regexp"
	"sort"
	"strings"

	"github.com/gridwatch/otmap/pkg/models"
)

// Signal weights. Device type is the strongest evidence, subnet heuristics
// the weakest.
const (
	weightType     = 40.0
	weightPattern  = 25.0
	weightVendor   = 20.0
	weightSubnet   = 15.0
	weightNeighbor = 30.0

	defaultConfidence = 50.0
)

// Config carries the classification tables. All of them are
// deployment-specific assumptions, so they are configurable rather than
// baked in; zero values fall back to the defaults.
type Config struct {
	TypeLevels    map[models.DeviceType]models.PurdueLevel `json:"type_levels,omitempty"`
	LevelPatterns map[models.PurdueLevel][]string          `json:"level_patterns,omitempty"`
	VendorLevels  []VendorRule                             `json:"vendor_levels,omitempty"`
	SubnetLevels  map[string]models.PurdueLevel            `json:"subnet_levels,omitempty"`
}

// VendorRule associates a vendor-name pattern with a Purdue level.
type VendorRule struct {
	Pattern string             `json:"pattern"`
	Level   models.PurdueLevel `json:"level"`
}

// DefaultConfig returns the built-in classification tables.
func DefaultConfig() Config {
	return Config{
		TypeLevels: map[models.DeviceType]models.PurdueLevel{
			models.DeviceTypeSensor:      models.PurdueLevel0,
			models.DeviceTypeActuator:    models.PurdueLevel0,
			models.DeviceTypePLC:         models.PurdueLevel1,
			models.DeviceTypeRTU:         models.PurdueLevel1,
			models.DeviceTypeDCS:         models.PurdueLevel1,
			models.DeviceTypeHMI:         models.PurdueLevel2,
			models.DeviceTypeSCADAServer: models.PurdueLevel2,
			models.DeviceTypeWorkstation: models.PurdueLevel2,
			models.DeviceTypeHistorian:   models.PurdueLevel3,
			models.DeviceTypeMES:         models.PurdueLevel3,
			models.DeviceTypeERP:         models.PurdueLevel5,
			models.DeviceTypeFirewall:    models.PurdueLevelDMZ,
			models.DeviceTypeJumpServer:  models.PurdueLevelDMZ,
			models.DeviceTypeDataDiode:   models.PurdueLevelDMZ,
		},
		LevelPatterns: map[models.PurdueLevel][]string{
			models.PurdueLevel0: {`(?i)(sensor|transmitter|xmtr|valve|actuator|vfd|drive)`},
			models.PurdueLevel1: {`(?i)(plc|rtu|controller|s7-|logix|modicon)`},
			models.PurdueLevel2: {`(?i)(hmi|scada|panelview|operator|eng-?ws)`},
			models.PurdueLevel3: {`(?i)(historian|mes|batch|pi-?(srv|server))`},
			models.PurdueLevel4: {`(?i)(it-|corp|office|fileserver|print)`},
			models.PurdueLevel5: {`(?i)(erp|sap|crm)`},
			models.PurdueLevelDMZ: {`(?i)(dmz|proxy|bastion|jump|gateway)`},
		},
		VendorLevels: []VendorRule{
			{Pattern: `(?i)(siemens|rockwell|allen-bradley|schneider|mitsubishi|omron|beckhoff|wago|abb|emerson|yokogawa)`, Level: models.PurdueLevel1},
			{Pattern: `(?i)(wonderware|aveva|inductive automation|citect|iconics|ge digital)`, Level: models.PurdueLevel2},
			{Pattern: `(?i)(osisoft|aspentech|canary)`, Level: models.PurdueLevel3},
			{Pattern: `(?i)(fortinet|palo alto|check ?point|juniper)`, Level: models.PurdueLevelDMZ},
		},
		SubnetLevels: map[string]models.PurdueLevel{
			"10.0":    models.PurdueLevel1,
			"10.1":    models.PurdueLevel2,
			"192.168": models.PurdueLevel3,
			"172.16":  models.PurdueLevelDMZ,
		},
	}
}

type vendorMatcher struct {
	re    *regexp.Regexp
	level models.PurdueLevel
}

// Classifier scores devices against the configured tables.
type Classifier struct {
	typeLevels   map[models.DeviceType]models.PurdueLevel
	patterns     map[models.PurdueLevel][]*regexp.Regexp
	vendors      []vendorMatcher
	subnetLevels map[string]models.PurdueLevel
}

// New compiles the configured tables into a classifier.
func New(cfg Config) (*Classifier, error) {
	defaults := DefaultConfig()

	if cfg.TypeLevels == nil {
		cfg.TypeLevels = defaults.TypeLevels
	}

	if cfg.LevelPatterns == nil {
		cfg.LevelPatterns = defaults.LevelPatterns
	}

	if cfg.VendorLevels == nil {
		cfg.VendorLevels = defaults.VendorLevels
	}

	if cfg.SubnetLevels == nil {
		cfg.SubnetLevels = defaults.SubnetLevels
	}

	c := &Classifier{
		typeLevels:   cfg.TypeLevels,
		patterns:     make(map[models.PurdueLevel][]*regexp.Regexp, len(cfg.LevelPatterns)),
		subnetLevels: cfg.SubnetLevels,
	}

	for level, patterns := range cfg.LevelPatterns {
		for _, p := range patterns {
			re, err := regexp.Compile(p)
			if err != nil {
				return nil, fmt.Errorf("invalid level pattern %q: %w", p, err)
			}

			c.patterns[level] = append(c.patterns[level], re)
		}
	}

	for _, rule := range cfg.VendorLevels {
		re, err := regexp.Compile(rule.Pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid vendor pattern %q: %w", rule.Pattern, err)
		}

		c.vendors = append(c.vendors, vendorMatcher{re: re, level: rule.Level})
	}

	return c, nil
}

// Classify scores a device from its own attributes.
func (c *Classifier) Classify(device *models.Device) models.ClassificationResult {
	scores, reasons := c.score(device)

	return finalize(device, scores, reasons)
}

// Reclassify additionally weights the average Purdue level of the device's
// known neighbors, letting topology context override weak local evidence.
func (c *Classifier) Reclassify(device *models.Device, neighbors []models.Device) models.ClassificationResult {
	scores, reasons := c.score(device)

	if len(neighbors) > 0 {
		sum := 0

		for i := range neighbors {
			sum += int(neighbors[i].PurdueLevel)
		}

		avg := models.PurdueLevel(int(math.Round(float64(sum) / float64(len(neighbors)))))
		scores[avg] += weightNeighbor
		reasons = append(reasons, fmt.Sprintf("neighbor average suggests level %s", avg))
	}

	return finalize(device, scores, reasons)
}

func (c *Classifier) score(device *models.Device) (map[models.PurdueLevel]float64, []string) {
	scores := make(map[models.PurdueLevel]float64)

	var reasons []string

	if level, ok := c.typeLevels[device.Type]; ok {
		scores[level] += weightType
		reasons = append(reasons, fmt.Sprintf("device type %q maps to level %s", device.Type, level))
	}

	name := device.Name + " " + device.Hostname

	for level, patterns := range c.patterns {
		for _, re := range patterns {
			if re.MatchString(name) {
				scores[level] += weightPattern
				reasons = append(reasons, fmt.Sprintf("name matches level %s pattern", level))
			}
		}
	}

	if device.Vendor != "" {
		for _, vm := range c.vendors {
			if vm.re.MatchString(device.Vendor) {
				scores[vm.level] += weightVendor
				reasons = append(reasons, fmt.Sprintf("vendor %q associated with level %s", device.Vendor, vm.level))

				break
			}
		}
	}

	for i := range device.Interfaces {
		prefix := subnetPrefix(device.Interfaces[i].IPAddress)
		if prefix == "" {
			continue
		}

		if level, ok := c.subnetLevels[prefix]; ok {
			scores[level] += weightSubnet
			reasons = append(reasons, fmt.Sprintf("subnet %s.* associated with level %s", prefix, level))
		}
	}

	return scores, reasons
}

// subnetPrefix returns the first two octets of a private IPv4 address.
func subnetPrefix(addr string) string {
	ip := net.ParseIP(addr)
	if ip == nil || ip.To4() == nil || !ip.IsPrivate() {
		return ""
	}

	parts := strings.SplitN(addr, ".", 3)
	if len(parts) < 3 {
		return ""
	}

	return parts[0] + "." + parts[1]
}

func finalize(device *models.Device, scores map[models.PurdueLevel]float64, reasons []string) models.ClassificationResult {
	var total float64

	for _, s := range scores {
		total += s
	}

	if total == 0 {
		// No signal fired; keep the device where it is.
		return models.ClassificationResult{
			DeviceID:   device.ID,
			Level:      device.PurdueLevel,
			Zone:       models.ZoneForLevel(device.PurdueLevel),
			Confidence: defaultConfidence,
			Reasons:    []string{"no classification signal matched"},
		}
	}

	var best float64

	for _, s := range scores {
		if s > best {
			best = s
		}
	}

	var tied []models.PurdueLevel

	for level, s := range scores {
		if s == best {
			tied = append(tied, level)
		}
	}

	sort.Slice(tied, func(i, j int) bool { return tied[i] < tied[j] })

	winner := tied[0]

	for _, level := range tied {
		if level == device.PurdueLevel {
			winner = level

			break
		}
	}

	alternatives := make([]models.LevelScore, 0, len(scores))

	for level, s := range scores {
		alternatives = append(alternatives, models.LevelScore{Level: level, Probability: s / total})
	}

	sort.Slice(alternatives, func(i, j int) bool {
		if alternatives[i].Probability != alternatives[j].Probability {
			return alternatives[i].Probability > alternatives[j].Probability
		}

		return alternatives[i].Level < alternatives[j].Level
	})

	return models.ClassificationResult{
		DeviceID:     device.ID,
		Level:        winner,
		Zone:         models.ZoneForLevel(winner),
		Confidence:   best / total * 100,
		Alternatives: alternatives,
		Reasons:      reasons,
	}
}
