// Package config loads the master's static configuration: the projected
// slave list and the ring timing defaults, from an .ini-style file the way
// the object dictionary importer parses its EDS sections.
package config

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"gopkg.in/ini.v1"
)

// SlaveConfig is one projected slave's configuration-time entry: the
// address it is expected at and the SCP classes the application wants
// active once it comes up, before any live class reconciliation runs.
type SlaveConfig struct {
	Address       uint16
	ActiveClasses []uint16
}

// MasterConfig is the full static configuration: ring timing defaults plus
// every projected slave with its Sercos address, in file order.
type MasterConfig struct {
	CommCycleTime time.Duration
	RingInterface string
	Slaves        []SlaveConfig
}

var slaveSectionExp = regexp.MustCompile(`^slave:([0-9]+)$`)

// Load parses a master configuration file. file may be a path, an
// *os.File, or a []byte, matching ini.Load's own accepted source argument.
func Load(file any) (*MasterConfig, error) {
	doc, err := ini.Load(file)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	cfg := &MasterConfig{}

	master := doc.Section("master")
	cycleMs, err := master.Key("CommCycleTimeMs").Int()
	if err != nil {
		cycleMs = 1
	}
	cfg.CommCycleTime = time.Duration(cycleMs) * time.Millisecond
	cfg.RingInterface = master.Key("RingInterface").MustString("eth0")

	for _, section := range doc.Sections() {
		m := slaveSectionExp.FindStringSubmatch(section.Name())
		if m == nil {
			continue
		}
		addr, err := strconv.ParseUint(m[1], 10, 16)
		if err != nil {
			return nil, fmt.Errorf("config: slave section %q: %w", section.Name(), err)
		}
		sc := SlaveConfig{Address: uint16(addr)}
		for _, raw := range section.Key("ActiveClasses").Strings(",") {
			class, err := strconv.ParseUint(raw, 10, 16)
			if err != nil {
				return nil, fmt.Errorf("config: slave %d: ActiveClasses: %w", addr, err)
			}
			sc.ActiveClasses = append(sc.ActiveClasses, uint16(class))
		}
		cfg.Slaves = append(cfg.Slaves, sc)
	}

	return cfg, nil
}

// Addresses returns every projected slave's Sercos address, in file order,
// the shape slave.NewFleet expects.
func (c *MasterConfig) Addresses() []uint16 {
	out := make([]uint16, len(c.Slaves))
	for i, sc := range c.Slaves {
		out[i] = sc.Address
	}
	return out
}
