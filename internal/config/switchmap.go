package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/helix-sdn/helix/internal/herr"
)

// InterAreaLinkDesc is one `dom.<neighbour_cid>` entry: the boundary
// switch/port on each side of an inter-area link.
type InterAreaLinkDesc struct {
	Sw     uint64 `json:"sw"`
	Port   uint32 `json:"port"`
	SwTo   uint64 `json:"sw_to"`
	PortTo uint32 `json:"port_to"`
}

// LinkDesc is one intra-area physical link between two switches this
// controller owns.
type LinkDesc struct {
	Sw          uint64 `json:"sw"`
	Port        uint32 `json:"port"`
	SwTo        uint64 `json:"sw_to"`
	PortTo      uint32 `json:"port_to"`
	CapacityBps uint64 `json:"capacity_bps"`
}

// ControllerDesc is one `ctrl.<cid>` entry.
type ControllerDesc struct {
	Switches       []uint64                       `json:"sw"`
	Hosts          []string                        `json:"host"`
	ExtraInstances []int                           `json:"extra_instances"`
	Links          []LinkDesc                      `json:"links"`
	Domains        map[string][]InterAreaLinkDesc `json:"dom"`
}

// RootDesc is one `root.<rid>` entry.
type RootDesc struct {
	Controllers []string `json:"controllers"`
}

// SwitchMap is the parsed switch-to-controller map (spec §6).
type SwitchMap struct {
	Root map[string]RootDesc       `json:"root"`
	Ctrl map[string]ControllerDesc `json:"ctrl"`
}

// LoadSwitchMap parses the JSON switch-to-controller map at path.
func LoadSwitchMap(path string) (*SwitchMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read switch map %s: %w", path, err)
	}
	var sm SwitchMap
	if err := json.Unmarshal(data, &sm); err != nil {
		return nil, fmt.Errorf("config: parse switch map %s: %w", path, err)
	}
	return &sm, nil
}

// Validate checks that every extra_instances entry is a positive integer
// (0 is implicit and must not be listed explicitly).
func (sm *SwitchMap) Validate() error {
	for cid, c := range sm.Ctrl {
		for _, inst := range c.ExtraInstances {
			if inst <= 0 {
				return fmt.Errorf("ctrl.%s.extra_instances entry %d must be positive (0 is implicit): %w", cid, inst, herr.ErrConfig)
			}
		}
	}
	return nil
}
