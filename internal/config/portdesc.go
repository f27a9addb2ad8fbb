package config

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/helix-sdn/helix/internal/topology"
)

// PortKey identifies one switch port for the port-description override
// table.
type PortKey struct {
	DPID topology.DPID
	Port topology.PortNum
}

// PortDesc maps (dpid,port) to a declared link speed in bits per second,
// loaded from the CSV file named by application.static_port_desc. Ports
// absent from the table fall back to the OpenFlow port-desc's nominal
// capacity (spec §6).
type PortDesc map[PortKey]uint64

// LoadPortDesc parses the `dpid,port,speed` CSV at path.
func LoadPortDesc(path string) (PortDesc, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open port-desc %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("config: parse port-desc %s: %w", path, err)
	}
	if len(records) == 0 {
		return PortDesc{}, nil
	}

	out := make(PortDesc, len(records)-1)
	for i, rec := range records {
		if i == 0 && len(rec) > 0 && rec[0] == "dpid" {
			continue // header line
		}
		if len(rec) != 3 {
			return nil, fmt.Errorf("config: port-desc %s line %d: expected 3 fields, got %d", path, i+1, len(rec))
		}
		dpid, err := strconv.ParseUint(rec[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("config: port-desc %s line %d: bad dpid %q: %w", path, i+1, rec[0], err)
		}
		port, err := strconv.ParseUint(rec[1], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("config: port-desc %s line %d: bad port %q: %w", path, i+1, rec[1], err)
		}
		speed, err := strconv.ParseUint(rec[2], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("config: port-desc %s line %d: bad speed %q: %w", path, i+1, rec[2], err)
		}
		out[PortKey{DPID: topology.DPID(dpid), Port: topology.PortNum(port)}] = speed
	}
	return out, nil
}

// Lookup returns the declared speed for (dpid,port), falling back to
// fallback when absent from the table.
func (pd PortDesc) Lookup(dpid topology.DPID, port topology.PortNum, fallback uint64) uint64 {
	if v, ok := pd[PortKey{DPID: dpid, Port: port}]; ok {
		return v
	}
	return fallback
}
