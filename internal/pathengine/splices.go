package pathengine

import "github.com/helix-sdn/helix/internal/topology"

// Splice is an alternate egress port at an on-path switch that joins the
// primary path onto the backup path without revisiting that switch
// (spec §4.B).
type Splice struct {
	Switch topology.DPID
	Egress topology.PortNum
}

// SpliceMode selects how aggressively Splices accepts a candidate egress.
type SpliceMode int

const (
	// StrictSplice accepts a splice only if the resulting path is still
	// loop-free and reaches dst using currently-known links.
	StrictSplice SpliceMode = iota
	// LooseSplice accepts a splice that assumes neighbour switches will
	// reroute around a local failure, without verifying full reachability.
	LooseSplice
)

// Splices computes splices(primary, backup): for every on-path switch of
// primary that also appears in backup, the egress port backup uses at
// that switch. Both strict and loose variants are produced by the same
// function; mode only changes which switches pass the loop-free/
// reachability check.
func Splices(snap *topology.Snapshot, primary, backup Path, mode SpliceMode) map[topology.DPID]topology.PortNum {
	out := make(map[topology.DPID]topology.PortNum)
	if len(primary) == 0 || len(backup) == 0 {
		return out
	}

	backupIdx := make(map[topology.DPID]int, len(backup))
	for i, h := range backup {
		backupIdx[h.Switch] = i
	}

	for _, ph := range primary {
		bi, ok := backupIdx[ph.Switch]
		if !ok {
			continue
		}
		bh := backup[bi]
		if bh.EgressPort == ph.EgressPort {
			continue // identical egress, not an alternate splice
		}

		if mode == StrictSplice {
			if !spliceIsLoopFree(snap, ph.Switch, bh.EgressPort, backup[bi:]) {
				continue
			}
		}
		out[ph.Switch] = bh.EgressPort
	}
	return out
}

// spliceIsLoopFree verifies that following backup from this splice point
// onward never revisits a switch and every hop's link is currently active,
// i.e. the remainder of the backup path is known-good right now.
func spliceIsLoopFree(snap *topology.Snapshot, from topology.DPID, egress topology.PortNum, remainder Path) bool {
	seen := map[topology.DPID]bool{from: true}
	for i, h := range remainder {
		if i == 0 {
			continue // the splice point itself, already in seen
		}
		if seen[h.Switch] {
			return false
		}
		seen[h.Switch] = true

		sw, ok := snap.Switches[remainder[i-1].Switch]
		if !ok {
			return false
		}
		pd, ok := sw.Ports[remainder[i-1].EgressPort]
		if !ok || !pd.Active || !pd.AdminUp {
			return false
		}
	}
	return true
}
