package pathengine

import "github.com/helix-sdn/helix/internal/topology"

// DisjointResult is the outcome of disjoint_pair (spec §4.B).
type DisjointResult struct {
	Primary Path
	Backup  Path // zero-value (nil) when no backup exists

	// Partial is true when Backup is only link-disjoint, not
	// node-disjoint, from Primary. The protection installer must not
	// promise full single-node-failure coverage in that case.
	Partial bool
}

// DisjointPair implements disjoint_pair(src, dst): the primary shortest
// path, then a best-effort node-disjoint backup found by removing the
// primary's interior switches from the graph and re-running Dijkstra. If
// no node-disjoint backup exists, it falls back to a link-disjoint backup
// (primary's edges excluded, interior switches allowed) and marks it
// partial.
func DisjointPair(snap *topology.Snapshot, src, dst topology.HostID, weight WeightFunc, tie TieBreak) (DisjointResult, bool) {
	primary, ok := ShortestPath(snap, src, dst, weight, tie)
	if !ok {
		return DisjointResult{}, false
	}
	if len(primary) == 0 {
		return DisjointResult{Primary: primary}, true
	}

	srcAttach := snap.Attach[src]
	dstAttach := snap.Attach[dst]

	interior := make(map[topology.DPID]bool, len(primary))
	for _, h := range primary {
		if h.Switch == srcAttach.DPID || h.Switch == dstAttach.DPID {
			continue
		}
		interior[h.Switch] = true
	}

	if edges, ok := dijkstra(snap, srcAttach.DPID, dstAttach.DPID, weight, tie, interior); ok {
		backup := edgesToPath(srcAttach.Port, dstAttach.Port, edges)
		return DisjointResult{Primary: primary, Backup: backup}, true
	}

	// Fall back to a link-disjoint backup: forbid the primary's edges
	// but allow its interior switches to be revisited.
	linkExcluded := excludedSnapshot(snap, primary)
	if edges, ok := dijkstra(linkExcluded, srcAttach.DPID, dstAttach.DPID, weight, tie, nil); ok {
		backup := edgesToPath(srcAttach.Port, dstAttach.Port, edges)
		return DisjointResult{Primary: primary, Backup: backup, Partial: true}, true
	}

	return DisjointResult{Primary: primary}, true
}

// excludedSnapshot returns a shallow copy of snap with every edge used by
// path marked inactive, so dijkstra() naturally avoids them via
// snap.Neighbours' active-only filter.
func excludedSnapshot(snap *topology.Snapshot, path Path) *topology.Snapshot {
	used := make(map[topology.DPID]map[topology.PortNum]bool)
	mark := func(dpid topology.DPID, port topology.PortNum) {
		if used[dpid] == nil {
			used[dpid] = make(map[topology.PortNum]bool)
		}
		used[dpid][port] = true
	}
	for _, h := range path {
		mark(h.Switch, h.EgressPort)
		if sw, ok := snap.Switches[h.Switch]; ok {
			if pd, ok := sw.Ports[h.EgressPort]; ok && pd.HasPeer() {
				mark(pd.PeerDPID, pd.PeerPort)
			}
		}
	}

	out := &topology.Snapshot{
		Switches: make(map[topology.DPID]topology.SwitchView, len(snap.Switches)),
		Hosts:    snap.Hosts,
		Attach:   snap.Attach,
	}
	for dpid, sw := range snap.Switches {
		ports := make(map[topology.PortNum]topology.PortDesc, len(sw.Ports))
		for pn, pd := range sw.Ports {
			if used[dpid][pn] {
				pd.Active = false
			}
			ports[pn] = pd
		}
		out.Switches[dpid] = topology.SwitchView{DPID: dpid, Ports: ports}
	}
	return out
}
