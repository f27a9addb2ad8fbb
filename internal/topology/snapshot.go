package topology

// Snapshot is an immutable, deep-copied view of the graph at one instant.
// Readers (path engine, TE engine, HTTP state-sync handler) take a Snapshot
// instead of holding the graph's read lock for the duration of a Dijkstra
// run or a JSON encode, per spec §5's single-writer-plus-snapshot model.
type Snapshot struct {
	Switches map[DPID]SwitchView
	Hosts    map[HostID]HostView
	Attach   map[HostID]HostAttachment
}

// SwitchView is the read-only shape of a switch node plus its ports.
type SwitchView struct {
	DPID  DPID
	Ports map[PortNum]PortDesc
}

// HostView is the read-only shape of a discovered host.
type HostView struct {
	Host       HostID
	Neighbours []DPID
}

// Snapshot deep-copies the live graph under the read lock and releases it
// immediately; the returned value shares no memory with the live graph.
func (g *Graph) Snapshot() *Snapshot {
	g.mu.RLock()
	defer g.mu.RUnlock()

	snap := &Snapshot{
		Switches: make(map[DPID]SwitchView, len(g.switches)),
		Hosts:    make(map[HostID]HostView, len(g.hosts)),
		Attach:   make(map[HostID]HostAttachment, len(g.hostAttach)),
	}
	for h, a := range g.hostAttach {
		snap.Attach[h] = a
	}
	for dpid, n := range g.switches {
		ports := make(map[PortNum]PortDesc, len(n.Ports))
		for pn, pd := range n.Ports {
			ports[pn] = *pd
		}
		snap.Switches[dpid] = SwitchView{DPID: dpid, Ports: ports}
	}
	for h, n := range g.hosts {
		nbrs := make([]DPID, 0, len(n.Neighbours))
		for d := range n.Neighbours {
			nbrs = append(nbrs, d)
		}
		snap.Hosts[h] = HostView{Host: h, Neighbours: nbrs}
	}
	return snap
}

// Neighbours returns the active, admin-up neighbour edges leaving dpid in
// the snapshot, suitable for Dijkstra relaxation. O(deg).
func (s *Snapshot) Neighbours(dpid DPID) []Edge {
	sw, ok := s.Switches[dpid]
	if !ok {
		return nil
	}
	out := make([]Edge, 0, len(sw.Ports))
	for _, pd := range sw.Ports {
		if !pd.HasPeer() || !pd.Active || !pd.AdminUp {
			continue
		}
		out = append(out, Edge{
			From: dpid, FromPort: pd.Port,
			To: pd.PeerDPID, ToPort: pd.PeerPort,
			CapacityBps: pd.CapacityBps,
			UsageBps:    pd.SendRateBps,
			Active:      true,
		})
	}
	return out
}
