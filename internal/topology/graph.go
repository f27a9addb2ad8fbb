package topology

import (
	"fmt"
	"sync"
)

// Graph is the live, mutable topology. All mutation methods acquire the
// write lock; Snapshot and the query methods take the read lock. Per spec
// §5, workers that need to read without blocking the writer should call
// Snapshot() once and operate on the returned immutable copy.
type Graph struct {
	mu       sync.RWMutex
	switches map[DPID]*Node
	hosts    map[HostID]*Node

	// hostAttach records which switch port a host is discovered behind.
	// Kept separate from Ports' PeerDPID, which is reserved for
	// switch-to-switch links (spec §3: a host-facing port has no peer).
	hostAttach map[HostID]HostAttachment

	// events is a buffered fan-out of topology-change events. Subscribe
	// returns a fresh channel; Unsubscribe unregisters it. The control task
	// (internal/localctrl) is the only expected long-lived subscriber.
	subMu sync.Mutex
	subs  []chan Event
}

// HostAttachment is the (switch, port) a host was last discovered behind.
type HostAttachment struct {
	DPID DPID
	Port PortNum
}

// New creates an empty topology graph.
func New() *Graph {
	return &Graph{
		switches:   make(map[DPID]*Node),
		hosts:      make(map[HostID]*Node),
		hostAttach: make(map[HostID]HostAttachment),
	}
}

// Subscribe registers a new event listener. The returned channel is
// buffered; if the subscriber falls behind, Unsubscribe and re-subscribe
// rather than blocking graph mutations on a slow consumer.
func (g *Graph) Subscribe(buffer int) chan Event {
	ch := make(chan Event, buffer)
	g.subMu.Lock()
	g.subs = append(g.subs, ch)
	g.subMu.Unlock()
	return ch
}

// Unsubscribe removes and closes a previously-subscribed channel.
func (g *Graph) Unsubscribe(ch chan Event) {
	g.subMu.Lock()
	defer g.subMu.Unlock()
	for i, s := range g.subs {
		if s == ch {
			g.subs = append(g.subs[:i], g.subs[i+1:]...)
			close(ch)
			return
		}
	}
}

func (g *Graph) emit(ev Event) {
	g.subMu.Lock()
	defer g.subMu.Unlock()
	for _, ch := range g.subs {
		select {
		case ch <- ev:
		default: // drop rather than block the writer; slow subscriber's problem
		}
	}
}

// EnsureSwitch returns the node for dpid, creating it if absent.
func (g *Graph) EnsureSwitch(dpid DPID) *Node {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.ensureSwitchLocked(dpid)
}

func (g *Graph) ensureSwitchLocked(dpid DPID) *Node {
	n, ok := g.switches[dpid]
	if !ok {
		n = newSwitchNode(dpid)
		g.switches[dpid] = n
	}
	return n
}

// EnsureHost returns the node for h, creating it if absent.
func (g *Graph) EnsureHost(h HostID) *Node {
	g.mu.Lock()
	defer g.mu.Unlock()
	n, ok := g.hosts[h]
	if !ok {
		n = newHostNode(h)
		g.hosts[h] = n
	}
	return n
}

// RemoveHost deletes a host node and reports whether it was present. It
// emits no event, so candidates using the host are not torn down.
func (g *Graph) RemoveHost(h HostID) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.hosts[h]; !ok {
		return false
	}
	delete(g.hosts, h)
	return true
}

// AddLink installs a bidirectional physical link between (u,portU) and
// (v,portV) with capacity capBps. It creates both switch nodes if absent
// and sets up the back-reference invariant on both sides (spec §3).
func (g *Graph) AddLink(u DPID, portU PortNum, v DPID, portV PortNum, capBps uint64) {
	g.mu.Lock()
	nu := g.ensureSwitchLocked(u)
	nv := g.ensureSwitchLocked(v)

	nu.Ports[portU] = &PortDesc{Port: portU, PeerDPID: v, PeerPort: portV, AdminUp: true, CapacityBps: capBps, Active: true}
	nv.Ports[portV] = &PortDesc{Port: portV, PeerDPID: u, PeerPort: portU, AdminUp: true, CapacityBps: capBps, Active: true}
	nu.Neighbours[v] = struct{}{}
	nv.Neighbours[u] = struct{}{}
	g.mu.Unlock()

	g.emit(Event{Kind: EventLinkAdded, DPID: u, Port: portU, PeerDPID: v, PeerPort: portV})
}

// SetHostPort attaches a host-facing port on a switch (no peer DPID).
func (g *Graph) SetHostPort(sw DPID, port PortNum, capBps uint64) {
	g.mu.Lock()
	n := g.ensureSwitchLocked(sw)
	n.Ports[port] = &PortDesc{Port: port, AdminUp: true, CapacityBps: capBps, Active: true}
	g.mu.Unlock()
}

// AttachHost records that host h was discovered behind sw:port, creating
// the host node if absent. The path engine uses this to anchor a
// candidate's path at the correct first/last hop (spec §4.B).
func (g *Graph) AttachHost(h HostID, sw DPID, port PortNum) {
	g.mu.Lock()
	defer g.mu.Unlock()
	hn, ok := g.hosts[h]
	if !ok {
		hn = newHostNode(h)
		g.hosts[h] = hn
	}
	hn.Neighbours[sw] = struct{}{}
	g.hostAttach[h] = HostAttachment{DPID: sw, Port: port}
}

// HostAttachment returns where host h is attached, if known.
func (g *Graph) HostAttachment(h HostID) (HostAttachment, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	a, ok := g.hostAttach[h]
	return a, ok
}

// RemoveLink marks the link at (dpid,port) inactive (spec §4.A: append-only
// in failure mode — the edge is retained for revert, not deleted). Both
// directions of the physical link are marked inactive.
func (g *Graph) RemoveLink(dpid DPID, port PortNum) error {
	g.mu.Lock()
	n, ok := g.switches[dpid]
	if !ok {
		g.mu.Unlock()
		return fmt.Errorf("topology: unknown switch %d", dpid)
	}
	pd, ok := n.Ports[port]
	if !ok {
		g.mu.Unlock()
		return fmt.Errorf("topology: unknown port %d on switch %d", port, dpid)
	}
	pd.Active = false

	var peerOK bool
	if pd.HasPeer() {
		if peer, ok := g.switches[pd.PeerDPID]; ok {
			if ppd, ok := peer.Ports[pd.PeerPort]; ok {
				if ppd.PeerDPID != dpid || ppd.PeerPort != port {
					g.mu.Unlock()
					g.emit(Event{Kind: EventInconsistency, DPID: dpid, Port: port, Detail: "back-reference mismatch"})
					return fmt.Errorf("topology: inconsistent back-reference for %d:%d", dpid, port)
				}
				ppd.Active = false
				peerOK = true
			}
		}
	}
	peerDPID, peerPort := pd.PeerDPID, pd.PeerPort
	g.mu.Unlock()

	g.emit(Event{Kind: EventLinkDown, DPID: dpid, Port: port, PeerDPID: peerDPID, PeerPort: peerPort})
	if pd.HasPeer() && !peerOK {
		g.emit(Event{Kind: EventInconsistency, DPID: dpid, Port: port, Detail: "peer port missing"})
	}
	return nil
}

// ReactivateLink marks a previously-down link active again.
func (g *Graph) ReactivateLink(dpid DPID, port PortNum) error {
	g.mu.Lock()
	n, ok := g.switches[dpid]
	if !ok {
		g.mu.Unlock()
		return fmt.Errorf("topology: unknown switch %d", dpid)
	}
	pd, ok := n.Ports[port]
	if !ok {
		g.mu.Unlock()
		return fmt.Errorf("topology: unknown port %d on switch %d", port, dpid)
	}
	pd.Active = true
	if pd.HasPeer() {
		if peer, ok := g.switches[pd.PeerDPID]; ok {
			if ppd, ok := peer.Ports[pd.PeerPort]; ok {
				ppd.Active = true
			}
		}
	}
	peerDPID, peerPort := pd.PeerDPID, pd.PeerPort
	g.mu.Unlock()

	g.emit(Event{Kind: EventLinkUp, DPID: dpid, Port: port, PeerDPID: peerDPID, PeerPort: peerPort})
	return nil
}

// SetPortUsage updates the rolling send-rate estimate for one port and
// emits a usage-updated event so the TE engine can re-check congestion.
func (g *Graph) SetPortUsage(dpid DPID, port PortNum, bps float64) error {
	g.mu.Lock()
	n, ok := g.switches[dpid]
	if !ok {
		g.mu.Unlock()
		return fmt.Errorf("topology: unknown switch %d", dpid)
	}
	pd, ok := n.Ports[port]
	if !ok {
		g.mu.Unlock()
		return fmt.Errorf("topology: unknown port %d on switch %d", port, dpid)
	}
	pd.SendRateBps = bps
	g.mu.Unlock()

	g.emit(Event{Kind: EventPortUsageUpdated, DPID: dpid, Port: port})
	return nil
}

// Neighbours returns the set of neighbour DPIDs for a switch. O(deg).
func (g *Graph) Neighbours(dpid DPID) []DPID {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok := g.switches[dpid]
	if !ok {
		return nil
	}
	out := make([]DPID, 0, len(n.Neighbours))
	for d := range n.Neighbours {
		out = append(out, d)
	}
	return out
}

// EdgeAt returns the derived Edge view for the link leaving dpid on port,
// or false if no such port/link exists.
func (g *Graph) EdgeAt(dpid DPID, port PortNum) (Edge, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok := g.switches[dpid]
	if !ok {
		return Edge{}, false
	}
	pd, ok := n.Ports[port]
	if !ok || !pd.HasPeer() {
		return Edge{}, false
	}
	return Edge{
		From: dpid, FromPort: port,
		To: pd.PeerDPID, ToPort: pd.PeerPort,
		CapacityBps: pd.CapacityBps,
		UsageBps:    pd.SendRateBps,
		Active:      pd.Active && pd.AdminUp,
	}, true
}

// Switch returns a copy-free pointer to the live switch node for inspection
// under the caller's own synchronisation discipline (tests, snapshot build).
func (g *Graph) Switch(dpid DPID) (*Node, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok := g.switches[dpid]
	return n, ok
}

// Host returns the node for a host, if discovered.
func (g *Graph) Host(h HostID) (*Node, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok := g.hosts[h]
	return n, ok
}

// Switches returns all known switch DPIDs.
func (g *Graph) Switches() []DPID {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]DPID, 0, len(g.switches))
	for d := range g.switches {
		out = append(out, d)
	}
	return out
}
