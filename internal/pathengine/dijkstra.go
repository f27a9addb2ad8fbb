package pathengine

import (
	"container/heap"

	"github.com/helix-sdn/helix/internal/topology"
)

// ShortestPath implements shortest_path(src, dst, weight_fn) from spec
// §4.B. It returns (path, true) on success, (nil, false) when dst is
// unreachable from src. src == dst yields a non-nil empty Path, not a
// failure, per the spec's edge case.
func ShortestPath(snap *topology.Snapshot, src, dst topology.HostID, weight WeightFunc, tie TieBreak) (Path, bool) {
	srcAttach, ok := snap.Attach[src]
	if !ok {
		return nil, false
	}
	dstAttach, ok := snap.Attach[dst]
	if !ok {
		return nil, false
	}
	if srcAttach.DPID == dstAttach.DPID {
		return Path{}, true
	}

	edges, ok := dijkstra(snap, srcAttach.DPID, dstAttach.DPID, weight, tie, nil)
	if !ok {
		return nil, false
	}
	return edgesToPath(srcAttach.Port, dstAttach.Port, edges), true
}

// SwitchPath computes the shortest path between two switches directly,
// given the port each path should start/end on. Used by inter-area
// segment lookups (internal/rootctrl), where the far endpoint is a
// boundary switch rather than a host attachment.
func SwitchPath(snap *topology.Snapshot, srcDPID topology.DPID, srcPort topology.PortNum, dstDPID topology.DPID, dstPort topology.PortNum, weight WeightFunc, tie TieBreak) (Path, bool) {
	if srcDPID == dstDPID {
		return Path{}, true
	}
	edges, ok := dijkstra(snap, srcDPID, dstDPID, weight, tie, nil)
	if !ok {
		return nil, false
	}
	return edgesToPath(srcPort, dstPort, edges), true
}

// dijkstraState is one settled-or-queued candidate path to a switch.
type dijkstraState struct {
	dpid     topology.DPID
	weight   float64
	hops     int
	maxUsage float64
	edges    []topology.Edge // full edge path from source, in order
}

// less reports whether a is strictly better than b under tie.
func less(a, b *dijkstraState, tie TieBreak) bool {
	if a.weight != b.weight {
		return a.weight < b.weight
	}
	switch tie {
	case TieBreakUsageLenLex:
		if a.maxUsage != b.maxUsage {
			return a.maxUsage < b.maxUsage
		}
		if a.hops != b.hops {
			return a.hops < b.hops
		}
	default: // TieBreakHopsLex
		if a.hops != b.hops {
			return a.hops < b.hops
		}
	}
	return lexLess(a.edges, b.edges)
}

// lexLess compares two edge paths by their visited-DPID sequence.
func lexLess(a, b []topology.Edge) bool {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i].To != b[i].To {
			return a[i].To < b[i].To
		}
	}
	return len(a) < len(b)
}

type pq []*dijkstraState

func (q pq) Len() int           { return len(q) }
func (q pq) Swap(i, j int)      { q[i], q[j] = q[j], q[i] }
func (q *pq) Push(x interface{}) { *q = append(*q, x.(*dijkstraState)) }
func (q *pq) Pop() interface{} {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

// pqWithTie adapts pq to heap.Interface with a tie-break-aware Less.
type pqWithTie struct {
	pq
	tie TieBreak
}

func (q pqWithTie) Less(i, j int) bool { return less(q.pq[i], q.pq[j], q.tie) }

// excluded, if non-nil, marks switch DPIDs that may not appear in the
// resulting path (used by disjoint_pair to forbid primary's interior
// nodes when computing a node-disjoint backup).
func dijkstra(snap *topology.Snapshot, src, dst topology.DPID, weight WeightFunc, tie TieBreak, excluded map[topology.DPID]bool) ([]topology.Edge, bool) {
	best := make(map[topology.DPID]*dijkstraState)
	start := &dijkstraState{dpid: src, weight: 0, hops: 0, maxUsage: 0, edges: nil}
	best[src] = start

	q := &pqWithTie{tie: tie}
	heap.Push(q, start)

	settled := make(map[topology.DPID]bool)

	for q.Len() > 0 {
		cur := heap.Pop(q).(*dijkstraState)
		if settled[cur.dpid] {
			continue
		}
		if b, ok := best[cur.dpid]; ok && b != cur {
			continue // stale entry superseded by a better one already
		}
		settled[cur.dpid] = true

		if cur.dpid == dst {
			return cur.edges, true
		}

		for _, e := range snap.Neighbours(cur.dpid) {
			if settled[e.To] {
				continue
			}
			if excluded != nil && excluded[e.To] && e.To != dst {
				continue
			}
			if containsDPID(cur.edges, e.To) {
				continue // no-repeat-switch invariant (spec §3)
			}
			maxUsage := cur.maxUsage
			if u := e.Usage(); u > maxUsage {
				maxUsage = u
			}
			cand := &dijkstraState{
				dpid:     e.To,
				weight:   cur.weight + weight(e),
				hops:     cur.hops + 1,
				maxUsage: maxUsage,
				edges:    append(append([]topology.Edge{}, cur.edges...), e),
			}
			existing, ok := best[e.To]
			if !ok || less(cand, existing, tie) {
				best[e.To] = cand
				heap.Push(q, cand)
			}
		}
	}
	return nil, false
}

func containsDPID(edges []topology.Edge, d topology.DPID) bool {
	for _, e := range edges {
		if e.To == d || e.From == d {
			return true
		}
	}
	return false
}

// edgesToPath converts a source-to-destination edge sequence plus the
// host-facing ports at both ends into the public Path/Hop representation.
func edgesToPath(srcPort, dstPort topology.PortNum, edges []topology.Edge) Path {
	if len(edges) == 0 {
		return Path{}
	}
	path := make(Path, 0, len(edges))
	ingress := srcPort
	for i, e := range edges {
		egress := e.FromPort
		path = append(path, Hop{Switch: e.From, IngressPort: ingress, EgressPort: egress})
		ingress = e.ToPort
		if i == len(edges)-1 {
			path = append(path, Hop{Switch: e.To, IngressPort: ingress, EgressPort: dstPort})
		}
	}
	return path
}
