// Package pathengine computes shortest paths, node-disjoint backup paths,
// and path splices over a topology snapshot (spec §4.B). It never touches
// the live topology.Graph directly: every entry point takes a
// *topology.Snapshot so a long Dijkstra run never blocks the writer.
package pathengine

import "github.com/helix-sdn/helix/internal/topology"

// Hop is one element of a computed path: the switch, the port the packet
// arrives on, and the port it leaves on. Spec §3 invariant: the first
// hop's ingress port is the host-facing port.
type Hop struct {
	Switch      topology.DPID
	IngressPort topology.PortNum
	EgressPort  topology.PortNum
}

// Path is an ordered, loop-free sequence of hops from src's attachment
// switch to dst's attachment switch. A Path of length 0 (but non-nil)
// represents src and dst attached to the same switch.
type Path []Hop

// Switches returns the ordered DPID sequence visited by p.
func (p Path) Switches() []topology.DPID {
	out := make([]topology.DPID, len(p))
	for i, h := range p {
		out[i] = h.Switch
	}
	return out
}

// WeightFunc assigns a cost to traversing an edge.
type WeightFunc func(e topology.Edge) float64

// UnitWeight costs every active edge 1, so total path weight equals hop
// count.
func UnitWeight(topology.Edge) float64 { return 1 }

// CSPFWeight builds the constrained-shortest-path-first weight function
// from spec §4.B: w(e) = 1 + alpha*usage(e)/cap(e); an edge with zero
// capacity costs 1 + alpha. With DefaultAlpha the usage term outweighs hop
// count: one extra hop is offset by a summed usage difference of only
// 0.001, so a shorter path carrying more load loses to a longer, less
// loaded one, and hop count decides only between paths whose summed usage
// is nearly equal.
const DefaultAlpha = 1000.0

func CSPFWeight(alpha float64) WeightFunc {
	return func(e topology.Edge) float64 {
		if e.CapacityBps == 0 {
			return 1 + alpha
		}
		usage := e.UsageBps / float64(e.CapacityBps)
		if usage < 0 {
			usage = 0
		}
		return 1 + alpha*usage
	}
}

// TieBreak selects the secondary ordering applied to equal-weight paths.
type TieBreak int

const (
	// TieBreakHopsLex: fewer hops, then lexicographically smaller DPID
	// sequence. Used with UnitWeight.
	TieBreakHopsLex TieBreak = iota
	// TieBreakUsageLenLex: smaller maximum edge usage along the path,
	// then shorter length, then lexicographically smaller DPID sequence.
	// Used with CSPFWeight (spec §4.B edge cases).
	TieBreakUsageLenLex
)
