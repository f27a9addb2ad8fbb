package te

import (
	"github.com/helix-sdn/helix/internal/pathengine"
	"github.com/helix-sdn/helix/internal/topology"
)

// projectedFraction computes what an edge's utilisation fraction would be
// if candidate c moved from its current path onto newPath, given table's
// present usage (spec §4.E: "current − candidate contribution + new
// candidate contribution").
func projectedFraction(table *usageTable, k edgeKey, c CandidateInput, onCurrent, onNew bool) float64 {
	u := table.usage[k]
	if onCurrent {
		u -= c.SendRateBps
	}
	if onNew {
		u += c.SendRateBps
	}
	if u < 0 {
		u = 0
	}
	capacity := table.cap[k]
	if capacity == 0 {
		return 0
	}
	return u / float64(capacity)
}

// validity classifies a candidate path: valid if every edge's projected
// usage stays within capacity, strictly valid if additionally within tau.
func validity(table *usageTable, c CandidateInput, path pathengine.Path, tau float64) (valid, strict bool) {
	currentKeys := make(map[edgeKey]bool)
	for _, k := range pathEdgeKeys(c.CurrentPath) {
		currentKeys[k] = true
	}
	newKeys := pathEdgeKeys(path)
	if len(newKeys) == 0 {
		return true, true
	}

	valid = true
	strict = true
	for _, k := range newKeys {
		f := projectedFraction(table, k, c, currentKeys[k], true)
		if f > 1.0 {
			valid = false
		}
		if f > tau {
			strict = false
		}
	}
	return valid, strict
}

// maxProjectedFraction returns the maximum projected edge fraction along
// path, for BestSolUsage/BestSolPLen ranking.
func maxProjectedFraction(table *usageTable, c CandidateInput, path pathengine.Path) float64 {
	currentKeys := make(map[edgeKey]bool)
	for _, k := range pathEdgeKeys(c.CurrentPath) {
		currentKeys[k] = true
	}
	max := 0.0
	for _, k := range pathEdgeKeys(path) {
		if f := projectedFraction(table, k, c, currentKeys[k], true); f > max {
			max = f
		}
	}
	return max
}

func (e *Engine) selectOne(snap *topology.Snapshot, table *usageTable, c CandidateInput, congested map[edgeKey]bool) (Decision, bool) {
	switch e.cfg.Method {
	case CSPFRecomp:
		return e.selectCSPFRecomp(snap, table, c, congested)
	case BestSolUsage, BestSolPLen:
		return e.selectBestSol(table, c)
	default: // FirstSol
		return e.selectFirstSol(table, c)
	}
}

func (e *Engine) selectFirstSol(table *usageTable, c CandidateInput) (Decision, bool) {
	for _, alt := range c.AltPaths {
		_, strict := validity(table, c, alt, e.cfg.Tau)
		if strict {
			return Decision{GID: c.GID, NewPrimary: alt, Kind: Selected}, true
		}
	}
	return Decision{GID: c.GID, Kind: NoCandidate}, false
}

func (e *Engine) selectBestSol(table *usageTable, c CandidateInput) (Decision, bool) {
	var best pathengine.Path
	bestUsage := -1.0
	bestLen := -1
	found := false

	for _, alt := range c.AltPaths {
		_, strict := validity(table, c, alt, e.cfg.Tau)
		if !strict {
			continue
		}
		u := maxProjectedFraction(table, c, alt)
		l := len(alt)
		better := false
		switch {
		case !found:
			better = true
		case e.cfg.Method == BestSolPLen && u == bestUsage:
			better = lessExtremal(l, bestLen, e.cfg.PotPathSortRev)
		case u != bestUsage:
			better = lessExtremal(u, bestUsage, e.cfg.PotPathSortRev)
		}
		if better {
			best, bestUsage, bestLen, found = alt, u, l, true
		}
	}
	if !found {
		return e.admitPartial(table, c)
	}
	return Decision{GID: c.GID, NewPrimary: best, Kind: Selected}, true
}

// lessExtremal reports whether candidate value a should replace current
// best b under the configured direction: rev=false maximises (tightest
// fit wins), rev=true minimises (most headroom wins).
func lessExtremal[T int | float64](a, b T, rev bool) bool {
	if rev {
		return a < b
	}
	return a > b
}

func (e *Engine) selectCSPFRecomp(snap *topology.Snapshot, table *usageTable, c CandidateInput, congested map[edgeKey]bool) (Decision, bool) {
	working := excludeEdges(snap, congested)
	path, ok := pathengine.ShortestPath(working, c.Src, c.Dst, pathengine.UnitWeight, pathengine.TieBreakUsageLenLex)
	if !ok {
		return Decision{GID: c.GID, Kind: NoCandidate}, false
	}

	beforeMax := table.maxFraction()
	_, strict := validity(table, c, path, e.cfg.Tau)
	if strict {
		return Decision{GID: c.GID, NewPrimary: path, Kind: Selected}, true
	}

	if !e.cfg.PartialAccept {
		return Decision{GID: c.GID, Kind: InfeasibleNeedsPartial}, false
	}
	afterMax := maxProjectedFraction(table, c, path)
	if afterMax < beforeMax {
		return Decision{GID: c.GID, NewPrimary: path, Kind: Selected}, true
	}
	return Decision{GID: c.GID, Kind: InfeasibleNeedsPartial}, false
}

// admitPartial implements the shared partial-accept rule for the
// group-table swap methods: among the candidate's valid alt paths whose
// projected max usage is strictly below the pre-change network-wide max,
// admit the extremal one per PotPathSortRev (false: highest projected
// usage, true: lowest); the first in iteration order wins a tie.
func (e *Engine) admitPartial(table *usageTable, c CandidateInput) (Decision, bool) {
	if !e.cfg.PartialAccept || e.cfg.Method == FirstSol {
		return Decision{GID: c.GID, Kind: InfeasibleNeedsPartial}, false
	}
	beforeMax := table.maxFraction()

	var best pathengine.Path
	var bestAfter float64
	found := false
	for _, alt := range c.AltPaths {
		valid, _ := validity(table, c, alt, e.cfg.Tau)
		if !valid {
			continue
		}
		after := maxProjectedFraction(table, c, alt)
		if after >= beforeMax {
			continue
		}
		if !found || lessExtremal(after, bestAfter, e.cfg.PotPathSortRev) {
			best, bestAfter, found = alt, after, true
		}
	}
	if !found {
		return Decision{GID: c.GID, Kind: InfeasibleNeedsPartial}, false
	}
	return Decision{GID: c.GID, NewPrimary: best, Kind: Selected}, true
}

// excludeEdges returns a snapshot copy with every edge in keys marked
// inactive, so Dijkstra naturally routes around them.
func excludeEdges(snap *topology.Snapshot, keys map[edgeKey]bool) *topology.Snapshot {
	out := &topology.Snapshot{
		Switches: make(map[topology.DPID]topology.SwitchView, len(snap.Switches)),
		Hosts:    snap.Hosts,
		Attach:   snap.Attach,
	}
	for dpid, sw := range snap.Switches {
		ports := make(map[topology.PortNum]topology.PortDesc, len(sw.Ports))
		for pn, pd := range sw.Ports {
			if keys[edgeKey{DPID: dpid, Port: pn}] {
				pd.Active = false
			}
			ports[pn] = pd
		}
		out.Switches[dpid] = topology.SwitchView{DPID: dpid, Ports: ports}
	}
	return out
}
