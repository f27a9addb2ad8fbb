package te

import (
	"sort"
	"time"

	"github.com/helix-sdn/helix/internal/pathengine"
	"github.com/helix-sdn/helix/internal/topology"
)

// Engine runs optimisation passes per Config.
type Engine struct {
	cfg Config
}

// New builds an Engine.
func New(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// usageTable is the engine's working copy of edge usage, updated after
// each candidate decision so later candidates in the same pass see the
// effect (spec §4.E Application).
type usageTable struct {
	cap   map[edgeKey]uint64
	usage map[edgeKey]float64
}

func newUsageTable(snap *topology.Snapshot) *usageTable {
	t := &usageTable{cap: make(map[edgeKey]uint64), usage: make(map[edgeKey]float64)}
	for dpid, sw := range snap.Switches {
		for port, pd := range sw.Ports {
			if !pd.HasPeer() {
				continue
			}
			k := edgeKey{DPID: dpid, Port: port}
			t.cap[k] = pd.CapacityBps
			t.usage[k] = pd.SendRateBps
		}
	}
	return t
}

func (t *usageTable) fraction(k edgeKey) float64 {
	c := t.cap[k]
	if c == 0 {
		return 0
	}
	return t.usage[k] / float64(c)
}

func (t *usageTable) congested(tau float64) map[edgeKey]bool {
	out := make(map[edgeKey]bool)
	for k := range t.cap {
		if t.fraction(k) > tau {
			out[k] = true
		}
	}
	return out
}

func (t *usageTable) maxFraction() float64 {
	max := 0.0
	for k := range t.cap {
		if f := t.fraction(k); f > max {
			max = f
		}
	}
	return max
}

func pathEdgeKeys(p pathengine.Path) []edgeKey {
	if len(p) < 2 {
		return nil
	}
	out := make([]edgeKey, 0, len(p)-1)
	for i := 0; i < len(p)-1; i++ {
		out = append(out, edgeKey{DPID: p[i].Switch, Port: p[i].EgressPort})
	}
	return out
}

func (t *usageTable) apply(old, new pathengine.Path, rate float64) {
	for _, k := range pathEdgeKeys(old) {
		t.usage[k] -= rate
		if t.usage[k] < 0 {
			t.usage[k] = 0
		}
	}
	for _, k := range pathEdgeKeys(new) {
		t.usage[k] += rate
	}
}

// traversesAny reports whether path uses any edge in keys.
func traversesAny(p pathengine.Path, keys map[edgeKey]bool) bool {
	for _, k := range pathEdgeKeys(p) {
		if keys[k] {
			return true
		}
	}
	return false
}

// Run executes one optimisation pass over candidates against snap.
func (e *Engine) Run(snap *topology.Snapshot, candidates []CandidateInput) PassResult {
	start := time.Now()
	table := newUsageTable(snap)
	congestedEdges := table.congested(e.cfg.Tau)

	affected := make([]CandidateInput, 0, len(candidates))
	for _, c := range candidates {
		if traversesAny(c.CurrentPath, congestedEdges) {
			affected = append(affected, c)
		}
	}
	sort.SliceStable(affected, func(i, j int) bool {
		if e.cfg.CandidateSortRev {
			return affected[i].SendRateBps > affected[j].SendRateBps
		}
		return affected[i].SendRateBps < affected[j].SendRateBps
	})

	var decisions []Decision
	for _, c := range affected {
		if !traversesAny(c.CurrentPath, congestedEdges) {
			// An earlier candidate in this pass already relieved every
			// congested edge c was affected by; nothing left to do.
			continue
		}
		d, ok := e.selectOne(snap, table, c, congestedEdges)
		e.observe(d.Kind)
		if !ok {
			continue
		}
		table.apply(c.CurrentPath, d.NewPrimary, c.SendRateBps)
		decisions = append(decisions, d)
		congestedEdges = table.congested(e.cfg.Tau)
	}

	residual := table.maxFraction() > e.cfg.Tau
	if residual {
		e.observe(Residual)
	}

	if e.cfg.Metrics != nil {
		e.cfg.Metrics.TEPassDuration.Observe(time.Since(start).Seconds())
		e.cfg.Metrics.CandidateCount.Set(float64(len(candidates)))
	}

	return PassResult{Decisions: decisions, ResidualCongestion: residual}
}

// observe counts one per-candidate (or pass-level) outcome by ResultKind.
func (e *Engine) observe(kind ResultKind) {
	if e.cfg.Metrics == nil {
		return
	}
	e.cfg.Metrics.TEPassCount.WithLabelValues(kind.String()).Inc()
}
