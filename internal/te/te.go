// Package te implements the traffic-engineering optimisation engine
// (spec §4.E): congestion detection, per-candidate path selection by one of four configurable methods, and partial-accept
// admission control to avoid oscillation.
package te

import (
	"time"

	"github.com/helix-sdn/helix/internal/metrics"
	"github.com/helix-sdn/helix/internal/pathengine"
	"github.com/helix-sdn/helix/internal/switchio"
	"github.com/helix-sdn/helix/internal/topology"
)

// Method selects how a replacement path is chosen for a congested
// candidate.
type Method int

const (
	// FirstSol picks the first strictly-valid potential path in
	// iteration order. Never admits a partial.
	FirstSol Method = iota
	// BestSolUsage picks, among strictly-valid paths, the one whose
	// maximum projected edge usage is extremal.
	BestSolUsage
	// BestSolPLen is BestSolUsage with path length as the secondary key.
	BestSolPLen
	// CSPFRecomp reruns Dijkstra with the congested link excluded and
	// takes the result verbatim.
	CSPFRecomp
)

// Config holds the TE engine's tunables (spec §6).
type Config struct {
	// Tau is the congestion threshold: usage/cap > Tau triggers TE.
	Tau float64
	// ConsolidationDelay carries the configured consolidate_time. Engine
	// does not read it: each Run call is one immediate pass, and no
	// batching of near-simultaneous triggers takes place.
	ConsolidationDelay time.Duration
	// Method selects the path-selection strategy.
	Method Method
	// CandidateSortRev: true sorts congested candidates heavy-hitters
	// first (default); false lightest first.
	CandidateSortRev bool
	// PotPathSortRev: for BestSol* methods, false maximises (tightest
	// fit) projected usage, true minimises (most headroom).
	PotPathSortRev bool
	// PartialAccept allows admitting a valid-but-tau-violating path
	// when it strictly reduces network-wide max edge usage.
	PartialAccept bool
	// Metrics is optional; when set, Run observes pass duration and
	// counts and publishes the tracked-candidate gauge.
	Metrics *metrics.Registry
}

// DefaultConfig matches spec §4.E/§6 defaults.
func DefaultConfig() Config {
	return Config{
		Tau:                0.90,
		ConsolidationDelay: time.Second,
		Method:             FirstSol,
		CandidateSortRev:   true,
		PotPathSortRev:     false,
		PartialAccept:      true,
	}
}

// ResultKind is the explicit outcome of selecting a path for one
// candidate, replacing the source's exception-based control flow
// (SPEC_FULL.md's redesign decision).
type ResultKind int

const (
	Selected ResultKind = iota
	NoCandidate
	InfeasibleNeedsPartial
	Residual
)

// String names a ResultKind for metric labels and logging.
func (k ResultKind) String() string {
	switch k {
	case Selected:
		return "selected"
	case NoCandidate:
		return "no_candidate"
	case InfeasibleNeedsPartial:
		return "infeasible_needs_partial"
	case Residual:
		return "residual"
	default:
		return "unknown"
	}
}

// CandidateInput is one congestion-affected candidate as the TE engine
// sees it: its current path, its known alternates (backup plus splice-
// derived paths, for the group-table swap methods), and its measured
// send-rate.
type CandidateInput struct {
	GID         switchio.GroupID
	Src, Dst    topology.HostID
	CurrentPath pathengine.Path
	AltPaths    []pathengine.Path
	SendRateBps float64
}

// Decision is one (gid, new_primary) output tuple (spec §4.E Output).
type Decision struct {
	GID        switchio.GroupID
	NewPrimary pathengine.Path
	Kind       ResultKind
}

// PassResult is the outcome of one optimisation pass.
type PassResult struct {
	Decisions []Decision
	// ResidualCongestion is true when, after processing every congested
	// candidate, at least one congested link remains and no further
	// changes were possible.
	ResidualCongestion bool
}

// edgeKey identifies one directed edge for the working usage table.
type edgeKey struct {
	DPID topology.DPID
	Port topology.PortNum
}
