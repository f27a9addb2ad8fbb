package te

import (
	"reflect"
	"testing"

	"github.com/helix-sdn/helix/internal/pathengine"
	"github.com/helix-sdn/helix/internal/switchio"
	"github.com/helix-sdn/helix/internal/topology"
)

func congestedTopology(t *testing.T) *topology.Snapshot {
	t.Helper()
	g := topology.New()
	// Candidate currently routes s1-s2-s3 (congested). An alternate
	// s1-s4-s3 exists with headroom.
	g.AddLink(1, 1, 2, 1, 1_000_000_000)
	g.AddLink(2, 2, 3, 1, 1_000_000_000)
	g.AddLink(1, 2, 4, 1, 1_000_000_000)
	g.AddLink(4, 2, 3, 2, 1_000_000_000)

	g.SetHostPort(1, 9, 1_000_000_000)
	g.SetHostPort(3, 9, 1_000_000_000)
	h1 := topology.HostID{MAC: "h1", IP: "10.0.0.1"}
	h2 := topology.HostID{MAC: "h2", IP: "10.0.0.2"}
	g.AttachHost(h1, 1, 9)
	g.AttachHost(h2, 3, 9)

	if err := g.SetPortUsage(1, 1, 950_000_000); err != nil {
		t.Fatalf("SetPortUsage: %v", err)
	}
	if err := g.SetPortUsage(2, 2, 950_000_000); err != nil {
		t.Fatalf("SetPortUsage: %v", err)
	}
	return g.Snapshot()
}

func testCandidate() CandidateInput {
	h1 := topology.HostID{MAC: "h1", IP: "10.0.0.1"}
	h2 := topology.HostID{MAC: "h2", IP: "10.0.0.2"}
	current := pathengine.Path{
		{Switch: 1, IngressPort: 9, EgressPort: 1},
		{Switch: 2, IngressPort: 1, EgressPort: 2},
		{Switch: 3, IngressPort: 1, EgressPort: 9},
	}
	alt := pathengine.Path{
		{Switch: 1, IngressPort: 9, EgressPort: 2},
		{Switch: 4, IngressPort: 1, EgressPort: 2},
		{Switch: 3, IngressPort: 2, EgressPort: 9},
	}
	return CandidateInput{
		GID:         1,
		Src:         h1,
		Dst:         h2,
		CurrentPath: current,
		AltPaths:    []pathengine.Path{alt},
		SendRateBps: 500_000_000,
	}
}

func TestFirstSolSelectsStrictlyValidAlt(t *testing.T) {
	snap := congestedTopology(t)
	eng := New(Config{Tau: 0.90, Method: FirstSol, PartialAccept: true, CandidateSortRev: true})

	res := eng.Run(snap, []CandidateInput{testCandidate()})
	if len(res.Decisions) != 1 {
		t.Fatalf("expected 1 decision, got %d", len(res.Decisions))
	}
	d := res.Decisions[0]
	if d.Kind != Selected {
		t.Fatalf("expected Selected, got %v", d.Kind)
	}
	if d.NewPrimary[1].Switch != 4 {
		t.Fatalf("expected reroute via switch 4, got %v", d.NewPrimary.Switches())
	}
}

func TestNoCongestionProducesNoDecisions(t *testing.T) {
	g := topology.New()
	g.AddLink(1, 1, 2, 1, 1_000_000_000)
	snap := g.Snapshot()
	eng := New(DefaultConfig())

	res := eng.Run(snap, nil)
	if len(res.Decisions) != 0 {
		t.Fatalf("expected no decisions with no candidates")
	}
	if res.ResidualCongestion {
		t.Fatalf("expected no residual congestion")
	}
}

func TestCSPFRecompTakesPathVerbatim(t *testing.T) {
	snap := congestedTopology(t)
	eng := New(Config{Tau: 0.90, Method: CSPFRecomp, PartialAccept: true})

	res := eng.Run(snap, []CandidateInput{testCandidate()})
	if len(res.Decisions) != 1 {
		t.Fatalf("expected 1 decision, got %d", len(res.Decisions))
	}
	if res.Decisions[0].NewPrimary[1].Switch != 4 {
		t.Fatalf("expected CSPF reroute via switch 4, got %v", res.Decisions[0].NewPrimary.Switches())
	}
}

func TestFirstSolNeverAdmitsPartial(t *testing.T) {
	snap := congestedTopology(t)
	// Make the only alternate also congestion-violating so nothing is
	// strictly valid.
	cand := testCandidate()
	cand.SendRateBps = 950_000_000 // alt stays within capacity but exceeds tau
	eng := New(Config{Tau: 0.90, Method: FirstSol, PartialAccept: true})

	res := eng.Run(snap, []CandidateInput{cand})
	if len(res.Decisions) != 0 {
		t.Fatalf("expected FirstSol to admit no partial, got %d decisions", len(res.Decisions))
	}
}

// ringCandidates (with ringTopology) mirrors scenario S2 — TEFixResolvesMultiPortsTest: two
// constrained 200 Mbps links A=s1-s2, B=s2-s3 carry three candidates
// (70/80/90 Mbps) on the primary ring, with an uncongested upper ring
// s1-s4-s3 as the alternate for each.
func ringCandidates() []CandidateInput {
	mk := func(gid int, rate float64) CandidateInput {
		current := pathengine.Path{
			{Switch: 1, IngressPort: 9, EgressPort: 1},
			{Switch: 2, IngressPort: 1, EgressPort: 2},
			{Switch: 3, IngressPort: 1, EgressPort: 9},
		}
		alt := pathengine.Path{
			{Switch: 1, IngressPort: 9, EgressPort: 3},
			{Switch: 4, IngressPort: 1, EgressPort: 2},
			{Switch: 3, IngressPort: 2, EgressPort: 9},
		}
		return CandidateInput{
			GID:         switchio.GroupID(gid),
			CurrentPath: current,
			AltPaths:    []pathengine.Path{alt},
			SendRateBps: rate,
		}
	}
	return []CandidateInput{
		mk(1, 70_000_000),
		mk(2, 80_000_000),
		mk(3, 90_000_000),
	}
}

func ringTopology(t *testing.T) *topology.Snapshot {
	t.Helper()
	g := topology.New()
	g.AddLink(1, 1, 2, 1, 200_000_000) // A: s1-s2
	g.AddLink(2, 2, 3, 1, 200_000_000) // B: s2-s3
	g.AddLink(1, 3, 4, 1, 1_000_000_000)
	g.AddLink(4, 2, 3, 2, 1_000_000_000)

	if err := g.SetPortUsage(1, 1, 240_000_000); err != nil {
		t.Fatalf("SetPortUsage: %v", err)
	}
	if err := g.SetPortUsage(2, 2, 240_000_000); err != nil {
		t.Fatalf("SetPortUsage: %v", err)
	}
	return g.Snapshot()
}

func TestScenarioS2MovesOnlyTheHeaviestCandidate(t *testing.T) {
	snap := ringTopology(t)
	eng := New(Config{Tau: 0.90, Method: FirstSol, PartialAccept: true, CandidateSortRev: true})

	res := eng.Run(snap, ringCandidates())
	if len(res.Decisions) != 1 {
		t.Fatalf("expected exactly one candidate moved, got %d", len(res.Decisions))
	}
	if res.Decisions[0].GID != 3 {
		t.Fatalf("expected the 90 Mbps candidate (gid 3) to move, got gid %d", res.Decisions[0].GID)
	}
	if res.ResidualCongestion {
		t.Fatalf("expected B to no longer be congested after moving the heaviest candidate")
	}
}

// partialAcceptTopology mirrors scenario S3: SRC-s1-(s2|s3|s4)-s5-DST with
// s1-s2 (the current, already-saturated leg) cap 80 Mbps, s1-s3-s5 (leg
// via s3) cap 100 Mbps with 15 Mbps of unrelated background traffic, and
// s1-s4-s5 (leg via s4) cap 140 Mbps with 50 Mbps of background traffic.
func partialAcceptTopology(t *testing.T) *topology.Snapshot {
	t.Helper()
	g := topology.New()
	g.AddLink(1, 1, 2, 1, 80_000_000)
	g.AddLink(2, 2, 5, 1, 80_000_000)
	g.AddLink(1, 2, 3, 1, 1_000_000_000)
	g.AddLink(3, 2, 5, 2, 100_000_000)
	g.AddLink(1, 3, 4, 1, 1_000_000_000)
	g.AddLink(4, 2, 5, 3, 140_000_000)

	g.SetHostPort(1, 9, 1_000_000_000)
	g.SetHostPort(5, 9, 1_000_000_000)
	src := topology.HostID{MAC: "src", IP: "10.0.1.1"}
	dst := topology.HostID{MAC: "dst", IP: "10.0.1.2"}
	g.AttachHost(src, 1, 9)
	g.AttachHost(dst, 5, 9)

	for _, u := range []struct {
		dpid topology.DPID
		port topology.PortNum
		bps  float64
	}{
		{1, 1, 80_000_000}, // s1-s2: fully saturated by the candidate itself
		{2, 2, 80_000_000},
		{3, 2, 15_000_000}, // s3-s5: unrelated background load
		{4, 2, 50_000_000}, // s4-s5: unrelated background load
	} {
		if err := g.SetPortUsage(u.dpid, u.port, u.bps); err != nil {
			t.Fatalf("SetPortUsage: %v", err)
		}
	}
	return g.Snapshot()
}

func partialAcceptCandidate() (CandidateInput, pathengine.Path) {
	src := topology.HostID{MAC: "src", IP: "10.0.1.1"}
	dst := topology.HostID{MAC: "dst", IP: "10.0.1.2"}
	current := pathengine.Path{
		{Switch: 1, IngressPort: 9, EgressPort: 1},
		{Switch: 2, IngressPort: 1, EgressPort: 2},
		{Switch: 5, IngressPort: 1, EgressPort: 9},
	}
	legS3 := pathengine.Path{
		{Switch: 1, IngressPort: 9, EgressPort: 2},
		{Switch: 3, IngressPort: 1, EgressPort: 2},
		{Switch: 5, IngressPort: 2, EgressPort: 9},
	}
	legS4 := pathengine.Path{
		{Switch: 1, IngressPort: 9, EgressPort: 3},
		{Switch: 4, IngressPort: 1, EgressPort: 2},
		{Switch: 5, IngressPort: 3, EgressPort: 9},
	}
	return CandidateInput{
		GID:         1,
		Src:         src,
		Dst:         dst,
		CurrentPath: current,
		AltPaths:    []pathengine.Path{legS3, legS4},
		SendRateBps: 80_000_000,
	}, current
}

func TestScenarioS3FirstSolRefusesNonStrictLegs(t *testing.T) {
	snap := partialAcceptTopology(t)
	cand, _ := partialAcceptCandidate()

	for _, partial := range []bool{false, true} {
		eng := New(Config{Tau: 0.90, Method: FirstSol, PartialAccept: partial})
		res := eng.Run(snap, []CandidateInput{cand})
		if len(res.Decisions) != 0 {
			t.Fatalf("FirstSol must never admit the non-strict legs (partial_accept=%v), got %d decisions", partial, len(res.Decisions))
		}
	}
}

func TestScenarioS3BestSolRanksLegsByPotPathSortRev(t *testing.T) {
	snap := partialAcceptTopology(t)
	cand, _ := partialAcceptCandidate()

	tightestFit := New(Config{Tau: 0.90, Method: BestSolUsage, PartialAccept: true, PotPathSortRev: false})
	res := tightestFit.Run(snap, []CandidateInput{cand})
	if len(res.Decisions) != 1 || res.Decisions[0].NewPrimary[1].Switch != 3 {
		t.Fatalf("expected pot_path_sort_rev=false to pick the s3 leg, got %+v", res.Decisions)
	}

	mostHeadroom := New(Config{Tau: 0.90, Method: BestSolUsage, PartialAccept: true, PotPathSortRev: true})
	res = mostHeadroom.Run(snap, []CandidateInput{cand})
	if len(res.Decisions) != 1 || res.Decisions[0].NewPrimary[1].Switch != 4 {
		t.Fatalf("expected pot_path_sort_rev=true to pick the s4 leg, got %+v", res.Decisions)
	}
}

func TestScenarioS3CSPFRecompPicksS3LegRegardlessOfSortOrder(t *testing.T) {
	snap := partialAcceptTopology(t)
	cand, _ := partialAcceptCandidate()

	for _, rev := range []bool{false, true} {
		eng := New(Config{Tau: 0.90, Method: CSPFRecomp, PartialAccept: true, PotPathSortRev: rev})
		res := eng.Run(snap, []CandidateInput{cand})
		if len(res.Decisions) != 1 || res.Decisions[0].NewPrimary[1].Switch != 3 {
			t.Fatalf("expected CSPFRecomp to pick the lower-usage s3 leg regardless of sort order, got %+v", res.Decisions)
		}
	}
}

func TestBestSolUsagePicksTightestFitAmongStrictlyValidAlts(t *testing.T) {
	snap := congestedTopology(t)
	eng := New(Config{Tau: 0.90, Method: BestSolUsage, PartialAccept: true})

	res := eng.Run(snap, []CandidateInput{testCandidate()})
	if len(res.Decisions) != 1 {
		t.Fatalf("expected 1 decision, got %d", len(res.Decisions))
	}
	if res.Decisions[0].Kind != Selected {
		t.Fatalf("expected Selected, got %v", res.Decisions[0].Kind)
	}
	if res.Decisions[0].NewPrimary[1].Switch != 4 {
		t.Fatalf("expected reroute via switch 4, got %v", res.Decisions[0].NewPrimary.Switches())
	}
}

func TestBestSolPLenTieBreaksOnPathLength(t *testing.T) {
	snap := congestedTopology(t)
	cand := testCandidate()
	// A second, longer alt has identical projected usage to the first;
	// BestSolPLen must prefer the shorter one.
	longerAlt := pathengine.Path{
		{Switch: 1, IngressPort: 9, EgressPort: 2},
		{Switch: 4, IngressPort: 1, EgressPort: 3},
		{Switch: 6, IngressPort: 1, EgressPort: 2},
		{Switch: 3, IngressPort: 2, EgressPort: 9},
	}
	cand.AltPaths = append(cand.AltPaths, longerAlt)

	// PotPathSortRev=true: minimise (shorter wins the length tie-break).
	eng := New(Config{Tau: 0.90, Method: BestSolPLen, PartialAccept: true, PotPathSortRev: true})
	res := eng.Run(snap, []CandidateInput{cand})
	if len(res.Decisions) != 1 {
		t.Fatalf("expected 1 decision, got %d", len(res.Decisions))
	}
	if len(res.Decisions[0].NewPrimary) != 3 {
		t.Fatalf("expected BestSolPLen to prefer the 3-hop alt, got %d hops", len(res.Decisions[0].NewPrimary))
	}
}

// TestPropertyCapacityRespectedPostTE exercises spec property #2: after a
// pass that leaves no residual congestion, no edge exceeds capacity, and
// with partial_accept=false none exceeds tau either.
func TestPropertyCapacityRespectedPostTE(t *testing.T) {
	snap := congestedTopology(t)
	cand := testCandidate()
	eng := New(Config{Tau: 0.90, Method: FirstSol, PartialAccept: false, CandidateSortRev: true})

	res := eng.Run(snap, []CandidateInput{cand})
	if res.ResidualCongestion {
		t.Fatalf("expected no residual congestion")
	}

	table := newUsageTable(snap)
	for _, d := range res.Decisions {
		table.apply(cand.CurrentPath, d.NewPrimary, cand.SendRateBps)
	}
	for k, cap := range table.cap {
		if cap == 0 {
			continue
		}
		frac := table.usage[k] / float64(cap)
		if frac > 1.0+1e-9 {
			t.Fatalf("edge %+v exceeds capacity: %f", k, frac)
		}
		if frac > 0.90+1e-9 {
			t.Fatalf("edge %+v exceeds tau under partial_accept=false: %f", k, frac)
		}
	}
}

// TestPropertyNonOscillation exercises spec property #3: two consecutive
// passes over identical inputs and a fixed graph produce identical
// decisions.
func TestPropertyNonOscillation(t *testing.T) {
	snap := congestedTopology(t)
	cand := testCandidate()
	eng := New(Config{Tau: 0.90, Method: FirstSol, PartialAccept: true, CandidateSortRev: true})

	first := eng.Run(snap, []CandidateInput{cand})
	second := eng.Run(snap, []CandidateInput{cand})

	if len(first.Decisions) != len(second.Decisions) {
		t.Fatalf("pass 1 produced %d decisions, pass 2 produced %d", len(first.Decisions), len(second.Decisions))
	}
	for i := range first.Decisions {
		if !reflect.DeepEqual(first.Decisions[i].NewPrimary, second.Decisions[i].NewPrimary) {
			t.Fatalf("decision %d differs between passes: %v vs %v", i, first.Decisions[i].NewPrimary, second.Decisions[i].NewPrimary)
		}
	}
}

// TestPropertyMonotoneImprovementUnderPartialAccept exercises spec
// property #4: when a partial (non-strict) path is accepted, the
// network's maximum edge usage strictly decreases.
func TestPropertyMonotoneImprovementUnderPartialAccept(t *testing.T) {
	snap := partialAcceptTopology(t)
	cand, current := partialAcceptCandidate()

	before := newUsageTable(snap).maxFraction()

	eng := New(Config{Tau: 0.90, Method: CSPFRecomp, PartialAccept: true})
	res := eng.Run(snap, []CandidateInput{cand})
	if len(res.Decisions) != 1 || res.Decisions[0].Kind != Selected {
		t.Fatalf("expected CSPFRecomp to admit a partial solution, got %+v", res)
	}

	after := newUsageTable(snap)
	after.apply(current, res.Decisions[0].NewPrimary, cand.SendRateBps)
	if after.maxFraction() >= before {
		t.Fatalf("expected strict improvement: before=%f after=%f", before, after.maxFraction())
	}
}
