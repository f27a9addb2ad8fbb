package protection

import (
	"context"
	"testing"

	"github.com/helix-sdn/helix/internal/pathengine"
	"github.com/helix-sdn/helix/internal/switchio"
	"github.com/helix-sdn/helix/internal/topology"
)

func twoHopCandidate() Candidate {
	src := topology.HostID{MAC: "h1", IP: "10.0.0.1"}
	dst := topology.HostID{MAC: "h2", IP: "10.0.0.2"}
	return Candidate{
		GID: GID(src, dst),
		Src: src,
		Dst: dst,
		Primary: pathengine.Path{
			{Switch: 1, IngressPort: 1, EgressPort: 2},
			{Switch: 2, IngressPort: 1, EgressPort: 3},
		},
		Backup: pathengine.Path{
			{Switch: 1, IngressPort: 1, EgressPort: 4},
			{Switch: 3, IngressPort: 1, EgressPort: 2},
			{Switch: 2, IngressPort: 2, EgressPort: 3},
		},
	}
}

func lookupFrom(switches map[topology.DPID]*switchio.FakeSwitch) func(topology.DPID) (switchio.Switch, bool) {
	return func(d topology.DPID) (switchio.Switch, bool) {
		s, ok := switches[d]
		return s, ok
	}
}

func TestGIDIsDeterministic(t *testing.T) {
	src := topology.HostID{MAC: "h1", IP: "10.0.0.1"}
	dst := topology.HostID{MAC: "h2", IP: "10.0.0.2"}
	if GID(src, dst) != GID(src, dst) {
		t.Fatalf("expected GID to be deterministic for the same host pair")
	}
	if GID(src, dst) == GID(dst, src) {
		t.Fatalf("expected GID to be ordered (src,dst) sensitive")
	}
}

func TestInstallOrdersGroupBeforeFlow(t *testing.T) {
	c := twoHopCandidate()
	sw1 := switchio.NewFakeSwitch(1)
	sw2 := switchio.NewFakeSwitch(2)
	sw3 := switchio.NewFakeSwitch(3)
	switches := map[topology.DPID]*switchio.FakeSwitch{1: sw1, 2: sw2, 3: sw3}

	in := NewInstaller(lookupFrom(switches), nil)
	if err := in.Install(context.Background(), c); err != nil {
		t.Fatalf("Install: %v", err)
	}

	for dpid, s := range switches {
		if !s.HasGroup(c.GID) {
			t.Fatalf("expected group installed on switch %d", dpid)
		}
		if !s.HasFlow(c.GID) {
			t.Fatalf("expected flow installed on switch %d", dpid)
		}
	}
}

func TestRevokeDeletesFlowsBeforeGroups(t *testing.T) {
	c := twoHopCandidate()
	sw1 := switchio.NewFakeSwitch(1)
	sw2 := switchio.NewFakeSwitch(2)
	sw3 := switchio.NewFakeSwitch(3)
	switches := map[topology.DPID]*switchio.FakeSwitch{1: sw1, 2: sw2, 3: sw3}

	in := NewInstaller(lookupFrom(switches), nil)
	if err := in.Install(context.Background(), c); err != nil {
		t.Fatalf("Install: %v", err)
	}
	if err := in.Revoke(context.Background(), c); err != nil {
		t.Fatalf("Revoke: %v", err)
	}

	for dpid, s := range switches {
		if s.HasFlow(c.GID) {
			t.Fatalf("expected flow removed on switch %d", dpid)
		}
		if s.HasGroup(c.GID) {
			t.Fatalf("expected group removed on switch %d", dpid)
		}
	}
	if _, ok := in.Installed(c.GID); ok {
		t.Fatalf("expected candidate untracked after revoke")
	}
}

func TestReconcileRemovesSwitchLeavingPath(t *testing.T) {
	c := twoHopCandidate()
	sw1 := switchio.NewFakeSwitch(1)
	sw2 := switchio.NewFakeSwitch(2)
	sw3 := switchio.NewFakeSwitch(3)
	switches := map[topology.DPID]*switchio.FakeSwitch{1: sw1, 2: sw2, 3: sw3}

	in := NewInstaller(lookupFrom(switches), nil)
	if err := in.Install(context.Background(), c); err != nil {
		t.Fatalf("Install: %v", err)
	}

	next := c
	next.Backup = nil // backup dropped; switch 3 leaves the path entirely
	if err := in.Reconcile(context.Background(), next); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}

	if sw3.HasGroup(c.GID) || sw3.HasFlow(c.GID) {
		t.Fatalf("expected switch 3 fully torn down after leaving the path")
	}
	if !sw1.HasGroup(c.GID) || !sw1.HasFlow(c.GID) {
		t.Fatalf("expected switch 1 to retain its rules")
	}
}

func TestInstallFailsOnUnknownSwitch(t *testing.T) {
	c := twoHopCandidate()
	switches := map[topology.DPID]*switchio.FakeSwitch{1: switchio.NewFakeSwitch(1)}
	in := NewInstaller(lookupFrom(switches), nil)

	if err := in.Install(context.Background(), c); err == nil {
		t.Fatalf("expected error when switch 2 is unknown")
	}
}
