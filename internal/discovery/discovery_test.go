package discovery

import (
	"context"
	"testing"
	"time"

	"github.com/helix-sdn/helix/internal/topology"
)

func TestApplyLinkUpAddsBidirectionalEdge(t *testing.T) {
	g := topology.New()
	ev := Event{Kind: LinkUp, DPID: 1, Port: 1, PeerDPID: 2, PeerPort: 1, CapacityBps: 1_000_000_000}

	if err := Apply(g, ev); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if _, ok := g.EdgeAt(1, 1); !ok {
		t.Fatalf("expected edge 1:1 after LinkUp")
	}
	if _, ok := g.EdgeAt(2, 1); !ok {
		t.Fatalf("expected reverse edge 2:1 after LinkUp")
	}
}

func TestApplyLinkDownUnknownPortErrors(t *testing.T) {
	g := topology.New()
	g.EnsureSwitch(1)
	if err := Apply(g, Event{Kind: LinkDown, DPID: 1, Port: 9}); err == nil {
		t.Fatalf("expected error removing a link on an unknown port")
	}
}

func TestApplyHostDiscoveredAttaches(t *testing.T) {
	g := topology.New()
	g.EnsureSwitch(1)
	g.SetHostPort(1, 3, 1_000_000_000)
	h := topology.HostID{MAC: "aa:bb", IP: "10.0.0.5"}

	if err := Apply(g, Event{Kind: HostDiscovered, Host: h, SwitchID: 1, HostPort: 3}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	att, ok := g.HostAttachment(h)
	if !ok || att.DPID != 1 || att.Port != 3 {
		t.Fatalf("expected host attached at 1:3, got %+v ok=%v", att, ok)
	}
}

func TestRunDrainsSyntheticScript(t *testing.T) {
	g := topology.New()
	src := &Synthetic{Script: []Event{
		{Kind: LinkUp, DPID: 1, Port: 1, PeerDPID: 2, PeerPort: 1, CapacityBps: 1_000_000_000},
	}}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		_ = Run(ctx, g, src)
		close(done)
	}()

	deadline := time.After(time.Second)
	for {
		if _, ok := g.EdgeAt(1, 1); ok {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for synthetic script to apply")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	<-done
}
