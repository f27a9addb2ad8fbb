// Package discovery stands in for the LLDP beaconer that the spec places
// out of scope: a Source feeds link and host sightings into the topology
// graph, so the rest of the controller never has to know whether those
// sightings came over the wire or from a test harness.
package discovery

import (
	"context"

	"github.com/helix-sdn/helix/internal/topology"
)

// Kind enumerates the sightings a Source can report.
type Kind int

const (
	LinkUp Kind = iota
	LinkDown
	HostDiscovered
	HostAged
)

// Event is one discovery sighting, applied to the graph by Apply.
type Event struct {
	Kind Kind

	// LinkUp/LinkDown
	DPID, PeerDPID topology.DPID
	Port, PeerPort topology.PortNum
	CapacityBps    uint64

	// HostDiscovered/HostAged
	Host     topology.HostID
	SwitchID topology.DPID
	HostPort topology.PortNum
}

// Source produces a stream of discovery events until ctx is cancelled or
// Run returns. A production Source would speak LLDP/ARP over the switch
// connections; the synthetic Source below exists for tests and demos.
type Source interface {
	Run(ctx context.Context, out chan<- Event) error
}

// Apply folds one discovery event into the graph, translating sightings
// into the Graph's mutation API (spec §4.A).
func Apply(g *topology.Graph, ev Event) error {
	switch ev.Kind {
	case LinkUp:
		g.EnsureSwitch(ev.DPID)
		g.EnsureSwitch(ev.PeerDPID)
		g.AddLink(ev.DPID, ev.Port, ev.PeerDPID, ev.PeerPort, ev.CapacityBps)
		return nil

	case LinkDown:
		return g.RemoveLink(ev.DPID, ev.Port)

	case HostDiscovered:
		g.EnsureHost(ev.Host)
		g.AttachHost(ev.Host, ev.SwitchID, ev.HostPort)
		return nil

	case HostAged:
		g.RemoveHost(ev.Host)
		return nil

	default:
		return nil
	}
}

// Run drains src into the graph until ctx is cancelled or src.Run returns.
// It owns the channel so callers never race on its lifetime.
func Run(ctx context.Context, g *topology.Graph, src Source) error {
	events := make(chan Event, 16)
	errCh := make(chan error, 1)

	go func() { errCh <- src.Run(ctx, events) }()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-events:
			if err := Apply(g, ev); err != nil {
				// A stale or malformed sighting is not fatal to discovery;
				// surfaced sightings keep flowing even if one is dropped.
				continue
			}
		case err := <-errCh:
			return err
		}
	}
}
