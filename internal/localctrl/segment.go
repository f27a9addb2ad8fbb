package localctrl

import (
	"fmt"

	"github.com/helix-sdn/helix/internal/pathengine"
	"github.com/helix-sdn/helix/internal/rootctrl"
	"github.com/helix-sdn/helix/internal/topology"
)

// LocalSegment answers a root controller's INTER_AREA_REQ sub-query: the
// hop count and maximum edge utilisation between host and the named
// boundary switch/port within this area, in the direction forward
// indicates (host->boundary if true, boundary->host if false).
//
// This is read-only against a graph snapshot, so it can run off the
// control task: it never touches c.candidates or installed state.
func (c *Controller) LocalSegment(host topology.HostID, boundary topology.DPID, boundaryPort topology.PortNum, forward bool) (rootctrl.Segment, error) {
	snap := c.graph.Snapshot()
	attach, ok := snap.Attach[host]
	if !ok {
		return rootctrl.Segment{Unreachable: true}, nil
	}

	var path pathengine.Path
	var found bool
	if forward {
		path, found = pathengine.SwitchPath(snap, attach.DPID, attach.Port, boundary, boundaryPort, c.cfg.Weight, c.cfg.TieBreak)
	} else {
		path, found = pathengine.SwitchPath(snap, boundary, boundaryPort, attach.DPID, attach.Port, c.cfg.Weight, c.cfg.TieBreak)
	}
	if !found {
		return rootctrl.Segment{Unreachable: true}, nil
	}

	var maxUsage float64
	for _, hop := range path {
		sw, ok := snap.Switches[hop.Switch]
		if !ok {
			continue
		}
		pd, ok := sw.Ports[hop.EgressPort]
		if !ok || pd.CapacityBps == 0 {
			continue
		}
		if u := pd.SendRateBps / float64(pd.CapacityBps); u > maxUsage {
			maxUsage = u
		}
	}
	if len(path) == 0 && attach.DPID != boundary {
		return rootctrl.Segment{}, fmt.Errorf("localctrl: host %s and boundary %d share no hops but are different switches", host, boundary)
	}
	return rootctrl.Segment{Hops: len(path), MaxUsage: maxUsage}, nil
}
