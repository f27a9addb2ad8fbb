// Package rootctrl implements the root controller (spec §4.H): the
// inter-area link catalogue and INTER_AREA_REQ path stitching. The root
// holds no switch connections; it is purely advisory over the bus
// (internal/cluster), asking each area's master for a local segment and
// combining the results.
package rootctrl

import (
	"context"
	"fmt"

	"github.com/helix-sdn/helix/internal/topology"
)

// AreaID identifies one administrative area.
type AreaID int

// InterAreaLink is one physical link crossing an area boundary.
type InterAreaLink struct {
	AreaA AreaID
	SwA   topology.DPID
	PortA topology.PortNum

	AreaB AreaID
	SwB   topology.DPID
	PortB topology.PortNum
}

// SegmentRequester asks an area master for the local segment of a
// stitched path: from src_host to the boundary switch (Forward), or
// from the boundary switch to dst_host (Reverse). Implemented over the
// cluster bus by the local controller hosting each area's master.
type SegmentRequester interface {
	LocalSegment(ctx context.Context, area AreaID, host topology.HostID, boundary topology.DPID, boundaryPort topology.PortNum, forward bool) (Segment, error)
}

// Segment is one area master's contribution to a stitched inter-area
// path: its hop count and the maximum edge utilisation it measured.
type Segment struct {
	Hops        int
	MaxUsage    float64
	Unreachable bool
}

// Catalogue owns the inter-area link set and the host→area index.
type Catalogue struct {
	links     []InterAreaLink
	hostArea  map[topology.HostID]AreaID
	requester SegmentRequester
}

// NewCatalogue builds an empty Catalogue backed by requester for
// per-area segment queries.
func NewCatalogue(requester SegmentRequester) *Catalogue {
	return &Catalogue{
		hostArea:  make(map[topology.HostID]AreaID),
		requester: requester,
	}
}

// AddLink registers an inter-area link in the catalogue.
func (c *Catalogue) AddLink(l InterAreaLink) { c.links = append(c.links, l) }

// SetHostArea records which area a host belongs to, from the
// switch-to-controller map (spec §6).
func (c *Catalogue) SetHostArea(h topology.HostID, area AreaID) { c.hostArea[h] = area }

// StitchedPath is the result returned to both area masters (spec §4.H:
// "Returns the stitched path to both area masters, which each install
// their segment via 4.C").
type StitchedPath struct {
	Link          InterAreaLink
	SourceSegment Segment
	DestSegment   Segment
	TotalHops     int
	MaxUsage      float64
}

// Resolve implements INTER_AREA_REQ(src_host, dst_host): determine the
// destination area, ask each eligible inter-area link's two area masters
// for their local segment, and pick the (link, segments) triple
// minimising total hop count, tie-broken by aggregated max utilisation.
func (c *Catalogue) Resolve(ctx context.Context, srcArea AreaID, src, dst topology.HostID) (StitchedPath, error) {
	dstArea, ok := c.hostArea[dst]
	if !ok {
		return StitchedPath{}, fmt.Errorf("rootctrl: destination host %s not in any known area", dst)
	}

	var best StitchedPath
	found := false

	for _, l := range c.eligibleLinks(srcArea, dstArea) {
		swA, portA, swB, portB, areaA, areaB := orient(l, srcArea)

		srcSeg, err := c.requester.LocalSegment(ctx, areaA, src, swA, portA, true)
		if err != nil {
			continue
		}
		dstSeg, err := c.requester.LocalSegment(ctx, areaB, dst, swB, portB, false)
		if err != nil {
			continue
		}
		if srcSeg.Unreachable || dstSeg.Unreachable {
			continue
		}

		cand := StitchedPath{
			Link:          l,
			SourceSegment: srcSeg,
			DestSegment:   dstSeg,
			TotalHops:     srcSeg.Hops + dstSeg.Hops + 1,
			MaxUsage:      maxFloat(srcSeg.MaxUsage, dstSeg.MaxUsage),
		}

		if !found {
			best, found = cand, true
			continue
		}
		if cand.TotalHops < best.TotalHops {
			best = cand
			continue
		}
		if cand.TotalHops == best.TotalHops && cand.MaxUsage < best.MaxUsage {
			best = cand
		}
	}

	if !found {
		return StitchedPath{}, fmt.Errorf("rootctrl: no inter-area path from area %d to host %s", srcArea, dst)
	}
	return best, nil
}

// eligibleLinks returns every catalogued link directly connecting srcArea
// and dstArea, in either orientation.
func (c *Catalogue) eligibleLinks(srcArea, dstArea AreaID) []InterAreaLink {
	var out []InterAreaLink
	for _, l := range c.links {
		if (l.AreaA == srcArea && l.AreaB == dstArea) || (l.AreaA == dstArea && l.AreaB == srcArea) {
			out = append(out, l)
		}
	}
	return out
}

// orient normalises a link so "A" is the source-area side.
func orient(l InterAreaLink, srcArea AreaID) (swA topology.DPID, portA topology.PortNum, swB topology.DPID, portB topology.PortNum, areaA, areaB AreaID) {
	if l.AreaA == srcArea {
		return l.SwA, l.PortA, l.SwB, l.PortB, l.AreaA, l.AreaB
	}
	return l.SwB, l.PortB, l.SwA, l.PortA, l.AreaB, l.AreaA
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
