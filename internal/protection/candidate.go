// Package protection compiles (primary, backup) path pairs into per-switch
// fast-failover group and flow modifications, and guarantees the ordering
// invariants from spec §4.C: install-then-activate, deactivate-then-
// uninstall, and no stale group ever referenced by a live flow.
package protection

import (
	"fmt"

	"github.com/cespare/xxhash/v2"

	"github.com/helix-sdn/helix/internal/pathengine"
	"github.com/helix-sdn/helix/internal/switchio"
	"github.com/helix-sdn/helix/internal/topology"
)

// GID derives a candidate's gid deterministically from its host pair, so
// every controller in the area computes the same identifier for the same
// (src,dst) without coordination.
func GID(src, dst topology.HostID) switchio.GroupID {
	key := src.String() + ">" + dst.String()
	return switchio.GroupID(xxhash.Sum64String(key))
}

// Candidate is the controller's authoritative forwarding state for one
// host pair (spec §3). Group/flow state on switches is always derivable
// from this; the switch side is a projection, never a source of truth.
type Candidate struct {
	GID     switchio.GroupID
	Src     topology.HostID
	Dst     topology.HostID
	Primary pathengine.Path
	Backup  pathengine.Path

	// Splices maps an on-path switch to an alternate egress that joins
	// the backup without revisiting that switch (spec §4.B).
	Splices map[topology.DPID]topology.PortNum

	// BackupPartial mirrors pathengine.DisjointResult.Partial: true when
	// Backup is only link-disjoint, not node-disjoint, from Primary.
	BackupPartial bool
}

func (c Candidate) String() string {
	return fmt.Sprintf("candidate{gid=%d src=%s dst=%s}", c.GID, c.Src, c.Dst)
}

// buckets compiles the fast-failover bucket list for switch sw's hop in
// this candidate's primary/backup paths, per spec §4.C:
// [primary_port watch primary_port, backup_port watch backup_port, …splice_ports…].
func (c Candidate) buckets(sw topology.DPID) []switchio.Bucket {
	var out []switchio.Bucket

	if hop, ok := hopAt(c.Primary, sw); ok {
		out = append(out, switchio.Bucket{Egress: hop.EgressPort, WatchPort: hop.EgressPort})
	}
	if hop, ok := hopAt(c.Backup, sw); ok {
		out = append(out, switchio.Bucket{Egress: hop.EgressPort, WatchPort: hop.EgressPort})
	}
	if egress, ok := c.Splices[sw]; ok {
		out = append(out, switchio.Bucket{Egress: egress, WatchPort: egress})
	}
	return out
}

// SplicePaths renders each entry of Splices as a full candidate path: the
// primary path up to and including the splicing switch (using its
// spliced egress instead of the primary's), followed by whatever the
// backup path does from that switch onward. It is the "current buckets"
// enumeration spec §4.E's potential-path-set step draws on before falling
// back to recomputing alternatives via the path engine.
func (c Candidate) SplicePaths() []pathengine.Path {
	if len(c.Splices) == 0 {
		return nil
	}
	backupIdx := make(map[topology.DPID]int, len(c.Backup))
	for i, h := range c.Backup {
		backupIdx[h.Switch] = i
	}

	out := make([]pathengine.Path, 0, len(c.Splices))
	for i, h := range c.Primary {
		egress, ok := c.Splices[h.Switch]
		if !ok {
			continue
		}
		spliced := append(pathengine.Path{}, c.Primary[:i]...)
		spliced = append(spliced, pathengine.Hop{Switch: h.Switch, IngressPort: h.IngressPort, EgressPort: egress})
		if bi, ok := backupIdx[h.Switch]; ok {
			spliced = append(spliced, c.Backup[bi+1:]...)
		}
		out = append(out, spliced)
	}
	return out
}

func hopAt(p pathengine.Path, sw topology.DPID) (pathengine.Hop, bool) {
	for _, h := range p {
		if h.Switch == sw {
			return h, true
		}
	}
	return pathengine.Hop{}, false
}

// onPathSwitches returns the union of switches visited by primary and
// backup, in primary-then-backup-extra order, for deterministic
// iteration when compiling per-switch rule sets.
func (c Candidate) onPathSwitches() []topology.DPID {
	seen := make(map[topology.DPID]bool)
	var out []topology.DPID
	for _, h := range c.Primary {
		if !seen[h.Switch] {
			seen[h.Switch] = true
			out = append(out, h.Switch)
		}
	}
	for _, h := range c.Backup {
		if !seen[h.Switch] {
			seen[h.Switch] = true
			out = append(out, h.Switch)
		}
	}
	return out
}
