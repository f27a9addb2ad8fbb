// Package switchio is the narrow interface between the local controller
// and a data-plane switch. The OpenFlow wire encoder/decoder is out of
// scope (spec §1); this package only defines the shape the controller
// programs against and a synchronous in-memory fake used by tests and by
// `helix-lc run` for every switch in its switch map.
package switchio

import (
	"context"
	"fmt"

	"github.com/helix-sdn/helix/internal/topology"
)

// Bucket is one fast-failover group bucket: forward out Egress as long as
// WatchPort is up (spec §3, Group entry).
type Bucket struct {
	Egress    topology.PortNum
	WatchPort topology.PortNum
}

// GroupID is a (switch, gid) qualified group identifier; gid is the
// candidate identifier it was compiled from.
type GroupID uint64

// GroupMod is a group-table add/modify/delete request.
type GroupMod struct {
	GID     GroupID
	Buckets []Bucket
}

// FlowMod is a flow-table add/delete request matching a candidate's host
// pair and directing matched packets to a group.
type FlowMod struct {
	GID        GroupID
	SrcHost    topology.HostID
	DstHost    topology.HostID
	SetGIDMeta bool // true only on the candidate's first-hop switch
}

// PortStat is one port's raw TX counter sample.
type PortStat struct {
	Port     topology.PortNum
	TXBytes  uint64
	TXErrors uint64
}

// FlowStat is one flow's raw byte counter sample, keyed by the group it
// points at (flows are matched 1:1 with a candidate's group in Helix).
type FlowStat struct {
	GID       GroupID
	ByteCount uint64
}

// Switch is the controller-facing view of one data-plane switch. All
// methods are synchronous and return herr.ErrTransientSwitch-wrapped
// errors on barrier timeout or disconnect so callers can apply the
// retry-then-escalate policy from spec §7.
type Switch interface {
	DPID() topology.DPID

	InstallGroup(ctx context.Context, g GroupMod) error
	ModifyGroup(ctx context.Context, g GroupMod) error
	DeleteGroup(ctx context.Context, gid GroupID) error

	InstallFlow(ctx context.Context, f FlowMod) error
	DeleteFlow(ctx context.Context, gid GroupID) error

	// Barrier blocks until all prior modifications on this switch have
	// been acknowledged by the data plane (spec §6 suspension point 3).
	Barrier(ctx context.Context) error

	PortStats(ctx context.Context) ([]PortStat, error)
	FlowStats(ctx context.Context) ([]FlowStat, error)
}

// ErrNoSuchGroup is returned by ModifyGroup/InstallFlow when the
// referenced group does not exist on the switch.
var ErrNoSuchGroup = fmt.Errorf("switchio: no such group")
