// Package cluster implements the multi-controller layer (spec §4.G):
// deterministic leader election, epoch bookkeeping, and the bus message
// kinds instances exchange within one area. The bus itself is HTTP+JSON
// (grounded on the announce/heartbeat and GET/PUT-sync pattern used for
// inter-node state exchange elsewhere in the corpus), fleshing out the
// spec's abstract "publish/subscribe channel" into something concretely
// testable.
package cluster

import "fmt"

// Role is an instance's current standing within its area.
type Role int

const (
	RoleSlave Role = iota
	RoleMaster
)

func (r Role) String() string {
	if r == RoleMaster {
		return "master"
	}
	return "slave"
}

// Member identifies one controller instance.
type Member struct {
	AreaID     int
	InstanceID int
}

func (m Member) String() string { return fmt.Sprintf("%d.%d", m.AreaID, m.InstanceID) }

// MessageKind enumerates the bus message kinds (spec §4.G).
type MessageKind int

const (
	Heartbeat MessageKind = iota
	RoleQuery
	RoleAnnounce
	StateSync
	InterAreaReq
	InterAreaResp
)

// Message is one bus message. Epoch is meaningful for Heartbeat and
// RoleAnnounce; Payload carries StateSync/InterAreaReq/Resp bodies as
// opaque JSON, decoded by the handler for that kind.
type Message struct {
	Kind    MessageKind
	From    Member
	Epoch   uint64
	Seq     uint64
	Payload []byte
}
