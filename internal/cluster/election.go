package cluster

import (
	"sync"
	"time"
)

// HeartbeatInterval is how often a live instance emits a HEARTBEAT
// (spec §4.G).
const HeartbeatInterval = time.Second

// MasterDeadAfter is how long without a HEARTBEAT from the master before
// a slave declares it dead (spec §4.G: three consecutive misses at the
// default 1s interval).
const MasterDeadAfter = 3 * time.Second

// peerState tracks one peer's liveness as observed by this instance.
type peerState struct {
	lastSeen time.Time
	epoch    uint64
}

// Election runs deterministic leader election for one area: the live
// instance with the lowest InstanceID is master; epochs are strictly
// monotone per area.
type Election struct {
	self Member

	mu       sync.Mutex
	role     Role
	epoch    uint64
	peers    map[int]*peerState // keyed by peer InstanceID
	deadline time.Duration
	masterID int // believed-master InstanceID, or noMasterKnown
}

// noMasterKnown is the sentinel masterID before any Elect round or
// RoleAnnounce has told this instance who the master is.
const noMasterKnown = -1

// NewElection starts an instance as a slave with epoch 0; it becomes
// master on the first declaration round if it is the sole/lowest live
// instance.
func NewElection(self Member) *Election {
	return &Election{
		self:     self,
		role:     RoleSlave,
		peers:    make(map[int]*peerState),
		deadline: MasterDeadAfter,
		masterID: noMasterKnown,
	}
}

// MasterID returns the InstanceID this instance currently believes is
// master, or noMasterKnown if no Elect round or RoleAnnounce has
// established one yet.
func (e *Election) MasterID() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.masterID
}

// Role returns the instance's current role.
func (e *Election) Role() Role {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.role
}

// Epoch returns the instance's last-known epoch for its area.
func (e *Election) Epoch() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.epoch
}

// ObserveHeartbeat records a HEARTBEAT from peer, at time now.
func (e *Election) ObserveHeartbeat(peer Member, epoch uint64, now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.peers[peer.InstanceID] = &peerState{lastSeen: now, epoch: epoch}
}

// ObserveRoleAnnounce demotes self if the announced epoch is higher than
// ours, per spec §4.G's master-recovery rule: an old master returning
// sees a higher epoch and demotes itself until the next election.
func (e *Election) ObserveRoleAnnounce(from Member, epoch uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if epoch > e.epoch {
		e.epoch = epoch
		e.masterID = from.InstanceID
		if from.InstanceID != e.self.InstanceID {
			e.role = RoleSlave
		}
	}
}

// CheckMasterLiveness evaluates, at time now, whether the currently
// believed master has gone silent for longer than the dead-after window.
// It returns true if an election round should run (master presumed dead
// or none observed yet and self is eligible).
func (e *Election) CheckMasterLiveness(now time.Time, masterID int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if masterID == e.self.InstanceID {
		return false // we are the master; nothing to detect
	}
	p, ok := e.peers[masterID]
	if !ok {
		return true
	}
	return now.Sub(p.lastSeen) > e.deadline
}

// LiveInstanceIDs returns the InstanceIDs considered live at time now
// (seen within the dead-after window), plus self.
func (e *Election) LiveInstanceIDs(now time.Time) []int {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := []int{e.self.InstanceID}
	for id, p := range e.peers {
		if now.Sub(p.lastSeen) <= e.deadline {
			out = append(out, id)
		}
	}
	return out
}

// Elect runs one election round at time now: the lowest live InstanceID
// becomes master with epoch+1; everyone else becomes/stays slave. It
// returns the new role and, if self won, the epoch to announce.
func (e *Election) Elect(now time.Time) (Role, uint64) {
	live := e.LiveInstanceIDs(now)
	lowest := live[0]
	for _, id := range live[1:] {
		if id < lowest {
			lowest = id
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.masterID = lowest
	if lowest == e.self.InstanceID {
		e.epoch++
		e.role = RoleMaster
	} else {
		e.role = RoleSlave
	}
	return e.role, e.epoch
}
