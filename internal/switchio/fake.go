package switchio

import (
	"context"
	"sync"

	"github.com/helix-sdn/helix/internal/topology"
)

// FakeSwitch is a synchronous in-memory Switch used by tests and by
// `helix-lc run`. Its only errors are ErrNoSuchGroup from ModifyGroup and
// InstallFlow, and whatever error was set with InjectError.
type FakeSwitch struct {
	mu sync.Mutex

	dpid   topology.DPID
	groups map[GroupID]GroupMod
	flows  map[GroupID]FlowMod
	stats  []PortStat

	injected error
}

// NewFakeSwitch builds an empty fake for dpid.
func NewFakeSwitch(dpid topology.DPID) *FakeSwitch {
	return &FakeSwitch{
		dpid:   dpid,
		groups: make(map[GroupID]GroupMod),
		flows:  make(map[GroupID]FlowMod),
	}
}

// InjectError makes the next call fail with err, then clears itself.
func (f *FakeSwitch) InjectError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.injected = err
}

func (f *FakeSwitch) takeInjected() error {
	err := f.injected
	f.injected = nil
	return err
}

func (f *FakeSwitch) DPID() topology.DPID { return f.dpid }

func (f *FakeSwitch) InstallGroup(ctx context.Context, g GroupMod) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeInjected(); err != nil {
		return err
	}
	f.groups[g.GID] = g
	return nil
}

func (f *FakeSwitch) ModifyGroup(ctx context.Context, g GroupMod) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeInjected(); err != nil {
		return err
	}
	if _, ok := f.groups[g.GID]; !ok {
		return ErrNoSuchGroup
	}
	f.groups[g.GID] = g
	return nil
}

func (f *FakeSwitch) DeleteGroup(ctx context.Context, gid GroupID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeInjected(); err != nil {
		return err
	}
	delete(f.groups, gid)
	return nil
}

func (f *FakeSwitch) InstallFlow(ctx context.Context, fl FlowMod) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeInjected(); err != nil {
		return err
	}
	if _, ok := f.groups[fl.GID]; !ok {
		return ErrNoSuchGroup
	}
	f.flows[fl.GID] = fl
	return nil
}

func (f *FakeSwitch) DeleteFlow(ctx context.Context, gid GroupID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeInjected(); err != nil {
		return err
	}
	delete(f.flows, gid)
	return nil
}

func (f *FakeSwitch) Barrier(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.takeInjected()
}

func (f *FakeSwitch) PortStats(ctx context.Context) ([]PortStat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeInjected(); err != nil {
		return nil, err
	}
	out := make([]PortStat, len(f.stats))
	copy(out, f.stats)
	return out, nil
}

func (f *FakeSwitch) FlowStats(ctx context.Context) ([]FlowStat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeInjected(); err != nil {
		return nil, err
	}
	out := make([]FlowStat, 0, len(f.flows))
	for gid := range f.flows {
		out = append(out, FlowStat{GID: gid})
	}
	return out, nil
}

// SetPortStats replaces the port-counter samples PortStats will return,
// for test-driven stats-poller scenarios.
func (f *FakeSwitch) SetPortStats(stats []PortStat) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stats = stats
}

// HasGroup reports whether gid is currently installed, for assertions.
func (f *FakeSwitch) HasGroup(gid GroupID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.groups[gid]
	return ok
}

// HasFlow reports whether a flow for gid is currently installed.
func (f *FakeSwitch) HasFlow(gid GroupID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.flows[gid]
	return ok
}

var _ Switch = (*FakeSwitch)(nil)
