package protection

import (
	"context"
	"fmt"

	"github.com/helix-sdn/helix/internal/metrics"
	"github.com/helix-sdn/helix/internal/switchio"
	"github.com/helix-sdn/helix/internal/topology"
)

// Installer compiles Candidate path pairs into group/flow modifications
// and pushes them to switches, honouring the ordering invariants of
// spec §4.C. It tracks installed Candidates so topology-driven recompute
// can diff incrementally instead of reinstalling everything.
type Installer struct {
	switches func(topology.DPID) (switchio.Switch, bool)
	metrics  *metrics.Registry

	installed map[switchio.GroupID]Candidate
}

// NewInstaller builds an Installer that resolves switches via lookup.
// reg is optional; pass nil to skip Prometheus instrumentation (e.g. in
// unit tests).
func NewInstaller(lookup func(topology.DPID) (switchio.Switch, bool), reg *metrics.Registry) *Installer {
	return &Installer{
		switches:  lookup,
		metrics:   reg,
		installed: make(map[switchio.GroupID]Candidate),
	}
}

// Install pushes a brand-new candidate's rules: groups on every on-path
// switch first, then flows, per the install-then-activate invariant.
func (in *Installer) Install(ctx context.Context, c Candidate) error {
	for _, sw := range c.onPathSwitches() {
		if err := in.installGroup(ctx, sw, c); err != nil {
			return err
		}
	}
	for i, sw := range c.onPathSwitches() {
		if err := in.installFlow(ctx, sw, c, i == 0); err != nil {
			return err
		}
	}
	in.installed[c.GID] = c
	return nil
}

// Revoke tears down a candidate's rules: flows on every on-path switch
// first, then groups, per the deactivate-then-uninstall invariant.
func (in *Installer) Revoke(ctx context.Context, c Candidate) error {
	for _, sw := range c.onPathSwitches() {
		s, ok := in.switches(sw)
		if !ok {
			continue
		}
		if err := s.DeleteFlow(ctx, c.GID); err != nil {
			return fmt.Errorf("protection: delete flow on switch %d: %w", sw, err)
		}
	}
	for _, sw := range c.onPathSwitches() {
		s, ok := in.switches(sw)
		if !ok {
			continue
		}
		if err := s.DeleteGroup(ctx, c.GID); err != nil {
			return fmt.Errorf("protection: delete group on switch %d: %w", sw, err)
		}
	}
	delete(in.installed, c.GID)
	return nil
}

// Reconcile replaces a previously-installed candidate's rules with next's,
// recomputing incrementally (spec §4.C): switches leaving the path have
// their flow removed then their group removed; switches joining the path
// get a group installed then a flow; switches staying on the path just
// get their group buckets modified, since the flow still points at the
// same GID.
func (in *Installer) Reconcile(ctx context.Context, next Candidate) error {
	prev, existed := in.installed[next.GID]
	if !existed {
		return in.Install(ctx, next)
	}

	prevSet := switchSet(prev.onPathSwitches())
	nextSet := switchSet(next.onPathSwitches())

	for _, sw := range prev.onPathSwitches() {
		if nextSet[sw] {
			continue
		}
		s, ok := in.switches(sw)
		if !ok {
			continue
		}
		if err := s.DeleteFlow(ctx, prev.GID); err != nil {
			return fmt.Errorf("protection: reconcile delete flow on switch %d: %w", sw, err)
		}
		if err := s.DeleteGroup(ctx, prev.GID); err != nil {
			return fmt.Errorf("protection: reconcile delete group on switch %d: %w", sw, err)
		}
	}

	for i, sw := range next.onPathSwitches() {
		if prevSet[sw] {
			if err := in.modifyGroup(ctx, sw, next); err != nil {
				return err
			}
			continue
		}
		if err := in.installGroup(ctx, sw, next); err != nil {
			return err
		}
		if err := in.installFlow(ctx, sw, next, i == 0); err != nil {
			return err
		}
	}

	in.installed[next.GID] = next
	return nil
}

func (in *Installer) installGroup(ctx context.Context, sw topology.DPID, c Candidate) error {
	s, ok := in.switches(sw)
	if !ok {
		in.observeGroupInstall(false)
		return fmt.Errorf("protection: unknown switch %d", sw)
	}
	mod := switchio.GroupMod{GID: c.GID, Buckets: c.buckets(sw)}
	if err := s.InstallGroup(ctx, mod); err != nil {
		in.observeGroupInstall(false)
		return fmt.Errorf("protection: install group on switch %d: %w", sw, err)
	}
	if err := s.Barrier(ctx); err != nil {
		in.observeGroupInstall(false)
		return err
	}
	in.observeGroupInstall(true)
	return nil
}

func (in *Installer) modifyGroup(ctx context.Context, sw topology.DPID, c Candidate) error {
	s, ok := in.switches(sw)
	if !ok {
		in.observeGroupInstall(false)
		return fmt.Errorf("protection: unknown switch %d", sw)
	}
	mod := switchio.GroupMod{GID: c.GID, Buckets: c.buckets(sw)}
	if err := s.ModifyGroup(ctx, mod); err != nil {
		in.observeGroupInstall(false)
		return fmt.Errorf("protection: modify group on switch %d: %w", sw, err)
	}
	if err := s.Barrier(ctx); err != nil {
		in.observeGroupInstall(false)
		return err
	}
	in.observeGroupInstall(true)
	return nil
}

func (in *Installer) observeGroupInstall(ok bool) {
	if in.metrics == nil {
		return
	}
	if ok {
		in.metrics.GroupInstallOK.Inc()
	} else {
		in.metrics.GroupInstallFail.Inc()
	}
}

func (in *Installer) installFlow(ctx context.Context, sw topology.DPID, c Candidate, firstHop bool) error {
	s, ok := in.switches(sw)
	if !ok {
		return fmt.Errorf("protection: unknown switch %d", sw)
	}
	mod := switchio.FlowMod{GID: c.GID, SrcHost: c.Src, DstHost: c.Dst, SetGIDMeta: firstHop}
	if err := s.InstallFlow(ctx, mod); err != nil {
		return fmt.Errorf("protection: install flow on switch %d: %w", sw, err)
	}
	return s.Barrier(ctx)
}

func switchSet(dpids []topology.DPID) map[topology.DPID]bool {
	out := make(map[topology.DPID]bool, len(dpids))
	for _, d := range dpids {
		out[d] = true
	}
	return out
}

// Installed returns the candidate currently tracked under gid, if any.
func (in *Installer) Installed(gid switchio.GroupID) (Candidate, bool) {
	c, ok := in.installed[gid]
	return c, ok
}
