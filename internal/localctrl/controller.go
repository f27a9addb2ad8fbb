package localctrl

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/helix-sdn/helix/internal/pathengine"
	"github.com/helix-sdn/helix/internal/protection"
	"github.com/helix-sdn/helix/internal/stats"
	"github.com/helix-sdn/helix/internal/switchio"
	"github.com/helix-sdn/helix/internal/te"
	"github.com/helix-sdn/helix/internal/topology"
	"github.com/helix-sdn/helix/pkg/reporting"
)

// RecoveryStrategy selects how a candidate's protection is computed (spec
// §9's RecoveryStrategy variants: a controller holds one of these instead
// of inheriting from a Reactive/Proactive/Alt class chain).
type RecoveryStrategy int

const (
	// Reactive computes only a primary path; no backup or splice is
	// precomputed, so failover falls entirely to recomputeAll's
	// topology-delta-triggered reroute.
	Reactive RecoveryStrategy = iota
	// ProtectionStrict precomputes a disjoint backup and only accepts a
	// splice that keeps the backup's own guarantees intact.
	ProtectionStrict
	// ProtectionLooseSplice precomputes a disjoint backup but accepts a
	// splice that assumes neighbour switches will cooperate.
	ProtectionLooseSplice
)

// Config holds the local controller's tunables (spec §6 [application]
// and the weight/tie-break choice the path engine uses).
type Config struct {
	Strategy RecoveryStrategy
	Weight   pathengine.WeightFunc
	TieBreak pathengine.TieBreak
}

// Controller owns one area's authoritative state: topology, candidates,
// and their installed paths. All mutation happens on a single goroutine
// (Run), matching spec §5's serialised-control-task invariant; callers
// submit work through the exported methods, which enqueue a task rather
// than touching state directly.
type Controller struct {
	graph      *topology.Graph
	installer  *protection.Installer
	te         *te.Engine
	statsColl  *stats.Collector
	log        *reporting.Logger
	cfg        Config

	mu    sync.Mutex
	state State

	candidates map[switchio.GroupID]*protection.Candidate
	rates      map[switchio.GroupID]float64

	tasks      chan func()
	topoEvents chan topology.Event
}

// New builds a Controller and subscribes it to graph's events itself
// (Graph.Subscribe with a 64-event buffer); Run consumes that channel.
func New(graph *topology.Graph, installer *protection.Installer, teEngine *te.Engine, statsColl *stats.Collector, cfg Config, log *reporting.Logger) *Controller {
	return &Controller{
		graph:      graph,
		installer:  installer,
		te:         teEngine,
		statsColl:  statsColl,
		log:        log,
		cfg:        cfg,
		state:      StateInit,
		candidates: make(map[switchio.GroupID]*protection.Candidate),
		rates:      make(map[switchio.GroupID]float64),
		tasks:      make(chan func(), 64),
		topoEvents: graph.Subscribe(64),
	}
}

// State returns the controller's current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Run is the controller's single control task. It processes topology
// events, stats-ready events, and submitted work items one at a time,
// satisfying the single-writer invariant (spec §5).
func (c *Controller) Run(ctx context.Context, stopCh <-chan struct{}) {
	quiescence := time.NewTimer(time.Hour)
	quiescence.Stop()
	defer quiescence.Stop()

	var statsCh <-chan stats.Event
	if c.statsColl != nil {
		statsCh = c.statsColl.Ready()
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return

		case ev := <-c.topoEvents:
			c.handleTopologyEvent(ev)
			quiescence.Reset(c.pollIntervalGuess())

		case <-quiescence.C:
			c.mu.Lock()
			if c.state == StateDiscovering {
				c.state = StateStable
				c.log.Info("local controller stable", "state", c.state.String())
			}
			c.mu.Unlock()

		case e := <-statsCh:
			c.handleStatsReady(e)

		case fn := <-c.tasks:
			fn()
		}
	}
}

// pollIntervalGuess returns the fixed 200ms quiescence window used after
// every topology event. It is the same whether or not a stats collector is
// wired; the collector's poll interval is not consulted.
func (c *Controller) pollIntervalGuess() time.Duration {
	return 200 * time.Millisecond
}

// Submit enqueues fn to run on the control task and returns immediately.
func (c *Controller) Submit(fn func()) { c.tasks <- fn }

func (c *Controller) handleTopologyEvent(ev topology.Event) {
	c.mu.Lock()
	if c.state == StateInit {
		c.state = StateDiscovering
	}
	linkDown := ev.Kind == topology.EventLinkDown
	if linkDown {
		c.state = StateDegraded
	}
	c.mu.Unlock()

	switch ev.Kind {
	case topology.EventLinkDown, topology.EventLinkUp, topology.EventLinkAdded:
		c.recomputeAll()
	case topology.EventInconsistency:
		c.log.Error("topology inconsistency", "dpid", ev.DPID, "port", ev.Port, "detail", ev.Detail)
	}

	c.maybeReturnToStable()
}

func (c *Controller) maybeReturnToStable() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateDegraded {
		c.state = StateStable
	}
}

// AddCandidate declares a new (src,dst) host pair, computes its initial
// primary/backup/splices, and installs them.
func (c *Controller) AddCandidate(src, dst topology.HostID) error {
	cand, err := c.compute(src, dst)
	if err != nil {
		return err
	}
	if err := c.installer.Install(context.Background(), cand); err != nil {
		return err
	}
	c.mu.Lock()
	c.candidates[cand.GID] = &cand
	c.mu.Unlock()
	return nil
}

// RemoveCandidate tears down a previously-added candidate.
func (c *Controller) RemoveCandidate(gid switchio.GroupID) error {
	c.mu.Lock()
	cand, ok := c.candidates[gid]
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("localctrl: unknown candidate %d", gid)
	}
	if err := c.installer.Revoke(context.Background(), *cand); err != nil {
		return err
	}
	c.mu.Lock()
	delete(c.candidates, gid)
	delete(c.rates, gid)
	c.mu.Unlock()
	return nil
}

func (c *Controller) compute(src, dst topology.HostID) (protection.Candidate, error) {
	snap := c.graph.Snapshot()

	if c.cfg.Strategy == Reactive {
		path, ok := pathengine.ShortestPath(snap, src, dst, c.cfg.Weight, c.cfg.TieBreak)
		if !ok {
			return protection.Candidate{}, fmt.Errorf("localctrl: no path for %s -> %s", src, dst)
		}
		return protection.Candidate{
			GID:     protection.GID(src, dst),
			Src:     src,
			Dst:     dst,
			Primary: path,
		}, nil
	}

	res, ok := pathengine.DisjointPair(snap, src, dst, c.cfg.Weight, c.cfg.TieBreak)
	if !ok {
		return protection.Candidate{}, fmt.Errorf("localctrl: no path for %s -> %s", src, dst)
	}
	spliceMode := pathengine.StrictSplice
	if c.cfg.Strategy == ProtectionLooseSplice {
		spliceMode = pathengine.LooseSplice
	}
	splices := pathengine.Splices(snap, res.Primary, res.Backup, spliceMode)
	return protection.Candidate{
		GID:           protection.GID(src, dst),
		Src:           src,
		Dst:           dst,
		Primary:       res.Primary,
		Backup:        res.Backup,
		Splices:       splices,
		BackupPartial: res.Partial,
	}, nil
}

// recomputeAll re-derives every tracked candidate through the path
// engine and reconciles its installed rules (spec §4.F: on topology
// delta, invoke B+C).
func (c *Controller) recomputeAll() {
	c.mu.Lock()
	gids := make([]switchio.GroupID, 0, len(c.candidates))
	hosts := make(map[switchio.GroupID][2]topology.HostID, len(c.candidates))
	for gid, cand := range c.candidates {
		gids = append(gids, gid)
		hosts[gid] = [2]topology.HostID{cand.Src, cand.Dst}
	}
	c.mu.Unlock()

	for _, gid := range gids {
		pair := hosts[gid]
		next, err := c.compute(pair[0], pair[1])
		if err != nil {
			c.log.Warn("candidate has no path after topology change", "gid", gid, "error", err.Error())
			continue
		}
		if err := c.installer.Reconcile(context.Background(), next); err != nil {
			c.log.Error("reconcile failed", "gid", gid, "error", err.Error())
			continue
		}
		c.mu.Lock()
		c.candidates[gid] = &next
		c.mu.Unlock()
	}
}

func (c *Controller) handleStatsReady(e stats.Event) {
	c.mu.Lock()
	for gid, rate := range e.CandidateRates {
		c.rates[gid] = rate
	}
	c.mu.Unlock()

	if c.te == nil {
		return
	}

	snap := c.graph.Snapshot()
	inputs := c.teInputs(snap)
	result := c.te.Run(snap, inputs)
	for _, d := range result.Decisions {
		if d.Kind != te.Selected {
			continue
		}
		c.applyTEDecision(d)
	}
}

func (c *Controller) teInputs(snap *topology.Snapshot) []te.CandidateInput {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]te.CandidateInput, 0, len(c.candidates))
	for gid, cand := range c.candidates {
		var alts []pathengine.Path
		if len(cand.Backup) > 0 {
			alts = append(alts, cand.Backup)
		}
		alts = append(alts, cand.SplicePaths()...)
		out = append(out, te.CandidateInput{
			GID:         gid,
			Src:         cand.Src,
			Dst:         cand.Dst,
			CurrentPath: cand.Primary,
			AltPaths:    alts,
			SendRateBps: c.rates[gid],
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GID < out[j].GID })
	return out
}

func (c *Controller) applyTEDecision(d te.Decision) {
	c.mu.Lock()
	cand, ok := c.candidates[d.GID]
	c.mu.Unlock()
	if !ok {
		return
	}

	next := *cand
	next.Primary = d.NewPrimary
	if err := c.installer.Reconcile(context.Background(), next); err != nil {
		c.log.Error("TE reconcile failed", "gid", d.GID, "error", err.Error())
		return
	}
	c.mu.Lock()
	c.candidates[d.GID] = &next
	c.mu.Unlock()
}

// Snapshot renders a human-readable dump of candidate send-rates (and
// ports, if includePorts) for the SIGUSR1 handler (spec §4.F).
func (c *Controller) Snapshot(includePorts bool) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	var b strings.Builder
	fmt.Fprintf(&b, "state: %s\n", c.state)
	gids := make([]switchio.GroupID, 0, len(c.candidates))
	for gid := range c.candidates {
		gids = append(gids, gid)
	}
	sort.Slice(gids, func(i, j int) bool { return gids[i] < gids[j] })

	for _, gid := range gids {
		cand := c.candidates[gid]
		fmt.Fprintf(&b, "candidate gid=%d %s->%s rate=%.0fbps primary=%v\n",
			gid, cand.Src, cand.Dst, c.rates[gid], cand.Primary.Switches())
	}
	if includePorts {
		for _, dpid := range c.graph.Switches() {
			n, ok := c.graph.Switch(dpid)
			if !ok {
				continue
			}
			for port, pd := range n.Ports {
				fmt.Fprintf(&b, "port dpid=%d port=%d active=%v usage=%.0fbps cap=%dbps\n",
					dpid, port, pd.Active, pd.SendRateBps, pd.CapacityBps)
			}
		}
	}
	return b.String()
}
