// Package stats implements the per-switch polling collector (spec §4.D):
// port send-rate smoothing, per-candidate send-rate from first-hop flow
// counters, counter-reset detection, and a stats-ready event published
// once per polling cycle.
package stats

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/helix-sdn/helix/internal/metrics"
	"github.com/helix-sdn/helix/internal/switchio"
	"github.com/helix-sdn/helix/internal/topology"
	"github.com/helix-sdn/helix/pkg/reporting"
)

// SmoothingFactor is the exponential-smoothing factor applied to the raw
// send-rate sample: rate = factor*raw + (1-factor)*prevRate.
const SmoothingFactor = 0.5

// Event is published once per completed polling cycle.
type Event struct {
	At             time.Time
	CandidateRates map[switchio.GroupID]float64
}

type portSample struct {
	bytes uint64
	at    time.Time
}

// Collector polls a fixed set of switches at interval T and feeds
// smoothed port usage back into the topology graph.
type Collector struct {
	interval            time.Duration
	graph               *topology.Graph
	switches            map[topology.DPID]switchio.Switch
	log                 *reporting.Logger
	metrics             *metrics.Registry
	congestionThreshold float64

	mu            sync.Mutex
	prevPort      map[topology.DPID]map[topology.PortNum]portSample
	prevFlow      map[switchio.GroupID]portSample
	candidateRate map[switchio.GroupID]float64
	smoothedPort  map[topology.DPID]map[topology.PortNum]float64

	ready chan Event
}

// Config bounds interval T to [0.5s, 600s] per spec §6. Metrics and
// CongestionThreshold are optional: a nil Metrics skips publication
// entirely (e.g. in unit tests).
type Config struct {
	Interval            time.Duration
	Metrics             *metrics.Registry
	CongestionThreshold float64
}

// New builds a Collector. Interval is clamped into spec §4.D's bounds.
func New(cfg Config, graph *topology.Graph, switches map[topology.DPID]switchio.Switch, log *reporting.Logger) *Collector {
	interval := cfg.Interval
	if interval < 500*time.Millisecond {
		interval = 500 * time.Millisecond
	}
	if interval > 600*time.Second {
		interval = 600 * time.Second
	}
	return &Collector{
		interval:            interval,
		graph:               graph,
		switches:            switches,
		log:                 log,
		metrics:             cfg.Metrics,
		congestionThreshold: cfg.CongestionThreshold,
		prevPort:            make(map[topology.DPID]map[topology.PortNum]portSample),
		prevFlow:            make(map[switchio.GroupID]portSample),
		candidateRate:       make(map[switchio.GroupID]float64),
		smoothedPort:        make(map[topology.DPID]map[topology.PortNum]float64),
		ready:               make(chan Event, 1),
	}
}

// Ready returns the stats-ready event channel; components E/F subscribe.
func (c *Collector) Ready() <-chan Event { return c.ready }

// Run polls every switch once per tick until ctx is cancelled or stopCh
// is closed, mirroring the ticker+select loop used throughout Helix's
// background workers.
func (c *Collector) Run(ctx context.Context, stopCh <-chan struct{}) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-ticker.C:
			c.pollOnce(ctx)
		}
	}
}

func (c *Collector) pollOnce(ctx context.Context) {
	now := time.Now()
	candidateRates := make(map[switchio.GroupID]float64)

	for dpid, sw := range c.switches {
		if err := c.pollSwitch(ctx, dpid, sw, now, candidateRates); err != nil {
			c.log.Warn("stats poll failed", "dpid", dpid, "error", err.Error())
		}
	}

	c.mu.Lock()
	for gid, rate := range candidateRates {
		c.candidateRate[gid] = rate
	}
	c.mu.Unlock()

	c.publishMetrics()

	select {
	case c.ready <- Event{At: now, CandidateRates: candidateRates}:
	default: // drop if the previous cycle's event hasn't been consumed yet
	}
}

func (c *Collector) pollSwitch(ctx context.Context, dpid topology.DPID, sw switchio.Switch, now time.Time, candidateRates map[switchio.GroupID]float64) error {
	ports, err := sw.PortStats(ctx)
	if err != nil {
		return fmt.Errorf("port stats: %w", err)
	}
	flows, err := sw.FlowStats(ctx)
	if err != nil {
		return fmt.Errorf("flow stats: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.prevPort[dpid] == nil {
		c.prevPort[dpid] = make(map[topology.PortNum]portSample)
	}
	if c.smoothedPort[dpid] == nil {
		c.smoothedPort[dpid] = make(map[topology.PortNum]float64)
	}

	for _, ps := range ports {
		prev, ok := c.prevPort[dpid][ps.Port]
		c.prevPort[dpid][ps.Port] = portSample{bytes: ps.TXBytes, at: now}
		if !ok {
			continue // first sample for this port; no delta yet
		}
		if ps.TXBytes < prev.bytes {
			continue // counter reset: drop this sample (spec §4.D)
		}
		dt := now.Sub(prev.at).Seconds()
		if dt <= 0 {
			continue
		}
		deltaBytes := ps.TXBytes - prev.bytes
		raw := float64(deltaBytes) * 8 / dt

		smoothed := raw
		if prevSmoothed, ok := c.smoothedPort[dpid][ps.Port]; ok {
			smoothed = SmoothingFactor*raw + (1-SmoothingFactor)*prevSmoothed
		}
		c.smoothedPort[dpid][ps.Port] = smoothed

		if err := c.graph.SetPortUsage(dpid, ps.Port, smoothed); err != nil {
			c.log.Warn("set port usage failed", "dpid", dpid, "port", ps.Port, "error", err.Error())
		}
	}

	for _, fs := range flows {
		prev, ok := c.prevFlow[fs.GID]
		c.prevFlow[fs.GID] = portSample{bytes: fs.ByteCount, at: now}
		if !ok {
			continue
		}
		if fs.ByteCount < prev.bytes {
			continue
		}
		dt := now.Sub(prev.at).Seconds()
		if dt <= 0 {
			continue
		}
		raw := float64(fs.ByteCount-prev.bytes) * 8 / dt
		candidateRates[fs.GID] = raw
	}
	return nil
}

// publishMetrics pushes the latest smoothed per-port usage fraction and
// congested-link count to the Prometheus registry, if one is wired.
func (c *Collector) publishMetrics() {
	if c.metrics == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	congested := 0
	for dpid, ports := range c.smoothedPort {
		n, ok := c.graph.Switch(dpid)
		if !ok {
			continue
		}
		for port, usage := range ports {
			pd, ok := n.Ports[port]
			if !ok || pd.CapacityBps == 0 {
				continue
			}
			fraction := usage / float64(pd.CapacityBps)
			c.metrics.LinkUsage.WithLabelValues(fmt.Sprintf("%d", dpid), fmt.Sprintf("%d", port)).Set(fraction)
			if fraction >= c.congestionThreshold {
				congested++
			}
		}
	}
	c.metrics.CongestedLinks.Set(float64(congested))
}

// CandidateRate returns the last-computed send-rate for gid, 0 if unknown.
func (c *Collector) CandidateRate(gid switchio.GroupID) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.candidateRate[gid]
}
