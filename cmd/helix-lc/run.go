package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/helix-sdn/helix/internal/cluster"
	"github.com/helix-sdn/helix/internal/config"
	"github.com/helix-sdn/helix/internal/discovery"
	"github.com/helix-sdn/helix/internal/herr"
	"github.com/helix-sdn/helix/internal/localctrl"
	"github.com/helix-sdn/helix/internal/metrics"
	"github.com/helix-sdn/helix/internal/pathengine"
	"github.com/helix-sdn/helix/internal/protection"
	"github.com/helix-sdn/helix/internal/rootctrl"
	"github.com/helix-sdn/helix/internal/stats"
	"github.com/helix-sdn/helix/internal/switchio"
	"github.com/helix-sdn/helix/internal/te"
	"github.com/helix-sdn/helix/internal/topology"
	"github.com/helix-sdn/helix/pkg/reporting"
	"github.com/helix-sdn/helix/pkg/signals"
)

var (
	flagInstanceID  int
	flagSwitchMap   string
	flagPortDesc    string
	flagPeers       []string
	flagBusAddr     string
	flagMetricsAddr string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run this local controller instance",
	Args:  cobra.NoArgs,
	RunE:  runLocalController,
}

func init() {
	runCmd.Flags().IntVar(&flagInstanceID, "instance", 0, "this instance's ID within the area")
	runCmd.Flags().StringVar(&flagSwitchMap, "switch-map", "", "path to the switch-to-controller map JSON")
	runCmd.Flags().StringVar(&flagPortDesc, "port-desc", "", "path to the port-description CSV override")
	runCmd.Flags().StringArrayVar(&flagPeers, "peer", nil, "bus base URL of a peer instance in this area (repeatable)")
	runCmd.Flags().StringVar(&flagBusAddr, "bus-addr", ":7070", "address to serve the cluster bus on")
	runCmd.Flags().StringVar(&flagMetricsAddr, "metrics-addr", ":9090", "address to serve /metrics on")
}

func runLocalController(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return exitWith(err)
	}
	if err := cfg.Validate(); err != nil {
		return exitWith(err)
	}

	log := reporting.New(reporting.Config{
		Level:  reporting.LevelInfo,
		Format: reporting.FormatText,
		Output: os.Stdout,
	}).WithFields(map[string]interface{}{"area_id": areaID, "instance_id": flagInstanceID})

	portDescPath := flagPortDesc
	if portDescPath == "" {
		portDescPath = cfg.Application.StaticPortDesc
	}
	var portDesc config.PortDesc
	if portDescPath != "" {
		portDesc, err = config.LoadPortDesc(portDescPath)
		if err != nil {
			return exitWith(err)
		}
		log.Info("loaded port-description overrides", "count", len(portDesc))
	}

	graph := topology.New()
	switches := make(map[topology.DPID]switchio.Switch)
	var linkEvents []discovery.Event

	if flagSwitchMap != "" {
		sm, err := config.LoadSwitchMap(flagSwitchMap)
		if err != nil {
			return exitWith(err)
		}
		if err := sm.Validate(); err != nil {
			return exitWith(err)
		}
		for _, dpid := range areaSwitches(sm, cid) {
			graph.EnsureSwitch(dpid)
			switches[dpid] = switchio.NewFakeSwitch(dpid)
		}
		linkEvents = areaLinkEvents(sm, cid)
		for i := range linkEvents {
			ev := &linkEvents[i]
			ev.CapacityBps = portDesc.Lookup(ev.DPID, ev.Port, ev.CapacityBps)
		}
	}

	metricsReg := metrics.New()

	lookup := func(dpid topology.DPID) (switchio.Switch, bool) {
		sw, ok := switches[dpid]
		return sw, ok
	}
	installer := protection.NewInstaller(lookup, metricsReg)

	statsColl := stats.New(stats.Config{
		Interval:            cfg.StatsInterval(),
		Metrics:             metricsReg,
		CongestionThreshold: cfg.TE.UtilisationThreshold,
	}, graph, switches, log)
	teEngine := te.New(cfg.TEEngineConfig(metricsReg))

	strategy, err := cfg.RecoveryStrategy()
	if err != nil {
		return exitWith(err)
	}
	lcCfg := localctrl.Config{
		Strategy: strategy,
		Weight:   pathengine.CSPFWeight(pathengine.DefaultAlpha),
		TieBreak: pathengine.TieBreakUsageLenLex,
	}
	ctrl := localctrl.New(graph, installer, teEngine, statsColl, lcCfg, log)

	self := cluster.Member{AreaID: areaID, InstanceID: flagInstanceID}
	election := cluster.NewElection(self)
	syncHandler := cluster.NewSyncHandler(election)

	mux := http.NewServeMux()
	syncHandler.Routes(mux)
	rootctrl.NewSegmentHandler(ctrl).Routes(mux)
	busServer := &http.Server{Addr: flagBusAddr, Handler: mux}
	go func() {
		if err := busServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("bus server stopped", "error", err.Error())
		}
	}()

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", metricsReg.Handler())
	metricsServer := &http.Server{Addr: flagMetricsAddr, Handler: metricsMux}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("metrics server stopped", "error", err.Error())
		}
	}()

	sigCtrl := signals.New(log)
	sigCtrl.OnSnapshot(func() {
		log.Info("snapshot", "dump", ctrl.Snapshot(cfg.Stats.OutPort))
	})
	// Shutdown stops the bus and metrics servers only; flows and groups
	// installed on the switches are left in place.
	sigCtrl.OnShutdown(func(ctx context.Context) error {
		_ = busServer.Shutdown(ctx)
		return metricsServer.Shutdown(ctx)
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go ctrl.Run(ctx, ctx.Done())
	go statsColl.Run(ctx, ctx.Done())
	go electionLoop(ctx, election, self, flagPeers, log, metricsReg)
	if len(linkEvents) > 0 {
		go func() {
			if err := discovery.Run(ctx, graph, &discovery.Synthetic{Script: linkEvents}); err != nil && ctx.Err() == nil {
				log.Warn("discovery source stopped", "error", err.Error())
			}
		}()
	}

	log.Info("local controller started", "bus_addr", flagBusAddr, "metrics_addr", flagMetricsAddr)
	sigCtrl.Run(ctx)
	return nil
}

// areaSwitches returns every switch DPID owned by the named controller
// entry in the switch-to-controller map.
func areaSwitches(sm *config.SwitchMap, cid string) []topology.DPID {
	desc, ok := sm.Ctrl[cid]
	if !ok {
		return nil
	}
	out := make([]topology.DPID, len(desc.Switches))
	for i, dpid := range desc.Switches {
		out[i] = topology.DPID(dpid)
	}
	return out
}

// areaLinkEvents turns the named controller entry's intra-area link list
// into a LinkUp script for the synthetic discovery source, so the graph
// has edges from startup instead of only isolated switch nodes (a real
// deployment would replace this source with one speaking LLDP).
func areaLinkEvents(sm *config.SwitchMap, cid string) []discovery.Event {
	desc, ok := sm.Ctrl[cid]
	if !ok {
		return nil
	}
	out := make([]discovery.Event, 0, len(desc.Links))
	for _, l := range desc.Links {
		out = append(out, discovery.Event{
			Kind:        discovery.LinkUp,
			DPID:        topology.DPID(l.Sw),
			Port:        topology.PortNum(l.Port),
			PeerDPID:    topology.DPID(l.SwTo),
			PeerPort:    topology.PortNum(l.PortTo),
			CapacityBps: l.CapacityBps,
		})
	}
	return out
}

// electionLoop heartbeats every peer and periodically re-evaluates
// mastership, per spec §4.G's 1s heartbeat / >3s dead window.
func electionLoop(ctx context.Context, election *cluster.Election, self cluster.Member, peers []string, log *reporting.Logger, reg *metrics.Registry) {
	clients := make([]*cluster.Client, 0, len(peers))
	for _, p := range peers {
		clients = append(clients, cluster.NewClient(p))
	}

	ticker := time.NewTicker(cluster.HeartbeatInterval)
	defer ticker.Stop()

	publishRole := func(role cluster.Role) {
		reg.ElectionRole.WithLabelValues("master").Set(0)
		reg.ElectionRole.WithLabelValues("slave").Set(0)
		if role == cluster.RoleMaster {
			reg.ElectionRole.WithLabelValues("master").Set(1)
		} else {
			reg.ElectionRole.WithLabelValues("slave").Set(1)
		}
	}
	publishRole(election.Role())

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			epoch := election.Epoch()
			for _, c := range clients {
				hbCtx, cancel := context.WithTimeout(ctx, cluster.HeartbeatInterval)
				if err := c.SendHeartbeat(hbCtx, self, epoch); err != nil {
					log.Warn("heartbeat failed", "error", err.Error())
				}
				cancel()
			}
			if election.CheckMasterLiveness(time.Now(), election.MasterID()) {
				role, newEpoch := election.Elect(time.Now())
				publishRole(role)
				if role == cluster.RoleMaster {
					log.Info("elected master", "epoch", newEpoch)
					for _, c := range clients {
						annCtx, cancel := context.WithTimeout(ctx, cluster.HeartbeatInterval)
						_ = c.AnnounceRole(annCtx, self, newEpoch)
						cancel()
					}
				}
			}
		}
	}
}

func exitWith(err error) error {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(herr.ExitCode(err))
	return nil
}
