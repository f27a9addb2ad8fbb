package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/helix-sdn/helix/internal/config"
	"github.com/helix-sdn/helix/internal/herr"
	"github.com/helix-sdn/helix/internal/rootctrl"
	"github.com/helix-sdn/helix/internal/topology"
	"github.com/helix-sdn/helix/pkg/reporting"
	"github.com/helix-sdn/helix/pkg/signals"
)

var flagSwitchMap string
var flagListenAddr string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the root controller",
	Args:  cobra.NoArgs,
	RunE:  runRootController,
}

func init() {
	runCmd.Flags().StringVar(&flagSwitchMap, "switch-map", "", "path to the switch-to-controller map JSON (for inter-area links)")
	runCmd.Flags().StringVar(&flagListenAddr, "listen", ":7090", "address to serve INTER_AREA_REQ on")
}

// rootConfig is the root controller's own small YAML document: which bus
// base URL serves each area, read alongside the shared switch map. CtrlArea
// ties the switch map's string cid keys to the numeric AreaID each
// cid's instances were started with (the --area flag on helix-lc) — the
// switch-map schema itself has no area-ID field, so this is the one place
// that binding is recorded.
type rootConfig struct {
	AreaAddr map[int]string `yaml:"area_addr"`
	CtrlArea map[string]int `yaml:"ctrl_area"`
}

func runRootController(cmd *cobra.Command, args []string) error {
	log := reporting.New(reporting.Config{Level: reporting.LevelInfo, Format: reporting.FormatText, Output: os.Stdout})

	data, err := os.ReadFile(cfgFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(herr.ExitCode(herr.ErrConfig))
	}
	var rc rootConfig
	if err := yaml.Unmarshal(data, &rc); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(herr.ExitCode(herr.ErrConfig))
	}

	areaAddr := make(map[rootctrl.AreaID]string, len(rc.AreaAddr))
	for area, addr := range rc.AreaAddr {
		areaAddr[rootctrl.AreaID(area)] = addr
	}
	requester := rootctrl.NewHTTPRequester(areaAddr)
	catalogue := rootctrl.NewCatalogue(requester)

	if flagSwitchMap != "" {
		sm, err := config.LoadSwitchMap(flagSwitchMap)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(herr.ExitCode(err))
		}
		if err := loadInterAreaLinks(catalogue, sm, rc.CtrlArea); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(herr.ExitCode(herr.ErrConfig))
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/inter-area/resolve", resolveHandler(catalogue, log))
	server := &http.Server{Addr: flagListenAddr, Handler: mux}

	sigCtrl := signals.New(log)
	sigCtrl.OnShutdown(func(ctx context.Context) error { return server.Shutdown(ctx) })

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("root server stopped", "error", err.Error())
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	log.Info("root controller started", "listen_addr", flagListenAddr)
	sigCtrl.Run(ctx)
	return nil
}

// loadInterAreaLinks walks every ctrl.<cid>.dom entry in the switch map
// and registers each inter-area link, keyed by the real AreaID each cid
// was deployed under (ctrlArea, from this binary's own config — the
// switch-map schema has no area-ID field of its own). A cid missing from
// ctrlArea is a configuration error: its links would otherwise silently
// stitch into the wrong area.
func loadInterAreaLinks(cat *rootctrl.Catalogue, sm *config.SwitchMap, ctrlArea map[string]int) error {
	areaOf := func(cid string) (rootctrl.AreaID, error) {
		a, ok := ctrlArea[cid]
		if !ok {
			return 0, fmt.Errorf("ctrl_area: no area assignment for cid %q: %w", cid, herr.ErrConfig)
		}
		return rootctrl.AreaID(a), nil
	}

	for cid, desc := range sm.Ctrl {
		area, err := areaOf(cid)
		if err != nil {
			return err
		}
		for neighbourCID, links := range desc.Domains {
			neighbourArea, err := areaOf(neighbourCID)
			if err != nil {
				return err
			}
			for _, l := range links {
				cat.AddLink(rootctrl.InterAreaLink{
					AreaA: area,
					SwA:   topology.DPID(l.Sw),
					PortA: topology.PortNum(l.Port),
					AreaB: neighbourArea,
					SwB:   topology.DPID(l.SwTo),
					PortB: topology.PortNum(l.PortTo),
				})
			}
		}

		// The switch map only names hosts by MAC; IP is learned later by
		// discovery. Seeding SetHostArea with an empty IP lets Resolve
		// find the area for a first request by MAC alone when callers
		// pass a bare HostID{MAC: ...}; a real deployment refreshes this
		// from discovery.HostDiscovered events as hosts get full IDs.
		for _, mac := range desc.Hosts {
			cat.SetHostArea(topology.HostID{MAC: mac}, area)
		}
	}
	return nil
}

func resolveHandler(cat *rootctrl.Catalogue, log *reporting.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		srcArea, err := strconv.Atoi(q.Get("src_area"))
		if err != nil {
			http.Error(w, "bad src_area", http.StatusBadRequest)
			return
		}
		src := topology.HostID{MAC: q.Get("src_mac"), IP: q.Get("src_ip")}
		dst := topology.HostID{MAC: q.Get("dst_mac"), IP: q.Get("dst_ip")}

		res, err := cat.Resolve(r.Context(), rootctrl.AreaID(srcArea), src, dst)
		if err != nil {
			log.Warn("inter-area resolve failed", "error", err.Error())
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(res)
	}
}
