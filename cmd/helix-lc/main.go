package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	areaID  int
	cid     string
	version = "dev"
)

var rootCmd = &cobra.Command{
	Use:   "helix-lc",
	Short: "Helix local controller",
	Long: `helix-lc runs one instance of a Helix local controller: topology
tracking, fast-failover protection, stats collection, traffic engineering,
and multi-controller leader election for a single area.`,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "./helix.yaml", "path to the local controller config file")
	rootCmd.PersistentFlags().IntVar(&areaID, "area", 0, "area (domain) ID this instance serves")
	rootCmd.PersistentFlags().StringVar(&cid, "cid", "", "this area's controller ID as named in the switch-to-controller map")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
