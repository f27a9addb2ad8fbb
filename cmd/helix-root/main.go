package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	version = "dev"
)

var rootCmd = &cobra.Command{
	Use:   "helix-root",
	Short: "Helix root controller",
	Long: `helix-root stitches inter-area paths by querying each area's
local-controller master for a local segment and combining the results
(spec §4.H). It holds no switch connections of its own.`,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "./helix-root.yaml", "path to the root controller config file")
	rootCmd.AddCommand(runCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
