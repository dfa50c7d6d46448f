package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// Build-time variables set via ldflags
var (
	Version = "dev"
	Commit  = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "configurablestub",
	Short: "Programmable HTTP/HTTPS test double",
	Long: `configurablestub stands in for a real HTTP dependency during tests.

Routes are configured at runtime over /stub, requests to /api/... are
answered from that configuration and recorded for later inspection.
Running without a subcommand is the same as "serve".`,
	Version:       Version + " (" + Commit + ")",
	SilenceUsage:  true,
	SilenceErrors: false,
	RunE:          runServe,
}

func init() {
	addServeFlags(rootCmd)
}

// Execute runs the root command and exits non-zero on failure
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
