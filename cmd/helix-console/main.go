package main

import (
	"os"

	"github.com/spf13/cobra"
)

// Version info (set by ldflags)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "helix-console",
		Short: "Web console for Apache Helix clusters",
		Long: `helix-console serves a browser console over a helix-rest endpoint:
clusters, resources, instances, configs and controller history, with
confirmed cluster operations and an audit trail.`,
		SilenceUsage: true,
		Version:      Version,
	}
	root.SetVersionTemplate(`{{printf "helix-console version %s\n" .Version}}`)

	root.AddCommand(newServeCmd())
	root.AddCommand(newRoutesCmd())
	root.AddCommand(newVersionCmd())
	root.AddCommand(newHashPasswordCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		// Cobra prints the error, we just exit non-zero
		os.Exit(1)
	}
}
