package main

import (
	"github.com/spf13/cobra"

	"github.com/cloudbro-kube-ai/helix-console/pkg/console"
)

func newRoutesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "routes",
		Short: "Print the console route table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Describe never runs resolvers, so no backend is needed
			return console.NewRouter(nil).Describe(cmd.OutOrStdout())
		},
	}
}
