// Package main implements the insightctl CLI for manual operations against
// the insightd HTTP server.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	// serverURL is the base URL for the insightd HTTP server
	serverURL string
	// jsonOutput prints raw JSON instead of tables
	jsonOutput bool
	// version information
	version = "dev"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "insightctl",
		Short: "CLI for insightd HTTP server operations",
		Long: `insightctl is a command-line interface for the insightd HTTP server.
It lists the action items, decisions and priority messages of a
conversation, scores single messages, and imports message history.`,
		Version:      version,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&serverURL, "server", "http://127.0.0.1:9191", "insightd server URL")
	root.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print raw JSON")

	root.AddCommand(
		newActionsCmd(),
		newDecisionsCmd(),
		newPrioritiesCmd(),
		newPriorityCmd(),
		newInvalidateCmd(),
		newHealthCmd(),
		newImportCmd(),
	)
	return root
}
