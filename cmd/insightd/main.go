// Insightd extracts action items, decisions and priority messages from
// conversation history.
//
// It serves the insight engine over HTTP by default, or over MCP stdio
// with the mcp subcommand.
//
// Configuration is read from ~/.config/insightd/config.yaml and INSIGHTD_*
// environment variables. See internal/config for details.
//
// Usage:
//
//	# Start the HTTP server with defaults
//	insightd
//
//	# Serve MCP tools on stdio
//	insightd mcp
//
//	# Configure via environment
//	INSIGHTD_SERVER_HTTP_PORT=9292 INSIGHTD_CACHE_PROVIDER=redis insightd
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

var configPath string

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "insightd",
		Short: "Rule-based insight extraction daemon",
		Long: `insightd scans the recent messages of a conversation and extracts
action items, decisions and priority messages. Results are cached per
conversation and calendar day.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.config/insightd/config.yaml)")

	root.AddCommand(&cobra.Command{
		Use:   "mcp",
		Short: "Serve insight tools over MCP stdio",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMCP(cmd.Context())
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			printVersion(cmd)
		},
	})
	return root
}

func printVersion(cmd *cobra.Command) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "insightd by Fyrsmith Labs\n")
	fmt.Fprintf(out, "Version:    %s\n", version)
	fmt.Fprintf(out, "Commit:     %s\n", gitCommit)
	fmt.Fprintf(out, "Build Date: %s\n", buildDate)
}
