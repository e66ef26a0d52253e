// Gatherd assembles request-time context for coding agents.
//
// The binary bundles the daemon and its tooling as subcommands:
//
//	# Start the HTTP daemon
//	gatherd serve
//
//	# One-shot gather without a daemon
//	gatherd gather "why does the build fail?"
//
//	# Serve the pipeline to an MCP client over stdio
//	gatherd mcp
//
//	# Live dashboard against a running daemon
//	gatherd top
//
// Configuration is read from ~/.config/gatherd/config.yaml and GATHERD_*
// environment variables. See internal/config for details.
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

// configPath is the --config override for the daemon subcommands.
var configPath string

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "gatherd",
	Short: "Context gathering daemon for coding agents",
	Long: `gatherd collects repository state, open issues, session history,
diagnostics, and web results in parallel and assembles them into a single
budgeted context block for a coding agent.`,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path (default ~/.config/gatherd/config.yaml)")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(gatherCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(topCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		printVersion()
	},
}

func printVersion() {
	fmt.Printf("gatherd by Fyrsmith Labs\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}
