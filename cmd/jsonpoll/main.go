// Package main is the entry point for the jsonpoll CLI.
//
// jsonpoll can be used either as a library (SDK) or as a standalone binary
// driven by flags or a YAML file. This CLI provides the standalone binary.
//
// Usage:
//
//	jsonpoll watch -c config.yaml     # Poll and print one JSON line per tick
//	jsonpoll fetch --url URL          # Fetch and decode once
//	jsonpoll validate -c config.yaml  # Validate configuration
//	jsonpoll version                  # Show version info
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information - set by GoReleaser at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCmd is the base command when called without subcommands.
var rootCmd = &cobra.Command{
	Use:   "jsonpoll",
	Short: "Poll a JSON endpoint over warm HTTP connections",
	Long: `jsonpoll repeatedly fetches a JSON resource over HTTP, reusing pooled
connections between polls, and prints every decoded response.

Quick start:
  jsonpoll watch --url https://api.example.com/ticker --poll-interval 250ms

Example config:
  url: https://api.example.com/ticker
  poll_interval: 250ms
  request_timeout: 1s
  field: data.price
  listen: 9090`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// cobra already printed the error
		os.Exit(1)
	}
}

func main() {
	Execute()
}

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version, commit hash, and build date of this jsonpoll binary.`,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "jsonpoll %s\n", version)
		fmt.Fprintf(out, "  commit: %s\n", commit)
		fmt.Fprintf(out, "  built:  %s\n", date)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
