// Package cli is the memquery command line. Client commands (query,
// analyze, health, stats, cache, store) talk to a running server over
// HTTP; serve and mcp serve build the service in-process.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/memquery/internal/logger"
)

// DefaultServerURL is where client commands look for the server.
const DefaultServerURL = "http://localhost:8505"

// version is set at build time with -ldflags "-X .../cli.version=...".
var version = "dev"

var (
	verbose   bool
	configDir string
	serverURL string
	output    string
)

var rootCmd = &cobra.Command{
	Use:   "memquery",
	Short: "Query every AI memory system through one interface",
	Long: `memquery fans a query out to the configured memory systems (Cognee,
Memento, MemOS, LlamaCloud, Neo4j, Qdrant and a local store), merges and
ranks what they return, and serves the result over HTTP, MCP and this CLI.

Run "memquery serve" to start the service, then query it:

  memquery query "how do we deploy the api"
  memquery query --mode parallel --sources cognee,memento "release notes"
  memquery analyze "why did the deploy fail"`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&configDir, "config", "", "config directory (default ~/.memquery)")
	rootCmd.PersistentFlags().StringVar(&serverURL, "url", DefaultServerURL, "memquery server URL")
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", string(FormatTable), "output format: json, table or markdown")
}

// Execute runs the root command. Interrupts cancel the command context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

// Main runs the CLI and exits non-zero on error.
func Main() {
	if err := Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
