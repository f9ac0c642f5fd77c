package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/memquery/internal/adapters/driving/mcp"
	"github.com/custodia-labs/memquery/internal/logger"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server commands",
	Long:  `Commands for the Model Context Protocol (MCP) server integration.`,
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: `Start the Model Context Protocol server for AI assistant integration.

The server builds the query service in-process from the local config, so
no "memquery serve" needs to be running. By default it communicates over
stdio using JSON-RPC.

Use --port to serve streamable HTTP instead, for the MCP Inspector or
remote clients.

Examples:
  # Stdio mode (default, for desktop assistants)
  memquery mcp serve

  # HTTP mode
  memquery mcp serve --port 8506

Assistant configuration:
  {
    "mcpServers": {
      "memquery": {
        "command": "/path/to/memquery",
        "args": ["mcp", "serve"]
      }
    }
  }`,
	RunE: runMCPServe,
}

func init() {
	mcpServeCmd.Flags().IntP("port", "p", 0, "HTTP port (0 = use stdio)")
	mcpServeCmd.Flags().Bool("no-config", false, "ignore the config file and use defaults plus environment")
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}

func runMCPServe(cmd *cobra.Command, _ []string) error {
	port, err := cmd.Flags().GetInt("port")
	if err != nil {
		return fmt.Errorf("getting port flag: %w", err)
	}
	noConfig, err := cmd.Flags().GetBool("no-config")
	if err != nil {
		return fmt.Errorf("getting no-config flag: %w", err)
	}

	ctx := cmd.Context()
	app, err := newApp(ctx, appOptions{ConfigDir: configDir, NoConfig: noConfig})
	if err != nil {
		return err
	}
	defer closeApp(app)

	server, err := mcp.NewServer(&mcp.Ports{Query: app.Orchestrator}, version)
	if err != nil {
		return err
	}

	if port > 0 {
		addr := fmt.Sprintf(":%d", port)
		fmt.Fprintf(cmd.OutOrStdout(), "MCP server listening on http://localhost%s\n", addr)
		return server.RunHTTP(ctx, addr)
	}

	return server.Run(ctx)
}

// closeApp releases the app with a fresh deadline, since the command
// context is usually already cancelled.
func closeApp(app *App) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.Close(ctx); err != nil {
		logger.Warn("shutdown: %v", err)
	}
}
