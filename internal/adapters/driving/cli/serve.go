package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/memquery/internal/adapters/driving/httpapi"
	"github.com/custodia-labs/memquery/internal/adapters/driving/mcp"
	"github.com/custodia-labs/memquery/internal/logger"
)

var (
	serveHost        string
	servePort        int
	serveMCP         bool
	serveNoConfig    bool
	serveNoScheduler bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the memquery HTTP service",
	Long: `Serve builds the query service from ~/.memquery/config.toml and
MEMQUERY_* environment variables, then serves the HTTP API.

Background tasks probe source health and sweep the cache. Edits to the
config file are picked up without a restart: ranking weights and the
source table are applied live.`,
	Example: `  memquery serve
  memquery serve --port 9000 --mcp
  MEMQUERY_CACHE_BACKEND=redis memquery serve`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "listen host (default from config)")
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "listen port (default from config)")
	serveCmd.Flags().BoolVar(&serveMCP, "mcp", false, "also serve MCP over streamable HTTP at /mcp")
	serveCmd.Flags().BoolVar(&serveNoConfig, "no-config", false, "ignore the config file and use defaults plus environment")
	serveCmd.Flags().BoolVar(&serveNoScheduler, "no-scheduler", false, "disable background health checks and cache sweeps")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	app, err := newApp(ctx, appOptions{ConfigDir: configDir, NoConfig: serveNoConfig})
	if err != nil {
		return err
	}
	defer closeApp(app)

	var opts []httpapi.Option
	if serveMCP {
		mcpServer, err := mcp.NewServer(&mcp.Ports{Query: app.Orchestrator}, version)
		if err != nil {
			return err
		}
		opts = append(opts, httpapi.WithMCPHandler(mcpServer.Handler()))
	}

	server := httpapi.NewServer(app.Orchestrator, httpapi.Config{
		Version: version,
		Cache:   app.Settings.Cache,
	}, opts...)

	host, port := app.Settings.Service.Host, app.Settings.Service.Port
	if serveHost != "" {
		host = serveHost
	}
	if servePort > 0 {
		port = servePort
	}
	addr := net.JoinHostPort(host, strconv.Itoa(port))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Run(ctx, addr)
	})
	if !serveNoScheduler {
		g.Go(func() error {
			if err := app.Scheduler.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}
	g.Go(func() error {
		app.WatchConfig(ctx)
		return nil
	})

	logger.Info("memquery %s serving %d sources on http://%s", version, len(app.Orchestrator.Sources()), addr)
	fmt.Fprintf(cmd.OutOrStdout(), "memquery listening on http://%s\n", addr)
	return g.Wait()
}
