package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/boltindex/internal/adapters/driven/config/planfile"
	"github.com/custodia-labs/boltindex/internal/adapters/driving/mcp"
)

func newMCPCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "MCP server commands",
		Long:  `Commands for the Model Context Protocol (MCP) server integration.`,
	}

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server",
		Long: `Start the Model Context Protocol server for AI assistant integration.

By default, the server communicates over stdio using JSON-RPC and can be
used with Claude Desktop and other MCP-compatible AI assistants.

Use --port to start an HTTP server instead, which enables:
  - Testing with MCP Inspector web UI
  - Remote access via HTTP

The server exposes the search, execution_status and run_plan tools, and
the boltindex://indexes and boltindex://executions resources.

Examples:
  # Stdio mode (default, for Claude Desktop)
  boltindex mcp serve

  # HTTP mode (for MCP Inspector, remote access)
  boltindex mcp serve --port 8080`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			port, err := cmd.Flags().GetInt("port")
			if err != nil {
				return fmt.Errorf("getting port flag: %w", err)
			}

			svc, err := a.services(cmd.Context())
			if err != nil {
				return err
			}

			server, err := mcp.NewServer(&mcp.Ports{
				Search:    svc.search,
				Engine:    svc.engine,
				Indexes:   svc.indexes,
				ParsePlan: planfile.Parse,
			})
			if err != nil {
				return err
			}

			if port > 0 {
				addr := fmt.Sprintf(":%d", port)
				fmt.Fprintf(cmd.OutOrStdout(), "MCP server listening on http://localhost%s\n", addr)
				return server.RunHTTP(cmd.Context(), addr)
			}
			return server.Run(cmd.Context())
		},
	}
	serve.Flags().IntP("port", "p", 0, "HTTP port (0 = use stdio)")
	cmd.AddCommand(serve)
	return cmd
}
