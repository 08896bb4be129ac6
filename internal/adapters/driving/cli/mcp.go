package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/querynest/internal/adapters/driving/mcp"
	"github.com/custodia-labs/querynest/internal/logger"
)

var mcpCmd = &cobra.Command{
	Use:         "mcp",
	Short:       "MCP server commands",
	Long:        `Commands for the Model Context Protocol (MCP) server integration.`,
	Annotations: map[string]string{annotationSession: SessionMCP},
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: `Start the Model Context Protocol server for AI assistant integration.

By default, the server communicates over stdio using JSON-RPC and can be
used with Claude Desktop and other MCP-compatible AI assistants.

Use --port to start an HTTP server instead, which enables:
  - Testing with MCP Inspector web UI
  - Prometheus metrics at /metrics

The MCP server keeps its own active document, separate from the CLI's.

Examples:
  # Stdio mode (default, for Claude Desktop)
  querynest mcp serve

  # HTTP mode (for MCP Inspector, remote access)
  querynest mcp serve --port 8080

Claude Desktop configuration (claude_desktop_config.json):
  {
    "mcpServers": {
      "querynest": {
        "command": "/path/to/querynest",
        "args": ["mcp", "serve"]
      }
    }
  }`,
	RunE: runMCPServe,
}

func init() {
	mcpServeCmd.Flags().IntP("port", "p", 0, "HTTP port (0 = use stdio)")
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}

func runMCPServe(cmd *cobra.Command, _ []string) error {
	port, err := cmd.Flags().GetInt("port")
	if err != nil {
		return fmt.Errorf("getting port flag: %w", err)
	}

	ports := &mcp.Ports{
		Documents: documentService,
		Queries:   queryService,
		Metrics:   metricsHandler,
	}

	server, err := mcp.NewServer(ports)
	if err != nil {
		return err
	}

	if retryScheduler != nil {
		go func() {
			if err := retryScheduler.Start(cmd.Context()); err != nil {
				logger.Warn("Retry scheduler stopped: %v", err)
			}
		}()
		defer func() { _ = retryScheduler.Stop() }()
	}

	if port > 0 {
		addr := fmt.Sprintf(":%d", port)
		fmt.Fprintf(cmd.OutOrStdout(), "MCP server listening on http://localhost%s\n", addr)
		return server.RunHTTP(cmd.Context(), addr)
	}

	return server.Run(cmd.Context())
}
