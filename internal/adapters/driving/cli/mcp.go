package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/recall/internal/adapters/driving/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server commands",
	Long:  `Commands for the Model Context Protocol (MCP) server integration.`,
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: `Start the Model Context Protocol server so AI assistants can search,
ask and check for duplicates in your notes.

By default the server speaks JSON-RPC over stdio. Use --port to serve
streamable HTTP instead. Background jobs run while the server is up
unless --no-workers is given.

Examples:
  # Stdio mode (default, for desktop assistants)
  recall mcp serve

  # HTTP mode (for MCP Inspector, remote access)
  recall mcp serve --port 8080

Assistant configuration:
  {
    "mcpServers": {
      "recall": {
        "command": "/path/to/recall",
        "args": ["mcp", "serve"]
      }
    }
  }`,
	RunE: runMCPServe,
}

func init() {
	mcpServeCmd.Flags().IntP("port", "p", 0, "HTTP port (0 = use stdio)")
	mcpServeCmd.Flags().Bool("no-workers", false, "do not run background jobs")
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}

func runMCPServe(cmd *cobra.Command, _ []string) error {
	port, err := cmd.Flags().GetInt("port")
	if err != nil {
		return fmt.Errorf("getting port flag: %w", err)
	}
	noWorkers, err := cmd.Flags().GetBool("no-workers")
	if err != nil {
		return fmt.Errorf("getting no-workers flag: %w", err)
	}

	ports := &mcp.Ports{
		Search:     searchService,
		Answer:     answerService,
		Duplicates: duplicateService,
		Notes:      noteService,
		OwnerID:    ownerID,
	}

	server, err := mcp.NewServer(ports)
	if err != nil {
		return err
	}

	serve := func(ctx context.Context) error {
		if port > 0 {
			addr := fmt.Sprintf(":%d", port)
			fmt.Fprintf(cmd.ErrOrStderr(), "MCP server listening on http://localhost%s\n", addr) //nolint:errcheck // status line
			return server.RunHTTP(ctx, addr)
		}
		return server.Run(ctx)
	}

	if noWorkers || jobOrchestrator == nil {
		return serve(cmd.Context())
	}
	return runBackground(cmd, serve)
}
