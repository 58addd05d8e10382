package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"prism/internal/decide"
	"prism/internal/logging"
	mcpserver "prism/internal/mcp"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server over stdio",
	Long: `Starts an MCP server over stdin/stdout. An agent client connects and
drives runs through the start_run, get_status, submit_response, run_analysis,
and list_runs tools.

The server monitors for parent process death. When the client disconnects or
restarts, the server self-terminates to prevent zombie processes.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	srv := mcpserver.NewServer(cfg, st, decide.NewAuto())

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	mcpserver.WatchParent(ctx, cancel)

	logging.New("mcp").Info("starting prism MCP server over stdio (parent watchdog active)")
	return srv.MCPServer.Run(ctx, &sdkmcp.StdioTransport{})
}
