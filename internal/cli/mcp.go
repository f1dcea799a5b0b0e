package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	cnlmcp "github.com/valter-silva-au/cnl-graph/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server commands",
	Long:  "Commands for running the cnl MCP (Model Context Protocol) server.",
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the cnl MCP server on stdio",
	Long: `Start the cnl MCP server on stdio transport.

The server exposes the CNL engine as MCP tools that AI assistants can call
while editing graphs: tokenize, resolve_context, suggest, extract_block,
find_candidates, merge_node, list_graphs, get_metrics.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Store == nil || LocalSource == nil || Fetcher == nil {
			return fmt.Errorf("graph store not initialized")
		}

		srv := cnlmcp.NewServer(mcpDeps(), appVersion)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		if err := srv.Run(ctx); err != nil {
			return fmt.Errorf("running MCP server: %w", err)
		}

		return nil
	},
}

func mcpDeps() cnlmcp.Deps {
	sources := Candidates
	if sources == nil {
		sources = LocalSource
	}
	schemas := Schemas
	if schemas == nil {
		schemas = LocalSource
	}
	return cnlmcp.Deps{
		Graphs:       Store,
		Sources:      sources,
		Schemas:      schemas,
		Nodes:        LocalSource,
		Fetcher:      Fetcher,
		Sinks:        LocalSource,
		Events:       Events,
		Metrics:      MetricsCalc,
		MaxScanLines: maxScanLines(),
	}
}

func init() {
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}
