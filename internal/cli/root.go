package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/cnl-graph/internal/integration"
)

var (
	appVersion = "dev"
	appCommit  = "none"
	appDate    = "unknown"
)

// SetVersionInfo sets the version information injected via ldflags.
func SetVersionInfo(version, commit, date string) {
	appVersion = version
	appCommit = commit
	appDate = date
}

var rootCmd = &cobra.Command{
	Use:   "cnl",
	Short: "CNL - typed knowledge graphs in controlled natural language",
	Long: `cnl manages knowledge graphs written in CNL, a line-oriented controlled
natural language where "# Name (id: x) [Type]" headers start node blocks,
"<relation> Target" lines link nodes and "has attribute: value" lines
record facts.

It provides commands for highlighting and completing CNL text against a
per-graph schema, extracting node blocks, and importing a node's context
from another graph with a line-by-line merge.`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "cnl %s\ncommit:   %s\nbuilt:    %s\nprotocol: %s\n",
			appVersion, appCommit, appDate, integration.ProtocolVersion)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
