package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/cnl-graph/internal/core"
)

var (
	extractID   string
	extractName string
)

var extractCmd = &cobra.Command{
	Use:   "extract <graph|file>",
	Short: "Print a node's block",
	Long: `Print the block of the first header matching --id, or --name for headers
without an id marker. The block runs from the header to the line before the
next top-level header.`,
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeGraphIDs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if extractID == "" && extractName == "" {
			return fmt.Errorf("--id or --name is required")
		}
		text, _, err := loadDocument(args[0])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		block := core.ExtractBlock(text, extractID, extractName)
		if block == "" {
			fmt.Fprintf(out, "No block found for node %s.\n", nodeLabel(extractID, extractName))
			return nil
		}
		fmt.Fprintln(out, block)
		return nil
	},
}

func nodeLabel(id, name string) string {
	switch {
	case id != "" && name != "":
		return fmt.Sprintf("%s (%s)", id, name)
	case id != "":
		return id
	default:
		return name
	}
}

func init() {
	extractCmd.Flags().StringVar(&extractID, "id", "", "Node id")
	extractCmd.Flags().StringVar(&extractName, "name", "", "Node display name, for headers without an id")
	rootCmd.AddCommand(extractCmd)
}
