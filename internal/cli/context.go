package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/cnl-graph/internal/core"
	"github.com/valter-silva-au/cnl-graph/pkg/models"
)

var (
	cursorLine   int
	cursorColumn int
	contextJSON  bool
)

var contextCmd = &cobra.Command{
	Use:   "context <graph|file>",
	Short: "Show the completion context at a cursor position",
	Long: `Show which slot the cursor is in (node type, relation, attribute or none)
and the declared type of the nearest header above it. Lines and columns
are zero-based; columns count characters.`,
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeGraphIDs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cursorLine < 0 || cursorColumn < 0 {
			return fmt.Errorf("--line and --col must not be negative")
		}
		text, _, err := loadDocument(args[0])
		if err != nil {
			return err
		}

		view := core.ResolveContext(text, models.Position{Line: cursorLine, Column: cursorColumn}, maxScanLines()).View()

		out := cmd.OutOrStdout()
		if contextJSON {
			data, err := json.MarshalIndent(view, "", "  ")
			if err != nil {
				return fmt.Errorf("formatting context as JSON: %w", err)
			}
			fmt.Fprintln(out, string(data))
			return nil
		}

		enclosing := view.EnclosingNodeType
		if enclosing == "" {
			enclosing = "(none)"
		}
		fmt.Fprintf(out, "  %-16s %s\n", "Slot:", view.Slot)
		if view.Slot != models.SlotNone {
			fmt.Fprintf(out, "  %-16s %q\n", "Partial:", view.Partial)
		}
		fmt.Fprintf(out, "  %-16s %s\n", "Enclosing type:", enclosing)
		return nil
	},
}

func addCursorFlags(cmd *cobra.Command) {
	cmd.Flags().IntVar(&cursorLine, "line", 0, "Zero-based cursor line")
	cmd.Flags().IntVar(&cursorColumn, "col", 0, "Zero-based cursor column")
}

func init() {
	addCursorFlags(contextCmd)
	contextCmd.Flags().BoolVar(&contextJSON, "json", false, "Output the context as JSON")
	rootCmd.AddCommand(contextCmd)
}
