package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/cnl-graph/internal/core"
	"github.com/valter-silva-au/cnl-graph/pkg/models"
	"go.uber.org/zap"
)

var (
	suggestFile string
	suggestJSON bool
)

var suggestCmd = &cobra.Command{
	Use:   "suggest <graph>",
	Short: "List completions at a cursor position",
	Long: `List the schema-driven completions for the cursor position. The graph's
schema supplies the candidates; the text is the graph itself unless --file
names a draft to complete against instead.

Relations are filtered by the enclosing node type's domain and attributes
by their scope. Outside a slot nothing is suggested.`,
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeGraphIDs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Schemas == nil || Store == nil {
			return fmt.Errorf("graph store not initialized")
		}
		if cursorLine < 0 || cursorColumn < 0 {
			return fmt.Errorf("--line and --col must not be negative")
		}
		graphID := args[0]

		schema, err := Schemas.Schema(graphID)
		if err != nil {
			return fmt.Errorf("loading schema of %s: %w", graphID, err)
		}

		var text string
		if suggestFile != "" {
			data, err := os.ReadFile(suggestFile)
			if err != nil {
				return fmt.Errorf("reading %s: %w", suggestFile, err)
			}
			text = string(data)
		} else if text, err = Store.LoadText(graphID); err != nil {
			return fmt.Errorf("loading graph %s: %w", graphID, err)
		}

		start := time.Now()
		ctx, suggestions := core.SuggestAt(text, models.Position{Line: cursorLine, Column: cursorColumn}, *schema, maxScanLines())
		if Collector != nil {
			Collector.ObserveSuggest(string(ctx.Slot.Kind()), time.Since(start))
		}
		logger().Debug("suggestions resolved",
			zap.String("graph_id", graphID),
			zap.String("slot", string(ctx.Slot.Kind())),
			zap.Int("count", len(suggestions)),
		)

		out := cmd.OutOrStdout()
		if suggestJSON {
			if suggestions == nil {
				suggestions = []models.Suggestion{}
			}
			data, err := json.MarshalIndent(struct {
				Context     models.ContextView  `json:"context"`
				Suggestions []models.Suggestion `json:"suggestions"`
			}{ctx.View(), suggestions}, "", "  ")
			if err != nil {
				return fmt.Errorf("formatting suggestions as JSON: %w", err)
			}
			fmt.Fprintln(out, string(data))
			return nil
		}

		if len(suggestions) == 0 {
			fmt.Fprintf(out, "No suggestions (slot: %s).\n", ctx.Slot.Kind())
			return nil
		}
		for _, s := range suggestions {
			fmt.Fprintf(out, "  %-24s %-10s %s\n", s.Label, s.Category, s.Detail)
		}
		return nil
	},
}

func init() {
	addCursorFlags(suggestCmd)
	suggestCmd.Flags().StringVar(&suggestFile, "file", "", "Draft CNL file to complete against")
	suggestCmd.Flags().BoolVar(&suggestJSON, "json", false, "Output context and suggestions as JSON")
	rootCmd.AddCommand(suggestCmd)
}
