package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/cnl-graph/internal/storage"
	"github.com/valter-silva-au/cnl-graph/pkg/models"
)

var (
	graphName        string
	graphDescription string
	graphSchemaFile  string
	graphListJSON    bool
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Manage graphs in the workspace",
}

var graphCreateCmd = &cobra.Command{
	Use:   "create <id>",
	Short: "Create an empty graph",
	Long: `Create an empty graph. Ids are lowercase letters, digits, '-' and '_'.

The graph starts with the default schema (Person, Organization, Place,
Event) unless --schema points at a schema YAML file.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if Store == nil {
			return fmt.Errorf("graph store not initialized")
		}

		schema := storage.DefaultSchema()
		if graphSchemaFile != "" {
			data, err := os.ReadFile(graphSchemaFile)
			if err != nil {
				return fmt.Errorf("reading schema file: %w", err)
			}
			schema, err = storage.ParseSchema(data)
			if err != nil {
				return fmt.Errorf("parsing %s: %w", graphSchemaFile, err)
			}
		}

		ref := models.GraphRef{ID: args[0], Name: graphName, Description: graphDescription}
		if err := Store.CreateGraph(ref, schema); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created graph %s\n", args[0])
		return nil
	},
}

var graphListCmd = &cobra.Command{
	Use:   "list",
	Short: "List graphs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Store == nil {
			return fmt.Errorf("graph store not initialized")
		}

		refs, err := Store.ListGraphs()
		if err != nil {
			return fmt.Errorf("listing graphs: %w", err)
		}

		out := cmd.OutOrStdout()
		if graphListJSON {
			if refs == nil {
				refs = []models.GraphRef{}
			}
			data, err := json.MarshalIndent(refs, "", "  ")
			if err != nil {
				return fmt.Errorf("formatting graphs as JSON: %w", err)
			}
			fmt.Fprintln(out, string(data))
			return nil
		}

		if len(refs) == 0 {
			fmt.Fprintln(out, "No graphs found (use 'cnl graph create <id>' to create one).")
			return nil
		}
		fmt.Fprintf(out, "%-20s %-24s %s\n", "ID", "NAME", "UPDATED")
		for _, r := range refs {
			fmt.Fprintf(out, "%-20s %-24s %s\n", r.ID, r.Name, r.UpdatedAt.Local().Format(time.DateTime))
		}
		return nil
	},
}

func init() {
	graphCreateCmd.Flags().StringVar(&graphName, "name", "", "Display name (defaults to the id)")
	graphCreateCmd.Flags().StringVar(&graphDescription, "description", "", "Short description")
	graphCreateCmd.Flags().StringVar(&graphSchemaFile, "schema", "", "Schema YAML file to start from")
	graphListCmd.Flags().BoolVar(&graphListJSON, "json", false, "Output graphs as JSON")

	graphCmd.AddCommand(graphCreateCmd, graphListCmd)
	rootCmd.AddCommand(graphCmd)
}
