package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/cnl-graph/internal/core"
	"github.com/valter-silva-au/cnl-graph/internal/storage"
	"github.com/valter-silva-au/cnl-graph/pkg/models"
)

var initCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Initialize a new cnl workspace",
	Long: `Initialize a directory as a cnl workspace: a .cnlconfig file, a graphs/
directory and a .gitignore for local state.

Safe to run on existing workspaces -- files and directories that already
exist are skipped and not overwritten. With --graph, a first graph using
the default schema is created as well.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if WorkspaceInit == nil {
			return fmt.Errorf("workspace initializer not initialized")
		}

		basePath := "."
		if len(args) > 0 {
			basePath = args[0]
		}
		absPath, err := filepath.Abs(basePath)
		if err != nil {
			return fmt.Errorf("resolving path: %w", err)
		}

		name, _ := cmd.Flags().GetString("name")
		backend, _ := cmd.Flags().GetString("backend")
		remote, _ := cmd.Flags().GetString("remote")
		graphID, _ := cmd.Flags().GetString("graph")

		result, err := WorkspaceInit.Init(core.InitConfig{
			BasePath:  absPath,
			Name:      name,
			Backend:   backend,
			RemoteURL: remote,
		})
		if err != nil {
			return fmt.Errorf("initializing workspace: %w", err)
		}

		out := cmd.OutOrStdout()
		if len(result.Created) > 0 {
			fmt.Fprintln(out, "Created:")
			for _, p := range result.Created {
				rel, _ := filepath.Rel(absPath, p)
				fmt.Fprintf(out, "  %s\n", rel)
			}
		}
		if len(result.Skipped) > 0 {
			fmt.Fprintf(out, "Skipped %d existing path(s).\n", len(result.Skipped))
		}

		if graphID != "" {
			if err := createStarterGraph(absPath, backend, graphID); err != nil {
				return err
			}
			fmt.Fprintf(out, "Created graph %s with the default schema.\n", graphID)
		}

		fmt.Fprintf(out, "\nWorkspace ready at %s\n", absPath)
		return nil
	},
}

// createStarterGraph opens the new workspace's own store, which may differ
// from the one wired at startup when init targets another directory.
func createStarterGraph(basePath, backend, graphID string) error {
	cfg := core.DefaultGlobalConfig()
	if backend != "" {
		cfg.StorageBackend = models.StorageBackend(backend)
	}
	store, err := storage.OpenGraphStore(cfg, basePath)
	if err != nil {
		return fmt.Errorf("opening graph store: %w", err)
	}
	defer store.Close()

	if err := store.CreateGraph(models.GraphRef{ID: graphID}, storage.DefaultSchema()); err != nil {
		return fmt.Errorf("creating graph %s: %w", graphID, err)
	}
	return nil
}

func init() {
	initCmd.Flags().String("name", "", "Workspace name (defaults to the directory name)")
	initCmd.Flags().String("backend", "file", "Storage backend: file or sqlite")
	initCmd.Flags().String("remote", "", "Base URL of another workspace's fragment server")
	initCmd.Flags().String("graph", "", "Also create a graph with this id")
	rootCmd.AddCommand(initCmd)
}
