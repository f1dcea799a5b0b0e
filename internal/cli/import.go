package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/cnl-graph/internal/core"
	"github.com/valter-silva-au/cnl-graph/pkg/models"
	"go.uber.org/zap"
)

var (
	importNode        string
	importName        string
	importFrom        string
	importTargetLines string
	importSourceLines string
	importYes         bool
)

var importCmd = &cobra.Command{
	Use:   "import <graph>",
	Short: "Import a node's context from another graph",
	Long: `Import a node's context from another graph into <graph>.

The node's block is looked up in every other graph (or on the remote
fragment server when remote.url is configured). With one match the merge
starts directly; with several you choose one, or pass --from.

Both blocks are then shown side by side and you pick the lines to keep.
Confirming appends the selected local lines followed by the selected
remote lines to the end of <graph> in a single write. Cancelling changes
nothing.

Non-interactive use: --target-lines and --source-lines take zero-based
indices such as "1,3-5". --yes without line flags imports every remote
line.`,
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeGraphIDs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Store == nil || LocalSource == nil || Fetcher == nil {
			return fmt.Errorf("graph store not initialized")
		}
		if importNode == "" && importName == "" {
			return fmt.Errorf("--node or --name is required")
		}
		graphID := args[0]
		node := nodeLabel(importNode, importName)
		out := cmd.OutOrStdout()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		local, err := Store.LoadText(graphID)
		if err != nil {
			return fmt.Errorf("loading graph %s: %w", graphID, err)
		}
		// Other graphs may hold the node under its name only.
		name, err := core.LookupNodeName(LocalSource, graphID, importNode, importName)
		if err != nil {
			return err
		}

		if Remote != nil {
			health, err := Remote.CheckServer(ctx)
			if err != nil {
				return fmt.Errorf("checking remote fragment server: %w", err)
			}
			logger().Debug("remote fragment server ready",
				zap.String("version", health.Version),
				zap.String("protocol", health.Protocol),
			)
		}

		remoteID := importFrom
		if remoteID == "" {
			remoteID, err = chooseRemoteGraph(ctx, graphID, node, name)
			if err != nil {
				return err
			}
			if remoteID == "" {
				fmt.Fprintln(out, "Import cancelled; no changes made.")
				return nil
			}
		}

		planner := core.NewMergePlanner(Fetcher, Events)
		session, err := planner.Start(ctx, core.MergeRequest{
			NodeID:        importNode,
			NodeName:      name,
			LocalText:     local,
			RemoteGraphID: remoteID,
		})
		if err != nil {
			if errors.Is(err, core.ErrFragmentNotFound) {
				return fmt.Errorf("node %s has no block in graph %s", node, remoteID)
			}
			if errors.Is(err, core.ErrNetwork) {
				return fmt.Errorf("graph %s is unreachable, try again later: %w", remoteID, err)
			}
			return fmt.Errorf("starting merge: %w", err)
		}

		interactive := importTargetLines == "" && importSourceLines == "" && !importYes
		if interactive {
			final, err := runProgram(newMergeModel(session, graphID))
			if err != nil {
				session.Cancel()
				return fmt.Errorf("running merge picker: %w", err)
			}
			if m, ok := final.(mergeModel); !ok || !m.confirmed {
				session.Cancel()
				fmt.Fprintln(out, "Merge cancelled; no changes made.")
				return nil
			}
		} else if err := applyLineFlags(session); err != nil {
			session.Cancel()
			return err
		}

		fragment, err := session.Confirm(ctx, LocalSource.Sink(graphID))
		if err != nil {
			session.Cancel()
			if errors.Is(err, core.ErrNothingSelected) {
				return fmt.Errorf("no lines selected: pass --target-lines or --source-lines")
			}
			return err
		}

		lines := len(core.SplitBlockLines(fragment))
		logger().Info("merge confirmed",
			zap.String("session_id", session.ID),
			zap.String("graph_id", graphID),
			zap.String("remote_graph_id", remoteID),
			zap.String("node", node),
			zap.Int("lines", lines),
		)
		fmt.Fprintf(out, "Appended %d line(s) from %s to graph %s:\n\n%s\n", lines, remoteID, graphID, fragment)
		return nil
	},
}

// chooseRemoteGraph finds the graphs holding the node and applies the
// selection policy. An empty id means the user cancelled the picker.
func chooseRemoteGraph(ctx context.Context, graphID, node, name string) (string, error) {
	src := Candidates
	if src == nil {
		src = LocalSource
	}
	candidates, err := core.FindCandidateGraphs(ctx, src, graphID, importNode, name)
	if err != nil {
		return "", err
	}
	choice, err := core.SelectRemoteGraph(candidates)
	if err != nil {
		if errors.Is(err, core.ErrNoRemoteGraph) {
			return "", fmt.Errorf("node %s: %w", node, err)
		}
		return "", err
	}
	if !choice.NeedsSelection {
		return choice.GraphID, nil
	}
	if importYes {
		return "", fmt.Errorf("node %s appears in several graphs (%s); choose one with --from",
			node, strings.Join(choice.Candidates, ", "))
	}
	return pickGraph(node, choice.Candidates)
}

// applyLineFlags selects lines from --target-lines and --source-lines.
// --yes alone selects every remote line.
func applyLineFlags(session *core.MergeSession) error {
	if importTargetLines == "" && importSourceLines == "" {
		return session.SelectAll(models.SideSource)
	}
	for _, f := range []struct {
		side  models.MergeSide
		value string
		flag  string
	}{
		{models.SideTarget, importTargetLines, "--target-lines"},
		{models.SideSource, importSourceLines, "--source-lines"},
	} {
		idx, err := parseLineList(f.value)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", f.flag, err)
		}
		for _, i := range idx {
			if err := session.SetSelected(f.side, i, true); err != nil {
				return fmt.Errorf("%s: %w", f.flag, err)
			}
		}
	}
	return nil
}

func init() {
	importCmd.Flags().StringVar(&importNode, "node", "", "Id of the node to import")
	importCmd.Flags().StringVar(&importName, "name", "", "Display name, for headers without an id")
	importCmd.Flags().StringVar(&importFrom, "from", "", "Graph to import from (skips candidate discovery)")
	importCmd.Flags().StringVar(&importTargetLines, "target-lines", "", "Local block lines to keep, e.g. 0,2-3")
	importCmd.Flags().StringVar(&importSourceLines, "source-lines", "", "Remote block lines to import, e.g. 1-4")
	importCmd.Flags().BoolVarP(&importYes, "yes", "y", false, "Do not prompt")
	rootCmd.AddCommand(importCmd)
}
