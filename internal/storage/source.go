package storage

import (
	"context"
	"fmt"

	"github.com/valter-silva-au/cnl-graph/internal/core"
	"github.com/valter-silva-au/cnl-graph/pkg/models"
)

// GraphSource exposes a GraphStore through the provider interfaces the
// engine consumes.
type GraphSource struct {
	store GraphStore
}

// NewGraphSource wraps store.
func NewGraphSource(store GraphStore) *GraphSource {
	return &GraphSource{store: store}
}

var (
	_ core.GraphTextSource = (*GraphSource)(nil)
	_ core.SchemaProvider  = (*GraphSource)(nil)
	_ core.NodeProvider    = (*GraphSource)(nil)
)

// GraphIDs lists graph ids in store order.
func (g *GraphSource) GraphIDs(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	refs, err := g.store.ListGraphs()
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(refs))
	for i, r := range refs {
		ids[i] = r.ID
	}
	return ids, nil
}

// GraphText returns a graph's CNL text.
func (g *GraphSource) GraphText(ctx context.Context, graphID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return g.store.LoadText(graphID)
}

// Schema returns a fresh schema snapshot.
func (g *GraphSource) Schema(graphID string) (*models.Schema, error) {
	return g.store.LoadSchema(graphID)
}

// Nodes derives the node list from the graph's headers.
func (g *GraphSource) Nodes(graphID string) ([]models.Node, error) {
	text, err := g.store.LoadText(graphID)
	if err != nil {
		return nil, fmt.Errorf("listing nodes of %s: %w", graphID, err)
	}
	return core.NodesFromText(text), nil
}

// Sink returns a TextSink that appends to graphID.
func (g *GraphSource) Sink(graphID string) core.TextSink {
	return core.TextSinkFunc(func(ctx context.Context, fragment string) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return g.store.AppendText(graphID, fragment)
	})
}
