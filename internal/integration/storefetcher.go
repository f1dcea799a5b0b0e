package integration

import (
	"context"
	"errors"
	"fmt"

	"github.com/valter-silva-au/cnl-graph/internal/core"
	"github.com/valter-silva-au/cnl-graph/internal/storage"
)

// TextLoader loads a graph's CNL text.
type TextLoader interface {
	LoadText(graphID string) (string, error)
}

// StoreFetcher serves "remote" fragments from graphs in the local
// workspace. It is used when no remote fragment server is configured.
type StoreFetcher struct {
	store TextLoader
}

// NewStoreFetcher creates a fetcher over store.
func NewStoreFetcher(store TextLoader) *StoreFetcher {
	return &StoreFetcher{store: store}
}

var _ core.RemoteFragmentFetcher = (*StoreFetcher)(nil)

// FetchFragment extracts the node's block from the other graph. A missing
// graph or block is ErrFragmentNotFound; any other storage failure is
// reported as ErrNetwork since the graph could not be reached.
func (f *StoreFetcher) FetchFragment(ctx context.Context, req core.FragmentRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %v", core.ErrNetwork, err)
	}
	text, err := f.store.LoadText(req.GraphID)
	if err != nil {
		if errors.Is(err, storage.ErrGraphNotFound) {
			return "", fmt.Errorf("%w: graph %s does not exist", core.ErrFragmentNotFound, req.GraphID)
		}
		return "", fmt.Errorf("%w: %v", core.ErrNetwork, err)
	}
	block := core.ExtractBlock(text, req.NodeID, req.NodeName)
	if block == "" {
		return "", fmt.Errorf("%w: node %s in graph %s", core.ErrFragmentNotFound, req.NodeID, req.GraphID)
	}
	return block, nil
}
