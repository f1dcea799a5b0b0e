package core

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrFragmentNotFound means the remote graph has no block for the node.
	ErrFragmentNotFound = errors.New("fragment not found")
	// ErrNetwork means the remote graph could not be reached.
	ErrNetwork = errors.New("network error")
)

// FragmentRequest identifies a node in another graph. NodeName is optional
// and only used for headers that carry no id marker.
type FragmentRequest struct {
	GraphID  string
	NodeID   string
	NodeName string
}

// RemoteFragmentFetcher retrieves a node's CNL fragment from another graph.
// Implementations must not retry; failures wrap ErrFragmentNotFound or
// ErrNetwork.
type RemoteFragmentFetcher interface {
	FetchFragment(ctx context.Context, req FragmentRequest) (string, error)
}

// TextSink receives the merged fragment to append to the caller's editable
// CNL buffer. It is called at most once per merge session.
type TextSink interface {
	AppendText(ctx context.Context, fragment string) error
}

// TextSinkFunc adapts a function to TextSink.
type TextSinkFunc func(ctx context.Context, fragment string) error

// AppendText calls f.
func (f TextSinkFunc) AppendText(ctx context.Context, fragment string) error {
	return f(ctx, fragment)
}

// GraphTextSource lists graphs and loads their CNL text. Both calls may
// reach a remote server and must honour ctx.
type GraphTextSource interface {
	GraphIDs(ctx context.Context) ([]string, error)
	GraphText(ctx context.Context, graphID string) (string, error)
}

// RemoteFetchError reports a failed remote fetch. It unwraps to the
// underlying cause, usually ErrFragmentNotFound or ErrNetwork.
type RemoteFetchError struct {
	GraphID string
	NodeID  string
	Err     error
}

func (e *RemoteFetchError) Error() string {
	return fmt.Sprintf("fetching node %s from graph %s: %v", e.NodeID, e.GraphID, e.Err)
}

func (e *RemoteFetchError) Unwrap() error { return e.Err }
