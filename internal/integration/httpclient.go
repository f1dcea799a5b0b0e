package integration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/valter-silva-au/cnl-graph/internal/core"
	"github.com/valter-silva-au/cnl-graph/pkg/models"
	"go.uber.org/zap"
)

// ErrIncompatibleServer means the fragment server speaks another protocol
// major version.
var ErrIncompatibleServer = errors.New("incompatible fragment server")

// maxFragmentBytes bounds a single response body.
const maxFragmentBytes = 8 << 20

// HTTPClient talks to a remote fragment server. It never retries: a failed
// request is reported once and the caller decides what to do.
type HTTPClient struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewHTTPClient creates a client for baseURL with a per-request timeout.
func NewHTTPClient(baseURL string, timeout time.Duration, logger *zap.Logger) *HTTPClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

var (
	_ core.RemoteFragmentFetcher = (*HTTPClient)(nil)
	_ core.GraphTextSource       = (*HTTPClient)(nil)
)

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Protocol string `json:"protocol"`
}

// CheckServer verifies the server is up and speaks a compatible protocol.
func (c *HTTPClient) CheckServer(ctx context.Context) (*HealthResponse, error) {
	var health HealthResponse
	if err := c.getJSON(ctx, "/healthz", &health); err != nil {
		return nil, err
	}
	proto, err := ParseVersion(health.Protocol)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIncompatibleServer, err)
	}
	if !ProtocolVersion.CompatibleWith(proto) {
		return nil, fmt.Errorf("%w: server protocol %s, client %s", ErrIncompatibleServer, proto, ProtocolVersion)
	}
	return &health, nil
}

// FetchFragment retrieves a node block. 404 maps to ErrFragmentNotFound;
// transport failures and other statuses map to ErrNetwork.
func (c *HTTPClient) FetchFragment(ctx context.Context, req core.FragmentRequest) (string, error) {
	p := "/graphs/" + url.PathEscape(req.GraphID) + "/nodes/" + url.PathEscape(req.NodeID) + "/cnl"
	if req.NodeName != "" {
		p += "?" + url.Values{"name": {req.NodeName}}.Encode()
	}
	body, err := c.get(ctx, p)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// ListGraphs returns the server's graphs.
func (c *HTTPClient) ListGraphs(ctx context.Context) ([]models.GraphRef, error) {
	var refs []models.GraphRef
	if err := c.getJSON(ctx, "/graphs", &refs); err != nil {
		return nil, err
	}
	return refs, nil
}

// GraphIDs lists the server's graph ids.
func (c *HTTPClient) GraphIDs(ctx context.Context) ([]string, error) {
	refs, err := c.ListGraphs(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(refs))
	for i, r := range refs {
		ids[i] = r.ID
	}
	return ids, nil
}

// GraphText downloads a graph's full CNL text.
func (c *HTTPClient) GraphText(ctx context.Context, graphID string) (string, error) {
	body, err := c.get(ctx, "/graphs/"+url.PathEscape(graphID)+"/cnl")
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func (c *HTTPClient) getJSON(ctx context.Context, path string, out any) error {
	body, err := c.get(ctx, path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: decoding %s: %v", core.ErrNetwork, path, err)
	}
	return nil
}

func (c *HTTPClient) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("building request for %s: %w", path, err)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Warn("fragment server unreachable", zap.String("path", path), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", core.ErrNetwork, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFragmentBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", core.ErrNetwork, path, err)
	}

	c.logger.Debug("fragment server request",
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	switch {
	case resp.StatusCode == http.StatusOK:
		return body, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", core.ErrFragmentNotFound, strings.TrimSpace(string(body)))
	default:
		return nil, fmt.Errorf("%w: %s returned status %d", core.ErrNetwork, path, resp.StatusCode)
	}
}
