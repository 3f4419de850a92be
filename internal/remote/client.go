// Package remote implements the client side of the sync wire contract.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fieldops/fieldsync/internal/versions"
)

//go:generate mockgen -destination=mocks/mock_client.go -package=mocks -source=client.go Client

const (
	// DefaultTimeout is the per-request timeout used when none is configured
	DefaultTimeout = 30 * time.Second

	// UserAgent is sent with every request
	UserAgent = "fieldsync/1.0"

	// MaxResponseSize caps how much of a response body is read
	MaxResponseSize = 10 * 1024 * 1024

	// DefaultTenantNotResolvedMarker is looked for in non-2xx bodies
	DefaultTenantNotResolvedMarker = "TENANT_NOT_RESOLVED"

	// TenantHeader carries the tenant id on every request
	TenantHeader = "X-Tenant-ID"

	// ProtocolVersionHeader is the sync protocol version announced by the server
	ProtocolVersionHeader = "X-Sync-Protocol-Version"
)

// Client talks to the sync server
type Client interface {
	// Push submits one entity's batch of local changes
	Push(ctx context.Context, req *PushRequest) (*PushResponse, error)

	// Pull fetches one page of remote changes for an entity
	Pull(ctx context.Context, req *PullRequest) (*PullResponse, error)

	// Ping checks that the server is reachable
	Ping(ctx context.Context) error
}

type httpClient struct {
	baseURL    *url.URL
	client     *http.Client
	marker     string
	token      func() (string, error)
	maxBody    int64
	versionLog sync.Once
}

// Option configures the HTTP client
type Option func(*httpClient)

// WithTimeout sets the per-request timeout
func WithTimeout(timeout time.Duration) Option {
	return func(c *httpClient) {
		if timeout > 0 {
			c.client.Timeout = timeout
		}
	}
}

// WithHTTPClient replaces the underlying http.Client
func WithHTTPClient(client *http.Client) Option {
	return func(c *httpClient) {
		if client != nil {
			c.client = client
		}
	}
}

// WithTenantNotResolvedMarker overrides the marker detected in error bodies
func WithTenantNotResolvedMarker(marker string) Option {
	return func(c *httpClient) {
		if marker != "" {
			c.marker = marker
		}
	}
}

// WithTokenSource sets a bearer token provider called before every request
func WithTokenSource(source func() (string, error)) Option {
	return func(c *httpClient) {
		c.token = source
	}
}

// WithMaxResponseSize overrides the response body limit
func WithMaxResponseSize(limit int64) Option {
	return func(c *httpClient) {
		if limit > 0 {
			c.maxBody = limit
		}
	}
}

// NewHTTPClient creates a Client for the server at endpoint
func NewHTTPClient(endpoint string, opts ...Option) (Client, error) {
	base, err := url.Parse(strings.TrimRight(endpoint, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid sync endpoint %q: %w", endpoint, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid sync endpoint %q: scheme must be http or https", endpoint)
	}

	c := &httpClient{
		baseURL: base,
		client:  &http.Client{Timeout: DefaultTimeout},
		marker:  DefaultTenantNotResolvedMarker,
		maxBody: MaxResponseSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Push implements Client
func (c *httpClient) Push(ctx context.Context, req *PushRequest) (*PushResponse, error) {
	if req == nil || req.Entity == "" {
		return nil, fmt.Errorf("push request requires an entity")
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode push request: %w", err)
	}

	endpoint := c.endpoint("sync", req.Entity)
	data, err := c.do(ctx, http.MethodPost, endpoint, req.TenantID, body)
	if err != nil {
		return nil, err
	}

	var resp PushResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode push response from %s: %w", endpoint, err)
	}
	return &resp, nil
}

// Pull implements Client
func (c *httpClient) Pull(ctx context.Context, req *PullRequest) (*PullResponse, error) {
	if req == nil || req.Entity == "" {
		return nil, fmt.Errorf("pull request requires an entity")
	}

	query := url.Values{}
	if !req.Since.IsZero() {
		query.Set("since", req.Since.String())
	}
	if req.Limit > 0 {
		query.Set("limit", strconv.Itoa(req.Limit))
	}
	endpoint := c.endpoint("sync", req.Entity)
	if encoded := query.Encode(); encoded != "" {
		endpoint += "?" + encoded
	}

	data, err := c.do(ctx, http.MethodGet, endpoint, req.TenantID, nil)
	if err != nil {
		return nil, err
	}

	var resp PullResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode pull response from %s: %w", endpoint, err)
	}
	return &resp, nil
}

// Ping implements Client
func (c *httpClient) Ping(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, c.endpoint("health"), "", nil)
	return err
}

func (c *httpClient) endpoint(segments ...string) string {
	return c.baseURL.JoinPath(segments...).String()
}

func (c *httpClient) do(ctx context.Context, method, endpoint, tenantID string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tenantID != "" {
		req.Header.Set(TenantHeader, tenantID)
	}
	if c.token != nil {
		token, err := c.token()
		if err != nil {
			return nil, fmt.Errorf("failed to obtain access token: %w", err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	c.checkProtocolVersion(resp.Header.Get(ProtocolVersionHeader))

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if int64(len(data)) > c.maxBody {
		return nil, fmt.Errorf("response body exceeds maximum size of %d bytes", c.maxBody)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &HTTPError{
			StatusCode:        resp.StatusCode,
			URL:               endpoint,
			Message:           strings.TrimSpace(string(data)),
			TenantNotResolved: containsFold(data, c.marker),
			RetryAfterDelay:   parseRetryAfter(resp.Header.Get("Retry-After"), time.Now()),
		}
	}
	return data, nil
}

func (c *httpClient) checkProtocolVersion(serverVersion string) {
	if serverVersion == "" || !versions.IsNewerVersion(serverVersion, versions.SupportedProtocolVersion) {
		return
	}
	c.versionLog.Do(func() {
		if !versions.IsCompatible(serverVersion) {
			slog.Error("Sync server protocol is incompatible with this agent",
				"server_version", serverVersion,
				"supported_version", versions.SupportedProtocolVersion)
			return
		}
		slog.Warn("Sync server speaks a newer protocol than this agent supports",
			"server_version", serverVersion,
			"supported_version", versions.SupportedProtocolVersion)
	})
}

func containsFold(data []byte, marker string) bool {
	if marker == "" {
		return false
	}
	return bytes.Contains(bytes.ToUpper(data), bytes.ToUpper([]byte(marker)))
}
