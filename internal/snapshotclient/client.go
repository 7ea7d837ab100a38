// Package snapshotclient fetches one-shot REST depth snapshots (spec.md
// §4.2, §6). Grounded on the teacher's pkg/exchange/binance RequestService:
// an injected HTTPClient interface keeps the client unit-testable without a
// live network round trip.
package snapshotclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/anselumana/binance-etl/internal/model"
)

// DefaultLimit is the maximum depth the REST endpoint accepts, and the
// convention used unless a caller overrides it (spec.md §4.2).
const DefaultLimit = 1000

// HTTPClient is satisfied by *http.Client; kept as an interface so tests
// can substitute a fake transport.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client fetches depth snapshots from a Binance-shaped REST endpoint.
type Client struct {
	baseURL    string
	httpClient HTTPClient
	limit      int
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP transport (for tests).
func WithHTTPClient(c HTTPClient) Option {
	return func(cl *Client) { cl.httpClient = c }
}

// WithLimit overrides DefaultLimit.
func WithLimit(limit int) Option {
	return func(cl *Client) { cl.limit = limit }
}

// New constructs a Client against baseURL (e.g. "https://api.binance.com").
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		limit:      DefaultLimit,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchDepth performs GET /api/v3/depth?symbol=<SYMBOL>&limit=<N>. Symbol
// is upper-cased before the request (spec.md §6). On non-200 status or a
// transport error it returns an error and performs no retry: retries are
// the synchronizer's responsibility (spec.md §4.2).
func (c *Client) FetchDepth(ctx context.Context, symbol string) (model.BookSnapshot, error) {
	url := fmt.Sprintf("%s/api/v3/depth?symbol=%s&limit=%s",
		c.baseURL, strings.ToUpper(symbol), strconv.Itoa(c.limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return model.BookSnapshot{}, fmt.Errorf("build depth snapshot request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return model.BookSnapshot{}, fmt.Errorf("depth snapshot request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return model.BookSnapshot{}, fmt.Errorf("read depth snapshot body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return model.BookSnapshot{}, fmt.Errorf("depth snapshot fetch for %s: unexpected status %d", symbol, resp.StatusCode)
	}

	snap, err := model.DecodeSnapshot(body)
	if err != nil {
		return model.BookSnapshot{}, fmt.Errorf("decode depth snapshot: %w", err)
	}
	return snap, nil
}
