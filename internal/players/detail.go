package players

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	flowerrors "github.com/courtvision/scoutgraph/pkg/flowgraph/errors"
)

// DefaultDetailTimeout bounds one detail request.
const DefaultDetailTimeout = 30 * time.Second

// maxErrorBody caps how much of an error response is kept.
const maxErrorBody = 2048

// DetailClient fetches a player's detail record.
type DetailClient interface {
	Get(ctx context.Context, league, playerID string) (*Detail, error)
}

// APIClient implements DetailClient against the stats HTTP API.
type APIClient struct {
	baseURL string
	timeout time.Duration
	client  *http.Client
}

// APIOption configures an APIClient.
type APIOption func(*APIClient)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) APIOption {
	return func(c *APIClient) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) APIOption {
	return func(c *APIClient) {
		c.client = hc
	}
}

// NewAPIClient creates a client for the API rooted at baseURL.
func NewAPIClient(baseURL string, opts ...APIOption) *APIClient {
	c := &APIClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		timeout: DefaultDetailTimeout,
		client:  &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// LeaguePath turns a league name or id into its URL segment.
func LeaguePath(league string) string {
	return strings.ReplaceAll(strings.ToLower(league), " ", "")
}

// Get implements DetailClient. Timeouts are returned as
// *errors.TimeoutError and non-2xx responses as *errors.HTTPError.
func (c *APIClient) Get(ctx context.Context, league, playerID string) (*Detail, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/api/search/player/%s/%s",
		c.baseURL, LeaguePath(league), url.PathEscape(playerID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		if isTimeout(ctx, err) {
			return nil, &flowerrors.TimeoutError{Operation: "fetch player detail", Duration: c.timeout}
		}
		return nil, fmt.Errorf("fetch player detail: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &flowerrors.HTTPError{
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(body)),
			Endpoint:   endpoint,
		}
	}

	var d Detail
	if err := json.NewDecoder(resp.Body).Decode(&d); err != nil {
		if isTimeout(ctx, err) {
			return nil, &flowerrors.TimeoutError{Operation: "fetch player detail", Duration: c.timeout}
		}
		return nil, fmt.Errorf("decode player detail: %w", err)
	}
	return &d, nil
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
