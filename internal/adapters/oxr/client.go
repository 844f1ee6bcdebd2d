// Package oxr talks to the Open Exchange Rates API and parses its payloads.
package oxr

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/SscSPs/money_oxr/internal/apperrors"
	portsrepo "github.com/SscSPs/money_oxr/internal/core/ports/repositories"
)

// DefaultTimeout bounds a single API request.
const DefaultTimeout = 10 * time.Second

// maxErrorBody caps how much of a failed response body ends up in an error.
const maxErrorBody = 512

// Client fetches raw payloads from the rates API.
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
}

// ClientOption is a functional option for configuring the Client.
type ClientOption func(*Client)

// WithHTTPClient sets the HTTP client to use for requests.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithTimeout sets the request timeout on the default HTTP client.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient = &http.Client{Timeout: timeout}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a new Client.
func NewClient(options ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		logger:     slog.Default(),
	}
	for _, option := range options {
		option(c)
	}
	return c
}

// Ensure Client implements the RatesFetcher port
var _ portsrepo.RatesFetcher = (*Client)(nil)

// Fetch GETs rawURL and returns the body. Network errors and non-2xx
// responses wrap apperrors.ErrTransport.
func (c *Client) Fetch(ctx context.Context, rawURL string) (string, error) {
	safeURL := redact(rawURL)
	c.logger.Debug("Fetching exchange rates from API", slog.String("url", safeURL))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("%w: failed to create request: %v", apperrors.ErrTransport, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// url.Error repeats the URL, which carries the app id.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return "", fmt.Errorf("%w: request to %s failed: %v", apperrors.ErrTransport, safeURL, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", fmt.Errorf("%w: API returned status %d: %s", apperrors.ErrTransport, resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: failed to read response: %v", apperrors.ErrTransport, err)
	}
	return string(body), nil
}

// redact hides the app_id query parameter.
func redact(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "<invalid url>"
	}
	q := u.Query()
	if q.Has("app_id") {
		q.Set("app_id", "REDACTED")
		u.RawQuery = q.Encode()
	}
	return u.String()
}
