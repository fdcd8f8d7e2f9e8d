// SPDX-License-Identifier: MPL-2.0

package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// DefaultReleaseBase is the release page root the default table refers to.
const DefaultReleaseBase = "https://github.com/yt-dlp/yt-dlp"

type (
	// StatusError is returned for non-200 download responses.
	StatusError struct {
		URL  string
		Code int
	}

	// Client downloads release assets over HTTP.
	Client struct {
		httpClient *http.Client
		baseURL    string // release root, e.g. "https://github.com/yt-dlp/yt-dlp"
		token      string // optional GITHUB_TOKEN, only sent to GitHub hosts
		userAgent  string
	}

	// ClientOption configures a Client during construction.
	ClientOption func(*Client)
)

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("downloading %s: unexpected status %d", e.URL, e.Code)
}

// Transient reports whether retrying the request may help.
func (e *StatusError) Transient() bool {
	return e.Code >= 500 || e.Code == http.StatusTooManyRequests
}

// WithHTTPClient sets a custom HTTP client, useful for tests or proxy configurations.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// WithBaseURL overrides the release root, primarily for mirrors and test servers.
func WithBaseURL(base string) ClientOption {
	return func(cl *Client) {
		cl.baseURL = strings.TrimRight(base, "/")
	}
}

// WithToken sets a GitHub token. It is attached only to requests that target
// a GitHub host.
func WithToken(token string) ClientOption {
	return func(cl *Client) {
		cl.token = token
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) ClientOption {
	return func(cl *Client) {
		cl.userAgent = ua
	}
}

// NewClient creates a Client for DefaultReleaseBase unless overridden.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: http.DefaultClient,
		baseURL:    DefaultReleaseBase,
		userAgent:  "pybundle/dev",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AssetURL returns the "latest release" download URL for an asset name.
func (c *Client) AssetURL(name string) string {
	return c.baseURL + "/releases/latest/download/" + url.PathEscape(name)
}

// Download fetches assetURL and returns the body as a stream. The caller must
// close it. Non-200 responses yield a *StatusError.
func (c *Client) Download(ctx context.Context, assetURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, assetURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/octet-stream")

	// A download URL may redirect to a CDN; only GitHub hosts get the token.
	if c.token != "" && isGitHubHost(req.URL, c.baseURL) {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("downloading %s: %w", redactURL(assetURL), err)
	}

	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, &StatusError{URL: redactURL(assetURL), Code: resp.StatusCode}
	}

	return resp.Body, nil
}

// isTransient classifies download errors for the retry loop: network
// failures and 5xx/429 responses are retried, everything else is not.
func isTransient(ctx context.Context, err error) bool {
	if ctx.Err() != nil || errors.Is(err, ErrChecksumMismatch) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Transient()
	}
	return true
}

// isGitHubHost reports whether reqURL targets the configured release host or
// github.com itself, so the auth token can be safely attached.
func isGitHubHost(reqURL *url.URL, baseURL string) bool {
	base, err := url.Parse(baseURL)
	if err != nil {
		return false
	}
	if strings.EqualFold(reqURL.Host, base.Host) {
		return true
	}
	return strings.EqualFold(reqURL.Host, "github.com") || strings.EqualFold(reqURL.Host, "api.github.com")
}

// redactURL strips query parameters and fragments from a URL for safe inclusion
// in error messages, preventing accidental exposure of tokens or sensitive data.
func redactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "<invalid-url>"
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}
