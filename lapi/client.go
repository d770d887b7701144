// Package lapi implements the HTTP client for a CrowdSec-style decision
// service ("local API"). It is a collaborator of the core engine: the core
// consumes decisions through bouncer.FetchDecisionsFunc and never imports
// this package.
package lapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ipsentry/bouncer"
)

const (
	// DefaultTimeout bounds each decision service call.
	DefaultTimeout = 2 * time.Second

	defaultUserAgent = "ipsentry-bouncer/1.0"
)

var (
	ErrUnexpectedKey = errors.New("decision service rejected the API key")

	ErrUnexpectedStatus = errors.New("unexpected decision service status")
)

// APIError reports a failed decision service call.
type APIError struct {
	Op     string
	Status int
	Err    error
}

func (e *APIError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("lapi %s: status %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("lapi %s: %v", e.Op, e.Err)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// Client talks to the decision service. It authenticates with an API key
// header and owns its own timeout; the engine core treats its errors as
// opaque transport failures.
//
// Client instances are safe for concurrent use.
type Client struct {
	baseURL    string
	apiKey     string
	userAgent  string
	httpClient *http.Client
	now        func() time.Time
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithTimeout sets the per-call timeout. Ignored when a custom HTTP client
// is installed.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithUserAgent sets the User-Agent header sent on every call.
func WithUserAgent(userAgent string) ClientOption {
	return func(c *Client) {
		c.userAgent = userAgent
	}
}

// WithClock sets the time source used to derive decision expirations.
// Intended for tests.
func WithClock(now func() time.Time) ClientOption {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// New creates a Client for the decision service at baseURL.
func New(baseURL, apiKey string, opts ...ClientOption) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key cannot be empty")
	}

	parsed, err := url.Parse(baseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid decision service URL %q", baseURL)
	}

	client := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		userAgent:  defaultUserAgent,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		now:        time.Now,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client, nil
}

// wireDecision is the service's JSON representation of one decision.
type wireDecision struct {
	Type     string `json:"type"`
	Value    string `json:"value"`
	Duration string `json:"duration"`
	Scenario string `json:"scenario"`
}

// DecisionsMatching fetches the decisions matching a single IP address and
// derives each decision's absolute expiration from its raw duration. A null
// response body means no matching decisions.
func (c *Client) DecisionsMatching(ctx context.Context, ip string) ([]bouncer.Decision, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/v1/decisions?ip="+url.QueryEscape(ip))
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &APIError{Op: "decisions", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Op: "decisions", Status: resp.StatusCode, Err: statusError(resp.StatusCode)}
	}

	var wire []wireDecision
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, &APIError{Op: "decisions", Err: fmt.Errorf("decode response: %w", err)}
	}

	now := c.now()
	decisions := make([]bouncer.Decision, 0, len(wire))
	for _, w := range wire {
		expiration, err := bouncer.ParseExpiration(w.Duration, now)
		if err != nil {
			return nil, &APIError{Op: "decisions", Err: err}
		}
		decisions = append(decisions, bouncer.Decision{
			Type:       w.Type,
			Value:      w.Value,
			Duration:   w.Duration,
			Expiration: expiration,
		})
	}

	return decisions, nil
}

// TestConnection verifies the service is reachable and the API key is
// accepted. Typically called once at startup.
func (c *Client) TestConnection(ctx context.Context) error {
	req, err := c.newRequest(ctx, http.MethodHead, "/v1/decisions")
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &APIError{Op: "connection test", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &APIError{Op: "connection test", Status: resp.StatusCode, Err: statusError(resp.StatusCode)}
	}

	return nil
}

// Fetcher adapts the client to the engine's decision fetch contract.
func (c *Client) Fetcher() bouncer.FetchDecisionsFunc {
	return c.DecisionsMatching
}

func (c *Client) newRequest(ctx context.Context, method, path string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return nil, &APIError{Op: "request", Err: err}
	}

	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	return req, nil
}

func statusError(status int) error {
	if status == http.StatusForbidden {
		return ErrUnexpectedKey
	}
	return ErrUnexpectedStatus
}
