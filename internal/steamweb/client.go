// Package steamweb is a thin client for the Steam Web API endpoint that
// returns the next match sharing code in an account's chain.
package steamweb

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/avoronov/demorelay/internal/common"
)

const defaultBaseURL = "https://api.steampowered.com"

// exhaustedSentinel is the API's "no newer match exists yet" answer.
const exhaustedSentinel = "n/a"

// Client calls GetNextMatchSharingCode with a service API key plus the
// per-account credential and cursor supplied by the caller.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API host, used by tests.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

// New constructs a Client with the given Steam Web API key.
func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    defaultBaseURL,
		apiKey:     apiKey,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type nextCodeResponse struct {
	Result struct {
		NextCode string `json:"nextcode"`
	} `json:"result"`
}

// NextCode returns the share code that follows knownCode in the account's
// chain. It returns common.ErrNoNewerMatch when the chain is exhausted.
// Any transport or non-200 response is a transient error; the caller
// retries on its next scheduled run.
func (c *Client) NextCode(ctx context.Context, accountID, credential, knownCode string) (string, error) {
	q := url.Values{}
	q.Set("key", c.apiKey)
	q.Set("steamid", accountID)
	q.Set("steamidkey", credential)
	q.Set("knowncode", knownCode)

	endpoint := c.baseURL + "/ICSGOPlayers_730/GetNextMatchSharingCode/v1?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("next code request: %w", err)
	}
	defer resp.Body.Close()

	// 202 means the known code is valid but nothing newer exists yet.
	if resp.StatusCode == http.StatusAccepted {
		return "", common.ErrNoNewerMatch
	}
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("next code request: %s; body: %s", resp.Status, string(b))
	}

	var body nextCodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("next code decode: %w", err)
	}

	next := body.Result.NextCode
	if next == "" || next == exhaustedSentinel {
		return "", common.ErrNoNewerMatch
	}
	return next, nil
}
