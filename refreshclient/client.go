// Package refreshclient calls the backend's token refresh endpoint. The
// contract is narrow: POST {base}/auth/refresh with the refresh token as
// a bearer credential and an empty JSON body; any 2xx response must carry
// an access_token field or the attempt counts as failed.
package refreshclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"

	kiterrors "github.com/sessionkit/sessionkit/internal/errors"
	"github.com/sessionkit/sessionkit/internal/utils"
)

const refreshPath = "/auth/refresh"

// Config contains configuration for the refresh client.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	UserAgent  string
	HTTPClient *http.Client // optional; a default client with Timeout is built when nil
}

// DefaultConfig returns a default refresh client configuration.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:   baseURL,
		Timeout:   10 * time.Second,
		UserAgent: "sessionkit",
	}
}

// tokenResponse is the subset of the token endpoint response the client
// depends on. Only AccessToken matters; everything else is a hint.
type tokenResponse struct {
	AccessToken *string `json:"access_token,omitempty"`
	TokenType   string  `json:"token_type,omitempty"`
	ExpiresIn   int     `json:"expires_in,omitempty"`
}

// Client performs refresh calls against a single backend.
type Client struct {
	config Config
	client *http.Client
}

func New(config Config) *Client {
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.Timeout}
	}
	return &Client{
		config: config,
		client: httpClient,
	}
}

// Refresh exchanges the refresh token for a new access token. Every
// failure mode (transport error, non-2xx status, undecodable body,
// missing access_token) collapses into an error; callers treat them all
// the same way.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (string, error) {
	url := strings.TrimSuffix(c.config.BaseURL, "/") + refreshPath

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBufferString("{}"))
	if err != nil {
		return "", errors.Wrap(err, "[Client.Refresh] build request")
	}
	req.Header.Set("Authorization", "Bearer "+refreshToken)
	req.Header.Set("Content-Type", "application/json")
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "[Client.Refresh] call refresh endpoint")
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return "", errors.Wrap(kiterrors.ErrRefreshFailed, fmt.Sprintf("unexpected status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrap(err, "[Client.Refresh] read response")
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", errors.Wrap(kiterrors.ErrMalformedResponse, err.Error())
	}
	if tr.AccessToken == nil || utils.Value(tr.AccessToken) == "" {
		return "", errors.Wrap(kiterrors.ErrMalformedResponse, "response missing access_token")
	}

	return utils.Value(tr.AccessToken), nil
}
