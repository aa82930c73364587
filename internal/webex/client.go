// Package webex implements the REST client used by the bot: device registry
// reconciliation, account lookup, and message fetch/post. Every call carries
// the bearer credential supplied at construction.
package webex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/keepmind9/botsocket/pkg/constants"
)

// StatusError is returned for REST calls that complete with a non-2xx status
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Body)
}

// IsNotFound reports whether err is a StatusError with HTTP 404
func IsNotFound(err error) bool {
	se, ok := err.(*StatusError)
	return ok && se.Code == http.StatusNotFound
}

// Client is a bearer-authenticated client for the platform REST API.
// The URL fields default to the public endpoints and are overridable in tests.
type Client struct {
	httpClient *http.Client
	token      string

	RegistryURL string // device registry (WDM) endpoint
	APIBaseURL  string // public REST API base
}

// NewClient creates a client using the given bearer token
func NewClient(token string) *Client {
	return &Client{
		httpClient:  &http.Client{Timeout: constants.DefaultHTTPTimeout},
		token:       token,
		RegistryURL: constants.DeviceRegistryURL,
		APIBaseURL:  constants.APIBaseURL,
	}
}

// Auth returns the value of the Authorization header sent on every call
func (c *Client) Auth() string {
	return "Bearer " + c.token
}

// do performs one REST call. A non-nil body is sent as JSON; a non-nil out
// receives the decoded response body.
func (c *Client) do(ctx context.Context, method, url string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", c.Auth())
	req.Header.Set("TrackingID", "botsocket_"+uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{Code: resp.StatusCode, Body: string(data)}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// maskToken masks the bearer token for logging
func maskToken(s string) string {
	if len(s) <= constants.MinTokenLengthForMasking {
		return "***"
	}
	return s[:constants.TokenMaskPrefixLength] + "***" + s[len(s)-constants.TokenMaskSuffixLength:]
}
