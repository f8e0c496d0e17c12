// Package crm is a thin client for the CRM REST API exercised by the API suite.
package crm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"
)

// ErrUnexpectedStatus is returned when the API answers with a non-2xx status.
var ErrUnexpectedStatus = errors.New("unexpected status")

// Limit is one org limit.
type Limit struct {
	Max       int64 `json:"Max"`
	Remaining int64 `json:"Remaining"`
}

// Limits maps limit names (DailyApiRequests, DataStorageMB, ...) to values.
type Limits map[string]Limit

// Has reports whether every key is present.
func (l Limits) Has(keys ...string) bool {
	for _, key := range keys {
		if _, ok := l[key]; !ok {
			return false
		}
	}
	return true
}

// Client issues authenticated calls against one org.
type Client struct {
	log     logrus.FieldLogger
	http    *http.Client
	baseURL string
	version string
	token   string
}

// NewClient creates a client. The http client is expected to carry the
// instrumentation transport and the timeout.
func NewClient(log logrus.FieldLogger, httpClient *http.Client, baseURL, version, token string) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{
		log:     log.WithField("component", "crm_client"),
		http:    httpClient,
		baseURL: strings.TrimRight(baseURL, "/"),
		version: version,
		token:   token,
	}
}

// LimitsPath is the versioned path of the org limits resource.
func (c *Client) LimitsPath() string {
	return fmt.Sprintf("/services/data/%s/limits", c.version)
}

// Get issues an authenticated GET of path, relative to the base URL.
func (c *Client) Get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", path, err)
	}

	c.log.WithFields(logrus.Fields{
		"path":   path,
		"status": resp.StatusCode,
	}).Debug("API call completed")

	return resp, nil
}

// Limits reads the org limits. The response is returned with its body
// already consumed so callers can assert on status and headers.
func (c *Client) Limits(ctx context.Context) (Limits, *http.Response, error) {
	resp, err := c.Get(ctx, c.LimitsPath())
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp, fmt.Errorf("reading limits: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, resp, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	var limits Limits
	if err := json.Unmarshal(data, &limits); err != nil {
		return nil, resp, fmt.Errorf("decoding limits: %w", err)
	}

	return limits, resp, nil
}
