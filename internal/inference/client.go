// Package inference talks to the local inference daemon's HTTP API.
package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

const (
	// VersionPath is the liveness endpoint. Only reachability matters.
	VersionPath = "/api/version"
	tagsPath    = "/api/tags"
	pullPath    = "/api/pull"

	probeTimeout = 5 * time.Second
	pullTimeout  = 30 * time.Minute
)

// Client is a thin API client for the inference daemon.
type Client struct {
	baseURL string

	// probe never retries: callers wrap it in their own bounded loop.
	probe  *http.Client
	http   *http.Client
	logger *slog.Logger
}

// NewClient creates a client for baseURL, e.g. http://127.0.0.1:11434.
func NewClient(baseURL string, logger *slog.Logger) *Client {
	probe := retryablehttp.NewClient()
	probe.RetryMax = 0
	probe.HTTPClient.Timeout = probeTimeout
	probe.Logger = nil

	api := retryablehttp.NewClient()
	api.RetryMax = 3
	api.RetryWaitMin = 1 * time.Second
	api.RetryWaitMax = 10 * time.Second
	api.Logger = nil

	return &Client{
		baseURL: baseURL,
		probe:   probe.StandardClient(),
		http:    api.StandardClient(),
		logger:  logger,
	}
}

// HealthEndpoint returns the full liveness URL.
func (c *Client) HealthEndpoint() string {
	return c.baseURL + VersionPath
}

// Check performs one liveness request. Any 2xx answer counts as alive.
func (c *Client) Check(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.HealthEndpoint(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := c.probe.Do(req)
	if err != nil {
		return fmt.Errorf("health check: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("health check returned %d", resp.StatusCode)
	}
	return nil
}

type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// Models lists the models already present on the daemon.
func (c *Client) Models(ctx context.Context) ([]string, error) {
	data, err := c.doRequest(ctx, c.http, http.MethodGet, tagsPath, nil)
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	var tags tagsResponse
	if err := json.Unmarshal(data, &tags); err != nil {
		return nil, fmt.Errorf("unmarshal tags: %w", err)
	}
	names := make([]string, 0, len(tags.Models))
	for _, m := range tags.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

// Pull asks the daemon to download model and waits for it to finish.
func (c *Client) Pull(ctx context.Context, model string) error {
	body, err := json.Marshal(map[string]any{"name": model, "stream": false})
	if err != nil {
		return fmt.Errorf("marshal pull request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, pullTimeout)
	defer cancel()

	c.logger.Info("pulling model", "model", model)
	if _, err := c.doRequest(ctx, c.http, http.MethodPost, pullPath, body); err != nil {
		return fmt.Errorf("pull %s: %w", model, err)
	}
	return nil
}

// EnsureModel pulls model unless the daemon already has it. It reports
// whether a pull happened.
func (c *Client) EnsureModel(ctx context.Context, model string) (bool, error) {
	have, err := c.Models(ctx)
	if err != nil {
		return false, err
	}
	for _, name := range have {
		if name == model || name == model+":latest" {
			return false, nil
		}
	}
	return true, c.Pull(ctx, model)
}

func (c *Client) doRequest(ctx context.Context, hc *http.Client, method, path string, body []byte) ([]byte, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Error("inference API error",
			"method", method,
			"path", path,
			"status", resp.StatusCode,
			"body", string(respBody),
		)
		return nil, fmt.Errorf("%s %s returned %d: %s", method, path, resp.StatusCode, string(respBody))
	}
	return respBody, nil
}
