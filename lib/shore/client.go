// Copyright 2026 The Pelorus Authors
// SPDX-License-Identifier: Apache-2.0

// Package shore is the typed HTTP client for the shore service. It
// covers the five collector endpoints: single-point update, batch
// push, configuration fetch, metadata publish, and target push. Every
// request carries the collector key header; every response body is
// read with a size bound and decoded strictly, so a garbled response
// surfaces as an error the same way a dropped link does.
package shore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pelorus-marine/pelorus/lib/schema"
	"github.com/pelorus-marine/pelorus/lib/version"
)

// KeyHeader authenticates the collector to the shore service.
const KeyHeader = "X-Pelorus-Key"

// maxResponseSize bounds response body reads. Shore responses are
// small JSON documents; 1 MiB is far above anything legitimate while
// keeping a misbehaving server from exhausting a boat computer's
// memory.
const maxResponseSize int64 = 1 << 20

// defaultTimeout bounds each request end to end. Satellite and
// cellular links at sea stall rather than fail; without a deadline a
// wedged request would block the drain loop indefinitely.
const defaultTimeout = 30 * time.Second

// Config holds the settings for creating a Client.
type Config struct {
	// BaseURL is the shore service root (e.g. "https://shore.example.net").
	BaseURL string

	// Collector is the collector identifier used in request paths.
	Collector string

	// Key is the collector key sent in the KeyHeader on every
	// request. Obtained through pairing.
	Key string

	// HTTPClient is used for all requests. If nil, a client with
	// defaultTimeout is used.
	HTTPClient *http.Client

	// Logger receives diagnostic output. Defaults to discarding.
	Logger *slog.Logger
}

// Client talks to the shore service. Safe for concurrent use.
type Client struct {
	baseURL    string
	collector  string
	key        string
	httpClient *http.Client
	logger     *slog.Logger
}

// StatusError is a non-2xx response from the shore service.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("shore: status %d", e.StatusCode)
	}
	return fmt.Sprintf("shore: status %d: %s", e.StatusCode, e.Body)
}

// NewClient creates a shore client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("shore: BaseURL is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("shore: invalid BaseURL %q: %w", cfg.BaseURL, err)
	}
	if cfg.Collector == "" {
		return nil, fmt.Errorf("shore: Collector is required")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		collector:  cfg.Collector,
		key:        cfg.Key,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// CloseIdleConnections drops pooled connections. Call after a link
// disruption so the next request dials fresh instead of reusing a
// connection that died with the link.
func (c *Client) CloseIdleConnections() {
	c.httpClient.CloseIdleConnections()
}

// UpdatePoint uploads a single track point outside the batch path.
func (c *Client) UpdatePoint(ctx context.Context, point schema.TrackPoint) error {
	_, err := c.doRequest(ctx, http.MethodPost, "/"+c.collector+"/update", point)
	if err != nil {
		return fmt.Errorf("shore: point update failed: %w", err)
	}
	return nil
}

// PushPoints uploads a batch of track points and returns the shore's
// acknowledgment. An empty batch is a liveness heartbeat; the shore
// may answer it with 204 and no body, which decodes to the zero
// response.
func (c *Client) PushPoints(ctx context.Context, points []schema.TrackPoint) (schema.PushResponse, error) {
	request := schema.PushRequest{Points: points}
	body, err := c.doRequest(ctx, http.MethodPost, "/"+c.collector+"/push", request)
	if err != nil {
		return schema.PushResponse{}, fmt.Errorf("shore: push failed: %w", err)
	}
	if len(body) == 0 {
		return schema.PushResponse{}, nil
	}
	var response schema.PushResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return schema.PushResponse{}, fmt.Errorf("shore: parsing push response: %w", err)
	}
	return response, nil
}

// FetchConfiguration retrieves the remote configuration document.
func (c *Client) FetchConfiguration(ctx context.Context) (schema.ShoreConfig, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "/monitoring/"+c.collector+"/configuration", nil)
	if err != nil {
		return schema.ShoreConfig{}, fmt.Errorf("shore: configuration fetch failed: %w", err)
	}
	var cfg schema.ShoreConfig
	if err := json.Unmarshal(body, &cfg); err != nil {
		return schema.ShoreConfig{}, fmt.Errorf("shore: parsing configuration: %w", err)
	}
	return cfg, nil
}

// PublishMetadata uploads the vessel metadata and platform snapshot.
func (c *Client) PublishMetadata(ctx context.Context, info schema.VesselInfo) error {
	_, err := c.doRequest(ctx, http.MethodPost, "/monitoring/"+c.collector+"/push", info)
	if err != nil {
		return fmt.Errorf("shore: metadata publish failed: %w", err)
	}
	return nil
}

// PushTargets uploads the proximity target table.
func (c *Client) PushTargets(ctx context.Context, push schema.TargetPush) error {
	_, err := c.doRequest(ctx, http.MethodPost, "/ais/"+c.collector+"/push", push)
	if err != nil {
		return fmt.Errorf("shore: target push failed: %w", err)
	}
	return nil
}

// doRequest performs one request and returns the response body. On a
// non-2xx status it returns a *StatusError carrying a bounded body
// snippet. requestBody may be nil for bodyless requests.
func (c *Client) doRequest(ctx context.Context, method, path string, requestBody any) ([]byte, error) {
	var bodyReader io.Reader
	if requestBody != nil {
		encoded, err := json.Marshal(requestBody)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		bodyReader = bytes.NewReader(encoded)
	}

	request, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if requestBody != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	request.Header.Set(KeyHeader, c.key)
	request.Header.Set("User-Agent", "pelorus-collector/"+version.Short())

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("request to %s %s failed: %w", method, path, err)
	}
	defer response.Body.Close()

	responseBody, err := io.ReadAll(io.LimitReader(response.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	if response.StatusCode >= 200 && response.StatusCode < 300 {
		return responseBody, nil
	}

	snippet := string(responseBody)
	if len(snippet) > 200 {
		snippet = snippet[:200]
	}
	return nil, &StatusError{StatusCode: response.StatusCode, Body: snippet}
}
