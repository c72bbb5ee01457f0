// Package arr forwards approved requests to Radarr and Sonarr.
package arr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/finearr/finearr/internal/config"
	"github.com/finearr/finearr/internal/models"
)

// ErrNotConfigured is returned when the target has no base URL or API key.
var ErrNotConfigured = errors.New("download manager not configured")

const maxErrorBody = 512

// HTTPClient defines the interface for making HTTP requests.
// This allows for easy mocking in tests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Kind selects the download manager flavour.
type Kind string

// Supported download managers.
const (
	Radarr Kind = "radarr"
	Sonarr Kind = "sonarr"
)

func (k Kind) endpoint() string {
	if k == Radarr {
		return "/api/v3/movie"
	}
	return "/api/v3/series"
}

// StatusError is returned when the download manager answers with a non-2xx status.
type StatusError struct {
	Kind       Kind
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d: %s", e.Kind, e.StatusCode, e.Body)
}

// Client posts media items to one download manager.
type Client struct {
	kind   Kind
	cfg    config.ArrConfig
	client HTTPClient
}

// NewClient creates a Client. A nil client uses http.DefaultClient.
func NewClient(kind Kind, cfg config.ArrConfig, client HTTPClient) *Client {
	if client == nil {
		client = http.DefaultClient
	}
	return &Client{kind: kind, cfg: cfg, client: client}
}

// Configured reports whether the client has both a base URL and an API key.
func (c *Client) Configured() bool {
	return c.cfg.BaseURL != "" && c.cfg.APIKey != ""
}

// Send posts the item. It returns ErrNotConfigured without any network
// traffic when the target is not configured.
func (c *Client) Send(ctx context.Context, item models.MediaItem) error {
	if !c.Configured() {
		return ErrNotConfigured
	}

	target, err := c.url()
	if err != nil {
		return err
	}

	body, err := c.payload(item)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", c.cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("post to %s: %w", c.kind, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{
			Kind:       c.kind,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(snippet)),
		}
	}

	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (c *Client) url() (string, error) {
	base, err := url.Parse(c.cfg.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parse %s base url: %w", c.kind, err)
	}
	ref, _ := url.Parse(c.kind.endpoint())
	return base.ResolveReference(ref).String(), nil
}

func (c *Client) payload(item models.MediaItem) ([]byte, error) {
	raw, err := json.Marshal(item)
	if err != nil {
		return nil, fmt.Errorf("encode item: %w", err)
	}

	fields := map[string]interface{}{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("encode item: %w", err)
	}

	if c.cfg.RootFolderPath != "" {
		fields["rootFolderPath"] = c.cfg.RootFolderPath
	}
	if c.cfg.QualityProfileID > 0 {
		fields["qualityProfileId"] = c.cfg.QualityProfileID
	}

	return json.Marshal(fields)
}
