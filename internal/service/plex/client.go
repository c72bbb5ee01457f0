// Package plex talks to the plex.tv PIN login and account APIs.
package plex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/finearr/finearr/internal/config"
	"github.com/finearr/finearr/internal/models"
	"github.com/google/uuid"
)

var (
	// ErrPinNotFound is returned when plex.tv does not know the pin, or it expired.
	ErrPinNotFound = errors.New("plex pin not found or expired")

	// ErrInvalidToken is returned when plex.tv rejects a token.
	ErrInvalidToken = errors.New("plex token rejected")
)

const maxErrorBody = 512

// HTTPClient defines the interface for making HTTP requests.
// This allows for easy mocking in tests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Pin is a plex.tv PIN as returned by the pins API.
type Pin struct {
	ID        models.FlexString `json:"id"`
	Code      string            `json:"code"`
	AuthToken *string           `json:"authToken"`
	ExpiresIn int               `json:"expiresIn"`
}

// Account is the identity behind a Plex token.
type Account struct {
	ID       string
	Username string
}

// Client is a plex.tv API client.
type Client struct {
	cfg      config.PlexConfig
	client   HTTPClient
	clientID string
}

// NewClient creates a Client. When no client identifier is configured a
// stable one is derived from the host name, so pins created before a
// restart can still be checked after it.
func NewClient(cfg config.PlexConfig, client HTTPClient) *Client {
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}

	clientID := cfg.ClientIdentifier
	if clientID == "" {
		host, _ := os.Hostname()
		clientID = uuid.NewSHA1(uuid.NameSpaceDNS, []byte("finearr."+host)).String()
	}

	return &Client{cfg: cfg, client: client, clientID: clientID}
}

// ClientIdentifier returns the X-Plex-Client-Identifier sent with every call.
func (c *Client) ClientIdentifier() string {
	return c.clientID
}

// CreatePin asks plex.tv for a new strong PIN.
func (c *Client) CreatePin(ctx context.Context) (Pin, error) {
	endpoint, err := url.Parse(c.cfg.PinURL)
	if err != nil {
		return Pin{}, fmt.Errorf("parse pin url: %w", err)
	}
	q := endpoint.Query()
	q.Set("strong", "true")
	endpoint.RawQuery = q.Encode()

	var pin Pin
	status, err := c.do(ctx, http.MethodPost, endpoint.String(), nil, &pin)
	if err != nil {
		return Pin{}, err
	}
	if status < 200 || status >= 300 {
		return Pin{}, fmt.Errorf("create pin: unexpected status %d", status)
	}
	if pin.ID == "" {
		return Pin{}, fmt.Errorf("create pin: response has no id")
	}
	return pin, nil
}

// GetPin returns the current state of a PIN. A nil AuthToken means the
// user has not finished signing in.
func (c *Client) GetPin(ctx context.Context, id string) (Pin, error) {
	endpoint := strings.TrimRight(c.cfg.PinURL, "/") + "/" + url.PathEscape(id)

	var pin Pin
	status, err := c.do(ctx, http.MethodGet, endpoint, nil, &pin)
	if err != nil {
		return Pin{}, err
	}

	switch {
	case status == http.StatusNotFound:
		return Pin{}, ErrPinNotFound
	case status < 200 || status >= 300:
		return Pin{}, fmt.Errorf("get pin: unexpected status %d", status)
	}

	if pin.AuthToken != nil && *pin.AuthToken == "" {
		pin.AuthToken = nil
	}
	return pin, nil
}

// AuthURL builds the browser URL where the user completes the PIN.
func (c *Client) AuthURL(code string) string {
	params := url.Values{}
	params.Set("clientID", c.clientID)
	params.Set("code", code)
	params.Set("context[device][product]", c.cfg.Product)
	return c.cfg.AuthURL + "#?" + params.Encode()
}

// ValidateToken resolves a Plex token to its account. Only 401 and 403 mean
// the token was rejected; any other failure is an outage.
func (c *Client) ValidateToken(ctx context.Context, token string) (Account, error) {
	var body struct {
		ID       models.FlexString `json:"id"`
		Username string            `json:"username"`
		Email    string            `json:"email"`
	}

	headers := map[string]string{c.cfg.TokenHeader: token}
	status, err := c.do(ctx, http.MethodGet, c.cfg.ValidateURL, headers, &body)
	if err != nil {
		return Account{}, err
	}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return Account{}, ErrInvalidToken
	case status < 200 || status >= 300:
		return Account{}, fmt.Errorf("validate token: unexpected status %d", status)
	}

	if body.ID == "" {
		return Account{}, ErrInvalidToken
	}

	username := body.Username
	if username == "" {
		username = body.Email
	}
	return Account{ID: string(body.ID), Username: username}, nil
}

// do performs the request and decodes a 2xx JSON body into out. It returns
// the status code; only transport and decode failures are errors.
func (c *Client) do(ctx context.Context, method, endpoint string, headers map[string]string, out interface{}) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Plex-Product", c.cfg.Product)
	req.Header.Set("X-Plex-Client-Identifier", c.clientID)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%s %s: %w", method, endpoint, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
		return resp.StatusCode, nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, fmt.Errorf("decode %s response: %w", endpoint, err)
	}
	return resp.StatusCode, nil
}
