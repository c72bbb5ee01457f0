package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/finearr/finearr/internal/models"
	"github.com/finearr/finearr/internal/service/plex"
	"github.com/finearr/finearr/pkg/logger"
	"go.uber.org/zap"
)

// APIClient talks to the Plex sign-in endpoints of a running finearr server.
type APIClient struct {
	baseURL string
	client  *http.Client
}

// NewAPIClient creates an APIClient.
func NewAPIClient(baseURL string, client *http.Client) *APIClient {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &APIClient{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

func (a *APIClient) call(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return plex.ErrPinNotFound
	}
	if resp.StatusCode != http.StatusOK {
		var apiErr models.ErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, apiErr.Error)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

// CreatePin starts a sign-in.
func (a *APIClient) CreatePin(ctx context.Context) (models.PinResponse, error) {
	var pin models.PinResponse
	err := a.call(ctx, http.MethodPost, "/api/auth/plex/pin", nil, &pin)
	return pin, err
}

// Check implements plex.PinChecker.
func (a *APIClient) Check(ctx context.Context, id string) (models.PinStatus, error) {
	var status models.PinStatus
	err := a.call(ctx, http.MethodGet, "/api/auth/plex/pin/"+url.PathEscape(id), nil, &status)
	return status, err
}

// Login exchanges the Plex token for a finearr session.
func (a *APIClient) Login(ctx context.Context, plexToken string) (string, models.UserView, error) {
	var resp struct {
		SessionToken string          `json:"sessionToken"`
		User         models.UserView `json:"user"`
	}
	err := a.call(ctx, http.MethodPost, "/api/auth/plex/login", models.PlexLoginDTO{PlexToken: plexToken}, &resp)
	return resp.SessionToken, resp.User, err
}

// signIn runs the whole handshake, printing the approval URL to out.
func signIn(ctx context.Context, api *APIClient, out io.Writer, interval, timeout time.Duration) (string, models.UserView, error) {
	pin, err := api.CreatePin(ctx)
	if err != nil {
		return "", models.UserView{}, err
	}

	fmt.Fprintf(out, "Open %s and sign in with code %s\n", pin.AuthURL, pin.Code)

	token, err := plex.WaitForAuthToken(ctx, api, pin.ID, interval, timeout)
	if err != nil {
		return "", models.UserView{}, err
	}

	return api.Login(ctx, token)
}

func main() {
	var (
		server   string
		interval time.Duration
		timeout  time.Duration
		level    string
	)

	flag.StringVar(&server, "server", "http://localhost:8080", "Base URL of the finearr server")
	flag.DurationVar(&interval, "interval", plex.DefaultPollInterval, "How often to check the pin")
	flag.DurationVar(&timeout, "timeout", plex.DefaultPollTimeout, "How long to wait for the sign-in")
	flag.StringVar(&level, "log-level", "warn", "Log level")
	flag.Parse()

	if err := logger.Init(level, ""); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sessionToken, user, err := signIn(ctx, NewAPIClient(server, nil), os.Stdout, interval, timeout)
	switch {
	case errors.Is(err, plex.ErrPinTimeout):
		logger.Log.Error("Sign-in timed out", zap.Duration("timeout", timeout))
		os.Exit(1)
	case errors.Is(err, context.Canceled):
		logger.Log.Warn("Sign-in cancelled")
		os.Exit(130)
	case err != nil:
		logger.Log.Error("Sign-in failed", zap.Error(err))
		os.Exit(1)
	}

	fmt.Printf("Signed in as %s\nSession token: %s\n", user.Username, sessionToken)
}
