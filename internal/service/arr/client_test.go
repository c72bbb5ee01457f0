package arr

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/finearr/finearr/internal/config"
	"github.com/finearr/finearr/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// Mock HTTP client
type mockHTTPClient struct {
	mock.Mock
}

func (m *mockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	args := m.Called(req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*http.Response), args.Error(1)
}

func response(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     make(http.Header),
	}
}

var matrix = models.MediaItem{ID: "tt0133093", Title: "The Matrix", Year: "1999"}

func TestClient_Send_Success(t *testing.T) {
	tests := []struct {
		name     string
		kind     Kind
		baseURL  string
		wantURL  string
		cfgExtra func(*config.ArrConfig)
		check    func(*testing.T, map[string]interface{})
	}{
		{
			name:    "radarr",
			kind:    Radarr,
			baseURL: "http://radarr:7878",
			wantURL: "http://radarr:7878/api/v3/movie",
			check: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, "tt0133093", body["id"])
				assert.NotContains(t, body, "rootFolderPath")
			},
		},
		{
			name:    "sonarr with profile",
			kind:    Sonarr,
			baseURL: "http://sonarr:8989/",
			wantURL: "http://sonarr:8989/api/v3/series",
			cfgExtra: func(c *config.ArrConfig) {
				c.RootFolderPath = "/tv"
				c.QualityProfileID = 4
			},
			check: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, "/tv", body["rootFolderPath"])
				assert.Equal(t, float64(4), body["qualityProfileId"])
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.ArrConfig{BaseURL: tt.baseURL, APIKey: "secret"}
			if tt.cfgExtra != nil {
				tt.cfgExtra(&cfg)
			}

			httpClient := new(mockHTTPClient)
			var captured map[string]interface{}
			httpClient.On("Do", mock.MatchedBy(func(req *http.Request) bool {
				if req.Method != http.MethodPost || req.URL.String() != tt.wantURL {
					return false
				}
				return req.Header.Get("X-Api-Key") == "secret" && req.Header.Get("Content-Type") == "application/json"
			})).Run(func(args mock.Arguments) {
				req := args.Get(0).(*http.Request)
				raw, err := io.ReadAll(req.Body)
				require.NoError(t, err)
				require.NoError(t, json.Unmarshal(raw, &captured))
			}).Return(response(http.StatusCreated, `{}`), nil)

			client := NewClient(tt.kind, cfg, httpClient)
			require.NoError(t, client.Send(context.Background(), matrix))
			tt.check(t, captured)
			httpClient.AssertExpectations(t)
		})
	}
}

func TestClient_Send_NotConfigured(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.ArrConfig
	}{
		{name: "no base url", cfg: config.ArrConfig{APIKey: "k"}},
		{name: "no api key", cfg: config.ArrConfig{BaseURL: "http://radarr"}},
		{name: "empty", cfg: config.ArrConfig{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			httpClient := new(mockHTTPClient)
			client := NewClient(Radarr, tt.cfg, httpClient)

			assert.False(t, client.Configured())
			assert.ErrorIs(t, client.Send(context.Background(), matrix), ErrNotConfigured)
			httpClient.AssertNotCalled(t, "Do", mock.Anything)
		})
	}
}

func TestClient_Send_Failures(t *testing.T) {
	cfg := config.ArrConfig{BaseURL: "http://radarr:7878", APIKey: "secret"}

	t.Run("non-2xx status", func(t *testing.T) {
		httpClient := new(mockHTTPClient)
		httpClient.On("Do", mock.Anything).Return(response(http.StatusBadRequest, `[{"errorMessage":"Movie already exists"}]`), nil)

		err := NewClient(Radarr, cfg, httpClient).Send(context.Background(), matrix)

		var statusErr *StatusError
		require.ErrorAs(t, err, &statusErr)
		assert.Equal(t, http.StatusBadRequest, statusErr.StatusCode)
		assert.Contains(t, statusErr.Body, "already exists")
	})

	t.Run("transport error", func(t *testing.T) {
		httpClient := new(mockHTTPClient)
		httpClient.On("Do", mock.Anything).Return(nil, errors.New("connection refused"))

		err := NewClient(Radarr, cfg, httpClient).Send(context.Background(), matrix)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "connection refused")
	})

	t.Run("bad base url", func(t *testing.T) {
		httpClient := new(mockHTTPClient)
		err := NewClient(Radarr, config.ArrConfig{BaseURL: "://bad", APIKey: "k"}, httpClient).Send(context.Background(), matrix)
		require.Error(t, err)
		httpClient.AssertNotCalled(t, "Do", mock.Anything)
	})
}
