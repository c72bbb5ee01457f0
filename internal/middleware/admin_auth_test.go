package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/finearr/finearr/internal/models"
	"github.com/finearr/finearr/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type mockAuthenticator struct {
	mock.Mock
}

func (m *mockAuthenticator) Authenticate(ctx context.Context, token string) (models.AdminView, error) {
	args := m.Called(ctx, token)
	return args.Get(0).(models.AdminView), args.Error(1)
}

func newGuardedRouter(auth AdminAuthenticator) *gin.Engine {
	r := gin.New()
	r.Use(NewAdminAuth(auth, nil).Middleware())
	r.GET("/protected", func(c *gin.Context) {
		admin, ok := AdminFrom(c)
		if !ok {
			c.Status(http.StatusTeapot)
			return
		}
		c.JSON(http.StatusOK, gin.H{"admin": admin.Username})
	})
	return r
}

func TestAdminAuth_Middleware_Success(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		headerName string
		value      string
	}{
		{name: "bearer header", headerName: "Authorization", value: "Bearer tok-1"},
		{name: "bearer header with padding", headerName: "Authorization", value: "Bearer  tok-1 "},
		{name: "admin token header", headerName: "X-Admin-Token", value: "tok-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			auth := new(mockAuthenticator)
			auth.On("Authenticate", mock.Anything, "tok-1").Return(models.AdminView{Username: "admin"}, nil)

			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			req.Header.Set(tt.headerName, tt.value)
			w := httptest.NewRecorder()

			newGuardedRouter(auth).ServeHTTP(w, req)

			assert.Equal(t, http.StatusOK, w.Code)
			assert.JSONEq(t, `{"admin":"admin"}`, w.Body.String())
			auth.AssertExpectations(t)
		})
	}
}

func TestAdminAuth_Middleware_Unauthorized(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		headers map[string]string
		authErr error
	}{
		{name: "no headers", headers: map[string]string{}},
		{name: "basic scheme", headers: map[string]string{"Authorization": "Basic abc"}},
		{name: "rejected token", headers: map[string]string{"X-Admin-Token": "bad"}, authErr: &service.AuthenticationError{Message: "Unauthorized"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			auth := new(mockAuthenticator)
			if tt.authErr != nil {
				auth.On("Authenticate", mock.Anything, mock.Anything).Return(models.AdminView{}, tt.authErr)
			}

			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			w := httptest.NewRecorder()

			newGuardedRouter(auth).ServeHTTP(w, req)

			require.Equal(t, http.StatusUnauthorized, w.Code)
			var body models.ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, "Unauthorized", body.Error)
			assert.Equal(t, service.KindAuthentication, body.Kind)
			assert.Equal(t, "/protected", body.Path)
			if tt.authErr == nil {
				auth.AssertNotCalled(t, "Authenticate", mock.Anything, mock.Anything)
			}
		})
	}
}

func TestAdminAuth_Middleware_StoreFailure(t *testing.T) {
	t.Parallel()

	auth := new(mockAuthenticator)
	auth.On("Authenticate", mock.Anything, "tok-1").Return(models.AdminView{}, errors.New("redis down"))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer tok-1")
	w := httptest.NewRecorder()

	newGuardedRouter(auth).ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestExtractToken(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		headers map[string]string
		want    string
	}{
		{name: "bearer wins", headers: map[string]string{"Authorization": "Bearer a", "X-Admin-Token": "b"}, want: "a"},
		{name: "admin header", headers: map[string]string{"X-Admin-Token": "b"}, want: "b"},
		{name: "non bearer authorization", headers: map[string]string{"Authorization": "Token a"}, want: ""},
		{name: "none", headers: map[string]string{}, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			c.Request = httptest.NewRequest(http.MethodPost, "/", nil)
			for k, v := range tt.headers {
				c.Request.Header.Set(k, v)
			}

			assert.Equal(t, tt.want, ExtractToken(c))
		})
	}
}
