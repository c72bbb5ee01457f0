// Package middleware provides gin middleware for authentication, request
// logging and metrics.
package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/finearr/finearr/internal/models"
	"github.com/finearr/finearr/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	headerAdminToken  = "X-Admin-Token"
	headerAuth        = "Authorization"
	bearerPrefix      = "Bearer "
	unauthorizedError = "Unauthorized"

	adminContextKey = "admin"
)

// AdminAuthenticator resolves an admin bearer token.
type AdminAuthenticator interface {
	Authenticate(ctx context.Context, token string) (models.AdminView, error)
}

// AdminAuth guards administrative routes.
type AdminAuth struct {
	auth   AdminAuthenticator
	logger *zap.Logger
}

// NewAdminAuth creates the admin guard. A nil logger disables logging.
func NewAdminAuth(auth AdminAuthenticator, logger *zap.Logger) *AdminAuth {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &AdminAuth{
		auth:   auth,
		logger: logger,
	}
}

// Middleware rejects requests without a valid admin token with 401. The
// resolved admin is stored on the context.
func (a *AdminAuth) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := ExtractToken(c)
		if token == "" {
			a.reject(c, "missing token")
			return
		}

		admin, err := a.auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			if service.KindOf(err) != service.KindAuthentication {
				a.logger.Error("Admin authentication failed",
					zap.Error(err),
					zap.String("path", c.Request.URL.Path),
				)
				c.AbortWithStatusJSON(http.StatusInternalServerError, models.ErrorResponse{
					Timestamp: time.Now(),
					Status:    http.StatusInternalServerError,
					Kind:      service.KindInternal,
					Error:     "An unexpected error occurred",
					Path:      c.Request.URL.Path,
				})
				return
			}
			a.reject(c, err.Error())
			return
		}

		c.Set(adminContextKey, admin)
		c.Next()
	}
}

// ExtractToken returns the admin token from the Authorization bearer header
// or, failing that, the X-Admin-Token header.
func ExtractToken(c *gin.Context) string {
	authHeader := c.GetHeader(headerAuth)
	if strings.HasPrefix(authHeader, bearerPrefix) {
		return strings.TrimSpace(strings.TrimPrefix(authHeader, bearerPrefix))
	}

	return strings.TrimSpace(c.GetHeader(headerAdminToken))
}

// AdminFrom returns the admin stored by the guard.
func AdminFrom(c *gin.Context) (models.AdminView, bool) {
	v, ok := c.Get(adminContextKey)
	if !ok {
		return models.AdminView{}, false
	}
	admin, ok := v.(models.AdminView)
	return admin, ok
}

func (a *AdminAuth) reject(c *gin.Context, reason string) {
	a.logger.Warn("unauthorized admin request",
		zap.String("reason", reason),
		zap.String("path", c.Request.URL.Path),
		zap.String("method", c.Request.Method),
		zap.String("remoteAddr", c.ClientIP()),
	)

	c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{
		Timestamp: time.Now(),
		Status:    http.StatusUnauthorized,
		Kind:      service.KindAuthentication,
		Error:     unauthorizedError,
		Path:      c.Request.URL.Path,
	})
}
