// Package handler provides HTTP request handlers for the application.
package handler

import (
	"net/http"
	"time"

	"github.com/finearr/finearr/internal/models"
	"github.com/finearr/finearr/internal/service"
	"github.com/finearr/finearr/pkg/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var kindStatus = map[string]int{
	service.KindValidation:     http.StatusBadRequest,
	service.KindPermission:     http.StatusForbidden,
	service.KindNotFound:       http.StatusNotFound,
	service.KindAuthentication: http.StatusUnauthorized,
	service.KindUpstream:       http.StatusBadGateway,
	service.KindInternal:       http.StatusInternalServerError,
}

func writeError(c *gin.Context, status int, kind, message string) {
	c.JSON(status, models.ErrorResponse{
		Timestamp: time.Now(),
		Status:    status,
		Kind:      kind,
		Error:     message,
		Path:      c.Request.URL.Path,
	})
}

// respondError maps a service error to its status code and error body.
func respondError(c *gin.Context, err error) {
	kind := service.KindOf(err)
	status := kindStatus[kind]

	switch kind {
	case service.KindInternal:
		logger.Log.Error("Unexpected error",
			zap.Error(err),
			zap.String("path", c.Request.URL.Path),
		)
		writeError(c, status, kind, "An unexpected error occurred")
		return
	case service.KindUpstream:
		logger.Log.Error("Upstream error",
			zap.Error(err),
			zap.String("path", c.Request.URL.Path),
		)
	default:
		logger.Log.Warn("Request failed",
			zap.String("kind", kind),
			zap.Error(err),
			zap.String("path", c.Request.URL.Path),
		)
	}

	writeError(c, status, kind, err.Error())
}

func respondBadRequest(c *gin.Context, message string) {
	logger.Log.Warn("Invalid request payload",
		zap.String("error", message),
		zap.String("path", c.Request.URL.Path),
	)
	writeError(c, http.StatusBadRequest, service.KindValidation, message)
}
