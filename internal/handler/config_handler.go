package handler

import (
	"net/http"

	"github.com/finearr/finearr/internal/config"
	"github.com/gin-gonic/gin"
)

// ConfigHandler exposes the client-facing settings.
type ConfigHandler struct {
	cfg *config.Config
}

// NewConfigHandler creates a new ConfigHandler instance.
func NewConfigHandler(cfg *config.Config) *ConfigHandler {
	return &ConfigHandler{cfg: cfg}
}

// GetConfig returns the port and background settings.
func (h *ConfigHandler) GetConfig(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"port":                     h.cfg.Server.Port,
		"defaultBackground":        h.cfg.UI.DefaultBackground,
		"backgroundOverlayOpacity": h.cfg.UI.BackgroundOverlayOpacity,
	})
}
