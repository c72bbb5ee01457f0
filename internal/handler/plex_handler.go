package handler

import (
	"context"
	"net/http"

	"github.com/finearr/finearr/internal/models"
	"github.com/gin-gonic/gin"
)

// PlexBroker runs the Plex sign-in handshake.
type PlexBroker interface {
	Issue(ctx context.Context) (models.PinResponse, error)
	Check(ctx context.Context, id string) (models.PinStatus, error)
	Login(ctx context.Context, plexToken string) (string, models.User, error)
	AutoLogin(ctx context.Context, sessionToken string) (models.User, error)
}

// PlexHandler handles the Plex authentication endpoints.
type PlexHandler struct {
	broker PlexBroker
}

// NewPlexHandler creates a new PlexHandler instance.
func NewPlexHandler(broker PlexBroker) *PlexHandler {
	return &PlexHandler{broker: broker}
}

// CreatePin starts a sign-in.
func (h *PlexHandler) CreatePin(c *gin.Context) {
	pin, err := h.broker.Issue(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, pin)
}

// CheckPin reports whether a sign-in has completed.
func (h *PlexHandler) CheckPin(c *gin.Context) {
	status, err := h.broker.Check(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// Login exchanges a Plex token for a session token.
func (h *PlexHandler) Login(c *gin.Context) {
	var payload models.PlexLoginDTO
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondBadRequest(c, "Missing plexToken")
		return
	}

	sessionToken, user, err := h.broker.Login(c.Request.Context(), payload.PlexToken)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"sessionToken": sessionToken,
		"user":         user.View(),
	})
}

// AutoLogin resumes a stored session.
func (h *PlexHandler) AutoLogin(c *gin.Context) {
	var payload models.PlexAutoLoginDTO
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondBadRequest(c, "Missing sessionToken")
		return
	}

	user, err := h.broker.AutoLogin(c.Request.Context(), payload.SessionToken)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user.View()})
}
