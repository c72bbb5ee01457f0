package handler

import (
	"context"
	"net/http"

	"github.com/finearr/finearr/internal/models"
	"github.com/finearr/finearr/internal/validation"
	"github.com/gin-gonic/gin"
)

// UserService manages user preferences.
type UserService interface {
	UpdateBackground(ctx context.Context, username, background string) error
}

// UserHandler handles user preference endpoints.
type UserHandler struct {
	users     UserService
	validator *validation.Validator
}

// NewUserHandler creates a new UserHandler instance.
func NewUserHandler(users UserService, validator *validation.Validator) *UserHandler {
	return &UserHandler{
		users:     users,
		validator: validator,
	}
}

// UpdateBackground stores the user's background choice.
func (h *UserHandler) UpdateBackground(c *gin.Context) {
	var payload models.BackgroundDTO
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondBadRequest(c, "Invalid request payload: "+err.Error())
		return
	}
	if err := h.validator.ValidateBackground(payload.Background); err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	if err := h.users.UpdateBackground(c.Request.Context(), payload.Username, payload.Background); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":     "updated",
		"background": payload.Background,
	})
}
