package handler

import (
	"context"
	"net/http"

	"github.com/finearr/finearr/internal/middleware"
	"github.com/finearr/finearr/internal/models"
	"github.com/finearr/finearr/internal/validation"
	"github.com/gin-gonic/gin"
)

// AdminService authenticates admins and manages their accounts.
type AdminService interface {
	Login(ctx context.Context, username, password string) (string, models.AdminView, error)
	Logout(ctx context.Context, token string) error
	List(ctx context.Context) ([]models.AdminView, error)
	Create(ctx context.Context, username, password string) ([]models.AdminView, error)
	UpdatePassword(ctx context.Context, username, password string) ([]models.AdminView, error)
	Delete(ctx context.Context, username string) ([]models.AdminView, error)
}

// AdminHandler handles admin sign-in and account management.
type AdminHandler struct {
	admins    AdminService
	validator *validation.Validator
}

// NewAdminHandler creates a new AdminHandler instance.
func NewAdminHandler(admins AdminService, validator *validation.Validator) *AdminHandler {
	return &AdminHandler{
		admins:    admins,
		validator: validator,
	}
}

// Login opens an admin session.
func (h *AdminHandler) Login(c *gin.Context) {
	var payload models.AdminLoginDTO
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondBadRequest(c, "Username and password required")
		return
	}

	token, admin, err := h.admins.Login(c.Request.Context(), payload.Username, payload.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"admin": admin,
		"token": token,
	})
}

// Logout closes the session of the presented token.
func (h *AdminHandler) Logout(c *gin.Context) {
	if err := h.admins.Logout(c.Request.Context(), middleware.ExtractToken(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "logged_out"})
}

// ListAccounts returns every admin.
func (h *AdminHandler) ListAccounts(c *gin.Context) {
	admins, err := h.admins.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"admins": admins})
}

// CreateAccount adds an admin.
func (h *AdminHandler) CreateAccount(c *gin.Context) {
	var payload models.AdminAccountDTO
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondBadRequest(c, "Invalid request payload: "+err.Error())
		return
	}
	if err := h.validator.ValidateAdminAccount(&payload); err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	admins, err := h.admins.Create(c.Request.Context(), payload.Username, payload.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"admins": admins})
}

// UpdateAccount changes an admin's password.
func (h *AdminHandler) UpdateAccount(c *gin.Context) {
	var payload models.AdminAccountDTO
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondBadRequest(c, "Invalid request payload: "+err.Error())
		return
	}

	admins, err := h.admins.UpdatePassword(c.Request.Context(), c.Param("username"), payload.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"admins": admins})
}

// DeleteAccount removes an admin.
func (h *AdminHandler) DeleteAccount(c *gin.Context) {
	admins, err := h.admins.Delete(c.Request.Context(), c.Param("username"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"admins": admins})
}
