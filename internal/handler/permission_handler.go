package handler

import (
	"context"
	"net/http"

	"github.com/finearr/finearr/internal/models"
	"github.com/gin-gonic/gin"
)

// PermissionService reads and updates the permission policy.
type PermissionService interface {
	Policy(ctx context.Context) (models.PermissionPolicy, error)
	UpdatePolicy(ctx context.Context, patch models.PolicyPatch) (models.PermissionPolicy, error)
}

// PermissionHandler handles the permission policy endpoints.
type PermissionHandler struct {
	permissions PermissionService
}

// NewPermissionHandler creates a new PermissionHandler instance.
func NewPermissionHandler(permissions PermissionService) *PermissionHandler {
	return &PermissionHandler{permissions: permissions}
}

// Get returns the stored policy.
func (h *PermissionHandler) Get(c *gin.Context) {
	policy, err := h.permissions.Policy(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, policy)
}

// Update merges a patch into the policy.
func (h *PermissionHandler) Update(c *gin.Context) {
	var patch models.PolicyPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		respondBadRequest(c, "Invalid request payload: "+err.Error())
		return
	}

	policy, err := h.permissions.UpdatePolicy(c.Request.Context(), patch)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, policy)
}
