package handler

import (
	"context"
	"net/http"

	"github.com/finearr/finearr/internal/middleware"
	"github.com/finearr/finearr/internal/models"
	"github.com/finearr/finearr/internal/validation"
	"github.com/finearr/finearr/pkg/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const headerSessionToken = "X-Session-Token"

// LedgerService records request lifecycle transitions.
type LedgerService interface {
	Submit(ctx context.Context, username, category string, item models.MediaItem) (models.Outcome, models.RequestEntry, error)
	Approve(ctx context.Context, category, id, admin string) (models.RequestEntry, error)
	Deny(ctx context.Context, category, id, admin string) (models.RequestEntry, error)
	Unblacklist(ctx context.Context, category, id, admin string) error
	List(ctx context.Context) (models.LedgerSnapshot, error)
}

// SessionResolver maps a user session token to its user.
type SessionResolver interface {
	Resolve(ctx context.Context, sessionToken string) (models.User, error)
}

// RequestHandler handles request submission and moderation.
type RequestHandler struct {
	ledger    LedgerService
	sessions  SessionResolver
	validator *validation.Validator
}

// NewRequestHandler creates a new RequestHandler instance.
func NewRequestHandler(ledger LedgerService, sessions SessionResolver, validator *validation.Validator) *RequestHandler {
	return &RequestHandler{
		ledger:    ledger,
		sessions:  sessions,
		validator: validator,
	}
}

// List returns pending requests, recent approvals and the blacklist.
func (h *RequestHandler) List(c *gin.Context) {
	snapshot, err := h.ledger.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

// Submit files a request. A session token header takes precedence over the
// username in the body.
func (h *RequestHandler) Submit(c *gin.Context) {
	var payload models.SubmitRequestDTO
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondBadRequest(c, "Invalid request payload: "+err.Error())
		return
	}

	if token := c.GetHeader(headerSessionToken); token != "" {
		user, err := h.sessions.Resolve(c.Request.Context(), token)
		if err != nil {
			respondError(c, err)
			return
		}
		payload.Username = user.Username
	}

	category, err := h.validator.ValidateSubmit(&payload)
	if err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	outcome, entry, err := h.ledger.Submit(c.Request.Context(), payload.Username, string(category), *payload.Item)
	if err != nil {
		respondError(c, err)
		return
	}

	logger.Log.Info("Request submitted",
		zap.String("username", entry.RequestedBy),
		zap.String("category", string(entry.Category)),
		zap.String("itemId", string(entry.ID)),
		zap.String("outcome", string(outcome)),
	)

	c.JSON(http.StatusOK, models.SubmitResponseDTO{Status: outcome, Entry: entry})
}

func adminName(c *gin.Context) string {
	admin, _ := middleware.AdminFrom(c)
	return admin.Username
}

// Approve moves a pending request to the approvals.
func (h *RequestHandler) Approve(c *gin.Context) {
	entry, err := h.ledger.Approve(c.Request.Context(), c.Param("category"), c.Param("id"), adminName(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "approved", "entry": entry})
}

// Deny moves a pending request to the blacklist.
func (h *RequestHandler) Deny(c *gin.Context) {
	entry, err := h.ledger.Deny(c.Request.Context(), c.Param("category"), c.Param("id"), adminName(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "denied", "entry": entry})
}

// Unblacklist removes an item from the blacklist.
func (h *RequestHandler) Unblacklist(c *gin.Context) {
	if err := h.ledger.Unblacklist(c.Request.Context(), c.Param("category"), c.Param("id"), adminName(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "removed"})
}
