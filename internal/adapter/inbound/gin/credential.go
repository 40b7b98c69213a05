package gin

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/elevare/server/internal/port/inbound"
)

// CredentialHandler manages the user's provider API key.
type CredentialHandler struct {
	domain inbound.CredentialDomain
	logger *zap.Logger
}

// NewCredentialHandler creates a new credential handler.
func NewCredentialHandler(domain inbound.CredentialDomain, logger *zap.Logger) *CredentialHandler {
	return &CredentialHandler{domain: domain, logger: logger}
}

// RegisterRoutes registers credential routes on an authenticated group.
func (h *CredentialHandler) RegisterRoutes(r *gin.RouterGroup) {
	creds := r.Group("/credentials")
	{
		creds.GET("/provider-key", h.Status)
		creds.PUT("/provider-key", h.SetKey)
		creds.DELETE("/provider-key", h.DeleteKey)
	}
}

// Status handles GET /credentials/provider-key.
func (h *CredentialHandler) Status(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	status, err := h.domain.Status(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, status)
}

// SetKey handles PUT /credentials/provider-key.
func (h *CredentialHandler) SetKey(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req struct {
		APIKey string `json:"api_key" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalid(c, "api_key is required")
		return
	}

	status, err := h.domain.SetAPIKey(c.Request.Context(), userID, req.APIKey)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, status)
}

// DeleteKey handles DELETE /credentials/provider-key.
func (h *CredentialHandler) DeleteKey(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	if err := h.domain.DeleteAPIKey(c.Request.Context(), userID); err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.Status(http.StatusNoContent)
}
