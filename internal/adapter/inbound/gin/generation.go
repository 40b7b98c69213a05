package gin

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/elevare/server/internal/domain/generation"
	"github.com/elevare/server/internal/port/inbound"
	"github.com/elevare/server/internal/utils/middleware"
)

// maxGenerationBody bounds generation request bodies.
const maxGenerationBody = 1 << 20

// GenerationHandler handles generation requests.
type GenerationHandler struct {
	domain inbound.GenerationDomain
	logger *zap.Logger
}

// NewGenerationHandler creates a new generation handler.
func NewGenerationHandler(domain inbound.GenerationDomain, logger *zap.Logger) *GenerationHandler {
	return &GenerationHandler{domain: domain, logger: logger}
}

// RegisterRoutes registers generation routes on an authenticated group.
func (h *GenerationHandler) RegisterRoutes(r *gin.RouterGroup) {
	gen := r.Group("/generations")
	{
		gen.POST("/:feature", h.Generate)
		gen.GET("/:feature/state", h.State)
		gen.POST("/:feature/cancel", h.Cancel)
	}
}

// Generate handles POST /generations/:feature.
func (h *GenerationHandler) Generate(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	feature, ok := featureParam(c)
	if !ok {
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxGenerationBody)
	body, err := c.GetRawData()
	if err != nil {
		respondInvalid(c, "failed to read request body")
		return
	}

	req, err := generation.DecodeRequest(feature, body)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	req.RequestID = middleware.GetRequestID(c)

	result, err := h.domain.Generate(c.Request.Context(), userID, req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// State handles GET /generations/:feature/state.
func (h *GenerationHandler) State(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	feature, ok := featureParam(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"snapshot": h.domain.State(userID, feature),
		"cost":     h.domain.CostOf(feature),
	})
}

// Cancel handles POST /generations/:feature/cancel.
func (h *GenerationHandler) Cancel(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	feature, ok := featureParam(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{"cancelled": h.domain.Cancel(userID, feature)})
}
