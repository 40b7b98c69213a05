package gin

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/elevare/server/internal/port/inbound"
)

// UsageHandler serves usage aggregates and history.
type UsageHandler struct {
	domain inbound.UsageDomain
	logger *zap.Logger
}

// NewUsageHandler creates a new usage handler.
func NewUsageHandler(domain inbound.UsageDomain, logger *zap.Logger) *UsageHandler {
	return &UsageHandler{domain: domain, logger: logger}
}

// RegisterRoutes registers usage routes on an authenticated group.
func (h *UsageHandler) RegisterRoutes(r *gin.RouterGroup) {
	usage := r.Group("/usage")
	{
		usage.GET("", h.Summary)
		usage.GET("/history", h.History)
	}
}

// Summary handles GET /usage.
func (h *UsageHandler) Summary(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	summary, err := h.domain.Summary(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}

// History handles GET /usage/history?limit=N.
func (h *UsageHandler) History(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			respondInvalid(c, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	entries, err := h.domain.History(c.Request.Context(), userID, limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

// CacheAdminHandler exposes cache administration. Authorization is decided
// by the domain from the caller's role.
type CacheAdminHandler struct {
	domain inbound.UsageDomain
	logger *zap.Logger
}

// NewCacheAdminHandler creates a new cache administration handler.
func NewCacheAdminHandler(domain inbound.UsageDomain, logger *zap.Logger) *CacheAdminHandler {
	return &CacheAdminHandler{domain: domain, logger: logger}
}

// RegisterRoutes registers admin cache routes on an authenticated group.
func (h *CacheAdminHandler) RegisterRoutes(r *gin.RouterGroup) {
	cache := r.Group("/admin/cache")
	{
		cache.GET("/stats", h.GetStats)
		cache.POST("/stats/reset", h.ResetStats)
		cache.POST("/clear", h.Clear)
		cache.DELETE("/keys/*key", h.DeleteKey)
		cache.POST("/delete-pattern", h.DeletePattern)
	}
}

// fail writes {success:false, error:{...}} with the mapped status.
func (h *CacheAdminHandler) fail(c *gin.Context, err error) {
	appErr := toAppError(err)
	if appErr.StatusCode >= http.StatusInternalServerError {
		h.logger.Error("cache administration failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(appErr.StatusCode, gin.H{
		"success": false,
		"error":   appErr.ToResponse().Error,
	})
}

// GetStats handles GET /admin/cache/stats.
func (h *CacheAdminHandler) GetStats(c *gin.Context) {
	stats, err := h.domain.GetStats(c.Request.Context(), callerFrom(c))
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"stats":    stats,
		"hit_rate": stats.HitRate(),
	})
}

// ResetStats handles POST /admin/cache/stats/reset.
func (h *CacheAdminHandler) ResetStats(c *gin.Context) {
	if err := h.domain.ResetStats(c.Request.Context(), callerFrom(c)); err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Clear handles POST /admin/cache/clear.
func (h *CacheAdminHandler) Clear(c *gin.Context) {
	n, err := h.domain.Clear(c.Request.Context(), callerFrom(c))
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "deleted": n})
}

// DeleteKey handles DELETE /admin/cache/keys/*key. Keys may contain slashes.
func (h *CacheAdminHandler) DeleteKey(c *gin.Context) {
	key := c.Param("key")
	if len(key) > 0 && key[0] == '/' {
		key = key[1:]
	}

	existed, err := h.domain.DeleteKey(c.Request.Context(), callerFrom(c), key)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "deleted": existed, "key": key})
}

// DeletePattern handles POST /admin/cache/delete-pattern.
func (h *CacheAdminHandler) DeletePattern(c *gin.Context) {
	var req struct {
		Pattern string `json:"pattern"`
	}
	// A malformed body leaves the pattern empty; the domain authorizes
	// before validating it.
	_ = c.ShouldBindJSON(&req)

	n, err := h.domain.DeletePattern(c.Request.Context(), callerFrom(c), req.Pattern)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "deleted": n, "pattern": req.Pattern})
}
