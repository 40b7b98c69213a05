package gin

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/elevare/server/internal/domain/billing"
	"github.com/elevare/server/internal/port/inbound"
	"github.com/elevare/server/internal/utils/middleware"
)

// SubscriptionResponse is the subscription snapshot served to clients.
type SubscriptionResponse struct {
	Plan                string     `json:"plan"`
	Status              string     `json:"status"`
	CreditsRemaining    int64      `json:"creditsRemaining"`
	MonthlyCreditsLimit int64      `json:"monthlyCreditsLimit"`
	RenewalDate         *time.Time `json:"renewalDate"`
	Unlimited           bool       `json:"unlimited"`
}

func toSubscriptionResponse(sub *billing.Subscription) *SubscriptionResponse {
	resp := &SubscriptionResponse{
		Plan:                sub.Plan().String(),
		Status:              sub.Status().String(),
		CreditsRemaining:    sub.CreditsRemaining(),
		MonthlyCreditsLimit: sub.MonthlyCreditsLimit(),
		Unlimited:           sub.IsUnlimited(),
	}
	if renewal := sub.RenewalDate(); !renewal.IsZero() {
		resp.RenewalDate = &renewal
	}
	return resp
}

// SubscriptionHandler handles subscription, guard and checkout requests.
type SubscriptionHandler struct {
	domain inbound.SubscriptionDomain
	logger *zap.Logger
}

// NewSubscriptionHandler creates a new subscription handler.
func NewSubscriptionHandler(domain inbound.SubscriptionDomain, logger *zap.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{domain: domain, logger: logger}
}

// RegisterRoutes registers subscription routes on an authenticated group.
func (h *SubscriptionHandler) RegisterRoutes(r *gin.RouterGroup) {
	sub := r.Group("/subscription")
	{
		sub.GET("", h.GetSubscription)
		sub.POST("/refetch", h.Refetch)
		sub.GET("/guard", h.Guard)
	}
	r.GET("/plans", h.ListPlans)
	r.POST("/billing/checkout", h.CreateCheckout)
}

// GetSubscription handles GET /subscription.
func (h *SubscriptionHandler) GetSubscription(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	if err := h.domain.RegisterContact(ctx, userID, middleware.GetEmail(c), middleware.GetName(c)); err != nil {
		h.logger.Warn("register contact failed", zap.String("user_id", userID), zap.Error(err))
	}

	sub, err := h.domain.GetSubscription(ctx, userID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, toSubscriptionResponse(sub))
}

// Refetch handles POST /subscription/refetch. When the reload fails and a
// previous snapshot exists, the stale snapshot is served with stale=true.
func (h *SubscriptionHandler) Refetch(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	sub, err := h.domain.RefetchSubscription(c.Request.Context(), userID)
	if err != nil && sub == nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"subscription": toSubscriptionResponse(sub),
		"stale":        err != nil,
	})
}

// Guard handles GET /subscription/guard?required=N.
func (h *SubscriptionHandler) Guard(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var required int64 = 1
	if raw := c.Query("required"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n < 0 {
			respondInvalid(c, "required must be a non-negative integer")
			return
		}
		required = n
	}

	decision := h.domain.CheckCredits(c.Request.Context(), userID, billing.GuardOptions{
		Required:    required,
		Message:     c.Query("message"),
		ShowLoading: c.Query("show_loading") == "true",
	})
	c.JSON(http.StatusOK, decision)
}

// ListPlans handles GET /plans.
func (h *SubscriptionHandler) ListPlans(c *gin.Context) {
	plans, err := h.domain.ListPlans(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	response := make([]gin.H, len(plans))
	for i, plan := range plans {
		response[i] = gin.H{
			"id":              plan.Type,
			"name":            plan.Name,
			"monthly_credits": plan.MonthlyCredits,
			"unlimited":       plan.IsUnlimited(),
			"features":        plan.Features,
		}
	}

	c.JSON(http.StatusOK, gin.H{"plans": response})
}

// CreateCheckout handles POST /billing/checkout.
func (h *SubscriptionHandler) CreateCheckout(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req struct {
		Plan string `json:"plan" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalid(c, "plan is required")
		return
	}

	session, err := h.domain.CreateCheckout(c.Request.Context(), userID, middleware.GetEmail(c), req.Plan)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": session.URL})
}

// WebhookHandler handles payment provider webhooks.
type WebhookHandler struct {
	domain inbound.SubscriptionDomain
	logger *zap.Logger
}

// NewWebhookHandler creates a new webhook handler.
func NewWebhookHandler(domain inbound.SubscriptionDomain, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{domain: domain, logger: logger}
}

// RegisterRoutes registers webhook routes on an unauthenticated group.
func (h *WebhookHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/webhooks/stripe", h.HandleStripeWebhook)
}

// maxWebhookBody bounds webhook payloads.
const maxWebhookBody = 1 << 16

// HandleStripeWebhook handles POST /webhooks/stripe.
func (h *WebhookHandler) HandleStripeWebhook(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody)
	payload, err := c.GetRawData()
	if err != nil {
		respondInvalid(c, "failed to read request body")
		return
	}

	if err := h.domain.HandleWebhook(c.Request.Context(), payload, c.GetHeader("Stripe-Signature")); err != nil {
		h.logger.Warn("stripe webhook rejected", zap.Error(err))
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}
