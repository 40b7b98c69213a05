package gin

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/elevare/server/internal/port/outbound"
	apperrors "github.com/elevare/server/internal/utils/errors"
	"github.com/elevare/server/internal/utils/metrics"
	"github.com/elevare/server/internal/utils/middleware"
)

// RouterConfig holds the HTTP surface settings.
type RouterConfig struct {
	Debug         bool
	CORS          middleware.CORSConfig
	RateLimit     int
	RateWindow    time.Duration
	IdempotentTTL time.Duration
	// GenerationLimit is a per-route limit for the generation endpoints;
	// 0 disables it.
	GenerationLimit  int
	GenerationWindow time.Duration
	// GenerationLockTTL bounds how long a generation request holds its
	// idempotency lock; it must exceed the slowest generation.
	GenerationLockTTL time.Duration
}

// Handlers groups the HTTP handlers mounted by NewRouter.
type Handlers struct {
	Subscription *SubscriptionHandler
	Webhook      *WebhookHandler
	Generation   *GenerationHandler
	Stream       *StreamHandler
	Credential   *CredentialHandler
	Usage        *UsageHandler
	CacheAdmin   *CacheAdminHandler
	Health       *HealthHandler
}

// RouterDeps are the infrastructure pieces the router's middleware uses.
type RouterDeps struct {
	Validator   middleware.TokenValidator
	Roles       *middleware.RoleResolver
	RateLimiter outbound.RateLimiterPort
	Redis       goredis.UniversalClient
	Metrics     *metrics.Metrics
	Gatherer    prometheus.Gatherer
	Logger      *zap.Logger
}

// NewRouter builds the gin engine with every route under /api/v1.
func NewRouter(cfg RouterConfig, deps RouterDeps, h Handlers) *gin.Engine {
	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.Logging(deps.Logger, "/health", "/metrics"))
	r.Use(middleware.CORS(cfg.CORS))
	if deps.Metrics != nil {
		r.Use(middleware.Metrics(deps.Metrics))
	}

	r.NoRoute(func(c *gin.Context) {
		appErr := apperrors.NotFound("route")
		c.AbortWithStatusJSON(appErr.StatusCode, appErr.ToResponse())
	})

	if h.Health != nil {
		r.GET("/health", h.Health.Health)
	}
	if deps.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	v1 := r.Group("/api/v1")

	// Webhooks authenticate by signature.
	if h.Webhook != nil {
		h.Webhook.RegisterRoutes(v1)
	}

	protected := v1.Group("")
	protected.Use(middleware.RequireAuth(deps.Validator))
	protected.Use(middleware.ResolveRole(deps.Roles))
	if cfg.RateLimit > 0 {
		protected.Use(middleware.RateLimitByUser(deps.RateLimiter, cfg.RateLimit, cfg.RateWindow, deps.Logger))
	}

	if h.Stream != nil {
		h.Stream.RegisterRoutes(protected)
	}
	if h.Credential != nil {
		h.Credential.RegisterRoutes(protected)
	}
	if h.Usage != nil {
		h.Usage.RegisterRoutes(protected)
	}
	if h.CacheAdmin != nil {
		h.CacheAdmin.RegisterRoutes(protected)
	}

	// Retried checkouts and generations replay the stored response.
	idempotent := protected.Group("")
	idempotent.Use(middleware.Idempotency(deps.Redis, middleware.IdempotencyConfig{
		TTL:     cfg.IdempotentTTL,
		LockTTL: cfg.GenerationLockTTL,
		Methods: []string{http.MethodPost},
	}))
	if h.Subscription != nil {
		h.Subscription.RegisterRoutes(idempotent)
	}
	if h.Generation != nil {
		gen := idempotent.Group("")
		if cfg.GenerationLimit > 0 {
			gen.Use(middleware.RateLimitByEndpoint(deps.RateLimiter, cfg.GenerationLimit, cfg.GenerationWindow, deps.Logger))
		}
		h.Generation.RegisterRoutes(gen)
	}

	return r
}
