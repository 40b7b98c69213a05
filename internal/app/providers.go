package app

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/wire"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	// Domains
	"github.com/elevare/server/internal/domain/billing"
	"github.com/elevare/server/internal/domain/credential"
	"github.com/elevare/server/internal/domain/generation"
	"github.com/elevare/server/internal/domain/ledger"
	"github.com/elevare/server/internal/domain/notification"
	"github.com/elevare/server/internal/model"

	// Inbound adapters
	ginadapter "github.com/elevare/server/internal/adapter/inbound/gin"

	// Ports
	"github.com/elevare/server/internal/port/outbound"

	// Outbound adapters
	"github.com/elevare/server/internal/adapter/outbound/crypto"
	"github.com/elevare/server/internal/adapter/outbound/email"
	"github.com/elevare/server/internal/adapter/outbound/gemini"
	"github.com/elevare/server/internal/adapter/outbound/memory"
	"github.com/elevare/server/internal/adapter/outbound/postgres"
	redisadapter "github.com/elevare/server/internal/adapter/outbound/redis"
	"github.com/elevare/server/internal/adapter/outbound/s3"
	"github.com/elevare/server/internal/adapter/outbound/stripe"

	// Infrastructure
	"github.com/elevare/server/internal/infra/config"
	"github.com/elevare/server/internal/infra/events"
	"github.com/elevare/server/internal/infra/httpclient"
	"github.com/elevare/server/internal/shared/cache"
	"github.com/elevare/server/internal/shared/database"
	"github.com/elevare/server/internal/shared/logger"

	// Utils
	"github.com/elevare/server/internal/utils/metrics"
	"github.com/elevare/server/internal/utils/middleware"
)

// Version is reported by /health. Set at build time with -ldflags.
var Version = "dev"

// ===== Infrastructure Providers =====

// InfraSet provides infrastructure dependencies.
var InfraSet = wire.NewSet(
	ProvideLogger,
	ProvideDatabase,
	ProvideRedisClient,
	ProvideHTTPClient,
	ProvideRegistry,
	ProvideMetrics,
	ProvideRateLimiter,
	ProvideAggregateCache,
	ProvideEventBus,
)

// ProvideLogger creates the zap logger.
func ProvideLogger(cfg *config.Config) (*zap.Logger, func(), error) {
	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})
	if err != nil {
		return nil, nil, err
	}
	return log, func() { _ = log.Sync() }, nil
}

// ProvideDatabase creates a database connection.
func ProvideDatabase(cfg *config.Config, log *zap.Logger) (*gorm.DB, func(), error) {
	db, err := database.New(&cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := database.Close(db); err != nil {
			log.Warn("close database", zap.Error(err))
		}
	}
	return db, cleanup, nil
}

// ProvideRedisClient creates a Redis client. It returns nil when Redis is
// not configured or unreachable; callers fall back to in-memory stores.
func ProvideRedisClient(cfg *config.Config, log *zap.Logger) (*goredis.Client, func()) {
	if !cfg.Redis.Enabled() {
		return nil, func() {}
	}
	client, err := cache.NewRedisClient(&cfg.Redis)
	if err != nil {
		log.Warn("Redis connection failed, continuing with in-memory stores", zap.Error(err))
		return nil, func() {}
	}
	return client, func() { _ = cache.Close(client) }
}

// ProvideHTTPClient creates the shared provider HTTP client.
func ProvideHTTPClient(cfg *config.Config) *http.Client {
	return httpclient.New(cfg.HTTPClient, httpclient.WithUserAgent("elevare-server/"+Version))
}

// ProvideRegistry creates the Prometheus registry served on /metrics.
func ProvideRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// ProvideMetrics creates a metrics instance.
func ProvideMetrics(cfg *config.Config, reg *prometheus.Registry) *metrics.Metrics {
	return metrics.New(cfg.Metrics.Namespace, reg)
}

// ProvideRateLimiter creates a rate limiter, in memory without Redis.
func ProvideRateLimiter(redis *goredis.Client) outbound.RateLimiterPort {
	if redis == nil {
		return memory.NewRateLimiter()
	}
	return redisadapter.NewRateLimiter(redis)
}

// ProvideAggregateCache creates the usage aggregate cache, in memory without Redis.
func ProvideAggregateCache(redis *goredis.Client, m *metrics.Metrics) outbound.AggregateCachePort {
	var c outbound.AggregateCachePort
	if redis == nil {
		c = memory.NewAggregateCache()
	} else {
		c = redisadapter.NewAggregateCache(redis)
	}
	return metrics.InstrumentCache(c, m)
}

// ProvideEventBus creates the asynchronous domain event bus.
func ProvideEventBus(log *zap.Logger) (*events.Bus, func()) {
	bus := events.NewAsyncBus(log)
	return bus, bus.Close
}

// ===== Outbound Providers =====

// OutboundSet provides outbound adapters.
var OutboundSet = wire.NewSet(
	postgres.NewPlanAdapter,
	postgres.NewSubscriptionAdapter,
	postgres.NewWebhookEventAdapter,
	postgres.NewUsageLedgerAdapter,
	postgres.NewProviderCredentialAdapter,
	ProvidePaymentGateway,
	ProvideAssetStorage,
	ProvideGenAI,
	ProvideCrypto,
	ProvideEmailSender,
)

// ProvidePaymentGateway creates the Stripe gateway. Nil disables checkout.
func ProvidePaymentGateway(cfg *config.Config, log *zap.Logger) outbound.PaymentGatewayPort {
	if !cfg.Stripe.Enabled() {
		log.Info("Stripe not configured, checkout disabled")
		return nil
	}
	return stripe.NewGateway(&stripe.Config{
		APIKey:        cfg.Stripe.SecretKey,
		WebhookSecret: cfg.Stripe.WebhookSecret,
	})
}

// ProvideAssetStorage creates the S3 asset storage. Nil returns videos inline.
func ProvideAssetStorage(cfg *config.Config, log *zap.Logger) (outbound.AssetStoragePort, error) {
	storageCfg := &s3.Config{
		Endpoint:        cfg.Storage.Endpoint,
		Region:          cfg.Storage.Region,
		AccessKeyID:     cfg.Storage.AccessKeyID,
		SecretAccessKey: cfg.Storage.SecretAccessKey,
		Bucket:          cfg.Storage.Bucket,
	}
	if !storageCfg.Enabled() {
		log.Info("Asset storage not configured, videos are returned inline")
		return nil, nil
	}
	storage, err := s3.NewAssetStorage(context.Background(), storageCfg)
	if err != nil {
		return nil, err
	}
	return storage, nil
}

// ProvideGenAI creates the Gemini adapter.
func ProvideGenAI(cfg *config.Config, client *http.Client, m *metrics.Metrics, log *zap.Logger) outbound.GenAIPort {
	adapter := gemini.NewAdapter(client, gemini.Config{
		BaseURL:             cfg.Gemini.BaseURL,
		TextModel:           cfg.Gemini.TextModel,
		ImageModel:          cfg.Gemini.ImageModel,
		VideoModel:          cfg.Gemini.VideoModel,
		PollInitialInterval: cfg.Gemini.PollInitialInterval,
		PollMaxInterval:     cfg.Gemini.PollMaxInterval,
		PollMultiplier:      cfg.Gemini.PollMultiplier,
		PollMaxAttempts:     cfg.Gemini.PollMaxAttempts,
		PollTimeout:         cfg.Gemini.PollTimeout,
		MaxVideoBytes:       cfg.Gemini.MaxVideoBytes,
		BreakerMaxFailures:  cfg.Gemini.BreakerMaxFailures,
		BreakerOpenTimeout:  cfg.Gemini.BreakerOpenTimeout,
	}, log.Named("gemini"))
	adapter.SetRecorder(m)
	return adapter
}

// ProvideCrypto creates the credential encryption adapter.
func ProvideCrypto(cfg *config.Config) (outbound.CryptoPort, error) {
	return crypto.NewCryptoAdapter(cfg.Auth.MasterKey)
}

// ProvideEmailSender creates the email sender.
func ProvideEmailSender(cfg *config.Config, log *zap.Logger) outbound.EmailSenderPort {
	if cfg.Email.Provider != "smtp" || cfg.Email.SMTP.Host == "" {
		return email.NewNoopSender(log)
	}
	return email.NewSMTPSender(&email.SMTPConfig{
		Host:        cfg.Email.SMTP.Host,
		Port:        cfg.Email.SMTP.Port,
		User:        cfg.Email.SMTP.User,
		Password:    cfg.Email.SMTP.Password,
		FromAddress: cfg.Email.FromAddress,
		FromName:    cfg.Email.FromName,
		ImplicitTLS: cfg.Email.SMTP.ImplicitTLS,
	}, log)
}

// ===== Domain Providers =====

// DomainSet provides domain services.
var DomainSet = wire.NewSet(
	ProvideBillingDomain,
	ProvideLedgerDomain,
	ProvideCredentialDomain,
	ProvideGenerationDomain,
	ProvideNotifier,
)

// ProvideBillingDomain creates the billing domain.
func ProvideBillingDomain(
	cfg *config.Config,
	planDB outbound.PlanDatabasePort,
	subscriptionDB outbound.SubscriptionDatabasePort,
	webhookDB outbound.WebhookEventDatabasePort,
	gateway outbound.PaymentGatewayPort,
	bus *events.Bus,
	log *zap.Logger,
) *billing.Domain {
	catalogue := billing.DefaultCatalogue().WithPriceIDs(map[model.PlanType]string{
		model.PlanTypeEssencial:    cfg.Billing.EssencialPriceID,
		model.PlanTypeProfissional: cfg.Billing.ProfissionalPriceID,
	})
	return billing.NewBillingDomain(
		planDB,
		subscriptionDB,
		webhookDB,
		gateway,
		bus,
		catalogue,
		billing.Config{
			CheckoutSuccessURL: cfg.Billing.CheckoutSuccessURL,
			CheckoutCancelURL:  cfg.Billing.CheckoutCancelURL,
			SnapshotTTL:        cfg.Billing.SnapshotTTL,
			LowCreditThreshold: cfg.Billing.LowCreditThreshold,
		},
		log.Named("billing"),
	)
}

// ProvideLedgerDomain creates the usage ledger domain.
func ProvideLedgerDomain(
	cfg *config.Config,
	db outbound.UsageLedgerDatabasePort,
	aggregates outbound.AggregateCachePort,
	log *zap.Logger,
) *ledger.Domain {
	return ledger.NewLedgerDomain(db, aggregates, ledger.Config{
		SummaryTTL:   cfg.Ledger.SummaryTTL,
		HistoryLimit: cfg.Ledger.HistoryLimit,
	}, log.Named("ledger"))
}

// ProvideCredentialDomain creates the provider credential domain.
func ProvideCredentialDomain(
	cfg *config.Config,
	db outbound.CredentialDatabasePort,
	cryptoPort outbound.CryptoPort,
	log *zap.Logger,
) *credential.Domain {
	return credential.NewCredentialDomain(db, cryptoPort, credential.Config{
		Provider:     "gemini",
		ServerAPIKey: cfg.Gemini.APIKey,
	}, log.Named("credential"))
}

// ProvideGenerationDomain creates the generation workflow.
func ProvideGenerationDomain(
	cfg *config.Config,
	billingDomain *billing.Domain,
	ledgerDomain *ledger.Domain,
	provider outbound.GenAIPort,
	credentials *credential.Domain,
	storage outbound.AssetStoragePort,
	bus *events.Bus,
	m *metrics.Metrics,
	log *zap.Logger,
) *generation.Domain {
	costs := make(map[model.FeatureType]int64, len(cfg.Generation.Costs))
	for name, cost := range cfg.Generation.Costs {
		if feature := model.FeatureType(name); feature.IsValid() {
			costs[feature] = cost
		} else {
			log.Warn("ignoring cost of unknown feature", zap.String("feature", name))
		}
	}

	return generation.NewGenerationDomain(
		billingDomain.StateProvider(),
		billingDomain.Guard(),
		ledgerDomain,
		provider,
		credentials,
		storage,
		generation.NewRegistry(),
		bus,
		m,
		generation.Config{
			Costs:          costs,
			TextModel:      cfg.Gemini.TextModel,
			ImageModel:     cfg.Gemini.ImageModel,
			VideoModel:     cfg.Gemini.VideoModel,
			AssetPrefix:    cfg.Generation.AssetPrefix,
			AssetURLExpiry: cfg.Generation.AssetURLExpiry,
		},
		log.Named("generation"),
	)
}

// ProvideNotifier creates the lifecycle email notifier and subscribes it
// to domain events.
func ProvideNotifier(
	cfg *config.Config,
	sender outbound.EmailSenderPort,
	billingDomain *billing.Domain,
	bus *events.Bus,
	log *zap.Logger,
) *notification.Notifier {
	notifier := notification.NewNotifier(sender, billingDomain, notification.Config{
		AppURL:             cfg.Email.AppURL,
		UpgradeURL:         cfg.Email.UpgradeURL,
		CreditsLowCooldown: cfg.Email.CreditsLowCooldown,
		SendTimeout:        cfg.Email.SendTimeout,
	}, log.Named("notification"))
	bus.Register(notifier)
	return notifier
}

// ===== HTTP Providers =====

// HTTPSet provides the HTTP surface.
var HTTPSet = wire.NewSet(
	ProvideTokenValidator,
	ProvideRoleResolver,
	ProvideHandlers,
	ProvideRouter,
)

// ProvideTokenValidator creates the access token validator.
func ProvideTokenValidator(cfg *config.Config) (middleware.TokenValidator, error) {
	return middleware.NewJWTValidator(middleware.JWTConfig{
		Secret:   cfg.Auth.JWTSecret,
		Issuer:   cfg.Auth.JWTIssuer,
		Audience: cfg.Auth.JWTAudience,
		Leeway:   cfg.Auth.JWTLeeway,
	})
}

// ProvideRoleResolver creates the admin role resolver.
func ProvideRoleResolver(cfg *config.Config) *middleware.RoleResolver {
	return middleware.NewRoleResolver(cfg.AccessControl.AdminEmails, cfg.AccessControl.AdminUserIDs)
}

// ProvideHandlers creates every HTTP handler.
func ProvideHandlers(
	cfg *config.Config,
	billingDomain *billing.Domain,
	generationDomain *generation.Domain,
	ledgerDomain *ledger.Domain,
	credentialDomain *credential.Domain,
	db *gorm.DB,
	redis *goredis.Client,
	m *metrics.Metrics,
	log *zap.Logger,
) ginadapter.Handlers {
	httpLog := log.Named("http")

	checks := map[string]ginadapter.HealthCheck{
		"database": func(ctx context.Context) error { return database.Ping(ctx, db) },
	}
	if redis != nil {
		checks["redis"] = func(ctx context.Context) error { return redis.Ping(ctx).Err() }
	}

	return ginadapter.Handlers{
		Subscription: ginadapter.NewSubscriptionHandler(billingDomain, httpLog),
		Webhook:      ginadapter.NewWebhookHandler(billingDomain, httpLog),
		Generation:   ginadapter.NewGenerationHandler(generationDomain, httpLog),
		Stream:       ginadapter.NewStreamHandler(generationDomain.Registry(), m.StreamConnections, cfg.CORS.AllowOrigins, httpLog),
		Credential:   ginadapter.NewCredentialHandler(credentialDomain, httpLog),
		Usage:        ginadapter.NewUsageHandler(ledgerDomain, httpLog),
		CacheAdmin:   ginadapter.NewCacheAdminHandler(ledgerDomain, httpLog),
		Health:       ginadapter.NewHealthHandler(Version, checks),
	}
}

// ProvideRouter creates the gin engine.
func ProvideRouter(
	cfg *config.Config,
	handlers ginadapter.Handlers,
	validator middleware.TokenValidator,
	roles *middleware.RoleResolver,
	limiter outbound.RateLimiterPort,
	redis *goredis.Client,
	m *metrics.Metrics,
	reg *prometheus.Registry,
	log *zap.Logger,
) *gin.Engine {
	// Idempotency replays need a shared store.
	var idempotencyStore goredis.UniversalClient
	if redis != nil {
		idempotencyStore = redis
	}

	rateLimit, generationLimit := 0, 0
	if cfg.RateLimit.Enabled {
		rateLimit = cfg.RateLimit.APILimit
		generationLimit = cfg.RateLimit.GenerationLimit
	}

	return ginadapter.NewRouter(ginadapter.RouterConfig{
		Debug:             cfg.Server.Debug,
		CORS:              middleware.CORSConfig{AllowOrigins: cfg.CORS.AllowOrigins},
		RateLimit:         rateLimit,
		RateWindow:        cfg.RateLimit.APIWindow,
		GenerationLimit:   generationLimit,
		GenerationWindow:  cfg.RateLimit.GenerationWindow,
		IdempotentTTL:     cfg.RateLimit.IdempotencyTTL,
		GenerationLockTTL: cfg.Generation.LockTTL,
	}, ginadapter.RouterDeps{
		Validator:   validator,
		Roles:       roles,
		RateLimiter: limiter,
		Redis:       idempotencyStore,
		Metrics:     m,
		Gatherer:    reg,
		Logger:      log.Named("http"),
	}, handlers)
}

// AppSet is the complete provider set.
var AppSet = wire.NewSet(
	InfraSet,
	OutboundSet,
	DomainSet,
	HTTPSet,
)
