package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Redis         RedisConfig         `mapstructure:"redis"`
	HTTPClient    HTTPClientConfig    `mapstructure:"http_client"`
	RateLimit     RateLimitConfig     `mapstructure:"rate_limit"`
	AccessControl AccessControlConfig `mapstructure:"access_control"`
	Auth          AuthConfig          `mapstructure:"auth"`
	CORS          CORSConfig          `mapstructure:"cors"`
	Gemini        GeminiConfig        `mapstructure:"gemini"`
	Generation    GenerationConfig    `mapstructure:"generation"`
	Billing       BillingConfig       `mapstructure:"billing"`
	Ledger        LedgerConfig        `mapstructure:"ledger"`
	Storage       StorageConfig       `mapstructure:"storage"`
	Stripe        StripeConfig        `mapstructure:"stripe"`
	Email         EmailConfig         `mapstructure:"email"`
	Log           LogConfig           `mapstructure:"log"`
	Metrics       MetricsConfig       `mapstructure:"metrics"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Address string `mapstructure:"address"`
	Debug   bool   `mapstructure:"debug"`
	// WriteTimeout must outlast the slowest video generation.
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// DSN returns the database connection string.
func (c *DatabaseConfig) DSN() string {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Database, c.SSLMode,
	)
	if c.Password != "" {
		dsn += fmt.Sprintf(" password=%s", c.Password)
	}
	return dsn
}

// RedisConfig holds Redis configuration. An empty address runs the
// service on in-memory caches and limiters.
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Enabled reports whether a Redis server is configured.
func (c *RedisConfig) Enabled() bool {
	return c.Address != ""
}

// HTTPClientConfig holds settings for the outbound provider HTTP client.
type HTTPClientConfig struct {
	MaxIdleConns        int           `mapstructure:"max_idle_conns"`
	MaxIdleConnsPerHost int           `mapstructure:"max_idle_conns_per_host"`
	MaxConnsPerHost     int           `mapstructure:"max_conns_per_host"`
	IdleConnTimeout     time.Duration `mapstructure:"idle_conn_timeout"`
	DialTimeout         time.Duration `mapstructure:"dial_timeout"`
	TLSHandshakeTimeout time.Duration `mapstructure:"tls_handshake_timeout"`
	ResponseTimeout     time.Duration `mapstructure:"response_timeout"`
	KeepAlive           time.Duration `mapstructure:"keep_alive"`
}

// RateLimitConfig holds per-user API rate limiting and idempotency settings.
type RateLimitConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	APILimit       int           `mapstructure:"api_limit"`
	APIWindow      time.Duration `mapstructure:"api_window"`
	IdempotencyTTL time.Duration `mapstructure:"idempotency_ttl"`
	// GenerationLimit caps generation calls per user and route within
	// GenerationWindow, on top of the API limit.
	GenerationLimit  int           `mapstructure:"generation_limit"`
	GenerationWindow time.Duration `mapstructure:"generation_window"`
}

// AccessControlConfig lists accounts granted the admin role.
type AccessControlConfig struct {
	AdminEmails  []string `mapstructure:"admin_emails"`
	AdminUserIDs []string `mapstructure:"admin_user_ids"`
}

// AuthConfig holds access token validation and secret material.
type AuthConfig struct {
	JWTSecret   string        `mapstructure:"jwt_secret"`
	JWTIssuer   string        `mapstructure:"jwt_issuer"`
	JWTAudience string        `mapstructure:"jwt_audience"`
	JWTLeeway   time.Duration `mapstructure:"jwt_leeway"`
	// MasterKey encrypts user provider keys at rest.
	MasterKey string `mapstructure:"master_key"`
}

// CORSConfig holds browser origin settings for HTTP and websocket.
type CORSConfig struct {
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// GeminiConfig holds provider settings.
type GeminiConfig struct {
	// APIKey is the server key used when a user has not stored their own.
	APIKey              string        `mapstructure:"api_key"`
	BaseURL             string        `mapstructure:"base_url"`
	TextModel           string        `mapstructure:"text_model"`
	ImageModel          string        `mapstructure:"image_model"`
	VideoModel          string        `mapstructure:"video_model"`
	PollInitialInterval time.Duration `mapstructure:"poll_initial_interval"`
	PollMaxInterval     time.Duration `mapstructure:"poll_max_interval"`
	PollMultiplier      float64       `mapstructure:"poll_multiplier"`
	PollMaxAttempts     int           `mapstructure:"poll_max_attempts"`
	PollTimeout         time.Duration `mapstructure:"poll_timeout"`
	MaxVideoBytes       int64         `mapstructure:"max_video_bytes"`
	BreakerMaxFailures  uint32        `mapstructure:"breaker_max_failures"`
	BreakerOpenTimeout  time.Duration `mapstructure:"breaker_open_timeout"`
}

// GenerationConfig holds generation workflow settings.
type GenerationConfig struct {
	// Costs maps feature name to credits charged on success.
	Costs          map[string]int64 `mapstructure:"costs"`
	AssetPrefix    string           `mapstructure:"asset_prefix"`
	AssetURLExpiry time.Duration    `mapstructure:"asset_url_expiry"`
	// LockTTL bounds the idempotency lock of a generation request.
	LockTTL time.Duration `mapstructure:"lock_ttl"`
	// Idle machines older than StateRetention are pruned every PruneInterval.
	StateRetention time.Duration `mapstructure:"state_retention"`
	PruneInterval  time.Duration `mapstructure:"prune_interval"`
}

// BillingConfig holds plan and subscription settings.
type BillingConfig struct {
	SnapshotTTL         time.Duration `mapstructure:"snapshot_ttl"`
	LowCreditThreshold  int64         `mapstructure:"low_credit_threshold"`
	CheckoutSuccessURL  string        `mapstructure:"checkout_success_url"`
	CheckoutCancelURL   string        `mapstructure:"checkout_cancel_url"`
	EssencialPriceID    string        `mapstructure:"essencial_price_id"`
	ProfissionalPriceID string        `mapstructure:"profissional_price_id"`
	SyncPlansOnStart    bool          `mapstructure:"sync_plans_on_start"`
}

// LedgerConfig holds usage ledger settings.
type LedgerConfig struct {
	SummaryTTL   time.Duration `mapstructure:"summary_ttl"`
	HistoryLimit int           `mapstructure:"history_limit"`
}

// StorageConfig holds S3-compatible storage configuration for assets.
type StorageConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	Bucket          string `mapstructure:"bucket"`
}

// StripeConfig holds Stripe configuration.
type StripeConfig struct {
	SecretKey     string `mapstructure:"secret_key"`
	WebhookSecret string `mapstructure:"webhook_secret"`
}

// Enabled reports whether payments are configured.
func (c *StripeConfig) Enabled() bool {
	return c.SecretKey != ""
}

// EmailConfig holds email and notification configuration.
type EmailConfig struct {
	Provider    string     `mapstructure:"provider"` // smtp, noop
	FromAddress string     `mapstructure:"from_address"`
	FromName    string     `mapstructure:"from_name"`
	SMTP        SMTPConfig `mapstructure:"smtp"`
	// Links rendered in templates.
	AppURL             string        `mapstructure:"app_url"`
	UpgradeURL         string        `mapstructure:"upgrade_url"`
	CreditsLowCooldown time.Duration `mapstructure:"credits_low_cooldown"`
	SendTimeout        time.Duration `mapstructure:"send_timeout"`
}

// SMTPConfig holds SMTP configuration.
type SMTPConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	User        string `mapstructure:"user"`
	Password    string `mapstructure:"password"`
	ImplicitTLS bool   `mapstructure:"implicit_tls"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json, console
}

// MetricsConfig holds Prometheus settings.
type MetricsConfig struct {
	Namespace string `mapstructure:"namespace"`
}

// Validate checks settings the server cannot start without.
func (c *Config) Validate() error {
	var errs []error
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("auth.jwt_secret is required"))
	}
	if c.Auth.MasterKey == "" {
		errs = append(errs, errors.New("auth.master_key is required"))
	}
	if c.Server.Address == "" {
		errs = append(errs, errors.New("server.address is required"))
	}
	for feature, cost := range c.Generation.Costs {
		if cost < 0 {
			errs = append(errs, fmt.Errorf("generation.costs.%s must not be negative", feature))
		}
	}
	if c.Stripe.Enabled() && c.Stripe.WebhookSecret == "" {
		errs = append(errs, errors.New("stripe.webhook_secret is required when stripe is enabled"))
	}
	return errors.Join(errs...)
}

// Load loads configuration from .env, file and environment.
func Load() (*Config, error) {
	// Development convenience; a missing .env is not an error.
	_ = godotenv.Load()

	v := viper.New()

	// Set config file name and paths
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	v.AddConfigPath("/etc/elevare")

	// Set defaults
	setDefaults(v)

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// Config file not found, use defaults and env
	}

	// Read from environment variables, e.g. ELEVARE_SERVER_ADDRESS.
	v.SetEnvPrefix("ELEVARE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Unmarshal config
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads secrets and lists from their conventional names.
func applyEnvOverrides(cfg *Config) {
	if secret := os.Getenv("ELEVARE_JWT_SECRET"); secret != "" {
		cfg.Auth.JWTSecret = secret
	}
	if masterKey := os.Getenv("ELEVARE_MASTER_KEY"); masterKey != "" {
		cfg.Auth.MasterKey = masterKey
	}
	if password := os.Getenv("ELEVARE_DB_PASSWORD"); password != "" {
		cfg.Database.Password = password
	}
	if password := os.Getenv("ELEVARE_REDIS_PASSWORD"); password != "" {
		cfg.Redis.Password = password
	}
	if key := os.Getenv("ELEVARE_STORAGE_SECRET_KEY"); key != "" {
		cfg.Storage.SecretAccessKey = key
	}
	if key := os.Getenv("ELEVARE_GEMINI_API_KEY"); key != "" {
		cfg.Gemini.APIKey = key
	}
	// Stripe credentials from environment
	if secretKey := os.Getenv("ELEVARE_STRIPE_SECRET_KEY"); secretKey != "" {
		cfg.Stripe.SecretKey = secretKey
	}
	if webhookSecret := os.Getenv("ELEVARE_STRIPE_WEBHOOK_SECRET"); webhookSecret != "" {
		cfg.Stripe.WebhookSecret = webhookSecret
	}
	// SMTP credentials from environment
	if password := os.Getenv("ELEVARE_SMTP_PASSWORD"); password != "" {
		cfg.Email.SMTP.Password = password
	}

	// Comma-separated lists.
	if s := os.Getenv("ELEVARE_ADMIN_EMAILS"); s != "" {
		cfg.AccessControl.AdminEmails = parseCommaSeparatedList(s)
	}
	if s := os.Getenv("ELEVARE_ADMIN_USER_IDS"); s != "" {
		cfg.AccessControl.AdminUserIDs = parseCommaSeparatedList(s)
	}
	if s := os.Getenv("ELEVARE_CORS_ORIGINS"); s != "" {
		cfg.CORS.AllowOrigins = parseCommaSeparatedList(s)
	}
}

func parseCommaSeparatedList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.debug", false)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 20*time.Minute)
	v.SetDefault("server.idle_timeout", 120*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.database", "elevare")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.conn_max_idle_time", 30*time.Minute)
	v.SetDefault("database.auto_migrate", true)

	// Redis defaults
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.db", 0)

	// HTTP client defaults
	v.SetDefault("http_client.max_idle_conns", 100)
	v.SetDefault("http_client.max_idle_conns_per_host", 20)
	v.SetDefault("http_client.max_conns_per_host", 50)
	v.SetDefault("http_client.idle_conn_timeout", 90*time.Second)
	v.SetDefault("http_client.dial_timeout", 30*time.Second)
	v.SetDefault("http_client.tls_handshake_timeout", 10*time.Second)
	v.SetDefault("http_client.response_timeout", 5*time.Minute)
	v.SetDefault("http_client.keep_alive", 30*time.Second)

	// Rate limit defaults
	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.api_limit", 60)
	v.SetDefault("rate_limit.api_window", time.Minute)
	v.SetDefault("rate_limit.idempotency_ttl", 24*time.Hour)
	v.SetDefault("rate_limit.generation_limit", 10)
	v.SetDefault("rate_limit.generation_window", time.Minute)

	// Access control defaults
	v.SetDefault("access_control.admin_emails", []string{})
	v.SetDefault("access_control.admin_user_ids", []string{})

	// Auth defaults
	v.SetDefault("auth.jwt_audience", "authenticated")
	v.SetDefault("auth.jwt_leeway", 30*time.Second)

	// CORS defaults
	v.SetDefault("cors.allow_origins", []string{"*"})

	// Gemini defaults
	v.SetDefault("gemini.base_url", "https://generativelanguage.googleapis.com")
	v.SetDefault("gemini.text_model", "gemini-2.5-flash")
	v.SetDefault("gemini.image_model", "gemini-2.5-flash-image")
	v.SetDefault("gemini.video_model", "veo-3.0-fast-generate-001")
	v.SetDefault("gemini.poll_initial_interval", 10*time.Second)
	v.SetDefault("gemini.poll_max_interval", time.Minute)
	v.SetDefault("gemini.poll_multiplier", 1.5)
	v.SetDefault("gemini.poll_max_attempts", 60)
	v.SetDefault("gemini.poll_timeout", 15*time.Minute)
	v.SetDefault("gemini.max_video_bytes", 256<<20)
	v.SetDefault("gemini.breaker_max_failures", 5)
	v.SetDefault("gemini.breaker_open_timeout", 30*time.Second)

	// Generation defaults
	v.SetDefault("generation.costs", map[string]int64{
		"ebook": 1, "ad": 1, "post": 1, "prompt": 1, "image": 1, "video": 1,
	})
	v.SetDefault("generation.asset_prefix", "generations/")
	v.SetDefault("generation.asset_url_expiry", 24*time.Hour)
	v.SetDefault("generation.lock_ttl", 20*time.Minute)
	v.SetDefault("generation.state_retention", time.Hour)
	v.SetDefault("generation.prune_interval", 10*time.Minute)

	// Billing defaults
	v.SetDefault("billing.snapshot_ttl", 30*time.Second)
	v.SetDefault("billing.low_credit_threshold", 1)
	v.SetDefault("billing.sync_plans_on_start", true)

	// Ledger defaults
	v.SetDefault("ledger.summary_ttl", 5*time.Minute)
	v.SetDefault("ledger.history_limit", 50)

	// Storage defaults
	v.SetDefault("storage.region", "auto")

	// Email defaults
	v.SetDefault("email.provider", "noop")
	v.SetDefault("email.smtp.port", 587)
	v.SetDefault("email.from_name", "Elevare")
	v.SetDefault("email.credits_low_cooldown", 24*time.Hour)
	v.SetDefault("email.send_timeout", 30*time.Second)

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Metrics defaults
	v.SetDefault("metrics.namespace", "elevare")
}
