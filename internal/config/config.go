package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kevin07696/payment-router/internal/adapters/epx"
	"github.com/kevin07696/payment-router/internal/adapters/north"
	"github.com/kevin07696/payment-router/internal/adapters/secrets"
	"github.com/kevin07696/payment-router/internal/domain"
	"github.com/kevin07696/payment-router/internal/lock"
	"github.com/kevin07696/payment-router/internal/webhook"
	"github.com/kevin07696/payment-router/pkg/resilience"
)

// Config holds all application configuration
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Lock       lock.Config
	Webhook    WebhookConfig
	Secrets    SecretsConfig
	Connectors ConnectorsConfig
	Timeouts   resilience.TimeoutConfig
	Logger     LoggerConfig
}

// ServerConfig holds listener configuration
type ServerConfig struct {
	Host        string
	HTTPPort    int
	GRPCPort    int
	MetricsPort int
	// ShutdownTimeout bounds the graceful drain
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	// URL wins over the individual fields when set
	URL      string
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int32
	MinConns int32
}

// RedisConfig points at the lock store
type RedisConfig struct {
	URL string
}

// WebhookConfig controls the reconciliation pipeline and its endpoint
type WebhookConfig struct {
	TolerateUnknownEvents  bool
	TolerateMissingPayment bool
	DisabledFlows          []domain.WebhookFlow
	// MandatoryVerification lists connectors whose webhooks are rejected
	// unless their source is verified
	MandatoryVerification []string
	RateLimit             float64
	RateBurst             int
}

// SecretsConfig selects the secret backend and its cache
type SecretsConfig struct {
	Backend  secrets.Backend
	Local    string
	AWS      secrets.AWSConfig
	Vault    secrets.VaultConfig
	Prefix   string
	CacheTTL time.Duration
	MaxSize  int
}

// ConnectorsConfig holds processor endpoints
type ConnectorsConfig struct {
	NorthBaseURL string
	EPX          epx.Config
}

// LoggerConfig holds logging configuration
type LoggerConfig struct {
	Level       string // debug, info, warn, error
	Development bool
}

// LoadFromEnv loads configuration from environment variables. A .env file in
// the working directory is read first when present; real environment
// variables win over it.
func LoadFromEnv() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	timeouts := resilience.DefaultTimeoutConfig()
	lockDefaults := lock.DefaultConfig()
	webhookDefaults := webhook.DefaultConfig()
	cacheDefaults := secrets.DefaultCacheConfig()
	vault := secrets.DefaultVaultConfig(getEnv("VAULT_ADDR", ""))

	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			HTTPPort:        getEnvAsInt("HTTP_PORT", 8080),
			GRPCPort:        getEnvAsInt("GRPC_PORT", 50051),
			MetricsPort:     getEnvAsInt("METRICS_PORT", 9090),
			ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Database: getEnv("DB_NAME", "payment_router"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
			MaxConns: int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns: int32(getEnvAsInt("DB_MIN_CONNS", 5)),
		},
		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", "redis://localhost:6379/0"),
		},
		Lock: lock.Config{
			Expiry: getEnvAsDuration("LOCK_EXPIRY", lockDefaults.Expiry),
			Delay:  getEnvAsDuration("LOCK_DELAY", lockDefaults.Delay),
		},
		Webhook: WebhookConfig{
			TolerateUnknownEvents:  getEnvAsBool("WEBHOOK_TOLERATE_UNKNOWN_EVENTS", webhookDefaults.TolerateUnknownEvents),
			TolerateMissingPayment: getEnvAsBool("WEBHOOK_TOLERATE_MISSING_PAYMENT", webhookDefaults.TolerateMissingPayment),
			DisabledFlows:          webhookFlows(getEnvAsList("WEBHOOK_DISABLED_FLOWS", nil)),
			MandatoryVerification:  getEnvAsList("WEBHOOK_MANDATORY_VERIFICATION", []string{north.Name}),
			RateLimit:              getEnvAsFloat("WEBHOOK_RATE_LIMIT", 50),
			RateBurst:              getEnvAsInt("WEBHOOK_RATE_BURST", 100),
		},
		Secrets: SecretsConfig{
			Backend: secrets.Backend(getEnv("SECRETS_BACKEND", string(secrets.BackendLocal))),
			Local:   getEnv("SECRETS_LOCAL_PATH", "./secrets"),
			AWS: secrets.AWSConfig{
				Region:   getEnv("AWS_REGION", "us-east-1"),
				Profile:  getEnv("AWS_PROFILE", ""),
				Endpoint: getEnv("AWS_SECRETS_ENDPOINT", ""),
			},
			Vault: secrets.VaultConfig{
				Address:       vault.Address,
				AuthMethod:    getEnv("VAULT_AUTH_METHOD", vault.AuthMethod),
				Token:         getEnv("VAULT_TOKEN", ""),
				RoleID:        getEnv("VAULT_ROLE_ID", ""),
				SecretID:      getEnv("VAULT_SECRET_ID", ""),
				Namespace:     getEnv("VAULT_NAMESPACE", ""),
				MountPath:     getEnv("VAULT_MOUNT_PATH", vault.MountPath),
				KVVersion:     getEnv("VAULT_KV_VERSION", vault.KVVersion),
				TLSSkipVerify: getEnvAsBool("VAULT_TLS_SKIP_VERIFY", false),
			},
			Prefix:   getEnv("SECRETS_PREFIX", "payment-router"),
			CacheTTL: getEnvAsDuration("SECRETS_CACHE_TTL", cacheDefaults.TTL),
			MaxSize:  getEnvAsInt("SECRETS_CACHE_SIZE", cacheDefaults.MaxSize),
		},
		Connectors: ConnectorsConfig{
			NorthBaseURL: getEnv("NORTH_BASE_URL", north.SandboxBaseURL),
			EPX:          epxConfig(),
		},
		Timeouts: resilience.TimeoutConfig{
			HTTPHandler:     getEnvAsDuration("TIMEOUT_HTTP_HANDLER", timeouts.HTTPHandler),
			Service:         getEnvAsDuration("TIMEOUT_SERVICE", timeouts.Service),
			ExternalAPI:     getEnvAsDuration("TIMEOUT_EXTERNAL_API", timeouts.ExternalAPI),
			WebhookExecutor: getEnvAsDuration("TIMEOUT_WEBHOOK_EXECUTOR", timeouts.WebhookExecutor),
			Database:        getEnvAsDuration("TIMEOUT_DATABASE", timeouts.Database),
		},
		Logger: LoggerConfig{
			Level:       getEnv("LOG_LEVEL", "info"),
			Development: getEnvAsBool("LOG_DEVELOPMENT", false),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func epxConfig() epx.Config {
	defaults := epx.DefaultConfig(getEnv("EPX_ENVIRONMENT", "sandbox"))
	return epx.Config{
		ServerPostURL: getEnv("EPX_SERVER_POST_URL", defaults.ServerPostURL),
		InquiryURL:    getEnv("EPX_INQUIRY_URL", defaults.InquiryURL),
	}
}

// Validate checks the settings the router cannot run without
func (c *Config) Validate() error {
	if err := c.validate(); err != nil {
		return domain.WrapError(domain.ErrorCodeConfigInvalid, "invalid configuration", err)
	}
	return nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" && c.Database.Password == "" {
		return fmt.Errorf("DATABASE_URL or DB_PASSWORD is required")
	}
	if err := c.Lock.Validate(); err != nil {
		return err
	}
	// the lock must outlive every execution that holds it
	if c.Lock.Expiry <= c.Timeouts.WebhookExecutor {
		return fmt.Errorf("LOCK_EXPIRY (%s) must exceed TIMEOUT_WEBHOOK_EXECUTOR (%s)",
			c.Lock.Expiry, c.Timeouts.WebhookExecutor)
	}
	if c.Lock.Expiry <= c.Timeouts.Service {
		return fmt.Errorf("LOCK_EXPIRY (%s) must exceed TIMEOUT_SERVICE (%s)",
			c.Lock.Expiry, c.Timeouts.Service)
	}
	if c.Timeouts.Service >= c.Timeouts.HTTPHandler {
		return fmt.Errorf("TIMEOUT_SERVICE must be shorter than TIMEOUT_HTTP_HANDLER")
	}

	switch c.Secrets.Backend {
	case secrets.BackendLocal:
		if c.Secrets.Local == "" {
			return fmt.Errorf("SECRETS_LOCAL_PATH is required for the local backend")
		}
	case secrets.BackendAWS:
		if c.Secrets.AWS.Region == "" {
			return fmt.Errorf("AWS_REGION is required for the aws backend")
		}
	case secrets.BackendVault:
		if c.Secrets.Vault.Address == "" {
			return fmt.Errorf("VAULT_ADDR is required for the vault backend")
		}
	default:
		return fmt.Errorf("unknown SECRETS_BACKEND %q", c.Secrets.Backend)
	}

	for _, f := range c.Webhook.DisabledFlows {
		switch f {
		case domain.WebhookFlowPayment, domain.WebhookFlowRefund, domain.WebhookFlowDispute,
			domain.WebhookFlowMandate, domain.WebhookFlowReturnResponse:
		default:
			return fmt.Errorf("unknown webhook flow %q in WEBHOOK_DISABLED_FLOWS", f)
		}
	}
	return nil
}

// ConnectionString returns the PostgreSQL connection string
func (c *DatabaseConfig) ConnectionString() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// ReconcilerConfig is the webhook pipeline part of the configuration
func (c *WebhookConfig) ReconcilerConfig() webhook.Config {
	return webhook.Config{
		TolerateUnknownEvents:  c.TolerateUnknownEvents,
		TolerateMissingPayment: c.TolerateMissingPayment,
		DisabledFlows:          c.DisabledFlows,
	}
}

// ManagerConfig is the secret backend selection
func (c *SecretsConfig) ManagerConfig() secrets.Config {
	return secrets.Config{Backend: c.Backend, LocalPath: c.Local, AWS: c.AWS, Vault: c.Vault}
}

// CacheConfig is the credential cache part of the configuration
func (c *SecretsConfig) CacheConfig() secrets.CacheConfig {
	return secrets.CacheConfig{Prefix: c.Prefix, TTL: c.CacheTTL, MaxSize: c.MaxSize}
}

func webhookFlows(names []string) []domain.WebhookFlow {
	flows := make([]domain.WebhookFlow, 0, len(names))
	for _, n := range names {
		flows = append(flows, domain.WebhookFlow(n))
	}
	return flows
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsList splits a comma-separated value, dropping blanks
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
