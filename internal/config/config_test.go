package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kevin07696/payment-router/internal/adapters/secrets"
	"github.com/kevin07696/payment-router/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnv_Defaults(t *testing.T) {
	t.Setenv("DB_PASSWORD", "pw")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.HTTPPort)
	assert.Equal(t, 50051, cfg.Server.GRPCPort)
	assert.Equal(t, 30*time.Second, cfg.Lock.Expiry)
	assert.Equal(t, 10*time.Second, cfg.Timeouts.WebhookExecutor)
	assert.True(t, cfg.Webhook.TolerateUnknownEvents)
	assert.False(t, cfg.Webhook.TolerateMissingPayment)
	assert.Equal(t, []string{"north"}, cfg.Webhook.MandatoryVerification)
	assert.Empty(t, cfg.Webhook.DisabledFlows)
	assert.Equal(t, secrets.BackendLocal, cfg.Secrets.Backend)
	assert.Equal(t, "https://secure.epxuap.com", cfg.Connectors.EPX.ServerPostURL)
	assert.Contains(t, cfg.Database.ConnectionString(), "password=pw")
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/router")
	t.Setenv("LOCK_EXPIRY", "45s")
	t.Setenv("WEBHOOK_DISABLED_FLOWS", "dispute, mandate")
	t.Setenv("WEBHOOK_MANDATORY_VERIFICATION", "north,epx")
	t.Setenv("WEBHOOK_TOLERATE_MISSING_PAYMENT", "true")
	t.Setenv("EPX_ENVIRONMENT", "production")
	t.Setenv("SECRETS_BACKEND", "vault")
	t.Setenv("VAULT_ADDR", "https://vault:8200")
	t.Setenv("SECRETS_CACHE_TTL", "not-a-duration")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "postgres://u:p@db:5432/router", cfg.Database.ConnectionString())
	assert.Equal(t, 45*time.Second, cfg.Lock.Expiry)
	assert.Equal(t, []domain.WebhookFlow{domain.WebhookFlowDispute, domain.WebhookFlowMandate}, cfg.Webhook.DisabledFlows)
	assert.Equal(t, []string{"north", "epx"}, cfg.Webhook.MandatoryVerification)
	assert.Equal(t, "https://epxnow.com/epx/server_post", cfg.Connectors.EPX.ServerPostURL)
	assert.Equal(t, "secret", cfg.Secrets.Vault.MountPath)
	// unparsable values fall back to the default
	assert.Equal(t, 5*time.Minute, cfg.Secrets.CacheTTL)

	rc := cfg.Webhook.ReconcilerConfig()
	assert.True(t, rc.TolerateMissingPayment)
	assert.Len(t, rc.DisabledFlows, 2)

	cc := cfg.Secrets.CacheConfig()
	assert.Equal(t, "payment-router", cc.Prefix)
	assert.Equal(t, secrets.BackendVault, cfg.Secrets.ManagerConfig().Backend)
}

func TestLoadFromEnv_DotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("DB_PASSWORD=from-file\nHTTP_PORT=9999\n"), 0o600))
	t.Chdir(dir)
	t.Setenv("HTTP_PORT", "7000")
	// keep godotenv's writes out of later tests
	t.Setenv("DB_PASSWORD", "")
	require.NoError(t, os.Unsetenv("DB_PASSWORD"))

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.Database.Password)
	assert.Equal(t, 7000, cfg.Server.HTTPPort)
}

func TestValidate(t *testing.T) {
	valid := func(t *testing.T) *Config {
		t.Setenv("DB_PASSWORD", "pw")
		cfg, err := LoadFromEnv()
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"missing_database", func(c *Config) { c.Database.Password = "" }, "DB_PASSWORD"},
		{"lock_shorter_than_webhook_timeout", func(c *Config) { c.Lock.Expiry = 5 * time.Second }, "LOCK_EXPIRY"},
		{"lock_equal_to_webhook_timeout", func(c *Config) { c.Lock.Expiry = c.Timeouts.WebhookExecutor }, "LOCK_EXPIRY"},
		{"lock_shorter_than_service_timeout", func(c *Config) {
			c.Lock.Expiry = c.Timeouts.WebhookExecutor + time.Second
			c.Timeouts.Service = c.Lock.Expiry + time.Second
		}, "must exceed TIMEOUT_SERVICE"},
		{"lock_equal_to_service_timeout", func(c *Config) { c.Lock.Expiry = c.Timeouts.Service }, "must exceed TIMEOUT_SERVICE"},
		{"negative_delay", func(c *Config) { c.Lock.Delay = -time.Second }, "delay"},
		{"service_timeout_too_long", func(c *Config) { c.Timeouts.Service = c.Timeouts.HTTPHandler }, "TIMEOUT_SERVICE"},
		{"unknown_backend", func(c *Config) { c.Secrets.Backend = "gcp" }, "SECRETS_BACKEND"},
		{"vault_without_address", func(c *Config) { c.Secrets.Backend = secrets.BackendVault }, "VAULT_ADDR"},
		{"unknown_flow", func(c *Config) { c.Webhook.DisabledFlows = []domain.WebhookFlow{"payouts"} }, "payouts"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid(t)
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.True(t, domain.IsConfigError(err))
		})
	}
}
