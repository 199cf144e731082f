package secrets

import (
	"context"
	"encoding/json"
	"fmt"

	vault "github.com/hashicorp/vault/api"
	"github.com/kevin07696/payment-router/internal/domain/ports"
)

// VaultConfig contains configuration for HashiCorp Vault
type VaultConfig struct {
	// Vault server address (e.g., "https://vault.example.com:8200")
	Address string
	// "token" or "approle"
	AuthMethod string
	Token      string
	RoleID     string
	SecretID   string
	// Vault Enterprise namespace
	Namespace string
	// KV secrets engine mount path (default: "secret")
	MountPath string
	// "v1" or "v2" (default: "v2")
	KVVersion     string
	TLSSkipVerify bool
}

// DefaultVaultConfig returns token auth against a KV v2 mount named "secret"
func DefaultVaultConfig(address string) VaultConfig {
	return VaultConfig{
		Address:    address,
		AuthMethod: "token",
		MountPath:  "secret",
		KVVersion:  "v2",
	}
}

// VaultManager reads secrets from a Vault KV engine
type VaultManager struct {
	client *vault.Client
	cfg    VaultConfig
	logger ports.Logger
}

// NewVaultManager creates and authenticates a Vault client
func NewVaultManager(ctx context.Context, cfg VaultConfig, logger ports.Logger) (*VaultManager, error) {
	if cfg.MountPath == "" {
		cfg.MountPath = "secret"
	}
	if cfg.KVVersion == "" {
		cfg.KVVersion = "v2"
	}

	vaultConfig := vault.DefaultConfig()
	vaultConfig.Address = cfg.Address
	if cfg.TLSSkipVerify {
		if err := vaultConfig.ConfigureTLS(&vault.TLSConfig{Insecure: true}); err != nil {
			return nil, fmt.Errorf("failed to configure TLS: %w", err)
		}
	}

	client, err := vault.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vault client: %w", err)
	}
	if cfg.Namespace != "" {
		client.SetNamespace(cfg.Namespace)
	}

	if err := authenticateVault(ctx, client, cfg); err != nil {
		return nil, fmt.Errorf("failed to authenticate with Vault: %w", err)
	}

	logger.Info("Vault secret manager initialized",
		ports.String("address", cfg.Address),
		ports.String("auth_method", cfg.AuthMethod),
		ports.String("mount_path", cfg.MountPath),
		ports.String("kv_version", cfg.KVVersion))

	return &VaultManager{client: client, cfg: cfg, logger: logger}, nil
}

func authenticateVault(ctx context.Context, client *vault.Client, cfg VaultConfig) error {
	switch cfg.AuthMethod {
	case "token", "":
		if cfg.Token == "" {
			return fmt.Errorf("token is required for token auth")
		}
		client.SetToken(cfg.Token)
		return nil

	case "approle":
		if cfg.RoleID == "" || cfg.SecretID == "" {
			return fmt.Errorf("role_id and secret_id are required for AppRole auth")
		}
		resp, err := client.Logical().WriteWithContext(ctx, "auth/approle/login", map[string]interface{}{
			"role_id":   cfg.RoleID,
			"secret_id": cfg.SecretID,
		})
		if err != nil {
			return fmt.Errorf("AppRole login failed: %w", err)
		}
		if resp == nil || resp.Auth == nil {
			return fmt.Errorf("AppRole login returned no auth info")
		}
		client.SetToken(resp.Auth.ClientToken)
		return nil

	default:
		return fmt.Errorf("unsupported auth method: %s", cfg.AuthMethod)
	}
}

// GetSecret reads the "value" field of the secret at path
func (m *VaultManager) GetSecret(ctx context.Context, path string) (*Secret, error) {
	fullPath := fmt.Sprintf("%s/%s", m.cfg.MountPath, path)
	if m.cfg.KVVersion == "v2" {
		fullPath = fmt.Sprintf("%s/data/%s", m.cfg.MountPath, path)
	}

	secret, err := m.client.Logical().ReadWithContext(ctx, fullPath)
	if err != nil {
		m.logger.Error("Failed to read secret from Vault",
			ports.String("path", path),
			ports.Err(err))
		return nil, fmt.Errorf("failed to read secret from Vault: %w", err)
	}
	if secret == nil {
		return nil, fmt.Errorf("%w: %s", ErrSecretNotFound, path)
	}

	return parseVaultSecret(secret.Data, m.cfg.KVVersion, path)
}

// parseVaultSecret extracts the value from a KV v1 or v2 response body
func parseVaultSecret(body map[string]interface{}, kvVersion, path string) (*Secret, error) {
	data := body
	version := "1"

	if kvVersion == "v2" {
		inner, ok := body["data"].(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("%w: %s has no data", ErrSecretNotFound, path)
		}
		data = inner
		if metadata, ok := body["metadata"].(map[string]interface{}); ok {
			if v, ok := metadata["version"].(json.Number); ok {
				version = v.String()
			}
		}
	}

	value, ok := data["value"].(string)
	if !ok {
		return nil, fmt.Errorf("secret %s has no string \"value\" field", path)
	}
	return &Secret{Value: value, Version: version}, nil
}
