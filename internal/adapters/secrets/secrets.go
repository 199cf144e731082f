// Package secrets reads connector credentials and webhook secrets from a
// secret manager: AWS Secrets Manager, HashiCorp Vault or local files.
package secrets

import (
	"context"
	"errors"
	"fmt"

	"github.com/kevin07696/payment-router/internal/domain/ports"
)

// ErrSecretNotFound is returned by every backend when the path does not exist
var ErrSecretNotFound = errors.New("secret not found")

// Secret is one retrieved secret value
type Secret struct {
	Value   string
	Version string
}

// Manager retrieves secrets by path
type Manager interface {
	GetSecret(ctx context.Context, path string) (*Secret, error)
}

// Backend selects the Manager implementation
type Backend string

const (
	BackendLocal Backend = "local"
	BackendAWS   Backend = "aws"
	BackendVault Backend = "vault"
)

// Config selects and configures a backend
type Config struct {
	Backend   Backend
	LocalPath string
	AWS       AWSConfig
	Vault     VaultConfig
}

// New builds the configured backend
func New(ctx context.Context, cfg Config, logger ports.Logger) (Manager, error) {
	switch cfg.Backend {
	case BackendLocal, "":
		return NewLocalManager(cfg.LocalPath, logger), nil
	case BackendAWS:
		return NewAWSManager(ctx, cfg.AWS, logger)
	case BackendVault:
		return NewVaultManager(ctx, cfg.Vault, logger)
	default:
		return nil, fmt.Errorf("unsupported secrets backend %q", cfg.Backend)
	}
}
