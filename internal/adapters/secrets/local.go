package secrets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kevin07696/payment-router/internal/domain/ports"
)

// LocalManager reads secrets from files under a base directory.
// WARNING: for development only. Use AWS Secrets Manager or Vault in production.
type LocalManager struct {
	basePath string
	logger   ports.Logger
}

// NewLocalManager creates a filesystem secret manager rooted at basePath
func NewLocalManager(basePath string, logger ports.Logger) *LocalManager {
	return &LocalManager{basePath: basePath, logger: logger}
}

// GetSecret reads basePath/path. A JSON file {"value": ...} yields its value;
// anything else is returned verbatim without a trailing newline.
func (m *LocalManager) GetSecret(ctx context.Context, path string) (*Secret, error) {
	clean := filepath.Clean("/" + path)
	filePath := filepath.Join(m.basePath, clean)

	m.logger.Debug("Reading secret from filesystem", ports.String("path", path))

	data, err := os.ReadFile(filePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrSecretNotFound, path)
		}
		return nil, fmt.Errorf("failed to read secret: %w", err)
	}

	var doc struct {
		Value   *string `json:"value"`
		Version string  `json:"version"`
	}
	if err := json.Unmarshal(data, &doc); err == nil && doc.Value != nil {
		version := doc.Version
		if version == "" {
			version = "v1"
		}
		return &Secret{Value: *doc.Value, Version: version}, nil
	}

	return &Secret{Value: strings.TrimRight(string(data), "\r\n"), Version: "v1"}, nil
}
