package secrets

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kevin07696/tsys-connector/internal/adapters/ports"
	"go.uber.org/zap"
)

// localSecretManager reads secrets from files under basePath.
// WARNING: This is for development only. Use AWS Secrets Manager or Vault in production.
type localSecretManager struct {
	basePath string
	logger   *zap.Logger
}

// NewLocalSecretManager creates a new local filesystem secret reader
func NewLocalSecretManager(basePath string, logger *zap.Logger) ports.SecretManagerAdapter {
	return &localSecretManager{
		basePath: basePath,
		logger:   logger,
	}
}

// GetSecret reads a plain text or {"value": "..."} JSON file
func (m *localSecretManager) GetSecret(ctx context.Context, secretPath string) (*ports.Secret, error) {
	filePath := filepath.Join(m.basePath, filepath.Clean("/"+secretPath))

	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("secret not found: %s", secretPath)
		}
		return nil, fmt.Errorf("failed to read secret: %w", err)
	}

	m.logger.Debug("Read secret from filesystem", zap.String("path", secretPath))

	var secretData struct {
		Value   string `json:"value"`
		Version string `json:"version"`
	}
	if err := json.Unmarshal(data, &secretData); err == nil && secretData.Value != "" {
		return &ports.Secret{Value: secretData.Value, Version: secretData.Version}, nil
	}

	value := strings.TrimSpace(string(data))
	if value == "" {
		return nil, fmt.Errorf("secret %s is empty", secretPath)
	}
	return &ports.Secret{Value: value, Version: "v1"}, nil
}
