package secrets

import (
	"context"
	"fmt"

	"github.com/kevin07696/tsys-connector/internal/adapters/ports"
	"go.uber.org/zap"
)

// Backend names accepted by New
const (
	BackendNone  = ""
	BackendLocal = "local"
	BackendVault = "vault"
	BackendAWS   = "aws"
)

// BackendConfig selects and configures one secret store
type BackendConfig struct {
	Backend   string
	LocalPath string
	Vault     *VaultConfig
	AWS       *AWSSecretsManagerConfig
}

// New returns the configured secret reader, or nil when no backend is set.
func New(ctx context.Context, cfg BackendConfig, logger *zap.Logger) (ports.SecretManagerAdapter, error) {
	switch cfg.Backend {
	case BackendNone:
		return nil, nil
	case BackendLocal:
		if cfg.LocalPath == "" {
			return nil, fmt.Errorf("local secret backend requires a base path")
		}
		logger.Warn("Using local filesystem secret manager - NOT for production use!",
			zap.String("base_path", cfg.LocalPath),
		)
		return NewLocalSecretManager(cfg.LocalPath, logger), nil
	case BackendVault:
		if cfg.Vault == nil || cfg.Vault.Address == "" {
			return nil, fmt.Errorf("vault secret backend requires an address")
		}
		return NewVaultAdapter(ctx, cfg.Vault, logger)
	case BackendAWS:
		if cfg.AWS == nil || cfg.AWS.Region == "" {
			return nil, fmt.Errorf("aws secret backend requires a region")
		}
		return NewAWSSecretsManagerAdapter(ctx, cfg.AWS, logger)
	default:
		return nil, fmt.Errorf("unknown secret backend %q", cfg.Backend)
	}
}
