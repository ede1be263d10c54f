package secrets

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	vault "github.com/hashicorp/vault/api"
	"github.com/kevin07696/tsys-connector/internal/adapters/ports"
	"go.uber.org/zap"
)

// VaultConfig contains configuration for HashiCorp Vault adapter
type VaultConfig struct {
	// Vault server address (e.g., "https://vault.example.com:8200")
	Address string

	// Authentication method: "token" or "approle"
	AuthMethod string

	Token string

	RoleID   string
	SecretID string

	// Vault Enterprise namespace
	Namespace string

	// KV secrets engine mount path (default: "secret")
	MountPath string

	// KV version: "v1" or "v2" (default: "v2")
	KVVersion string

	// CACert adds a PEM bundle to the trusted roots. Verification stays on.
	CACert string

	// Field read from the secret data (default: "value")
	ValueKey string
}

// DefaultVaultConfig returns default configuration for Vault adapter
func DefaultVaultConfig(address string) *VaultConfig {
	return &VaultConfig{
		Address:    address,
		AuthMethod: "token",
		MountPath:  "secret",
		KVVersion:  "v2",
		ValueKey:   "value",
	}
}

type vaultAdapter struct {
	client *vault.Client
	config *VaultConfig
	logger *zap.Logger
}

// NewVaultAdapter creates a HashiCorp Vault backed secret reader
func NewVaultAdapter(ctx context.Context, cfg *VaultConfig, logger *zap.Logger) (ports.SecretManagerAdapter, error) {
	vaultConfig := vault.DefaultConfig()
	vaultConfig.Address = cfg.Address

	if cfg.CACert != "" {
		if err := vaultConfig.ConfigureTLS(&vault.TLSConfig{CACert: cfg.CACert}); err != nil {
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

	logger.Info("Vault adapter initialized",
		zap.String("address", cfg.Address),
		zap.String("auth_method", cfg.AuthMethod),
		zap.String("mount_path", cfg.MountPath),
		zap.String("kv_version", cfg.KVVersion),
	)

	return &vaultAdapter{
		client: client,
		config: cfg,
		logger: logger,
	}, nil
}

func authenticateVault(ctx context.Context, client *vault.Client, cfg *VaultConfig) error {
	switch cfg.AuthMethod {
	case "token":
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

// GetSecret reads path from the KV mount. Every call goes to Vault.
func (a *vaultAdapter) GetSecret(ctx context.Context, path string) (*ports.Secret, error) {
	startTime := time.Now()
	secret, err := a.client.Logical().ReadWithContext(ctx, kvPath(a.config, path))
	if err != nil {
		a.logger.Error("Failed to retrieve secret from Vault",
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to read secret from Vault: %w", err)
	}
	if secret == nil {
		return nil, fmt.Errorf("secret not found: %s", path)
	}

	result, err := merchantKeyFromData(a.config, secret.Data)
	if err != nil {
		return nil, fmt.Errorf("secret %s: %w", path, err)
	}

	a.logger.Debug("Secret retrieved from Vault",
		zap.String("path", path),
		zap.String("version", result.Version),
		zap.Duration("elapsed", time.Since(startTime)),
	)
	return result, nil
}

// kvPath maps a logical secret path onto the mount, adding data/ for KV v2.
func kvPath(cfg *VaultConfig, path string) string {
	if cfg.KVVersion == "v2" {
		return cfg.MountPath + "/data/" + path
	}
	return cfg.MountPath + "/" + path
}

// merchantKeyFromData picks the configured field out of a KV read. KV v2 nests
// the fields under "data" and reports the version under "metadata".
func merchantKeyFromData(cfg *VaultConfig, data map[string]interface{}) (*ports.Secret, error) {
	fields, version := data, "1"
	if cfg.KVVersion == "v2" {
		nested, ok := data["data"].(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("invalid secret format from Vault")
		}
		fields, version = nested, ""
		if metadata, ok := data["metadata"].(map[string]interface{}); ok {
			if v, ok := metadata["version"].(json.Number); ok {
				version = v.String()
			}
		}
	}

	key := cfg.ValueKey
	if key == "" {
		key = "value"
	}
	value, _ := fields[key].(string)
	if value == "" {
		return nil, fmt.Errorf("no %q field", key)
	}
	return &ports.Secret{Value: value, Version: version}, nil
}
