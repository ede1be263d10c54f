package main

import (
	"context"
	"crypto/x509"
	"fmt"

	"github.com/kevin07696/tsys-connector/internal/adapters/civicrm"
	"github.com/kevin07696/tsys-connector/internal/adapters/database"
	"github.com/kevin07696/tsys-connector/internal/adapters/merchantware"
	"github.com/kevin07696/tsys-connector/internal/adapters/postgres"
	"github.com/kevin07696/tsys-connector/internal/adapters/secrets"
	"github.com/kevin07696/tsys-connector/internal/config"
	"github.com/kevin07696/tsys-connector/internal/services/authorization"
	"github.com/kevin07696/tsys-connector/internal/services/payment"
	"github.com/kevin07696/tsys-connector/internal/services/recurring"
	"github.com/kevin07696/tsys-connector/internal/services/vault"
	httpclient "github.com/kevin07696/tsys-connector/pkg/http"
	"github.com/kevin07696/tsys-connector/pkg/security"
	"go.uber.org/zap"
)

// dependencies holds everything the commands share
type dependencies struct {
	db          *database.PostgreSQLAdapter
	gateway     *merchantware.Client
	credentials *authorization.MerchantCredentialResolver
	processor   *payment.Processor
	recurring   *recurring.Orchestrator
}

func (d *dependencies) Close() {
	if d.db != nil {
		d.db.Close()
	}
}

func loadCAs(path string) (*x509.CertPool, error) {
	if path == "" {
		return nil, nil
	}
	return httpclient.LoadRootCAs(path)
}

// initDependencies builds adapters and services from cfg
func initDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*dependencies, error) {
	deps := &dependencies{}

	dbCfg := database.DefaultPostgreSQLConfig(cfg.Database.URL)
	dbCfg.MaxConns = cfg.Database.MaxConns
	dbCfg.MinConns = cfg.Database.MinConns
	dbCfg.QueryTimeout = cfg.Database.QueryTimeout
	db, err := database.NewPostgreSQLAdapter(ctx, dbCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("initialize database: %w", err)
	}
	deps.db = db

	gatewayCAs, err := loadCAs(cfg.Gateway.CAFile)
	if err != nil {
		deps.Close()
		return nil, fmt.Errorf("load gateway CA file: %w", err)
	}
	mwCfg := merchantware.DefaultClientConfig()
	mwCfg.Endpoint = cfg.Gateway.Endpoint
	mwCfg.ConnectTimeout = cfg.Gateway.ConnectTimeout
	mwCfg.Timeout = cfg.Gateway.Timeout
	mwCfg.RootCAs = gatewayCAs
	if cfg.Gateway.BreakerMaxFailures > 0 {
		mwCfg.CircuitBreaker.MaxFailures = uint32(cfg.Gateway.BreakerMaxFailures)
	}
	if cfg.Gateway.BreakerCooldown > 0 {
		mwCfg.CircuitBreaker.Cooldown = cfg.Gateway.BreakerCooldown
	}
	mwClient, err := merchantware.NewClient(mwCfg, logger)
	if err != nil {
		deps.Close()
		return nil, err
	}
	deps.gateway = mwClient
	gateway := merchantware.NewGateway(mwClient, logger)

	hostCAs, err := loadCAs(cfg.Host.CAFile)
	if err != nil {
		deps.Close()
		return nil, fmt.Errorf("load host CA file: %w", err)
	}
	hostCfg := civicrm.DefaultConfig(cfg.Host.Endpoint)
	hostCfg.APIKey = cfg.Host.APIKey
	hostCfg.SiteKey = cfg.Host.SiteKey
	hostCfg.Timeout = cfg.Host.Timeout
	hostCfg.ReadRetries = cfg.Host.ReadRetries
	hostCfg.RootCAs = hostCAs
	hostCfg.ProcessorIDs = cfg.Host.ProcessorIDs
	hostCfg.ProcessorClassName = cfg.Host.ProcessorClassName
	host, err := civicrm.NewClient(hostCfg, logger)
	if err != nil {
		deps.Close()
		return nil, err
	}

	secretManager, err := secrets.New(ctx, secrets.BackendConfig{
		Backend:   cfg.Secrets.Backend,
		LocalPath: cfg.Secrets.LocalPath,
		Vault: &secrets.VaultConfig{
			Address:    cfg.Secrets.Vault.Address,
			AuthMethod: cfg.Secrets.Vault.AuthMethod,
			Token:      cfg.Secrets.Vault.Token,
			RoleID:     cfg.Secrets.Vault.RoleID,
			SecretID:   cfg.Secrets.Vault.SecretID,
			Namespace:  cfg.Secrets.Vault.Namespace,
			MountPath:  cfg.Secrets.Vault.MountPath,
			KVVersion:  cfg.Secrets.Vault.KVVersion,
			CACert:     cfg.Secrets.Vault.CACert,
			ValueKey:   cfg.Secrets.Vault.ValueKey,
		},
		AWS: &secrets.AWSSecretsManagerConfig{
			Region:   cfg.Secrets.AWS.Region,
			Profile:  cfg.Secrets.AWS.Profile,
			Endpoint: cfg.Secrets.AWS.Endpoint,
		},
	}, logger)
	if err != nil {
		deps.Close()
		return nil, fmt.Errorf("initialize secret backend: %w", err)
	}

	serviceLogger := security.NewZapLogger(logger)
	executor := postgres.NewDBExecutor(db.Pool())

	deps.credentials = authorization.NewMerchantCredentialResolver(host, secretManager, logger)
	vaultManager := vault.NewManager(executor, postgres.NewVaultTokenRepository(executor), gateway, host, serviceLogger)
	deps.processor = payment.NewProcessor(gateway, deps.credentials, host, vaultManager, serviceLogger)
	deps.recurring = recurring.NewOrchestrator(
		deps.processor,
		vaultManager,
		host,
		host,
		host,
		serviceLogger,
		recurring.Config{
			Concurrency: cfg.Recurring.Concurrency,
			Source:      cfg.Recurring.Source,
		},
	)

	return deps, nil
}
