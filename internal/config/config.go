package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// EnvPrefix prefixes every environment override, e.g. TSYS_HOST_API_KEY for host.api_key.
const EnvPrefix = "TSYS"

// Config holds all application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Gateway   GatewayConfig   `mapstructure:"gateway"`
	Host      HostConfig      `mapstructure:"host"`
	Secrets   SecretsConfig   `mapstructure:"secrets"`
	Recurring RecurringConfig `mapstructure:"recurring"`
	Logger    LoggerConfig    `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	MetricsPort     int           `mapstructure:"metrics_port"`
	APIToken        string        `mapstructure:"api_token"` // bearer token the host presents on /api/v1
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	RateLimitRPS    float64       `mapstructure:"rate_limit_rps"` // 0 disables rate limiting
	RateLimitBurst  int           `mapstructure:"rate_limit_burst"`
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL          string        `mapstructure:"url"`
	MaxConns     int32         `mapstructure:"max_conns"`
	MinConns     int32         `mapstructure:"min_conns"`
	QueryTimeout time.Duration `mapstructure:"query_timeout"`
}

// GatewayConfig holds Merchantware configuration
type GatewayConfig struct {
	Endpoint           string        `mapstructure:"endpoint"`
	ConnectTimeout     time.Duration `mapstructure:"connect_timeout"`
	Timeout            time.Duration `mapstructure:"timeout"`
	CAFile             string        `mapstructure:"ca_file"` // extra trust anchors, PEM
	BreakerMaxFailures int           `mapstructure:"breaker_max_failures"`
	BreakerCooldown    time.Duration `mapstructure:"breaker_cooldown"`
}

// HostConfig holds CiviCRM REST configuration
type HostConfig struct {
	Endpoint           string        `mapstructure:"endpoint"`
	APIKey             string        `mapstructure:"api_key"`
	SiteKey            string        `mapstructure:"site_key"`
	Timeout            time.Duration `mapstructure:"timeout"`
	ReadRetries        int           `mapstructure:"read_retries"`
	CAFile             string        `mapstructure:"ca_file"`
	ProcessorIDs       []int64       `mapstructure:"processor_ids"`
	ProcessorClassName string        `mapstructure:"processor_class_name"`
}

// SecretsConfig selects where secret:// merchant keys are read from
type SecretsConfig struct {
	Backend   string            `mapstructure:"backend"` // "", local, vault, aws
	LocalPath string            `mapstructure:"local_path"`
	Vault     VaultSecretConfig `mapstructure:"vault"`
	AWS       AWSSecretConfig   `mapstructure:"aws"`
}

// VaultSecretConfig holds HashiCorp Vault settings
type VaultSecretConfig struct {
	Address    string `mapstructure:"address"`
	AuthMethod string `mapstructure:"auth_method"`
	Token      string `mapstructure:"token"`
	RoleID     string `mapstructure:"role_id"`
	SecretID   string `mapstructure:"secret_id"`
	Namespace  string `mapstructure:"namespace"`
	MountPath  string `mapstructure:"mount_path"`
	KVVersion  string `mapstructure:"kv_version"`
	CACert     string `mapstructure:"ca_cert"`
	ValueKey   string `mapstructure:"value_key"`
}

// AWSSecretConfig holds AWS Secrets Manager settings
type AWSSecretConfig struct {
	Region   string `mapstructure:"region"`
	Profile  string `mapstructure:"profile"`
	Endpoint string `mapstructure:"endpoint"`
}

// RecurringConfig tunes scheduled charging
type RecurringConfig struct {
	BatchSize   int           `mapstructure:"batch_size"`
	Concurrency int           `mapstructure:"concurrency"`
	CronSecret  string        `mapstructure:"cron_secret"`
	Interval    time.Duration `mapstructure:"interval"` // in-process schedule; 0 leaves runs to the cron endpoint
	Source      string        `mapstructure:"source"`
}

// LoggerConfig holds logging configuration
type LoggerConfig struct {
	Level       string `mapstructure:"level"` // debug, info, warn, error
	Development bool   `mapstructure:"development"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.metrics_port", 9090)
	v.SetDefault("server.api_token", "")
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 70*time.Second)
	v.SetDefault("server.idle_timeout", 120*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("server.rate_limit_rps", 10.0)
	v.SetDefault("server.rate_limit_burst", 20)

	v.SetDefault("database.url", "")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.query_timeout", 2*time.Second)

	v.SetDefault("gateway.endpoint", "https://ps1.merchantware.net/Merchantware/ws/RetailTransaction/v45/Credit.asmx")
	v.SetDefault("gateway.connect_timeout", 20*time.Second)
	v.SetDefault("gateway.timeout", 20*time.Second)
	v.SetDefault("gateway.ca_file", "")
	v.SetDefault("gateway.breaker_max_failures", 5)
	v.SetDefault("gateway.breaker_cooldown", 30*time.Second)

	v.SetDefault("host.endpoint", "")
	v.SetDefault("host.api_key", "")
	v.SetDefault("host.site_key", "")
	v.SetDefault("host.timeout", 15*time.Second)
	v.SetDefault("host.read_retries", 2)
	v.SetDefault("host.ca_file", "")
	v.SetDefault("host.processor_ids", []int64{})
	v.SetDefault("host.processor_class_name", "Payment_Tsys")

	v.SetDefault("secrets.backend", "")
	v.SetDefault("secrets.local_path", "")
	v.SetDefault("secrets.vault.address", "")
	v.SetDefault("secrets.vault.auth_method", "token")
	v.SetDefault("secrets.vault.token", "")
	v.SetDefault("secrets.vault.role_id", "")
	v.SetDefault("secrets.vault.secret_id", "")
	v.SetDefault("secrets.vault.namespace", "")
	v.SetDefault("secrets.vault.mount_path", "secret")
	v.SetDefault("secrets.vault.kv_version", "v2")
	v.SetDefault("secrets.vault.ca_cert", "")
	v.SetDefault("secrets.vault.value_key", "value")
	v.SetDefault("secrets.aws.region", "")
	v.SetDefault("secrets.aws.profile", "")
	v.SetDefault("secrets.aws.endpoint", "")

	v.SetDefault("recurring.batch_size", 100)
	v.SetDefault("recurring.concurrency", 4)
	v.SetDefault("recurring.cron_secret", "")
	v.SetDefault("recurring.interval", time.Duration(0))
	v.SetDefault("recurring.source", "Tsys recurring contribution")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.development", false)
}

// Load reads defaults, then the config file, then TSYS_* environment variables.
// An empty path looks for config.yml in the working directory and tolerates its absence.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config %s: %w", path, err)
		}
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("error reading config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return &cfg, nil
}

// Validate checks everything the serve command needs
func (c *Config) Validate() error {
	var problems []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		problems = append(problems, "server.port must be between 1 and 65535")
	}
	if c.Server.MetricsPort <= 0 || c.Server.MetricsPort > 65535 || c.Server.MetricsPort == c.Server.Port {
		problems = append(problems, "server.metrics_port must be a free port distinct from server.port")
	}
	if c.Database.URL == "" {
		problems = append(problems, "database.url is required")
	}
	if err := requireHTTPS(c.Gateway.Endpoint); err != nil {
		problems = append(problems, "gateway.endpoint "+err.Error())
	}
	if c.Gateway.ConnectTimeout <= 0 || c.Gateway.Timeout <= 0 {
		problems = append(problems, "gateway timeouts must be positive")
	}
	if err := requireHTTPS(c.Host.Endpoint); err != nil {
		problems = append(problems, "host.endpoint "+err.Error())
	}
	if c.Host.APIKey == "" || c.Host.SiteKey == "" {
		problems = append(problems, "host.api_key and host.site_key are required")
	}
	switch c.Secrets.Backend {
	case "":
	case "local":
		if c.Secrets.LocalPath == "" {
			problems = append(problems, "secrets.local_path is required for the local backend")
		}
	case "vault":
		if c.Secrets.Vault.Address == "" {
			problems = append(problems, "secrets.vault.address is required for the vault backend")
		}
	case "aws":
		if c.Secrets.AWS.Region == "" {
			problems = append(problems, "secrets.aws.region is required for the aws backend")
		}
	default:
		problems = append(problems, fmt.Sprintf("secrets.backend %q is not one of local, vault, aws", c.Secrets.Backend))
	}
	if c.Recurring.BatchSize < 1 || c.Recurring.BatchSize > 1000 {
		problems = append(problems, "recurring.batch_size must be between 1 and 1000")
	}
	if c.Recurring.Concurrency < 1 {
		problems = append(problems, "recurring.concurrency must be at least 1")
	}
	if c.Recurring.CronSecret == "" && c.Recurring.Interval <= 0 {
		problems = append(problems, "set recurring.cron_secret or recurring.interval so recurring charges run")
	}
	if _, err := zapcore.ParseLevel(c.Logger.Level); err != nil {
		problems = append(problems, fmt.Sprintf("logger.level %q is invalid", c.Logger.Level))
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

func requireHTTPS(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "https" || u.Host == "" {
		return fmt.Errorf("must be an https URL, got %q", raw)
	}
	return nil
}

// NewLogger builds the process logger
func (c LoggerConfig) NewLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.Level)
	if err != nil {
		return nil, err
	}

	zapCfg := zap.NewProductionConfig()
	if c.Development {
		zapCfg = zap.NewDevelopmentConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	return zapCfg.Build()
}
