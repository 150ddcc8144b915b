package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Ethereum     EthereumConfig     `mapstructure:"ethereum" validate:"required"`
	Artifacts    ArtifactsConfig    `mapstructure:"artifacts"`
	Keys         KeysConfig         `mapstructure:"keys"`
	Auth         AuthConfig         `mapstructure:"auth"`
	Provisioning ProvisioningConfig `mapstructure:"provisioning"`
	Monitoring   MonitoringConfig   `mapstructure:"monitoring"`
	Logging      LoggingConfig      `mapstructure:"logging"`
	Shutdown     ShutdownConfig     `mapstructure:"shutdown"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port" validate:"min=1,max=65535"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// DatabaseConfig contains database connection settings.
// An empty host disables persistence and runs are kept in memory.
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"ssl_mode"`
}

// Enabled reports whether a database is configured
func (c *DatabaseConfig) Enabled() bool {
	return c.Host != ""
}

// EthereumConfig contains Ethereum client settings
type EthereumConfig struct {
	RPCURL              string        `mapstructure:"rpc_url" validate:"required"`
	ChainID             int64         `mapstructure:"chain_id" validate:"gt=0"`
	MaxGasPrice         string        `mapstructure:"max_gas_price" validate:"omitempty,numeric"`
	ReceiptPollInterval time.Duration `mapstructure:"receipt_poll_interval"`
	ReceiptTimeout      time.Duration `mapstructure:"receipt_timeout"`
}

// ArtifactsConfig points at compiled contract artifacts (truffle or foundry JSON).
// Without a directory only the embedded ABIs are available and nothing can be deployed.
type ArtifactsConfig struct {
	Dir string `mapstructure:"dir"`
}

// KeysConfig contains the signer keyring settings
type KeysConfig struct {
	// MasterKey is a base64 32-byte key used to decrypt encrypted signer keys
	MasterKey string         `mapstructure:"master_key"`
	Signers   []SignerConfig `mapstructure:"signers" validate:"dive"`
}

// SignerConfig holds one signing key. Exactly one of PrivateKey / EncryptedKey is set.
type SignerConfig struct {
	Name         string `mapstructure:"name" validate:"required"`
	PrivateKey   string `mapstructure:"private_key" validate:"required_without=EncryptedKey"`
	EncryptedKey string `mapstructure:"encrypted_key" validate:"required_without=PrivateKey"`
}

// AuthConfig holds bearer token settings for the HTTP API
type AuthConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	JWTSecret string `mapstructure:"jwt_secret" validate:"required_if=Enabled true"`
	JWTIssuer string `mapstructure:"jwt_issuer"`
}

// ProvisioningConfig contains orchestrator settings
type ProvisioningConfig struct {
	MaxConcurrentRuns int           `mapstructure:"max_concurrent_runs" validate:"min=1"`
	RunTimeout        time.Duration `mapstructure:"run_timeout"`
	ListLimit         int           `mapstructure:"list_limit"`
}

// MonitoringConfig contains monitoring and metrics settings
type MonitoringConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format" validate:"omitempty,oneof=json console"`
	OutputPath string `mapstructure:"output_path"`
}

// ShutdownConfig contains graceful shutdown settings
type ShutdownConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.idle_timeout", "60s")

	// Database defaults
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.database", "provisioning")

	// Ethereum defaults
	v.SetDefault("ethereum.chain_id", 1337)
	v.SetDefault("ethereum.receipt_poll_interval", "1s")
	v.SetDefault("ethereum.receipt_timeout", "5m")

	// Provisioning defaults
	v.SetDefault("provisioning.max_concurrent_runs", 4)
	v.SetDefault("provisioning.run_timeout", "30m")
	v.SetDefault("provisioning.list_limit", 50)

	// Monitoring defaults
	v.SetDefault("monitoring.enabled", true)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output_path", "stdout")

	// Shutdown defaults
	v.SetDefault("shutdown.timeout", "30s")
}

func validate(config *Config) error {
	if err := validator.New().Struct(config); err != nil {
		return err
	}
	for _, s := range config.Keys.Signers {
		if s.EncryptedKey != "" && config.Keys.MasterKey == "" {
			return fmt.Errorf("keys.master_key is required to decrypt signer %q", s.Name)
		}
	}
	return nil
}

// GetConnectionString returns a PostgreSQL connection string
func (c *DatabaseConfig) GetConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}
