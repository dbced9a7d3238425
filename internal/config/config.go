package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server         ServerConfig
	Database       DatabaseConfig
	PayPal         PayPalConfig
	Invoice        InvoiceConfig
	Reconciliation ReconciliationConfig
	Storage        StorageConfig
	Redis          RedisConfig
	Secrets        SecretsConfig
	Logger         LoggerConfig
	RateLimit      RateLimitConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port        int
	Host        string
	MetricsPort int

	// PublicURL is the externally reachable base used for processor callbacks
	PublicURL string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL      string // overrides the discrete fields when set
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int32
	MinConns int32
}

// PayPalConfig holds REST API credentials. ClientSecretName is resolved
// through the secret manager when ClientSecret is empty.
type PayPalConfig struct {
	Mode             string // sandbox or live
	BaseURL          string
	ClientID         string
	ClientSecret     string
	ClientSecretName string
	Currency         string

	BreakerMaxFailures uint32
	BreakerTimeout     time.Duration
}

// InvoiceConfig is the issuer block printed on invoice documents
type InvoiceConfig struct {
	IssuerName    string
	IssuerAddress string
	IssuerEmail   string
	LogoPath      string
	BaseDir       string // relative logo paths resolve against it
	Currency      string
}

// ReconciliationConfig tunes the cron tasks
type ReconciliationConfig struct {
	CronSecret           string
	StalePaymentLifetime time.Duration
	BatchSize            int32
	SyncLookback         time.Duration
}

// StorageConfig selects where rendered invoices are kept
type StorageConfig struct {
	Backend  string // local or s3
	LocalDir string

	S3Bucket          string
	S3Prefix          string
	S3Region          string
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string
}

// RedisConfig enables distributed entity locks. An empty Addr falls back
// to in-process locks.
type RedisConfig struct {
	Addr       string
	Password   string
	DB         int
	LockPrefix string
}

// SecretsConfig selects the secret manager backend: env, local, aws, gcp or vault
type SecretsConfig struct {
	Backend   string
	LocalPath string
	CacheTTL  time.Duration

	AWSRegion   string
	AWSProfile  string
	AWSEndpoint string

	GCPProjectID string

	VaultAddress    string
	VaultAuthMethod string
	VaultToken      string
	VaultRoleID     string
	VaultSecretID   string
	VaultNamespace  string
	VaultMountPath  string
	VaultKVVersion  string
}

// LoggerConfig holds logging configuration
type LoggerConfig struct {
	Level       string // debug, info, warn, error
	Development bool
}

// RateLimitConfig throttles the public callback endpoints
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// LoadDotEnv loads variables from a .env file without overriding the
// process environment. A missing file is not an error.
func LoadDotEnv(paths ...string) error {
	if err := godotenv.Load(paths...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:        getEnvAsInt("SERVER_PORT", 8080),
			Host:        getEnv("SERVER_HOST", "0.0.0.0"),
			MetricsPort: getEnvAsInt("METRICS_PORT", 9090),
			PublicURL:   strings.TrimRight(getEnv("PUBLIC_URL", "http://localhost:8080"), "/"),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Database: getEnv("DB_NAME", "paypal_billing"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
			MaxConns: int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns: int32(getEnvAsInt("DB_MIN_CONNS", 5)),
		},
		PayPal: PayPalConfig{
			Mode:               getEnv("PAYPAL_MODE", "sandbox"),
			BaseURL:            getEnv("PAYPAL_BASE_URL", ""),
			ClientID:           getEnv("PAYPAL_CLIENT_ID", ""),
			ClientSecret:       getEnv("PAYPAL_CLIENT_SECRET", ""),
			ClientSecretName:   getEnv("PAYPAL_CLIENT_SECRET_NAME", ""),
			Currency:           getEnv("PAYPAL_CURRENCY", "USD"),
			BreakerMaxFailures: uint32(getEnvAsInt("PAYPAL_BREAKER_MAX_FAILURES", 5)),
			BreakerTimeout:     getEnvAsDuration("PAYPAL_BREAKER_TIMEOUT", 30*time.Second),
		},
		Invoice: InvoiceConfig{
			IssuerName:    getEnv("INVOICE_ISSUER_NAME", ""),
			IssuerAddress: getEnv("INVOICE_ISSUER_ADDRESS", ""),
			IssuerEmail:   getEnv("INVOICE_ISSUER_EMAIL", ""),
			LogoPath:      getEnv("INVOICE_LOGO_PATH", ""),
			BaseDir:       getEnv("INVOICE_BASE_DIR", "."),
		},
		Reconciliation: ReconciliationConfig{
			CronSecret:           getEnv("CRON_SECRET", ""),
			StalePaymentLifetime: getEnvAsDuration("STALE_PAYMENTS_LIFETIME", 7*24*time.Hour),
			BatchSize:            int32(getEnvAsInt("RECONCILIATION_BATCH_SIZE", 100)),
			SyncLookback:         getEnvAsDuration("AGREEMENT_SYNC_LOOKBACK", 35*24*time.Hour),
		},
		Storage: StorageConfig{
			Backend:           getEnv("STORAGE_BACKEND", "local"),
			LocalDir:          getEnv("STORAGE_LOCAL_DIR", "./data/invoices"),
			S3Bucket:          getEnv("S3_BUCKET", ""),
			S3Prefix:          getEnv("S3_PREFIX", "paypal-invoices"),
			S3Region:          getEnv("S3_REGION", getEnv("AWS_REGION", "us-east-1")),
			S3Endpoint:        getEnv("S3_ENDPOINT_URL", ""),
			S3AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", ""),
			S3SecretAccessKey: getEnv("S3_SECRET_ACCESS_KEY", ""),
		},
		Redis: RedisConfig{
			Addr:       getEnv("REDIS_ADDR", ""),
			Password:   getEnv("REDIS_PASSWORD", ""),
			DB:         getEnvAsInt("REDIS_DB", 0),
			LockPrefix: getEnv("REDIS_LOCK_PREFIX", "paypal-billing:lock:"),
		},
		Secrets: SecretsConfig{
			Backend:         getEnv("SECRETS_BACKEND", "env"),
			LocalPath:       getEnv("SECRETS_LOCAL_PATH", "./secrets"),
			CacheTTL:        getEnvAsDuration("SECRETS_CACHE_TTL", 5*time.Minute),
			AWSRegion:       getEnv("AWS_REGION", "us-east-1"),
			AWSProfile:      getEnv("AWS_PROFILE", ""),
			AWSEndpoint:     getEnv("AWS_SECRETS_ENDPOINT", ""),
			GCPProjectID:    getEnv("GCP_PROJECT_ID", ""),
			VaultAddress:    getEnv("VAULT_ADDR", ""),
			VaultAuthMethod: getEnv("VAULT_AUTH_METHOD", "token"),
			VaultToken:      getEnv("VAULT_TOKEN", ""),
			VaultRoleID:     getEnv("VAULT_ROLE_ID", ""),
			VaultSecretID:   getEnv("VAULT_SECRET_ID", ""),
			VaultNamespace:  getEnv("VAULT_NAMESPACE", ""),
			VaultMountPath:  getEnv("VAULT_MOUNT_PATH", "secret"),
			VaultKVVersion:  getEnv("VAULT_KV_VERSION", "v2"),
		},
		Logger: LoggerConfig{
			Level:       getEnv("LOG_LEVEL", "info"),
			Development: getEnvAsBool("LOG_DEVELOPMENT", false),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: getEnvAsFloat("RATE_LIMIT_RPS", 20),
			Burst:             getEnvAsInt("RATE_LIMIT_BURST", 40),
		},
	}
	cfg.Invoice.Currency = getEnv("INVOICE_CURRENCY", cfg.PayPal.Currency)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required fields and enumerations
func (c *Config) Validate() error {
	if c.Database.URL == "" && c.Database.Password == "" {
		return fmt.Errorf("DB_PASSWORD or DATABASE_URL is required")
	}
	if c.PayPal.Mode != "sandbox" && c.PayPal.Mode != "live" {
		return fmt.Errorf("PAYPAL_MODE must be sandbox or live, got %q", c.PayPal.Mode)
	}
	if c.PayPal.ClientID == "" {
		return fmt.Errorf("PAYPAL_CLIENT_ID is required")
	}
	if c.PayPal.ClientSecret == "" && c.PayPal.ClientSecretName == "" {
		return fmt.Errorf("PAYPAL_CLIENT_SECRET or PAYPAL_CLIENT_SECRET_NAME is required")
	}
	if c.PayPal.ClientSecret == "" && c.Secrets.Backend == "env" {
		return fmt.Errorf("PAYPAL_CLIENT_SECRET_NAME needs SECRETS_BACKEND other than env")
	}
	if c.Reconciliation.CronSecret == "" {
		return fmt.Errorf("CRON_SECRET is required")
	}
	if _, err := url.ParseRequestURI(c.Server.PublicURL); err != nil {
		return fmt.Errorf("PUBLIC_URL is invalid: %w", err)
	}

	switch c.Storage.Backend {
	case "local":
	case "s3":
		if c.Storage.S3Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required for the s3 storage backend")
		}
	default:
		return fmt.Errorf("STORAGE_BACKEND must be local or s3, got %q", c.Storage.Backend)
	}

	switch c.Secrets.Backend {
	case "env", "local", "aws":
	case "gcp":
		if c.Secrets.GCPProjectID == "" {
			return fmt.Errorf("GCP_PROJECT_ID is required for the gcp secrets backend")
		}
	case "vault":
		if c.Secrets.VaultAddress == "" {
			return fmt.Errorf("VAULT_ADDR is required for the vault secrets backend")
		}
	default:
		return fmt.Errorf("SECRETS_BACKEND must be env, local, aws, gcp or vault, got %q", c.Secrets.Backend)
	}
	return nil
}

// ConnectionString returns PostgreSQL connection string
func (c *DatabaseConfig) ConnectionString() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// CallbackURL joins the public base URL and path
func (c *ServerConfig) CallbackURL(path string) string {
	return c.PublicURL + "/" + strings.TrimLeft(path, "/")
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration accepts Go durations ("36h") or a plain number of seconds
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(valueStr); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(valueStr); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
