package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

// Module provides application configuration.
var Module = fx.Provide(Load)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string

	VaultPassphrase string
	VaultSalt       string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	Authority AuthorityConfig
	Poller    PollerConfig

	HTTPAddr string
}

// AuthorityConfig holds the tax authority API endpoints and client policy.
type AuthorityConfig struct {
	SandboxBaseURL    string
	ProductionBaseURL string
	APIVersion        string
	Scope             string
	RequestTimeout    time.Duration
	MaxRetries        int
	RetryBaseBackoff  time.Duration
	RetryMaxBackoff   time.Duration
}

// PollerConfig controls the status poller interval and batch sizing.
type PollerConfig struct {
	Interval   time.Duration
	BatchSize  int
	JobTimeout time.Duration
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:     getenv("APP_SERVICE", "invois"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),

		VaultPassphrase: strings.TrimSpace(getenv("VAULT_PASSPHRASE", "")),
		VaultSalt:       strings.TrimSpace(getenv("VAULT_SALT", "")),

		DBType:            getenv("DB_TYPE", "sqlite"),
		DBHost:            getenv("DB_HOST", "localhost"),
		DBPort:            getenv("DB_PORT", "5432"),
		DBName:            getenv("DB_NAME", "invois"),
		DBUser:            getenv("DB_USER", "invois"),
		DBPassword:        getenv("DB_PASSWORD", ""),
		DBSSLMode:         getenv("DB_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DB_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DB_MAX_OPEN_CONN", 25),
		DBConnMaxLifetime: getenvInt("DB_CONN_MAX_LIFETIME", 300),
		DBConnMaxIdleTime: getenvInt("DB_CONN_MAX_IDLE_TIME", 60),

		RedisAddr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
		RedisPassword: getenv("REDIS_PASSWORD", ""),
		RedisDB:       getenvInt("REDIS_DB", 0),

		Authority: AuthorityConfig{
			SandboxBaseURL:    getenv("AUTHORITY_SANDBOX_URL", "https://preprod-api.myinvois.hasil.gov.my"),
			ProductionBaseURL: getenv("AUTHORITY_PRODUCTION_URL", "https://api.myinvois.hasil.gov.my"),
			APIVersion:        getenv("AUTHORITY_API_VERSION", "v1.0"),
			Scope:             getenv("AUTHORITY_SCOPE", "InvoicingAPI"),
			RequestTimeout:    getenvDuration("AUTHORITY_REQUEST_TIMEOUT", 30*time.Second),
			MaxRetries:        getenvInt("AUTHORITY_MAX_RETRIES", 3),
			RetryBaseBackoff:  getenvDuration("AUTHORITY_RETRY_BASE_BACKOFF", time.Second),
			RetryMaxBackoff:   getenvDuration("AUTHORITY_RETRY_MAX_BACKOFF", 30*time.Second),
		},
		Poller: PollerConfig{
			Interval:   getenvDuration("POLLER_INTERVAL", time.Minute),
			BatchSize:  getenvInt("POLLER_BATCH_SIZE", 50),
			JobTimeout: getenvDuration("POLLER_JOB_TIMEOUT", 30*time.Second),
		},

		HTTPAddr: getenv("HTTP_ADDR", ":8080"),
	}
}

func getenv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fallback
	}
	return n
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		return fallback
	}
	return d
}
