package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Ledger backends understood by LEDGER_BACKEND.
const (
	LedgerBackendCSV      = "csv"
	LedgerBackendPostgres = "postgres"
)

// DatabaseConfig holds PostgreSQL database connection settings.
type DatabaseConfig struct {
	Host               string
	Port               string
	User               string
	Password           string
	Name               string
	SSLMode            string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeSec int
}

// MinIOConfig holds object storage settings for the attachment archive.
// The archive is disabled when Endpoint is empty.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// Enabled reports whether an archive endpoint was configured.
func (c MinIOConfig) Enabled() bool {
	return c.Endpoint != ""
}

// VoucherAPIConfig holds settings for the remote voucher service.
type VoucherAPIConfig struct {
	BaseURL string
	Timeout time.Duration
}

// LogConfig controls the process-wide logger.
type LogConfig struct {
	Level string
	File  string
}

// AppConfig is the centralized configuration struct for the application.
// It is populated from environment variables. The API key is never read from here;
// it lives in the settings file managed by the settings package.
type AppConfig struct {
	InvoicesPath    string
	LedgerPath      string
	LedgerBackend   string
	SettingsPath    string
	MetricsTextfile string
	VoucherAPI      VoucherAPIConfig
	Log             LogConfig
	Database        DatabaseConfig
	MinIO           MinIOConfig
}

// Load reads configuration from environment variables.
// A .env file can be auto-loaded by importing: _ "github.com/joho/godotenv/autoload"
// This function does not require a .env file; real environment variables take precedence.
func Load() *AppConfig {
	return &AppConfig{
		InvoicesPath:    getEnv("INVOICES_PATH", "invoices.csv"),
		LedgerPath:      getEnv("LEDGER_PATH", "done_invoices.csv"),
		LedgerBackend:   getEnv("LEDGER_BACKEND", LedgerBackendCSV),
		SettingsPath:    getEnv("SETTINGS_PATH", defaultSettingsPath()),
		MetricsTextfile: getEnv("METRICS_TEXTFILE", ""),
		VoucherAPI: VoucherAPIConfig{
			BaseURL: getEnv("VOUCHER_API_BASE_URL", "https://api.lexoffice.io/v1"),
			Timeout: getEnvDuration("VOUCHER_API_TIMEOUT", 30*time.Second),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
			File:  getEnv("LOG_FILE", "log/output.log"),
		},
		Database: DatabaseConfig{
			Host:               getEnv("DB_HOST", ""),
			Port:               getEnv("DB_PORT", "5432"),
			User:               getEnv("DB_USER", ""),
			Password:           getEnv("DB_PASSWORD", ""),
			Name:               getEnv("DB_NAME", ""),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 4),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 2),
			ConnMaxLifetimeSec: getEnvInt("DB_CONN_MAX_LIFETIME_SEC", 300),
		},
		MinIO: MinIOConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", ""),
			AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
			SecretKey: getEnv("MINIO_SECRET_KEY", ""),
			Bucket:    getEnv("MINIO_BUCKET", ""),
			UseSSL:    getEnvBool("MINIO_USE_SSL", false),
		},
	}
}

func defaultSettingsPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "settings.json"
	}
	return filepath.Join(dir, "invoicesync", "settings.json")
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err == nil && d > 0 {
			return d
		}
	}
	return def
}
