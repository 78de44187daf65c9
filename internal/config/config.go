package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// EnvConfigFile names an optional TOML file whose values sit under the
// environment.
const EnvConfigFile = "FINTRACK_CONFIG"

type Config struct {
	// HTTP Server
	Port               string
	RateLimitPerMinute int

	// Storage
	DataBackend  string
	SQLiteDBPath string
	DatabaseURL  string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets mirror
	GoogleSpreadsheetID   string
	GoogleSheetName       string
	GoogleCredentialsFile string
	GoogleCredentialsJSON string

	// Run lock
	RedisURL string

	// Auth
	JWTSecret   string
	JWTIssuer   string
	JWTAudience string
	CronSecret  string

	// Workers
	RecurringInterval time.Duration
	SyncBatchSize     int
	SyncInterval      time.Duration

	LogLevel string
}

// fileConfig mirrors Config in the TOML layout.
type fileConfig struct {
	LogLevel string `toml:"log_level"`
	RedisURL string `toml:"redis_url"`

	Server struct {
		Port               string `toml:"port"`
		RateLimitPerMinute int    `toml:"rate_limit_per_minute"`
	} `toml:"server"`

	Storage struct {
		Backend     string `toml:"backend"`
		SQLitePath  string `toml:"sqlite_path"`
		DatabaseURL string `toml:"database_url"`
	} `toml:"storage"`

	AMQP struct {
		URL      string `toml:"url"`
		Exchange string `toml:"exchange"`
		Queue    string `toml:"queue"`
	} `toml:"amqp"`

	Sheets struct {
		SpreadsheetID   string `toml:"spreadsheet_id"`
		SheetName       string `toml:"sheet_name"`
		CredentialsFile string `toml:"credentials_file"`
	} `toml:"sheets"`

	Auth struct {
		JWTSecret   string `toml:"jwt_secret"`
		JWTIssuer   string `toml:"jwt_issuer"`
		JWTAudience string `toml:"jwt_audience"`
		CronSecret  string `toml:"cron_secret"`
	} `toml:"auth"`

	Workers struct {
		RecurringInterval string `toml:"recurring_interval"`
		SyncBatchSize     int    `toml:"sync_batch_size"`
		SyncInterval      string `toml:"sync_interval"`
	} `toml:"workers"`
}

// Load builds the configuration from defaults, the optional TOML file named
// by FINTRACK_CONFIG and the environment, in increasing precedence.
func Load() (*Config, error) {
	var f fileConfig
	if path := os.Getenv(EnvConfigFile); path != "" {
		md, err := toml.DecodeFile(path, &f)
		if err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("config file %s: unknown keys %v", path, undecoded)
		}
	}

	cfg := &Config{
		Port:               getEnv("PORT", or(f.Server.Port, "8081")),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", orInt(f.Server.RateLimitPerMinute, 60)),

		DataBackend:  getEnv("DATA_BACKEND", or(f.Storage.Backend, "sqlite")),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", or(f.Storage.SQLitePath, "./data/fintrack.db")),
		DatabaseURL:  getEnv("DATABASE_URL", f.Storage.DatabaseURL),

		AMQPURL:      getEnv("AMQP_URL", f.AMQP.URL),
		AMQPExchange: getEnv("AMQP_EXCHANGE", or(f.AMQP.Exchange, "fintrack")),
		AMQPQueue:    getEnv("AMQP_QUEUE", or(f.AMQP.Queue, "ledger_events")),

		GoogleSpreadsheetID:   getEnv("GOOGLE_SPREADSHEET_ID", f.Sheets.SpreadsheetID),
		GoogleSheetName:       getEnv("GOOGLE_SHEET_NAME", or(f.Sheets.SheetName, "Ledger")),
		GoogleCredentialsFile: getEnv("GOOGLE_CREDENTIALS_FILE", f.Sheets.CredentialsFile),
		GoogleCredentialsJSON: getEnv("GOOGLE_CREDENTIALS_JSON", ""),

		RedisURL: getEnv("REDIS_URL", f.RedisURL),

		JWTSecret:   getEnv("JWT_SECRET", f.Auth.JWTSecret),
		JWTIssuer:   getEnv("JWT_ISSUER", f.Auth.JWTIssuer),
		JWTAudience: getEnv("JWT_AUDIENCE", f.Auth.JWTAudience),
		CronSecret:  getEnv("CRON_SECRET", f.Auth.CronSecret),

		SyncBatchSize: getEnvInt("SYNC_BATCH_SIZE", orInt(f.Workers.SyncBatchSize, 50)),

		LogLevel: getEnv("LOG_LEVEL", or(f.LogLevel, "info")),
	}

	var err error
	if cfg.RecurringInterval, err = fileDuration(f.Workers.RecurringInterval, time.Hour); err != nil {
		return nil, fmt.Errorf("recurring_interval: %w", err)
	}
	if cfg.SyncInterval, err = fileDuration(f.Workers.SyncInterval, 30*time.Second); err != nil {
		return nil, fmt.Errorf("sync_interval: %w", err)
	}
	cfg.RecurringInterval = getEnvDuration("RECURRING_INTERVAL", cfg.RecurringInterval)
	cfg.SyncInterval = getEnvDuration("SYNC_INTERVAL", cfg.SyncInterval)

	return cfg, nil
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	validBackends := []string{"memory", "sqlite", "postgres"}
	isValidBackend := false
	for _, backend := range validBackends {
		if c.DataBackend == backend {
			isValidBackend = true
			break
		}
	}
	if !isValidBackend {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	if c.DataBackend == "sqlite" {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			// Check if directory exists or can be created
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	}

	if c.DataBackend == "postgres" {
		if c.DatabaseURL == "" {
			errors = append(errors, "DATABASE_URL is required when using postgres backend")
		} else if msg := checkScheme("DATABASE_URL", c.DatabaseURL, "postgres", "postgresql"); msg != "" {
			errors = append(errors, msg)
		}
	}

	if c.AMQPURL != "" {
		if msg := checkScheme("AMQP URL", c.AMQPURL, "amqp", "amqps"); msg != "" {
			errors = append(errors, msg)
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.RedisURL != "" {
		if msg := checkScheme("REDIS_URL", c.RedisURL, "redis", "rediss"); msg != "" {
			errors = append(errors, msg)
		}
	}

	if c.GoogleSpreadsheetID != "" {
		if c.GoogleSheetName == "" {
			errors = append(errors, "Google Sheet name is required when a spreadsheet is configured")
		}
		if c.GoogleCredentialsFile != "" {
			if _, err := os.Stat(c.GoogleCredentialsFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google credentials file does not exist: %s", c.GoogleCredentialsFile))
			}
		}
	}

	if c.JWTSecret != "" && len(c.JWTSecret) < 32 {
		errors = append(errors, "JWT secret must be at least 32 bytes")
	}

	if c.RateLimitPerMinute < 0 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must not be negative", c.RateLimitPerMinute))
	}

	// Validate worker configuration
	if c.SyncBatchSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid sync batch size %d: must be at least 1", c.SyncBatchSize))
	} else if c.SyncBatchSize > 1000 {
		errors = append(errors, fmt.Sprintf("invalid sync batch size %d: must be at most 1000", c.SyncBatchSize))
	}

	if c.SyncInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at least 1 second", c.SyncInterval))
	} else if c.SyncInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at most 24 hours", c.SyncInterval))
	}

	if c.RecurringInterval < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid recurring interval %v: must be at least 1 minute", c.RecurringInterval))
	}

	if _, err := c.SlogLevel(); err != nil {
		errors = append(errors, err.Error())
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// SlogLevel parses LogLevel.
func (c *Config) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level '%s'", c.LogLevel)
	}
	return lvl, nil
}

func checkScheme(name, raw string, schemes ...string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Sprintf("invalid %s '%s': %v", name, raw, err)
	}
	for _, s := range schemes {
		if u.Scheme == s {
			return ""
		}
	}
	return fmt.Sprintf("invalid %s scheme '%s': must be one of %v", name, u.Scheme, schemes)
}

func or(v, def string) string {
	if v != "" {
		return v
	}
	return def
}

func orInt(v, def int) int {
	if v != 0 {
		return v
	}
	return def
}

func fileDuration(v string, def time.Duration) (time.Duration, error) {
	if v == "" {
		return def, nil
	}
	return time.ParseDuration(v)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
