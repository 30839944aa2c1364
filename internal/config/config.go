package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Weather baselines: approximate yearly day counts per condition. External
// statistics, not derived from the crash data.
const (
	DefaultClearDays = 218.0
	DefaultRainDays  = 119.0
	DefaultSnowDays  = 27.8
)

// Dataset sources
const (
	SourceFile     = "file"
	SourcePostgres = "postgres"
)

// Config holds all runtime configuration
type Config struct {
	Server    ServerConfig
	Logging   LoggingConfig
	Database  DatabaseConfig
	Dataset   DatasetConfig
	Dashboard DashboardConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type LoggingConfig struct {
	Level string
}

type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// DSN returns the lib/pq connection string
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Database, d.SSLMode)
}

type DatasetConfig struct {
	Source      string // "file" or "postgres"
	Path        string
	PreviewRows int
	PageSize    int
}

// FatalityLookup pairs the heading shown on the page with the primary cause
// value looked up in the data. The two differ for the default second entry.
type FatalityLookup struct {
	Title string
	Key   string
}

type Baselines struct {
	Clear float64
	Rain  float64
	Snow  float64
}

type DashboardConfig struct {
	Baselines       Baselines
	FatalityLookups []FatalityLookup
	DefaultTimeUnit string
}

// DefaultFatalityLookups mirrors the two fixed breakdown panels.
func DefaultFatalityLookups() []FatalityLookup {
	return []FatalityLookup{
		{Title: "PHYSICAL CONDITION OF DRIVER", Key: "PHYSICAL CONDITION OF DRIVER"},
		{Title: "PHYSICAL FAILING TO YIELD RIGHT-OF-WAY", Key: "FAILING TO YIELD RIGHT-OF-WAY"},
	}
}

// LoadConfig reads configuration from the environment, after loading a .env
// file when one is present.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	lookups, err := parseFatalityLookups(os.Getenv("FATALITY_CAUSE_LOOKUPS"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Port:         getEnvAsInt("SERVER_PORT", 8050),
			ReadTimeout:  getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: getEnvAsDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:  getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvAsInt("DB_PORT", 5432),
			User:            getEnv("DB_USER", "crash_user"),
			Password:        getEnv("DB_PASSWORD", "crash_pass"),
			Database:        getEnv("DB_NAME", "crashes"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getEnvAsDuration("DB_CONN_MAX_IDLE_TIME", 5*time.Minute),
		},
		Dataset: DatasetConfig{
			Source:      strings.ToLower(getEnv("DATASET_SOURCE", SourceFile)),
			Path:        getEnv("DATASET_PATH", "data.csv"),
			PreviewRows: getEnvAsInt("DATASET_PREVIEW_ROWS", 500),
			PageSize:    getEnvAsInt("DATASET_PAGE_SIZE", 10),
		},
		Dashboard: DashboardConfig{
			Baselines: Baselines{
				Clear: getEnvAsFloat("WEATHER_BASELINE_CLEAR", DefaultClearDays),
				Rain:  getEnvAsFloat("WEATHER_BASELINE_RAIN", DefaultRainDays),
				Snow:  getEnvAsFloat("WEATHER_BASELINE_SNOW", DefaultSnowDays),
			},
			FatalityLookups: lookups,
			DefaultTimeUnit: getEnv("DEFAULT_TIME_UNIT", "CRASH_MONTH"),
		},
	}

	return cfg, nil
}

// Validate checks values that would otherwise fail late
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid SERVER_PORT %d", c.Server.Port)
	}
	switch c.Dataset.Source {
	case SourceFile:
		if c.Dataset.Path == "" {
			return fmt.Errorf("DATASET_PATH is required when DATASET_SOURCE=file")
		}
	case SourcePostgres:
		if c.Database.Host == "" || c.Database.Database == "" {
			return fmt.Errorf("DB_HOST and DB_NAME are required when DATASET_SOURCE=postgres")
		}
	default:
		return fmt.Errorf("unknown DATASET_SOURCE %q (want %q or %q)", c.Dataset.Source, SourceFile, SourcePostgres)
	}
	if c.Dataset.PreviewRows < 0 {
		return fmt.Errorf("DATASET_PREVIEW_ROWS must not be negative")
	}
	if c.Dataset.PageSize <= 0 {
		return fmt.Errorf("DATASET_PAGE_SIZE must be positive")
	}
	b := c.Dashboard.Baselines
	if b.Clear <= 0 || b.Rain <= 0 || b.Snow <= 0 {
		return fmt.Errorf("weather baselines must be positive, got clear=%v rain=%v snow=%v", b.Clear, b.Rain, b.Snow)
	}
	return nil
}

// parseFatalityLookups reads "title=key;title=key". A bare entry uses the same
// string for title and key. Empty input yields the defaults.
func parseFatalityLookups(raw string) ([]FatalityLookup, error) {
	if strings.TrimSpace(raw) == "" {
		return DefaultFatalityLookups(), nil
	}
	var lookups []FatalityLookup
	for _, part := range strings.Split(raw, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		title, key, found := strings.Cut(part, "=")
		title = strings.TrimSpace(title)
		key = strings.TrimSpace(key)
		if !found {
			key = title
		}
		if title == "" || key == "" {
			return nil, fmt.Errorf("invalid FATALITY_CAUSE_LOOKUPS entry %q", part)
		}
		lookups = append(lookups, FatalityLookup{Title: title, Key: key})
	}
	return lookups, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
