package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"wow-auction-lab/internal/storage/postgres"
)

// DefaultPath is the YAML file read when no path is given.
const DefaultPath = "config/ingest.yaml"

// ErrMissingAPIKey is returned by Validate when no feed api key is configured.
var ErrMissingAPIKey = errors.New("feed api key is required")

// Config is the full runtime configuration.
// Precedence, lowest first: defaults, YAML file, environment, command line flags.
type Config struct {
	Feed       FeedConfig       `yaml:"feed"`
	Postgres   PostgresConfig   `yaml:"postgres"`
	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
	SQLitePath string           `yaml:"sqlite_path"`
	Archive    ArchiveConfig    `yaml:"archive"`
	Backfill   BackfillConfig   `yaml:"backfill"`

	MetricsAddr string `yaml:"metrics_addr"`
	LogPath     string `yaml:"log_path"`
	Verbose     bool   `yaml:"verbose"`
}

type FeedConfig struct {
	APIKey     string        `yaml:"api_key"`
	Realm      string        `yaml:"realm"`
	Region     string        `yaml:"region"`
	BaseURL    string        `yaml:"base_url"` // overrides Region when set
	Locale     string        `yaml:"locale"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
}

// URL returns the API host for the configured region.
func (f FeedConfig) URL() string {
	if f.BaseURL != "" {
		return f.BaseURL
	}
	return fmt.Sprintf("https://%s.api.battle.net", f.Region)
}

type PostgresConfig struct {
	DSN    string          `yaml:"dsn"`
	Tables postgres.Tables `yaml:"tables"`
}

type ClickHouseConfig struct {
	DSN string `yaml:"dsn"`
}

type ArchiveConfig struct {
	Dir string   `yaml:"dir"`
	S3  S3Config `yaml:"s3"`
}

type S3Config struct {
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	Prefix          string `yaml:"prefix"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

// Enabled reports whether an S3 bucket is configured.
func (s S3Config) Enabled() bool {
	return s.Bucket != ""
}

type BackfillConfig struct {
	Concurrency int `yaml:"concurrency"`
}

// Default returns the configuration used when nothing else is set.
func Default() *Config {
	return &Config{
		Feed: FeedConfig{
			Realm:      "wildhammer",
			Region:     "us",
			Locale:     "en_US",
			Timeout:    30 * time.Second,
			MaxRetries: 3,
		},
		Postgres:    PostgresConfig{Tables: postgres.DefaultTables()},
		SQLitePath:  "ingest_runs.db",
		Archive:     ArchiveConfig{S3: S3Config{Region: "us-east-1"}},
		Backfill:    BackfillConfig{Concurrency: 5},
		MetricsAddr: ":9090",
	}
}

// Load builds a Config from defaults, the YAML file at path and the
// environment. A .env file in the working directory is loaded first if present.
// An empty path reads DefaultPath; a missing file is only an error when the
// path was given explicitly.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}
	if err := cfg.loadFile(path); err != nil {
		if !errors.Is(err, os.ErrNotExist) || explicit {
			return nil, err
		}
	}

	cfg.applyEnv()
	cfg.Postgres.Tables = cfg.Postgres.Tables.WithDefaults()
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Feed.APIKey = getEnv("WOW_API_KEY", c.Feed.APIKey)
	c.Feed.Realm = getEnv("WOW_REALM", c.Feed.Realm)
	c.Feed.Region = getEnv("WOW_REGION", c.Feed.Region)
	c.Feed.BaseURL = getEnv("WOW_BASE_URL", c.Feed.BaseURL)
	c.Feed.Locale = getEnv("WOW_LOCALE", c.Feed.Locale)
	c.Feed.Timeout = getEnvDuration("WOW_TIMEOUT", c.Feed.Timeout)
	c.Feed.MaxRetries = getEnvInt("WOW_MAX_RETRIES", c.Feed.MaxRetries)

	c.Postgres.DSN = getEnv("POSTGRES_DSN", c.Postgres.DSN)
	c.ClickHouse.DSN = getEnv("CLICKHOUSE_DSN", c.ClickHouse.DSN)
	c.SQLitePath = getEnv("SQLITE_PATH", c.SQLitePath)

	c.Archive.Dir = getEnv("ARCHIVE_DIR", c.Archive.Dir)
	c.Archive.S3.Bucket = getEnv("S3_BUCKET", c.Archive.S3.Bucket)
	c.Archive.S3.Region = getEnv("S3_REGION", c.Archive.S3.Region)
	c.Archive.S3.Endpoint = getEnv("S3_ENDPOINT", c.Archive.S3.Endpoint)
	c.Archive.S3.Prefix = getEnv("S3_PREFIX", c.Archive.S3.Prefix)
	c.Archive.S3.AccessKeyID = getEnv("S3_ACCESS_KEY_ID", c.Archive.S3.AccessKeyID)
	c.Archive.S3.SecretAccessKey = getEnv("S3_SECRET_ACCESS_KEY", c.Archive.S3.SecretAccessKey)

	c.Backfill.Concurrency = getEnvInt("BACKFILL_CONCURRENCY", c.Backfill.Concurrency)
	c.MetricsAddr = getEnv("METRICS_ADDR", c.MetricsAddr)
	c.LogPath = getEnv("LOG_PATH", c.LogPath)
	c.Verbose = getEnvBool("VERBOSE", c.Verbose)
}

// Validate checks the settings every ingestion run needs.
func (c *Config) Validate() error {
	if c.Feed.APIKey == "" {
		return ErrMissingAPIKey
	}
	if c.Feed.Realm == "" {
		return errors.New("realm is required")
	}
	if c.Feed.BaseURL == "" && c.Feed.Region == "" {
		return errors.New("region or base url is required")
	}
	if c.Backfill.Concurrency <= 0 {
		return fmt.Errorf("backfill concurrency must be positive, got %d", c.Backfill.Concurrency)
	}
	if err := c.Postgres.Tables.Validate(); err != nil {
		return err
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
