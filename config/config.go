package config

import (
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML duration strings
// such as "30s" or "500ms".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std converts back to the standard library type.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

type Config struct {
	Retailflow RetailflowConfig `yaml:"retailflow"`
	API        APIConfig        `yaml:"api"`
	CSV        CSVConfig        `yaml:"csv"`
	Database   DatabaseConfig   `yaml:"database"`
	Archive    ArchiveConfig    `yaml:"archive"`
	Logging    LoggingConfig    `yaml:"logging"`
}

type RetailflowConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

type APIConfig struct {
	BaseURL   string          `yaml:"base_url"`
	Timeout   Duration        `yaml:"timeout"`
	UserAgent string          `yaml:"user_agent"`
	Retry     RetryConfig     `yaml:"retry"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

type RetryConfig struct {
	MaxAttempts int      `yaml:"max_attempts"`
	BaseDelay   Duration `yaml:"base_delay"`
}

type RateLimitConfig struct {
	RequestsPerSecond int `yaml:"requests_per_second"`
	BurstSize         int `yaml:"burst_size"`
}

type CSVConfig struct {
	Dir              string `yaml:"dir"`
	TransactionsFile string `yaml:"transactions_file"`
	CustomersFile    string `yaml:"customers_file"`
}

type DatabaseConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	Name           string        `yaml:"name"`
	User           string        `yaml:"user"`
	Password       string        `yaml:"password"`
	SSLMode        string        `yaml:"ssl_mode"`
	MaxConns       int      `yaml:"max_conns"`
	ConnectTimeout Duration `yaml:"connect_timeout"`
}

// DSN renders the configuration as a postgres connection string.
func (d DatabaseConfig) DSN() string {
	sslMode := d.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:     d.Name,
		RawQuery: "sslmode=" + sslMode,
	}
	return u.String()
}

type ArchiveConfig struct {
	Enabled     bool     `yaml:"enabled"`
	Dir         string   `yaml:"dir"`
	Compression string   `yaml:"compression"`
	S3          S3Config `yaml:"s3"`
}

type S3Config struct {
	Enabled         bool   `yaml:"enabled"`
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	PathStyle       bool   `yaml:"path_style"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

type LoggingConfig struct {
	Level      string           `yaml:"level"`
	Format     string           `yaml:"format"`
	Output     string           `yaml:"output"`
	MaxAge     int              `yaml:"max_age"`
	CloudWatch CloudWatchConfig `yaml:"cloudwatch"`
}

type CloudWatchConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Region    string `yaml:"region"`
	Namespace string `yaml:"namespace"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Config{
		API: APIConfig{
			Timeout: Duration(30 * time.Second),
			Retry: RetryConfig{
				MaxAttempts: 3,
				BaseDelay:   Duration(time.Second),
			},
		},
		CSV: CSVConfig{
			Dir:              "data",
			TransactionsFile: "sales_transactions.csv",
			CustomersFile:    "customers.csv",
		},
		Database: DatabaseConfig{
			Host:    "localhost",
			Port:    5432,
			SSLMode: "disable",
		},
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnvOverrides(&config)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

// applyEnvOverrides lets deployment environments replace file values without
// editing the config file.
func applyEnvOverrides(config *Config) {
	if v := os.Getenv("API_BASE_URL"); v != "" {
		config.API.BaseURL = strings.TrimSpace(v)
	}
	if v := os.Getenv("DB_HOST"); v != "" {
		config.Database.Host = strings.TrimSpace(v)
	}
	if v := os.Getenv("DB_PORT"); v != "" {
		if port, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			config.Database.Port = port
		}
	}
	if v := os.Getenv("DB_NAME"); v != "" {
		config.Database.Name = strings.TrimSpace(v)
	}
	if v := os.Getenv("DB_USER"); v != "" {
		config.Database.User = strings.TrimSpace(v)
	}
	if v := os.Getenv("DB_PASSWORD"); v != "" {
		config.Database.Password = v
	}

	if config.Archive.S3.Enabled {
		if v := os.Getenv("AWS_ACCESS_KEY_ID"); v != "" {
			config.Archive.S3.AccessKeyID = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_SECRET_ACCESS_KEY"); v != "" {
			config.Archive.S3.SecretAccessKey = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_REGION"); v != "" {
			config.Archive.S3.Region = strings.TrimSpace(v)
		}
		if v := os.Getenv("S3_BUCKET"); v != "" {
			config.Archive.S3.Bucket = strings.TrimSpace(v)
		}
	}
	config.Archive.S3.Bucket = strings.TrimSpace(config.Archive.S3.Bucket)
}

func validateConfig(cfg *Config) error {
	if cfg.Retailflow.Name == "" {
		return fmt.Errorf("retailflow.name is required")
	}
	if cfg.Retailflow.Version == "" {
		return fmt.Errorf("retailflow.version is required")
	}

	if cfg.API.BaseURL == "" {
		return fmt.Errorf("api.base_url is required")
	}
	if _, err := url.ParseRequestURI(cfg.API.BaseURL); err != nil {
		return fmt.Errorf("api.base_url '%s' is invalid: %w", cfg.API.BaseURL, err)
	}
	if cfg.API.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("api.retry.max_attempts must be greater than 0")
	}
	if cfg.API.Retry.BaseDelay <= 0 {
		return fmt.Errorf("api.retry.base_delay must be greater than 0")
	}

	if cfg.CSV.Dir == "" {
		return fmt.Errorf("csv.dir is required")
	}
	if cfg.CSV.TransactionsFile == "" {
		return fmt.Errorf("csv.transactions_file is required")
	}

	if cfg.Database.Name == "" {
		return fmt.Errorf("database.name is required")
	}
	if cfg.Database.User == "" {
		return fmt.Errorf("database.user is required")
	}
	if IsProductionLike(AppEnvironment()) && cfg.Database.Password == "" {
		return fmt.Errorf("database.password is required in %s", AppEnvironment())
	}

	if cfg.Archive.Enabled && cfg.Archive.Dir == "" {
		return fmt.Errorf("archive.dir is required when the archive is enabled")
	}
	if cfg.Archive.S3.Enabled {
		if cfg.Archive.S3.Bucket == "" {
			return fmt.Errorf("archive.s3.bucket is required when S3 is enabled")
		}
		if cfg.Archive.S3.Region == "" {
			return fmt.Errorf("archive.s3.region is required when S3 is enabled")
		}
		if !isValidS3Bucket(cfg.Archive.S3.Bucket) {
			return fmt.Errorf("archive.s3.bucket '%s' is invalid", cfg.Archive.S3.Bucket)
		}
	}

	return nil
}

var s3BucketRegexp = regexp.MustCompile(`^[a-z0-9][a-z0-9.-]{1,61}[a-z0-9]$`)

func isValidS3Bucket(name string) bool {
	if len(name) < 3 || len(name) > 63 {
		return false
	}
	if strings.Contains(name, "..") || strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".") {
		return false
	}
	return s3BucketRegexp.MatchString(name)
}
