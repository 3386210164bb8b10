// Package config provides configuration management for mediapress.
// Values are loaded from a YAML file with environment variable
// overrides; a .env file is honoured if present.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/sotarylen/mediapress/internal/logger"
)

// Config represents the application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logger    logger.Config   `mapstructure:"logger"`
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Ingest    IngestConfig    `mapstructure:"ingest"`
	Fetcher   FetcherConfig   `mapstructure:"fetcher"`
	Transcode TranscodeConfig `mapstructure:"transcode"`
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	Debug       bool   `mapstructure:"debug"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Address      string        `mapstructure:"address"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// StorageConfig holds local asset storage settings.
type StorageConfig struct {
	// UploadDir is the directory assets are written into.
	UploadDir string `mapstructure:"upload_dir"`
	// PublicBaseURL is the URL prefix under which UploadDir is served.
	PublicBaseURL string `mapstructure:"public_base_url"`
}

// IngestConfig holds single-document ingestion settings.
type IngestConfig struct {
	// SiteHost is the local site's host; same-host references are skipped.
	SiteHost string `mapstructure:"site_host"`
	// ExcludedDomains is a newline-separated list of hosts that must
	// never be fetched. Blank lines are ignored.
	ExcludedDomains string `mapstructure:"excluded_domains"`
	// ExcludedTypes lists document types that are never processed.
	ExcludedTypes []string `mapstructure:"excluded_types"`
	// SkipDuplicates enables the two-tier dedup checks.
	SkipDuplicates bool `mapstructure:"skip_duplicates"`
	// NamingTemplate is the filename template for stored assets.
	NamingTemplate string `mapstructure:"naming_template"`
	// MaxRetries is the fetch retry budget per reference per run.
	MaxRetries int `mapstructure:"max_retries"`
	// LedgerCapacity bounds the failure ledger size.
	LedgerCapacity int `mapstructure:"ledger_capacity"`
	// GenerateDerivedSizes controls whether derived sizes (thumbnails)
	// are produced on registration.
	GenerateDerivedSizes bool `mapstructure:"generate_derived_sizes"`
}

// ExcludedDomainList splits the configured excluded-domains block into
// individual hosts, dropping blank lines and surrounding whitespace.
func (c *IngestConfig) ExcludedDomainList() []string {
	var domains []string
	for _, line := range strings.Split(c.ExcludedDomains, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		domains = append(domains, line)
	}
	return domains
}

// FetcherConfig holds remote fetch settings.
type FetcherConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
	// UserAgent is sent on every request; some origins reject empty or
	// default agents.
	UserAgent string `mapstructure:"user_agent"`
	// HostHeader overrides the Host header when non-empty.
	HostHeader string `mapstructure:"host_header"`
	// MaxBodyBytes caps the streamed response size.
	MaxBodyBytes int64 `mapstructure:"max_body_bytes"`
}

// TranscodeConfig holds batch transcode settings.
type TranscodeConfig struct {
	// TargetFormat is the output encoding ("jpeg").
	TargetFormat string `mapstructure:"target_format"`
	// Quality is the target-encoder quality setting.
	Quality int `mapstructure:"quality"`
	// SourceMimeTypes lists convertible source mime types.
	SourceMimeTypes []string `mapstructure:"source_mime_types"`
	// MinSizeBytes excludes assets smaller than this from scans.
	MinSizeBytes int64 `mapstructure:"min_size_bytes"`
	// ScanLimit caps the number of candidates returned by a scan.
	ScanLimit int `mapstructure:"scan_limit"`
	// ChunkSize is the number of candidate ids per conversion chunk.
	ChunkSize int `mapstructure:"chunk_size"`
	// Workers bounds item-level concurrency within a chunk.
	Workers int `mapstructure:"workers"`
	// KeepOriginal retains the source file after conversion. When
	// false, derived sizes are deleted alongside the original.
	KeepOriginal bool `mapstructure:"keep_original"`
	// ReservationTTL is the expiry on the batch-run reservation.
	ReservationTTL time.Duration `mapstructure:"reservation_ttl"`
}

// Load reads configuration from the given file (optional) plus
// environment variables, applying defaults for everything unset.
func Load(cfgFile string) (*Config, error) {
	// .env file not existing is fine; real environment wins either way.
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	setDefaults(v)

	// Config file is optional: defaults and environment variables are
	// a complete configuration on their own.
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks settings that have no usable zero value.
func (c *Config) Validate() error {
	if c.Storage.UploadDir == "" {
		return fmt.Errorf("storage.upload_dir is required")
	}
	if c.Storage.PublicBaseURL == "" {
		return fmt.Errorf("storage.public_base_url is required")
	}
	if c.Ingest.MaxRetries < 0 {
		return fmt.Errorf("ingest.max_retries must not be negative")
	}
	if c.Transcode.ChunkSize <= 0 {
		return fmt.Errorf("transcode.chunk_size must be positive")
	}
	if c.Transcode.Workers <= 0 {
		return fmt.Errorf("transcode.workers must be positive")
	}
	return nil
}
