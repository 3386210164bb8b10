package config

import (
	"time"

	"github.com/spf13/viper"
)

// Default values for settings with sensible production behaviour.
const (
	DefaultFetchTimeout   = 30 * time.Second
	DefaultMaxBodyBytes   = 25 * 1024 * 1024
	DefaultMaxRetries     = 2
	DefaultLedgerCapacity = 500
	DefaultScanLimit      = 250
	DefaultChunkSize      = 10
	DefaultWorkers        = 4
	DefaultReservationTTL = 2 * time.Minute
	DefaultMinSizeBytes   = 8 * 1024
	DefaultJPEGQuality    = 82

	// DefaultUserAgent is a conservative browser-like agent: several
	// origins reject requests carrying Go's default agent.
	DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36 mediapress/1.0"

	// DefaultNamingTemplate keeps the original filename.
	DefaultNamingTemplate = "%filename%"
)

// setDefaults applies default values to the viper instance.
func setDefaults(v *viper.Viper) {
	v.SetDefault("app", map[string]any{
		"name":        "mediapress",
		"environment": "production",
		"debug":       false,
	})

	v.SetDefault("logger", map[string]any{
		"level":       "info",
		"development": false,
		"encoding":    "json",
	})

	v.SetDefault("server", map[string]any{
		"address":       ":8080",
		"read_timeout":  "15s",
		"write_timeout": "15s",
		"idle_timeout":  "60s",
	})

	v.SetDefault("database", map[string]any{
		"host":    "localhost",
		"port":    "5432",
		"user":    "mediapress",
		"dbname":  "mediapress",
		"sslmode": "disable",
	})

	v.SetDefault("storage", map[string]any{
		"upload_dir":      "./uploads",
		"public_base_url": "http://localhost:8080/media",
	})

	v.SetDefault("ingest", map[string]any{
		"site_host":              "localhost",
		"excluded_domains":       "",
		"excluded_types":         []string{},
		"skip_duplicates":        true,
		"naming_template":        DefaultNamingTemplate,
		"max_retries":            DefaultMaxRetries,
		"ledger_capacity":        DefaultLedgerCapacity,
		"generate_derived_sizes": true,
	})

	v.SetDefault("fetcher", map[string]any{
		"timeout":        DefaultFetchTimeout.String(),
		"user_agent":     DefaultUserAgent,
		"host_header":    "",
		"max_body_bytes": DefaultMaxBodyBytes,
	})

	v.SetDefault("transcode", map[string]any{
		"target_format":     "jpeg",
		"quality":           DefaultJPEGQuality,
		"source_mime_types": []string{"image/png", "image/bmp", "image/tiff"},
		"min_size_bytes":    DefaultMinSizeBytes,
		"scan_limit":        DefaultScanLimit,
		"chunk_size":        DefaultChunkSize,
		"workers":           DefaultWorkers,
		"keep_original":     false,
		"reservation_ttl":   DefaultReservationTTL.String(),
	})
}
