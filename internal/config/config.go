// Package config loads process configuration: a YAML file with defaults,
// overridden by AFYA_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // zone names resolve without a system database

	"gopkg.in/yaml.v3"

	"afyafamilia/internal/analytics"
	"afyafamilia/internal/blob"
	"afyafamilia/internal/core"
	"afyafamilia/internal/platform/logger"
	"afyafamilia/internal/present"
)

// Config is the full process configuration.
type Config struct {
	Storage StorageConfig    `yaml:"storage"`
	Blob    BlobConfig       `yaml:"blob"`
	Log     logger.LogConfig `yaml:"log"`
	Report  ReportConfig     `yaml:"report"`
}

// StorageConfig selects the record store.
type StorageConfig struct {
	Driver      string `yaml:"driver"`
	SQLitePath  string `yaml:"sqlite_path"`
	PostgresDSN string `yaml:"postgres_dsn"`
}

// BlobConfig selects the archive object store.
type BlobConfig struct {
	Driver string        `yaml:"driver"`
	FSRoot string        `yaml:"fs_root"`
	S3     blob.S3Config `yaml:"s3"`
}

// ReportConfig tunes report generation and display.
type ReportConfig struct {
	ReferenceRanges string `yaml:"reference_ranges"`
	GraceDays       int    `yaml:"grace_days"`
	RiskYears       int    `yaml:"risk_years"`
	Language        string `yaml:"language"`
	TimeZone        string `yaml:"timezone"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Storage: StorageConfig{Driver: string(core.StorageSQLite), SQLitePath: "./afyafamilia.db"},
		Blob:    BlobConfig{Driver: string(blob.DriverFilesystem), FSRoot: "./archive"},
		Log:     logger.LogConfig{Level: "info", Format: logger.FormatConsole, OutputPath: "stderr"},
		Report: ReportConfig{
			GraceDays: analytics.DefaultGraceDays,
			RiskYears: analytics.DefaultRiskYears,
			Language:  string(present.DefaultLang),
			TimeZone:  "UTC",
		},
	}
}

// Load reads path over the defaults and applies environment overrides. An
// empty or missing path yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}
	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	setEnv(&c.Storage.Driver, "AFYA_STORAGE_DRIVER")
	setEnv(&c.Storage.SQLitePath, "AFYA_SQLITE_PATH")
	setEnv(&c.Storage.PostgresDSN, "AFYA_POSTGRES_DSN")
	setEnv(&c.Blob.Driver, "AFYA_BLOB_DRIVER")
	setEnv(&c.Blob.FSRoot, "AFYA_BLOB_FS_ROOT")
	setEnv(&c.Blob.S3.Bucket, "AFYA_BLOB_S3_BUCKET")
	setEnv(&c.Blob.S3.Region, "AFYA_BLOB_S3_REGION")
	setEnv(&c.Blob.S3.Endpoint, "AFYA_BLOB_S3_ENDPOINT")
	if v, ok := os.LookupEnv("AFYA_BLOB_S3_PATH_STYLE"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Blob.S3.PathStyle = b
		}
	}
	setEnv(&c.Log.Level, "AFYA_LOG_LEVEL")
	setEnv(&c.Log.Format, "AFYA_LOG_FORMAT")
	setEnv(&c.Report.ReferenceRanges, "AFYA_REFERENCE_RANGES")
	setEnv(&c.Report.TimeZone, "AFYA_TIMEZONE")
}

func setEnv(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []string
	switch core.StorageDriver(c.Storage.Driver) {
	case core.StorageMemory, core.StorageSQLite:
	case core.StoragePostgres:
		if c.Storage.PostgresDSN == "" {
			errs = append(errs, "storage.postgres_dsn is required for the postgres driver")
		}
	default:
		errs = append(errs, fmt.Sprintf("unknown storage driver %q", c.Storage.Driver))
	}
	switch blob.Driver(c.Blob.Driver) {
	case blob.DriverFilesystem, blob.DriverMemory:
	case blob.DriverS3:
		if c.Blob.S3.Bucket == "" {
			errs = append(errs, "blob.s3.bucket is required for the s3 driver")
		}
	default:
		errs = append(errs, fmt.Sprintf("unknown blob driver %q", c.Blob.Driver))
	}
	switch c.Log.Format {
	case logger.FormatJSON, logger.FormatConsole:
	default:
		errs = append(errs, fmt.Sprintf("unknown log format %q", c.Log.Format))
	}
	if _, err := present.ParseLang(c.Report.Language); err != nil {
		errs = append(errs, err.Error())
	}
	if _, err := time.LoadLocation(c.Report.TimeZone); err != nil {
		errs = append(errs, fmt.Sprintf("unknown time zone %q", c.Report.TimeZone))
	}
	if len(errs) > 0 {
		return fmt.Errorf("configuration errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// StorageConfig returns the record store selection.
func (c *Config) StorageConfig() core.StorageConfig {
	return core.StorageConfig{
		Driver:      core.StorageDriver(c.Storage.Driver),
		SQLitePath:  c.Storage.SQLitePath,
		PostgresDSN: c.Storage.PostgresDSN,
	}
}

// BlobConfig returns the archive store selection.
func (c *Config) BlobConfig() blob.Config {
	return blob.Config{Driver: blob.Driver(c.Blob.Driver), FSRoot: c.Blob.FSRoot, S3: c.Blob.S3}
}

// ReferenceRanges loads the configured reference set, or the embedded one
// when none is configured.
func (c *Config) ReferenceRanges() (analytics.ReferenceRanges, error) {
	if c.Report.ReferenceRanges == "" {
		return analytics.DefaultReferenceRanges(), nil
	}
	data, err := os.ReadFile(c.Report.ReferenceRanges)
	if err != nil {
		return analytics.ReferenceRanges{}, fmt.Errorf("read reference ranges: %w", err)
	}
	return analytics.ParseReferenceRanges(data)
}

// Location returns the time zone of calendar-day checks. An invalid zone
// falls back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Report.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Language returns the display language.
func (c *Config) Language() present.Lang {
	lang, err := present.ParseLang(c.Report.Language)
	if err != nil {
		return present.DefaultLang
	}
	return lang
}
