// Package config loads thetactl settings from an optional YAML file
// overlaid with THETA_* environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"thetacore/internal/blob"
	"thetacore/internal/blob/core"
	s3store "thetacore/internal/infra/blob/s3"
)

// EnvPrefix prefixes every environment variable, e.g. THETA_BLOB_DRIVER.
// Fields carry no envconfig tags: a tag makes envconfig fall back to the
// unprefixed name (PATH, ROOT).
const EnvPrefix = "THETA"

// Snapshot store drivers.
const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

// Metrics drivers.
const (
	MetricsNone       = "none"
	MetricsPrometheus = "prometheus"
	MetricsExpvar     = "expvar"
)

// Config is the complete thetactl configuration.
type Config struct {
	// Root is the directory data sources and estimate files resolve against.
	Root    string        `yaml:"root"`
	Blob    BlobConfig    `yaml:"blob"`
	Store   StoreConfig   `yaml:"store"`
	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
	Mutate  MutateConfig  `yaml:"mutate"`
}

// BlobConfig selects where files are read from.
type BlobConfig struct {
	Driver string   `yaml:"driver"`
	S3     S3Config `yaml:"s3"`
}

// S3Config mirrors the S3 backend settings.
type S3Config struct {
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Prefix          string `yaml:"prefix"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id" split_words:"true"`
	SecretAccessKey string `yaml:"secret_access_key" split_words:"true"`
	SessionToken    string `yaml:"session_token" split_words:"true"`
	PathStyle       bool   `yaml:"path_style" split_words:"true"`
}

// StoreConfig selects the snapshot store.
type StoreConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
	DSN    string `yaml:"dsn"`
}

// LogConfig controls the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls operation metrics.
type MetricsConfig struct {
	Driver    string `yaml:"driver"`
	Namespace string `yaml:"namespace"`
}

// MutateConfig holds defaults for mutate options.
type MutateConfig struct {
	// Unstick is used when --unstick is given without a value.
	Unstick float64 `yaml:"unstick"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Root:    ".",
		Blob:    BlobConfig{Driver: string(core.DriverFilesystem), S3: S3Config{Region: "us-east-1"}},
		Store:   StoreConfig{Driver: StoreSQLite, Path: "thetacore.db"},
		Log:     LogConfig{Level: "info", Format: "text"},
		Metrics: MetricsConfig{Driver: MetricsNone, Namespace: "thetacore"},
		Mutate:  MutateConfig{Unstick: 0.1},
	}
}

// Load builds the configuration: defaults, then the YAML file at path when
// path is not empty, then environment variables.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("load config from env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks enumerated settings and driver requirements.
func (c Config) Validate() error {
	var errs []error
	switch core.Driver(c.Blob.Driver) {
	case core.DriverFilesystem, core.DriverMemory:
	case core.DriverS3:
		if c.Blob.S3.Bucket == "" {
			errs = append(errs, errors.New("blob.s3.bucket is required for the s3 driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("blob.driver %q is not one of fs, s3, memory", c.Blob.Driver))
	}
	switch c.Store.Driver {
	case StoreMemory:
	case StoreSQLite:
		if c.Store.Path == "" {
			errs = append(errs, errors.New("store.path is required for the sqlite driver"))
		}
	case StorePostgres:
	default:
		errs = append(errs, fmt.Errorf("store.driver %q is not one of memory, sqlite, postgres", c.Store.Driver))
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	if f := strings.ToLower(c.Log.Format); f != "text" && f != "json" {
		errs = append(errs, fmt.Errorf("log.format %q is not one of text, json", c.Log.Format))
	}
	switch c.Metrics.Driver {
	case MetricsNone, MetricsPrometheus, MetricsExpvar:
	default:
		errs = append(errs, fmt.Errorf("metrics.driver %q is not one of none, prometheus, expvar", c.Metrics.Driver))
	}
	if c.Mutate.Unstick < 0 || c.Mutate.Unstick > 1 {
		errs = append(errs, fmt.Errorf("mutate.unstick %g is outside [0,1]", c.Mutate.Unstick))
	}
	return errors.Join(errs...)
}

// SlogLevel parses the configured level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("log.level %q: %w", l.Level, err)
	}
	return level, nil
}

// BlobConfig converts the blob settings for blob.Open.
func (c Config) BlobConfig() blob.Config {
	s := c.Blob.S3
	return blob.Config{
		Driver: core.Driver(c.Blob.Driver),
		Root:   c.Root,
		S3: s3store.Config{
			Region:          s.Region,
			Bucket:          s.Bucket,
			Prefix:          s.Prefix,
			Endpoint:        s.Endpoint,
			AccessKeyID:     s.AccessKeyID,
			SecretAccessKey: s.SecretAccessKey,
			SessionToken:    s.SessionToken,
			PathStyle:       s.PathStyle,
		},
	}
}
