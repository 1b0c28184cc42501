// Package config loads the lakehouse configuration: a YAML file, then
// environment overrides, then validation. Command-line flags are applied by
// the binaries on top of the returned Config.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"lakehouse/internal/metrics/datadog"
	"lakehouse/internal/objectstore"
	"lakehouse/internal/storage"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "LAKEHOUSE_"

// Config is the full configuration tree.
type Config struct {
	Catalog     Catalog     `yaml:"catalog"`
	ObjectStore ObjectStore `yaml:"objectstore"`
	Ingest      Ingest      `yaml:"ingest"`
	Log         Log         `yaml:"log"`
	Metrics     Metrics     `yaml:"metrics"`
}

// Catalog configures the relational catalog.
type Catalog struct {
	Kind          string        `yaml:"kind" validate:"required,oneof=postgres sqlite mssql"`
	DSN           string        `yaml:"dsn" validate:"required"`
	MaxConns      int           `yaml:"max_conns" validate:"gte=0"`
	SchemaTimeout time.Duration `yaml:"schema_timeout" validate:"gte=0"`
}

// ObjectStore configures the object store holding raw uploads and derived
// artifacts.
type ObjectStore struct {
	Kind         string `yaml:"kind" validate:"required,oneof=fs gcs"`
	Root         string `yaml:"root" validate:"required_if=Kind fs"`
	Bucket       string `yaml:"bucket" validate:"required_if=Kind gcs"`
	EmulatorHost string `yaml:"emulator_host"`
}

// Ingest tunes the engine and runner.
type Ingest struct {
	Workers            int           `yaml:"workers" validate:"gte=1,lte=256"`
	RetryAttempts      uint          `yaml:"retry_attempts" validate:"gte=1,lte=20"`
	RetryDelay         time.Duration `yaml:"retry_delay" validate:"gte=0"`
	Owner              string        `yaml:"owner"`
	EncodingConfidence float64       `yaml:"encoding_confidence" validate:"gte=0,lte=1"`
	ParquetCopy        bool          `yaml:"parquet_copy"`
}

// Log selects the logger mode and level.
type Log struct {
	Mode  string `yaml:"mode" validate:"oneof=prod production dev development"`
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
}

// Metrics selects the metrics backend.
type Metrics struct {
	Backend    string        `yaml:"backend" validate:"omitempty,oneof=none datadog"`
	Job        string        `yaml:"job"`
	Tags       []string      `yaml:"tags"`
	FlushEvery time.Duration `yaml:"flush_every" validate:"gte=0"`
}

// Default returns a configuration that runs against a local SQLite catalog
// and a filesystem object store.
func Default() Config {
	return Config{
		Catalog: Catalog{
			Kind:          "sqlite",
			DSN:           "file:lakehouse.db",
			SchemaTimeout: 30 * time.Second,
		},
		ObjectStore: ObjectStore{
			Kind: "fs",
			Root: "data",
		},
		Ingest: Ingest{
			Workers:            4,
			RetryAttempts:      3,
			RetryDelay:         200 * time.Millisecond,
			EncodingConfidence: 0.7,
			ParquetCopy:        true,
		},
		Log: Log{Mode: "production", Level: "info"},
		Metrics: Metrics{
			Backend:    "none",
			Job:        "lakehouse_ingest",
			FlushEvery: 60 * time.Second,
		},
	}
}

// Load reads path (if non-empty) over Default, applies environment overrides
// and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyEnv overlays environment variables. lookup is os.LookupEnv outside
// of tests.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v, ok := lookup(k); ok && v != "" {
				*dst = v
				return
			}
		}
	}
	var errs []error
	num := func(dst *int, key string) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	dur := func(dst *time.Duration, key string) {
		if v, ok := lookup(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}

	str(&c.Catalog.Kind, EnvPrefix+"CATALOG_KIND")
	str(&c.Catalog.DSN, EnvPrefix+"CATALOG_DSN", "DATABASE_URL")
	num(&c.Catalog.MaxConns, EnvPrefix+"CATALOG_MAX_CONNS")
	dur(&c.Catalog.SchemaTimeout, EnvPrefix+"CATALOG_SCHEMA_TIMEOUT")

	str(&c.ObjectStore.Kind, EnvPrefix+"OBJECTSTORE_KIND")
	str(&c.ObjectStore.Root, EnvPrefix+"OBJECTSTORE_ROOT")
	str(&c.ObjectStore.Bucket, EnvPrefix+"OBJECTSTORE_BUCKET")
	str(&c.ObjectStore.EmulatorHost, EnvPrefix+"OBJECTSTORE_EMULATOR_HOST", "STORAGE_EMULATOR_HOST")

	num(&c.Ingest.Workers, EnvPrefix+"INGEST_WORKERS")
	attempts := int(c.Ingest.RetryAttempts)
	num(&attempts, EnvPrefix+"INGEST_RETRY_ATTEMPTS")
	if attempts >= 0 {
		c.Ingest.RetryAttempts = uint(attempts)
	}
	dur(&c.Ingest.RetryDelay, EnvPrefix+"INGEST_RETRY_DELAY")
	str(&c.Ingest.Owner, EnvPrefix+"INGEST_OWNER")
	if v, ok := lookup(EnvPrefix + "INGEST_ENCODING_CONFIDENCE"); ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sINGEST_ENCODING_CONFIDENCE: %w", EnvPrefix, err))
		} else {
			c.Ingest.EncodingConfidence = f
		}
	}
	if v, ok := lookup(EnvPrefix + "INGEST_PARQUET_COPY"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sINGEST_PARQUET_COPY: %w", EnvPrefix, err))
		} else {
			c.Ingest.ParquetCopy = b
		}
	}

	str(&c.Log.Mode, EnvPrefix+"LOG_MODE")
	str(&c.Log.Level, EnvPrefix+"LOG_LEVEL")

	str(&c.Metrics.Backend, "METRICS_BACKEND")
	str(&c.Metrics.Job, EnvPrefix+"METRICS_JOB")
	if v, ok := lookup("METRICS_TAGS"); ok && v != "" {
		c.Metrics.Tags = datadog.ParseTagsCSV(v)
	}
	dur(&c.Metrics.FlushEvery, EnvPrefix+"METRICS_FLUSH_EVERY")

	return errors.Join(errs...)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterStructValidation(poolCoversWorkers, Config{})
	return v
}

// poolCoversWorkers rejects an explicit catalog pool too small for every
// worker to hold its hash lock connection and still run a query.
func poolCoversWorkers(sl validator.StructLevel) {
	c := sl.Current().Interface().(Config)
	if c.Catalog.MaxConns != 0 && c.Catalog.MaxConns <= c.Ingest.Workers {
		sl.ReportError(c.Catalog.MaxConns, "max_conns", "Catalog.MaxConns", "gtfield", "ingest.workers")
	}
}

// Validate checks struct constraints and reports every violation at once.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate config: %w", err)
	}
	msgs := make([]error, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Errorf("%s: failed %q (value %v)", fieldPath(fe), fe.Tag()+param(fe), fe.Value()))
	}
	return fmt.Errorf("invalid config: %w", errors.Join(msgs...))
}

func param(fe validator.FieldError) string {
	if fe.Param() == "" {
		return ""
	}
	return "=" + fe.Param()
}

// fieldPath renders "Config.Ingest.Workers" as "ingest.workers".
func fieldPath(fe validator.FieldError) string {
	ns := strings.TrimPrefix(fe.StructNamespace(), "Config.")
	return strings.ToLower(ns)
}

// StoreConfig maps the objectstore section onto objectstore.Config.
func (c *Config) StoreConfig() objectstore.Config {
	return objectstore.Config{
		Kind:         c.ObjectStore.Kind,
		Root:         c.ObjectStore.Root,
		Bucket:       c.ObjectStore.Bucket,
		EmulatorHost: c.ObjectStore.EmulatorHost,
	}
}

// RetryConfig maps the ingest retry settings onto objectstore.RetryConfig.
func (c *Config) RetryConfig() objectstore.RetryConfig {
	return objectstore.RetryConfig{Attempts: c.Ingest.RetryAttempts, Delay: c.Ingest.RetryDelay}
}

// CatalogConfig maps the catalog section onto storage.Config. When MaxConns
// is unset the pool is sized for the worker count plus headroom for locks.
func (c *Config) CatalogConfig() storage.Config {
	maxConns := c.Catalog.MaxConns
	if maxConns == 0 {
		maxConns = c.Ingest.Workers*2 + 2
	}
	return storage.Config{Kind: c.Catalog.Kind, DSN: c.Catalog.DSN, MaxConns: maxConns}
}
