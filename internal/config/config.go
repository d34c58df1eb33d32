// Package config loads service configuration: defaults, then an optional YAML
// file, then POSTLINE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "POSTLINE_"

// Supported database drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config contains server configuration parameters.
type Config struct {
	HTTPAddr     string   `yaml:"http_addr" env:"HTTP_ADDR"`
	GRPCAddr     string   `yaml:"grpc_addr" env:"GRPC_ADDR"`
	LogLevel     string   `yaml:"log_level" env:"LOG_LEVEL"`
	MaxBodyBytes int64    `yaml:"max_body_bytes" env:"MAX_BODY_BYTES"`
	Version      string   `yaml:"version" env:"VERSION"`
	Commit       string   `yaml:"commit" env:"COMMIT"`
	Auth         Auth     `yaml:"auth" envPrefix:"AUTH_"`
	Database     Database `yaml:"database" envPrefix:"DATABASE_"`
	Tracing      Tracing  `yaml:"tracing" envPrefix:"TRACING_"`
	Shutdown     Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
}

// Auth contains token signing parameters.
type Auth struct {
	Secret     string `yaml:"secret" env:"SECRET"`
	BcryptCost int    `yaml:"bcrypt_cost" env:"BCRYPT_COST"` // 0 means bcrypt.DefaultCost
}

// Database selects and tunes the storage backend.
type Database struct {
	Driver          string   `yaml:"driver" env:"DRIVER"`
	DSN             string   `yaml:"dsn" env:"DSN"`
	MaxOpenConns    int      `yaml:"max_open_conns" env:"MAX_OPEN_CONNS"`
	MaxIdleConns    int      `yaml:"max_idle_conns" env:"MAX_IDLE_CONNS"`
	ConnMaxLifetime Duration `yaml:"conn_max_lifetime" env:"CONN_MAX_LIFETIME"`
}

// Tracing configures the OTLP/HTTP exporter. An empty endpoint disables it.
type Tracing struct {
	Endpoint    string `yaml:"endpoint" env:"ENDPOINT"`
	ServiceName string `yaml:"service_name" env:"SERVICE_NAME"`
	Insecure    bool   `yaml:"insecure" env:"INSECURE"`
}

// Duration is a time.Duration that decodes from "30s"-style strings in both
// YAML and the environment.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	return d.UnmarshalText([]byte(node.Value))
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		HTTPAddr:     ":8080",
		GRPCAddr:     ":9090",
		LogLevel:     "info",
		MaxBodyBytes: 1 << 20,
		Version:      "dev",
		Commit:       "none",
		Database: Database{
			Driver:          DriverMemory,
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: Duration(30 * time.Minute),
		},
		Tracing: Tracing{
			ServiceName: "postline-api",
		},
		Shutdown: Duration(10 * time.Second),
	}
}

// Load builds a Config. path may be empty, in which case POSTLINE_CONFIG is
// consulted; a missing file is an error only when a path was given.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(EnvPrefix + "CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.Database.Driver = strings.ToLower(strings.TrimSpace(cfg.Database.Driver))
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}

// Validate checks that required fields are present and consistent.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Auth.Secret) == "" {
		errs = append(errs, errors.New("auth.secret is required"))
	}
	if c.HTTPAddr == "" {
		errs = append(errs, errors.New("http_addr is required"))
	}
	if c.MaxBodyBytes <= 0 {
		errs = append(errs, errors.New("max_body_bytes must be positive"))
	}
	switch c.Database.Driver {
	case DriverMemory:
	case DriverPostgres, DriverSQLite:
		if c.Database.DSN == "" {
			errs = append(errs, fmt.Errorf("database.dsn is required for driver %q", c.Database.Driver))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown database.driver %q", c.Database.Driver))
	}
	return errors.Join(errs...)
}
