// Package config loads service configuration from a YAML file and the
// environment. Environment variables win over the file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Session   SessionConfig   `yaml:"session"`
	Optimizer OptimizerConfig `yaml:"optimizer"`
	Rate      RateConfig      `yaml:"rate"`
	Log       LogConfig       `yaml:"log"`
	Tracing   TracingConfig   `yaml:"tracing"`
}

type ServerConfig struct {
	Host              string        `yaml:"host"`
	Port              int           `yaml:"port"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
}

// Addr is the listen address.
func (s ServerConfig) Addr() string { return fmt.Sprintf("%s:%d", s.Host, s.Port) }

type DatabaseConfig struct {
	Driver   string         `yaml:"driver"` // memory, sqlite, postgres
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres"`
}

type SQLiteConfig struct {
	Path string `yaml:"path"`
}

type PostgresConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	URL string `yaml:"url"`
}

type SessionConfig struct {
	Secret  string        `yaml:"secret"`
	Backend string        `yaml:"backend"` // memory, redis
	TTL     time.Duration `yaml:"ttl"`
}

type OptimizerConfig struct {
	SolveTimeout   time.Duration `yaml:"solve_timeout"`
	NearbyRadiusKm float64       `yaml:"nearby_radius_km"`
	// MaxConcurrent caps simplex calls in flight; 0 means no cap.
	MaxConcurrent int `yaml:"max_concurrent_solves"`
}

type RateConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type TracingConfig struct {
	Stdout      bool   `yaml:"stdout"`
	ServiceName string `yaml:"service_name"`
}

func Defaults() *Config {
	return &Config{
		Server: ServerConfig{Host: "", Port: 8080, ReadHeaderTimeout: 5 * time.Second},
		Database: DatabaseConfig{
			Driver: "memory",
			SQLite: SQLiteConfig{Path: "optiguide.db"},
		},
		Session: SessionConfig{
			Secret:  "optiguide-dev-secret-change-me",
			Backend: "memory",
			TTL:     12 * time.Hour,
		},
		Optimizer: OptimizerConfig{SolveTimeout: 10 * time.Second, NearbyRadiusKm: 50, MaxConcurrent: 4},
		Rate:      RateConfig{RPS: 20, Burst: 40},
		Log:       LogConfig{Level: "info", Format: "text"},
		Tracing:   TracingConfig{ServiceName: "optiguide"},
	}
}

// Load reads path (a missing file yields defaults), then applies the environment.
func Load(path string) (*Config, error) {
	cfg := Defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		case os.IsNotExist(err):
		default:
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

// ApplyEnv overlays environment variables read through getenv.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := getenv("PORT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PORT: %w", err)
		}
		c.Server.Port = n
	}
	if v := strings.TrimSpace(getenv("DATABASE_URL")); v != "" {
		c.Database.Driver = "postgres"
		c.Database.Postgres.URL = v
	}
	if v := getenv("SQLITE_PATH"); v != "" {
		c.Database.Driver = "sqlite"
		c.Database.SQLite.Path = v
	}
	if v := getenv("DB_DRIVER"); v != "" {
		c.Database.Driver = v
	}
	if v := getenv("REDIS_URL"); v != "" {
		c.Redis.URL = v
	}
	if v := getenv("SESSION_SECRET"); v != "" {
		c.Session.Secret = v
	}
	if v := getenv("SESSION_BACKEND"); v != "" {
		c.Session.Backend = v
	}
	if v := getenv("SOLVE_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("SOLVE_TIMEOUT: %w", err)
		}
		c.Optimizer.SolveTimeout = d
	}
	if v := getenv("MAX_CONCURRENT_SOLVES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("MAX_CONCURRENT_SOLVES: %w", err)
		}
		c.Optimizer.MaxConcurrent = n
	}
	if v := getenv("RATE_RPS"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("RATE_RPS: %w", err)
		}
		c.Rate.RPS = f
	}
	if v := getenv("RATE_BURST"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("RATE_BURST: %w", err)
		}
		c.Rate.Burst = n
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := getenv("LOG_FORMAT"); v != "" {
		c.Log.Format = v
	}
	if v := getenv("TRACE_STDOUT"); v != "" {
		c.Tracing.Stdout = v == "1" || strings.EqualFold(v, "true")
	}
	return nil
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "memory":
	case "sqlite":
		if c.Database.SQLite.Path == "" {
			return fmt.Errorf("database.sqlite.path is required")
		}
	case "postgres":
		if c.Database.Postgres.URL == "" {
			return fmt.Errorf("database.postgres.url is required")
		}
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}
	switch c.Session.Backend {
	case "memory":
	case "redis":
		if c.Redis.URL == "" {
			return fmt.Errorf("session backend redis needs redis.url")
		}
	default:
		return fmt.Errorf("unsupported session backend: %s", c.Session.Backend)
	}
	if c.Optimizer.SolveTimeout <= 0 {
		return fmt.Errorf("optimizer.solve_timeout must be > 0")
	}
	if c.Optimizer.MaxConcurrent < 0 {
		return fmt.Errorf("optimizer.max_concurrent_solves must be >= 0")
	}
	if c.Rate.RPS < 0 || c.Rate.Burst < 0 {
		return fmt.Errorf("rate limits must be >= 0")
	}
	return nil
}

func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
