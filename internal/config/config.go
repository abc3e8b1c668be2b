package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"uptimeledger/internal/models"
)

// Store kinds.
const (
	StoreFile     = "file"
	StoreGist     = "gist"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
)

// Config represents configuration data for the uptime ledger.
type Config struct {
	IntervalMinutes     int                        `yaml:"interval_minutes"`
	RetentionDays       int                        `yaml:"retention_days"`
	ProbeTimeoutSeconds int                        `yaml:"probe_timeout_seconds"`
	ProbeConcurrency    int                        `yaml:"probe_concurrency"`
	UserAgent           string                     `yaml:"user_agent"`
	DetectConflicts     bool                       `yaml:"detect_conflicts"`
	Logging             LoggingConfig              `yaml:"logging"`
	Store               StoreConfig                `yaml:"store"`
	Services            []models.ServiceDescriptor `yaml:"services"`
}

// LoggingConfig selects the slog handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// StoreConfig selects and configures the ledger backend.
type StoreConfig struct {
	Kind     string         `yaml:"kind"`
	File     FileConfig     `yaml:"file"`
	Gist     GistConfig     `yaml:"gist"`
	Postgres PostgresConfig `yaml:"postgres"`
	Redis    RedisConfig    `yaml:"redis"`
}

// FileConfig stores the ledger on local disk.
type FileConfig struct {
	Path string `yaml:"path"`
}

// GistConfig stores the ledger as a file inside a GitHub gist.
type GistConfig struct {
	ID       string `yaml:"id"`
	Token    string `yaml:"token"`
	Filename string `yaml:"filename"`
	APIURL   string `yaml:"api_url"`
}

// PostgresConfig stores the ledger as a row in a Postgres table.
type PostgresConfig struct {
	DSN      string `yaml:"dsn"`
	Table    string `yaml:"table"`
	Document string `yaml:"document"`
}

// RedisConfig stores the ledger in a Redis hash.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Key      string `yaml:"key"`
}

// DefaultConfig returns the defaults applied before the YAML file is read.
func DefaultConfig() Config {
	return Config{
		IntervalMinutes:     5,
		RetentionDays:       30,
		ProbeTimeoutSeconds: 10,
		ProbeConcurrency:    4,
		UserAgent:           "uptimeledger/1.0",
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Store: StoreConfig{
			Kind: StoreFile,
			File: FileConfig{Path: filepath.Join(".dist", "data", "uptime.json")},
			Gist: GistConfig{
				Filename: "uptime.json",
				APIURL:   "https://api.github.com",
			},
			Postgres: PostgresConfig{
				Table:    "ledger_documents",
				Document: "uptime",
			},
			Redis: RedisConfig{
				Addr: "localhost:6379",
				Key:  "uptimeledger:ledger",
			},
		},
	}
}

// Load reads configuration from a YAML file, applies environment overrides and
// validates the result. A missing file falls back to defaults, which still need at
// least one service from somewhere.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		content, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(content, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)
	if err := validateAndNormalize(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v, ok := os.LookupEnv("LEDGER_STORE"); ok && v != "" {
		cfg.Store.Kind = v
	}
	if v, ok := os.LookupEnv("GIST_ID"); ok && v != "" {
		cfg.Store.Gist.ID = v
	}
	if v, ok := os.LookupEnv("GH_PAT"); ok && v != "" {
		cfg.Store.Gist.Token = v
	}
	if v, ok := os.LookupEnv("DATABASE_URL"); ok && v != "" {
		cfg.Store.Postgres.DSN = v
	}
	if v, ok := os.LookupEnv("REDIS_ADDR"); ok && v != "" {
		cfg.Store.Redis.Addr = v
	}
	if v, ok := os.LookupEnv("REDIS_PASSWORD"); ok && v != "" {
		cfg.Store.Redis.Password = v
	}
	if v, ok := os.LookupEnv("LOG_LEVEL"); ok && v != "" {
		cfg.Logging.Level = v
	}
}

func applyDefaults(cfg *Config) {
	defaults := DefaultConfig()
	if cfg.IntervalMinutes <= 0 {
		cfg.IntervalMinutes = defaults.IntervalMinutes
	}
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = defaults.RetentionDays
	}
	if cfg.ProbeTimeoutSeconds <= 0 {
		cfg.ProbeTimeoutSeconds = defaults.ProbeTimeoutSeconds
	}
	if cfg.ProbeConcurrency <= 0 {
		cfg.ProbeConcurrency = defaults.ProbeConcurrency
	}
	if strings.TrimSpace(cfg.UserAgent) == "" {
		cfg.UserAgent = defaults.UserAgent
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = defaults.Logging.Level
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = defaults.Logging.Format
	}

	s := &cfg.Store
	s.Kind = strings.ToLower(strings.TrimSpace(s.Kind))
	if s.Kind == "" {
		s.Kind = defaults.Store.Kind
	}
	if s.File.Path == "" {
		s.File.Path = defaults.Store.File.Path
	}
	if s.Gist.Filename == "" {
		s.Gist.Filename = defaults.Store.Gist.Filename
	}
	if s.Gist.APIURL == "" {
		s.Gist.APIURL = defaults.Store.Gist.APIURL
	}
	if s.Postgres.Table == "" {
		s.Postgres.Table = defaults.Store.Postgres.Table
	}
	if s.Postgres.Document == "" {
		s.Postgres.Document = defaults.Store.Postgres.Document
	}
	if s.Redis.Addr == "" {
		s.Redis.Addr = defaults.Store.Redis.Addr
	}
	if s.Redis.Key == "" {
		s.Redis.Key = defaults.Store.Redis.Key
	}

	for i := range cfg.Services {
		svc := &cfg.Services[i]
		if strings.TrimSpace(svc.Method) == "" {
			svc.Method = models.MethodGet
		}
		if svc.TimeoutSeconds <= 0 {
			svc.TimeoutSeconds = cfg.ProbeTimeoutSeconds
		}
	}
}

func validateAndNormalize(cfg *Config) error {
	switch cfg.Store.Kind {
	case StoreFile, StoreGist, StorePostgres, StoreRedis:
	default:
		return fmt.Errorf("config: unknown store kind %q", cfg.Store.Kind)
	}

	if len(cfg.Services) == 0 {
		return errors.New("configuration must define at least one service")
	}

	seen := make(map[string]struct{}, len(cfg.Services))
	for i := range cfg.Services {
		svc := &cfg.Services[i]
		svc.Name = strings.TrimSpace(svc.Name)
		svc.URL = strings.TrimSpace(svc.URL)
		svc.Method = strings.ToUpper(strings.TrimSpace(svc.Method))

		if svc.Name == "" {
			return fmt.Errorf("config: service[%d] missing name", i)
		}
		if _, ok := seen[svc.Name]; ok {
			return fmt.Errorf("config: duplicate service name %q", svc.Name)
		}
		seen[svc.Name] = struct{}{}

		if svc.URL == "" {
			return fmt.Errorf("config: service %q missing url", svc.Name)
		}
		switch svc.Method {
		case models.MethodGet, models.MethodHead:
			if !strings.HasPrefix(svc.URL, "http://") && !strings.HasPrefix(svc.URL, "https://") {
				return fmt.Errorf("config: service %q url must start with http:// or https://", svc.Name)
			}
		case models.MethodTCP:
			if err := validateTCPAddress(svc.URL); err != nil {
				return fmt.Errorf("config: service %q: %w", svc.Name, err)
			}
		default:
			return fmt.Errorf("config: service %q invalid method %q (use GET, HEAD or TCP)", svc.Name, svc.Method)
		}
	}
	return nil
}

func validateTCPAddress(raw string) error {
	address := raw
	if strings.Contains(raw, "://") {
		u, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("invalid tcp url %q: %w", raw, err)
		}
		if u.Scheme != "tcp" {
			return fmt.Errorf("tcp url must use tcp:// scheme, got %q", u.Scheme)
		}
		address = u.Host
	}
	host, port, err := net.SplitHostPort(address)
	if err != nil {
		return fmt.Errorf("invalid tcp address %q: %w", raw, err)
	}
	if host == "" {
		return fmt.Errorf("tcp address %q missing host", raw)
	}
	if n, err := strconv.Atoi(port); err != nil || n <= 0 || n > 65535 {
		return fmt.Errorf("tcp address %q has invalid port", raw)
	}
	return nil
}
