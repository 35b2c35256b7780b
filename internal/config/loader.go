package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Environment variables that override their file counterparts, so secrets
// can stay out of the config file.
const (
	EnvPostgresDSN   = "CADENZA_POSTGRES_DSN"
	EnvRedisAddr     = "CADENZA_REDIS_ADDR"
	EnvRedisPassword = "CADENZA_REDIS_PASSWORD"
)

// Load reads the YAML configuration file at path, applies environment
// overrides, and returns a validated [Config].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies environment overrides,
// and validates the result. Useful in tests where configs are constructed
// from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	applyEnvOverrides(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides replaces connection settings with their environment
// counterparts when set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(EnvPostgresDSN); v != "" {
		cfg.Store.PostgresDSN = v
	}
	if v := os.Getenv(EnvRedisAddr); v != "" {
		cfg.Cache.RedisAddr = v
	}
	if v := os.Getenv(EnvRedisPassword); v != "" {
		cfg.Cache.RedisPassword = v
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.TLS != nil {
		if cfg.Server.TLS.CertFile == "" {
			errs = append(errs, errors.New("server.tls.cert_file is required when tls is set"))
		}
		if cfg.Server.TLS.KeyFile == "" {
			errs = append(errs, errors.New("server.tls.key_file is required when tls is set"))
		}
	}

	// Store
	if cfg.Store.PostgresDSN == "" {
		errs = append(errs, errors.New("store.postgres_dsn is required (or set CADENZA_POSTGRES_DSN)"))
	}
	if cfg.Store.MaxConns < 0 {
		errs = append(errs, fmt.Errorf("store.max_conns %d may not be negative", cfg.Store.MaxConns))
	}

	// Cache: an empty redis_addr is valid and disables caching.
	if cfg.Cache.RedisDB < 0 {
		errs = append(errs, fmt.Errorf("cache.redis_db %d may not be negative", cfg.Cache.RedisDB))
	}

	// Recommend
	rec := cfg.Recommend
	if rec.DefaultLimit < 0 || rec.DefaultLimit > 50 {
		errs = append(errs, fmt.Errorf("recommend.default_limit %d is out of range [1, 50]", rec.DefaultLimit))
	}
	if rec.MaxSameArtist < 0 {
		errs = append(errs, fmt.Errorf("recommend.max_same_artist %d may not be negative", rec.MaxSameArtist))
	}
	if rec.SkipThreshold < 0 {
		errs = append(errs, fmt.Errorf("recommend.skip_threshold %d may not be negative", rec.SkipThreshold))
	}
	if rec.SkipWindowSeconds < 0 {
		errs = append(errs, fmt.Errorf("recommend.skip_window_seconds %d may not be negative", rec.SkipWindowSeconds))
	}
	if rec.CacheTTLSeconds < 0 {
		errs = append(errs, fmt.Errorf("recommend.cache_ttl_seconds %d may not be negative", rec.CacheTTLSeconds))
	}

	return errors.Join(errs...)
}
