package config_test

import (
	"strings"
	"testing"
	"time"

	"github.com/cadenza-fm/cadenza/internal/config"
)

func validConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			ListenAddr: ":8080",
			LogLevel:   config.LogInfo,
		},
		Store: config.StoreConfig{
			PostgresDSN: "postgres://localhost/cadenza",
		},
		Cache: config.CacheConfig{
			RedisAddr: "localhost:6379",
		},
	}
}

func TestLogLevel_IsValid(t *testing.T) {
	valid := []config.LogLevel{config.LogDebug, config.LogInfo, config.LogWarn, config.LogError}
	for _, l := range valid {
		if !l.IsValid() {
			t.Errorf("%q should be valid", l)
		}
	}
	for _, l := range []config.LogLevel{"", "trace", "INFO", "verbose"} {
		if l.IsValid() {
			t.Errorf("%q should be invalid", l)
		}
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	if err := config.Validate(validConfig()); err != nil {
		t.Errorf("valid config failed validation: %v", err)
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	cfg := validConfig()
	cfg.Server.LogLevel = "bananas"

	err := config.Validate(cfg)
	if err == nil {
		t.Fatal("expected error for invalid log level")
	}
	if !strings.Contains(err.Error(), "log_level") {
		t.Errorf("error should mention log_level, got: %v", err)
	}
}

func TestValidate_MissingDSN(t *testing.T) {
	cfg := validConfig()
	cfg.Store.PostgresDSN = ""

	err := config.Validate(cfg)
	if err == nil {
		t.Fatal("expected error for missing postgres_dsn")
	}
	if !strings.Contains(err.Error(), "postgres_dsn") {
		t.Errorf("error should mention postgres_dsn, got: %v", err)
	}
}

func TestValidate_TLSRequiresBothFiles(t *testing.T) {
	cfg := validConfig()
	cfg.Server.TLS = &config.TLSConfig{CertFile: "/etc/certs/server.pem"}

	err := config.Validate(cfg)
	if err == nil {
		t.Fatal("expected error for TLS without key_file")
	}
	if !strings.Contains(err.Error(), "key_file") {
		t.Errorf("error should mention key_file, got: %v", err)
	}
}

func TestValidate_RecommendRanges(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantSub string
	}{
		{
			name:    "default_limit over 50",
			mutate:  func(c *config.Config) { c.Recommend.DefaultLimit = 51 },
			wantSub: "default_limit",
		},
		{
			name:    "negative skip_threshold",
			mutate:  func(c *config.Config) { c.Recommend.SkipThreshold = -1 },
			wantSub: "skip_threshold",
		},
		{
			name:    "negative cache_ttl",
			mutate:  func(c *config.Config) { c.Recommend.CacheTTLSeconds = -5 },
			wantSub: "cache_ttl_seconds",
		},
		{
			name:    "negative max_same_artist",
			mutate:  func(c *config.Config) { c.Recommend.MaxSameArtist = -2 },
			wantSub: "max_same_artist",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)
			err := config.Validate(cfg)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.wantSub) {
				t.Errorf("error should mention %s, got: %v", tc.wantSub, err)
			}
		})
	}
}

func TestValidate_CollectsMultipleErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Server.LogLevel = "nope"
	cfg.Store.PostgresDSN = ""
	cfg.Recommend.DefaultLimit = 100

	err := config.Validate(cfg)
	if err == nil {
		t.Fatal("expected validation errors")
	}
	for _, want := range []string{"log_level", "postgres_dsn", "default_limit"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("joined error should mention %s, got: %v", want, err)
		}
	}
}

func TestRecommendConfig_Defaults(t *testing.T) {
	var r config.RecommendConfig

	if got := r.CacheTTL(); got != 300*time.Second {
		t.Errorf("CacheTTL default = %v, want 300s", got)
	}
	if got := r.SkipWindow(); got != 60*time.Second {
		t.Errorf("SkipWindow default = %v, want 60s", got)
	}
	if got := r.PopularityRefresh(); got != 15*time.Minute {
		t.Errorf("PopularityRefresh default = %v, want 15m", got)
	}
	if !r.GraphEnabled() {
		t.Error("interest graph should default to enabled")
	}
}

func TestRecommendConfig_ExplicitValues(t *testing.T) {
	off := false
	r := config.RecommendConfig{
		CacheTTLSeconds:          120,
		SkipWindowSeconds:        30,
		PopularityRefreshMinutes: 10,
		InterestGraphEnabled:     &off,
	}

	if got := r.CacheTTL(); got != 120*time.Second {
		t.Errorf("CacheTTL = %v, want 120s", got)
	}
	if got := r.SkipWindow(); got != 30*time.Second {
		t.Errorf("SkipWindow = %v, want 30s", got)
	}
	if got := r.PopularityRefresh(); got != 10*time.Minute {
		t.Errorf("PopularityRefresh = %v, want 10m", got)
	}
	if r.GraphEnabled() {
		t.Error("interest graph should be disabled")
	}
}

func TestRecommendConfig_NegativeRefreshDisables(t *testing.T) {
	r := config.RecommendConfig{PopularityRefreshMinutes: -1}
	if got := r.PopularityRefresh(); got != 0 {
		t.Errorf("PopularityRefresh = %v, want 0 (disabled)", got)
	}
}
