package config_test

import (
	"testing"

	"github.com/cadenza-fm/cadenza/internal/config"
)

func TestDiff_NoChanges(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{
		Server:    config.ServerConfig{LogLevel: config.LogInfo},
		Recommend: config.RecommendConfig{SkipThreshold: 2},
	}
	d := config.Diff(cfg, cfg)
	if d.LogLevelChanged {
		t.Error("expected LogLevelChanged=false for identical configs")
	}
	if d.RecommendChanged {
		t.Error("expected RecommendChanged=false for identical configs")
	}
}

func TestDiff_LogLevelChanged(t *testing.T) {
	t.Parallel()
	old := &config.Config{Server: config.ServerConfig{LogLevel: config.LogInfo}}
	new := &config.Config{Server: config.ServerConfig{LogLevel: config.LogDebug}}

	d := config.Diff(old, new)
	if !d.LogLevelChanged {
		t.Fatal("expected LogLevelChanged=true")
	}
	if d.NewLogLevel != config.LogDebug {
		t.Errorf("NewLogLevel = %q, want debug", d.NewLogLevel)
	}
}

func TestDiff_RecommendTuningChanged(t *testing.T) {
	t.Parallel()
	old := &config.Config{Recommend: config.RecommendConfig{SkipThreshold: 2}}
	new := &config.Config{Recommend: config.RecommendConfig{SkipThreshold: 4}}

	d := config.Diff(old, new)
	if !d.RecommendChanged {
		t.Fatal("expected RecommendChanged=true")
	}
	if d.NewRecommend.SkipThreshold != 4 {
		t.Errorf("NewRecommend.SkipThreshold = %d, want 4", d.NewRecommend.SkipThreshold)
	}
}

func TestDiff_GraphToggleComparedByValue(t *testing.T) {
	t.Parallel()
	on := true
	alsoOn := true
	old := &config.Config{Recommend: config.RecommendConfig{InterestGraphEnabled: &on}}
	new := &config.Config{Recommend: config.RecommendConfig{InterestGraphEnabled: &alsoOn}}

	// Distinct pointers to equal values must not register as a change.
	if d := config.Diff(old, new); d.RecommendChanged {
		t.Error("expected RecommendChanged=false for equal toggle values")
	}

	off := false
	new.Recommend.InterestGraphEnabled = &off
	if d := config.Diff(old, new); !d.RecommendChanged {
		t.Error("expected RecommendChanged=true when toggle flips")
	}
}

func TestDiff_ConnectionChangesIgnored(t *testing.T) {
	t.Parallel()
	old := &config.Config{Store: config.StoreConfig{PostgresDSN: "postgres://a/db"}}
	new := &config.Config{Store: config.StoreConfig{PostgresDSN: "postgres://b/db"}}

	d := config.Diff(old, new)
	if d.LogLevelChanged || d.RecommendChanged {
		t.Error("connection string changes must not appear in the diff")
	}
}
