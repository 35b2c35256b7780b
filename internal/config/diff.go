package config

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked; connection
// settings require a restart and are deliberately ignored.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// RecommendChanged is true when any pipeline tuning field changed.
	RecommendChanged bool
	NewRecommend     RecommendConfig
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if !sameRecommend(old.Recommend, new.Recommend) {
		d.RecommendChanged = true
		d.NewRecommend = new.Recommend
	}

	return d
}

// sameRecommend compares tuning configs field by field. RecommendConfig holds
// a pointer field, so plain struct equality would compare addresses.
func sameRecommend(a, b RecommendConfig) bool {
	return a.CacheTTLSeconds == b.CacheTTLSeconds &&
		a.DefaultLimit == b.DefaultLimit &&
		a.MaxSameArtist == b.MaxSameArtist &&
		a.SkipWindowSeconds == b.SkipWindowSeconds &&
		a.SkipThreshold == b.SkipThreshold &&
		a.GraphEnabled() == b.GraphEnabled() &&
		a.PopularityRefreshMinutes == b.PopularityRefreshMinutes
}
