package cache

import (
	"strings"

	"github.com/cadenza-fm/cadenza/internal/music"
)

// keyPrefix namespaces every key written by this service.
const keyPrefix = "recommendations:"

// UserPrefix returns the key prefix covering all cache entries of one user.
// Used for invalidate-by-user.
func UserPrefix(userID string) string {
	return keyPrefix + userID + ":"
}

// RecommendationKey returns the deterministic cache key for a (user, context)
// pair. Context components are serialized in a fixed field order so two
// requests with the same normalized context always collide; a missing context
// and an empty context produce the same key.
func RecommendationKey(userID string, ctx music.Context) string {
	var b strings.Builder
	b.WriteString(UserPrefix(userID))
	if ctx.IsZero() {
		b.WriteString("none")
		return b.String()
	}
	parts := make([]string, 0, 3)
	if ctx.Activity != "" {
		parts = append(parts, "activity="+string(ctx.Activity))
	}
	if ctx.Mood != "" {
		parts = append(parts, "mood="+string(ctx.Mood))
	}
	if ctx.TimeBucket != "" {
		parts = append(parts, "timeBucket="+string(ctx.TimeBucket))
	}
	b.WriteString(strings.Join(parts, ","))
	return b.String()
}
