// Package store declares the narrow, typed storage surface used by the
// recommendation core. It is the only place that issues relational queries;
// callers never see SQL. The production implementation lives in
// [github.com/cadenza-fm/cadenza/internal/store/postgres], a hand-written test
// double in the mock subpackage.
package store

import (
	"context"
	"time"

	"github.com/cadenza-fm/cadenza/internal/music"
)

// AppendInteractionParams carries one interaction event to persist. The
// server clock supplies the authoritative CreatedAt; ClientTs is stored
// verbatim and not used for any decision.
type AppendInteractionParams struct {
	ExternalUserID string
	TrackID        string
	EventType      music.EventType
	EventValue     *int
	Context        *music.Context
	ClientTs       time.Time
}

// InteractionTrackMeta is one interaction row joined to track metadata, as
// consumed by the interest graph generator.
type InteractionTrackMeta struct {
	EventType music.EventType
	CreatedAt time.Time
	Artist    string
	Genre     string
}

// Gateway is the complete storage contract of the core. Every method does a
// single round-trip (or a single transaction) and surfaces failures as
// recerr.KindStore or recerr.KindTimeout errors; no method retries.
type Gateway interface {
	// AppendInteraction persists one event and returns it with the assigned
	// ID and server timestamp.
	AppendInteraction(ctx context.Context, p AppendInteractionParams) (music.Interaction, error)

	// CountRecentSkips counts SKIP events for the user in (now-window, now].
	CountRecentSkips(ctx context.Context, userID string, window time.Duration) (int, error)

	// RecentSkipTrackIDs returns distinct track IDs skipped by the user
	// within the last hoursBack hours, newest first, at most limit entries.
	RecentSkipTrackIDs(ctx context.Context, userID string, hoursBack int, limit int) ([]string, error)

	// InteractionStats returns the user's all-time event breakdown.
	InteractionStats(ctx context.Context, userID string) (music.InteractionStats, error)

	// ActivityRollup returns the user's 7-day play/like/skip summary.
	ActivityRollup(ctx context.Context, userID string) (music.ActivityRollup, error)

	// RecentInteractionsWithTrackMeta returns up to limit interaction rows of
	// the given kinds within the last windowDays days, joined to track artist
	// and genre, newest first.
	RecentInteractionsWithTrackMeta(ctx context.Context, userID string, limit, windowDays int, kinds []music.EventType) ([]InteractionTrackMeta, error)

	// RecentTrackIDs returns the track IDs of the user's most recent
	// interactions of the given kinds in chronological order (oldest first).
	RecentTrackIDs(ctx context.Context, userID string, limit int, kinds []music.EventType) ([]string, error)

	// ANNCandidates returns up to limit tracks ordered by ascending cosine
	// distance to embedding. Tracks without an embedding and tracks in
	// excludeIDs are never returned.
	ANNCandidates(ctx context.Context, embedding []float32, excludeIDs []string, limit int) ([]music.Track, error)

	// PopularByGenre returns up to limit tracks within the given genres
	// ordered by descending popularity score, excluding excludeIDs.
	PopularByGenre(ctx context.Context, genres []string, excludeIDs []string, limit int) ([]music.Track, error)

	// PopularGlobal returns up to limit tracks ordered by descending
	// popularity score across all genres.
	PopularGlobal(ctx context.Context, limit int) ([]music.Track, error)

	// RefreshPopularTracks refreshes the popularity materialized aggregate.
	RefreshPopularTracks(ctx context.Context) error

	// GetInterestGraph returns the user's stored interest graph document, or
	// nil when none exists.
	GetInterestGraph(ctx context.Context, userID string) (*music.InterestGraph, error)

	// UpsertInterestGraph replaces the user's document and increments its
	// monotonic version counter atomically. The stored version is returned
	// on the document.
	UpsertInterestGraph(ctx context.Context, userID string, g *music.InterestGraph) (*music.InterestGraph, error)

	// UpsertProfileEmbedding recomputes the user's 256-d profile embedding
	// inside the database as a weighted mean of the track embeddings of the
	// user's last 50 interactions within 90 days (LIKE +2.0, PLAY +1.0,
	// SKIP -0.5; rows without a track embedding excluded) and writes it back
	// to the profile in a single transaction. No-op when the user has no
	// qualifying interactions.
	UpsertProfileEmbedding(ctx context.Context, userID string) error

	// FindOrCreateProfile returns the user's profile, creating the default
	// one on first access. Concurrent first accesses yield a single row.
	FindOrCreateProfile(ctx context.Context, userID string) (*music.UserProfile, error)

	// UpdatePreferredGenres replaces the user's preferred genre set and
	// returns the updated profile.
	UpdatePreferredGenres(ctx context.Context, userID string, genres []string) (*music.UserProfile, error)

	// Ping verifies connectivity for readiness checks.
	Ping(ctx context.Context) error
}
