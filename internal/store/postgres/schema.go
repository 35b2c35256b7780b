package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ─────────────────────────────────────────────────────────────────────────────
// DDL: catalogue
// ─────────────────────────────────────────────────────────────────────────────

const ddlTracks = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS tracks (
    id             TEXT         PRIMARY KEY,
    title          TEXT         NOT NULL,
    artist         TEXT         NOT NULL DEFAULT '',
    genre          TEXT         NOT NULL DEFAULT '',
    duration_sec   INTEGER      NOT NULL DEFAULT 0,
    external_url   TEXT         NOT NULL DEFAULT '',
    preview_url    TEXT,
    audio_features JSONB,
    embedding      vector(256),
    created_at     TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_tracks_genre ON tracks (genre);

CREATE INDEX IF NOT EXISTS idx_tracks_embedding_hnsw
    ON tracks USING hnsw (embedding vector_cosine_ops);
`

// ─────────────────────────────────────────────────────────────────────────────
// DDL: users and interactions
// ─────────────────────────────────────────────────────────────────────────────

const ddlUserProfiles = `
CREATE TABLE IF NOT EXISTS user_profiles (
    external_user_id  TEXT         PRIMARY KEY,
    preferred_genres  TEXT[]       NOT NULL DEFAULT '{}',
    disliked_genres   TEXT[]       NOT NULL DEFAULT '{}',
    profile_embedding vector(256),
    last_active_at    TIMESTAMPTZ  NOT NULL DEFAULT now(),
    created_at        TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_user_profiles_embedding_hnsw
    ON user_profiles USING hnsw (profile_embedding vector_cosine_ops);
`

const ddlInteractions = `
CREATE TABLE IF NOT EXISTS interactions (
    id               BIGSERIAL    PRIMARY KEY,
    external_user_id TEXT         NOT NULL,
    track_id         TEXT         NOT NULL REFERENCES tracks(id) ON DELETE CASCADE,
    event_type       TEXT         NOT NULL,
    event_value      INTEGER,
    context          JSONB,
    client_ts        TIMESTAMPTZ,
    created_at       TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_interactions_user_created
    ON interactions (external_user_id, created_at DESC);

CREATE INDEX IF NOT EXISTS idx_interactions_user_skip
    ON interactions (external_user_id, event_type, created_at DESC)
    WHERE event_type = 'SKIP';
`

// ─────────────────────────────────────────────────────────────────────────────
// DDL: playlists (owned by the host platform surface, referenced here only
// so that ingestion-side foreign keys resolve)
// ─────────────────────────────────────────────────────────────────────────────

const ddlPlaylists = `
CREATE TABLE IF NOT EXISTS playlists (
    id               TEXT         PRIMARY KEY,
    external_user_id TEXT         NOT NULL,
    name             TEXT         NOT NULL,
    created_at       TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS playlist_tracks (
    playlist_id TEXT NOT NULL REFERENCES playlists(id) ON DELETE CASCADE,
    track_id    TEXT NOT NULL REFERENCES tracks(id) ON DELETE CASCADE,
    position    INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (playlist_id, track_id)
);
`

// ─────────────────────────────────────────────────────────────────────────────
// DDL: interest graph and popularity aggregate
// ─────────────────────────────────────────────────────────────────────────────

const ddlInterestGraph = `
CREATE TABLE IF NOT EXISTS user_interest_graph (
    external_user_id TEXT        PRIMARY KEY,
    graph            JSONB       NOT NULL,
    version          BIGINT      NOT NULL DEFAULT 1,
    updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

const ddlPopularTracks = `
CREATE MATERIALIZED VIEW IF NOT EXISTS popular_tracks AS
SELECT track_id,
       count(*) FILTER (WHERE event_type IN ('PLAY', 'LIKE')) AS popularity_score,
       count(*) FILTER (WHERE event_type = 'SKIP')            AS skip_count
FROM   interactions
GROUP  BY track_id;

CREATE UNIQUE INDEX IF NOT EXISTS idx_popular_tracks_track
    ON popular_tracks (track_id);
`

// Migrate ensures all tables, indexes, the pgvector extension, and the
// popularity materialized view exist. Statements are idempotent, so calling
// Migrate on every startup is safe.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, ddl := range []struct {
		name string
		sql  string
	}{
		{"tracks", ddlTracks},
		{"user_profiles", ddlUserProfiles},
		{"interactions", ddlInteractions},
		{"playlists", ddlPlaylists},
		{"user_interest_graph", ddlInterestGraph},
		{"popular_tracks", ddlPopularTracks},
	} {
		if _, err := pool.Exec(ctx, ddl.sql); err != nil {
			return fmt.Errorf("migrate %s: %w", ddl.name, err)
		}
	}
	return nil
}
