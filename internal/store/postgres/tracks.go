package postgres

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/cadenza-fm/cadenza/internal/music"
	"github.com/cadenza-fm/cadenza/internal/recerr"
)

const trackColumns = `t.id, t.title, t.artist, t.genre, t.duration_sec,
       t.external_url, coalesce(t.preview_url, ''), t.audio_features, t.embedding`

// ANNCandidates implements [store.Gateway]. Candidates are ordered by
// ascending cosine distance to the query embedding via the HNSW index; only
// tracks with a non-null embedding are eligible.
func (g *Gateway) ANNCandidates(ctx context.Context, embedding []float32, excludeIDs []string, limit int) ([]music.Track, error) {
	if len(embedding) != music.EmbeddingDim {
		return nil, recerr.Validationf("ann candidates: embedding must have %d dimensions, got %d", music.EmbeddingDim, len(embedding))
	}

	const q = `
		SELECT ` + trackColumns + `
		FROM   tracks t
		WHERE  t.embedding IS NOT NULL
		  AND  NOT (t.id = ANY($2))
		ORDER  BY t.embedding <=> $1
		LIMIT  $3`

	rows, err := g.pool.Query(ctx, q, pgvector.NewVector(embedding), stringArray(excludeIDs), limit)
	if err != nil {
		return nil, storeErr("ann candidates", err)
	}
	return collectTracks("ann candidates", rows)
}

// PopularByGenre implements [store.Gateway]. Popularity comes from the
// popular_tracks materialized aggregate (PLAY + LIKE counts across all users).
func (g *Gateway) PopularByGenre(ctx context.Context, genres []string, excludeIDs []string, limit int) ([]music.Track, error) {
	const q = `
		SELECT ` + trackColumns + `
		FROM   popular_tracks p
		JOIN   tracks t ON t.id = p.track_id
		WHERE  t.genre = ANY($1)
		  AND  NOT (t.id = ANY($2))
		ORDER  BY p.popularity_score DESC, t.id
		LIMIT  $3`

	rows, err := g.pool.Query(ctx, q, stringArray(genres), stringArray(excludeIDs), limit)
	if err != nil {
		return nil, storeErr("popular by genre", err)
	}
	return collectTracks("popular by genre", rows)
}

// PopularGlobal implements [store.Gateway].
func (g *Gateway) PopularGlobal(ctx context.Context, limit int) ([]music.Track, error) {
	const q = `
		SELECT ` + trackColumns + `
		FROM   popular_tracks p
		JOIN   tracks t ON t.id = p.track_id
		ORDER  BY p.popularity_score DESC, t.id
		LIMIT  $1`

	rows, err := g.pool.Query(ctx, q, limit)
	if err != nil {
		return nil, storeErr("popular global", err)
	}
	return collectTracks("popular global", rows)
}

// RefreshPopularTracks implements [store.Gateway]. CONCURRENTLY keeps the
// aggregate readable during the refresh; it requires the unique index created
// by [Migrate].
func (g *Gateway) RefreshPopularTracks(ctx context.Context) error {
	if _, err := g.pool.Exec(ctx, `REFRESH MATERIALIZED VIEW CONCURRENTLY popular_tracks`); err != nil {
		return storeErr("refresh popular tracks", err)
	}
	return nil
}

func collectTracks(op string, rows pgx.Rows) ([]music.Track, error) {
	tracks, err := pgx.CollectRows(rows, scanTrack)
	if err != nil {
		return nil, storeErr(op+": scan", err)
	}
	if tracks == nil {
		tracks = []music.Track{}
	}
	return tracks, nil
}

func scanTrack(row pgx.CollectableRow) (music.Track, error) {
	var (
		t        music.Track
		features []byte
		vec      *pgvector.Vector
	)
	if err := row.Scan(
		&t.ID,
		&t.Title,
		&t.Artist,
		&t.Genre,
		&t.DurationSec,
		&t.ExternalURL,
		&t.PreviewURL,
		&features,
		&vec,
	); err != nil {
		return music.Track{}, err
	}
	if len(features) > 0 {
		af := &music.AudioFeatures{}
		if err := json.Unmarshal(features, af); err == nil {
			t.Features = af
		}
	}
	if vec != nil {
		t.Embedding = vec.Slice()
	}
	return t, nil
}

// stringArray never passes a nil slice so that `= ANY($n)` receives an empty
// text[] instead of NULL.
func stringArray(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
