package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/cadenza-fm/cadenza/internal/music"
)

const profileColumns = `external_user_id, preferred_genres, disliked_genres,
       profile_embedding, last_active_at`

// FindOrCreateProfile implements [store.Gateway]. The single-statement upsert
// tolerates concurrent first access: both writers land on one row and the
// loser's insert degrades to a last-active touch.
func (g *Gateway) FindOrCreateProfile(ctx context.Context, userID string) (*music.UserProfile, error) {
	const q = `
		INSERT INTO user_profiles (external_user_id)
		VALUES ($1)
		ON CONFLICT (external_user_id) DO UPDATE SET last_active_at = now()
		RETURNING ` + profileColumns

	p, err := scanProfile(g.pool.QueryRow(ctx, q, userID))
	if err != nil {
		return nil, storeErr("find or create profile", err)
	}
	return p, nil
}

// UpdatePreferredGenres implements [store.Gateway]. Creates the profile on
// first access like FindOrCreateProfile.
func (g *Gateway) UpdatePreferredGenres(ctx context.Context, userID string, genres []string) (*music.UserProfile, error) {
	const q = `
		INSERT INTO user_profiles (external_user_id, preferred_genres)
		VALUES ($1, $2)
		ON CONFLICT (external_user_id) DO UPDATE SET
		    preferred_genres = EXCLUDED.preferred_genres,
		    last_active_at   = now()
		RETURNING ` + profileColumns

	p, err := scanProfile(g.pool.QueryRow(ctx, q, userID, stringArray(genres)))
	if err != nil {
		return nil, storeErr("update preferred genres", err)
	}
	return p, nil
}

// UpsertProfileEmbedding implements [store.Gateway]. The whole recomputation
// runs inside the database so the candidate vectors never cross the wire: the
// last 50 qualifying interactions within 90 days are unnested per dimension,
// averaged with signed event weights (LIKE +2.0, PLAY +1.0, SKIP -0.5), and
// reassembled into a vector(256). When the user has no qualifying
// interactions the statement matches no row and the previous embedding is
// kept.
func (g *Gateway) UpsertProfileEmbedding(ctx context.Context, userID string) error {
	const q = `
		WITH recent AS (
		    SELECT t.embedding,
		           CASE i.event_type
		               WHEN 'LIKE' THEN 2.0
		               WHEN 'PLAY' THEN 1.0
		               WHEN 'SKIP' THEN -0.5
		               ELSE 0.0
		           END AS weight
		    FROM   interactions i
		    JOIN   tracks t ON t.id = i.track_id
		    WHERE  i.external_user_id = $1
		      AND  i.event_type IN ('LIKE', 'PLAY', 'SKIP')
		      AND  i.created_at > now() - interval '90 days'
		      AND  t.embedding IS NOT NULL
		    ORDER  BY i.created_at DESC
		    LIMIT  50
		),
		dims AS (
		    SELECT u.ord, avg(r.weight * u.val) AS component
		    FROM   recent r,
		           unnest(r.embedding::real[]) WITH ORDINALITY AS u(val, ord)
		    GROUP  BY u.ord
		)
		UPDATE user_profiles
		SET    profile_embedding = (
		           SELECT array_agg(component ORDER BY ord)::vector(256) FROM dims
		       )
		WHERE  external_user_id = $1
		  AND  EXISTS (SELECT 1 FROM recent)`

	if _, err := g.pool.Exec(ctx, q, userID); err != nil {
		return storeErr("upsert profile embedding", err)
	}
	return nil
}

func scanProfile(row pgx.Row) (*music.UserProfile, error) {
	var (
		p   music.UserProfile
		vec *pgvector.Vector
	)
	if err := row.Scan(
		&p.ExternalUserID,
		&p.PreferredGenres,
		&p.DislikedGenres,
		&vec,
		&p.LastActiveAt,
	); err != nil {
		return nil, err
	}
	if vec != nil {
		p.Embedding = vec.Slice()
	}
	if p.PreferredGenres == nil {
		p.PreferredGenres = []string{}
	}
	if p.DislikedGenres == nil {
		p.DislikedGenres = []string{}
	}
	return &p, nil
}
