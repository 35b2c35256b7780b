package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/cadenza-fm/cadenza/internal/music"
	"github.com/cadenza-fm/cadenza/internal/store"
)

// AppendInteraction implements [store.Gateway]. The server clock assigns the
// authoritative timestamp; a foreign-key violation on an unknown track
// surfaces as a store error, retries are the caller's decision.
func (g *Gateway) AppendInteraction(ctx context.Context, p store.AppendInteractionParams) (music.Interaction, error) {
	const q = `
		INSERT INTO interactions
		    (external_user_id, track_id, event_type, event_value, context, client_ts)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	var ctxJSON []byte
	if p.Context != nil && !p.Context.IsZero() {
		b, err := json.Marshal(p.Context)
		if err != nil {
			return music.Interaction{}, storeErr("append interaction: marshal context", err)
		}
		ctxJSON = b
	}

	var clientTs any
	if !p.ClientTs.IsZero() {
		clientTs = p.ClientTs
	}

	in := music.Interaction{
		ExternalUserID: p.ExternalUserID,
		TrackID:        p.TrackID,
		EventType:      p.EventType,
		EventValue:     p.EventValue,
		Context:        p.Context,
		ClientTs:       p.ClientTs,
	}
	err := g.pool.QueryRow(ctx, q,
		p.ExternalUserID,
		p.TrackID,
		string(p.EventType),
		p.EventValue,
		ctxJSON,
		clientTs,
	).Scan(&in.ID, &in.CreatedAt)
	if err != nil {
		return music.Interaction{}, storeErr("append interaction", err)
	}
	return in, nil
}

// CountRecentSkips implements [store.Gateway]. It counts SKIP events in
// (now-window, now]; the partial SKIP index keeps this O(log n).
func (g *Gateway) CountRecentSkips(ctx context.Context, userID string, window time.Duration) (int, error) {
	const q = `
		SELECT count(*)
		FROM   interactions
		WHERE  external_user_id = $1
		  AND  event_type = 'SKIP'
		  AND  created_at > now() - ($2::bigint * interval '1 microsecond')`

	var n int
	if err := g.pool.QueryRow(ctx, q, userID, window.Microseconds()).Scan(&n); err != nil {
		return 0, storeErr("count recent skips", err)
	}
	return n, nil
}

// RecentSkipTrackIDs implements [store.Gateway]. Distinct tracks, most
// recently skipped first.
func (g *Gateway) RecentSkipTrackIDs(ctx context.Context, userID string, hoursBack, limit int) ([]string, error) {
	const q = `
		SELECT track_id
		FROM   interactions
		WHERE  external_user_id = $1
		  AND  event_type = 'SKIP'
		  AND  created_at > now() - ($2::int * interval '1 hour')
		GROUP  BY track_id
		ORDER  BY max(created_at) DESC
		LIMIT  $3`

	rows, err := g.pool.Query(ctx, q, userID, hoursBack, limit)
	if err != nil {
		return nil, storeErr("recent skip track ids", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, storeErr("recent skip track ids: scan", err)
	}
	return ids, nil
}

// InteractionStats implements [store.Gateway].
func (g *Gateway) InteractionStats(ctx context.Context, userID string) (music.InteractionStats, error) {
	const q = `
		SELECT count(*),
		       count(*) FILTER (WHERE event_type = 'PLAY'),
		       count(*) FILTER (WHERE event_type = 'LIKE'),
		       count(*) FILTER (WHERE event_type = 'SKIP')
		FROM   interactions
		WHERE  external_user_id = $1`

	var s music.InteractionStats
	err := g.pool.QueryRow(ctx, q, userID).Scan(&s.Total, &s.PlayCount, &s.LikeCount, &s.SkipCount)
	if err != nil {
		return music.InteractionStats{}, storeErr("interaction stats", err)
	}
	return s, nil
}

// ActivityRollup implements [store.Gateway]. Like rate divides by max(plays, 1)
// so users with likes but no plays still get a finite rate.
func (g *Gateway) ActivityRollup(ctx context.Context, userID string) (music.ActivityRollup, error) {
	const q = `
		SELECT count(*) FILTER (WHERE event_type = 'PLAY' AND created_at > now() - interval '7 days'),
		       count(*) FILTER (WHERE event_type = 'LIKE' AND created_at > now() - interval '7 days'),
		       count(*) FILTER (WHERE event_type = 'SKIP' AND created_at > now() - interval '7 days')
		FROM   interactions
		WHERE  external_user_id = $1`

	var r music.ActivityRollup
	if err := g.pool.QueryRow(ctx, q, userID).Scan(&r.Plays7d, &r.Likes7d, &r.Skips7d); err != nil {
		return music.ActivityRollup{}, storeErr("activity rollup", err)
	}
	plays := r.Plays7d
	if plays == 0 {
		plays = 1
	}
	r.LikeRate = float64(r.Likes7d) / float64(plays)
	return r, nil
}

// RecentInteractionsWithTrackMeta implements [store.Gateway]. Rows are joined
// to track metadata for the interest graph generator; interactions whose
// track has been deleted contribute empty artist and genre.
func (g *Gateway) RecentInteractionsWithTrackMeta(ctx context.Context, userID string, limit, windowDays int, kinds []music.EventType) ([]store.InteractionTrackMeta, error) {
	const q = `
		SELECT i.event_type, i.created_at, coalesce(t.artist, ''), coalesce(t.genre, '')
		FROM   interactions i
		LEFT   JOIN tracks t ON t.id = i.track_id
		WHERE  i.external_user_id = $1
		  AND  i.event_type = ANY($2)
		  AND  i.created_at > now() - ($3::int * interval '1 day')
		ORDER  BY i.created_at DESC
		LIMIT  $4`

	rows, err := g.pool.Query(ctx, q, userID, eventTypeStrings(kinds), windowDays, limit)
	if err != nil {
		return nil, storeErr("recent interactions with track meta", err)
	}
	metas, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (store.InteractionTrackMeta, error) {
		var (
			m  store.InteractionTrackMeta
			et string
		)
		if err := row.Scan(&et, &m.CreatedAt, &m.Artist, &m.Genre); err != nil {
			return store.InteractionTrackMeta{}, err
		}
		m.EventType = music.EventType(et)
		return m, nil
	})
	if err != nil {
		return nil, storeErr("recent interactions with track meta: scan", err)
	}
	return metas, nil
}

// RecentTrackIDs implements [store.Gateway]. The newest rows are fetched and
// reversed so callers receive oldest-first sequences for sequence-aware
// rerankers.
func (g *Gateway) RecentTrackIDs(ctx context.Context, userID string, limit int, kinds []music.EventType) ([]string, error) {
	const q = `
		SELECT track_id
		FROM   interactions
		WHERE  external_user_id = $1
		  AND  event_type = ANY($2)
		ORDER  BY created_at DESC
		LIMIT  $3`

	rows, err := g.pool.Query(ctx, q, userID, eventTypeStrings(kinds), limit)
	if err != nil {
		return nil, storeErr("recent track ids", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, storeErr("recent track ids: scan", err)
	}
	for i, j := 0, len(ids)-1; i < j; i, j = i+1, j-1 {
		ids[i], ids[j] = ids[j], ids[i]
	}
	return ids, nil
}

func eventTypeStrings(kinds []music.EventType) []string {
	out := make([]string, len(kinds))
	for i, k := range kinds {
		out[i] = string(k)
	}
	return out
}
