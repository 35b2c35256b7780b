package postgres

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/cadenza-fm/cadenza/internal/music"
)

// GetInterestGraph implements [store.Gateway]. A missing document is not an
// error: callers treat nil as "no bias".
func (g *Gateway) GetInterestGraph(ctx context.Context, userID string) (*music.InterestGraph, error) {
	const q = `
		SELECT graph, version
		FROM   user_interest_graph
		WHERE  external_user_id = $1`

	var (
		raw     []byte
		version int64
	)
	err := g.pool.QueryRow(ctx, q, userID).Scan(&raw, &version)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("get interest graph", err)
	}

	doc := &music.InterestGraph{}
	if err := json.Unmarshal(raw, doc); err != nil {
		return nil, storeErr("get interest graph: decode", err)
	}
	doc.Version = version
	return doc, nil
}

// UpsertInterestGraph implements [store.Gateway]. The version counter is
// incremented inside the statement, so concurrent refreshes cannot lose
// increments; the content itself is last-writer-wins.
func (g *Gateway) UpsertInterestGraph(ctx context.Context, userID string, doc *music.InterestGraph) (*music.InterestGraph, error) {
	const q = `
		INSERT INTO user_interest_graph (external_user_id, graph, version, updated_at)
		VALUES ($1, $2, 1, now())
		ON CONFLICT (external_user_id) DO UPDATE SET
		    graph      = EXCLUDED.graph,
		    version    = user_interest_graph.version + 1,
		    updated_at = now()
		RETURNING version`

	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, storeErr("upsert interest graph: encode", err)
	}

	out := *doc
	if err := g.pool.QueryRow(ctx, q, userID, raw).Scan(&out.Version); err != nil {
		return nil, storeErr("upsert interest graph", err)
	}
	return &out, nil
}
