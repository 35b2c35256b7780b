package taste

import (
	"context"

	"github.com/cadenza-fm/cadenza/internal/store"
)

// ProfileEmbedder maintains the derived per-user taste vector. The actual
// weighted-mean computation happens inside the database (see
// [store.Gateway.UpsertProfileEmbedding]) so the candidate vectors never
// cross the wire; this type exists to give the pipeline a seam it can mock.
type ProfileEmbedder struct {
	gw store.Gateway
}

// NewProfileEmbedder creates a ProfileEmbedder backed by gw.
func NewProfileEmbedder(gw store.Gateway) *ProfileEmbedder {
	return &ProfileEmbedder{gw: gw}
}

// Recompute refreshes the user's profile embedding from their recent
// interactions. It is idempotent and safe to call concurrently; the database
// transaction provides the ordering. After it returns, a profile reload
// observes the new embedding, or the previous one when the user had no
// qualifying interactions.
func (p *ProfileEmbedder) Recompute(ctx context.Context, userID string) error {
	return p.gw.UpsertProfileEmbedding(ctx, userID)
}
