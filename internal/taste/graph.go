// Package taste maintains the per-user taste state: the heuristic interest
// graph document and the 256-d profile embedding. Both are derived from
// recent interaction history; neither is ever user-supplied.
package taste

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/cadenza-fm/cadenza/internal/music"
	"github.com/cadenza-fm/cadenza/internal/store"
)

const (
	// graphWindowDays bounds how far back the generator looks.
	graphWindowDays = 90

	// graphMaxInteractions bounds how many rows the generator reads.
	graphMaxInteractions = 500

	// graphMaxEntries caps each emitted map.
	graphMaxEntries = 20

	// generatorTag identifies the heuristic generator in stored documents.
	generatorTag = "heuristic"
)

// eventWeights are the signed contributions of each event type to the
// artist/genre accumulators. Unlisted kinds contribute 0.
var eventWeights = map[music.EventType]float64{
	music.EventLike:    2.0,
	music.EventPlay:    1.0,
	music.EventSkip:    -1.0,
	music.EventDislike: -2.0,
}

// GraphEngine computes and persists interest graph documents.
// All methods are safe for concurrent use; concurrent first computations for
// the same user are collapsed via singleflight.
type GraphEngine struct {
	gw store.Gateway
	sf singleflight.Group
}

// NewGraphEngine creates a GraphEngine backed by gw.
func NewGraphEngine(gw store.Gateway) *GraphEngine {
	return &GraphEngine{gw: gw}
}

// GetOrCompute returns the user's stored document unchanged when one exists.
// Otherwise it computes a fresh one, upserts it, and returns it. A user with
// no qualifying interactions yields (nil, nil).
func (e *GraphEngine) GetOrCompute(ctx context.Context, userID string) (*music.InterestGraph, error) {
	doc, err := e.gw.GetInterestGraph(ctx, userID)
	if err != nil {
		return nil, err
	}
	if doc != nil {
		return doc, nil
	}

	v, err, _ := e.sf.Do(userID, func() (any, error) {
		return e.computeAndStore(ctx, userID)
	})
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	return v.(*music.InterestGraph), nil
}

// Refresh always recomputes the user's document and upserts it when non-nil.
func (e *GraphEngine) Refresh(ctx context.Context, userID string) (*music.InterestGraph, error) {
	return e.computeAndStore(ctx, userID)
}

func (e *GraphEngine) computeAndStore(ctx context.Context, userID string) (*music.InterestGraph, error) {
	doc, err := e.compute(ctx, userID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, nil
	}
	stored, err := e.gw.UpsertInterestGraph(ctx, userID, doc)
	if err != nil {
		return nil, fmt.Errorf("interest graph: store %s: %w", userID, err)
	}
	return stored, nil
}

// compute derives the four score maps from the user's recent interactions.
// Returns nil when the user has no interactions in the window.
func (e *GraphEngine) compute(ctx context.Context, userID string) (*music.InterestGraph, error) {
	kinds := []music.EventType{music.EventPlay, music.EventLike, music.EventSkip, music.EventDislike}
	rows, err := e.gw.RecentInteractionsWithTrackMeta(ctx, userID, graphMaxInteractions, graphWindowDays, kinds)
	if err != nil {
		return nil, fmt.Errorf("interest graph: fetch interactions %s: %w", userID, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	artistScores := map[string]float64{}
	genreScores := map[string]float64{}
	for _, r := range rows {
		w := eventWeights[r.EventType]
		if w == 0 {
			continue
		}
		if r.Artist != "" {
			artistScores[r.Artist] += w
		}
		if r.Genre != "" {
			genreScores[r.Genre] += w
		}
	}

	return &music.InterestGraph{
		SchemaVersion: music.InterestGraphSchemaVersion,
		GeneratedBy:   generatorTag,
		WindowDays:    graphWindowDays,
		TopArtists:    topEntries(artistScores),
		TopGenres:     topEntries(genreScores),
		AvoidArtists:  avoidEntries(artistScores),
		AvoidGenres:   avoidEntries(genreScores),
		UpdatedAt:     time.Now().UTC(),
	}, nil
}

// topEntries keeps the 20 highest-scoring entries and normalizes them so the
// maximum is 1. Negatively scored entries belong to the avoid maps, never
// here. When the maximum is not positive every emitted value is 0.
func topEntries(scores map[string]float64) map[string]float64 {
	return normalizeTop(scores)
}

// avoidEntries keeps only entries whose raw score is negative, takes their
// absolute value, then applies the same top-20 normalization.
func avoidEntries(scores map[string]float64) map[string]float64 {
	negative := map[string]float64{}
	for k, v := range scores {
		if v < 0 {
			negative[k] = -v
		}
	}
	return normalizeTop(negative)
}

type scoredKey struct {
	key   string
	score float64
}

func normalizeTop(scores map[string]float64) map[string]float64 {
	var max float64
	for _, v := range scores {
		if v > max {
			max = v
		}
	}

	ranked := make([]scoredKey, 0, len(scores))
	for k, v := range scores {
		if max > 0 && v <= 0 {
			// Entries below the positive mass would normalize outside [0,1].
			continue
		}
		ranked = append(ranked, scoredKey{key: k, score: v})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].key < ranked[j].key
	})
	if len(ranked) > graphMaxEntries {
		ranked = ranked[:graphMaxEntries]
	}

	out := make(map[string]float64, len(ranked))
	for _, e := range ranked {
		if max <= 0 {
			out[e.key] = 0
			continue
		}
		out[e.key] = math.Round(e.score/max*10000) / 10000
	}
	return out
}
