// Package recommend implements the recommendation pipeline: cache-mediated
// candidate generation, filtering, context reranking, artist diversity
// enforcement, and the skip-burst detection hook on the interaction write
// path.
package recommend

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/cadenza-fm/cadenza/internal/cache"
	"github.com/cadenza-fm/cadenza/internal/music"
	"github.com/cadenza-fm/cadenza/internal/observe"
	"github.com/cadenza-fm/cadenza/internal/store"
	"github.com/cadenza-fm/cadenza/internal/taste"
)

const (
	// skipExclusionHours is how far back the personalized path looks for
	// skipped tracks to exclude.
	skipExclusionHours = 24

	// skipExclusionLimit caps the exclusion list.
	skipExclusionLimit = 20

	// annOverfetchFactor and popularOverfetchFactor size the candidate pools
	// so filtering and diversity still leave enough tracks.
	annOverfetchFactor     = 3
	popularOverfetchFactor = 2

	// avoidThreshold drops personalized candidates whose artist or genre has
	// at least this avoid score in the interest graph.
	avoidThreshold = 0.6

	// maxLimit clamps the per-request track count.
	maxLimit = 50

	// graphRefreshTimeout bounds the detached interest-graph refresh after
	// each interaction.
	graphRefreshTimeout = 2 * time.Second
)

// Request is one recommendation request. Limit 0 means "use the default".
type Request struct {
	Context music.Context
	Limit   int
}

// Response is the ordered recommendation list returned to the client and
// stored in the cache.
type Response struct {
	Tracks      []music.Track `json:"tracks"`
	Context     music.Context `json:"context"`
	GeneratedAt time.Time     `json:"generatedAt"`
}

// RefreshNotifier receives skip-burst signals from the interaction write
// path. Implementations must not block: delivery happens on the request
// goroutine.
type RefreshNotifier interface {
	Notify(userID string, reason music.RefreshReason)
}

// Config tunes the pipeline. Zero values for the numeric fields select the
// documented defaults. InterestGraphEnabled is taken as given: the service
// config layer owns its default, which is on.
type Config struct {
	CacheTTL             time.Duration // default 300s
	DefaultLimit         int           // default 20
	MaxSameArtist        int           // default 3
	SkipWindow           time.Duration // default 60s
	SkipThreshold        int           // default 2
	InterestGraphEnabled bool
}

func (c Config) withDefaults() Config {
	if c.CacheTTL <= 0 {
		c.CacheTTL = 300 * time.Second
	}
	if c.DefaultLimit <= 0 {
		c.DefaultLimit = 20
	}
	if c.MaxSameArtist <= 0 {
		c.MaxSameArtist = 3
	}
	if c.SkipWindow <= 0 {
		c.SkipWindow = 60 * time.Second
	}
	if c.SkipThreshold <= 0 {
		c.SkipThreshold = 2
	}
	return c
}

// Pipeline orchestrates recommendation serving. All methods are safe for
// concurrent use.
type Pipeline struct {
	gw       store.Gateway
	cache    cache.Cache
	graphs   *taste.GraphEngine
	embedder *taste.ProfileEmbedder
	cfg      atomic.Pointer[Config]
	metrics  *observe.Metrics
	log      *slog.Logger

	notifier RefreshNotifier
}

// Option is a functional option for New.
type Option func(*Pipeline)

// WithMetrics attaches metric instruments to the pipeline.
func WithMetrics(m *observe.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithLogger overrides the default logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.log = l }
}

// New creates a Pipeline from its collaborators.
func New(gw store.Gateway, c cache.Cache, graphs *taste.GraphEngine, embedder *taste.ProfileEmbedder, cfg Config, opts ...Option) *Pipeline {
	p := &Pipeline{
		gw:       gw,
		cache:    c,
		graphs:   graphs,
		embedder: embedder,
		log:      slog.Default(),
	}
	p.UpdateConfig(cfg)
	for _, o := range opts {
		o(p)
	}
	return p
}

// UpdateConfig swaps the pipeline tuning, applying defaults to zero values.
// In-flight requests finish with the snapshot they started with.
func (p *Pipeline) UpdateConfig(cfg Config) {
	c := cfg.withDefaults()
	p.cfg.Store(&c)
}

// tuning returns the current tuning snapshot.
func (p *Pipeline) tuning() Config {
	return *p.cfg.Load()
}

// SetRefreshNotifier wires the push engine in after construction; the push
// engine itself depends on the pipeline, so it cannot be passed to New.
// Must be called before the first request is served.
func (p *Pipeline) SetRefreshNotifier(n RefreshNotifier) {
	p.notifier = n
}

// GetRecommendations runs the pipeline for one (user, context) request.
func (p *Pipeline) GetRecommendations(ctx context.Context, userID string, req Request) (*Response, error) {
	start := time.Now()
	cfg := p.tuning()
	limit := clampLimit(req.Limit, cfg.DefaultLimit)
	key := cache.RecommendationKey(userID, req.Context)

	if raw, ok := p.cache.Get(ctx, key); ok {
		resp := &Response{}
		if err := json.Unmarshal(raw, resp); err == nil {
			p.observe(ctx, start, "hit")
			return resp, nil
		}
		p.log.Warn("discarding undecodable cache entry", "key", key)
	}

	resp, err := p.generate(ctx, userID, req.Context, limit)
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(resp); err == nil {
		p.cache.Set(ctx, key, raw, cfg.CacheTTL)
	}
	p.observe(ctx, start, "miss")
	return resp, nil
}

// Invalidate removes every cache entry belonging to the user.
func (p *Pipeline) Invalidate(ctx context.Context, userID string) {
	n := p.cache.DeleteByPrefix(ctx, cache.UserPrefix(userID))
	p.log.Debug("invalidated recommendation cache", "user", userID, "entries", n)
}

// generate runs the cold-start or personalized branch, then the shared
// rerank, diversity and truncation stages.
func (p *Pipeline) generate(ctx context.Context, userID string, reqCtx music.Context, limit int) (*Response, error) {
	profile, err := p.gw.FindOrCreateProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	stats, err := p.gw.InteractionStats(ctx, userID)
	if err != nil {
		return nil, err
	}

	var candidates []music.Track
	coldStart := stats.Total == 0 || (len(profile.PreferredGenres) == 0 && !profile.HasEmbedding())
	if coldStart {
		candidates, err = p.coldStartCandidates(ctx, profile, limit)
	} else {
		candidates, err = p.personalizedCandidates(ctx, userID, profile, limit)
	}
	if err != nil {
		return nil, err
	}

	candidates = rerankByContext(candidates, reqCtx)
	candidates = enforceArtistDiversity(candidates, p.tuning().MaxSameArtist)
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	if candidates == nil {
		candidates = []music.Track{}
	}

	return &Response{
		Tracks:      candidates,
		Context:     reqCtx,
		GeneratedAt: time.Now().UTC(),
	}, nil
}

// coldStartCandidates serves users without a usable taste signal from the
// popularity aggregate.
func (p *Pipeline) coldStartCandidates(ctx context.Context, profile *music.UserProfile, limit int) ([]music.Track, error) {
	if len(profile.PreferredGenres) > 0 {
		return p.gw.PopularByGenre(ctx, profile.PreferredGenres, nil, popularOverfetchFactor*limit)
	}
	return p.gw.PopularGlobal(ctx, popularOverfetchFactor*limit)
}

// personalizedCandidates recomputes the taste embedding, excludes recently
// skipped tracks, and fetches ANN candidates filtered by disliked genres and
// the interest graph's avoid sets. Users whose profile still has no
// embedding fall back to genre popularity.
func (p *Pipeline) personalizedCandidates(ctx context.Context, userID string, profile *music.UserProfile, limit int) ([]music.Track, error) {
	// Best-effort: a failed recomputation leaves the previous embedding.
	if err := p.embedder.Recompute(ctx, userID); err != nil {
		p.log.Warn("profile embedding recompute failed", "user", userID, "err", err)
	}

	exclusions, err := p.gw.RecentSkipTrackIDs(ctx, userID, skipExclusionHours, skipExclusionLimit)
	if err != nil {
		return nil, err
	}

	// Reload to pick up the fresh embedding.
	profile, err = p.gw.FindOrCreateProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	if !profile.HasEmbedding() {
		return p.gw.PopularByGenre(ctx, profile.PreferredGenres, exclusions, popularOverfetchFactor*limit)
	}

	candidates, err := p.gw.ANNCandidates(ctx, profile.Embedding, exclusions, annOverfetchFactor*limit)
	if err != nil {
		return nil, err
	}
	candidates = dropDislikedGenres(candidates, profile.DislikedGenres)
	return p.applyAvoidFilter(ctx, userID, candidates), nil
}

// applyAvoidFilter drops candidates whose artist or genre crosses the
// interest graph's avoid threshold. Graph failures downgrade silently to
// "no bias".
func (p *Pipeline) applyAvoidFilter(ctx context.Context, userID string, candidates []music.Track) []music.Track {
	if !p.tuning().InterestGraphEnabled {
		return candidates
	}
	graph, err := p.graphs.GetOrCompute(ctx, userID)
	if err != nil {
		p.log.Warn("interest graph unavailable, serving without bias", "user", userID, "err", err)
		return candidates
	}
	if graph == nil {
		return candidates
	}
	out := candidates[:0]
	for _, t := range candidates {
		if graph.AvoidScore(t.Artist, t.Genre) >= avoidThreshold {
			continue
		}
		out = append(out, t)
	}
	return out
}

func dropDislikedGenres(candidates []music.Track, disliked []string) []music.Track {
	if len(disliked) == 0 {
		return candidates
	}
	blocked := make(map[string]bool, len(disliked))
	for _, g := range disliked {
		blocked[g] = true
	}
	out := candidates[:0]
	for _, t := range candidates {
		if blocked[t.Genre] {
			continue
		}
		out = append(out, t)
	}
	return out
}

func clampLimit(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}

func (p *Pipeline) observe(ctx context.Context, start time.Time, outcome string) {
	if p.metrics == nil {
		return
	}
	p.metrics.RecordPipeline(ctx, time.Since(start), outcome)
}
