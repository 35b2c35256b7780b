// Package mock provides an in-memory test double for [store.Gateway].
//
// The mock records every method call for assertion in tests and exposes
// exported fields that control what each method returns. It is safe for
// concurrent use via an internal [sync.Mutex].
//
// Typical usage:
//
//	gw := &mock.Gateway{}
//	gw.ANNCandidatesResult = []music.Track{{ID: "t1"}}
//
//	// inject gw into the system under test …
//
//	if got := gw.CallCount("ANNCandidates"); got != 1 {
//	    t.Errorf("expected 1 ANNCandidates call, got %d", got)
//	}
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/cadenza-fm/cadenza/internal/music"
	"github.com/cadenza-fm/cadenza/internal/store"
)

// Compile-time interface check.
var _ store.Gateway = (*Gateway)(nil)

// Call records the name and arguments of a single method invocation.
type Call struct {
	// Method is the name of the interface method that was called.
	Method string

	// Args holds the non-context arguments passed to the method, in order.
	Args []any
}

// Gateway is a configurable test double for [store.Gateway]. All exported
// *Err fields default to nil (success); slice-valued *Result fields default
// to an empty non-nil slice on return.
type Gateway struct {
	mu    sync.Mutex
	calls []Call

	// AppendInteractionErr is returned by AppendInteraction when non-nil.
	AppendInteractionErr error

	// nextInteractionID assigns IDs to appended interactions.
	nextInteractionID int64

	// CountRecentSkipsResult is returned by CountRecentSkips.
	CountRecentSkipsResult int
	CountRecentSkipsErr    error

	// RecentSkipTrackIDsResult is returned by RecentSkipTrackIDs.
	RecentSkipTrackIDsResult []string
	RecentSkipTrackIDsErr    error

	// InteractionStatsResult is returned by InteractionStats.
	InteractionStatsResult music.InteractionStats
	InteractionStatsErr    error

	// ActivityRollupResult is returned by ActivityRollup.
	ActivityRollupResult music.ActivityRollup
	ActivityRollupErr    error

	// RecentInteractionsResult is returned by RecentInteractionsWithTrackMeta.
	RecentInteractionsResult []store.InteractionTrackMeta
	RecentInteractionsErr    error

	// RecentTrackIDsResult is returned by RecentTrackIDs.
	RecentTrackIDsResult []string
	RecentTrackIDsErr    error

	// ANNCandidatesResult is returned by ANNCandidates before exclusion
	// filtering; the mock applies excludeIDs itself so tests exercise the
	// contract the real gateway honours.
	ANNCandidatesResult []music.Track
	ANNCandidatesErr    error

	// PopularByGenreResult is returned by PopularByGenre after genre and
	// exclusion filtering.
	PopularByGenreResult []music.Track
	PopularByGenreErr    error

	// PopularGlobalResult is returned by PopularGlobal.
	PopularGlobalResult []music.Track
	PopularGlobalErr    error

	// RefreshPopularTracksErr is returned by RefreshPopularTracks when non-nil.
	RefreshPopularTracksErr error

	// InterestGraphResult is returned by GetInterestGraph; nil means "no
	// document", which is not an error.
	InterestGraphResult *music.InterestGraph
	InterestGraphErr    error

	// UpsertInterestGraphErr is returned by UpsertInterestGraph when non-nil.
	UpsertInterestGraphErr error

	// upsertVersion is the monotonic version assigned by UpsertInterestGraph.
	upsertVersion int64

	// UpsertProfileEmbeddingErr is returned by UpsertProfileEmbedding.
	UpsertProfileEmbeddingErr error

	// ProfileResult is returned by FindOrCreateProfile and
	// UpdatePreferredGenres (with the genres applied). When nil a default
	// profile for the requested user is returned.
	ProfileResult *music.UserProfile
	ProfileErr    error

	// PingErr is returned by Ping when non-nil.
	PingErr error
}

// Calls returns a copy of all recorded method invocations.
func (m *Gateway) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns how many times the named method was invoked.
func (m *Gateway) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

func (m *Gateway) record(method string, args ...any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: method, Args: args})
}

// AppendInteraction implements [store.Gateway].
func (m *Gateway) AppendInteraction(_ context.Context, p store.AppendInteractionParams) (music.Interaction, error) {
	m.record("AppendInteraction", p)
	if m.AppendInteractionErr != nil {
		return music.Interaction{}, m.AppendInteractionErr
	}
	m.mu.Lock()
	m.nextInteractionID++
	id := m.nextInteractionID
	m.mu.Unlock()
	return music.Interaction{
		ID:             id,
		ExternalUserID: p.ExternalUserID,
		TrackID:        p.TrackID,
		EventType:      p.EventType,
		EventValue:     p.EventValue,
		Context:        p.Context,
		ClientTs:       p.ClientTs,
		CreatedAt:      time.Now().UTC(),
	}, nil
}

// CountRecentSkips implements [store.Gateway].
func (m *Gateway) CountRecentSkips(_ context.Context, userID string, window time.Duration) (int, error) {
	m.record("CountRecentSkips", userID, window)
	return m.CountRecentSkipsResult, m.CountRecentSkipsErr
}

// RecentSkipTrackIDs implements [store.Gateway].
func (m *Gateway) RecentSkipTrackIDs(_ context.Context, userID string, hoursBack, limit int) ([]string, error) {
	m.record("RecentSkipTrackIDs", userID, hoursBack, limit)
	if m.RecentSkipTrackIDsErr != nil {
		return nil, m.RecentSkipTrackIDsErr
	}
	if m.RecentSkipTrackIDsResult == nil {
		return []string{}, nil
	}
	return m.RecentSkipTrackIDsResult, nil
}

// InteractionStats implements [store.Gateway].
func (m *Gateway) InteractionStats(_ context.Context, userID string) (music.InteractionStats, error) {
	m.record("InteractionStats", userID)
	return m.InteractionStatsResult, m.InteractionStatsErr
}

// ActivityRollup implements [store.Gateway].
func (m *Gateway) ActivityRollup(_ context.Context, userID string) (music.ActivityRollup, error) {
	m.record("ActivityRollup", userID)
	return m.ActivityRollupResult, m.ActivityRollupErr
}

// RecentInteractionsWithTrackMeta implements [store.Gateway].
func (m *Gateway) RecentInteractionsWithTrackMeta(_ context.Context, userID string, limit, windowDays int, kinds []music.EventType) ([]store.InteractionTrackMeta, error) {
	m.record("RecentInteractionsWithTrackMeta", userID, limit, windowDays, kinds)
	if m.RecentInteractionsErr != nil {
		return nil, m.RecentInteractionsErr
	}
	if m.RecentInteractionsResult == nil {
		return []store.InteractionTrackMeta{}, nil
	}
	return m.RecentInteractionsResult, nil
}

// RecentTrackIDs implements [store.Gateway].
func (m *Gateway) RecentTrackIDs(_ context.Context, userID string, limit int, kinds []music.EventType) ([]string, error) {
	m.record("RecentTrackIDs", userID, limit, kinds)
	if m.RecentTrackIDsErr != nil {
		return nil, m.RecentTrackIDsErr
	}
	if m.RecentTrackIDsResult == nil {
		return []string{}, nil
	}
	return m.RecentTrackIDsResult, nil
}

// ANNCandidates implements [store.Gateway]. The configured result is
// filtered by excludeIDs and truncated to limit like the real gateway.
func (m *Gateway) ANNCandidates(_ context.Context, embedding []float32, excludeIDs []string, limit int) ([]music.Track, error) {
	m.record("ANNCandidates", embedding, excludeIDs, limit)
	if m.ANNCandidatesErr != nil {
		return nil, m.ANNCandidatesErr
	}
	return filterTracks(m.ANNCandidatesResult, excludeIDs, limit), nil
}

// PopularByGenre implements [store.Gateway].
func (m *Gateway) PopularByGenre(_ context.Context, genres []string, excludeIDs []string, limit int) ([]music.Track, error) {
	m.record("PopularByGenre", genres, excludeIDs, limit)
	if m.PopularByGenreErr != nil {
		return nil, m.PopularByGenreErr
	}
	byGenre := m.PopularByGenreResult
	if len(genres) > 0 {
		allowed := make(map[string]bool, len(genres))
		for _, g := range genres {
			allowed[g] = true
		}
		filtered := make([]music.Track, 0, len(byGenre))
		for _, t := range byGenre {
			if allowed[t.Genre] {
				filtered = append(filtered, t)
			}
		}
		byGenre = filtered
	}
	return filterTracks(byGenre, excludeIDs, limit), nil
}

// PopularGlobal implements [store.Gateway].
func (m *Gateway) PopularGlobal(_ context.Context, limit int) ([]music.Track, error) {
	m.record("PopularGlobal", limit)
	if m.PopularGlobalErr != nil {
		return nil, m.PopularGlobalErr
	}
	return filterTracks(m.PopularGlobalResult, nil, limit), nil
}

// RefreshPopularTracks implements [store.Gateway].
func (m *Gateway) RefreshPopularTracks(_ context.Context) error {
	m.record("RefreshPopularTracks")
	return m.RefreshPopularTracksErr
}

// GetInterestGraph implements [store.Gateway].
func (m *Gateway) GetInterestGraph(_ context.Context, userID string) (*music.InterestGraph, error) {
	m.record("GetInterestGraph", userID)
	return m.InterestGraphResult, m.InterestGraphErr
}

// UpsertInterestGraph implements [store.Gateway]. The stored document becomes
// the new InterestGraphResult so a subsequent GetInterestGraph observes it.
func (m *Gateway) UpsertInterestGraph(_ context.Context, userID string, doc *music.InterestGraph) (*music.InterestGraph, error) {
	m.record("UpsertInterestGraph", userID, doc)
	if m.UpsertInterestGraphErr != nil {
		return nil, m.UpsertInterestGraphErr
	}
	m.mu.Lock()
	m.upsertVersion++
	out := *doc
	out.Version = m.upsertVersion
	m.InterestGraphResult = &out
	m.mu.Unlock()
	return &out, nil
}

// UpsertProfileEmbedding implements [store.Gateway].
func (m *Gateway) UpsertProfileEmbedding(_ context.Context, userID string) error {
	m.record("UpsertProfileEmbedding", userID)
	return m.UpsertProfileEmbeddingErr
}

// FindOrCreateProfile implements [store.Gateway].
func (m *Gateway) FindOrCreateProfile(_ context.Context, userID string) (*music.UserProfile, error) {
	m.record("FindOrCreateProfile", userID)
	if m.ProfileErr != nil {
		return nil, m.ProfileErr
	}
	if m.ProfileResult != nil {
		cp := *m.ProfileResult
		return &cp, nil
	}
	return &music.UserProfile{
		ExternalUserID:  userID,
		PreferredGenres: []string{},
		DislikedGenres:  []string{},
		LastActiveAt:    time.Now().UTC(),
	}, nil
}

// UpdatePreferredGenres implements [store.Gateway].
func (m *Gateway) UpdatePreferredGenres(_ context.Context, userID string, genres []string) (*music.UserProfile, error) {
	m.record("UpdatePreferredGenres", userID, genres)
	if m.ProfileErr != nil {
		return nil, m.ProfileErr
	}
	p := &music.UserProfile{
		ExternalUserID:  userID,
		PreferredGenres: genres,
		DislikedGenres:  []string{},
		LastActiveAt:    time.Now().UTC(),
	}
	if m.ProfileResult != nil {
		cp := *m.ProfileResult
		cp.PreferredGenres = genres
		p = &cp
	}
	m.mu.Lock()
	m.ProfileResult = p
	m.mu.Unlock()
	cp := *p
	return &cp, nil
}

// Ping implements [store.Gateway].
func (m *Gateway) Ping(_ context.Context) error {
	m.record("Ping")
	return m.PingErr
}

func filterTracks(in []music.Track, excludeIDs []string, limit int) []music.Track {
	excluded := make(map[string]bool, len(excludeIDs))
	for _, id := range excludeIDs {
		excluded[id] = true
	}
	out := make([]music.Track, 0, len(in))
	for _, t := range in {
		if excluded[t.ID] {
			continue
		}
		out = append(out, t)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}
