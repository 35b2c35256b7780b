// Package music defines the domain types shared by the recommendation
// pipeline: tracks, user profiles, interactions, listening contexts, and the
// per-user interest graph document.
package music

import "time"

// EmbeddingDim is the fixed dimensionality of track and profile embeddings.
// The pgvector columns are declared as vector(256); vectors of any other
// length are rejected at the store boundary.
const EmbeddingDim = 256

// EventType classifies an interaction event.
type EventType string

const (
	EventPlay          EventType = "PLAY"
	EventSkip          EventType = "SKIP"
	EventLike          EventType = "LIKE"
	EventDislike       EventType = "DISLIKE"
	EventAddToPlaylist EventType = "ADD_TO_PLAYLIST"
)

// IsValid reports whether e is a recognised event type.
func (e EventType) IsValid() bool {
	switch e {
	case EventPlay, EventSkip, EventLike, EventDislike, EventAddToPlaylist:
		return true
	}
	return false
}

// Mood is the user-reported mood component of a listening context.
type Mood string

const (
	MoodCalm      Mood = "CALM"
	MoodHappy     Mood = "HAPPY"
	MoodSad       Mood = "SAD"
	MoodEnergetic Mood = "ENERGETIC"
)

// IsValid reports whether m is a recognised mood.
func (m Mood) IsValid() bool {
	switch m {
	case MoodCalm, MoodHappy, MoodSad, MoodEnergetic:
		return true
	}
	return false
}

// Activity is the activity component of a listening context.
type Activity string

const (
	ActivityWork     Activity = "WORK"
	ActivityExercise Activity = "EXERCISE"
	ActivityRelax    Activity = "RELAX"
	ActivityParty    Activity = "PARTY"
)

// IsValid reports whether a is a recognised activity.
func (a Activity) IsValid() bool {
	switch a {
	case ActivityWork, ActivityExercise, ActivityRelax, ActivityParty:
		return true
	}
	return false
}

// TimeBucket is the coarse time-of-day component of a listening context.
type TimeBucket string

const (
	TimeMorning   TimeBucket = "MORNING"
	TimeAfternoon TimeBucket = "AFTERNOON"
	TimeEvening   TimeBucket = "EVENING"
	TimeNight     TimeBucket = "NIGHT"
)

// IsValid reports whether t is a recognised time bucket.
func (t TimeBucket) IsValid() bool {
	switch t {
	case TimeMorning, TimeAfternoon, TimeEvening, TimeNight:
		return true
	}
	return false
}

// AudioFeatures is the optional per-track audio feature bag. All scalar
// features except Tempo, Loudness, Key, Mode and TimeSignature lie in [0, 1].
type AudioFeatures struct {
	Energy           float64 `json:"energy"`
	Valence          float64 `json:"valence"`
	Danceability     float64 `json:"danceability"`
	Tempo            float64 `json:"tempo"`
	Loudness         float64 `json:"loudness"`
	Speechiness      float64 `json:"speechiness"`
	Acousticness     float64 `json:"acousticness"`
	Instrumentalness float64 `json:"instrumentalness"`
	Liveness         float64 `json:"liveness"`
	Key              int     `json:"key"`
	Mode             int     `json:"mode"`
	TimeSignature    int     `json:"timeSignature"`
}

// Track is a single catalogue entry. Tracks are created by ingestion and are
// immutable to this service; Embedding is nil for tracks that have not been
// embedded yet and such tracks never appear in ANN results.
type Track struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Artist      string         `json:"artist"`
	Genre       string         `json:"genre"`
	DurationSec int            `json:"durationSec"`
	ExternalURL string         `json:"externalUrl"`
	PreviewURL  string         `json:"previewUrl,omitempty"`
	Features    *AudioFeatures `json:"audioFeatures,omitempty"`
	Embedding   []float32      `json:"-"`
}

// UserProfile is the per-user taste state. ExternalUserID is minted by the
// host platform and is the sole key for all per-user state. Embedding is nil
// until the first successful profile-embedding recomputation.
type UserProfile struct {
	ExternalUserID  string    `json:"externalUserId"`
	PreferredGenres []string  `json:"preferredGenres"`
	DislikedGenres  []string  `json:"dislikedGenres"`
	LastActiveAt    time.Time `json:"lastActiveAt"`
	Embedding       []float32 `json:"-"`
}

// HasEmbedding reports whether the profile carries a usable taste vector.
func (p *UserProfile) HasEmbedding() bool {
	return len(p.Embedding) == EmbeddingDim
}

// Context is the optional listening context attached to recommendation
// requests and interaction events. Zero values mean "not supplied".
type Context struct {
	Mood       Mood       `json:"mood,omitempty"`
	Activity   Activity   `json:"activity,omitempty"`
	TimeBucket TimeBucket `json:"timeBucket,omitempty"`
}

// IsZero reports whether no context component is set.
func (c Context) IsZero() bool {
	return c.Mood == "" && c.Activity == "" && c.TimeBucket == ""
}

// Interaction is one append-only interaction event. ClientTs is carried
// through the API for future use; CreatedAt (server clock) is the
// authoritative ordering.
type Interaction struct {
	ID             int64     `json:"id"`
	ExternalUserID string    `json:"externalUserId"`
	TrackID        string    `json:"trackId"`
	EventType      EventType `json:"eventType"`
	EventValue     *int      `json:"eventValue,omitempty"`
	Context        *Context  `json:"context,omitempty"`
	ClientTs       time.Time `json:"clientTs,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

// InteractionStats is the all-time per-user event breakdown used to detect
// cold-start users.
type InteractionStats struct {
	Total     int `json:"total"`
	PlayCount int `json:"playCount"`
	LikeCount int `json:"likeCount"`
	SkipCount int `json:"skipCount"`
}

// ActivityRollup is the 7-day per-user activity summary surfaced on /me.
type ActivityRollup struct {
	Plays7d  int     `json:"plays7d"`
	Likes7d  int     `json:"likes7d"`
	Skips7d  int     `json:"skips7d"`
	LikeRate float64 `json:"likeRate7d"`
}

// InterestGraphSchemaVersion is the current schema version written into
// freshly generated interest graph documents.
const InterestGraphSchemaVersion = 1

// InterestGraph is the compact per-user bias document derived from recent
// interactions. Each map holds at most 20 entries; scores are normalized so
// the maximum is 1 (or all zero when the input had no positive mass). The
// avoid maps contain only entries whose raw accumulated score was negative.
type InterestGraph struct {
	SchemaVersion int                `json:"version"`
	GeneratedBy   string             `json:"generatedBy"`
	WindowDays    int                `json:"windowDays"`
	TopArtists    map[string]float64 `json:"topArtists"`
	TopGenres     map[string]float64 `json:"topGenres"`
	AvoidArtists  map[string]float64 `json:"avoidArtists"`
	AvoidGenres   map[string]float64 `json:"avoidGenres"`
	UpdatedAt     time.Time          `json:"updatedAt"`

	// Version is the monotonic write counter maintained by the store; it is
	// ignored on input to upserts.
	Version int64 `json:"-"`
}

// AvoidScore returns the maximum avoid score recorded for the given artist
// and genre, or 0 when neither appears in the avoid maps.
func (g *InterestGraph) AvoidScore(artist, genre string) float64 {
	var s float64
	if g == nil {
		return 0
	}
	if v, ok := g.AvoidArtists[artist]; ok && v > s {
		s = v
	}
	if v, ok := g.AvoidGenres[genre]; ok && v > s {
		s = v
	}
	return s
}

// RefreshReason states why a push refresh was triggered.
type RefreshReason string

const (
	ReasonSkipDetected  RefreshReason = "skip_detected"
	ReasonContextChange RefreshReason = "context_change"
	ReasonManualRefresh RefreshReason = "manual_refresh"
)

// IsValid reports whether r is a recognised refresh reason.
func (r RefreshReason) IsValid() bool {
	switch r {
	case ReasonSkipDetected, ReasonContextChange, ReasonManualRefresh:
		return true
	}
	return false
}
