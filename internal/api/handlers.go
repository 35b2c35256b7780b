package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/cadenza-fm/cadenza/internal/music"
	"github.com/cadenza-fm/cadenza/internal/recerr"
	"github.com/cadenza-fm/cadenza/internal/recommend"
	"github.com/cadenza-fm/cadenza/internal/store"
)

// maxPreferredGenres bounds the preferred-genre set on PUT /me/preferences.
const maxPreferredGenres = 10

// meResponse is the GET /me body: the profile plus the 7-day activity
// summary.
type meResponse struct {
	*music.UserProfile
	RecentActivity music.ActivityRollup `json:"recentActivity"`
}

// handleMe fetches (or creates on first sight) the caller's profile.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	userID := UserID(r.Context())

	profile, err := s.gw.FindOrCreateProfile(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	rollup, err := s.gw.ActivityRollup(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, meResponse{UserProfile: profile, RecentActivity: rollup})
}

// preferencesRequest is the PUT /me/preferences body. An externalUserId in
// the body is ignored; identity comes from the trusted header.
type preferencesRequest struct {
	PreferredGenres []string `json:"preferredGenres"`
	ExternalUserID  string   `json:"externalUserId"`
}

// handlePreferences replaces the caller's preferred genre set.
func (s *Server) handlePreferences(w http.ResponseWriter, r *http.Request) {
	userID := UserID(r.Context())

	var req preferencesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, recerr.Wrap(recerr.KindValidation, "malformed request body", err))
		return
	}
	if n := len(req.PreferredGenres); n < 1 || n > maxPreferredGenres {
		writeError(w, r, recerr.Validationf("preferredGenres must hold between 1 and %d entries, got %d", maxPreferredGenres, n))
		return
	}
	for _, g := range req.PreferredGenres {
		if g == "" {
			writeError(w, r, recerr.New(recerr.KindValidation, "preferredGenres may not contain empty strings"))
			return
		}
	}

	profile, err := s.gw.UpdatePreferredGenres(r.Context(), userID, req.PreferredGenres)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, profile)
}

// handleRecommendations parses the listening context from the query string
// and runs the pipeline.
func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	userID := UserID(r.Context())

	req, err := parseRecommendationQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp, err := s.pipeline.GetRecommendations(r.Context(), userID, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, resp)
}

// parseRecommendationQuery validates the mood, activity, timeBucket and
// limit query parameters. Absent parameters stay zero; the pipeline treats a
// zero context as "no context".
func parseRecommendationQuery(r *http.Request) (recommend.Request, error) {
	var req recommend.Request
	q := r.URL.Query()

	if v := q.Get("mood"); v != "" {
		m := music.Mood(v)
		if !m.IsValid() {
			return req, recerr.Validationf("mood %q is not one of CALM, HAPPY, SAD, ENERGETIC", v)
		}
		req.Context.Mood = m
	}
	if v := q.Get("activity"); v != "" {
		a := music.Activity(v)
		if !a.IsValid() {
			return req, recerr.Validationf("activity %q is not one of WORK, EXERCISE, RELAX, PARTY", v)
		}
		req.Context.Activity = a
	}
	if v := q.Get("timeBucket"); v != "" {
		t := music.TimeBucket(v)
		if !t.IsValid() {
			return req, recerr.Validationf("timeBucket %q is not one of MORNING, AFTERNOON, EVENING, NIGHT", v)
		}
		req.Context.TimeBucket = t
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return req, recerr.Validationf("limit %q is not an integer", v)
		}
		req.Limit = n
	}

	return req, nil
}

// interactionRequest is the POST /interactions body. externalUserId is
// ignored; clientTs is stored verbatim but never used for ordering.
type interactionRequest struct {
	TrackID        string         `json:"trackId"`
	EventType      music.EventType `json:"eventType"`
	EventValue     *int           `json:"eventValue"`
	Context        *music.Context `json:"context"`
	ClientTs       time.Time      `json:"clientTs"`
	ExternalUserID string         `json:"externalUserId"`
}

// interactionResponse is the POST /interactions body on success.
type interactionResponse struct {
	Success          bool              `json:"success"`
	Interaction      music.Interaction `json:"interaction"`
	RefreshTriggered bool              `json:"refreshTriggered"`
}

// handleInteractions records one interaction event and reports whether it
// tripped the skip-burst detector.
func (s *Server) handleInteractions(w http.ResponseWriter, r *http.Request) {
	userID := UserID(r.Context())

	var req interactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, recerr.Wrap(recerr.KindValidation, "malformed request body", err))
		return
	}
	if req.TrackID == "" {
		writeError(w, r, recerr.New(recerr.KindValidation, "trackId is required"))
		return
	}
	if !req.EventType.IsValid() {
		writeError(w, r, recerr.Validationf("eventType %q is not one of PLAY, SKIP, LIKE, DISLIKE, ADD_TO_PLAYLIST", req.EventType))
		return
	}
	if req.Context != nil {
		if err := validateContext(*req.Context); err != nil {
			writeError(w, r, err)
			return
		}
	}

	result, err := s.pipeline.RecordInteraction(r.Context(), store.AppendInteractionParams{
		ExternalUserID: userID,
		TrackID:        req.TrackID,
		EventType:      req.EventType,
		EventValue:     req.EventValue,
		Context:        req.Context,
		ClientTs:       req.ClientTs,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusCreated, interactionResponse{
		Success:          true,
		Interaction:      result.Interaction,
		RefreshTriggered: result.RefreshTriggered,
	})
}

// validateContext rejects context bags with unknown enum members. All
// components are optional.
func validateContext(c music.Context) error {
	if c.Mood != "" && !c.Mood.IsValid() {
		return recerr.Validationf("context.mood %q is invalid", c.Mood)
	}
	if c.Activity != "" && !c.Activity.IsValid() {
		return recerr.Validationf("context.activity %q is invalid", c.Activity)
	}
	if c.TimeBucket != "" && !c.TimeBucket.IsValid() {
		return recerr.Validationf("context.timeBucket %q is invalid", c.TimeBucket)
	}
	return nil
}
