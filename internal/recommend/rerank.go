package recommend

import (
	"sort"

	"github.com/cadenza-fm/cadenza/internal/music"
)

// contextScore computes the context bonus for one candidate. Only tracks
// carrying an audio-feature bag participate; everything else scores 0. A
// feature missing from the bag contributes 0 for that term, never an error;
// the zero value of the struct field already does this.
func contextScore(t music.Track, ctx music.Context) float64 {
	if t.Features == nil {
		return 0
	}
	f := t.Features

	var s float64
	switch ctx.Activity {
	case music.ActivityExercise:
		s += 10 * f.Energy
	case music.ActivityRelax:
		s += 8 * (1 - f.Energy)
	case music.ActivityParty:
		s += 10 * f.Danceability
	}
	switch ctx.Mood {
	case music.MoodCalm:
		s += 10 * (1 - f.Energy)
	case music.MoodEnergetic:
		s += 10 * f.Energy
	case music.MoodHappy:
		s += 10 * f.Valence
	case music.MoodSad:
		s += 10 * (1 - f.Valence)
	}
	return s
}

// rerankByContext orders candidates by descending context score. The sort is
// stable: candidates with equal scores keep their incoming (ANN or
// popularity) order.
func rerankByContext(tracks []music.Track, ctx music.Context) []music.Track {
	if ctx.IsZero() || len(tracks) < 2 {
		return tracks
	}
	scores := make([]float64, len(tracks))
	for i, t := range tracks {
		scores[i] = contextScore(t, ctx)
	}
	idx := make([]int, len(tracks))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return scores[idx[a]] > scores[idx[b]]
	})
	out := make([]music.Track, len(tracks))
	for i, j := range idx {
		out[i] = tracks[j]
	}
	return out
}
