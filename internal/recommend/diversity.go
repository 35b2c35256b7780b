package recommend

import "github.com/cadenza-fm/cadenza/internal/music"

// enforceArtistDiversity walks the ranked list and drops any track that would
// extend a run of maxRun consecutive tracks by the same artist. Dropped
// tracks are discarded, not reordered later.
func enforceArtistDiversity(tracks []music.Track, maxRun int) []music.Track {
	if maxRun <= 0 || len(tracks) <= maxRun {
		return tracks
	}
	out := make([]music.Track, 0, len(tracks))
	run := 0
	for _, t := range tracks {
		if n := len(out); n > 0 && out[n-1].Artist == t.Artist {
			if run >= maxRun {
				continue
			}
			run++
		} else {
			run = 1
		}
		out = append(out, t)
	}
	return out
}
