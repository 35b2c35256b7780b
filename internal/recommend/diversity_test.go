package recommend

import (
	"testing"

	"github.com/cadenza-fm/cadenza/internal/music"
)

func artistTracks(artists ...string) []music.Track {
	out := make([]music.Track, len(artists))
	for i, a := range artists {
		out[i] = music.Track{ID: string(rune('a' + i)), Artist: a}
	}
	return out
}

func artists(tracks []music.Track) []string {
	out := make([]string, len(tracks))
	for i, t := range tracks {
		out[i] = t.Artist
	}
	return out
}

func TestEnforceArtistDiversity(t *testing.T) {
	tests := []struct {
		name   string
		in     []string
		maxRun int
		want   []string
	}{
		{"seed scenario", []string{"A", "A", "A", "A", "B"}, 3, []string{"A", "A", "A", "B"}},
		{"run broken and resumed", []string{"A", "A", "A", "B", "A"}, 3, []string{"A", "A", "A", "B", "A"}},
		{"multiple drops", []string{"A", "A", "A", "A", "A", "B", "B", "B", "B"}, 3, []string{"A", "A", "A", "B", "B", "B"}},
		{"no violation", []string{"A", "B", "A", "B"}, 3, []string{"A", "B", "A", "B"}},
		{"cap of one", []string{"A", "A", "B", "B", "C"}, 1, []string{"A", "B", "C"}},
		{"short list passes through", []string{"A", "A"}, 3, []string{"A", "A"}},
		{"zero cap disables", []string{"A", "A", "A", "A", "A"}, 0, []string{"A", "A", "A", "A", "A"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := artists(enforceArtistDiversity(artistTracks(tt.in...), tt.maxRun))
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Fatalf("got %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestEnforceArtistDiversity_NoLongRunSurvives(t *testing.T) {
	in := artistTracks("A", "A", "A", "A", "B", "A", "A", "A", "A", "A", "C")
	out := enforceArtistDiversity(in, 3)
	for i := 0; i+3 < len(out); i++ {
		a := out[i].Artist
		if out[i+1].Artist == a && out[i+2].Artist == a && out[i+3].Artist == a {
			t.Fatalf("run of 4 %q at index %d: %v", a, i, artists(out))
		}
	}
}
