package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/cadenza-fm/cadenza/internal/music"
	"github.com/cadenza-fm/cadenza/internal/recerr"
)

func TestStoreErr_Classification(t *testing.T) {
	plain := storeErr("fetch", errors.New("broken pipe"))
	if got := recerr.KindOf(plain); got != recerr.KindStore {
		t.Errorf("KindOf = %q, want %q", got, recerr.KindStore)
	}

	deadline := storeErr("fetch", fmt.Errorf("query: %w", context.DeadlineExceeded))
	if got := recerr.KindOf(deadline); got != recerr.KindTimeout {
		t.Errorf("KindOf = %q, want %q", got, recerr.KindTimeout)
	}

	// The cause stays reachable for errors.Is.
	cause := errors.New("boom")
	if !errors.Is(storeErr("fetch", cause), cause) {
		t.Error("wrapped cause must stay reachable")
	}
}

func TestANNCandidates_RejectsWrongDimension(t *testing.T) {
	g := &Gateway{}
	_, err := g.ANNCandidates(context.Background(), make([]float32, 8), nil, 10)
	if got := recerr.KindOf(err); got != recerr.KindValidation {
		t.Fatalf("KindOf = %q, want %q", got, recerr.KindValidation)
	}

	_, err = g.ANNCandidates(context.Background(), nil, nil, 10)
	if got := recerr.KindOf(err); got != recerr.KindValidation {
		t.Fatalf("nil embedding: KindOf = %q, want %q", got, recerr.KindValidation)
	}
}

func TestStringArray_NeverNil(t *testing.T) {
	if got := stringArray(nil); got == nil || len(got) != 0 {
		t.Errorf("stringArray(nil) = %v, want empty non-nil slice", got)
	}
	in := []string{"a", "b"}
	if got := stringArray(in); len(got) != 2 {
		t.Errorf("stringArray = %v", got)
	}
}

func TestEventTypeStrings(t *testing.T) {
	got := eventTypeStrings([]music.EventType{music.EventPlay, music.EventSkip})
	if len(got) != 2 || got[0] != "PLAY" || got[1] != "SKIP" {
		t.Errorf("eventTypeStrings = %v", got)
	}
	if got := eventTypeStrings(nil); got == nil || len(got) != 0 {
		t.Errorf("eventTypeStrings(nil) = %v, want empty non-nil slice", got)
	}
}
