package push

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cadenza-fm/cadenza/internal/music"
	"github.com/cadenza-fm/cadenza/internal/recommend"
)

// fakeRecommender records pipeline calls and detects overlapping refreshes
// for the same user.
type fakeRecommender struct {
	mu          sync.Mutex
	invalidated []string
	generated   []string
	inFlight    int
	overlapped  bool

	resp  *recommend.Response
	err   error
	delay time.Duration
}

func (f *fakeRecommender) Invalidate(_ context.Context, userID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidated = append(f.invalidated, userID)
}

func (f *fakeRecommender) GetRecommendations(_ context.Context, userID string, _ recommend.Request) (*recommend.Response, error) {
	f.mu.Lock()
	f.inFlight++
	if f.inFlight > 1 {
		f.overlapped = true
	}
	f.generated = append(f.generated, userID)
	delay := f.delay
	f.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	f.mu.Lock()
	f.inFlight--
	resp, err := f.resp, f.err
	f.mu.Unlock()

	if resp == nil && err == nil {
		resp = &recommend.Response{Tracks: []music.Track{}}
	}
	return resp, err
}

func testTracks() []music.Track {
	return []music.Track{
		{ID: "t1", Title: "First", Artist: "A"},
		{ID: "t2", Title: "Second", Artist: "B"},
	}
}

func TestTriggerRefresh_InvalidatesAndFansOut(t *testing.T) {
	rec := &fakeRecommender{resp: &recommend.Response{Tracks: testTracks()}}
	reg := NewRegistry(nil)
	s1 := &stubSession{id: "s1"}
	s2 := &stubSession{id: "s2"}
	if err := reg.Register("alice", s1); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := reg.Register("alice", s2); err != nil {
		t.Fatalf("Register: %v", err)
	}

	e := NewEngine(reg, rec, nil, nil)
	if err := e.TriggerRefresh(context.Background(), "alice", music.ReasonSkipDetected); err != nil {
		t.Fatalf("TriggerRefresh: %v", err)
	}

	if len(rec.invalidated) != 1 || rec.invalidated[0] != "alice" {
		t.Errorf("invalidated = %v, want [alice]", rec.invalidated)
	}
	if len(rec.generated) != 1 {
		t.Errorf("generated = %v, want one call", rec.generated)
	}
	for _, s := range []*stubSession{s1, s2} {
		ev := s.emitted()
		if len(ev) != 1 || ev[0] != EventRecommendationsUpdate {
			t.Errorf("session %s events = %v, want [%s]", s.id, ev, EventRecommendationsUpdate)
		}
	}
}

func TestTriggerRefresh_NoSessionsStillRegenerates(t *testing.T) {
	rec := &fakeRecommender{}
	e := NewEngine(NewRegistry(nil), rec, nil, nil)

	if err := e.TriggerRefresh(context.Background(), "alice", music.ReasonManualRefresh); err != nil {
		t.Fatalf("TriggerRefresh: %v", err)
	}
	if len(rec.generated) != 1 {
		t.Errorf("generated = %v, want one call", rec.generated)
	}
}

func TestTriggerRefresh_GenerateErrorSkipsFanout(t *testing.T) {
	rec := &fakeRecommender{err: errors.New("store down")}
	reg := NewRegistry(nil)
	s := &stubSession{id: "s1"}
	if err := reg.Register("alice", s); err != nil {
		t.Fatalf("Register: %v", err)
	}

	e := NewEngine(reg, rec, nil, nil)
	if err := e.TriggerRefresh(context.Background(), "alice", music.ReasonSkipDetected); err == nil {
		t.Fatal("TriggerRefresh returned nil, want error")
	}
	if got := s.emitted(); len(got) != 0 {
		t.Errorf("session received events %v despite generate failure", got)
	}
}

func TestTriggerRefresh_DeliveryFailureDoesNotFailRefresh(t *testing.T) {
	rec := &fakeRecommender{resp: &recommend.Response{Tracks: testTracks()}}
	reg := NewRegistry(nil)
	broken := &stubSession{id: "s1", err: errors.New("connection reset")}
	healthy := &stubSession{id: "s2"}
	if err := reg.Register("alice", broken); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := reg.Register("alice", healthy); err != nil {
		t.Fatalf("Register: %v", err)
	}

	e := NewEngine(reg, rec, nil, nil)
	if err := e.TriggerRefresh(context.Background(), "alice", music.ReasonSkipDetected); err != nil {
		t.Fatalf("TriggerRefresh: %v", err)
	}
	if got := healthy.emitted(); len(got) != 1 {
		t.Errorf("healthy session events = %v, want one delivery", got)
	}
}

func TestTriggerRefresh_SerializedPerUser(t *testing.T) {
	rec := &fakeRecommender{delay: 20 * time.Millisecond}
	e := NewEngine(NewRegistry(nil), rec, nil, nil)

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = e.TriggerRefresh(context.Background(), "alice", music.ReasonSkipDetected)
		}()
	}
	wg.Wait()

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.overlapped {
		t.Error("refreshes for the same user overlapped")
	}
	if len(rec.generated) != 4 {
		t.Errorf("generated %d times, want 4", len(rec.generated))
	}
}

func TestTriggerRefresh_DifferentUsersRunConcurrently(t *testing.T) {
	rec := &fakeRecommender{delay: 30 * time.Millisecond}
	e := NewEngine(NewRegistry(nil), rec, nil, nil)

	start := time.Now()
	var wg sync.WaitGroup
	for _, user := range []string{"alice", "bob", "carol"} {
		wg.Add(1)
		go func(u string) {
			defer wg.Done()
			_ = e.TriggerRefresh(context.Background(), u, music.ReasonContextChange)
		}(user)
	}
	wg.Wait()

	// Three serialized refreshes would take at least 90ms.
	if elapsed := time.Since(start); elapsed > 80*time.Millisecond {
		t.Errorf("refreshes took %v, expected concurrent execution", elapsed)
	}
}

func TestNotify_RunsDetached(t *testing.T) {
	done := make(chan struct{})
	rec := &fakeRecommender{}
	reg := NewRegistry(nil)
	s := &notifySession{done: done}
	if err := reg.Register("alice", s); err != nil {
		t.Fatalf("Register: %v", err)
	}

	e := NewEngine(reg, rec, nil, nil)
	e.Notify("alice", music.ReasonSkipDetected)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("background refresh did not reach the session")
	}
}

// notifySession closes done on its first emit.
type notifySession struct {
	once sync.Once
	done chan struct{}
}

func (s *notifySession) ID() string { return "notify" }

func (s *notifySession) Emit(_ context.Context, _ string, _ any) error {
	s.once.Do(func() { close(s.done) })
	return nil
}
