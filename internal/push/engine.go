package push

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/cadenza-fm/cadenza/internal/music"
	"github.com/cadenza-fm/cadenza/internal/observe"
	"github.com/cadenza-fm/cadenza/internal/recommend"
)

const (
	// refreshTimeout bounds one full refresh cycle (invalidate, regenerate,
	// fan out) when triggered asynchronously from the write path.
	refreshTimeout = 10 * time.Second

	// emitTimeout bounds the delivery of one event to one session so a
	// stalled client cannot hold up the fan-out.
	emitTimeout = time.Second
)

// Recommender is the slice of the recommendation pipeline the push engine
// needs: cache invalidation and list regeneration.
type Recommender interface {
	GetRecommendations(ctx context.Context, userID string, req recommend.Request) (*recommend.Response, error)
	Invalidate(ctx context.Context, userID string)
}

// updateEvent is the payload of a recommendations:update push.
type updateEvent struct {
	Tracks []music.Track `json:"tracks"`
	Reason string        `json:"reason"`
}

// Engine regenerates a user's recommendations and pushes the fresh list to
// every live session of that user. Refreshes for the same user are
// serialized; refreshes for different users proceed concurrently.
//
// Engine implements [recommend.RefreshNotifier] so the pipeline can signal
// skip bursts without depending on this package.
type Engine struct {
	registry *Registry
	rec      Recommender

	mu    sync.Mutex
	users map[string]*userLock

	log     *slog.Logger
	metrics *observe.Metrics
}

// userLock serializes refreshes for one user. refs counts in-flight holders
// so idle entries can be removed from the map.
type userLock struct {
	mu   sync.Mutex
	refs int
}

// NewEngine creates a push engine. log and metrics may be nil.
func NewEngine(registry *Registry, rec Recommender, log *slog.Logger, metrics *observe.Metrics) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		registry: registry,
		rec:      rec,
		users:    make(map[string]*userLock),
		log:      log,
		metrics:  metrics,
	}
}

// Notify schedules a detached refresh for the user. It returns immediately;
// the refresh runs in the background with its own deadline so the calling
// request is never blocked on fan-out.
func (e *Engine) Notify(userID string, reason music.RefreshReason) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
		defer cancel()
		if err := e.TriggerRefresh(ctx, userID, reason); err != nil {
			e.log.Warn("background refresh failed", "user", userID, "reason", reason, "err", err)
		}
	}()
}

// TriggerRefresh invalidates the user's cached recommendations, regenerates
// the context-free list, and fans it out to every live session. Concurrent
// calls for the same user run one at a time. Returns the regeneration error,
// if any; delivery failures to individual sessions are logged and do not fail
// the refresh.
func (e *Engine) TriggerRefresh(ctx context.Context, userID string, reason music.RefreshReason) error {
	lock := e.acquire(userID)
	lock.mu.Lock()
	defer func() {
		lock.mu.Unlock()
		e.release(userID, lock)
	}()

	if e.metrics != nil {
		e.metrics.RefreshTriggers.Add(ctx, 1,
			metric.WithAttributes(attribute.String("reason", string(reason))))
	}

	e.rec.Invalidate(ctx, userID)

	resp, err := e.rec.GetRecommendations(ctx, userID, recommend.Request{})
	if err != nil {
		return err
	}

	e.fanout(ctx, userID, updateEvent{Tracks: resp.Tracks, Reason: string(reason)})
	return nil
}

// fanout delivers one recommendations:update event to every live session of
// the user. Each delivery gets its own deadline; a failed delivery is logged
// and counted but does not stop the loop.
func (e *Engine) fanout(ctx context.Context, userID string, ev updateEvent) {
	sessions := e.registry.SessionsFor(userID)
	if len(sessions) == 0 {
		return
	}

	for _, s := range sessions {
		emitCtx, cancel := context.WithTimeout(ctx, emitTimeout)
		err := s.Emit(emitCtx, EventRecommendationsUpdate, ev)
		cancel()

		status := "ok"
		if err != nil {
			status = "error"
			e.log.Warn("push delivery failed",
				"user", userID, "session", s.ID(), "err", err)
		}
		if e.metrics != nil {
			e.metrics.FanoutEmits.Add(ctx, 1,
				metric.WithAttributes(attribute.String("status", status)))
		}
	}
}

// acquire returns the user's refresh lock, creating it on first use.
func (e *Engine) acquire(userID string) *userLock {
	e.mu.Lock()
	defer e.mu.Unlock()

	l, ok := e.users[userID]
	if !ok {
		l = &userLock{}
		e.users[userID] = l
	}
	l.refs++
	return l
}

// release drops one reference and removes the lock entry when idle.
func (e *Engine) release(userID string, l *userLock) {
	e.mu.Lock()
	defer e.mu.Unlock()

	l.refs--
	if l.refs == 0 {
		delete(e.users, userID)
	}
}
