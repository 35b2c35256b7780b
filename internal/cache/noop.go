package cache

import (
	"context"
	"time"
)

// Noop is the cache used when no Redis address is configured. Every read is
// a miss, so each recommendation request regenerates its list.
type Noop struct{}

var _ Cache = Noop{}

func (Noop) Get(context.Context, string) ([]byte, bool) { return nil, false }

func (Noop) Set(context.Context, string, []byte, time.Duration) {}

func (Noop) DeleteByPrefix(context.Context, string) int { return 0 }

func (Noop) Ping(context.Context) error { return nil }
