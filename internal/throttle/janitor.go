package throttle

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Janitor periodically trims a Throttler whose key map has grown past a
// configured maximum. It is strictly optional: the Throttler itself never
// evicts anything and does not know the Janitor exists.
type Janitor struct {
	Interval  time.Duration // how often to check, e.g. 1h
	MaxKeys   int           // sweep only once the map exceeds this
	Retention int64         // keys older than now-Retention are dropped
	Now       func() int64  // timestamp source, defaults to Unix seconds
}

// Run blocks until ctx is cancelled, sweeping t on every tick. Intended to be
// started as a goroutine from main.
func (j Janitor) Run(ctx context.Context, t *Throttler, logger zerolog.Logger) {
	now := j.Now
	if now == nil {
		now = func() int64 { return time.Now().Unix() }
	}

	ticker := time.NewTicker(j.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			count := t.KeyCount()
			if count <= j.MaxKeys {
				continue
			}
			removed := t.RemoveOlderThan(now() - j.Retention)
			logger.Info().
				Int("keys_before", count).
				Int("removed", removed).
				Int("keys_after", t.KeyCount()).
				Msg("janitor sweep")
		}
	}
}
