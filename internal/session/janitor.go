package session

import (
	"context"
	"log/slog"
	"time"
)

const defaultJanitorInterval = time.Minute

// JanitorConfig configures StartJanitor.
type JanitorConfig struct {
	Interval   time.Duration
	SessionTTL time.Duration
	DraftTTL   time.Duration
}

// StartJanitor runs a background goroutine that periodically evicts idle
// sessions and expires stale checkout drafts until ctx is done.
func StartJanitor(ctx context.Context, store *Store, cfg JanitorConfig) {
	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultJanitorInterval
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		slog.Info("Session janitor started", "interval", interval, "session_ttl", cfg.SessionTTL, "draft_ttl", cfg.DraftTTL)

		for {
			select {
			case <-ticker.C:
				res := store.Sweep(time.Now(), cfg.SessionTTL, cfg.DraftTTL)
				if res.Evicted > 0 || res.DraftsExpired > 0 {
					slog.Info("Session janitor sweep completed",
						"evicted", res.Evicted,
						"drafts_expired", res.DraftsExpired,
						"live", store.Len())
				}
			case <-ctx.Done():
				slog.Info("Session janitor shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}
