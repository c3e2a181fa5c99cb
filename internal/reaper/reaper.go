// Package reaper runs the periodic sweep that deletes expired refresh
// tokens. Logout and rotation delete eagerly; the reaper only enforces the
// storage-level expiry for sessions that were simply abandoned.
package reaper

import (
	"context"
	"log/slog"
	"time"
)

// DefaultPeriod matches the refresh token TTL: one sweep per day is enough
// because validation rejects expired rows regardless of whether they have
// been swept yet.
const DefaultPeriod = 24 * time.Hour

type ExpiredTokenStore interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

type Reaper struct {
	tokens ExpiredTokenStore
	period time.Duration
}

func New(tokens ExpiredTokenStore, period time.Duration) *Reaper {
	if period <= 0 {
		period = DefaultPeriod
	}
	return &Reaper{tokens: tokens, period: period}
}

// Run sweeps once immediately, then on every tick until ctx is cancelled.
// Sweeps execute inline in this loop, so runs never overlap.
func (r *Reaper) Run(ctx context.Context) {
	r.sweep(ctx)

	ticker := time.NewTicker(r.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("reaper stopped")
			return
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}

func (r *Reaper) sweep(ctx context.Context) {
	deleted, err := r.tokens.DeleteExpired(ctx)
	if err != nil {
		// A failed sweep is retried on the next tick; in-flight auth calls
		// are unaffected because validation checks expiry itself.
		slog.Error("reaper sweep failed", "error", err)
		return
	}

	slog.Info("reaper sweep complete", "deleted", deleted)
}
