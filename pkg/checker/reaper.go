package checker

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Reaper periodically sweeps the registry and releases sessions that
// outlived their TTL, so abandoned manual checks cannot leak browser
// resources.
type Reaper struct {
	registry *Registry
	interval time.Duration
	logger   *zap.Logger
}

// NewReaper creates a reaper for the given registry. A zero interval means
// DefaultSweepInterval; a nil logger means no logging.
func NewReaper(registry *Registry, interval time.Duration, logger *zap.Logger) *Reaper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reaper{
		registry: registry,
		interval: interval,
		logger:   logger,
	}
}

// Run sweeps on a fixed interval until the context is cancelled. Intended to
// run as one dedicated goroutine for the registry's lifetime.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

// Sweep removes and releases every expired session, returning how many it
// reclaimed. A failing release (resource already gone) is logged, never
// fatal to the sweep.
func (r *Reaper) Sweep() int {
	expired := r.registry.takeExpired()
	for _, session := range expired {
		if err := session.Release(); err != nil {
			r.logger.Warn("failed to release expired session",
				zap.String("session_id", session.ID),
				zap.Error(err))
			continue
		}
		r.logger.Info("reclaimed expired session",
			zap.String("session_id", session.ID),
			zap.Time("created_at", session.CreatedAt))
	}
	return len(expired)
}
