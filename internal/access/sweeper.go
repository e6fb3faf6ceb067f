package access

import (
	"context"
	"time"

	"github.com/classmark/attendance/internal/repo"
	"github.com/classmark/attendance/pkg/logger"
)

// Sweeper physically deletes expired session and link records. This is
// storage hygiene only; resolution checks expiry on every use, so the sweep
// can stop, restart, or double-run without affecting correctness.
type Sweeper struct {
	sessions repo.SessionRepository
	links    repo.LinkRepository
	interval time.Duration
}

func NewSweeper(sessions repo.SessionRepository, links repo.LinkRepository, interval time.Duration) *Sweeper {
	return &Sweeper{sessions: sessions, links: links, interval: interval}
}

// Run blocks until ctx is canceled, sweeping once per interval.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce deletes everything past its expiry. Idempotent.
func (s *Sweeper) SweepOnce(ctx context.Context) {
	now := time.Now()

	if n, err := s.sessions.DeleteExpired(ctx, now); err != nil {
		logger.ErrorContext(ctx, "Session sweep failed", "error", err)
	} else if n > 0 {
		logger.InfoContext(ctx, "Swept expired sessions", "count", n)
	}

	if n, err := s.links.DeleteExpired(ctx, now); err != nil {
		logger.ErrorContext(ctx, "Link sweep failed", "error", err)
	} else if n > 0 {
		logger.InfoContext(ctx, "Swept expired links", "count", n)
	}
}
