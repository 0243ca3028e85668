package clipboard

import (
	"context"
	"log/slog"
	"time"
)

// RetentionSweeper periodically deletes events older than MaxAge. This is
// additive maintenance, not part of the Capture path: a dropped event never
// affects an in-flight capture or sync operation.
type RetentionSweeper struct {
	Events EventRepository
	MaxAge time.Duration
	Every  time.Duration
}

// Run blocks until ctx is cancelled, sweeping on a ticker.
func (s *RetentionSweeper) Run(ctx context.Context) {
	if s.Every <= 0 {
		s.Every = time.Hour
	}
	t := time.NewTicker(s.Every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.sweepOnce()
		}
	}
}

func (s *RetentionSweeper) sweepOnce() {
	if s.MaxAge <= 0 {
		return
	}
	ids, err := s.Events.ListOldEvents(time.Now().Add(-s.MaxAge))
	if err != nil {
		slog.Warn("retention sweep: list old events failed", "err", err)
		return
	}
	for _, id := range ids {
		if err := s.Events.DeleteEventAndRepresentations(id); err != nil {
			slog.Warn("retention sweep: delete failed", "event_id", id, "err", err)
		}
	}
	if len(ids) > 0 {
		slog.Debug("retention sweep completed", "deleted", len(ids))
	}
}
