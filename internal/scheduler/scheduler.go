// Package scheduler drives the periodic poll of the feed.
package scheduler

import (
	"context"
	"log/slog"
	"time"
)

// Poller fetches posts the view has not seen yet.
type Poller interface {
	Poll(ctx context.Context) (int, error)
}

// Scheduler periodically polls the server for new posts.
type Scheduler struct {
	poller Poller
	log    *slog.Logger
	tick   time.Duration
}

// New creates a Scheduler with the default 10-second poll interval.
func New(poller Poller, log *slog.Logger) *Scheduler {
	return &Scheduler{
		poller: poller,
		log:    log,
		tick:   10 * time.Second,
	}
}

// SetTickInterval overrides the default poll interval.
func (s *Scheduler) SetTickInterval(d time.Duration) {
	s.tick = d
}

// Run starts the poll loop, blocking until ctx is cancelled.
// The first poll happens one interval after start.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.pollOnce(ctx)
		}
	}
}

func (s *Scheduler) pollOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			s.log.Error("poll panicked", "panic", r)
		}
	}()

	// Failures are logged by the poller and retried on the next tick.
	n, err := s.poller.Poll(ctx)
	if err != nil {
		return
	}
	s.log.Debug("poll tick", "inserted", n)
}
