// ABOUTME: Periodic cleanup scheduler that drives the session store's sweep
// ABOUTME: Ticks never overlap and Stop is safe to call multiple times

package session

import (
	"log/slog"
	"sync"
	"time"
)

// DefaultCleanupInterval is the sweep cadence used when none is configured.
const DefaultCleanupInterval = time.Minute

// Scheduler runs a sweep function on a fixed interval. The sweep returns the
// number of sessions it removed; failures inside the sweep must be handled
// by the sweep itself (a panic-free sweep simply runs again next tick).
type Scheduler struct {
	interval time.Duration
	sweep    func() int
	logger   *slog.Logger

	done     chan struct{}
	stopOnce sync.Once
}

// NewScheduler creates a scheduler that invokes sweep every interval.
// Call Start to begin ticking.
func NewScheduler(interval time.Duration, sweep func() int, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultCleanupInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		interval: interval,
		sweep:    sweep,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Start launches the background sweep loop.
func (s *Scheduler) Start() {
	go s.run()
}

func (s *Scheduler) run() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			removed := s.sweep()
			if removed > 0 {
				s.logger.Debug("sweep removed expired sessions", "removed", removed)
			}
			// Drop a tick that fired while the sweep was running so slow
			// sweeps are skipped, not queued.
			select {
			case <-ticker.C:
			default:
			}
		case <-s.done:
			return
		}
	}
}

// Stop halts the sweep loop. Safe to call multiple times.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
	})
}
