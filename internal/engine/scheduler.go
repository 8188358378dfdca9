// ABOUTME: Foreground timer triggering periodic smart syncs plus one full sync at start
// ABOUTME: Stop is idempotent and cancels the in-flight cycle

package engine

import (
	"context"
	"sync"
	"time"
)

// Scheduler drives the engine on a fixed interval. One full sync runs at
// start (cold-start reconciliation); every tick after that is a smart sync.
type Scheduler struct {
	engine   *Engine
	interval time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewScheduler creates a stopped scheduler.
func NewScheduler(e *Engine, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	return &Scheduler{engine: e, interval: interval}
}

// Start launches the sync loop. Calling Start on a running scheduler is a
// no-op; lifecycle transitions should Stop then Start.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.run(ctx)
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.done)

	if _, err := s.engine.PerformSync(ctx, ModeFull); err != nil {
		s.engine.logger.Warn("startup full sync failed", "err", err)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.engine.PerformSync(ctx, ModeSmart); err != nil {
				s.engine.logger.Warn("periodic sync failed", "err", err)
			}
		}
	}
}

// Stop cancels the loop and waits for the current cycle to wind down.
// Safe to call multiple times.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	done := s.done
	s.cancel = nil
	s.done = nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}
