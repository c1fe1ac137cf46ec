package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

var ErrSchedulerRunning = errors.New("scheduler already running")

// Scheduler drives Engine.Tick on a fixed interval. The engine itself owns
// no timer.
type Scheduler struct {
	engine *Engine
	logger *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewScheduler(engine *Engine) *Scheduler {
	return &Scheduler{
		engine: engine,
		logger: engine.logger.With(slog.String("component", "scheduler")),
	}
}

// Start runs ticks every interval until Stop is called or ctx ends.
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("interval must be > 0, got %s", interval)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.runningLocked() {
		return ErrSchedulerRunning
	}
	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done
	go s.run(ctx, interval, done)
	s.logger.Info("scheduler started", slog.Duration("interval", interval))
	return nil
}

func (s *Scheduler) run(ctx context.Context, interval time.Duration, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.engine.Tick(ctx); err != nil && !errors.Is(err, ErrTickCancelled) {
				s.logger.Error("scheduled tick failed", slog.Any("error", err))
			}
		}
	}
}

// Stop cancels the loop, discarding any in-flight tick, and waits for it to
// exit. Stopping an idle scheduler is a no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runningLocked()
}

func (s *Scheduler) runningLocked() bool {
	if s.done == nil {
		return false
	}
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}
