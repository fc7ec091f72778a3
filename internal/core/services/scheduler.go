package services

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/custodia-labs/sercha-chat/internal/core/domain"
	"github.com/custodia-labs/sercha-chat/internal/core/ports/driving"
)

// Scheduler rebuilds the index for the active embedding model on a fixed
// interval, so edits to the knowledge source are picked up without a model
// change. Each instance refreshes its own in-memory index; the IndexCache
// rebuild gate staggers instances when a DistributedLock is configured.
type Scheduler struct {
	retrieval driving.RetrievalService
	embedders EmbedderProvider
	logger    *slog.Logger
	interval  time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	inFlight  atomic.Bool
	refreshes atomic.Int64
	failures  atomic.Int64
}

type SchedulerConfig struct {
	Retrieval driving.RetrievalService
	Embedders EmbedderProvider
	Logger    *slog.Logger
	Interval  time.Duration // default 1h
}

func NewScheduler(cfg SchedulerConfig) *Scheduler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = time.Hour
	}
	return &Scheduler{
		retrieval: cfg.Retrieval,
		embedders: cfg.Embedders,
		logger:    logger,
		interval:  interval,
	}
}

// Start launches the refresh loop and returns immediately. The loop ends on
// Stop or when ctx is cancelled. Starting a running scheduler is a no-op.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return nil
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	s.logger.Info("index refresh scheduler starting", "interval", s.interval)
	go s.loop(loopCtx, s.done)
	return nil
}

// Stop ends the loop and waits for an in-flight refresh to finish
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
	s.logger.Info("index refresh scheduler stopped")
}

// Running reports whether the loop has been started and not stopped
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

// Refreshes counts successful refreshes
func (s *Scheduler) Refreshes() int {
	return int(s.refreshes.Load())
}

// Failures counts refreshes that kept the previous index
func (s *Scheduler) Failures() int {
	return int(s.failures.Load())
}

// Stats reports the loop state and refresh counters
func (s *Scheduler) Stats() domain.RefreshStats {
	return domain.RefreshStats{
		Running:   s.Running(),
		Refreshes: s.Refreshes(),
		Failures:  s.Failures(),
	}
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.refresh(ctx)
		}
	}
}

// refresh rebuilds the index once unless a refresh is already running
func (s *Scheduler) refresh(ctx context.Context) {
	if s.embedders != nil && s.embedders.EmbeddingService() == nil {
		s.logger.Debug("index refresh skipped: no embedding service")
		return
	}
	if !s.inFlight.CompareAndSwap(false, true) {
		s.logger.Debug("index refresh skipped: previous refresh still running")
		return
	}
	defer s.inFlight.Store(false)

	start := time.Now()
	stats, err := s.retrieval.Rebuild(ctx)
	if err != nil {
		s.failures.Add(1)
		s.logger.Error("index refresh failed, keeping previous index", "error", err)
		return
	}

	s.refreshes.Add(1)
	s.logger.Info("index refreshed",
		"model", stats.Model,
		"documents", stats.Documents,
		"chunks", stats.Chunks,
		"duration", time.Since(start),
	)
}
