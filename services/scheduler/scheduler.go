package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"sjsage522/webmonitor/helpers"
	"sjsage522/webmonitor/internal/monitor"
	"sjsage522/webmonitor/logger"
)

// TargetSource provides the targets to check on each tick
type TargetSource interface {
	LoadActiveTargets(ctx context.Context) ([]monitor.Target, error)
}

// TargetChecker runs one target through the check pipeline
type TargetChecker interface {
	CheckTarget(ctx context.Context, target monitor.Target) monitor.CheckOutcome
}

// StreamTrimmer is implemented by publishers that keep bounded streams
type StreamTrimmer interface {
	TrimStreams() error
}

// TickStats summarises one tick
type TickStats struct {
	Total   int
	Checked int
	Skipped int
	Matched int
	Fired   int
	Failed  int
}

// Scheduler runs periodic checks of all active targets on a bounded worker pool.
// A target is never checked by two goroutines at once.
type Scheduler struct {
	source   TargetSource
	checker  TargetChecker
	trimmer  StreamTrimmer
	logger   helpers.LoggerInterface
	interval time.Duration

	slots chan struct{}

	mu       sync.Mutex
	inFlight map[int64]struct{}
	baseCtx  context.Context
	pending  sync.WaitGroup
}

// NewScheduler creates a scheduler. trimmer may be nil.
func NewScheduler(
	source TargetSource,
	checker TargetChecker,
	trimmer StreamTrimmer,
	logger helpers.LoggerInterface,
	interval time.Duration,
	workers int,
) *Scheduler {
	if workers < 1 {
		workers = 1
	}
	return &Scheduler{
		source:   source,
		checker:  checker,
		trimmer:  trimmer,
		logger:   logger,
		interval: interval,
		slots:    make(chan struct{}, workers),
		inFlight: make(map[int64]struct{}),
		baseCtx:  context.Background(),
	}
}

// Run ticks immediately and then every interval until ctx is cancelled.
// Ticks never overlap: a tick runs to completion before the next one starts,
// and ticks missed meanwhile are dropped. In-flight checks finish before Run returns.
func (s *Scheduler) Run(ctx context.Context) {
	s.mu.Lock()
	s.baseCtx = ctx
	s.mu.Unlock()

	log := logger.ForScheduler()
	log.Info().Dur("interval", s.interval).Int("workers", cap(s.slots)).Msg("Scheduler started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		start := time.Now()
		stats := s.RunTick(ctx)
		log.Debug().
			Int("total", stats.Total).
			Int("checked", stats.Checked).
			Int("skipped", stats.Skipped).
			Int("fired", stats.Fired).
			Int("failed", stats.Failed).
			Dur("elapsed", time.Since(start)).
			Msg("Tick finished")

		select {
		case <-ctx.Done():
			s.pending.Wait()
			log.Info().Msg("Scheduler stopped")
			return
		case <-ticker.C:
		}
	}
}

// RunTick loads all active targets and checks them on the pool, returning when all are done
func (s *Scheduler) RunTick(ctx context.Context) TickStats {
	var stats TickStats

	targets, err := s.source.LoadActiveTargets(ctx)
	if err != nil {
		s.logger.LogError("scheduler", err)
		return stats
	}
	stats.Total = len(targets)
	if len(targets) > 0 {
		s.logger.LogInfo("Checking %d targets", len(targets))
	}

	var (
		wg      sync.WaitGroup
		statsMu sync.Mutex
	)

dispatch:
	for _, target := range targets {
		if !s.acquire(target.ID) {
			stats.Skipped++
			continue
		}

		select {
		case s.slots <- struct{}{}:
		case <-ctx.Done():
			s.release(target.ID)
			stats.Skipped += stats.Total - stats.Checked - stats.Skipped
			break dispatch
		}

		stats.Checked++
		wg.Add(1)
		go func(t monitor.Target) {
			defer wg.Done()
			defer func() { <-s.slots }()
			defer s.release(t.ID)

			outcome := s.check(ctx, t)

			statsMu.Lock()
			defer statsMu.Unlock()
			if outcome.Err != nil {
				stats.Failed++
			}
			if outcome.Matched {
				stats.Matched++
			}
			if outcome.Fired {
				stats.Fired++
			}
		}(target)
	}
	wg.Wait()

	if s.trimmer != nil {
		if err := s.trimmer.TrimStreams(); err != nil {
			s.logger.LogError("StreamTrimming", err)
		}
	}
	return stats
}

// CheckNow checks one target out of band, e.g. right after it was created.
// It returns false if the target is already being checked.
func (s *Scheduler) CheckNow(target monitor.Target) bool {
	if !s.acquire(target.ID) {
		return false
	}

	s.mu.Lock()
	ctx := s.baseCtx
	s.pending.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.pending.Done()
		defer s.release(target.ID)

		select {
		case s.slots <- struct{}{}:
		case <-ctx.Done():
			return
		}
		defer func() { <-s.slots }()

		s.check(ctx, target)
	}()
	return true
}

// Wait blocks until all out-of-band checks have finished
func (s *Scheduler) Wait() {
	s.pending.Wait()
}

// check runs the checker and turns a panic into a failed outcome
func (s *Scheduler) check(ctx context.Context, target monitor.Target) (outcome monitor.CheckOutcome) {
	defer func() {
		if r := recover(); r != nil {
			outcome = monitor.CheckOutcome{TargetID: target.ID, Err: fmt.Errorf("check panicked: %v", r)}
			s.logger.LogError(fmt.Sprintf("target:%d", target.ID), outcome.Err)
		}
	}()
	return s.checker.CheckTarget(ctx, target)
}

func (s *Scheduler) acquire(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inFlight[id]; busy {
		return false
	}
	s.inFlight[id] = struct{}{}
	return true
}

func (s *Scheduler) release(id int64) {
	s.mu.Lock()
	delete(s.inFlight, id)
	s.mu.Unlock()
}
