package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/hazard-ingest-service/internal/domain"
	"github.com/couchcryptid/hazard-ingest-service/internal/observability"
)

// State is the scheduler state.
type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
)

// Trigger names what started a cycle.
type Trigger string

const (
	TriggerTimer    Trigger = "timer"
	TriggerOnDemand Trigger = "on_demand"
)

// CycleReport is the outcome of one cycle across the selected sources.
type CycleReport struct {
	Trigger    Trigger        `json:"trigger"`
	StartedAt  time.Time      `json:"started_at"`
	DurationMS int64          `json:"duration_ms"`
	Sources    []SourceReport `json:"sources"`
}

// Failed returns the reports of sources that did not finish cleanly.
func (c CycleReport) Failed() []SourceReport {
	var out []SourceReport
	for _, r := range c.Sources {
		if !r.OK() {
			out = append(out, r)
		}
	}
	return out
}

// SchedulerConfig tunes the poll loop.
type SchedulerConfig struct {
	Interval       time.Duration
	MaxConcurrency int
	Clock          clockwork.Clock
}

// Scheduler drives ingestion cycles. At most one cycle runs at a time; a
// trigger that arrives while a cycle is running is skipped, not queued.
type Scheduler struct {
	pipeline *Pipeline
	fetchers []Fetcher
	interval time.Duration
	limit    int
	clock    clockwork.Clock
	logger   *slog.Logger
	metrics  *observability.Metrics

	running atomic.Bool
	ready   atomic.Bool

	mu   sync.RWMutex
	last CycleReport
	// lastBySource keeps the latest report per source across partial cycles.
	lastBySource map[domain.SourceID]SourceReport
}

// NewScheduler creates a scheduler over fetchers.
func NewScheduler(p *Pipeline, fetchers []Fetcher, cfg SchedulerConfig, logger *slog.Logger, metrics *observability.Metrics) *Scheduler {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = len(fetchers)
	}
	return &Scheduler{
		pipeline:     p,
		fetchers:     fetchers,
		interval:     cfg.Interval,
		limit:        max(cfg.MaxConcurrency, 1),
		clock:        cfg.Clock,
		logger:       logger,
		metrics:      metrics,
		lastBySource: make(map[domain.SourceID]SourceReport),
	}
}

// Run executes one cycle immediately, then one per interval until ctx is
// cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("scheduler started", "interval", s.interval, "sources", len(s.fetchers))

	s.RunCycle(ctx, TriggerTimer, domain.DefaultFetchParams())

	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopping", "reason", ctx.Err())
			return nil
		case <-ticker.Chan():
			s.RunCycle(ctx, TriggerTimer, domain.DefaultFetchParams())
		}
	}
}

// Refresh runs an on-demand cycle for the given sources, or all sources when
// ids is empty. The cycle is detached from ctx's cancellation so a client
// hanging up does not abort a half-written batch; only the cycle deadline
// bounds it. It reports false when another cycle was already running.
func (s *Scheduler) Refresh(ctx context.Context, params domain.FetchParams, ids ...domain.SourceID) (CycleReport, bool) {
	return s.RunCycle(context.WithoutCancel(ctx), TriggerOnDemand, params, ids...)
}

// RunCycle runs one cycle over the selected sources and blocks until every
// source has finished or the cycle deadline, the sum of the selected sources'
// timeouts, has passed. It reports false without doing anything when a cycle
// is already running.
func (s *Scheduler) RunCycle(ctx context.Context, trigger Trigger, params domain.FetchParams, ids ...domain.SourceID) (CycleReport, bool) {
	if !s.running.CompareAndSwap(false, true) {
		s.metrics.CyclesSkipped.WithLabelValues(string(trigger)).Inc()
		s.logger.Info("cycle already running, skipping trigger", "trigger", trigger)
		return CycleReport{}, false
	}
	s.metrics.SchedulerRunning.Set(1)
	defer func() {
		s.metrics.SchedulerRunning.Set(0)
		s.running.Store(false)
	}()

	fetchers := s.selectFetchers(ids)
	start := s.clock.Now()
	report := CycleReport{
		Trigger:   trigger,
		StartedAt: start.UTC(),
		Sources:   make([]SourceReport, len(fetchers)),
	}

	var budget time.Duration
	for _, f := range fetchers {
		budget += f.Timeout()
	}
	cycleCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	var g errgroup.Group
	g.SetLimit(s.limit)
	for i, f := range fetchers {
		g.Go(func() error {
			report.Sources[i] = s.ingest(cycleCtx, f, params)
			return nil
		})
	}
	_ = g.Wait()

	elapsed := s.clock.Since(start)
	report.DurationMS = elapsed.Milliseconds()
	s.metrics.CycleDuration.Observe(elapsed.Seconds())
	s.record(report)

	s.logger.Info("cycle finished",
		"trigger", trigger,
		"sources", len(fetchers),
		"failed", len(report.Failed()),
		"duration", elapsed,
	)
	return report, true
}

// ingest runs one source and converts a panic into a failed report.
func (s *Scheduler) ingest(ctx context.Context, f Fetcher, params domain.FetchParams) (report SourceReport) {
	start := s.clock.Now()
	defer func() {
		if r := recover(); r != nil {
			id := f.Source()
			src, _ := domain.LookupSource(id)
			err := domain.NewSourceError(id, domain.ErrParse, fmt.Errorf("panic: %v", r))
			s.logger.Error("source panicked", "source", string(id), "error", err)
			s.metrics.SourceFailures.WithLabelValues(string(id), "parse").Inc()
			elapsed := s.clock.Since(start)
			report = SourceReport{
				Source:     id,
				Kind:       src.Kind,
				StartedAt:  start.UTC(),
				Duration:   elapsed,
				DurationMS: elapsed.Milliseconds(),
				Err:        err,
				Error:      err.Error(),
			}
		}
	}()
	return s.pipeline.IngestSource(ctx, f, params)
}

func (s *Scheduler) selectFetchers(ids []domain.SourceID) []Fetcher {
	if len(ids) == 0 {
		return s.fetchers
	}
	out := make([]Fetcher, 0, len(ids))
	for _, f := range s.fetchers {
		if slices.Contains(ids, f.Source()) {
			out = append(out, f)
		}
	}
	return out
}

func (s *Scheduler) record(report CycleReport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = report
	for _, r := range report.Sources {
		s.lastBySource[r.Source] = r
	}
	s.ready.Store(true)
}

// State returns whether a cycle is in flight.
func (s *Scheduler) State() State {
	if s.running.Load() {
		return StateRunning
	}
	return StateIdle
}

// LastCycle returns the most recent completed cycle.
func (s *Scheduler) LastCycle() (CycleReport, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last, s.ready.Load()
}

// SourceReports returns the latest report of every source that has run, in
// configuration order.
func (s *Scheduler) SourceReports() []SourceReport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]SourceReport, 0, len(s.lastBySource))
	for _, f := range s.fetchers {
		if r, ok := s.lastBySource[f.Source()]; ok {
			out = append(out, r)
		}
	}
	return out
}

// Sources returns the ids of the scheduled sources.
func (s *Scheduler) Sources() []domain.SourceID {
	ids := make([]domain.SourceID, len(s.fetchers))
	for i, f := range s.fetchers {
		ids[i] = f.Source()
	}
	return ids
}

// CheckReadiness returns nil once at least one cycle has completed.
func (s *Scheduler) CheckReadiness(_ context.Context) error {
	if !s.ready.Load() {
		return errors.New("no ingestion cycle has completed yet")
	}
	return nil
}
