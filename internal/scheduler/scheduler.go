// Package scheduler runs the periodic publish sweep: materializing
// scheduled pages whose publish time has arrived and taking down pages
// past their expiry.
package scheduler

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/skycms/skycms/internal/foundation/errors"
	"github.com/skycms/skycms/internal/logfields"
	"github.com/skycms/skycms/internal/publish"
	"github.com/skycms/skycms/internal/tenant"
)

// Enqueuer accepts sweep jobs; satisfied by publish.Queue.
type Enqueuer interface {
	Enqueue(job *publish.Job) error
}

// Scheduler enqueues a sweep job for every tenant at a fixed interval,
// and optionally a full rebuild once a day.
type Scheduler struct {
	scheduler gocron.Scheduler
	registry  *tenant.Registry
	queue     Enqueuer
	interval  time.Duration
	rebuildAt string
	logger    *slog.Logger
}

// Option adjusts scheduler construction.
type Option func(*Scheduler)

// WithNightlyRebuild adds a daily full-site rebuild at the given clock
// time ("03:30"). Regenerated artifacts pick up layout edits and the
// TOC is rebuilt from scratch.
func WithNightlyRebuild(at string) Option {
	return func(s *Scheduler) { s.rebuildAt = at }
}

// New creates the sweep scheduler. Non-positive intervals fall back to
// one minute.
func New(registry *tenant.Registry, queue Enqueuer, interval time.Duration, logger *slog.Logger, opts ...Option) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = time.Minute
	}

	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, errors.RuntimeError("failed to create sweep scheduler").WithCause(err).Build()
	}
	sc := &Scheduler{
		scheduler: s,
		registry:  registry,
		queue:     queue,
		interval:  interval,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(sc)
	}

	if _, err := s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(sc.sweep),
		gocron.WithName("publish-sweep"),
	); err != nil {
		return nil, errors.RuntimeError("failed to schedule publish sweep").WithCause(err).Build()
	}

	if sc.rebuildAt != "" {
		hour, minute, err := parseClock(sc.rebuildAt)
		if err != nil {
			return nil, errors.ConfigError("invalid nightly rebuild time").
				WithCause(err).
				WithContext("rebuild_at", sc.rebuildAt).
				Build()
		}
		if _, err := s.NewJob(
			gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(hour, minute, 0))),
			gocron.NewTask(sc.rebuildAll),
			gocron.WithName("nightly-rebuild"),
		); err != nil {
			return nil, errors.RuntimeError("failed to schedule nightly rebuild").WithCause(err).Build()
		}
	}
	return sc, nil
}

// parseClock parses "HH:MM" into its components.
func parseClock(raw string) (uint, uint, error) {
	hh, mm, ok := strings.Cut(raw, ":")
	if !ok {
		return 0, 0, fmt.Errorf("expected HH:MM, got %q", raw)
	}
	hour, err := strconv.Atoi(hh)
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", raw)
	}
	minute, err := strconv.Atoi(mm)
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", raw)
	}
	return uint(hour), uint(minute), nil
}

// Start begins periodic sweeping.
func (s *Scheduler) Start() {
	s.logger.Info("starting sweep scheduler", slog.Duration("interval", s.interval))
	s.scheduler.Start()
}

// Stop shuts the scheduler down, waiting for a running sweep to finish.
func (s *Scheduler) Stop() error {
	s.logger.Info("stopping sweep scheduler")
	return s.scheduler.Shutdown()
}

// sweep enqueues one sweep job per tenant. A full queue is logged and
// retried on the next tick.
func (s *Scheduler) sweep() {
	for _, t := range s.registry.All() {
		if err := s.queue.Enqueue(publish.NewSweepJob(t.ID)); err != nil {
			s.logger.Warn("sweep enqueue failed", logfields.Tenant(t.ID), logfields.Error(err))
		}
	}
}

// rebuildAll enqueues a full rebuild per tenant.
func (s *Scheduler) rebuildAll() {
	s.logger.Info("nightly rebuild starting", slog.Int("tenants", len(s.registry.All())))
	for _, t := range s.registry.All() {
		if err := s.queue.Enqueue(publish.NewRebuildJob(t.ID)); err != nil {
			s.logger.Warn("rebuild enqueue failed", logfields.Tenant(t.ID), logfields.Error(err))
		}
	}
}
