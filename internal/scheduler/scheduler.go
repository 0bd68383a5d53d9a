// Package scheduler runs the dispatch loop: on every tick it lists jobs,
// evaluates which are due, and hands due jobs to the Execution Engine with
// trigger=Scheduled. The loop itself runs as a gocron job in singleton mode,
// so a slow tick (blocking repository calls, many dispatches) is never
// overlapped by the next one.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/rsync-studio/syncengine/internal/domain"
	"github.com/rsync-studio/syncengine/internal/engine"
	"github.com/rsync-studio/syncengine/internal/metrics"
	"github.com/rsync-studio/syncengine/internal/repository"
)

// cronParser is shared across is-due/next-run evaluations. robfig/cron/v3
// is used purely as the five-field expression evaluator; gocron drives the
// tick cadence itself.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// IsDue reports whether sched is due to run now, given the job's last
// start time (ignored when hasLastRun is false, meaning "never run") and the
// current time.
func IsDue(sched domain.Schedule, lastRun time.Time, hasLastRun bool, now time.Time) bool {
	if !sched.Enabled {
		return false
	}

	switch sched.Kind {
	case domain.ScheduleCron:
		schedule, err := cronParser.Parse(sched.Expression)
		if err != nil {
			return false
		}
		if !hasLastRun {
			return true
		}
		return !schedule.Next(lastRun).After(now)
	case domain.ScheduleInterval:
		if !hasLastRun {
			return true
		}
		elapsed := now.Sub(lastRun)
		return elapsed >= time.Duration(sched.Minutes)*time.Minute
	default:
		return false
	}
}

// NextRunTime returns the first strict-future occurrence of sched after
// from, or false if sched is disabled or its cron expression is invalid.
func NextRunTime(sched domain.Schedule, from time.Time) (time.Time, bool) {
	if !sched.Enabled {
		return time.Time{}, false
	}

	switch sched.Kind {
	case domain.ScheduleCron:
		schedule, err := cronParser.Parse(sched.Expression)
		if err != nil {
			return time.Time{}, false
		}
		return schedule.Next(from), true
	case domain.ScheduleInterval:
		return from.Add(time.Duration(sched.Minutes) * time.Minute), true
	default:
		return time.Time{}, false
	}
}

// JobExecutor is the subset of the Execution Engine's contract the
// scheduler dispatches through, kept narrow for testability.
type JobExecutor interface {
	Execute(ctx context.Context, job domain.Job, trigger domain.InvocationTrigger, sink engine.EventSink) (uuid.UUID, error)
}

// SinkFactory produces a fresh EventSink for each dispatched invocation.
type SinkFactory func(job domain.Job) engine.EventSink

// Config groups Scheduler's constructor arguments.
type Config struct {
	Jobs        repository.JobRepository
	Invocations repository.InvocationRepository
	Executor    JobExecutor
	SinkFactory SinkFactory
	Settings    domain.SettingsReader

	// OnScheduled, if set, is invoked just before a due job is dispatched.
	OnScheduled func(job domain.Job)

	// RetentionSweep, if set, runs on the first tick and then every
	// retention_check_every_n_cycles ticks thereafter. Errors are logged,
	// not fatal to the tick.
	RetentionSweep func(ctx context.Context) error

	Logger *zap.Logger
}

// Scheduler wraps gocron and runs the background dispatch loop.
// The zero value is not usable — create instances with New.
type Scheduler struct {
	jobs           repository.JobRepository
	invocations    repository.InvocationRepository
	executor       JobExecutor
	sinkFactory    SinkFactory
	settings       domain.SettingsReader
	onScheduled    func(job domain.Job)
	retentionSweep func(ctx context.Context) error
	logger         *zap.Logger

	cron gocron.Scheduler

	cycleCount int
}

// New creates and configures a new Scheduler. Call Start to begin
// dispatching. A nil Logger is replaced with zap.NewNop().
func New(cfg Config) (*Scheduler, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	gs, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("scheduler: failed to create gocron scheduler: %w", err)
	}

	return &Scheduler{
		jobs:           cfg.Jobs,
		invocations:    cfg.Invocations,
		executor:       cfg.Executor,
		sinkFactory:    cfg.SinkFactory,
		settings:       cfg.Settings,
		onScheduled:    cfg.OnScheduled,
		retentionSweep: cfg.RetentionSweep,
		logger:         logger.Named("scheduler"),
		cron:           gs,
	}, nil
}

// Start registers the dispatch tick as a gocron job firing every
// check_interval_secs — singleton mode, so an overrunning tick is never
// overlapped — starting with an immediate run so startup retention and
// due-job checks happen without waiting a full interval.
func (s *Scheduler) Start(ctx context.Context) error {
	interval := time.Duration(s.checkIntervalSecs()) * time.Second

	_, err := s.cron.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() { s.tick(ctx) }),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return fmt.Errorf("scheduler: failed to register dispatch job: %w", err)
	}

	s.cron.Start()
	s.logger.Info("scheduler started", zap.Duration("interval", interval))
	return nil
}

// Stop shuts down the underlying gocron scheduler, waiting for an in-flight
// tick to finish dispatching. Jobs already handed to the engine keep
// running — only new dispatches stop.
func (s *Scheduler) Stop() error {
	if err := s.cron.Shutdown(); err != nil {
		return fmt.Errorf("scheduler: shutdown error: %w", err)
	}
	s.logger.Info("scheduler stopped")
	return nil
}

func (s *Scheduler) checkIntervalSecs() int {
	if s.settings == nil {
		return 300
	}
	secs := domain.IntSetting(s.settings, domain.KeyCheckIntervalSecs)
	if secs <= 0 {
		return 300
	}
	return secs
}

func (s *Scheduler) retentionEveryN() int {
	if s.settings == nil {
		return 12
	}
	n := domain.IntSetting(s.settings, domain.KeyRetentionEveryN)
	if n <= 0 {
		return 12
	}
	return n
}

// tick runs exactly one scheduling cycle. Never called concurrently with
// itself (gocron singleton mode).
func (s *Scheduler) tick(ctx context.Context) {
	defer metrics.RecordSchedulerTick()
	s.cycleCount++
	if s.retentionSweep != nil && (s.cycleCount-1)%s.retentionEveryN() == 0 {
		if err := s.retentionSweep(ctx); err != nil {
			s.logger.Error("retention sweep failed", zap.Error(err))
		}
	}

	jobs, err := s.jobs.List(ctx, repository.ListOptions{})
	if err != nil {
		s.logger.Error("failed to list jobs", zap.Error(err))
		return
	}

	now := time.Now().UTC()
	for _, job := range jobs {
		s.evaluateJob(ctx, job, now)
	}
}

func (s *Scheduler) evaluateJob(ctx context.Context, job domain.Job, now time.Time) {
	if !job.Enabled || job.Sched == nil || !job.Sched.Enabled {
		return
	}

	lastRun, hasLastRun, err := s.lastRunFor(ctx, job.ID)
	if err != nil {
		s.logger.Error("failed to look up last run", zap.String("job_id", job.ID.String()), zap.Error(err))
		return
	}

	if !IsDue(*job.Sched, lastRun, hasLastRun, now) {
		return
	}

	if s.onScheduled != nil {
		s.onScheduled(job)
	}

	sink := s.sinkFactory(job)
	if _, err := s.executor.Execute(ctx, job, domain.TriggerScheduled, sink); err != nil {
		if err == engine.ErrAlreadyRunning {
			s.logger.Debug("skipping already-running job", zap.String("job_id", job.ID.String()))
			return
		}
		s.logger.Error("scheduled execution failed to start", zap.String("job_id", job.ID.String()), zap.Error(err))
	}
}

func (s *Scheduler) lastRunFor(ctx context.Context, jobID uuid.UUID) (time.Time, bool, error) {
	inv, err := s.invocations.LatestForJob(ctx, jobID)
	if err == repository.ErrNotFound {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return inv.StartedAt, true, nil
}
