// Package app schedules the ingestion jobs: price polling, new-signal
// announcements, the expiry sweep and the daily summary.
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/newthinker/signalwatch/internal/alert"
	"github.com/newthinker/signalwatch/internal/calendar"
	"github.com/newthinker/signalwatch/internal/config"
	"github.com/newthinker/signalwatch/internal/feed"
	"github.com/newthinker/signalwatch/internal/lifecycle"
	"github.com/newthinker/signalwatch/internal/llm"
	"github.com/newthinker/signalwatch/internal/metrics"
	"github.com/newthinker/signalwatch/internal/router"
	"github.com/newthinker/signalwatch/internal/storage/archive"
	"github.com/newthinker/signalwatch/internal/storage/signal"
)

// Job names, used in logs, metrics and the CLI.
const (
	JobPriceUpdate  = "price_update"
	JobAnnounce     = "announce"
	JobExpirySweep  = "expiry_sweep"
	JobDailySummary = "daily_summary"
)

// Jobs lists every job in schedule order.
var Jobs = []string{JobPriceUpdate, JobAnnounce, JobExpirySweep, JobDailySummary}

// Deps are the collaborators the jobs run against. Feed, Gate, Store and
// Router are required; the rest are optional.
type Deps struct {
	Feed      feed.Feed
	Gate      *calendar.Gate
	Store     signal.Store
	Evaluator *lifecycle.Evaluator
	Router    *router.Router
	Metrics   *metrics.Registry
	Archive   archive.Storage
	LLM       llm.Provider
	Alerts    *alert.Evaluator

	LLMTimeout time.Duration
}

// JobReport describes one run of a job.
type JobReport struct {
	Job       string        `json:"job"`
	Skipped   bool          `json:"skipped"`
	Reason    string        `json:"reason,omitempty"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Symbols   int           `json:"symbols,omitempty"`
	Quotes    int           `json:"quotes,omitempty"`
	Updated   int           `json:"updated,omitempty"`
	Events    int           `json:"events,omitempty"`
	Stale     int           `json:"stale,omitempty"`
	Announced int           `json:"announced,omitempty"`
	Expired   int64         `json:"expired,omitempty"`
	Failed    int           `json:"failed,omitempty"`
	Archived  string        `json:"archived,omitempty"`
	Error     string        `json:"error,omitempty"`
}

// JobStats is the per-job view returned by GetStats.
type JobStats struct {
	Schedule string     `json:"schedule"`
	Running  bool       `json:"running"`
	Skipped  int64      `json:"skipped"`
	LastRun  *JobReport `json:"last_run,omitempty"`
}

// Stats is a snapshot of the scheduler.
type Stats struct {
	Running bool                `json:"running"`
	Jobs    map[string]JobStats `json:"jobs"`
}

// App is the main application orchestrator
type App struct {
	cfg    config.SchedulerConfig
	deps   Deps
	logger *zap.Logger
	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error

	guards map[string]*jobGuard

	mu      sync.RWMutex
	lastRun map[string]JobReport
	running bool
	cancel  context.CancelFunc
}

// New creates a new App instance
func New(cfg config.SchedulerConfig, deps Deps, logger *zap.Logger) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 20
	}
	if cfg.AnnounceBatch <= 0 {
		cfg.AnnounceBatch = 5
	}
	if deps.Evaluator == nil {
		deps.Evaluator = lifecycle.NewEvaluator()
	}
	if deps.LLMTimeout <= 0 {
		deps.LLMTimeout = 30 * time.Second
	}

	guards := make(map[string]*jobGuard, len(Jobs))
	for _, j := range Jobs {
		guards[j] = &jobGuard{}
	}

	return &App{
		cfg:     cfg,
		deps:    deps,
		logger:  logger,
		now:     time.Now,
		sleep:   sleepCtx,
		guards:  guards,
		lastRun: make(map[string]JobReport),
	}
}

// Start registers the configured jobs and blocks until ctx is cancelled or
// Stop is called. Jobs run on a context detached from shutdown, so a tick
// already in progress completes before Start returns.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return fmt.Errorf("app already running")
	}
	a.running = true

	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.mu.Unlock()

	defer func() {
		a.mu.Lock()
		a.running = false
		a.mu.Unlock()
	}()

	jobCtx := context.WithoutCancel(ctx)
	clog := cronLogger{sugar: a.logger.Sugar()}
	c := cron.New(
		cron.WithParser(config.CronParser),
		cron.WithLocation(a.deps.Gate.Location()),
		cron.WithLogger(clog),
		cron.WithChain(cron.Recover(clog)),
	)

	for _, job := range Jobs {
		spec := a.schedule(job)
		if spec == "" {
			a.logger.Info("job disabled", zap.String("job", job))
			continue
		}
		run := a.runner(job)
		if _, err := c.AddFunc(spec, func() { run(jobCtx) }); err != nil {
			cancel()
			return fmt.Errorf("scheduling %s: %w", job, err)
		}
	}

	a.logger.Info("scheduler starting",
		zap.String("timezone", a.deps.Gate.Location().String()),
		zap.Int("batch_size", a.cfg.BatchSize),
	)
	c.Start()

	<-ctx.Done()
	a.logger.Info("scheduler shutting down")
	<-c.Stop().Done()
	return ctx.Err()
}

// Stop stops the scheduler loop
func (a *App) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancel != nil {
		a.cancel()
	}
}

// Run executes a single job by name.
func (a *App) Run(ctx context.Context, job string) (JobReport, error) {
	for _, j := range Jobs {
		if j == job {
			return a.runner(job)(ctx), nil
		}
	}
	return JobReport{}, fmt.Errorf("unknown job: %s", job)
}

func (a *App) runner(job string) func(context.Context) JobReport {
	switch job {
	case JobPriceUpdate:
		return a.RunPriceUpdate
	case JobAnnounce:
		return a.RunAnnounce
	case JobExpirySweep:
		return a.RunExpirySweep
	default:
		return a.RunDailySummary
	}
}

func (a *App) schedule(job string) string {
	switch job {
	case JobPriceUpdate:
		return a.cfg.Jobs.PriceUpdate
	case JobAnnounce:
		return a.cfg.Jobs.Announce
	case JobExpirySweep:
		return a.cfg.Jobs.ExpirySweep
	case JobDailySummary:
		return a.cfg.Jobs.DailySummary
	}
	return ""
}

// guarded runs fn behind the job's guard and records the outcome.
func (a *App) guarded(ctx context.Context, job string, fn func(context.Context, *JobReport) error) JobReport {
	rep := JobReport{Job: job, StartedAt: a.now()}

	g := a.guards[job]
	if !g.tryAcquire() {
		rep.Skipped = true
		rep.Reason = "previous run still in progress"
		a.deps.Metrics.RecordJobSkipped(job)
		a.logger.Debug("job skipped", zap.String("job", job))
		return rep
	}
	defer g.release()

	start := time.Now()
	err := fn(ctx, &rep)
	rep.Duration = time.Since(start)

	status := "ok"
	if err != nil {
		status = "error"
		rep.Error = err.Error()
		a.logger.Error("job failed",
			zap.String("job", job),
			zap.Duration("duration", rep.Duration),
			zap.Error(err),
		)
	} else {
		a.logger.Debug("job finished",
			zap.String("job", job),
			zap.Duration("duration", rep.Duration),
			zap.String("reason", rep.Reason),
		)
	}
	a.deps.Metrics.RecordJob(job, status, rep.Duration.Seconds())
	a.deps.Alerts.Observe(ctx, healthValues(rep))

	a.mu.Lock()
	a.lastRun[job] = rep
	a.mu.Unlock()
	return rep
}

// GetStats returns scheduler statistics
func (a *App) GetStats() Stats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := Stats{Running: a.running, Jobs: make(map[string]JobStats, len(Jobs))}
	for _, job := range Jobs {
		g := a.guards[job]
		js := JobStats{
			Schedule: a.schedule(job),
			Running:  g.running.Load(),
			Skipped:  g.skipped.Load(),
		}
		if rep, ok := a.lastRun[job]; ok {
			r := rep
			js.LastRun = &r
		}
		stats.Jobs[job] = js
	}
	return stats
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
