package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/custodia-labs/memquery/internal/core/domain"
	"github.com/custodia-labs/memquery/internal/core/ports/driven"
	"github.com/custodia-labs/memquery/internal/core/ports/driving"
	"github.com/custodia-labs/memquery/internal/logger"
)

// Ensure Scheduler implements the interface.
var _ driving.Scheduler = (*Scheduler)(nil)

const (
	// runsKept is the per-task run log length.
	runsKept = 100

	// failureAlarm is the consecutive failure count that escalates
	// logging from warn to error.
	failureAlarm = 3

	maxTick = time.Minute
)

// MaintenanceTarget is what the built-in tasks operate on.
// QueryOrchestrator satisfies it.
type MaintenanceTarget interface {
	Health(ctx context.Context) domain.HealthReport
	SweepCache(ctx context.Context) (int, error)
}

// job performs one maintenance run and reports how many items it touched.
type job func(ctx context.Context) (processed int, summary string, err error)

// Scheduler runs the maintenance tasks on their configured intervals,
// persisting state so intervals survive restarts.
type Scheduler struct {
	config domain.SchedulerConfig
	store  driven.SchedulerStore
	jobs   map[string]job
	tick   time.Duration
	now    func() time.Time

	mu       sync.Mutex
	stop     chan struct{}
	inflight sync.WaitGroup
	busy     map[string]bool
}

// NewScheduler creates a scheduler. A nil target makes every job a no-op.
func NewScheduler(config domain.SchedulerConfig, store driven.SchedulerStore, target MaintenanceTarget) *Scheduler {
	s := &Scheduler{
		config: config,
		store:  store,
		tick:   maxTick,
		now:    time.Now,
		busy:   make(map[string]bool),
	}
	s.jobs = map[string]job{
		domain.TaskIDSourceHealth: func(ctx context.Context) (int, string, error) {
			return probeSources(ctx, target)
		},
		domain.TaskIDCacheSweep: func(ctx context.Context) (int, string, error) {
			return sweepCache(ctx, target)
		},
	}
	for _, tc := range config.Tasks {
		if tc.Enabled && tc.Interval > 0 {
			s.tick = min(s.tick, tc.Interval)
		}
	}
	return s
}

// Start blocks, running due tasks every tick, until Stop is called or ctx
// ends. Calling Start on a running or disabled scheduler returns at once.
func (s *Scheduler) Start(ctx context.Context) error {
	if !s.config.Enabled {
		logger.Info("scheduler: disabled")
		return nil
	}

	s.mu.Lock()
	if s.stop != nil {
		s.mu.Unlock()
		return nil
	}
	stop := make(chan struct{})
	s.stop = stop
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		if s.stop == stop {
			s.stop = nil
		}
		s.mu.Unlock()
	}()

	if err := s.register(ctx); err != nil {
		logger.Warn("scheduler: %v", err)
	}

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()
	for {
		s.dispatch(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		case <-ticker.C:
		}
	}
}

// Stop ends the loop and waits for in-flight runs.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if s.stop != nil {
		close(s.stop)
		s.stop = nil
	}
	s.mu.Unlock()

	s.inflight.Wait()
	return nil
}

// register reconciles stored tasks with the configuration. A new task, or
// one whose interval changed, first runs one interval from now.
func (s *Scheduler) register(ctx context.Context) error {
	now := s.now()
	for _, id := range domain.TaskIDs() {
		cfg := s.config.Task(id)
		task, err := s.store.GetTask(ctx, id)
		if err != nil {
			return fmt.Errorf("load task %s: %w", id, err)
		}
		if task == nil {
			task = &domain.MaintenanceTask{ID: id, Name: domain.TaskName(id)}
		}
		if task.Interval != cfg.Interval {
			task.Interval = cfg.Interval
			task.NextRun = now.Add(cfg.Interval)
		}
		task.Enabled = cfg.Enabled
		if err := s.store.SaveTask(ctx, task); err != nil {
			return fmt.Errorf("save task %s: %w", id, err)
		}
	}
	return nil
}

// dispatch starts every due task that is not already running.
func (s *Scheduler) dispatch(ctx context.Context) {
	tasks, err := s.store.ListTasks(ctx)
	if err != nil {
		logger.Warn("scheduler: list tasks: %v", err)
		return
	}

	now := s.now()
	for _, task := range tasks {
		run, known := s.jobs[task.ID]
		if !known || !task.Due(now) || !s.claim(task.ID) {
			continue
		}
		s.inflight.Add(1)
		go func(task domain.MaintenanceTask) {
			defer s.inflight.Done()
			defer s.release(task.ID)
			s.execute(ctx, &task, run)
		}(task)
	}
}

func (s *Scheduler) claim(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy[id] {
		return false
	}
	s.busy[id] = true
	return true
}

func (s *Scheduler) release(id string) {
	s.mu.Lock()
	delete(s.busy, id)
	s.mu.Unlock()
}

// execute runs one job and persists the outcome.
func (s *Scheduler) execute(ctx context.Context, task *domain.MaintenanceTask, run job) {
	record := domain.TaskRun{TaskID: task.ID, StartedAt: s.now()}
	processed, summary, err := run(ctx)
	record.EndedAt = s.now()
	record.Processed = processed
	record.Summary = summary
	if err != nil {
		record.Error = err.Error()
	}
	task.Complete(record)

	switch {
	case record.OK():
		logger.Debug("scheduler: %s done in %s: %s", task.ID, record.Duration(), summary)
	case task.Failures >= failureAlarm:
		logger.Error("scheduler: %s failed %d times in a row: %v", task.ID, task.Failures, err)
	default:
		logger.Warn("scheduler: %s failed: %v", task.ID, err)
	}

	if err := s.store.SaveTask(ctx, task); err != nil {
		logger.Warn("scheduler: save %s: %v", task.ID, err)
	}
	if err := s.store.RecordRun(ctx, record); err != nil {
		logger.Warn("scheduler: record %s run: %v", task.ID, err)
	}
	if err := s.store.PruneRuns(ctx, runsKept); err != nil {
		logger.Warn("scheduler: prune runs: %v", err)
	}
}

// probeSources fails only when sources are configured and none is healthy.
func probeSources(ctx context.Context, target MaintenanceTarget) (int, string, error) {
	if target == nil {
		return 0, "no target", nil
	}

	report := target.Health(ctx)
	for _, sys := range report.Systems {
		if sys.Status != domain.HealthHealthy {
			logger.Warn("health: %s is %s %s", sys.Name, sys.Status, sys.Error)
		}
	}
	summary := fmt.Sprintf("%d/%d sources healthy", report.HealthySystems, report.TotalSystems)
	if report.TotalSystems > 0 && report.HealthySystems == 0 {
		return report.TotalSystems, summary, fmt.Errorf("%w: no healthy sources", domain.ErrSourceUnavailable)
	}
	return report.TotalSystems, summary, nil
}

func sweepCache(ctx context.Context, target MaintenanceTarget) (int, string, error) {
	if target == nil {
		return 0, "no target", nil
	}

	n, err := target.SweepCache(ctx)
	if err != nil {
		return 0, "", fmt.Errorf("sweep cache: %w", err)
	}
	return n, fmt.Sprintf("purged %d expired entries", n), nil
}
