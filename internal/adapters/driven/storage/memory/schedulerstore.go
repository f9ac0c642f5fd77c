package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/custodia-labs/memquery/internal/core/domain"
	"github.com/custodia-labs/memquery/internal/core/ports/driven"
)

// Ensure SchedulerStore implements the interface.
var _ driven.SchedulerStore = (*SchedulerStore)(nil)

// SchedulerStore keeps maintenance state in process. Every task is due on
// the first tick after a restart.
type SchedulerStore struct {
	mu    sync.RWMutex
	tasks map[string]domain.MaintenanceTask
	runs  map[string][]domain.TaskRun // oldest first
}

// NewSchedulerStore creates an empty scheduler store.
func NewSchedulerStore() *SchedulerStore {
	return &SchedulerStore{
		tasks: make(map[string]domain.MaintenanceTask),
		runs:  make(map[string][]domain.TaskRun),
	}
}

func (s *SchedulerStore) GetTask(_ context.Context, id string) (*domain.MaintenanceTask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if task, ok := s.tasks[id]; ok {
		return &task, nil
	}
	return nil, nil
}

func (s *SchedulerStore) ListTasks(_ context.Context) ([]domain.MaintenanceTask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := slices.Sorted(maps.Keys(s.tasks))
	tasks := make([]domain.MaintenanceTask, 0, len(ids))
	for _, id := range ids {
		tasks = append(tasks, s.tasks[id])
	}
	return tasks, nil
}

func (s *SchedulerStore) SaveTask(_ context.Context, task *domain.MaintenanceTask) error {
	if task == nil || task.ID == "" {
		return fmt.Errorf("%w: maintenance task needs an id", domain.ErrInvalidInput)
	}
	s.mu.Lock()
	s.tasks[task.ID] = *task
	s.mu.Unlock()
	return nil
}

func (s *SchedulerStore) DeleteTask(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.tasks, id)
	s.mu.Unlock()
	return nil
}

// RecordRun keeps each log sorted by start time so that equal start times
// stay in recording order.
func (s *SchedulerStore) RecordRun(_ context.Context, run domain.TaskRun) error {
	if run.TaskID == "" {
		return fmt.Errorf("%w: task run needs a task id", domain.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	log := s.runs[run.TaskID]
	at, _ := slices.BinarySearchFunc(log, run.StartedAt, func(r domain.TaskRun, t time.Time) int {
		if r.StartedAt.After(t) {
			return 1
		}
		return -1
	})
	s.runs[run.TaskID] = slices.Insert(log, at, run)
	return nil
}

// RecentRuns returns every run when limit is negative.
func (s *SchedulerStore) RecentRuns(_ context.Context, taskID string, limit int) ([]domain.TaskRun, error) {
	s.mu.RLock()
	log := s.runs[taskID]
	n := len(log)
	if limit >= 0 {
		n = min(limit, n)
	}
	recent := slices.Clone(log[len(log)-n:])
	s.mu.RUnlock()

	slices.Reverse(recent)
	return recent, nil
}

func (s *SchedulerStore) PruneRuns(_ context.Context, keep int) error {
	keep = max(keep, 0)
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, log := range s.runs {
		if len(log) > keep {
			s.runs[id] = slices.Clone(log[len(log)-keep:])
		}
	}
	return nil
}
