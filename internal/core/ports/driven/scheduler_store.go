package driven

import (
	"context"

	"github.com/custodia-labs/memquery/internal/core/domain"
)

// SchedulerStore keeps maintenance task state across restarts so that a
// task interrupted mid-interval is not rerun immediately.
type SchedulerStore interface {
	// GetTask returns nil and no error for an unknown task.
	GetTask(ctx context.Context, id string) (*domain.MaintenanceTask, error)
	ListTasks(ctx context.Context) ([]domain.MaintenanceTask, error)

	// SaveTask upserts by ID.
	SaveTask(ctx context.Context, task *domain.MaintenanceTask) error
	DeleteTask(ctx context.Context, id string) error

	// RecordRun appends to a task's run log.
	RecordRun(ctx context.Context, run domain.TaskRun) error

	// RecentRuns returns up to limit runs, newest first.
	RecentRuns(ctx context.Context, taskID string, limit int) ([]domain.TaskRun, error)

	// PruneRuns trims every task's run log to its newest keep entries.
	PruneRuns(ctx context.Context, keep int) error
}
