package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/memquery/internal/core/domain"
	"github.com/custodia-labs/memquery/internal/core/ports/driven"
)

const selectTask = `SELECT id, name, interval_ms, enabled, last_run, next_run,
	last_success, last_error, failures FROM maintenance_tasks`

type schedulerStore struct {
	db *sql.DB
}

var _ driven.SchedulerStore = (*schedulerStore)(nil)

func (s *schedulerStore) GetTask(ctx context.Context, id string) (*domain.MaintenanceTask, error) {
	task, err := scanTask(s.db.QueryRowContext(ctx, selectTask+" WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return task, err
}

func (s *schedulerStore) ListTasks(ctx context.Context) ([]domain.MaintenanceTask, error) {
	rows, err := s.db.QueryContext(ctx, selectTask+" ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list maintenance tasks: %w", err)
	}
	defer rows.Close()

	tasks := []domain.MaintenanceTask{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

func (s *schedulerStore) SaveTask(ctx context.Context, task *domain.MaintenanceTask) error {
	if task == nil || task.ID == "" {
		return fmt.Errorf("%w: maintenance task needs an id", domain.ErrInvalidInput)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO maintenance_tasks
			(id, name, interval_ms, enabled, last_run, next_run, last_success, last_error, failures)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			interval_ms = excluded.interval_ms,
			enabled = excluded.enabled,
			last_run = excluded.last_run,
			next_run = excluded.next_run,
			last_success = excluded.last_success,
			last_error = excluded.last_error,
			failures = excluded.failures`,
		task.ID, task.Name, task.Interval.Milliseconds(), task.Enabled,
		optTime(task.LastRun), optTime(task.NextRun), optTime(task.LastSuccess),
		optString(task.LastError), task.Failures)
	if err != nil {
		return fmt.Errorf("save maintenance task %s: %w", task.ID, err)
	}
	return nil
}

// DeleteTask leaves the task's runs in place until the next prune.
func (s *schedulerStore) DeleteTask(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM maintenance_tasks WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete maintenance task %s: %w", id, err)
	}
	return nil
}

func (s *schedulerStore) RecordRun(ctx context.Context, run domain.TaskRun) error {
	if run.TaskID == "" {
		return fmt.Errorf("%w: task run needs a task id", domain.ErrInvalidInput)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO task_runs (task_id, started_at, ended_at, error, processed, summary)
		VALUES (?, ?, ?, ?, ?, ?)`,
		run.TaskID, formatTime(run.StartedAt), formatTime(run.EndedAt),
		optString(run.Error), run.Processed, run.Summary)
	if err != nil {
		return fmt.Errorf("record %s run: %w", run.TaskID, err)
	}
	return nil
}

func (s *schedulerStore) RecentRuns(ctx context.Context, taskID string, limit int) ([]domain.TaskRun, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT started_at, ended_at, error, processed, summary
		FROM task_runs
		WHERE task_id = ?
		ORDER BY started_at DESC, seq DESC
		LIMIT ?`, taskID, limit)
	if err != nil {
		return nil, fmt.Errorf("list %s runs: %w", taskID, err)
	}
	defer rows.Close()

	runs := []domain.TaskRun{}
	for rows.Next() {
		run := domain.TaskRun{TaskID: taskID}
		var started, ended string
		var runErr sql.NullString
		if err := rows.Scan(&started, &ended, &runErr, &run.Processed, &run.Summary); err != nil {
			return nil, fmt.Errorf("scan %s run: %w", taskID, err)
		}
		run.StartedAt = parseTime(started)
		run.EndedAt = parseTime(ended)
		run.Error = runErr.String
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (s *schedulerStore) PruneRuns(ctx context.Context, keep int) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM task_runs WHERE seq IN (
			SELECT seq FROM (
				SELECT seq, ROW_NUMBER() OVER (
					PARTITION BY task_id ORDER BY started_at DESC, seq DESC
				) AS pos
				FROM task_runs
			) WHERE pos > ?
		)`, max(keep, 0))
	if err != nil {
		return fmt.Errorf("prune task runs: %w", err)
	}
	return nil
}

func scanTask(row rowScanner) (*domain.MaintenanceTask, error) {
	var (
		task                              domain.MaintenanceTask
		intervalMS                        int64
		lastRun, nextRun, lastOK, lastErr sql.NullString
	)
	err := row.Scan(&task.ID, &task.Name, &intervalMS, &task.Enabled,
		&lastRun, &nextRun, &lastOK, &lastErr, &task.Failures)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan maintenance task: %w", err)
	}

	task.Interval = time.Duration(intervalMS) * time.Millisecond
	task.LastRun = parseTime(lastRun.String)
	task.NextRun = parseTime(nextRun.String)
	task.LastSuccess = parseTime(lastOK.String)
	task.LastError = lastErr.String
	return &task, nil
}
