package domain

import "time"

// Maintenance task IDs.
const (
	TaskIDSourceHealth = "source-health"
	TaskIDCacheSweep   = "cache-sweep"
)

// taskNames are the display names of the built-in tasks.
var taskNames = map[string]string{
	TaskIDSourceHealth: "Source Health Probe",
	TaskIDCacheSweep:   "Cache Sweep",
}

// TaskIDs lists the built-in maintenance tasks in run order.
func TaskIDs() []string {
	return []string{TaskIDSourceHealth, TaskIDCacheSweep}
}

// TaskName returns the display name for a task, or the ID itself.
func TaskName(id string) string {
	if name, ok := taskNames[id]; ok {
		return name
	}
	return id
}

// MaintenanceTask is the persisted state of a recurring background job.
type MaintenanceTask struct {
	ID       string
	Name     string
	Interval time.Duration
	Enabled  bool

	// LastRun is when the most recent run started.
	LastRun time.Time

	// NextRun is when the task becomes due. Zero means due now.
	NextRun time.Time

	// LastSuccess is when a run last finished without error.
	LastSuccess time.Time

	// LastError is the error of the most recent run, cleared on success.
	LastError string

	// Failures counts consecutive failed runs.
	Failures int
}

// Due reports whether an enabled task should run at now.
func (t *MaintenanceTask) Due(now time.Time) bool {
	return t.Enabled && !t.NextRun.After(now)
}

// Complete folds a finished run into the task and schedules the next one
// an interval after the run ended.
func (t *MaintenanceTask) Complete(run TaskRun) {
	t.LastRun = run.StartedAt
	t.NextRun = run.EndedAt.Add(t.Interval)
	if run.OK() {
		t.LastSuccess = run.EndedAt
		t.LastError = ""
		t.Failures = 0
		return
	}
	t.LastError = run.Error
	t.Failures++
}

// TaskRun is one execution of a maintenance task.
type TaskRun struct {
	TaskID    string
	StartedAt time.Time
	EndedAt   time.Time

	// Error is empty when the run succeeded.
	Error string

	// Processed counts sources probed or cache entries purged.
	Processed int

	// Summary describes the outcome, e.g. "3/4 sources healthy".
	Summary string
}

// OK reports whether the run succeeded.
func (r TaskRun) OK() bool {
	return r.Error == ""
}

// Duration returns how long the run took.
func (r TaskRun) Duration() time.Duration {
	return r.EndedAt.Sub(r.StartedAt)
}

// SchedulerConfig holds scheduler configuration.
type SchedulerConfig struct {
	// Enabled is the master switch.
	Enabled bool

	// Tasks holds per-task configuration keyed by task ID.
	Tasks map[string]TaskConfig
}

// TaskConfig holds configuration for a single task.
type TaskConfig struct {
	Enabled  bool
	Interval time.Duration
}

// Task returns the configuration for a task, or the zero TaskConfig.
func (c SchedulerConfig) Task(id string) TaskConfig {
	return c.Tasks[id]
}

// DefaultSchedulerConfig probes source health every minute and sweeps the
// cache every five.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Enabled: true,
		Tasks: map[string]TaskConfig{
			TaskIDSourceHealth: {Enabled: true, Interval: time.Minute},
			TaskIDCacheSweep:   {Enabled: true, Interval: 5 * time.Minute},
		},
	}
}
