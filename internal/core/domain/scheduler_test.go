package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultSchedulerConfig(t *testing.T) {
	config := DefaultSchedulerConfig()

	assert.True(t, config.Enabled)
	assert.Len(t, config.Tasks, len(TaskIDs()))
	assert.Equal(t, TaskConfig{Enabled: true, Interval: time.Minute}, config.Task(TaskIDSourceHealth))
	assert.Equal(t, TaskConfig{Enabled: true, Interval: 5 * time.Minute}, config.Task(TaskIDCacheSweep))
}

func TestSchedulerConfig_TaskUnknownOrNil(t *testing.T) {
	assert.Zero(t, DefaultSchedulerConfig().Task("reindex"))
	assert.Zero(t, SchedulerConfig{Enabled: true}.Task(TaskIDCacheSweep))
}

func TestTaskName(t *testing.T) {
	assert.Equal(t, "Source Health Probe", TaskName(TaskIDSourceHealth))
	assert.Equal(t, "Cache Sweep", TaskName(TaskIDCacheSweep))
	assert.Equal(t, "custom", TaskName("custom"))
}

func TestMaintenanceTask_Due(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		task MaintenanceTask
		want bool
	}{
		{"never scheduled", MaintenanceTask{Enabled: true}, true},
		{"past due", MaintenanceTask{Enabled: true, NextRun: now.Add(-time.Second)}, true},
		{"exactly due", MaintenanceTask{Enabled: true, NextRun: now}, true},
		{"not yet", MaintenanceTask{Enabled: true, NextRun: now.Add(time.Second)}, false},
		{"disabled", MaintenanceTask{NextRun: now.Add(-time.Hour)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.task.Due(now))
		})
	}
}

func TestMaintenanceTask_CompleteCountsFailures(t *testing.T) {
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	task := MaintenanceTask{ID: TaskIDSourceHealth, Interval: time.Minute, Enabled: true}

	for i := 1; i <= 2; i++ {
		task.Complete(TaskRun{StartedAt: start, EndedAt: start.Add(time.Second), Error: "no healthy sources"})
		assert.Equal(t, i, task.Failures)
	}
	assert.Equal(t, "no healthy sources", task.LastError)
	assert.True(t, task.LastSuccess.IsZero())
	assert.Equal(t, start.Add(time.Second+time.Minute), task.NextRun)

	end := start.Add(2 * time.Minute)
	task.Complete(TaskRun{StartedAt: end.Add(-time.Second), EndedAt: end, Processed: 4})
	assert.Zero(t, task.Failures)
	assert.Empty(t, task.LastError)
	assert.Equal(t, end, task.LastSuccess)
	assert.Equal(t, end.Add(-time.Second), task.LastRun)
}

func TestTaskRun(t *testing.T) {
	now := time.Now()
	run := TaskRun{TaskID: TaskIDCacheSweep, StartedAt: now.Add(-5 * time.Second), EndedAt: now, Processed: 42}

	assert.True(t, run.OK())
	assert.Equal(t, 5*time.Second, run.Duration())

	run.Error = "redis: connection refused"
	assert.False(t, run.OK())
}
