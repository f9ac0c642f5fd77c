package services

import (
	"context"
	"errors"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/memquery/internal/core/domain"
	"github.com/custodia-labs/memquery/internal/core/ports/driven"
)

// mockSchedulerStore implements driven.SchedulerStore for testing.
type mockSchedulerStore struct {
	mu      sync.Mutex
	tasks   map[string]domain.MaintenanceTask
	runs    []domain.TaskRun
	pruned  []int
	getErr  error
	listErr error
	saveErr error
}

func newMockSchedulerStore() *mockSchedulerStore {
	return &mockSchedulerStore{tasks: make(map[string]domain.MaintenanceTask)}
}

func (m *mockSchedulerStore) GetTask(_ context.Context, id string) (*domain.MaintenanceTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	task, ok := m.tasks[id]
	if !ok {
		return nil, nil
	}
	return &task, nil
}

func (m *mockSchedulerStore) ListTasks(_ context.Context) ([]domain.MaintenanceTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	tasks := make([]domain.MaintenanceTask, 0, len(m.tasks))
	for _, task := range m.tasks {
		tasks = append(tasks, task)
	}
	return tasks, nil
}

func (m *mockSchedulerStore) SaveTask(_ context.Context, task *domain.MaintenanceTask) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.tasks[task.ID] = *task
	return nil
}

func (m *mockSchedulerStore) DeleteTask(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tasks, id)
	return nil
}

func (m *mockSchedulerStore) RecordRun(_ context.Context, run domain.TaskRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, run)
	return nil
}

func (m *mockSchedulerStore) RecentRuns(_ context.Context, taskID string, _ int) ([]domain.TaskRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.TaskRun
	for _, r := range slices.Backward(m.runs) {
		if r.TaskID == taskID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockSchedulerStore) PruneRuns(_ context.Context, keep int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pruned = append(m.pruned, keep)
	return nil
}

func (m *mockSchedulerStore) task(id string) domain.MaintenanceTask {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tasks[id]
}

// mockMaintenance implements MaintenanceTarget for testing.
type mockMaintenance struct {
	healthCalls atomic.Int32
	sweepCalls  atomic.Int32
	report      domain.HealthReport
	swept       int
	sweepErr    error
	block       chan struct{}
}

func (m *mockMaintenance) Health(_ context.Context) domain.HealthReport {
	m.healthCalls.Add(1)
	return m.report
}

func (m *mockMaintenance) SweepCache(_ context.Context) (int, error) {
	m.sweepCalls.Add(1)
	if m.block != nil {
		<-m.block
	}
	return m.swept, m.sweepErr
}

var (
	_ driven.SchedulerStore = (*mockSchedulerStore)(nil)
	_ MaintenanceTarget     = (*mockMaintenance)(nil)
)

func healthyReport() domain.HealthReport {
	return domain.NewHealthReport("memquery", "test", time.Second, []domain.SystemHealth{
		{Name: "cognee", Status: domain.HealthHealthy},
		{Name: "memos", Status: domain.HealthUnhealthy},
	})
}

// fixedClock pins the scheduler's clock.
func fixedClock(s *Scheduler, at time.Time) {
	s.now = func() time.Time { return at }
}

var clockStart = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

func TestNewScheduler_Tick(t *testing.T) {
	config := domain.DefaultSchedulerConfig()
	assert.Equal(t, time.Minute, NewScheduler(config, newMockSchedulerStore(), nil).tick)

	config.Tasks[domain.TaskIDCacheSweep] = domain.TaskConfig{Enabled: true, Interval: 10 * time.Second}
	assert.Equal(t, 10*time.Second, NewScheduler(config, newMockSchedulerStore(), nil).tick)

	config.Tasks[domain.TaskIDCacheSweep] = domain.TaskConfig{Enabled: false, Interval: time.Second}
	assert.Equal(t, time.Minute, NewScheduler(config, newMockSchedulerStore(), nil).tick)
}

func TestScheduler_StartStop(t *testing.T) {
	store := newMockSchedulerStore()
	target := &mockMaintenance{report: healthyReport()}
	scheduler := NewScheduler(domain.DefaultSchedulerConfig(), store, target)

	done := make(chan error, 1)
	go func() { done <- scheduler.Start(context.Background()) }()

	require.Eventually(t, func() bool { return store.task(domain.TaskIDCacheSweep).ID != "" },
		time.Second, 5*time.Millisecond)

	// A second Start while running returns at once.
	assert.NoError(t, scheduler.Start(context.Background()))

	require.NoError(t, scheduler.Stop())
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Start did not return after Stop")
	}

	// Stopping twice is harmless.
	assert.NoError(t, scheduler.Stop())
}

func TestScheduler_StartReturnsOnCancel(t *testing.T) {
	scheduler := NewScheduler(domain.DefaultSchedulerConfig(), newMockSchedulerStore(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, scheduler.Start(ctx), context.Canceled)
	assert.NoError(t, scheduler.Stop())
}

func TestScheduler_StartDisabled(t *testing.T) {
	config := domain.DefaultSchedulerConfig()
	config.Enabled = false
	store := newMockSchedulerStore()

	require.NoError(t, NewScheduler(config, store, &mockMaintenance{}).Start(context.Background()))
	assert.Empty(t, store.tasks)
}

func TestScheduler_StopWithoutStart(t *testing.T) {
	assert.NoError(t, NewScheduler(domain.DefaultSchedulerConfig(), newMockSchedulerStore(), nil).Stop())
}

func TestScheduler_RegisterCreatesTasks(t *testing.T) {
	store := newMockSchedulerStore()
	scheduler := NewScheduler(domain.DefaultSchedulerConfig(), store, nil)
	fixedClock(scheduler, clockStart)

	require.NoError(t, scheduler.register(context.Background()))

	health := store.task(domain.TaskIDSourceHealth)
	assert.Equal(t, "Source Health Probe", health.Name)
	assert.True(t, health.Enabled)
	assert.Equal(t, clockStart.Add(time.Minute), health.NextRun)

	sweep := store.task(domain.TaskIDCacheSweep)
	assert.Equal(t, "Cache Sweep", sweep.Name)
	assert.Equal(t, 5*time.Minute, sweep.Interval)
}

func TestScheduler_RegisterKeepsScheduleUnlessIntervalChanges(t *testing.T) {
	store := newMockSchedulerStore()
	stored := clockStart.Add(-time.Hour)
	store.tasks[domain.TaskIDSourceHealth] = domain.MaintenanceTask{
		ID: domain.TaskIDSourceHealth, Interval: time.Minute, Enabled: true, NextRun: stored, Failures: 2,
	}
	store.tasks[domain.TaskIDCacheSweep] = domain.MaintenanceTask{
		ID: domain.TaskIDCacheSweep, Interval: time.Hour, Enabled: true, NextRun: stored,
	}

	config := domain.DefaultSchedulerConfig()
	config.Tasks[domain.TaskIDSourceHealth] = domain.TaskConfig{Enabled: false, Interval: time.Minute}
	scheduler := NewScheduler(config, store, nil)
	fixedClock(scheduler, clockStart)

	require.NoError(t, scheduler.register(context.Background()))

	health := store.task(domain.TaskIDSourceHealth)
	assert.Equal(t, stored, health.NextRun)
	assert.False(t, health.Enabled)
	assert.Equal(t, 2, health.Failures)

	sweep := store.task(domain.TaskIDCacheSweep)
	assert.Equal(t, 5*time.Minute, sweep.Interval)
	assert.Equal(t, clockStart.Add(5*time.Minute), sweep.NextRun)
}

func TestScheduler_RegisterStoreError(t *testing.T) {
	store := newMockSchedulerStore()
	store.getErr = errors.New("disk full")

	err := NewScheduler(domain.DefaultSchedulerConfig(), store, nil).register(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), domain.TaskIDSourceHealth)
}

func TestScheduler_DispatchRunsOnlyDueTasks(t *testing.T) {
	store := newMockSchedulerStore()
	target := &mockMaintenance{swept: 3, report: healthyReport()}
	scheduler := NewScheduler(domain.DefaultSchedulerConfig(), store, target)
	fixedClock(scheduler, clockStart)

	store.tasks[domain.TaskIDCacheSweep] = domain.MaintenanceTask{
		ID: domain.TaskIDCacheSweep, Interval: 5 * time.Minute, Enabled: true, NextRun: clockStart.Add(-time.Minute),
	}
	store.tasks[domain.TaskIDSourceHealth] = domain.MaintenanceTask{
		ID: domain.TaskIDSourceHealth, Interval: time.Minute, Enabled: true, NextRun: clockStart.Add(time.Hour),
	}
	store.tasks["reindex"] = domain.MaintenanceTask{ID: "reindex", Enabled: true}

	scheduler.dispatch(context.Background())
	scheduler.inflight.Wait()

	assert.Equal(t, int32(1), target.sweepCalls.Load())
	assert.Zero(t, target.healthCalls.Load())

	runs, _ := store.RecentRuns(context.Background(), domain.TaskIDCacheSweep, 10)
	require.Len(t, runs, 1)
	assert.True(t, runs[0].OK())
	assert.Equal(t, 3, runs[0].Processed)
	assert.Equal(t, "purged 3 expired entries", runs[0].Summary)
	assert.Equal(t, []int{runsKept}, store.pruned)

	sweep := store.task(domain.TaskIDCacheSweep)
	assert.Equal(t, clockStart.Add(5*time.Minute), sweep.NextRun)
	assert.Equal(t, clockStart, sweep.LastSuccess)
}

func TestScheduler_DispatchSkipsTaskStillRunning(t *testing.T) {
	store := newMockSchedulerStore()
	target := &mockMaintenance{block: make(chan struct{})}
	scheduler := NewScheduler(domain.DefaultSchedulerConfig(), store, target)
	store.tasks[domain.TaskIDCacheSweep] = domain.MaintenanceTask{ID: domain.TaskIDCacheSweep, Enabled: true}

	ctx := context.Background()
	scheduler.dispatch(ctx)
	require.Eventually(t, func() bool { return target.sweepCalls.Load() == 1 }, time.Second, time.Millisecond)

	scheduler.dispatch(ctx)
	close(target.block)
	scheduler.inflight.Wait()

	assert.Equal(t, int32(1), target.sweepCalls.Load())
}

func TestScheduler_DispatchListError(t *testing.T) {
	store := newMockSchedulerStore()
	store.listErr = errors.New("locked")
	target := &mockMaintenance{}

	scheduler := NewScheduler(domain.DefaultSchedulerConfig(), store, target)
	scheduler.dispatch(context.Background())
	scheduler.inflight.Wait()

	assert.Zero(t, target.sweepCalls.Load())
}

func TestScheduler_ConsecutiveFailures(t *testing.T) {
	store := newMockSchedulerStore()
	target := &mockMaintenance{sweepErr: errors.New("redis gone")}
	scheduler := NewScheduler(domain.DefaultSchedulerConfig(), store, target)
	ctx := context.Background()

	for i := 1; i <= failureAlarm; i++ {
		task := store.task(domain.TaskIDCacheSweep)
		task.ID, task.Enabled = domain.TaskIDCacheSweep, true
		scheduler.execute(ctx, &task, scheduler.jobs[domain.TaskIDCacheSweep])
		assert.Equal(t, i, store.task(domain.TaskIDCacheSweep).Failures)
	}

	runs, _ := store.RecentRuns(ctx, domain.TaskIDCacheSweep, 10)
	require.Len(t, runs, failureAlarm)
	assert.Contains(t, runs[0].Error, "sweep cache: redis gone")

	target.sweepErr = nil
	task := store.task(domain.TaskIDCacheSweep)
	scheduler.execute(ctx, &task, scheduler.jobs[domain.TaskIDCacheSweep])
	assert.Zero(t, store.task(domain.TaskIDCacheSweep).Failures)
	assert.Empty(t, store.task(domain.TaskIDCacheSweep).LastError)
}

func TestScheduler_SaveErrorDoesNotStopRecording(t *testing.T) {
	store := newMockSchedulerStore()
	store.saveErr = errors.New("read-only")
	scheduler := NewScheduler(domain.DefaultSchedulerConfig(), store, &mockMaintenance{})

	task := domain.MaintenanceTask{ID: domain.TaskIDCacheSweep, Enabled: true}
	scheduler.execute(context.Background(), &task, scheduler.jobs[domain.TaskIDCacheSweep])

	runs, _ := store.RecentRuns(context.Background(), domain.TaskIDCacheSweep, 10)
	assert.Len(t, runs, 1)
}

func TestProbeSources(t *testing.T) {
	ctx := context.Background()

	n, summary, err := probeSources(ctx, &mockMaintenance{report: healthyReport()})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, "1/2 sources healthy", summary)

	down := domain.NewHealthReport("memquery", "test", 0, []domain.SystemHealth{
		{Name: "cognee", Status: domain.HealthError, Error: "timeout"},
	})
	_, _, err = probeSources(ctx, &mockMaintenance{report: down})
	assert.ErrorIs(t, err, domain.ErrSourceUnavailable)

	n, _, err = probeSources(ctx, &mockMaintenance{report: domain.NewHealthReport("memquery", "test", 0, nil)})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSweepCache(t *testing.T) {
	ctx := context.Background()

	n, _, err := sweepCache(ctx, &mockMaintenance{swept: 7})
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	_, _, err = sweepCache(ctx, &mockMaintenance{sweepErr: errors.New("redis gone")})
	assert.ErrorContains(t, err, "sweep cache")
}

func TestScheduler_NilTarget(t *testing.T) {
	scheduler := NewScheduler(domain.DefaultSchedulerConfig(), newMockSchedulerStore(), nil)
	ctx := context.Background()

	for _, id := range domain.TaskIDs() {
		n, summary, err := scheduler.jobs[id](ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
		assert.Equal(t, "no target", summary)
	}
}
