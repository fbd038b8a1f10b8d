package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MarkStefanovic/ketl-sub000/internal/task/job"
	"github.com/MarkStefanovic/ketl-sub000/internal/task/queue"
	"github.com/MarkStefanovic/ketl-sub000/internal/task/state"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func mkJob(t *testing.T, name string, every time.Duration, deps ...string) *job.Job {
	t.Helper()
	s, err := job.NewSchedule("default", job.Every(every))
	require.NoError(t, err)
	j, err := job.New(job.Spec{
		Name:         name,
		Schedules:    []job.Schedule{s},
		Dependencies: deps,
		Action:       func(context.Context) (job.Outcome, error) { return job.Success{}, nil },
	})
	require.NoError(t, err)
	return j
}

type fixture struct {
	clock    *fakeClock
	queue    *queue.JobQueue
	statuses *state.Statuses
	results  *state.Results
	sched    *Scheduler
}

func newFixture(t *testing.T, max int, jobs ...*job.Job) *fixture {
	t.Helper()
	f := &fixture{
		clock:    &fakeClock{now: time.Date(2020, 1, 1, 12, 0, 0, 0, time.UTC)},
		queue:    queue.New(),
		statuses: state.NewStatuses(),
		results:  state.NewResults(10),
	}
	f.sched = New(Config{MaxSimultaneousJobs: max, ScanFrequency: time.Second}, jobs, f.queue, f.statuses, f.results, nopLogger(), WithClock(f.clock.Now))
	return f
}

func (f *fixture) drain() {
	for {
		if _, ok := f.queue.Pop(); !ok {
			return
		}
	}
}

func TestScanAdmitsReadyJobs(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 4, mkJob(t, "b", time.Minute), mkJob(t, "a", time.Minute))
	got := f.sched.Scan(context.Background())
	assert.Equal(t, []string{"a", "b"}, got)
	assert.Equal(t, []string{"a", "b"}, f.queue.Names())

	f.drain()
	f.clock.Advance(30 * time.Second)
	assert.Empty(t, f.sched.Scan(context.Background()))

	f.clock.Advance(30 * time.Second)
	assert.Equal(t, []string{"a", "b"}, f.sched.Scan(context.Background()))
}

func TestScanRespectsSlots(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 2, mkJob(t, "a", 0), mkJob(t, "b", 0), mkJob(t, "c", 0))
	f.statuses.Running("other")

	assert.Equal(t, []string{"a"}, f.sched.Scan(context.Background()))

	f.statuses.Running("x")
	assert.Empty(t, f.sched.Scan(context.Background()))
}

func TestScanFairnessRotates(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 1, mkJob(t, "a", 0), mkJob(t, "b", 0), mkJob(t, "c", 0))
	ctx := context.Background()

	var order []string
	for i := 0; i < 6; i++ {
		got := f.sched.Scan(ctx)
		require.Len(t, got, 1)
		order = append(order, got[0])
		f.drain()
		f.clock.Advance(time.Second)
	}
	assert.Equal(t, []string{"a", "b", "c", "a", "b", "c"}, order)
}

func TestScanDependencyGating(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 4, mkJob(t, "up", 0), mkJob(t, "down", 0, "up"))
	ctx := context.Background()

	// First run: down has no result yet so it is admitted too.
	assert.ElementsMatch(t, []string{"up", "down"}, f.sched.Scan(ctx))
	f.drain()

	now := f.clock.Now()
	f.results.Add(state.ResultSuccess{ResultInfo: state.ResultInfo{Job: "down", Start: now, End: now}})
	f.clock.Advance(time.Second)
	assert.Equal(t, []string{"up"}, f.sched.Scan(ctx))
	f.drain()

	f.results.Add(state.ResultSuccess{ResultInfo: state.ResultInfo{Job: "up", Start: now, End: now.Add(time.Second)}})
	f.clock.Advance(time.Second)
	assert.ElementsMatch(t, []string{"up", "down"}, f.sched.Scan(ctx))
}

func TestSetEnabled(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 4, mkJob(t, "a", 0), mkJob(t, "b", 0))
	require.True(t, f.sched.SetEnabled("a", false))
	require.False(t, f.sched.SetEnabled("ghost", false))
	assert.False(t, f.sched.Enabled("a"))

	assert.Equal(t, []string{"b"}, f.sched.Scan(context.Background()))
	_, ok := f.sched.LastQueued("a")
	assert.False(t, ok)
}

func TestAdmitHook(t *testing.T) {
	t.Parallel()

	var got []string
	clock := &fakeClock{now: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)}
	s := New(Config{MaxSimultaneousJobs: 1}, []*job.Job{mkJob(t, "a", 0)}, queue.New(), state.NewStatuses(), state.NewResults(0), nopLogger(),
		WithClock(clock.Now), WithAdmitHook(func(name string) { got = append(got, name) }))
	s.Scan(context.Background())
	assert.Equal(t, []string{"a"}, got)
}

func TestScanSkipsJobsStillQueued(t *testing.T) {
	t.Parallel()

	a, b := mkJob(t, "a", 0), mkJob(t, "b", 0)
	var hooked []string
	q := queue.New()
	clock := &fakeClock{now: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)}
	s := New(Config{MaxSimultaneousJobs: 2}, []*job.Job{a, b}, q, state.NewStatuses(), state.NewResults(10), nopLogger(),
		WithClock(clock.Now), WithAdmitHook(func(name string) { hooked = append(hooked, name) }))
	require.True(t, q.Add(a))

	assert.Equal(t, []string{"b"}, s.Scan(context.Background()))
	assert.Equal(t, []string{"b"}, hooked)
	_, ok := s.LastQueued("a")
	assert.False(t, ok)
	assert.Equal(t, []string{"a", "b"}, q.Names())

	clock.Advance(time.Second)
	assert.Empty(t, s.Scan(context.Background()))
	assert.Equal(t, []string{"b"}, hooked)
}

func TestRunStopsOnCancel(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 1, mkJob(t, "a", time.Hour))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.sched.Run(ctx) }()

	require.Eventually(t, func() bool { return f.queue.Len() == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}
