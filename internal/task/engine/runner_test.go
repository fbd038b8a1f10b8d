package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MarkStefanovic/ketl-sub000/internal/runtime/supervisor"
	"github.com/MarkStefanovic/ketl-sub000/internal/task/job"
	"github.com/MarkStefanovic/ketl-sub000/internal/task/queue"
	"github.com/MarkStefanovic/ketl-sub000/internal/task/state"
	logx "github.com/MarkStefanovic/ketl-sub000/pkg/logx"
)

type harness struct {
	queue    *queue.JobQueue
	statuses *state.Statuses
	results  *state.Results
	runner   *Runner
	sup      *supervisor.Supervisor
}

func newHarness(t *testing.T, workers int) *harness {
	t.Helper()
	h := &harness{
		queue:    queue.New(),
		statuses: state.NewStatuses(),
		results:  state.NewResults(10),
	}
	h.runner = New(Config{Workers: workers}, h.queue, h.statuses, h.results, logx.Nop())
	h.sup = supervisor.New(context.Background())
	h.runner.Start(h.sup)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = h.sup.Stop(ctx)
	})
	return h
}

func (h *harness) waitResult(t *testing.T, name string, n int) []state.Result {
	t.Helper()
	require.Eventually(t, func() bool { return len(h.results.History(name)) >= n }, 5*time.Second, 5*time.Millisecond)
	return h.results.History(name)
}

func newJob(t *testing.T, name string, retries int, timeout time.Duration, action job.Action) *job.Job {
	t.Helper()
	s, err := job.NewSchedule("default", job.Every(time.Second))
	require.NoError(t, err)
	j, err := job.New(job.Spec{
		Name:      name,
		Schedules: []job.Schedule{s},
		Retries:   retries,
		Timeout:   timeout,
		Action:    action,
	})
	require.NoError(t, err)
	return j
}

func TestRetryUntilSuccess(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 1)
	var calls atomic.Int32
	j := newJob(t, "flaky", 2, 0, func(context.Context) (job.Outcome, error) {
		if calls.Add(1) < 3 {
			return nil, errors.New("not yet")
		}
		return job.Success{}, nil
	})
	h.queue.Add(j)

	res := h.waitResult(t, "flaky", 1)
	require.IsType(t, state.ResultSuccess{}, res[0])
	assert.Equal(t, 3, res[0].Info().Attempts)
	assert.EqualValues(t, 3, calls.Load())
	assert.NotEmpty(t, res[0].Info().RunID)

	st, ok := h.statuses.Get("flaky")
	require.True(t, ok)
	assert.IsType(t, state.StatusSuccess{}, st)
}

func TestRetriesExhaustedCarriesLastError(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 1)
	var calls atomic.Int32
	j := newJob(t, "broken", 2, 0, func(context.Context) (job.Outcome, error) {
		n := calls.Add(1)
		return nil, errors.New("attempt " + string(rune('0'+n)))
	})
	h.queue.Add(j)

	res := h.waitResult(t, "broken", 1)
	fail, ok := res[0].(state.ResultFailure)
	require.True(t, ok)
	assert.Equal(t, "attempt 3", fail.Message)
	assert.Equal(t, 3, fail.Attempts)

	st, _ := h.statuses.Get("broken")
	failed, ok := st.(state.StatusFailed)
	require.True(t, ok)
	assert.Equal(t, "attempt 3", failed.Message)
}

func TestNoRetryStopsImmediately(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 1)
	var calls atomic.Int32
	j := newJob(t, "permanent", 5, 0, func(context.Context) (job.Outcome, error) {
		calls.Add(1)
		return nil, NoRetry(errors.New("bad input"))
	})
	h.queue.Add(j)

	res := h.waitResult(t, "permanent", 1)
	fail := res[0].(state.ResultFailure)
	assert.Equal(t, "bad input", fail.Message)
	assert.EqualValues(t, 1, calls.Load())
}

func TestReportedFailureIsNotRetried(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 1)
	var calls atomic.Int32
	j := newJob(t, "reported", 3, 0, func(context.Context) (job.Outcome, error) {
		calls.Add(1)
		return job.Failure{Message: "row count mismatch"}, nil
	})
	h.queue.Add(j)

	res := h.waitResult(t, "reported", 1)
	assert.Equal(t, "row count mismatch", res[0].(state.ResultFailure).Message)
	assert.EqualValues(t, 1, calls.Load())
}

func TestSkippedOutcome(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 1)
	h.queue.Add(newJob(t, "idle", 0, 0, func(context.Context) (job.Outcome, error) {
		return job.Skipped{Reason: "no new rows"}, nil
	}))

	res := h.waitResult(t, "idle", 1)
	assert.Equal(t, "no new rows", res[0].(state.ResultSkipped).Reason)
	st, _ := h.statuses.Get("idle")
	assert.IsType(t, state.StatusSkipped{}, st)
}

func TestPanicIsRetriedThenReported(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 1)
	var calls atomic.Int32
	h.queue.Add(newJob(t, "panicky", 1, 0, func(context.Context) (job.Outcome, error) {
		calls.Add(1)
		panic("kaboom")
	}))

	res := h.waitResult(t, "panicky", 1)
	assert.Contains(t, res[0].(state.ResultFailure).Message, "kaboom")
	assert.EqualValues(t, 2, calls.Load())
}

func TestTimeoutFreesWorker(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 1)
	block := make(chan struct{})
	t.Cleanup(func() { close(block) })

	var calls atomic.Int32
	h.queue.Add(newJob(t, "stuck", 3, 100*time.Millisecond, func(context.Context) (job.Outcome, error) {
		calls.Add(1)
		<-block
		return job.Success{}, nil
	}))
	h.queue.Add(newJob(t, "after", 0, 0, func(context.Context) (job.Outcome, error) {
		return job.Success{}, nil
	}))

	res := h.waitResult(t, "stuck", 1)
	fail, ok := res[0].(state.ResultFailure)
	require.True(t, ok)
	assert.Contains(t, fail.Message, "timed out")
	assert.EqualValues(t, 1, calls.Load(), "the timeout bounds all attempts")

	after := h.waitResult(t, "after", 1)
	assert.IsType(t, state.ResultSuccess{}, after[0])
}

func TestTimeoutCoversRetries(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 1)
	var calls atomic.Int32
	h.queue.Add(newJob(t, "slowfail", 100, 150*time.Millisecond, func(ctx context.Context) (job.Outcome, error) {
		calls.Add(1)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(40 * time.Millisecond):
			return nil, errors.New("nope")
		}
	}))

	res := h.waitResult(t, "slowfail", 1)
	assert.Contains(t, res[0].(state.ResultFailure).Message, "timed out")
	assert.Less(t, calls.Load(), int32(10))
}

func TestNoConcurrentRunsOfSameJob(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 4)
	release := make(chan struct{})
	var running, maxRunning, calls atomic.Int32
	j := newJob(t, "single", 0, 0, func(context.Context) (job.Outcome, error) {
		calls.Add(1)
		n := running.Add(1)
		for {
			m := maxRunning.Load()
			if n <= m || maxRunning.CompareAndSwap(m, n) {
				break
			}
		}
		<-release
		running.Add(-1)
		return job.Success{}, nil
	})

	h.queue.Add(j)
	require.Eventually(t, func() bool { return h.statuses.RunningJobCount() == 1 }, time.Second, 5*time.Millisecond)

	// The queue accepts the name again once popped; the runner must drop it.
	require.True(t, h.queue.Add(j))
	require.Eventually(t, func() bool { return h.queue.Len() == 0 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"single"}, h.runner.InFlight())

	close(release)
	h.waitResult(t, "single", 1)
	time.Sleep(50 * time.Millisecond)
	assert.EqualValues(t, 1, maxRunning.Load())
	assert.EqualValues(t, 1, calls.Load())
	assert.Len(t, h.results.History("single"), 1)
}

func TestCancelInFlight(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 1)
	h.queue.Add(newJob(t, "long", 0, 0, func(ctx context.Context) (job.Outcome, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}))
	require.Eventually(t, func() bool { return len(h.runner.InFlight()) == 1 && h.statuses.RunningJobCount() == 1 }, time.Second, 5*time.Millisecond)

	require.True(t, h.runner.Cancel("long"))
	res := h.waitResult(t, "long", 1)
	assert.IsType(t, state.ResultCancelled{}, res[0])
	st, _ := h.statuses.Get("long")
	assert.IsType(t, state.StatusCancelled{}, st)

	require.Eventually(t, func() bool { return len(h.runner.InFlight()) == 0 }, time.Second, 5*time.Millisecond)
	assert.False(t, h.runner.Cancel("long"))
}

func TestCancelWhileWaitingForWorker(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 1)
	unblock := make(chan struct{})
	h.queue.Add(newJob(t, "a", 0, 0, func(context.Context) (job.Outcome, error) {
		<-unblock
		return job.Success{}, nil
	}))
	require.Eventually(t, func() bool { return h.statuses.RunningJobCount() == 1 }, time.Second, 5*time.Millisecond)

	var ranB atomic.Bool
	h.queue.Add(newJob(t, "b", 0, 0, func(context.Context) (job.Outcome, error) {
		ranB.Store(true)
		return job.Success{}, nil
	}))
	require.Eventually(t, func() bool {
		return len(h.queue.Names()) == 0 && len(h.runner.InFlight()) == 2
	}, time.Second, 5*time.Millisecond)

	require.True(t, h.runner.Cancel("b"))
	close(unblock)

	res := h.waitResult(t, "b", 1)
	assert.IsType(t, state.ResultCancelled{}, res[0])
	assert.Zero(t, res[0].Info().Attempts)
	st, _ := h.statuses.Get("b")
	assert.IsType(t, state.StatusCancelled{}, st)
	assert.False(t, ranB.Load())
	require.Eventually(t, func() bool { return len(h.runner.InFlight()) == 0 }, time.Second, 5*time.Millisecond)
}

func TestShutdownMarksCancelledWithoutResult(t *testing.T) {
	t.Parallel()

	q := queue.New()
	statuses := state.NewStatuses()
	results := state.NewResults(10)
	r := New(Config{Workers: 1}, q, statuses, results, logx.Nop())
	sup := supervisor.New(context.Background())
	r.Start(sup)

	var started sync.WaitGroup
	started.Add(1)
	q.Add(newJob(t, "endless", 0, 0, func(ctx context.Context) (job.Outcome, error) {
		started.Done()
		<-ctx.Done()
		return nil, ctx.Err()
	}))
	started.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, sup.Stop(ctx))

	st, ok := statuses.Get("endless")
	require.True(t, ok)
	assert.IsType(t, state.StatusCancelled{}, st)
	assert.Empty(t, results.History("endless"))
}

func TestRetryAfterHint(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 1)
	var first time.Time
	var gap time.Duration
	var calls atomic.Int32
	h.queue.Add(newJob(t, "throttled", 1, 0, func(context.Context) (job.Outcome, error) {
		if calls.Add(1) == 1 {
			first = time.Now()
			return nil, RetryAfter(errors.New("429"), 50*time.Millisecond)
		}
		gap = time.Since(first)
		return job.Success{}, nil
	}))

	res := h.waitResult(t, "throttled", 1)
	assert.IsType(t, state.ResultSuccess{}, res[0])
	assert.GreaterOrEqual(t, gap, 50*time.Millisecond)
}
