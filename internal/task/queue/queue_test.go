package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MarkStefanovic/ketl-sub000/internal/task/job"
)

func newJob(t *testing.T, name string) *job.Job {
	t.Helper()
	s, err := job.NewSchedule("s", job.Every(time.Second))
	require.NoError(t, err)
	j, err := job.New(job.Spec{
		Name:      name,
		Schedules: []job.Schedule{s},
		Action:    func(context.Context) (job.Outcome, error) { return job.Success{}, nil },
	})
	require.NoError(t, err)
	return j
}

func TestAddIsIdempotentByName(t *testing.T) {
	t.Parallel()

	q := New()
	a := newJob(t, "a")
	require.True(t, q.Add(a))
	require.False(t, q.Add(newJob(t, "a")))
	require.Equal(t, 1, q.Len())

	got, ok := q.Pop()
	require.True(t, ok)
	assert.Same(t, a, got)

	// Once popped the name can be queued again.
	require.True(t, q.Add(a))
}

func TestPopIsFIFO(t *testing.T) {
	t.Parallel()

	q := New()
	for _, n := range []string{"c", "a", "b"} {
		q.Add(newJob(t, n))
	}
	var order []string
	for {
		j, ok := q.Pop()
		if !ok {
			break
		}
		order = append(order, j.Name())
	}
	assert.Equal(t, []string{"c", "a", "b"}, order)
}

func TestDrop(t *testing.T) {
	t.Parallel()

	q := New()
	q.Add(newJob(t, "a"))
	q.Add(newJob(t, "b"))
	q.Add(newJob(t, "c"))

	assert.True(t, q.Drop("b"))
	assert.False(t, q.Drop("b"))
	assert.False(t, q.Contains("b"))
	assert.Equal(t, []string{"a", "c"}, q.Names())
}

func TestContentsPublishedOnEveryMutation(t *testing.T) {
	t.Parallel()

	q := New()
	ch, unsub := q.Contents().Subscribe(8)
	defer unsub()

	q.Add(newJob(t, "a"))
	q.Add(newJob(t, "b"))
	q.Add(newJob(t, "a")) // no-op, nothing published
	q.Pop()
	q.Drop("b")

	assert.Equal(t, []string{"a"}, <-ch)
	assert.Equal(t, []string{"a", "b"}, <-ch)
	assert.Equal(t, []string{"b"}, <-ch)
	assert.Equal(t, []string{}, <-ch)
	select {
	case extra := <-ch:
		t.Fatalf("unexpected publish: %v", extra)
	default:
	}
}

func TestReadySignalIsCoalesced(t *testing.T) {
	t.Parallel()

	q := New()
	q.Add(newJob(t, "a"))
	q.Add(newJob(t, "b"))

	select {
	case <-q.Ready():
	default:
		t.Fatal("expected ready signal")
	}
	select {
	case <-q.Ready():
		t.Fatal("signal should be coalesced")
	default:
	}
}
