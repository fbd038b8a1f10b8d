// Package queue holds jobs that were admitted by the scheduler and are
// waiting for the runner.
package queue

import (
	"sync"

	"github.com/MarkStefanovic/ketl-sub000/internal/eventbus"
	"github.com/MarkStefanovic/ketl-sub000/internal/task/job"
)

// JobQueue is a FIFO keyed by job name: a name is queued at most once.
//
// Every mutation publishes the full queue contents (job names in order) on
// Contents(). Ready() carries a wake-up signal whenever a job is added.
type JobQueue struct {
	mu       sync.Mutex
	items    []*job.Job
	names    map[string]struct{}
	contents *eventbus.Stream[[]string]
	ready    chan struct{}
}

func New() *JobQueue {
	return &JobQueue{
		names:    map[string]struct{}{},
		contents: eventbus.NewStream[[]string](),
		ready:    make(chan struct{}, 1),
	}
}

// Add enqueues j unless a job with the same name is already queued.
// It reports whether j was added.
func (q *JobQueue) Add(j *job.Job) bool {
	if j == nil {
		return false
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.names[j.Name()]; ok {
		return false
	}
	q.names[j.Name()] = struct{}{}
	q.items = append(q.items, j)
	q.publishLocked()
	select {
	case q.ready <- struct{}{}:
	default:
	}
	return true
}

// Pop removes and returns the oldest queued job.
func (q *JobQueue) Pop() (*job.Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil, false
	}
	j := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	delete(q.names, j.Name())
	q.publishLocked()
	return j, true
}

// Drop removes the queued job with the given name, if any.
func (q *JobQueue) Drop(name string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.names[name]; !ok {
		return false
	}
	delete(q.names, name)
	kept := q.items[:0]
	for _, j := range q.items {
		if j.Name() != name {
			kept = append(kept, j)
		}
	}
	for i := len(kept); i < len(q.items); i++ {
		q.items[i] = nil
	}
	q.items = kept
	q.publishLocked()
	return true
}

func (q *JobQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Contains reports whether name is queued.
func (q *JobQueue) Contains(name string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.names[name]
	return ok
}

// Names returns the queued job names in FIFO order.
func (q *JobQueue) Names() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.namesLocked()
}

// Ready is signalled (coalesced, capacity 1) after every successful Add.
func (q *JobQueue) Ready() <-chan struct{} { return q.ready }

// Contents streams the queue contents after every mutation.
func (q *JobQueue) Contents() *eventbus.Stream[[]string] { return q.contents }

func (q *JobQueue) namesLocked() []string {
	out := make([]string, len(q.items))
	for i, j := range q.items {
		out[i] = j.Name()
	}
	return out
}

func (q *JobQueue) publishLocked() { q.contents.Publish(q.namesLocked()) }
