// Package engine executes admitted jobs.
//
// One dispatcher goroutine drains the JobQueue and hands jobs to a fixed pool
// of workers. A job name that is already in flight is dropped at dispatch so
// the same job never runs twice concurrently. Each execution runs its attempts
// in a bounded loop under one overall timeout and publishes the terminal
// result to state.Results and the derived status to state.Statuses.
package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MarkStefanovic/ketl-sub000/internal/runtime/supervisor"
	"github.com/MarkStefanovic/ketl-sub000/internal/task/job"
	"github.com/MarkStefanovic/ketl-sub000/internal/task/queue"
	"github.com/MarkStefanovic/ketl-sub000/internal/task/state"
	logx "github.com/MarkStefanovic/ketl-sub000/pkg/logx"
)

type Config struct {
	// Workers is the fixed pool size (max simultaneous jobs).
	Workers int
}

type Option func(*Runner)

// WithClock replaces time.Now for result timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		if now != nil {
			r.now = now
		}
	}
}

// WithRunIDs replaces the run ID generator (uuid by default).
func WithRunIDs(next func() string) Option {
	return func(r *Runner) {
		if next != nil {
			r.newRunID = next
		}
	}
}

type Runner struct {
	cfg      Config
	queue    *queue.JobQueue
	statuses *state.Statuses
	results  *state.Results
	log      logx.Logger
	now      func() time.Time
	newRunID func() string

	work chan *job.Job

	mu       sync.Mutex
	inFlight map[string]context.CancelCauseFunc
	// pending holds jobs cancelled after admission but before a worker took them.
	pending map[string]bool
}

func New(cfg Config, q *queue.JobQueue, statuses *state.Statuses, results *state.Results, log logx.Logger, opts ...Option) *Runner {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	r := &Runner{
		cfg:      cfg,
		queue:    q,
		statuses: statuses,
		results:  results,
		log:      log.With(logx.String("comp", "runner")),
		now:      time.Now,
		newRunID: uuid.NewString,
		work:     make(chan *job.Job),
		inFlight: map[string]context.CancelCauseFunc{},
		pending:  map[string]bool{},
	}
	for _, o := range opts {
		if o != nil {
			o(r)
		}
	}
	return r
}

// Start launches the dispatcher and the worker pool under sup.
func (r *Runner) Start(sup *supervisor.Supervisor) {
	sup.GoRestart("runner.dispatch", 250*time.Millisecond, 5*time.Second, r.Dispatch)
	for i := 0; i < r.cfg.Workers; i++ {
		sup.GoRestart(fmt.Sprintf("runner.worker.%d", i), 250*time.Millisecond, 5*time.Second, r.Work)
	}
	r.log.Info("runner started", logx.Int("workers", r.cfg.Workers))
}

// Dispatch moves queued jobs to idle workers until ctx is cancelled.
func (r *Runner) Dispatch(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.queue.Ready():
		}
		for {
			j, ok := r.queue.Pop()
			if !ok {
				break
			}
			if !r.admit(j.Name()) {
				r.log.Debug("job already in flight, dropped", logx.String("job", j.Name()))
				continue
			}
			select {
			case <-ctx.Done():
				r.release(j.Name())
				return ctx.Err()
			case r.work <- j:
			}
		}
	}
}

// Work executes jobs handed over by Dispatch until ctx is cancelled.
func (r *Runner) Work(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case j := <-r.work:
			if _, err := r.execute(ctx, j); err != nil {
				return err
			}
		}
	}
}

// Cancel stops the named job: an in-flight execution is cancelled (yielding a
// Cancelled result), a job still waiting for a worker never starts, and a
// queued entry is dropped. It reports whether anything was cancelled.
func (r *Runner) Cancel(name string) bool {
	dropped := r.queue.Drop(name)

	r.mu.Lock()
	cancel, admitted := r.inFlight[name]
	if admitted && cancel == nil {
		r.pending[name] = true
	}
	r.mu.Unlock()
	switch {
	case cancel != nil:
		cancel(ErrJobCancelled)
		r.log.Info("job cancel requested", logx.String("job", name))
		return true
	case admitted:
		r.log.Info("job cancelled before start", logx.String("job", name))
		return true
	}
	return dropped
}

// InFlight returns the names currently dispatched or running, sorted.
func (r *Runner) InFlight() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.inFlight))
	for n := range r.inFlight {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func (r *Runner) admit(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.inFlight[name]; ok {
		return false
	}
	r.inFlight[name] = nil
	return true
}

// setCancel registers the job's cancel func and reports whether a cancel
// arrived while the job was waiting for a worker.
func (r *Runner) setCancel(name string, cancel context.CancelCauseFunc) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inFlight[name] = cancel
	if r.pending[name] {
		delete(r.pending, name)
		return true
	}
	return false
}

func (r *Runner) release(name string) {
	r.mu.Lock()
	delete(r.inFlight, name)
	delete(r.pending, name)
	r.mu.Unlock()
}
