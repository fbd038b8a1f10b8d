package scheduler

import (
	"context"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/MarkStefanovic/ketl-sub000/internal/task/job"
	"github.com/MarkStefanovic/ketl-sub000/internal/task/queue"
	"github.com/MarkStefanovic/ketl-sub000/internal/task/state"
	logx "github.com/MarkStefanovic/ketl-sub000/pkg/logx"
)

const (
	DefaultScanFrequency       = 10 * time.Second
	DefaultMaxSimultaneousJobs = 4
)

type Config struct {
	MaxSimultaneousJobs int
	ScanFrequency       time.Duration
}

func (c Config) normalized() Config {
	if c.MaxSimultaneousJobs < 1 {
		c.MaxSimultaneousJobs = DefaultMaxSimultaneousJobs
	}
	if c.ScanFrequency < 0 {
		c.ScanFrequency = DefaultScanFrequency
	}
	return c
}

// RunningCounter is the part of state.Statuses the scheduler reads.
type RunningCounter interface {
	RunningJobCount() int
}

type Option func(*Scheduler)

// WithClock replaces time.Now for readiness checks.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// WithAdmitHook is called (outside locks) for every admitted job.
func WithAdmitHook(fn func(name string)) Option {
	return func(s *Scheduler) { s.onAdmit = fn }
}

// Scheduler is the single admission loop. Scans never overlap.
type Scheduler struct {
	cfg      Config
	jobs     []*job.Job
	queue    *queue.JobQueue
	statuses RunningCounter
	results  ResultReader
	log      logx.Logger
	now      func() time.Time
	onAdmit  func(name string)

	scanMu sync.Mutex

	mu             sync.Mutex
	lastQueued     map[string]time.Time
	enabled        map[string]bool
	lastBlockedLog map[string]time.Time
}

func New(cfg Config, jobs []*job.Job, q *queue.JobQueue, statuses RunningCounter, results ResultReader, log logx.Logger, opts ...Option) *Scheduler {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Scheduler{
		cfg:            cfg.normalized(),
		jobs:           append([]*job.Job(nil), jobs...),
		queue:          q,
		statuses:       statuses,
		results:        results,
		log:            log.With(logx.String("comp", "scheduler")),
		now:            time.Now,
		lastQueued:     map[string]time.Time{},
		enabled:        map[string]bool{},
		lastBlockedLog: map[string]time.Time{},
	}
	for _, j := range s.jobs {
		s.enabled[j.Name()] = true
	}
	for _, o := range opts {
		if o != nil {
			o(s)
		}
	}
	return s
}

// Run scans every ScanFrequency until ctx is cancelled and returns ctx.Err().
func (s *Scheduler) Run(ctx context.Context) error {
	s.log.Info("scheduler started",
		logx.Int("jobs", len(s.jobs)),
		logx.Int("max_simultaneous_jobs", s.cfg.MaxSimultaneousJobs),
		logx.Duration("scan_frequency", s.cfg.ScanFrequency),
	)
	defer s.log.Info("scheduler stopped")

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.Scan(ctx)

		t := time.NewTimer(s.cfg.ScanFrequency)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

// Scan runs one admission cycle and returns the names admitted, in order.
func (s *Scheduler) Scan(ctx context.Context) []string {
	s.scanMu.Lock()
	defer s.scanMu.Unlock()

	slots := s.cfg.MaxSimultaneousJobs - s.statuses.RunningJobCount()
	if slots <= 0 {
		s.log.Trace("no free slots", logx.Int("max", s.cfg.MaxSimultaneousJobs))
		return nil
	}

	var admitted []string
	for _, j := range s.candidates() {
		if slots <= 0 || ctx.Err() != nil {
			break
		}
		name := j.Name()
		now := s.now()

		s.mu.Lock()
		last := s.lastQueued[name]
		s.mu.Unlock()

		if !j.IsReady(now, last) {
			runtime.Gosched()
			continue
		}
		if !DependenciesHaveRun(name, j.Dependencies(), s.results) {
			s.reportBlocked(name, "waiting for a dependency to succeed")
			runtime.Gosched()
			continue
		}

		if !s.queue.Add(j) {
			s.log.Trace("job already queued", logx.String("job", name))
			continue
		}
		s.mu.Lock()
		s.lastQueued[name] = now
		s.mu.Unlock()
		slots--

		admitted = append(admitted, name)
		s.log.Debug("job admitted", logx.String("job", name), logx.Int("slots_left", slots))
		if s.onAdmit != nil {
			s.onAdmit(name)
		}
		runtime.Gosched()
	}
	return admitted
}

// candidates returns enabled jobs, never-queued first, then oldest queued
// first, ties broken by name.
func (s *Scheduler) candidates() []*job.Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*job.Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		if s.enabled[j.Name()] {
			out = append(out, j)
		}
	}
	sort.SliceStable(out, func(a, b int) bool {
		la, oka := s.lastQueued[out[a].Name()]
		lb, okb := s.lastQueued[out[b].Name()]
		if oka != okb {
			return !oka
		}
		if !la.Equal(lb) {
			return la.Before(lb)
		}
		return out[a].Name() < out[b].Name()
	})
	return out
}

// SetEnabled toggles admission for a job. It reports false for unknown names.
func (s *Scheduler) SetEnabled(name string, enabled bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.enabled[name]
	if !ok {
		return false
	}
	s.enabled[name] = enabled
	if prev != enabled {
		s.log.Info("job enablement changed", logx.String("job", name), logx.Bool("enabled", enabled))
	}
	return true
}

func (s *Scheduler) Enabled(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled[name]
}

// LastQueued returns when name was last admitted by this scheduler.
func (s *Scheduler) LastQueued(name string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.lastQueued[name]
	return t, ok
}

// Jobs returns the configured jobs in configuration order.
func (s *Scheduler) Jobs() []*job.Job { return append([]*job.Job(nil), s.jobs...) }

func (s *Scheduler) Config() Config { return s.cfg }

var _ RunningCounter = (*state.Statuses)(nil)
var _ ResultReader = (*state.Results)(nil)
