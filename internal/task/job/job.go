package job

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Action is the unit of work. A returned error means the attempt failed and
// may be retried; a returned Outcome is terminal.
type Action func(ctx context.Context) (Outcome, error)

// NoTimeout disables the per-job timeout.
const NoTimeout time.Duration = 0

// ConfigError describes a job that cannot be constructed.
type ConfigError struct {
	Job   string
	Field string
	Msg   string
	Err   error
}

func (e *ConfigError) Error() string {
	var b strings.Builder
	if e.Job != "" {
		b.WriteString("job ")
		b.WriteString(fmt.Sprintf("%q", e.Job))
		b.WriteString(": ")
	}
	b.WriteString(e.Field)
	b.WriteString(": ")
	b.WriteString(e.Msg)
	return b.String()
}

func (e *ConfigError) Unwrap() error { return e.Err }

var (
	ErrBlankName       = errors.New("job name is blank")
	ErrNoSchedule      = errors.New("job has no schedule")
	ErrNegativeRetry   = errors.New("retries must be >= 0")
	ErrNilAction       = errors.New("job action is nil")
	ErrNegativeTimeout = errors.New("timeout must be >= 0")
)

// Spec carries the constructor inputs of a Job.
type Spec struct {
	Name         string
	Schedules    []Schedule
	Timeout      time.Duration
	Retries      int
	Dependencies []string
	Action       Action
}

// Job is immutable after New; its identity is its name.
type Job struct {
	name         string
	schedules    []Schedule
	timeout      time.Duration
	retries      int
	dependencies []string
	action       Action
}

// New validates spec and builds a Job. All configuration problems are
// reported together.
func New(spec Spec) (*Job, error) {
	name := strings.TrimSpace(spec.Name)
	var errs []error
	add := func(field string, err error) {
		errs = append(errs, &ConfigError{Job: name, Field: field, Msg: err.Error(), Err: err})
	}
	if name == "" {
		add("name", ErrBlankName)
	}
	if len(spec.Schedules) == 0 {
		add("schedule", ErrNoSchedule)
	}
	for _, s := range spec.Schedules {
		if len(s.parts) == 0 {
			add("schedule "+s.name, ErrEmptySchedule)
		}
	}
	if spec.Retries < 0 {
		add("retries", ErrNegativeRetry)
	}
	if spec.Timeout < 0 {
		add("timeout", ErrNegativeTimeout)
	}
	if spec.Action == nil {
		add("action", ErrNilAction)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	deps := make([]string, 0, len(spec.Dependencies))
	seen := map[string]struct{}{}
	for _, d := range spec.Dependencies {
		d = strings.TrimSpace(d)
		if d == "" {
			continue
		}
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		deps = append(deps, d)
	}
	sort.Strings(deps)

	return &Job{
		name:         name,
		schedules:    append([]Schedule(nil), spec.Schedules...),
		timeout:      spec.Timeout,
		retries:      spec.Retries,
		dependencies: deps,
		action:       spec.Action,
	}, nil
}

func (j *Job) Name() string                             { return j.name }
func (j *Job) Timeout() time.Duration                   { return j.timeout }
func (j *Job) Retries() int                             { return j.retries }
func (j *Job) Schedules() []Schedule                    { return append([]Schedule(nil), j.schedules...) }
func (j *Job) Dependencies() []string                   { return append([]string(nil), j.dependencies...) }
func (j *Job) HasDependencies() bool                    { return len(j.dependencies) > 0 }
func (j *Job) Run(ctx context.Context) (Outcome, error) { return j.action(ctx) }

// IsReady reports whether any schedule is ready at ref given lastRun.
func (j *Job) IsReady(ref, lastRun time.Time) bool {
	for _, s := range j.schedules {
		if s.Ready(ref, lastRun) {
			return true
		}
	}
	return false
}
