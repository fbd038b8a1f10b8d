package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MarkStefanovic/ketl-sub000/internal/task/action"
	"github.com/MarkStefanovic/ketl-sub000/internal/task/job"
	"github.com/MarkStefanovic/ketl-sub000/internal/task/scheduler"
	logx "github.com/MarkStefanovic/ketl-sub000/pkg/logx"
)

// BuildJobs converts every job config into a runnable job. Jobs that fail to
// build are reported together; the ones that built are still returned.
func BuildJobs(cfgs []JobConfig, log logx.Logger) ([]*job.Job, error) {
	out := make([]*job.Job, 0, len(cfgs))
	var errs []error
	for i, jc := range cfgs {
		j, err := BuildJob(jc, log)
		if err != nil {
			errs = append(errs, fmt.Errorf("jobs[%d]: %w", i, err))
			continue
		}
		out = append(out, j)
	}
	return out, errors.Join(errs...)
}

// BuildJob converts one job config into a runnable job.
func BuildJob(jc JobConfig, log logx.Logger) (*job.Job, error) {
	name := strings.TrimSpace(jc.Name)
	var errs []error

	timeout, err := ParseDurationField("timeout", jc.Timeout)
	if err != nil {
		errs = append(errs, err)
	}

	schedules := make([]job.Schedule, 0, len(jc.Schedule))
	for si, sc := range jc.Schedule {
		parts := make([]job.SchedulePart, 0, len(sc.Parts))
		for pi, pc := range sc.Parts {
			p, err := buildPart(pc)
			if err != nil {
				errs = append(errs, fmt.Errorf("schedule[%d].parts[%d]: %w", si, pi, err))
				continue
			}
			parts = append(parts, p)
		}
		sname := sc.Name
		if strings.TrimSpace(sname) == "" {
			sname = fmt.Sprintf("%s#%d", name, si)
		}
		s, err := job.NewSchedule(sname, parts...)
		if err != nil {
			errs = append(errs, fmt.Errorf("schedule[%d]: %w", si, err))
			continue
		}
		schedules = append(schedules, s)
	}

	act, err := buildAction(jc.Action, log.With(logx.String("job", name)))
	if err != nil {
		errs = append(errs, fmt.Errorf("action: %w", err))
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("job %q: %w", name, errors.Join(errs...))
	}

	return job.New(job.Spec{
		Name:         name,
		Schedules:    schedules,
		Timeout:      timeout,
		Retries:      jc.Retries,
		Dependencies: jc.Dependencies,
		Action:       act,
	})
}

func buildPart(pc SchedulePartConfig) (job.SchedulePart, error) {
	freq, err := scheduler.ParseFrequency(pc.Frequency)
	if err != nil {
		return job.SchedulePart{}, err
	}
	var start time.Time
	if s := strings.TrimSpace(pc.Start); s != "" {
		start, err = time.Parse(time.RFC3339, s)
		if err != nil {
			return job.SchedulePart{}, fmt.Errorf("start: invalid RFC3339 time %q", pc.Start)
		}
	}
	window := job.Anytime
	if pc.Window != nil {
		window, err = buildWindow(*pc.Window)
		if err != nil {
			return job.SchedulePart{}, err
		}
	}
	return job.NewSchedulePart(freq, window, start)
}

func buildWindow(wc WindowConfig) (job.ExecutionWindow, error) {
	fields := []struct {
		name   string
		raw    string
		domain job.Range
		set    func(start, end int) job.WindowOption
	}{
		{"months", wc.Months, job.MonthDomain, job.Months},
		{"days", wc.Days, job.DayDomain, job.Days},
		{"weekdays", wc.Weekdays, job.WeekdayDomain, job.Weekdays},
		{"hours", wc.Hours, job.HourDomain, job.Hours},
		{"minutes", wc.Minutes, job.MinuteDomain, job.Minutes},
		{"seconds", wc.Seconds, job.SecondDomain, job.Seconds},
	}
	opts := make([]job.WindowOption, 0, len(fields))
	for _, f := range fields {
		r, err := scheduler.ParseRange(f.raw, f.domain)
		if err != nil {
			return job.ExecutionWindow{}, fmt.Errorf("window.%s: %w", f.name, err)
		}
		opts = append(opts, f.set(r.Start, r.End))
	}
	return job.NewWindow(opts...)
}

func buildAction(ac ActionConfig, log logx.Logger) (job.Action, error) {
	sleep, err := ParseDurationField("sleep", ac.Sleep)
	if err != nil {
		return nil, err
	}
	return action.Build(action.Spec{
		Kind:         ac.Kind,
		Command:      ac.Command,
		Dir:          ac.Dir,
		Env:          ac.Env,
		SkipExitCode: ac.SkipExitCode,
		Sleep:        sleep,
		Message:      ac.Message,
		Unit:         ac.Unit,
		UserBus:      ac.UserBus,
	}, log)
}
