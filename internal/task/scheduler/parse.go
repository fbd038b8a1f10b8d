package scheduler

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/MarkStefanovic/ketl-sub000/internal/task/job"
)

// Frequency strings.
//
// Supported forms:
//   - Go duration: "90s", "2h30m", "0s"
//   - HH:MM interval: "00:50" (50 minutes), "02:30"
//   - "@every <duration>"
//   - cron descriptors and expressions: "@hourly", "@daily", "*/5 * * * *"
//
// Cron forms are reduced to the gap between two consecutive activations after
// the last second of 2000 (UTC), so "@monthly" becomes 31 days. Calendar alignment is
// expressed with windows, not with the frequency.

var reHHMM = regexp.MustCompile(`^\s*(\d{1,3}):(\d{2})\s*$`)

var cronParser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

var cronReference = time.Date(2000, time.December, 31, 23, 59, 59, 0, time.UTC)

// ParseFrequency parses a frequency string into a non-negative interval.
func ParseFrequency(raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, fmt.Errorf("frequency required")
	}

	if strings.HasPrefix(s, "@") || strings.ContainsAny(s, " \t") {
		return parseCronInterval(s)
	}

	if reHHMM.MatchString(s) {
		return parseHHMMDuration(s)
	}

	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid frequency %q (use a duration like '55m', HH:MM like '02:30', or a cron descriptor like '@daily')", raw)
	}
	if d < 0 {
		return 0, fmt.Errorf("frequency must be >= 0")
	}
	return d, nil
}

func parseCronInterval(expr string) (time.Duration, error) {
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return 0, fmt.Errorf("invalid cron frequency %q: %w", expr, err)
	}
	// @every yields a ConstantDelaySchedule; use its delay directly.
	if cd, ok := sched.(cron.ConstantDelaySchedule); ok {
		return cd.Delay, nil
	}
	first := sched.Next(cronReference)
	second := sched.Next(first)
	if first.IsZero() || second.IsZero() {
		return 0, fmt.Errorf("cron frequency %q never fires", expr)
	}
	return second.Sub(first), nil
}

func parseHHMMDuration(v string) (time.Duration, error) {
	m := reHHMM.FindStringSubmatch(v)
	if len(m) != 3 {
		return 0, fmt.Errorf("invalid HH:MM %q", v)
	}
	hh, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, fmt.Errorf("invalid hours in %q", v)
	}
	mm, err := strconv.Atoi(m[2])
	if err != nil || mm > 59 {
		return 0, fmt.Errorf("invalid minutes in %q", v)
	}
	return time.Duration(hh)*time.Hour + time.Duration(mm)*time.Minute, nil
}

// ParseRange parses a window field: "*" (or empty) is the whole domain,
// "a" is a single value and "a-b" an inclusive range. Values outside domain
// are rejected.
func ParseRange(raw string, domain job.Range) (job.Range, error) {
	s := strings.TrimSpace(raw)
	if s == "" || s == "*" {
		return domain, nil
	}
	lo, hi, isRange := strings.Cut(s, "-")
	start, err := strconv.Atoi(strings.TrimSpace(lo))
	if err != nil {
		return job.Range{}, fmt.Errorf("invalid range %q", raw)
	}
	end := start
	if isRange {
		end, err = strconv.Atoi(strings.TrimSpace(hi))
		if err != nil {
			return job.Range{}, fmt.Errorf("invalid range %q", raw)
		}
	}
	if start < domain.Start || start > domain.End || end < domain.Start || end > domain.End {
		return job.Range{}, fmt.Errorf("range %q outside %s", raw, domain)
	}
	return job.Range{Start: start, End: end}, nil
}
