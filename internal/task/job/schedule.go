package job

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// SchedulePart pairs a minimum recurrence interval with a calendar window.
// It is an immutable value.
type SchedulePart struct {
	frequency time.Duration
	window    ExecutionWindow
	start     time.Time
}

// NewSchedulePart validates and builds a part. A zero start means "beginning of time".
func NewSchedulePart(frequency time.Duration, window ExecutionWindow, start time.Time) (SchedulePart, error) {
	if frequency < 0 {
		return SchedulePart{}, &ConfigError{Field: "frequency", Msg: "must be >= 0"}
	}
	if err := window.Validate(); err != nil {
		return SchedulePart{}, err
	}
	return SchedulePart{frequency: frequency, window: window, start: start}, nil
}

// Every is shorthand for a part with no window restriction.
func Every(frequency time.Duration) SchedulePart {
	if frequency < 0 {
		frequency = 0
	}
	return SchedulePart{frequency: frequency, window: Anytime}
}

func (p SchedulePart) Frequency() time.Duration { return p.frequency }
func (p SchedulePart) Window() ExecutionWindow  { return p.window }
func (p SchedulePart) StartDateTime() time.Time { return p.start }

// Ready reports whether ref is inside the window and at least frequency has
// elapsed since lastRun (or since the part's start when lastRun is zero).
// Comparison is done in whole seconds, floored, so a ref before base never
// counts as elapsed.
func (p SchedulePart) Ready(ref, lastRun time.Time) bool {
	if !p.window.InWindow(ref) {
		return false
	}
	base := lastRun
	if base.IsZero() {
		base = p.start
	}
	d := ref.Sub(base)
	elapsed := int64(d / time.Second)
	if d < 0 && d%time.Second != 0 {
		elapsed--
	}
	return elapsed >= int64(p.frequency/time.Second)
}

func (p SchedulePart) String() string {
	return fmt.Sprintf("every %s (%s)", p.frequency, p.window)
}

// Schedule is a named, non-empty set of parts; it is ready when any part is.
type Schedule struct {
	name  string
	parts []SchedulePart
}

var ErrEmptySchedule = errors.New("schedule has no parts")

func NewSchedule(name string, parts ...SchedulePart) (Schedule, error) {
	if len(parts) == 0 {
		return Schedule{}, &ConfigError{Field: "schedule " + strings.TrimSpace(name), Msg: ErrEmptySchedule.Error(), Err: ErrEmptySchedule}
	}
	return Schedule{name: strings.TrimSpace(name), parts: append([]SchedulePart(nil), parts...)}, nil
}

func (s Schedule) Name() string { return s.name }

func (s Schedule) Parts() []SchedulePart { return append([]SchedulePart(nil), s.parts...) }

// Ready evaluates every part against the same lastRun.
func (s Schedule) Ready(ref, lastRun time.Time) bool {
	for _, p := range s.parts {
		if p.Ready(ref, lastRun) {
			return true
		}
	}
	return false
}
