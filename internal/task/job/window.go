package job

import (
	"fmt"
	"time"
)

// Range is an inclusive [Start, End] bound. A range with Start > End never matches.
type Range struct {
	Start int
	End   int
}

func (r Range) contains(v int) bool { return v >= r.Start && v <= r.End }

func (r Range) String() string {
	if r.Start == r.End {
		return fmt.Sprintf("%d", r.Start)
	}
	return fmt.Sprintf("%d-%d", r.Start, r.End)
}

// Field domains.
var (
	MonthDomain   = Range{1, 12}
	DayDomain     = Range{1, 31}
	WeekdayDomain = Range{1, 7} // 1=Monday..7=Sunday
	HourDomain    = Range{0, 23}
	MinuteDomain  = Range{0, 59}
	SecondDomain  = Range{0, 59}
)

// ExecutionWindow is a calendar predicate. Each field is checked independently
// and all six must hold.
type ExecutionWindow struct {
	Months   Range
	Days     Range
	Weekdays Range
	Hours    Range
	Minutes  Range
	Seconds  Range
}

// Anytime matches every instant.
var Anytime = ExecutionWindow{
	Months:   MonthDomain,
	Days:     DayDomain,
	Weekdays: WeekdayDomain,
	Hours:    HourDomain,
	Minutes:  MinuteDomain,
	Seconds:  SecondDomain,
}

// WindowOption narrows one field of a window.
type WindowOption func(w *ExecutionWindow)

func Months(start, end int) WindowOption   { return func(w *ExecutionWindow) { w.Months = Range{start, end} } }
func Days(start, end int) WindowOption     { return func(w *ExecutionWindow) { w.Days = Range{start, end} } }
func Weekdays(start, end int) WindowOption { return func(w *ExecutionWindow) { w.Weekdays = Range{start, end} } }
func Hours(start, end int) WindowOption    { return func(w *ExecutionWindow) { w.Hours = Range{start, end} } }
func Minutes(start, end int) WindowOption  { return func(w *ExecutionWindow) { w.Minutes = Range{start, end} } }
func Seconds(start, end int) WindowOption  { return func(w *ExecutionWindow) { w.Seconds = Range{start, end} } }

// NewWindow starts from Anytime, applies opts and validates every bound
// against its domain. Start > End is accepted (it just never matches).
func NewWindow(opts ...WindowOption) (ExecutionWindow, error) {
	w := Anytime
	for _, o := range opts {
		if o != nil {
			o(&w)
		}
	}
	if err := w.Validate(); err != nil {
		return ExecutionWindow{}, err
	}
	return w, nil
}

// Validate checks that every bound lies inside its field domain.
func (w ExecutionWindow) Validate() error {
	checks := []struct {
		field  string
		r      Range
		domain Range
	}{
		{"month", w.Months, MonthDomain},
		{"day", w.Days, DayDomain},
		{"weekday", w.Weekdays, WeekdayDomain},
		{"hour", w.Hours, HourDomain},
		{"minute", w.Minutes, MinuteDomain},
		{"second", w.Seconds, SecondDomain},
	}
	for _, c := range checks {
		if !c.domain.contains(c.r.Start) || !c.domain.contains(c.r.End) {
			return &ConfigError{Field: "window." + c.field, Msg: fmt.Sprintf("range %s outside %s", c.r, c.domain)}
		}
	}
	return nil
}

// InWindow reports whether t falls inside the window.
func (w ExecutionWindow) InWindow(t time.Time) bool {
	return w.Months.contains(int(t.Month())) &&
		w.Days.contains(t.Day()) &&
		w.Weekdays.contains(isoWeekday(t)) &&
		w.Hours.contains(t.Hour()) &&
		w.Minutes.contains(t.Minute()) &&
		w.Seconds.contains(t.Second())
}

func (w ExecutionWindow) IsAnytime() bool { return w == Anytime }

func (w ExecutionWindow) String() string {
	if w.IsAnytime() {
		return "anytime"
	}
	return fmt.Sprintf("month=%s day=%s weekday=%s hour=%s minute=%s second=%s",
		w.Months, w.Days, w.Weekdays, w.Hours, w.Minutes, w.Seconds)
}

func isoWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}
