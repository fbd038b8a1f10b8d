package scheduler

import (
	"testing"
	"time"

	"github.com/MarkStefanovic/ketl-sub000/internal/task/job"
)

func TestParseFrequency(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want time.Duration
		ok   bool
	}{
		{"0s", 0, true},
		{"55m", 55 * time.Minute, true},
		{"2h30m", 2*time.Hour + 30*time.Minute, true},
		{"00:50", 50 * time.Minute, true},
		{"02:30", 2*time.Hour + 30*time.Minute, true},
		{"@every 90s", 90 * time.Second, true},
		{"@hourly", time.Hour, true},
		{"@daily", 24 * time.Hour, true},
		{"@weekly", 7 * 24 * time.Hour, true},
		{"@monthly", 31 * 24 * time.Hour, true},
		{"*/5 * * * *", 5 * time.Minute, true},
		{"", 0, false},
		{"-5s", 0, false},
		{"02:60", 0, false},
		{"banana", 0, false},
		{"@sometimes", 0, false},
	}

	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			t.Parallel()
			got, err := ParseFrequency(tc.in)
			if tc.ok && err != nil {
				t.Fatalf("expected ok, got err=%v", err)
			}
			if !tc.ok {
				if err == nil {
					t.Fatalf("expected error, got %v", got)
				}
				return
			}
			if got != tc.want {
				t.Fatalf("got %v want %v", got, tc.want)
			}
		})
	}
}

func TestParseRange(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want job.Range
		ok   bool
	}{
		{"*", job.HourDomain, true},
		{"", job.HourDomain, true},
		{"9", job.Range{Start: 9, End: 9}, true},
		{"9-17", job.Range{Start: 9, End: 17}, true},
		{" 22 - 2 ", job.Range{Start: 22, End: 2}, true},
		{"24", job.Range{}, false},
		{"1-24", job.Range{}, false},
		{"a-b", job.Range{}, false},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			t.Parallel()
			got, err := ParseRange(tc.in, job.HourDomain)
			if tc.ok != (err == nil) {
				t.Fatalf("ok=%v err=%v", tc.ok, err)
			}
			if tc.ok && got != tc.want {
				t.Fatalf("got %v want %v", got, tc.want)
			}
		})
	}
}
