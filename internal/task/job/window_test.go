package job

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewWindowRejectsOutOfDomain(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		opt  WindowOption
	}{
		{"month zero", Months(0, 3)},
		{"day 32", Days(1, 32)},
		{"weekday zero", Weekdays(0, 5)},
		{"hour 24", Hours(9, 24)},
		{"minute 60", Minutes(60, 60)},
		{"second negative", Seconds(-1, 5)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := NewWindow(tc.opt)
			require.Error(t, err)
			var cerr *ConfigError
			require.ErrorAs(t, err, &cerr)
		})
	}
}

func TestAnytimeMatchesEverything(t *testing.T) {
	t.Parallel()

	w, err := NewWindow()
	require.NoError(t, err)
	require.True(t, w.IsAnytime())
	for _, ts := range []time.Time{
		time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 2, 29, 23, 59, 59, 0, time.UTC),
		time.Date(2031, 12, 31, 12, 30, 1, 0, time.UTC),
	} {
		require.True(t, w.InWindow(ts), ts.String())
	}
}

func TestInWindowWeekdaysAndHours(t *testing.T) {
	t.Parallel()

	w, err := NewWindow(Weekdays(1, 5), Hours(9, 17))
	require.NoError(t, err)

	// 2010-01-04 is a Monday.
	require.True(t, w.InWindow(time.Date(2010, 1, 4, 9, 0, 0, 0, time.UTC)))
	require.True(t, w.InWindow(time.Date(2010, 1, 8, 17, 59, 59, 0, time.UTC)))
	require.False(t, w.InWindow(time.Date(2010, 1, 4, 8, 59, 59, 0, time.UTC)))
	require.False(t, w.InWindow(time.Date(2010, 1, 4, 18, 0, 0, 0, time.UTC)))
	// Saturday and Sunday.
	require.False(t, w.InWindow(time.Date(2010, 1, 9, 12, 0, 0, 0, time.UTC)))
	require.False(t, w.InWindow(time.Date(2010, 1, 10, 12, 0, 0, 0, time.UTC)))
}

func TestSundayIsSeven(t *testing.T) {
	t.Parallel()

	w, err := NewWindow(Weekdays(7, 7))
	require.NoError(t, err)
	require.True(t, w.InWindow(time.Date(2010, 1, 10, 0, 0, 0, 0, time.UTC)))
	require.False(t, w.InWindow(time.Date(2010, 1, 11, 0, 0, 0, 0, time.UTC)))
}

func TestInvertedRangeNeverMatches(t *testing.T) {
	t.Parallel()

	w, err := NewWindow(Hours(22, 2))
	require.NoError(t, err)
	for h := 0; h < 24; h++ {
		require.False(t, w.InWindow(time.Date(2010, 1, 1, h, 0, 0, 0, time.UTC)), "hour %d", h)
	}
}
