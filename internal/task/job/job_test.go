package job

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func noop(context.Context) (Outcome, error) { return Success{}, nil }

func mustSchedule(t *testing.T, every time.Duration) Schedule {
	t.Helper()
	s, err := NewSchedule("default", Every(every))
	require.NoError(t, err)
	return s
}

func TestNewCollectsAllErrors(t *testing.T) {
	t.Parallel()

	_, err := New(Spec{Name: "  ", Retries: -1, Timeout: -time.Second})
	require.Error(t, err)
	require.ErrorIs(t, err, ErrBlankName)
	require.ErrorIs(t, err, ErrNoSchedule)
	require.ErrorIs(t, err, ErrNegativeRetry)
	require.ErrorIs(t, err, ErrNegativeTimeout)
	require.ErrorIs(t, err, ErrNilAction)
}

func TestNewNormalizesDependencies(t *testing.T) {
	t.Parallel()

	j, err := New(Spec{
		Name:         " load ",
		Schedules:    []Schedule{mustSchedule(t, time.Minute)},
		Dependencies: []string{"b", "a", "b", " "},
		Action:       noop,
	})
	require.NoError(t, err)
	require.Equal(t, "load", j.Name())
	require.Equal(t, []string{"a", "b"}, j.Dependencies())
	require.True(t, j.HasDependencies())
	require.Equal(t, NoTimeout, j.Timeout())
}

func TestJobIsReady(t *testing.T) {
	t.Parallel()

	j, err := New(Spec{Name: "x", Schedules: []Schedule{mustSchedule(t, time.Hour)}, Action: noop})
	require.NoError(t, err)

	ref := time.Date(2010, 1, 1, 12, 0, 0, 0, time.UTC)
	require.True(t, j.IsReady(ref, time.Time{}))
	require.False(t, j.IsReady(ref, ref.Add(-time.Minute)))

	out, err := j.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, Success{}, out)
}
