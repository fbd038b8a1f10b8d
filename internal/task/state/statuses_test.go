package state

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusesOverwriteAndCount(t *testing.T) {
	t.Parallel()

	s := NewStatuses()
	s.Initial("a")
	s.Initial("b")
	require.Equal(t, 0, s.RunningJobCount())

	s.Running("a")
	s.Running("b")
	require.Equal(t, 2, s.RunningJobCount())

	s.Failure("b", "boom")
	require.Equal(t, 1, s.RunningJobCount())

	st, ok := s.Get("b")
	require.True(t, ok)
	failed, ok := st.(StatusFailed)
	require.True(t, ok)
	assert.Equal(t, "boom", failed.Message)

	_, ok = s.Get("missing")
	assert.False(t, ok)
}

func TestStatusesPublishesChangesAndSnapshots(t *testing.T) {
	t.Parallel()

	s := NewStatuses()
	changes, unsubChanges := s.Changes().Subscribe(8)
	defer unsubChanges()
	snaps, unsubSnaps := s.Snapshots().Subscribe(8)
	defer unsubSnaps()

	s.Running("a")
	s.Success("a")
	s.Running("b")

	var states []string
	for i := 0; i < 3; i++ {
		states = append(states, StatusRecordOf(<-changes).State)
	}
	assert.Equal(t, []string{StateRunning, StateSuccess, StateRunning}, states)

	<-snaps
	<-snaps
	last := <-snaps
	require.Len(t, last, 2)
	_, ok := last["a"].(StatusSuccess)
	assert.True(t, ok)
}

func TestStatusesSnapshotIsACopy(t *testing.T) {
	t.Parallel()

	s := NewStatuses()
	s.Running("a")
	snap := s.Snapshot()
	s.Success("a")
	_, ok := snap["a"].(StatusRunning)
	assert.True(t, ok)
}

func TestStatusRecordsSortedWithClock(t *testing.T) {
	t.Parallel()

	at := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewStatuses()
	s.SetClock(func() time.Time { return at })
	s.Skipped("z", "nothing to do")
	s.Cancelled("a")

	recs := s.Records()
	require.Len(t, recs, 2)
	assert.Equal(t, StatusRecord{Job: "a", State: StateCancelled, TS: at}, recs[0])
	assert.Equal(t, StatusRecord{Job: "z", State: StateSkipped, Detail: "nothing to do", TS: at}, recs[1])
}

func TestStatusFromResult(t *testing.T) {
	t.Parallel()

	end := time.Date(2020, 1, 1, 0, 0, 5, 0, time.UTC)
	info := ResultInfo{Job: "j", Start: end.Add(-5 * time.Second), End: end}

	cases := []struct {
		res  Result
		want StatusRecord
	}{
		{ResultSuccess{info}, StatusRecord{Job: "j", State: StateSuccess, TS: end}},
		{ResultFailure{ResultInfo: info, Message: "x"}, StatusRecord{Job: "j", State: StateFailed, Detail: "x", TS: end}},
		{ResultSkipped{ResultInfo: info, Reason: "y"}, StatusRecord{Job: "j", State: StateSkipped, Detail: "y", TS: end}},
		{ResultCancelled{info}, StatusRecord{Job: "j", State: StateCancelled, TS: end}},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, StatusRecordOf(StatusFromResult(tc.res)))
	}
}
