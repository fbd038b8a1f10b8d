package state

import (
	"sort"
	"sync"
	"time"

	"github.com/MarkStefanovic/ketl-sub000/internal/eventbus"
)

// Statuses is the concurrent map of job name to current status.
//
// Every write replaces the entry and publishes both the change and a full
// snapshot while still holding the lock, so subscribers observe writes in
// the order they were applied.
type Statuses struct {
	mu        sync.RWMutex
	m         map[string]Status
	changes   *eventbus.Stream[Status]
	snapshots *eventbus.Stream[map[string]Status]
	now       func() time.Time
}

func NewStatuses() *Statuses {
	return &Statuses{
		m:         map[string]Status{},
		changes:   eventbus.NewStream[Status](),
		snapshots: eventbus.NewStream[map[string]Status](),
		now:       time.Now,
	}
}

// SetClock replaces the timestamp source used by the helper setters.
func (s *Statuses) SetClock(now func() time.Time) {
	if now == nil {
		return
	}
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

// Add overwrites the current status for st's job.
func (s *Statuses) Add(st Status) {
	if st == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[st.JobName()] = st
	s.changes.Publish(st)
	s.snapshots.Publish(s.copyLocked())
}

func (s *Statuses) info(name string) StatusInfo {
	s.mu.RLock()
	now := s.now
	s.mu.RUnlock()
	return StatusInfo{Job: name, TS: now()}
}

func (s *Statuses) Initial(name string)   { s.Add(StatusInitial{s.info(name)}) }
func (s *Statuses) Running(name string)   { s.Add(StatusRunning{s.info(name)}) }
func (s *Statuses) Success(name string)   { s.Add(StatusSuccess{s.info(name)}) }
func (s *Statuses) Cancelled(name string) { s.Add(StatusCancelled{s.info(name)}) }

func (s *Statuses) Failure(name, msg string) {
	s.Add(StatusFailed{StatusInfo: s.info(name), Message: msg})
}

func (s *Statuses) Skipped(name, reason string) {
	s.Add(StatusSkipped{StatusInfo: s.info(name), Reason: reason})
}

// Get returns the current status for name.
func (s *Statuses) Get(name string) (Status, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.m[name]
	return st, ok
}

// Snapshot returns a point-in-time copy of the full map.
func (s *Statuses) Snapshot() map[string]Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.copyLocked()
}

// Records returns the snapshot flattened and sorted by job name.
func (s *Statuses) Records() []StatusRecord {
	snap := s.Snapshot()
	out := make([]StatusRecord, 0, len(snap))
	for _, st := range snap {
		out = append(out, StatusRecordOf(st))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Job < out[j].Job })
	return out
}

// RunningJobCount counts entries whose current status is Running.
func (s *Statuses) RunningJobCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, st := range s.m {
		if _, ok := st.(StatusRunning); ok {
			n++
		}
	}
	return n
}

// Changes streams each individual status write.
func (s *Statuses) Changes() *eventbus.Stream[Status] { return s.changes }

// Snapshots streams the full map after each write.
func (s *Statuses) Snapshots() *eventbus.Stream[map[string]Status] { return s.snapshots }

func (s *Statuses) copyLocked() map[string]Status {
	out := make(map[string]Status, len(s.m))
	for k, v := range s.m {
		out[k] = v
	}
	return out
}
