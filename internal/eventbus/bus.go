// Package eventbus provides in-memory fan-out streams used by the engine's
// shared state (queue contents, status changes, results).
package eventbus

import (
	"sync"
	"sync/atomic"
)

// Stream is a typed, in-memory fan-out point owned by a single producer.
//
// Contract:
//   - Publish never blocks.
//   - Each subscriber owns a bounded buffer; when it is full the OLDEST
//     buffered item is dropped to make room for the newest.
//   - Items are delivered to each subscriber in publish order.
type Stream[T any] struct {
	mu      sync.RWMutex
	subs    map[uint64]chan T
	seq     atomic.Uint64
	dropped atomic.Uint64
}

// NewStream returns an empty stream. It does not own any goroutines.
func NewStream[T any]() *Stream[T] {
	return &Stream[T]{subs: map[uint64]chan T{}}
}

// Publish delivers v to every subscriber without blocking.
func (s *Stream[T]) Publish(v T) {
	if s == nil {
		return
	}
	// The read lock is held for the whole fan-out so Unsubscribe cannot close
	// a channel while a send is in progress.
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subs {
		s.deliver(ch, v)
	}
}

func (s *Stream[T]) deliver(ch chan T, v T) {
	select {
	case ch <- v:
		return
	default:
	}
	// Full: drop one oldest item, then retry once.
	select {
	case <-ch:
		s.dropped.Add(1)
	default:
	}
	select {
	case ch <- v:
	default:
		// Another publisher refilled the slot; give up on this item.
		s.dropped.Add(1)
	}
}

// Subscribe registers a new subscriber with the given buffer size.
// The returned function unsubscribes and closes the channel; it is idempotent.
func (s *Stream[T]) Subscribe(buffer int) (<-chan T, func()) {
	if buffer <= 0 {
		buffer = 8
	}
	ch := make(chan T, buffer)
	id := s.seq.Add(1)

	s.mu.Lock()
	s.subs[id] = ch
	s.mu.Unlock()

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			close(ch)
			s.mu.Unlock()
		})
	}
	return ch, unsub
}

// Subscribers returns the current subscriber count.
func (s *Stream[T]) Subscribers() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs)
}

// Dropped returns how many items were discarded because subscribers fell behind.
func (s *Stream[T]) Dropped() uint64 { return s.dropped.Load() }
