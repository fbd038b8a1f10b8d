package state

import (
	"sync"

	"github.com/MarkStefanovic/ketl-sub000/internal/eventbus"
)

// DefaultHistory is how many results are retained per job.
const DefaultHistory = 10

// Results keeps the most recent results per job, oldest first.
type Results struct {
	mu      sync.RWMutex
	m       map[string][]Result
	limit   int
	changes *eventbus.Stream[Result]
}

// NewResults retains up to limit results per job (DefaultHistory when limit <= 0).
func NewResults(limit int) *Results {
	if limit <= 0 {
		limit = DefaultHistory
	}
	return &Results{
		m:       map[string][]Result{},
		limit:   limit,
		changes: eventbus.NewStream[Result](),
	}
}

// Add appends r to its job's history, trimming the oldest entries beyond the limit.
func (r *Results) Add(res Result) {
	if res == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	name := res.JobName()
	h := append(r.m[name], res)
	if over := len(h) - r.limit; over > 0 {
		// Copy so the dropped prefix does not pin the backing array forever.
		h = append([]Result(nil), h[over:]...)
	}
	r.m[name] = h
	r.changes.Publish(res)
}

// Latest returns the most recent result for name.
func (r *Results) Latest(name string) (Result, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h := r.m[name]
	if len(h) == 0 {
		return nil, false
	}
	return h[len(h)-1], true
}

// History returns a copy of the retained results for name, oldest first.
func (r *Results) History(name string) []Result {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Result(nil), r.m[name]...)
}

// LatestAll returns the most recent result of every job that has one.
func (r *Results) LatestAll() map[string]Result {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]Result, len(r.m))
	for k, h := range r.m {
		if len(h) > 0 {
			out[k] = h[len(h)-1]
		}
	}
	return out
}

func (r *Results) Limit() int { return r.limit }

// Changes streams every added result.
func (r *Results) Changes() *eventbus.Stream[Result] { return r.changes }
