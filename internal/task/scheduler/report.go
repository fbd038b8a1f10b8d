package scheduler

import (
	"time"

	logx "github.com/MarkStefanovic/ketl-sub000/pkg/logx"
)

const blockedLogThrottle = time.Minute

// reportBlocked logs that a ready job was held back, at most once per
// throttle window per job.
func (s *Scheduler) reportBlocked(name, reason string) {
	if s.log.IsZero() {
		return
	}
	now := s.now()
	s.mu.Lock()
	last := s.lastBlockedLog[name]
	if !last.IsZero() && now.Sub(last) < blockedLogThrottle {
		s.mu.Unlock()
		return
	}
	s.lastBlockedLog[name] = now
	s.mu.Unlock()

	s.log.Debug("job ready but held back", logx.String("job", name), logx.String("reason", reason))
}
