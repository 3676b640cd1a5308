package xaytheon

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// refreshScheduler arms a single pending timer that fires shortly before
// the access credential expires. Arming replaces any prior timer, so at
// most one is live at a time.
type refreshScheduler struct {
	mu    sync.Mutex
	clock clockwork.Clock
	timer clockwork.Timer
}

func newRefreshScheduler(clock clockwork.Clock) *refreshScheduler {
	return &refreshScheduler{clock: clock}
}

// Arm cancels any previously armed timer and, if at is in the future,
// schedules fn to run once at that instant. A zero or past instant is a
// no-op beyond the cancellation.
func (s *refreshScheduler) Arm(at time.Time, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()

	if fn == nil || at.IsZero() {
		return
	}
	d := at.Sub(s.clock.Now())
	if d <= 0 {
		return
	}
	s.timer = s.clock.AfterFunc(d, fn)
}

// Disarm cancels any pending timer. Safe to call when nothing is armed.
func (s *refreshScheduler) Disarm() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

func (s *refreshScheduler) stopLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}
