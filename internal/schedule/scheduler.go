// Package schedule provides cancellable delayed callbacks. Settle and
// feedback delays in the content engines go through a Scheduler so a
// closing flow can invalidate its pending timers.
package schedule

import (
	"sync"
	"time"
)

// Token cancels a scheduled callback. Cancelling an already-fired or
// already-cancelled token is a no-op.
type Token interface {
	Cancel()
}

// Scheduler runs a callback after a delay.
type Scheduler interface {
	After(d time.Duration, fn func()) Token
}

type timerToken struct {
	t *time.Timer
}

func (t *timerToken) Cancel() {
	if t.t != nil {
		t.t.Stop()
	}
}

// TimerScheduler is the production Scheduler backed by time.AfterFunc.
type TimerScheduler struct{}

// NewTimerScheduler creates a TimerScheduler.
func NewTimerScheduler() *TimerScheduler {
	return &TimerScheduler{}
}

// After implements Scheduler.
func (s *TimerScheduler) After(d time.Duration, fn func()) Token {
	return &timerToken{t: time.AfterFunc(d, fn)}
}

// ManualScheduler queues callbacks and fires them only when told to,
// which keeps timing-dependent tests deterministic.
type ManualScheduler struct {
	mu      sync.Mutex
	nextID  int
	pending map[int]pendingTask
}

type pendingTask struct {
	delay time.Duration
	fn    func()
}

type manualToken struct {
	s  *ManualScheduler
	id int
}

func (t *manualToken) Cancel() {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	delete(t.s.pending, t.id)
}

// NewManualScheduler creates an empty manual scheduler.
func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{pending: make(map[int]pendingTask)}
}

// After implements Scheduler. The callback stays queued until Fire or
// FireAll releases it.
func (s *ManualScheduler) After(d time.Duration, fn func()) Token {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := s.nextID
	s.pending[id] = pendingTask{delay: d, fn: fn}
	return &manualToken{s: s, id: id}
}

// Pending returns the number of queued callbacks.
func (s *ManualScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// FireAll runs every queued callback in submission order and clears the
// queue. Callbacks scheduled while firing are queued for the next call.
func (s *ManualScheduler) FireAll() {
	s.mu.Lock()
	ids := make([]int, 0, len(s.pending))
	for id := range s.pending {
		ids = append(ids, id)
	}
	// Submission order: ids are monotonically increasing.
	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			if ids[j] < ids[i] {
				ids[i], ids[j] = ids[j], ids[i]
			}
		}
	}
	tasks := make([]func(), 0, len(ids))
	for _, id := range ids {
		tasks = append(tasks, s.pending[id].fn)
		delete(s.pending, id)
	}
	s.mu.Unlock()

	for _, fn := range tasks {
		fn()
	}
}
