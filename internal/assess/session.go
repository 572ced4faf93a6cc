package assess

import (
	"context"
	"log"
	"sync"
	"time"
)

// sessionTimer is the end-of-session watchdog for one timed assignment. It
// ticks (1-second resolution by default) and compares the wall clock against
// the deadline derived from startedAt+duration, instead of decrementing a
// counter, so it cannot drift.
type sessionTimer struct {
	stop chan struct{}
	once sync.Once
}

func (t *sessionTimer) cancel() {
	t.once.Do(func() { close(t.stop) })
}

func (s *Service) armTimer(assignmentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.timers[assignmentID]; ok {
		return
	}
	t := &sessionTimer{stop: make(chan struct{})}
	s.timers[assignmentID] = t
	go s.watch(assignmentID, t)
}

func (s *Service) disarmTimer(assignmentID string) {
	s.mu.Lock()
	t := s.timers[assignmentID]
	delete(s.timers, assignmentID)
	s.mu.Unlock()
	if t != nil {
		t.cancel()
	}
}

func (s *Service) watch(assignmentID string, t *sessionTimer) {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()
	for {
		select {
		case <-t.stop:
			return
		case <-ticker.C:
			ctx := context.Background()
			a, err := s.store.GetAssignment(ctx, assignmentID)
			if err != nil || a.Status != StatusInProgress {
				// manual submit won the race, or the row is gone
				s.disarmTimer(assignmentID)
				return
			}
			deadline, ok := Deadline(a)
			if !ok {
				s.disarmTimer(assignmentID)
				return
			}
			if s.now().Unix() >= deadline {
				// guarded store transition makes this fire-once: if an
				// explicit submit slips in first, this update matches nothing
				if _, err := s.forceSubmit(ctx, a); err != nil {
					log.Printf("timer submit failed: assignment=%s: %v", assignmentID, err)
				}
				s.disarmTimer(assignmentID)
				return
			}
		}
	}
}
