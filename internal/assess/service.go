package assess

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/skillgauge/skillgauge/internal/scoring"
)

// Service drives the assessment-taking lifecycle on top of a Store: open,
// per-answer autosave, explicit submit, and the end-of-session timer.
type Service struct {
	store Store
	now   func() time.Time
	tick  time.Duration

	mu     sync.Mutex
	timers map[string]*sessionTimer
}

type ServiceOption func(*Service)

// WithClock injects the time source, for tests.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

// WithTickInterval overrides the 1-second timer resolution, for tests.
func WithTickInterval(d time.Duration) ServiceOption {
	return func(s *Service) { s.tick = d }
}

func NewService(store Store, opts ...ServiceOption) *Service {
	s := &Service{
		store:  store,
		now:    time.Now,
		tick:   time.Second,
		timers: map[string]*sessionTimer{},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Open gives the respondent their assignment and its questions, transitioning
// pending→in_progress on first access. A test with zero questions is rejected
// before any session state is touched. Opening a timed assignment past its
// deadline force-submits it instead of resuming.
func (s *Service) Open(ctx context.Context, assignmentID string) (Assignment, []Question, error) {
	a, err := s.store.GetAssignment(ctx, assignmentID)
	if err != nil {
		return Assignment{}, nil, err
	}
	t, err := s.store.GetTest(ctx, a.TestID)
	if err != nil {
		return Assignment{}, nil, err
	}
	if len(t.Questions) == 0 {
		return Assignment{}, nil, ErrNoQuestions
	}
	if a.Status == StatusPending {
		a, err = s.store.StartAssignment(ctx, assignmentID, s.now().Unix())
		if err != nil {
			return Assignment{}, nil, err
		}
	}
	if a.Status == StatusInProgress {
		if deadline, ok := Deadline(a); ok {
			if deadline <= s.now().Unix() {
				a, err = s.forceSubmit(ctx, a)
				if err != nil {
					return Assignment{}, nil, err
				}
			} else {
				s.armTimer(assignmentID)
			}
		}
	}
	return a, t.Questions, nil
}

// Answer captures one response. Every answer change persists immediately;
// a failed save is logged and surfaced as a soft failure so the session keeps
// going and the question simply scores as unanswered if never re-saved.
func (s *Service) Answer(ctx context.Context, assignmentID, questionID, value string) (Response, error) {
	r, err := s.store.UpsertResponse(ctx, assignmentID, questionID, value)
	if err != nil {
		if errors.Is(err, ErrAssignmentCompleted) || errors.Is(err, ErrNotStarted) ||
			errors.Is(err, ErrAssignmentNotFound) {
			return Response{}, err
		}
		log.Printf("autosave failed: assignment=%s question=%s: %v", assignmentID, questionID, err)
		return Response{}, err
	}
	return r, nil
}

// Submit completes the session and returns the immediate result. The store
// transition is guarded, so a submit racing the timer's forced submit is a
// no-op for whichever side loses; both see the same completed assignment.
func (s *Service) Submit(ctx context.Context, assignmentID string, timeSpentSeconds int) (Assignment, scoring.Breakdown, error) {
	a, err := s.store.GetAssignment(ctx, assignmentID)
	if err != nil {
		return Assignment{}, scoring.Breakdown{}, err
	}
	if a.Status == StatusPending {
		return Assignment{}, scoring.Breakdown{}, ErrNotStarted
	}
	a, err = s.store.SubmitAssignment(ctx, assignmentID, timeSpentSeconds, s.now().Unix())
	if err != nil {
		return Assignment{}, scoring.Breakdown{}, err
	}
	s.disarmTimer(assignmentID)
	b, err := s.Breakdown(ctx, assignmentID)
	if err != nil {
		return Assignment{}, scoring.Breakdown{}, err
	}
	return a, b, nil
}

// Breakdown recomputes the assignment's score from current persisted state.
// The submit result, the grading override and every report read delegate
// here, so "the score" can never diverge between call sites.
func (s *Service) Breakdown(ctx context.Context, assignmentID string) (scoring.Breakdown, error) {
	a, err := s.store.GetAssignment(ctx, assignmentID)
	if err != nil {
		return scoring.Breakdown{}, err
	}
	t, err := s.store.GetTestAdmin(ctx, a.TestID)
	if err != nil {
		return scoring.Breakdown{}, err
	}
	rs, err := s.store.GetResponses(ctx, assignmentID)
	if err != nil {
		return scoring.Breakdown{}, err
	}
	return ComputeBreakdown(t.Questions, rs), nil
}

// RemainingSeconds recomputes time left from startedAt+duration against the
// wall clock rather than counting down, so it survives the respondent
// navigating away and back. ok=false means untimed or not started.
func (s *Service) RemainingSeconds(a Assignment) (int, bool) {
	deadline, ok := Deadline(a)
	if !ok {
		return 0, false
	}
	rem := deadline - s.now().Unix()
	if rem < 0 {
		rem = 0
	}
	return int(rem), true
}

func (s *Service) forceSubmit(ctx context.Context, a Assignment) (Assignment, error) {
	spent := 0
	if a.DurationMinutes != nil {
		spent = *a.DurationMinutes * 60
	}
	return s.store.SubmitAssignment(ctx, a.ID, spent, s.now().Unix())
}

// SweepExpired force-submits every timed in_progress assignment past its
// deadline. It backstops the per-session timers across process restarts.
func (s *Service) SweepExpired(ctx context.Context) int {
	expired, err := s.store.ListExpiredAssignments(ctx, s.now().Unix())
	if err != nil {
		log.Printf("expiry sweep: %v", err)
		return 0
	}
	n := 0
	for _, a := range expired {
		if _, err := s.forceSubmit(ctx, a); err != nil {
			log.Printf("expiry sweep: submit %s: %v", a.ID, err)
			continue
		}
		s.disarmTimer(a.ID)
		n++
	}
	return n
}
