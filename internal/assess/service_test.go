package assess

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/skillgauge/skillgauge/internal/scoring"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func intPtr(n int) *int { return &n }

func seedTest(t *testing.T, store Store, durationMinutes *int) Test {
	t.Helper()
	def := Test{
		ID:              "tna-go-basics",
		Title:           "Go Basics Self-Assessment",
		DurationMinutes: durationMinutes,
		Questions: []Question{
			{ID: "q1", Type: scoring.TypeMultipleChoice, Weight: 1, Options: []Option{
				{Value: "a", Score: 0},
				{Value: "b", Score: 5},
				{Value: "c", IsCorrect: true, Score: 10},
			}},
			{ID: "q2", Type: scoring.TypeLikertScale, Weight: 2, Scale: 5},
			{ID: "q3", Type: scoring.TypeOpenText, Weight: 1, Prompt: "Describe a goroutine leak you fixed."},
		},
	}
	if err := store.PutTest(context.Background(), def); err != nil {
		t.Fatalf("seed test: %v", err)
	}
	return def
}

func newSession(t *testing.T, durationMinutes *int) (*Service, *fakeClock, Assignment) {
	t.Helper()
	store := NewInMemoryStore()
	clock := newFakeClock()
	svc := NewService(store, WithClock(clock.Now), WithTickInterval(time.Millisecond))
	seedTest(t, store, durationMinutes)
	a, err := store.CreateAssignment(context.Background(), "tna-go-basics", "u1")
	if err != nil {
		t.Fatalf("create assignment: %v", err)
	}
	return svc, clock, a
}

func TestOpen_StartsPendingAssignment(t *testing.T) {
	svc, clock, a := newSession(t, nil)
	ctx := context.Background()

	opened, questions, err := svc.Open(ctx, a.ID)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if opened.Status != StatusInProgress {
		t.Fatalf("status = %q, want in_progress", opened.Status)
	}
	if opened.StartedAt == nil || *opened.StartedAt != clock.Now().Unix() {
		t.Fatalf("started_at = %v, want clock now", opened.StartedAt)
	}
	if len(questions) != 3 {
		t.Fatalf("got %d questions, want 3", len(questions))
	}

	// reopening later must not move the start of the clock
	clock.Advance(5 * time.Minute)
	reopened, _, err := svc.Open(ctx, a.ID)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if *reopened.StartedAt != *opened.StartedAt {
		t.Fatalf("started_at moved on reopen: %d vs %d", *reopened.StartedAt, *opened.StartedAt)
	}
}

func TestOpen_RejectsEmptyTest(t *testing.T) {
	store := NewInMemoryStore()
	svc := NewService(store)
	ctx := context.Background()
	if err := store.PutTest(ctx, Test{ID: "empty", Title: "Empty"}); err != nil {
		t.Fatalf("put test: %v", err)
	}
	a, err := store.CreateAssignment(ctx, "empty", "u1")
	if err != nil {
		t.Fatalf("create assignment: %v", err)
	}
	if _, _, err := svc.Open(ctx, a.ID); !errors.Is(err, ErrNoQuestions) {
		t.Fatalf("err = %v, want ErrNoQuestions", err)
	}
	// the broken open must not have started a session
	got, _ := store.GetAssignment(ctx, a.ID)
	if got.Status != StatusPending {
		t.Fatalf("status = %q, want pending", got.Status)
	}
}

func TestAnswer_UpsertsPerQuestion(t *testing.T) {
	svc, _, a := newSession(t, nil)
	ctx := context.Background()
	if _, _, err := svc.Open(ctx, a.ID); err != nil {
		t.Fatalf("open: %v", err)
	}

	first, err := svc.Answer(ctx, a.ID, "q2", "3")
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	second, err := svc.Answer(ctx, a.ID, "q2", "5")
	if err != nil {
		t.Fatalf("revise: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("revision created a new response row")
	}
	rs, _ := svc.store.GetResponses(ctx, a.ID)
	if len(rs) != 1 || rs[0].Value != "5" {
		t.Fatalf("responses = %+v, want single row with value 5", rs)
	}
}

func TestAnswer_GuardsLifecycle(t *testing.T) {
	svc, _, a := newSession(t, nil)
	ctx := context.Background()

	// before first open
	if _, err := svc.Answer(ctx, a.ID, "q1", "a"); !errors.Is(err, ErrNotStarted) {
		t.Fatalf("err = %v, want ErrNotStarted", err)
	}

	if _, _, err := svc.Open(ctx, a.ID); err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, _, err := svc.Submit(ctx, a.ID, 120); err != nil {
		t.Fatalf("submit: %v", err)
	}

	// after completion only the grading path may touch responses
	if _, err := svc.Answer(ctx, a.ID, "q1", "a"); !errors.Is(err, ErrAssignmentCompleted) {
		t.Fatalf("err = %v, want ErrAssignmentCompleted", err)
	}
}

func TestSubmit_ReturnsBreakdownAndIsIdempotent(t *testing.T) {
	svc, _, a := newSession(t, nil)
	ctx := context.Background()
	if _, _, err := svc.Open(ctx, a.ID); err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := svc.Answer(ctx, a.ID, "q1", "c"); err != nil {
		t.Fatalf("answer q1: %v", err)
	}
	if _, err := svc.Answer(ctx, a.ID, "q2", "5"); err != nil {
		t.Fatalf("answer q2: %v", err)
	}
	// q3 left unanswered on purpose

	done, b, err := svc.Submit(ctx, a.ID, 300)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if done.Status != StatusCompleted || done.TimeSpentSeconds != 300 {
		t.Fatalf("assignment after submit: %+v", done)
	}
	// 10*1 + 5*2 + 0*1 over 10*1 + 5*2 + 10*1 = 20/30
	if b.FinalPercentage != 67 {
		t.Fatalf("final percentage = %d, want 67", b.FinalPercentage)
	}
	if b.NeedsGrading {
		t.Fatalf("unanswered open text must not flag needs_grading")
	}

	// second submit is a no-op that sees the same stored outcome
	again, b2, err := svc.Submit(ctx, a.ID, 999)
	if err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if again.TimeSpentSeconds != 300 {
		t.Fatalf("resubmit overwrote time spent: %d", again.TimeSpentSeconds)
	}
	if b2.FinalPercentage != b.FinalPercentage {
		t.Fatalf("resubmit diverged: %d vs %d", b2.FinalPercentage, b.FinalPercentage)
	}
}

func TestSubmit_AnsweredOpenTextFlagsProvisional(t *testing.T) {
	svc, _, a := newSession(t, nil)
	ctx := context.Background()
	if _, _, err := svc.Open(ctx, a.ID); err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := svc.Answer(ctx, a.ID, "q3", "I hunted a leaked ticker."); err != nil {
		t.Fatalf("answer: %v", err)
	}
	_, b, err := svc.Submit(ctx, a.ID, 60)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !b.NeedsGrading {
		t.Fatalf("expected provisional aggregate while open text is ungraded")
	}
}

func TestOpen_ZeroDurationForceSubmitsImmediately(t *testing.T) {
	svc, _, a := newSession(t, intPtr(0))
	ctx := context.Background()

	opened, _, err := svc.Open(ctx, a.ID)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if opened.Status != StatusCompleted {
		t.Fatalf("status = %q, want completed without respondent action", opened.Status)
	}
}

func TestTimer_ForcesSubmitOnExpiry(t *testing.T) {
	svc, clock, a := newSession(t, intPtr(1))
	ctx := context.Background()

	if _, _, err := svc.Open(ctx, a.ID); err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := svc.Answer(ctx, a.ID, "q2", "4"); err != nil {
		t.Fatalf("answer: %v", err)
	}

	clock.Advance(61 * time.Second)

	deadline := time.Now().Add(2 * time.Second)
	for {
		got, err := svc.store.GetAssignment(ctx, a.ID)
		if err != nil {
			t.Fatalf("get assignment: %v", err)
		}
		if got.Status == StatusCompleted {
			if got.TimeSpentSeconds != 60 {
				t.Fatalf("forced submit time spent = %d, want 60", got.TimeSpentSeconds)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("timer never forced submission")
		}
		time.Sleep(time.Millisecond)
	}

	// the forced submit committed exactly the responses persisted before expiry
	rs, _ := svc.store.GetResponses(ctx, a.ID)
	if len(rs) != 1 || rs[0].Value != "4" {
		t.Fatalf("responses after forced submit: %+v", rs)
	}
}

func TestTimer_ManualSubmitWinsTheRace(t *testing.T) {
	svc, clock, a := newSession(t, intPtr(1))
	ctx := context.Background()
	if _, _, err := svc.Open(ctx, a.ID); err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, _, err := svc.Submit(ctx, a.ID, 30); err != nil {
		t.Fatalf("submit: %v", err)
	}
	clock.Advance(5 * time.Minute)
	time.Sleep(20 * time.Millisecond) // give a stale ticker a chance to misfire

	got, _ := svc.store.GetAssignment(ctx, a.ID)
	if got.TimeSpentSeconds != 30 {
		t.Fatalf("timer overwrote the manual submit: %+v", got)
	}
}

func TestRemainingSeconds_RecomputedFromWallClock(t *testing.T) {
	svc, clock, a := newSession(t, intPtr(10))
	ctx := context.Background()
	opened, _, err := svc.Open(ctx, a.ID)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	clock.Advance(9 * time.Minute)
	rem, ok := svc.RemainingSeconds(opened)
	if !ok || rem != 60 {
		t.Fatalf("remaining = %d,%v, want 60,true", rem, ok)
	}

	clock.Advance(2 * time.Minute)
	if rem, _ := svc.RemainingSeconds(opened); rem != 0 {
		t.Fatalf("remaining after expiry = %d, want 0", rem)
	}
}

func TestRemainingSeconds_UntimedHasNone(t *testing.T) {
	svc, _, a := newSession(t, nil)
	ctx := context.Background()
	opened, _, err := svc.Open(ctx, a.ID)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, ok := svc.RemainingSeconds(opened); ok {
		t.Fatalf("untimed assignment reported a deadline")
	}
}

func TestSweepExpired_SubmitsStaleSessions(t *testing.T) {
	store := NewInMemoryStore()
	clock := newFakeClock()
	// huge tick: the sweep, not the session timer, must do the work
	svc := NewService(store, WithClock(clock.Now), WithTickInterval(time.Hour))
	seedTest(t, store, intPtr(1))
	ctx := context.Background()

	a, err := store.CreateAssignment(ctx, "tna-go-basics", "u1")
	if err != nil {
		t.Fatalf("create assignment: %v", err)
	}
	if _, _, err := svc.Open(ctx, a.ID); err != nil {
		t.Fatalf("open: %v", err)
	}

	clock.Advance(10 * time.Minute)
	if n := svc.SweepExpired(ctx); n != 1 {
		t.Fatalf("swept %d assignments, want 1", n)
	}
	got, _ := store.GetAssignment(ctx, a.ID)
	if got.Status != StatusCompleted {
		t.Fatalf("status after sweep = %q, want completed", got.Status)
	}

	// untimed sessions are never reclaimed
	if err := store.PutTest(ctx, Test{ID: "untimed", Title: "Untimed", Questions: []Question{{ID: "q", Type: scoring.TypeSelfRating, Weight: 1, Max: 10}}}); err != nil {
		t.Fatalf("put test: %v", err)
	}
	b, _ := store.CreateAssignment(ctx, "untimed", "u2")
	if _, _, err := svc.Open(ctx, b.ID); err != nil {
		t.Fatalf("open untimed: %v", err)
	}
	clock.Advance(100 * time.Hour)
	if n := svc.SweepExpired(ctx); n != 0 {
		t.Fatalf("sweep reclaimed an untimed session")
	}
}
