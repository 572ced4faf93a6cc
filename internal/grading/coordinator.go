// Package grading lets an administrator score open-ended answers after
// submission and forces the aggregate to be recomputed through the same
// scoring engine the submit path used.
package grading

import (
	"context"
	"errors"

	"github.com/skillgauge/skillgauge/internal/assess"
	"github.com/skillgauge/skillgauge/internal/scoring"
)

var (
	// ErrInvalidGradeTarget rejects grading of machine-scored question types.
	ErrInvalidGradeTarget = errors.New("grading: response is machine-scored")
	// ErrPercentageRange rejects grades outside [0,100].
	ErrPercentageRange = errors.New("grading: percentage must be in [0,100]")
	// ErrAssignmentNotCompleted rejects grading before submission.
	ErrAssignmentNotCompleted = errors.New("grading: assignment not completed")
	ErrQuestionNotFound       = errors.New("grading: question not found")
)

// Store is the slice of the assessment store the coordinator needs.
type Store interface {
	GetResponse(ctx context.Context, responseID string) (assess.Response, error)
	GetAssignment(ctx context.Context, id string) (assess.Assignment, error)
	GetTestAdmin(ctx context.Context, id string) (assess.Test, error)
	GetResponses(ctx context.Context, assignmentID string) ([]assess.Response, error)
	SetResponseScore(ctx context.Context, responseID string, rawScore float64) (assess.Response, error)
}

type Coordinator struct {
	store Store
}

func NewCoordinator(store Store) *Coordinator {
	return &Coordinator{store: store}
}

// Grade records a manual score for one open-ended response and returns the
// freshly recomputed breakdown. The percentage is converted to the question's
// raw scale before persisting, so the stored value is type-uniform with the
// machine-scored kinds. Re-grading is allowed; last write wins, no history.
// Callers must replace any cached breakdown with the returned one.
func (c *Coordinator) Grade(ctx context.Context, responseID string, percentage float64) (scoring.Breakdown, error) {
	if percentage < 0 || percentage > 100 {
		return scoring.Breakdown{}, ErrPercentageRange
	}
	r, err := c.store.GetResponse(ctx, responseID)
	if err != nil {
		return scoring.Breakdown{}, err
	}
	a, err := c.store.GetAssignment(ctx, r.AssignmentID)
	if err != nil {
		return scoring.Breakdown{}, err
	}
	if a.Status != assess.StatusCompleted {
		return scoring.Breakdown{}, ErrAssignmentNotCompleted
	}
	t, err := c.store.GetTestAdmin(ctx, a.TestID)
	if err != nil {
		return scoring.Breakdown{}, err
	}
	q, ok := findQuestion(t, r.QuestionID)
	if !ok {
		return scoring.Breakdown{}, ErrQuestionNotFound
	}
	if q.Type != scoring.TypeOpenText {
		return scoring.Breakdown{}, ErrInvalidGradeTarget
	}

	maxScore := scoring.Resolve(scoring.Q{Type: q.Type}, nil).Max
	if _, err := c.store.SetResponseScore(ctx, responseID, percentage/100*maxScore); err != nil {
		return scoring.Breakdown{}, err
	}

	// Full recompute from persisted state, never a patched delta. Concurrent
	// graders may race on the displayed aggregate; last recompute wins.
	return c.breakdown(ctx, a.ID, t)
}

// Item is one entry of the grading queue: an open-ended response with its
// current manual score, nil while it still needs grading.
type Item struct {
	ResponseID string   `json:"response_id"`
	QuestionID string   `json:"question_id"`
	Prompt     string   `json:"prompt,omitempty"`
	Value      string   `json:"value"`
	MaxScore   float64  `json:"max_score"`
	RawScore   *float64 `json:"raw_score,omitempty"`
}

// Queue lists a completed assignment's open-ended responses for the grader.
func (c *Coordinator) Queue(ctx context.Context, assignmentID string) ([]Item, error) {
	a, err := c.store.GetAssignment(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	if a.Status != assess.StatusCompleted {
		return nil, ErrAssignmentNotCompleted
	}
	t, err := c.store.GetTestAdmin(ctx, a.TestID)
	if err != nil {
		return nil, err
	}
	rs, err := c.store.GetResponses(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	byQuestion := make(map[string]assess.Response, len(rs))
	for _, r := range rs {
		byQuestion[r.QuestionID] = r
	}
	items := []Item{}
	for _, q := range t.Questions {
		if q.Type != scoring.TypeOpenText {
			continue
		}
		r, ok := byQuestion[q.ID]
		if !ok {
			continue // never answered, nothing to grade
		}
		items = append(items, Item{
			ResponseID: r.ID,
			QuestionID: q.ID,
			Prompt:     q.Prompt,
			Value:      r.Value,
			MaxScore:   scoring.DefaultMaxScore,
			RawScore:   r.RawScore,
		})
	}
	return items, nil
}

func (c *Coordinator) breakdown(ctx context.Context, assignmentID string, t assess.Test) (scoring.Breakdown, error) {
	rs, err := c.store.GetResponses(ctx, assignmentID)
	if err != nil {
		return scoring.Breakdown{}, err
	}
	return assess.ComputeBreakdown(t.Questions, rs), nil
}

func findQuestion(t assess.Test, id string) (assess.Question, bool) {
	for _, q := range t.Questions {
		if q.ID == id {
			return q, true
		}
	}
	return assess.Question{}, false
}
