package assess

import (
	"context"
	"errors"
)

var (
	ErrTestNotFound       = errors.New("test not found")
	ErrAssignmentNotFound = errors.New("assignment not found")
	ErrResponseNotFound   = errors.New("response not found")
	ErrNoQuestions        = errors.New("test has no questions")

	// ErrAssignmentCompleted guards answer mutations after submission. Only
	// the grading path may touch a completed assignment's responses.
	ErrAssignmentCompleted = errors.New("assignment already completed")

	// ErrNotStarted guards answer capture before the first open.
	ErrNotStarted = errors.New("assignment not started")
)

type AssignmentListOpts struct {
	TestID string
	UserID string
	Status string
	Limit  int
	Offset int
}

// Store is the persistence boundary of the assessment core. Any backend
// satisfying these contracts suffices; the portal ships a SQL store (sqlite
// or postgres) and an in-memory one for tests and offline demos.
type Store interface {
	PutTest(ctx context.Context, t Test) error
	// GetTest is respondent-safe: option scores and correct flags are
	// stripped. GetTestAdmin returns the full definition for scoring and
	// grading.
	GetTest(ctx context.Context, id string) (Test, error)
	GetTestAdmin(ctx context.Context, id string) (Test, error)

	CreateAssignment(ctx context.Context, testID, userID string) (Assignment, error)
	GetAssignment(ctx context.Context, id string) (Assignment, error)
	// StartAssignment transitions pending→in_progress and records startedAt.
	// Calling it on an assignment already in progress is a no-op.
	StartAssignment(ctx context.Context, id string, startedAt int64) (Assignment, error)
	// SubmitAssignment transitions in_progress→completed. The explicit-submit
	// and timer paths race exactly once here; the first transition wins and
	// the loser gets the already-completed assignment back with no error.
	SubmitAssignment(ctx context.Context, id string, timeSpentSeconds int, submittedAt int64) (Assignment, error)
	ListAssignments(ctx context.Context, opts AssignmentListOpts) ([]Assignment, error)
	// ListExpiredAssignments returns timed in_progress assignments whose
	// deadline has passed, for the sweeper.
	ListExpiredAssignments(ctx context.Context, now int64) ([]Assignment, error)

	UpsertResponse(ctx context.Context, assignmentID, questionID, value string) (Response, error)
	GetResponses(ctx context.Context, assignmentID string) ([]Response, error)
	GetResponse(ctx context.Context, responseID string) (Response, error)
	// SetResponseScore persists a manual raw score. Grading-path only.
	SetResponseScore(ctx context.Context, responseID string, rawScore float64) (Response, error)
}

// Deadline returns the unix second a timed assignment force-submits at, or
// false when the assignment is untimed or not yet started.
func Deadline(a Assignment) (int64, bool) {
	if a.StartedAt == nil || a.DurationMinutes == nil {
		return 0, false
	}
	return *a.StartedAt + int64(*a.DurationMinutes)*60, true
}
