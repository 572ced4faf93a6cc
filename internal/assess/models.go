package assess

import "github.com/skillgauge/skillgauge/internal/scoring"

// Option is one selectable answer of a multiple-choice question. Score and
// IsCorrect are authoring-side fields; respondent-facing reads strip them.
type Option struct {
	Value     string  `json:"value"`
	Label     string  `json:"label,omitempty"`
	IsCorrect bool    `json:"is_correct,omitempty"`
	Score     float64 `json:"score,omitempty"`
}

// Question is immutable once its test is published.
type Question struct {
	ID     string  `json:"id"`
	Type   string  `json:"type"` // multiple_choice|likert_scale|self_rating|open_text
	Prompt string  `json:"prompt,omitempty"`
	Weight float64 `json:"weight"`

	Options []Option `json:"options,omitempty"` // multiple_choice
	Scale   int      `json:"scale,omitempty"`   // likert_scale
	Min     int      `json:"min,omitempty"`     // self_rating
	Max     int      `json:"max,omitempty"`     // self_rating
}

// Test is a published skill questionnaire. DurationMinutes nil means untimed.
type Test struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	DurationMinutes *int       `json:"duration_minutes,omitempty"`
	Questions       []Question `json:"questions"`
	CreatedAt       int64      `json:"created_at,omitempty"`
}

// Assignment lifecycle states.
const (
	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
)

// Assignment is one respondent's instance of taking one test.
type Assignment struct {
	ID               string `json:"id"`
	TestID           string `json:"test_id"`
	UserID           string `json:"user_id"`
	Status           string `json:"status"`
	DurationMinutes  *int   `json:"duration_minutes,omitempty"`
	StartedAt        *int64 `json:"started_at,omitempty"`
	SubmittedAt      *int64 `json:"submitted_at,omitempty"`
	TimeSpentSeconds int    `json:"time_spent_seconds,omitempty"`
}

// Response is the captured answer to one question within an assignment, one
// row per (assignment, question), upserted on every answer change. RawScore
// is persisted only for open_text answers, by the grading path; every other
// type's raw score is derived from Value at read time.
type Response struct {
	ID           string   `json:"id"`
	AssignmentID string   `json:"assignment_id"`
	QuestionID   string   `json:"question_id"`
	Value        string   `json:"value"`
	RawScore     *float64 `json:"raw_score,omitempty"`
	UpdatedAt    int64    `json:"updated_at,omitempty"`
}

// ScoringView converts stored questions and responses into the scoring
// engine's input shape. Both the submit path and the grading/report paths
// build their breakdowns through this one conversion.
func ScoringView(questions []Question, responses []Response) ([]scoring.Q, map[string]scoring.R) {
	qs := make([]scoring.Q, 0, len(questions))
	for _, q := range questions {
		sq := scoring.Q{
			ID:     q.ID,
			Type:   q.Type,
			Weight: q.Weight,
			Scale:  q.Scale,
			Min:    q.Min,
			Max:    q.Max,
		}
		for _, o := range q.Options {
			sq.Options = append(sq.Options, scoring.Option{
				Value:     o.Value,
				IsCorrect: o.IsCorrect,
				Score:     o.Score,
			})
		}
		qs = append(qs, sq)
	}
	rs := make(map[string]scoring.R, len(responses))
	for _, r := range responses {
		rs[r.QuestionID] = scoring.R{Value: r.Value, ManualScore: r.RawScore}
	}
	return qs, rs
}

// ComputeBreakdown scores an assignment's current persisted state.
func ComputeBreakdown(questions []Question, responses []Response) scoring.Breakdown {
	qs, rs := ScoringView(questions, responses)
	return scoring.ComputeBreakdown(qs, rs)
}
