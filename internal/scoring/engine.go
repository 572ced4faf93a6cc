package scoring

import "math"

// Question type identifiers, stored verbatim on test definitions.
const (
	TypeMultipleChoice = "multiple_choice"
	TypeLikertScale    = "likert_scale"
	TypeSelfRating     = "self_rating"
	TypeOpenText       = "open_text"
)

// DefaultMaxScore is the max score of an open-ended answer and the floor for
// a multiple-choice max when the author never scored an option.
const DefaultMaxScore = 10

// Q is a minimal view of a question needed for scoring. Stores convert their
// own question models into this shape at the call site.
type Q struct {
	ID      string
	Type    string
	Weight  float64
	Options []Option // multiple_choice
	Scale   int      // likert_scale
	Min     int      // self_rating
	Max     int      // self_rating
}

type Option struct {
	Value     string
	IsCorrect bool
	Score     float64
}

// R is the respondent's captured answer to one question. ManualScore is set
// only for open-ended answers that a grader has scored.
type R struct {
	Value       string
	ManualScore *float64
}

// Outcome is the resolved (raw, max) pair for a single question.
type Outcome struct {
	Raw     float64
	Max     float64
	Pending bool  // open-ended answer awaiting a manual score
	Correct *bool // multiple_choice only
}

// Strategy resolves one question type.
type Strategy interface {
	Resolve(q Q, r *R) Outcome
}

var strategies = map[string]Strategy{
	TypeMultipleChoice: choiceStrategy{},
	TypeLikertScale:    likertStrategy{},
	TypeSelfRating:     selfRatingStrategy{},
	TypeOpenText:       openTextStrategy{},
}

// Resolve routes by question type. Unknown types contribute nothing to either
// aggregate total.
func Resolve(q Q, r *R) Outcome {
	s, ok := strategies[q.Type]
	if !ok {
		return Outcome{}
	}
	return s.Resolve(q, r)
}

// Row is one question's share of a breakdown.
type Row struct {
	QuestionID       string  `json:"question_id"`
	Type             string  `json:"type"`
	Weight           float64 `json:"weight"`
	RawScore         float64 `json:"raw_score"`
	MaxScore         float64 `json:"max_score"`
	WeightedScore    float64 `json:"weighted_score"`
	WeightedMaxScore float64 `json:"weighted_max_score"`
	Percentage       int     `json:"percentage"`
	IsCorrect        *bool   `json:"is_correct,omitempty"`
	NeedsGrading     bool    `json:"needs_grading,omitempty"`
}

// Breakdown is the full scored view of one assignment. It is recomputed from
// stored questions and responses on demand, never persisted.
type Breakdown struct {
	Rows                  []Row    `json:"rows"`
	TotalWeightedScore    float64  `json:"total_weighted_score"`
	TotalWeightedMaxScore float64  `json:"total_weighted_max_score"`
	FinalPercentage       int      `json:"final_percentage"`
	Category              Category `json:"category"`
	NeedsGrading          bool     `json:"needs_grading"`
}

// ComputeBreakdown scores every question and aggregates the weighted totals.
// It is a pure function: every call site that needs "the score" of an
// assignment (submit, grading, reports) goes through here.
//
// A question without a response scores 0 raw but still contributes
// weight*max to the denominator. An empty or all-zero-weight question set
// yields a final percentage of 0 rather than a division error.
func ComputeBreakdown(questions []Q, responses map[string]R) Breakdown {
	b := Breakdown{Rows: make([]Row, 0, len(questions))}
	for _, q := range questions {
		var resp *R
		if r, ok := responses[q.ID]; ok {
			r := r
			resp = &r
		}
		out := Resolve(q, resp)
		w := q.Weight
		if w < 0 {
			w = 0
		}
		row := Row{
			QuestionID:       q.ID,
			Type:             q.Type,
			Weight:           w,
			RawScore:         out.Raw,
			MaxScore:         out.Max,
			WeightedScore:    out.Raw * w,
			WeightedMaxScore: out.Max * w,
			Percentage:       percent(out.Raw, out.Max),
			IsCorrect:        out.Correct,
			NeedsGrading:     out.Pending,
		}
		b.Rows = append(b.Rows, row)
		b.TotalWeightedScore += row.WeightedScore
		b.TotalWeightedMaxScore += row.WeightedMaxScore
		if row.NeedsGrading {
			b.NeedsGrading = true
		}
	}
	b.FinalPercentage = percent(b.TotalWeightedScore, b.TotalWeightedMaxScore)
	b.Category = Categorize(b.FinalPercentage)
	return b
}

func percent(raw, max float64) int {
	if max <= 0 {
		return 0
	}
	return int(math.Round(100 * raw / max))
}
