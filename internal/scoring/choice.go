package scoring

import "strings"

// choiceStrategy scores a multiple-choice answer by looking the chosen value
// up among the question's options. A value that matches no option is treated
// as no answer, not as an error.
type choiceStrategy struct{}

func (choiceStrategy) Resolve(q Q, r *R) Outcome {
	max := 0.0
	for _, o := range q.Options {
		if o.Score > max {
			max = o.Score
		}
	}
	if max < DefaultMaxScore {
		// author never scored an option; keep the denominator non-zero
		max = DefaultMaxScore
	}
	out := Outcome{Max: max}
	if r == nil {
		return out
	}
	chosen := strings.TrimSpace(r.Value)
	if chosen == "" {
		return out
	}
	for _, o := range q.Options {
		if o.Value == chosen {
			correct := o.IsCorrect
			out.Raw = o.Score
			out.Correct = &correct
			return out
		}
	}
	return out
}
