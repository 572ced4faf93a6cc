package scoring

import (
	"strconv"
	"strings"
)

// likertStrategy scores a Likert answer: the chosen level's numeric value is
// its raw score, clamped into [0, scale].
type likertStrategy struct{}

func (likertStrategy) Resolve(q Q, r *R) Outcome {
	max := float64(q.Scale)
	if max < 0 {
		max = 0
	}
	out := Outcome{Max: max}
	if r != nil {
		out.Raw = clampNumeric(r.Value, max)
	}
	return out
}

// selfRatingStrategy scores a self-rating answer: the chosen integer is its
// raw score, clamped into [0, max].
type selfRatingStrategy struct{}

func (selfRatingStrategy) Resolve(q Q, r *R) Outcome {
	max := float64(q.Max)
	if max < 0 {
		max = 0
	}
	out := Outcome{Max: max}
	if r != nil {
		out.Raw = clampNumeric(r.Value, max)
	}
	return out
}

// clampNumeric parses a stored answer value into [0, max]. Malformed values
// degrade to 0 so one bad response never blocks scoring the rest.
func clampNumeric(s string, max float64) float64 {
	v, ok := parseFloatLoose(s)
	if !ok || v < 0 {
		return 0
	}
	if v > max {
		return max
	}
	return v
}

func parseFloatLoose(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v, true
	}
	if sp := strings.Fields(s); len(sp) > 0 {
		if v, err := strconv.ParseFloat(sp[0], 64); err == nil {
			return v, true
		}
	}
	return 0, false
}
