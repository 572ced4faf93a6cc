package scoring

// openTextStrategy has no intrinsic score: the answer counts 0/DefaultMaxScore
// and is flagged pending until a grader sets a manual score. A question the
// respondent never answered is not pending, it is simply worth 0.
type openTextStrategy struct{}

func (openTextStrategy) Resolve(_ Q, r *R) Outcome {
	out := Outcome{Max: DefaultMaxScore}
	if r == nil {
		return out
	}
	if r.ManualScore == nil {
		out.Pending = true
		return out
	}
	raw := *r.ManualScore
	if raw < 0 {
		raw = 0
	}
	if raw > out.Max {
		raw = out.Max
	}
	out.Raw = raw
	return out
}
