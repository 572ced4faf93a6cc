package scoring

// Category is the proficiency label derived from a final percentage.
type Category string

const (
	CategoryBeginner     Category = "beginner"
	CategoryIntermediate Category = "intermediate"
	CategoryAdvanced     Category = "advanced"
)

// Categorize maps a percentage to its proficiency category. This is the one
// shared definition of the 70/40 cutoffs; screens must not re-derive it.
func Categorize(percentage int) Category {
	switch {
	case percentage >= 70:
		return CategoryAdvanced
	case percentage >= 40:
		return CategoryIntermediate
	default:
		return CategoryBeginner
	}
}
