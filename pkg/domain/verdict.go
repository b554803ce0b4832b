package domain

// Label is the classification output label
type Label string

// classification labels
const (
	LabelAI    Label = "ai"
	LabelHuman Label = "human"
)

// Verdict is the output of a single classification call: a label and a
// confidence score in [0,1]. Verdicts are produced fresh per call and never
// persisted directly, only their derived fields.
type Verdict struct {
	Label Label   `json:"label"`
	Score float64 `json:"score"`
}

// IsAI reports whether the verdict flags the text as AI-generated.
// A low-confidence AI label (score <= 0.5) counts as human.
func (v Verdict) IsAI() bool {
	return v.Label == LabelAI && v.Score > 0.5
}
