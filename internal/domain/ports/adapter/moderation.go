package adapter

import "context"

// Verdict is a content-safety decision for a listing text.
type Verdict struct {
	IsSafe     bool
	Category   string
	Confidence float64
	Reason     string
}

// ContentClassifier scores listing text before publication. Callers treat a
// low-confidence negative verdict as a pass (fail-open policy, configurable).
type ContentClassifier interface {
	Classify(ctx context.Context, text, categoryContext string) (Verdict, error)
}
