package classify

import "context"

// Result is the outcome of a single classification.
type Result struct {
	// Label is the class assigned to the text (a sentiment label or an
	// intent name, depending on the classifier).
	Label string

	// Confidence in the label, 0..1.
	Confidence float64

	// Entities extracted alongside the label, if any.
	Entities map[string]any

	// Details carries classifier-specific diagnostics (matched keywords,
	// raw model output) for logging and debugging.
	Details map[string]any
}

// Classifier is the black-box capability consumed by the workflow:
// classify(text, history) -> (label, confidence, entities). History is the
// prior user-message text in order; implementations may ignore it.
type Classifier interface {
	Classify(ctx context.Context, text string, history []string) (Result, error)
}
