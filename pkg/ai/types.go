package ai

import (
	"context"
	"strings"
)

// FeedbackInput carries everything the generator needs to review one essay.
type FeedbackInput struct {
	PromptText        string
	EssayContent      string
	PersonalStatement bool
	WordCount         int
	WordLimit         int
}

// Generator describes an AI model capable of reviewing an essay draft.
type Generator interface {
	Generate(ctx context.Context, input FeedbackInput) (string, error)
}

// CountWords returns the number of whitespace-delimited non-empty tokens in
// the essay body. This is computed server-side regardless of any count the
// client claims.
func CountWords(text string) int {
	return len(strings.Fields(text))
}
