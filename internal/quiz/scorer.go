package quiz

import (
	"strings"

	"github.com/example/wordbot/pkg/models"
)

// Normalize trims the answer, collapses inner whitespace and lowercases it
func Normalize(text string) string {
	return strings.ToLower(strings.Join(strings.Fields(text), " "))
}

// Evaluate reports whether text matches any expected rendering of the prompt.
// Matching is exact after Normalize; there is no fuzzy matching.
func Evaluate(prompt models.Prompt, text string) bool {
	answer := Normalize(text)
	if answer == "" {
		return false
	}
	for _, expected := range prompt.Expected {
		if Normalize(expected) == answer {
			return true
		}
	}
	return false
}
