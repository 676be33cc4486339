package quiz

import (
	"fmt"
	"slices"
	"time"

	"github.com/example/wordbot/pkg/models"
)

const (
	QuizCorrectPoints  = 5
	BlitzCorrectPoints = 7
	WrongPoints        = -4
)

// Config holds session sizing and timing
type Config struct {
	WordsPerQuiz  int
	BlitzWords    int
	BlitzBudget   time.Duration   // Used when a start request names none
	BlitzBudgets  []time.Duration // Budgets a user may pick
	PromptTimeout time.Duration   // Per-prompt limit in blitz
	DirectionMode DirectionMode
	Retention     time.Duration // How long finished sessions answer late submissions
	ActiveTTL     time.Duration // Upper bound on an idle quiz session
}

// DefaultConfig returns the default session settings
func DefaultConfig() Config {
	return Config{
		WordsPerQuiz:  10,
		BlitzWords:    30,
		BlitzBudget:   3 * time.Minute,
		BlitzBudgets:  []time.Duration{time.Minute, 3 * time.Minute, 5 * time.Minute},
		PromptTimeout: 15 * time.Second,
		DirectionMode: DirectionModeAlternate,
		Retention:     10 * time.Minute,
		ActiveTTL:     24 * time.Hour,
	}
}

// Validate checks counts and durations are usable
func (c Config) Validate() error {
	switch {
	case c.WordsPerQuiz <= 0:
		return models.NewValidationError("words_per_quiz", "must be positive")
	case c.BlitzWords <= 0:
		return models.NewValidationError("blitz_words", "must be positive")
	case c.PromptTimeout <= 0:
		return models.NewValidationError("blitz_prompt_timeout", "must be positive")
	case c.Retention <= 0:
		return models.NewValidationError("session_retention", "must be positive")
	case c.ActiveTTL <= 0:
		return models.NewValidationError("session_ttl", "must be positive")
	case len(c.BlitzBudgets) == 0:
		return models.NewValidationError("blitz_budgets", "must not be empty")
	}
	for _, b := range c.BlitzBudgets {
		if b <= 0 {
			return models.NewValidationError("blitz_budgets", fmt.Sprintf("budget %s must be positive", b))
		}
	}
	if !slices.Contains(c.BlitzBudgets, c.BlitzBudget) {
		return models.NewValidationError("blitz_budget", fmt.Sprintf("%s is not one of the allowed budgets", c.BlitzBudget))
	}
	if _, err := ParseDirectionMode(string(c.DirectionMode)); err != nil {
		return err
	}
	return nil
}

func (c Config) budget(requested time.Duration) (time.Duration, error) {
	if requested == 0 {
		return c.BlitzBudget, nil
	}
	if !slices.Contains(c.BlitzBudgets, requested) {
		return 0, models.NewValidationError("budget", fmt.Sprintf("%s is not one of %v", requested, c.BlitzBudgets))
	}
	return requested, nil
}
