package spaced_repetition

import (
	"fmt"
	"time"

	"github.com/example/wordbot/pkg/models"
)

// Policy implements the level-based repetition rule used by the Mastery Tracker
type Policy struct {
	// Consecutive correct answers needed to leave new, learning and known
	Thresholds [3]int
	// Review delay after landing on each level, indexed by MasteryLevel
	Intervals [4]time.Duration
}

// NewPolicy creates a policy with default settings
func NewPolicy() *Policy {
	return &Policy{
		Thresholds: [3]int{2, 2, 2},
		Intervals: [4]time.Duration{
			0,
			24 * time.Hour,
			72 * time.Hour,
			168 * time.Hour,
		},
	}
}

// NewPolicyFrom builds a policy from configuration slices and validates it.
func NewPolicyFrom(thresholds []int, intervals []time.Duration) (*Policy, error) {
	if len(thresholds) != 3 {
		return nil, models.NewValidationError("mastery_thresholds", fmt.Sprintf("need 3 values, got %d", len(thresholds)))
	}
	if len(intervals) != 4 {
		return nil, models.NewValidationError("mastery_intervals", fmt.Sprintf("need 4 values, got %d", len(intervals)))
	}
	p := &Policy{}
	copy(p.Thresholds[:], thresholds)
	copy(p.Intervals[:], intervals)
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate rejects thresholds below one and intervals that shrink as the level rises.
func (p *Policy) Validate() error {
	for i, t := range p.Thresholds {
		if t < 1 {
			return models.NewValidationError("mastery_thresholds", fmt.Sprintf("threshold for %s must be at least 1", models.MasteryLevel(i)))
		}
	}
	for i, d := range p.Intervals {
		if d < 0 {
			return models.NewValidationError("mastery_intervals", fmt.Sprintf("interval for %s is negative", models.MasteryLevel(i)))
		}
		if i > 0 && d < p.Intervals[i-1] {
			return models.NewValidationError("mastery_intervals", "must be non-decreasing by level")
		}
	}
	return nil
}

// Threshold returns the streak needed to promote out of level, or 0 at mastered.
func (p *Policy) Threshold(level models.MasteryLevel) int {
	if level >= models.LevelMastered || level < models.LevelNew {
		return 0
	}
	return p.Thresholds[level]
}

// Interval returns the review delay for level.
func (p *Policy) Interval(level models.MasteryLevel) time.Duration {
	if !level.Valid() {
		return 0
	}
	return p.Intervals[level]
}

// Process applies one answer to progress
func (p *Policy) Process(progress *models.UserProgress, correct bool, at time.Time) {
	reviewed := at
	progress.LastReviewed = &reviewed
	progress.UpdatedAt = at

	if correct {
		progress.Streak++
		if progress.Level < models.LevelMastered && progress.Streak >= p.Threshold(progress.Level) {
			progress.Level = progress.Level.Next()
			progress.Streak = 0
			if progress.Level == models.LevelMastered {
				mastered := at
				progress.MasteredAt = &mastered
			}
		}
	} else {
		// Wrong answers reset the streak and drop exactly one level
		progress.Streak = 0
		progress.Incorrect++
		if progress.Level == models.LevelMastered {
			progress.MasteredAt = nil
		}
		progress.Level = progress.Level.Prev()
	}

	progress.NextDue = at.Add(p.Interval(progress.Level))
}
