package quiz

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"

	"github.com/example/wordbot/pkg/models"
)

// DirectionMode decides which side of a word is asked
type DirectionMode string

const (
	DirectionModeForward   DirectionMode = "forward"
	DirectionModeReverse   DirectionMode = "reverse"
	DirectionModeAlternate DirectionMode = "alternate"
	DirectionModeRandom    DirectionMode = "random"
)

// ParseDirectionMode validates a configured mode.
func ParseDirectionMode(s string) (DirectionMode, error) {
	switch m := DirectionMode(s); m {
	case DirectionModeForward, DirectionModeReverse, DirectionModeAlternate, DirectionModeRandom:
		return m, nil
	}
	return "", models.NewValidationError("direction_mode", fmt.Sprintf("unknown mode %q", s))
}

// Direction is a pure function of (wordID, seed) under the mode
func (m DirectionMode) Direction(wordID, seed int64) models.Direction {
	switch m {
	case DirectionModeForward:
		return models.DirectionForward
	case DirectionModeReverse:
		return models.DirectionReverse
	case DirectionModeRandom:
		var buf [16]byte
		binary.LittleEndian.PutUint64(buf[:8], uint64(wordID))
		binary.LittleEndian.PutUint64(buf[8:], uint64(seed))
		h := fnv.New64a()
		h.Write(buf[:])
		if h.Sum64()&1 == 0 {
			return models.DirectionForward
		}
		return models.DirectionReverse
	}
	if (wordID+seed)&1 == 0 {
		return models.DirectionForward
	}
	return models.DirectionReverse
}

// BuildPrompt renders the question and accepted answers of word
func BuildPrompt(word models.Word, dir models.Direction) models.Prompt {
	p := models.Prompt{WordID: word.ID, Direction: dir}
	if dir == models.DirectionReverse {
		p.Question = word.Target
		p.Expected = []string{word.Source}
	} else {
		p.Question = word.Source
		p.Expected = word.AcceptedTargets()
	}
	return p
}
