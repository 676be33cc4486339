package quiz

import (
	"testing"

	"github.com/example/wordbot/pkg/models"
	"github.com/stretchr/testify/assert"
)

func TestEvaluate(t *testing.T) {
	apple := models.Word{ID: 1, Source: "apple", Target: "olma", Variants: models.StringList{"olma"}}
	forward := BuildPrompt(apple, models.DirectionForward)
	reverse := BuildPrompt(apple, models.DirectionReverse)

	tests := []struct {
		name   string
		prompt models.Prompt
		text   string
		want   bool
	}{
		{"exact", forward, "olma", true},
		{"case and trailing space", forward, "Olma ", true},
		{"inner whitespace", BuildPrompt(models.Word{Source: "ice cream", Target: "muzqaymoq"}, models.DirectionReverse), "  ice   cream ", true},
		{"no full case folding", BuildPrompt(models.Word{Source: "straße", Target: "ko'cha"}, models.DirectionReverse), "STRASSE", false},
		{"cyrillic case", BuildPrompt(models.Word{Source: "яблоко", Target: "olma"}, models.DirectionReverse), "Яблоко", true},
		{"reverse expects source", reverse, "apple", true},
		{"reverse rejects target", reverse, "olma", false},
		{"typo", forward, "olmaa", false},
		{"empty", forward, "   ", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Evaluate(tc.prompt, tc.text))
		})
	}
}

func TestBuildPrompt_VariantsAccepted(t *testing.T) {
	w := models.Word{ID: 1, Source: "car", Target: "mashina", Variants: models.StringList{"avtomobil", "Mashina"}}
	p := BuildPrompt(w, models.DirectionForward)

	assert.Equal(t, "car", p.Question)
	assert.Equal(t, []string{"mashina", "avtomobil"}, p.Expected)
	assert.True(t, Evaluate(p, "Avtomobil"))
}

func TestDirectionMode(t *testing.T) {
	assert.Equal(t, models.DirectionForward, DirectionModeAlternate.Direction(2, 0))
	assert.Equal(t, models.DirectionReverse, DirectionModeAlternate.Direction(3, 0))
	assert.Equal(t, models.DirectionReverse, DirectionModeAlternate.Direction(2, 1))
	assert.Equal(t, models.DirectionForward, DirectionModeForward.Direction(3, 7))
	assert.Equal(t, models.DirectionReverse, DirectionModeReverse.Direction(2, 7))

	seen := map[models.Direction]bool{}
	for id := int64(1); id <= 64; id++ {
		d := DirectionModeRandom.Direction(id, 42)
		assert.Equal(t, d, DirectionModeRandom.Direction(id, 42))
		seen[d] = true
	}
	assert.Len(t, seen, 2)

	_, err := ParseDirectionMode("sideways")
	assert.ErrorIs(t, err, models.ErrValidation)
}
