package spaced_repetition

import (
	"testing"
	"time"

	"github.com/example/wordbot/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func TestProcess_CorrectRunReachesMastered(t *testing.T) {
	p := NewPolicy()
	prog := models.NewProgress(1, 1, t0)

	at := t0
	prev := prog.Level
	answers := 0
	for prog.Level < models.LevelMastered && answers < 20 {
		at = at.Add(time.Hour)
		p.Process(&prog, true, at)
		answers++
		require.GreaterOrEqual(t, prog.Level, prev)
		prev = prog.Level
	}

	assert.Equal(t, 6, answers)

	require.Equal(t, models.LevelMastered, prog.Level)
	require.NotNil(t, prog.MasteredAt)
	assert.True(t, prog.MasteredAt.Equal(at))
	assert.Equal(t, at.Add(168*time.Hour), prog.NextDue)
	assert.NoError(t, prog.Validate())
}

func TestProcess_PromotionNeedsThreshold(t *testing.T) {
	p := NewPolicy()
	prog := models.NewProgress(1, 1, t0)

	p.Process(&prog, true, t0)
	assert.Equal(t, models.LevelNew, prog.Level)
	assert.Equal(t, 1, prog.Streak)
	assert.Equal(t, t0, prog.NextDue)

	p.Process(&prog, true, t0.Add(time.Minute))
	assert.Equal(t, models.LevelLearning, prog.Level)
	assert.Equal(t, 0, prog.Streak)
	assert.Equal(t, t0.Add(time.Minute+24*time.Hour), prog.NextDue)
}

func TestProcess_IncorrectDemotesOneLevel(t *testing.T) {
	p := NewPolicy()
	mastered := t0
	cases := []struct {
		name string
		from models.MasteryLevel
		want models.MasteryLevel
	}{
		{"new stays new", models.LevelNew, models.LevelNew},
		{"learning to new", models.LevelLearning, models.LevelNew},
		{"known to learning", models.LevelKnown, models.LevelLearning},
		{"mastered to known", models.LevelMastered, models.LevelKnown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			prog := models.NewProgress(1, 1, t0)
			prog.Level = tc.from
			prog.Streak = 1
			if tc.from == models.LevelMastered {
				prog.MasteredAt = &mastered
			}

			at := t0.Add(time.Hour)
			p.Process(&prog, false, at)

			assert.Equal(t, tc.want, prog.Level)
			assert.Equal(t, 0, prog.Streak)
			assert.Equal(t, 1, prog.Incorrect)
			assert.Nil(t, prog.MasteredAt)
			assert.Equal(t, at.Add(p.Interval(tc.want)), prog.NextDue)
			require.NoError(t, prog.Validate())
		})
	}
}

func TestProcess_MasteredStaysMasteredOnCorrect(t *testing.T) {
	p := NewPolicy()
	prog := models.NewProgress(1, 1, t0)
	prog.Level = models.LevelMastered
	prog.MasteredAt = &t0

	p.Process(&prog, true, t0.Add(time.Hour))
	p.Process(&prog, true, t0.Add(2*time.Hour))

	assert.Equal(t, models.LevelMastered, prog.Level)
	assert.True(t, prog.MasteredAt.Equal(t0))
}

func TestNewPolicyFrom_Validation(t *testing.T) {
	_, err := NewPolicyFrom([]int{2, 0, 2}, []time.Duration{0, time.Hour, 2 * time.Hour, 3 * time.Hour})
	require.ErrorIs(t, err, models.ErrValidation)

	_, err = NewPolicyFrom([]int{2, 2, 2}, []time.Duration{0, 3 * time.Hour, 2 * time.Hour, 4 * time.Hour})
	require.ErrorIs(t, err, models.ErrValidation)

	_, err = NewPolicyFrom([]int{2, 2}, []time.Duration{0, time.Hour, 2 * time.Hour, 3 * time.Hour})
	require.ErrorIs(t, err, models.ErrValidation)

	p, err := NewPolicyFrom([]int{1, 3, 5}, []time.Duration{0, time.Hour, 2 * time.Hour, 3 * time.Hour})
	require.NoError(t, err)
	assert.Equal(t, 5, p.Threshold(models.LevelKnown))
	assert.Equal(t, 0, p.Threshold(models.LevelMastered))
	assert.Equal(t, 3*time.Hour, p.Interval(models.LevelMastered))
}
