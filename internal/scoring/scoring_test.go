package scoring

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dinhkhaphancs/quiz-orchestration-core/internal/model"
)

func mcQuestion() *model.Question {
	return &model.Question{
		ID:   "q1",
		Type: model.QuestionMultipleChoice,
		Options: []model.Option{
			{ID: "a", Text: "A"},
			{ID: "b", Text: "B", IsCorrect: true},
		},
		Scoring: model.ScoringConfig{BasePoints: 1000, SpeedBonusMultiplier: 0.5},
	}
}

func TestCorrectnessMultipleChoice(t *testing.T) {
	q := mcQuestion()
	require.Equal(t, 1.0, Correctness(q, []string{"b"}, nil))
	require.Equal(t, 0.0, Correctness(q, []string{"a"}, nil))
}

func TestCorrectnessMultiSelectExactMatch(t *testing.T) {
	q := &model.Question{
		Type: model.QuestionMultiSelect,
		Options: []model.Option{
			{ID: "a", IsCorrect: true},
			{ID: "b", IsCorrect: true},
			{ID: "c"},
		},
	}
	require.Equal(t, 1.0, Correctness(q, []string{"a", "b"}, nil))
	require.Equal(t, 0.0, Correctness(q, []string{"a", "c"}, nil))
}

func TestCorrectnessMultiSelectPartialCredit(t *testing.T) {
	q := &model.Question{
		Type: model.QuestionMultiSelect,
		Options: []model.Option{
			{ID: "a", IsCorrect: true},
			{ID: "b", IsCorrect: true},
			{ID: "c"},
		},
		Scoring: model.ScoringConfig{PartialCreditEnabled: true},
	}
	// selected {a, c}: intersection=1, union=3 -> 1/3
	got := Correctness(q, []string{"a", "c"}, nil)
	require.InDelta(t, 1.0/3.0, got, 0.0001)
}

func TestCorrectnessOpenEndedAlwaysZero(t *testing.T) {
	q := &model.Question{Type: model.QuestionOpenEnded}
	require.Equal(t, 0.0, Correctness(q, nil, nil))
}

func TestCorrectnessNumberInput(t *testing.T) {
	q := &model.Question{
		Type:    model.QuestionNumberInput,
		Options: []model.Option{{ID: "42", IsCorrect: true}},
	}
	v := 42.0
	require.Equal(t, 1.0, Correctness(q, nil, &v))
	wrong := 41.0
	require.Equal(t, 0.0, Correctness(q, nil, &wrong))
}

func TestScoreAwardsSpeedBonusForFastCorrectAnswer(t *testing.T) {
	q := mcQuestion()
	quiz := &model.Quiz{}

	fast := Score(q, quiz, 1.0, 1000, 10000, 0)
	require.True(t, fast.IsCorrect)
	require.Equal(t, 1000, fast.BasePoints)
	require.True(t, fast.SpeedBonusApplied)
	require.Greater(t, fast.PointsAwarded, fast.BasePoints)

	slow := Score(q, quiz, 1.0, 9900, 10000, 0)
	require.Less(t, slow.SpeedBonus, fast.SpeedBonus)
}

func TestScoreAppliesStreakBonusCap(t *testing.T) {
	q := mcQuestion()
	quiz := &model.Quiz{}
	q.Scoring.SpeedBonusMultiplier = 0

	res := Score(q, quiz, 1.0, 10000, 10000, 20) // huge streak, should hit 50% cap
	require.Equal(t, 500, res.StreakBonus)
}

func TestScoreAppliesNegativeMarkingOnWrongAnswer(t *testing.T) {
	q := mcQuestion()
	pct := 25.0 // percent-scale, per model.ExamSettings.NegativeMarkingPct
	q.Scoring.NegativeMarkingOverride = &pct

	res := Score(q, &model.Quiz{}, 0, 5000, 10000, 3)
	require.False(t, res.IsCorrect)
	require.Equal(t, 250, res.NegativeDeduction)
	require.Equal(t, -250, res.PointsAwarded)
}

func TestScoreNoNegativeMarkingWhenDisabled(t *testing.T) {
	q := mcQuestion()
	res := Score(q, &model.Quiz{}, 0, 5000, 10000, 0)
	require.Equal(t, 0, res.PointsAwarded)
	require.False(t, res.NegativeApplied)
}
