// Package scoring determines answer correctness and computes awarded
// points: base + speed bonus + streak bonus, minus negative-marking
// deduction, per question type (spec.md §4.G). Grounded on the teacher's
// answer-processing shape (internal/service answer scoring used a flat
// "isCorrect bool" with no partial credit or bonuses); the richer model
// here is new domain logic required by SPEC_FULL.md, built the way the
// teacher structures a stateless calculation service: pure functions
// over model types, no hidden I/O.
package scoring

import (
	"fmt"
	"math"

	"github.com/dinhkhaphancs/quiz-orchestration-core/internal/model"
)

// Result is the outcome of scoring one submitted answer.
type Result struct {
	IsCorrect           bool
	CorrectnessFraction float64
	BasePoints          int
	SpeedBonus          int
	StreakBonus         int
	NegativeDeduction   int
	PointsAwarded       int
	SpeedBonusApplied   bool
	StreakBonusApplied  bool
	PartialCreditApplied bool
	NegativeApplied     bool
}

// Correctness computes the correctness fraction for one answer against
// a question, per spec.md's per-type rules:
//   - MULTIPLE_CHOICE / TRUE_FALSE: exact single-option match, 0 or 1.
//   - MULTI_SELECT: exact-set match is 1; otherwise the configured
//     partial-credit fraction (Jaccard-style), or 0 if partial credit is
//     disabled for the question.
//   - NUMBER_INPUT / SCALE_1_10: exact numeric match, 0 or 1.
//   - OPEN_ENDED: always 0 (graded outside the automated pipeline).
func Correctness(q *model.Question, selectedOptionIDs []string, answerNumber *float64) float64 {
	correct := q.CorrectOptionIDs()

	switch q.Type {
	case model.QuestionMultipleChoice, model.QuestionTrueFalse:
		if len(selectedOptionIDs) == 1 && len(correct) == 1 && selectedOptionIDs[0] == correct[0] {
			return 1
		}
		return 0

	case model.QuestionMultiSelect:
		return multiSelectFraction(q, selectedOptionIDs, correct)

	case model.QuestionNumberInput, model.QuestionScale1To10:
		if answerNumber == nil || len(correct) == 0 {
			return 0
		}
		target, err := parseFloat(correct[0])
		if err != nil {
			return 0
		}
		if *answerNumber == target {
			return 1
		}
		return 0

	case model.QuestionOpenEnded:
		return 0

	default:
		return 0
	}
}

func multiSelectFraction(q *model.Question, selected, correct []string) float64 {
	correctSet := toSet(correct)
	selectedSet := toSet(selected)

	if setsEqual(correctSet, selectedSet) {
		return 1
	}
	if !q.Scoring.PartialCreditEnabled {
		return 0
	}

	intersection := 0
	for id := range selectedSet {
		if correctSet[id] {
			intersection++
		}
	}
	union := len(correctSet)
	for id := range selectedSet {
		if !correctSet[id] {
			union++
		}
	}
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

func setsEqual(a, b map[string]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}

func parseFloat(s string) (float64, error) {
	var f float64
	_, err := fmt.Sscanf(s, "%g", &f)
	return f, err
}

// Score computes the full Result for an accepted answer.
//
// responseTimeMs is elapsed time from question start to submission;
// timeLimitMs is the question's total allotted time. streakCount is the
// participant's consecutive-correct streak *before* this answer.
func Score(q *model.Question, quiz *model.Quiz, correctnessFraction float64, responseTimeMs, timeLimitMs int64, streakCount int) Result {
	res := Result{
		CorrectnessFraction: correctnessFraction,
		IsCorrect:           correctnessFraction >= 1,
	}

	if correctnessFraction <= 0 {
		if q.NegativeMarkingEnabled(quiz) {
			pct := q.EffectiveNegativeMarkingPct(quiz)
			res.NegativeDeduction = int(math.Round(float64(q.Scoring.BasePoints) * pct / 100))
			res.NegativeApplied = res.NegativeDeduction > 0
			res.PointsAwarded = -res.NegativeDeduction
		}
		return res
	}

	res.BasePoints = int(math.Round(float64(q.Scoring.BasePoints) * correctnessFraction))
	if correctnessFraction < 1 {
		res.PartialCreditApplied = true
	}

	if res.IsCorrect && q.Scoring.SpeedBonusMultiplier > 0 && timeLimitMs > 0 {
		speedFraction := 1 - float64(responseTimeMs)/float64(timeLimitMs)
		if speedFraction < 0 {
			speedFraction = 0
		}
		res.SpeedBonus = int(math.Round(float64(q.Scoring.BasePoints) * q.Scoring.SpeedBonusMultiplier * speedFraction))
		res.SpeedBonusApplied = res.SpeedBonus > 0
	}

	if res.IsCorrect && streakCount > 0 {
		res.StreakBonus = StreakBonus(q.Scoring.BasePoints, streakCount)
		res.StreakBonusApplied = res.StreakBonus > 0
	}

	res.PointsAwarded = res.BasePoints + res.SpeedBonus + res.StreakBonus
	return res
}

// StreakBonus implements the decided Open Question resolution: 10% of
// base points per consecutive correct answer, capped at 50% of base.
func StreakBonus(basePoints, streakCount int) int {
	bonus := float64(basePoints) * 0.10 * float64(streakCount)
	maxBonus := float64(basePoints) * 0.50
	if bonus > maxBonus {
		bonus = maxBonus
	}
	return int(math.Round(bonus))
}
