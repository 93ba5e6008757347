package model

import "time"

// QuizType selects the end-of-question progression rules a session follows.
type QuizType string

const (
	QuizTypeRegular     QuizType = "REGULAR"
	QuizTypeElimination QuizType = "ELIMINATION"
	QuizTypeFFI         QuizType = "FFI"
)

// EliminationFrequency controls how often an ELIMINATION quiz prunes participants.
type EliminationFrequency string

const (
	EliminationEveryQuestion EliminationFrequency = "EVERY_QUESTION"
	EliminationEveryN        EliminationFrequency = "EVERY_N"
)

// QuestionType is the answer shape a question expects.
type QuestionType string

const (
	QuestionMultipleChoice QuestionType = "MULTIPLE_CHOICE"
	QuestionMultiSelect    QuestionType = "MULTI_SELECT"
	QuestionTrueFalse      QuestionType = "TRUE_FALSE"
	QuestionScale1To10     QuestionType = "SCALE_1_10"
	QuestionNumberInput    QuestionType = "NUMBER_INPUT"
	QuestionOpenEnded      QuestionType = "OPEN_ENDED"
)

// EliminationSettings configures the ELIMINATION quiz type.
type EliminationSettings struct {
	Percentage int                   `json:"percentage" db:"percentage"`
	Frequency  EliminationFrequency  `json:"frequency" db:"frequency"`
	NPerElim   int                   `json:"nPerElim" db:"n_per_elim"`
}

// FFISettings configures the "fastest finger first" quiz type.
type FFISettings struct {
	WinnersPerQuestion int `json:"winnersPerQuestion" db:"winners_per_question"`
}

// ExamSettings toggles exam-mode behavior on a quiz.
type ExamSettings struct {
	NegativeMarkingEnabled bool    `json:"negativeMarkingEnabled" db:"negative_marking_enabled"`
	NegativeMarkingPct     float64 `json:"negativeMarkingPct" db:"negative_marking_pct"`
	FocusMonitoringEnabled bool    `json:"focusMonitoringEnabled" db:"focus_monitoring_enabled"`
	SkipRevealPhase        bool    `json:"skipRevealPhase" db:"skip_reveal_phase"`
	AutoAdvance            bool    `json:"autoAdvance" db:"auto_advance"`
}

// Option is one answer choice for a question. IsCorrect must never be
// serialized to a participant-facing payload (see wsproto.QuestionPayload).
type Option struct {
	ID        string `json:"id" db:"id"`
	Text      string `json:"text" db:"text"`
	ImageURL  string `json:"imageUrl,omitempty" db:"image_url"`
	IsCorrect bool   `json:"isCorrect" db:"is_correct"`
}

// ScoringConfig is the per-question scoring policy.
type ScoringConfig struct {
	BasePoints               int      `json:"basePoints" db:"base_points"`
	SpeedBonusMultiplier     float64  `json:"speedBonusMultiplier" db:"speed_bonus_multiplier"`
	PartialCreditEnabled     bool     `json:"partialCreditEnabled" db:"partial_credit_enabled"`
	NegativeMarkingOverride  *float64 `json:"negativeMarkingOverride,omitempty" db:"negative_marking_override"`
}

// Question is one immutable item of a Quiz.
type Question struct {
	ID              string        `json:"id" db:"id"`
	QuizID          string        `json:"quizId" db:"quiz_id"`
	Text            string        `json:"text" db:"text"`
	ImageURL        string        `json:"imageUrl,omitempty" db:"image_url"`
	Type            QuestionType  `json:"type" db:"type"`
	TimeLimitSec    int           `json:"timeLimitSec" db:"time_limit_sec"`
	Options         []Option      `json:"options" db:"-"`
	Scoring         ScoringConfig `json:"scoring" db:"-"`
	ShuffleOptions  bool          `json:"shuffleOptions" db:"shuffle_options"`
	Explanation     string        `json:"explanation,omitempty" db:"explanation"`
	Order           int           `json:"order" db:"display_order"`
}

// CorrectOptionIDs returns the ids of every option flagged correct.
func (q *Question) CorrectOptionIDs() []string {
	var ids []string
	for _, o := range q.Options {
		if o.IsCorrect {
			ids = append(ids, o.ID)
		}
	}
	return ids
}

// EffectiveNegativeMarkingPct resolves the per-question override, falling
// back to the quiz-level exam setting.
func (q *Question) EffectiveNegativeMarkingPct(quiz *Quiz) float64 {
	if q.Scoring.NegativeMarkingOverride != nil {
		return *q.Scoring.NegativeMarkingOverride
	}
	if quiz.ExamSettings != nil {
		return quiz.ExamSettings.NegativeMarkingPct
	}
	return 0
}

// NegativeMarkingEnabled resolves whether negative marking applies at all
// for this question, combining the quiz-level flag with a per-question override.
func (q *Question) NegativeMarkingEnabled(quiz *Quiz) bool {
	if q.Scoring.NegativeMarkingOverride != nil {
		return *q.Scoring.NegativeMarkingOverride > 0
	}
	return quiz.ExamSettings != nil && quiz.ExamSettings.NegativeMarkingEnabled
}

// Quiz is the immutable authoring artifact a Session is created from.
type Quiz struct {
	ID                  string               `json:"id" db:"id"`
	Title               string               `json:"title" db:"title"`
	Description         string               `json:"description" db:"description"`
	Type                QuizType             `json:"type" db:"type"`
	EliminationSettings *EliminationSettings `json:"eliminationSettings,omitempty" db:"-"`
	FFISettings         *FFISettings         `json:"ffiSettings,omitempty" db:"-"`
	ExamSettings        *ExamSettings        `json:"examSettings,omitempty" db:"-"`
	Questions           []Question           `json:"questions" db:"-"`
	CreatedAt           time.Time            `json:"createdAt" db:"created_at"`
}

// Question looks up a question by id, or nil if absent.
func (q *Quiz) Question(id string) *Question {
	for i := range q.Questions {
		if q.Questions[i].ID == id {
			return &q.Questions[i]
		}
	}
	return nil
}

// QuestionAt returns the question at the given index, or nil if out of range.
func (q *Quiz) QuestionAt(index int) *Question {
	if index < 0 || index >= len(q.Questions) {
		return nil
	}
	return &q.Questions[index]
}
