package sessionactor

import (
	"context"
	"errors"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/dinhkhaphancs/quiz-orchestration-core/internal/scoring"
)

// runScoringWorker is the session's single scoring consumer (spec.md
// §4.G: "one logical consumer per session"). It blocks on the session's
// scoring queue, computes the Result in isolation (no shared state besides
// the immutable quiz), and hands the commit back into the actor's mailbox
// so the mutation of participant totals stays linearized through Run.
func (a *Actor) runScoringWorker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		answerID, err := a.store.PopScoringWork(ctx, a.session.ID, a.scoringPopTimeout)
		if err != nil {
			if errors.Is(err, redis.Nil) || ctx.Err() != nil {
				continue
			}
			a.log.Warn("scoring queue pop failed", zap.Error(err))
			continue
		}

		pending, err := a.store.GetPendingAnswer(ctx, a.session.ID, answerID)
		if err != nil {
			a.log.Warn("pending answer missing from hot store", zap.String("answerId", answerID), zap.Error(err))
			continue
		}

		q := a.quiz.Question(pending.QuestionID)
		if q == nil {
			a.log.Warn("scored answer references unknown question", zap.String("questionId", pending.QuestionID))
			continue
		}

		streak := 0
		if p, ok := a.Participant(pending.ParticipantID); ok {
			streak = p.StreakCount
		}

		fraction := scoring.Correctness(q, pending.SelectedOptionIDs, pending.AnswerNumber)
		result := scoring.Score(q, a.quiz, fraction, pending.ResponseTimeMs, int64(q.TimeLimitSec)*1000, streak)

		a.notifyScoreCommit(scoreCommit{answer: pending, result: result, question: q})
	}
}

// handleScoreCommit applies a completed scoring Result: updates the
// participant's totals and streak, persists the finalized answer, updates
// the leaderboard, and broadcasts the refreshed standings.
func (a *Actor) handleScoreCommit(ctx context.Context, c scoreCommit) {
	p, ok := a.participants[c.answer.ParticipantID]
	if !ok {
		return
	}

	c.answer.IsCorrect = c.result.IsCorrect
	c.answer.CorrectnessFraction = c.result.CorrectnessFraction
	c.answer.PointsAwarded = c.result.PointsAwarded
	c.answer.SpeedBonusApplied = c.result.SpeedBonusApplied
	c.answer.StreakBonusApplied = c.result.StreakBonusApplied
	c.answer.PartialCreditApplied = c.result.PartialCreditApplied
	c.answer.NegativeDeductionApplied = c.result.NegativeApplied

	p.TotalScore += c.result.PointsAwarded
	if p.TotalScore < 0 {
		p.TotalScore = 0
	}
	p.TotalTimeMs += c.answer.ResponseTimeMs
	if c.result.IsCorrect {
		p.StreakCount++
	} else {
		p.StreakCount = 0
	}

	a.lastQuestionScores[p.ID] = c.result.PointsAwarded
	a.questionAnswers[c.question.ID] = append(a.questionAnswers[c.question.ID], c.answer)

	a.store.SaveParticipant(ctx, a.session.ID, p, a.reconnectGrace)
	a.store.UpdateLeaderboard(ctx, a.session.ID, p.ID, p.LeaderboardScore())
	a.persistParticipant(ctx, p)

	a.store.BufferAnswer(ctx, a.session.ID, c.answer)
	a.store.DeletePendingAnswer(ctx, a.session.ID, c.answer.ID)
	if a.answersRepo != nil {
		if err := a.answersRepo.CreateAnswer(ctx, c.answer); err != nil {
			a.log.Warn("persistent answer write failed", zap.Error(err))
		}
	}

	a.broadcastLeaderboard(ctx)
}
