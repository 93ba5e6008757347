package sessionactor

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/dinhkhaphancs/quiz-orchestration-core/internal/model"
	"github.com/dinhkhaphancs/quiz-orchestration-core/internal/scoring"
	"github.com/dinhkhaphancs/quiz-orchestration-core/internal/timer"
	"github.com/dinhkhaphancs/quiz-orchestration-core/internal/wsproto"
)

// beginQuestion starts a.session.CurrentQuestionID: resets per-question
// caches, clears the late-joiner spectator flag picked up during the
// previous question, distributes the question payload (per-participant
// shuffled if configured) and starts the authoritative timer.
func (a *Actor) beginQuestion(ctx context.Context, q *model.Question) {
	a.questionAnsweredCount[q.ID] = 0
	a.questionAnswers[q.ID] = nil
	a.lastQuestionScores = make(map[string]int)

	for _, p := range a.participants {
		if p.IsSpectator && !p.IsEliminated {
			p.IsSpectator = false
		}
	}
	a.refreshParticipantCounts()

	deadline := time.Now().Add(time.Duration(q.TimeLimitSec) * time.Second)
	a.session.TimerEndTimeMs = deadline.UnixMilli()
	a.persistSessionState(ctx)

	if q.ShuffleOptions {
		for _, p := range a.activeNonEliminatedLocked() {
			payload := questionPayload(q, ShuffledOptionsForParticipant(q.Options, p.ID, q.ID))
			a.router.PublishParticipant(ctx, a.session.ID, p.ID, wsproto.Event{
				Event: wsproto.EventQuestionStarted,
				Payload: wsproto.QuestionStartedPayload{
					QuestionIndex: a.session.CurrentQuestionIndex, Question: payload,
					StartTime: a.session.CurrentQuestionStartTime.UnixMilli(), EndTime: a.session.TimerEndTimeMs,
				},
			})
		}
		canonical := wsproto.QuestionStartedPayload{
			QuestionIndex: a.session.CurrentQuestionIndex, Question: questionPayload(q, q.Options),
			StartTime: a.session.CurrentQuestionStartTime.UnixMilli(), EndTime: a.session.TimerEndTimeMs,
		}
		a.router.PublishController(ctx, a.session.ID, wsproto.Event{Event: wsproto.EventQuestionStarted, Payload: canonical})
		a.router.PublishBigScreen(ctx, a.session.ID, wsproto.Event{Event: wsproto.EventQuestionStarted, Payload: canonical})
	} else {
		a.broadcastEvent(ctx, wsproto.EventQuestionStarted, wsproto.QuestionStartedPayload{
			QuestionIndex: a.session.CurrentQuestionIndex, Question: questionPayload(q, q.Options),
			StartTime: a.session.CurrentQuestionStartTime.UnixMilli(), EndTime: a.session.TimerEndTimeMs,
		})
	}

	a.startTimer(q)
}

func (a *Actor) startTimer(q *model.Question) {
	if a.tmr != nil {
		a.tmr.Stop()
	}
	qid := q.ID
	a.timerQuestionID = qid
	a.tmr = timer.New(time.Duration(q.TimeLimitSec)*time.Second, a.tickInterval,
		func(remaining time.Duration) {
			a.router.BroadcastToSession(context.Background(), a.session.ID, wsproto.Event{
				Event: wsproto.EventTimerTick,
				Payload: wsproto.TimerTickPayload{
					QuestionID: qid, RemainingSeconds: ceilSeconds(remaining), ServerTime: time.Now().UnixMilli(),
				},
			})
		},
		func() {
			a.postInternal(opTimerExpired, qid)
		},
	)
	go a.tmr.Start()
}

// advance moves from REVEAL (or, under exam-mode direct transition, from
// ACTIVE_QUESTION) to the next question, or ends the quiz if none remain.
func (a *Actor) advance(ctx context.Context) {
	next := a.session.CurrentQuestionIndex + 1
	if next >= len(a.quiz.Questions) {
		a.doEndQuiz(ctx)
		return
	}
	q := &a.quiz.Questions[next]
	a.session.CurrentQuestionIndex = next
	a.session.CurrentQuestionID = q.ID
	a.session.State = model.SessionActiveQuestion
	a.session.CurrentQuestionStartTime = time.Now()
	a.beginQuestion(ctx, q)
}

// transitionToReveal implements the ACTIVE_QUESTION -> REVEAL edge
// (timer_expiry / skip / all_answered), assembling reveal statistics,
// applying elimination, and broadcasting the updated leaderboard.
func (a *Actor) transitionToReveal(ctx context.Context) {
	if a.tmr != nil {
		a.tmr.Stop()
	}
	q := a.quiz.Question(a.session.CurrentQuestionID)
	if q == nil {
		return
	}
	stats := a.computeRevealStatistics(q.ID)
	a.questionsCompleted++

	a.session.State = model.SessionReveal
	a.session.TimerEndTimeMs = 0
	a.persistSessionState(ctx)

	reveal := wsproto.RevealAnswersPayload{
		QuestionID: q.ID, CorrectOptions: q.CorrectOptionIDs(), ExplanationText: q.Explanation, Statistics: stats,
	}
	a.lastReveal = &reveal
	a.broadcastEvent(ctx, wsproto.EventRevealAnswers, reveal)

	a.runElimination(ctx, q)
	a.broadcastLeaderboard(ctx)

	examDirect := a.quiz.ExamSettings != nil && (a.quiz.ExamSettings.SkipRevealPhase || a.quiz.ExamSettings.AutoAdvance)
	if examDirect {
		a.advance(ctx)
	}
}

func (a *Actor) doEndQuiz(ctx context.Context) {
	if a.tmr != nil {
		a.tmr.Stop()
	}
	a.session.State = model.SessionEnded
	a.session.TimerEndTimeMs = 0
	a.persistSessionState(ctx)

	final := scoring.Leaderboard(a.participantSliceLocked(), 0, nil)
	a.broadcastEvent(ctx, wsproto.EventQuizEnded, wsproto.QuizEndedPayload{
		SessionID: a.session.ID, FinalLeaderboard: final, Timestamp: time.Now().UnixMilli(),
	})
	a.audit.Record(ctx, "QUIZ_ENDED", a.session.ID, "", a.quiz.ID, map[string]any{"finalists": len(final)}, nil)
}

func (a *Actor) runElimination(ctx context.Context, q *model.Question) {
	if a.quiz.Type != model.QuizTypeElimination || a.quiz.EliminationSettings == nil {
		return
	}
	ids := scoring.EliminationCandidates(a.participantSliceLocked(), a.quiz.EliminationSettings, a.questionsCompleted)
	if len(ids) == 0 {
		return
	}

	ranked := a.participantSliceLocked()
	for _, pid := range ids {
		p, ok := a.participants[pid]
		if !ok {
			continue
		}
		rank := scoring.RankOf(ranked, pid)
		p.IsEliminated = true
		p.IsSpectator = true
		p.IsActive = false
		a.session.EliminatedParticipants[pid] = true
		delete(a.session.ActiveParticipants, pid)

		a.store.SaveParticipant(ctx, a.session.ID, p, a.reconnectGrace)
		a.persistParticipant(ctx, p)
		a.router.PublishParticipant(ctx, a.session.ID, pid, wsproto.Event{
			Event: wsproto.EventEliminated,
			Payload: wsproto.EliminatedPayload{
				ParticipantID: pid, FinalRank: rank, FinalScore: p.TotalScore, Message: "eliminated",
			},
		})
	}
	a.refreshParticipantCounts()
	a.persistSessionState(ctx)
	a.router.PublishParticipants(ctx, a.session.ID, wsproto.Event{
		Event: wsproto.EventParticipantCountUpdate,
		Payload: wsproto.ParticipantCountUpdatedPayload{
			ParticipantCount: a.session.ParticipantCount, EliminatedCount: len(a.session.EliminatedParticipants),
		},
	})
}

func (a *Actor) computeRevealStatistics(questionID string) wsproto.RevealStatistics {
	answers := a.questionAnswers[questionID]
	if len(answers) == 0 {
		return wsproto.RevealStatistics{}
	}
	var correct int
	var totalTime int64
	for _, ans := range answers {
		if ans.IsCorrect {
			correct++
		}
		totalTime += ans.ResponseTimeMs
	}
	return wsproto.RevealStatistics{
		TotalAnswers: len(answers), CorrectAnswers: correct, AverageResponseTime: float64(totalTime) / float64(len(answers)),
	}
}

func (a *Actor) broadcastLeaderboard(ctx context.Context) {
	all := scoring.Leaderboard(a.participantSliceLocked(), 0, a.lastQuestionScores)
	top := all
	if len(top) > 10 {
		top = top[:10]
	}
	a.router.PublishBigScreen(ctx, a.session.ID, wsproto.Event{
		Event: wsproto.EventLeaderboardUpdated, Payload: wsproto.LeaderboardUpdatedPayload{TopN: len(top), Leaderboard: top},
	})
	a.router.PublishParticipants(ctx, a.session.ID, wsproto.Event{
		Event: wsproto.EventLeaderboardUpdated, Payload: wsproto.LeaderboardUpdatedPayload{TopN: len(top), Leaderboard: top},
	})
	a.router.PublishController(ctx, a.session.ID, wsproto.Event{
		Event: wsproto.EventLeaderboardUpdated, Payload: wsproto.LeaderboardUpdatedPayload{TopN: len(all), Leaderboard: all},
	})
}

func (a *Actor) broadcastEvent(ctx context.Context, event string, payload any) {
	if err := a.router.BroadcastToSession(ctx, a.session.ID, wsproto.Event{Event: event, Payload: payload}); err != nil {
		a.log.Warn("broadcast failed", zap.String("event", event), zap.Error(err))
	}
}

func (a *Actor) ack(ctx context.Context, op string) {
	a.router.PublishController(ctx, a.session.ID, wsproto.Event{Event: wsproto.Ack(op)})
}

func (a *Actor) persistSessionState(ctx context.Context) {
	a.session.UpdatedAt = time.Now()
	if err := a.store.SaveSession(ctx, a.session); err != nil {
		a.log.Warn("faststore session save failed", zap.Error(err))
	}
	if a.sessionsRepo != nil {
		if err := a.sessionsRepo.UpdateSession(ctx, a.session); err != nil {
			a.log.Warn("persistent session mirror failed", zap.Error(err))
		}
	}
}

func (a *Actor) persistParticipant(ctx context.Context, p *model.Participant) {
	if a.participantsRepo != nil {
		if err := a.participantsRepo.UpdateParticipant(ctx, p); err != nil {
			a.log.Warn("persistent participant mirror failed", zap.Error(err))
		}
	}
}

func questionPayload(q *model.Question, opts []model.Option) wsproto.QuestionPayload {
	return wsproto.QuestionPayload{
		QuestionID: q.ID, QuestionText: q.Text, QuestionType: string(q.Type), QuestionImageURL: q.ImageURL,
		Options: projectOptions(opts), TimeLimit: q.TimeLimitSec, ShuffleOptions: q.ShuffleOptions,
	}
}

func projectOptions(opts []model.Option) []wsproto.OptionPayload {
	out := make([]wsproto.OptionPayload, len(opts))
	for i, o := range opts {
		out[i] = wsproto.OptionPayload{OptionID: o.ID, OptionText: o.Text, OptionImageURL: o.ImageURL}
	}
	return out
}
