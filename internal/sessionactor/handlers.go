package sessionactor

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/dinhkhaphancs/quiz-orchestration-core/internal/apperr"
	"github.com/dinhkhaphancs/quiz-orchestration-core/internal/model"
	"github.com/dinhkhaphancs/quiz-orchestration-core/internal/wsproto"
)

func (a *Actor) requireHost(hostID string) error {
	if hostID != a.session.HostID {
		return apperr.New(apperr.InvalidState, "caller is not the session host")
	}
	return nil
}

func (a *Actor) handleStartQuiz(ctx context.Context, hostID string) (any, error) {
	if err := a.requireHost(hostID); err != nil {
		return nil, err
	}
	if a.session.State != model.SessionLobby {
		return nil, apperr.New(apperr.InvalidState, "quiz already started")
	}
	if len(a.quiz.Questions) == 0 {
		return nil, apperr.New(apperr.InvalidState, "quiz has no questions")
	}

	q := &a.quiz.Questions[0]
	a.session.CurrentQuestionIndex = 0
	a.session.CurrentQuestionID = q.ID
	a.session.State = model.SessionActiveQuestion
	a.session.CurrentQuestionStartTime = time.Now()
	a.persistSessionState(ctx)

	a.broadcastEvent(ctx, wsproto.EventQuizStarted, wsproto.QuizStartedPayload{
		SessionID: a.session.ID, TotalQuestions: len(a.quiz.Questions), Timestamp: time.Now().UnixMilli(),
	})
	a.ack(ctx, wsproto.InStartQuiz)
	a.beginQuestion(ctx, q)
	return nil, nil
}

func (a *Actor) handleNextQuestion(ctx context.Context, hostID string) (any, error) {
	if err := a.requireHost(hostID); err != nil {
		return nil, err
	}
	examDirect := a.quiz.ExamSettings != nil && (a.quiz.ExamSettings.SkipRevealPhase || a.quiz.ExamSettings.AutoAdvance)

	switch a.session.State {
	case model.SessionReveal:
		a.advance(ctx)
	case model.SessionActiveQuestion:
		if !examDirect {
			return nil, apperr.New(apperr.InvalidState, "cannot advance while a question is active")
		}
		a.advance(ctx)
	default:
		return nil, apperr.New(apperr.InvalidState, "not in a state that can advance")
	}
	a.ack(ctx, wsproto.InNextQuestion)
	return nil, nil
}

func (a *Actor) handleEndQuiz(ctx context.Context, hostID string) (any, error) {
	if err := a.requireHost(hostID); err != nil {
		return nil, err
	}
	if a.session.State == model.SessionEnded {
		return nil, apperr.New(apperr.SessionEnded, "session already ended")
	}
	a.doEndQuiz(ctx)
	a.ack(ctx, wsproto.InEndQuiz)
	return nil, nil
}

func (a *Actor) handleSkipQuestion(ctx context.Context, hostID string) (any, error) {
	if err := a.requireHost(hostID); err != nil {
		return nil, err
	}
	if a.session.State != model.SessionActiveQuestion {
		return nil, apperr.New(apperr.InvalidState, "no active question to skip")
	}
	if a.tmr != nil {
		a.tmr.Stop()
	}

	q := a.quiz.Question(a.session.CurrentQuestionID)
	examSkip := a.quiz.ExamSettings != nil && a.quiz.ExamSettings.SkipRevealPhase
	a.broadcastEvent(ctx, wsproto.EventQuestionSkipped, wsproto.QuestionSkippedPayload{
		QuestionID: q.ID, QuestionIndex: a.session.CurrentQuestionIndex, Reason: "host_skip",
		Timestamp: time.Now().UnixMilli(), ExamModeSkipReveal: examSkip,
	})

	if examSkip {
		a.advance(ctx)
	} else {
		a.transitionToReveal(ctx)
	}
	a.ack(ctx, wsproto.InSkipQuestion)
	return nil, nil
}

func (a *Actor) handleVoidQuestion(ctx context.Context, hostID string, msg wsproto.VoidQuestionMsg) (any, error) {
	if err := a.requireHost(hostID); err != nil {
		return nil, err
	}
	if a.session.VoidedQuestions[msg.QuestionID] {
		return nil, apperr.New(apperr.InvalidQuestion, "question already voided")
	}
	q := a.quiz.Question(msg.QuestionID)
	if q == nil {
		return nil, apperr.New(apperr.InvalidQuestion, "unknown question")
	}
	a.session.VoidedQuestions[msg.QuestionID] = true

	for _, ans := range a.questionAnswers[msg.QuestionID] {
		p, ok := a.participants[ans.ParticipantID]
		if !ok {
			continue
		}
		p.TotalScore -= ans.PointsAwarded
		if p.TotalScore < 0 {
			p.TotalScore = 0
		}
		a.store.UpdateLeaderboard(ctx, a.session.ID, p.ID, p.LeaderboardScore())
		a.persistParticipant(ctx, p)
	}

	a.broadcastEvent(ctx, wsproto.EventQuestionVoided, wsproto.QuestionVoidedPayload{
		QuestionID: msg.QuestionID, Reason: msg.Reason, Timestamp: time.Now().UnixMilli(),
	})
	a.broadcastLeaderboard(ctx)
	a.persistSessionState(ctx)

	if msg.QuestionID == a.session.CurrentQuestionID && a.session.State == model.SessionActiveQuestion {
		if a.tmr != nil {
			a.tmr.Stop()
		}
		examSkip := a.quiz.ExamSettings != nil && a.quiz.ExamSettings.SkipRevealPhase
		if examSkip {
			a.advance(ctx)
		} else {
			a.transitionToReveal(ctx)
		}
	}
	a.ack(ctx, wsproto.InVoidQuestion)
	return nil, nil
}

func (a *Actor) handlePauseTimer(ctx context.Context, hostID string) (any, error) {
	if err := a.requireHost(hostID); err != nil {
		return nil, err
	}
	if a.session.State != model.SessionActiveQuestion || a.tmr == nil {
		return nil, apperr.New(apperr.InvalidState, "no active timer to pause")
	}
	a.tmr.Pause()
	a.broadcastEvent(ctx, wsproto.EventTimerPaused, wsproto.TimerStateChangePayload{
		QuestionID: a.session.CurrentQuestionID, RemainingSeconds: ceilSeconds(a.tmr.Remaining()),
	})
	a.ack(ctx, wsproto.InPauseTimer)
	return nil, nil
}

func (a *Actor) handleResumeTimer(ctx context.Context, hostID string) (any, error) {
	if err := a.requireHost(hostID); err != nil {
		return nil, err
	}
	if a.session.State != model.SessionActiveQuestion || a.tmr == nil {
		return nil, apperr.New(apperr.InvalidState, "no active timer to resume")
	}
	a.tmr.Resume()
	a.session.TimerEndTimeMs = a.tmr.EndTimeUnixMs()
	a.persistSessionState(ctx)
	a.broadcastEvent(ctx, wsproto.EventTimerResumed, wsproto.TimerStateChangePayload{
		QuestionID: a.session.CurrentQuestionID, RemainingSeconds: ceilSeconds(a.tmr.Remaining()),
	})
	a.ack(ctx, wsproto.InResumeTimer)
	return nil, nil
}

func (a *Actor) handleResetTimer(ctx context.Context, hostID string, newLimit int) (any, error) {
	if err := a.requireHost(hostID); err != nil {
		return nil, err
	}
	if a.session.State != model.SessionActiveQuestion || a.tmr == nil {
		return nil, apperr.New(apperr.InvalidState, "no active timer to reset")
	}
	if newLimit < 5 || newLimit > 600 {
		return nil, apperr.New(apperr.InvalidRequest, "newTimeLimit out of range")
	}
	a.tmr.Reset(time.Duration(newLimit) * time.Second)
	a.session.TimerEndTimeMs = a.tmr.EndTimeUnixMs()
	a.persistSessionState(ctx)
	a.broadcastEvent(ctx, wsproto.EventTimerReset, wsproto.TimerStateChangePayload{
		QuestionID: a.session.CurrentQuestionID, RemainingSeconds: newLimit,
	})
	a.ack(ctx, wsproto.InResetTimer)
	return nil, nil
}

func (a *Actor) handleKickOrBan(ctx context.Context, op kickOp) (any, error) {
	if err := a.requireHost(op.HostID); err != nil {
		return nil, err
	}
	p, ok := a.participants[op.ParticipantID]
	if !ok || !p.IsActive {
		return nil, apperr.New(apperr.ParticipantNotFound, "participant not active in this session")
	}

	event := wsproto.EventKicked
	if op.Ban {
		event = wsproto.EventBanned
	}
	a.router.PublishParticipant(ctx, a.session.ID, p.ID, wsproto.Event{
		Event: event, Payload: wsproto.KickedPayload{Reason: op.Reason, Message: op.Reason, Timestamp: time.Now().UnixMilli()},
	})
	a.router.CloseParticipant(a.session.ID, p.ID)

	p.IsActive = false
	delete(a.session.ActiveParticipants, p.ID)
	a.refreshParticipantCounts()
	a.store.RemoveFromLeaderboard(ctx, a.session.ID, p.ID)

	if op.Ban {
		p.IsBanned = true
		a.session.BannedIPs[p.IP] = true
		a.store.BanIP(ctx, a.session.ID, p.IP)
	}
	a.store.SaveParticipant(ctx, a.session.ID, p, a.reconnectGrace)
	a.persistParticipant(ctx, p)
	a.persistSessionState(ctx)

	reason := "kicked"
	auditEvent := "PARTICIPANT_KICKED"
	if op.Ban {
		reason = "banned"
		auditEvent = "PARTICIPANT_BANNED"
	}
	a.broadcastEvent(ctx, wsproto.EventParticipantLeft, wsproto.ParticipantLeftPayload{
		ParticipantID: p.ID, Nickname: p.Nickname, Reason: reason,
	})
	a.audit.Record(ctx, auditEvent, a.session.ID, p.ID, a.quiz.ID, map[string]any{"reason": op.Reason}, nil)

	if op.Ban {
		a.ack(ctx, wsproto.InBanParticipant)
	} else {
		a.ack(ctx, wsproto.InKickParticipant)
	}
	return nil, nil
}

func (a *Actor) handleToggleLateJoiners(ctx context.Context, hostID string, allow bool) (any, error) {
	if err := a.requireHost(hostID); err != nil {
		return nil, err
	}
	a.session.AllowLateJoiners = allow
	a.persistSessionState(ctx)
	a.router.PublishBigScreen(ctx, a.session.ID, wsproto.Event{
		Event: wsproto.EventLateJoinersUpdated, Payload: wsproto.LateJoinersUpdatedPayload{AllowLateJoiners: allow},
	})
	a.ack(ctx, wsproto.InToggleLateJoiners)
	return nil, nil
}

func (a *Actor) handleJoin(ctx context.Context, req joinRequest) (any, error) {
	if a.session.State == model.SessionEnded {
		return nil, apperr.New(apperr.SessionEnded, "session has ended")
	}
	if a.session.BannedIPs[req.IP] {
		return nil, apperr.New(apperr.ParticipantBanned, "ip is banned from this session")
	}
	for _, p := range a.participants {
		if p.IsActive && p.Nickname == req.Nickname {
			return nil, apperr.New(apperr.InvalidRequest, "nickname already taken")
		}
	}
	if a.session.State == model.SessionActiveQuestion && !a.session.AllowLateJoiners {
		return nil, apperr.New(apperr.InvalidState, "late joining is disabled for this session")
	}

	p := model.NewParticipant(req.ParticipantID, a.session.ID, req.Nickname, req.IP)
	if a.session.State == model.SessionActiveQuestion {
		// Open Question decision: a late joiner admitted mid-question
		// enters as a spectator until the next question begins, rather
		// than being rejected or granted an unfairly short timer window.
		p.IsSpectator = true
	}

	a.participants[p.ID] = p
	a.session.ActiveParticipants[p.ID] = true
	a.refreshParticipantCounts()

	a.store.SaveParticipant(ctx, a.session.ID, p, a.reconnectGrace)
	a.persistSessionState(ctx)
	a.persistParticipant(ctx, p)
	if a.participantsRepo != nil {
		if err := a.participantsRepo.CreateParticipant(ctx, p); err != nil {
			a.log.Warn("persistent participant create failed", zap.Error(err))
		}
	}

	a.broadcastEvent(ctx, wsproto.EventParticipantJoined, wsproto.ParticipantJoinedPayload{
		ParticipantID: p.ID, Nickname: p.Nickname, ParticipantCount: a.session.ParticipantCount, Timestamp: time.Now().UnixMilli(),
	})
	return p, nil
}

func (a *Actor) handleTimerExpired(ctx context.Context, questionID string) {
	if a.session.State != model.SessionActiveQuestion || a.session.CurrentQuestionID != questionID {
		return
	}
	a.transitionToReveal(ctx)
}

func (a *Actor) handleAllAnswered(ctx context.Context, questionID string) {
	if a.session.State != model.SessionActiveQuestion || a.session.CurrentQuestionID != questionID {
		return
	}
	a.transitionToReveal(ctx)
}

func ceilSeconds(d time.Duration) int {
	secs := int(d / time.Second)
	if d%time.Second > 0 {
		secs++
	}
	return secs
}
