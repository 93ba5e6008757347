package handler

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/dinhkhaphancs/quiz-orchestration-core/internal/apperr"
	"github.com/dinhkhaphancs/quiz-orchestration-core/internal/fanout"
	"github.com/dinhkhaphancs/quiz-orchestration-core/internal/wsproto"
)

// dispatchParticipant decodes one participant->server event and runs it
// against the submission pipeline or recovery service. Both already
// self-publish their own success/failure events, so this layer only
// handles decode errors and unknown events.
func (h *WSHandler) dispatchParticipant(ctx context.Context, conn *fanout.Connection, sessionID, participantID string, env inboundEnvelope) {
	switch env.Event {
	case wsproto.InSubmitAnswer:
		var msg wsproto.SubmitAnswerMsg
		if err := json.Unmarshal(env.Payload, &msg); err != nil {
			h.writeError(conn, env.Event, err)
			return
		}
		if _, err := h.submission.Submit(ctx, sessionID, participantID, msg, time.Now()); err != nil {
			kind, reason := apperr.As(err)
			h.writeEvent(conn, wsproto.Event{
				Event:   wsproto.EventAnswerRejected,
				Payload: wsproto.AnswerRejectedPayload{QuestionID: msg.QuestionID, Reason: string(kind), Message: reason},
			})
		}

	case wsproto.InReconnectSession:
		var msg wsproto.ReconnectSessionMsg
		if err := json.Unmarshal(env.Payload, &msg); err != nil {
			h.writeError(conn, env.Event, err)
			return
		}
		msg.ParticipantID = participantID
		msg.SessionID = sessionID
		if _, err := h.recovery.Recover(ctx, msg, conn.ID); err != nil {
			kind, reason := apperr.As(err)
			h.log.Info("recovery rejected", zap.String("sessionId", sessionID), zap.String("participantId", participantID), zap.String("kind", string(kind)), zap.String("reason", reason))
		}

	case wsproto.InFocusLost, wsproto.InFocusRegained:
		// Focus tracking is telemetry-only (spec.md §4.I) — no state
		// transition results, so there is nothing further to dispatch.

	default:
		h.writeError(conn, env.Event, apperr.New(apperr.InvalidRequest, "unknown participant event"))
	}
}

// dispatchController decodes one host->server control op and runs it
// against the session's Actor. Every Actor control method already
// broadcasts its own ack/event on success; a returned error here means
// the op never reached the mailbox (e.g. wrong host), so this layer
// reports it directly to the controller connection.
func (h *WSHandler) dispatchController(ctx context.Context, conn *fanout.Connection, sessionID, hostID string, env inboundEnvelope) {
	actor, ok := h.registry.Get(sessionID)
	if !ok {
		h.writeError(conn, env.Event, apperr.New(apperr.SessionNotFound, "session is not running"))
		return
	}

	var err error
	switch env.Event {
	case wsproto.InStartQuiz:
		err = actor.StartQuiz(ctx, hostID)
	case wsproto.InNextQuestion:
		err = actor.NextQuestion(ctx, hostID)
	case wsproto.InEndQuiz:
		err = actor.EndQuiz(ctx, hostID)
	case wsproto.InSkipQuestion:
		err = actor.SkipQuestion(ctx, hostID)
	case wsproto.InVoidQuestion:
		var msg wsproto.VoidQuestionMsg
		if decodeErr := json.Unmarshal(env.Payload, &msg); decodeErr != nil {
			h.writeError(conn, env.Event, decodeErr)
			return
		}
		err = actor.VoidQuestion(ctx, hostID, msg)
	case wsproto.InPauseTimer:
		err = actor.PauseTimer(ctx, hostID)
	case wsproto.InResumeTimer:
		err = actor.ResumeTimer(ctx, hostID)
	case wsproto.InResetTimer:
		var msg wsproto.ResetTimerMsg
		if decodeErr := json.Unmarshal(env.Payload, &msg); decodeErr != nil {
			h.writeError(conn, env.Event, decodeErr)
			return
		}
		err = actor.ResetTimer(ctx, hostID, msg.NewTimeLimit)
	case wsproto.InKickParticipant:
		var msg wsproto.KickParticipantMsg
		if decodeErr := json.Unmarshal(env.Payload, &msg); decodeErr != nil {
			h.writeError(conn, env.Event, decodeErr)
			return
		}
		err = actor.KickParticipant(ctx, hostID, msg.ParticipantID, msg.Reason)
	case wsproto.InBanParticipant:
		var msg wsproto.KickParticipantMsg
		if decodeErr := json.Unmarshal(env.Payload, &msg); decodeErr != nil {
			h.writeError(conn, env.Event, decodeErr)
			return
		}
		err = actor.BanParticipant(ctx, hostID, msg.ParticipantID, msg.Reason)
	case wsproto.InToggleLateJoiners:
		var msg wsproto.ToggleLateJoinersMsg
		if decodeErr := json.Unmarshal(env.Payload, &msg); decodeErr != nil {
			h.writeError(conn, env.Event, decodeErr)
			return
		}
		err = actor.ToggleLateJoiners(ctx, hostID, msg.AllowLateJoiners)
	default:
		err = apperr.New(apperr.InvalidRequest, "unknown controller event")
	}

	if err != nil {
		h.writeError(conn, env.Event, err)
	}
}
